package generatestrm

import (
	"strconv"
	"strings"

	"github.com/grafana/regexp"
)

var (
	yearPattern       = regexp.MustCompile(`\d\d\d\d`)
	seasonPattern     = regexp.MustCompile(`[Ss]\d\d`)
	episodePattern    = regexp.MustCompile(`[Ee]\d\d`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// KodiName rewrites an episode name as "Title (Year) SxxEyy". The first
// four digit number between 1901 and currentYear is taken as the year and
// defaults to currentYear; the season defaults to 01. Names without an
// episode marker are returned unchanged.
func KodiName(name string, currentYear int) string {
	work, year := cutYear(name, currentYear)
	work, season := cut(work, seasonPattern)
	if season == "" {
		season = "01"
	}
	work, episode := cut(work, episodePattern)
	if episode == "" {
		return name
	}

	formatted := work + " (" + year + ") S" + season + "E" + episode
	return strings.TrimSpace(whitespacePattern.ReplaceAllString(formatted, " "))
}

func cutYear(name string, currentYear int) (string, string) {
	loc := yearPattern.FindStringIndex(name)
	if loc == nil {
		return name, strconv.Itoa(currentYear)
	}
	s := name[loc[0]:loc[1]]
	y, _ := strconv.Atoi(s)
	if y > 1900 && y <= currentYear {
		return name[:loc[0]] + name[loc[1]:], s
	}
	return name, strconv.Itoa(currentYear)
}

// cut removes the first match of re and returns it without its letter.
func cut(name string, re *regexp.Regexp) (string, string) {
	loc := re.FindStringIndex(name)
	if loc == nil {
		return name, ""
	}
	return name[:loc[0]] + name[loc[1]:], name[loc[0]+1 : loc[1]]
}
