package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/tvfilter/internal/expression"
	"github.com/jmylchreest/tvfilter/internal/rules"
	"github.com/jmylchreest/tvfilter/internal/template"
)

// OutputKind is the format a target writes.
type OutputKind string

// Output kinds.
const (
	OutputM3U    OutputKind = "m3u"
	OutputXtream OutputKind = "xtream"
	OutputSTRM   OutputKind = "strm"
)

// ParseOutputKind parses an output kind name.
func ParseOutputKind(s string) (OutputKind, bool) {
	switch OutputKind(strings.ToLower(strings.TrimSpace(s))) {
	case OutputM3U:
		return OutputM3U, true
	case OutputXtream:
		return OutputXtream, true
	case OutputSTRM:
		return OutputSTRM, true
	default:
		return "", false
	}
}

// InputType is the raw record shape an input produces.
type InputType string

// Input types.
const (
	InputM3U    InputType = "m3u"
	InputXtream InputType = "xtream"
)

// Options control compilation.
type Options struct {
	// MaxExpansionDepth bounds template chains. Zero selects the registry default.
	MaxExpansionDepth int

	// BatchSize is the rule pipeline cancellation granularity.
	BatchSize int
}

// Catalog is a compiled catalog. It is immutable after Compile and safe to
// share between concurrent runs.
type Catalog struct {
	Templates *template.Registry
	Sources   []*Source
}

// Source is a compiled source.
type Source struct {
	Index   int
	Inputs  []Input
	Targets []*Target
}

// EnabledInputs returns the inputs that are not disabled.
func (s *Source) EnabledInputs() []Input {
	out := make([]Input, 0, len(s.Inputs))
	for _, in := range s.Inputs {
		if in.Enabled {
			out = append(out, in)
		}
	}
	return out
}

// Input is a compiled provider input.
type Input struct {
	Name        string
	Type        InputType
	URL         string
	Username    string
	Password    string
	Compression string
	Enabled     bool
}

// Target is a compiled output target.
type Target struct {
	Name     string
	Output   OutputKind
	Filename string
	Enabled  bool
	Options  TargetOptions

	// FilterText is the template-expanded filter.
	FilterText string
	Filter     *expression.Expression
	Rules      *rules.Pipeline
}

// Targets returns every target of the catalog in declaration order.
func (c *Catalog) Targets() []*Target {
	var out []*Target
	for _, s := range c.Sources {
		out = append(out, s.Targets...)
	}
	return out
}

// Target looks up a target by name.
func (c *Catalog) Target(name string) (*Target, bool) {
	for _, s := range c.Sources {
		for _, t := range s.Targets {
			if t.Name == name {
				return t, true
			}
		}
	}
	return nil, false
}

// Load reads, decodes and compiles a catalog file.
func Load(path string, opts Options) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening catalog: %w", err)
	}
	defer f.Close()

	file, err := Decode(f)
	if err != nil {
		return nil, err
	}
	return Compile(file, opts)
}

// Parse decodes and compiles a catalog document.
func Parse(data []byte, opts Options) (*Catalog, error) {
	file, err := DecodeBytes(data)
	if err != nil {
		return nil, err
	}
	return Compile(file, opts)
}

// Compile validates a decoded catalog and compiles its filters and rules.
func Compile(file *File, opts Options) (*Catalog, error) {
	reg := template.NewRegistry(opts.MaxExpansionDepth)
	for i, tmpl := range file.Templates {
		if err := reg.Register(tmpl.Name, tmpl.Value); err != nil {
			return nil, configErr(fmt.Sprintf("templates[%d].name", i), err)
		}
	}
	if err := reg.Validate(); err != nil {
		return nil, configErr("templates", err)
	}

	c := &Catalog{Templates: reg}
	targetNames := make(map[string]string)
	inputNames := make(map[string]string)

	for si, spec := range file.Sources {
		src := &Source{Index: si}
		base := fmt.Sprintf("sources[%d]", si)

		for ii, in := range spec.Inputs {
			path := fmt.Sprintf("%s.inputs[%d]", base, ii)
			input, err := compileInput(path, in)
			if err != nil {
				return nil, err
			}
			if prev, dup := inputNames[input.Name]; dup {
				return nil, configErr(path+".name", fmt.Errorf("%w: %q already declared at %s", ErrDuplicateInput, input.Name, prev))
			}
			inputNames[input.Name] = path
			src.Inputs = append(src.Inputs, input)
		}

		for ti, ts := range spec.Targets {
			path := fmt.Sprintf("%s.targets[%d]", base, ti)
			target, err := compileTarget(path, ts, reg, opts)
			if err != nil {
				return nil, err
			}
			if prev, dup := targetNames[target.Name]; dup {
				return nil, configErr(path+".name", fmt.Errorf("%w: %q already declared at %s", ErrDuplicateTarget, target.Name, prev))
			}
			targetNames[target.Name] = path
			src.Targets = append(src.Targets, target)
		}

		c.Sources = append(c.Sources, src)
	}

	return c, nil
}

func compileInput(path string, spec InputSpec) (Input, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return Input{}, configErr(path+".name", ErrNameRequired)
	}

	var typ InputType
	switch InputType(strings.ToLower(strings.TrimSpace(spec.Type))) {
	case InputM3U, "":
		typ = InputM3U
	case InputXtream:
		typ = InputXtream
	default:
		return Input{}, configErr(path+".type", fmt.Errorf("%w: %q", ErrUnknownInputType, spec.Type))
	}

	if strings.TrimSpace(spec.URL) == "" {
		return Input{}, configErr(path+".url", ErrURLRequired)
	}

	return Input{
		Name:        name,
		Type:        typ,
		URL:         spec.URL,
		Username:    spec.Username,
		Password:    spec.Password,
		Compression: spec.Compression,
		Enabled:     spec.Enabled == nil || *spec.Enabled,
	}, nil
}

func compileTarget(path string, spec TargetSpec, reg *template.Registry, opts Options) (*Target, error) {
	name := strings.TrimSpace(spec.Name)
	if name == "" {
		return nil, configErr(path+".name", ErrNameRequired)
	}

	output, ok := ParseOutputKind(spec.Output)
	if !ok {
		return nil, configErr(path+".output", fmt.Errorf("%w: %q", ErrUnknownOutput, spec.Output))
	}

	resolved, err := reg.Resolve(spec.Filter)
	if err != nil {
		return nil, configErr(path+".filter", err)
	}
	filter, err := expression.CompileWithOptions(resolved, expression.Options{MatchAsASCII: spec.Options.MatchAsASCII})
	if err != nil {
		return nil, configErr(path+".filter", err)
	}

	compiled := make([]rules.Rule, 0, len(spec.Rules))
	for ri, rs := range spec.Rules {
		rule, err := compileRule(fmt.Sprintf("%s.rules[%d]", path, ri), rs, reg)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, rule)
	}

	filename := spec.Filename
	if filename == "" {
		filename = defaultFilename(name, output)
	}
	if filepath.Base(filename) != filename || filename == "." || filename == ".." {
		return nil, configErr(path+".filename", fmt.Errorf("%w: %q", ErrInvalidFilename, filename))
	}

	return &Target{
		Name:       name,
		Output:     output,
		Filename:   filename,
		Enabled:    spec.Enabled == nil || *spec.Enabled,
		Options:    spec.Options,
		FilterText: resolved,
		Filter:     filter,
		Rules:      rules.NewPipeline(compiled, opts.BatchSize),
	}, nil
}

func compileRule(path string, spec RuleSpec, reg *template.Registry) (rules.Rule, error) {
	kinds := spec.kinds()
	if len(kinds) != 1 {
		return nil, configErr(path, fmt.Errorf("%w (found %d)", ErrRuleKey, len(kinds)))
	}

	var (
		rule rules.Rule
		err  error
	)
	switch {
	case spec.Rename != nil:
		rule, err = rules.NewRename(*spec.Rename)
	case spec.Sort != nil:
		rule, err = rules.NewSort(*spec.Sort)
	case spec.Mapping != nil:
		rule, err = rules.NewMapping(*spec.Mapping)
	case spec.Watch != nil:
		rule, err = rules.NewWatch(*spec.Watch)
	case spec.Map != nil:
		rule, err = rules.NewMap(*spec.Map, reg)
	}
	if err != nil {
		var pe *rules.ParamError
		if errors.As(err, &pe) {
			return nil, configErr(path+"."+pe.Path(), pe.Err)
		}
		return nil, configErr(path+"."+string(kinds[0]), err)
	}
	return rule, nil
}

func defaultFilename(name string, output OutputKind) string {
	if output == OutputM3U {
		return name + ".m3u"
	}
	return name
}
