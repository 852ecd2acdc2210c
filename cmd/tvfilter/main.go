// Package main is the entry point for the tvfilter application.
package main

import (
	"os"

	"github.com/jmylchreest/tvfilter/cmd/tvfilter/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
