package main

import (
	"fmt"
	"os"

	"github.com/gardentracker/gardentracker/cmd"
	"github.com/gardentracker/gardentracker/internal/buildinfo"
	"github.com/gardentracker/gardentracker/internal/conf"
)

// Set through ldflags at build time
var (
	version   string
	buildDate string
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error loading configuration: %v\n", err)
		os.Exit(1)
	}

	rootCmd := cmd.RootCommand(settings, buildinfo.NewContext(version, buildDate))
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
