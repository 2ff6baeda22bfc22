// Package main is the entry point for the tasktrack command.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

func main() {
	os.Exit(run())
}

func run() int {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath    string
	envFile       string
	logLevel      string
	workspaceFile string
	noColor       bool
}

func newRootCmd() *cobra.Command {
	var g globalFlags

	root := &cobra.Command{
		Use:   "tasktrack",
		Short: "Track TODO, HACK and FIXME annotations across a workspace",
		Long: `tasktrack finds annotation comments such as TODO and HACK in the
source files of one or more workspace folders.

  tasktrack scan ./service ./lib     List annotations once
  tasktrack watch -w app.code-workspace
                                     Follow annotations as files change`,
		Version:       fmt.Sprintf("%s (commit %s, built %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&g.configPath, "config", "c", "", "Path to configuration file (.toml, .yaml)")
	pf.StringVar(&g.envFile, "env-file", ".env", "Environment file read before TASKTRACK_* variables")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level override (debug, info, warn, error)")
	pf.StringVarP(&g.workspaceFile, "workspace", "w", "", "Path to a .code-workspace file")
	pf.BoolVar(&g.noColor, "no-color", false, "Disable coloured output")

	root.AddCommand(newScanCmd(&g), newWatchCmd(&g))
	return root
}
