package main

import (
	"bytes"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// resetFlags restores every global flag variable to its default for the test.
func resetFlags(t *testing.T) {
	t.Helper()
	set := func() {
		verbose, quiet, jsonOut, logFile = false, false, false, false
		cfgFile, logDir = "", ""
		runStrategy, runWorkload = "default", "all"
		runWorkers, runOps, runMaxSize = 4, 10000, 8192
		runSeed, runRefillPages, runValidate = 1, 0, false
		classesSizes = nil

		// pflag keeps Changed across parses; clear it so env and config values apply.
		unchange := func(f *pflag.Flag) { f.Changed = false }
		rootCmd.PersistentFlags().VisitAll(unchange)
		for _, cmd := range append([]*cobra.Command{rootCmd}, rootCmd.Commands()...) {
			cmd.Flags().VisitAll(unchange)
		}
	}
	set()
	t.Cleanup(set)
}

// executeCommand runs the root command with args and returns everything it printed.
func executeCommand(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(t)

	var buf bytes.Buffer
	rootCmd.SetOut(&buf)
	rootCmd.SetErr(&buf)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	err := rootCmd.Execute()
	return buf.String(), err
}
