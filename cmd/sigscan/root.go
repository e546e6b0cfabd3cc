package main

import (
	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "sigscan",
	Short: "Find byte signatures in files, streams and process memory",
	Long: `sigscan locates byte signatures such as "48 8B 05 ** ** ** ** ?? C3" in
files, standard input, saved process dumps and the modules of a running process.

"??" matches any byte, "**" matches any byte and reports it as captured.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")

	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(dumpCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
