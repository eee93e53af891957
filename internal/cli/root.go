package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "langidd",
	Short: "Clustered audio language-identification service",
	Long:  `langidd ingests audio, runs it through the EN/FR language gate and worker pipeline, and coordinates submission/routing across a cluster of peer nodes.`,
}

// Execute runs the root command, exiting non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
