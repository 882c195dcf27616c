package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "superfast %s\n", Version)
			fmt.Fprintf(out, "  Build Time: %s\n", BuildTime)
			fmt.Fprintf(out, "  Git Commit: %s\n", GitCommit)
		},
	}
}
