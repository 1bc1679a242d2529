package main

import (
	"fmt"
	"strings"

	"github.com/aretw0/minutes"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of minutes",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "minutes version %s\n", strings.TrimSpace(minutes.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
