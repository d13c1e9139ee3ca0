package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/boshu2/keyguard/internal/rules"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display the version, build information, and runtime details.`,
	Run: func(cmd *cobra.Command, args []string) {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "keyguard version %s\n", version)
		fmt.Fprintf(w, "  Go version: %s\n", runtime.Version())
		fmt.Fprintf(w, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		fmt.Fprintf(w, "  Built-in rules: %d\n", len(rules.BuiltinRules()))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
