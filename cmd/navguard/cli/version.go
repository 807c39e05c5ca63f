package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tkingovr/navguard/internal/guard"
)

// version is set by goreleaser via ldflags
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version of navguard",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("navguard %s (guard %s)\n", version, guard.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
