package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nimogit/beacon/internal/request"
)

var (
	// Version is set at build time
	Version = "dev"
	// BuildTime is set at build time
	BuildTime = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Display beacon version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("beacon version %s (sdk %s/%s)\n", Version, request.SDKName, request.SDKVersion)
		fmt.Printf("Built at: %s\n", BuildTime)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
