package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"Folium/utils"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information for Folium.`,
	Run: func(cmd *cobra.Command, args []string) {
		if jsonOutput {
			versionData := map[string]string{
				"version":    version,
				"go_version": runtime.Version(),
				"os":         runtime.GOOS,
				"arch":       runtime.GOARCH,
			}
			utils.OutputJSON("success", versionData, nil)
		} else {
			fmt.Printf("Folium version: %s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		}
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
