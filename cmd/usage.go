package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Folium/utils"
)

var usageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show translation quota usage",
	Long:  `Display how much of the translation backend's character quota has been consumed. The free backend reports no quota.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		usage, err := appEngine.Translator.Usage(ctx)
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error reading usage: %v\n", err)
			return
		}

		if jsonOutput {
			utils.OutputJSON("success", usage, nil)
			return
		}

		if !usage.Supported {
			fmt.Println("The configured translation backend does not report quota usage.")
			return
		}
		fmt.Printf("Translation quota: %d of %d characters used (%.1f%%)\n",
			usage.Used, usage.Limit, usage.Percent)
		if usage.Percent >= 95 {
			fmt.Println("Warning: translation requests will be refused near the quota ceiling.")
		}
	},
}

func init() {
	rootCmd.AddCommand(usageCmd)
}
