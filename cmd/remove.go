package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"Folium/utils"
)

var removeCmd = &cobra.Command{
	Use:   "remove [work-id]",
	Short: "Stop tracking a work",
	Long:  `Remove a work from the library. Stored chapter content stays on disk.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}

		if err := catalog.Remove(work.ID); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		if jsonOutput {
			utils.OutputJSON("success", map[string]string{
				"message": fmt.Sprintf("Removed '%s'", work.Title),
				"work_id": work.ID,
			}, nil)
			return
		}
		fmt.Printf("Removed '%s' from the library. Stored chapters remain under the store root.\n", work.Title)
	},
}

func init() {
	rootCmd.AddCommand(removeCmd)
}
