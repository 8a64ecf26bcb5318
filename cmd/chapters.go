package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Folium/engine"
	"Folium/utils"
)

var (
	chaptersSync      bool
	chaptersMax       int
	chaptersRecursive bool
	chaptersMarkRead  string
	chaptersUnread    string
)

var chaptersCmd = &cobra.Command{
	Use:   "chapters [work-id]",
	Short: "Show or sync the chapter list of a work",
	Long: `Display the catalog chapter list of a work. With --sync the list is re-discovered from the
source; read and saved state carries over to chapters that keep their number.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}

		if chaptersMarkRead != "" || chaptersUnread != "" {
			arg, read := chaptersMarkRead, true
			if arg == "" {
				arg, read = chaptersUnread, false
			}
			number, err := parseChapterNumber(arg)
			if err == nil {
				work, err = catalog.MarkRead(work.ID, number, read)
			}
			if err != nil {
				if jsonOutput {
					utils.OutputJSON("error", nil, err)
					return
				}
				fmt.Printf("Error: %v\n", err)
				return
			}
		}

		if chaptersSync {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
			defer cancel()

			discovered, err := appEngine.DiscoverChapters(ctx, work.SourceName, work.SourceURL, engine.DiscoverOptions{
				Max:       chaptersMax,
				Recursive: chaptersRecursive,
			})
			if err != nil {
				if jsonOutput {
					utils.OutputJSON("error", nil, err)
					return
				}
				fmt.Printf("Error discovering chapters: %v\n", err)
				return
			}

			work, err = catalog.ReplaceChapters(work.ID, discovered)
			if err != nil {
				if jsonOutput {
					utils.OutputJSON("error", nil, err)
					return
				}
				fmt.Printf("Error: %v\n", err)
				return
			}

			if !jsonOutput {
				fmt.Printf("Synced %d chapters from %s\n\n", len(work.Chapters), work.SourceName)
			}
		}

		if jsonOutput {
			utils.OutputJSON("success", map[string]interface{}{
				"work_id":  work.ID,
				"title":    work.Title,
				"chapters": work.Chapters,
				"count":    len(work.Chapters),
			}, nil)
			return
		}

		fmt.Printf("%s: chapters\n", work.Title)
		displayChapterRows(work, work.Chapters)
	},
}

func init() {
	rootCmd.AddCommand(chaptersCmd)

	// Flags
	chaptersCmd.Flags().BoolVar(&chaptersSync, "sync", false, "Re-discover the chapter list from the source")
	chaptersCmd.Flags().IntVar(&chaptersMax, "max", 0, "Maximum chapters to discover (0 uses the default of 50)")
	chaptersCmd.Flags().BoolVar(&chaptersRecursive, "recursive", false, "Follow next-chapter links instead of reading one index page")
	chaptersCmd.Flags().StringVar(&chaptersMarkRead, "mark-read", "", "Mark a chapter number as read")
	chaptersCmd.Flags().StringVar(&chaptersUnread, "mark-unread", "", "Mark a chapter number as unread")
}
