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
	addMax       int
	addRecursive bool
	addSkipSync  bool
)

// AddResult represents the outcome of tracking a new work for API output
type AddResult struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Source   string `json:"source"`
	Kind     string `json:"kind"`
	Chapters int    `json:"chapters"`
}

var addCmd = &cobra.Command{
	Use:   "add [source] [url]",
	Short: "Start tracking a work",
	Long:  `Scrape a work's metadata from its source page, add it to the library, and sync its chapter list.`,
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		source, workURL := args[0], args[1]

		if !appEngine.AdapterExists(source) {
			if jsonOutput {
				utils.OutputJSON("error", nil, fmt.Errorf("source '%s' not found", source))
				return
			}
			fmt.Printf("Error: Source '%s' not found\n", source)
			printSourceList()
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		meta, err := appEngine.RefreshMetadata(ctx, source, workURL)
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error retrieving work: %v\n", err)
			return
		}

		work, err := catalog.Add(meta)
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		synced := 0
		if !addSkipSync {
			chapters, err := appEngine.DiscoverChapters(ctx, source, workURL, engine.DiscoverOptions{
				Max:       addMax,
				Recursive: addRecursive,
			})
			if err != nil {
				appEngine.Logger.Warn("Chapter sync for '%s' failed: %v", work.Title, err)
			} else if work, err = catalog.ReplaceChapters(work.ID, chapters); err != nil {
				appEngine.Logger.Warn("Could not record chapters for '%s': %v", work.Title, err)
			} else {
				synced = len(work.Chapters)
			}
		}

		if jsonOutput {
			utils.OutputJSON("success", AddResult{
				ID:       work.ID,
				Title:    work.Title,
				Source:   work.SourceName,
				Kind:     string(work.Kind),
				Chapters: synced,
			}, nil)
			return
		}

		fmt.Printf("Now tracking: %s\n", work.Title)
		fmt.Printf("ID: %s\n", work.ID)
		if work.Author != "" {
			fmt.Printf("Author: %s\n", work.Author)
		}
		fmt.Printf("Source: %s (%s)\n", work.SourceName, work.SourceURL)
		if addSkipSync {
			fmt.Println("Chapter sync skipped; run 'folium chapters --sync' later")
		} else {
			fmt.Printf("Chapters synced: %d\n", synced)
		}
	},
}

func init() {
	rootCmd.AddCommand(addCmd)

	// Flags
	addCmd.Flags().IntVar(&addMax, "max", 0, "Maximum chapters to discover (0 uses the default of 50)")
	addCmd.Flags().BoolVar(&addRecursive, "recursive", false, "Follow next-chapter links instead of reading one index page")
	addCmd.Flags().BoolVar(&addSkipSync, "skip-sync", false, "Do not sync the chapter list after adding")
}
