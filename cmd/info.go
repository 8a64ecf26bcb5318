package cmd

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"Folium/utils"
)

var infoRefresh bool

var infoCmd = &cobra.Command{
	Use:   "info [work-id]",
	Short: "Show detailed information about a tracked work",
	Long:  `Display a work's metadata and chapter list. With --refresh the metadata is re-scraped from the source first.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}

		if infoRefresh {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			meta, err := appEngine.RefreshMetadata(ctx, work.SourceName, work.SourceURL)
			if err != nil {
				if jsonOutput {
					utils.OutputJSON("error", nil, err)
					return
				}
				fmt.Printf("Error refreshing metadata: %v\n", err)
				return
			}
			work, err = catalog.ReplaceMetadata(work.ID, meta)
			if err != nil {
				if jsonOutput {
					utils.OutputJSON("error", nil, err)
					return
				}
				fmt.Printf("Error: %v\n", err)
				return
			}
		}

		if jsonOutput {
			utils.OutputJSON("success", work, nil)
			return
		}

		fmt.Printf("Title: %s\n", work.Title)
		fmt.Printf("ID: %s\n", work.ID)
		if work.Author != "" {
			fmt.Printf("Author: %s\n", work.Author)
		}
		fmt.Printf("Kind: %s\n", work.Kind)
		if work.Status != "" {
			fmt.Printf("Status: %s\n", work.Status)
		}
		if work.Language != "" {
			fmt.Printf("Language: %s\n", work.Language)
		}
		if len(work.Tags) > 0 {
			fmt.Printf("Tags: %s\n", strings.Join(work.Tags, ", "))
		}
		fmt.Printf("Source: %s (%s)\n", work.SourceName, work.SourceURL)
		fmt.Printf("Added: %s\n", work.AddedAt.Format("2006-01-02"))
		if work.ChaptersSyncedAt != nil {
			fmt.Printf("Chapters synced: %s\n", work.ChaptersSyncedAt.Format("2006-01-02 15:04"))
		}

		if work.Description != "" {
			fmt.Printf("\nDescription:\n%s\n", work.Description)
		}

		fmt.Printf("\nChapters (%d, %d read, %d saved):\n",
			len(work.Chapters), work.ReadCount(), work.DownloadedCount())
		displayChapterRows(work, work.Chapters)
	},
}

func init() {
	rootCmd.AddCommand(infoCmd)

	// Flags
	infoCmd.Flags().BoolVar(&infoRefresh, "refresh", false, "Re-scrape the metadata from the source first")
}
