package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"Folium/engine"
	"Folium/library"
	"Folium/utils"
)

var listKind string

// WorkListItem represents a tracked work for API list responses
type WorkListItem struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	Source     string  `json:"source"`
	Kind       string  `json:"kind"`
	Status     string  `json:"status,omitempty"`
	Chapters   int     `json:"chapters"`
	Read       int     `json:"read"`
	Downloaded int     `json:"downloaded"`
	Last       float64 `json:"last_chapter"`
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all tracked works",
	Long:  `List every work in the library, optionally filtered by kind (text or comic).`,
	Run: func(cmd *cobra.Command, args []string) {
		works, err := catalog.List()
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		if listKind != "" {
			filtered := works[:0]
			for _, w := range works {
				if string(w.Kind) == listKind {
					filtered = append(filtered, w)
				}
			}
			works = filtered
		}

		if jsonOutput {
			items := make([]WorkListItem, 0, len(works))
			for _, w := range works {
				items = append(items, WorkListItem{
					ID:         w.ID,
					Title:      w.Title,
					Source:     w.SourceName,
					Kind:       string(w.Kind),
					Status:     w.Status,
					Chapters:   len(w.Chapters),
					Read:       w.ReadCount(),
					Downloaded: w.DownloadedCount(),
					Last:       w.LastChapterNumber(),
				})
			}
			utils.OutputJSON("success", map[string]interface{}{
				"works": items,
				"count": len(items),
			}, nil)
			return
		}

		if len(works) == 0 {
			fmt.Println("No works tracked yet. Use 'folium add <source> <url>' to start.")
			return
		}

		rows := make([][]string, 0, len(works))
		for _, w := range works {
			rows = append(rows, []string{
				shortID(w.ID),
				w.Title,
				w.SourceName,
				string(w.Kind),
				fmt.Sprintf("%d", len(w.Chapters)),
				fmt.Sprintf("%d", w.ReadCount()),
				fmt.Sprintf("%d", w.DownloadedCount()),
				w.Status,
			})
		}
		printTable([]string{"ID", "TITLE", "SOURCE", "KIND", "CHAPTERS", "READ", "SAVED", "STATUS"}, rows)
		fmt.Printf("\n%d works tracked\n", len(works))
	},
}

// displayChapterRows renders a catalog chapter table, shared by the
// chapters and info commands.
func displayChapterRows(work *library.Work, chapters []library.Chapter) {
	if len(chapters) == 0 {
		fmt.Println("  No chapters synced")
		return
	}

	rows := make([][]string, 0, len(chapters))
	for _, ch := range chapters {
		rows = append(rows, []string{
			utils.FormatChapterNumber(ch.Number),
			ch.Title,
			boolMark(ch.Read),
			boolMark(ch.Downloaded),
		})
	}
	printTable([]string{"N", "TITLE", "READ", "SAVED"}, rows)

	fmt.Printf("\n%d chapters", len(chapters))
	if work.Kind == engine.KindComic {
		fmt.Print(" (comic: chapters fetch as image sets)")
	}
	fmt.Println("")
}

func init() {
	rootCmd.AddCommand(listCmd)

	// Flags
	listCmd.Flags().StringVar(&listKind, "kind", "", "Filter by work kind: text or comic")
}
