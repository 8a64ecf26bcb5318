package cmd

import (
	"fmt"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"Folium/engine"
	"Folium/library"
	"Folium/utils"
)

// printTable prints rows in a left-aligned table.
func printTable(headers []string, rows [][]string) {
	table := tablewriter.NewTable(os.Stdout)
	table.Configure(func(cfg *tablewriter.Config) {
		cfg.Header.Alignment.Global = tw.AlignLeft
		cfg.Row.Alignment.Global = tw.AlignLeft
		cfg.Header.Padding.Global = tw.Padding{Left: " ", Right: " "}
		cfg.Row.Padding.Global = tw.Padding{Left: " ", Right: " "}
	})

	table.Header(headers)
	if err := table.Bulk(rows); err != nil {
		return
	}
	_ = table.Render()
}

// requireWork resolves a work argument against the catalog, printing the
// failure in the active output mode.
func requireWork(id string) *library.Work {
	work, err := catalog.FindWork(id)
	if err != nil {
		if jsonOutput {
			utils.OutputJSON("error", nil, err)
			return nil
		}
		fmt.Printf("Error: %v\n", err)
		fmt.Println("Run 'folium list' to see the tracked works.")
		return nil
	}
	return work
}

// printSourceList is the hint shown when a source argument doesn't match
// any registered adapter.
func printSourceList() {
	fmt.Println("Available sources:")
	for _, a := range appEngine.AllAdapters() {
		fmt.Printf("  - %s (%s)\n", a.ID(), a.Name())
	}
}

// workDescriptors converts catalog chapters into the descriptors the
// engine operates on.
func workDescriptors(work *library.Work) []engine.ChapterDescriptor {
	descs := make([]engine.ChapterDescriptor, 0, len(work.Chapters))
	for _, ch := range work.Chapters {
		descs = append(descs, engine.ChapterDescriptor{
			WorkID: work.ID,
			Number: ch.Number,
			Title:  ch.Title,
			URL:    ch.URL,
			Kind:   work.Kind,
		})
	}
	return descs
}

// parseChapterNumber parses a chapter-number argument.
func parseChapterNumber(arg string) (float64, error) {
	n, err := strconv.ParseFloat(arg, 64)
	if err != nil {
		return 0, fmt.Errorf("'%s' is not a chapter number", arg)
	}
	return n, nil
}

// shortID abbreviates a catalog ID for table display.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// boolMark renders a flag column.
func boolMark(v bool) string {
	if v {
		return "yes"
	}
	return "-"
}
