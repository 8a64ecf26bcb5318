package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"Folium/engine"
	"Folium/errors"
	"Folium/utils"
)

var (
	bundleChapter   float64
	bundleFrom      float64
	bundleTo        float64
	bundleTranslate bool
	bundleLang      string
	bundleOutput    string
)

// BundleInfo represents a produced bundle for API responses
type BundleInfo struct {
	WorkID   string `json:"work_id"`
	Filename string `json:"filename"`
	Path     string `json:"path"`
	Bytes    int    `json:"bytes"`
}

var bundleCmd = &cobra.Command{
	Use:   "bundle [work-id]",
	Short: "Bundle chapters into an EPUB",
	Long: `Package chapters of a text work into an EPUB file. Select one chapter with --chapter, a
range with --from/--to, or nothing for every synced chapter. Missing chapters are fetched
(and with --translate, translated) on the way; chapters that cannot be materialized are
skipped.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}

		if len(work.Chapters) == 0 {
			err := fmt.Errorf("'%s' has no synced chapters; run 'folium chapters %s --sync' first",
				work.Title, shortID(work.ID))
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		sel := engine.Selection{}
		if cmd.Flags().Changed("chapter") {
			n := bundleChapter
			sel.Single = &n
		}
		if cmd.Flags().Changed("from") {
			n := bundleFrom
			sel.Start = &n
		}
		if cmd.Flags().Changed("to") {
			n := bundleTo
			sel.End = &n
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
		defer cancel()

		result, err := appEngine.BuildBundle(ctx, work.SourceName, work.Ref(), workDescriptors(work), sel, bundleTranslate, bundleLang)
		if err != nil {
			handleBundleError(err, work.SourceName)
			return
		}

		if err := os.MkdirAll(bundleOutput, 0755); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: Cannot create output directory '%s': %v\n", bundleOutput, err)
			return
		}
		path := filepath.Join(bundleOutput, result.Filename)
		if err := os.WriteFile(path, result.Bytes, 0644); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: Cannot write %s: %v\n", path, err)
			return
		}

		if jsonOutput {
			utils.OutputJSON("success", BundleInfo{
				WorkID:   work.ID,
				Filename: result.Filename,
				Path:     path,
				Bytes:    len(result.Bytes),
			}, nil)
			return
		}
		fmt.Printf("Bundle written to %s (%.1f KB)\n", path, float64(len(result.Bytes))/1024)
	},
}

// handleBundleError maps bundling failures onto actionable messages.
func handleBundleError(err error, sourceName string) {
	if jsonOutput {
		utils.OutputJSON("error", nil, err)
		return
	}

	switch errors.KindOf(err) {
	case errors.KindBundleSelection:
		fmt.Printf("Error: %v\n", err)
	case errors.KindBundleEmpty:
		fmt.Println("Error: No chapter in the selection could be materialized. Check the numbers with 'folium chapters'.")
	case errors.KindQuotaExceeded:
		fmt.Println("Error: Translation quota exhausted. Check 'folium usage' or switch --translator-backend.")
	case errors.KindUnknownSource:
		fmt.Printf("Error: Source '%s' is not registered\n", sourceName)
		printSourceList()
	default:
		fmt.Printf("Error building bundle: %v\n", err)
	}
}

func init() {
	rootCmd.AddCommand(bundleCmd)

	// Flags
	bundleCmd.Flags().Float64Var(&bundleChapter, "chapter", 0, "Bundle a single chapter")
	bundleCmd.Flags().Float64Var(&bundleFrom, "from", 0, "First chapter of the range")
	bundleCmd.Flags().Float64Var(&bundleTo, "to", 0, "Last chapter of the range")
	bundleCmd.Flags().BoolVar(&bundleTranslate, "translate", false, "Translate chapters into the target language")
	bundleCmd.Flags().StringVar(&bundleLang, "lang", "", "Translation target language (default: configured target)")
	bundleCmd.Flags().StringVar(&bundleOutput, "output", "./bundles", "Output directory")
}
