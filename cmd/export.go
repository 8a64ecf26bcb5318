package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/spf13/cobra"

	"Folium/engine"
	"Folium/utils"
)

var (
	exportTranslate bool
	exportLang      string
	exportOutput    string
	exportStdout    bool
)

var exportCmd = &cobra.Command{
	Use:   "export [work-id] [chapter-number]",
	Short: "Export a chapter as Markdown",
	Long: `Materialize a text chapter (store-first) and convert it to Markdown, either into a file or
to stdout with --stdout.`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}
		number, err := parseChapterNumber(args[1])
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}
		ch := work.Chapter(number)
		if ch == nil {
			err := fmt.Errorf("chapter %s is not in the catalog; run 'folium chapters %s --sync' first",
				utils.FormatChapterNumber(number), shortID(work.ID))
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
		defer cancel()

		envelope, err := appEngine.GetChapter(ctx, work.SourceName, work.Ref(), engine.ChapterRef{
			URL:    ch.URL,
			Number: ch.Number,
			Title:  ch.Title,
		}, engine.ChapterOptions{
			Translate:  exportTranslate,
			TargetLang: exportLang,
		})
		if err != nil {
			handleFetchError(err, work, number)
			return
		}
		if envelope.Kind != engine.KindText {
			err := fmt.Errorf("'%s' is a comic; only text chapters export to Markdown", work.Title)
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}

		markdown, err := chapterMarkdown(work.Title, ch.Title, number, envelope.Body, ch.URL)
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error converting chapter: %v\n", err)
			return
		}

		if exportStdout {
			fmt.Println(markdown)
			return
		}

		if err := os.MkdirAll(exportOutput, 0755); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: Cannot create output directory '%s': %v\n", exportOutput, err)
			return
		}
		filename := fmt.Sprintf("%s_chapter_%s.md",
			utils.SanitizeFilename(work.Title), utils.FormatChapterNumber(number))
		path := filepath.Join(exportOutput, filename)
		if err := os.WriteFile(path, []byte(markdown), 0644); err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: Cannot write %s: %v\n", path, err)
			return
		}

		if jsonOutput {
			utils.OutputJSON("success", map[string]interface{}{
				"work_id": work.ID,
				"number":  number,
				"path":    path,
			}, nil)
			return
		}
		fmt.Printf("Exported chapter %s to %s\n", utils.FormatChapterNumber(number), path)
	},
}

// chapterMarkdown converts a chapter's HTML body to Markdown with a
// title header.
func chapterMarkdown(workTitle, chapterTitle string, number float64, body, sourceURL string) (string, error) {
	conv := converter.NewConverter(
		converter.WithPlugins(
			base.NewBasePlugin(),
			commonmark.NewCommonmarkPlugin(),
		),
	)

	markdown, err := conv.ConvertString(body, converter.WithDomain(sourceURL))
	if err != nil {
		return "", err
	}

	var out strings.Builder
	out.WriteString("# " + workTitle + "\n\n")
	header := "Capítulo " + utils.FormatChapterNumber(number)
	if chapterTitle != "" && chapterTitle != header {
		header += ": " + chapterTitle
	}
	out.WriteString("## " + header + "\n\n")
	out.WriteString(strings.TrimSpace(markdown))
	out.WriteString("\n")
	return out.String(), nil
}

func init() {
	rootCmd.AddCommand(exportCmd)

	// Flags
	exportCmd.Flags().BoolVar(&exportTranslate, "translate", false, "Translate the chapter into the target language first")
	exportCmd.Flags().StringVar(&exportLang, "lang", "", "Translation target language (default: configured target)")
	exportCmd.Flags().StringVar(&exportOutput, "output", "./exports", "Output directory")
	exportCmd.Flags().BoolVar(&exportStdout, "stdout", false, "Print the Markdown to stdout instead of a file")
}
