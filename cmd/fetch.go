package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"Folium/engine"
	"Folium/errors"
	"Folium/library"
	"Folium/utils"
)

var (
	fetchTranslate bool
	fetchLang      string
	fetchMissing   bool
)

// FetchResult represents one fetched chapter for API responses
type FetchResult struct {
	WorkID    string  `json:"work_id"`
	Number    float64 `json:"number"`
	Kind      string  `json:"kind"`
	Path      string  `json:"path"`
	Images    int     `json:"images,omitempty"`
	FromCache bool    `json:"from_cache"`
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [work-id] [chapter-numbers...]",
	Short: "Fetch chapter content into the local store",
	Long: `Materialize chapters of a tracked work: text chapters are scraped, cleaned and stored as
text; comic chapters are stored as image sets. Stored chapters are never re-fetched. With
--translate, text chapters are also translated into the target language (cached too).`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		work := requireWork(args[0])
		if work == nil {
			return
		}

		targets, err := fetchTargets(work, args[1:])
		if err != nil {
			if jsonOutput {
				utils.OutputJSON("error", nil, err)
				return
			}
			fmt.Printf("Error: %v\n", err)
			return
		}
		if len(targets) == 0 {
			if jsonOutput {
				utils.OutputJSON("success", map[string]interface{}{
					"message": "nothing to fetch",
					"fetched": 0,
				}, nil)
				return
			}
			fmt.Println("Nothing to fetch.")
			return
		}

		var results []FetchResult
		for _, ch := range targets {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			envelope, err := appEngine.GetChapter(ctx, work.SourceName, work.Ref(), engine.ChapterRef{
				URL:    ch.URL,
				Number: ch.Number,
				Title:  ch.Title,
			}, engine.ChapterOptions{
				Translate:  fetchTranslate,
				TargetLang: fetchLang,
			})
			cancel()

			if err != nil {
				handleFetchError(err, work, ch.Number)
				return
			}

			path := storedPath(work, ch.Number, envelope)
			if _, merr := catalog.MarkDownloaded(work.ID, ch.Number, path); merr != nil {
				appEngine.Logger.Warn("Could not record download of chapter %s: %v",
					utils.FormatChapterNumber(ch.Number), merr)
			}

			result := FetchResult{
				WorkID:    work.ID,
				Number:    ch.Number,
				Kind:      string(envelope.Kind),
				Path:      path,
				Images:    envelope.Total,
				FromCache: envelope.FromCache,
			}
			results = append(results, result)

			if !jsonOutput {
				state := "fetched"
				if envelope.FromCache {
					state = "already stored"
				}
				if envelope.Kind == engine.KindComic {
					fmt.Printf("Chapter %s: %s (%d images) -> %s\n",
						utils.FormatChapterNumber(ch.Number), state, envelope.Total, path)
				} else {
					fmt.Printf("Chapter %s: %s -> %s\n",
						utils.FormatChapterNumber(ch.Number), state, path)
				}
			}
		}

		if jsonOutput {
			utils.OutputJSON("success", map[string]interface{}{
				"fetched": len(results),
				"results": results,
			}, nil)
		} else {
			fmt.Printf("Done. %d chapters in the store.\n", len(results))
		}
	},
}

// fetchTargets resolves the requested chapter numbers (or every
// not-yet-downloaded chapter with --missing) against the catalog.
func fetchTargets(work *library.Work, args []string) ([]library.Chapter, error) {
	if fetchMissing {
		var targets []library.Chapter
		for _, ch := range work.Chapters {
			if !ch.Downloaded {
				targets = append(targets, ch)
			}
		}
		return targets, nil
	}

	if len(args) == 0 {
		return nil, fmt.Errorf("give chapter numbers to fetch, or use --missing")
	}

	targets := make([]library.Chapter, 0, len(args))
	for _, arg := range args {
		number, err := parseChapterNumber(arg)
		if err != nil {
			return nil, err
		}
		ch := work.Chapter(number)
		if ch == nil {
			return nil, fmt.Errorf("chapter %s is not in the catalog; run 'folium chapters %s --sync' first",
				utils.FormatChapterNumber(number), shortID(work.ID))
		}
		targets = append(targets, *ch)
	}
	return targets, nil
}

// storedPath reports where a fetched chapter's primary artifact lives:
// the source-language artifact normally, the translated one when
// translation was requested and actually happened.
func storedPath(work *library.Work, number float64, envelope *engine.ContentEnvelope) string {
	lang := work.Language
	if fetchTranslate && envelope.Kind == engine.KindText {
		target := fetchLang
		if target == "" {
			target = appEngine.Config.TargetLanguage
		}
		if normalized, err := utils.NormalizeLanguage(target); err == nil && !utils.SameLanguage(work.Language, normalized) {
			lang = normalized
		}
	}
	return appEngine.Store.Path(work.Ref(), number, engine.FormatFor(envelope.Kind), lang)
}

// handleFetchError maps the error taxonomy onto actionable messages.
func handleFetchError(err error, work *library.Work, number float64) {
	if jsonOutput {
		utils.OutputJSON("error", nil, err)
		return
	}

	label := utils.FormatChapterNumber(number)
	switch errors.KindOf(err) {
	case errors.KindFetchTimeout:
		fmt.Printf("Error: Chapter %s timed out on %s. Try again or raise --fetch-timeout.\n", label, work.SourceName)
	case errors.KindFetchHTTP, errors.KindFetchNetwork:
		fmt.Printf("Error: %s is unreachable right now: %v\n", work.SourceName, err)
	case errors.KindFetchRender:
		fmt.Printf("Error: The browser could not render chapter %s: %v\n", label, err)
	case errors.KindSelectorMissing:
		fmt.Printf("Error: Chapter %s has no readable content on %s. The site may have changed its layout.\n", label, work.SourceName)
	case errors.KindQuotaExceeded:
		fmt.Printf("Error: Translation quota exhausted. Check 'folium usage' or switch --translator-backend.\n")
	case errors.KindUnknownSource:
		fmt.Printf("Error: Source '%s' is not registered\n", work.SourceName)
		printSourceList()
	default:
		fmt.Printf("Error fetching chapter %s: %v\n", label, err)
		if debugMode {
			fmt.Printf("  Error type: %T\n", err)
			fmt.Printf("  Full error: %+v\n", err)
		}
	}
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	// Flags
	fetchCmd.Flags().BoolVar(&fetchTranslate, "translate", false, "Also translate text chapters into the target language")
	fetchCmd.Flags().StringVar(&fetchLang, "lang", "", "Translation target language (default: configured target)")
	fetchCmd.Flags().BoolVar(&fetchMissing, "missing", false, "Fetch every chapter not yet in the store")
}
