package engine

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"

	"github.com/go-shiori/go-epub"

	"Folium/errors"
	"Folium/utils"
)

// bundleCSS is the stylesheet embedded in every bundle: a restrained
// serif layout tuned for long-form reading.
const bundleCSS = `@namespace epub "http://www.idpf.org/2007/ops";
body {
    font-family: Cambria, Liberation Serif, Bitstream Vera Serif, Georgia, Times, Times New Roman, serif;
    line-height: 1.6;
    margin: 2em;
    text-align: justify;
    color: #333;
}
.chapter-header {
    text-align: center;
    margin-bottom: 3em;
}
h1 {
    text-transform: uppercase;
    font-weight: 200;
    margin-bottom: 0.5em;
    font-size: 1.8em;
}
.chapter-number {
    font-style: italic;
    color: #666;
    margin-bottom: 2em;
}
.chapter-content {
    text-indent: 2em;
}
.chapter-content p {
    margin-bottom: 1em;
    text-align: justify;
}
.title-page {
    text-align: center;
    margin-top: 30%;
}
`

// Selection picks which chapters go into a bundle: one chapter, an
// inclusive range, or everything when nothing is set.
type Selection struct {
	Single *float64
	Start  *float64
	End    *float64
}

// Validate rejects selections that cannot describe any chapter set.
func (s Selection) Validate() error {
	if s.Single != nil {
		if *s.Single < 0 {
			return errors.New(errors.KindBundleSelection, "chapter number must not be negative, got %s", utils.FormatChapterNumber(*s.Single))
		}
		return nil
	}
	if s.Start != nil && s.End != nil && *s.Start > *s.End {
		return errors.New(errors.KindBundleSelection, "range start %s is after end %s",
			utils.FormatChapterNumber(*s.Start), utils.FormatChapterNumber(*s.End))
	}
	return nil
}

// matches reports whether a chapter number falls inside the selection.
func (s Selection) matches(n float64) bool {
	if s.Single != nil {
		return n == *s.Single
	}
	if s.Start != nil && n < *s.Start {
		return false
	}
	if s.End != nil && n > *s.End {
		return false
	}
	return true
}

// BundleResult is a finished e-book and the filename it should be saved
// under.
type BundleResult struct {
	Bytes    []byte
	Filename string
}

// BundlerService assembles chapters into EPUB bundles. Chapter content
// comes store-first through the adapter; translation output is cached so
// rebundling never re-translates.
type BundlerService struct {
	Logger     *LoggerService
	Store      *StoreService
	Translator *TranslatorService
	HTTP       *HTTPService
}

// Build materializes the selected chapters of a text work and packages
// them as an EPUB. Chapters that cannot be materialized are skipped; a
// bundle that would end up with zero chapters fails with ErrBundleEmpty.
func (b *BundlerService) Build(ctx context.Context, adapter Adapter, work WorkRef, descriptors []ChapterDescriptor, sel Selection, translate bool, targetLang string) (*BundleResult, error) {
	if adapter.Kind() != KindText {
		return nil, errors.New(errors.KindBundleSelection, "source %s serves comics, which cannot be bundled as text", adapter.ID())
	}
	if err := sel.Validate(); err != nil {
		return nil, err
	}

	selected := make([]ChapterDescriptor, 0, len(descriptors))
	for _, d := range descriptors {
		if sel.matches(d.Number) {
			selected = append(selected, d)
		}
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].Number < selected[j].Number })
	if len(selected) == 0 {
		return nil, errors.ErrBundleEmpty
	}

	sourceLang := storeLang(work.Language)
	translated := translate && !utils.SameLanguage(sourceLang, targetLang)
	outLang := sourceLang
	if translated {
		normalized, err := utils.NormalizeLanguage(targetLang)
		if err != nil {
			return nil, errors.Wrap(errors.KindBundleSelection, err, "bad target language")
		}
		outLang = normalized
	}

	if sel.Single != nil {
		if cached, err := b.Store.Get(work, *sel.Single, FormatBundle, outLang); err == nil {
			if b.Logger != nil {
				b.Logger.Debug("Reusing stored bundle for chapter %s", utils.FormatChapterNumber(*sel.Single))
			}
			return &BundleResult{
				Bytes:    cached,
				Filename: bundleFilename(work.Title, selected, sel, translated, outLang),
			}, nil
		}
	}

	book, err := epub.NewEpub(work.Title)
	if err != nil {
		return nil, errors.Wrap(errors.KindBundleEmpty, err, "failed to start bundle")
	}
	author := authorOrUnknown(work.Author)
	book.SetAuthor(author)
	book.SetLang(outLang)
	if sel.Single != nil {
		book.SetIdentifier(fmt.Sprintf("%s_%s", work.ID, utils.FormatChapterNumber(*sel.Single)))
	} else {
		book.SetIdentifier(work.ID)
	}

	cssPath, err := book.AddCSS(cssDataURL(), "style.css")
	if err != nil {
		return nil, errors.Wrap(errors.KindBundleEmpty, err, "failed to embed stylesheet")
	}

	b.addCover(ctx, book, work)

	titleBody := fmt.Sprintf(`<div class="title-page"><h1>%s</h1><h2>by %s</h2></div>`,
		html.EscapeString(work.Title), html.EscapeString(author))
	if _, err := book.AddSection(titleBody, "Title Page", "title_page.xhtml", cssPath); err != nil {
		return nil, errors.Wrap(errors.KindBundleEmpty, err, "failed to add title page")
	}

	included := 0
	for _, desc := range selected {
		body, err := b.chapterText(ctx, adapter, work, desc, translated, targetLang)
		if err != nil {
			if b.Logger != nil {
				b.Logger.Warn("Skipping chapter %s: %v", utils.FormatChapterNumber(desc.Number), err)
			}
			continue
		}

		label := "Capítulo " + utils.FormatChapterNumber(desc.Number)
		sectionTitle := desc.Title
		if sectionTitle == "" {
			sectionTitle = label
		}

		var doc strings.Builder
		doc.WriteString(`<div class="chapter-header"><h1>` + html.EscapeString(label) + `</h1>`)
		if desc.Title != "" {
			doc.WriteString(`<h2>` + html.EscapeString(desc.Title) + `</h2>`)
		}
		doc.WriteString(`</div>`)
		doc.WriteString(`<div class="chapter-content">` + chapterBody(body) + `</div>`)

		filename := fmt.Sprintf("chapter_%s.xhtml", utils.FormatChapterNumber(desc.Number))
		if _, err := book.AddSection(doc.String(), sectionTitle, filename, cssPath); err != nil {
			if b.Logger != nil {
				b.Logger.Warn("Skipping chapter %s: %v", utils.FormatChapterNumber(desc.Number), err)
			}
			continue
		}
		included++
	}

	if included == 0 {
		return nil, errors.ErrBundleEmpty
	}

	var buf bytes.Buffer
	if _, err := book.WriteTo(&buf); err != nil {
		return nil, errors.Wrap(errors.KindBundleEmpty, err, "failed to write bundle")
	}

	result := &BundleResult{
		Bytes:    buf.Bytes(),
		Filename: bundleFilename(work.Title, selected, sel, translated, outLang),
	}

	// A single-chapter bundle is worth keeping around for re-export.
	if sel.Single != nil {
		if _, err := b.Store.Put(work, *sel.Single, FormatBundle, outLang, result.Bytes); err != nil && b.Logger != nil {
			b.Logger.Warn("Could not cache bundle: %v", err)
		}
	}

	if b.Logger != nil {
		b.Logger.Info("Bundled %d of %d selected chapters into %s", included, len(selected), result.Filename)
	}
	return result, nil
}

// chapterText returns a chapter's text in the requested language,
// store-first on both the source and the translated artifact.
func (b *BundlerService) chapterText(ctx context.Context, adapter Adapter, work WorkRef, desc ChapterDescriptor, translated bool, targetLang string) (string, error) {
	envelope, err := adapter.Materialize(ctx, work, ChapterRef{URL: desc.URL, Number: desc.Number, Title: desc.Title})
	if err != nil {
		return "", err
	}
	if envelope.Kind != KindText {
		return "", errors.New(errors.KindBundleSelection, "chapter %s is not text", utils.FormatChapterNumber(desc.Number))
	}
	body := envelope.Body

	if !translated {
		return body, nil
	}

	if cached, err := b.Store.Get(work, desc.Number, FormatRaw, targetLang); err == nil {
		return string(cached), nil
	} else if !errors.Is(err, errors.ErrStoreMissing) {
		return "", err
	}

	out, err := b.Translator.TranslateHTML(ctx, body, work.Language, targetLang)
	if err != nil {
		return "", err
	}
	if _, err := b.Store.Put(work, desc.Number, FormatRaw, targetLang, []byte(out)); err != nil && b.Logger != nil {
		b.Logger.Warn("Could not cache translation of chapter %s: %v", utils.FormatChapterNumber(desc.Number), err)
	}
	return out, nil
}

// addCover fetches the work's cover and sets it, skipping on any failure;
// a bundle without a cover is still a bundle.
func (b *BundlerService) addCover(ctx context.Context, book *epub.Epub, work WorkRef) {
	if work.CoverURL == "" {
		return
	}
	data, err := b.HTTP.FetchBytes(ctx, work.CoverURL, RequestOptions{})
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("Skipping cover: %v", err)
		}
		return
	}

	source := fmt.Sprintf("data:%s;base64,%s", http.DetectContentType(data), base64.StdEncoding.EncodeToString(data))
	internal, err := book.AddImage(source, "cover."+utils.ImageExtension(work.CoverURL))
	if err != nil {
		if b.Logger != nil {
			b.Logger.Warn("Skipping cover: %v", err)
		}
		return
	}
	book.SetCover(internal, "")
}

// chapterBody renders chapter content as XHTML: markup passes through,
// plain text becomes one paragraph per blank-line block.
func chapterBody(content string) string {
	if strings.Contains(content, "</") {
		return content
	}
	var sb strings.Builder
	for _, block := range strings.Split(content, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		sb.WriteString("<p>")
		sb.WriteString(strings.ReplaceAll(html.EscapeString(block), "\n", "<br/>"))
		sb.WriteString("</p>")
	}
	return sb.String()
}

func bundleFilename(title string, selected []ChapterDescriptor, sel Selection, translated bool, outLang string) string {
	name := utils.SanitizeFilename(title)
	switch {
	case sel.Single != nil:
		name += "_chapter_" + utils.FormatChapterNumber(*sel.Single)
	case sel.Start != nil || sel.End != nil:
		first := selected[0].Number
		last := selected[len(selected)-1].Number
		name += fmt.Sprintf("_chapters_%s_%s", utils.FormatChapterNumber(first), utils.FormatChapterNumber(last))
	}
	if translated {
		name += "_" + outLang
	}
	return name + ".epub"
}

func cssDataURL() string {
	return "data:text/css;base64," + base64.StdEncoding.EncodeToString([]byte(bundleCSS))
}

func authorOrUnknown(author string) string {
	if author == "" {
		return "Unknown"
	}
	return author
}
