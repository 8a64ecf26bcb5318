package adapters

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Folium/engine"
)

const pasteChapter42 = `42
El Umbral

Sunny cruzó el umbral sin mirar atrás.

La oscuridad lo recibió como a un viejo amigo.

Capítulo 43: https://pastebin.com/chain43
`

const pasteChapter43 = `43
La Puerta

Al otro lado no había nada, y eso ya era algo.

Capítulo 44: https://pastebin.com/chain44
`

// The last paste of a published chain ends with a date instead of a link.
const pasteChapter44 = `44
El Regreso

Volvió al punto de partida con las manos vacías.

Capítulo 45: 12/05/2025
`

// pasteChainServer serves the three-chapter chain under raw paths and
// counts how often each paste is fetched.
func pasteChainServer(t *testing.T, hits *atomic.Int32) *engine.Engine {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/raw/chain42":
			_, _ = w.Write([]byte(pasteChapter42))
		case "/raw/chain43":
			_, _ = w.Write([]byte(pasteChapter43))
		case "/raw/chain44":
			_, _ = w.Write([]byte(pasteChapter44))
		default:
			// A share-view path reaching the server means the raw
			// rewrite did not happen.
			t.Errorf("unexpected path %s", r.URL.Path)
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	e := newTestEngine(t)
	require.NoError(t, routeToServer(e, srv.URL))
	return e
}

func TestPastebinDiscoverFollowsChain(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	e := pasteChainServer(t, &hits)
	p := NewPastebin(e)

	chapters, err := p.Discover(context.Background(), "https://pastebin.com/chain42", engine.DiscoverOptions{Max: 3})
	require.NoError(t, err)
	require.Len(t, chapters, 3)

	assert.Equal(t, float64(42), chapters[0].Number)
	assert.Equal(t, "El Umbral", chapters[0].Title)
	assert.Equal(t, float64(43), chapters[1].Number)
	assert.Equal(t, "La Puerta", chapters[1].Title)
	assert.Equal(t, float64(44), chapters[2].Number)
	assert.Equal(t, "El Regreso", chapters[2].Title)

	// The chain ended on the date marker, not on the budget.
	assert.Equal(t, int32(3), hits.Load())
}

func TestPastebinDiscoverHonorsBudget(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	e := pasteChainServer(t, &hits)
	p := NewPastebin(e)

	chapters, err := p.Discover(context.Background(), "https://pastebin.com/chain42", engine.DiscoverOptions{Max: 2})
	require.NoError(t, err)
	require.Len(t, chapters, 2)
	assert.Equal(t, float64(43), chapters[1].Number)
	assert.Equal(t, int32(2), hits.Load())
}

func TestPastebinInfo(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	e := pasteChainServer(t, &hits)
	p := NewPastebin(e)

	// A mid-chain paste: the chain continues, status unknown.
	meta, err := p.Info(context.Background(), "https://pastebin.com/chain42")
	require.NoError(t, err)
	assert.Equal(t, "El Umbral", meta.Title)
	assert.Equal(t, engine.KindText, meta.Kind)
	assert.Equal(t, "es", meta.Language)
	assert.Equal(t, engine.StatusUnknown, meta.Status)

	// The final paste carries the date marker: the work is complete.
	meta, err = p.Info(context.Background(), "https://pastebin.com/chain44")
	require.NoError(t, err)
	assert.Equal(t, engine.StatusCompleted, meta.Status)
}

func TestPastebinMaterializeIsStoreFirst(t *testing.T) {
	t.Parallel()

	var hits atomic.Int32
	e := pasteChainServer(t, &hits)
	p := NewPastebin(e)

	work := engine.WorkRef{ID: "w9", Title: "Shadow Slave", Language: "es"}
	ch := engine.ChapterRef{URL: "https://pastebin.com/chain43", Number: 43}

	first, err := p.Materialize(context.Background(), work, ch)
	require.NoError(t, err)
	assert.False(t, first.FromCache)
	assert.Contains(t, first.Body, "Al otro lado no había nada")
	assert.Equal(t, int32(1), hits.Load())

	// The second read never leaves the store.
	second, err := p.Materialize(context.Background(), work, ch)
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, int32(1), hits.Load())
}

func TestParseRawPageHeaderWinsOverURL(t *testing.T) {
	t.Parallel()

	parser := engine.NewParserService()
	content := "105\nEl Santuario\n\nTexto del capítulo.\n"

	// The numeric header line beats whatever the URL tail says.
	d, next := parseRawPage(parser, content, "https://pastebin.com/raw/ch99", 0)
	assert.Equal(t, float64(105), d.Number)
	assert.Equal(t, "El Santuario", d.Title)
	assert.Empty(t, next)
}

func TestParseRawPageFallbacks(t *testing.T) {
	t.Parallel()

	parser := engine.NewParserService()

	// No header line: the URL's trailing digits stand in.
	d, _ := parseRawPage(parser, "Texto sin encabezado.\n", "https://pastebin.com/raw/ch77", 4)
	assert.Equal(t, float64(77), d.Number)
	assert.Equal(t, "Capítulo 77", d.Title)

	// No digits anywhere: the crawl position does.
	d, _ = parseRawPage(parser, "Texto sin encabezado.\n", "https://pastebin.com/raw/abcdef", 4)
	assert.Equal(t, float64(5), d.Number)
	assert.Equal(t, "Capítulo 5", d.Title)
}

func TestParseRawPageNextLink(t *testing.T) {
	t.Parallel()

	parser := engine.NewParserService()

	d, next := parseRawPage(parser, pasteChapter42, "https://pastebin.com/raw/chain42", 0)
	assert.Equal(t, float64(42), d.Number)
	assert.Equal(t, "https://pastebin.com/chain43", next)

	// The closing date line is not a link.
	_, next = parseRawPage(parser, pasteChapter44, "https://pastebin.com/raw/chain44", 2)
	assert.Empty(t, next)
}

func TestTruncateRawKeepsRunesWhole(t *testing.T) {
	t.Parallel()

	content := strings.Repeat("a", maxRawSize-1) + "é" + strings.Repeat("b", 64)
	got := truncateRaw(content)

	assert.LessOrEqual(t, len(got), maxRawSize)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, maxRawSize-1, len(got), "the split multibyte rune is dropped whole")
}
