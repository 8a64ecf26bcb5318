package adapters

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Folium/engine"
	"Folium/errors"
)

const towerLandingPage = `<html><body>
<h1>Tower of Dawn</h1>
<div class="author">G. Ramos</div>
<div class="description">Una torre, cien pisos, ninguna salida.</div>
<div class="cover"><img src="/covers/tower.jpg"></div>
<div class="status">En Curso</div>
<div class="tags"><a href="/t/accion">Acción</a><a href="/t/fantasia">Fantasía</a></div>
<div class="chapter-list">
  <a href="/novel/tower/ch-2">Chapter 2: The Second Floor</a>
  <a href="/novel/tower/ch-1">Chapter 1: The First Floor</a>
  <a href="/novel/tower/ch-2">Chapter 2: The Second Floor</a>
</div>
</body></html>`

const towerChapterPage = `<html><body>
<div class="chapter-content">
  <div class="ads">Compra oro aquí</div>
  <p>La primera puerta no tenía cerradura.</p>
  <p>La segunda tampoco, pero mentía.</p>
  <p>Translator: Warlock</p>
</div>
</body></html>`

// genericFixture serves a small selector-driven site and returns an
// adapter configured for it.
func genericFixture(t *testing.T) (*Generic, *atomic.Int32) {
	t.Helper()

	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		switch r.URL.Path {
		case "/novel/tower":
			_, _ = w.Write([]byte(towerLandingPage))
		case "/novel/tower/ch-1", "/novel/tower/ch-2":
			_, _ = w.Write([]byte(towerChapterPage))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)

	cfg := &engine.SourceConfig{
		Name:             "TowerSite",
		BaseURL:          srv.URL,
		Kind:             engine.KindText,
		Language:         "es",
		UnwantedElements: []string{".ads"},
		Patterns: engine.SourcePatterns{
			ChapterNumber: `Chapter\s+(\d+(?:\.\d+)?)`,
		},
	}
	return NewGeneric(newTestEngine(t), cfg), &hits
}

func TestGenericInfo(t *testing.T) {
	t.Parallel()

	g, _ := genericFixture(t)
	meta, err := g.Info(context.Background(), g.SiteURL()+"/novel/tower")
	require.NoError(t, err)

	assert.Equal(t, "Tower of Dawn", meta.Title)
	assert.Equal(t, "G. Ramos", meta.Author)
	assert.Equal(t, "Una torre, cien pisos, ninguna salida.", meta.Description)
	assert.Equal(t, g.SiteURL()+"/covers/tower.jpg", meta.CoverURL)
	assert.Equal(t, engine.StatusOngoing, meta.Status)
	assert.Equal(t, []string{"Acción", "Fantasía"}, meta.Tags)
	assert.Equal(t, "es", meta.Language)
	assert.Equal(t, "towersite", meta.SourceName)
}

func TestGenericInfoRequiresTitle(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><div class="status">ongoing</div></body></html>`))
	}))
	t.Cleanup(srv.Close)

	g := NewGeneric(newTestEngine(t), &engine.SourceConfig{Name: "Empty", BaseURL: srv.URL})
	_, err := g.Info(context.Background(), srv.URL+"/missing")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSelectorMissing))
}

func TestGenericDiscoverFlatList(t *testing.T) {
	t.Parallel()

	g, _ := genericFixture(t)
	chapters, err := g.Discover(context.Background(), g.SiteURL()+"/novel/tower", engine.DiscoverOptions{})
	require.NoError(t, err)

	// The duplicate "latest chapter" row collapses and the list comes back
	// ascending even though the site lists newest first.
	require.Len(t, chapters, 2)
	assert.Equal(t, float64(1), chapters[0].Number)
	assert.Equal(t, "Chapter 1: The First Floor", chapters[0].Title)
	assert.Equal(t, g.SiteURL()+"/novel/tower/ch-1", chapters[0].URL)
	assert.Equal(t, float64(2), chapters[1].Number)
}

func TestGenericDiscoverRecursive(t *testing.T) {
	t.Parallel()

	var baseURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/list/1", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `<html><body>
<div class="chapter-list">
  <a href="/ch/1">Chapter 1</a>
  <a href="/ch/2">Chapter 2</a>
</div>
<a class="next" href="%s/list/2">Siguiente</a>
</body></html>`, baseURL)
	})
	mux.HandleFunc("/list/2", func(w http.ResponseWriter, r *http.Request) {
		// This page carries both a next link and the end marker; the
		// marker wins and the chain stops here.
		fmt.Fprintf(w, `<html><body>
<div class="chapter-list">
  <a href="/ch/3">Chapter 3</a>
  <a href="/ch/4">Chapter 4</a>
</div>
<p>FIN DE LA OBRA</p>
<a class="next" href="%s/list/3">Siguiente</a>
</body></html>`, baseURL)
	})
	mux.HandleFunc("/list/3", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "should never be crawled", http.StatusInternalServerError)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	baseURL = srv.URL

	cfg := &engine.SourceConfig{
		Name:    "Paged",
		BaseURL: srv.URL,
		Kind:    engine.KindText,
		Patterns: engine.SourcePatterns{
			ChapterNumber: `Chapter\s+(\d+)`,
			NextLink:      `<a class="next" href="([^"]+)">`,
			Sentinel:      `FIN DE LA OBRA`,
		},
	}
	g := NewGeneric(newTestEngine(t), cfg)

	chapters, err := g.Discover(context.Background(), srv.URL+"/list/1", engine.DiscoverOptions{Recursive: true})
	require.NoError(t, err)
	require.Len(t, chapters, 4)
	for i, ch := range chapters {
		assert.Equal(t, float64(i+1), ch.Number)
	}
}

func TestGenericMaterializeCleans(t *testing.T) {
	t.Parallel()

	g, hits := genericFixture(t)
	work := engine.WorkRef{ID: "t1", Title: "Tower of Dawn", Language: "es"}
	ch := engine.ChapterRef{URL: g.SiteURL() + "/novel/tower/ch-1", Number: 1}

	env, err := g.Materialize(context.Background(), work, ch)
	require.NoError(t, err)
	assert.Equal(t, engine.KindText, env.Kind)
	assert.False(t, env.FromCache)

	// Ad blocks and the tail credits are gone, prose blocks remain.
	assert.Contains(t, env.Body, "La primera puerta no tenía cerradura.")
	assert.Contains(t, env.Body, "La segunda tampoco, pero mentía.")
	assert.NotContains(t, env.Body, "Compra oro")
	assert.NotContains(t, env.Body, "Translator")

	fetched := hits.Load()
	cached, err := g.Materialize(context.Background(), work, ch)
	require.NoError(t, err)
	assert.True(t, cached.FromCache)
	assert.Equal(t, env.Body, cached.Body)
	assert.Equal(t, fetched, hits.Load())
}

func TestGenericMaterializeMissingContent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`<html><body><p>wrapper missing</p></body></html>`))
	}))
	t.Cleanup(srv.Close)

	g := NewGeneric(newTestEngine(t), &engine.SourceConfig{Name: "Bare", BaseURL: srv.URL})
	_, err := g.Materialize(context.Background(),
		engine.WorkRef{ID: "b1", Title: "Bare"}, engine.ChapterRef{URL: srv.URL + "/ch/1", Number: 1})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSelectorMissing))
}

func TestGenericStatusMapping(t *testing.T) {
	t.Parallel()

	g := NewGeneric(newTestEngine(t), &engine.SourceConfig{
		Name:      "S",
		StatusMap: map[string]string{"publicándose": engine.StatusOngoing},
	})

	// Per-source table first, shared synonyms second, unknown last.
	assert.Equal(t, engine.StatusOngoing, g.mapStatus("  Publicándose "))
	assert.Equal(t, engine.StatusCompleted, g.mapStatus("Completed"))
	assert.Equal(t, engine.StatusOngoing, g.mapStatus("Estado: En Curso"))
	assert.Equal(t, engine.StatusUnknown, g.mapStatus("hiatus"))
	assert.Equal(t, engine.StatusUnknown, g.mapStatus(""))
}
