package adapters

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Folium/engine"
	"Folium/errors"
)

func TestCleanChapterHTML(t *testing.T) {
	t.Parallel()

	fragment := `<p style="color:red" class="rich">El umbral se abrió <strong>de golpe</strong>.</p>
<script>var tracker = 1;</script>
<miad-top-banner><div>publicidad</div></miad-top-banner>
<p></p>
<span>   </span>
<p>Nadie salió del otro lado.</p>
<p>Visita skynovels.net para más capítulos.</p>
<div>(function(w,q){w[q]=w[q]||[];w[q].push(1);})(window,'_mgq');</div>`

	got := cleanChapterHTML(fragment)

	assert.Contains(t, got, "El umbral se abrió <strong>de golpe</strong>.")
	assert.Contains(t, got, "Nadie salió del otro lado.")

	// Presentation attributes, scripts, ad-widget tags, empty elements and
	// the trailing promo block are all gone.
	assert.NotContains(t, got, "style=")
	assert.NotContains(t, got, "class=")
	assert.NotContains(t, got, "tracker")
	assert.NotContains(t, got, "miad-")
	assert.NotContains(t, got, "publicidad")
	assert.NotContains(t, got, "<p></p>")
	assert.NotContains(t, got, "Visita skynovels.net")
	assert.NotContains(t, got, "function(w,q)")
}

func TestCleanChapterHTMLErasesInlineAdScript(t *testing.T) {
	t.Parallel()

	fragment := `<p>Última línea del capítulo.</p>
<p>_mgwidget.push({id: 12345});</p>`

	got := cleanChapterHTML(fragment)
	assert.Contains(t, got, "Última línea del capítulo.")
	assert.NotContains(t, got, "_mgwidget")
}

func TestChapterContentExtractsMarkdownBlocks(t *testing.T) {
	t.Parallel()

	s := NewSkynovels(newTestEngine(t))
	page := `<html><body>
<div class="skn-chp-chapter-content">
  <markdown><h2>Capitulo 5: La Corona</h2><p>Primera línea.</p></markdown>
  <markdown><p>Segunda línea.</p></markdown>
</div>
</body></html>`

	got, err := s.chapterContent(page, "https://www.skynovels.net/novelas/ss/ss-capitulo-5")
	require.NoError(t, err)
	assert.Contains(t, got, "<h2>Capitulo 5: La Corona</h2>")
	assert.Contains(t, got, "<p>Primera línea.</p>")
	assert.Contains(t, got, "<p>Segunda línea.</p>")
}

func TestChapterContentFallsBackToContainer(t *testing.T) {
	t.Parallel()

	s := NewSkynovels(newTestEngine(t))
	page := `<html><body>
<div class="skn-chp-chapter-content"><p>Cuerpo sin envoltura.</p></div>
</body></html>`

	got, err := s.chapterContent(page, "https://www.skynovels.net/novelas/ss/ss-capitulo-6")
	require.NoError(t, err)
	assert.Contains(t, got, "Cuerpo sin envoltura.")
}

func TestChapterContentMissingContainer(t *testing.T) {
	t.Parallel()

	s := NewSkynovels(newTestEngine(t))
	_, err := s.chapterContent(`<html><body><p>404</p></body></html>`, "https://www.skynovels.net/x")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindSelectorMissing))
}

func TestSkynovelsNumberLadder(t *testing.T) {
	t.Parallel()

	// Index badge first.
	n, ok := parseIndexElement(" 12 ")
	require.True(t, ok)
	assert.Equal(t, float64(12), n)
	_, ok = parseIndexElement("vol. II")
	assert.False(t, ok)

	// Then the title, by convention and then by any digit run.
	n, ok = titleNumber("Capitulo 33: El Fin del Mundo")
	require.True(t, ok)
	assert.Equal(t, float64(33), n)
	n, ok = titleNumber("Episodio 7")
	require.True(t, ok)
	assert.Equal(t, float64(7), n)
	_, ok = titleNumber("Prólogo")
	assert.False(t, ok)

	// Then the URL segment.
	m := skynovelsNumberInURL.FindStringSubmatch("https://www.skynovels.net/novelas/ss/capitulo-88")
	require.NotNil(t, m)
	assert.Equal(t, "88", m[1])
}

func TestSkynovelsMaterializeIsStoreFirst(t *testing.T) {
	t.Parallel()

	e := newTestEngine(t)
	s := NewSkynovels(e)
	work := engine.WorkRef{ID: "n7", Title: "Against the Gods", Language: "es"}

	_, err := e.Store.Put(work, 1896, engine.FormatRaw, work.Language, []byte("<p>El cielo se partió en dos.</p>"))
	require.NoError(t, err)

	// A stored chapter never touches the browser; this engine has none.
	env, err := s.Materialize(context.Background(), work,
		engine.ChapterRef{URL: "https://www.skynovels.net/novelas/atg/atg-capitulo-1896", Number: 1896})
	require.NoError(t, err)
	assert.True(t, env.FromCache)
	assert.Equal(t, "<p>El cielo se partió en dos.</p>", env.Body)
}
