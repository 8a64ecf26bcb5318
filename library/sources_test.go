package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Folium/engine"
	"Folium/errors"
)

func TestNewSourceStoreSeedsShippedConfigs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSourceStore(dir, nil)
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "novelbin.yml"))
	assert.FileExists(t, filepath.Join(dir, "wuxiaworld.yml"))

	configs, err := store.ListSources()
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "novelbin", configs[0].Name)
	assert.Equal(t, "wuxiaworld", configs[1].Name)
	assert.Equal(t, "https://novelbin.com", configs[0].BaseURL)
	assert.True(t, configs[0].UseRendered)
	require.NotNil(t, configs[0].RevealAll)
	assert.Equal(t, `a[href="#tab-chapters-title"]`, configs[0].RevealAll.Selector)
}

func TestSeedNeverOverwritesUserEdits(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSourceStore(dir, nil)
	require.NoError(t, err)

	edited, err := store.GetSource("novelbin")
	require.NoError(t, err)
	edited.BaseURL = "https://mirror.novelbin.example"
	require.NoError(t, store.PersistSource(edited))

	// Reopening the directory re-runs seeding; the edited file survives.
	reopened, err := NewSourceStore(dir, nil)
	require.NoError(t, err)
	cfg, err := reopened.GetSource("novelbin")
	require.NoError(t, err)
	assert.Equal(t, "https://mirror.novelbin.example", cfg.BaseURL)
}

func TestPersistAndGetRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := NewSourceStore(t.TempDir(), nil)
	require.NoError(t, err)

	cfg := &engine.SourceConfig{
		Name:     "TowerSite",
		BaseURL:  "https://towersite.example",
		Kind:     engine.KindText,
		Language: "es",
		Selectors: map[string]string{
			"title":           "h1.titulo",
			"chapter_content": ".contenido",
		},
		UnwantedElements: []string{".ads"},
		Patterns: engine.SourcePatterns{
			ChapterNumber: `Capítulo\s+(\d+)`,
			UnwantedText:  []string{`(?is)Apóyanos en Patreon.*`},
			NextLink:      `<a class="next" href="([^"]+)">`,
			Sentinel:      `FIN DE LA OBRA`,
		},
		Headers:        map[string]string{"Referer": "https://towersite.example"},
		TimeoutSeconds: 45,
		MaxRetries:     5,
		StatusMap:      map[string]string{"en curso": engine.StatusOngoing},
	}
	require.NoError(t, store.PersistSource(cfg))

	// Lookups are case-insensitive; files are named after the lowered name.
	got, err := store.GetSource("TOWERSITE")
	require.NoError(t, err)
	assert.Equal(t, cfg.BaseURL, got.BaseURL)
	assert.Equal(t, cfg.Selectors, got.Selectors)
	assert.Equal(t, cfg.Patterns, got.Patterns)
	assert.Equal(t, cfg.Headers, got.Headers)
	assert.Equal(t, 45, got.TimeoutSeconds)
	assert.Equal(t, cfg.StatusMap, got.StatusMap)
}

func TestPersistRejectsIncompleteConfigs(t *testing.T) {
	t.Parallel()

	store, err := NewSourceStore(t.TempDir(), nil)
	require.NoError(t, err)

	err = store.PersistSource(&engine.SourceConfig{BaseURL: "https://x.example"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a name")

	err = store.PersistSource(&engine.SourceConfig{Name: "nameless"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "needs a base_url")
}

func TestGetSourceUnknown(t *testing.T) {
	t.Parallel()

	store, err := NewSourceStore(t.TempDir(), nil)
	require.NoError(t, err)

	_, err = store.GetSource("atlantis")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindUnknownSource))
}

func TestListSkipsBrokenFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSourceStore(dir, nil)
	require.NoError(t, err)

	// One file with mangled YAML, one valid-YAML file missing its
	// base_url, and one unrelated file that isn't YAML at all.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.yml"), []byte("name: [unclosed"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "homeless.yml"), []byte("name: homeless\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a source"), 0644))

	configs, err := store.ListSources()
	require.NoError(t, err)
	require.Len(t, configs, 2)
	assert.Equal(t, "novelbin", configs[0].Name)
	assert.Equal(t, "wuxiaworld", configs[1].Name)
}

func TestSourceNameDefaultsFromFilename(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	store, err := NewSourceStore(dir, nil)
	require.NoError(t, err)

	raw := "base_url: https://anon.example\nkind: text\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "anonsite.yaml"), []byte(raw), 0644))

	cfg, err := store.GetSource("anonsite")
	require.NoError(t, err)
	assert.Equal(t, "anonsite", cfg.Name)
	assert.Equal(t, "https://anon.example", cfg.BaseURL)
	assert.Equal(t, engine.KindText, cfg.Kind)
}
