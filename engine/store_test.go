package engine

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Folium/errors"
)

func testWorkRef() WorkRef {
	return WorkRef{ID: "w1", Title: "Tower of Dawn", Language: "en"}
}

func TestStorePathLayout(t *testing.T) {
	t.Parallel()

	s := &StoreService{Root: "/store"}
	work := testWorkRef()

	assert.Equal(t,
		filepath.Join("/store", "Tower of Dawn - w1", "chapters", "chapter_12.5_raw_es.txt"),
		s.Path(work, 12.5, FormatRaw, "ES"))

	// Empty language keys under "en"; formats carry their own extension.
	assert.Equal(t,
		filepath.Join("/store", "Tower of Dawn - w1", "chapters", "chapter_3_manhwa_en.json"),
		s.Path(work, 3, FormatManifest, ""))
	assert.Equal(t,
		filepath.Join("/store", "Tower of Dawn - w1", "chapters", "chapter_7_epub_en.epub"),
		s.Path(work, 7, FormatBundle, "en"))

	// Titles are sanitized before they become directories.
	dirty := WorkRef{ID: "w2", Title: "What / Why?"}
	assert.Equal(t,
		filepath.Join("/store", "What _ Why_ - w2"),
		s.WorkDir(dirty))
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	s := &StoreService{Root: t.TempDir()}
	work := testWorkRef()
	body := []byte("The hollow gate creaked open.\n\nNobody stepped through.")

	path, err := s.Put(work, 42, FormatRaw, "en", body)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, s.Exists(work, 42, FormatRaw, "en"))

	got, err := s.Get(work, 42, FormatRaw, "en")
	require.NoError(t, err)
	assert.Equal(t, body, got)

	// No staging files are left behind after a successful write.
	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	for _, e := range entries {
		assert.NotContains(t, e.Name(), ".tmp-")
	}
}

func TestStoreFirstWriteWins(t *testing.T) {
	t.Parallel()

	s := &StoreService{Root: t.TempDir()}
	work := testWorkRef()

	first, err := s.Put(work, 1, FormatRaw, "en", []byte("original"))
	require.NoError(t, err)

	// A second write to the same key is suppressed, not an error.
	second, err := s.Put(work, 1, FormatRaw, "en", []byte("different"))
	require.NoError(t, err)
	assert.Equal(t, first, second)

	got, err := s.Get(work, 1, FormatRaw, "en")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func TestStoreGetMissing(t *testing.T) {
	t.Parallel()

	s := &StoreService{Root: t.TempDir()}

	_, err := s.Get(testWorkRef(), 99, FormatRaw, "en")
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStoreMissing)
	assert.False(t, s.Exists(testWorkRef(), 99, FormatRaw, "en"))
}

func TestStoreLanguageKeysAreDistinct(t *testing.T) {
	t.Parallel()

	s := &StoreService{Root: t.TempDir()}
	work := testWorkRef()

	_, err := s.Put(work, 5, FormatRaw, "en", []byte("english"))
	require.NoError(t, err)
	_, err = s.Put(work, 5, FormatRaw, "es", []byte("spanish"))
	require.NoError(t, err)

	en, err := s.Get(work, 5, FormatRaw, "EN")
	require.NoError(t, err)
	es, err := s.Get(work, 5, FormatRaw, "es")
	require.NoError(t, err)
	assert.Equal(t, []byte("english"), en)
	assert.Equal(t, []byte("spanish"), es)
}

func TestPutManifestMirrorsImages(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/img/one.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("png-bytes-1"))
	})
	mux.HandleFunc("/img/three.jpg", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("jpg-bytes-3"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := &StoreService{
		Root: t.TempDir(),
		HTTP: NewHTTPService(nil, nil, 2*time.Second, 1),
	}
	work := testWorkRef()
	manifest := &ComicManifest{
		Number: 4,
		Total:  3,
		Images: []ComicImage{
			{URL: srv.URL + "/img/one.png", Index: 1},
			{URL: srv.URL + "/img/gone.png", Index: 2}, // 404s
			{URL: srv.URL + "/img/three.jpg", Index: 3},
		},
	}

	path, err := s.PutManifest(context.Background(), work, manifest)
	require.NoError(t, err)

	imgDir := s.ImageDir(work, 4)
	assert.Equal(t, filepath.Join(imgDir, "image_001.png"), manifest.Images[0].LocalPath)
	assert.Equal(t, filepath.Join(imgDir, "image_003.jpg"), manifest.Images[2].LocalPath)

	// The failed download keeps its remote URL instead of aborting the put.
	assert.Empty(t, manifest.Images[1].LocalPath)
	assert.Equal(t, srv.URL+"/img/gone.png", manifest.Images[1].URL)

	mirrored, err := os.ReadFile(manifest.Images[0].LocalPath)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes-1"), mirrored)

	// The stored manifest records the rewritten entries.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored ComicManifest
	require.NoError(t, json.Unmarshal(data, &stored))
	require.Len(t, stored.Images, 3)
	assert.Equal(t, manifest.Images[0].LocalPath, stored.Images[0].LocalPath)
}

func TestGetManifestVerifiesMirroredFiles(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/p.png", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("p"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	s := &StoreService{
		Root: t.TempDir(),
		HTTP: NewHTTPService(nil, nil, 2*time.Second, 1),
	}
	work := testWorkRef()
	manifest := &ComicManifest{
		Number: 1,
		Total:  1,
		Images: []ComicImage{{URL: srv.URL + "/p.png", Index: 1}},
	}

	_, err := s.PutManifest(context.Background(), work, manifest)
	require.NoError(t, err)
	require.NotEmpty(t, manifest.Images[0].LocalPath)

	loaded, err := s.GetManifest(work, 1)
	require.NoError(t, err)
	assert.Equal(t, manifest.Images[0].LocalPath, loaded.Images[0].LocalPath)

	// Once the mirrored file vanishes the entry falls back to its URL.
	require.NoError(t, os.Remove(manifest.Images[0].LocalPath))
	reloaded, err := s.GetManifest(work, 1)
	require.NoError(t, err)
	assert.Empty(t, reloaded.Images[0].LocalPath)
	assert.Equal(t, srv.URL+"/p.png", reloaded.Images[0].URL)
}
