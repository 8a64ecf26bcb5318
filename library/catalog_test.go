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

func testMetadata(sourceURL string) *engine.WorkMetadata {
	return &engine.WorkMetadata{
		Title:      "Shadow Slave",
		Author:     "Guiltythree",
		Kind:       engine.KindText,
		SourceName: "pastebin",
		SourceURL:  sourceURL,
		Language:   "es",
		Status:     engine.StatusOngoing,
		Tags:       []string{"fantasía"},
	}
}

func descriptor(n float64, title string) engine.ChapterDescriptor {
	return engine.ChapterDescriptor{
		Number: n,
		Title:  title,
		URL:    "https://pastebin.com/ch" + title,
		Kind:   engine.KindText,
	}
}

func TestCatalogAddAndFind(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)
	require.NotEmpty(t, work.ID)
	assert.Equal(t, "Shadow Slave", work.Title)
	assert.False(t, work.AddedAt.IsZero())

	found, err := c.FindWork(work.ID)
	require.NoError(t, err)
	assert.Equal(t, work.ID, found.ID)

	// The same source URL cannot be tracked twice.
	_, err = c.Add(testMetadata("https://pastebin.com/first"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already in the catalog")
}

func TestCatalogFindByPrefix(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	found, err := c.FindWork(work.ID[:8])
	require.NoError(t, err)
	assert.Equal(t, work.ID, found.ID)

	// Prefixes shorter than four characters never match.
	_, err = c.FindWork(work.ID[:3])
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStoreMissing))

	_, err = c.FindWork("0000dead")
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStoreMissing))
}

func TestCatalogPersistsAcrossInstances(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	first := NewCatalog(dir, nil)
	work, err := first.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	// A new instance reading the same file sees the work.
	second := NewCatalog(dir, nil)
	works, err := second.List()
	require.NoError(t, err)
	require.Len(t, works, 1)
	assert.Equal(t, work.ID, works[0].ID)

	// The catalog file itself is plain JSON next to the store.
	assert.FileExists(t, filepath.Join(dir, "works.json"))
}

func TestCatalogListSortsByTitle(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)

	zeta := testMetadata("https://pastebin.com/z")
	zeta.Title = "Zarza"
	_, err := c.Add(zeta)
	require.NoError(t, err)

	alba := testMetadata("https://pastebin.com/a")
	alba.Title = "Alba"
	_, err = c.Add(alba)
	require.NoError(t, err)

	works, err := c.List()
	require.NoError(t, err)
	require.Len(t, works, 2)
	assert.Equal(t, "Alba", works[0].Title)
	assert.Equal(t, "Zarza", works[1].Title)
}

func TestReplaceChaptersKeepsSideState(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	_, err = c.ReplaceChapters(work.ID, []engine.ChapterDescriptor{
		descriptor(1, "Uno"),
		descriptor(2, "Dos"),
	})
	require.NoError(t, err)

	_, err = c.MarkRead(work.ID, 1, true)
	require.NoError(t, err)
	_, err = c.MarkDownloaded(work.ID, 2, "/store/chapter_2_raw_es.txt")
	require.NoError(t, err)

	// A re-sync brings retitled entries and a new chapter; read and
	// download state follows the chapter numbers.
	updated, err := c.ReplaceChapters(work.ID, []engine.ChapterDescriptor{
		descriptor(1, "Uno (revisado)"),
		descriptor(2, "Dos (revisado)"),
		descriptor(3, "Tres"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Chapters, 3)

	one := updated.Chapter(1)
	require.NotNil(t, one)
	assert.True(t, one.Read)
	assert.Equal(t, "Uno (revisado)", one.Title)

	two := updated.Chapter(2)
	require.NotNil(t, two)
	assert.True(t, two.Downloaded)
	assert.Equal(t, "/store/chapter_2_raw_es.txt", two.LocalPath)

	three := updated.Chapter(3)
	require.NotNil(t, three)
	assert.False(t, three.Read)
	assert.False(t, three.Downloaded)

	assert.Equal(t, 1, updated.ReadCount())
	assert.Equal(t, 1, updated.DownloadedCount())
	assert.Equal(t, float64(3), updated.LastChapterNumber())
	assert.NotNil(t, updated.ChaptersSyncedAt)
}

func TestReplaceChaptersDropsVanishedEntries(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	_, err = c.ReplaceChapters(work.ID, []engine.ChapterDescriptor{
		descriptor(1, "Uno"),
		descriptor(2, "Dos"),
	})
	require.NoError(t, err)

	// The source delisted chapter 2; the catalog follows the source.
	updated, err := c.ReplaceChapters(work.ID, []engine.ChapterDescriptor{
		descriptor(1, "Uno"),
	})
	require.NoError(t, err)
	require.Len(t, updated.Chapters, 1)
	assert.Nil(t, updated.Chapter(2))
}

func TestMarkReadUnknownChapter(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	_, err = c.MarkRead(work.ID, 99, true)
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStoreMissing))
}

func TestReplaceMetadataKeepsChapters(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)
	_, err = c.ReplaceChapters(work.ID, []engine.ChapterDescriptor{descriptor(1, "Uno")})
	require.NoError(t, err)

	fresh := testMetadata("https://pastebin.com/first")
	fresh.Status = engine.StatusCompleted
	updated, err := c.ReplaceMetadata(work.ID, fresh)
	require.NoError(t, err)

	assert.Equal(t, engine.StatusCompleted, updated.Status)
	assert.Equal(t, work.ID, updated.ID, "identity survives a refresh")
	require.Len(t, updated.Chapters, 1)
}

func TestCatalogRemove(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	require.NoError(t, c.Remove(work.ID))
	_, err = c.FindWork(work.ID)
	require.Error(t, err)

	works, err := c.List()
	require.NoError(t, err)
	assert.Empty(t, works)
}

func TestCatalogUnreadableFile(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "works.json"), []byte("{not json"), 0644))

	c := NewCatalog(dir, nil)
	_, err := c.List()
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindStoreIO))
}

func TestFindBySourceURL(t *testing.T) {
	t.Parallel()

	c := NewCatalog(t.TempDir(), nil)
	work, err := c.Add(testMetadata("https://pastebin.com/first"))
	require.NoError(t, err)

	found, err := c.FindBySourceURL("https://pastebin.com/first")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, work.ID, found.ID)

	missing, err := c.FindBySourceURL("https://pastebin.com/other")
	require.NoError(t, err)
	assert.Nil(t, missing)
}
