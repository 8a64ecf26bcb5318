// Package library holds the local persistence around the pipeline: the
// work catalog and the source-configuration store. The engine never
// imports it; the CLI wires the two together.
package library

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"Folium/engine"
	"Folium/errors"
	"Folium/utils"
)

// Chapter is one catalog entry of a work. The scraped fields (Number,
// Title, URL) are replaced wholesale on every sync; the side state (Read,
// Downloaded, LocalPath) survives syncs, keyed by chapter number.
type Chapter struct {
	Number     float64 `json:"number"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Read       bool    `json:"read"`
	Downloaded bool    `json:"downloaded"`
	LocalPath  string  `json:"local_path,omitempty"`
}

// Work is a catalog record for one tracked novel or comic.
type Work struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Author      string          `json:"author,omitempty"`
	Description string          `json:"description,omitempty"`
	CoverURL    string          `json:"cover_url,omitempty"`
	Status      string          `json:"status,omitempty"`
	Tags        []string        `json:"tags,omitempty"`
	Kind        engine.WorkKind `json:"kind"`
	SourceName  string          `json:"source_name"`
	SourceURL   string          `json:"source_url"`
	Language    string          `json:"language,omitempty"`
	Chapters    []Chapter       `json:"chapters,omitempty"`

	AddedAt          time.Time  `json:"added_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	ChaptersSyncedAt *time.Time `json:"chapters_synced_at,omitempty"`
}

// Ref converts a catalog record into the reference the engine's store and
// bundler key on.
func (w *Work) Ref() engine.WorkRef {
	return engine.WorkRef{
		ID:       w.ID,
		Title:    w.Title,
		Language: w.Language,
		Author:   w.Author,
		CoverURL: w.CoverURL,
	}
}

// Chapter returns the catalog entry with the given number, or nil.
func (w *Work) Chapter(number float64) *Chapter {
	for i := range w.Chapters {
		if w.Chapters[i].Number == number {
			return &w.Chapters[i]
		}
	}
	return nil
}

// ReadCount reports how many chapters are marked read.
func (w *Work) ReadCount() int {
	n := 0
	for _, ch := range w.Chapters {
		if ch.Read {
			n++
		}
	}
	return n
}

// DownloadedCount reports how many chapters are marked downloaded.
func (w *Work) DownloadedCount() int {
	n := 0
	for _, ch := range w.Chapters {
		if ch.Downloaded {
			n++
		}
	}
	return n
}

// LastChapterNumber reports the highest chapter number known, 0 when the
// list was never synced.
func (w *Work) LastChapterNumber() float64 {
	last := 0.0
	for _, ch := range w.Chapters {
		if ch.Number > last {
			last = ch.Number
		}
	}
	return last
}

// Catalog is the JSON-file work catalog. A single file under the store
// root holds every work; each operation loads it, mutates in memory, and
// rewrites it atomically under the lock.
type Catalog struct {
	Path   string
	Logger *engine.LoggerService

	mutex sync.Mutex
}

// NewCatalog returns a catalog backed by works.json under the store root.
func NewCatalog(storeRoot string, logger *engine.LoggerService) *Catalog {
	return &Catalog{
		Path:   filepath.Join(storeRoot, "works.json"),
		Logger: logger,
	}
}

// List returns every work, sorted by title.
func (c *Catalog) List() ([]*Work, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return nil, err
	}
	sort.Slice(works, func(i, j int) bool { return works[i].Title < works[j].Title })
	return works, nil
}

// FindWork returns the work with the given ID. IDs may be abbreviated to
// a unique prefix, so `folium info 3f2a` works.
func (c *Catalog) FindWork(id string) (*Work, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return nil, err
	}
	return findWork(works, id)
}

// FindBySourceURL returns the work tracking the given source URL, or nil.
func (c *Catalog) FindBySourceURL(sourceURL string) (*Work, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return nil, err
	}
	for _, w := range works {
		if w.SourceURL == sourceURL {
			return w, nil
		}
	}
	return nil, nil
}

// Add mints an ID for a newly scraped work and records it. A source URL
// can only be tracked once.
func (c *Catalog) Add(meta *engine.WorkMetadata) (*Work, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return nil, err
	}
	for _, w := range works {
		if w.SourceURL == meta.SourceURL {
			return nil, fmt.Errorf("work from %s is already in the catalog as '%s'", meta.SourceURL, w.Title)
		}
	}

	now := time.Now().UTC()
	work := &Work{
		ID:        uuid.NewString(),
		AddedAt:   now,
		UpdatedAt: now,
	}
	applyMetadata(work, meta)

	works = append(works, work)
	if err := c.save(works); err != nil {
		return nil, err
	}
	if c.Logger != nil {
		c.Logger.Info("Added '%s' (%s) to the catalog", work.Title, work.ID)
	}
	return work, nil
}

// ReplaceMetadata overwrites a work's descriptive fields with a fresh
// scrape, leaving identity, chapters and side state alone.
func (c *Catalog) ReplaceMetadata(id string, meta *engine.WorkMetadata) (*Work, error) {
	return c.update(id, func(work *Work) error {
		applyMetadata(work, meta)
		return nil
	})
}

// ReplaceChapters swaps a work's chapter list for a freshly discovered
// one. Read, downloaded and local-path state carries over to the new
// entry with the same chapter number.
func (c *Catalog) ReplaceChapters(id string, discovered []engine.ChapterDescriptor) (*Work, error) {
	return c.update(id, func(work *Work) error {
		work.Chapters = mergeChapters(work.Chapters, discovered)
		now := time.Now().UTC()
		work.ChaptersSyncedAt = &now
		return nil
	})
}

// MarkRead flips the read flag of one chapter.
func (c *Catalog) MarkRead(id string, number float64, read bool) (*Work, error) {
	return c.update(id, func(work *Work) error {
		ch := work.Chapter(number)
		if ch == nil {
			return errors.New(errors.KindStoreMissing, "chapter %s is not in the catalog for '%s'",
				utils.FormatChapterNumber(number), work.Title)
		}
		ch.Read = read
		return nil
	})
}

// MarkDownloaded records that a chapter's content landed in the store.
func (c *Catalog) MarkDownloaded(id string, number float64, localPath string) (*Work, error) {
	return c.update(id, func(work *Work) error {
		ch := work.Chapter(number)
		if ch == nil {
			return errors.New(errors.KindStoreMissing, "chapter %s is not in the catalog for '%s'",
				utils.FormatChapterNumber(number), work.Title)
		}
		ch.Downloaded = true
		ch.LocalPath = localPath
		return nil
	})
}

// Remove drops a work from the catalog. Stored chapter artifacts are left
// on disk.
func (c *Catalog) Remove(id string) error {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return err
	}
	work, err := findWork(works, id)
	if err != nil {
		return err
	}

	kept := works[:0]
	for _, w := range works {
		if w.ID != work.ID {
			kept = append(kept, w)
		}
	}
	if err := c.save(kept); err != nil {
		return err
	}
	if c.Logger != nil {
		c.Logger.Info("Removed '%s' (%s) from the catalog", work.Title, work.ID)
	}
	return nil
}

// update runs a mutation against one work and persists the result.
func (c *Catalog) update(id string, mutate func(*Work) error) (*Work, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	works, err := c.load()
	if err != nil {
		return nil, err
	}
	work, err := findWork(works, id)
	if err != nil {
		return nil, err
	}
	if err := mutate(work); err != nil {
		return nil, err
	}
	work.UpdatedAt = time.Now().UTC()

	if err := c.save(works); err != nil {
		return nil, err
	}
	return work, nil
}

func (c *Catalog) load() ([]*Work, error) {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(errors.KindStoreIO, err, "failed to read catalog %s", c.Path)
	}

	var works []*Work
	if err := json.Unmarshal(data, &works); err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "catalog %s is unreadable", c.Path)
	}
	return works, nil
}

// save rewrites the catalog file atomically so a crash mid-write never
// eats the library.
func (c *Catalog) save(works []*Work) error {
	data, err := json.MarshalIndent(works, "", "  ")
	if err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to encode catalog")
	}

	dir := filepath.Dir(c.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to create %s", dir)
	}
	tmp, err := os.CreateTemp(dir, "works.json.tmp-*")
	if err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to stage catalog write")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindStoreIO, err, "failed to write %s", tmpName)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindStoreIO, err, "failed to flush %s", tmpName)
	}
	if err := os.Rename(tmpName, c.Path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindStoreIO, err, "failed to publish %s", c.Path)
	}
	return nil
}

// findWork resolves an exact ID first, then a unique prefix.
func findWork(works []*Work, id string) (*Work, error) {
	for _, w := range works {
		if w.ID == id {
			return w, nil
		}
	}

	var match *Work
	for _, w := range works {
		if len(id) >= 4 && len(id) < len(w.ID) && w.ID[:len(id)] == id {
			if match != nil {
				return nil, fmt.Errorf("work id '%s' is ambiguous", id)
			}
			match = w
		}
	}
	if match == nil {
		return nil, errors.New(errors.KindStoreMissing, "work '%s' is not in the catalog", id)
	}
	return match, nil
}

// applyMetadata maps a scrape result onto a catalog record.
func applyMetadata(work *Work, meta *engine.WorkMetadata) {
	work.Title = meta.Title
	work.Author = meta.Author
	work.Description = meta.Description
	work.CoverURL = meta.CoverURL
	work.Status = meta.Status
	work.Tags = meta.Tags
	work.Kind = meta.Kind
	work.SourceName = meta.SourceName
	work.SourceURL = meta.SourceURL
	work.Language = meta.Language
}

// mergeChapters keeps discovery order and carries side state forward by
// chapter number.
func mergeChapters(existing []Chapter, discovered []engine.ChapterDescriptor) []Chapter {
	state := make(map[float64]Chapter, len(existing))
	for _, ch := range existing {
		state[ch.Number] = ch
	}

	merged := make([]Chapter, 0, len(discovered))
	for _, d := range discovered {
		ch := Chapter{Number: d.Number, Title: d.Title, URL: d.URL}
		if prev, ok := state[d.Number]; ok {
			ch.Read = prev.Read
			ch.Downloaded = prev.Downloaded
			ch.LocalPath = prev.LocalPath
		}
		merged = append(merged, ch)
	}
	return merged
}
