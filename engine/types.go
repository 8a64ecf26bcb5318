package engine

import (
	"context"
	"time"
)

// WorkKind distinguishes text works from image-based comics
type WorkKind string

const (
	KindText  WorkKind = "text"
	KindComic WorkKind = "comic"
)

// Work publication status values
const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusUnknown   = "unknown"
)

// WorkMetadata is the result of scraping a work's landing page
type WorkMetadata struct {
	Title       string   `json:"title"`
	Author      string   `json:"author,omitempty"`
	Description string   `json:"description,omitempty"`
	CoverURL    string   `json:"cover_url,omitempty"`
	Status      string   `json:"status,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Kind        WorkKind `json:"kind"`
	SourceName  string   `json:"source_name"`
	SourceURL   string   `json:"source_url"`
	Language    string   `json:"language,omitempty"`
}

// ChapterDescriptor identifies a chapter without its body
type ChapterDescriptor struct {
	WorkID string   `json:"work_id,omitempty"`
	Number float64  `json:"number"`
	Title  string   `json:"title"`
	URL    string   `json:"url"`
	Kind   WorkKind `json:"kind"`
}

// WorkRef carries the work identity that store keys are built from, plus
// the couple of display fields bundling needs.
type WorkRef struct {
	ID       string
	Title    string
	Language string // source language code, lowercase
	Author   string
	CoverURL string
}

// ChapterRef addresses one chapter of a work
type ChapterRef struct {
	URL    string
	Number float64
	Title  string
}

// ComicImage is one entry of a comic chapter's image manifest
type ComicImage struct {
	URL       string `json:"url"`
	LocalPath string `json:"local_path,omitempty"`
	Alt       string `json:"alt,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
	Index     int    `json:"index"`
}

// ComicManifest is the payload stored for comic chapters
type ComicManifest struct {
	Title  string       `json:"title,omitempty"`
	Number float64      `json:"number"`
	Images []ComicImage `json:"images"`
	Total  int          `json:"total"`
}

// ContentEnvelope is what materialization returns: a cleaned text body or
// an ordered image manifest
type ContentEnvelope struct {
	Kind      WorkKind     `json:"kind"`
	Body      string       `json:"body,omitempty"`
	Images    []ComicImage `json:"images,omitempty"`
	Total     int          `json:"total,omitempty"`
	FromCache bool         `json:"from_cache"`
}

// DiscoverOptions bounds chapter discovery
type DiscoverOptions struct {
	Max       int  // 0 selects the default of 50; hard cap 200
	Recursive bool // follow next-chapter links through the crawl engine
}

// ChapterOptions controls GetChapter behavior
type ChapterOptions struct {
	Translate  bool
	TargetLang string
}

// Adapter is the capability contract every site adapter implements.
// Materialize must consult the content store before any network I/O.
type Adapter interface {
	ID() string
	Name() string
	Description() string
	SiteURL() string
	Kind() WorkKind

	Info(ctx context.Context, workURL string) (*WorkMetadata, error)
	Discover(ctx context.Context, workURL string, opts DiscoverOptions) ([]ChapterDescriptor, error)
	Materialize(ctx context.Context, work WorkRef, ch ChapterRef) (*ContentEnvelope, error)
}

// Format names a stored artifact format
type Format string

const (
	FormatRaw      Format = "raw"    // cleaned chapter text
	FormatBundle   Format = "epub"   // packaged e-book bundle
	FormatManifest Format = "manhwa" // comic image manifest
)

// Ext returns the file extension for a format
func (f Format) Ext() string {
	switch f {
	case FormatBundle:
		return "epub"
	case FormatManifest:
		return "json"
	default:
		return "txt"
	}
}

// FormatFor returns the natural raw format of a work kind.
func FormatFor(kind WorkKind) Format {
	if kind == KindComic {
		return FormatManifest
	}
	return FormatRaw
}

// RevealGesture forces a site to expose its full chapter list before
// extraction: wait for the selector, click it, optionally pause and scroll
type RevealGesture struct {
	Selector         string  `yaml:"selector" json:"selector"`
	WaitAfterClick   float64 `yaml:"wait_after_click,omitempty" json:"wait_after_click,omitempty"`
	ScrollAfterClick bool    `yaml:"scroll_after_click,omitempty" json:"scroll_after_click,omitempty"`
}

// SourcePatterns holds the named regular expressions a source config uses
type SourcePatterns struct {
	ChapterNumber string   `yaml:"chapter_number,omitempty" json:"chapter_number,omitempty"`
	UnwantedText  []string `yaml:"unwanted_text,omitempty" json:"unwanted_text,omitempty"`
	NextLink      string   `yaml:"next_link,omitempty" json:"next_link,omitempty"`
	Sentinel      string   `yaml:"sentinel,omitempty" json:"sentinel,omitempty"`
}

// SourceConfig describes a site well enough for the generic adapter to
// scrape it without code changes
type SourceConfig struct {
	Name             string            `yaml:"name" json:"name"`
	BaseURL          string            `yaml:"base_url" json:"base_url"`
	Kind             WorkKind          `yaml:"kind" json:"kind"`
	Language         string            `yaml:"language,omitempty" json:"language,omitempty"`
	Selectors        map[string]string `yaml:"selectors,omitempty" json:"selectors,omitempty"`
	UnwantedElements []string          `yaml:"unwanted_elements,omitempty" json:"unwanted_elements,omitempty"`
	Patterns         SourcePatterns    `yaml:"patterns,omitempty" json:"patterns,omitempty"`
	UseRendered      bool              `yaml:"use_rendered,omitempty" json:"use_rendered,omitempty"`
	Headers          map[string]string `yaml:"headers,omitempty" json:"headers,omitempty"`
	TimeoutSeconds   int               `yaml:"timeout_seconds,omitempty" json:"timeout_seconds,omitempty"`
	MaxRetries       int               `yaml:"max_retries,omitempty" json:"max_retries,omitempty"`
	RevealAll        *RevealGesture    `yaml:"reveal_all,omitempty" json:"reveal_all,omitempty"`
	StatusMap        map[string]string `yaml:"status_map,omitempty" json:"status_map,omitempty"`
}

// Selector returns the configured selector for a field, or the fallback.
func (c *SourceConfig) Selector(name, fallback string) string {
	if sel, ok := c.Selectors[name]; ok && sel != "" {
		return sel
	}
	return fallback
}

// Timeout returns the per-source request timeout.
func (c *SourceConfig) Timeout(def time.Duration) time.Duration {
	if c.TimeoutSeconds > 0 {
		return time.Duration(c.TimeoutSeconds) * time.Second
	}
	return def
}
