package library

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"Folium/engine"
	"Folium/errors"
)

// SourceStore keeps generic-adapter site definitions as one YAML file per
// source under a single directory. An empty directory gets seeded with
// the shipped configurations on first use.
type SourceStore struct {
	Dir    string
	Logger *engine.LoggerService
}

// NewSourceStore opens (and if needed creates and seeds) a source
// directory.
func NewSourceStore(dir string, logger *engine.LoggerService) (*SourceStore, error) {
	s := &SourceStore{Dir: dir, Logger: logger}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "failed to create source directory %s", dir)
	}
	if err := s.seed(); err != nil {
		return nil, err
	}
	return s, nil
}

// ListSources parses every YAML file in the directory, sorted by name.
// Unparseable files are logged and skipped so one bad edit doesn't take
// the whole source list down.
func (s *SourceStore) ListSources() ([]*engine.SourceConfig, error) {
	entries, err := os.ReadDir(s.Dir)
	if err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "failed to read source directory %s", s.Dir)
	}

	var configs []*engine.SourceConfig
	for _, entry := range entries {
		if entry.IsDir() || !isYAML(entry.Name()) {
			continue
		}
		cfg, err := s.read(filepath.Join(s.Dir, entry.Name()))
		if err != nil {
			if s.Logger != nil {
				s.Logger.Warn("Skipping source file %s: %v", entry.Name(), err)
			}
			continue
		}
		configs = append(configs, cfg)
	}

	sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })
	return configs, nil
}

// GetSource loads one source configuration by name.
func (s *SourceStore) GetSource(name string) (*engine.SourceConfig, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, ext := range []string{".yml", ".yaml"} {
		path := filepath.Join(s.Dir, name+ext)
		if _, err := os.Stat(path); err != nil {
			continue
		}
		return s.read(path)
	}
	return nil, errors.New(errors.KindUnknownSource, "no source configuration named '%s'", name)
}

// PersistSource writes a configuration to <dir>/<name>.yml, replacing any
// previous definition.
func (s *SourceStore) PersistSource(cfg *engine.SourceConfig) error {
	if strings.TrimSpace(cfg.Name) == "" {
		return errors.New(errors.KindUnknownSource, "source configuration needs a name")
	}
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return errors.New(errors.KindUnknownSource, "source '%s' needs a base_url", cfg.Name)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to encode source '%s'", cfg.Name)
	}

	path := filepath.Join(s.Dir, strings.ToLower(cfg.Name)+".yml")
	tmp, err := os.CreateTemp(s.Dir, "source.yml.tmp-*")
	if err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to stage source write")
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
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return errors.Wrap(errors.KindStoreIO, err, "failed to publish %s", path)
	}
	return nil
}

func (s *SourceStore) read(path string) (*engine.SourceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "failed to read %s", path)
	}

	cfg := &engine.SourceConfig{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "invalid source file %s", path)
	}
	if cfg.Name == "" {
		cfg.Name = strings.TrimSuffix(strings.TrimSuffix(filepath.Base(path), ".yml"), ".yaml")
	}
	if cfg.BaseURL == "" {
		return nil, errors.New(errors.KindUnknownSource, "source file %s has no base_url", path)
	}
	return cfg, nil
}

// seed writes the shipped configurations that don't exist yet. Existing
// files are never touched, so user edits survive restarts.
func (s *SourceStore) seed() error {
	seeded := 0
	for _, cfg := range seedConfigs() {
		path := filepath.Join(s.Dir, strings.ToLower(cfg.Name)+".yml")
		if _, err := os.Stat(path); err == nil {
			continue
		}
		if err := s.PersistSource(cfg); err != nil {
			return err
		}
		seeded++
	}
	if seeded > 0 && s.Logger != nil {
		s.Logger.Info("Seeded %d source configurations into %s", seeded, s.Dir)
	}
	return nil
}

// seedConfigs returns the site definitions shipped with the binary.
func seedConfigs() []*engine.SourceConfig {
	return []*engine.SourceConfig{
		{
			Name:     "novelbin",
			BaseURL:  "https://novelbin.com",
			Kind:     engine.KindText,
			Language: "en",
			Selectors: map[string]string{
				"title":           "a.novel-title",
				"author":          ".author span",
				"description":     ".desc-text",
				"cover_image":     ".book-img img",
				"status":          ".status",
				"tags":            ".categories a",
				"chapter_list":    ".list-chapter",
				"chapter_link":    "a",
				"chapter_content": "#chr-content",
			},
			UnwantedElements: []string{"script", "style", "iframe", "noscript", ".unlock-buttons"},
			Patterns: engine.SourcePatterns{
				ChapterNumber: `(?i)Chapter\s+(\d+)`,
				UnwantedText: []string{
					`(?is)Enhance your reading experience by removing ads.*`,
					`(?is)This material may be protected by copyright.*`,
					`(?is)Excerpt From.*`,
					`(?is)Remove Ads From.*`,
				},
			},
			UseRendered: true,
			RevealAll: &engine.RevealGesture{
				Selector:         `a[href="#tab-chapters-title"]`,
				WaitAfterClick:   1,
				ScrollAfterClick: true,
			},
		},
		{
			Name:     "wuxiaworld",
			BaseURL:  "https://www.wuxiaworld.com",
			Kind:     engine.KindText,
			Language: "en",
			Selectors: map[string]string{
				"title":        "h1.novel-title",
				"author":       "div.novel-author a",
				"description":  "div.novel-summary",
				"cover_image":  "div.novel-cover img",
				"status":       "div.novel-status",
				"tags":         "div.novel-tags a",
				"chapter_list": "div.chapter-list",
				"chapter_link": "a",
			},
			Patterns: engine.SourcePatterns{
				ChapterNumber: `(?i)Chapter\s+(\d+)`,
				UnwantedText: []string{
					`(?is)Please support the translation team.*`,
					`(?is)Join our Discord for updates.*`,
					`(?is)Please read this chapter on our website.*`,
				},
			},
			UseRendered: true,
		},
	}
}

func isYAML(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	return ext == ".yml" || ext == ".yaml"
}
