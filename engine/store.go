package engine

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"Folium/errors"
	"Folium/utils"
)

// StoreService is the on-disk chapter store. Artifacts are keyed by
// (work, chapter number, format, language) and mapped onto a stable
// layout:
//
//	<root>/<work-title> - <work-id>/chapters/chapter_<N>_<format>_<lang>.<ext>
//
// Writes are atomic and idempotent: a chapter fetched twice is stored
// once, and a crash never leaves a half-written artifact visible.
type StoreService struct {
	Root   string
	Logger *LoggerService
	HTTP   *HTTPService // mirrors comic images
}

// WorkDir returns the directory all artifacts of a work live under.
func (s *StoreService) WorkDir(work WorkRef) string {
	return filepath.Join(s.Root, fmt.Sprintf("%s - %s", utils.SanitizeFilename(work.Title), work.ID))
}

func (s *StoreService) chaptersDir(work WorkRef) string {
	return filepath.Join(s.WorkDir(work), "chapters")
}

// Path maps a store key to its file path.
func (s *StoreService) Path(work WorkRef, number float64, format Format, lang string) string {
	name := fmt.Sprintf("chapter_%s_%s_%s.%s",
		utils.FormatChapterNumber(number), format, storeLang(lang), format.Ext())
	return filepath.Join(s.chaptersDir(work), name)
}

// ImageDir returns the directory a comic chapter's images are mirrored
// into.
func (s *StoreService) ImageDir(work WorkRef, number float64) string {
	return filepath.Join(s.chaptersDir(work), fmt.Sprintf("chapter_%s_images", utils.FormatChapterNumber(number)))
}

// Exists reports whether an artifact is already stored.
func (s *StoreService) Exists(work WorkRef, number float64, format Format, lang string) bool {
	_, err := os.Stat(s.Path(work, number, format, lang))
	return err == nil
}

// Get returns a stored artifact, or ErrStoreMissing when the key has
// never been written.
func (s *StoreService) Get(work WorkRef, number float64, format Format, lang string) ([]byte, error) {
	path := s.Path(work, number, format, lang)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.ErrStoreMissing
		}
		return nil, errors.Wrap(errors.KindStoreIO, err, "failed to read %s", path)
	}
	return data, nil
}

// Put writes an artifact and returns its path. Existing keys are left
// untouched, so the first write wins.
func (s *StoreService) Put(work WorkRef, number float64, format Format, lang string, data []byte) (string, error) {
	path := s.Path(work, number, format, lang)
	if _, err := os.Stat(path); err == nil {
		if s.Logger != nil {
			s.Logger.Debug("Store hit for %s, skipping write", path)
		}
		return path, nil
	}
	if err := s.writeAtomic(path, data); err != nil {
		return "", err
	}
	if s.Logger != nil {
		s.Logger.Debug("Stored %s", path)
	}
	return path, nil
}

// writeAtomic stages data in a temp file next to the target and renames
// it into place, so readers never observe partial writes.
func (s *StoreService) writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to create %s", dir)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return errors.Wrap(errors.KindStoreIO, err, "failed to stage write in %s", dir)
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

// storeLang normalizes the language component of a store key. Works that
// never declared a language store under "en".
func storeLang(lang string) string {
	if lang == "" {
		return "en"
	}
	return strings.ToLower(lang)
}
