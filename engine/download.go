package engine

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"

	"golang.org/x/sync/errgroup"

	"Folium/errors"
	"Folium/utils"
)

// imageConcurrency bounds parallel image downloads per chapter.
const imageConcurrency = 8

// PutManifest mirrors a comic chapter into the store: every image is
// downloaded concurrently into the chapter's image directory, entries are
// rewritten to their local paths, and the manifest itself is stored under
// the manhwa format. Images that fail to download keep their remote URL so
// readers can still follow them.
func (s *StoreService) PutManifest(ctx context.Context, work WorkRef, manifest *ComicManifest) (string, error) {
	imgDir := s.ImageDir(work, manifest.Number)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(imageConcurrency)

	for i := range manifest.Images {
		img := &manifest.Images[i]
		g.Go(func() error {
			name := utils.ImageFilename(img.Index, img.URL)
			path := filepath.Join(imgDir, name)

			if _, err := os.Stat(path); err == nil {
				img.LocalPath = path
				return nil
			}

			data, err := s.HTTP.FetchBytes(gctx, img.URL, RequestOptions{})
			if err != nil {
				if s.Logger != nil {
					s.Logger.Warn("Image %d of chapter %s kept remote: %v",
						img.Index, utils.FormatChapterNumber(manifest.Number), err)
				}
				return nil
			}
			if err := s.writeAtomic(path, data); err != nil {
				if s.Logger != nil {
					s.Logger.Warn("Image %d of chapter %s kept remote: %v",
						img.Index, utils.FormatChapterNumber(manifest.Number), err)
				}
				return nil
			}

			img.LocalPath = path
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		return "", errors.Wrap(errors.KindFetchNetwork, err, "image mirroring interrupted")
	}

	data, err := json.MarshalIndent(manifest, "", "  ")
	if err != nil {
		return "", errors.Wrap(errors.KindStoreIO, err, "failed to encode manifest for chapter %s", utils.FormatChapterNumber(manifest.Number))
	}
	return s.Put(work, manifest.Number, FormatManifest, work.Language, data)
}

// GetManifest loads a stored comic manifest and verifies its mirrored
// files. Entries whose file vanished fall back to the remote URL.
func (s *StoreService) GetManifest(work WorkRef, number float64) (*ComicManifest, error) {
	data, err := s.Get(work, number, FormatManifest, work.Language)
	if err != nil {
		return nil, err
	}

	var manifest ComicManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return nil, errors.Wrap(errors.KindStoreIO, err, "corrupt manifest for chapter %s", utils.FormatChapterNumber(number))
	}

	for i := range manifest.Images {
		img := &manifest.Images[i]
		if img.LocalPath == "" {
			continue
		}
		if _, err := os.Stat(img.LocalPath); err != nil {
			if s.Logger != nil {
				s.Logger.Debug("Mirrored image %s vanished, using %s", img.LocalPath, img.URL)
			}
			img.LocalPath = ""
		}
	}
	return &manifest, nil
}
