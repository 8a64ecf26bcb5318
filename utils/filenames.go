package utils

import (
	"fmt"
	"net/url"
	"path"
	"strconv"
	"strings"
)

// SanitizeFilename replaces characters that are invalid in file names
func SanitizeFilename(name string) string {
	invalid := []rune{'<', '>', ':', '"', '/', '\\', '|', '?', '*'}
	for _, char := range invalid {
		name = strings.ReplaceAll(name, string(char), "_")
	}

	// Trim spaces and dots at the beginning and end
	name = strings.Trim(name, " .")

	if name == "" {
		name = "untitled"
	}

	// Limit the length to avoid file system issues
	maxLength := 100
	if len(name) > maxLength {
		name = name[:maxLength]
	}

	return name
}

// FormatChapterNumber renders a chapter number without trailing zeros,
// so 5 -> "5" and 12.5 -> "12.5". Store paths and bundle filenames share it.
func FormatChapterNumber(n float64) string {
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ImageFilename builds the ordinal image name inside a chapter's image
// directory, zero-padded to three digits (image_007.jpg).
func ImageFilename(index int, srcURL string) string {
	return fmt.Sprintf("image_%03d.%s", index, ImageExtension(srcURL))
}

// ImageExtension extracts the extension from an image URL, ignoring any
// query string. Unknown or missing extensions default to jpg.
func ImageExtension(srcURL string) string {
	u, err := url.Parse(srcURL)
	if err != nil {
		return "jpg"
	}
	ext := strings.ToLower(strings.TrimPrefix(path.Ext(u.Path), "."))
	switch ext {
	case "jpg", "jpeg", "png", "gif", "webp", "avif", "bmp":
		return ext
	default:
		return "jpg"
	}
}
