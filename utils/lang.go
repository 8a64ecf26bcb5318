package utils

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// NormalizeLanguage validates a language code and returns the lowercase
// form used in store filenames ("ES" -> "es", "pt-BR" -> "pt-br").
func NormalizeLanguage(code string) (string, error) {
	tag, err := language.Parse(code)
	if err != nil {
		return "", fmt.Errorf("invalid language code %q: %w", code, err)
	}
	return strings.ToLower(tag.String()), nil
}

// APILanguage returns the uppercase form translation APIs expect
// ("es" -> "ES"). The code is assumed to be already normalized.
func APILanguage(code string) string {
	return strings.ToUpper(code)
}

// SameLanguage compares two codes ignoring case and region defaults,
// so "EN" and "en" match while "en" and "es" do not.
func SameLanguage(a, b string) bool {
	na, errA := NormalizeLanguage(a)
	nb, errB := NormalizeLanguage(b)
	if errA != nil || errB != nil {
		return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
	}
	return na == nb
}
