package validation

import (
	"net/url"
	"strings"

	"intelliquiz/internal/domain"
)

// NormalizeURL parses raw into its canonical absolute string form, which is
// the unique key for quiz records. It fails with INVALID_URL for anything
// that is not an absolute http(s) URL.
func NormalizeURL(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return "", domain.NewInvalidURLError(raw)
	}

	parsed, err := url.Parse(trimmed)
	if err != nil {
		return "", domain.NewInvalidURLError(raw)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", domain.NewInvalidURLError(raw)
	}
	if parsed.Host == "" {
		return "", domain.NewInvalidURLError(raw)
	}

	// Fragments never change the fetched document.
	parsed.Fragment = ""

	return parsed.String(), nil
}
