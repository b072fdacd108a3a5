package articles

import (
	"errors"
	"math"
	"net/url"
	"strings"
)

const wordsPerMinute = 238

var ErrInvalidURL = errors.New("invalid URL")

// NormalizeURL trims, lowercases scheme and host, and drops the fragment so
// that equivalent links share one stored article.
func NormalizeURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", ErrInvalidURL
	}

	u.Scheme = strings.ToLower(u.Scheme)
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", ErrInvalidURL
	}

	u.Host = strings.ToLower(u.Host)
	if u.Hostname() == "" {
		return "", ErrInvalidURL
	}

	u.Fragment = ""
	u.RawFragment = ""

	return u.String(), nil
}

func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

func ReadTimeMinutes(wordCount int) int {
	if wordCount <= 0 {
		return 0
	}
	return int(math.Ceil(float64(wordCount) / wordsPerMinute))
}
