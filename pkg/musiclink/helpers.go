package musiclink

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

const (
	// expectedSplitParts is the expected number of parts when splitting title/artist strings.
	expectedSplitParts = 2
	// yearDigits is the length of a plain year value.
	yearDigits = 4
	// maxPlainYear separates plain years from Unix timestamps in API year fields.
	maxPlainYear = 3000
)

var (
	// titleSeparators are tried in order when a title carries "Artist - Title".
	titleSeparators = []string{" — ", " – ", " - ", ": "}

	// coverAlbumIDRegex finds the album id in catalog cover URLs (".../123.a.45678-1/...").
	coverAlbumIDRegex = regexp.MustCompile(`\.(\d+)-\d+/`)
)

// splitArtistTitle splits "Artist - Title". Without a separator the whole value is the title.
func splitArtistTitle(value string) (artist, title string) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", ""
	}
	for _, sep := range titleSeparators {
		if !strings.Contains(value, sep) {
			continue
		}
		parts := strings.SplitN(value, sep, expectedSplitParts)
		return strings.TrimSpace(parts[0]), strings.TrimSpace(parts[1])
	}
	return "", value
}

// descriptionParts splits "Artist • Album • 2025" style descriptions ("·" is accepted too).
func descriptionParts(description string) []string {
	description = strings.ReplaceAll(description, "·", "•")
	var parts []string
	for _, p := range strings.Split(description, "•") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

// pickYear returns the first part that is a bare four-digit year.
func pickYear(parts []string) string {
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if len(p) != yearDigits {
			continue
		}
		if _, err := strconv.Atoi(p); err == nil {
			return p
		}
	}
	return ""
}

// normalizeYear turns API year values into a year string; numbers above
// maxPlainYear are Unix timestamps in seconds.
func normalizeYear(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return ""
	}
	n, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return value
	}
	if n > maxPlainYear {
		return strconv.Itoa(time.Unix(n, 0).UTC().Year())
	}
	return strconv.FormatInt(n, 10)
}

// looksLikeURL catches tag values that link to a page instead of naming something
// (Yandex puts artist page URLs into music:musician).
func looksLikeURL(value string) bool {
	return strings.HasPrefix(value, "http://") || strings.HasPrefix(value, "https://")
}

// albumIDFromCover recovers an album id from a catalog cover URL.
func albumIDFromCover(cover string) string {
	if m := coverAlbumIDRegex.FindStringSubmatch(cover); len(m) > 1 {
		return m[1]
	}
	return ""
}

// firstText returns the first candidate tag that names something (not a URL).
func firstText(tags TagMap, keys []string) string {
	for _, key := range keys {
		if v := strings.TrimSpace(tags.Get(key)); v != "" && !looksLikeURL(v) {
			return v
		}
	}
	return ""
}
