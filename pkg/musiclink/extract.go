package musiclink

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/unicode/norm"
)

// recognizedTagPrefixes are the meta tag vocabularies the services expose.
var recognizedTagPrefixes = []string{"og:", "music:", "ya:", "vk:"}

// ExtractTags collects recognized meta tags from an HTML document. It is
// best-effort: malformed or unparseable input yields an empty map, never an error.
// Keys keep the page's spelling; when a key repeats exactly, the first occurrence wins.
func ExtractTags(html string) TagMap {
	tags := make(TagMap)
	if strings.TrimSpace(html) == "" {
		return tags
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return tags
	}

	doc.Find("meta").Each(func(_ int, s *goquery.Selection) {
		key := metaKey(s)
		if key == "" || !hasRecognizedPrefix(key) {
			return
		}
		if _, seen := tags[key]; seen {
			return
		}
		content, ok := s.Attr("content")
		if !ok {
			return
		}
		content = strings.TrimSpace(norm.NFC.String(content))
		if content == "" {
			return
		}
		tags[key] = content
	})

	return tags
}

// metaKey returns the property attribute, falling back to name, as the page wrote it.
func metaKey(s *goquery.Selection) string {
	for _, attr := range []string{"property", "name"} {
		if v, ok := s.Attr(attr); ok {
			if v = strings.TrimSpace(v); v != "" {
				return v
			}
		}
	}
	return ""
}

func hasRecognizedPrefix(key string) bool {
	key = strings.ToLower(key)
	for _, prefix := range recognizedTagPrefixes {
		if strings.HasPrefix(key, prefix) {
			return true
		}
	}
	return false
}
