package musiclink

import (
	"net/url"
	"strings"
)

// fieldKeys lists, per output field, the candidate tag keys in priority order.
type fieldKeys struct {
	Title       []string
	Artist      []string
	Album       []string
	Cover       []string
	Year        []string
	Description []string
}

var (
	genericFieldKeys = fieldKeys{
		Title:       []string{"og:title", "music:song", "music:album"},
		Artist:      []string{"music:musician", "music:artist", "vk:music:artist", "ya:music:artist"},
		Album:       []string{"music:album", "ya:music:album"},
		Cover:       []string{"og:image", "og:image:url", "og:image:secure_url"},
		Year:        []string{"music:release_date", "ya:music:year"},
		Description: []string{"og:description"},
	}

	// serviceFieldKeys is the per-service tag vocabulary. Adding a service is adding an entry.
	serviceFieldKeys = map[Service]fieldKeys{
		ServiceYandex: {
			Title:       []string{"og:title", "ya:music:title", "music:song", "music:album"},
			Artist:      []string{"ya:music:artist", "music:musician", "music:artist"},
			Album:       []string{"ya:music:album", "music:album"},
			Cover:       []string{"og:image", "og:image:url", "og:image:secure_url"},
			Year:        []string{"ya:music:year", "music:release_date"},
			Description: []string{"og:description"},
		},
		ServiceVK: {
			Title:       []string{"vk:music:title", "og:title", "music:song"},
			Artist:      []string{"vk:music:artist", "music:musician", "music:artist"},
			Album:       []string{"vk:music:album", "music:album"},
			Cover:       []string{"og:image", "vk:image", "og:image:url"},
			Year:        []string{"vk:music:year", "music:release_date"},
			Description: []string{"og:description"},
		},
		ServiceMTS: {
			Title:       []string{"og:title", "music:song", "music:album"},
			Artist:      []string{"music:musician", "music:artist", "ya:music:artist"},
			Album:       []string{"music:album", "ya:music:album"},
			Cover:       []string{"og:image", "og:image:url", "og:image:secure_url"},
			Year:        []string{"music:release_date", "ya:music:year"},
			Description: []string{"og:description"},
		},
		ServiceUnknown: genericFieldKeys,
	}

	// trackWords and albumWords mark the kind in MTS descriptions.
	trackWords = []string{"трек", "track"}
	albumWords = []string{"альбом", "album"}
)

func fieldKeysFor(service Service) fieldKeys {
	if keys, ok := serviceFieldKeys[service]; ok {
		return keys
	}
	return genericFieldKeys
}

// Normalize combines the classification of the original link, the tags of the
// fetched page and the URL the fetch ended on into one record. It is pure and
// never fails; missing tags leave fields empty.
//
// The final URL is classified again: ids that the redirect target lost are
// taken from the original link, otherwise the final URL's ids win.
func Normalize(originalURL, finalURL string, tags TagMap, classification LinkClassification) SongMeta {
	if classification.Service == "" {
		classification = Classify(originalURL)
	}
	if finalURL == "" {
		finalURL = originalURL
	}
	if tags == nil {
		tags = TagMap{}
	}

	c := reconcile(Classify(finalURL), classification)
	keys := fieldKeysFor(c.Service)

	title := firstText(tags, keys.Title)
	artist := firstText(tags, keys.Artist)
	album := firstText(tags, keys.Album)
	year := tags.First(keys.Year...)
	cover := tags.First(keys.Cover...)
	description := tags.First(keys.Description...)

	if artist == "" {
		artist, title = splitArtistTitle(title)
	}

	parts := descriptionParts(description)
	if description != "" {
		// A description without bullets is a single sentence, not "Artist • ...".
		if artist == "" && len(parts) >= 2 {
			artist = parts[0]
		}
		if album == "" && len(parts) >= 2 && !isKindWord(parts[1], trackWords) {
			album = parts[1]
		}
		artistDesc, titleDesc := splitArtistTitle(description)
		if artist == "" {
			artist = artistDesc
		}
		if title == "" {
			title = titleDesc
		}
		// "Artist - Album" descriptions next to a track title.
		if album == "" && artistDesc != "" && titleDesc != "" && title != "" && titleDesc != title {
			album = titleDesc
		}
	}

	// Yandex and MTS share catalog covers; other services' image URLs carry no album id.
	if c.AlbumID == "" && cover != "" && (c.Service == ServiceYandex || c.Service == ServiceMTS) {
		c.AlbumID = albumIDFromCover(cover)
	}

	if isBoomLink(originalURL) && c.Service == ServiceVK {
		// BOOM titles read "<track or album> - <artist>".
		if left, right := splitArtistTitle(tags.Get("og:title")); left != "" && right != "" {
			switch c.Kind {
			case KindAlbum, KindPlaylist:
				album, title, artist = left, left, right
			case KindTrack:
				title, artist = left, right
			}
		}
	}

	if c.Kind == KindUnknown && c.Service == ServiceMTS && description != "" {
		switch {
		case containsWord(description, trackWords):
			c.Kind = KindTrack
		case containsWord(description, albumWords):
			c.Kind = KindAlbum
		}
	}

	if year == "" {
		year = pickYear(parts)
	}

	if c.Kind == KindAlbum && title != "" && (album == "" || strings.EqualFold(album, "альбом")) {
		album = title
	}

	meta := SongMeta{
		OriginalURL: originalURL,
		ResolvedURL: finalURL,
		Service:     c.Service,
		Kind:        c.Kind,
		TrackID:     c.TrackID,
		AlbumID:     c.AlbumID,
		AccessKey:   c.AccessKey,
		Title:       title,
		Artist:      artist,
		Album:       album,
		Year:        year,
		CoverURL:    cover,
		Description: description,
		RawTags:     tags,
	}
	return applyCrossLinks(meta)
}

// reconcile merges the final URL's classification with the original one. Service
// and kind come from the final URL when it is recognized; each id falls back to
// the original link when the final URL lost it, and a recovered track id brings
// the original track kind with it.
func reconcile(final, original LinkClassification) LinkClassification {
	c := final
	if c.Service == "" || c.Service == ServiceUnknown {
		c.Service = original.Service
	}
	if c.Service == "" {
		c.Service = ServiceUnknown
	}
	if c.Kind == "" || c.Kind == KindUnknown {
		c.Kind = original.Kind
	}
	if c.Kind == "" {
		c.Kind = KindUnknown
	}

	// Ids only carry over between URLs of the same service.
	if original.Service != c.Service {
		return c
	}
	if c.TrackID == "" && original.TrackID != "" {
		c.TrackID = original.TrackID
		// A recovered track id keeps the record a track even if the redirect
		// landed on the album page.
		if original.Kind == KindTrack {
			c.Kind = KindTrack
		}
	}
	if c.AlbumID == "" {
		c.AlbumID = original.AlbumID
	}
	if c.AccessKey == "" {
		c.AccessKey = original.AccessKey
	}
	return c
}

func containsWord(value string, words []string) bool {
	value = strings.ToLower(value)
	for _, w := range words {
		if strings.Contains(value, w) {
			return true
		}
	}
	return false
}

func isKindWord(value string, words []string) bool {
	for _, w := range words {
		if strings.EqualFold(strings.TrimSpace(value), w) {
			return true
		}
	}
	return false
}

func isBoomLink(rawURL string) bool {
	u, ok := parseLinkURL(rawURL)
	if !ok {
		return false
	}
	return strings.HasSuffix(strings.ToLower(u.Hostname()), "boom.ru")
}

func isVKDotLink(rawURL string) bool {
	u, ok := parseLinkURL(rawURL)
	if !ok {
		return false
	}
	return vkHosts[strings.ToLower(u.Hostname())]
}

// applyCrossLinks fills links to the sibling catalogs. Yandex Music and MTS Music
// share catalog ids, so a link on one maps directly onto the other.
func applyCrossLinks(meta SongMeta) SongMeta {
	switch meta.Service {
	case ServiceYandex:
		meta.YandexURL = meta.OriginalURL
		if path := catalogPath(meta); path != "" {
			meta.MTSURL = "https://music.mts.ru" + path
		}
	case ServiceMTS:
		meta.MTSURL = meta.OriginalURL
		if path := catalogPath(meta); path != "" {
			meta.YandexURL = "https://music.yandex.ru" + path
		}
	case ServiceVK:
		if isVKDotLink(meta.OriginalURL) {
			meta.VKURL = meta.OriginalURL
		} else {
			meta.VKURL = vkCanonicalURL(meta)
		}
	}
	return meta
}

func catalogPath(meta SongMeta) string {
	switch {
	case meta.TrackID != "":
		return "/track/" + url.PathEscape(meta.TrackID)
	case meta.AlbumID != "" && meta.Kind == KindAlbum:
		return "/album/" + url.PathEscape(meta.AlbumID)
	}
	return ""
}

// vkCanonicalURL builds a vk.com link from owner-qualified ids and their access key.
func vkCanonicalURL(meta SongMeta) string {
	if meta.AccessKey == "" {
		return ""
	}
	switch {
	case meta.Kind == KindTrack && strings.Contains(meta.TrackID, "_"):
		return "https://vk.com/audio" + meta.TrackID + "_" + meta.AccessKey
	case meta.Kind == KindAlbum && strings.Contains(meta.AlbumID, "_"):
		return "https://vk.com/music/album/" + meta.AlbumID + "_" + meta.AccessKey
	case meta.Kind == KindPlaylist && strings.Contains(meta.AlbumID, "_"):
		return "https://vk.com/music/playlist/" + meta.AlbumID + "_" + meta.AccessKey
	}
	return ""
}
