package musiclink

import (
	"net/url"
	"regexp"
	"strings"
)

// classifyRule recognizes one service. Rules are tried in slice order, so the
// order below is the tie-break when a URL could match more than one service.
type classifyRule struct {
	service Service
	host    func(host string) bool
	parse   func(u *url.URL, segments []string) (LinkClassification, bool)
}

var classifyRules = []classifyRule{
	{service: ServiceYandex, host: isYandexHost, parse: parseYandex},
	{service: ServiceVK, host: isVKHost, parse: parseVK},
	{service: ServiceMTS, host: isMTSHost, parse: parseMTS},
}

var (
	vkNumericRegex = regexp.MustCompile(`^-?\d+$`)

	vkHosts = map[string]bool{
		"vk.com":     true,
		"www.vk.com": true,
		"m.vk.com":   true,
		"vk.ru":      true,
		"www.vk.ru":  true,
		"m.vk.ru":    true,
	}

	// onelinkDeepLinkParams are the query parameters short links use to carry
	// the catalog URL they redirect to.
	onelinkDeepLinkParams = []string{"af_dp", "af_web_dp", "deep_link_value", "af_r", "url", "link"}
)

// Classify derives service, kind and ids from the URL text alone. It never
// performs I/O and never fails: unrecognized input yields service and kind unknown.
func Classify(rawURL string) LinkClassification {
	unknown := LinkClassification{Service: ServiceUnknown, Kind: KindUnknown}

	u, ok := parseLinkURL(rawURL)
	if !ok {
		return unknown
	}

	host := strings.ToLower(u.Hostname())
	segments := pathSegments(u.Path)

	for _, rule := range classifyRules {
		if !rule.host(host) {
			continue
		}
		c, recognized := rule.parse(u, segments)
		if !recognized {
			continue
		}
		c.Service = rule.service
		if c.Kind == "" {
			c.Kind = KindUnknown
		}
		return c
	}

	return unknown
}

// parseLinkURL parses user input, tolerating a missing scheme ("music.yandex.ru/album/1").
func parseLinkURL(rawURL string) (*url.URL, bool) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return nil, false
	}
	if !strings.Contains(rawURL, "://") {
		rawURL = "https://" + rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return nil, false
	}
	return u, true
}

func pathSegments(path string) []string {
	var segments []string
	for _, s := range strings.Split(path, "/") {
		if s != "" {
			segments = append(segments, s)
		}
	}
	return segments
}

func isYandexHost(host string) bool {
	return strings.Contains(host, "music.yandex")
}

func isVKHost(host string) bool {
	return vkHosts[host] || host == "boom.ru" || strings.HasSuffix(host, ".boom.ru")
}

func isMTSHost(host string) bool {
	return host == "mts.ru" || strings.HasSuffix(host, ".mts.ru") || isOnelinkHost(host)
}

func isOnelinkHost(host string) bool {
	return host == "onelink.me" || strings.HasSuffix(host, ".onelink.me")
}

// catalogIDs reads the /album/<id>[/track/<id>] and /track/<id> shapes shared by
// Yandex Music and MTS Music.
func catalogIDs(segments []string) LinkClassification {
	var c LinkClassification

	for i := 0; i+1 < len(segments); i++ {
		switch segments[i] {
		case "album":
			if c.AlbumID == "" {
				c.AlbumID = segments[i+1]
			}
		case "track":
			if c.TrackID == "" {
				c.TrackID = segments[i+1]
			}
		}
	}

	switch {
	case c.TrackID != "":
		c.Kind = KindTrack
	case c.AlbumID != "":
		c.Kind = KindAlbum
	default:
		c.Kind = KindUnknown
	}
	return c
}

func parseYandex(_ *url.URL, segments []string) (LinkClassification, bool) {
	return catalogIDs(segments), true
}

func parseMTS(u *url.URL, segments []string) (LinkClassification, bool) {
	c := catalogIDs(segments)
	if c.HasIDs() || !isOnelinkHost(strings.ToLower(u.Hostname())) {
		return c, true
	}

	// Short links carry no ids in the path; look for the embedded deep link.
	query := u.Query()
	for _, param := range onelinkDeepLinkParams {
		value := query.Get(param)
		if value == "" {
			continue
		}
		deep, err := url.Parse(value)
		if err != nil {
			continue
		}
		deepSegments := pathSegments(deep.Path)
		if deep.Scheme != "" && deep.Scheme != "http" && deep.Scheme != "https" && deep.Host != "" {
			// Custom schemes put the first path element in the host (mtsmusic://album/42/track/7).
			deepSegments = append([]string{deep.Host}, deepSegments...)
		}
		if ids := catalogIDs(deepSegments); ids.HasIDs() {
			return ids, true
		}
	}

	return LinkClassification{Kind: KindUnknown}, true
}

func parseVK(u *url.URL, segments []string) (LinkClassification, bool) {
	query := u.Query()
	accessKey := query.Get("access_key")
	if accessKey == "" {
		accessKey = query.Get("access_hash")
	}

	c, ok := vkShape(strings.ToLower(u.Hostname()), segments, query)
	if !ok {
		// A VK page that carries no music ids is not a music link.
		return LinkClassification{}, false
	}
	if accessKey != "" {
		c.AccessKey = accessKey
	}
	return c, true
}

func vkShape(host string, segments []string, query map[string][]string) (LinkClassification, bool) {
	if act := firstValue(query, "act"); act != "" {
		if c, ok := vkPlaylist(act, KindPlaylist); ok {
			return c, true
		}
		if c, ok := vkTrack(act); ok {
			return c, true
		}
	}

	if z := firstValue(query, "z"); strings.HasPrefix(z, "audio_playlist") {
		if c, ok := vkPlaylist(z, KindPlaylist); ok {
			return c, true
		}
	}

	if len(segments) == 0 {
		return LinkClassification{}, false
	}

	if strings.HasSuffix(host, "boom.ru") && len(segments) > 1 {
		switch segments[0] {
		case "track":
			return LinkClassification{Kind: KindTrack, TrackID: segments[1]}, true
		case "album":
			return LinkClassification{Kind: KindAlbum, AlbumID: segments[1]}, true
		case "playlist":
			return LinkClassification{Kind: KindPlaylist, AlbumID: segments[1]}, true
		}
	}

	if len(segments) >= 3 && segments[0] == "music" {
		switch segments[1] {
		case "album":
			return vkPlaylist(segments[2], KindAlbum)
		case "playlist":
			return vkPlaylist(segments[2], KindPlaylist)
		}
	}

	for _, seg := range segments {
		if !strings.Contains(seg, "audio_playlist") {
			continue
		}
		if c, ok := vkPlaylist(seg, KindPlaylist); ok {
			return c, true
		}
	}
	return vkTrack(segments[0])
}

// vkPlaylist reads audio_playlist<owner>_<id>[_<key>] and bare <owner>_<id>[_<key>] forms.
func vkPlaylist(raw string, kind Kind) (LinkClassification, bool) {
	value := raw
	if idx := strings.Index(value, "audio_playlist"); idx >= 0 {
		value = value[idx+len("audio_playlist"):]
	} else if kind == KindPlaylist && strings.HasPrefix(value, "audio") {
		return LinkClassification{}, false
	}

	id, key, ok := vkPairID(value)
	if !ok {
		return LinkClassification{}, false
	}
	return LinkClassification{Kind: kind, AlbumID: id, AccessKey: key}, true
}

// vkTrack reads audio<owner>_<id>[_<key>].
func vkTrack(raw string) (LinkClassification, bool) {
	if !strings.HasPrefix(raw, "audio") || strings.HasPrefix(raw, "audio_playlist") {
		return LinkClassification{}, false
	}
	id, key, ok := vkPairID(strings.TrimPrefix(raw, "audio"))
	if !ok {
		return LinkClassification{}, false
	}
	return LinkClassification{Kind: KindTrack, TrackID: id, AccessKey: key}, true
}

// vkPairID splits "<owner>_<item>[_<key>]" (the key may also follow a "/").
func vkPairID(value string) (id, key string, ok bool) {
	parts := strings.FieldsFunc(value, func(r rune) bool {
		return r == '_' || r == '/'
	})
	if len(parts) < 2 || !vkNumericRegex.MatchString(parts[0]) || !vkNumericRegex.MatchString(parts[1]) {
		return "", "", false
	}
	id = parts[0] + "_" + parts[1]
	if len(parts) > 2 {
		key = parts[2]
	}
	return id, key, true
}

func firstValue(query map[string][]string, key string) string {
	if values := query[key]; len(values) > 0 {
		return values[0]
	}
	return ""
}
