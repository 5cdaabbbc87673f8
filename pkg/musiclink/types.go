// Package musiclink resolves shared music-service links (Yandex Music, VK Music, MTS Music)
// into normalized track/album metadata.
package musiclink

import (
	"context"
	"strings"
)

// Service identifies the music streaming service a link belongs to.
type Service string

// Supported services, in classification priority order.
const (
	ServiceYandex  Service = "yandex"
	ServiceVK      Service = "vk"
	ServiceMTS     Service = "mts"
	ServiceUnknown Service = "unknown"
)

// Kind identifies what a link points at.
type Kind string

// Link kinds.
const (
	KindTrack    Kind = "track"
	KindAlbum    Kind = "album"
	KindPlaylist Kind = "playlist"
	KindUnknown  Kind = "unknown"
)

// LinkClassification is what can be learned about a link from its text alone.
type LinkClassification struct {
	Service   Service
	Kind      Kind
	TrackID   string
	AlbumID   string // Album or playlist id.
	AccessKey string // VK access key for private playlists/tracks.
}

// HasIDs reports whether the classification carries any catalog id.
func (c LinkClassification) HasIDs() bool {
	return c.TrackID != "" || c.AlbumID != ""
}

// FetchResult is the outcome of a single page fetch.
type FetchResult struct {
	FinalURL   string
	StatusCode int
	Body       string
}

// TagMap maps meta tag names (og:title, music:musician, ...) to their content.
type TagMap map[string]string

// Get returns the value of key, matching the key case-insensitively when the page
// spelled it differently ("OG:Title").
func (t TagMap) Get(key string) string {
	if v, ok := t[key]; ok {
		return v
	}
	// Several spellings of one key are possible; pick one deterministically.
	match := ""
	for k := range t {
		if strings.EqualFold(k, key) && (match == "" || k < match) {
			match = k
		}
	}
	return t[match]
}

// First returns the first non-empty value among keys.
func (t TagMap) First(keys ...string) string {
	for _, key := range keys {
		if v := t.Get(key); v != "" {
			return v
		}
	}
	return ""
}

// Usable reports whether the map holds at least one non-empty tag.
func (t TagMap) Usable() bool {
	for _, v := range t {
		if v != "" {
			return true
		}
	}
	return false
}

// SongMeta is the canonical metadata record for a resolved link.
type SongMeta struct {
	OriginalURL string  `json:"original_url"`
	ResolvedURL string  `json:"resolved_url"`
	Service     Service `json:"service"`
	Kind        Kind    `json:"kind"`
	TrackID     string  `json:"track_id,omitempty"`
	AlbumID     string  `json:"album_id,omitempty"`
	AccessKey   string  `json:"access_key,omitempty"`

	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	Year        string `json:"year,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	Description string `json:"description,omitempty"`

	YandexURL string `json:"yandex_url,omitempty"`
	MTSURL    string `json:"mts_url,omitempty"`
	VKURL     string `json:"vk_url,omitempty"`

	RawTags TagMap `json:"raw_tags"`
}

// Resolver defines the interface for resolving music links into metadata records.
type Resolver interface {
	// Resolve fetches the link and builds its metadata record.
	Resolve(ctx context.Context, url string) (*SongMeta, error)

	// CanResolve checks if the link belongs to a supported service.
	CanResolve(url string) bool
}
