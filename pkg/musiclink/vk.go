package musiclink

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

const (
	// VKAPIHost is the canonical VK API host.
	VKAPIHost = "api.vk.com"
	// VKAPIVersion is the API version the response parsing is written against.
	VKAPIVersion = "5.199"
	// VKRequestTimeout is the timeout for VK API requests.
	VKRequestTimeout = 15 * time.Second
	// vkMaxResponseSize limits how much of an API response is read.
	vkMaxResponseSize = 2 << 20
	// vkMinCoverWidth is the smallest playlist thumb accepted as a cover.
	vkMinCoverWidth = 600
)

// VKItem is the subset of a VK track or playlist the record is enriched with.
type VKItem struct {
	Title    string
	Artist   string
	Album    string
	CoverURL string
	Year     string
}

// VKAPI is the read surface of the VK API used for enrichment.
type VKAPI interface {
	Track(ctx context.Context, token, trackID, accessKey string) (*VKItem, error)
	Playlist(ctx context.Context, token, playlistID, accessKey string) (*VKItem, error)
}

// VKConfig holds VK API client settings.
type VKConfig struct {
	// APIHost may point at an alternative address of the API (for example an IP);
	// requests still present themselves as api.vk.com.
	APIHost string
	// Endpoint overrides the full method base URL (https://<host>/method).
	Endpoint string
	Version  string
	Timeout  time.Duration
}

// VKClient calls the VK API over HTTPS.
type VKClient struct {
	client   *http.Client
	endpoint string
	hostHdr  string
	version  string
	logger   *zap.Logger
}

// NewVKClient creates a VK API client.
func NewVKClient(config VKConfig, logger *zap.Logger) *VKClient {
	if config.APIHost == "" {
		config.APIHost = VKAPIHost
	}
	if config.Version == "" {
		config.Version = VKAPIVersion
	}
	if config.Timeout <= 0 {
		config.Timeout = VKRequestTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	endpoint := config.Endpoint
	if endpoint == "" {
		endpoint = "https://" + config.APIHost + "/method"
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	hostHdr := ""
	if config.APIHost != VKAPIHost {
		hostHdr = VKAPIHost
		transport.TLSClientConfig = &tls.Config{ServerName: VKAPIHost, MinVersion: tls.VersionTLS12}
	}

	return &VKClient{
		client: &http.Client{
			Timeout:   config.Timeout,
			Transport: transport,
		},
		endpoint: strings.TrimRight(endpoint, "/"),
		hostHdr:  hostHdr,
		version:  config.Version,
		logger:   logger,
	}
}

// Track fetches a track by its "<owner>_<id>" id.
func (c *VKClient) Track(ctx context.Context, token, trackID, accessKey string) (*VKItem, error) {
	audios := trackID
	if accessKey != "" {
		audios += "_" + accessKey
	}
	resp, err := c.call(ctx, "audio.getById", url.Values{"audios": {audios}}, token)
	if err != nil {
		return nil, err
	}

	items := resp
	if resp.IsObject() {
		items = resp.Get("items")
	}
	item := items.Get("0")
	if !item.Exists() {
		return nil, fmt.Errorf("%w: track %s", ErrVKNotFound, trackID)
	}

	cover := item.Get("album.thumb.photo_1200").String()
	if cover == "" {
		cover = item.Get("album.thumb.photo_600").String()
	}

	return &VKItem{
		Title:    item.Get("title").String(),
		Artist:   vkArtists(item),
		Album:    item.Get("album.title").String(),
		CoverURL: cover,
		Year:     normalizeYear(firstNonEmpty(item, "album.year", "album.release_year", "year", "date")),
	}, nil
}

// Playlist fetches an album or playlist by its "<owner>_<id>" id in one call;
// the tracks it contains are not enriched individually.
func (c *VKClient) Playlist(ctx context.Context, token, playlistID, accessKey string) (*VKItem, error) {
	owner, id, ok := strings.Cut(playlistID, "_")
	if !ok || owner == "" || id == "" {
		return nil, fmt.Errorf("vk: playlist id %q is not <owner>_<id>", playlistID)
	}

	params := url.Values{
		"owner_id":      {owner},
		"playlist_id":   {id},
		"need_playlist": {"1"},
	}
	if accessKey != "" {
		params.Set("access_key", accessKey)
	}

	resp, err := c.call(ctx, "audio.getPlaylistById", params, token)
	if err != nil {
		return nil, err
	}

	// Depending on the token, the playlist is nested or is the response itself.
	playlist := resp.Get("playlist")
	if !playlist.Exists() {
		playlist = resp
	}
	if !playlist.Get("title").Exists() {
		return nil, fmt.Errorf("%w: playlist %s", ErrVKNotFound, playlistID)
	}

	cover := playlist.Get(fmt.Sprintf("thumbs.#(width>=%d).url", vkMinCoverWidth)).String()
	if cover == "" {
		cover = firstNonEmpty(playlist, "photo.photo_1200", "photo.photo_600", "photo.photo_300", "photo.photo_270")
	}

	title := playlist.Get("title").String()
	return &VKItem{
		Title:    title,
		Artist:   vkArtists(playlist),
		Album:    title,
		CoverURL: cover,
		Year:     normalizeYear(playlist.Get("year").String()),
	}, nil
}

func (c *VKClient) call(ctx context.Context, method string, params url.Values, token string) (gjson.Result, error) {
	form := url.Values{}
	for k, v := range params {
		form[k] = v
	}
	form.Set("access_token", token)
	form.Set("v", c.version)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/"+method,
		strings.NewReader(form.Encode()))
	if err != nil {
		return gjson.Result{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.hostHdr != "" {
		req.Host = c.hostHdr
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return gjson.Result{}, fmt.Errorf("vk %s: %w", method, err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return gjson.Result{}, &VKAPIError{Method: method, StatusCode: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, vkMaxResponseSize))
	if err != nil {
		return gjson.Result{}, fmt.Errorf("vk %s: failed to read response body: %w", method, err)
	}
	if !gjson.ValidBytes(body) {
		return gjson.Result{}, fmt.Errorf("vk %s: invalid JSON response", method)
	}

	if apiErr := gjson.GetBytes(body, "error"); apiErr.Exists() {
		return gjson.Result{}, &VKAPIError{
			Method:  method,
			Code:    int(apiErr.Get("error_code").Int()),
			Message: apiErr.Get("error_msg").String(),
		}
	}

	return gjson.GetBytes(body, "response"), nil
}

// vkArtists joins main_artists names, falling back to the flat artist field.
func vkArtists(item gjson.Result) string {
	var names []string
	for _, name := range item.Get("main_artists.#.name").Array() {
		if n := strings.TrimSpace(name.String()); n != "" {
			names = append(names, n)
		}
	}
	if len(names) > 0 {
		return strings.Join(names, ", ")
	}
	return strings.TrimSpace(item.Get("artist").String())
}

func firstNonEmpty(item gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := item.Get(path); v.Exists() && v.String() != "" && v.String() != "0" {
			return v.String()
		}
	}
	return ""
}

// Enrichment outcomes passed to an EnrichObserver.
const (
	EnrichOK        = "ok"
	EnrichAuthError = "auth_error"
	EnrichAPIError  = "api_error"
)

// EnrichObserver is told the outcome of every API call the enricher makes.
type EnrichObserver func(status string)

// Enricher fills missing VK record fields from the VK API.
type Enricher struct {
	api      VKAPI
	logger   *zap.Logger
	observer EnrichObserver
}

// EnricherOption configures an Enricher.
type EnricherOption func(*Enricher)

// WithEnrichObserver reports enrichment outcomes, e.g. to metrics.
func WithEnrichObserver(observer EnrichObserver) EnricherOption {
	return func(e *Enricher) {
		e.observer = observer
	}
}

// NewEnricher creates a VK enricher.
func NewEnricher(api VKAPI, logger *zap.Logger, opts ...EnricherOption) *Enricher {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Enricher{
		api:    api,
		logger: logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Enricher) observe(status string) {
	if e.observer != nil {
		e.observer(status)
	}
}

// NeedsEnrichment reports whether Enrich would call the API for meta.
func NeedsEnrichment(meta SongMeta, token string) bool {
	if meta.Service != ServiceVK || token == "" {
		return false
	}
	if meta.Title != "" && meta.Artist != "" {
		return false
	}
	switch meta.Kind {
	case KindTrack:
		return strings.Contains(meta.TrackID, "_")
	case KindAlbum, KindPlaylist:
		return strings.Contains(meta.AlbumID, "_")
	}
	return false
}

// Enrich merges API fields into meta without overwriting fields already set from
// the page tags. It is best-effort: any API failure returns meta unchanged.
func (e *Enricher) Enrich(ctx context.Context, meta SongMeta, token string) SongMeta {
	if !NeedsEnrichment(meta, token) {
		return meta
	}

	var (
		item *VKItem
		err  error
	)
	if meta.Kind == KindTrack {
		item, err = e.api.Track(ctx, token, meta.TrackID, meta.AccessKey)
	} else {
		item, err = e.api.Playlist(ctx, token, meta.AlbumID, meta.AccessKey)
	}
	if err != nil {
		var apiErr *VKAPIError
		if errors.As(err, &apiErr) && apiErr.IsAuthError() {
			e.observe(EnrichAuthError)
			e.logger.Warn("VK token rejected, skipping enrichment",
				zap.String("url", meta.OriginalURL), zap.Error(err))
		} else {
			e.observe(EnrichAPIError)
			e.logger.Warn("VK enrichment failed",
				zap.String("url", meta.OriginalURL), zap.Error(err))
		}
		return meta
	}

	e.observe(EnrichOK)
	e.logger.Debug("Enriched record from VK API", zap.String("url", meta.OriginalURL))
	return mergeVKItem(meta, item)
}

func mergeVKItem(meta SongMeta, item *VKItem) SongMeta {
	if item == nil {
		return meta
	}
	if meta.Title == "" {
		meta.Title = item.Title
	}
	if meta.Artist == "" {
		meta.Artist = item.Artist
	}
	if meta.Album == "" {
		meta.Album = item.Album
	}
	if meta.CoverURL == "" {
		meta.CoverURL = item.CoverURL
	}
	if meta.Year == "" {
		meta.Year = item.Year
	}
	return meta
}

// LoadVKToken returns the VK access token: an explicit value wins, otherwise the
// JSON token file ({"access_token": ..., "expiry": ...}) is read. A missing file or
// an expired token yields nil without error.
func LoadVKToken(explicit, path string) (*oauth2.Token, error) {
	if explicit = strings.TrimSpace(explicit); explicit != "" {
		return &oauth2.Token{AccessToken: explicit}, nil
	}
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read VK token file: %w", err)
	}

	var token oauth2.Token
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, fmt.Errorf("failed to decode VK token file: %w", err)
	}
	if !token.Valid() {
		return nil, nil
	}
	return &token, nil
}
