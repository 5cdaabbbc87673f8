package musiclink

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

const vkTrackResponse = `{"response":[{
	"id": 2, "owner_id": -1,
	"title": "API Title",
	"artist": "Flat Artist",
	"main_artists": [{"name": "Main One"}, {"name": "Main Two"}],
	"album": {"title": "API Album", "year": 2018, "thumb": {"photo_600": "https://img/600.jpg"}}
}]}`

const vkPlaylistResponse = `{"response":{"playlist":{
	"title": "Playlist Title",
	"year": 2022,
	"main_artists": [{"name": "PL Artist"}],
	"thumbs": [{"width": 300, "url": "https://img/300.jpg"}, {"width": 1200, "url": "https://img/1200.jpg"}]
}}}`

func newVKTestServer(t *testing.T, calls *atomic.Int32, handler func(method string, r *http.Request) string) *VKClient {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if err := r.ParseForm(); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = fmt.Fprint(w, handler(filepath.Base(r.URL.Path), r))
	}))
	t.Cleanup(server.Close)

	return NewVKClient(VKConfig{Endpoint: server.URL + "/method", Timeout: 5 * time.Second}, nil)
}

func TestVKClient_Track(t *testing.T) {
	t.Helper()

	var calls atomic.Int32
	var gotAudios, gotToken, gotVersion string
	client := newVKTestServer(t, &calls, func(method string, r *http.Request) string {
		if method != "audio.getById" {
			return `{"error":{"error_code":3,"error_msg":"Unknown method passed"}}`
		}
		gotAudios = r.PostForm.Get("audios")
		gotToken = r.PostForm.Get("access_token")
		gotVersion = r.PostForm.Get("v")
		return vkTrackResponse
	})

	item, err := client.Track(context.Background(), "tok", "-1_2", "key")
	if err != nil {
		t.Fatalf("Track() error = %v", err)
	}
	if gotAudios != "-1_2_key" || gotToken != "tok" || gotVersion != VKAPIVersion {
		t.Errorf("request = (%q, %q, %q), want (-1_2_key, tok, %s)", gotAudios, gotToken, gotVersion, VKAPIVersion)
	}
	if item.Title != "API Title" {
		t.Errorf("Title = %q, want %q", item.Title, "API Title")
	}
	if item.Artist != "Main One, Main Two" {
		t.Errorf("Artist = %q, want %q", item.Artist, "Main One, Main Two")
	}
	if item.Album != "API Album" || item.Year != "2018" || item.CoverURL != "https://img/600.jpg" {
		t.Errorf("item = %+v, want album/year/cover from API", item)
	}
}

func TestVKClient_Playlist(t *testing.T) {
	t.Helper()

	var calls atomic.Int32
	var gotOwner, gotID, gotKey string
	client := newVKTestServer(t, &calls, func(_ string, r *http.Request) string {
		gotOwner = r.PostForm.Get("owner_id")
		gotID = r.PostForm.Get("playlist_id")
		gotKey = r.PostForm.Get("access_key")
		return vkPlaylistResponse
	})

	item, err := client.Playlist(context.Background(), "tok", "-2000_555", "abc")
	if err != nil {
		t.Fatalf("Playlist() error = %v", err)
	}
	if gotOwner != "-2000" || gotID != "555" || gotKey != "abc" {
		t.Errorf("request = (%q, %q, %q), want (-2000, 555, abc)", gotOwner, gotID, gotKey)
	}
	if item.Title != "Playlist Title" || item.Album != "Playlist Title" {
		t.Errorf("item = %+v, want playlist title", item)
	}
	if item.Artist != "PL Artist" || item.Year != "2022" {
		t.Errorf("item = %+v, want artist and year", item)
	}
	if item.CoverURL != "https://img/1200.jpg" {
		t.Errorf("CoverURL = %q, want %q", item.CoverURL, "https://img/1200.jpg")
	}
	if calls.Load() != 1 {
		t.Errorf("API calls = %d, want 1", calls.Load())
	}
}

func TestVKClient_APIError(t *testing.T) {
	t.Helper()

	var calls atomic.Int32
	client := newVKTestServer(t, &calls, func(string, *http.Request) string {
		return `{"error":{"error_code":5,"error_msg":"User authorization failed"}}`
	})

	_, err := client.Track(context.Background(), "bad", "-1_2", "")
	var apiErr *VKAPIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Track() error = %v, want *VKAPIError", err)
	}
	if !apiErr.IsAuthError() {
		t.Errorf("IsAuthError() = false for code %d", apiErr.Code)
	}
}

func TestVKClient_EmptyResponse(t *testing.T) {
	t.Helper()

	var calls atomic.Int32
	client := newVKTestServer(t, &calls, func(string, *http.Request) string {
		return `{"response":[]}`
	})

	_, err := client.Track(context.Background(), "tok", "-1_2", "")
	if !errors.Is(err, ErrVKNotFound) {
		t.Errorf("Track() error = %v, want ErrVKNotFound", err)
	}
}

type fakeVKAPI struct {
	item  *VKItem
	err   error
	calls int
}

func (f *fakeVKAPI) Track(_ context.Context, _, _, _ string) (*VKItem, error) {
	f.calls++
	return f.item, f.err
}

func (f *fakeVKAPI) Playlist(_ context.Context, _, _, _ string) (*VKItem, error) {
	f.calls++
	return f.item, f.err
}

func TestEnricher_Enrich(t *testing.T) {
	t.Helper()

	base := SongMeta{
		Service: ServiceVK,
		Kind:    KindTrack,
		TrackID: "-1_2",
		Title:   "Page Title",
	}

	tests := []struct {
		name           string
		meta           SongMeta
		token          string
		api            *fakeVKAPI
		expectedCalls  int
		expectedTitle  string
		expectedArtist string
	}{
		{
			name:           "Fills missing fields without overwriting",
			meta:           base,
			token:          "tok",
			api:            &fakeVKAPI{item: &VKItem{Title: "API Title", Artist: "API Artist"}},
			expectedCalls:  1,
			expectedTitle:  "Page Title",
			expectedArtist: "API Artist",
		},
		{
			name:          "Auth failure leaves record unchanged",
			meta:          base,
			token:         "tok",
			api:           &fakeVKAPI{err: &VKAPIError{Code: 5}},
			expectedCalls: 1,
			expectedTitle: "Page Title",
		},
		{
			name:          "No token means no call",
			meta:          base,
			token:         "",
			api:           &fakeVKAPI{item: &VKItem{Artist: "API Artist"}},
			expectedCalls: 0,
			expectedTitle: "Page Title",
		},
		{
			name: "Complete record means no call",
			meta: SongMeta{
				Service: ServiceVK, Kind: KindTrack, TrackID: "-1_2",
				Title: "T", Artist: "A",
			},
			token:          "tok",
			api:            &fakeVKAPI{item: &VKItem{Artist: "API Artist"}},
			expectedCalls:  0,
			expectedTitle:  "T",
			expectedArtist: "A",
		},
		{
			name: "Non-VK record is untouched",
			meta: SongMeta{
				Service: ServiceYandex, Kind: KindTrack, TrackID: "2",
			},
			token:         "tok",
			api:           &fakeVKAPI{item: &VKItem{Artist: "API Artist"}},
			expectedCalls: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			enricher := NewEnricher(tt.api, nil)
			got := enricher.Enrich(context.Background(), tt.meta, tt.token)
			if tt.api.calls != tt.expectedCalls {
				t.Errorf("API calls = %d, want %d", tt.api.calls, tt.expectedCalls)
			}
			if got.Title != tt.expectedTitle {
				t.Errorf("Title = %q, want %q", got.Title, tt.expectedTitle)
			}
			if got.Artist != tt.expectedArtist {
				t.Errorf("Artist = %q, want %q", got.Artist, tt.expectedArtist)
			}
		})
	}
}

func TestEnricher_Idempotent(t *testing.T) {
	t.Helper()

	api := &fakeVKAPI{item: &VKItem{Title: "API Title", Artist: "API Artist", Year: "2020"}}
	enricher := NewEnricher(api, nil)
	meta := SongMeta{Service: ServiceVK, Kind: KindAlbum, AlbumID: "-1_2"}

	once := enricher.Enrich(context.Background(), meta, "tok")
	twice := enricher.Enrich(context.Background(), once, "tok")

	if once.Title != twice.Title || once.Artist != twice.Artist || once.Year != twice.Year {
		t.Errorf("Enrich() second pass = %+v, want %+v", twice, once)
	}
	if api.calls != 1 {
		t.Errorf("API calls = %d, want 1", api.calls)
	}
}

func TestEnricher_Observer(t *testing.T) {
	t.Helper()

	var statuses []string
	api := &fakeVKAPI{err: &VKAPIError{Code: 15}}
	enricher := NewEnricher(api, nil, WithEnrichObserver(func(status string) {
		statuses = append(statuses, status)
	}))

	meta := SongMeta{Service: ServiceVK, Kind: KindTrack, TrackID: "-1_2"}
	enricher.Enrich(context.Background(), meta, "tok")

	api.err = errors.New("boom")
	enricher.Enrich(context.Background(), meta, "tok")

	api.err = nil
	api.item = &VKItem{Title: "T"}
	enricher.Enrich(context.Background(), meta, "tok")

	want := []string{EnrichAuthError, EnrichAPIError, EnrichOK}
	if len(statuses) != len(want) {
		t.Fatalf("statuses = %v, want %v", statuses, want)
	}
	for i := range want {
		if statuses[i] != want[i] {
			t.Errorf("statuses[%d] = %q, want %q", i, statuses[i], want[i])
		}
	}
}

func TestLoadVKToken(t *testing.T) {
	t.Helper()

	dir := t.TempDir()
	valid := filepath.Join(dir, "valid.json")
	expired := filepath.Join(dir, "expired.json")
	broken := filepath.Join(dir, "broken.json")

	future := time.Now().Add(time.Hour).UTC().Format(time.RFC3339)
	past := time.Now().Add(-time.Hour).UTC().Format(time.RFC3339)
	writeFile(t, valid, `{"access_token":"file-token","expiry":"`+future+`"}`)
	writeFile(t, expired, `{"access_token":"old","expiry":"`+past+`"}`)
	writeFile(t, broken, `{not json`)

	tests := []struct {
		name     string
		explicit string
		path     string
		expected string
		wantErr  bool
	}{
		{name: "Explicit token wins", explicit: "env-token", path: valid, expected: "env-token"},
		{name: "Valid file", path: valid, expected: "file-token"},
		{name: "Expired file", path: expired, expected: ""},
		{name: "Missing file", path: filepath.Join(dir, "none.json"), expected: ""},
		{name: "No source", expected: ""},
		{name: "Broken file", path: broken, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			token, err := LoadVKToken(tt.explicit, tt.path)
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadVKToken() error = %v, wantErr %v", err, tt.wantErr)
			}
			got := ""
			if token != nil {
				got = token.AccessToken
			}
			if got != tt.expected {
				t.Errorf("LoadVKToken() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
