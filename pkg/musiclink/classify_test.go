package musiclink

import (
	"testing"
)

func TestClassify(t *testing.T) {
	t.Helper()

	tests := []struct {
		name     string
		url      string
		expected LinkClassification
	}{
		{
			name: "Yandex album track",
			url:  "https://music.yandex.ru/album/123/track/456",
			expected: LinkClassification{
				Service: ServiceYandex, Kind: KindTrack, AlbumID: "123", TrackID: "456",
			},
		},
		{
			name: "Yandex album only",
			url:  "https://music.yandex.ru/album/123",
			expected: LinkClassification{
				Service: ServiceYandex, Kind: KindAlbum, AlbumID: "123",
			},
		},
		{
			name: "Yandex bare track",
			url:  "https://music.yandex.com/track/789?utm_source=share",
			expected: LinkClassification{
				Service: ServiceYandex, Kind: KindTrack, TrackID: "789",
			},
		},
		{
			name: "Yandex without scheme",
			url:  "music.yandex.ru/album/5",
			expected: LinkClassification{
				Service: ServiceYandex, Kind: KindAlbum, AlbumID: "5",
			},
		},
		{
			name: "Yandex landing page",
			url:  "https://music.yandex.ru/",
			expected: LinkClassification{
				Service: ServiceYandex, Kind: KindUnknown,
			},
		},
		{
			name: "MTS album track",
			url:  "https://music.mts.ru/album/42/track/7",
			expected: LinkClassification{
				Service: ServiceMTS, Kind: KindTrack, AlbumID: "42", TrackID: "7",
			},
		},
		{
			name: "MTS onelink with web deep link",
			url:  "https://mts-music.onelink.me/abcd?af_dp=https%3A%2F%2Fmusic.mts.ru%2Falbum%2F42%2Ftrack%2F7",
			expected: LinkClassification{
				Service: ServiceMTS, Kind: KindTrack, AlbumID: "42", TrackID: "7",
			},
		},
		{
			name: "MTS onelink with app deep link",
			url:  "https://mts-music.onelink.me/abcd?deep_link_value=mtsmusic%3A%2F%2Falbum%2F42",
			expected: LinkClassification{
				Service: ServiceMTS, Kind: KindAlbum, AlbumID: "42",
			},
		},
		{
			name: "MTS onelink without ids",
			url:  "https://mts-music.onelink.me/abcd",
			expected: LinkClassification{
				Service: ServiceMTS, Kind: KindUnknown,
			},
		},
		{
			name: "VK track",
			url:  "https://vk.com/audio-2001_123456",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindTrack, TrackID: "-2001_123456",
			},
		},
		{
			name: "VK track with key",
			url:  "https://vk.com/audio-2001_123456_abcdef",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindTrack, TrackID: "-2001_123456", AccessKey: "abcdef",
			},
		},
		{
			name: "VK music album",
			url:  "https://vk.com/music/album/-2000_555_key1",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindAlbum, AlbumID: "-2000_555", AccessKey: "key1",
			},
		},
		{
			name: "VK music playlist with access_key query",
			url:  "https://vk.ru/music/playlist/111_222?access_key=qkey",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindPlaylist, AlbumID: "111_222", AccessKey: "qkey",
			},
		},
		{
			name: "VK playlist in z parameter",
			url:  "https://vk.com/music?z=audio_playlist-147845620_2949%2Fab12",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindPlaylist, AlbumID: "-147845620_2949", AccessKey: "ab12",
			},
		},
		{
			name: "VK act parameter",
			url:  "https://m.vk.com/audio?act=audio_playlist1_2",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindPlaylist, AlbumID: "1_2",
			},
		},
		{
			name: "VK profile page is not music",
			url:  "https://vk.com/durov",
			expected: LinkClassification{
				Service: ServiceUnknown, Kind: KindUnknown,
			},
		},
		{
			name: "BOOM track",
			url:  "https://share.boom.ru/track/abc123/",
			expected: LinkClassification{
				Service: ServiceVK, Kind: KindTrack, TrackID: "abc123",
			},
		},
		{
			name: "Unknown host",
			url:  "https://open.spotify.com/track/123",
			expected: LinkClassification{
				Service: ServiceUnknown, Kind: KindUnknown,
			},
		},
		{
			name: "Empty input",
			url:  "",
			expected: LinkClassification{
				Service: ServiceUnknown, Kind: KindUnknown,
			},
		},
		{
			name: "Garbage input",
			url:  "not a url at all",
			expected: LinkClassification{
				Service: ServiceUnknown, Kind: KindUnknown,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Helper()
			got := Classify(tt.url)
			if got != tt.expected {
				t.Errorf("Classify(%q) = %+v, want %+v", tt.url, got, tt.expected)
			}
		})
	}
}

func TestClassify_Deterministic(t *testing.T) {
	t.Helper()

	url := "https://music.yandex.ru/album/1/track/2"
	first := Classify(url)
	for i := 0; i < 5; i++ {
		if got := Classify(url); got != first {
			t.Fatalf("Classify() run %d = %+v, want %+v", i, got, first)
		}
	}
}

func TestLinkClassification_HasIDs(t *testing.T) {
	t.Helper()

	if (LinkClassification{}).HasIDs() {
		t.Error("HasIDs() = true for empty classification")
	}
	if !(LinkClassification{AlbumID: "1"}).HasIDs() {
		t.Error("HasIDs() = false with album id")
	}
}
