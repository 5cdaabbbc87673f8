package i18n

// englishMessages contains all English translations.
var englishMessages = map[string]string{
	// Field labels
	"label.service":      "Service",
	"label.kind":         "Kind",
	"label.title":        "Title",
	"label.artist":       "Artist",
	"label.album":        "Album",
	"label.year":         "Year",
	"label.cover":        "Cover",
	"label.track_id":     "Track ID",
	"label.album_id":     "Album ID",
	"label.access_key":   "Access key",
	"label.original_url": "Original URL",
	"label.resolved_url": "Resolved URL",
	"label.final_url":    "Final URL",
	"label.yandex_url":   "Yandex Music",
	"label.mts_url":      "MTS Music",
	"label.vk_url":       "VK Music",
	"label.tags":         "Meta tags",
	"label.no_tags":      "No meta tags found on the page.",
	"label.failure_kind": "Failure",
	"label.error":        "Error",

	// Services
	"service.yandex":  "Yandex Music",
	"service.vk":      "VK Music",
	"service.mts":     "MTS Music",
	"service.unknown": "unknown",

	// Link kinds
	"kind.track":    "track",
	"kind.album":    "album",
	"kind.playlist": "playlist",
	"kind.unknown":  "unknown",

	// Failure kinds
	"failure.network":       "network error",
	"failure.http":          "HTTP error",
	"failure.redirect_loop": "redirect loop",
	"failure.captcha":       "captcha page",
	"failure.unknown":       "unknown error",

	// Error messages
	"error.resolve_failed": "Could not resolve the link.",
	"error.captcha_hint":   "The service asked for a captcha. Open the link in a browser, solve it and try again.",
	"error.no_url":         "No link found in the input: %s",
}
