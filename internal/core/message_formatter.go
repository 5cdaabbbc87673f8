package core

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"songmeta/internal/i18n"
	"songmeta/pkg/musiclink"
)

// FormatText renders a record as a localized field listing followed by the raw tags.
func FormatText(meta *musiclink.SongMeta, localizer *i18n.Localizer) string {
	var b strings.Builder

	writeField := func(key, value string) {
		if value != "" {
			fmt.Fprintf(&b, "%s: %s\n", localizer.T(key), value)
		}
	}

	writeField("label.service", localizer.T("service."+string(meta.Service)))
	writeField("label.kind", localizer.T("kind."+string(meta.Kind)))
	writeField("label.title", meta.Title)
	writeField("label.artist", meta.Artist)
	writeField("label.album", meta.Album)
	writeField("label.year", meta.Year)
	writeField("label.cover", meta.CoverURL)
	writeField("label.track_id", meta.TrackID)
	writeField("label.album_id", meta.AlbumID)
	writeField("label.access_key", meta.AccessKey)
	writeField("label.original_url", meta.OriginalURL)
	writeField("label.resolved_url", meta.ResolvedURL)
	writeField("label.yandex_url", meta.YandexURL)
	writeField("label.mts_url", meta.MTSURL)
	writeField("label.vk_url", meta.VKURL)

	if len(meta.RawTags) == 0 {
		fmt.Fprintf(&b, "%s\n", localizer.T("label.no_tags"))
		return b.String()
	}

	fmt.Fprintf(&b, "%s:\n", localizer.T("label.tags"))
	keys := make([]string, 0, len(meta.RawTags))
	for key := range meta.RawTags {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		fmt.Fprintf(&b, "  %s = %s\n", key, meta.RawTags[key])
	}

	return b.String()
}

// FormatJSON renders a record as indented UTF-8 JSON without HTML escaping.
func FormatJSON(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("failed to encode JSON: %w", err)
	}
	return buf.String(), nil
}

// ErrorReport is the machine-readable form of a failed resolution.
type ErrorReport struct {
	OriginalURL string `json:"original_url"`
	FinalURL    string `json:"final_url,omitempty"`
	Error       string `json:"error"`
	Kind        string `json:"kind"`
}

// NewErrorReport describes err for the user, keeping the URLs when it is a *musiclink.ResolveError.
func NewErrorReport(originalURL string, err error) ErrorReport {
	report := ErrorReport{
		OriginalURL: originalURL,
		Error:       err.Error(),
		Kind:        musiclink.FailureUnknown,
	}
	var resolveErr *musiclink.ResolveError
	if errors.As(err, &resolveErr) {
		report.FinalURL = resolveErr.FinalURL
		report.Kind = resolveErr.Kind()
		report.Error = resolveErr.Err.Error()
	}
	return report
}

// FormatErrorText renders a failed resolution for the terminal.
func FormatErrorText(report ErrorReport, localizer *i18n.Localizer) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", localizer.T("error.resolve_failed"))
	fmt.Fprintf(&b, "%s: %s\n", localizer.T("label.original_url"), report.OriginalURL)
	if report.FinalURL != "" {
		fmt.Fprintf(&b, "%s: %s\n", localizer.T("label.final_url"), report.FinalURL)
	}
	fmt.Fprintf(&b, "%s: %s\n", localizer.T("label.failure_kind"), localizer.T("failure."+report.Kind))
	fmt.Fprintf(&b, "%s: %s\n", localizer.T("label.error"), report.Error)
	if report.Kind == musiclink.FailureCaptcha {
		fmt.Fprintf(&b, "%s\n", localizer.T("error.captcha_hint"))
	}
	return b.String()
}
