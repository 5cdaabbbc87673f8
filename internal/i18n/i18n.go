// Package i18n provides localized labels for the human-readable output.
package i18n

import (
	"fmt"
	"slices"
)

const (
	// DefaultLanguage is used for unknown languages and for keys a catalog lacks.
	DefaultLanguage = "en"
	// RussianLanguage matches the catalogs' own language.
	RussianLanguage = "ru"
)

var catalogs = map[string]map[string]string{
	DefaultLanguage: englishMessages,
	RussianLanguage: russianMessages,
}

// Localizer renders labels in one language, falling back to English per key.
type Localizer struct {
	language string
	messages map[string]string
}

// NewLocalizer creates a localizer; unsupported languages get English.
func NewLocalizer(language string) *Localizer {
	messages, ok := catalogs[language]
	if !ok {
		language, messages = DefaultLanguage, englishMessages
	}
	return &Localizer{language: language, messages: messages}
}

// Language returns the language the localizer actually renders.
func (l *Localizer) Language() string {
	return l.language
}

// T looks up key and formats args into it. An unknown key is returned as is.
func (l *Localizer) T(key string, args ...any) string {
	message, ok := l.messages[key]
	if !ok {
		message, ok = englishMessages[key]
	}
	if !ok {
		return key
	}
	if len(args) == 0 {
		return message
	}
	return fmt.Sprintf(message, args...)
}

// GetSupportedLanguages returns the language codes with a catalog, default first.
func GetSupportedLanguages() []string {
	return []string{DefaultLanguage, RussianLanguage}
}

// IsSupported reports whether language has its own catalog.
func IsSupported(language string) bool {
	return slices.Contains(GetSupportedLanguages(), language)
}
