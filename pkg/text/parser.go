// Package text extracts shared music links from free chat text (forwarded messages).
package text

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"songmeta/pkg/musiclink"
)

// MessageType classifies a piece of input text.
type MessageType int

const (
	// MessageTypeFreeText has no link.
	MessageTypeFreeText MessageType = iota
	// MessageTypeOtherLink has links, none of them to a supported music service.
	MessageTypeOtherLink
	// MessageTypeMusicLink has at least one supported music link.
	MessageTypeMusicLink
)

// Message is parsed input text.
type Message struct {
	Type MessageType
	Text string
	URLs []string
}

var (
	urlRegex        = regexp.MustCompile(`https?://\S+`)
	whitespaceRegex = regexp.MustCompile(`\s+`)

	// trailingPunctuation is trimmed from URLs that end a sentence or a quote.
	trailingPunctuation = ".,!?;:)]}»\"'"

	trackingParams = []string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content", "si"}
)

type Parser struct{}

func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) ParseMessage(text string) Message {
	text = p.normalizeText(text)
	urls := p.extractURLs(text)

	return Message{
		Type: p.classifyMessage(urls),
		Text: text,
		URLs: urls,
	}
}

// FirstLink returns the link to resolve from text: the first supported music link,
// else the first URL, else the text itself when it is a single scheme-less token
// ("music.yandex.ru/album/1").
func (p *Parser) FirstLink(text string) (string, bool) {
	msg := p.ParseMessage(text)
	for _, u := range msg.URLs {
		if musiclink.Classify(u).Service != musiclink.ServiceUnknown {
			return u, true
		}
	}
	if len(msg.URLs) > 0 {
		return msg.URLs[0], true
	}
	if msg.Text != "" && !strings.ContainsAny(msg.Text, " \t") && strings.Contains(msg.Text, ".") {
		return msg.Text, true
	}
	return "", false
}

func (p *Parser) normalizeText(text string) string {
	text = strings.TrimSpace(text)
	text = norm.NFKC.String(text)
	return strings.TrimSpace(whitespaceRegex.ReplaceAllString(text, " "))
}

func (p *Parser) extractURLs(text string) []string {
	matches := urlRegex.FindAllString(text, -1)
	var cleanURLs []string

	for _, match := range matches {
		cleanURL := p.cleanURL(match)
		if cleanURL != "" {
			cleanURLs = append(cleanURLs, cleanURL)
		}
	}

	return cleanURLs
}

// cleanURL trims trailing punctuation and drops tracking parameters. URLs without
// tracking parameters are returned unchanged so ids and keys keep their encoding.
func (p *Parser) cleanURL(rawURL string) string {
	rawURL = strings.TrimRight(rawURL, trailingPunctuation)

	if !strings.HasPrefix(rawURL, "http://") && !strings.HasPrefix(rawURL, "https://") {
		return ""
	}

	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return ""
	}

	q := u.Query()
	changed := false
	for _, param := range trackingParams {
		if q.Has(param) {
			q.Del(param)
			changed = true
		}
	}
	if !changed {
		return rawURL
	}

	u.RawQuery = q.Encode()
	return u.String()
}

func (p *Parser) classifyMessage(urls []string) MessageType {
	if len(urls) == 0 {
		return MessageTypeFreeText
	}
	for _, u := range urls {
		if musiclink.Classify(u).Service != musiclink.ServiceUnknown {
			return MessageTypeMusicLink
		}
	}
	return MessageTypeOtherLink
}
