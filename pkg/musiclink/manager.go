package musiclink

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// Manager runs the resolution pipeline: classify, fetch, extract tags,
// normalize and, for VK links with a token, enrich from the API.
type Manager struct {
	fetcher  *Fetcher
	enricher *Enricher
	vkToken  string
	dumpPath string
	logger   *zap.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithEnricher enables VK API enrichment with the given token.
func WithEnricher(enricher *Enricher, token string) Option {
	return func(m *Manager) {
		m.enricher = enricher
		m.vkToken = token
	}
}

// WithHTMLDump writes the fetched page to path when it yields no usable tags.
func WithHTMLDump(path string) Option {
	return func(m *Manager) {
		m.dumpPath = path
	}
}

// WithLogger sets the manager logger.
func WithLogger(logger *zap.Logger) Option {
	return func(m *Manager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// NewManager creates a resolver around a page fetcher.
func NewManager(fetcher *Fetcher, opts ...Option) *Manager {
	m := &Manager{
		fetcher: fetcher,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve turns a shared link into its metadata record. A fetch failure is
// returned as *ResolveError and no partial record is produced.
func (m *Manager) Resolve(ctx context.Context, url string) (*SongMeta, error) {
	classification := Classify(url)
	m.logger.Debug("Classified link",
		zap.String("url", url),
		zap.String("service", string(classification.Service)),
		zap.String("kind", string(classification.Kind)))

	result, err := m.fetcher.Fetch(ctx, url)
	if err != nil {
		return nil, &ResolveError{
			OriginalURL: url,
			FinalURL:    attemptedURL(err),
			Err:         err,
		}
	}

	tags := ExtractTags(result.Body)
	if !tags.Usable() {
		m.logger.Warn("No usable meta tags found",
			zap.String("url", url),
			zap.String("final_url", result.FinalURL))
		m.dumpHTML(result.Body)
	}

	meta := Normalize(url, result.FinalURL, tags, classification)

	if m.enricher != nil && NeedsEnrichment(meta, m.vkToken) {
		meta = m.enricher.Enrich(ctx, meta, m.vkToken)
	}

	return &meta, nil
}

// CanResolve checks if the link belongs to a supported service.
func (m *Manager) CanResolve(url string) bool {
	return Classify(url).Service != ServiceUnknown
}

func (m *Manager) dumpHTML(body string) {
	if m.dumpPath == "" {
		return
	}
	if err := os.WriteFile(m.dumpPath, []byte(body), 0o600); err != nil {
		m.logger.Warn("Failed to write HTML dump", zap.String("path", m.dumpPath), zap.Error(err))
		return
	}
	m.logger.Info("Wrote HTML dump", zap.String("path", m.dumpPath))
}
