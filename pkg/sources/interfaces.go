package sources

import (
	"context"

	"github.com/samvad-hq/samvad-page-archiver/pkg/httpclient"
)

// Fetcher resolves a source into the URLs to capture.
// Concrete implementations live in type-specific files (e.g., sitemap.go).
type Fetcher interface {
	ID() string
	Fetch(ctx context.Context, src Source) ([]string, error)
}

// FetcherRegistry resolves the fetcher implementation for a given source.
type FetcherRegistry interface {
	FetcherFor(src Source) (Fetcher, error)
}

// HTTPClient aliases the shared httpclient.Client interface for clarity within sources.
type HTTPClient = httpclient.Client
