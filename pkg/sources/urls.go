package sources

import (
	"context"
	"fmt"
	"strings"
)

// urlListFetcher returns the URLs listed in the source config verbatim.
type urlListFetcher struct{}

func NewURLListFetcher() Fetcher { return urlListFetcher{} }

func (urlListFetcher) ID() string { return TypeURLs }

func (urlListFetcher) Fetch(_ context.Context, src Source) ([]string, error) {
	if !strings.EqualFold(src.Type, TypeURLs) {
		return nil, fmt.Errorf("url list fetcher received incompatible source type %q", src.Type)
	}
	out := make([]string, 0, len(src.URLs)+1)
	if src.URL != "" {
		out = append(out, src.URL)
	}
	out = append(out, src.URLs...)
	if len(out) == 0 {
		return nil, fmt.Errorf("source %q lists no urls", src.ID)
	}
	return out, nil
}
