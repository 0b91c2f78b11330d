package sources

import (
	"context"
	"encoding/xml"
	"fmt"
	"strings"
)

// sitemapFetcher reads <loc> entries from a urlset, following one level of sitemapindex.
type sitemapFetcher struct {
	client HTTPClient
}

// NewSitemapFetcher builds a fetcher for XML sitemaps.
func NewSitemapFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &sitemapFetcher{client: client}
}

func (f *sitemapFetcher) ID() string { return TypeSitemap }

func (f *sitemapFetcher) Fetch(ctx context.Context, src Source) ([]string, error) {
	if !strings.EqualFold(src.Type, TypeSitemap) {
		return nil, fmt.Errorf("sitemap fetcher received incompatible source type %q", src.Type)
	}
	if strings.TrimSpace(src.URL) == "" {
		return nil, fmt.Errorf("sitemap source %q url is empty", src.ID)
	}

	headers := Headers(src)

	raw, err := download(ctx, f.client, src.URL, src.ID, "sitemap", headers)
	if err != nil {
		return nil, err
	}

	doc, err := parseSitemap(raw)
	if err != nil {
		return nil, fmt.Errorf("decode sitemap: %w", err)
	}

	urls := doc.locs()
	for _, child := range doc.children() {
		childRaw, err := download(ctx, f.client, child, src.ID, "child sitemap", headers)
		if err != nil {
			return nil, err
		}
		childDoc, err := parseSitemap(childRaw)
		if err != nil {
			return nil, fmt.Errorf("decode child sitemap %s: %w", child, err)
		}
		urls = append(urls, childDoc.locs()...)
	}

	if len(urls) == 0 {
		return nil, fmt.Errorf("%s sitemap returned no records", src.ID)
	}
	return urls, nil
}

type sitemapLoc struct {
	Loc string `xml:"loc"`
}

// sitemapDoc covers both <urlset> and <sitemapindex> roots.
type sitemapDoc struct {
	XMLName  xml.Name
	URLs     []sitemapLoc `xml:"url"`
	Sitemaps []sitemapLoc `xml:"sitemap"`
}

func parseSitemap(data []byte) (sitemapDoc, error) {
	var doc sitemapDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		return sitemapDoc{}, err
	}
	return doc, nil
}

func (d sitemapDoc) locs() []string {
	return trimLocs(d.URLs)
}

func (d sitemapDoc) children() []string {
	return trimLocs(d.Sitemaps)
}

func trimLocs(entries []sitemapLoc) []string {
	out := make([]string, 0, len(entries))
	for _, entry := range entries {
		if loc := strings.TrimSpace(entry.Loc); loc != "" {
			out = append(out, loc)
		}
	}
	return out
}
