package sources

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxHTMLBodyBytes = 1 << 20 // 1 MiB
)

// pageLinksFetcher collects the anchors of a single HTML page.
type pageLinksFetcher struct {
	client HTTPClient
}

// NewPageLinksFetcher builds a fetcher that harvests <a href> links from a page.
func NewPageLinksFetcher(client HTTPClient) Fetcher {
	if client == nil {
		client = DefaultHTTPClient()
	}
	return &pageLinksFetcher{client: client}
}

func (f *pageLinksFetcher) ID() string { return TypePageLinks }

func (f *pageLinksFetcher) Fetch(ctx context.Context, src Source) ([]string, error) {
	if !strings.EqualFold(src.Type, TypePageLinks) {
		return nil, fmt.Errorf("page links fetcher received incompatible source type %q", src.Type)
	}
	base, err := url.Parse(strings.TrimSpace(src.URL))
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("page links source %q has invalid url %q", src.ID, src.URL)
	}

	body, err := download(ctx, f.client, base.String(), src.ID, "page", Headers(src))
	if err != nil {
		return nil, err
	}
	if len(body) > maxHTMLBodyBytes {
		body = body[:maxHTMLBodyBytes]
	}

	links, err := extractLinks(body, base, ConfigBool(src, ConfigCrossHostKey, false))
	if err != nil {
		return nil, err
	}
	if len(links) == 0 {
		return nil, fmt.Errorf("%s page returned no links", src.ID)
	}
	return links, nil
}

// extractLinks resolves every anchor against base, keeping http(s) links without fragments.
// Unless crossHost is set only links on base's host are kept.
func extractLinks(body []byte, base *url.URL, crossHost bool) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var out []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		ref, err := url.Parse(href)
		if err != nil {
			return
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return
		}
		if !crossHost && !strings.EqualFold(abs.Hostname(), base.Hostname()) {
			return
		}
		abs.Fragment = ""
		abs.RawFragment = ""
		out = append(out, abs.String())
	})

	return out, nil
}
