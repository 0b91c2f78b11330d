package sources

import (
	"context"
	"errors"
	"net/url"
	"reflect"
	"strings"
	"testing"

	"github.com/samvad-hq/samvad-page-archiver/pkg/httpclient"
)

// fakeResponse lets us stub the httpclient.Client interface.
type fakeResponse struct {
	body       []byte
	statusCode int
}

func (f fakeResponse) Body() []byte    { return f.body }
func (f fakeResponse) StatusCode() int { return f.statusCode }

// fakeHTTPClient returns canned responses per URL to avoid network calls.
type fakeHTTPClient struct {
	responses map[string]fakeResponse
	calls     []string
	headers   []map[string]string
}

func (f *fakeHTTPClient) Get(_ context.Context, url string, headers map[string]string) (httpclient.Response, error) {
	f.calls = append(f.calls, url)
	f.headers = append(f.headers, headers)
	resp, ok := f.responses[url]
	if !ok {
		return nil, errors.New("not found")
	}
	return resp, nil
}

func (f *fakeHTTPClient) Post(context.Context, string, []byte, map[string]string) (httpclient.Response, error) {
	return nil, errors.New("unexpected post")
}

func okResp(body string) fakeResponse { return fakeResponse{body: []byte(body), statusCode: 200} }

func TestSitemapFetcherURLSet(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://example.com/sitemap.xml": okResp(`<?xml version="1.0"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://example.com/a</loc></url>
  <url><loc>   </loc></url>
  <url><loc> https://example.com/b </loc></url>
</urlset>`),
	}}

	src := Source{
		ID:     "docs",
		Type:   TypeSitemap,
		URL:    "https://example.com/sitemap.xml",
		Config: map[string]any{ConfigUserAgentKey: "archiver/1.0"},
	}
	got, err := NewSitemapFetcher(client).Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	want := []string{"https://example.com/a", "https://example.com/b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("urls = %v want %v", got, want)
	}
	if client.headers[0]["User-Agent"] != "archiver/1.0" {
		t.Fatalf("source headers not forwarded: %v", client.headers[0])
	}
}

func TestSitemapFetcherFollowsIndexOnce(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://example.com/index.xml": okResp(`<sitemapindex>
  <sitemap><loc>https://example.com/s1.xml</loc></sitemap>
  <sitemap><loc>https://example.com/s2.xml</loc></sitemap>
</sitemapindex>`),
		"https://example.com/s1.xml": okResp(`<urlset><url><loc>https://example.com/1</loc></url></urlset>`),
		"https://example.com/s2.xml": okResp(`<urlset><url><loc>https://example.com/2</loc></url></urlset>`),
	}}

	src := Source{ID: "idx", Type: TypeSitemap, URL: "https://example.com/index.xml"}
	got, err := NewSitemapFetcher(client).Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch returned error: %v", err)
	}
	want := []string{"https://example.com/1", "https://example.com/2"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("urls = %v want %v", got, want)
	}
	if len(client.calls) != 3 {
		t.Fatalf("expected 3 requests, got %v", client.calls)
	}
}

func TestSitemapFetcherNon200(t *testing.T) {
	client := &fakeHTTPClient{responses: map[string]fakeResponse{
		"https://example.com/sitemap.xml": {body: []byte("nope"), statusCode: 503},
	}}
	src := Source{ID: "docs", Type: TypeSitemap, URL: "https://example.com/sitemap.xml"}
	_, err := NewSitemapFetcher(client).Fetch(context.Background(), src)
	if err == nil || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestExtractLinks(t *testing.T) {
	base, _ := url.Parse("https://example.com/blog/")
	html := []byte(`<html><body>
<a href="post-1">one</a>
<a href="/about#team">about</a>
<a href="#top">top</a>
<a href="mailto:hi@example.com">mail</a>
<a href="https://other.example/x">other</a>
<a href="HTTPS://EXAMPLE.COM/upper">upper</a>
<a>no href</a>
</body></html>`)

	got, err := extractLinks(html, base, false)
	if err != nil {
		t.Fatalf("extractLinks: %v", err)
	}
	want := []string{
		"https://example.com/blog/post-1",
		"https://example.com/about",
		"https://EXAMPLE.COM/upper",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("links = %v want %v", got, want)
	}

	cross, err := extractLinks(html, base, true)
	if err != nil {
		t.Fatalf("extractLinks: %v", err)
	}
	if len(cross) != 4 || cross[2] != "https://other.example/x" {
		t.Fatalf("cross host links = %v", cross)
	}
}

func TestResolveAppliesIncludeDedupeAndCap(t *testing.T) {
	src := Source{
		ID:      "pinned",
		Type:    TypeURLs,
		URL:     "https://example.com/docs/a",
		URLs:    []string{"https://example.com/docs/a", "https://example.com/blog/x", "https://example.com/docs/b", "https://example.com/docs/c"},
		Include: "/docs/",
		MaxURLs: 2,
	}

	got, err := Resolve(context.Background(), DefaultFetcherRegistry(&fakeHTTPClient{}), src)
	if err != nil {
		t.Fatalf("Resolve returned error: %v", err)
	}
	want := []string{"https://example.com/docs/a", "https://example.com/docs/b"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("urls = %v want %v", got, want)
	}
}

type stubFetcher struct{ id string }

func (s stubFetcher) ID() string { return s.id }
func (s stubFetcher) Fetch(context.Context, Source) ([]string, error) {
	return []string{"https://override.example/" + s.id}, nil
}

func TestFetcherRegistryPrefersID(t *testing.T) {
	reg := NewTypeFetcherRegistry(map[string]Fetcher{TypeURLs: NewURLListFetcher()}, stubFetcher{id: "Special"})

	f, err := reg.FetcherFor(Source{ID: "special", Type: TypeURLs})
	if err != nil {
		t.Fatalf("FetcherFor: %v", err)
	}
	if f.ID() != "Special" {
		t.Fatalf("expected id-specific fetcher, got %q", f.ID())
	}

	f, err = reg.FetcherFor(Source{ID: "other", Type: "URLS"})
	if err != nil {
		t.Fatalf("FetcherFor: %v", err)
	}
	if f.ID() != TypeURLs {
		t.Fatalf("expected type fetcher, got %q", f.ID())
	}

	if _, err := reg.FetcherFor(Source{ID: "x", Type: TypeSitemap}); err == nil {
		t.Fatalf("expected error for unregistered type")
	}
	if _, err := reg.FetcherFor(Source{Type: TypeURLs}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
