package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/renderinc/learnshare/internal/storage"
)

// DefaultUserAgent is sent with static fetches and by the headless browser.
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const wordsPerMinute = 200

// ArticleExtractor fetches a page over HTTP and parses it with goquery.
type ArticleExtractor struct {
	client    *http.Client
	userAgent string
}

func NewArticleExtractor(client *http.Client, userAgent string) *ArticleExtractor {
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &ArticleExtractor{client: client, userAgent: userAgent}
}

func (a *ArticleExtractor) Extract(ctx context.Context, link string) (*Extraction, error) {
	doc, err := a.fetch(ctx, link)
	if err != nil {
		return nil, err
	}
	return ParseArticle(doc), nil
}

// PageContext returns the page's title, description and meta keywords as a
// JSON object.
func (a *ArticleExtractor) PageContext(ctx context.Context, link string) (string, error) {
	doc, err := a.fetch(ctx, link)
	if err != nil {
		return "", err
	}
	data, err := json.Marshal(map[string]string{
		"title":       strings.TrimSpace(doc.Find("title").First().Text()),
		"description": metaContent(doc, `meta[name="description"]`),
		"keywords":    metaContent(doc, `meta[name="keywords"]`),
	})
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func (a *ArticleExtractor) fetch(ctx context.Context, link string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", a.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("fetch %s: status %d", link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// ParseArticle extracts text, metadata and keywords from a parsed page.
func ParseArticle(doc *goquery.Document) *Extraction {
	body := doc.Find("article")
	if body.Length() == 0 {
		body = doc.Find("body")
	}
	body.Find("script, style, noscript").Remove()
	text := collapseSpace(body.Text())

	meta := storage.Metadata{
		"title":       strings.TrimSpace(doc.Find("title").First().Text()),
		"description": metaContent(doc, `meta[name="description"]`, `meta[property="og:description"]`),
		"author":      metaContent(doc, `meta[name="author"]`, `meta[property="article:author"]`),
		"publishDate": metaContent(doc, `meta[property="article:published_time"]`),
		"siteName":    metaContent(doc, `meta[property="og:site_name"]`),
		"mainImage":   metaContent(doc, `meta[property="og:image"]`),
		"readingTime": readingTime(text),
		"topics":      topics(doc),
	}
	if img := meta.String("mainImage"); img != "" {
		meta["image"] = img
	}

	return &Extraction{Text: text, Metadata: meta, Keywords: pageKeywords(doc)}
}

func metaContent(doc *goquery.Document, selectors ...string) string {
	for _, sel := range selectors {
		if v, ok := doc.Find(sel).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

func topics(doc *goquery.Document) []string {
	out := []string{}
	doc.Find(`meta[property="article:tag"]`).Each(func(_ int, s *goquery.Selection) {
		if v := strings.TrimSpace(s.AttrOr("content", "")); v != "" {
			out = append(out, v)
		}
	})
	return out
}

// pageKeywords collects meta keywords, h1-h3 headings and bold text, in page order.
func pageKeywords(doc *goquery.Document) []string {
	seen := map[string]bool{}
	out := []string{}
	add := func(s string) {
		s = collapseSpace(s)
		if s == "" || seen[s] {
			return
		}
		seen[s] = true
		out = append(out, s)
	}

	if kw, ok := doc.Find(`meta[name="keywords"]`).First().Attr("content"); ok {
		for _, k := range strings.Split(kw, ",") {
			add(k)
		}
	}
	doc.Find("h1, h2, h3").Each(func(_ int, s *goquery.Selection) { add(s.Text()) })
	doc.Find("strong, b").Each(func(_ int, s *goquery.Selection) { add(s.Text()) })
	return out
}

func readingTime(text string) int {
	words := len(strings.Fields(text))
	if words == 0 {
		return 0
	}
	return int(math.Ceil(float64(words) / wordsPerMinute))
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
