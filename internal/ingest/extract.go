// Package ingest turns a captured link into a stored, embedded Content row.
package ingest

import (
	"context"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/renderinc/learnshare/internal/storage"
)

// Extraction is what an Extractor learned about a link.
type Extraction struct {
	Text     string
	Metadata storage.Metadata
	Keywords []string
}

// Extractor pulls text and metadata out of a link.
type Extractor interface {
	Extract(ctx context.Context, link string, typ storage.ContentType) (*Extraction, error)
}

// Router dispatches a link to the extractor that fits its type and host.
type Router struct {
	oembed  *OEmbedExtractor
	article *ArticleExtractor
	browser Extractor
}

var _ Extractor = (*Router)(nil)

// RouterOptions configures NewRouter. A nil Browser disables the headless fallback.
type RouterOptions struct {
	HTTPClient *http.Client
	UserAgent  string
	Browser    Extractor
	// OEmbedEndpoints overrides the per-platform oEmbed endpoints.
	OEmbedEndpoints map[string]string
}

func NewRouter(opts RouterOptions) *Router {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &Router{
		oembed:  NewOEmbedExtractor(client, opts.OEmbedEndpoints),
		article: NewArticleExtractor(client, opts.UserAgent),
		browser: opts.Browser,
	}
}

func (r *Router) Extract(ctx context.Context, link string, typ storage.ContentType) (*Extraction, error) {
	if typ == storage.TypeImage {
		return &Extraction{
			Metadata: storage.Metadata{"platform": "image", "url": link, "type": string(typ)},
			Keywords: []string{},
		}, nil
	}

	switch typ {
	case storage.TypeVideo, storage.TypeAudio:
		if platform := PlatformOf(link); platform != "" {
			return r.oembed.Extract(ctx, link, platform)
		}
	case storage.TypeArticle:
		ex, err := r.article.Extract(ctx, link)
		if err == nil && strings.TrimSpace(ex.Text) != "" {
			return ex, nil
		}
		if r.browser == nil {
			return ex, err
		}
		if err != nil {
			log.Printf("[ingest] static fetch of %s failed, using browser: %v", link, err)
		}
	}

	if r.browser == nil {
		return &Extraction{
			Metadata: storage.Metadata{"url": link, "type": string(typ)},
			Keywords: []string{},
		}, nil
	}
	return r.browser.Extract(ctx, link, typ)
}

// PageContext fetches link statically and summarizes its head. Failures are
// logged and yield "".
func (r *Router) PageContext(ctx context.Context, link string) string {
	pc, err := r.article.PageContext(ctx, link)
	if err != nil {
		log.Printf("[ingest] page context for %s: %v", link, err)
		return ""
	}
	return pc
}

// PlatformOf names the media platform hosting link, or "".
func PlatformOf(link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	host := strings.ToLower(u.Hostname())
	switch {
	case hostIs(host, "youtube.com"), hostIs(host, "youtu.be"):
		return "youtube"
	case hostIs(host, "vimeo.com"):
		return "vimeo"
	case hostIs(host, "soundcloud.com"):
		return "soundcloud"
	case hostIs(host, "spotify.com"):
		return "spotify"
	}
	return ""
}

func hostIs(host, domain string) bool {
	return host == domain || strings.HasSuffix(host, "."+domain)
}
