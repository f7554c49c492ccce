package ingest

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/renderinc/learnshare/internal/storage"
)

// BrowserOptions configures the headless-browser extractor.
type BrowserOptions struct {
	Headless bool
	// ExecPath points at a Chrome binary; empty uses chromedp's lookup.
	ExecPath          string
	UserAgent         string
	NavigationTimeout time.Duration
	Attempts          int
}

// BrowserExtractor renders pages in headless Chrome and reads them with in-page JavaScript.
type BrowserExtractor struct {
	opts BrowserOptions

	// newTab opens a target in an already running browser.
	newTab  func(browser context.Context) (context.Context, context.CancelFunc)
	backoff time.Duration
}

var _ Extractor = (*BrowserExtractor)(nil)

func NewBrowserExtractor(opts BrowserOptions) *BrowserExtractor {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}
	if opts.NavigationTimeout <= 0 {
		opts.NavigationTimeout = 30 * time.Second
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 3
	}
	return &BrowserExtractor{
		opts: opts,
		newTab: func(browser context.Context) (context.Context, context.CancelFunc) {
			return chromedp.NewContext(browser)
		},
		backoff: time.Second,
	}
}

// allocatorOptions hides the usual automation fingerprints.
func (b *BrowserExtractor) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", b.opts.Headless),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(b.opts.UserAgent),
		chromedp.WindowSize(1920, 1080),
		chromedp.Flag("disable-extensions", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("no-first-run", true),
		chromedp.Flag("no-default-browser-check", true),
	)
	if b.opts.Headless {
		opts = append(opts, chromedp.Flag("disable-gpu", true))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

// rawPage is the object returned by extractPageJS
type rawPage struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Author      string   `json:"author"`
	PublishDate string   `json:"publishDate"`
	SiteName    string   `json:"siteName"`
	Image       string   `json:"image"`
	Text        string   `json:"text"`
	Topics      []string `json:"topics"`
	Keywords    []string `json:"keywords"`
}

const extractPageJS = `
(function() {
	const meta = (sel) => {
		const el = document.querySelector(sel);
		return (el && el.getAttribute('content') || '').trim();
	};
	const root = document.querySelector('article') || document.body;
	const text = root ? root.innerText.replace(/\s+/g, ' ').trim() : '';

	const keywords = [];
	const seen = new Set();
	const add = (s) => {
		s = (s || '').replace(/\s+/g, ' ').trim();
		if (s && !seen.has(s)) { seen.add(s); keywords.push(s); }
	};
	meta('meta[name="keywords"]').split(',').forEach(add);
	document.querySelectorAll('h1, h2, h3, strong, b').forEach(el => add(el.textContent));

	const topics = [];
	document.querySelectorAll('meta[property="article:tag"]').forEach(el => {
		const v = (el.getAttribute('content') || '').trim();
		if (v) topics.push(v);
	});

	return {
		title: document.title || '',
		description: meta('meta[name="description"]') || meta('meta[property="og:description"]'),
		author: meta('meta[name="author"]') || meta('meta[property="article:author"]'),
		publishDate: meta('meta[property="article:published_time"]'),
		siteName: meta('meta[property="og:site_name"]'),
		image: meta('meta[property="og:image"]'),
		text: text,
		topics: topics,
		keywords: keywords.slice(0, 50),
	};
})()
`

func (b *BrowserExtractor) Extract(ctx context.Context, link string, typ storage.ContentType) (*Extraction, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, b.allocatorOptions()...)
	defer allocCancel()

	// The first Run on a context starts the browser, and a deadline on that
	// Run would kill it. Start it here without one; attempts get their own tab.
	browserCtx, browserCancel := chromedp.NewContext(allocCtx)
	defer browserCancel()
	if err := chromedp.Run(browserCtx); err != nil {
		return nil, fmt.Errorf("start browser: %w", err)
	}

	page, err := b.retry(ctx, browserCtx, link, b.load)
	if err != nil {
		return nil, err
	}
	return page.extraction(link, typ), nil
}

// retry runs load up to Attempts times, each in a fresh tab bounded by the
// navigation timeout, backing off 1s, 2s, ... between attempts.
func (b *BrowserExtractor) retry(ctx, browserCtx context.Context, link string, load func(context.Context, string) (*rawPage, error)) (*rawPage, error) {
	var lastErr error
	for attempt := 0; attempt < b.opts.Attempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * b.backoff
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		page, err := b.attempt(browserCtx, link, load)
		if err == nil {
			return page, nil
		}
		lastErr = err
		log.Printf("[ingest] browser attempt %d/%d for %s failed: %v", attempt+1, b.opts.Attempts, link, err)
	}
	return nil, fmt.Errorf("browser scrape %s: %w", link, lastErr)
}

func (b *BrowserExtractor) attempt(browserCtx context.Context, link string, load func(context.Context, string) (*rawPage, error)) (*rawPage, error) {
	tabCtx, closeTab := b.newTab(browserCtx)
	defer closeTab()
	ctx, cancel := context.WithTimeout(tabCtx, b.opts.NavigationTimeout)
	defer cancel()
	return load(ctx, link)
}

func (b *BrowserExtractor) load(ctx context.Context, link string) (*rawPage, error) {
	var page rawPage
	err := chromedp.Run(ctx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{
			"Accept-Language": "en-US,en;q=0.9",
		}),
		chromedp.Navigate(link),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.Evaluate(extractPageJS, &page),
	)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

func (p *rawPage) extraction(link string, typ storage.ContentType) *Extraction {
	topics := p.Topics
	if topics == nil {
		topics = []string{}
	}
	keywords := p.Keywords
	if keywords == nil {
		keywords = []string{}
	}
	meta := storage.Metadata{
		"title":       p.Title,
		"description": p.Description,
		"author":      p.Author,
		"publishDate": p.PublishDate,
		"siteName":    p.SiteName,
		"mainImage":   p.Image,
		"readingTime": readingTime(p.Text),
		"topics":      topics,
		"url":         link,
		"type":        string(typ),
	}
	if p.Image != "" {
		meta["image"] = p.Image
	}
	return &Extraction{Text: p.Text, Metadata: meta, Keywords: keywords}
}
