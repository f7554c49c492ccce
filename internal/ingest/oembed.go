package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/renderinc/learnshare/internal/storage"
)

// DefaultOEmbedEndpoints are the public oEmbed endpoints per platform.
var DefaultOEmbedEndpoints = map[string]string{
	"youtube":    "https://www.youtube.com/oembed",
	"vimeo":      "https://vimeo.com/api/oembed.json",
	"soundcloud": "https://soundcloud.com/oembed",
	"spotify":    "https://open.spotify.com/oembed",
}

// OEmbedExtractor reads title, author and thumbnail from a platform's oEmbed endpoint.
type OEmbedExtractor struct {
	client    *http.Client
	endpoints map[string]string
}

func NewOEmbedExtractor(client *http.Client, overrides map[string]string) *OEmbedExtractor {
	endpoints := make(map[string]string, len(DefaultOEmbedEndpoints))
	for k, v := range DefaultOEmbedEndpoints {
		endpoints[k] = v
	}
	for k, v := range overrides {
		endpoints[k] = v
	}
	return &OEmbedExtractor{client: client, endpoints: endpoints}
}

type oembedResponse struct {
	Title        string  `json:"title"`
	AuthorName   string  `json:"author_name"`
	ProviderName string  `json:"provider_name"`
	ThumbnailURL string  `json:"thumbnail_url"`
	Description  string  `json:"description"`
	Duration     float64 `json:"duration"`
	UploadDate   string  `json:"upload_date"`
}

func (o *OEmbedExtractor) Extract(ctx context.Context, link, platform string) (*Extraction, error) {
	endpoint, ok := o.endpoints[platform]
	if !ok {
		return nil, fmt.Errorf("no oembed endpoint for %s", platform)
	}

	q := url.Values{}
	q.Set("url", link)
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("oembed %s: %w", platform, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("oembed %s returned %d: %s", platform, resp.StatusCode, body)
	}

	var data oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, fmt.Errorf("decode oembed: %w", err)
	}

	meta := storage.Metadata{
		"platform":     platform,
		"title":        data.Title,
		"author":       data.AuthorName,
		"thumbnailUrl": data.ThumbnailURL,
		"image":        data.ThumbnailURL,
		"url":          link,
	}
	if data.Duration > 0 {
		meta["duration"] = data.Duration
	}
	if data.UploadDate != "" {
		meta["publishDate"] = data.UploadDate
	}

	keywords := []string{}
	if data.AuthorName != "" {
		keywords = append(keywords, data.AuthorName)
	}
	return &Extraction{Text: data.Description, Metadata: meta, Keywords: keywords}, nil
}
