// Package twitter signs Twitter API calls with OAuth 1.0a user context.
package twitter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/dghubble/oauth1"
)

// DefaultAPIBaseURL hosts both the OAuth endpoints and the v2 API.
const DefaultAPIBaseURL = "https://api.twitter.com"

// Config holds the app credentials.
type Config struct {
	ConsumerKey    string
	ConsumerSecret string
	CallbackURL    string
	APIBaseURL     string
}

// Client talks to the Twitter API on behalf of users.
type Client struct {
	oauth   *oauth1.Config
	apiBase string
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.APIBaseURL, "/")
	if base == "" {
		base = DefaultAPIBaseURL
	}
	callback := cfg.CallbackURL
	if callback == "" {
		callback = "oob"
	}
	return &Client{
		oauth: &oauth1.Config{
			ConsumerKey:    cfg.ConsumerKey,
			ConsumerSecret: cfg.ConsumerSecret,
			CallbackURL:    callback,
			Endpoint: oauth1.Endpoint{
				RequestTokenURL: base + "/oauth/request_token",
				AuthorizeURL:    base + "/oauth/authorize",
				AccessTokenURL:  base + "/oauth/access_token",
			},
		},
		apiBase: base,
	}
}

// APIError is a non-2xx response from the v2 API
type APIError struct {
	Status int
	Detail string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("twitter api returned %d: %s", e.Status, e.Detail)
}

// RequestToken obtains a temporary request token for the handshake.
func (c *Client) RequestToken() (token, secret string, err error) {
	token, secret, err = c.oauth.RequestToken()
	if err != nil {
		return "", "", fmt.Errorf("request token: %w", err)
	}
	return token, secret, nil
}

// AuthorizationURL is where the user approves the request token.
func (c *Client) AuthorizationURL(requestToken string) (string, error) {
	u, err := c.oauth.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("authorization url: %w", err)
	}
	return u.String(), nil
}

// AccessToken exchanges an approved request token for user credentials.
func (c *Client) AccessToken(requestToken, requestSecret, verifier string) (token, secret string, err error) {
	token, secret, err = c.oauth.AccessToken(requestToken, requestSecret, verifier)
	if err != nil {
		return "", "", fmt.Errorf("access token: %w", err)
	}
	return token, secret, nil
}

// Tweet is a created tweet
type Tweet struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// User is the authenticated account
type User struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// PostTweet publishes text as the user owning token.
func (c *Client) PostTweet(ctx context.Context, token, secret, text string) (*Tweet, error) {
	body, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return nil, err
	}
	var out struct {
		Data Tweet `json:"data"`
	}
	if err := c.do(ctx, token, secret, http.MethodPost, "/2/tweets", body, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Me returns the account owning token.
func (c *Client) Me(ctx context.Context, token, secret string) (*User, error) {
	var out struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, token, secret, http.MethodGet, "/2/users/me", nil, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, token, secret, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	httpClient := c.oauth.Client(ctx, oauth1.NewToken(token, secret))
	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &APIError{Status: resp.StatusCode, Detail: errorDetail(respBody)}
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func errorDetail(body []byte) string {
	var e struct {
		Detail string `json:"detail"`
		Title  string `json:"title"`
	}
	if json.Unmarshal(body, &e) == nil {
		if e.Detail != "" {
			return e.Detail
		}
		if e.Title != "" {
			return e.Title
		}
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
