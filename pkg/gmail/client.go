// Package gmail is a minimal client for the Gmail REST API covering what the
// importer needs: OAuth token refresh, message listing, full message fetch,
// and labeling a message as processed.
package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"
)

const (
	defaultBaseURL  = "https://gmail.googleapis.com/gmail/v1"
	defaultTokenURL = "https://oauth2.googleapis.com/token"

	// Refresh a little before the token actually expires.
	tokenExpirySlack = 60 * time.Second
)

// Client defines the Gmail operations used by the importer.
type Client interface {
	// RefreshAccessToken obtains a fresh access token via the refresh-token
	// grant. Every list/fetch call refreshes implicitly when needed; callers
	// may invoke it up front to fail fast on bad credentials.
	RefreshAccessToken(ctx context.Context) (string, error)
	ListMessages(ctx context.Context, query string, limit int) ([]MessageRef, error)
	FetchMessage(ctx context.Context, id string) (*Message, error)
	// MarkProcessed removes UNREAD and applies the processed label so the
	// message does not come back on the next run's query.
	MarkProcessed(ctx context.Context, id string) error
}

// Option configures the client.
type Option func(*httpClient)

// WithBaseURL overrides the default API base URL.
func WithBaseURL(u string) Option {
	return func(c *httpClient) { c.baseURL = u }
}

// WithTokenURL overrides the OAuth token endpoint.
func WithTokenURL(u string) Option {
	return func(c *httpClient) { c.tokenURL = u }
}

// WithHTTPClient overrides the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) { c.http = hc }
}

// WithProcessedLabel sets the label applied by MarkProcessed.
func WithProcessedLabel(labelID string) Option {
	return func(c *httpClient) { c.processedLabel = labelID }
}

// WithRateLimit sets a per-second rate limit for API calls.
func WithRateLimit(rps float64) Option {
	return func(c *httpClient) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), max(int(rps), 1))
		}
	}
}

type httpClient struct {
	clientID       string
	clientSecret   string
	refreshToken   string
	processedLabel string
	baseURL        string
	tokenURL       string
	http           *http.Client
	limiter        *rate.Limiter

	token       string
	tokenExpiry time.Time
}

// NewClient creates a Gmail client for the given OAuth credentials.
func NewClient(clientID, clientSecret, refreshToken string, opts ...Option) Client {
	c := &httpClient{
		clientID:       clientID,
		clientSecret:   clientSecret,
		refreshToken:   refreshToken,
		processedLabel: "IMPORTED",
		baseURL:        defaultBaseURL,
		tokenURL:       defaultTokenURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

func (c *httpClient) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	return c.limiter.Wait(ctx)
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"`
}

func (c *httpClient) RefreshAccessToken(ctx context.Context) (string, error) {
	form := url.Values{
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.tokenURL, bytes.NewBufferString(form.Encode()))
	if err != nil {
		return "", eris.Wrap(err, "gmail: create token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", eris.Wrap(err, "gmail: refresh token")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", eris.Wrap(err, "gmail: read token response")
	}
	if resp.StatusCode != http.StatusOK {
		return "", eris.Errorf("gmail: token refresh status %d: %s", resp.StatusCode, string(body))
	}

	var tok tokenResponse
	if err := json.Unmarshal(body, &tok); err != nil {
		return "", eris.Wrap(err, "gmail: unmarshal token response")
	}
	if tok.AccessToken == "" {
		return "", eris.New("gmail: token response missing access_token")
	}

	c.token = tok.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tok.ExpiresIn) * time.Second)
	return c.token, nil
}

// ensureToken refreshes the access token when absent or near expiry.
func (c *httpClient) ensureToken(ctx context.Context) error {
	if c.token != "" && time.Until(c.tokenExpiry) > tokenExpirySlack {
		return nil
	}
	_, err := c.RefreshAccessToken(ctx)
	return err
}

// get performs an authenticated GET and decodes the JSON response into out.
func (c *httpClient) get(ctx context.Context, path string, out any) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "gmail: rate limit")
	}
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return eris.Wrap(err, "gmail: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("gmail: get %s", path))
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return eris.Wrap(err, "gmail: read response")
	}
	if resp.StatusCode != http.StatusOK {
		return eris.Errorf("gmail: get %s status %d: %s", path, resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return eris.Wrap(err, "gmail: unmarshal response")
	}
	return nil
}

type listResponse struct {
	Messages []MessageRef `json:"messages"`
}

func (c *httpClient) ListMessages(ctx context.Context, query string, limit int) ([]MessageRef, error) {
	path := "/users/me/messages?q=" + url.QueryEscape(query)
	if limit > 0 {
		path += "&maxResults=" + strconv.Itoa(limit)
	}

	var out listResponse
	if err := c.get(ctx, path, &out); err != nil {
		return nil, eris.Wrap(err, "gmail: list messages")
	}
	return out.Messages, nil
}

func (c *httpClient) FetchMessage(ctx context.Context, id string) (*Message, error) {
	var msg Message
	if err := c.get(ctx, "/users/me/messages/"+url.PathEscape(id)+"?format=full", &msg); err != nil {
		return nil, eris.Wrap(err, fmt.Sprintf("gmail: fetch message %s", id))
	}
	return &msg, nil
}

type modifyRequest struct {
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
}

func (c *httpClient) MarkProcessed(ctx context.Context, id string) error {
	if err := c.wait(ctx); err != nil {
		return eris.Wrap(err, "gmail: rate limit")
	}
	if err := c.ensureToken(ctx); err != nil {
		return err
	}

	payload, err := json.Marshal(modifyRequest{
		AddLabelIDs:    []string{c.processedLabel},
		RemoveLabelIDs: []string{"UNREAD"},
	})
	if err != nil {
		return eris.Wrap(err, "gmail: marshal modify request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/users/me/messages/"+url.PathEscape(id)+"/modify", bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "gmail: create modify request")
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return eris.Wrap(err, fmt.Sprintf("gmail: mark processed %s", id))
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return eris.Errorf("gmail: mark processed %s status %d: %s", id, resp.StatusCode, string(body))
	}
	return nil
}
