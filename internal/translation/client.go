// Package translation provides the Translator backends: a LibreTranslate
// compatible HTTP client and an OpenAI chat-completion translator.
package translation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client talks to a LibreTranslate compatible /translate endpoint for a
// single source/target pair.
type Client struct {
	base   string
	http   *http.Client
	source string
	target string
	apiKey string
}

// ClientOption customises a Client.
type ClientOption func(*Client)

// WithAPIKey sends api_key with every request.
func WithAPIKey(key string) ClientOption { return func(c *Client) { c.apiKey = key } }

// WithHTTPClient overrides the HTTP client, mainly for tests.
func WithHTTPClient(h *http.Client) ClientOption { return func(c *Client) { c.http = h } }

// New returns a client for base (e.g. http://localhost:5000). An empty
// source means "auto".
func New(base, source, target string, timeout time.Duration, opts ...ClientOption) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	c := &Client{
		base:   strings.TrimRight(base, "/"),
		http:   &http.Client{Timeout: timeout},
		source: strings.TrimSpace(source),
		target: target,
	}
	if c.source == "" {
		c.source = "auto"
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Translate requests a single translation. Blank text is returned as is.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return text, nil
	}

	payload := map[string]any{
		"q":      text,
		"source": c.source,
		"target": c.target,
		"format": "text",
	}
	if c.apiKey != "" {
		payload["api_key"] = c.apiKey
	}

	b, _ := json.Marshal(payload)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/translate", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("translation http %d for target %s: %s", resp.StatusCode, c.target, strings.TrimSpace(string(msg)))
	}

	var lr struct {
		TranslatedText string `json:"translatedText"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return "", fmt.Errorf("decode translation response: %w", err)
	}
	return strings.TrimSpace(lr.TranslatedText), nil
}
