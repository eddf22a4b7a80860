// File: internal/infra/adapters/ai/gemini.go
package ai

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/proxy"
	"google.golang.org/genai"
)

// Generator is the raw single-prompt surface of the AI provider. The rotating
// client drives it with whichever credential slot it has claimed; tests swap
// in a fake service.
type Generator interface {
	Generate(ctx context.Context, credential, model, prompt string) (string, error)
}

var _ Generator = (*GeminiGenerator)(nil)

// GeminiGenerator talks to the Gemini API using the official SDK, one client
// per credential, optionally through a forward proxy.
type GeminiGenerator struct {
	mu      sync.Mutex
	clients map[string]*genai.Client

	baseURL    string
	maxOut     int
	httpClient *http.Client
}

func NewGeminiGenerator(baseURL string, maxOut int, proxyURL string, timeout time.Duration) (*GeminiGenerator, error) {
	hc, err := proxyHTTPClient(proxyURL, timeout)
	if err != nil {
		return nil, err
	}
	return &GeminiGenerator{
		clients:    make(map[string]*genai.Client),
		baseURL:    baseURL,
		maxOut:     maxOut,
		httpClient: hc,
	}, nil
}

func (g *GeminiGenerator) Generate(ctx context.Context, credential, model, prompt string) (string, error) {
	client, err := g.clientFor(ctx, credential)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{
		Role:  genai.RoleUser,
		Parts: []*genai.Part{{Text: prompt}},
	}}
	cfg := &genai.GenerateContentConfig{
		// Low temperature for more deterministic judgments.
		Temperature:     genai.Ptr[float32](0.1),
		MaxOutputTokens: int32(g.maxOut),
	}

	resp, err := client.Models.GenerateContent(ctx, model, contents, cfg)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	if resp != nil {
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part != nil && part.Text != "" {
					b.WriteString(part.Text)
				}
			}
		}
	}
	return strings.TrimSpace(b.String()), nil
}

// clientFor lazily builds and caches a genai client per credential.
func (g *GeminiGenerator) clientFor(ctx context.Context, credential string) (*genai.Client, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.clients[credential]; ok {
		return c, nil
	}
	cfg := &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: g.baseURL,
		},
	}
	if g.httpClient != nil {
		cfg.HTTPClient = g.httpClient
	}
	c, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	g.clients[credential] = c
	return c, nil
}

// proxyHTTPClient builds an http.Client routed through the configured forward
// proxy. Empty proxyURL means direct connection (nil client, SDK default).
func proxyHTTPClient(proxyURL string, timeout time.Duration) (*http.Client, error) {
	if proxyURL == "" {
		return nil, nil
	}
	u, err := url.Parse(proxyURL)
	if err != nil {
		return nil, fmt.Errorf("parse proxy url: %w", err)
	}

	var tr *http.Transport
	switch strings.ToLower(u.Scheme) {
	case "socks5", "socks5h":
		var auth *proxy.Auth
		if u.User != nil {
			pass, _ := u.User.Password()
			auth = &proxy.Auth{User: u.User.Username(), Password: pass}
		}
		dialer, err := proxy.SOCKS5("tcp", u.Host, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("socks5 proxy: %w", err)
		}
		cd, ok := dialer.(proxy.ContextDialer)
		if !ok {
			return nil, fmt.Errorf("socks5 proxy: dialer lacks context support")
		}
		tr = &http.Transport{DialContext: cd.DialContext}
	case "http", "https":
		tr = &http.Transport{Proxy: http.ProxyURL(u)}
	default:
		return nil, fmt.Errorf("proxy scheme %q not supported", u.Scheme)
	}
	return &http.Client{Transport: tr, Timeout: timeout}, nil
}

// isQuota reports whether the provider rejected the call for rate/quota
// reasons, which makes the attempt retryable on another credential.
func isQuota(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "429") || strings.Contains(msg, "RESOURCE_EXHAUSTED")
}

// isModelNotFound reports a 404 for the requested model, which means the
// caller should advance to the next configured model.
func isModelNotFound(err error) bool {
	if err == nil {
		return false
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "404") || strings.Contains(msg, "NOT_FOUND")
}
