package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	logx "sift/pkg/logx"
)

const (
	defaultTimeout      = 300 * time.Second // slow local models
	defaultProbeTimeout = 5 * time.Second
	probeCacheTTL       = time.Minute
)

// ClientConfig configures the Ollama-backed capability.
type ClientConfig struct {
	URL          string // e.g. http://127.0.0.1:11434
	Model        string // e.g. qwen2.5:7b
	Timeout      time.Duration
	ProbeTimeout time.Duration
}

// Client implements Capability against the Ollama generate API.
type Client struct {
	cfg  ClientConfig
	http *http.Client
	log  logx.Logger

	mu        sync.Mutex
	available bool
	probedAt  time.Time
}

func NewClient(cfg ClientConfig, log logx.Logger) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = defaultProbeTimeout
	}
	cfg.URL = strings.TrimRight(cfg.URL, "/")
	return &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout},
		log:  log,
	}
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Options generateOptions `json:"options"`
}

type generateOptions struct {
	NumPredict int `json:"num_predict"`
}

type generateResponse struct {
	Response string `json:"response"`
}

func (c *Client) Generate(ctx context.Context, prompt string, maxTokens int) (string, error) {
	if maxTokens <= 0 {
		maxTokens = 256
	}
	body, err := json.Marshal(generateRequest{
		Model:   c.cfg.Model,
		Prompt:  prompt,
		Stream:  false,
		Options: generateOptions{NumPredict: maxTokens},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("judge: generate returned %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("judge: decode response: %w", err)
	}
	return out.Response, nil
}

// Available answers from a short-lived cache; an expired cache triggers a
// fresh probe. Keeps the hot path from paying a probe per notification.
func (c *Client) Available(ctx context.Context) bool {
	c.mu.Lock()
	if time.Since(c.probedAt) < probeCacheTTL {
		v := c.available
		c.mu.Unlock()
		return v
	}
	c.mu.Unlock()
	return c.Probe(ctx)
}

// Probe performs a liveness check against the tags endpoint and refreshes
// the availability cache.
func (c *Client) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.ProbeTimeout)
	defer cancel()

	ok := false
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.URL+"/api/tags", http.NoBody)
	if err == nil {
		resp, err := c.http.Do(req)
		if err == nil {
			ok = resp.StatusCode == http.StatusOK
			_ = resp.Body.Close()
		}
	}

	c.mu.Lock()
	prev := c.available
	c.available = ok
	c.probedAt = time.Now()
	c.mu.Unlock()

	if ok != prev {
		c.log.Info("judge availability changed", logx.Bool("available", ok), logx.String("url", c.cfg.URL))
	}
	return ok
}
