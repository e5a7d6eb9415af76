package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"sift/internal/notify"
)

// Bark pushes notifications to a Bark server (iOS push via APNs).
type Bark struct {
	url       string
	deviceKey string
	enabled   bool
	http      *http.Client
}

func NewBark(url, deviceKey string, enabled bool) *Bark {
	return &Bark{
		url:       strings.TrimRight(url, "/"),
		deviceKey: deviceKey,
		enabled:   enabled,
		http:      &http.Client{},
	}
}

func (s *Bark) Name() string  { return "bark" }
func (s *Bark) Enabled() bool { return s.enabled && s.deviceKey != "" }

type barkPayload struct {
	Title string `json:"title"`
	Body  string `json:"body"`
	Group string `json:"group"`
	Level string `json:"level"`
	URL   string `json:"url,omitempty"`
}

func (s *Bark) Send(ctx context.Context, n *notify.Notification) error {
	payload := barkPayload{
		Title: n.Source + ": " + n.Title,
		Body:  truncateRunes(n.Body, 256), // Bark has length limits
		Group: n.Source,
		Level: barkLevel(n.Priority),
		URL:   n.ActionURL,
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	// POST with JSON for better Unicode support than the GET path API.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url+"/"+s.deviceKey, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("bark: status %d", resp.StatusCode)
	}
	return nil
}

// Bark levels: active, timeSensitive, passive, critical.
func barkLevel(p notify.Priority) string {
	if p == notify.PriorityCritical {
		return "critical"
	}
	return "timeSensitive"
}

func truncateRunes(s string, n int) string {
	if len(s) <= n {
		return s
	}
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
