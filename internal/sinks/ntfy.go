package sinks

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"strings"

	"sift/internal/notify"
)

// Ntfy pushes notifications to an ntfy topic.
type Ntfy struct {
	url     string
	enabled bool
	http    *http.Client
}

func NewNtfy(url string, enabled bool) *Ntfy {
	return &Ntfy{
		url:     url,
		enabled: enabled,
		http: &http.Client{
			// Self-signed certs are common on the local network.
			Transport: &http.Transport{TLSClientConfig: &tls.Config{InsecureSkipVerify: true}},
		},
	}
}

func (s *Ntfy) Name() string  { return "ntfy" }
func (s *Ntfy) Enabled() bool { return s.enabled && s.url != "" }

func (s *Ntfy) Send(ctx context.Context, n *notify.Notification) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, strings.NewReader(n.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Title", sanitizeHeader(n.Source+": "+n.Title))
	req.Header.Set("Priority", ntfyPriority(n.Priority))
	req.Header.Set("Tags", n.Source)
	if n.ActionURL != "" {
		req.Header.Set("Click", n.ActionURL)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ntfy: status %d", resp.StatusCode)
	}
	return nil
}

// ntfy accepts min/low/default/high/urgent.
func ntfyPriority(p notify.Priority) string {
	switch p {
	case notify.PriorityCritical:
		return "urgent"
	case notify.PriorityHigh:
		return "high"
	default:
		return "default"
	}
}

// sanitizeHeader drops non-ASCII runes; HTTP header values must be ASCII.
func sanitizeHeader(v string) string {
	return strings.Map(func(r rune) rune {
		if r > 127 || r < 32 {
			return -1
		}
		return r
	}, v)
}
