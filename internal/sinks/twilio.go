package sinks

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"sift/internal/notify"
)

const smsLimit = 160

// Twilio forwards notifications as carrier SMS via the Twilio Messages API.
// The most expensive sink, which is exactly why the pipeline upstream is so
// aggressive about dropping noise.
type Twilio struct {
	accountSID string
	authToken  string
	from       string
	to         string
	enabled    bool
	http       *http.Client
}

func NewTwilio(accountSID, authToken, from, to string, enabled bool) *Twilio {
	return &Twilio{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		to:         to,
		enabled:    enabled,
		http:       &http.Client{},
	}
}

func (s *Twilio) Name() string  { return "twilio" }
func (s *Twilio) Enabled() bool { return s.enabled && s.accountSID != "" }

func (s *Twilio) Send(ctx context.Context, n *notify.Notification) error {
	text := formatSMS(n)

	form := url.Values{}
	form.Set("From", s.from)
	form.Set("To", s.to)
	form.Set("Body", text)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", s.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.SetBasicAuth(s.accountSID, s.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("twilio: status %d", resp.StatusCode)
	}
	return nil
}

// formatSMS prefixes source and title, truncating the body to fit a single
// SMS segment.
func formatSMS(n *notify.Notification) string {
	prefix := n.Source + ": " + n.Title + "\n"
	maxBody := smsLimit - len(prefix)
	if maxBody < 0 {
		maxBody = 0
	}
	return prefix + truncateRunes(n.Body, maxBody)
}
