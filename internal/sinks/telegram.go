package sinks

import (
	"context"
	"fmt"
	"time"

	tele "gopkg.in/telebot.v4"

	"sift/internal/notify"
)

// Telegram forwards notifications to a chat via a bot.
type Telegram struct {
	bot     *tele.Bot
	chatID  int64
	enabled bool
}

func NewTelegram(token string, chatID int64, enabled bool) (*Telegram, error) {
	if !enabled || token == "" {
		return &Telegram{enabled: false}, nil
	}
	// No poller: this bot only sends.
	b, err := tele.NewBot(tele.Settings{Token: token, Synchronous: true})
	if err != nil {
		return nil, fmt.Errorf("telegram sink: %w", err)
	}
	return &Telegram{bot: b, chatID: chatID, enabled: true}, nil
}

func (s *Telegram) Name() string  { return "telegram" }
func (s *Telegram) Enabled() bool { return s.enabled && s.bot != nil && s.chatID != 0 }

func (s *Telegram) Send(ctx context.Context, n *notify.Notification) error {
	text := fmt.Sprintf("%s%s: %s\n%s", priorityPrefix(n.Priority), n.Source, n.Title, n.Body)

	done := make(chan error, 1)
	go func() {
		_, err := s.bot.Send(tele.ChatID(s.chatID), text, tele.NoPreview)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(sendTimeout):
		return fmt.Errorf("telegram sink: send timed out")
	}
}

func priorityPrefix(p notify.Priority) string {
	switch p {
	case notify.PriorityCritical:
		return "🚨 "
	case notify.PriorityHigh:
		return "⚠️ "
	default:
		return ""
	}
}
