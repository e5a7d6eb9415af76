package sinks

import (
	"context"
	"fmt"
	"io"
	"os"

	"sift/internal/notify"
)

// Console prints notifications to stdout. Used for local testing and as
// the default sink when nothing else is configured.
type Console struct {
	enabled bool
	out     io.Writer
}

func NewConsole(enabled bool) *Console {
	return &Console{enabled: enabled, out: os.Stdout}
}

func (c *Console) Name() string  { return "console" }
func (c *Console) Enabled() bool { return c.enabled }

func (c *Console) Send(_ context.Context, n *notify.Notification) error {
	_, err := fmt.Fprintf(c.out, "[NOTIFICATION] %s | %s: %s\n", n.Source, n.Title, n.Body)
	return err
}
