package sinks

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"sift/internal/notify"
	logx "sift/pkg/logx"
)

type stubSink struct {
	name    string
	enabled bool
	err     error
	sent    int
}

func (s *stubSink) Name() string  { return s.name }
func (s *stubSink) Enabled() bool { return s.enabled }
func (s *stubSink) Send(context.Context, *notify.Notification) error {
	s.sent++
	return s.err
}

func testNote() *notify.Notification {
	return notify.New("messages", "Mum", "dinner tonight?", time.Now())
}

func TestDispatchReturnsAcceptingSinks(t *testing.T) {
	ok := &stubSink{name: "a", enabled: true}
	off := &stubSink{name: "b", enabled: false}
	broken := &stubSink{name: "c", enabled: true, err: errors.New("boom")}
	tail := &stubSink{name: "d", enabled: true}

	d := NewDispatcher([]Sink{ok, off, broken, tail}, 100, logx.Nop())
	accepted := d.Dispatch(context.Background(), testNote())

	if got, want := strings.Join(accepted, ","), "a,d"; got != want {
		t.Fatalf("accepted = %q, want %q", got, want)
	}
	if off.sent != 0 {
		t.Fatalf("disabled sink was called")
	}
	if broken.sent != 1 || tail.sent != 1 {
		t.Fatalf("failure stopped the fanout: broken=%d tail=%d", broken.sent, tail.sent)
	}
}

func TestDispatchHonorsContext(t *testing.T) {
	s := &stubSink{name: "a", enabled: true}
	d := NewDispatcher([]Sink{s}, 1, logx.Nop())

	// Drain the bucket, then cancel: Wait must bail instead of sleeping.
	d.limiter.AllowN(time.Now(), 1)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if accepted := d.Dispatch(ctx, testNote()); len(accepted) != 0 {
		t.Fatalf("accepted = %v", accepted)
	}
	if s.sent != 0 {
		t.Fatalf("sink called after cancellation")
	}
}

func TestConsoleSend(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(true)
	c.out = &buf

	if err := c.Send(context.Background(), testNote()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := "[NOTIFICATION] messages | Mum: dinner tonight?\n"
	if buf.String() != want {
		t.Fatalf("output = %q, want %q", buf.String(), want)
	}
}

func TestNtfySend(t *testing.T) {
	var gotReq *http.Request
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b := new(bytes.Buffer)
		_, _ = b.ReadFrom(r.Body)
		gotReq, gotBody = r, b.String()
	}))
	defer srv.Close()

	s := NewNtfy(srv.URL, true)
	n := testNote()
	n.Priority = notify.PriorityCritical
	n.ActionURL = "sms:+447700900123"
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotBody != "dinner tonight?" {
		t.Fatalf("body = %q", gotBody)
	}
	if got := gotReq.Header.Get("Title"); got != "messages: Mum" {
		t.Fatalf("title = %q", got)
	}
	if got := gotReq.Header.Get("Priority"); got != "urgent" {
		t.Fatalf("priority = %q", got)
	}
	if got := gotReq.Header.Get("Click"); got != "sms:+447700900123" {
		t.Fatalf("click = %q", got)
	}
}

func TestNtfySendErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewNtfy(srv.URL, true)
	if err := s.Send(context.Background(), testNote()); err == nil {
		t.Fatalf("expected error for non-200 status")
	}
}

func TestBarkSend(t *testing.T) {
	var gotPath string
	var payload barkPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	s := NewBark(srv.URL+"/", "devkey123", true)
	n := testNote()
	n.Priority = notify.PriorityCritical
	if err := s.Send(context.Background(), n); err != nil {
		t.Fatalf("Send: %v", err)
	}

	if gotPath != "/devkey123" {
		t.Fatalf("path = %q", gotPath)
	}
	if payload.Title != "messages: Mum" || payload.Level != "critical" || payload.Group != "messages" {
		t.Fatalf("payload = %+v", payload)
	}
}

func TestSinkEnabledGates(t *testing.T) {
	tests := []struct {
		name string
		sink Sink
		want bool
	}{
		{"ntfy without url", NewNtfy("", true), false},
		{"ntfy disabled", NewNtfy("https://ntfy.sh/x", false), false},
		{"ntfy on", NewNtfy("https://ntfy.sh/x", true), true},
		{"bark without key", NewBark("https://bark", "", true), false},
		{"twilio without sid", NewTwilio("", "", "", "", true), false},
		{"console off", NewConsole(false), false},
	}
	for _, tt := range tests {
		if got := tt.sink.Enabled(); got != tt.want {
			t.Fatalf("%s: Enabled = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFormatSMS(t *testing.T) {
	n := testNote()
	n.Body = strings.Repeat("x", 300)
	got := formatSMS(n)
	if len(got) > smsLimit {
		t.Fatalf("sms length = %d", len(got))
	}
	if !strings.HasPrefix(got, "messages: Mum\n") {
		t.Fatalf("sms = %q", got)
	}
}

func TestSanitizeHeader(t *testing.T) {
	if got := sanitizeHeader("messages: ⁨Bob⁩ says héllo"); got != "messages: Bob says hllo" {
		t.Fatalf("sanitized = %q", got)
	}
}

func TestNtfyPriorityMapping(t *testing.T) {
	tests := []struct {
		p    notify.Priority
		want string
	}{
		{notify.PriorityCritical, "urgent"},
		{notify.PriorityHigh, "high"},
		{notify.PriorityDefault, "default"},
	}
	for _, tt := range tests {
		if got := ntfyPriority(tt.p); got != tt.want {
			t.Fatalf("ntfyPriority(%s) = %q, want %q", tt.p, got, tt.want)
		}
	}
}
