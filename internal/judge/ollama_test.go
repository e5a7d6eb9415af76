package judge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	logx "sift/pkg/logx"
)

func TestClientGenerate(t *testing.T) {
	var gotReq generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("path = %s", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotReq)
		_ = json.NewEncoder(w).Encode(generateResponse{Response: "SEND\nlooks important"})
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL + "/", Model: "qwen2.5:7b"}, logx.Nop())
	out, err := c.Generate(context.Background(), "decide", 128)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if out != "SEND\nlooks important" {
		t.Fatalf("response = %q", out)
	}
	if gotReq.Model != "qwen2.5:7b" || gotReq.Stream || gotReq.Options.NumPredict != 128 {
		t.Fatalf("request = %+v", gotReq)
	}
}

func TestClientGenerateErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Model: "m"}, logx.Nop())
	if _, err := c.Generate(context.Background(), "p", 10); err == nil {
		t.Fatalf("expected error for 500 status")
	}
}

func TestClientAvailabilityCache(t *testing.T) {
	probes := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/tags" {
			probes++
		}
	}))
	defer srv.Close()

	c := NewClient(ClientConfig{URL: srv.URL, Model: "m"}, logx.Nop())
	for i := 0; i < 5; i++ {
		if !c.Available(context.Background()) {
			t.Fatalf("call %d: not available", i)
		}
	}
	if probes != 1 {
		t.Fatalf("probes = %d, want 1 (cached)", probes)
	}
}

func TestClientProbeDownService(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // immediately unreachable

	c := NewClient(ClientConfig{URL: srv.URL, Model: "m"}, logx.Nop())
	if c.Probe(context.Background()) {
		t.Fatalf("probe of closed server succeeded")
	}
	if c.Available(context.Background()) {
		t.Fatalf("cached availability should be false")
	}
}
