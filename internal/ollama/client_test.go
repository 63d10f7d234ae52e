package ollama

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestStream_DeliversDeltasInOrder(t *testing.T) {
	var gotReq GenerateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/generate" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fmt.Fprintln(w, `{"model":"m","created_at":"t","response":"你","done":false}`)
		fmt.Fprintln(w, `{"model":"m","created_at":"t","response":"好","done":true}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "m", "translate this")

	var b strings.Builder
	for d := range deltas {
		b.WriteString(d)
	}
	if err := <-errs; err != nil {
		t.Fatalf("stream error: %v", err)
	}
	if b.String() != "你好" {
		t.Fatalf("deltas = %q, want 你好", b.String())
	}

	// request body policy
	if gotReq.Model != "m" || gotReq.Prompt != "translate this" || !gotReq.Stream {
		t.Fatalf("unexpected request: %+v", gotReq)
	}
	if gotReq.Options.Temperature != 0.3 {
		t.Fatalf("temperature = %v, want 0.3", gotReq.Options.Temperature)
	}
	if gotReq.Options.NumPredict == nil || *gotReq.Options.NumPredict != 2000 {
		t.Fatalf("num_predict = %v, want 2000", gotReq.Options.NumPredict)
	}
}

func TestStream_NotFoundYieldsModelNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "missing", "p")

	for range deltas {
		t.Fatal("no deltas should be delivered on 404")
	}
	err := <-errs
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindModelNotFound {
		t.Fatalf("expected model not found, got %v", err)
	}
}

func TestStream_UpstreamErrorBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprintln(w, `{"error":"invalid options"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "m", "p")
	for range deltas {
	}
	err := <-errs
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindUpstream || de.Message != "invalid options" {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestStream_MidStreamErrorFragment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"partial","done":false}`)
		fmt.Fprintln(w, `{"error":"model crashed"}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "m", "p")

	var got []string
	for d := range deltas {
		got = append(got, d)
	}
	if len(got) != 1 || got[0] != "partial" {
		t.Fatalf("partial text before the error must be delivered, got %v", got)
	}
	err := <-errs
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindUpstream {
		t.Fatalf("expected upstream error, got %v", err)
	}
}

func TestStream_OversizedLineYieldsInvalidResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"response":"ok","done":false}`)
		// one NDJSON line past the decoder's limit
		fmt.Fprintf(w, `{"response":"%s","done":false}`+"\n", strings.Repeat("a", maxLineBytes+1))
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "m", "p")
	for range deltas {
	}
	err := <-errs
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindInvalidResponse {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestStream_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // nothing listening anymore

	c := NewClient(srv.URL)
	deltas, errs := c.Stream(context.Background(), "m", "p")
	for range deltas {
	}
	err := <-errs
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindConnectionRefused {
		t.Fatalf("expected connection refused, got %v", err)
	}
	if de.Hint() == "" {
		t.Fatal("connection refused must carry a recovery hint")
	}
}

func TestStream_Cancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f := w.(http.Flusher)
		fmt.Fprintln(w, `{"response":"first","done":false}`)
		f.Flush()
		<-r.Context().Done()
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c := NewClient(srv.URL)
	deltas, errs := c.Stream(ctx, "m", "p")

	select {
	case d := <-deltas:
		if d != "first" {
			t.Fatalf("delta = %q", d)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for first delta")
	}

	cancel()
	for range deltas {
	}
	err := <-errs
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestListModels(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/tags" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		fmt.Fprintln(w, `{"models":[{"name":"llama3","modified_at":"t"},{"name":"qwen2","modified_at":"t"}]}`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	names, err := c.ListModels(context.Background())
	if err != nil {
		t.Fatalf("list models: %v", err)
	}
	if len(names) != 2 || names[0] != "llama3" || names[1] != "qwen2" {
		t.Fatalf("names = %v", names)
	}
}

func TestListModels_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `not json at all`)
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	_, err := c.ListModels(context.Background())
	var de *Error
	if !errors.As(err, &de) || de.Kind != KindInvalidResponse {
		t.Fatalf("expected invalid response, got %v", err)
	}
}

func TestResolveBaseURL(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"", DefaultBaseURL},
		{"   ", DefaultBaseURL},
		{"\t\n", DefaultBaseURL},
		{"not a url", DefaultBaseURL},
		{"localhost:11434", DefaultBaseURL}, // no scheme
		{"http://", DefaultBaseURL},         // no host
		{"http://localhost:11434", "http://localhost:11434"},
		{"https://ollama.lan:11434", "https://ollama.lan:11434"},
	}
	for _, tc := range cases {
		if got := ResolveBaseURL(tc.in); got != tc.want {
			t.Fatalf("ResolveBaseURL(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
