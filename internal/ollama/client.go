package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// DefaultBaseURL is the address used when the configured one is unusable.
const DefaultBaseURL = "http://localhost:11434"

// Sampling policy for the interactive translate path. Not user-configurable
// at this layer.
const (
	generateTemperature = 0.3
	generateNumPredict  = 2000
)

// GenerateRequest is the body of POST /api/generate. Immutable once built.
type GenerateRequest struct {
	Model   string  `json:"model"`
	Prompt  string  `json:"prompt"`
	Stream  bool    `json:"stream"`
	Options Options `json:"options"`
}

type Options struct {
	Temperature float64 `json:"temperature"`
	NumPredict  *int    `json:"num_predict"`
}

// ModelSummary is one entry of the GET /api/tags listing.
type ModelSummary struct {
	Name       string `json:"name"`
	ModifiedAt string `json:"modified_at"`
}

type tagsResponse struct {
	Models []ModelSummary `json:"models"`
}

// Client talks to a local Ollama server. It owns its HTTP connection pool;
// construct one per logical consumer and pass it around, there is no ambient
// singleton.
type Client struct {
	BaseURL string
	Client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: ResolveBaseURL(baseURL),
		// No global timeout: a generate stream can legitimately run for
		// minutes; the caller's context bounds each call.
		Client: &http.Client{},
	}
}

// ResolveBaseURL resolves the configured server address, falling back to
// DefaultBaseURL when the input is empty, whitespace, or not an absolute URL.
// It never fails; a well-formed absolute URL round-trips unchanged.
func ResolveBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBaseURL
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return DefaultBaseURL
	}
	return raw
}

// Stream issues a streaming generate request and republishes each fragment's
// response text as a delta. Both channels are closed when the stream ends.
// At most one error is sent: a *Error for transport/protocol failures, or the
// context error when the caller cancelled. Cancellation is checked before
// each fragment is forwarded.
func (c *Client) Stream(ctx context.Context, model, prompt string) (<-chan string, <-chan error) {
	deltas := make(chan string, 16)
	errs := make(chan error, 1)

	go func() {
		defer close(deltas)
		defer close(errs)

		np := generateNumPredict
		body, err := json.Marshal(GenerateRequest{
			Model:  model,
			Prompt: prompt,
			Stream: true,
			Options: Options{
				Temperature: generateTemperature,
				NumPredict:  &np,
			},
		})
		if err != nil {
			errs <- err
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/api/generate", bytes.NewReader(body))
		if err != nil {
			errs <- err
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.Client.Do(req)
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				errs <- cerr
				return
			}
			errs <- Classify(err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
			errs <- ClassifyStatus(resp.StatusCode, raw)
			return
		}

		dec := newFragmentDecoder(resp.Body)
		for {
			if cerr := ctx.Err(); cerr != nil {
				errs <- cerr
				return
			}

			f, err := dec.Next()
			if err == io.EOF {
				// Clean completion: done fragment seen or body ended.
				return
			}
			if err != nil {
				if cerr := ctx.Err(); cerr != nil {
					errs <- cerr
					return
				}
				errs <- Classify(err)
				return
			}

			if f.Error != "" {
				errs <- &Error{Kind: KindUpstream, Message: f.Error}
				return
			}
			if f.Response != "" {
				select {
				case deltas <- f.Response:
				case <-ctx.Done():
					errs <- ctx.Err()
					return
				}
			}
			if f.Done {
				return
			}
		}
	}()

	return deltas, errs
}

// ListModels returns the names of the models the server advertises, in
// server-provided order. Independent of any in-flight generate stream.
func (c *Client) ListModels(ctx context.Context) ([]string, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/api/tags", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		if cerr := ctx.Err(); cerr == context.Canceled {
			return nil, cerr
		}
		return nil, Classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 8*1024))
		return nil, ClassifyStatus(resp.StatusCode, raw)
	}

	var tr tagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return nil, &Error{Kind: KindInvalidResponse}
	}

	names := make([]string, 0, len(tr.Models))
	for _, m := range tr.Models {
		names = append(names, m.Name)
	}
	return names, nil
}
