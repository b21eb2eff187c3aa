// Package client drives the inpainting protocol from the editor side: submit
// once, poll progress until the worker is listening, then collect the result
// and hand each image to a layer sink.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sinvec/gimp-kandinsky/coordinator"
)

var (
	// ErrBlocked means an earlier result is still waiting to be collected.
	ErrBlocked = errors.New("client: server holds an uncollected result")
	// ErrBusy means another job is in flight.
	ErrBusy = errors.New("client: server is busy with another job")
	// ErrNoResult means the job finished without a result, usually because
	// inference failed.
	ErrNoResult = errors.New("client: no result after retries")
	// ErrTimeout means the job did not finish within the session timeout.
	ErrTimeout = errors.New("client: timed out waiting for the job")
	// ErrUnexpectedStatus is returned for a status string outside the protocol.
	ErrUnexpectedStatus = errors.New("client: unexpected status")
)

// APIError is a non-2xx reply from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("client: server returned %d: %s", e.StatusCode, e.Message)
}

// Client makes single protocol calls. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
}

// New returns a client for the server at baseURL, e.g. "http://127.0.0.1:5000".
// httpClient may be nil.
func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
	}
}

// Submit posts an inpainting request.
func (c *Client) Submit(ctx context.Context, req coordinator.InpaintRequest) (coordinator.SubmitResponse, error) {
	var resp coordinator.SubmitResponse
	err := c.call(ctx, http.MethodPost, "/inpaint", req, &resp)
	return resp, err
}

// Progress queries the progress of token.
func (c *Client) Progress(ctx context.Context, token string) (coordinator.ProgressResponse, error) {
	var resp coordinator.ProgressResponse
	err := c.call(ctx, http.MethodGet, "/progress", coordinator.TokenRequest{Token: token}, &resp)
	return resp, err
}

// Result asks for the result of token.
func (c *Client) Result(ctx context.Context, token string) (coordinator.ResultResponse, error) {
	var resp coordinator.ResultResponse
	err := c.call(ctx, http.MethodGet, "/result", coordinator.TokenRequest{Token: token}, &resp)
	return resp, err
}

// call sends body as JSON, on GET too, and decodes the reply into out.
func (c *Client) call(ctx context.Context, method, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("client: encode %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("client: create %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		if json.Unmarshal(raw, &e) != nil || e.Error == "" {
			e.Error = strings.TrimSpace(string(raw))
		}
		return &APIError{StatusCode: resp.StatusCode, Message: e.Error}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("client: decode %s response: %w", path, err)
	}
	return nil
}
