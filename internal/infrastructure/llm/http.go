package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultHTTPTimeout = 60 * time.Second

// StatusError is a non-2xx reply from a provider API.
type StatusError struct {
	Provider string
	Code     int
	Status   string
	Body     string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s error %s: %s", e.Provider, e.Status, e.Body)
}

// Temporary reports whether the provider is overloaded or rate limiting.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, headers map[string]string, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", provider, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, val := range headers {
		req.Header.Set(k, val)
	}

	return doJSON(client, provider, req, v)
}

func doJSON(client *http.Client, provider string, req *http.Request, v any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &StatusError{
			Provider: provider,
			Code:     resp.StatusCode,
			Status:   resp.Status,
			Body:     strings.TrimSpace(string(payload)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s response: %w", provider, err)
	}
	return nil
}
