package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/domain"
)

const anthropicVersion = "2023-06-01"

// AnthropicClient implements analysis.Provider on the Anthropic messages API.
type AnthropicClient struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
	normalizer *analysis.Normalizer
}

var _ analysis.Provider = (*AnthropicClient)(nil)

// NewAnthropicClient builds a client from configuration.
func NewAnthropicClient(cfg config.ProviderConfig) *AnthropicClient {
	return &AnthropicClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		maxTokens:  2048,
		httpClient: newHTTPClient(),
		normalizer: analysis.NewNormalizer(nil),
	}
}

// Name identifies the provider in logs and outcomes.
func (c *AnthropicClient) Name() string { return config.ProviderAnthropic }

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	StopReason string `json:"stop_reason"`
}

// Analyze sends the document prompt as a single user message.
func (c *AnthropicClient) Analyze(ctx context.Context, in analysis.Input) (domain.AnalysisResult, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.AnalysisResult{}, errors.New("anthropic client misconfigured")
	}

	payload := map[string]any{
		"model":      c.model,
		"max_tokens": c.maxTokens,
		"system":     analysis.SystemPrompt,
		"messages":   []chatMessage{{Role: "user", Content: analysis.BuildUserPrompt(in)}},
	}
	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": anthropicVersion,
	}

	var resp anthropicResponse
	if err := postJSON(ctx, c.httpClient, c.Name(), c.endpoint, headers, payload, &resp); err != nil {
		return domain.AnalysisResult{}, err
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(b.String()) == "" {
		return domain.AnalysisResult{}, fmt.Errorf("anthropic returned empty content (stop reason %s): %w", resp.StopReason, analysis.ErrMalformedResponse)
	}
	return c.normalizer.Decode(b.String(), in)
}
