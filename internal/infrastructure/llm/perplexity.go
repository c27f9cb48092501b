package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/domain"
)

// PerplexityClient implements analysis.Provider backed by the OpenAI-compatible
// Perplexity chat completions API.
type PerplexityClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	normalizer *analysis.Normalizer
}

var _ analysis.Provider = (*PerplexityClient)(nil)

var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

var perplexityAliases = analysis.Aliases{
	"topics": {"themes"},
}

// NewPerplexityClient builds a client from configuration.
func NewPerplexityClient(cfg config.ProviderConfig) *PerplexityClient {
	return &PerplexityClient{
		endpoint:   cfg.Endpoint,
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(),
		normalizer: analysis.NewNormalizer(perplexityAliases),
	}
}

// Name identifies the provider in logs and outcomes.
func (c *PerplexityClient) Name() string { return config.ProviderPerplexity }

// Analyze posts the document prompt as a chat completion.
func (c *PerplexityClient) Analyze(ctx context.Context, in analysis.Input) (domain.AnalysisResult, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return domain.AnalysisResult{}, errors.New("perplexity client misconfigured")
	}

	content, err := chatCompletion(ctx, c.httpClient, c.Name(), c.endpoint, c.apiKey, c.model, analysis.SystemPrompt, analysis.BuildUserPrompt(in))
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return c.normalizer.Decode(thinkBlock.ReplaceAllString(content, ""), in)
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// chatCompletion calls an OpenAI-compatible /chat/completions endpoint.
func chatCompletion(ctx context.Context, client *http.Client, provider, endpoint, token, model, system, prompt string) (string, error) {
	payload := map[string]any{
		"model": model,
		"messages": []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		"temperature": 0.2,
	}

	var resp chatResponse
	if err := postJSON(ctx, client, provider, endpoint, map[string]string{"Authorization": "Bearer " + token}, payload, &resp); err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("%s returned empty content: %w", provider, analysis.ErrMalformedResponse)
	}
	return resp.Choices[0].Message.Content, nil
}
