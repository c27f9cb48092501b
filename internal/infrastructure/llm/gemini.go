package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/domain"
)

// GeminiClient implements analysis.Provider on the Gemini generateContent API.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	httpClient *http.Client
	normalizer *analysis.Normalizer
}

var _ analysis.Provider = (*GeminiClient)(nil)

// Gemini answers in camelCase when it mirrors its own API conventions.
var geminiAliases = analysis.Aliases{
	"doc_language":            {"docLanguage"},
	"volume.reading_time_min": {"readingTimeMin", "readingTimeMinutes"},
	"volume.word_count":       {"wordCount"},
	"complexity.grade":        {"estimatedGrade"},
}

// NewGeminiClient builds a client from configuration.
func NewGeminiClient(cfg config.ProviderConfig) *GeminiClient {
	return &GeminiClient{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		httpClient: newHTTPClient(),
		normalizer: analysis.NewNormalizer(geminiAliases),
	}
}

// Name identifies the provider in logs and outcomes.
func (c *GeminiClient) Name() string { return config.ProviderGemini }

// Analyze asks Gemini for a JSON analysis of the document.
func (c *GeminiClient) Analyze(ctx context.Context, in analysis.Input) (domain.AnalysisResult, error) {
	content, err := c.generate(ctx, analysis.SystemPrompt, analysis.BuildUserPrompt(in))
	if err != nil {
		return domain.AnalysisResult{}, err
	}
	return c.normalizer.Decode(content, in)
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

func (c *GeminiClient) generate(ctx context.Context, system, prompt string) (string, error) {
	if c.apiKey == "" || c.endpoint == "" || c.model == "" {
		return "", errors.New("gemini client misconfigured")
	}

	payload := map[string]any{
		"systemInstruction": geminiContent{Parts: []geminiPart{{Text: system}}},
		"contents":          []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
		"generationConfig": map[string]any{
			"temperature":      0.2,
			"responseMimeType": "application/json",
		},
	}

	endpoint := fmt.Sprintf("%s/models/%s:generateContent", c.endpoint, url.PathEscape(c.model))
	var resp geminiResponse
	if err := postJSON(ctx, c.httpClient, c.Name(), endpoint, map[string]string{"x-goog-api-key": c.apiKey}, payload, &resp); err != nil {
		return "", err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", fmt.Errorf("gemini blocked prompt: %s", resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini returned no candidates: %w", analysis.ErrMalformedResponse)
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if strings.TrimSpace(b.String()) == "" {
		return "", fmt.Errorf("gemini returned empty content (finish reason %s): %w", resp.Candidates[0].FinishReason, analysis.ErrMalformedResponse)
	}
	return b.String(), nil
}
