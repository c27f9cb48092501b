package llm

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"PDFLibraryBot/internal/analysis"
	"PDFLibraryBot/internal/config"
	"PDFLibraryBot/internal/domain"
)

// tokenRefreshMargin renews the OAuth token this long before it expires.
const tokenRefreshMargin = 60 * time.Second

// GigaChatClient implements analysis.Provider on the GigaChat API. It obtains
// an OAuth access token with the Basic authorization key and caches it.
type GigaChatClient struct {
	authURL    string
	apiURL     string
	authKey    string
	scope      string
	model      string
	httpClient *http.Client
	normalizer *analysis.Normalizer
	now        func() time.Time

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

var _ analysis.Provider = (*GigaChatClient)(nil)

var gigaChatAliases = analysis.Aliases{
	"complexity.level": {"уровень_сложности"},
	"category.label":   {"категория"},
	"topics":           {"темы_документа"},
}

// NewGigaChatClient builds a client from configuration.
func NewGigaChatClient(cfg config.GigaChatConfig) *GigaChatClient {
	client := newHTTPClient()
	if cfg.InsecureSkipVerify {
		// GigaChat certificates are issued by the Russian Trusted Root CA, which
		// most system trust stores lack.
		client.Transport = &http.Transport{
			Proxy:           http.ProxyFromEnvironment,
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true}, //nolint:gosec
		}
	}

	return &GigaChatClient{
		authURL:    cfg.AuthURL,
		apiURL:     strings.TrimRight(cfg.APIURL, "/"),
		authKey:    strings.TrimSpace(cfg.AuthKey),
		scope:      cfg.Scope,
		model:      cfg.Model,
		httpClient: client,
		normalizer: analysis.NewNormalizer(gigaChatAliases),
		now:        time.Now,
	}
}

// Name identifies the provider in logs and outcomes.
func (c *GigaChatClient) Name() string { return config.ProviderGigaChat }

// Analyze requests a chat completion with a cached access token. A 401 drops
// the cached token so the next call re-authenticates.
func (c *GigaChatClient) Analyze(ctx context.Context, in analysis.Input) (domain.AnalysisResult, error) {
	if c.authKey == "" || c.apiURL == "" || c.model == "" {
		return domain.AnalysisResult{}, errors.New("gigachat client misconfigured")
	}

	token, err := c.accessToken(ctx)
	if err != nil {
		return domain.AnalysisResult{}, err
	}

	content, err := chatCompletion(ctx, c.httpClient, c.Name(), c.apiURL+"/chat/completions", token, c.model, analysis.SystemPrompt, analysis.BuildUserPrompt(in))
	if err != nil {
		var status *StatusError
		if errors.As(err, &status) && status.Code == http.StatusUnauthorized {
			c.invalidate()
		}
		return domain.AnalysisResult{}, err
	}
	return c.normalizer.Decode(content, in)
}

type gigaChatToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

func (c *GigaChatClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.expiresAt) {
		return c.token, nil
	}

	form := url.Values{"scope": {c.scope}}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("new token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("RqUID", uuid.NewString())
	req.Header.Set("Authorization", "Basic "+c.authKey)

	var tok gigaChatToken
	if err := doJSON(c.httpClient, c.Name()+" oauth", req, &tok); err != nil {
		return "", err
	}
	if tok.AccessToken == "" {
		return "", errors.New("gigachat oauth returned empty access token")
	}

	c.token = tok.AccessToken
	c.expiresAt = expiryTime(tok.ExpiresAt, c.now())
	return c.token, nil
}

func (c *GigaChatClient) invalidate() {
	c.mu.Lock()
	c.token = ""
	c.expiresAt = time.Time{}
	c.mu.Unlock()
}

// expiryTime accepts expires_at in seconds or milliseconds since the epoch.
func expiryTime(value int64, now time.Time) time.Time {
	switch {
	case value <= 0:
		return now.Add(30 * time.Minute)
	case value > 1e10:
		return time.UnixMilli(value)
	default:
		return time.Unix(value, 0)
	}
}
