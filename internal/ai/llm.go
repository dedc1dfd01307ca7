package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// Provider specifies which LLM backend to use.
type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
	ProviderOllama    Provider = "ollama"
	ProviderCustom    Provider = "custom"
)

const (
	defaultOpenAIEndpoint    = "https://api.openai.com/v1"
	defaultAnthropicEndpoint = "https://api.anthropic.com"
	defaultOllamaEndpoint    = "http://localhost:11434"
	anthropicVersion         = "2023-06-01"

	defaultOpenAIModel    = "o4-mini"
	defaultAnthropicModel = "claude-sonnet-4-20250514"

	// Responses are read up to this size.
	maxResponseBody = 4 << 20
)

// ErrNoAPIKey is returned when a hosted provider has no key configured.
var ErrNoAPIKey = errors.New("api key not configured")

// ParseProvider maps a configured provider name to a Provider. "claude"
// is accepted for anthropic.
func ParseProvider(name string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "openai":
		return ProviderOpenAI, nil
	case "anthropic", "claude":
		return ProviderAnthropic, nil
	case "ollama":
		return ProviderOllama, nil
	case "custom":
		return ProviderCustom, nil
	default:
		return "", fmt.Errorf("unsupported LLM provider: %q", name)
	}
}

// ValidateAPIKey checks the basic shape of a provider key. Local and
// custom providers accept any key, including none.
func ValidateAPIKey(p Provider, key string) error {
	key = strings.TrimSpace(key)
	switch p {
	case ProviderOpenAI:
		if key == "" {
			return fmt.Errorf("openai: %w", ErrNoAPIKey)
		}
		if !strings.HasPrefix(key, "sk-") {
			return errors.New("openai: api key must start with \"sk-\"")
		}
	case ProviderAnthropic:
		if key == "" {
			return fmt.Errorf("anthropic: %w", ErrNoAPIKey)
		}
		if !strings.HasPrefix(key, "sk-ant-") {
			return errors.New("anthropic: api key must start with \"sk-ant-\"")
		}
	}
	return nil
}

// keyFromEnv returns the conventional environment key of a provider.
func keyFromEnv(p Provider) string {
	switch p {
	case ProviderOpenAI:
		return os.Getenv("OPENAI_API_KEY")
	case ProviderAnthropic:
		return os.Getenv("ANTHROPIC_API_KEY")
	}
	return ""
}

// Generator produces narrative text from collected data.
type Generator interface {
	// Label names the provider configuration the output belongs to.
	Label() string
	Model() string
	Summarize(ctx context.Context, system, text string, maxTokens int) (string, error)
	SummarizeWithImages(ctx context.Context, prompt string, imageURLs []string, maxTokens int) (string, error)
}

// LLMClient talks to one configured LLM backend.
type LLMClient struct {
	cfg       config.ProviderConfig
	provider  Provider
	client    *http.Client
	images    *ImageFetcher
	maxImages int
	logger    *slog.Logger
}

// ClientOption configures an LLMClient.
type ClientOption func(*LLMClient)

// WithHTTPClient replaces the HTTP client used for completions.
func WithHTTPClient(c *http.Client) ClientOption {
	return func(l *LLMClient) { l.client = c }
}

// WithImageFetcher sets the downloader used for multimodal requests.
func WithImageFetcher(f *ImageFetcher) ClientOption {
	return func(l *LLMClient) { l.images = f }
}

// WithMaxImages caps the images attached to one request.
func WithMaxImages(n int) ClientOption {
	return func(l *LLMClient) { l.maxImages = n }
}

// NewLLMClient creates a client for cfg. A missing key is read from the
// provider's conventional environment variable.
func NewLLMClient(cfg config.ProviderConfig, logger *slog.Logger, opts ...ClientOption) (*LLMClient, error) {
	p, err := ParseProvider(cfg.Provider)
	if err != nil {
		return nil, err
	}
	if cfg.APIKey == "" {
		cfg.APIKey = keyFromEnv(p)
	}
	if err := ValidateAPIKey(p, cfg.APIKey); err != nil {
		return nil, err
	}
	if p == ProviderCustom && cfg.Endpoint == "" {
		return nil, errors.New("custom provider requires an endpoint")
	}
	if cfg.Label == "" {
		cfg.Label = string(p)
	}
	if cfg.Model == "" {
		switch p {
		case ProviderOpenAI:
			cfg.Model = defaultOpenAIModel
		case ProviderAnthropic:
			cfg.Model = defaultAnthropicModel
		}
	}

	c := &LLMClient{
		cfg:       cfg,
		provider:  p,
		client:    &http.Client{Timeout: 180 * time.Second},
		maxImages: DefaultMaxImages,
		logger:    logger.With("component", "llm_client", "provider", cfg.Label),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.images == nil {
		c.images = NewImageFetcher(http.DefaultClient, 0, logger)
	}
	return c, nil
}

// Label returns the configured provider label.
func (c *LLMClient) Label() string { return c.cfg.Label }

// Model returns the configured model name.
func (c *LLMClient) Model() string { return c.cfg.Model }

// Summarize sends a system prompt and user text and returns the reply.
func (c *LLMClient) Summarize(ctx context.Context, system, text string, maxTokens int) (string, error) {
	start := time.Now()
	var (
		out string
		err error
	)
	switch c.provider {
	case ProviderOpenAI:
		out, err = c.openAI(ctx, []map[string]any{
			{"role": "developer", "content": system},
			{"role": "user", "content": text},
		}, maxTokens)
	case ProviderAnthropic:
		out, err = c.anthropic(ctx, system, text, maxTokens)
	case ProviderOllama:
		out, err = c.ollama(ctx, system, text, nil, maxTokens)
	case ProviderCustom:
		out, err = c.custom(ctx, system, text, maxTokens)
	default:
		err = fmt.Errorf("unsupported LLM provider: %s", c.provider)
	}
	if err != nil {
		return "", err
	}
	c.logger.Debug("completion received", "chars", len(out), "duration", time.Since(start))
	return strings.TrimSpace(out), nil
}

// SummarizeWithImages sends prompt with up to the configured number of
// images. URLs are sanitized to https first. Providers that need inline
// data get base64 downloads; with no usable image the request falls back
// to text only.
func (c *LLMClient) SummarizeWithImages(ctx context.Context, prompt string, imageURLs []string, maxTokens int) (string, error) {
	urls := SanitizeImageURLs(imageURLs, c.maxImages)
	if len(urls) == 0 {
		if c.provider == ProviderOpenAI {
			return c.Summarize(ctx, analystSystemPrompt, prompt, maxTokens)
		}
		return c.Summarize(ctx, prompt, noImagesNote, maxTokens)
	}
	images := c.images.FetchAll(ctx, urls)
	if err := ctx.Err(); err != nil {
		return "", err
	}

	switch c.provider {
	case ProviderOpenAI:
		// A failed download is sent as the direct URL.
		parts := []map[string]any{{"type": "text", "text": prompt}}
		for i, u := range urls {
			ref := u
			if images[i] != nil {
				ref = images[i].DataURI()
			}
			parts = append(parts, map[string]any{"type": "image_url", "image_url": map[string]string{"url": ref}})
		}
		out, err := c.openAI(ctx, []map[string]any{{"role": "user", "content": parts}}, maxTokens)
		return strings.TrimSpace(out), err

	case ProviderAnthropic:
		parts := []map[string]any{{"type": "text", "text": prompt}}
		for _, img := range images {
			if img == nil {
				continue
			}
			parts = append(parts, map[string]any{
				"type": "image",
				"source": map[string]string{
					"type":       "base64",
					"media_type": img.MediaType,
					"data":       img.Data,
				},
			})
		}
		if len(parts) == 1 {
			return c.Summarize(ctx, prompt, downloadFailedNote, maxTokens)
		}
		out, err := c.anthropicMessages(ctx, "", []map[string]any{{"role": "user", "content": parts}}, maxTokens)
		return strings.TrimSpace(out), err

	case ProviderOllama:
		var data []string
		for _, img := range images {
			if img != nil {
				data = append(data, img.Data)
			}
		}
		if len(data) == 0 {
			return c.Summarize(ctx, prompt, downloadFailedNote, maxTokens)
		}
		out, err := c.ollama(ctx, "", prompt, data, maxTokens)
		return strings.TrimSpace(out), err

	default:
		return c.Summarize(ctx, prompt, noImagesNote, maxTokens)
	}
}

func (c *LLMClient) openAI(ctx context.Context, messages []map[string]any, maxTokens int) (string, error) {
	// Reasoning models take max_completion_tokens and no temperature.
	payload := map[string]any{
		"model":                 c.cfg.Model,
		"messages":              messages,
		"max_completion_tokens": maxTokens,
	}
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOpenAIEndpoint
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	headers := map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	if err := c.postJSON(ctx, strings.TrimRight(endpoint, "/")+"/chat/completions", headers, payload, &result); err != nil {
		return "", fmt.Errorf("openai request: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", errors.New("no choices in openai response")
	}
	return result.Choices[0].Message.Content, nil
}

func (c *LLMClient) anthropic(ctx context.Context, system, text string, maxTokens int) (string, error) {
	return c.anthropicMessages(ctx, system, []map[string]any{{"role": "user", "content": text}}, maxTokens)
}

func (c *LLMClient) anthropicMessages(ctx context.Context, system string, messages []map[string]any, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":      c.cfg.Model,
		"max_tokens": maxTokens,
		"messages":   messages,
	}
	if system != "" {
		payload["system"] = system
	}
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultAnthropicEndpoint
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	}
	headers := map[string]string{
		"x-api-key":         c.cfg.APIKey,
		"anthropic-version": anthropicVersion,
	}
	if err := c.postJSON(ctx, strings.TrimRight(endpoint, "/")+"/v1/messages", headers, payload, &result); err != nil {
		return "", fmt.Errorf("anthropic request: %w", err)
	}
	for _, block := range result.Content {
		if block.Type == "" || block.Type == "text" {
			return block.Text, nil
		}
	}
	return "", errors.New("no text content in anthropic response")
}

func (c *LLMClient) ollama(ctx context.Context, system, prompt string, images []string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":  c.cfg.Model,
		"prompt": prompt,
		"stream": false,
		"options": map[string]any{
			"temperature": c.cfg.Temperature,
			"num_predict": maxTokens,
		},
	}
	if system != "" {
		payload["system"] = system
	}
	if len(images) > 0 {
		payload["images"] = images
	}
	endpoint := c.cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultOllamaEndpoint
	}

	var result struct {
		Response string `json:"response"`
	}
	if err := c.postJSON(ctx, strings.TrimRight(endpoint, "/")+"/api/generate", nil, payload, &result); err != nil {
		return "", fmt.Errorf("ollama request: %w", err)
	}
	return result.Response, nil
}

// custom posts to an arbitrary endpoint. A JSON reply with a text,
// response or content field is unwrapped; anything else is used as is.
func (c *LLMClient) custom(ctx context.Context, system, text string, maxTokens int) (string, error) {
	payload := map[string]any{
		"model":      c.cfg.Model,
		"system":     system,
		"prompt":     text,
		"max_tokens": maxTokens,
	}
	var headers map[string]string
	if c.cfg.APIKey != "" {
		headers = map[string]string{"Authorization": "Bearer " + c.cfg.APIKey}
	}
	body, err := c.post(ctx, c.cfg.Endpoint, headers, payload)
	if err != nil {
		return "", fmt.Errorf("custom request: %w", err)
	}

	var wrapped map[string]any
	if json.Unmarshal(body, &wrapped) == nil {
		for _, k := range []string{"text", "response", "content"} {
			if s, ok := wrapped[k].(string); ok {
				return s, nil
			}
		}
	}
	return string(body), nil
}

func (c *LLMClient) postJSON(ctx context.Context, url string, headers map[string]string, payload, out any) error {
	body, err := c.post(ctx, url, headers, payload)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *LLMClient) post(ctx context.Context, url string, headers map[string]string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, snippet(body))
	}
	return body, nil
}

func snippet(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 300 {
		s = s[:300]
	}
	return s
}
