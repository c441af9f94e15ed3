// Package gemini is a REST client for the Gemini generateContent and embedContent endpoints.
package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/wiktor-jurek/stewthius/internal/config"
	apperrors "github.com/wiktor-jurek/stewthius/internal/errors"
	"github.com/wiktor-jurek/stewthius/internal/model"
	"github.com/wiktor-jurek/stewthius/internal/retry"
)

const (
	defaultHTTPTimeout   = 10 * time.Minute
	defaultRetryAttempts = 4
	temperature          = 0.2
	embedTaskType        = "RETRIEVAL_DOCUMENT"
)

// retryableStatuses are the HTTP statuses treated as transient
var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusServiceUnavailable:  true,
}

// Client talks to the Gemini REST API
type Client struct {
	apiKey     string
	baseURL    string
	model      string
	embedModel string
	dimensions int

	httpClient *http.Client
	policy     retry.Policy
	logger     *zap.Logger
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithSleeper overrides how retry sleeps are performed (useful for tests).
func WithSleeper(sleep retry.Sleeper) Option {
	return func(c *Client) {
		c.policy.Sleep = sleep
	}
}

// WithRetryMaxAttempts overrides the transport attempt count (defaults to 4).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.policy.MaxAttempts = attempts
	}
}

// WithLogger sets the logger used for retry warnings.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient constructs a client from cfg
func NewClient(cfg config.GeminiConfig, opts ...Option) *Client {
	c := &Client{
		apiKey:     strings.TrimSpace(cfg.APIKey),
		baseURL:    strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		model:      strings.TrimSpace(cfg.Model),
		embedModel: strings.TrimSpace(cfg.EmbedModel),
		dimensions: cfg.EmbeddingDimensions,
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
		policy:     retry.Transport(defaultRetryAttempts),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.baseURL == "" {
		c.baseURL = config.DefaultGeminiBaseURL
	}
	if c.model == "" {
		c.model = config.DefaultGeminiModel
	}
	if c.embedModel == "" {
		c.embedModel = config.DefaultGeminiEmbedModel
	}
	if c.dimensions <= 0 {
		c.dimensions = config.DefaultEmbeddingDimensions
	}
	c.policy.OnRetry = func(attempt int, wait time.Duration, err error) {
		c.logger.Warn("retryable gemini response",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}
	return c
}

// Model returns the extraction model name
func (c *Client) Model() string { return c.model }

// EmbedModel returns the embedding model name
func (c *Client) EmbedModel() string { return c.embedModel }

// Dimensions returns the requested embedding dimensionality
func (c *Client) Dimensions() int { return c.dimensions }

// StatusError is a non-2xx response from the API
type StatusError struct {
	StatusCode int
	Body       string
	Wait       time.Duration // parsed Retry-After, zero when absent
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("gemini: http %d: %s", e.StatusCode, snippet(e.Body))
}

// RetryAfter returns the server-supplied wait hint
func (e *StatusError) RetryAfter() time.Duration {
	return e.Wait
}

// Extraction is a decoded analysis plus the raw JSON it was decoded from
type Extraction struct {
	Result model.AnalysisResult
	Raw    string
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Parts []part `json:"parts"`
}

type generateRequest struct {
	SystemInstruction content          `json:"systemInstruction"`
	Contents          []content        `json:"contents"`
	GenerationConfig  generationConfig `json:"generationConfig"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMimeType string  `json:"responseMimeType"`
	ResponseSchema   schema  `json:"responseSchema"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

type embedRequest struct {
	Content              content `json:"content"`
	TaskType             string  `json:"taskType"`
	OutputDimensionality int     `json:"outputDimensionality"`
}

type embedResponse struct {
	Embedding struct {
		Values []float32 `json:"values"`
	} `json:"embedding"`
}

// Analyze sends the video inline and decodes the structured extraction. A response that is
// not valid JSON is a SchemaValidationError so the caller can re-request it.
func (c *Client) Analyze(ctx context.Context, video []byte, mimeType string) (*Extraction, error) {
	if c.apiKey == "" {
		return nil, apperrors.FatalConfig("GEMINI_API_KEY is required")
	}
	if len(video) == 0 {
		return nil, apperrors.New(apperrors.CodeInvalidArg, "video data is empty")
	}

	payload := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: systemInstruction}}},
		Contents: []content{{Parts: []part{
			{InlineData: &inlineData{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(video)}},
			{Text: userPrompt},
		}}},
		GenerationConfig: generationConfig{
			Temperature:      temperature,
			ResponseMimeType: "application/json",
			ResponseSchema:   responseSchema(),
		},
	}

	var resp generateResponse
	if err := c.post(ctx, c.model, "generateContent", payload, &resp); err != nil {
		return nil, err
	}

	var text strings.Builder
	if len(resp.Candidates) > 0 {
		for _, p := range resp.Candidates[0].Content.Parts {
			text.WriteString(p.Text)
		}
	}
	raw := StripJSONFence(text.String())
	if raw == "" {
		return nil, apperrors.SchemaValidation(nil, "gemini returned an empty response")
	}

	var result model.AnalysisResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, apperrors.SchemaValidation(err, "gemini response is not valid JSON: "+snippet(raw))
	}
	return &Extraction{Result: result, Raw: raw}, nil
}

// Embed returns the embedding of text at the configured dimensionality
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.apiKey == "" {
		return nil, apperrors.FatalConfig("GEMINI_API_KEY is required")
	}

	payload := embedRequest{
		Content:              content{Parts: []part{{Text: text}}},
		TaskType:             embedTaskType,
		OutputDimensionality: c.dimensions,
	}

	var resp embedResponse
	if err := c.post(ctx, c.embedModel, "embedContent", payload, &resp); err != nil {
		return nil, err
	}

	values := resp.Embedding.Values
	if len(values) == 0 {
		return nil, apperrors.New(apperrors.CodeExternal, "gemini embedding response is missing embedding.values")
	}
	if len(values) != c.dimensions {
		return nil, apperrors.Newf(apperrors.CodeExternal, "gemini embedding has %d dimensions, expected %d", len(values), c.dimensions)
	}
	return values, nil
}

// post sends payload to model:method under the transport retry policy and decodes the
// response into out
func (c *Client) post(ctx context.Context, modelName, method string, payload, out any) error {
	encoded, err := json.Marshal(payload)
	if err != nil {
		return apperrors.Wrap(err, apperrors.CodeInternal, "failed to encode gemini request")
	}
	endpoint := fmt.Sprintf("%s/v1beta/models/%s:%s", c.baseURL, url.PathEscape(modelName), method)

	body, err := retry.Do(ctx, c.policy, func(ctx context.Context, _ int) ([]byte, error) {
		return c.sendOnce(ctx, endpoint, encoded)
	})
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return apperrors.Wrap(err, apperrors.CodeExternal, "failed to decode gemini response: "+snippet(string(body)))
	}
	return nil
}

func (c *Client) sendOnce(ctx context.Context, endpoint string, encoded []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.CodeInternal, "failed to build gemini request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apperrors.Transient(err, "gemini request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.Transient(err, "failed to read gemini response")
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		wait, _ := parseRetryAfter(resp.Header.Get("Retry-After"), time.Now())
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body)), Wait: wait}
		if retryableStatuses[resp.StatusCode] {
			return nil, apperrors.Transient(statusErr, fmt.Sprintf("gemini returned %d", resp.StatusCode))
		}
		return nil, apperrors.Wrap(statusErr, apperrors.CodeExternal, fmt.Sprintf("gemini returned %d", resp.StatusCode))
	}
	return body, nil
}

// parseRetryAfter accepts delay-seconds or an HTTP-date
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := when.Sub(now)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

// StripJSONFence removes a surrounding ```json fence from model output
func StripJSONFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	body := strings.TrimLeft(trimmed[3:], " \t\r\n")
	if len(body) >= 4 && strings.EqualFold(body[:4], "json") {
		body = strings.TrimLeft(body[4:], " \t\r\n")
	}
	if idx := strings.LastIndex(body, "```"); idx >= 0 {
		body = body[:idx]
	}
	return strings.TrimSpace(body)
}

func snippet(s string) string {
	clean := strings.Join(strings.Fields(s), " ")
	const limit = 200
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
