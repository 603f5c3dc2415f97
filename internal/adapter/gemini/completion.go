// Package gemini adapts the Gemini API to the completion-service contract
// used by the answer generator.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"

	"docuchat/backend/internal/apperr"
)

const defaultRetryAfter = 60 * time.Second

type Client struct {
	client  *genai.Client
	model   string
	timeout time.Duration
}

// NewClient builds a shared, stateless handle to the completion service.
// Construct it once at startup and inject it where needed.
func NewClient(ctx context.Context, apiKey, model string, timeout time.Duration) (*Client, error) {
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	return &Client{client: client, model: model, timeout: timeout}, nil
}

func (c *Client) Close() error {
	return c.client.Close()
}

// Generate sends the prompt to the configured model and returns the
// generated text. The call is bounded by the configured timeout.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	slog.DebugContext(ctx, "generating completion", "model", c.model, "prompt_length", len(prompt))

	model := c.client.GenerativeModel(c.model)
	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		slog.ErrorContext(ctx, "completion failed", "error", err, "model", c.model)
		return "", classify(err)
	}

	text := responseText(resp)
	if text == "" {
		return "", fmt.Errorf("%w: empty completion response", apperr.ErrGeneration)
	}
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) string {
	var b strings.Builder
	for _, cand := range resp.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if text, ok := part.(genai.Text); ok {
				b.WriteString(string(text))
			}
		}
	}
	return b.String()
}

// classify maps API errors onto the generation taxonomy, keeping the
// rate-limited case distinguishable so callers can back off.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == 429 {
		retryAfter := defaultRetryAfter
		if v := apiErr.Header.Get("Retry-After"); v != "" {
			if secs, parseErr := strconv.Atoi(v); parseErr == nil && secs > 0 {
				retryAfter = time.Duration(secs) * time.Second
			}
		}
		return &apperr.RateLimitError{RetryAfter: retryAfter}
	}
	return fmt.Errorf("%w: %v", apperr.ErrGeneration, err)
}

// ModelInfo describes one generation model exposed by the API.
type ModelInfo struct {
	Name             string   `json:"name"`
	BaseModelID      string   `json:"base_model_id,omitempty"`
	DisplayName      string   `json:"display_name,omitempty"`
	SupportedMethods []string `json:"supported_methods,omitempty"`
}

// ListModels returns up to limit available models.
func (c *Client) ListModels(ctx context.Context, limit int) ([]ModelInfo, error) {
	var models []ModelInfo
	it := c.client.ListModels(ctx)
	for {
		m, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, classify(err)
		}
		models = append(models, ModelInfo{
			Name:             m.Name,
			BaseModelID:      m.BaseModelID,
			DisplayName:      m.DisplayName,
			SupportedMethods: m.SupportedGenerationMethods,
		})
		if len(models) >= limit {
			break
		}
	}
	return models, nil
}
