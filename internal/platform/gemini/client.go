package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"google.golang.org/genai"

	"github.com/phrazzld/novaq/internal/droid"
)

// Config holds the settings needed to talk to the Gemini API.
type Config struct {
	APIKey    string
	ModelName string
}

// streamFunc produces the raw response stream for a prompt. It exists
// so chunk conversion can be exercised without a live API client.
type streamFunc func(ctx context.Context, prompt string) iter.Seq2[*genai.GenerateContentResponse, error]

// Client implements droid.Client over the Gemini API.
type Client struct {
	logger *slog.Logger
	model  string
	stream streamFunc
}

// NewClient creates a Gemini-backed droid client.
func NewClient(ctx context.Context, logger *slog.Logger, cfg Config) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: API key cannot be empty", ErrInvalidConfig)
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", ErrInvalidConfig)
	}

	apiClient, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create API client: %v", ErrInvalidConfig, err)
	}

	c := &Client{
		logger: logger.With("component", "gemini_client"),
		model:  cfg.ModelName,
	}
	c.stream = func(ctx context.Context, prompt string) iter.Seq2[*genai.GenerateContentResponse, error] {
		return apiClient.Models.GenerateContentStream(ctx, c.model, genai.Text(prompt), nil)
	}

	return c, nil
}

// SendQuery starts a streamed generation for the query's prompt. The
// returned channel closes when the stream ends or ctx is cancelled.
func (c *Client) SendQuery(ctx context.Context, query droid.Query) (<-chan droid.Chunk, error) {
	if strings.TrimSpace(query.Prompt) == "" {
		return nil, ErrEmptyPrompt
	}

	c.logger.DebugContext(ctx, "starting generation stream",
		"model", c.model,
		"prompt_length", len(query.Prompt),
		"session_id", query.SessionID)

	out := make(chan droid.Chunk)

	go func() {
		defer close(out)

		for resp, err := range c.stream(ctx, query.Prompt) {
			if err != nil {
				c.logger.ErrorContext(ctx, "generation stream error", "error", err)
				c.deliver(ctx, out, droid.Chunk{Err: fmt.Errorf("gemini stream: %w", err)})
				return
			}

			text := responseText(resp)
			if text == "" {
				continue
			}

			if !c.deliver(ctx, out, droid.Chunk{
				Type:      droid.ChunkAssistant,
				Content:   text,
				SessionID: query.SessionID,
			}) {
				return
			}
		}
	}()

	return out, nil
}

// deliver sends a chunk unless ctx is cancelled first. The consumer
// may stop reading at any time.
func (c *Client) deliver(ctx context.Context, out chan<- droid.Chunk, chunk droid.Chunk) bool {
	select {
	case out <- chunk:
		return true
	case <-ctx.Done():
		return false
	}
}

// responseText concatenates the text parts of a streamed response.
func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}

	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		b.WriteString(part.Text)
	}
	return b.String()
}
