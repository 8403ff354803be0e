package analysis

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// Compile-time interface check
var _ Provider = (*OpenAI)(nil)

// systemPrompt instructs the model to emit the analysis payload shape the
// validator expects. The model must return a single JSON object.
const systemPrompt = `You analyze personal journal entries for emotional content.
Respond with a single JSON object and nothing else:
{
  "primary_emotions": ["<1-3 emotion labels, strongest first>"],
  "emotional_intensity": <0.0-1.0>,
  "core_adjustments": {
    "optimism": <-1.0 to 1.0>,
    "resilience": <-1.0 to 1.0>,
    "self_awareness": <-1.0 to 1.0>,
    "creativity": <-1.0 to 1.0>,
    "social_connection": <-1.0 to 1.0>,
    "growth_mindset": <-1.0 to 1.0>
  },
  "confidence": <0.0-1.0>
}
Only include core_adjustments keys the entry gives real evidence for.`

// ChatService defines the interface for making chat completion API calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// OpenAI implements the remote analysis provider using OpenAI's API.
type OpenAI struct {
	chat  ChatService
	model openai.ChatModel
}

// NewOpenAI creates a new OpenAI analysis provider.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		chat:  client.Chat.Completions,
		model: openai.ChatModel(model),
	}
}

// Name returns the provider name for logs and metrics.
func (o *OpenAI) Name() string { return "openai" }

// Call sends the entry content for analysis and returns the raw JSON payload.
func (o *OpenAI) Call(ctx context.Context, content string) ([]byte, int, error) {
	resp, err := o.chat.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(content),
		}),
		Model: openai.F(o.model),
		ResponseFormat: openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONObjectParam{
				Type: openai.F(openai.ResponseFormatJSONObjectTypeJSONObject),
			},
		),
		Temperature: openai.F(0.2),
	})
	if err != nil {
		return nil, 0, classifyProviderError(err)
	}

	if len(resp.Choices) == 0 {
		return nil, http.StatusOK, &TransientError{
			Status: http.StatusOK,
			Err:    fmt.Errorf("analysis request returned no choices"),
		}
	}

	return []byte(resp.Choices[0].Message.Content), http.StatusOK, nil
}

// classifyProviderError maps SDK errors onto the pipeline's error taxonomy.
func classifyProviderError(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		if apiErr.StatusCode == http.StatusTooManyRequests {
			return &RateLimitError{RetryAfter: retryAfterHint(apiErr.Response)}
		}
		if transientStatus(apiErr.StatusCode) {
			return &TransientError{Status: apiErr.StatusCode, Err: err}
		}
		// 4xx other than 429: terminal, never retried
		return fmt.Errorf("analysis request failed: %w", err)
	}

	// Network failures and context timeouts are retryable
	return &TransientError{Err: err}
}

// retryAfterHint parses the Retry-After header, defaulting to 30s when the
// provider gives no usable hint.
func retryAfterHint(resp *http.Response) time.Duration {
	const fallback = 30 * time.Second
	if resp == nil {
		return fallback
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return fallback
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
