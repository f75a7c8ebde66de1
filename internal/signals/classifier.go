// Package signals normalizes buying-signal types and classifies untyped
// signals with an LLM so they can earn score points.
package signals

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/hyperengineering/prospector/internal/types"
)

// ErrUnclassifiable is returned when a signal cannot be mapped to a known type.
var ErrUnclassifiable = errors.New("signal could not be classified")

// Classifier maps free-text signal descriptions to a known signal type.
type Classifier interface {
	Classify(ctx context.Context, title, description string) (types.SignalType, error)
}

// ChatCompletionsService defines the interface for making chat completion calls.
// This abstraction enables testing without calling the real OpenAI API.
type ChatCompletionsService interface {
	New(ctx context.Context, params openai.ChatCompletionNewParams, opts ...option.RequestOption) (*openai.ChatCompletion, error)
}

// Compile-time interface check
var _ Classifier = (*OpenAI)(nil)

// OpenAI classifies signals with a chat completion model.
type OpenAI struct {
	completions ChatCompletionsService
	model       openai.ChatModel
}

// NewOpenAI creates a classifier using the given API key and model.
func NewOpenAI(apiKey, model string) *OpenAI {
	client := openai.NewClient(option.WithAPIKey(apiKey))
	return &OpenAI{
		completions: client.Chat.Completions,
		model:       openai.ChatModel(model),
	}
}

const systemPrompt = `You label sales buying signals about a company.
Answer with exactly one of: funding, leadership_change, hiring, expansion, news, product_launch, none.
Answer "none" when the text is not a buying signal.`

// Classify asks the model for the signal type of title and description.
func (o *OpenAI) Classify(ctx context.Context, title, description string) (types.SignalType, error) {
	text := strings.TrimSpace(title)
	if d := strings.TrimSpace(description); d != "" {
		text += "\n" + d
	}
	if text == "" {
		return "", ErrUnclassifiable
	}

	resp, err := o.completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: openai.F([]openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(systemPrompt),
			openai.UserMessage(text),
		}),
		Model:       openai.F(o.model),
		Temperature: openai.Float(0),
	})
	if err != nil {
		return "", fmt.Errorf("signal classification failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("signal classification failed: no choices returned")
	}

	t, ok := Normalize(resp.Choices[0].Message.Content)
	if !ok {
		return "", ErrUnclassifiable
	}
	return t, nil
}

// ModelName returns the chat model name.
func (o *OpenAI) ModelName() string {
	return string(o.model)
}

// Normalize maps loose spellings such as "Leadership Change" or
// "product-launch." onto a known signal type.
func Normalize(raw string) (types.SignalType, bool) {
	var b strings.Builder
	lastUnderscore := false
	for _, r := range strings.TrimSpace(strings.ToLower(raw)) {
		switch {
		case unicode.IsLetter(r):
			b.WriteRune(r)
			lastUnderscore = false
		case r == ' ' || r == '-' || r == '_':
			if b.Len() > 0 && !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	t := types.SignalType(strings.TrimSuffix(b.String(), "_"))
	return t, t.IsKnown()
}

// Resolve returns signals with normalized types. Signals without a type are
// classified when c is non-nil; failures leave the type empty, which scores
// zero points.
func Resolve(ctx context.Context, c Classifier, in []types.BuyingSignal) []types.BuyingSignal {
	out := make([]types.BuyingSignal, len(in))
	for i, s := range in {
		if t, ok := Normalize(string(s.Type)); ok {
			s.Type = t
		}
		if s.Type == "" && c != nil {
			t, err := c.Classify(ctx, s.Title, s.Description)
			if err != nil {
				slog.Warn("signal left unclassified",
					"component", "signals",
					"title", s.Title,
					"error", err,
				)
			} else {
				s.Type = t
			}
		}
		out[i] = s
	}
	return out
}
