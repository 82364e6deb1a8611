// Package generator drafts post content with a language model.
package generator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/models"
	"github.com/sintaro608742-crypto/x-follower-maker-sub001/internal/observability"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"golang.org/x/sync/semaphore"
)

// ErrNotConfigured is returned by the generator used when no model endpoint is set.
var ErrNotConfigured = errors.New("content generator is not configured")

const systemPrompt = `You write single posts for a social network account that wants to grow its audience.
Reply with the post text only: no quotes, no preamble, no numbering.
The post must be at most 280 characters, including hashtags.`

// Input describes what to write about.
type Input struct {
	Topic string
	Tone  string
	// Avoid is previous content the draft should not repeat.
	Avoid string
}

// ContentGenerator produces one draft per call.
type ContentGenerator interface {
	Generate(ctx context.Context, in Input) (string, error)
}

// Options configures an LLMGenerator.
type Options struct {
	Model          string
	Temperature    float64
	MaxConcurrency int64
}

// LLMGenerator drafts content through a langchaingo model.
type LLMGenerator struct {
	model llms.Model
	sem   *semaphore.Weighted
	opts  Options
}

// NewLLMGenerator wraps an already-constructed model.
func NewLLMGenerator(model llms.Model, opts Options) *LLMGenerator {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = 1
	}
	return &LLMGenerator{model: model, sem: semaphore.NewWeighted(opts.MaxConcurrency), opts: opts}
}

// NewOpenAICompatible connects to an OpenAI-compatible endpoint. With an
// empty baseURL it returns a generator that always fails with ErrNotConfigured.
func NewOpenAICompatible(baseURL, apiKey string, opts Options) (ContentGenerator, error) {
	if baseURL == "" {
		return Unconfigured{}, nil
	}
	model, err := openai.New(
		openai.WithModel(opts.Model),
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("init llm client: %w", err)
	}
	return NewLLMGenerator(model, opts), nil
}

// Generate asks the model for one post and normalizes the reply.
func (g *LLMGenerator) Generate(ctx context.Context, in Input) (string, error) {
	topic := strings.TrimSpace(in.Topic)
	if topic == "" {
		return "", models.NewValidationError("topic is required")
	}

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return "", models.NewExternalServiceError("llm", err)
	}
	defer g.sem.Release(1)

	ctx, span := observability.GetTraceLayer().TraceClientCall(ctx, "llm", "generate")
	defer span.End()

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt(topic, in)),
	}
	callOpts := []llms.CallOption{llms.WithTemperature(g.opts.Temperature)}
	if g.opts.Model != "" {
		callOpts = append(callOpts, llms.WithModel(g.opts.Model))
	}

	resp, err := g.model.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		span.RecordError(err)
		return "", models.NewExternalServiceError("llm", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", models.NewExternalServiceError("llm", errors.New("empty response"))
	}

	content := Clean(resp.Choices[0].Content)
	if err := models.ValidatePostContent(content); err != nil {
		slog.WarnContext(ctx, "llm returned unusable content", "topic", topic, "length", utf8.RuneCountInString(content))
		return "", models.NewExternalServiceError("llm", errors.New("model returned empty content"))
	}
	return content, nil
}

func userPrompt(topic string, in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic)
	if tone := strings.TrimSpace(in.Tone); tone != "" {
		fmt.Fprintf(&b, "Tone: %s\n", tone)
	}
	if avoid := strings.TrimSpace(in.Avoid); avoid != "" {
		fmt.Fprintf(&b, "Write something different from: %s\n", avoid)
	}
	return b.String()
}

// Clean strips wrapping quotes and whitespace and cuts text to the post
// length limit, preferring a word boundary.
func Clean(raw string) string {
	s := strings.TrimSpace(raw)
	for _, pair := range [][2]string{{`"`, `"`}, {"“", "”"}, {"'", "'"}} {
		if len(s) >= 2 && strings.HasPrefix(s, pair[0]) && strings.HasSuffix(s, pair[1]) {
			s = strings.TrimSpace(s[len(pair[0]) : len(s)-len(pair[1])])
		}
	}
	if utf8.RuneCountInString(s) <= models.MaxPostContentLength {
		return s
	}

	runes := []rune(s)[:models.MaxPostContentLength]
	cut := len(runes)
	for i := len(runes) - 1; i > len(runes)/2; i-- {
		if unicode.IsSpace(runes[i]) {
			cut = i
			break
		}
	}
	return strings.TrimSpace(string(runes[:cut]))
}

// Unconfigured is the generator used when no model endpoint is configured.
type Unconfigured struct{}

// Generate always fails.
func (Unconfigured) Generate(context.Context, Input) (string, error) {
	return "", models.NewExternalServiceError("llm", ErrNotConfigured)
}
