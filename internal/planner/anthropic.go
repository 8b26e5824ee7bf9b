package planner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/kaptinlin/jsonrepair"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

var generations = prometheus.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "vitalia_planner_generation_seconds",
	Help:    "Latency of plan generation calls by kind and result.",
	Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
}, []string{"kind", "result"})

func init() {
	prometheus.MustRegister(generations)
}

// MessageClient is the part of the Anthropic SDK the generator uses.
type MessageClient interface {
	New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error)
}

// AnthropicGenerator asks Claude for plans and decodes the JSON it returns.
type AnthropicGenerator struct {
	messages  MessageClient
	model     string
	maxTokens int64
	logger    *zap.Logger
}

// NewAnthropicGenerator constructs a generator backed by the Anthropic API.
func NewAnthropicGenerator(apiKey, model string, logger *zap.Logger) *AnthropicGenerator {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return NewAnthropicGeneratorWithClient(&client.Messages, model, logger)
}

// NewAnthropicGeneratorWithClient constructs a generator around an existing message client.
func NewAnthropicGeneratorWithClient(messages MessageClient, model string, logger *zap.Logger) *AnthropicGenerator {
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnthropicGenerator{messages: messages, model: model, maxTokens: 4096, logger: logger}
}

// GenerateWorkout produces a workout for the request.
func (g *AnthropicGenerator) GenerateWorkout(ctx context.Context, req WorkoutRequest) (*WorkoutPlan, error) {
	var plan WorkoutPlan
	if err := g.generate(ctx, "workout", WorkoutPrompt(req), "Generate the personalised workout now.", &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

// GenerateDailyNutrition produces today's nutrition briefing.
func (g *AnthropicGenerator) GenerateDailyNutrition(ctx context.Context, in BriefingInput) (*DailyNutritionPlan, error) {
	var plan DailyNutritionPlan
	if err := g.generate(ctx, "nutrition", DailyBriefingPrompt(in), "Generate today's nutrition plan now.", &plan); err != nil {
		return nil, err
	}
	if err := plan.Validate(); err != nil {
		return nil, err
	}
	return &plan, nil
}

func (g *AnthropicGenerator) generate(ctx context.Context, kind, system, prompt string, out any) (err error) {
	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = "error"
		}
		generations.WithLabelValues(kind, result).Observe(time.Since(start).Seconds())
	}()

	response, err := g.messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return fmt.Errorf("anthropic API call failed: %w", err)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if err := Decode(text.String(), out); err != nil {
		g.logger.Warn("undecodable plan", zap.String("kind", kind), zap.Int("bytes", text.Len()), zap.Error(err))
		return err
	}
	return nil
}

// Decode parses model output into out. It accepts markdown fences, surrounding
// prose and the usual JSON slips (trailing commas, single quotes, truncation).
func Decode(text string, out any) error {
	candidate := extractObject(stripFences(text))
	if candidate == "" {
		return fmt.Errorf("%w: no JSON object in response", ErrInvalidPlan)
	}
	if err := json.Unmarshal([]byte(candidate), out); err == nil {
		return nil
	}
	repaired, err := jsonrepair.JSONRepair(candidate)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	if err := json.Unmarshal([]byte(repaired), out); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return fmt.Errorf("%w: field %s: %v", ErrInvalidPlan, typeErr.Field, err)
		}
		return fmt.Errorf("%w: %v", ErrInvalidPlan, err)
	}
	return nil
}

func stripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	return strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(text), "```"))
}

// extractObject returns the text from the first '{' to the last '}'. A missing
// closing brace keeps the tail so truncated output can still be repaired.
func extractObject(text string) string {
	start := strings.IndexByte(text, '{')
	if start < 0 {
		return ""
	}
	end := strings.LastIndexByte(text, '}')
	if end < start {
		return text[start:]
	}
	return text[start : end+1]
}
