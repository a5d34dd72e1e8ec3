package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	lcschema "github.com/tmc/langchaingo/schema"
	"github.com/xeipuuv/gojsonschema"

	"go-jdcrawler/internal/models"
)

const (
	DefaultBaseURL = "https://open.bigmodel.cn/api/paas/v4"
	DefaultModel   = "glm-4-flash"
	DefaultTimeout = 60 * time.Second
)

// Config selects the OpenAI-compatible endpoint. Zhipu GLM by default.
type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// contentGenerator is the part of llms.Model the scorer uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

type llmScorer struct {
	llm     contentGenerator
	model   string
	timeout time.Duration
}

// NewScorer returns the Disabled scorer when no API key is set.
func NewScorer(cfg Config) (Scorer, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		log.Println("⚠️ AI API key not found. AI analysis will be disabled.")
		return Disabled{}, nil
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}

	llm, err := openai.New(
		openai.WithToken(cfg.APIKey),
		openai.WithModel(cfg.Model),
		openai.WithBaseURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai-compatible model: %w", err)
	}
	return newLLMScorer(llm, cfg.Model, cfg.Timeout), nil
}

func newLLMScorer(llm contentGenerator, model string, timeout time.Duration) *llmScorer {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &llmScorer{llm: llm, model: model, timeout: timeout}
}

func (s *llmScorer) Enabled() bool { return true }

func (s *llmScorer) Score(ctx context.Context, job *models.Job, profile *models.UserProfile) Result {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	messages := []llms.MessageContent{
		llms.TextParts(lcschema.ChatMessageTypeSystem, buildSystemPrompt()),
		llms.TextParts(lcschema.ChatMessageTypeHuman, buildUserPrompt(job, profile)),
	}

	resp, err := s.llm.GenerateContent(ctx, messages, llms.WithTemperature(0.3))
	if err != nil {
		log.Printf("      ❌ AI analysis error for %q: %v", job.Title, err)
		return failed(err)
	}
	if len(resp.Choices) == 0 {
		return failed(errors.New("no response choices"))
	}

	result, err := parseResponse(resp.Choices[0].Content)
	if err != nil {
		log.Printf("      ❌ AI analysis error for %q: %v", job.Title, err)
		return failed(err)
	}
	return result
}

const responseSchema = `{
  "type": "object",
  "required": ["score", "summary"],
  "properties": {
    "score": {"type": "number", "minimum": 0, "maximum": 100},
    "summary": {
      "oneOf": [
        {"type": "string"},
        {"type": "array", "items": {"type": "string"}}
      ]
    }
  }
}`

var schema = mustSchema(responseSchema)

func mustSchema(s string) *gojsonschema.Schema {
	sch, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(s))
	if err != nil {
		panic(err)
	}
	return sch
}

// parseResponse validates the model output and converts it to a Result.
// The summary may come back as a string or as a list of bullet points.
func parseResponse(content string) (Result, error) {
	cleaned := extractJSONObject(cleanMarkdownJSON(content))

	res, err := schema.Validate(gojsonschema.NewStringLoader(cleaned))
	if err != nil {
		return Result{}, fmt.Errorf("invalid JSON in response: %w", err)
	}
	if !res.Valid() {
		msgs := make([]string, 0, len(res.Errors()))
		for _, e := range res.Errors() {
			msgs = append(msgs, e.String())
		}
		return Result{}, fmt.Errorf("schema validation failed: %s", strings.Join(msgs, "; "))
	}

	var raw struct {
		Score   float64         `json:"score"`
		Summary json.RawMessage `json:"summary"`
	}
	if err := json.Unmarshal([]byte(cleaned), &raw); err != nil {
		return Result{}, fmt.Errorf("failed to decode response: %w", err)
	}

	var summary string
	if err := json.Unmarshal(raw.Summary, &summary); err != nil {
		var bullets []string
		if err := json.Unmarshal(raw.Summary, &bullets); err != nil {
			return Result{}, fmt.Errorf("failed to decode summary: %w", err)
		}
		summary = strings.Join(bullets, "\n")
	}

	return Result{
		Score:   int(math.Round(raw.Score)),
		Summary: strings.TrimSpace(summary),
		Status:  models.ScoreCompleted,
	}, nil
}

// cleanMarkdownJSON removes backticks and "json" prefix if the AI model tries to be helpful
func cleanMarkdownJSON(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```json") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimSuffix(content, "```")
	} else if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
	}
	return strings.TrimSpace(content)
}

// extractJSONObject drops chatter before the first { and after the last }.
func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start == -1 || end < start {
		return content
	}
	return content[start : end+1]
}
