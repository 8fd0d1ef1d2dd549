package mooceditor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// DefaultGeminiModel is the model the editor has always generated with
const DefaultGeminiModel = "gemini-2.5-flash"

const geminiAttempts = 3

// GeminiEngine asks a Gemini model for questions, constrained to JSON output.
type GeminiEngine struct {
	APIKey string
	Model  string
	// Endpoint overrides the API endpoint, for tests and proxies.
	Endpoint string
}

func NewGeminiEngine(apiKey, model string) *GeminiEngine {
	model = strings.TrimSpace(model)
	if model == "" {
		model = DefaultGeminiModel
	}
	return &GeminiEngine{
		APIKey: strings.TrimSpace(apiKey),
		Model:  model,
	}
}

func (e *GeminiEngine) Name() string { return "gemini:" + e.Model }

// Complete sends prompt and returns the model's text. Transport failures
// are retried with a growing pause; an empty answer is not.
func (e *GeminiEngine) Complete(ctx context.Context, prompt string) (string, error) {
	if e.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	opts := []option.ClientOption{option.WithAPIKey(e.APIKey)}
	if e.Endpoint != "" {
		opts = append(opts, option.WithEndpoint(e.Endpoint))
	}
	cl, err := genai.NewClient(ctx, opts...)
	if err != nil {
		return "", fmt.Errorf("failed to create gemini client: %w", err)
	}
	defer cl.Close()

	m := cl.GenerativeModel(e.Model)
	m.GenerationConfig = genai.GenerationConfig{
		ResponseMIMEType: "application/json",
	}

	var lastErr error
	for attempt := 1; attempt <= geminiAttempts; attempt++ {
		resp, err := m.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			lastErr = err
			VerboseLog("Gemini attempt %d failed: %v", attempt, err)
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("failed to call %s: %w", e.Model, ctx.Err())
			case <-time.After(time.Duration(attempt) * 300 * time.Millisecond):
			}
			continue
		}
		text := strings.TrimSpace(firstText(resp))
		if text == "" {
			return "", fmt.Errorf("%s returned an empty response", e.Model)
		}
		return text, nil
	}
	return "", fmt.Errorf("failed to call %s: %w", e.Model, lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}
