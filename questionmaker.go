package mooceditor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

const submitTool = "submit_questions"

// OpenAIEngine asks an OpenAI chat model for questions. The model returns
// its items through the submit_questions tool; plain message content is
// accepted as well and left to the normalizer.
type OpenAIEngine struct {
	client *openai.Client
	model  string
}

// NewOpenAIEngine creates an engine for model (GPT-4o when empty). A
// non-empty baseURL replaces the public API endpoint.
func NewOpenAIEngine(apiKey, model, baseURL string) *OpenAIEngine {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model == "" {
		model = openai.GPT4o
	}
	return &OpenAIEngine{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
	}
}

func (e *OpenAIEngine) Name() string { return "openai:" + e.model }

// Complete sends prompt and returns the JSON text of the generated items
func (e *OpenAIEngine) Complete(ctx context.Context, prompt string) (string, error) {
	editorLog.Printf("Requesting questions from %s", e.model)

	resp, err := e.client.CreateChatCompletion(
		ctx,
		openai.ChatCompletionRequest{
			Model: e.model,
			Messages: []openai.ChatCompletionMessage{
				{
					Role:    openai.ChatMessageRoleSystem,
					Content: "You write quiz questions for French learners. Follow the requested JSON formats exactly and submit every question with the submit_questions tool.",
				},
				{
					Role:    openai.ChatMessageRoleUser,
					Content: prompt,
				},
			},
			Tools: []openai.Tool{
				{
					Type: openai.ToolTypeFunction,
					Function: &openai.FunctionDefinition{
						Name:        submitTool,
						Description: "Submit the generated quiz questions",
						Parameters: map[string]interface{}{
							"type": "object",
							"properties": map[string]interface{}{
								"questions": map[string]interface{}{
									"type":        "array",
									"description": "The question objects, in the format the prompt describes",
									"items": map[string]interface{}{
										"type": "object",
									},
								},
							},
							"required": []string{"questions"},
						},
					},
				},
			},
			ToolChoice: openai.ToolChoice{
				Type: openai.ToolTypeFunction,
				Function: openai.ToolFunction{
					Name: submitTool,
				},
			},
		},
	)
	if err != nil {
		return "", fmt.Errorf("failed to call %s: %w", e.model, err)
	}

	VerboseLog("Received response from %s with %d choices", e.model, len(resp.Choices))
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no response from %s", e.model)
	}

	msg := resp.Choices[0].Message
	if len(msg.ToolCalls) == 0 {
		if strings.TrimSpace(msg.Content) == "" {
			return "", fmt.Errorf("no tool calls or content in response from %s", e.model)
		}
		return msg.Content, nil
	}

	call := msg.ToolCalls[0]
	if call.Function.Name != submitTool {
		return "", fmt.Errorf("unexpected tool call: %s", call.Function.Name)
	}
	var args struct {
		Questions json.RawMessage `json:"questions"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("failed to parse tool arguments: %w", err)
	}
	if len(args.Questions) == 0 {
		return "", fmt.Errorf("tool call from %s has no questions", e.model)
	}
	return string(args.Questions), nil
}
