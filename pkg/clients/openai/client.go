// Package openai implements the NLU extraction collaborator on top of the
// OpenAI chat completions API, using forced function calls so the model's
// output always arrives as JSON arguments.
package openai

import (
	"context"
	"encoding/json"
	"fmt"

	gopenai "github.com/sashabaranov/go-openai"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
	"github.com/mnuel1/chat-fieldiq/internal/service/chat"
)

// Client talks to the OpenAI API and satisfies the chat.Extractor contract.
type Client struct {
	api   *gopenai.Client
	model string
}

// NewClient builds an extraction client for the given API key and model.
func NewClient(apiKey, model string) *Client {
	return &Client{
		api:   gopenai.NewClient(apiKey),
		model: model,
	}
}

// wireExtraction mirrors the function-call argument payload shared by every
// extraction function.
type wireExtraction struct {
	IncidentDetails map[string]any `json:"incident_details"`
	ReportDetails   map[string]any `json:"report_details"`
	NextAction      string         `json:"next_action"`
	Response        string         `json:"response"`
	LogType         string         `json:"log_type"`
}

// Extract runs one slot-filling extraction turn.
func (c *Client) Extract(ctx context.Context, req chat.ExtractionRequest) (chat.ExtractionResult, error) {
	spec, ok := intentSpecs[req.Intent]
	if !ok {
		return chat.ExtractionResult{}, fmt.Errorf("%w: no extraction spec for intent %d", fielderr.ErrExtraction, req.Intent)
	}

	messages := []gopenai.ChatCompletionMessage{{
		Role:    gopenai.ChatMessageRoleSystem,
		Content: spec.systemPrompt + fmt.Sprintf(" Strictly follow this language: %s when responding.", req.Language),
	}}
	for _, msg := range req.History {
		role := gopenai.ChatMessageRoleUser
		if msg.Role == models.RoleModel {
			role = gopenai.ChatMessageRoleAssistant
		}
		messages = append(messages, gopenai.ChatCompletionMessage{Role: role, Content: msg.Message})
	}
	messages = append(messages, gopenai.ChatCompletionMessage{
		Role: gopenai.ChatMessageRoleUser,
		Content: fmt.Sprintf("%s\n\nToday's date is %s.\n\n%s\n\n(Previously collected info):\n%s",
			req.Utterance, req.Today, req.ProgramContext, req.FormSummary),
	})

	arguments, err := c.callFunction(ctx, messages, spec.function)
	if err != nil {
		return chat.ExtractionResult{}, err
	}

	var wire wireExtraction
	if err := json.Unmarshal(arguments, &wire); err != nil {
		return chat.ExtractionResult{}, fmt.Errorf("%w: %v", fielderr.ErrExtraction, err)
	}
	if wire.Response == "" || (wire.NextAction == "" && spec.formKey != "") {
		return chat.ExtractionResult{}, fmt.Errorf("%w: function arguments missing required fields", fielderr.ErrExtraction)
	}

	result := chat.ExtractionResult{
		NextAction: wire.NextAction,
		Response:   wire.Response,
		Category:   wire.LogType,
	}
	switch spec.formKey {
	case "incident_details":
		result.NewFields = wire.IncidentDetails
	case "report_details":
		result.NewFields = wire.ReportDetails
	}
	return result, nil
}

// intentWire is the classifier's argument payload.
type intentWire struct {
	ID       int    `json:"id"`
	Response string `json:"response"`
	LogType  string `json:"log_type"`
}

// ClassifyIntent resolves which pipeline should handle the utterance.
func (c *Client) ClassifyIntent(ctx context.Context, utterance string) (chat.Intent, chat.ExtractionResult, error) {
	messages := []gopenai.ChatCompletionMessage{
		{Role: gopenai.ChatMessageRoleSystem, Content: intentPrompt},
		{Role: gopenai.ChatMessageRoleUser, Content: utterance},
	}

	arguments, err := c.callFunction(ctx, messages, intentFunction)
	if err != nil {
		return chat.IntentUnknown, chat.ExtractionResult{}, err
	}

	var wire intentWire
	if err := json.Unmarshal(arguments, &wire); err != nil {
		return chat.IntentUnknown, chat.ExtractionResult{}, fmt.Errorf("%w: %v", fielderr.ErrExtraction, err)
	}

	return chat.Intent(wire.ID), chat.ExtractionResult{
		Response: wire.Response,
		Category: wire.LogType,
	}, nil
}

type languageWire struct {
	UserLanguage string `json:"user_language"`
}

// DetectLanguage identifies the language the farmer is writing in.
func (c *Client) DetectLanguage(ctx context.Context, utterance string) (string, error) {
	messages := []gopenai.ChatCompletionMessage{
		{Role: gopenai.ChatMessageRoleSystem, Content: languagePrompt},
		{Role: gopenai.ChatMessageRoleUser, Content: utterance},
	}

	arguments, err := c.callFunction(ctx, messages, languageFunction)
	if err != nil {
		return "", err
	}

	var wire languageWire
	if err := json.Unmarshal(arguments, &wire); err != nil {
		return "", fmt.Errorf("%w: %v", fielderr.ErrExtraction, err)
	}
	if wire.UserLanguage == "" {
		return "", fmt.Errorf("%w: empty user_language", fielderr.ErrExtraction)
	}
	return wire.UserLanguage, nil
}

// callFunction executes a chat completion with a forced function call and
// returns the raw argument bytes.
func (c *Client) callFunction(ctx context.Context, messages []gopenai.ChatCompletionMessage, fn gopenai.FunctionDefinition) ([]byte, error) {
	resp, err := c.api.CreateChatCompletion(ctx, gopenai.ChatCompletionRequest{
		Model:        c.model,
		Messages:     messages,
		Functions:    []gopenai.FunctionDefinition{fn},
		FunctionCall: gopenai.FunctionCall{Name: fn.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("openai chat completion: %w", err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.FunctionCall == nil {
		return nil, fmt.Errorf("%w: model returned no function call", fielderr.ErrExtraction)
	}
	return []byte(resp.Choices[0].Message.FunctionCall.Arguments), nil
}
