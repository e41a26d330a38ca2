// Package openai implements ai.Generator on any OpenAI-compatible
// chat-completions endpoint.
package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/schema"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gpt-4o-mini"

// Client calls one chat-completions model.
type Client struct {
	client openai.Client
	model  string
}

// New creates a client. An empty baseURL uses the OpenAI endpoint.
func New(apiKey, baseURL, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("openai: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &Client{client: openai.NewClient(opts...), model: model}, nil
}

// Generate implements ai.Generator.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	params := buildParams(c.model, req)

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("openai: reply has no choices")
	}

	msg := completion.Choices[0].Message
	resp := &ai.Response{Text: msg.Content}
	for _, tc := range msg.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			args = map[string]any{}
		}
		resp.FunctionCalls = append(resp.FunctionCalls, ai.FunctionCall{
			ID:   tc.ID,
			Name: tc.Function.Name,
			Args: args,
		})
	}
	return resp, nil
}

func buildParams(model string, req ai.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model: model,
	}

	var messages []openai.ChatCompletionMessageParamUnion
	if req.SystemInstruction != "" {
		messages = append(messages, openai.SystemMessage(req.SystemInstruction))
	}
	// Function parts are sent as text: replaying native tool calls would
	// require matching tool_call ids the endpoint issued itself.
	for _, m := range req.Messages {
		text := m.FlatText()
		if text == "" {
			continue
		}
		if m.Role == ai.RoleModel {
			messages = append(messages, openai.AssistantMessage(text))
		} else {
			messages = append(messages, openai.UserMessage(text))
		}
	}
	params.Messages = messages

	if req.ResponseSchema != nil {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{
				JSONSchema: openai.ResponseFormatJSONSchemaJSONSchemaParam{
					Name:   "response",
					Schema: Sanitize(req.ResponseSchema),
					Strict: openai.Bool(false),
				},
			},
		}
	} else if len(req.Tools) > 0 {
		var tools []openai.ChatCompletionToolParam
		for _, t := range req.Tools {
			tools = append(tools, openai.ChatCompletionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  openai.FunctionParameters(Sanitize(t.Parameters)),
				},
			})
		}
		params.Tools = tools
	}
	return params
}

// Sanitize converts a schema to the lower-case JSON-schema dialect these
// endpoints accept.
func Sanitize(s *schema.Schema) map[string]any {
	if s == nil {
		return map[string]any{"type": "object", "properties": map[string]any{}}
	}
	return s.Map(true)
}
