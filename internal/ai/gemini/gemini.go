// Package gemini implements ai.Generator on the native Gemini API with
// structured JSON output.
package gemini

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/schema"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "gemini-2.5-flash"

// Client calls one Gemini model.
type Client struct {
	client *genai.Client
	model  string
}

// New creates a client for the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if model == "" {
		model = DefaultModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: create client: %w", err)
	}
	return &Client{client: client, model: model}, nil
}

// Generate implements ai.Generator.
func (c *Client) Generate(ctx context.Context, req ai.Request) (*ai.Response, error) {
	// Function calling and JSON output cannot be combined, so with a schema
	// any function parts in the history are sent as text.
	native := req.ResponseSchema == nil
	contents := toContents(req.Messages, native)

	config := &genai.GenerateContentConfig{}
	if req.SystemInstruction != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemInstruction, genai.RoleUser)
	}
	if req.ResponseSchema != nil {
		config.ResponseMIMEType = "application/json"
		config.ResponseSchema = toSchema(req.ResponseSchema)
	} else if len(req.Tools) > 0 {
		decls := make([]*genai.FunctionDeclaration, 0, len(req.Tools))
		for _, t := range req.Tools {
			decls = append(decls, &genai.FunctionDeclaration{
				Name:        t.Name,
				Description: t.Description,
				Parameters:  toSchema(t.Parameters),
			})
		}
		config.Tools = []*genai.Tool{{FunctionDeclarations: decls}}
	}

	completion, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, fmt.Errorf("gemini: %w", err)
	}

	resp := &ai.Response{Text: completion.Text()}
	for _, fc := range completion.FunctionCalls() {
		resp.FunctionCalls = append(resp.FunctionCalls, ai.FunctionCall{
			ID:   fc.ID,
			Name: fc.Name,
			Args: fc.Args,
		})
	}
	return resp, nil
}

func toContents(messages []ai.Message, native bool) []*genai.Content {
	contents := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		var role genai.Role = genai.RoleUser
		if m.Role == ai.RoleModel {
			role = genai.RoleModel
		}
		if !native {
			if text := m.FlatText(); text != "" {
				contents = append(contents, genai.NewContentFromText(text, role))
			}
			continue
		}

		var parts []*genai.Part
		if m.Text != "" {
			parts = append(parts, &genai.Part{Text: m.Text})
		}
		for _, fc := range m.FunctionCalls {
			parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{
				ID:   fc.ID,
				Name: fc.Name,
				Args: fc.Args,
			}})
		}
		for _, fr := range m.FunctionResponses {
			parts = append(parts, &genai.Part{FunctionResponse: &genai.FunctionResponse{
				ID:       fr.ID,
				Name:     fr.Name,
				Response: fr.Response,
			}})
		}
		if len(parts) > 0 {
			contents = append(contents, genai.NewContentFromParts(parts, role))
		}
	}
	return contents
}

// toSchema maps the neutral schema onto genai's, whose type names use the
// same upper-case spelling.
func toSchema(s *schema.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        genai.Type(s.Type),
		Description: s.Description,
		Enum:        s.Enum,
		Required:    s.Required,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, p := range s.Properties {
			out.Properties[name] = toSchema(p)
		}
	}
	return out
}
