// Package ai is the boundary to the language model. Providers implement
// Generator; the rest of the application only sees provider-neutral messages
// and the structured JSON reply parsed by ParseResponse.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/embernet/tapestry-sub001/internal/schema"
)

// Role is the author of a message.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// FunctionCall is a native tool call emitted by the model.
type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResponse carries a tool result back to the model.
type FunctionResponse struct {
	ID       string
	Name     string
	Response map[string]any
}

// Message is one turn of a conversation. A message carries text, function
// calls or function responses.
type Message struct {
	Role              Role
	Text              string
	FunctionCalls     []FunctionCall
	FunctionResponses []FunctionResponse
}

// FlatText renders the message as plain text, with function calls and
// responses written out as JSON. Providers use it when native function parts
// cannot be sent alongside a response schema.
func (m Message) FlatText() string {
	parts := make([]string, 0, 1+len(m.FunctionCalls)+len(m.FunctionResponses))
	if strings.TrimSpace(m.Text) != "" {
		parts = append(parts, m.Text)
	}
	for _, fc := range m.FunctionCalls {
		args, _ := json.Marshal(fc.Args)
		parts = append(parts, fmt.Sprintf("[called %s with %s]", fc.Name, args))
	}
	for _, fr := range m.FunctionResponses {
		resp, _ := json.Marshal(fr.Response)
		parts = append(parts, fmt.Sprintf("[result of %s: %s]", fr.Name, resp))
	}
	return strings.Join(parts, "\n")
}

// FunctionDeclaration declares a native tool.
type FunctionDeclaration struct {
	Name        string
	Description string
	Parameters  *schema.Schema
}

// Request is a single generate call.
type Request struct {
	Messages          []Message
	SystemInstruction string
	Tools             []FunctionDeclaration
	// ResponseSchema asks for a JSON reply of this shape.
	ResponseSchema *schema.Schema
}

// Response is the raw model reply.
type Response struct {
	Text          string
	FunctionCalls []FunctionCall
}

// Generator produces one model reply per request. Errors carry a
// human-readable message; IsTransient classifies them.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (*Response, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (*Response, error) {
	return f(ctx, req)
}
