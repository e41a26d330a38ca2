package ai

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/kaptinlin/jsonrepair"

	"github.com/embernet/tapestry-sub001/internal/models"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

// ErrMalformedResponse is returned when a reply cannot be read as JSON.
var ErrMalformedResponse = errors.New("malformed model response")

// Action is a tool call proposed in a structured reply. Parameters is a
// JSON-encoded object; models that send an object instead are accepted too.
type Action struct {
	Tool       string `json:"tool"`
	Parameters string `json:"parameters"`
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var raw struct {
		Tool       string          `json:"tool"`
		Name       string          `json:"name"`
		Parameters json.RawMessage `json:"parameters"`
		Args       json.RawMessage `json:"args"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	a.Tool = raw.Tool
	if a.Tool == "" {
		a.Tool = raw.Name
	}
	params := raw.Parameters
	if len(params) == 0 {
		params = raw.Args
	}
	a.Parameters = ""
	if len(params) > 0 {
		var s string
		if err := json.Unmarshal(params, &s); err == nil {
			a.Parameters = s
		} else {
			a.Parameters = string(params)
		}
	}
	return nil
}

// ProposedStep is one entry of a proposed plan.
type ProposedStep struct {
	ID           tools.FlexString `json:"id"`
	Description  string           `json:"description"`
	Prompt       string           `json:"prompt"`
	Dependencies tools.StringList `json:"dependencies"`
}

// Structured is the parsed JSON reply.
type Structured struct {
	Analysis string         `json:"analysis"`
	Message  string         `json:"message"`
	Plan     []ProposedStep `json:"plan,omitempty"`
	Actions  []Action       `json:"actions"`
}

// Empty reports whether the reply neither acts nor says anything.
func (s *Structured) Empty() bool {
	return len(s.Actions) == 0 && strings.TrimSpace(s.Message) == ""
}

// ToolCalls converts the actions to tool calls. Malformed parameters become
// an empty argument map.
func (s *Structured) ToolCalls(newID func() string) []models.ToolCall {
	calls := make([]models.ToolCall, 0, len(s.Actions))
	for _, a := range s.Actions {
		calls = append(calls, models.ToolCall{
			ID:   newID(),
			Name: a.Tool,
			Args: tools.ParseParameters(a.Parameters),
		})
	}
	return calls
}

// PlanSteps converts the proposed plan to pending steps, generating ids where
// the model left them out.
func (s *Structured) PlanSteps(newID func() string) []models.PlanStep {
	steps := make([]models.PlanStep, 0, len(s.Plan))
	for _, p := range s.Plan {
		id := strings.TrimSpace(string(p.ID))
		if id == "" {
			id = newID()
		}
		deps := make([]string, 0, len(p.Dependencies))
		for _, d := range p.Dependencies {
			if d = strings.TrimSpace(d); d != "" {
				deps = append(deps, d)
			}
		}
		steps = append(steps, models.PlanStep{
			ID:           id,
			Description:  p.Description,
			Prompt:       p.Prompt,
			Dependencies: deps,
			Status:       models.StepPending,
		})
	}
	return steps
}

// ParseResponse reads a structured reply. Markdown code fences and text
// around the JSON object are ignored, and broken JSON is repaired where
// possible. Native function calls in resp are appended as actions.
func ParseResponse(resp *Response) (*Structured, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty response", ErrMalformedResponse)
	}
	out := &Structured{}
	text := extractJSON(resp.Text)
	if text != "" {
		if err := json.Unmarshal([]byte(text), out); err != nil {
			repaired, rerr := jsonrepair.JSONRepair(text)
			if rerr != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
			out = &Structured{}
			if err := json.Unmarshal([]byte(repaired), out); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
			}
		}
	} else if len(resp.FunctionCalls) == 0 {
		return nil, fmt.Errorf("%w: no JSON object in reply", ErrMalformedResponse)
	}
	for _, fc := range resp.FunctionCalls {
		params, _ := json.Marshal(fc.Args)
		out.Actions = append(out.Actions, Action{Tool: fc.Name, Parameters: string(params)})
	}
	return out, nil
}

// extractJSON strips code fences and returns the outermost JSON object.
func extractJSON(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.Index(text, "```"); i >= 0 {
		rest := text[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.LastIndex(rest, "```"); j >= 0 {
			rest = rest[:j]
		}
		text = strings.TrimSpace(rest)
	}
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
