package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/embernet/tapestry-sub001/internal/apperrors"
)

func seqID() func() string {
	n := 0
	return func() string { n++; return fmt.Sprintf("gen-%d", n) }
}

func TestParseResponseFenced(t *testing.T) {
	resp := &Response{Text: "Sure!\n```json\n{\"analysis\":\"a\",\"message\":\"Adding\",\"actions\":[{\"tool\":\"addElement\",\"parameters\":\"{\\\"name\\\":\\\"Rain\\\"}\"}]}\n```"}
	s, err := ParseResponse(resp)
	require.NoError(t, err)
	assert.Equal(t, "Adding", s.Message)
	require.Len(t, s.Actions, 1)

	calls := s.ToolCalls(seqID())
	require.Len(t, calls, 1)
	assert.Equal(t, "addElement", calls[0].Name)
	assert.Equal(t, "gen-1", calls[0].ID)
	assert.Equal(t, map[string]any{"name": "Rain"}, calls[0].Args)
}

func TestParseResponseObjectParametersAndRepair(t *testing.T) {
	resp := &Response{Text: `{"message": "ok", "actions": [{"tool": "deleteElement", "parameters": {"name": "Rain"}},],}`}
	s, err := ParseResponse(resp)
	require.NoError(t, err)
	calls := s.ToolCalls(seqID())
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"name": "Rain"}, calls[0].Args)
}

func TestParseResponseMalformedParameters(t *testing.T) {
	resp := &Response{Text: `{"message":"m","actions":[{"tool":"addElement","parameters":"not json"}]}`}
	s, err := ParseResponse(resp)
	require.NoError(t, err)
	calls := s.ToolCalls(seqID())
	require.Len(t, calls, 1)
	assert.NotNil(t, calls[0].Args)
}

func TestParseResponsePlan(t *testing.T) {
	resp := &Response{Text: `{"analysis":"","message":"Plan","plan":[
		{"id":1,"description":"first","prompt":"do 1","dependencies":[]},
		{"description":"second","prompt":"do 2","dependencies":[1]}
	],"actions":[]}`}
	s, err := ParseResponse(resp)
	require.NoError(t, err)

	steps := s.PlanSteps(seqID())
	require.Len(t, steps, 2)
	assert.Equal(t, "1", steps[0].ID)
	assert.Equal(t, "gen-1", steps[1].ID)
	assert.Equal(t, []string{"1"}, steps[1].Dependencies)
	assert.Equal(t, "pending", string(steps[1].Status))
}

func TestParseResponseFunctionCalls(t *testing.T) {
	s, err := ParseResponse(&Response{FunctionCalls: []FunctionCall{{Name: "readGraph", Args: map[string]any{}}}})
	require.NoError(t, err)
	require.Len(t, s.Actions, 1)
	assert.Equal(t, "readGraph", s.Actions[0].Tool)
	assert.True(t, s.Empty() == false)
}

func TestParseResponseRejectsPlainText(t *testing.T) {
	_, err := ParseResponse(&Response{Text: "I cannot help with that."})
	assert.ErrorIs(t, err, ErrMalformedResponse)

	_, err = ParseResponse(nil)
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestStructuredEmpty(t *testing.T) {
	assert.True(t, (&Structured{Message: "  "}).Empty())
	assert.False(t, (&Structured{Message: "done"}).Empty())
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{errors.New("googleapi: Error 503: The model is overloaded"), true},
		{errors.New("Error 500: Internal error encountered"), true},
		{errors.New("Overloaded"), true},
		{errors.New("RESOURCE_EXHAUSTED: quota"), true},
		{errors.New("429 Too Many Requests"), true},
		{errors.New("400 invalid argument"), false},
		{errors.New("API key not valid"), false},
		{apperrors.NewTransientError(errors.New("socket closed")), true},
		{fmt.Errorf("wrapped: %w", gobreaker.ErrOpenState), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsTransient(tt.err), "%v", tt.err)
	}
}

func TestBreakerOpensOnTransientFailures(t *testing.T) {
	calls := 0
	next := GeneratorFunc(func(context.Context, Request) (*Response, error) {
		calls++
		return nil, errors.New("503 UNAVAILABLE")
	})
	g := WithBreaker(next, BreakerSettings{Name: "test", Failures: 2, Timeout: time.Minute, Logger: zaptest.NewLogger(t)})

	for i := 0; i < 2; i++ {
		_, err := g.Generate(context.Background(), Request{})
		require.Error(t, err)
	}
	_, err := g.Generate(context.Background(), Request{})
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.True(t, IsTransient(err))
	assert.Equal(t, 2, calls)
}

func TestBreakerIgnoresPermanentErrors(t *testing.T) {
	calls := 0
	next := GeneratorFunc(func(context.Context, Request) (*Response, error) {
		calls++
		return nil, errors.New("400 bad schema")
	})
	g := WithBreaker(next, BreakerSettings{Name: "test", Failures: 1, Timeout: time.Minute})

	for i := 0; i < 3; i++ {
		_, err := g.Generate(context.Background(), Request{})
		require.Error(t, err)
		assert.NotErrorIs(t, err, gobreaker.ErrOpenState)
	}
	assert.Equal(t, 3, calls)
}

type outcomeRecorder []string

func (r *outcomeRecorder) AIRequest(outcome string) { *r = append(*r, outcome) }

func TestInstrument(t *testing.T) {
	var rec outcomeRecorder
	replies := []error{nil, errors.New("503"), errors.New("denied")}
	i := 0
	next := GeneratorFunc(func(context.Context, Request) (*Response, error) {
		err := replies[i]
		i++
		if err != nil {
			return nil, err
		}
		return &Response{Text: "{}"}, nil
	})
	g := Instrument(next, zaptest.NewLogger(t), &rec)
	for range replies {
		_, _ = g.Generate(context.Background(), Request{})
	}
	assert.Equal(t, outcomeRecorder{OutcomeSuccess, OutcomeTransient, OutcomeError}, rec)
}

func TestFlatText(t *testing.T) {
	m := Message{
		Role:              RoleModel,
		Text:              "Done.",
		FunctionCalls:     []FunctionCall{{Name: "addElement", Args: map[string]any{"name": "Rain"}}},
		FunctionResponses: []FunctionResponse{{Name: "addElement", Response: map[string]any{"success": true}}},
	}
	assert.Equal(t, "Done.\n[called addElement with {\"name\":\"Rain\"}]\n[result of addElement: {\"success\":true}]", m.FlatText())
}
