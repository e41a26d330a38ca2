package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/embernet/tapestry-sub001/internal/ai"
	"github.com/embernet/tapestry-sub001/internal/tools"
)

func TestToSchemaKeepsUpperCaseTypes(t *testing.T) {
	s := toSchema(tools.PlanningSchema())
	require.NotNil(t, s)
	assert.Equal(t, genai.TypeObject, s.Type)
	plan := s.Properties["plan"]
	require.NotNil(t, plan)
	assert.Equal(t, genai.TypeArray, plan.Type)
	assert.Equal(t, genai.TypeObject, plan.Items.Type)
	assert.ElementsMatch(t, []string{"analysis", "message", "plan", "actions"}, s.Required)
}

func TestToContents(t *testing.T) {
	messages := []ai.Message{
		{Role: ai.RoleUser, Text: "Add Rain"},
		{Role: ai.RoleModel, FunctionCalls: []ai.FunctionCall{{ID: "c1", Name: "addElement", Args: map[string]any{"name": "Rain"}}}},
		{Role: ai.RoleUser, FunctionResponses: []ai.FunctionResponse{{ID: "c1", Name: "addElement", Response: map[string]any{"success": true}}}},
		{Role: ai.RoleModel},
	}

	native := toContents(messages, true)
	require.Len(t, native, 3)
	assert.Equal(t, "model", native[1].Role)
	require.NotNil(t, native[1].Parts[0].FunctionCall)
	assert.Equal(t, "addElement", native[1].Parts[0].FunctionCall.Name)
	require.NotNil(t, native[2].Parts[0].FunctionResponse)

	flat := toContents(messages, false)
	require.Len(t, flat, 3)
	assert.Contains(t, flat[1].Parts[0].Text, "[called addElement")
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(t.Context(), "", "")
	assert.Error(t, err)
}
