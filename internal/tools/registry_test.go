package tools

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCatalogMatchesVariants(t *testing.T) {
	seen := map[string]bool{}
	for _, def := range Catalog() {
		assert.False(t, seen[def.Name], "duplicate tool %s", def.Name)
		seen[def.Name] = true
		_, ok := variants[def.Name]
		assert.True(t, ok, "no argument record for %s", def.Name)
		require.NotNil(t, def.Parameters, def.Name)
		for _, r := range def.Parameters.Required {
			_, ok := def.Parameters.Properties[r]
			assert.True(t, ok, "%s requires undeclared %s", def.Name, r)
		}
	}
	assert.Len(t, variants, len(seen))
}

func TestEnabledKeepsCoreTools(t *testing.T) {
	none := Enabled(nil)
	for _, def := range none {
		assert.True(t, def.Core())
	}
	names := func(defs []Definition) string {
		var out []string
		for _, d := range defs {
			out = append(out, d.Name)
		}
		return strings.Join(out, ",")
	}

	withKanban := Enabled([]string{"KANBAN"})
	assert.Len(t, withKanban, len(none)+1)
	assert.Contains(t, names(withKanban), Kanban)
	assert.NotContains(t, names(withKanban), CreateDocument)

	assert.Len(t, Enabled(Groups), len(Catalog()))
}

func TestDocsRendersOneLinePerTool(t *testing.T) {
	defs := Enabled([]string{GroupKanban})
	docs := Docs(defs)
	lines := strings.Split(strings.TrimSpace(docs), "\n")
	assert.Len(t, lines, len(defs))
	assert.Contains(t, docs, "- addRelationship: ")
	assert.Contains(t, docs, "direction (string NONE|TO|FROM|BOTH)")
	assert.Contains(t, docs, "Required: sourceName, targetName.")
	assert.Contains(t, docs, "tags (string[])")
}

func TestResponseSchemas(t *testing.T) {
	planning := PlanningSchema()
	assert.ElementsMatch(t, []string{"analysis", "message", "plan", "actions"}, planning.Required)

	exec := ExecutionSchema()
	_, hasPlan := exec.Properties["plan"]
	assert.False(t, hasPlan)

	m := exec.Map(true)
	assert.Equal(t, "object", m["type"])
}

func TestParseParameters(t *testing.T) {
	tests := []struct {
		in   string
		want map[string]any
	}{
		{`{"name":"Rain"}`, map[string]any{"name": "Rain"}},
		{"", map[string]any{}},
		{`[1,2]`, map[string]any{}},
		{`{"name": "Rain",}`, map[string]any{"name": "Rain"}},
		{`{name: 'Rain'}`, map[string]any{"name": "Rain"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ParseParameters(tt.in), tt.in)
	}
	assert.NotNil(t, ParseParameters("}}}not json at all{{{"))
}

func TestDecode(t *testing.T) {
	args, err := Decode(AddRelationship, map[string]any{
		"sourceName": "A", "targetName": "B", "tags": "x, y",
	})
	require.NoError(t, err)
	rel, ok := args.(*AddRelationshipArgs)
	require.True(t, ok)
	assert.Equal(t, StringList{"x", "y"}, rel.Tags)

	_, err = Decode(AddRelationship, map[string]any{"sourceName": "A"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "targetName is required")

	_, err = Decode("frobnicate", nil)
	assert.ErrorIs(t, err, ErrUnknownTool)

	args, err = Decode(OpenTool, map[string]any{"tool": "kanban"})
	require.NoError(t, err)
	assert.Equal(t, "kanban", args.(*OpenToolArgs).Target)
	assert.Equal(t, OpenTool, args.Tool())

	args, err = Decode(UpdateElement, map[string]any{"name": "A", "tags": nil})
	require.NoError(t, err)
	assert.Nil(t, args.(*UpdateElementArgs).Tags)
}
