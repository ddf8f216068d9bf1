package manifest

import (
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestSlug(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Weather Expert", "weather-expert"},
		{"  GitHub / Issues!  ", "github-issues"},
		{"already-slugged", "already-slugged"},
		{"CAPS AND   SPACES", "caps-and-spaces"},
		{"trailing punctuation...", "trailing-punctuation"},
		{"", ""},
		{"!!!", ""},
	}
	for _, tc := range cases {
		if got := Slug(tc.in); got != tc.want {
			t.Errorf("Slug(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEntryPointName(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Weather Expert", "weather_expert"},
		{"  Filesystem   Helper ", "filesystem_helper"},
		{"single", "single"},
	}
	for _, tc := range cases {
		if got := EntryPointName(tc.in); got != tc.want {
			t.Errorf("EntryPointName(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestEntryPointNameDeterministic(t *testing.T) {
	first := EntryPointName("Weather Expert")
	second := EntryPointName("Weather Expert")
	if first != second {
		t.Fatalf("entry point name changed between derivations: %q vs %q", first, second)
	}
}

func TestFromMCPToolsPrefersRawSchema(t *testing.T) {
	raw := json.RawMessage(`{"type":"object","properties":{"city":{"type":"string"}}}`)
	tools := FromMCPTools([]mcp.Tool{
		{Name: "forecast", Description: "Weather forecast", RawInputSchema: raw},
	})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	if string(tools[0].InputSchema) != string(raw) {
		t.Errorf("expected raw schema to be carried through, got %s", tools[0].InputSchema)
	}
}

func TestFromMCPToolsMarshalsTypedSchema(t *testing.T) {
	tool := mcp.NewTool("add",
		mcp.WithString("a", mcp.Required()),
		mcp.WithString("b", mcp.Required()),
	)
	tools := FromMCPTools([]mcp.Tool{tool})
	if len(tools) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(tools))
	}
	var schema map[string]any
	if err := json.Unmarshal(tools[0].InputSchema, &schema); err != nil {
		t.Fatalf("schema is not valid JSON: %v", err)
	}
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
}

func TestToolNames(t *testing.T) {
	m := Manifest{Tools: []Tool{{Name: "b"}, {Name: "a"}, {Name: "c"}}}
	names := m.ToolNames()
	want := []string{"b", "a", "c"}
	if len(names) != len(want) {
		t.Fatalf("expected %d names, got %d", len(want), len(names))
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("name %d: got %q, want %q (declaration order must be preserved)", i, names[i], want[i])
		}
	}
}
