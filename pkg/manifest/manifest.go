// Package manifest defines the capability manifest and expert descriptor,
// the data contract shared by the discovery and coordination engines.
package manifest

import (
	"encoding/json"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// Tool describes one invocable tool declared by a wrapped server.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// Resource describes one addressable read-only item declared by a wrapped server.
type Resource struct {
	URI         string `json:"uri"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// Prompt describes one reusable prompt template declared by a wrapped server.
type Prompt struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

// Manifest is the declared capability surface of a wrapped server. Servers
// that do not implement the resource or prompt sub-protocols are represented
// with empty sequences, never with an error.
type Manifest struct {
	Tools     []Tool     `json:"tools"`
	Resources []Resource `json:"resources"`
	Prompts   []Prompt   `json:"prompts"`
}

// ToolNames returns the manifest tool names in declaration order.
func (m Manifest) ToolNames() []string {
	names := make([]string, 0, len(m.Tools))
	for _, tool := range m.Tools {
		names = append(names, tool.Name)
	}
	return names
}

// FromMCPTools converts mcp-go tool descriptors into manifest tools, carrying
// the raw input schema through untouched.
func FromMCPTools(tools []mcp.Tool) []Tool {
	out := make([]Tool, 0, len(tools))
	for _, tool := range tools {
		out = append(out, Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: toolSchemaJSON(tool),
		})
	}
	return out
}

// FromMCPResources converts mcp-go resource descriptors into manifest resources.
func FromMCPResources(resources []mcp.Resource) []Resource {
	out := make([]Resource, 0, len(resources))
	for _, resource := range resources {
		out = append(out, Resource{
			URI:         resource.URI,
			Name:        resource.Name,
			Description: resource.Description,
		})
	}
	return out
}

// FromMCPPrompts converts mcp-go prompt descriptors into manifest prompts.
func FromMCPPrompts(prompts []mcp.Prompt) []Prompt {
	out := make([]Prompt, 0, len(prompts))
	for _, prompt := range prompts {
		out = append(out, Prompt{
			Name:        prompt.Name,
			Description: prompt.Description,
		})
	}
	return out
}

func toolSchemaJSON(tool mcp.Tool) json.RawMessage {
	if tool.RawInputSchema != nil {
		return tool.RawInputSchema
	}
	payload, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil
	}
	return payload
}

// Slug normalizes an identity name into a filesystem-safe token: lower-cased,
// runs of non-alphanumeric characters collapsed to a single dash.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			dash = false
		default:
			if !dash && b.Len() > 0 {
				b.WriteByte('-')
				dash = true
			}
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// EntryPointName derives the single exposed tool name from an expert's
// identity name: lower-cased, inter-word whitespace collapsed to underscores.
// The derivation is deterministic so repeated serve sessions for the same
// descriptor present the same name.
func EntryPointName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "_")
}
