// Package planner turns capability manifests and natural-language queries
// into structured documents via an LLM provider, and defensively parses the
// provider's untyped text output.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	sageerr "github.com/jllopis/sage/pkg/errors"
	"github.com/jllopis/sage/pkg/llm"
	"github.com/jllopis/sage/pkg/manifest"
)

const defaultTemperature = 0.2

// Call is one planned tool invocation.
type Call struct {
	Tool      string         `json:"tool"`
	Arguments map[string]any `json:"arguments"`
}

// Plan is the planner's answer for one query: an ordered call sequence plus
// a human-readable explanation. Ordering is authoritative; calls execute in
// sequence and never receive outputs of earlier calls.
type Plan struct {
	Explanation string `json:"explanation"`
	Calls       []Call `json:"calls"`
}

// Summary is the planner's analysis of a freshly discovered server.
type Summary struct {
	Name        string   `json:"name"`
	Description string   `json:"description"`
	Guidance    string   `json:"guidance"`
	ToolNames   []string `json:"toolNames"`
}

// Option configures a Planner.
type Option func(*Planner)

// WithModel overrides the provider's default model.
func WithModel(model string) Option {
	return func(p *Planner) {
		p.model = model
	}
}

// WithTemperature sets the sampling temperature for planner calls.
func WithTemperature(temperature float64) Option {
	return func(p *Planner) {
		if temperature > 0 {
			p.temperature = temperature
		}
	}
}

// Planner wraps an llm.Provider with the prompts Sage uses for discovery
// analysis and invocation planning.
type Planner struct {
	provider    llm.Provider
	model       string
	temperature float64
}

// New creates a Planner backed by the given provider.
func New(provider llm.Provider, opts ...Option) *Planner {
	p := &Planner{
		provider:    provider,
		temperature: defaultTemperature,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Summarize asks the planner to author an identity and coordination guidance
// for a server exposing the given manifest.
func (p *Planner) Summarize(ctx context.Context, m manifest.Manifest) (*Summary, error) {
	catalog, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, sageerr.New(sageerr.CodeInternal, "failed to encode manifest", err)
	}

	prompt := fmt.Sprintf(`You are analyzing an MCP tool server so it can be wrapped as a natural-language expert.

The server declares %d tools, %d resources and %d prompts:

%s

Return ONLY a JSON object, no prose and no markdown, with this shape:
{
  "name": "short human-friendly expert name",
  "description": "one-paragraph description of what this server is for",
  "guidance": "system prompt instructing a planner how to coordinate with this specific server",
  "toolNames": ["every", "declared", "tool", "name"]
}`,
		len(m.Tools), len(m.Resources), len(m.Prompts), catalog)

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: prompt},
		},
	})
	if err != nil {
		return nil, sageerr.New(sageerr.CodePlanner, "server analysis failed", err)
	}

	summary, err := ParseSummary(resp.Content)
	if err != nil {
		return nil, sageerr.New(sageerr.CodePlanner, "server analysis failed", err)
	}
	return summary, nil
}

// Plan asks the planner for an invocation plan answering query against the
// given tools, honoring the expert's coordination guidance.
func (p *Planner) Plan(ctx context.Context, guidance string, tools []manifest.Tool, query string) (*Plan, error) {
	catalog, err := json.MarshalIndent(tools, "", "  ")
	if err != nil {
		return nil, sageerr.New(sageerr.CodeInternal, "failed to encode tool catalog", err)
	}

	prompt := fmt.Sprintf(`Available tools (with input schemas):

%s

User query: %s

Decide which tool calls, if any, answer the query. Calls run strictly in the
order you list them and do not see each other's outputs, so every call must
carry its full arguments up front.

Return ONLY a JSON object, no prose and no markdown, with this shape:
{
  "explanation": "what the plan does and why",
  "calls": [
    {"tool": "toolName", "arguments": {"arg": "value"}}
  ]
}`,
		catalog, query)

	messages := []llm.Message{}
	if strings.TrimSpace(guidance) != "" {
		messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: guidance})
	}
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: prompt})

	resp, err := p.provider.Chat(ctx, llm.ChatRequest{
		Model:       p.model,
		Temperature: p.temperature,
		Messages:    messages,
	})
	if err != nil {
		return nil, sageerr.New(sageerr.CodePlanner, "failed to coordinate with wrapped server", err)
	}

	plan, err := ParsePlan(resp.Content)
	if err != nil {
		return nil, sageerr.New(sageerr.CodePlanner, "failed to coordinate with wrapped server", err)
	}
	return plan, nil
}
