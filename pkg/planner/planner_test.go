package planner

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	sageerr "github.com/jllopis/sage/pkg/errors"
	"github.com/jllopis/sage/pkg/llm"
	"github.com/jllopis/sage/pkg/manifest"
)

func TestSummarize(t *testing.T) {
	provider := llm.NewScriptedProvider(
		`{"name":"Calculator","description":"Does math","guidance":"Use one call per operation","toolNames":["add","sub"]}`,
	)
	p := New(provider)

	m := manifest.Manifest{
		Tools:     []manifest.Tool{{Name: "add"}, {Name: "sub"}},
		Resources: []manifest.Resource{},
		Prompts:   []manifest.Prompt{},
	}
	summary, err := p.Summarize(context.Background(), m)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Name != "Calculator" {
		t.Errorf("unexpected name: %q", summary.Name)
	}
	if len(summary.ToolNames) != 2 {
		t.Errorf("unexpected tool names: %v", summary.ToolNames)
	}

	if provider.CallCount != 1 {
		t.Fatalf("expected 1 provider call, got %d", provider.CallCount)
	}
	prompt := provider.Requests[0].Messages[0].Content
	if !strings.Contains(prompt, "2 tools") {
		t.Errorf("prompt does not mention the tool count: %s", prompt)
	}
	if !strings.Contains(prompt, `"add"`) {
		t.Errorf("prompt does not carry the tool catalog: %s", prompt)
	}
}

func TestSummarizeProviderFailure(t *testing.T) {
	p := New(&llm.FailingMockProvider{})
	_, err := p.Summarize(context.Background(), manifest.Manifest{})
	if sageerr.CodeOf(err) != sageerr.CodePlanner {
		t.Fatalf("expected PLANNER_ERROR, got %v", err)
	}
}

func TestSummarizeUnparseableOutput(t *testing.T) {
	p := New(&llm.MockProvider{Response: "I could not decide on a summary."})
	_, err := p.Summarize(context.Background(), manifest.Manifest{})
	if sageerr.CodeOf(err) != sageerr.CodePlanner {
		t.Fatalf("expected PLANNER_ERROR, got %v", err)
	}
}

func TestPlan(t *testing.T) {
	provider := llm.NewScriptedProvider(
		`{"explanation":"add 15 and 27","calls":[{"tool":"add","arguments":{"a":15,"b":27}}]}`,
	)
	p := New(provider, WithModel("test-model"))

	tools := []manifest.Tool{
		{Name: "add", InputSchema: json.RawMessage(`{"type":"object"}`)},
	}
	plan, err := p.Plan(context.Background(), "Be precise.", tools, "what is 15 plus 27?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Calls) != 1 || plan.Calls[0].Tool != "add" {
		t.Fatalf("unexpected plan: %+v", plan)
	}

	req := provider.Requests[0]
	if req.Model != "test-model" {
		t.Errorf("model not forwarded: %q", req.Model)
	}
	if req.Messages[0].Role != llm.RoleSystem || req.Messages[0].Content != "Be precise." {
		t.Errorf("guidance should be the system message, got %+v", req.Messages[0])
	}
	user := req.Messages[1].Content
	if !strings.Contains(user, "what is 15 plus 27?") {
		t.Errorf("query missing from prompt: %s", user)
	}
	if !strings.Contains(user, "do not see each other's outputs") {
		t.Errorf("prompt does not state the no-output-threading contract: %s", user)
	}
}

func TestPlanWithoutGuidanceSkipsSystemMessage(t *testing.T) {
	provider := llm.NewScriptedProvider(`{"explanation":"noop","calls":[]}`)
	p := New(provider)
	if _, err := p.Plan(context.Background(), "  ", nil, "anything"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := provider.Requests[0].Messages[0].Role; got != llm.RoleUser {
		t.Errorf("expected user message first when guidance is blank, got %s", got)
	}
}

func TestPlanUnparseableOutput(t *testing.T) {
	p := New(&llm.MockProvider{Response: "Sure! I would call the add tool."})
	_, err := p.Plan(context.Background(), "", nil, "add things")
	if sageerr.CodeOf(err) != sageerr.CodePlanner {
		t.Fatalf("expected PLANNER_ERROR, got %v", err)
	}
}

func TestPlanProviderFailure(t *testing.T) {
	p := New(&llm.FailingMockProvider{})
	_, err := p.Plan(context.Background(), "", nil, "add things")
	if sageerr.CodeOf(err) != sageerr.CodePlanner {
		t.Fatalf("expected PLANNER_ERROR, got %v", err)
	}
}
