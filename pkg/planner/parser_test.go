package planner

import (
	"testing"
)

func TestParsePlanBareJSON(t *testing.T) {
	plan, err := ParsePlan(`{"explanation":"add the numbers","calls":[{"tool":"add","arguments":{"a":15,"b":27}}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Explanation != "add the numbers" {
		t.Errorf("unexpected explanation: %q", plan.Explanation)
	}
	if len(plan.Calls) != 1 || plan.Calls[0].Tool != "add" {
		t.Fatalf("unexpected calls: %+v", plan.Calls)
	}
	if plan.Calls[0].Arguments["a"] != float64(15) {
		t.Errorf("unexpected argument a: %v", plan.Calls[0].Arguments["a"])
	}
}

func TestParsePlanFencedJSON(t *testing.T) {
	text := "```json\n{\"explanation\":\"ok\",\"calls\":[]}\n```"
	plan, err := ParsePlan(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Explanation != "ok" {
		t.Errorf("unexpected explanation: %q", plan.Explanation)
	}
	if len(plan.Calls) != 0 {
		t.Errorf("expected empty plan, got %d calls", len(plan.Calls))
	}
}

func TestParsePlanYAMLFallback(t *testing.T) {
	text := "explanation: fetched via yaml\ncalls:\n  - tool: fetch\n    arguments:\n      url: https://example.com\n"
	plan, err := ParsePlan(text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(plan.Calls) != 1 || plan.Calls[0].Tool != "fetch" {
		t.Fatalf("unexpected calls: %+v", plan.Calls)
	}
	if plan.Calls[0].Arguments["url"] != "https://example.com" {
		t.Errorf("unexpected url argument: %v", plan.Calls[0].Arguments["url"])
	}
}

func TestParsePlanNilArgumentsBecomeEmptyMap(t *testing.T) {
	plan, err := ParsePlan(`{"explanation":"no args","calls":[{"tool":"list"}]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if plan.Calls[0].Arguments == nil {
		t.Fatal("expected non-nil arguments map")
	}
}

func TestParsePlanRejectsUnnamedCall(t *testing.T) {
	if _, err := ParsePlan(`{"explanation":"bad","calls":[{"tool":"  "}]}`); err == nil {
		t.Fatal("expected error for call without tool name")
	}
}

func TestParsePlanGarbage(t *testing.T) {
	for _, text := range []string{"", "   ", "```json\n```", "this is prose, not a document", "{broken"} {
		if _, err := ParsePlan(text); err == nil {
			t.Errorf("expected error for %q", text)
		}
	}
}

func TestParseSummary(t *testing.T) {
	summary, err := ParseSummary(`{"name":"Calc","description":"d","guidance":"g","toolNames":["add"]}`)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if summary.Name != "Calc" || summary.Guidance != "g" {
		t.Errorf("unexpected summary: %+v", summary)
	}
}

func TestParseSummaryRequiresNameAndGuidance(t *testing.T) {
	if _, err := ParseSummary(`{"description":"d","guidance":"g"}`); err == nil {
		t.Error("expected error for summary without name")
	}
	if _, err := ParseSummary(`{"name":"Calc","description":"d"}`); err == nil {
		t.Error("expected error for summary without guidance")
	}
}

func TestStripFences(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"{}", "{}"},
		{"```json\n{}\n```", "{}"},
		{"```\n{}\n```", "{}"},
		{"  ```json\n{\"a\":1}\n```  ", `{"a":1}`},
	}
	for _, tc := range cases {
		if got := stripFences(tc.in); got != tc.want {
			t.Errorf("stripFences(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
