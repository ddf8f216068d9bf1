package mcp

import (
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
)

func TestResultText(t *testing.T) {
	result := &mcp.CallToolResult{
		Content: []mcp.Content{
			mcp.TextContent{Type: "text", Text: "first"},
			mcp.TextContent{Type: "text", Text: "second"},
		},
	}
	text, err := ResultText(result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "first\nsecond" {
		t.Errorf("unexpected text: %q", text)
	}
}

func TestResultTextNil(t *testing.T) {
	if _, err := ResultText(nil); err == nil {
		t.Fatal("expected error for nil result")
	}
}

func TestResultTextServerError(t *testing.T) {
	result := &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{mcp.TextContent{Type: "text", Text: "bad input"}},
	}
	_, err := ResultText(result)
	if err == nil {
		t.Fatal("expected error for IsError result")
	}
	if !strings.Contains(err.Error(), "bad input") {
		t.Errorf("error should carry the server's text: %v", err)
	}
}

func TestExtractText(t *testing.T) {
	items := []mcp.Content{
		mcp.TextContent{Type: "text", Text: "by value"},
		&mcp.TextContent{Type: "text", Text: "by pointer"},
		mcp.ImageContent{Type: "image"},
	}
	if got := ExtractText(items); got != "by value\nby pointer" {
		t.Errorf("unexpected text: %q", got)
	}
	if got := ExtractText(nil); got != "" {
		t.Errorf("expected empty text for no content, got %q", got)
	}
}
