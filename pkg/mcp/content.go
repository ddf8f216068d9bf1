package mcp

import (
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
)

// ResultText flattens a tool result into text, mapping server-side IsError
// results to Go errors so callers handle one failure channel.
func ResultText(result *mcp.CallToolResult) (string, error) {
	if result == nil {
		return "", errors.New("mcp tool result is nil")
	}
	text := ExtractText(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool returned error: %s", text)
	}
	return text, nil
}

// ExtractText joins the text content blocks of an MCP response.
func ExtractText(items []mcp.Content) string {
	if len(items) == 0 {
		return ""
	}
	var parts []string
	for _, item := range items {
		switch content := item.(type) {
		case mcp.TextContent:
			parts = append(parts, content.Text)
		case *mcp.TextContent:
			parts = append(parts, content.Text)
		}
	}
	return strings.Join(parts, "\n")
}
