// Package expert holds the two Sage engines: discovery, which introspects a
// wrapped MCP server into a persisted expert descriptor, and the serve-time
// session, which answers natural-language queries against that server.
package expert

import (
	"context"

	sagemcp "github.com/jllopis/sage/pkg/mcp"
	"github.com/mark3labs/mcp-go/mcp"
)

// Peer is the request/response surface Sage needs from a wrapped server.
// *sagemcp.Client satisfies it; tests substitute stubs.
type Peer interface {
	ListTools(ctx context.Context) ([]mcp.Tool, error)
	ListResources(ctx context.Context) ([]mcp.Resource, error)
	ListPrompts(ctx context.Context) ([]mcp.Prompt, error)
	CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error)
	Close() error
}

// Dialer spawns and connects a wrapped server from its connection spec.
type Dialer func(command string, args []string) (Peer, error)

// StdioDialer is the default Dialer: spawn the server and complete the MCP
// handshake over stdio.
func StdioDialer(command string, args []string) (Peer, error) {
	return sagemcp.NewClientWithStdio(command, args)
}

var _ Peer = (*sagemcp.Client)(nil)
