// Package mcp wraps the mcp-go client with the request discipline Sage
// expects from a wrapped server: per-request timeouts and bounded retries.
package mcp

import (
	"context"
	"errors"
	"time"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

const (
	defaultTimeout = 10 * time.Second
	defaultRetries = 2
	defaultBackoff = 200 * time.Millisecond

	clientName    = "sage"
	clientVersion = "0.1.0"
)

// ClientOption customizes the MCP client wrapper behavior.
type ClientOption func(*Client)

// WithTimeout sets the per-request timeout.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.timeout = timeout
		}
	}
}

// WithRetry configures retry count and backoff.
func WithRetry(retries int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if retries >= 0 {
			c.maxRetries = retries
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// Client wraps the mcp-go client. Sage re-enumerates capabilities on every
// pass, so no discovery results are cached here.
type Client struct {
	mcpClient  client.MCPClient
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
}

// NewClient creates a new Client with the given MCP client implementation.
func NewClient(c client.MCPClient, opts ...ClientOption) *Client {
	wrapped := &Client{
		mcpClient:  c,
		timeout:    defaultTimeout,
		maxRetries: defaultRetries,
		backoff:    defaultBackoff,
	}
	for _, opt := range opts {
		opt(wrapped)
	}
	return wrapped
}

// NewClientWithStdio spawns the server process and completes the MCP
// handshake over stdio.
func NewClientWithStdio(command string, args []string, opts ...ClientOption) (*Client, error) {
	stdioClient, err := client.NewStdioMCPClient(command, nil, args...)
	if err != nil {
		return nil, err
	}

	if err := stdioClient.Start(context.Background()); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	initRequest := mcp.InitializeRequest{}
	initRequest.Params.ProtocolVersion = mcp.LATEST_PROTOCOL_VERSION
	initRequest.Params.ClientInfo = mcp.Implementation{
		Name:    clientName,
		Version: clientVersion,
	}

	if _, err := stdioClient.Initialize(ctx, initRequest); err != nil {
		stdioClient.Close()
		return nil, err
	}

	return NewClient(stdioClient, opts...), nil
}

// ListTools retrieves the list of tools available on the server.
func (c *Client) ListTools(ctx context.Context) ([]mcp.Tool, error) {
	result, err := withRetry(c, ctx, func(reqCtx context.Context) (*mcp.ListToolsResult, error) {
		return c.mcpClient.ListTools(reqCtx, mcp.ListToolsRequest{})
	})
	if err != nil {
		return nil, err
	}
	return result.Tools, nil
}

// ListResources retrieves the list of resources available on the server.
// Servers that do not implement the resource sub-protocol fail here; callers
// decide whether that failure degrades or propagates.
func (c *Client) ListResources(ctx context.Context) ([]mcp.Resource, error) {
	result, err := withRetry(c, ctx, func(reqCtx context.Context) (*mcp.ListResourcesResult, error) {
		return c.mcpClient.ListResources(reqCtx, mcp.ListResourcesRequest{})
	})
	if err != nil {
		return nil, err
	}
	return result.Resources, nil
}

// ListPrompts retrieves the list of prompts available on the server.
func (c *Client) ListPrompts(ctx context.Context) ([]mcp.Prompt, error) {
	result, err := withRetry(c, ctx, func(reqCtx context.Context) (*mcp.ListPromptsResult, error) {
		return c.mcpClient.ListPrompts(reqCtx, mcp.ListPromptsRequest{})
	})
	if err != nil {
		return nil, err
	}
	return result.Prompts, nil
}

// CallTool executes a tool on the server.
func (c *Client) CallTool(ctx context.Context, name string, args map[string]interface{}) (*mcp.CallToolResult, error) {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args

	return withRetry(c, ctx, func(reqCtx context.Context) (*mcp.CallToolResult, error) {
		return c.mcpClient.CallTool(reqCtx, req)
	})
}

// Close closes the client connection.
func (c *Client) Close() error {
	return c.mcpClient.Close()
}

func withRetry[T any](c *Client, ctx context.Context, call func(context.Context) (T, error)) (T, error) {
	var zero T
	var lastErr error
	attempts := c.maxRetries + 1
	for i := 0; i < attempts; i++ {
		reqCtx, cancel := c.withTimeout(ctx)
		res, err := call(reqCtx)
		cancel()
		if err == nil {
			return res, nil
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return zero, err
		}
		lastErr = err
		if i == attempts-1 {
			break
		}
		if err := c.sleepBackoff(ctx, i); err != nil {
			return zero, err
		}
	}
	return zero, lastErr
}

func (c *Client) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	wait := c.backoff * time.Duration(1<<attempt)
	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
