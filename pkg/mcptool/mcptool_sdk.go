//go:build mcp

// Package mcptool imports tools from an MCP server into the local tool
// registry.
package mcptool

import (
	"context"
	"encoding/json"
	"fmt"
	"os/exec"

	mcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wilhg/reflex/pkg/agent"
)

// Attach launches an MCP server as a subprocess, connects over stdio, and
// registers every tool it exports into reg. The returned closer shuts the
// session down; call it after the registry is no longer in use.
func Attach(ctx context.Context, reg *agent.Registry, command string, args ...string) (func() error, error) {
	client := mcp.NewClient(&mcp.Implementation{Name: "reflex", Version: "0.1.0"}, nil)
	transport := &mcp.CommandTransport{Command: exec.Command(command, args...)}
	session, err := client.Connect(ctx, transport, nil)
	if err != nil {
		return nil, fmt.Errorf("mcp connect: %w", err)
	}

	tools, err := session.ListTools(ctx, &mcp.ListToolsParams{})
	if err != nil {
		_ = session.Close()
		return nil, fmt.Errorf("mcp list tools: %w", err)
	}
	for _, t := range tools.Tools {
		bt, err := newBridgeTool(session, t)
		if err != nil {
			_ = session.Close()
			return nil, err
		}
		if err := reg.Register(bt); err != nil {
			_ = session.Close()
			return nil, err
		}
	}
	return session.Close, nil
}

// bridgeTool exposes one remote MCP tool as a local agent.Tool.
type bridgeTool struct {
	session *mcp.ClientSession
	desc    agent.ToolDescriptor
}

func newBridgeTool(session *mcp.ClientSession, t *mcp.Tool) (*bridgeTool, error) {
	in, err := json.Marshal(t.InputSchema)
	if err != nil {
		return nil, fmt.Errorf("mcp tool %s: input schema: %w", t.Name, err)
	}
	var out []byte
	if t.OutputSchema != nil {
		out, err = json.Marshal(t.OutputSchema)
		if err != nil {
			return nil, fmt.Errorf("mcp tool %s: output schema: %w", t.Name, err)
		}
	}
	return &bridgeTool{
		session: session,
		desc: agent.ToolDescriptor{
			Name:         t.Name,
			Description:  t.Description,
			InputSchema:  in,
			OutputSchema: out,
		},
	}, nil
}

func (b *bridgeTool) Describe() agent.ToolDescriptor { return b.desc }

func (b *bridgeTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	res, err := b.session.CallTool(ctx, &mcp.CallToolParams{Name: b.desc.Name, Arguments: args})
	if err != nil {
		return nil, err
	}
	if res.IsError {
		return nil, fmt.Errorf("mcp tool %s: %s", b.desc.Name, contentText(res))
	}
	if m, ok := res.StructuredContent.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{"text": contentText(res)}, nil
}

func contentText(res *mcp.CallToolResult) string {
	var out string
	for _, c := range res.Content {
		if tc, ok := c.(*mcp.TextContent); ok {
			out += tc.Text
		}
	}
	return out
}
