//go:build !mcp

// Package mcptool imports tools from an MCP server into the local tool
// registry. Without the mcp build tag it compiles to a stub so the rest of
// the repo does not carry the SDK.
package mcptool

import (
	"context"
	"errors"

	"github.com/wilhg/reflex/pkg/agent"
)

// Attach would connect to an MCP server over stdio and register its tools.
// Stub build: always reports not enabled.
func Attach(_ context.Context, _ *agent.Registry, _ string, _ ...string) (func() error, error) {
	return nil, errors.New("mcp not enabled in this build")
}
