// Package tools holds the built-in capabilities wired into the agent's tool
// registry: sandboxed file access, an instrumented HTTP fetch, and a guarded
// shell runner.
package tools

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/wilhg/reflex/pkg/agent"
)

// FileReadTool reads a file from a provided fs.FS sandbox.
type FileReadTool struct{ FS fs.FS }

func (t FileReadTool) Describe() agent.ToolDescriptor {
	in := []byte(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"],"additionalProperties":false}`)
	out := []byte(`{"type":"object","properties":{"content":{"type":"string"}},"required":["content"],"additionalProperties":false}`)
	return agent.ToolDescriptor{
		Name:         "fs.read",
		Description:  "Reads a text file from the sandboxed workspace",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []agent.ToolPermission{{Name: "fs:read"}},
	}
}

func (t FileReadTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if t.FS == nil {
		return nil, errors.New("no fs configured")
	}
	p, _ := args["path"].(string)
	if err := checkRelPath(p); err != nil {
		return nil, err
	}
	b, err := fs.ReadFile(t.FS, p)
	if err != nil {
		return nil, err
	}
	return map[string]any{"content": string(b)}, nil
}

// checkRelPath rejects absolute, unclean, or escaping paths.
func checkRelPath(p string) error {
	if p == "" {
		return errors.New("path required")
	}
	if filepath.IsAbs(p) || filepath.Clean(p) != p || strings.Contains(p, "..") {
		return errors.New("invalid path")
	}
	return nil
}
