package tools

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/wilhg/reflex/pkg/agent"
)

// FileWriteTool writes a file inside a sandbox directory. The written path
// is returned so the loop can record it as an artifact.
type FileWriteTool struct{ Dir string }

func (t FileWriteTool) Describe() agent.ToolDescriptor {
	in := []byte(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"],"additionalProperties":false}`)
	out := []byte(`{"type":"object","properties":{"path":{"type":"string"},"bytes":{"type":"integer"}},"required":["path","bytes"],"additionalProperties":false}`)
	return agent.ToolDescriptor{
		Name:         "fs.write",
		Description:  "Writes a text file inside the sandboxed workspace",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []agent.ToolPermission{{Name: "fs:write"}},
	}
}

func (t FileWriteTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	if t.Dir == "" {
		return nil, errors.New("no sandbox dir configured")
	}
	p, _ := args["path"].(string)
	if err := checkRelPath(p); err != nil {
		return nil, err
	}
	content, _ := args["content"].(string)
	full := filepath.Join(t.Dir, p)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return nil, err
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return nil, err
	}
	return map[string]any{"path": p, "bytes": len(content)}, nil
}
