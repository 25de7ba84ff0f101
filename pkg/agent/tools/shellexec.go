package tools

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/wilhg/reflex/pkg/agent"
)

// ShellExecTool runs a command in a working directory. The executor's
// deadline cancels the process via ctx; denied substrings block obviously
// destructive invocations before they start.
type ShellExecTool struct {
	Dir    string
	Denied []string
}

// DefaultDenied blocks the worst offenders even when the tool is enabled.
var DefaultDenied = []string{"rm -rf /", "mkfs", "dd if=", "> /dev/sd"}

func (t ShellExecTool) Describe() agent.ToolDescriptor {
	in := []byte(`{"type":"object","properties":{"command":{"type":"string"}},"required":["command"],"additionalProperties":false}`)
	out := []byte(`{"type":"object","properties":{"output":{"type":"string"},"exit_code":{"type":"integer"}},"required":["output","exit_code"],"additionalProperties":false}`)
	return agent.ToolDescriptor{
		Name:         "shell.exec",
		Description:  "Runs a shell command in the sandboxed workspace",
		InputSchema:  in,
		OutputSchema: out,
		Permissions:  []agent.ToolPermission{{Name: "process:spawn"}},
	}
}

func (t ShellExecTool) Invoke(ctx context.Context, args map[string]any) (map[string]any, error) {
	command, _ := args["command"].(string)
	if strings.TrimSpace(command) == "" {
		return nil, errors.New("command required")
	}
	denied := t.Denied
	if denied == nil {
		denied = DefaultDenied
	}
	for _, d := range denied {
		if strings.Contains(command, d) {
			return nil, errors.New("command denied")
		}
	}
	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	if t.Dir != "" {
		cmd.Dir = t.Dir
	}
	var buf bytes.Buffer
	cmd.Stdout = &buf
	cmd.Stderr = &buf
	err := cmd.Run()
	exitCode := 0
	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		exitCode = exitErr.ExitCode()
	case err != nil:
		return nil, err
	}
	return map[string]any{"output": buf.String(), "exit_code": exitCode}, nil
}
