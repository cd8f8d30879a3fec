package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"github.com/youssefsiam38/agentstream/tool"
)

// BashOutput is the JSON document the bash tool returns.
type BashOutput struct {
	Stdout   string `json:"stdout"`
	Stderr   string `json:"stderr"`
	ExitCode int    `json:"exit_code"`
}

// BashTool runs a shell command. A non-zero exit status is reported in the
// output, not as a tool error.
type BashTool struct {
	shell string
}

// NewBashTool creates a bash tool
func NewBashTool() *BashTool {
	return &BashTool{shell: "bash"}
}

func (t *BashTool) Name() string { return "bash" }

func (t *BashTool) Description() string {
	return "Run a shell command in the working directory and return its stdout, stderr and exit code."
}

func (t *BashTool) InputSchema() tool.ToolSchema {
	minTimeout := 1.0
	return tool.ToolSchema{
		Type: "object",
		Properties: map[string]tool.PropertyDef{
			"command": {
				Type:        "string",
				Description: "The command to run",
			},
			"description": {
				Type:        "string",
				Description: "Short description of what the command does",
			},
			"timeout": {
				Type:        "integer",
				Description: "Timeout in seconds",
				Minimum:     &minTimeout,
			},
		},
		Required: []string{"command"},
	}
}

func (t *BashTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Command string `json:"command"`
		Timeout int    `json:"timeout"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}
	if params.Command == "" {
		return "", fmt.Errorf("command is required")
	}

	if params.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(params.Timeout)*time.Second)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, t.shell, "-c", params.Command)
	cmd.Dir = workdir(ctx)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	out := BashOutput{}
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return "", fmt.Errorf("failed to run command: %w", err)
		}
		out.ExitCode = exitErr.ExitCode()
	}
	out.Stdout = truncate(stdout.String())
	out.Stderr = truncate(stderr.String())

	return tool.JSONResult(out)
}
