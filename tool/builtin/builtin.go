// Package builtin provides the tools the CLI registers by default.
//
// Every tool returns a JSON document; the runtime wraps it as a
// {"format":"json","value":...} tool-result output. Relative paths and the
// shell working directory resolve against the "workdir" run variable.
package builtin

import (
	"context"
	"path/filepath"

	"github.com/youssefsiam38/agentstream/tool"
)

// WorkdirVariable is the run variable holding the working directory
const WorkdirVariable = "workdir"

// maxOutputBytes caps captured output per stream
const maxOutputBytes = 64 * 1024

// All returns every builtin tool.
func All() []tool.Tool {
	return []tool.Tool{
		NewBashTool(),
		NewReadFileTool(),
		NewListFilesTool(),
	}
}

func workdir(ctx context.Context) string {
	return tool.GetVariableOr(ctx, WorkdirVariable, ".")
}

func resolvePath(ctx context.Context, path string) string {
	if path == "" {
		path = "."
	}
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(workdir(ctx), path)
}

func truncate(s string) string {
	if len(s) <= maxOutputBytes {
		return s
	}
	return s[:maxOutputBytes] + "\n[output truncated]"
}
