package builtin

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/youssefsiam38/agentstream/tool"
)

// ReadFileOutput is the JSON document the read_file tool returns.
type ReadFileOutput struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated,omitempty"`
}

// ReadFileTool reads a text file, optionally a window of its lines.
type ReadFileTool struct{}

func NewReadFileTool() *ReadFileTool { return &ReadFileTool{} }

func (t *ReadFileTool) Name() string { return "read_file" }

func (t *ReadFileTool) Description() string {
	return "Read a text file. Use offset and limit to read a range of lines."
}

func (t *ReadFileTool) InputSchema() tool.ToolSchema {
	zero := 0.0
	return tool.ToolSchema{
		Type: "object",
		Properties: map[string]tool.PropertyDef{
			"path":   {Type: "string", Description: "File path, relative to the working directory"},
			"offset": {Type: "integer", Description: "First line to read, zero based", Minimum: &zero},
			"limit":  {Type: "integer", Description: "Maximum number of lines to read", Minimum: &zero},
		},
		Required: []string{"path"},
	}
}

func (t *ReadFileTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path   string `json:"path"`
		Offset int    `json:"offset"`
		Limit  int    `json:"limit"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	f, err := os.Open(resolvePath(ctx, params.Path))
	if err != nil {
		return "", err
	}
	defer f.Close()

	var (
		b     strings.Builder
		lines int
		out   = ReadFileOutput{Path: params.Path}
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for n := 0; scanner.Scan(); n++ {
		if n < params.Offset {
			continue
		}
		if params.Limit > 0 && lines >= params.Limit {
			out.Truncated = true
			break
		}
		if b.Len() > maxOutputBytes {
			out.Truncated = true
			break
		}
		b.WriteString(scanner.Text())
		b.WriteByte('\n')
		lines++
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("failed to read %s: %w", params.Path, err)
	}

	out.Content = b.String()
	out.Lines = lines
	return tool.JSONResult(out)
}

// ListFilesOutput is the JSON document the list_files tool returns.
type ListFilesOutput struct {
	Path    string   `json:"path"`
	Entries []string `json:"entries"`
}

// ListFilesTool lists directory entries. Directories end with a slash.
type ListFilesTool struct {
	maxEntries int
}

func NewListFilesTool() *ListFilesTool { return &ListFilesTool{maxEntries: 1000} }

func (t *ListFilesTool) Name() string { return "list_files" }

func (t *ListFilesTool) Description() string {
	return "List the files in a directory, optionally recursively."
}

func (t *ListFilesTool) InputSchema() tool.ToolSchema {
	return tool.ToolSchema{
		Type: "object",
		Properties: map[string]tool.PropertyDef{
			"path":      {Type: "string", Description: "Directory path, relative to the working directory"},
			"recursive": {Type: "boolean", Description: "Walk subdirectories"},
		},
	}
}

func (t *ListFilesTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	var params struct {
		Path      string `json:"path"`
		Recursive bool   `json:"recursive"`
	}
	if err := json.Unmarshal(input, &params); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	root := resolvePath(ctx, params.Path)
	out := ListFilesOutput{Path: params.Path, Entries: []string{}}

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if path == root {
			return nil
		}
		if len(out.Entries) >= t.maxEntries {
			return fs.SkipAll
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			out.Entries = append(out.Entries, rel+"/")
			if !params.Recursive {
				return fs.SkipDir
			}
			return nil
		}
		out.Entries = append(out.Entries, rel)
		return nil
	})
	if err != nil {
		return "", err
	}

	return tool.JSONResult(out)
}
