package display

import (
	"encoding/json"
	"sort"
)

// Kind identifies what a display entry renders as.
type Kind string

const (
	KindUser      Kind = "user"
	KindTextDelta Kind = "text-delta"
	KindIdle      Kind = "idle"

	KindBash      Kind = "bash"
	KindReadFile  Kind = "read-file"
	KindWriteFile Kind = "write-file"
	KindEditFile  Kind = "edit-file"
	KindListFiles Kind = "list-files"
	KindGrep      Kind = "grep"
	KindGlob      Kind = "glob"
	KindWebSearch Kind = "web-search"
	KindWebFetch  Kind = "web-fetch"
	KindSQLQuery  Kind = "sql-query"
	KindTodoWrite Kind = "todo-write"
)

// BashArgs are the arguments of a bash entry.
type BashArgs struct {
	Command     string `json:"command"`
	Description string `json:"description,omitempty"`
	Timeout     int    `json:"timeout,omitempty"`
}

// ReadFileArgs are the arguments of a read-file entry.
type ReadFileArgs struct {
	Path   string `json:"path"`
	Offset int    `json:"offset,omitempty"`
	Limit  int    `json:"limit,omitempty"`
}

type WriteFileArgs struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type EditFileArgs struct {
	Path       string `json:"path"`
	OldString  string `json:"old_string"`
	NewString  string `json:"new_string"`
	ReplaceAll bool   `json:"replace_all,omitempty"`
}

type ListFilesArgs struct {
	Path      string `json:"path"`
	Recursive bool   `json:"recursive,omitempty"`
}

type GrepArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
	Glob    string `json:"glob,omitempty"`
}

type GlobArgs struct {
	Pattern string `json:"pattern"`
	Path    string `json:"path,omitempty"`
}

type WebSearchArgs struct {
	Query string `json:"query"`
}

type WebFetchArgs struct {
	URL    string `json:"url"`
	Prompt string `json:"prompt,omitempty"`
}

// SQLQueryArgs are the arguments of an execute_sql call.
type SQLQueryArgs struct {
	Query string `json:"query"`
}

// TodoItem is one entry of a todo_write call.
type TodoItem struct {
	Content string `json:"content"`
	Status  string `json:"status"`
}

type TodoWriteArgs struct {
	Todos []TodoItem `json:"todos"`
}

// TextArgs carry the text of user and text-delta entries.
type TextArgs struct {
	Text string `json:"text"`
}

type catalogEntry struct {
	kind   Kind
	decode func(json.RawMessage) (any, error)
}

var catalog = map[string]catalogEntry{
	"bash":        {KindBash, decodeArgs[BashArgs]},
	"read_file":   {KindReadFile, decodeArgs[ReadFileArgs]},
	"write_file":  {KindWriteFile, decodeArgs[WriteFileArgs]},
	"edit_file":   {KindEditFile, decodeArgs[EditFileArgs]},
	"list_files":  {KindListFiles, decodeArgs[ListFilesArgs]},
	"grep":        {KindGrep, decodeArgs[GrepArgs]},
	"glob":        {KindGlob, decodeArgs[GlobArgs]},
	"web_search":  {KindWebSearch, decodeArgs[WebSearchArgs]},
	"web_fetch":   {KindWebFetch, decodeArgs[WebFetchArgs]},
	"execute_sql": {KindSQLQuery, decodeArgs[SQLQueryArgs]},
	"todo_write":  {KindTodoWrite, decodeArgs[TodoWriteArgs]},
}

// LookupKind returns the display kind for a tool name.
func LookupKind(toolName string) (Kind, bool) {
	e, ok := catalog[toolName]
	return e.kind, ok
}

// ToolNames returns the tool names the catalog knows, sorted.
func ToolNames() []string {
	names := make([]string, 0, len(catalog))
	for name := range catalog {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func decodeArgs[T any](raw json.RawMessage) (any, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// narrowArgs decodes tool input into the kind's args struct. Input that
// does not fit is kept as its generic JSON value, or as a string when it is
// not JSON at all.
func narrowArgs(e catalogEntry, raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	if v, err := e.decode(raw); err == nil {
		return v
	}
	var v any
	if err := json.Unmarshal(raw, &v); err == nil {
		return v
	}
	return string(raw)
}
