// Package tooling defines the tool set the coding agent can invoke. Every
// tool validates its own input and reports validation failures as plain
// strings rather than errors, so the model can read the failure and adapt.
// Go errors are reserved for infrastructure problems (store unreachable,
// network down) that the workflow engine should retry.
package tooling

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"atelier/internal/store"
)

type ToolDefinition struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

type Tool interface {
	Definition() ToolDefinition
	Call(ctx context.Context, args map[string]any) (string, error)
}

type Registry struct {
	tools       map[string]Tool
	definitions []ToolDefinition
}

func NewRegistry(tools ...Tool) *Registry {
	bucket := make(map[string]Tool, len(tools))
	defs := make([]ToolDefinition, 0, len(tools))
	for _, tool := range tools {
		def := tool.Definition()
		bucket[def.Function.Name] = tool
		defs = append(defs, def)
	}
	return &Registry{tools: bucket, definitions: defs}
}

func (r *Registry) Definitions() []ToolDefinition {
	out := make([]ToolDefinition, len(r.definitions))
	copy(out, r.definitions)
	return out
}

func (r *Registry) Lookup(name string) (Tool, bool) {
	tool, ok := r.tools[name]
	return tool, ok
}

// ProjectRegistry wires the full tool set for one project's file tree.
func ProjectRegistry(st *store.Store, projectID string, scrapeTimeout time.Duration) *Registry {
	return NewRegistry(
		ListFilesTool{st: st, projectID: projectID},
		ReadFilesTool{st: st, projectID: projectID},
		UpdateFileTool{st: st, projectID: projectID},
		CreateFilesTool{st: st, projectID: projectID},
		CreateFolderTool{st: st, projectID: projectID},
		RenameFileTool{st: st, projectID: projectID},
		DeleteFilesTool{st: st, projectID: projectID},
		NewScrapeURLsTool(scrapeTimeout),
	)
}

// resolveParent maps a raw parent_id argument onto the tree. An empty string
// means the project root (nil parent). A non-empty id must resolve to a
// folder; the failure text goes straight back to the model.
func resolveParent(ctx context.Context, st *store.Store, projectID, raw string) (parentID *string, label string, failure string, err error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, "the project root", "", nil
	}
	node, err := st.GetFileNode(ctx, raw)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", fmt.Sprintf("Parent folder with id %q does not exist.", raw), nil
	}
	if err != nil {
		return nil, "", "", err
	}
	if node.ProjectID != projectID {
		return nil, "", fmt.Sprintf("Parent folder with id %q does not exist.", raw), nil
	}
	if !node.IsFolder() {
		return nil, "", fmt.Sprintf("Node %q is a %s, not a folder; files can only be created inside folders or at the project root.", node.Name, node.Type), nil
	}
	id := node.ID
	return &id, fmt.Sprintf("folder %q", node.Name), "", nil
}

func stringArg(args map[string]any, key string) (string, bool) {
	val, ok := args[key]
	if !ok {
		return "", false
	}
	switch cast := val.(type) {
	case string:
		return cast, true
	default:
		return fmt.Sprintf("%v", cast), true
	}
}

func stringSliceArg(args map[string]any, key string) ([]string, bool) {
	raw, ok := args[key]
	if !ok {
		return nil, false
	}
	switch v := raw.(type) {
	case []string:
		return v, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			str, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, str)
		}
		return out, true
	default:
		return nil, false
	}
}
