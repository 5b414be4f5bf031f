package tooling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atelier/internal/store"
)

// ReadFilesTool batch-fetches file contents by id. Unresolved ids are
// skipped silently; the call only fails (as a string) when nothing resolved.
type ReadFilesTool struct {
	st        *store.Store
	projectID string
}

func (ReadFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "read_files",
			Description: "Read the contents of one or more files by id. Unknown ids are skipped.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ids": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Ids of the files to read.",
					},
				},
				"required": []string{"ids"},
			},
		},
	}
}

func (t ReadFilesTool) Call(ctx context.Context, args map[string]any) (string, error) {
	ids, ok := stringSliceArg(args, "ids")
	if !ok || len(ids) == 0 {
		return "The ids parameter must be a non-empty array of file ids.", nil
	}

	var b strings.Builder
	resolved := 0
	for _, id := range ids {
		node, err := t.st.GetFileNode(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			continue
		}
		if err != nil {
			return "", err
		}
		if node.ProjectID != t.projectID || node.IsFolder() {
			continue
		}
		if resolved > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "=== %s (id: %s) ===\n%s\n", node.Name, node.ID, node.Content)
		resolved++
	}
	if resolved == 0 {
		return "No files found for the provided ids.", nil
	}
	return b.String(), nil
}
