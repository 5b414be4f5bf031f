package tooling

import (
	"context"
	"fmt"
	"strings"

	"atelier/internal/store"
)

// ListFilesTool renders the project's file tree as an indented listing so
// the model can discover ids before reading or mutating nodes.
type ListFilesTool struct {
	st        *store.Store
	projectID string
}

func (ListFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "list_files",
			Description: "List the project's files and folders as a tree, including each node's id.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{},
			},
		},
	}
}

func (t ListFilesTool) Call(ctx context.Context, args map[string]any) (string, error) {
	var b strings.Builder
	count, err := t.writeLevel(ctx, &b, nil, 0)
	if err != nil {
		return "", err
	}
	if count == 0 {
		return "The project has no files yet.", nil
	}
	return b.String(), nil
}

func (t ListFilesTool) writeLevel(ctx context.Context, b *strings.Builder, parentID *string, depth int) (int, error) {
	nodes, err := t.st.ChildNodes(ctx, t.projectID, parentID)
	if err != nil {
		return 0, err
	}
	total := 0
	for _, node := range nodes {
		indent := strings.Repeat("  ", depth)
		if node.IsFolder() {
			fmt.Fprintf(b, "%s%s/ (id: %s)\n", indent, node.Name, node.ID)
			nested, err := t.writeLevel(ctx, b, &node.ID, depth+1)
			if err != nil {
				return 0, err
			}
			total += nested
		} else {
			fmt.Fprintf(b, "%s%s (id: %s)\n", indent, node.Name, node.ID)
		}
		total++
	}
	return total, nil
}
