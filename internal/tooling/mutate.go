package tooling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"atelier/internal/store"
)

// RenameFileTool renames a node, re-checking sibling uniqueness for the new
// name with the node's own type, excluding the node itself.
type RenameFileTool struct {
	st        *store.Store
	projectID string
}

func (RenameFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "rename_file",
			Description: "Rename a file or folder.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Id of the node to rename.",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "New name.",
					},
				},
				"required": []string{"id", "name"},
			},
		},
	}
}

func (t RenameFileTool) Call(ctx context.Context, args map[string]any) (string, error) {
	id, ok := stringArg(args, "id")
	if !ok || strings.TrimSpace(id) == "" {
		return "The id parameter is required.", nil
	}
	name, ok := stringArg(args, "name")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "The name parameter is required.", nil
	}

	node, err := t.st.GetFileNode(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("No file or folder with id %q exists.", id), nil
	}
	if err != nil {
		return "", err
	}
	if node.ProjectID != t.projectID {
		return fmt.Sprintf("No file or folder with id %q exists.", id), nil
	}

	exists, err := t.st.SiblingExists(ctx, t.projectID, node.ParentID, name, node.Type, node.ID)
	if err != nil {
		return "", err
	}
	if exists {
		return fmt.Sprintf("A %s named %q already exists in the same location.", node.Type, name), nil
	}
	if err := t.st.RenameFileNode(ctx, node.ID, name); err != nil {
		return "", err
	}
	return fmt.Sprintf("Renamed %q to %q.", node.Name, name), nil
}

// DeleteFilesTool deletes nodes by id, folders recursively. The batch is
// all-or-nothing: every id is validated to exist before the first deletion,
// so one bad id leaves the tree untouched.
type DeleteFilesTool struct {
	st        *store.Store
	projectID string
}

func (DeleteFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "delete_files",
			Description: "Delete files or folders by id. Folders are deleted with all of their contents.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"ids": map[string]any{
						"type":        "array",
						"items":       map[string]any{"type": "string"},
						"description": "Ids of the nodes to delete.",
					},
				},
				"required": []string{"ids"},
			},
		},
	}
}

func (t DeleteFilesTool) Call(ctx context.Context, args map[string]any) (string, error) {
	ids, ok := stringSliceArg(args, "ids")
	if !ok || len(ids) == 0 {
		return "The ids parameter must be a non-empty array of node ids.", nil
	}

	// validation pass: fail fast with zero side effects
	nodes := make([]store.FileNode, 0, len(ids))
	for _, id := range ids {
		node, err := t.st.GetFileNode(ctx, id)
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Sprintf("Nothing was deleted: no file or folder with id %q exists.", id), nil
		}
		if err != nil {
			return "", err
		}
		if node.ProjectID != t.projectID {
			return fmt.Sprintf("Nothing was deleted: no file or folder with id %q exists.", id), nil
		}
		nodes = append(nodes, node)
	}

	removed := 0
	for _, node := range nodes {
		n, err := t.deleteRecursive(ctx, node)
		if err != nil {
			return "", err
		}
		removed += n
	}
	return fmt.Sprintf("Deleted %d node(s), %d record(s) including folder contents.", len(nodes), removed), nil
}

// deleteRecursive removes children depth-first before the node itself and
// returns the number of records removed.
func (t DeleteFilesTool) deleteRecursive(ctx context.Context, node store.FileNode) (int, error) {
	removed := 0
	if node.IsFolder() {
		children, err := t.st.ChildNodes(ctx, t.projectID, &node.ID)
		if err != nil {
			return removed, err
		}
		for _, child := range children {
			n, err := t.deleteRecursive(ctx, child)
			if err != nil {
				return removed, err
			}
			removed += n
		}
	}
	if err := t.st.DeleteFileNode(ctx, node.ID); err != nil {
		return removed, err
	}
	return removed + 1, nil
}
