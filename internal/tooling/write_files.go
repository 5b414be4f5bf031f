package tooling

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"

	"atelier/internal/store"
)

// UpdateFileTool overwrites the content of one existing file node.
type UpdateFileTool struct {
	st        *store.Store
	projectID string
}

func (UpdateFileTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "update_file",
			Description: "Replace the entire content of an existing file.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"id": map[string]any{
						"type":        "string",
						"description": "Id of the file to update.",
					},
					"content": map[string]any{
						"type":        "string",
						"description": "New content of the file.",
					},
				},
				"required": []string{"id", "content"},
			},
		},
	}
}

func (t UpdateFileTool) Call(ctx context.Context, args map[string]any) (string, error) {
	id, ok := stringArg(args, "id")
	if !ok || strings.TrimSpace(id) == "" {
		return "The id parameter is required.", nil
	}
	content, ok := stringArg(args, "content")
	if !ok {
		return "The content parameter is required.", nil
	}

	node, err := t.st.GetFileNode(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Sprintf("No file with id %q exists.", id), nil
	}
	if err != nil {
		return "", err
	}
	if node.ProjectID != t.projectID {
		return fmt.Sprintf("No file with id %q exists.", id), nil
	}
	if node.IsFolder() {
		return fmt.Sprintf("%q is a folder; folders have no content to update.", node.Name), nil
	}

	if err := t.st.UpdateFileContent(ctx, node.ID, content); err != nil {
		return "", err
	}
	added, removed := diffLineCounts(node.Content, content)
	return fmt.Sprintf("Updated %s (+%d/-%d lines).", node.Name, added, removed), nil
}

// diffLineCounts compares two contents line-wise and reports inserted and
// deleted line counts.
func diffLineCounts(before, after string) (added, removed int) {
	dmp := diffmatchpatch.New()
	beforeRunes, afterRunes, _ := dmp.DiffLinesToRunes(before, after)
	diffs := dmp.DiffMainRunes(beforeRunes, afterRunes, false)
	for _, d := range diffs {
		n := len([]rune(d.Text))
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		}
	}
	return added, removed
}

// CreateFilesTool batch-creates files under one parent. Collisions are
// reported per file; one failure does not block the rest of the batch.
type CreateFilesTool struct {
	st        *store.Store
	projectID string
}

func (CreateFilesTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "create_files",
			Description: "Create one or more files under a folder (empty parent_id = project root).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"parent_id": map[string]any{
						"type":        "string",
						"description": "Id of the destination folder, or empty for the project root.",
					},
					"files": map[string]any{
						"type":        "array",
						"description": "Files to create.",
						"items": map[string]any{
							"type": "object",
							"properties": map[string]any{
								"name":    map[string]any{"type": "string"},
								"content": map[string]any{"type": "string"},
							},
							"required": []string{"name"},
						},
					},
				},
				"required": []string{"files"},
			},
		},
	}
}

func (t CreateFilesTool) Call(ctx context.Context, args map[string]any) (string, error) {
	rawParent, _ := stringArg(args, "parent_id")
	parentID, label, failure, err := resolveParent(ctx, t.st, t.projectID, rawParent)
	if err != nil {
		return "", err
	}
	if failure != "" {
		return failure, nil
	}

	rawFiles, ok := args["files"].([]any)
	if !ok || len(rawFiles) == 0 {
		return "The files parameter must be a non-empty array of {name, content} objects.", nil
	}

	var created, failed []string
	for idx, item := range rawFiles {
		obj, ok := item.(map[string]any)
		if !ok {
			failed = append(failed, fmt.Sprintf("entry %d: not an object", idx))
			continue
		}
		name, _ := stringArg(obj, "name")
		name = strings.TrimSpace(name)
		if name == "" {
			failed = append(failed, fmt.Sprintf("entry %d: missing name", idx))
			continue
		}
		content, _ := stringArg(obj, "content")

		exists, err := t.st.SiblingExists(ctx, t.projectID, parentID, name, store.NodeTypeFile, "")
		if err != nil {
			return "", err
		}
		if exists {
			failed = append(failed, fmt.Sprintf("%s: a file named %q already exists there", name, name))
			continue
		}
		if _, err := t.st.CreateFileNode(ctx, t.projectID, parentID, name, store.NodeTypeFile, content); err != nil {
			return "", err
		}
		created = append(created, name)
	}

	var b strings.Builder
	if len(created) > 0 {
		fmt.Fprintf(&b, "Created %d file(s) in %s: %s.", len(created), label, strings.Join(created, ", "))
	}
	if len(failed) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		fmt.Fprintf(&b, "Failed: %s.", strings.Join(failed, "; "))
	}
	return b.String(), nil
}

// CreateFolderTool creates exactly one folder under a resolved parent.
type CreateFolderTool struct {
	st        *store.Store
	projectID string
}

func (CreateFolderTool) Definition() ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: ToolFunction{
			Name:        "create_folder",
			Description: "Create a folder under a parent folder (empty parent_id = project root).",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					"parent_id": map[string]any{
						"type":        "string",
						"description": "Id of the destination folder, or empty for the project root.",
					},
					"name": map[string]any{
						"type":        "string",
						"description": "Name of the new folder.",
					},
				},
				"required": []string{"name"},
			},
		},
	}
}

func (t CreateFolderTool) Call(ctx context.Context, args map[string]any) (string, error) {
	name, ok := stringArg(args, "name")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return "The name parameter is required.", nil
	}
	rawParent, _ := stringArg(args, "parent_id")
	parentID, label, failure, err := resolveParent(ctx, t.st, t.projectID, rawParent)
	if err != nil {
		return "", err
	}
	if failure != "" {
		return failure, nil
	}

	exists, err := t.st.SiblingExists(ctx, t.projectID, parentID, name, store.NodeTypeFolder, "")
	if err != nil {
		return "", err
	}
	if exists {
		return fmt.Sprintf("A folder named %q already exists in %s.", name, label), nil
	}
	node, err := t.st.CreateFileNode(ctx, t.projectID, parentID, name, store.NodeTypeFolder, "")
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Created folder %q in %s (id: %s).", name, label, node.ID), nil
}
