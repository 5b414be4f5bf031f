package tooling

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"atelier/internal/store"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func mustCreateNode(t *testing.T, st *store.Store, projectID string, parentID *string, name, nodeType, content string) store.FileNode {
	t.Helper()
	node, err := st.CreateFileNode(context.Background(), projectID, parentID, name, nodeType, content)
	if err != nil {
		t.Fatalf("create node %s: %v", name, err)
	}
	return node
}

func TestReadFilesSkipsUnresolvedIDs(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	file := mustCreateNode(t, st, "proj", nil, "a.txt", store.NodeTypeFile, "alpha")
	folder := mustCreateNode(t, st, "proj", nil, "docs", store.NodeTypeFolder, "")
	other := mustCreateNode(t, st, "other-proj", nil, "b.txt", store.NodeTypeFile, "beta")

	tool := ReadFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(ctx, map[string]any{
		"ids": []any{file.ID, "missing", folder.ID, other.ID},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "alpha") {
		t.Fatalf("resolved file missing from output: %q", out)
	}
	if strings.Contains(out, "beta") {
		t.Fatal("file from another project leaked into output")
	}
	if strings.Contains(out, "docs") {
		t.Fatal("folder should be skipped")
	}
}

func TestReadFilesNothingResolved(t *testing.T) {
	st := newTestStore(t)
	tool := ReadFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{"ids": []any{"x", "y"}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "No files found for the provided ids." {
		t.Fatalf("output = %q", out)
	}
}

func TestListFilesTree(t *testing.T) {
	st := newTestStore(t)
	folder := mustCreateNode(t, st, "proj", nil, "docs", store.NodeTypeFolder, "")
	mustCreateNode(t, st, "proj", &folder.ID, "notes.md", store.NodeTypeFile, "n")
	mustCreateNode(t, st, "proj", nil, "readme.txt", store.NodeTypeFile, "r")

	tool := ListFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "docs/") {
		t.Fatalf("folder missing: %q", out)
	}
	if !strings.Contains(out, "  notes.md") {
		t.Fatalf("nested file not indented: %q", out)
	}

	empty := ListFilesTool{st: st, projectID: "empty-proj"}
	out, err = empty.Call(context.Background(), map[string]any{})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if out != "The project has no files yet." {
		t.Fatalf("empty project output = %q", out)
	}
}

func TestUpdateFileRejectsFolder(t *testing.T) {
	st := newTestStore(t)
	folder := mustCreateNode(t, st, "proj", nil, "docs", store.NodeTypeFolder, "")

	tool := UpdateFileTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{"id": folder.ID, "content": "x"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "folders have no content") {
		t.Fatalf("output = %q", out)
	}
}

func TestUpdateFileDiffSummary(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	file := mustCreateNode(t, st, "proj", nil, "a.txt", store.NodeTypeFile, "one\ntwo\n")

	tool := UpdateFileTool{st: st, projectID: "proj"}
	out, err := tool.Call(ctx, map[string]any{"id": file.ID, "content": "one\nthree\nfour\n"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "+2/-1") {
		t.Fatalf("diff summary = %q, want +2/-1", out)
	}

	got, err := st.GetFileNode(ctx, file.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "one\nthree\nfour\n" {
		t.Fatalf("content = %q", got.Content)
	}
}

func TestCreateFilesCollisionIsolation(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	mustCreateNode(t, st, "proj", nil, "taken.txt", store.NodeTypeFile, "")

	tool := CreateFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(ctx, map[string]any{
		"files": []any{
			map[string]any{"name": "taken.txt", "content": "x"},
			map[string]any{"name": "fresh.txt", "content": "y"},
		},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Created 1 file(s)") {
		t.Fatalf("output = %q", out)
	}
	if !strings.Contains(out, "taken.txt") || !strings.Contains(out, "Failed") {
		t.Fatalf("collision not reported: %q", out)
	}

	n, err := st.CountProjectNodes(ctx, "proj")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 2 {
		t.Fatalf("project has %d nodes, want 2", n)
	}
}

func TestCreateFilesFolderNameDoesNotCollide(t *testing.T) {
	st := newTestStore(t)
	mustCreateNode(t, st, "proj", nil, "shared", store.NodeTypeFolder, "")

	tool := CreateFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{
		"files": []any{map[string]any{"name": "shared", "content": ""}},
	})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	// A folder and a file may share a name; only same-type names collide.
	if !strings.Contains(out, "Created 1 file(s)") {
		t.Fatalf("output = %q", out)
	}
}

func TestCreateFolderRejectsFileParent(t *testing.T) {
	st := newTestStore(t)
	file := mustCreateNode(t, st, "proj", nil, "a.txt", store.NodeTypeFile, "")

	tool := CreateFolderTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{"parent_id": file.ID, "name": "sub"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "not a folder") {
		t.Fatalf("output = %q", out)
	}
}

func TestRenameSiblingCollision(t *testing.T) {
	st := newTestStore(t)
	mustCreateNode(t, st, "proj", nil, "a.txt", store.NodeTypeFile, "")
	b := mustCreateNode(t, st, "proj", nil, "b.txt", store.NodeTypeFile, "")

	tool := RenameFileTool{st: st, projectID: "proj"}
	out, err := tool.Call(context.Background(), map[string]any{"id": b.ID, "name": "a.txt"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "already exists") {
		t.Fatalf("output = %q", out)
	}

	// Renaming to its own current name is allowed: the node excludes itself.
	out, err = tool.Call(context.Background(), map[string]any{"id": b.ID, "name": "b.txt"})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Renamed") {
		t.Fatalf("output = %q", out)
	}
}

func TestDeleteFilesAllOrNothing(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	file := mustCreateNode(t, st, "proj", nil, "a.txt", store.NodeTypeFile, "")

	tool := DeleteFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(ctx, map[string]any{"ids": []any{file.ID, "missing"}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, `Nothing was deleted`) || !strings.Contains(out, "missing") {
		t.Fatalf("output = %q", out)
	}
	if _, err := st.GetFileNode(ctx, file.ID); err != nil {
		t.Fatalf("valid node should survive a failed batch: %v", err)
	}
}

func TestDeleteFolderRecursive(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()
	folder := mustCreateNode(t, st, "proj", nil, "docs", store.NodeTypeFolder, "")
	sub := mustCreateNode(t, st, "proj", &folder.ID, "sub", store.NodeTypeFolder, "")
	mustCreateNode(t, st, "proj", &folder.ID, "one.md", store.NodeTypeFile, "")
	mustCreateNode(t, st, "proj", &sub.ID, "two.md", store.NodeTypeFile, "")
	keep := mustCreateNode(t, st, "proj", nil, "keep.txt", store.NodeTypeFile, "")

	tool := DeleteFilesTool{st: st, projectID: "proj"}
	out, err := tool.Call(ctx, map[string]any{"ids": []any{folder.ID}})
	if err != nil {
		t.Fatalf("call: %v", err)
	}
	if !strings.Contains(out, "Deleted 1 node(s), 4 record(s)") {
		t.Fatalf("output = %q", out)
	}

	n, err := st.CountProjectNodes(ctx, "proj")
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("project has %d nodes, want the untouched file only", n)
	}
	if _, err := st.GetFileNode(ctx, keep.ID); err != nil {
		t.Fatalf("sibling outside the folder should survive: %v", err)
	}
}

func TestProjectRegistryNames(t *testing.T) {
	st := newTestStore(t)
	registry := ProjectRegistry(st, "proj", 0)

	want := []string{
		"list_files", "read_files", "update_file", "create_files",
		"create_folder", "rename_file", "delete_files", "scrape_urls",
	}
	for _, name := range want {
		if _, ok := registry.Lookup(name); !ok {
			t.Fatalf("tool %s not registered", name)
		}
	}
	if len(registry.Definitions()) != len(want) {
		t.Fatalf("registered %d tools, want %d", len(registry.Definitions()), len(want))
	}
}
