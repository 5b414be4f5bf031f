package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := Open(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func TestConversationLifecycle(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if conv.Title != SentinelTitle {
		t.Fatalf("new conversation title = %q, want %q", conv.Title, SentinelTitle)
	}

	got, err := st.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ProjectID != "proj-1" {
		t.Fatalf("project = %q", got.ProjectID)
	}

	if _, err := st.GetConversation(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing conversation err = %v, want ErrNotFound", err)
	}
}

func TestSetTitleIfSentinel(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	set, err := st.SetTitleIfSentinel(ctx, conv.ID, "Plan a garden")
	if err != nil {
		t.Fatalf("set title: %v", err)
	}
	if !set {
		t.Fatal("first set should succeed")
	}

	// Second attempt must not overwrite the winner.
	set, err = st.SetTitleIfSentinel(ctx, conv.ID, "Something else")
	if err != nil {
		t.Fatalf("set title again: %v", err)
	}
	if set {
		t.Fatal("second set should be a no-op")
	}

	got, err := st.GetConversation(ctx, conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Plan a garden" {
		t.Fatalf("title = %q, want first writer's title", got.Title)
	}
}

func TestRecentMessagesOrderAndExclusion(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, err := st.CreateConversation(ctx, "proj-1")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, content := range []string{"first", "second", "third"} {
		if _, err := st.CreateMessage(ctx, conv.ID, RoleUser, content, StatusCompleted); err != nil {
			t.Fatalf("create message: %v", err)
		}
	}
	// Empty placeholder should never appear in history.
	placeholder, err := st.CreateMessage(ctx, conv.ID, RoleAssistant, "", StatusProcessing)
	if err != nil {
		t.Fatalf("create placeholder: %v", err)
	}

	msgs, err := st.RecentMessages(ctx, conv.ID, 2, placeholder.ID)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[0].Content != "second" || msgs[1].Content != "third" {
		t.Fatalf("wrong window: %q, %q", msgs[0].Content, msgs[1].Content)
	}
	for _, m := range msgs {
		if m.ID == placeholder.ID {
			t.Fatal("placeholder leaked into history")
		}
	}
}

func TestFinalizeMessage(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	conv, _ := st.CreateConversation(ctx, "proj-1")
	msg, err := st.CreateMessage(ctx, conv.ID, RoleAssistant, "", StatusProcessing)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := st.FinalizeMessage(ctx, msg.ID, "done", StatusCompleted); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	got, err := st.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Content != "done" || got.Status != StatusCompleted {
		t.Fatalf("got %q/%q", got.Content, got.Status)
	}
}

func TestFileNodeHierarchy(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	folder, err := st.CreateFileNode(ctx, "proj-1", nil, "docs", NodeTypeFolder, "")
	if err != nil {
		t.Fatalf("create folder: %v", err)
	}
	if _, err := st.CreateFileNode(ctx, "proj-1", &folder.ID, "notes.md", NodeTypeFile, "hello"); err != nil {
		t.Fatalf("create file: %v", err)
	}
	if _, err := st.CreateFileNode(ctx, "proj-1", nil, "root.txt", NodeTypeFile, ""); err != nil {
		t.Fatalf("create root file: %v", err)
	}

	roots, err := st.ChildNodes(ctx, "proj-1", nil)
	if err != nil {
		t.Fatalf("children: %v", err)
	}
	if len(roots) != 2 {
		t.Fatalf("got %d root nodes, want 2", len(roots))
	}
	// Folders sort before files.
	if roots[0].Name != "docs" || roots[1].Name != "root.txt" {
		t.Fatalf("wrong order: %q, %q", roots[0].Name, roots[1].Name)
	}

	exists, err := st.SiblingExists(ctx, "proj-1", &folder.ID, "notes.md", NodeTypeFile, "")
	if err != nil {
		t.Fatalf("sibling: %v", err)
	}
	if !exists {
		t.Fatal("expected sibling collision")
	}
	exists, err = st.SiblingExists(ctx, "proj-1", nil, "notes.md", NodeTypeFile, "")
	if err != nil {
		t.Fatalf("sibling root: %v", err)
	}
	if exists {
		t.Fatal("name in another folder should not collide")
	}
}

func TestStepCheckpointFirstWriteWins(t *testing.T) {
	st := newTestStore(t)
	ctx := context.Background()

	if err := st.SaveStep(ctx, "inst-1", "turn-01", `"first"`); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := st.SaveStep(ctx, "inst-1", "turn-01", `"second"`); err != nil {
		t.Fatalf("save again: %v", err)
	}

	result, ok, err := st.LoadStep(ctx, "inst-1", "turn-01")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("expected checkpoint")
	}
	if result != `"first"` {
		t.Fatalf("result = %q, want first write preserved", result)
	}

	if _, ok, _ := st.LoadStep(ctx, "inst-1", "turn-02"); ok {
		t.Fatal("unexpected checkpoint for unknown step")
	}
}
