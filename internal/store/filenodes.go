package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

func scanFileNode(scanner interface{ Scan(dest ...any) error }) (FileNode, error) {
	var n FileNode
	var parent sql.NullString
	err := scanner.Scan(&n.ID, &n.ProjectID, &parent, &n.Name, &n.Type, &n.Content, &n.UpdatedAt)
	if parent.Valid {
		n.ParentID = &parent.String
	}
	return n, err
}

func parentArg(parentID *string) any {
	if parentID == nil {
		return nil
	}
	return *parentID
}

// GetFileNode returns a node by id, or ErrNotFound.
func (s *Store) GetFileNode(ctx context.Context, id string) (FileNode, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, project_id, parent_id, name, type, content, updated_at
		 FROM file_nodes WHERE id = ?`, id)
	n, err := scanFileNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return FileNode{}, ErrNotFound
	}
	if err != nil {
		return FileNode{}, fmt.Errorf("get file node: %w", err)
	}
	return n, nil
}

// CreateFileNode inserts a new node and returns it. Sibling uniqueness is the
// caller's concern; the tools check it before inserting.
func (s *Store) CreateFileNode(ctx context.Context, projectID string, parentID *string, name, nodeType, content string) (FileNode, error) {
	n := FileNode{
		ID:        uuid.NewString(),
		ProjectID: projectID,
		ParentID:  parentID,
		Name:      name,
		Type:      nodeType,
		Content:   content,
		UpdatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO file_nodes (id, project_id, parent_id, name, type, content, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		n.ID, n.ProjectID, parentArg(n.ParentID), n.Name, n.Type, n.Content, n.UpdatedAt)
	if err != nil {
		return FileNode{}, fmt.Errorf("create file node: %w", err)
	}
	return n, nil
}

// UpdateFileContent overwrites the content of a file node.
func (s *Store) UpdateFileContent(ctx context.Context, id, content string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE file_nodes SET content = ?, updated_at = ? WHERE id = ?`,
		content, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update file content: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// RenameFileNode updates the name of a node.
func (s *Store) RenameFileNode(ctx context.Context, id, name string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE file_nodes SET name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("rename file node: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteFileNode removes a single node record.
func (s *Store) DeleteFileNode(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM file_nodes WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete file node: %w", err)
	}
	return nil
}

// SiblingExists reports whether a node with the given (name, type) already
// lives under the same parent, excluding excludeID when non-empty.
func (s *Store) SiblingExists(ctx context.Context, projectID string, parentID *string, name, nodeType, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM file_nodes
		 WHERE project_id = ? AND name = ? AND type = ? AND id != ?`
	args := []any{projectID, name, nodeType, excludeID}
	if parentID == nil {
		query += ` AND parent_id IS NULL`
	} else {
		query += ` AND parent_id = ?`
		args = append(args, *parentID)
	}
	var count int
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return false, fmt.Errorf("sibling exists: %w", err)
	}
	return count > 0, nil
}

// ChildNodes returns the direct children of a parent (nil = project root),
// folders first, then by name.
func (s *Store) ChildNodes(ctx context.Context, projectID string, parentID *string) ([]FileNode, error) {
	query := `SELECT id, project_id, parent_id, name, type, content, updated_at
		 FROM file_nodes WHERE project_id = ?`
	args := []any{projectID}
	if parentID == nil {
		query += ` AND parent_id IS NULL`
	} else {
		query += ` AND parent_id = ?`
		args = append(args, *parentID)
	}
	query += ` ORDER BY type DESC, name ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("child nodes: %w", err)
	}
	defer rows.Close()

	var nodes []FileNode
	for rows.Next() {
		n, err := scanFileNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, rows.Err()
}

// CountProjectNodes returns the total number of nodes stored for a project.
func (s *Store) CountProjectNodes(ctx context.Context, projectID string) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM file_nodes WHERE project_id = ?`, projectID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count project nodes: %w", err)
	}
	return count, nil
}
