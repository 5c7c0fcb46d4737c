package store

import (
	"context"

	"github.com/rahul/glide/internal/types"
)

const flowColumns = `id, owner, title, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFlow(row rowScanner) (*Flow, error) {
	var f Flow
	var createdAt, updatedAt string
	if err := row.Scan(&f.ID, &f.Owner, &f.Title, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return &f, nil
}

// CreateFlow inserts a flow and returns the stored record.
func (s *Store) CreateFlow(ctx context.Context, owner, title string) (*Flow, error) {
	now := s.now()
	f := &Flow{
		ID:        newID(),
		Owner:     owner,
		Title:     title,
		CreatedAt: now.UTC(),
		UpdatedAt: now.UTC(),
	}
	query := `INSERT INTO flows (` + flowColumns + `) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.DB.ExecContext(ctx, query, f.ID, f.Owner, f.Title, formatTime(now), formatTime(now)); err != nil {
		return nil, types.NewStorageError("create flow", err)
	}
	return f, nil
}

func (s *Store) GetFlow(ctx context.Context, id string) (*Flow, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+flowColumns+` FROM flows WHERE id = ?`, id)
	f, err := scanFlow(row)
	if err != nil {
		return nil, notFoundOr(err, "flow", id, "get flow")
	}
	return f, nil
}

// ListFlows returns the owner's flows, newest first.
func (s *Store) ListFlows(ctx context.Context, owner string) ([]Flow, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+flowColumns+` FROM flows WHERE owner = ? ORDER BY created_at DESC, rowid DESC`, owner)
	if err != nil {
		return nil, types.NewStorageError("list flows", err)
	}
	defer rows.Close()

	var flows []Flow
	for rows.Next() {
		f, err := scanFlow(rows)
		if err != nil {
			return nil, types.NewStorageError("scan flow", err)
		}
		flows = append(flows, *f)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list flows", err)
	}
	return flows, nil
}

func (s *Store) RenameFlow(ctx context.Context, id, title string) (*Flow, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE flows SET title = ?, updated_at = ? WHERE id = ?`, title, formatTime(s.now()), id)
	if err != nil {
		return nil, types.NewStorageError("rename flow", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.NewNotFoundError("flow", id)
	}
	return s.GetFlow(ctx, id)
}

// DeleteFlow removes a flow; its steps go with it. Deleting a missing flow
// is not an error.
func (s *Store) DeleteFlow(ctx context.Context, id string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM flows WHERE id = ?`, id); err != nil {
		return types.NewStorageError("delete flow", err)
	}
	return nil
}

// GetFlowWithSteps loads a flow and its steps ordered by step number.
func (s *Store) GetFlowWithSteps(ctx context.Context, id string) (*FlowWithSteps, error) {
	f, err := s.GetFlow(ctx, id)
	if err != nil {
		return nil, err
	}
	steps, err := s.ListSteps(ctx, id)
	if err != nil {
		return nil, err
	}
	return &FlowWithSteps{Flow: *f, Steps: steps}, nil
}
