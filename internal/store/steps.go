package store

import (
	"context"
	"database/sql"

	"github.com/rahul/glide/internal/types"
)

const stepColumns = `id, flow_id, step_number, title, time_estimate, description, completion_cue, is_completed, created_at, updated_at`

func scanStep(row rowScanner) (*Step, error) {
	var st Step
	var createdAt, updatedAt string
	err := row.Scan(&st.ID, &st.FlowID, &st.StepNumber, &st.Title, &st.TimeEstimate,
		&st.Description, &st.CompletionCue, &st.IsCompleted, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}
	st.CreatedAt = parseTime(createdAt)
	st.UpdatedAt = parseTime(updatedAt)
	return &st, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *Store) insertStep(ctx context.Context, db execer, st *Step) error {
	now := s.now()
	if st.ID == "" {
		st.ID = newID()
	}
	st.CreatedAt = now.UTC()
	st.UpdatedAt = now.UTC()

	query := `INSERT INTO steps (` + stepColumns + `) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := db.ExecContext(ctx, query, st.ID, st.FlowID, st.StepNumber, st.Title, st.TimeEstimate,
		st.Description, st.CompletionCue, st.IsCompleted, formatTime(now), formatTime(now))
	return err
}

// InsertSteps stores all steps in one transaction; either every step is
// written or none is.
func (s *Store) InsertSteps(ctx context.Context, steps []Step) ([]Step, error) {
	out := make([]Step, len(steps))
	copy(out, steps)

	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for i := range out {
			if err := s.insertStep(ctx, tx, &out[i]); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, types.NewStorageError("insert steps", err)
	}
	return out, nil
}

func (s *Store) InsertStep(ctx context.Context, st Step) (*Step, error) {
	if err := s.insertStep(ctx, s.DB, &st); err != nil {
		return nil, types.NewStorageError("insert step", err)
	}
	return &st, nil
}

func (s *Store) GetStep(ctx context.Context, id string) (*Step, error) {
	row := s.DB.QueryRowContext(ctx, `SELECT `+stepColumns+` FROM steps WHERE id = ?`, id)
	st, err := scanStep(row)
	if err != nil {
		return nil, notFoundOr(err, "step", id, "get step")
	}
	return st, nil
}

// ListSteps returns a flow's steps ordered by step number.
func (s *Store) ListSteps(ctx context.Context, flowID string) ([]Step, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+stepColumns+` FROM steps WHERE flow_id = ? ORDER BY step_number`, flowID)
	if err != nil {
		return nil, types.NewStorageError("list steps", err)
	}
	defer rows.Close()

	var steps []Step
	for rows.Next() {
		st, err := scanStep(rows)
		if err != nil {
			return nil, types.NewStorageError("scan step", err)
		}
		steps = append(steps, *st)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list steps", err)
	}
	return steps, nil
}

// StepPositions returns the id and number of every step in a flow,
// ordered by number.
func (s *Store) StepPositions(ctx context.Context, flowID string) ([]Position, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, step_number FROM steps WHERE flow_id = ? ORDER BY step_number`, flowID)
	if err != nil {
		return nil, types.NewStorageError("list step positions", err)
	}
	defer rows.Close()

	var positions []Position
	for rows.Next() {
		var p Position
		if err := rows.Scan(&p.ID, &p.StepNumber); err != nil {
			return nil, types.NewStorageError("scan step position", err)
		}
		positions = append(positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("list step positions", err)
	}
	return positions, nil
}

// ApplyRenumbering moves steps in the given order inside one transaction.
// Each move must target a number that is free at that point, so callers
// pass shifts up in descending order.
func (s *Store) ApplyRenumbering(ctx context.Context, flowID string, moves []Renumbering) error {
	if len(moves) == 0 {
		return nil
	}
	now := formatTime(s.now())
	err := s.inTx(ctx, func(tx *sql.Tx) error {
		for _, m := range moves {
			res, err := tx.ExecContext(ctx,
				`UPDATE steps SET step_number = ?, updated_at = ? WHERE id = ? AND flow_id = ? AND step_number = ?`,
				m.To, now, m.ID, flowID, m.From)
			if err != nil {
				return err
			}
			if n, _ := res.RowsAffected(); n != 1 {
				return types.NewNotFoundError("step", m.ID)
			}
		}
		return nil
	})
	if err != nil {
		return types.NewStorageError("renumber steps", err)
	}
	return nil
}

// UpdateStepContent overwrites the text of a step, keeping its id and number.
func (s *Store) UpdateStepContent(ctx context.Context, id string, c StepContent) (*Step, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE steps SET title = ?, time_estimate = ?, description = ?, completion_cue = ?, updated_at = ? WHERE id = ?`,
		c.Title, c.TimeEstimate, c.Description, c.CompletionCue, formatTime(s.now()), id)
	if err != nil {
		return nil, types.NewStorageError("update step", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.NewNotFoundError("step", id)
	}
	return s.GetStep(ctx, id)
}

func (s *Store) SetStepCompleted(ctx context.Context, id string, completed bool) (*Step, error) {
	res, err := s.DB.ExecContext(ctx,
		`UPDATE steps SET is_completed = ?, updated_at = ? WHERE id = ?`, completed, formatTime(s.now()), id)
	if err != nil {
		return nil, types.NewStorageError("update step completion", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, types.NewNotFoundError("step", id)
	}
	return s.GetStep(ctx, id)
}
