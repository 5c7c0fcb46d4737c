package store

import (
	"context"
	"time"

	"github.com/rahul/glide/internal/types"
)

// SetReminder schedules next-step reminders for chatID every interval.
// A new reminder is due immediately.
func (s *Store) SetReminder(ctx context.Context, chatID string, interval time.Duration) error {
	query := `INSERT INTO reminders (chat_id, interval_seconds, last_run) VALUES (?, ?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET interval_seconds = excluded.interval_seconds, last_run = excluded.last_run`
	lastRun := formatTime(s.now().Add(-interval))
	if _, err := s.DB.ExecContext(ctx, query, chatID, int(interval/time.Second), lastRun); err != nil {
		return types.NewStorageError("set reminder", err)
	}
	return nil
}

func (s *Store) ClearReminder(ctx context.Context, chatID string) error {
	if _, err := s.DB.ExecContext(ctx, `DELETE FROM reminders WHERE chat_id = ?`, chatID); err != nil {
		return types.NewStorageError("clear reminder", err)
	}
	return nil
}

// DueReminders returns reminders whose interval has elapsed since their last run.
func (s *Store) DueReminders(ctx context.Context) ([]Reminder, error) {
	rows, err := s.DB.QueryContext(ctx, `SELECT id, chat_id, interval_seconds, last_run FROM reminders`)
	if err != nil {
		return nil, types.NewStorageError("poll reminders", err)
	}
	defer rows.Close()

	now := s.now()
	var due []Reminder
	for rows.Next() {
		var r Reminder
		var lastRun string
		if err := rows.Scan(&r.ID, &r.ChatID, &r.IntervalSeconds, &lastRun); err != nil {
			return nil, types.NewStorageError("scan reminder", err)
		}
		r.LastRun = parseTime(lastRun)
		if now.Sub(r.LastRun) >= time.Duration(r.IntervalSeconds)*time.Second {
			due = append(due, r)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewStorageError("poll reminders", err)
	}
	return due, nil
}

func (s *Store) MarkReminded(ctx context.Context, id int) error {
	if _, err := s.DB.ExecContext(ctx, `UPDATE reminders SET last_run = ? WHERE id = ?`, formatTime(s.now()), id); err != nil {
		return types.NewStorageError("mark reminder", err)
	}
	return nil
}
