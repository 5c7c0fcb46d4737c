package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rahul/glide/internal/types"
)

// ReminderStore keeps one recurring Today's Path reminder per chat.
type ReminderStore interface {
	SetReminder(ctx context.Context, chatID string, interval time.Duration) error
	ClearReminder(ctx context.Context, chatID string) error
}

// ReminderTool lets the companion turn reminders on or off for the user.
type ReminderTool struct {
	Store ReminderStore
}

func NewReminderTool(store ReminderStore) *ReminderTool {
	return &ReminderTool{Store: store}
}

func (r *ReminderTool) Name() string {
	return "set_reminder"
}

func (r *ReminderTool) Description() string {
	return "Send the user their next steps on a schedule: 'schedule' a recurring reminder or 'clear' it."
}

func (r *ReminderTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"action": map[string]any{
				"type":        "string",
				"enum":        []string{"schedule", "clear"},
				"description": "'schedule' a reminder or 'clear' the current one.",
			},
			"interval_minutes": map[string]any{
				"type":        "integer",
				"description": "How often to remind, in minutes (1 to 10080, only for 'schedule').",
			},
		},
		"required": []string{"action"},
	}
}

func (r *ReminderTool) Execute(ctx context.Context, input string) (string, error) {
	var args struct {
		Action   string `json:"action"`
		Interval int    `json:"interval_minutes"`
	}
	if err := json.Unmarshal([]byte(input), &args); err != nil {
		return "", fmt.Errorf("invalid input: %w", err)
	}

	chatID, ok := ChatIDFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no chat in context")
	}

	switch args.Action {
	case "clear":
		if err := r.Store.ClearReminder(ctx, chatID); err != nil {
			return "", fmt.Errorf("failed to clear reminder: %w", err)
		}
		return "Reminders are off.", nil
	case "schedule":
		if args.Interval < 1 {
			return "Error: the interval must be at least 1 minute.", nil
		}
		if args.Interval > types.MaxReminderMinutes {
			return fmt.Sprintf("Error: the interval must be at most %d minutes (one week).", types.MaxReminderMinutes), nil
		}
		if err := r.Store.SetReminder(ctx, chatID, time.Duration(args.Interval)*time.Minute); err != nil {
			return "", fmt.Errorf("failed to schedule reminder: %w", err)
		}
		return fmt.Sprintf("Reminder set: next steps every %d minutes.", args.Interval), nil
	default:
		return "Invalid action. Use 'schedule' or 'clear'.", nil
	}
}
