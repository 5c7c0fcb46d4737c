package agent

import (
	"context"
	"log"
	"time"

	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/store"
)

// Messenger delivers a message formatted for the chat's gateway.
type Messenger interface {
	Send(chatID string, text string) error
}

// ReminderStore lists and acknowledges due reminders.
type ReminderStore interface {
	DueReminders(ctx context.Context) ([]store.Reminder, error)
	MarkReminded(ctx context.Context, id int) error
}

// PathFinder returns the next unfinished step of each of an owner's flows.
type PathFinder interface {
	TodaysPath(ctx context.Context, owner string) ([]flow.NextStep, error)
}

// Scheduler pushes Today's Path to chats whose reminder is due.
type Scheduler struct {
	Store    ReminderStore
	Path     PathFinder
	Gateway  Messenger
	Format   func(chatID string, next []flow.NextStep) string
	Interval time.Duration
}

func NewScheduler(reminders ReminderStore, path PathFinder, gateway Messenger, format func(string, []flow.NextStep) string) *Scheduler {
	return &Scheduler{
		Store:    reminders,
		Path:     path,
		Gateway:  gateway,
		Format:   format,
		Interval: 30 * time.Second,
	}
}

func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	log.Println("Reminder scheduler started...")

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.pollAndSend(ctx)
		}
	}
}

func (s *Scheduler) pollAndSend(ctx context.Context) {
	due, err := s.Store.DueReminders(ctx)
	if err != nil {
		log.Printf("Error polling reminders: %v", err)
		return
	}

	for _, r := range due {
		next, err := s.Path.TodaysPath(ctx, r.ChatID)
		if err != nil {
			log.Printf("Error loading next steps for chat %s: %v", r.ChatID, err)
			continue
		}

		// Mark first so a failing gateway does not resend every tick.
		if err := s.Store.MarkReminded(ctx, r.ID); err != nil {
			log.Printf("Error updating reminder %d: %v", r.ID, err)
		}

		if len(next) == 0 || s.Gateway == nil {
			continue
		}
		if err := s.Gateway.Send(r.ChatID, s.Format(r.ChatID, next)); err != nil {
			log.Printf("Error sending reminder to chat %s: %v", r.ChatID, err)
		}
	}
}
