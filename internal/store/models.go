package store

import "time"

// Flow is a saved checklist generated from one task description.
type Flow struct {
	ID        string    `json:"id" yaml:"id"`
	Owner     string    `json:"owner" yaml:"owner"`
	Title     string    `json:"title" yaml:"title"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt time.Time `json:"updated_at" yaml:"updated_at"`
}

// Step is one ordered item of a Flow. Step numbers within a flow are
// always exactly 1..N.
type Step struct {
	ID            string    `json:"id" yaml:"id"`
	FlowID        string    `json:"flow_id" yaml:"flow_id"`
	StepNumber    int       `json:"step_number" yaml:"step_number"`
	Title         string    `json:"title" yaml:"title"`
	TimeEstimate  string    `json:"time_estimate" yaml:"time_estimate"`
	Description   string    `json:"description" yaml:"description"`
	CompletionCue string    `json:"completion_cue" yaml:"completion_cue"`
	IsCompleted   bool      `json:"is_completed" yaml:"is_completed"`
	CreatedAt     time.Time `json:"created_at" yaml:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" yaml:"updated_at"`
}

// StepContent is the user-visible text of a step, without identity or order.
type StepContent struct {
	Title         string
	TimeEstimate  string
	Description   string
	CompletionCue string
}

// Content returns the text fields of s.
func (s Step) Content() StepContent {
	return StepContent{
		Title:         s.Title,
		TimeEstimate:  s.TimeEstimate,
		Description:   s.Description,
		CompletionCue: s.CompletionCue,
	}
}

// Position is the ordering key of a step.
type Position struct {
	ID         string
	StepNumber int
}

// Renumbering moves one step from one number to another.
type Renumbering struct {
	ID   string
	From int
	To   int
}

// FlowWithSteps bundles a flow and its ordered steps.
type FlowWithSteps struct {
	Flow  Flow   `json:"flow" yaml:"flow"`
	Steps []Step `json:"steps" yaml:"steps"`
}

// Reminder is a per-chat schedule for pushing the next steps.
type Reminder struct {
	ID              int
	ChatID          string
	IntervalSeconds int
	LastRun         time.Time
}
