package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/rahul/glide/internal/flow"
)

// PathFinder returns the next unfinished step of each of an owner's flows.
type PathFinder interface {
	TodaysPath(ctx context.Context, owner string) ([]flow.NextStep, error)
}

// NextStepsTool shows the companion what the user should do next.
type NextStepsTool struct {
	Path PathFinder
}

func NewNextStepsTool(path PathFinder) *NextStepsTool {
	return &NextStepsTool{Path: path}
}

func (t *NextStepsTool) Name() string {
	return "next_steps"
}

func (t *NextStepsTool) Description() string {
	return "List the next unfinished step of every flow the user has, with its time estimate and completion cue."
}

func (t *NextStepsTool) Parameters() map[string]any {
	return map[string]any{
		"type":       "object",
		"properties": map[string]any{},
	}
}

func (t *NextStepsTool) Execute(ctx context.Context, _ string) (string, error) {
	chatID, ok := ChatIDFrom(ctx)
	if !ok {
		return "", fmt.Errorf("no chat in context")
	}

	next, err := t.Path.TodaysPath(ctx, chatID)
	if err != nil {
		return "", err
	}
	if len(next) == 0 {
		return "The user has no unfinished steps.", nil
	}

	var b strings.Builder
	for _, n := range next {
		fmt.Fprintf(&b, "- Flow %q, step %d: %s (%s). Done when: %s\n",
			n.FlowTitle, n.Step.StepNumber, n.Step.Title, n.Step.TimeEstimate, n.Step.CompletionCue)
	}
	return b.String(), nil
}
