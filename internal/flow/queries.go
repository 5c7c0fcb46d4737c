package flow

import (
	"context"
	"math"
	"strconv"
	"strings"

	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

// Stats summarises completion of one flow.
type Stats struct {
	TotalSteps           int `json:"total_steps" yaml:"total_steps"`
	CompletedSteps       int `json:"completed_steps" yaml:"completed_steps"`
	CompletionPercentage int `json:"completion_percentage" yaml:"completion_percentage"`
}

// NextStep is the first unfinished step of a flow.
type NextStep struct {
	FlowID    string
	FlowTitle string
	Step      store.Step
}

func (c *Coordinator) Flows(ctx context.Context, owner string) ([]store.Flow, error) {
	flows, err := c.Store.ListFlows(ctx, owner)
	if err != nil {
		return nil, storageError("list flows", err)
	}
	return flows, nil
}

func (c *Coordinator) FlowWithSteps(ctx context.Context, flowID string) (*store.FlowWithSteps, error) {
	f, err := c.Store.GetFlow(ctx, flowID)
	if err != nil {
		return nil, storageError("get flow", err)
	}
	steps, err := c.Store.ListSteps(ctx, flowID)
	if err != nil {
		return nil, storageError("list steps", err)
	}
	return &store.FlowWithSteps{Flow: *f, Steps: steps}, nil
}

// ResolveFlow finds one of owner's flows by id or by its 1-based position
// in the newest-first listing.
func (c *Coordinator) ResolveFlow(ctx context.Context, owner, ref string) (*store.Flow, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil, types.NewError(types.ErrInvalidInput, "Tell me which flow you mean.")
	}

	flows, err := c.Flows(ctx, owner)
	if err != nil {
		return nil, err
	}
	if n, err := strconv.Atoi(ref); err == nil {
		if n < 1 || n > len(flows) {
			return nil, types.NewNotFoundError("flow", ref)
		}
		return &flows[n-1], nil
	}
	for i := range flows {
		if flows[i].ID == ref || (len(ref) >= 8 && strings.HasPrefix(flows[i].ID, ref)) {
			return &flows[i], nil
		}
	}
	return nil, types.NewNotFoundError("flow", ref)
}

// StepAt returns the step with the given number in a flow.
func (c *Coordinator) StepAt(ctx context.Context, flowID string, number int) (*store.Step, error) {
	steps, err := c.Store.ListSteps(ctx, flowID)
	if err != nil {
		return nil, storageError("list steps", err)
	}
	for i := range steps {
		if steps[i].StepNumber == number {
			return &steps[i], nil
		}
	}
	return nil, types.NewNotFoundError("step", strconv.Itoa(number))
}

func (c *Coordinator) ToggleStep(ctx context.Context, stepID string, completed bool) (*store.Step, error) {
	st, err := c.Store.SetStepCompleted(ctx, stepID, completed)
	if err != nil {
		return nil, storageError("toggle step", err)
	}
	return st, nil
}

func (c *Coordinator) RenameFlow(ctx context.Context, flowID, title string) (*store.Flow, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, types.NewError(types.ErrInvalidInput, "A flow needs a title.")
	}
	f, err := c.Store.RenameFlow(ctx, flowID, title)
	if err != nil {
		return nil, storageError("rename flow", err)
	}
	return f, nil
}

// DeleteFlow removes a flow together with its steps.
func (c *Coordinator) DeleteFlow(ctx context.Context, flowID string) error {
	if err := c.Store.DeleteFlow(ctx, flowID); err != nil {
		return storageError("delete flow", err)
	}
	return nil
}

func (c *Coordinator) Stats(ctx context.Context, flowID string) (Stats, error) {
	steps, err := c.Store.ListSteps(ctx, flowID)
	if err != nil {
		return Stats{}, storageError("list steps", err)
	}
	return ComputeStats(steps), nil
}

// ComputeStats summarises completion of steps.
func ComputeStats(steps []store.Step) Stats {
	s := Stats{TotalSteps: len(steps)}
	for _, st := range steps {
		if st.IsCompleted {
			s.CompletedSteps++
		}
	}
	if s.TotalSteps > 0 {
		s.CompletionPercentage = int(math.Round(float64(s.CompletedSteps) * 100 / float64(s.TotalSteps)))
	}
	return s
}

// TodaysPath returns the first unfinished step of each of owner's flows,
// newest flow first. Flows whose steps cannot be loaded are skipped.
func (c *Coordinator) TodaysPath(ctx context.Context, owner string) ([]NextStep, error) {
	flows, err := c.Flows(ctx, owner)
	if err != nil {
		return nil, err
	}

	var next []NextStep
	for _, f := range flows {
		steps, err := c.Store.ListSteps(ctx, f.ID)
		if err != nil {
			c.Logger.LogError(owner, "todays_path", err)
			continue
		}
		for _, st := range steps {
			if !st.IsCompleted {
				next = append(next, NextStep{FlowID: f.ID, FlowTitle: f.Title, Step: st})
				break
			}
		}
	}
	return next, nil
}
