// Package flow coordinates the multi-record writes behind creating a flow
// from a task and splitting one step into two.
//
// Storage offers no cross-call transactions, so partial failures are undone
// with compensating writes: a flow whose steps could not be inserted is
// deleted, and a split that fails after renumbering restores the previous
// content and numbering.
package flow

import (
	"context"
	"errors"

	"github.com/rahul/glide/internal/governance"
	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/parser"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

// Progress messages emitted by the coordinator.
const (
	ProgressBreakingDown  = "Breaking down your task..."
	ProgressCreatingFlow  = "Creating your flow..."
	ProgressAddingSteps   = "Adding steps..."
	ProgressFlowCreated   = "Flow created successfully!"
	ProgressFetchingStep  = "Getting step details..."
	ProgressSplitting     = "Breaking down step..."
	ProgressCreatingSteps = "Creating new steps..."
	ProgressSplitDone     = "Split completed!"
)

var statusMessages = map[string]bool{
	ProgressBreakingDown:  true,
	ProgressCreatingFlow:  true,
	ProgressAddingSteps:   true,
	ProgressFlowCreated:   true,
	ProgressFetchingStep:  true,
	ProgressSplitting:     true,
	ProgressCreatingSteps: true,
	ProgressSplitDone:     true,
}

// IsStatusMessage reports whether msg is one of the coordinator's own
// progress lines rather than a raw streamed chunk.
func IsStatusMessage(msg string) bool {
	return statusMessages[msg]
}

// Generator produces parsed steps from a task or from an existing step.
type Generator interface {
	Breakdown(ctx context.Context, task string, onProgress types.ProgressFunc) (*parser.ParsedFlow, error)
	Split(ctx context.Context, step store.Step, onProgress types.ProgressFunc) ([2]parser.ParsedStep, error)
}

// Store is the persistence the coordinator needs.
type Store interface {
	CreateFlow(ctx context.Context, owner, title string) (*store.Flow, error)
	GetFlow(ctx context.Context, id string) (*store.Flow, error)
	ListFlows(ctx context.Context, owner string) ([]store.Flow, error)
	RenameFlow(ctx context.Context, id, title string) (*store.Flow, error)
	DeleteFlow(ctx context.Context, id string) error

	InsertSteps(ctx context.Context, steps []store.Step) ([]store.Step, error)
	InsertStep(ctx context.Context, st store.Step) (*store.Step, error)
	GetStep(ctx context.Context, id string) (*store.Step, error)
	ListSteps(ctx context.Context, flowID string) ([]store.Step, error)
	StepPositions(ctx context.Context, flowID string) ([]store.Position, error)
	ApplyRenumbering(ctx context.Context, flowID string, moves []store.Renumbering) error
	UpdateStepContent(ctx context.Context, id string, c store.StepContent) (*store.Step, error)
	SetStepCompleted(ctx context.Context, id string, completed bool) (*store.Step, error)
}

type Coordinator struct {
	Store     Store
	Generator Generator
	Logger    *observability.Logger
	// Policy vets task text before generation; nil allows any non-blank task.
	Policy governance.PolicyEngine
}

func NewCoordinator(st Store, gen Generator, logger *observability.Logger) *Coordinator {
	return &Coordinator{
		Store:     st,
		Generator: gen,
		Logger:    logger,
	}
}

// CreateFlow breaks task down, stores the flow and its steps numbered 1..N
// in the order the model produced them, and returns the flow. If the steps
// cannot be stored the flow is deleted again.
func (c *Coordinator) CreateFlow(ctx context.Context, owner, task string, onProgress types.ProgressFunc) (*store.Flow, error) {
	if res, err := governance.CheckTask(ctx, c.Policy, owner, task); err != nil {
		c.Logger.LogPolicyCheck(owner, governance.SubjectTask, string(res.Effect), res.Reason)
		return nil, err
	}

	observability.SetStatus(observability.RoleBreakdown, task)
	defer observability.SetStatus(observability.RoleIdle, "")

	onProgress.Notify(ProgressBreakingDown)
	parsed, err := c.Generator.Breakdown(ctx, task, onProgress)
	if err != nil {
		return nil, err
	}

	onProgress.Notify(ProgressCreatingFlow)
	f, err := c.Store.CreateFlow(ctx, owner, parsed.Title)
	if err != nil {
		return nil, storageError("create flow", err)
	}

	onProgress.Notify(ProgressAddingSteps)
	if _, err := c.Store.InsertSteps(ctx, BuildSteps(f.ID, parsed.Steps)); err != nil {
		// The cleanup must outlive a cancelled request.
		if derr := c.Store.DeleteFlow(context.WithoutCancel(ctx), f.ID); derr != nil {
			c.Logger.LogRollback(owner, f.ID, "delete_flow_failed", derr)
		} else {
			c.Logger.LogRollback(owner, f.ID, "flow_deleted", err)
		}
		return nil, storageError("insert steps", err)
	}

	c.Logger.LogFlow(observability.EventTypeFlow, owner, f.ID, map[string]any{
		"title": f.Title,
		"steps": len(parsed.Steps),
	})
	observability.CountFlow()
	onProgress.Notify(ProgressFlowCreated)
	return f, nil
}

// BuildSteps converts parsed steps into insert records numbered 1..N by
// position, ignoring the numbers the model claimed.
func BuildSteps(flowID string, parsed []parser.ParsedStep) []store.Step {
	steps := make([]store.Step, len(parsed))
	for i, p := range parsed {
		steps[i] = store.Step{
			FlowID:        flowID,
			StepNumber:    i + 1,
			Title:         p.Title,
			TimeEstimate:  p.TimeEstimate,
			Description:   p.Description,
			CompletionCue: p.CompletionCue,
			IsCompleted:   false,
		}
	}
	return steps
}

// SplitStep replaces a step with two: the target keeps its id and number
// and takes the first half's content, later steps shift up by one, and the
// second half is inserted right after the target.
func (c *Coordinator) SplitStep(ctx context.Context, stepID string, onProgress types.ProgressFunc) ([2]store.Step, error) {
	var out [2]store.Step

	onProgress.Notify(ProgressFetchingStep)
	target, err := c.Store.GetStep(ctx, stepID)
	if err != nil {
		return out, storageError("get step", err)
	}

	observability.SetStatus(observability.RoleSplit, target.Title)
	defer observability.SetStatus(observability.RoleIdle, "")

	onProgress.Notify(ProgressSplitting)
	halves, err := c.Generator.Split(ctx, *target, onProgress)
	if err != nil {
		return out, err
	}

	onProgress.Notify(ProgressCreatingSteps)
	positions, err := c.Store.StepPositions(ctx, target.FlowID)
	if err != nil {
		return out, storageError("list step positions", err)
	}

	moves := Renumber(positions, target.StepNumber)
	if err := c.Store.ApplyRenumbering(ctx, target.FlowID, moves); err != nil {
		return out, storageError("renumber steps", err)
	}

	// Compensating writes run on a context the caller cannot cancel.
	cctx := context.WithoutCancel(ctx)

	first, err := c.Store.UpdateStepContent(ctx, target.ID, contentOf(halves[0]))
	if err != nil {
		c.revertRenumbering(cctx, target.FlowID, moves)
		return out, storageError("update step", err)
	}

	second, err := c.Store.InsertStep(ctx, store.Step{
		FlowID:        target.FlowID,
		StepNumber:    target.StepNumber + 1,
		Title:         halves[1].Title,
		TimeEstimate:  halves[1].TimeEstimate,
		Description:   halves[1].Description,
		CompletionCue: halves[1].CompletionCue,
		IsCompleted:   false,
	})
	if err != nil {
		if _, rerr := c.Store.UpdateStepContent(cctx, target.ID, target.Content()); rerr != nil {
			c.Logger.LogRollback("", target.FlowID, "restore_step_failed", rerr)
		}
		c.revertRenumbering(cctx, target.FlowID, moves)
		return out, storageError("insert step", err)
	}

	c.Logger.LogFlow(observability.EventTypeSplit, "", target.FlowID, map[string]any{
		"step_id":     target.ID,
		"step_number": target.StepNumber,
		"shifted":     len(moves),
	})
	observability.CountSplit()
	onProgress.Notify(ProgressSplitDone)

	out[0], out[1] = *first, *second
	return out, nil
}

func (c *Coordinator) revertRenumbering(ctx context.Context, flowID string, moves []store.Renumbering) {
	if len(moves) == 0 {
		return
	}
	if err := c.Store.ApplyRenumbering(ctx, flowID, invert(moves)); err != nil {
		c.Logger.LogRollback("", flowID, "revert_renumbering_failed", err)
		return
	}
	c.Logger.LogRollback("", flowID, "renumbering_reverted", nil)
}

func contentOf(p parser.ParsedStep) store.StepContent {
	return store.StepContent{
		Title:         p.Title,
		TimeEstimate:  p.TimeEstimate,
		Description:   p.Description,
		CompletionCue: p.CompletionCue,
	}
}

// storageError keeps typed errors from the store and wraps anything else.
func storageError(op string, err error) error {
	var ge *types.GlideError
	if errors.As(err, &ge) {
		return err
	}
	return types.NewStorageError(op, err)
}
