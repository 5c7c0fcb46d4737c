package flow

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rahul/glide/internal/governance"
	"github.com/rahul/glide/internal/parser"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

func parsedFlow(title string, numbers ...int) *parser.ParsedFlow {
	pf := &parser.ParsedFlow{Title: title}
	for _, n := range numbers {
		pf.Steps = append(pf.Steps, parser.ParsedStep{
			StepNumber:    n,
			Title:         "claimed " + string(rune('0'+n)),
			TimeEstimate:  "10 min",
			Description:   "Complete this step",
			CompletionCue: "Step completed",
		})
	}
	return pf
}

func TestCreateFlow_NumbersStepsByPosition(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{flow: parsedFlow("Clean the garage", 1, 5, 2)}
	c := NewCoordinator(st, gen, quietLogger())

	var progress []string
	f, err := c.CreateFlow(context.Background(), "chat-1", "clean the garage", func(m string) {
		progress = append(progress, m)
	})
	require.NoError(t, err)
	assert.Equal(t, "Clean the garage", f.Title)
	assert.Equal(t, "chat-1", f.Owner)

	steps, err := st.ListSteps(context.Background(), f.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
		assert.False(t, s.IsCompleted)
	}
	assert.Equal(t, "claimed 1", steps[0].Title)
	assert.Equal(t, "claimed 5", steps[1].Title)
	assert.Equal(t, "claimed 2", steps[2].Title)

	assert.Equal(t, []string{
		ProgressBreakingDown,
		ProgressCreatingFlow,
		ProgressAddingSteps,
		ProgressFlowCreated,
	}, progress)
}

func TestCreateFlow_InsertFailureDeletesFlow(t *testing.T) {
	st := newMemStore()
	st.failInsertSteps = true
	gen := &fakeGenerator{flow: parsedFlow("Plan", 1, 2)}
	c := NewCoordinator(st, gen, quietLogger())

	f, err := c.CreateFlow(context.Background(), "chat-1", "plan", nil)
	require.Error(t, err)
	assert.Nil(t, f)
	assert.True(t, types.IsStorageError(err))

	flows, err := st.ListFlows(context.Background(), "chat-1")
	require.NoError(t, err)
	assert.Empty(t, flows)
	assert.Contains(t, st.calls, "DeleteFlow")
}

func TestCreateFlow_CreateFailureIsStorageError(t *testing.T) {
	st := newMemStore()
	st.failCreateFlow = true
	c := NewCoordinator(st, &fakeGenerator{flow: parsedFlow("Plan", 1)}, quietLogger())

	_, err := c.CreateFlow(context.Background(), "chat-1", "plan", nil)
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))
	assert.Equal(t, types.MsgStorageFailed, err.Error())
	assert.NotContains(t, st.calls, "InsertSteps")
}

func TestCreateFlow_GenerationFailureTouchesNoStorage(t *testing.T) {
	st := newMemStore()
	genErr := types.NewGenerationError(types.MsgBreakdownFailed, errors.New("rate limited"))
	c := NewCoordinator(st, &fakeGenerator{err: genErr}, quietLogger())

	_, err := c.CreateFlow(context.Background(), "chat-1", "plan", nil)
	require.Error(t, err)
	assert.True(t, types.IsGenerationError(err))
	assert.Equal(t, types.MsgBreakdownFailed, err.Error())
	assert.Empty(t, st.calls)
}

func TestCreateFlow_ForwardsStreamedChunks(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{flow: parsedFlow("Plan", 1), chunks: []string{"Title: Pl", "an"}}
	c := NewCoordinator(st, gen, quietLogger())

	var progress []string
	_, err := c.CreateFlow(context.Background(), "chat-1", "plan", func(m string) {
		progress = append(progress, m)
	})
	require.NoError(t, err)
	assert.Contains(t, progress, "Title: Pl")
	assert.False(t, IsStatusMessage("Title: Pl"))
	assert.True(t, IsStatusMessage(ProgressFlowCreated))
}

func splitHalves() [2]parser.ParsedStep {
	return [2]parser.ParsedStep{
		{StepNumber: 1, Title: "First half", TimeEstimate: "3 min", Description: "a", CompletionCue: "done a"},
		{StepNumber: 2, Title: "Second half", TimeEstimate: "4 min", Description: "b", CompletionCue: "done b"},
	}
}

func TestSplitStep_ShiftsLaterSteps(t *testing.T) {
	st := newMemStore()
	f, seeded := st.seed("chat-1", 4)
	target := seeded[1]
	c := NewCoordinator(st, &fakeGenerator{halves: splitHalves()}, quietLogger())

	var progress []string
	got, err := c.SplitStep(context.Background(), target.ID, func(m string) {
		progress = append(progress, m)
	})
	require.NoError(t, err)

	assert.Equal(t, target.ID, got[0].ID)
	assert.Equal(t, 2, got[0].StepNumber)
	assert.Equal(t, "First half", got[0].Title)
	assert.Equal(t, 3, got[1].StepNumber)
	assert.Equal(t, "Second half", got[1].Title)
	assert.False(t, got[1].IsCompleted)

	steps, err := st.ListSteps(context.Background(), f.ID)
	require.NoError(t, err)
	require.Len(t, steps, 5)
	titles := make([]string, len(steps))
	for i, s := range steps {
		assert.Equal(t, i+1, s.StepNumber)
		titles[i] = s.Title
	}
	assert.Equal(t, []string{"Step 1", "First half", "Second half", "Step 3", "Step 4"}, titles)

	assert.Equal(t, []string{
		ProgressFetchingStep,
		ProgressSplitting,
		ProgressCreatingSteps,
		ProgressSplitDone,
	}, progress)
}

func TestSplitStep_LastStep(t *testing.T) {
	st := newMemStore()
	f, seeded := st.seed("chat-1", 3)
	c := NewCoordinator(st, &fakeGenerator{halves: splitHalves()}, quietLogger())

	got, err := c.SplitStep(context.Background(), seeded[2].ID, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, got[0].StepNumber)
	assert.Equal(t, 4, got[1].StepNumber)

	steps, err := st.ListSteps(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Len(t, steps, 4)
}

func TestSplitStep_UnknownStep(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{halves: splitHalves()}
	c := NewCoordinator(st, gen, quietLogger())

	_, err := c.SplitStep(context.Background(), "missing", nil)
	require.Error(t, err)
	assert.True(t, types.IsNotFound(err))
	assert.Empty(t, gen.split)
}

func TestSplitStep_GenerationFailureLeavesFlowUntouched(t *testing.T) {
	st := newMemStore()
	f, seeded := st.seed("chat-1", 3)
	genErr := types.NewGenerationError(types.MsgSplitFailed, types.NewParseError("Split response must contain two steps"))
	c := NewCoordinator(st, &fakeGenerator{err: genErr}, quietLogger())

	_, err := c.SplitStep(context.Background(), seeded[0].ID, nil)
	require.Error(t, err)
	assert.Equal(t, types.MsgSplitFailed, err.Error())
	assert.Equal(t, []string{"GetStep"}, st.calls)

	steps, _ := st.ListSteps(context.Background(), f.ID)
	assert.Equal(t, seeded[0].Title, steps[0].Title)
	assert.Len(t, steps, 3)
}

func TestSplitStep_InsertFailureRestoresFlow(t *testing.T) {
	st := newMemStore()
	f, seeded := st.seed("chat-1", 4)
	st.failInsertStep = true
	c := NewCoordinator(st, &fakeGenerator{halves: splitHalves()}, quietLogger())

	_, err := c.SplitStep(context.Background(), seeded[1].ID, nil)
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))

	steps, err := st.ListSteps(context.Background(), f.ID)
	require.NoError(t, err)
	require.Len(t, steps, 4)
	for i, s := range steps {
		assert.Equal(t, seeded[i].ID, s.ID)
		assert.Equal(t, i+1, s.StepNumber)
		assert.Equal(t, seeded[i].Title, s.Title)
	}
}

func TestSplitStep_UpdateFailureRevertsRenumbering(t *testing.T) {
	st := newMemStore()
	f, seeded := st.seed("chat-1", 3)
	st.failUpdate = true
	c := NewCoordinator(st, &fakeGenerator{halves: splitHalves()}, quietLogger())

	_, err := c.SplitStep(context.Background(), seeded[0].ID, nil)
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))

	steps, _ := st.ListSteps(context.Background(), f.ID)
	for i, s := range steps {
		assert.Equal(t, seeded[i].ID, s.ID)
		assert.Equal(t, i+1, s.StepNumber)
	}
}

func TestSplitStep_RenumberFailure(t *testing.T) {
	st := newMemStore()
	_, seeded := st.seed("chat-1", 3)
	st.failRenumber = true
	c := NewCoordinator(st, &fakeGenerator{halves: splitHalves()}, quietLogger())

	_, err := c.SplitStep(context.Background(), seeded[0].ID, nil)
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))
	assert.NotContains(t, st.calls, "UpdateStepContent")
	assert.NotContains(t, st.calls, "InsertStep")
}

func TestBuildSteps(t *testing.T) {
	steps := BuildSteps("f1", parsedFlow("x", 7, 3).Steps)
	require.Len(t, steps, 2)
	assert.Equal(t, store.Step{
		FlowID:        "f1",
		StepNumber:    1,
		Title:         "claimed 7",
		TimeEstimate:  "10 min",
		Description:   "Complete this step",
		CompletionCue: "Step completed",
	}, steps[0])
	assert.Equal(t, 2, steps[1].StepNumber)
}

func TestCreateFlow_PolicyRejectsBeforeGeneration(t *testing.T) {
	st := newMemStore()
	gen := &fakeGenerator{flow: parsedFlow("Plan", 1)}
	c := NewCoordinator(st, gen, quietLogger())
	engine, err := governance.NewPolicyEngine([]string{"forbidden"})
	require.NoError(t, err)
	c.Policy = engine

	for task, code := range map[string]types.ErrorCode{
		"   ":                types.ErrInvalidInput,
		"a forbidden errand": types.ErrPolicyDenied,
	} {
		_, err := c.CreateFlow(context.Background(), "chat-1", task, nil)
		var ge *types.GlideError
		require.ErrorAs(t, err, &ge)
		assert.Equal(t, code, ge.Code)
	}
	assert.Empty(t, gen.tasks)
	assert.Empty(t, st.calls)
}
