package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/glide/internal/types"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "glide.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedFlow(t *testing.T, s *Store, n int) (*Flow, []Step) {
	t.Helper()
	ctx := context.Background()

	f, err := s.CreateFlow(ctx, "chat-1", "Plan Trip")
	require.NoError(t, err)

	var steps []Step
	for i := 1; i <= n; i++ {
		steps = append(steps, Step{
			FlowID:        f.ID,
			StepNumber:    i,
			Title:         "step",
			TimeEstimate:  "5 min",
			Description:   "do it",
			CompletionCue: "done",
		})
	}
	stored, err := s.InsertSteps(ctx, steps)
	require.NoError(t, err)
	return f, stored
}

func TestCreateAndGetFlow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	f, err := s.CreateFlow(ctx, "chat-1", "Organize Workspace")
	require.NoError(t, err)
	assert.NotEmpty(t, f.ID)

	got, err := s.GetFlow(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, "Organize Workspace", got.Title)
	assert.Equal(t, "chat-1", got.Owner)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetFlow(ctx, "missing")
	assert.True(t, types.IsNotFound(err))
}

func TestListFlows_NewestFirst(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	for i, title := range []string{"first", "second", "third"} {
		at := base.Add(time.Duration(i) * time.Minute)
		s.now = func() time.Time { return at }
		_, err := s.CreateFlow(ctx, "chat-1", title)
		require.NoError(t, err)
	}
	_, err := s.CreateFlow(ctx, "someone-else", "other")
	require.NoError(t, err)

	flows, err := s.ListFlows(ctx, "chat-1")
	require.NoError(t, err)
	require.Len(t, flows, 3)
	assert.Equal(t, "third", flows[0].Title)
	assert.Equal(t, "first", flows[2].Title)
}

func TestInsertSteps_AllOrNothing(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	f, err := s.CreateFlow(ctx, "chat-1", "Flow")
	require.NoError(t, err)

	// Duplicate step numbers violate the per-flow uniqueness constraint.
	_, err = s.InsertSteps(ctx, []Step{
		{FlowID: f.ID, StepNumber: 1, Title: "a"},
		{FlowID: f.ID, StepNumber: 1, Title: "b"},
	})
	require.Error(t, err)
	assert.True(t, types.IsStorageError(err))

	steps, err := s.ListSteps(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, steps)
}

func TestInsertSteps_UnknownFlow(t *testing.T) {
	s := setupTestStore(t)

	_, err := s.InsertSteps(context.Background(), []Step{{FlowID: "nope", StepNumber: 1}})
	assert.True(t, types.IsStorageError(err))
}

func TestDeleteFlow_CascadesSteps(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	f, steps := seedFlow(t, s, 3)

	require.NoError(t, s.DeleteFlow(ctx, f.ID))

	_, err := s.GetStep(ctx, steps[0].ID)
	assert.True(t, types.IsNotFound(err))

	left, err := s.ListSteps(ctx, f.ID)
	require.NoError(t, err)
	assert.Empty(t, left)

	// Deleting again is a no-op.
	assert.NoError(t, s.DeleteFlow(ctx, f.ID))
}

func TestApplyRenumbering(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	f, steps := seedFlow(t, s, 4)

	err := s.ApplyRenumbering(ctx, f.ID, []Renumbering{
		{ID: steps[3].ID, From: 4, To: 5},
		{ID: steps[2].ID, From: 3, To: 4},
	})
	require.NoError(t, err)

	positions, err := s.StepPositions(ctx, f.ID)
	require.NoError(t, err)
	assert.Equal(t, []Position{
		{ID: steps[0].ID, StepNumber: 1},
		{ID: steps[1].ID, StepNumber: 2},
		{ID: steps[2].ID, StepNumber: 4},
		{ID: steps[3].ID, StepNumber: 5},
	}, positions)
}

func TestApplyRenumbering_RollsBackOnConflict(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	f, steps := seedFlow(t, s, 3)

	// Ascending order collides with step 3 on the second move.
	err := s.ApplyRenumbering(ctx, f.ID, []Renumbering{
		{ID: steps[2].ID, From: 3, To: 4},
		{ID: steps[1].ID, From: 2, To: 3},
		{ID: steps[0].ID, From: 1, To: 3},
	})
	require.Error(t, err)

	positions, err := s.StepPositions(ctx, f.ID)
	require.NoError(t, err)
	for i, p := range positions {
		assert.Equal(t, i+1, p.StepNumber)
	}
}

func TestUpdateStepContent_KeepsIdentity(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, steps := seedFlow(t, s, 2)

	updated, err := s.UpdateStepContent(ctx, steps[1].ID, StepContent{
		Title:         "New title",
		TimeEstimate:  "2 min",
		Description:   "line one\nline two",
		CompletionCue: "✅ ok",
	})
	require.NoError(t, err)
	assert.Equal(t, steps[1].ID, updated.ID)
	assert.Equal(t, 2, updated.StepNumber)
	assert.Equal(t, "New title", updated.Title)
	assert.Equal(t, "line one\nline two", updated.Description)

	_, err = s.UpdateStepContent(ctx, "missing", StepContent{})
	assert.True(t, types.IsNotFound(err))
}

func TestSetStepCompleted(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	_, steps := seedFlow(t, s, 1)

	st, err := s.SetStepCompleted(ctx, steps[0].ID, true)
	require.NoError(t, err)
	assert.True(t, st.IsCompleted)

	st, err = s.SetStepCompleted(ctx, steps[0].ID, false)
	require.NoError(t, err)
	assert.False(t, st.IsCompleted)
}

func TestRenameFlow(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()
	f, _ := seedFlow(t, s, 1)

	renamed, err := s.RenameFlow(ctx, f.ID, "Trip to Lisbon")
	require.NoError(t, err)
	assert.Equal(t, "Trip to Lisbon", renamed.Title)

	_, err = s.RenameFlow(ctx, "missing", "x")
	assert.True(t, types.IsNotFound(err))
}

func TestHistory_ChronologicalAndLimited(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AddMessage(ctx, "chat-1", "human", "one"))
	require.NoError(t, s.AddMessage(ctx, "chat-1", "ai", "two"))
	require.NoError(t, s.AddMessage(ctx, "chat-1", "human", "three"))
	require.NoError(t, s.AddMessage(ctx, "chat-2", "human", "other chat"))

	history, err := s.GetHistory(ctx, "chat-1", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, llms.ChatMessageTypeAI, history[0].Role)
	assert.Equal(t, llms.TextContent{Text: "two"}, history[0].Parts[0])
	assert.Equal(t, llms.TextContent{Text: "three"}, history[1].Parts[0])

	require.NoError(t, s.ClearHistory(ctx, "chat-1"))
	history, err = s.GetHistory(ctx, "chat-1", 10)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestReminders(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	now := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	s.now = func() time.Time { return now }

	require.NoError(t, s.SetReminder(ctx, "chat-1", time.Hour))

	due, err := s.DueReminders(ctx)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "chat-1", due[0].ChatID)
	assert.Equal(t, 3600, due[0].IntervalSeconds)

	require.NoError(t, s.MarkReminded(ctx, due[0].ID))
	due, err = s.DueReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)

	now = now.Add(61 * time.Minute)
	due, err = s.DueReminders(ctx)
	require.NoError(t, err)
	assert.Len(t, due, 1)

	require.NoError(t, s.ClearReminder(ctx, "chat-1"))
	due, err = s.DueReminders(ctx)
	require.NoError(t, err)
	assert.Empty(t, due)
}
