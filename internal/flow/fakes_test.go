package flow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/parser"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

var (
	errInjected = errors.New("injected failure")
	errCleanup  = errors.New("cleanup failure")
)

// memStore is an in-memory Store. Setting one of the fail* fields makes the
// matching method return errInjected; the cleanup switches (failDelete,
// failRestore, failRevert) return errCleanup instead. Writes honour ctx
// cancellation, and onCall runs before each recorded call.
type memStore struct {
	mu     sync.Mutex
	flows  map[string]store.Flow
	order  []string
	steps  map[string]store.Step
	nextID int
	calls  []string

	failCreateFlow  bool
	failInsertSteps bool
	failInsertStep  bool
	failUpdate      bool
	failRenumber    bool
	failListSteps   map[string]bool

	failDelete  bool
	failRestore bool // every UpdateStepContent after the first
	failRevert  bool // every ApplyRenumbering after the first

	updates   int
	renumbers int
	onCall    func(call string)
}

func newMemStore() *memStore {
	return &memStore{
		flows:         map[string]store.Flow{},
		steps:         map[string]store.Step{},
		failListSteps: map[string]bool{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%04d", prefix, m.nextID)
}

func (m *memStore) record(call string) {
	m.calls = append(m.calls, call)
	if m.onCall != nil {
		m.onCall(call)
	}
}

func (m *memStore) CreateFlow(_ context.Context, owner, title string) (*store.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("CreateFlow")
	if m.failCreateFlow {
		return nil, errInjected
	}
	f := store.Flow{ID: m.id("flow"), Owner: owner, Title: title}
	m.flows[f.ID] = f
	m.order = append(m.order, f.ID)
	return &f, nil
}

func (m *memStore) GetFlow(_ context.Context, id string) (*store.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetFlow")
	f, ok := m.flows[id]
	if !ok {
		return nil, types.NewNotFoundError("flow", id)
	}
	return &f, nil
}

func (m *memStore) ListFlows(_ context.Context, owner string) ([]store.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListFlows")
	var out []store.Flow
	for i := len(m.order) - 1; i >= 0; i-- {
		f, ok := m.flows[m.order[i]]
		if ok && f.Owner == owner {
			out = append(out, f)
		}
	}
	return out, nil
}

func (m *memStore) RenameFlow(_ context.Context, id, title string) (*store.Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("RenameFlow")
	f, ok := m.flows[id]
	if !ok {
		return nil, types.NewNotFoundError("flow", id)
	}
	f.Title = title
	m.flows[id] = f
	return &f, nil
}

func (m *memStore) DeleteFlow(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("DeleteFlow")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failDelete {
		return errCleanup
	}
	delete(m.flows, id)
	for sid, st := range m.steps {
		if st.FlowID == id {
			delete(m.steps, sid)
		}
	}
	return nil
}

func (m *memStore) InsertSteps(ctx context.Context, steps []store.Step) ([]store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertSteps")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failInsertSteps {
		return nil, types.NewStorageError("insert steps", errInjected)
	}
	out := make([]store.Step, len(steps))
	for i, st := range steps {
		st.ID = m.id("step")
		m.steps[st.ID] = st
		out[i] = st
	}
	return out, nil
}

func (m *memStore) InsertStep(ctx context.Context, st store.Step) (*store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("InsertStep")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failInsertStep {
		return nil, errInjected
	}
	for _, other := range m.steps {
		if other.FlowID == st.FlowID && other.StepNumber == st.StepNumber {
			return nil, fmt.Errorf("duplicate step number %d", st.StepNumber)
		}
	}
	st.ID = m.id("step")
	m.steps[st.ID] = st
	return &st, nil
}

func (m *memStore) GetStep(_ context.Context, id string) (*store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("GetStep")
	st, ok := m.steps[id]
	if !ok {
		return nil, types.NewNotFoundError("step", id)
	}
	return &st, nil
}

func (m *memStore) ListSteps(_ context.Context, flowID string) ([]store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ListSteps")
	if m.failListSteps[flowID] {
		return nil, errInjected
	}
	return m.sortedSteps(flowID), nil
}

func (m *memStore) sortedSteps(flowID string) []store.Step {
	var out []store.Step
	for _, st := range m.steps {
		if st.FlowID == flowID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepNumber < out[j].StepNumber })
	return out
}

func (m *memStore) StepPositions(_ context.Context, flowID string) ([]store.Position, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("StepPositions")
	var out []store.Position
	for _, st := range m.sortedSteps(flowID) {
		out = append(out, store.Position{ID: st.ID, StepNumber: st.StepNumber})
	}
	return out, nil
}

func (m *memStore) ApplyRenumbering(ctx context.Context, flowID string, moves []store.Renumbering) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("ApplyRenumbering")
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.failRenumber {
		return errInjected
	}
	if m.failRevert && m.renumbers > 0 {
		return errCleanup
	}
	m.renumbers++
	for _, mv := range moves {
		st, ok := m.steps[mv.ID]
		if !ok || st.FlowID != flowID || st.StepNumber != mv.From {
			return fmt.Errorf("stale move %+v", mv)
		}
		for _, other := range m.steps {
			if other.FlowID == flowID && other.StepNumber == mv.To {
				return fmt.Errorf("move %+v collides with %s", mv, other.ID)
			}
		}
		st.StepNumber = mv.To
		m.steps[mv.ID] = st
	}
	return nil
}

func (m *memStore) UpdateStepContent(ctx context.Context, id string, c store.StepContent) (*store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("UpdateStepContent")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if m.failUpdate {
		return nil, errInjected
	}
	if m.failRestore && m.updates > 0 {
		return nil, errCleanup
	}
	m.updates++
	st, ok := m.steps[id]
	if !ok {
		return nil, types.NewNotFoundError("step", id)
	}
	st.Title, st.TimeEstimate, st.Description, st.CompletionCue = c.Title, c.TimeEstimate, c.Description, c.CompletionCue
	m.steps[id] = st
	return &st, nil
}

func (m *memStore) SetStepCompleted(_ context.Context, id string, completed bool) (*store.Step, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.record("SetStepCompleted")
	st, ok := m.steps[id]
	if !ok {
		return nil, types.NewNotFoundError("step", id)
	}
	st.IsCompleted = completed
	m.steps[id] = st
	return &st, nil
}

// seed stores a flow with steps titled after their numbers.
func (m *memStore) seed(owner string, n int) (store.Flow, []store.Step) {
	f, _ := m.CreateFlow(context.Background(), owner, "Seeded")
	var steps []store.Step
	for i := 1; i <= n; i++ {
		steps = append(steps, store.Step{
			FlowID:       f.ID,
			StepNumber:   i,
			Title:        fmt.Sprintf("Step %d", i),
			TimeEstimate: "5 min",
		})
	}
	out, _ := m.InsertSteps(context.Background(), steps)
	m.calls = nil
	return *f, out
}

// fakeGenerator returns canned results and records what it was asked.
type fakeGenerator struct {
	flow   *parser.ParsedFlow
	halves [2]parser.ParsedStep
	err    error
	chunks []string

	tasks []string
	split []store.Step
}

func (g *fakeGenerator) Breakdown(_ context.Context, task string, onProgress types.ProgressFunc) (*parser.ParsedFlow, error) {
	g.tasks = append(g.tasks, task)
	for _, c := range g.chunks {
		onProgress.Notify(c)
	}
	if g.err != nil {
		return nil, g.err
	}
	return g.flow, nil
}

func (g *fakeGenerator) Split(_ context.Context, st store.Step, onProgress types.ProgressFunc) ([2]parser.ParsedStep, error) {
	g.split = append(g.split, st)
	for _, c := range g.chunks {
		onProgress.Notify(c)
	}
	if g.err != nil {
		return [2]parser.ParsedStep{}, g.err
	}
	return g.halves, nil
}

func quietLogger() *observability.Logger {
	return observability.NewLogger().WithOutput(io.Discard).WithLLMLogPath("")
}
