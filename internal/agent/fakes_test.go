package agent

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/store"
)

// scriptedModel is an llms.Model that replays one response per call. When a
// streaming func is set it delivers the reply in chunks.
type scriptedModel struct {
	mu        sync.Mutex
	responses []*llms.ContentResponse
	chunks    [][]string
	err       error
	calls     [][]llms.MessageContent
	streamed  []bool
	toolCount []int
}

func textResponse(text string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: text}}}
}

func toolResponse(id, name, args string) *llms.ContentResponse {
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{
		ToolCalls: []llms.ToolCall{{
			ID:           id,
			Type:         "function",
			FunctionCall: &llms.FunctionCall{Name: name, Arguments: args},
		}},
	}}}
}

func (m *scriptedModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	opts := llms.CallOptions{}
	for _, o := range options {
		o(&opts)
	}

	i := len(m.calls)
	m.calls = append(m.calls, messages)
	m.streamed = append(m.streamed, opts.StreamingFunc != nil)
	m.toolCount = append(m.toolCount, len(opts.Tools))

	if m.err != nil {
		return nil, m.err
	}
	if i >= len(m.responses) {
		return nil, errors.New("script exhausted")
	}

	if opts.StreamingFunc != nil && i < len(m.chunks) {
		for _, c := range m.chunks[i] {
			if err := opts.StreamingFunc(ctx, []byte(c)); err != nil {
				return nil, err
			}
		}
	}
	return m.responses[i], nil
}

func (m *scriptedModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

// memHistory is an in-memory HistoryStore.
type memHistory struct {
	messages map[string][]llms.MessageContent
	limits   []int
}

func newMemHistory() *memHistory {
	return &memHistory{messages: map[string][]llms.MessageContent{}}
}

func (h *memHistory) AddMessage(_ context.Context, chatID, role, content string) error {
	t := llms.ChatMessageTypeHuman
	if role == "ai" {
		t = llms.ChatMessageTypeAI
	}
	h.messages[chatID] = append(h.messages[chatID], llms.TextParts(t, content))
	return nil
}

func (h *memHistory) GetHistory(_ context.Context, chatID string, limit int) ([]llms.MessageContent, error) {
	h.limits = append(h.limits, limit)
	all := h.messages[chatID]
	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return all, nil
}

type memReminders struct {
	due    []store.Reminder
	marked []int
	err    error
}

func (r *memReminders) DueReminders(context.Context) ([]store.Reminder, error) {
	return r.due, r.err
}

func (r *memReminders) MarkReminded(_ context.Context, id int) error {
	r.marked = append(r.marked, id)
	return nil
}

type staticPath map[string][]flow.NextStep

func (p staticPath) TodaysPath(_ context.Context, owner string) ([]flow.NextStep, error) {
	if owner == "broken" {
		return nil, errors.New("db down")
	}
	return p[owner], nil
}

type recordingMessenger struct {
	sent map[string]string
	err  error
}

func (m *recordingMessenger) Send(chatID, text string) error {
	if m.sent == nil {
		m.sent = map[string]string{}
	}
	m.sent[chatID] = text
	return m.err
}

func quietLogger() *observability.Logger {
	return observability.NewLogger().WithOutput(io.Discard).WithLLMLogPath("")
}

func textOf(m llms.MessageContent) string {
	for _, p := range m.Parts {
		if t, ok := p.(llms.TextContent); ok {
			return t.Text
		}
	}
	return ""
}
