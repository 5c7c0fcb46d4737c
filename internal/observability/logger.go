package observability

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rahul/glide/internal/types"
)

// EventType defines the category of the log event.
type EventType string

const (
	EventTypeFlow        EventType = "flow"
	EventTypeSplit       EventType = "split"
	EventTypeRollback    EventType = "rollback"
	EventTypeError       EventType = "error"
	EventTypeToolCall    EventType = "tool_call"
	EventTypePolicyCheck EventType = "policy_check"
	EventTypeCost        EventType = "cost"
	EventTypeGateway     EventType = "gateway"
	EventTypeHeartbeat   EventType = "heartbeat"
	EventTypeLLM         EventType = "llm"
)

// Event represents a structured log entry.
type Event struct {
	Type      EventType `json:"type"`
	ChatID    string    `json:"chat_id,omitempty"`
	FlowID    string    `json:"flow_id,omitempty"`
	Data      any       `json:"data"`
	Timestamp time.Time `json:"timestamp"`
}

// Logger handles structured logging. A nil *Logger discards everything.
type Logger struct {
	mu         sync.Mutex
	out        io.Writer
	llmLogPath string
	maxSize    int64
}

func NewLogger() *Logger {
	return &Logger{
		out:        os.Stdout,
		llmLogPath: filepath.Join("logs", "llm.jsonl"),
		maxSize:    10 * 1024 * 1024, // 10MB
	}
}

// WithOutput redirects JSON events to w.
func (l *Logger) WithOutput(w io.Writer) *Logger {
	l.out = w
	return l
}

// WithLLMLogPath sets the transcript file; an empty path disables it.
func (l *Logger) WithLLMLogPath(path string) *Logger {
	l.llmLogPath = path
	return l
}

// Log emits a structured JSON event.
func (l *Logger) Log(evt Event) {
	if l == nil {
		return
	}
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	data, err := json.Marshal(evt)
	if err != nil {
		data = []byte(fmt.Sprintf(`{"error": "failed to marshal event: %v"}`, err))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	fmt.Fprintln(l.out, string(data))

	if evt.Type == EventTypeLLM && l.llmLogPath != "" {
		l.writeToFile(data)
	}
}

func (l *Logger) writeToFile(data []byte) {
	if err := os.MkdirAll(filepath.Dir(l.llmLogPath), 0755); err != nil {
		log.Printf("failed to create log directory: %v", err)
		return
	}

	// Check size before writing
	info, err := os.Stat(l.llmLogPath)
	if err == nil && info.Size() > l.maxSize {
		l.rotateLogs()
	}

	f, err := os.OpenFile(l.llmLogPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		log.Printf("failed to open log file: %v", err)
		return
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		log.Printf("failed to write to log file: %v", err)
	}
}

func (l *Logger) rotateLogs() {
	// Simple rotation: keep one .old file
	oldPath := l.llmLogPath + ".old"
	_ = os.Remove(oldPath)
	_ = os.Rename(l.llmLogPath, oldPath)
}

// Helper methods for common events

func (l *Logger) LogFlow(t EventType, chatID, flowID string, data map[string]any) {
	l.Log(Event{
		Type:   t,
		ChatID: chatID,
		FlowID: flowID,
		Data:   data,
	})
}

// LogRollback records a compensating write and its outcome.
func (l *Logger) LogRollback(chatID, flowID, action string, cause error) {
	data := map[string]string{"action": action}
	if cause != nil {
		data["cause"] = types.Detail(cause)
	}
	l.Log(Event{
		Type:   EventTypeRollback,
		ChatID: chatID,
		FlowID: flowID,
		Data:   data,
	})
}

// LogError records the full detail of an error that users only see a
// generic message for.
func (l *Logger) LogError(chatID, op string, err error) {
	if err == nil {
		return
	}
	l.Log(Event{
		Type:   EventTypeError,
		ChatID: chatID,
		Data: map[string]string{
			"op":    op,
			"error": types.Detail(err),
		},
	})
}

func (l *Logger) LogToolCall(chatID, tool, args string) {
	l.Log(Event{
		Type:   EventTypeToolCall,
		ChatID: chatID,
		Data: map[string]string{
			"tool": tool,
			"args": args,
		},
	})
}

func (l *Logger) LogPolicyCheck(chatID, subject, effect, reason string) {
	l.Log(Event{
		Type:   EventTypePolicyCheck,
		ChatID: chatID,
		Data: map[string]string{
			"subject": subject,
			"effect":  effect,
			"reason":  reason,
		},
	})
}

func (l *Logger) LogCost(chatID string, promptTokens, completionTokens int, model string) {
	l.Log(Event{
		Type:   EventTypeCost,
		ChatID: chatID,
		Data: map[string]any{
			"prompt_tokens":     promptTokens,
			"completion_tokens": completionTokens,
			"total_tokens":      promptTokens + completionTokens,
			"model":             model,
		},
	})
}

func (l *Logger) LogGateway(gateway, chatID, text string) {
	l.Log(Event{
		Type:   EventTypeGateway,
		ChatID: chatID,
		Data: map[string]string{
			"gateway": gateway,
			"text":    text,
		},
	})
}

func (l *Logger) LogHeartbeat() {
	l.Log(Event{
		Type: EventTypeHeartbeat,
		Data: map[string]string{"status": "alive"},
	})
}

func (l *Logger) LogLLM(chatID, kind string, prompt any, response string, toolCalls any) {
	l.Log(Event{
		Type:   EventTypeLLM,
		ChatID: chatID,
		Data: map[string]any{
			"kind":       kind,
			"prompt":     prompt,
			"response":   response,
			"tool_calls": toolCalls,
		},
	})
}
