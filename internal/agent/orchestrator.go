package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/parser"
	"github.com/rahul/glide/internal/store"
	"github.com/rahul/glide/internal/types"
)

// Orchestrator turns a task into a parsed flow and a step into two halves
// using one model call each.
type Orchestrator struct {
	Model     llms.Model
	ModelName string
	Prompts   *PromptManager
	Logger    *observability.Logger
	// Streaming makes Breakdown and Split stream raw chunks to onProgress.
	Streaming bool
	// Timeout bounds a single model call; zero means no limit beyond ctx.
	Timeout time.Duration
}

func NewOrchestrator(model llms.Model, prompts *PromptManager, logger *observability.Logger) *Orchestrator {
	return &Orchestrator{
		Model:   model,
		Prompts: prompts,
		Logger:  logger,
	}
}

// Breakdown asks the model for a flow and parses it. Streaming follows the
// orchestrator's configuration.
func (o *Orchestrator) Breakdown(ctx context.Context, task string, onProgress types.ProgressFunc) (*parser.ParsedFlow, error) {
	if o.Streaming {
		return o.BreakdownStream(ctx, task, onProgress)
	}
	return o.breakdown(ctx, task, nil)
}

// BreakdownStream forwards every raw chunk to onProgress and parses the
// accumulated text once the stream has finished.
func (o *Orchestrator) BreakdownStream(ctx context.Context, task string, onProgress types.ProgressFunc) (*parser.ParsedFlow, error) {
	if onProgress == nil {
		onProgress = func(string) {}
	}
	return o.breakdown(ctx, task, onProgress)
}

func (o *Orchestrator) breakdown(ctx context.Context, task string, stream types.ProgressFunc) (*parser.ParsedFlow, error) {
	system, err := o.Prompts.GetBreakdownPrompt()
	if err != nil {
		return nil, o.fail("breakdown", types.MsgBreakdownFailed, err)
	}

	text, err := o.generate(ctx, "breakdown", system, fmt.Sprintf("%q", task), stream)
	if err != nil {
		return nil, o.fail("breakdown", types.MsgBreakdownFailed, err)
	}

	parsed, err := parser.Parse(text)
	if err != nil {
		return nil, o.fail("breakdown", types.MsgBreakdownFailed, err)
	}
	return parsed, nil
}

// Split asks the model to divide st into two consecutive steps.
func (o *Orchestrator) Split(ctx context.Context, st store.Step, onProgress types.ProgressFunc) ([2]parser.ParsedStep, error) {
	var none [2]parser.ParsedStep

	system, err := o.Prompts.GetSplitPrompt()
	if err != nil {
		return none, o.fail("split", types.MsgSplitFailed, err)
	}

	var stream types.ProgressFunc
	if o.Streaming {
		stream = onProgress
		if stream == nil {
			stream = func(string) {}
		}
	}

	text, err := o.generate(ctx, "split", system, splitInput(st), stream)
	if err != nil {
		return none, o.fail("split", types.MsgSplitFailed, err)
	}

	halves, err := parser.ParseSplit(text)
	if err != nil {
		return none, o.fail("split", types.MsgSplitFailed, err)
	}
	return halves, nil
}

func splitInput(st store.Step) string {
	return fmt.Sprintf("Step to split:\nTitle: %s\nDescription: %s\nTime estimate: %s",
		st.Title, st.Description, st.TimeEstimate)
}

// generate runs one system+user exchange. When stream is non-nil every
// chunk is forwarded to it as it arrives.
func (o *Orchestrator) generate(ctx context.Context, kind, system, input string, stream types.ProgressFunc) (string, error) {
	if o.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.Timeout)
		defer cancel()
	}

	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, system),
		llms.TextParts(llms.ChatMessageTypeHuman, input),
	}

	var opts []llms.CallOption
	var buf strings.Builder
	if stream != nil {
		opts = append(opts, llms.WithStreamingFunc(func(_ context.Context, chunk []byte) error {
			buf.Write(chunk)
			stream.Notify(string(chunk))
			return nil
		}))
	}

	resp, err := o.Model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil {
		resp = &llms.ContentResponse{}
	}

	var text string
	if stream != nil && buf.Len() > 0 {
		text = buf.String()
	} else {
		if len(resp.Choices) == 0 {
			return "", errors.New("model returned no choices")
		}
		text = resp.Choices[0].Content
	}

	o.Logger.LogLLM("", kind, input, text, nil)
	if len(resp.Choices) > 0 {
		prompt, completion := tokenUsage(resp.Choices[0].GenerationInfo)
		if prompt+completion > 0 {
			o.Logger.LogCost("", prompt, completion, o.ModelName)
		}
	}
	return text, nil
}

// fail logs the full cause and returns the user-safe generation error.
func (o *Orchestrator) fail(op, message string, cause error) error {
	err := types.NewGenerationError(message, cause)
	o.Logger.LogError("", op, err)
	return err
}

// tokenUsage reads token counts from provider generation info; providers
// disagree on the key names.
func tokenUsage(info map[string]any) (prompt, completion int) {
	prompt = intField(info, "PromptTokens", "input_tokens")
	completion = intField(info, "CompletionTokens", "output_tokens")
	return prompt, completion
}

func intField(info map[string]any, keys ...string) int {
	for _, k := range keys {
		switch v := info[k].(type) {
		case int:
			return v
		case int32:
			return int(v)
		case int64:
			return int(v)
		case float64:
			return int(v)
		}
	}
	return 0
}
