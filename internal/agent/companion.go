package agent

import (
	"context"
	"fmt"
	"log"

	"github.com/tmc/langchaingo/llms"

	"github.com/rahul/glide/internal/governance"
	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/tools"
)

// CompanionFallback is sent when the companion cannot produce a reply.
const CompanionFallback = "I'm having trouble connecting right now. Please try again in a moment!"

const (
	companionHistory  = 6
	companionMaxSteps = 6
)

// HistoryStore persists companion chat turns.
type HistoryStore interface {
	AddMessage(ctx context.Context, chatID string, role string, content string) error
	GetHistory(ctx context.Context, chatID string, limit int) ([]llms.MessageContent, error)
}

// Companion is a ReAct chat agent that answers free-form messages and can
// look up the user's next steps or the web.
type Companion struct {
	Model    llms.Model
	Registry *tools.Registry
	History  HistoryStore
	Prompts  *PromptManager
	Policy   governance.PolicyEngine
	Logger   *observability.Logger
}

func NewCompanion(model llms.Model, registry *tools.Registry, history HistoryStore, prompts *PromptManager) *Companion {
	return &Companion{
		Model:    model,
		Registry: registry,
		History:  history,
		Prompts:  prompts,
	}
}

// Reply answers input in the context of chatID's recent conversation. On
// failure it returns CompanionFallback together with the error.
func (c *Companion) Reply(ctx context.Context, chatID string, input string) (string, error) {
	observability.SetStatus(observability.RoleChat, input)
	defer observability.SetStatus(observability.RoleIdle, "")

	reply, err := c.think(tools.WithChatID(ctx, chatID), chatID, input)
	if err != nil {
		c.Logger.LogError(chatID, "companion", err)
		return CompanionFallback, err
	}

	if err := c.History.AddMessage(ctx, chatID, "human", input); err != nil {
		log.Printf("Warning: failed to save companion history: %v", err)
	}
	if err := c.History.AddMessage(ctx, chatID, "ai", reply); err != nil {
		log.Printf("Warning: failed to save companion history: %v", err)
	}
	return reply, nil
}

func (c *Companion) think(ctx context.Context, chatID string, input string) (string, error) {
	systemPrompt, err := c.Prompts.GetCompanionPrompt()
	if err != nil {
		log.Printf("Warning: Failed to load companion prompt: %v", err)
	}

	var messages []llms.MessageContent
	if systemPrompt != "" {
		messages = append(messages, llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt))
	}

	history, err := c.History.GetHistory(ctx, chatID, companionHistory)
	if err != nil {
		log.Printf("Warning: failed to load companion history: %v", err)
	}
	messages = append(messages, history...)
	messages = append(messages, llms.TextParts(llms.ChatMessageTypeHuman, input))

	var opts []llms.CallOption
	if llmTools := c.llmTools(); len(llmTools) > 0 {
		opts = append(opts, llms.WithTools(llmTools))
	}

	for i := 0; i < companionMaxSteps; i++ {
		resp, err := c.Model.GenerateContent(ctx, messages, opts...)
		if err != nil {
			return "", err
		}
		if resp == nil || len(resp.Choices) == 0 {
			return "", fmt.Errorf("model returned no choices")
		}

		choice := resp.Choices[0]
		c.Logger.LogLLM(chatID, "companion", input, choice.Content, choice.ToolCalls)

		var assistantParts []llms.ContentPart
		if choice.Content != "" {
			assistantParts = append(assistantParts, llms.TextContent{Text: choice.Content})
		}
		for _, tc := range choice.ToolCalls {
			assistantParts = append(assistantParts, tc)
		}
		messages = append(messages, llms.MessageContent{
			Role:  llms.ChatMessageTypeAI,
			Parts: assistantParts,
		})

		if len(choice.ToolCalls) == 0 {
			if choice.Content == "" {
				return "", fmt.Errorf("model returned an empty reply")
			}
			return choice.Content, nil
		}

		for _, tc := range choice.ToolCalls {
			if tc.FunctionCall == nil {
				continue
			}
			result := c.runTool(ctx, chatID, tc.FunctionCall.Name, tc.FunctionCall.Arguments)
			messages = append(messages, llms.MessageContent{
				Role: llms.ChatMessageTypeTool,
				Parts: []llms.ContentPart{
					llms.ToolCallResponse{
						ToolCallID: tc.ID,
						Name:       tc.FunctionCall.Name,
						Content:    result,
					},
				},
			})
		}
	}

	return "", fmt.Errorf("no reply after %d reasoning steps", companionMaxSteps)
}

func (c *Companion) llmTools() []llms.Tool {
	if c.Registry == nil {
		return nil
	}
	var out []llms.Tool
	for _, name := range c.Registry.Names() {
		t := c.Registry.Get(name)
		out = append(out, llms.Tool{
			Type: "function",
			Function: &llms.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return out
}

// runTool executes one tool call and returns the observation for the model.
func (c *Companion) runTool(ctx context.Context, chatID, name, args string) string {
	var tool tools.Tool
	if c.Registry != nil {
		tool = c.Registry.Get(name)
	}
	if tool == nil {
		return fmt.Sprintf("Error: Tool %s not found", name)
	}

	if c.Policy != nil {
		res, err := c.Policy.Evaluate(ctx, governance.Request{Subject: name, Input: args, ChatID: chatID})
		if err != nil {
			return fmt.Sprintf("Error: policy check failed: %v", err)
		}
		if res.Effect == governance.EffectDeny {
			c.Logger.LogPolicyCheck(chatID, name, string(res.Effect), res.Reason)
			return fmt.Sprintf("Error: %s", res.Reason)
		}
	}

	c.Logger.LogToolCall(chatID, name, args)
	res, err := tool.Execute(ctx, args)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return res
}
