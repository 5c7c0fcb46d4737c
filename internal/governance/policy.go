package governance

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rahul/glide/internal/types"
)

// Effect defines the result of a policy evaluation.
type Effect string

const (
	EffectAllow Effect = "allow"
	EffectDeny  Effect = "deny"
)

// SubjectTask is the subject used when vetting a task description before
// it is broken down. Companion tool calls use the tool name as subject.
const SubjectTask = "task"

// Request contains the context of a task or tool call to be evaluated.
type Request struct {
	Subject string
	Input   string
	ChatID  string
}

// Result contains the outcome of a policy evaluation.
type Result struct {
	Effect Effect
	Reason string
}

// PolicyEngine evaluates tasks and tool calls against a set of rules.
type PolicyEngine interface {
	Evaluate(ctx context.Context, req Request) (Result, error)
}

// DefaultPolicyEngine denies whole subjects or inputs matching a pattern.
type DefaultPolicyEngine struct {
	DeniedSubjects map[string]bool
	DeniedRegex    []*regexp.Regexp
}

func NewDefaultPolicyEngine() *DefaultPolicyEngine {
	return &DefaultPolicyEngine{
		DeniedSubjects: make(map[string]bool),
		DeniedRegex:    make([]*regexp.Regexp, 0),
	}
}

// NewPolicyEngine builds an engine from configured deny patterns. Patterns
// match case-insensitively.
func NewPolicyEngine(patterns []string) (*DefaultPolicyEngine, error) {
	e := NewDefaultPolicyEngine()
	for _, p := range patterns {
		if err := e.DenyInput("(?i)" + p); err != nil {
			return nil, fmt.Errorf("invalid deny pattern %q: %w", p, err)
		}
	}
	return e, nil
}

func (e *DefaultPolicyEngine) DenySubject(name string) {
	e.DeniedSubjects[name] = true
}

func (e *DefaultPolicyEngine) DenyInput(pattern string) error {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return err
	}
	e.DeniedRegex = append(e.DeniedRegex, re)
	return nil
}

func (e *DefaultPolicyEngine) Evaluate(ctx context.Context, req Request) (Result, error) {
	if e.DeniedSubjects[req.Subject] {
		return Result{
			Effect: EffectDeny,
			Reason: fmt.Sprintf("'%s' is restricted by system policy", req.Subject),
		}, nil
	}

	for _, re := range e.DeniedRegex {
		if re.MatchString(req.Input) {
			return Result{
				Effect: EffectDeny,
				Reason: fmt.Sprintf("Input matches restricted pattern: %s", re.String()),
			}, nil
		}
	}

	return Result{
		Effect: EffectAllow,
		Reason: "Approved by default policy",
	}, nil
}

// CheckTask validates a task description before generation. Blank tasks are
// INVALID_INPUT; tasks the engine denies are POLICY_DENIED.
func CheckTask(ctx context.Context, engine PolicyEngine, chatID, task string) (Result, error) {
	if strings.TrimSpace(task) == "" {
		return Result{Effect: EffectDeny, Reason: "empty task"},
			types.NewError(types.ErrInvalidInput, "Tell me what you'd like to get done.")
	}
	if engine == nil {
		return Result{Effect: EffectAllow, Reason: "no policy configured"}, nil
	}

	res, err := engine.Evaluate(ctx, Request{Subject: SubjectTask, Input: task, ChatID: chatID})
	if err != nil {
		return res, types.WrapError(types.ErrPolicyDenied, "I couldn't check that task. Please try again.", err)
	}
	if res.Effect == EffectDeny {
		return res, types.WrapError(types.ErrPolicyDenied, "I can't help break down that task.", fmt.Errorf("%s", res.Reason))
	}
	return res, nil
}
