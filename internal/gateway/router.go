package gateway

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/observability"
	"github.com/rahul/glide/internal/types"
)

// Chatter answers free-form messages.
type Chatter interface {
	Reply(ctx context.Context, chatID string, input string) (string, error)
}

// ReminderSetter stores per-chat reminder schedules.
type ReminderSetter interface {
	SetReminder(ctx context.Context, chatID string, interval time.Duration) error
	ClearReminder(ctx context.Context, chatID string) error
}

const helpText = `I turn overwhelming tasks into small steps.

/new TASK - break a task down into a flow
/flows - list your flows
/show [N] - show a flow (defaults to the current one)
/split STEP - split a step of the current flow in two
/done STEP - tick a step off
/undo STEP - mark a step as not done
/today - the next step of every flow
/rename TITLE - rename the current flow
/rm [N] - delete a flow
/remind MINUTES | off - get your next steps regularly

Anything else is a chat with me.`

// Router turns chat text into flow operations. It is shared by every
// gateway; replies are rendered with the caller's Formatter.
type Router struct {
	Flows     *flow.Coordinator
	Companion Chatter
	Reminders ReminderSetter
	Logger    *observability.Logger

	mu      sync.Mutex
	current map[string]string
	locks   map[string]*sync.Mutex
}

func NewRouter(flows *flow.Coordinator, companion Chatter, reminders ReminderSetter, logger *observability.Logger) *Router {
	return &Router{
		Flows:     flows,
		Companion: companion,
		Reminders: reminders,
		Logger:    logger,
		current:   make(map[string]string),
		locks:     make(map[string]*sync.Mutex),
	}
}

// Handle processes one message and returns the reply. Coordinator progress
// lines are passed to progress; raw streamed chunks are not. Messages of
// one chat are handled one at a time.
func (r *Router) Handle(ctx context.Context, chatID, text string, f Formatter, progress types.ProgressFunc) string {
	lock := r.chatLock(chatID)
	lock.Lock()
	defer lock.Unlock()

	status := func(msg string) {
		if flow.IsStatusMessage(msg) {
			progress.Notify(msg)
		}
	}

	cmd, arg := parseCommand(text)
	var reply string
	var err error

	switch cmd {
	case "start", "help":
		reply = f.Text(helpText)
	case "new":
		reply, err = r.newFlow(ctx, chatID, arg, f, status)
	case "flows":
		reply, err = r.listFlows(ctx, chatID, f)
	case "show":
		reply, err = r.showFlow(ctx, chatID, arg, f)
	case "split":
		reply, err = r.splitStep(ctx, chatID, arg, f, status)
	case "done", "undo":
		reply, err = r.toggleStep(ctx, chatID, arg, cmd == "done", f)
	case "today":
		var next []flow.NextStep
		next, err = r.Flows.TodaysPath(ctx, chatID)
		reply = f.TodaysPath(next)
	case "rename":
		reply, err = r.rename(ctx, chatID, arg, f)
	case "rm":
		reply, err = r.remove(ctx, chatID, arg, f)
	case "remind":
		reply, err = r.remind(ctx, chatID, arg)
	case "":
		reply, err = r.chat(ctx, chatID, text, f)
	default:
		reply = fmt.Sprintf("Unknown command /%s. Send /help to see what I can do.", f.Text(cmd))
	}

	if err != nil {
		r.Logger.LogError(chatID, cmd, err)
		return f.Text(types.UserMessage(err))
	}
	return reply
}

// parseCommand splits "/cmd@bot args" into "cmd" and "args". Plain text
// yields an empty command.
func parseCommand(text string) (cmd, arg string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	head, _, _ = strings.Cut(head, "@")
	return strings.ToLower(head), strings.TrimSpace(rest)
}

func (r *Router) chatLock(chatID string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.locks[chatID]
	if !ok {
		l = &sync.Mutex{}
		r.locks[chatID] = l
	}
	return l
}

func (r *Router) setCurrent(chatID, flowID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if flowID == "" {
		delete(r.current, chatID)
		return
	}
	r.current[chatID] = flowID
}

func (r *Router) currentFlow(chatID string) string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current[chatID]
}

// resolve finds the flow named by ref, or the chat's current flow when ref
// is empty.
func (r *Router) resolve(ctx context.Context, chatID, ref string) (string, error) {
	if ref == "" {
		if id := r.currentFlow(chatID); id != "" {
			return id, nil
		}
		return "", types.NewError(types.ErrInvalidInput, "Pick a flow first: send /flows and then /show 1.")
	}
	fl, err := r.Flows.ResolveFlow(ctx, chatID, ref)
	if err != nil {
		return "", err
	}
	return fl.ID, nil
}

func (r *Router) render(ctx context.Context, flowID string, f Formatter) (string, error) {
	fw, err := r.Flows.FlowWithSteps(ctx, flowID)
	if err != nil {
		return "", err
	}
	return f.Flow(fw, flow.ComputeStats(fw.Steps)), nil
}

func (r *Router) newFlow(ctx context.Context, chatID, task string, f Formatter, progress types.ProgressFunc) (string, error) {
	fl, err := r.Flows.CreateFlow(ctx, chatID, task, progress)
	if err != nil {
		return "", err
	}
	r.setCurrent(chatID, fl.ID)
	return r.render(ctx, fl.ID, f)
}

func (r *Router) listFlows(ctx context.Context, chatID string, f Formatter) (string, error) {
	flows, err := r.Flows.Flows(ctx, chatID)
	if err != nil {
		return "", err
	}
	stats := make(map[string]flow.Stats, len(flows))
	for _, fl := range flows {
		if s, err := r.Flows.Stats(ctx, fl.ID); err == nil {
			stats[fl.ID] = s
		}
	}
	return f.FlowList(flows, stats), nil
}

func (r *Router) showFlow(ctx context.Context, chatID, ref string, f Formatter) (string, error) {
	id, err := r.resolve(ctx, chatID, ref)
	if err != nil {
		return "", err
	}
	r.setCurrent(chatID, id)
	return r.render(ctx, id, f)
}

func stepNumber(arg string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil || n < 1 {
		return 0, types.NewError(types.ErrInvalidInput, "Tell me the step number, e.g. /split 2.")
	}
	return n, nil
}

func (r *Router) splitStep(ctx context.Context, chatID, arg string, f Formatter, progress types.ProgressFunc) (string, error) {
	n, err := stepNumber(arg)
	if err != nil {
		return "", err
	}
	id, err := r.resolve(ctx, chatID, "")
	if err != nil {
		return "", err
	}
	st, err := r.Flows.StepAt(ctx, id, n)
	if err != nil {
		return "", err
	}
	if _, err := r.Flows.SplitStep(ctx, st.ID, progress); err != nil {
		return "", err
	}
	return r.render(ctx, id, f)
}

func (r *Router) toggleStep(ctx context.Context, chatID, arg string, done bool, f Formatter) (string, error) {
	n, err := stepNumber(arg)
	if err != nil {
		return "", err
	}
	id, err := r.resolve(ctx, chatID, "")
	if err != nil {
		return "", err
	}
	st, err := r.Flows.StepAt(ctx, id, n)
	if err != nil {
		return "", err
	}
	if _, err := r.Flows.ToggleStep(ctx, st.ID, done); err != nil {
		return "", err
	}
	stats, err := r.Flows.Stats(ctx, id)
	if err != nil {
		return "", err
	}

	if done && stats.TotalSteps > 0 && stats.CompletedSteps == stats.TotalSteps {
		return "🎉 " + f.Text("Flow complete! Every step is done."), nil
	}
	verb := "✅ Step %d done."
	if !done {
		verb = "↩️ Step %d reopened."
	}
	return f.Text(fmt.Sprintf(verb+" %s", n, progressLine(stats))), nil
}

func (r *Router) rename(ctx context.Context, chatID, title string, f Formatter) (string, error) {
	id, err := r.resolve(ctx, chatID, "")
	if err != nil {
		return "", err
	}
	fl, err := r.Flows.RenameFlow(ctx, id, title)
	if err != nil {
		return "", err
	}
	return f.Text("Renamed to " + fl.Title), nil
}

func (r *Router) remove(ctx context.Context, chatID, ref string, f Formatter) (string, error) {
	id, err := r.resolve(ctx, chatID, ref)
	if err != nil {
		return "", err
	}
	if err := r.Flows.DeleteFlow(ctx, id); err != nil {
		return "", err
	}
	if r.currentFlow(chatID) == id {
		r.setCurrent(chatID, "")
	}
	return f.Text("Flow deleted."), nil
}

func (r *Router) remind(ctx context.Context, chatID, arg string) (string, error) {
	if r.Reminders == nil {
		return "Reminders are not enabled.", nil
	}
	if strings.EqualFold(arg, "off") {
		if err := r.Reminders.ClearReminder(ctx, chatID); err != nil {
			return "", err
		}
		return "Reminders are off.", nil
	}
	minutes, err := strconv.Atoi(arg)
	if err != nil || minutes < 1 {
		return "", types.NewError(types.ErrInvalidInput, "Use /remind 30 or /remind off.")
	}
	if minutes > types.MaxReminderMinutes {
		return "", types.NewError(types.ErrInvalidInput,
			fmt.Sprintf("Reminders can be at most %d minutes (one week) apart.", types.MaxReminderMinutes))
	}
	if err := r.Reminders.SetReminder(ctx, chatID, time.Duration(minutes)*time.Minute); err != nil {
		return "", err
	}
	return fmt.Sprintf("⏰ I'll send your next steps every %d minutes.", minutes), nil
}

func (r *Router) chat(ctx context.Context, chatID, text string, f Formatter) (string, error) {
	if r.Companion == nil || text == "" {
		return f.Text(helpText), nil
	}
	// The companion's fallback text is user-safe; Reply already logged the error.
	reply, _ := r.Companion.Reply(ctx, chatID, text)
	return f.Text(reply), nil
}
