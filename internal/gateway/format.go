package gateway

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/rahul/glide/internal/flow"
	"github.com/rahul/glide/internal/store"
)

// Formatter renders flows and replies for one chat markup.
type Formatter interface {
	// Text escapes free text, such as model output, for the markup.
	Text(s string) string
	Flow(fw *store.FlowWithSteps, stats flow.Stats) string
	FlowList(flows []store.Flow, stats map[string]flow.Stats) string
	TodaysPath(next []flow.NextStep) string
}

// TextFormatter renders with pluggable escaping and emphasis.
type TextFormatter struct {
	Escape func(string) string
	Bold   func(string) string
	Italic func(string) string
}

var strictPolicy = bluemonday.StrictPolicy()

// HTMLFormatter targets Telegram's HTML parse mode.
func HTMLFormatter() TextFormatter {
	return TextFormatter{
		Escape: strictPolicy.Sanitize,
		Bold:   func(s string) string { return "<b>" + s + "</b>" },
		Italic: func(s string) string { return "<i>" + s + "</i>" },
	}
}

var markdownEscaper = strings.NewReplacer(
	`\`, `\\`, `*`, `\*`, `_`, `\_`, "`", "\\`", `~`, `\~`, `|`, `\|`, `>`, `\>`,
)

// MarkdownFormatter targets Discord markdown.
func MarkdownFormatter() TextFormatter {
	return TextFormatter{
		Escape: markdownEscaper.Replace,
		Bold:   func(s string) string { return "**" + s + "**" },
		Italic: func(s string) string { return "_" + s + "_" },
	}
}

// PlainFormatter renders without markup, for the terminal and logs.
func PlainFormatter() TextFormatter {
	same := func(s string) string { return s }
	return TextFormatter{Escape: same, Bold: same, Italic: same}
}

func (f TextFormatter) Text(s string) string {
	return f.Escape(s)
}

func (f TextFormatter) Flow(fw *store.FlowWithSteps, stats flow.Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", f.Bold(f.Escape(fw.Flow.Title)))
	fmt.Fprintf(&b, "%s\n", f.Italic(progressLine(stats)))

	for _, st := range fw.Steps {
		box := "⬜"
		if st.IsCompleted {
			box = "✅"
		}
		fmt.Fprintf(&b, "\n%s %s (⏳ %s)\n", box,
			f.Bold(fmt.Sprintf("%d. %s", st.StepNumber, f.Escape(st.Title))), f.Escape(st.TimeEstimate))
		if st.IsCompleted {
			continue
		}
		for _, line := range strings.Split(st.Description, "\n") {
			if line = strings.TrimSpace(line); line != "" {
				fmt.Fprintf(&b, "   • %s\n", f.Escape(line))
			}
		}
		fmt.Fprintf(&b, "   🏁 %s\n", f.Italic(f.Escape(st.CompletionCue)))
	}
	return strings.TrimRight(b.String(), "\n")
}

func (f TextFormatter) FlowList(flows []store.Flow, stats map[string]flow.Stats) string {
	if len(flows) == 0 {
		return "No flows yet. Send /new followed by a task to create one."
	}
	var b strings.Builder
	b.WriteString(f.Bold("Your flows") + "\n")
	for i, fl := range flows {
		fmt.Fprintf(&b, "\n%d. %s", i+1, f.Escape(fl.Title))
		if s, ok := stats[fl.ID]; ok {
			fmt.Fprintf(&b, " (%d%%)", s.CompletionPercentage)
		}
	}
	return b.String()
}

func (f TextFormatter) TodaysPath(next []flow.NextStep) string {
	if len(next) == 0 {
		return "🎉 Nothing left to do. Every flow is complete!"
	}
	var b strings.Builder
	b.WriteString(f.Bold("Today's Path") + "\n")
	for _, n := range next {
		fmt.Fprintf(&b, "\n%s\n   %s (⏳ %s)\n", f.Bold(f.Escape(n.FlowTitle)),
			f.Escape(fmt.Sprintf("Step %d: %s", n.Step.StepNumber, n.Step.Title)), f.Escape(n.Step.TimeEstimate))
	}
	return strings.TrimRight(b.String(), "\n")
}

func progressLine(s flow.Stats) string {
	return fmt.Sprintf("%d of %d steps done (%d%%)", s.CompletedSteps, s.TotalSteps, s.CompletionPercentage)
}

// chunk splits text into pieces of at most limit bytes, preferring line
// breaks, so long flows fit the transport's message size.
func chunk(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}
	var out []string
	for len(text) > limit {
		cut := strings.LastIndex(text[:limit], "\n")
		if cut <= 0 {
			cut = limit
			// Do not split a multi-byte rune.
			for cut > 0 && !utf8.RuneStart(text[cut]) {
				cut--
			}
		}
		out = append(out, text[:cut])
		text = strings.TrimLeft(text[cut:], "\n")
	}
	if text != "" {
		out = append(out, text)
	}
	return out
}

