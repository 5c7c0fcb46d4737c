// Package parser turns the semi-structured text returned by the breakdown
// model into a title and an ordered list of steps.
//
// The grammar ignores bold/italic markup so that prompt revisions which add
// or drop emphasis around labels keep parsing to the same values.
package parser

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/rahul/glide/internal/types"
)

const (
	DefaultTitle         = "Your Task Breakdown"
	DefaultCompletionCue = "Step completed"
	DefaultDescription   = "Complete this step"
)

// ParsedStep is one step as claimed by the model. StepNumber is copied from
// the text and is not guaranteed to be contiguous.
type ParsedStep struct {
	StepNumber    int    `json:"step_number" yaml:"step_number"`
	Title         string `json:"title" yaml:"title"`
	TimeEstimate  string `json:"time_estimate" yaml:"time_estimate"`
	Description   string `json:"description" yaml:"description"`
	CompletionCue string `json:"completion_cue" yaml:"completion_cue"`
}

// ParsedFlow is the transient result of parsing one model response.
type ParsedFlow struct {
	Title string       `json:"title" yaml:"title"`
	Steps []ParsedStep `json:"steps" yaml:"steps"`
}

var (
	titleRe = regexp.MustCompile(`(?im)^[ \t>#*_]*title[*_]*[ \t]*:[ \t]*(.+)$`)

	// Step <n>: <title> (⏳ <estimate>), with optional emphasis anywhere
	// around the label. Title and estimate stay on the header line.
	headerRe = regexp.MustCompile(
		`(?i)(?:#{1,6}[ \t]*)?[*_]*step[ \t]+(\d+)[ \t]*[*_]*[ \t]*:[ \t]*[*_]*[ \t]*(.+?)[ \t]*[*_]*[ \t]*\([ \t]*⏳\x{FE0F}?[ \t]*([^\n]+?)[ \t]*\)`)

	cueRe = regexp.MustCompile(`(?i)[*_]*completion[ \t]+cue[*_]*[ \t]*:[*_]*([^\n]*)`)

	// One leading bullet; a second bullet on the line is content.
	bulletRe = regexp.MustCompile(`^[*\-•](?:[ \t]+|$)`)
)

// trimMarkup strips whitespace and emphasis markers from both ends.
func trimMarkup(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '*' || r == '_'
	})
}

// header is one matched step header with its byte offsets in the source.
// A zero number marks a header that ends the previous body but is not a step.
type header struct {
	start, end   int
	number       int
	title        string
	timeEstimate string
}

// Parse extracts a ParsedFlow from raw model output. It fails with a
// PARSE_FAILED error when no step header is found.
func Parse(raw string) (*ParsedFlow, error) {
	steps := parseSteps(raw)
	if len(steps) == 0 {
		return nil, types.NewParseError("No steps found in response")
	}
	return &ParsedFlow{
		Title: parseTitle(raw),
		Steps: steps,
	}, nil
}

// ParseSplit extracts the two halves of a split step. Blocks after the
// second are ignored.
func ParseSplit(raw string) ([2]ParsedStep, error) {
	var out [2]ParsedStep
	steps := parseSteps(raw)
	switch len(steps) {
	case 0:
		return out, types.NewParseError("No steps found in split response")
	case 1:
		return out, types.NewParseError("Split response must contain two steps")
	}
	copy(out[:], steps[:2])
	return out, nil
}

func parseTitle(raw string) string {
	m := titleRe.FindStringSubmatch(raw)
	if m == nil {
		return DefaultTitle
	}
	title := trimMarkup(m[1])
	if title == "" {
		return DefaultTitle
	}
	return title
}

// parseSteps collects every header first, then slices each body out of the
// text between consecutive headers.
func parseSteps(raw string) []ParsedStep {
	headers := findHeaders(raw)
	if len(headers) == 0 {
		return nil
	}

	steps := make([]ParsedStep, 0, len(headers))
	for i, h := range headers {
		if h.number == 0 {
			continue
		}
		bodyEnd := len(raw)
		if i+1 < len(headers) {
			bodyEnd = headers[i+1].start
		}
		body := raw[h.end:bodyEnd]

		cue, description := splitBody(body)
		steps = append(steps, ParsedStep{
			StepNumber:    h.number,
			Title:         h.title,
			TimeEstimate:  h.timeEstimate,
			Description:   description,
			CompletionCue: cue,
		})
	}
	return steps
}

func findHeaders(raw string) []header {
	matches := headerRe.FindAllStringSubmatchIndex(raw, -1)
	headers := make([]header, 0, len(matches))
	for _, m := range matches {
		// "step" must start a word: "Footstep 1:" is body text.
		if prev, _ := utf8.DecodeLastRuneInString(raw[:m[0]]); m[0] > 0 && (unicode.IsLetter(prev) || unicode.IsDigit(prev)) {
			continue
		}
		n, err := strconv.Atoi(raw[m[2]:m[3]])
		if err != nil || n < 0 {
			n = 0
		}
		headers = append(headers, header{
			start:        m[0],
			end:          m[1],
			number:       n,
			title:        trimMarkup(raw[m[4]:m[5]]),
			timeEstimate: trimMarkup(raw[m[6]:m[7]]),
		})
	}
	return headers
}

// splitBody separates the completion cue from the description lines.
func splitBody(body string) (cue, description string) {
	cue = DefaultCompletionCue
	if loc := cueRe.FindStringSubmatchIndex(body); loc != nil {
		if c := trimMarkup(body[loc[2]:loc[3]]); c != "" {
			cue = c
		}
		body = body[:loc[0]] + body[loc[1]:]
	}

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(bulletRe.ReplaceAllString(line, ""))
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}

	description = strings.Join(lines, "\n")
	if description == "" {
		description = DefaultDescription
	}
	return cue, description
}
