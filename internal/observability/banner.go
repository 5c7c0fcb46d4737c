package observability

import (
	"fmt"
	"os"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"
)

var startTime = time.Now()

// The dashboard owns the top rows; logs scroll below them.
const (
	titleRow     = 1
	statusRow    = 3
	dashboardEnd = 4
)

// Health of the serve loop, judged from the last heartbeat.
const (
	healthOK      = "healthy"
	healthLagging = "lagging"
	healthOffline = "offline"
)

var (
	titleColor   = color.New(color.FgHiCyan, color.Bold)
	faintColor   = color.New(color.Faint)
	healthColors = map[string]*color.Color{
		healthOK:      color.New(color.FgHiCyan),
		healthLagging: color.New(color.FgMagenta),
		healthOffline: color.New(color.FgHiMagenta, color.Bold),
	}
)

// termMu serializes every terminal write so a log line never lands
// between the cursor save and restore of PrintLiveStatus.
var termMu sync.Mutex

func termWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 80
	}
	return w
}

func clamp(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	if n <= 1 {
		return "…"
	}
	r := []rune(s)
	return string(r[:n-1]) + "…"
}

type termWriter struct{}

func (termWriter) Write(p []byte) (int, error) {
	termMu.Lock()
	defer termMu.Unlock()
	return os.Stderr.Write(p)
}

// NewTermWriter returns a log writer that never interleaves with the
// dashboard redraw.
func NewTermWriter() *termWriter {
	return &termWriter{}
}

// PrintBanner clears the screen and draws the title and rule.
func PrintBanner() {
	fmt.Print("\033[2J\033[H")
	fmt.Printf("\033[%d;1H %s  %s\n", titleRow,
		titleColor.Sprint("glide"), faintColor.Sprint("one step at a time"))
	rule := strings.Repeat("─", clamp(termWidth(), 20, 160))
	fmt.Println(faintColor.Sprint(rule))
}

// InitializeTerminal confines scrolling output to the rows below the
// dashboard.
func InitializeTerminal() {
	fmt.Printf("\033[%d;r", dashboardEnd+1)
	fmt.Printf("\033[%d;1H", dashboardEnd+1)
}

func CleanupTerminal() {
	fmt.Print("\033[r\033[2J\033[H")
}

func health(lastHeartbeat, now time.Time) string {
	switch delta := now.Sub(lastHeartbeat); {
	case delta < 40*time.Second:
		return healthOK
	case delta < 90*time.Second:
		return healthLagging
	default:
		return healthOffline
	}
}

// activity describes what the coordinator is doing, e.g.
// `splitting "Pack books" for 12s`.
func activity(s Snapshot, now time.Time) string {
	var verb string
	switch s.Role {
	case RoleBreakdown:
		verb = "breaking down"
	case RoleSplit:
		verb = "splitting"
	case RoleChat:
		verb = "chatting about"
	default:
		return "idle"
	}
	return fmt.Sprintf("%s %q for %s", verb, truncate(s.Task, 32), now.Sub(s.RoleSince).Round(time.Second))
}

// statusLine renders the dashboard status row without colour.
func statusLine(s Snapshot, now time.Time) string {
	return fmt.Sprintf("%s · %s · %d %s created · %d %s split · up %s",
		health(s.LastHeartbeat, now),
		activity(s, now),
		s.Flows, plural(s.Flows, "flow", "flows"),
		s.Splits, plural(s.Splits, "step", "steps"),
		now.Sub(startTime).Round(time.Second),
	)
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

// PrintLiveStatus redraws the status row in place.
func PrintLiveStatus() {
	now := time.Now()
	snap := CurrentSnapshot()
	line := truncate(statusLine(snap, now), clamp(termWidth()-2, 10, 400))
	line = healthColors[health(snap.LastHeartbeat, now)].Sprint(line)

	out := fmt.Sprintf("\033[s\033[%d;1H\033[K %s\033[u", statusRow, line)

	termMu.Lock()
	fmt.Print(out)
	termMu.Unlock()
}
