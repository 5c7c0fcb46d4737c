package observability

import (
	"sync"
	"time"
)

type Role string

const (
	RoleIdle      Role = "IDLE"
	RoleBreakdown Role = "BREAKDOWN"
	RoleSplit     Role = "SPLIT"
	RoleChat      Role = "CHAT"
)

type SystemStatus struct {
	mu            sync.RWMutex
	CurrentRole   Role
	ActiveTask    string
	RoleSince     time.Time
	LastHeartbeat time.Time
	FlowsCreated  int
	StepsSplit    int
}

var globalStatus = &SystemStatus{
	CurrentRole:   RoleIdle,
	RoleSince:     time.Now(),
	LastHeartbeat: time.Now(),
}

// SetStatus updates the global system status.
func SetStatus(role Role, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	if globalStatus.CurrentRole != role {
		globalStatus.RoleSince = time.Now()
	}
	globalStatus.CurrentRole = role
	globalStatus.ActiveTask = task
}

// Snapshot is a point-in-time copy of the status shown on the dashboard.
type Snapshot struct {
	Role          Role
	Task          string
	RoleSince     time.Time
	LastHeartbeat time.Time
	Flows         int
	Splits        int
}

// CurrentSnapshot copies the global status.
func CurrentSnapshot() Snapshot {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return Snapshot{
		Role:          globalStatus.CurrentRole,
		Task:          globalStatus.ActiveTask,
		RoleSince:     globalStatus.RoleSince,
		LastHeartbeat: globalStatus.LastHeartbeat,
		Flows:         globalStatus.FlowsCreated,
		Splits:        globalStatus.StepsSplit,
	}
}

// CountFlow and CountSplit feed the dashboard counters.
func CountFlow() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.FlowsCreated++
}

func CountSplit() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.StepsSplit++
}

// Heartbeat updates the last heartbeat time.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.LastHeartbeat = time.Now()
}
