package observability

import (
	"sync"
	"time"
)

type Phase string

const (
	PhaseIdle  Phase = "IDLE"
	PhaseChain Phase = "CHAIN"
	PhaseBatch Phase = "BATCH"
)

// Status is the process-wide view of what chainbench is working on.
type Status struct {
	mu            sync.RWMutex
	Phase         Phase
	ActiveTask    string
	Processed     int
	LastHeartbeat time.Time
}

var globalStatus = &Status{
	Phase:         PhaseIdle,
	LastHeartbeat: time.Now(),
}

// SetStatus records the current phase and task and resets the processed count.
func SetStatus(phase Phase, task string) {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Phase = phase
	globalStatus.ActiveTask = task
	globalStatus.Processed = 0
	globalStatus.LastHeartbeat = time.Now()
}

// GetStatus returns a snapshot of the global status.
func GetStatus() (Phase, string, int, time.Time) {
	globalStatus.mu.RLock()
	defer globalStatus.mu.RUnlock()
	return globalStatus.Phase, globalStatus.ActiveTask, globalStatus.Processed, globalStatus.LastHeartbeat
}

// Heartbeat counts one finished unit of work.
func Heartbeat() {
	globalStatus.mu.Lock()
	defer globalStatus.mu.Unlock()
	globalStatus.Processed++
	globalStatus.LastHeartbeat = time.Now()
}
