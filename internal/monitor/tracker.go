package monitor

import "sync"

// Tracker counts the node's workload for heartbeat reporting. Observers
// call TaskStarted/TaskFinished as they see tasks move through the local
// runtime; Snapshot feeds the periodic heartbeat.
type Tracker struct {
	mu        sync.Mutex
	active    int64
	total     int64
	version   string
	continent string
}

// NewTracker creates a tracker with static node metadata.
func NewTracker(version, continent string) *Tracker {
	return &Tracker{version: version, continent: continent}
}

// TaskStarted records a task entering execution.
func (t *Tracker) TaskStarted() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.active++
	t.total++
}

// TaskFinished records a task leaving execution.
func (t *Tracker) TaskFinished() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active > 0 {
		t.active--
	}
}

// Snapshot returns the current workload as a heartbeat record.
func (t *Tracker) Snapshot() Heartbeat {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Heartbeat{
		ActiveTasks: t.active,
		TotalTasks:  t.total,
		Version:     t.version,
		Continent:   t.continent,
	}
}
