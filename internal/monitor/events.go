// Package monitor holds the raw domain records produced by the node's local
// observers (container log tailer, invoice watcher). These records contain
// sensitive values and must pass through the anonymizer before leaving the
// process.
package monitor

// TaskEvent describes a task observed on the local node. ExecutionID and
// TaskID are raw identifiers; metric fields use -1 for "not observed".
type TaskEvent struct {
	ExecutionID   string
	TaskID        string
	Chain         string
	TaskType      string
	Status        string
	ElapsedMs     int64
	GasUsed       int64
	StepsComputed int64
	MemoryBytes   int64
	Cached        bool
}

// Task completion statuses.
const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

// Heartbeat is a periodic liveness report with coarse workload counts.
type Heartbeat struct {
	ActiveTasks int64
	TotalTasks  int64
	Version     string
	Continent   string
}

// Invoice describes a locally created invoice. Amount is in wei.
type Invoice struct {
	InvoiceID string
	Chain     string
	Amount    int64
}

// NodeEvent announces this node joining or leaving the federation.
type NodeEvent struct {
	Version   string
	Continent string
}

// Sink receives domain events from local observers. The log tailer and
// invoice persistence layers depend on this interface only.
type Sink interface {
	TaskReceived(ev TaskEvent)
	TaskCompleted(ev TaskEvent)
	InvoiceCreated(inv Invoice)
}
