// Package privacy transforms raw domain records into envelopes that are safe
// to publish: identifiers are salted-hashed, timestamps are coarsened, and
// every continuous metric is reduced to a bucket label. It also provides the
// denylist validator that every outbound envelope must pass, regardless of
// which code path constructed it.
package privacy

import (
	"crypto/sha256"
	"encoding/hex"
	"time"

	"truewatch/internal/identity"
	"truewatch/internal/monitor"
	"truewatch/internal/protocol"
)

// TimestampGranularity is the boundary envelope timestamps are rounded down
// to. Coarse timestamps defeat timing-correlation fingerprinting while
// keeping rough ordering.
const TimestampGranularity = 5 * time.Minute

// Anonymizer builds privacy-safe envelopes for one node. All methods are
// pure apart from reading the clock.
type Anonymizer struct {
	cred *identity.Credential
	now  func() time.Time
}

// NewAnonymizer creates an anonymizer bound to the node's credential.
func NewAnonymizer(cred *identity.Credential) *Anonymizer {
	return &Anonymizer{cred: cred, now: time.Now}
}

// Hash returns hex(SHA-256(value ++ salt)). The per-node salt makes the
// same logical identifier hash differently on every node, so colluding
// observers cannot correlate it across the network. Empty input stays empty.
func (a *Anonymizer) Hash(value string) string {
	if value == "" {
		return ""
	}
	h := sha256.New()
	h.Write([]byte(value))
	h.Write(a.cred.Salt)
	return hex.EncodeToString(h.Sum(nil))
}

// RoundTimestamp rounds t down to the nearest 5-minute boundary with zero
// seconds, formatted as ISO-8601 UTC.
func RoundTimestamp(t time.Time) string {
	return t.UTC().Truncate(TimestampGranularity).Format(time.RFC3339)
}

// TaskReceived anonymizes a task arrival. The execution ID is dropped
// entirely; only the salted task ID hash survives.
func (a *Anonymizer) TaskReceived(ev monitor.TaskEvent) *protocol.Envelope {
	return a.envelope(protocol.EventTaskReceived, map[string]any{
		"taskIdHash": a.hashOrNil(ev.TaskID),
		"chain":      ev.Chain,
		"taskType":   ev.TaskType,
	})
}

// TaskCompleted anonymizes a task completion, bucketing every metric.
func (a *Anonymizer) TaskCompleted(ev monitor.TaskEvent) *protocol.Envelope {
	return a.envelope(protocol.EventTaskCompleted, map[string]any{
		"taskIdHash":    a.hashOrNil(ev.TaskID),
		"chain":         ev.Chain,
		"taskType":      ev.TaskType,
		"status":        ev.Status,
		"executionTime": ElapsedBucket(ev.ElapsedMs),
		"gasUsed":       MagnitudeBucket(ev.GasUsed),
		"stepsComputed": MagnitudeBucket(ev.StepsComputed),
		"memoryUsed":    MemoryBucket(ev.MemoryBytes),
		"cached":        ev.Cached,
	})
}

// Heartbeat anonymizes a liveness report. Workload counts are bucketed so
// a node's exact throughput cannot be tracked over time.
func (a *Anonymizer) Heartbeat(hb monitor.Heartbeat) *protocol.Envelope {
	return a.envelope(protocol.EventHeartbeat, map[string]any{
		"activeTasks": ActiveTasksBucket(hb.ActiveTasks),
		"totalTasks":  TotalTasksBucket(hb.TotalTasks),
		"version":     hb.Version,
		"continent":   hb.Continent,
	})
}

// InvoiceCreated anonymizes an invoice record.
func (a *Anonymizer) InvoiceCreated(inv monitor.Invoice) *protocol.Envelope {
	return a.envelope(protocol.EventInvoiceCreated, map[string]any{
		"invoiceIdHash": a.hashOrNil(inv.InvoiceID),
		"chain":         inv.Chain,
		"amount":        MagnitudeBucket(inv.Amount),
	})
}

// NodeJoined builds the join announcement.
func (a *Anonymizer) NodeJoined(ev monitor.NodeEvent) *protocol.Envelope {
	return a.envelope(protocol.EventNodeJoined, map[string]any{
		"version":   ev.Version,
		"continent": ev.Continent,
	})
}

// NodeLeft builds the leave announcement.
func (a *Anonymizer) NodeLeft(ev monitor.NodeEvent) *protocol.Envelope {
	return a.envelope(protocol.EventNodeLeft, map[string]any{
		"version":   ev.Version,
		"continent": ev.Continent,
	})
}

func (a *Anonymizer) envelope(eventType string, data map[string]any) *protocol.Envelope {
	return protocol.NewEnvelope(eventType, a.cred.NodeID, RoundTimestamp(a.now()), data)
}

func (a *Anonymizer) hashOrNil(value string) any {
	if value == "" {
		return nil
	}
	return a.Hash(value)
}
