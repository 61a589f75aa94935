// Package protocol defines the wire format shared by every participant in
// the federation: the anonymized envelope and the bus subjects it travels on.
package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/hashicorp/go-version"
)

// Envelope wire format versions. An inbound envelope older than
// MinCompatibleVersion is rejected at decode time.
const (
	EnvelopeVersion      = "1.0"
	MinCompatibleVersion = "1.0"
)

var minVersion = version.Must(version.NewVersion(MinCompatibleVersion))

// Event types carried in the envelope "type" field.
const (
	EventTaskReceived   = "task_received"
	EventTaskCompleted  = "task_completed"
	EventHeartbeat      = "heartbeat"
	EventNodeJoined     = "node_joined"
	EventNodeLeft       = "node_left"
	EventInvoiceCreated = "invoice_created"
	EventNetworkStats   = "network_stats"
)

// Bus subjects. These are stable wire-level strings; changing one breaks
// every deployed node.
const (
	SubjectTasksReceived   = "truebit.tasks.received"
	SubjectTasksCompleted  = "truebit.tasks.completed"
	SubjectHeartbeat       = "truebit.heartbeat"
	SubjectInvoicesCreated = "truebit.invoices.created"
	SubjectNodesJoined     = "truebit.nodes.joined"
	SubjectNodesLeft       = "truebit.nodes.left"
	SubjectStatsAggregated = "truebit.stats.aggregated"

	// SubjectWildcard matches every federation subject. Used for
	// observability; messages also delivered to a specific-subject
	// subscription arrive on both, which is expected.
	SubjectWildcard = "truebit.>"
)

// Envelope is the only payload that ever crosses the bus. The data map
// contains exclusively hashed identifiers and bucketed metric labels;
// consumers must treat its values as opaque, not guaranteed-numeric.
type Envelope struct {
	Version   string         `json:"version"`
	Type      string         `json:"type"`
	NodeID    string         `json:"nodeId"`
	Timestamp string         `json:"timestamp"`
	Data      map[string]any `json:"data"`
}

// NewEnvelope creates an envelope with the current wire version.
func NewEnvelope(eventType, nodeID, timestamp string, data map[string]any) *Envelope {
	if data == nil {
		data = make(map[string]any)
	}
	return &Envelope{
		Version:   EnvelopeVersion,
		Type:      eventType,
		NodeID:    nodeID,
		Timestamp: timestamp,
		Data:      data,
	}
}

// Encode serializes the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodeEnvelope deserializes an envelope from JSON and checks its wire
// version for compatibility.
func DecodeEnvelope(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("decoding envelope: %w", err)
	}
	if err := CompatibleVersion(env.Version); err != nil {
		return nil, err
	}
	return &env, nil
}

// CompatibleVersion reports whether v can be processed by this build.
// Newer minor versions are accepted; consumers ignore data fields they do
// not know.
func CompatibleVersion(v string) error {
	parsed, err := version.NewVersion(v)
	if err != nil {
		return fmt.Errorf("invalid envelope version %q: %w", v, err)
	}
	if parsed.LessThan(minVersion) {
		return fmt.Errorf("envelope version %s predates minimum %s", v, MinCompatibleVersion)
	}
	return nil
}

// SubjectFor returns the bus subject an event type is published on.
func SubjectFor(eventType string) (string, error) {
	switch eventType {
	case EventTaskReceived:
		return SubjectTasksReceived, nil
	case EventTaskCompleted:
		return SubjectTasksCompleted, nil
	case EventHeartbeat:
		return SubjectHeartbeat, nil
	case EventNodeJoined:
		return SubjectNodesJoined, nil
	case EventNodeLeft:
		return SubjectNodesLeft, nil
	case EventInvoiceCreated:
		return SubjectInvoicesCreated, nil
	case EventNetworkStats:
		return SubjectStatsAggregated, nil
	default:
		return "", fmt.Errorf("unknown event type %q", eventType)
	}
}
