package protocol

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelopeRoundTrip(t *testing.T) {
	env := NewEnvelope(EventTaskCompleted, "node-1", "2026-03-14T09:05:00Z", map[string]any{
		"taskIdHash": "abc",
		"cached":     true,
	})

	data, err := env.Encode()
	require.NoError(t, err)

	decoded, err := DecodeEnvelope(data)
	require.NoError(t, err)
	assert.Equal(t, EnvelopeVersion, decoded.Version)
	assert.Equal(t, EventTaskCompleted, decoded.Type)
	assert.Equal(t, "node-1", decoded.NodeID)
	assert.Equal(t, "abc", decoded.Data["taskIdHash"])
	assert.Equal(t, true, decoded.Data["cached"])
}

func TestNewEnvelopeNilData(t *testing.T) {
	env := NewEnvelope(EventHeartbeat, "node-1", "2026-03-14T09:05:00Z", nil)
	require.NotNil(t, env.Data)

	data, err := env.Encode()
	require.NoError(t, err)
	assert.Contains(t, string(data), `"data":{}`)
}

func TestDecodeEnvelopeRejectsGarbage(t *testing.T) {
	_, err := DecodeEnvelope([]byte("{not json"))
	assert.Error(t, err)
}

func TestDecodeEnvelopeVersionGate(t *testing.T) {
	cases := []struct {
		name    string
		version string
		wantErr bool
	}{
		{"current version", EnvelopeVersion, false},
		{"newer minor", "1.1", false},
		{"predates minimum", "0.9", true},
		{"empty version", "", true},
		{"unparseable version", "one.zero", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			payload := []byte(`{"version":"` + tc.version + `","type":"heartbeat","nodeId":"n","timestamp":"2026-03-14T12:00:00Z","data":{}}`)
			_, err := DecodeEnvelope(payload)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSubjectFor(t *testing.T) {
	cases := map[string]string{
		EventTaskReceived:   SubjectTasksReceived,
		EventTaskCompleted:  SubjectTasksCompleted,
		EventHeartbeat:      SubjectHeartbeat,
		EventNodeJoined:     SubjectNodesJoined,
		EventNodeLeft:       SubjectNodesLeft,
		EventInvoiceCreated: SubjectInvoicesCreated,
		EventNetworkStats:   SubjectStatsAggregated,
	}
	for eventType, want := range cases {
		got, err := SubjectFor(eventType)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := SubjectFor("task_exploded")
	assert.Error(t, err)
}
