package privacy

import (
	"crypto/rand"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truewatch/internal/identity"
	"truewatch/internal/monitor"
	"truewatch/internal/protocol"
)

func testCredential(t *testing.T) *identity.Credential {
	t.Helper()
	salt := make([]byte, identity.SaltSize)
	_, err := rand.Read(salt)
	require.NoError(t, err)
	return &identity.Credential{NodeID: "node-under-test", Salt: salt}
}

func fixedClock(a *Anonymizer, at time.Time) {
	a.now = func() time.Time { return at }
}

func TestHashDeterministic(t *testing.T) {
	a := NewAnonymizer(testCredential(t))

	for i := 0; i < 100; i++ {
		v := fmt.Sprintf("task-%d", i)
		assert.Equal(t, a.Hash(v), a.Hash(v))
		assert.NotEqual(t, a.Hash(v), a.Hash(v+"x"))
	}
}

func TestHashSaltSeparation(t *testing.T) {
	// The same logical identifier must hash differently on nodes with
	// different salts, or observers could correlate it across the network.
	a1 := NewAnonymizer(testCredential(t))
	a2 := NewAnonymizer(testCredential(t))

	for i := 0; i < 100; i++ {
		v := fmt.Sprintf("shared-id-%d", i)
		assert.NotEqual(t, a1.Hash(v), a2.Hash(v))
	}
}

func TestHashEmptyInput(t *testing.T) {
	a := NewAnonymizer(testCredential(t))
	assert.Equal(t, "", a.Hash(""))
}

func TestRoundTimestamp(t *testing.T) {
	cases := []time.Time{
		time.Date(2026, 3, 14, 9, 2, 33, 123456789, time.UTC),
		time.Date(2026, 3, 14, 9, 57, 59, 0, time.UTC),
		time.Date(2026, 3, 14, 9, 55, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 23, 59, 59, 999999999, time.UTC),
	}
	for _, in := range cases {
		out := RoundTimestamp(in)
		parsed, err := time.Parse(time.RFC3339, out)
		require.NoError(t, err, "timestamp %q", out)
		assert.Zero(t, parsed.Minute()%5, "timestamp %q", out)
		assert.Zero(t, parsed.Second(), "timestamp %q", out)
		assert.Zero(t, parsed.Nanosecond(), "timestamp %q", out)
		assert.False(t, parsed.After(in))
		assert.True(t, in.Sub(parsed) < 5*time.Minute)
	}
}

func TestTaskCompletedEnvelope(t *testing.T) {
	cred := testCredential(t)
	a := NewAnonymizer(cred)
	fixedClock(a, time.Date(2026, 3, 14, 9, 7, 12, 0, time.UTC))

	ev := monitor.TaskEvent{
		ExecutionID:   "exec-abc-123",
		TaskID:        "task-42",
		Chain:         "ethereum",
		TaskType:      "wasm",
		Status:        monitor.StatusSuccess,
		ElapsedMs:     3000,
		GasUsed:       500000,
		StepsComputed: 5000000,
		MemoryBytes:   128 << 20,
		Cached:        true,
	}
	env := a.TaskCompleted(ev)

	assert.Equal(t, protocol.EventTaskCompleted, env.Type)
	assert.Equal(t, cred.NodeID, env.NodeID)
	assert.Equal(t, "2026-03-14T09:05:00Z", env.Timestamp)

	assert.Equal(t, a.Hash("task-42"), env.Data["taskIdHash"])
	assert.Equal(t, "1-5s", env.Data["executionTime"])
	assert.Equal(t, "100K-1M", env.Data["gasUsed"])
	assert.Equal(t, "1M-10M", env.Data["stepsComputed"])
	assert.Equal(t, "64-256MB", env.Data["memoryUsed"])
	assert.Equal(t, true, env.Data["cached"])

	// The execution ID must not survive anonymization in any form.
	payload, err := env.Encode()
	require.NoError(t, err)
	assert.NotContains(t, string(payload), "exec-abc-123")
	assert.NotContains(t, string(payload), "task-42")

	assert.NoError(t, ValidateEnvelope(env))
}

func TestTaskReceivedWithoutID(t *testing.T) {
	a := NewAnonymizer(testCredential(t))
	env := a.TaskReceived(monitor.TaskEvent{Chain: "goerli", TaskType: "wasm"})
	assert.Nil(t, env.Data["taskIdHash"])
}

func TestHeartbeatEnvelope(t *testing.T) {
	a := NewAnonymizer(testCredential(t))
	env := a.Heartbeat(monitor.Heartbeat{
		ActiveTasks: 4,
		TotalTasks:  73,
		Version:     "1.0.0",
		Continent:   "EU",
	})

	assert.Equal(t, protocol.EventHeartbeat, env.Type)
	assert.Equal(t, "4-5", env.Data["activeTasks"])
	assert.Equal(t, "50-100", env.Data["totalTasks"])
	assert.NoError(t, ValidateEnvelope(env))
}

func TestInvoiceEnvelope(t *testing.T) {
	a := NewAnonymizer(testCredential(t))
	env := a.InvoiceCreated(monitor.Invoice{InvoiceID: "inv-9", Chain: "ethereum", Amount: 250000})

	assert.Equal(t, protocol.EventInvoiceCreated, env.Type)
	assert.Equal(t, a.Hash("inv-9"), env.Data["invoiceIdHash"])
	assert.Equal(t, "100K-1M", env.Data["amount"])
	assert.NoError(t, ValidateEnvelope(env))
}
