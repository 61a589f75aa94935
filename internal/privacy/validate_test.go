package privacy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"truewatch/internal/monitor"
)

func TestValidateRejectsSensitivePayloads(t *testing.T) {
	cases := []struct {
		name    string
		payload string
		want    ViolationKind
	}{
		{
			name:    "raw account address",
			payload: `{"data":{"owner":"0x52908400098527886E0F7030069857D2E4169EE7"}}`,
			want:    ViolationAddress,
		},
		{
			name:    "execution id key",
			payload: `{"data":{"execution_id":"abc"}}`,
			want:    ViolationExecutionID,
		},
		{
			name:    "input data field",
			payload: `{"data":{"input_data":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "output data field",
			payload: `{"data":{"output_data":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "error data field",
			payload: `{"data":{"error_data":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "private key field",
			payload: `{"data":{"private_key":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "wallet field",
			payload: `{"data":{"wallet":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "sensitive field is case insensitive",
			payload: `{"data":{"Private_Key":"..."}}`,
			want:    ViolationSensitiveField,
		},
		{
			name:    "dotted quad ip",
			payload: `{"data":{"host":"203.0.113.7"}}`,
			want:    ViolationIPAddress,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Validate([]byte(tc.payload))
			require.Error(t, err)

			var violation *Violation
			require.ErrorAs(t, err, &violation)
			assert.Equal(t, tc.want, violation.Kind)
			assert.NotEmpty(t, violation.Sample)
		})
	}
}

func TestValidateAcceptsAnonymizedEnvelope(t *testing.T) {
	a := NewAnonymizer(testCredential(t))
	env := a.TaskCompleted(monitor.TaskEvent{
		ExecutionID:   "exec-1",
		TaskID:        "task-1",
		Chain:         "ethereum",
		TaskType:      "wasm",
		Status:        monitor.StatusSuccess,
		ElapsedMs:     250,
		GasUsed:       50000,
		StepsComputed: 500000000,
		MemoryBytes:   2 << 30,
	})
	assert.NoError(t, ValidateEnvelope(env))
}

func TestValidateAcceptsVersionStrings(t *testing.T) {
	// Semver has dots but is not a dotted quad.
	assert.NoError(t, Validate([]byte(`{"data":{"version":"1.0.0"}}`)))
}

func TestValidateIgnoresUnprefixedHashes(t *testing.T) {
	// Salted SHA-256 hashes are 64 hex chars without 0x and must pass.
	a := NewAnonymizer(testCredential(t))
	payload := `{"data":{"taskIdHash":"` + a.Hash("task") + `"}}`
	assert.NoError(t, Validate([]byte(payload)))
}
