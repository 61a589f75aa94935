package privacy

import (
	"fmt"
	"regexp"

	"truewatch/internal/protocol"
)

// ViolationKind classifies what leaked.
type ViolationKind string

const (
	ViolationAddress        ViolationKind = "raw_address"
	ViolationExecutionID    ViolationKind = "execution_id"
	ViolationSensitiveField ViolationKind = "sensitive_field"
	ViolationIPAddress      ViolationKind = "ip_address"
)

// Violation reports sensitive data found in an outbound payload. The
// envelope that produced it must never be published.
type Violation struct {
	Kind   ViolationKind
	Sample string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("privacy violation (%s): %q", v.Kind, v.Sample)
}

// denyRule pairs a forbidden pattern with its violation kind. New sensitive
// patterns are added here, not in control flow.
type denyRule struct {
	pattern *regexp.Regexp
	kind    ViolationKind
}

var denylist = []denyRule{
	// 0x-prefixed 40-hex account address.
	{regexp.MustCompile(`0x[0-9a-fA-F]{40}`), ViolationAddress},
	// Raw execution identifier key.
	{regexp.MustCompile(`"execution_id"\s*:`), ViolationExecutionID},
	// Field names that carry workload content or key material.
	{regexp.MustCompile(`(?i)"(input_data|output_data|error_data|private_key|wallet)"`), ViolationSensitiveField},
	// Dotted-quad IP literal.
	{regexp.MustCompile(`\b(?:\d{1,3}\.){3}\d{1,3}\b`), ViolationIPAddress},
}

const sampleLimit = 48

// Validate scans a serialized envelope for forbidden patterns. It is a
// defense-in-depth check independent of the anonymizer: the publish path
// runs it on every outbound payload.
func Validate(payload []byte) error {
	for _, r := range denylist {
		if m := r.pattern.Find(payload); m != nil {
			sample := string(m)
			if len(sample) > sampleLimit {
				sample = sample[:sampleLimit]
			}
			return &Violation{Kind: r.kind, Sample: sample}
		}
	}
	return nil
}

// ValidateEnvelope serializes env and runs the denylist scan on the result.
func ValidateEnvelope(env *protocol.Envelope) error {
	payload, err := env.Encode()
	if err != nil {
		return fmt.Errorf("encoding envelope for validation: %w", err)
	}
	return Validate(payload)
}
