// --- File: pkg/push/interfaces.go ---
package push

import (
	"context"
)

// Transport defines the contract for the fan-out notification service that
// delivers an envelope to a single device endpoint (e.g., an SNS platform endpoint ARN).
type Transport interface {
	// Send publishes the serialized envelope to the target and returns the
	// transport's message id.
	Send(ctx context.Context, target string, message string, attributes map[string]Attribute) (string, error)
}

// RecordStore defines the contract for the durable audit log.
// Records are write-once; implementations never update an existing record.
type RecordStore interface {
	PutRecord(ctx context.Context, record *AuditRecord) error
}

// EndpointCache remembers endpoints the transport has reported as disabled,
// so a later fan-out can skip them without a remote call.
type EndpointCache interface {
	// IsDisabled reports whether the endpoint was previously marked disabled.
	// Lookup failures are treated as "not disabled".
	IsDisabled(ctx context.Context, endpoint string) bool
	MarkDisabled(ctx context.Context, endpoint string) error
}
