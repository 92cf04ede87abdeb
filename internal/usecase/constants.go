package usecase

import "time"

const (
	// IdempotencyKeyTTL is how long idempotency keys are cached
	IdempotencyKeyTTL = 24 * time.Hour

	// DefaultOutboxBatchSize bounds how many events one relay poll hands to the bus.
	DefaultOutboxBatchSize = 100
)

// Command outcomes reported to MetricsRecorder.
const (
	OutcomeSuccess  = "success"
	OutcomeConflict = "conflict"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

// Saga reaction outcomes reported to MetricsRecorder.
const (
	ReactionHandled = "handled"
	ReactionIgnored = "ignored"
	ReactionFailed  = "failed"
)
