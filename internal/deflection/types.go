package deflection

import "time"

// CalculatedAtFormat is the timestamp layout the companion service expects in
// callback payloads (UTC, second precision, literal Z suffix).
const CalculatedAtFormat = "2006-01-02T15:04:05"

// ItemResult is emitted for each successfully evaluated batch item.
type ItemResult struct {
	BeamID       int64   `json:"beam_id"`
	DeflectionMm float64 `json:"deflection_mm"`
}

// JobResult aggregates one batch. It is built once per job, delivered to the
// callback target exactly once, and then discarded; nothing is persisted.
type JobResult struct {
	JobID              int64        `json:"beam_deflection_id"`
	CalculatedAt       string       `json:"calculated_at"`
	WithinNorm         bool         `json:"within_norm"`
	ResultDeflectionMm float64      `json:"result_deflection_mm"`
	Items              []ItemResult `json:"items"`
}

// CallbackTarget carries per-job overrides for the delivery endpoint. Blank
// fields fall back to the configured defaults.
type CallbackTarget struct {
	URL       string
	AuthToken string
}

// QueueItem wraps a submitted job waiting for a worker. Items stay loosely
// typed (raw decoded JSON values) until the evaluator coerces them; a bad item
// must fail individually, not at admission.
type QueueItem struct {
	JobID     int64
	Items     []any
	Callback  CallbackTarget
	Submitted time.Time
}

// DeliveryResult reports the outcome of one callback attempt. Delivery is
// best-effort: the worker logs the outcome and moves on, there is no retry.
type DeliveryResult struct {
	URL        string
	StatusCode int
	Body       string
	Err        error
}

// Delivered reports whether the callback reached the target with a 2xx status.
func (r DeliveryResult) Delivered() bool {
	return r.Err == nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// FormatCalculatedAt renders t for the callback payload.
func FormatCalculatedAt(t time.Time) string {
	return t.UTC().Format(CalculatedAtFormat) + "Z"
}
