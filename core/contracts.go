package core

import (
	"context"

	glog "github.com/goliatone/go-logger/glog"
)

// MessageStore is the durable keyed storage contract. Insert relies on the
// storage-level uniqueness constraint on message_id as the sole duplicate
// arbiter: a second insert with the same id returns OutcomeDuplicate and
// leaves the first row untouched.
type MessageStore interface {
	Insert(ctx context.Context, msg Message) (InsertOutcome, error)
	List(ctx context.Context, req ListRequest) ([]Message, int, error)
	Stats(ctx context.Context) (Stats, error)
	EnsureSchema(ctx context.Context) error
	Ping(ctx context.Context) error
}

type MetricsRecorder interface {
	IncCounter(ctx context.Context, name string, value int64, tags map[string]string)
	ObserveHistogram(ctx context.Context, name string, value float64, tags map[string]string)
}

// SecretSource resolves the shared webhook secret. An empty secret is a
// configuration fault, reported through readiness rather than auth errors.
type SecretSource interface {
	WebhookSecret() string
}

type StoreProvider interface {
	MessageStore() MessageStore
}

type Logger = glog.Logger

type LoggerProvider = glog.LoggerProvider

type FieldsLogger = glog.FieldsLogger

// InboundRequest is the transport-neutral shape of an ingestion request:
// the exact raw body bytes as received, plus the transport headers.
type InboundRequest struct {
	Headers  map[string]string
	Body     []byte
	Metadata map[string]any
}

type InboundResult struct {
	Outcome    Outcome
	MessageID  string
	StatusCode int
	Metadata   map[string]any
}

// Outcome is the terminal classification of an ingestion request. Each
// request emits exactly one outcome to the metrics sink and the log.
type Outcome string

const (
	OutcomeCreated          Outcome = "created"
	OutcomeDuplicateMessage Outcome = "duplicate"
	OutcomeInvalidSignature Outcome = "invalid_signature"
	OutcomeInvalidPayload   Outcome = "invalid_payload"
	OutcomeInternalError    Outcome = "internal_error"
)
