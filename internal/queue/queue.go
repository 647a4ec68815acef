// Package queue provides the typed abstraction over the message bus
// used by the worker, sync, and aggregator services (§4, "Queue
// abstraction"): Listen(handler), SendMessage(msg), GetMessagesCount().
package queue

import "context"

// Handler processes one raw message body, returning an error to report
// that processing failed. Whether the message is then redelivered is
// up to the implementation: the NATS-backed Queue logs the error and
// does not redeliver.
type Handler func(ctx context.Context, body []byte) error

// SendResult classifies the outcome of SendMessage so callers can react
// without exception-style control flow (§9 design notes).
type SendResult int

const (
	// SendOK means the message was accepted by the bus.
	SendOK SendResult = iota
	// SendOversize means the bus rejected the message for being too
	// large (e.g. an HTTP 413 from the underlying transport).
	SendOversize
	// SendTransient means the send failed for a retryable reason.
	SendTransient
	// SendFatal means the send failed for a non-retryable reason.
	SendFatal
)

// Queue is the bus-agnostic interface the worker, sync, and aggregator
// depend on. The NATS-backed implementation lives in nats.go.
type Queue interface {
	// Listen installs handler for all messages on subject, load-balanced
	// across a queue group when group is non-empty.
	Listen(ctx context.Context, subject, group string, handler Handler) (Subscription, error)
	// SendMessage publishes body to subject, classifying the outcome.
	SendMessage(ctx context.Context, subject string, body []byte) (SendResult, error)
	// GetMessagesCount reports the current backlog depth for subject,
	// used by the Status Aggregator's queue-depth snapshot (§4.4).
	GetMessagesCount(subject string) (int, error)
	// Close releases the underlying connection.
	Close() error
}

// Subscription is a live Listen() registration that can be torn down.
type Subscription interface {
	Unsubscribe() error
}
