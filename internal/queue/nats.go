package queue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSQueue is the NATS-backed Queue implementation. Connection options
// mirror the teacher's queue/nats wrapper: named connection, bounded
// dial timeout, infinite reconnect with backoff, and logged
// connect/disconnect transitions.
type NATSQueue struct {
	conn   *nats.Conn
	logger *zap.Logger
}

// NewNATSQueue dials the bus and returns a ready Queue.
func NewNATSQueue(url string, logger *zap.Logger) (*NATSQueue, error) {
	opts := []nats.Option{
		nats.Name("scan-pipeline"),
		nats.Timeout(10 * time.Second),
		nats.ReconnectWait(5 * time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Error("queue disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("queue reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
		nats.ClosedHandler(func(nc *nats.Conn) {
			logger.Info("queue connection closed")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to queue: %w", err)
	}

	logger.Info("connected to queue", zap.String("url", conn.ConnectedUrl()))
	return &NATSQueue{conn: conn, logger: logger}, nil
}

func (q *NATSQueue) Close() error {
	q.conn.Close()
	return nil
}

func (q *NATSQueue) HealthCheck(ctx context.Context) error {
	if q.conn.Status() != nats.CONNECTED {
		return fmt.Errorf("queue not connected, status: %v", q.conn.Status())
	}
	return nil
}

type natsSubscription struct {
	sub *nats.Subscription
}

func (s *natsSubscription) Unsubscribe() error {
	return s.sub.Unsubscribe()
}

// Listen subscribes to subject, optionally as part of a load-balancing
// queue group, and dispatches each delivery to handler. Handler errors
// are logged; the message is not nack'd because core NATS has no
// redelivery mechanism — JetStream would be required for that, and is
// left as an operational upgrade outside this spec's scope.
func (q *NATSQueue) Listen(ctx context.Context, subject, group string, handler Handler) (Subscription, error) {
	cb := func(msg *nats.Msg) {
		if err := handler(ctx, msg.Data); err != nil {
			q.logger.Error("handler failed", zap.String("subject", subject), zap.Error(err))
		}
	}

	var sub *nats.Subscription
	var err error
	if group != "" {
		sub, err = q.conn.QueueSubscribe(subject, group, cb)
	} else {
		sub, err = q.conn.Subscribe(subject, cb)
	}
	if err != nil {
		return nil, fmt.Errorf("subscribe to %s: %w", subject, err)
	}
	return &natsSubscription{sub: sub}, nil
}

// ErrOversize is returned by SendMessage, together with SendOversize,
// when the body exceeds the server's maximum payload size.
var ErrOversize = errors.New("message exceeds bus size limit")

// SendMessage publishes body to subject. Core NATS has no explicit
// payload ceiling signal beyond ErrMaxPayload: a payload over the
// server's configured max is the oversize case of §4.1.3.
func (q *NATSQueue) SendMessage(ctx context.Context, subject string, body []byte) (SendResult, error) {
	if int64(len(body)) > q.conn.MaxPayload() {
		return SendOversize, ErrOversize
	}

	if err := q.conn.Publish(subject, body); err != nil {
		if errors.Is(err, nats.ErrConnectionClosed) || errors.Is(err, nats.ErrTimeout) {
			return SendTransient, err
		}
		return SendFatal, err
	}
	return SendOK, nil
}

// GetMessagesCount reports the pending message count for subject by
// taking a transient sync subscription and reading its pending count,
// the same technique the teacher's advanced consumer uses via
// Subscription.Pending() after SetPendingLimits.
func (q *NATSQueue) GetMessagesCount(subject string) (int, error) {
	sub, err := q.conn.SubscribeSync(subject)
	if err != nil {
		return 0, err
	}
	defer sub.Unsubscribe()

	pending, _, err := sub.Pending()
	if err != nil {
		return 0, err
	}
	return pending, nil
}
