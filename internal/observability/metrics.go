package observability

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the counters and histograms exercised by the worker,
// sync, and aggregator. Built on the OpenTelemetry meter configured by
// SetupOpenTelemetry, backed by the Prometheus exporter.
type Metrics struct {
	JobsQueued    metric.Int64Counter
	JobsStarted   metric.Int64Counter
	JobsFinished  metric.Int64Counter
	JobsErrored   metric.Int64Counter
	ScanDuration  metric.Float64Histogram
	QueueDepth    metric.Int64ObservableGauge
	LockContended metric.Int64Counter
}

// NewMetrics registers the pipeline's instruments against the global
// meter provider. Call after SetupOpenTelemetry.
func NewMetrics(meterName string) (*Metrics, error) {
	meter := otel.Meter(meterName)

	jobsQueued, err := meter.Int64Counter("scan_jobs_queued_total")
	if err != nil {
		return nil, err
	}
	jobsStarted, err := meter.Int64Counter("scan_jobs_started_total")
	if err != nil {
		return nil, err
	}
	jobsFinished, err := meter.Int64Counter("scan_jobs_finished_total")
	if err != nil {
		return nil, err
	}
	jobsErrored, err := meter.Int64Counter("scan_jobs_errored_total")
	if err != nil {
		return nil, err
	}
	scanDuration, err := meter.Float64Histogram("scan_duration_seconds")
	if err != nil {
		return nil, err
	}
	lockContended, err := meter.Int64Counter("scan_lock_contended_total")
	if err != nil {
		return nil, err
	}

	return &Metrics{
		JobsQueued:    jobsQueued,
		JobsStarted:   jobsStarted,
		JobsFinished:  jobsFinished,
		JobsErrored:   jobsErrored,
		ScanDuration:  scanDuration,
		LockContended: lockContended,
	}, nil
}

// RegisterQueueDepth registers an observable gauge sourced from the
// given poller, used by the Status Aggregator to publish
// getMessagesCount() snapshots (§4.4).
func (m *Metrics) RegisterQueueDepth(meterName string, poll func(ctx context.Context) (int64, error)) error {
	meter := otel.Meter(meterName)
	gauge, err := meter.Int64ObservableGauge("scan_queue_depth")
	if err != nil {
		return err
	}
	_, err = meter.RegisterCallback(func(ctx context.Context, o metric.Observer) error {
		depth, err := poll(ctx)
		if err != nil {
			return err
		}
		o.ObserveInt64(gauge, depth)
		return nil
	}, gauge)
	if err != nil {
		return err
	}
	m.QueueDepth = gauge
	return nil
}
