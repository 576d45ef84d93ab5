package notifications

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/permitdesk/permitdesk/pkg/async"
	"github.com/permitdesk/permitdesk/pkg/observability"
)

// DispatcherConfig configures the delivery pipeline
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
	Retry       RetryConfig
}

// DefaultDispatcherConfig returns sensible defaults
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{
		Workers:     4,
		QueueSize:   1024,
		SendTimeout: 10 * time.Second,
		Retry:       DefaultRetryConfig(),
	}
}

// Dispatcher fans notifications out to the configured senders through a
// bounded queue and worker pool. Enqueue never blocks the caller.
type Dispatcher struct {
	senders []Sender
	pool    *async.WorkerPool
	policy  *RetryPolicy
	timeout time.Duration
	logger  *logrus.Logger
	metrics *observability.Metrics
	queue   chan Notification
	done    chan struct{}
}

// NewDispatcher creates and starts a dispatcher
func NewDispatcher(ctx context.Context, config DispatcherConfig, senders []Sender, logger *logrus.Logger, metrics *observability.Metrics) *Dispatcher {
	if logger == nil {
		logger = logrus.New()
	}
	if config.Workers <= 0 {
		config.Workers = 4
	}
	if config.QueueSize <= 0 {
		config.QueueSize = 1024
	}
	if config.SendTimeout <= 0 {
		config.SendTimeout = 10 * time.Second
	}
	if len(senders) == 0 {
		senders = []Sender{NewLogSender(logger)}
	}

	d := &Dispatcher{
		senders: senders,
		pool:    async.NewWorkerPool(ctx, config.Workers, "notification delivery", config.SendTimeout*time.Duration(config.Retry.MaxAttempts+1)),
		policy:  NewRetryPolicy(config.Retry),
		timeout: config.SendTimeout,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan Notification, config.QueueSize),
		done:    make(chan struct{}),
	}

	go d.pump(ctx)
	return d
}

// Enqueue hands a notification to the delivery pipeline. Returns false
// when the queue is full; the notification is dropped with a warning
// rather than blocking the request path.
func (d *Dispatcher) Enqueue(n Notification) bool {
	if len(n.Recipients) == 0 {
		return true
	}

	select {
	case d.queue <- n:
		if d.metrics != nil {
			d.metrics.NotificationsEnqueuedTotal.WithLabelValues(string(n.Kind)).Inc()
		}
		return true
	default:
		d.logger.WithFields(logrus.Fields{
			"kind":      n.Kind,
			"permit_id": n.PermitID,
		}).Warn("notification queue full, dropping")
		if d.metrics != nil {
			d.metrics.NotificationsDroppedTotal.Inc()
		}
		return false
	}
}

// Shutdown drains workers and stops delivery. Queued notifications that
// have not started delivery are dropped.
func (d *Dispatcher) Shutdown(timeout time.Duration) error {
	close(d.done)
	return d.pool.Shutdown(timeout)
}

func (d *Dispatcher) pump(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.done:
			return
		case n := <-d.queue:
			notification := n
			err := d.pool.Submit(func(taskCtx context.Context) error {
				d.deliver(taskCtx, notification)
				return nil
			})
			if err != nil {
				return
			}
		}
	}
}

// deliver sends to every configured channel, retrying each with backoff.
// Errors are logged and counted, never propagated.
func (d *Dispatcher) deliver(ctx context.Context, n Notification) {
	for _, sender := range d.senders {
		attempts := 0
		for {
			attempts++
			sendCtx, cancel := context.WithTimeout(ctx, d.timeout)
			err := sender.Send(sendCtx, n)
			cancel()

			if err == nil {
				if d.metrics != nil {
					d.metrics.NotificationSendsTotal.WithLabelValues(sender.Name(), "success").Inc()
				}
				break
			}

			if !d.policy.ShouldRetry(attempts, err) {
				d.logger.WithError(err).WithFields(logrus.Fields{
					"channel":  sender.Name(),
					"kind":     n.Kind,
					"attempts": attempts,
				}).Error("notification delivery failed")
				if d.metrics != nil {
					d.metrics.NotificationSendsTotal.WithLabelValues(sender.Name(), "failure").Inc()
				}
				break
			}

			select {
			case <-ctx.Done():
				return
			case <-time.After(d.policy.NextRetryDelay(attempts)):
			}
		}
	}
}
