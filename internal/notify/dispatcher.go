package notify

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Delivery outcomes recorded in the notifications counter.
const (
	ResultSent    = "sent"
	ResultFailed  = "failed"
	ResultDropped = "dropped"
)

// Metrics counts notification outcomes.
type Metrics struct {
	Results *prometheus.CounterVec
}

// NewMetrics creates and registers the notification counters.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Results: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "parkpro_notifications_total",
				Help: "Total number of notifications by delivery result",
			},
			[]string{"result"},
		),
	}
	reg.MustRegister(m.Results)
	return m
}

// DispatcherConfig sizes the pool.
type DispatcherConfig struct {
	Workers     int
	QueueSize   int
	SendTimeout time.Duration
}

// Dispatcher hands messages to a fixed set of workers. Callers never wait on
// delivery; a full queue drops the message.
type Dispatcher struct {
	sender  Sender
	logger  *zap.SugaredLogger
	metrics *Metrics
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan Message
	wg     sync.WaitGroup
}

// NewDispatcher starts cfg.Workers workers delivering through sender.
func NewDispatcher(sender Sender, logger *zap.SugaredLogger, metrics *Metrics, cfg DispatcherConfig) *Dispatcher {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.QueueSize < 0 {
		cfg.QueueSize = 0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 30 * time.Second
	}
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		metrics: metrics,
		timeout: cfg.SendTimeout,
		queue:   make(chan Message, cfg.QueueSize),
	}
	d.wg.Add(cfg.Workers)
	for i := 0; i < cfg.Workers; i++ {
		go d.work()
	}
	return d
}

// Enqueue schedules msg for delivery and reports whether it was accepted.
func (d *Dispatcher) Enqueue(msg Message) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.drop(msg, "dispatcher closed")
		return false
	}
	select {
	case d.queue <- msg:
		return true
	default:
		d.drop(msg, "queue full")
		return false
	}
}

// Close stops accepting messages and waits for queued ones to be delivered.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("notification drain: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for msg := range d.queue {
		d.deliver(msg)
	}
}

func (d *Dispatcher) deliver(msg Message) {
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			d.record(ResultFailed)
			d.logger.Errorw("notification sender panicked", "to", msg.To, "panic", r)
		}
	}()

	if err := d.sender.Send(ctx, msg); err != nil {
		d.record(ResultFailed)
		d.logger.Warnw("notification delivery failed",
			"to", msg.To,
			"subject", msg.Subject,
			"err", err,
		)
		return
	}
	d.record(ResultSent)
	d.logger.Debugw("notification delivered", "to", msg.To, "subject", msg.Subject)
}

func (d *Dispatcher) drop(msg Message, reason string) {
	d.record(ResultDropped)
	d.logger.Warnw("notification dropped", "to", msg.To, "subject", msg.Subject, "reason", reason)
}

func (d *Dispatcher) record(result string) {
	if d.metrics != nil {
		d.metrics.Results.WithLabelValues(result).Inc()
	}
}
