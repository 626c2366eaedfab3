package worker

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"cicd-notifier/internal/logx"
	"cicd-notifier/internal/model"
	"cicd-notifier/internal/queue"
)

// DeliveryError describes a failed outbound call. StatusCode is zero when
// the request never got a response.
type DeliveryError struct {
	StatusCode int
	Err        error
}

func (e *DeliveryError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("webhook returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("webhook request failed: %v", e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

type Config struct {
	Workers int
	// Timeout bounds each outbound call; zero means no timeout.
	Timeout time.Duration
	// RatePerSec paces outbound calls across all workers; zero means unlimited.
	RatePerSec float64
}

// Dispatcher drains the queue with a fixed pool of workers. Every task gets
// exactly one delivery attempt; failures are logged and dropped.
type Dispatcher struct {
	workers int
	timeout time.Duration
	limiter *rate.Limiter
	queue   queue.Queue
	log     logx.Logger

	// newClient returns the client used for a single delivery.
	newClient func() *http.Client

	wg sync.WaitGroup
}

func NewDispatcher(cfg Config, q queue.Queue, log logx.Logger) *Dispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	d := &Dispatcher{
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		queue:   q,
		log:     log,
	}
	if cfg.RatePerSec > 0 {
		burst := int(cfg.RatePerSec)
		if burst < 1 {
			burst = 1
		}
		d.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	d.newClient = d.freshClient
	return d
}

func (d *Dispatcher) freshClient() *http.Client {
	return &http.Client{
		Timeout:   d.timeout,
		Transport: http.DefaultTransport.(*http.Transport).Clone(),
	}
}

// Submit queues one delivery and returns without waiting for it.
func (d *Dispatcher) Submit(ctx context.Context, destination string, msg model.OutboundMessage) (string, error) {
	task := &model.Task{
		ID:          uuid.NewString(),
		Destination: destination,
		Message:     msg,
		CreatedAt:   time.Now().UTC(),
	}
	if err := d.queue.Enqueue(ctx, task); err != nil {
		return task.ID, fmt.Errorf("enqueue task %s: %w", task.ID, err)
	}
	return task.ID, nil
}

// Run starts the workers. They stop when ctx is cancelled; use Wait to join them.
func (d *Dispatcher) Run(ctx context.Context) {
	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(ctx, i)
	}
	d.log.Info("dispatcher started", logx.Int("workers", d.workers))
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) worker(ctx context.Context, id int) {
	defer d.wg.Done()
	log := d.log.With(logx.Int("worker", id))
	for {
		task, err := d.queue.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Error("dequeue failed", logx.Err(err))
			continue
		}
		d.process(ctx, log, task)
	}
}

func (d *Dispatcher) process(ctx context.Context, log logx.Logger, task *model.Task) {
	log = log.With(logx.String("task_id", task.ID), logx.String("host", hostOf(task.Destination)))

	defer func() {
		if r := recover(); r != nil {
			log.Error("delivery panicked", logx.Any("panic", r), logx.String("stack", string(debug.Stack())))
		}
	}()

	if d.limiter != nil {
		if err := d.limiter.Wait(ctx); err != nil {
			log.Warn("delivery abandoned during shutdown", logx.Err(err))
			return
		}
	}

	start := time.Now()
	if err := d.Deliver(context.WithoutCancel(ctx), task.Destination, task.Message); err != nil {
		log.Error("notification delivery failed", logx.Err(err), logx.Duration("took", time.Since(start)))
		return
	}
	log.Info("notification delivered", logx.Duration("took", time.Since(start)))
}

// Deliver performs one POST of msg to destination on a client created for
// this call alone.
func (d *Dispatcher) Deliver(ctx context.Context, destination string, msg model.OutboundMessage) error {
	body, err := msg.Encode()
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, destination, bytes.NewReader(body))
	if err != nil {
		return &DeliveryError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.newClient()
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return &DeliveryError{Err: err}
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &DeliveryError{StatusCode: resp.StatusCode}
	}
	return nil
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "invalid"
	}
	return u.Host
}
