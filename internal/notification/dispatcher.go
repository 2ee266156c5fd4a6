package notification

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/frahmantamala/travel-approval/internal"
	"github.com/frahmantamala/travel-approval/internal/metrics"
)

type job struct {
	notification Notification
}

type worker struct {
	id         int
	workerPool chan chan job
	jobChannel chan job
	logger     *slog.Logger
}

func newWorker(id int, workerPool chan chan job, logger *slog.Logger) *worker {
	return &worker{
		id:         id,
		workerPool: workerPool,
		jobChannel: make(chan job),
		logger:     logger,
	}
}

func (w *worker) start(ctx context.Context, wg *sync.WaitGroup, process func(job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case w.workerPool <- w.jobChannel:
			case <-ctx.Done():
				return
			}

			select {
			case j := <-w.jobChannel:
				process(j)
			case <-ctx.Done():
				w.logger.Debug("notification worker shutting down", "worker_id", w.id)
				return
			}
		}
	}()
}

// Dispatcher delivers notifications to its sinks on a fixed worker pool.
// Delivery failures are logged and counted, never returned to the caller.
type Dispatcher struct {
	sinks   []Sink
	timeout time.Duration
	logger  *slog.Logger

	jobQueue   chan job
	workerPool chan chan job
	maxWorkers int
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	pending    sync.WaitGroup
	once       sync.Once
	stopOnce   sync.Once
}

func NewDispatcher(cfg internal.NotificationConfig, logger *slog.Logger, sinks ...Sink) *Dispatcher {
	ctx, cancel := context.WithCancel(context.Background())

	maxWorkers := cfg.MaxWorkers
	if maxWorkers <= 0 {
		maxWorkers = 4
	}
	jobQueueSize := cfg.JobQueueSize
	if jobQueueSize <= 0 {
		jobQueueSize = 256
	}
	workerPoolSize := cfg.WorkerPoolSize
	if workerPoolSize <= 0 {
		workerPoolSize = maxWorkers
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Dispatcher{
		sinks:      sinks,
		timeout:    timeout,
		logger:     logger,
		maxWorkers: maxWorkers,
		jobQueue:   make(chan job, jobQueueSize),
		workerPool: make(chan chan job, workerPoolSize),
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start launches the workers. It is safe to call more than once.
func (d *Dispatcher) Start() {
	d.once.Do(func() {
		for i := 0; i < d.maxWorkers; i++ {
			newWorker(i, d.workerPool, d.logger).start(d.ctx, &d.wg, d.process)
		}

		d.wg.Add(1)
		go d.dispatch()

		d.logger.Info("notification dispatcher started",
			"max_workers", d.maxWorkers,
			"queue_size", cap(d.jobQueue),
			"sinks", len(d.sinks))
	})
}

func (d *Dispatcher) dispatch() {
	defer d.wg.Done()
	for {
		select {
		case j := <-d.jobQueue:
			select {
			case jobChannel := <-d.workerPool:
				select {
				case jobChannel <- j:
				case <-d.ctx.Done():
					d.pending.Done()
					return
				}
			case <-d.ctx.Done():
				d.pending.Done()
				return
			}
		case <-d.ctx.Done():
			return
		}
	}
}

// Notify queues n. A full queue is reported but the caller treats it as best effort.
func (d *Dispatcher) Notify(ctx context.Context, n Notification) error {
	if n.UserID == "" {
		return internal.NewValidationFieldError("user_id", "Notification recipient is required", internal.ErrCodeValidationFailed)
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}

	d.pending.Add(1)
	select {
	case d.jobQueue <- job{notification: n}:
		return nil
	default:
		d.pending.Done()
		metrics.RecordNotification("queue", ErrQueueFull)
		d.logger.WarnContext(ctx, "notification queue full, dropping",
			"user_id", n.UserID,
			"type", n.Type,
			"queue_capacity", cap(d.jobQueue))
		return ErrQueueFull
	}
}

func (d *Dispatcher) process(j job) {
	defer d.pending.Done()
	n := j.notification
	for _, sink := range d.sinks {
		ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
		err := sink.Deliver(ctx, &n)
		cancel()
		metrics.RecordNotification(sink.Name(), err)
		if err != nil {
			d.logger.Warn("notification delivery failed",
				"sink", sink.Name(),
				"user_id", n.UserID,
				"type", n.Type,
				"request_id", n.RelatedRequestID,
				"error", err)
		}
	}
}

// Drain blocks until every queued notification has been processed.
func (d *Dispatcher) Drain() {
	d.pending.Wait()
}

func (d *Dispatcher) Shutdown() {
	d.stopOnce.Do(func() {
		d.logger.Info("shutting down notification dispatcher")
		d.cancel()
		d.wg.Wait()
	})
}
