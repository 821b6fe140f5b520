// Package worker provides an asynchronous worker pool for persisting relayed
// chat messages using the provided storage.Driver.
//
// The pool decouples storage operations from the relay's streaming hot path so
// that a slow or failing store never delays or breaks a stream.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/papercomputeco/streamrelay/pkg/storage"
)

var (
	defaultNumWorkers   uint = 3
	defaultJobQueueSize uint = 256
	defaultJobTimeout        = 10 * time.Second
)

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	// StreamID is the stream the message belongs to, for logging.
	StreamID string

	Message *storage.Message
}

// Config is the configuration options for the worker pool.
type Config struct {
	// Driver is the storage backend for persisting messages.
	Driver storage.Driver

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 256).
	QueueSize uint

	// JobTimeout bounds a single storage call (defaults to 10s).
	JobTimeout time.Duration

	Logger *slog.Logger
}

// Pool processes storage jobs asynchronously via a worker pool.
type Pool struct {
	config *Config
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	// mu guards closed so Enqueue never sends on a closed queue.
	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *Config) (*Pool, error) {
	if c.Driver == nil {
		return nil, fmt.Errorf("worker pool requires a storage driver")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.JobTimeout <= 0 {
		c.JobTimeout = defaultJobTimeout
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	logger := c.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed,
// resulting in the job being dropped.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Warn("job not queued, pool closed, job dropped", "stream_id", job.StreamID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued",
			"stream_id", job.StreamID,
			"role", string(job.Message.Role),
		)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped",
			"stream_id", job.StreamID,
			"role", string(job.Message.Role),
		)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after every stream has finished.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.queue)
	p.mu.Unlock()

	p.wg.Wait()
}

// worker is the inner worker thread that continuously pulls jobs off the jobs queue
func (p *Pool) worker(id uint) {
	defer p.wg.Done()
	p.logger.Debug("worker started", "worker_id", id)

	for job := range p.queue {
		p.processJob(job)
	}

	p.logger.Debug("storage worker stopped", "worker_id", id)
}

// processJob appends the job's message, creating its conversation on demand.
func (p *Pool) processJob(job Job) {
	ctx, cancel := context.WithTimeout(context.Background(), p.config.JobTimeout)
	defer cancel()

	msg := job.Message
	if err := p.config.Driver.AppendMessage(ctx, msg); err != nil {
		p.logger.Error("async message storage failed",
			"stream_id", job.StreamID,
			"conversation_id", msg.ConversationID,
			"message_id", msg.ID,
			"error", err,
		)
		return
	}

	p.logger.Info("message stored",
		"stream_id", job.StreamID,
		"conversation_id", msg.ConversationID,
		"message_id", msg.ID,
		"role", string(msg.Role),
	)
}
