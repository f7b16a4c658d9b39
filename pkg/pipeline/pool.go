package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"

	"github.com/papercomputeco/docchat/pkg/storage"
)

var (
	defaultNumWorkers   uint = 2
	defaultJobQueueSize uint = 64
)

// Ingester runs ingestion for a queued document.
type Ingester interface {
	Ingest(ctx context.Context, doc *storage.Document) (*IngestReport, error)
}

// Job is a unit of work for the worker pool to execute against.
type Job struct {
	Document *storage.Document
}

// PoolConfig is the configuration options for the worker pool.
type PoolConfig struct {
	Ingester Ingester

	// NumWorkers is the number of background workers in the pool.
	NumWorkers uint

	// QueueSize is the capacity of the buffered job channel (defaults to 64).
	QueueSize uint

	Logger *slog.Logger
}

// Pool ingests uploaded documents asynchronously, off the request path.
type Pool struct {
	config *PoolConfig
	queue  chan Job
	wg     sync.WaitGroup
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
}

// NewPool creates a new Pool and starts its worker goroutines.
func NewPool(c *PoolConfig) (*Pool, error) {
	if c.Ingester == nil {
		return nil, errors.New("pool requires an ingester")
	}

	if c.NumWorkers == 0 {
		c.NumWorkers = defaultNumWorkers
	}

	if c.QueueSize == 0 {
		c.QueueSize = defaultJobQueueSize
	}

	if c.NumWorkers > uint(math.MaxInt) {
		return nil, fmt.Errorf("NumWorkers %d exceeds max int", c.NumWorkers)
	}

	wp := &Pool{
		config: c,
		queue:  make(chan Job, c.QueueSize),
		logger: c.Logger,
	}

	wp.wg.Add(int(c.NumWorkers))
	for i := range c.NumWorkers {
		go wp.worker(i)
	}

	return wp, nil
}

// Enqueue submits a job for processing by the worker pool.
// Returns true if enqueued, false if the queue is full or the pool is closed.
func (p *Pool) Enqueue(job Job) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		p.logger.Error("job not queued, pool closed", "document_id", job.Document.ID)
		return false
	}

	select {
	case p.queue <- job:
		p.logger.Debug("job queued", "document_id", job.Document.ID)
		return true
	default:
		p.logger.Error("job not queued, queue full, job dropped", "document_id", job.Document.ID)
		return false
	}
}

// Close signals workers to stop and waits for in-flight jobs to drain.
// Call this during graceful shutdown after the HTTP server has stopped.
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

	p.logger.Debug("ingestion worker stopped", "worker_id", id)
}

func (p *Pool) processJob(job Job) {
	report, err := p.config.Ingester.Ingest(context.Background(), job.Document)
	if errors.Is(err, ErrDocumentDeleted) {
		p.logger.Debug("async ingestion skipped, document deleted",
			"document_id", job.Document.ID,
		)
		return
	}
	if err != nil {
		p.logger.Error("async ingestion failed",
			"document_id", job.Document.ID,
			"error", err,
		)
		return
	}

	p.logger.Debug("async ingestion finished",
		"document_id", report.DocumentID,
		"total", report.Total,
	)
}
