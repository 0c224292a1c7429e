// Package msgworker runs webhook event processing on a sharded worker pool.
// Events are routed to a worker by channel id, so events of one channel are
// always processed in arrival order while channels proceed in parallel.
package msgworker

import (
	"context"
	"hash/fnv"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// EventJob is one webhook event bound to its processing function.
type EventJob struct {
	ChannelID string
	EventType string
	Handler   func(ctx context.Context) error
}

// PoolStats is a point-in-time snapshot of pool counters.
type PoolStats struct {
	NumWorkers      int           `json:"num_workers"`
	QueueSize       int           `json:"queue_size"`
	ActiveWorkers   int           `json:"active_workers"`
	TotalDispatched int64         `json:"total_dispatched"`
	TotalProcessed  int64         `json:"total_processed"`
	TotalDropped    int64         `json:"total_dropped"`
	TotalErrors     int64         `json:"total_errors"`
	WorkerStats     []WorkerStats `json:"worker_stats"`
}

type WorkerStats struct {
	WorkerID      int   `json:"worker_id"`
	QueueDepth    int   `json:"queue_depth"`
	IsProcessing  bool  `json:"is_processing"`
	JobsProcessed int64 `json:"jobs_processed"`
}

// Pool owns a fixed set of workers, each with its own bounded queue.
type Pool struct {
	numWorkers int
	queueSize  int
	workers    []*worker
	wg         sync.WaitGroup
	stopOnce   sync.Once
	stopped    int32

	totalDispatched int64
	totalProcessed  int64
	totalDropped    int64
	totalErrors     int64
}

type worker struct {
	id            int
	jobQueue      chan EventJob
	ctx           context.Context
	cancel        context.CancelFunc
	isProcessing  int32
	jobsProcessed int64
	pool          *Pool
}

func NewPool(numWorkers, queueSize int) *Pool {
	if numWorkers <= 0 {
		numWorkers = 10
	}
	if queueSize <= 0 {
		queueSize = 100
	}
	return &Pool{
		numWorkers: numWorkers,
		queueSize:  queueSize,
		workers:    make([]*worker, numWorkers),
	}
}

func (p *Pool) Start(ctx context.Context) {
	for i := 0; i < p.numWorkers; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{
			id:       i,
			jobQueue: make(chan EventJob, p.queueSize),
			ctx:      workerCtx,
			cancel:   cancel,
			pool:     p,
		}
		p.workers[i] = w

		p.wg.Add(1)
		go w.run(&p.wg)
	}
	logrus.Infof("[POOL] started %d workers, queue size %d", p.numWorkers, p.queueSize)
}

// TryDispatch enqueues the job on the worker owning its channel without
// blocking, and reports whether it was accepted. A full queue drops the job
// so webhook handlers can apply backpressure instead of hanging.
func (p *Pool) TryDispatch(job EventJob) bool {
	if atomic.LoadInt32(&p.stopped) == 1 {
		atomic.AddInt64(&p.totalDropped, 1)
		return false
	}

	shard := p.shardFor(job.ChannelID)
	atomic.AddInt64(&p.totalDispatched, 1)

	sent := func() (ok bool) {
		defer func() {
			if r := recover(); r != nil {
				ok = false
			}
		}()
		select {
		case p.workers[shard].jobQueue <- job:
			return true
		default:
			return false
		}
	}()

	if !sent {
		atomic.AddInt64(&p.totalDropped, 1)
		logrus.Warnf("[POOL] worker %d queue full, dropping %s for channel %s",
			shard, job.EventType, job.ChannelID)
	}
	return sent
}

func (p *Pool) Dispatch(job EventJob) {
	_ = p.TryDispatch(job)
}

// Stop drains the queues and waits for all workers to exit.
func (p *Pool) Stop() {
	p.stopOnce.Do(func() {
		atomic.StoreInt32(&p.stopped, 1)
		logrus.Info("[POOL] stopping workers")

		for _, w := range p.workers {
			w.cancel()
			close(w.jobQueue)
		}
		p.wg.Wait()

		logrus.Info("[POOL] all workers stopped")
	})
}

// shardFor maps a channel id to its worker. The same channel always lands on
// the same worker.
func (p *Pool) shardFor(channelID string) int {
	h := fnv.New32a()
	h.Write([]byte(channelID))
	return int(h.Sum32() % uint32(p.numWorkers))
}

func (p *Pool) Stats() PoolStats {
	workerStats := make([]WorkerStats, len(p.workers))
	activeWorkers := 0

	for i, w := range p.workers {
		isProcessing := atomic.LoadInt32(&w.isProcessing) == 1
		if isProcessing {
			activeWorkers++
		}
		workerStats[i] = WorkerStats{
			WorkerID:      w.id,
			QueueDepth:    len(w.jobQueue),
			IsProcessing:  isProcessing,
			JobsProcessed: atomic.LoadInt64(&w.jobsProcessed),
		}
	}

	return PoolStats{
		NumWorkers:      p.numWorkers,
		QueueSize:       p.queueSize,
		ActiveWorkers:   activeWorkers,
		TotalDispatched: atomic.LoadInt64(&p.totalDispatched),
		TotalProcessed:  atomic.LoadInt64(&p.totalProcessed),
		TotalDropped:    atomic.LoadInt64(&p.totalDropped),
		TotalErrors:     atomic.LoadInt64(&p.totalErrors),
		WorkerStats:     workerStats,
	}
}

func (w *worker) run(wg *sync.WaitGroup) {
	defer wg.Done()

	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				logrus.Debugf("[POOL] worker %d shutting down", w.id)
				return
			}
			w.process(job)

		case <-w.ctx.Done():
			w.drainQueue()
			return
		}
	}
}

func (w *worker) process(job EventJob) {
	atomic.StoreInt32(&w.isProcessing, 1)
	defer func() {
		if r := recover(); r != nil {
			atomic.AddInt64(&w.pool.totalErrors, 1)
			logrus.Errorf("[POOL] worker %d panic for channel %s: %v", w.id, job.ChannelID, r)
		}
		atomic.StoreInt32(&w.isProcessing, 0)
		atomic.AddInt64(&w.jobsProcessed, 1)
		atomic.AddInt64(&w.pool.totalProcessed, 1)
	}()

	if err := job.Handler(w.ctx); err != nil {
		atomic.AddInt64(&w.pool.totalErrors, 1)
		logrus.WithError(err).Errorf("[POOL] worker %d failed %s for channel %s",
			w.id, job.EventType, job.ChannelID)
	}
}

// drainQueue processes jobs already queued at shutdown so accepted webhooks
// are not lost.
func (w *worker) drainQueue() {
	for {
		select {
		case job, ok := <-w.jobQueue:
			if !ok {
				return
			}
			w.process(job)
		default:
			return
		}
	}
}
