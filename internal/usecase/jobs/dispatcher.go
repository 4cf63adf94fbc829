package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
	"github.com/johnquangdev/meeting-sync/pkg/config"
	"github.com/johnquangdev/meeting-sync/pkg/jobcontext"
)

// Handler executes one type of meeting job
type Handler interface {
	Type() entities.JobType
	Handle(ctx context.Context, job *entities.MeetingJob) error
}

// Dispatcher drains the meeting_jobs outbox. Jobs are claimed with
// SELECT ... FOR UPDATE SKIP LOCKED so several instances can run side by side.
type Dispatcher struct {
	jobs     repositories.JobRepository
	handlers map[entities.JobType]Handler
	cfg      config.JobsConfig
	logger   *zap.Logger

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewDispatcher creates a dispatcher for the given handlers
func NewDispatcher(jobs repositories.JobRepository, cfg config.JobsConfig, logger *zap.Logger, handlers ...Handler) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = cfg.Workers
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 15 * time.Minute
	}

	d := &Dispatcher{
		jobs:     jobs,
		handlers: make(map[entities.JobType]Handler, len(handlers)),
		cfg:      cfg,
		logger:   logger,
	}
	for _, h := range handlers {
		d.handlers[h.Type()] = h
	}
	return d
}

// Start launches the polling loop and the stale-job sweeper
func (d *Dispatcher) Start(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.isRunning {
		return fmt.Errorf("dispatcher already running")
	}
	d.isRunning = true
	d.stopChan = make(chan struct{})

	d.logger.Info("🚀 Starting job dispatcher",
		zap.Int("workers", d.cfg.Workers),
		zap.Duration("poll_interval", d.cfg.PollInterval),
	)

	d.wg.Add(2)
	go d.pollLoop(ctx)
	go d.sweepLoop(ctx)
	return nil
}

// Stop signals the loops and waits for in-flight jobs to finish
func (d *Dispatcher) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.isRunning {
		return fmt.Errorf("dispatcher not running")
	}

	d.logger.Info("🛑 Stopping job dispatcher...")
	close(d.stopChan)
	d.wg.Wait()
	d.isRunning = false
	d.logger.Info("✅ Job dispatcher stopped")
	return nil
}

func (d *Dispatcher) pollLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			// Keep draining while full batches come back.
			for {
				n, err := d.RunOnce(ctx)
				if err != nil {
					d.logger.Error("❌ Failed to claim jobs", zap.Error(err))
					break
				}
				if n < d.cfg.BatchSize || d.stopping() {
					break
				}
			}
		}
	}
}

func (d *Dispatcher) sweepLoop(ctx context.Context) {
	defer d.wg.Done()

	ticker := time.NewTicker(d.cfg.StaleAfter / 3)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopChan:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := d.jobs.ReleaseStale(ctx, d.cfg.StaleAfter)
			if err != nil {
				d.logger.Error("❌ Failed to release stale jobs", zap.Error(err))
				continue
			}
			if n > 0 {
				d.logger.Warn("🧹 Released stale jobs", zap.Int64("count", n))
			}
		}
	}
}

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.stopChan:
		return true
	default:
		return false
	}
}

// RunOnce claims one batch and executes it with at most Workers jobs in flight.
// It returns the number of jobs claimed.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	batch, err := d.jobs.ClaimBatch(ctx, d.cfg.BatchSize)
	if err != nil {
		return 0, err
	}
	if len(batch) == 0 {
		return 0, nil
	}

	var g errgroup.Group
	g.SetLimit(d.cfg.Workers)
	for i, job := range batch {
		workerID, job := i%d.cfg.Workers, job
		g.Go(func() error {
			d.execute(ctx, workerID, job)
			return nil
		})
	}
	_ = g.Wait()
	return len(batch), nil
}

func (d *Dispatcher) execute(parentCtx context.Context, workerID int, job *entities.MeetingJob) {
	log := d.logger.With(
		zap.Int("worker_id", workerID),
		zap.String("job_id", job.ID.String()),
		zap.String("meeting_id", job.MeetingID.String()),
		zap.String("job_type", string(job.JobType)),
		zap.Int("attempt", job.Attempts),
	)

	handler, ok := d.handlers[job.JobType]
	if !ok {
		job.MarkAsFailed("no handler registered", true, 0)
		d.save(parentCtx, log, job)
		log.Error("❌ No handler for job type")
		return
	}

	log.Info("👷 Worker claimed job")

	jobCtx, cancel := jobcontext.JobBegin(parentCtx, job.ID, job.MeetingID, string(job.JobType), workerID)
	err := jobcontext.JobEnd(jobCtx, func(ctx context.Context) error {
		return handler.Handle(ctx, job)
	})
	cancel()

	if err == nil {
		job.MarkAsCompleted()
		d.save(parentCtx, log, job)
		log.Info("✅ Job completed successfully")
		return
	}

	permanent := jobcontext.IsPermanent(err)
	job.MarkAsFailed(err.Error(), permanent, jobcontext.CalculateBackoff(job.Attempts, 30*time.Second))
	d.save(parentCtx, log, job)

	if permanent || !job.IsRetryable() {
		log.Error("❌ Job failed permanently", zap.Bool("permanent", permanent), zap.Error(err))
		return
	}
	log.Warn("⚠️ Job failed, will retry", zap.Time("run_after", job.RunAfter), zap.Error(err))
}

func (d *Dispatcher) save(ctx context.Context, log *zap.Logger, job *entities.MeetingJob) {
	if err := d.jobs.Save(ctx, job); err != nil {
		log.Error("❌ Failed to save job state", zap.Error(err))
	}
}
