package poller

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/usecase/reconcile"
	"github.com/johnquangdev/meeting-sync/pkg/config"
)

// ConnectionLister lists the connections to poll
type ConnectionLister interface {
	ListConnected(ctx context.Context, platform entities.Platform) ([]*entities.PlatformConnection, error)
}

// ReportSource fetches finished sessions of one connection
type ReportSource interface {
	PollReports(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error)
}

// SubscriptionKeeper keeps a connection's webhooks alive
type SubscriptionKeeper interface {
	RenewSubscriptions(ctx context.Context, conn *entities.PlatformConnection) error
}

// Result summarizes one polling round
type Result struct {
	Connections int
	Reports     int
	Failures    int
}

// Poller periodically pulls finished meetings for every connected user.
// Webhooks remain the primary path; polling catches what they missed.
type Poller struct {
	conns   ConnectionLister
	reports ReportSource
	keeper  SubscriptionKeeper
	windows reconcile.Windows
	cfg     config.PollerConfig
	logger  *zap.Logger
	now     func() time.Time

	renewMu sync.Mutex
	renewed map[uuid.UUID]time.Time

	stopChan  chan struct{}
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewPoller creates a poller. keeper may be nil.
func NewPoller(conns ConnectionLister, reports ReportSource, keeper SubscriptionKeeper, windows reconcile.Windows, cfg config.PollerConfig, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 15 * time.Minute
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	if cfg.RenewEvery <= 0 {
		cfg.RenewEvery = 24 * time.Hour
	}
	return &Poller{
		conns:   conns,
		reports: reports,
		keeper:  keeper,
		windows: windows,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		renewed: make(map[uuid.UUID]time.Time),
	}
}

// Start launches the polling loop
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.isRunning {
		return fmt.Errorf("poller already running")
	}
	p.isRunning = true
	p.stopChan = make(chan struct{})

	p.logger.Info("🚀 Starting report poller",
		zap.Duration("interval", p.cfg.Interval),
		zap.Duration("trailing_window", p.windows.Trailing),
	)

	p.wg.Add(1)
	go p.loop(ctx)
	return nil
}

// Stop signals the loop and waits for the current round to finish
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.isRunning {
		return fmt.Errorf("poller not running")
	}

	p.logger.Info("🛑 Stopping report poller...")
	close(p.stopChan)
	p.wg.Wait()
	p.isRunning = false
	p.logger.Info("✅ Report poller stopped")
	return nil
}

func (p *Poller) loop(ctx context.Context) {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// cancel the in-flight round when Stop is called
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-p.stopChan:
			cancel()
		case <-ctx.Done():
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			res, err := p.RunOnce(ctx)
			if err != nil {
				p.logger.Error("❌ Failed to list connections", zap.Error(err))
				continue
			}
			p.logger.Info("📥 Report poll finished",
				zap.Int("connections", res.Connections),
				zap.Int("reports", res.Reports),
				zap.Int("failures", res.Failures),
			)
		}
	}
}

// RunOnce polls every connected user once. Per-connection failures are
// logged and counted; only failing to list connections is returned.
func (p *Poller) RunOnce(ctx context.Context) (Result, error) {
	conns, err := p.conns.ListConnected(ctx, "")
	if err != nil {
		return Result{}, err
	}

	w := p.windows.TrailingFrom(p.now())
	var reports, failures atomic.Int64

	var g errgroup.Group
	g.SetLimit(p.cfg.Concurrency)
	for _, conn := range conns {
		conn := conn
		g.Go(func() error {
			log := p.logger.With(
				zap.String("platform", string(conn.Platform)),
				zap.String("user_id", conn.UserID.String()),
			)
			p.renew(ctx, conn, log)

			n, err := p.reports.PollReports(ctx, conn, w)
			reports.Add(int64(n))
			if err != nil && !errors.Is(err, context.Canceled) {
				failures.Add(1)
				log.Warn("⚠️ Report poll failed", zap.Error(err))
			}
			return nil
		})
	}
	_ = g.Wait()

	return Result{
		Connections: len(conns),
		Reports:     int(reports.Load()),
		Failures:    int(failures.Load()),
	}, nil
}

// renew refreshes a connection's webhooks once per RenewEvery
func (p *Poller) renew(ctx context.Context, conn *entities.PlatformConnection, log *zap.Logger) {
	if p.keeper == nil {
		return
	}
	now := p.now()
	p.renewMu.Lock()
	last, ok := p.renewed[conn.ID]
	due := !ok || now.Sub(last) >= p.cfg.RenewEvery
	if due {
		p.renewed[conn.ID] = now
	}
	p.renewMu.Unlock()
	if !due {
		return
	}

	if err := p.keeper.RenewSubscriptions(ctx, conn); err != nil {
		// try again next round
		p.renewMu.Lock()
		delete(p.renewed, conn.ID)
		p.renewMu.Unlock()
		log.Warn("⚠️ Failed to renew subscriptions", zap.Error(err))
	}
}
