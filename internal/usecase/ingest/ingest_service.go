package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/internal/usecase/reconcile"
)

// ReportLookup finds rows already carrying a report id
type ReportLookup interface {
	FindByReportID(ctx context.Context, platform entities.Platform, reportID string) (*entities.Meeting, error)
}

// ConnectionLookup resolves which connected user a notification belongs to
type ConnectionLookup interface {
	FindByUser(ctx context.Context, platform entities.Platform, userID uuid.UUID) (*entities.PlatformConnection, error)
	FindBySubscriptionID(ctx context.Context, subscriptionID string) (*entities.PlatformConnection, error)
	FindByAccountID(ctx context.Context, platform entities.Platform, accountID string) (*entities.PlatformConnection, error)
	ListConnected(ctx context.Context, platform entities.Platform) ([]*entities.PlatformConnection, error)
}

// Deps holds the collaborators of the ingest service. A nil provider client
// disables that platform.
type Deps struct {
	Reconciler  reconcile.Service
	Connections ConnectionLookup
	Reports     ReportLookup
	Teams       TeamsAPI
	Zoom        ZoomAPI
	Gmeet       GmeetAPI
	// Cursors keeps the Calendar sync position per user
	Cursors cache.Store
	Logger  *zap.Logger
}

// IngestService implements Service
type IngestService struct {
	reconciler reconcile.Service
	conns      ConnectionLookup
	reports    ReportLookup
	teams      TeamsAPI
	zoom       ZoomAPI
	gmeet      GmeetAPI
	cursors    cache.Store
	logger     *zap.Logger
	now        func() time.Time
}

// NewIngestService creates a new ingest service
func NewIngestService(d Deps) *IngestService {
	logger := d.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IngestService{
		reconciler: d.Reconciler,
		conns:      d.Connections,
		reports:    d.Reports,
		teams:      d.Teams,
		zoom:       d.Zoom,
		gmeet:      d.Gmeet,
		cursors:    d.Cursors,
		logger:     logger,
		now:        time.Now,
	}
}

// process hands one signal to the reconciler and logs what it did
func (s *IngestService) process(ctx context.Context, in entities.InboundEvent) error {
	out, err := s.reconciler.Process(ctx, in)
	if err != nil {
		return fmt.Errorf("failed to reconcile %s %s event %q: %w", in.Platform, in.Kind, in.Keys.EventID, err)
	}
	s.logger.Info("Inbound event reconciled",
		zap.String("platform", string(in.Platform)),
		zap.String("kind", string(in.Kind)),
		zap.String("event_id", in.Keys.EventID),
		zap.Int("meetings", len(out.MeetingIDs)),
		zap.Int("created", out.Created),
		zap.Int("merged", out.Merged),
		zap.Int64("deleted", out.Deleted),
	)
	return nil
}

// alreadyReported reports whether a finished session was stored with its transcript
func (s *IngestService) alreadyReported(ctx context.Context, platform entities.Platform, reportID string) bool {
	if s.reports == nil || reportID == "" {
		return false
	}
	m, err := s.reports.FindByReportID(ctx, platform, reportID)
	return err == nil && m.Transcript != ""
}

func connected(conn *entities.PlatformConnection, err error) (*entities.PlatformConnection, error) {
	if err != nil {
		return nil, err
	}
	if !conn.IsConnected {
		return nil, entities.ErrNotConnected
	}
	return conn, nil
}

// leading is the horizon series are expanded over right now
func (s *IngestService) leading() entities.Window {
	return s.reconciler.Windows().LeadingFrom(s.now())
}

// PollReports fetches finished sessions of one connection inside w
func (s *IngestService) PollReports(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error) {
	switch conn.Platform {
	case entities.PlatformTeams:
		if s.teams == nil {
			return 0, entities.ErrUnsupportedPlatform
		}
		return s.pollTeams(ctx, conn, w)
	case entities.PlatformZoom:
		if s.zoom == nil {
			return 0, entities.ErrUnsupportedPlatform
		}
		return s.pollZoom(ctx, conn, w)
	case entities.PlatformGmeet:
		if s.gmeet == nil {
			return 0, entities.ErrUnsupportedPlatform
		}
		return s.pollGmeet(ctx, conn, w)
	default:
		return 0, entities.ErrUnsupportedPlatform
	}
}

func (s *IngestService) warn(msg string, conn *entities.PlatformConnection, err error, fields ...zap.Field) {
	if errors.Is(err, context.Canceled) {
		return
	}
	fields = append(fields,
		zap.String("platform", string(conn.Platform)),
		zap.String("user_id", conn.UserID.String()),
		zap.Error(err),
	)
	s.logger.Warn(msg, fields...)
}
