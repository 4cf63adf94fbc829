package ingest

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/zoom"
)

// zoomConnection resolves the host of a webhook object. Connections store
// the Zoom user id as their account id; older rows may hold the account.
func (s *IngestService) zoomConnection(ctx context.Context, ev *zoom.WebhookEvent) (*entities.PlatformConnection, error) {
	err := entities.ErrConnectionNotFound
	var conn *entities.PlatformConnection
	if host := ev.HostOf(); host != "" {
		conn, err = s.conns.FindByAccountID(ctx, entities.PlatformZoom, host)
	}
	if errors.Is(err, entities.ErrConnectionNotFound) && ev.Payload.AccountID != "" {
		conn, err = s.conns.FindByAccountID(ctx, entities.PlatformZoom, ev.Payload.AccountID)
	}
	return connected(conn, err)
}

// ZoomEvent handles a verified Zoom webhook
func (s *IngestService) ZoomEvent(ctx context.Context, ev *zoom.WebhookEvent) error {
	if s.zoom == nil {
		return entities.ErrUnsupportedPlatform
	}
	switch ev.Event {
	case zoom.EventMeetingCreated, zoom.EventMeetingUpdated, zoom.EventMeetingDeleted,
		zoom.EventRecordingCompleted, zoom.EventTranscriptCompleted:
	default:
		s.logger.Debug("Ignoring Zoom event", zap.String("event", ev.Event))
		return nil
	}

	if ev.Event == zoom.EventMeetingDeleted {
		m, err := ev.Meeting()
		if err != nil {
			return fmt.Errorf("failed to decode meeting: %w", err)
		}
		var errs []error
		for _, in := range zoom.DeletedToInbound(m) {
			errs = append(errs, s.process(ctx, in))
		}
		return errors.Join(errs...)
	}

	conn, err := s.zoomConnection(ctx, ev)
	if err != nil {
		return fmt.Errorf("failed to resolve Zoom host: %w", err)
	}

	switch ev.Event {
	case zoom.EventMeetingCreated, zoom.EventMeetingUpdated:
		m, err := ev.Meeting()
		if err != nil {
			return fmt.Errorf("failed to decode meeting: %w", err)
		}
		full, err := s.zoom.GetMeeting(ctx, conn, m.ID.String())
		if errors.Is(err, entities.ErrMeetingNotFound) {
			s.logger.Info("Zoom meeting vanished before it could be read", zap.String("meeting_id", m.ID.String()))
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to fetch meeting %s: %w", m.ID, err)
		}
		kind := entities.EventKindUpdated
		if ev.Event == zoom.EventMeetingCreated {
			kind = entities.EventKindCreated
		}
		return s.process(ctx, zoom.MeetingToInbound(full, kind, conn, s.leading()))
	default:
		rec, err := ev.Recording()
		if err != nil {
			return fmt.Errorf("failed to decode recording: %w", err)
		}
		return s.zoomRecording(ctx, conn, rec)
	}
}

// zoomRecording reconciles one finished session. A session without a
// recording yet still lands with its attendance.
func (s *IngestService) zoomRecording(ctx context.Context, conn *entities.PlatformConnection, rec *zoom.Recording) error {
	if _, ok := rec.Transcript(); !ok {
		full, err := s.zoom.GetRecording(ctx, conn, rec.UUID)
		switch {
		case errors.Is(err, entities.ErrNoRecording):
			s.logger.Info("No recording yet", zap.String("meeting_uuid", rec.UUID))
		case err != nil:
			return fmt.Errorf("failed to fetch recording %q: %w", rec.UUID, err)
		default:
			rec = full
		}
	}

	var transcript string
	if f, ok := rec.Transcript(); ok {
		text, err := s.zoom.DownloadTranscript(ctx, conn, f)
		if err != nil {
			s.warn("Failed to download transcript", conn, err, zap.String("meeting_uuid", rec.UUID))
		}
		transcript = text
	}

	participants, err := s.zoom.ListParticipants(ctx, conn, rec.UUID)
	if err != nil {
		s.warn("Failed to list participants", conn, err, zap.String("meeting_uuid", rec.UUID))
	}

	schedule, err := s.zoom.GetMeeting(ctx, conn, rec.ID.String())
	if err != nil {
		if !errors.Is(err, entities.ErrMeetingNotFound) {
			s.warn("Failed to fetch schedule", conn, err, zap.String("meeting_id", rec.ID.String()))
		}
		schedule = nil
	}

	return s.process(ctx, zoom.ReportToInbound(zoom.ReportInput{
		Recording:    rec,
		Schedule:     schedule,
		Transcript:   transcript,
		Participants: participants,
		Owner:        conn,
	}))
}

func (s *IngestService) pollZoom(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error) {
	recs, err := s.zoom.ListRecordings(ctx, conn, w)
	if err != nil {
		return 0, fmt.Errorf("failed to list recordings: %w", err)
	}
	count := 0
	var errs []error
	for i := range recs {
		if s.alreadyReported(ctx, entities.PlatformZoom, recs[i].UUID) {
			continue
		}
		if err := s.zoomRecording(ctx, conn, &recs[i]); err != nil {
			errs = append(errs, err)
			continue
		}
		count++
	}
	return count, errors.Join(errs...)
}
