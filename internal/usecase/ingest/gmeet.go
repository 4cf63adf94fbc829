package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/cache"
	"github.com/johnquangdev/meeting-sync/internal/infrastructure/external/gmeet"
)

const (
	cursorPrefix = "gmeet:cursor:"
	cursorTTL    = 30 * 24 * time.Hour
	// first sync after connecting looks this far back
	initialLookback = time.Hour
	// overlap absorbs clock skew between us and Calendar
	cursorOverlap = time.Minute
)

func (s *IngestService) cursor(ctx context.Context, conn *entities.PlatformConnection) time.Time {
	fallback := s.now().Add(-initialLookback)
	if s.cursors == nil {
		return fallback
	}
	v, err := s.cursors.Get(ctx, cursorPrefix+conn.UserID.String())
	if err != nil {
		if !errors.Is(err, cache.ErrMiss) {
			s.warn("Failed to read sync cursor", conn, err)
		}
		return fallback
	}
	t, err := time.Parse(time.RFC3339, v)
	if err != nil {
		return fallback
	}
	return t
}

func (s *IngestService) saveCursor(ctx context.Context, conn *entities.PlatformConnection, t time.Time) {
	if s.cursors == nil {
		return
	}
	v := t.Add(-cursorOverlap).UTC().Format(time.RFC3339)
	if err := s.cursors.Set(ctx, cursorPrefix+conn.UserID.String(), v, cursorTTL); err != nil {
		s.warn("Failed to store sync cursor", conn, err)
	}
}

// GmeetCalendarChange pulls the calendar changes behind a push ping. The
// "sync" state only confirms a new channel.
func (s *IngestService) GmeetCalendarChange(ctx context.Context, channelID, resourceState string) error {
	if s.gmeet == nil {
		return entities.ErrUnsupportedPlatform
	}
	if resourceState == "sync" {
		return nil
	}
	userID, ok := gmeet.UserFromChannel(channelID)
	if !ok {
		return fmt.Errorf("unknown channel %q: %w", channelID, entities.ErrConnectionNotFound)
	}
	conn, err := connected(s.conns.FindByUser(ctx, entities.PlatformGmeet, userID))
	if err != nil {
		return fmt.Errorf("failed to resolve connection of channel %q: %w", channelID, err)
	}

	started := s.now()
	events, err := s.gmeet.ListUpdated(ctx, conn, s.cursor(ctx, conn))
	if err != nil {
		return fmt.Errorf("failed to list calendar changes: %w", err)
	}
	var errs []error
	for i := range events {
		if err := s.gmeetEvent(ctx, conn, &events[i]); err != nil {
			s.warn("Failed to reconcile calendar change", conn, err, zap.String("event_id", events[i].ID))
			errs = append(errs, err)
		}
	}
	// Failed events are logged, not replayed.
	s.saveCursor(ctx, conn, started)
	return errors.Join(errs...)
}

func (s *IngestService) gmeetEvent(ctx context.Context, conn *entities.PlatformConnection, ev *gmeet.Event) error {
	if !ev.IsSeries() || ev.IsCancelled() {
		return s.process(ctx, gmeet.ToInbound(ev, entities.EventKindUpdated, conn))
	}
	w := s.leading()
	exceptions, err := s.gmeet.ListExceptions(ctx, conn, ev.ID, w)
	if err != nil {
		return fmt.Errorf("failed to list exceptions of %q: %w", ev.ID, err)
	}
	occurrences, err := gmeet.Expand(ev, exceptions, w)
	if err != nil {
		return fmt.Errorf("failed to expand series %q: %w", ev.ID, err)
	}
	return s.process(ctx, gmeet.SeriesToInbound(ev, entities.EventKindUpdated, conn, occurrences, w))
}

// GmeetConference handles a Meet conference event delivered by Pub/Sub
func (s *IngestService) GmeetConference(ctx context.Context, env *gmeet.PushEnvelope) error {
	if s.gmeet == nil {
		return entities.ErrUnsupportedPlatform
	}
	switch env.Type() {
	case gmeet.ConferenceEnded, gmeet.TranscriptGenerated:
	default:
		s.logger.Debug("Ignoring Meet event", zap.String("type", env.Type()))
		return nil
	}
	conn, err := connected(s.conns.FindBySubscriptionID(ctx, env.SubscriptionID()))
	if err != nil {
		return fmt.Errorf("failed to resolve Meet subscription %q: %w", env.SubscriptionID(), err)
	}
	payload, err := env.Payload()
	if err != nil {
		return fmt.Errorf("failed to decode Meet event: %w", err)
	}
	name := payload.RecordName()
	if name == "" {
		return fmt.Errorf("meet event without conference record: %w", entities.ErrMissingKeys)
	}
	rec, err := s.gmeet.GetConferenceRecord(ctx, conn, name)
	if err != nil {
		return fmt.Errorf("failed to fetch conference record %q: %w", name, err)
	}
	return s.gmeetReport(ctx, conn, rec, nil)
}

// gmeetReport reconciles one finished session. ev is the calendar entry when
// the caller already knows it.
func (s *IngestService) gmeetReport(ctx context.Context, conn *entities.PlatformConnection, rec *gmeet.ConferenceRecord, ev *gmeet.Event) error {
	var code string
	if ev != nil {
		code = ev.MeetingCode()
	} else if rec.Space != "" {
		sp, err := s.gmeet.GetSpace(ctx, conn, rec.Space)
		if err != nil {
			s.warn("Failed to fetch Meet space", conn, err, zap.String("space", rec.Space))
		} else {
			code = sp.MeetingCode
		}
		if code != "" {
			w := entities.Window{Start: rec.StartTime.Add(-12 * time.Hour), End: rec.StartTime.Add(12 * time.Hour)}
			if ev, err = s.gmeet.FindEventByMeetingCode(ctx, conn, code, w); err != nil {
				s.warn("Failed to find calendar entry", conn, err, zap.String("meeting_code", code))
			}
		}
	}

	return s.process(ctx, gmeet.ReportToInbound(gmeet.ReportInput{
		Record:     rec,
		Event:      ev,
		Transcript: s.gmeetTranscript(ctx, conn, rec.Name),
		Owner:      conn,
	}, code))
}

func (s *IngestService) gmeetTranscript(ctx context.Context, conn *entities.PlatformConnection, recordName string) string {
	list, err := s.gmeet.ListTranscripts(ctx, conn, recordName)
	if err != nil {
		s.warn("Failed to list transcripts", conn, err, zap.String("record", recordName))
		return ""
	}
	for _, t := range list {
		if !t.Ready() {
			continue
		}
		text, err := s.gmeet.ExportText(ctx, conn, t.DocsDestination.Document)
		if err != nil {
			s.warn("Failed to export transcript", conn, err, zap.String("transcript", t.Name))
			continue
		}
		return text
	}
	return ""
}

func (s *IngestService) pollGmeet(ctx context.Context, conn *entities.PlatformConnection, w entities.Window) (int, error) {
	events, err := s.gmeet.ListEvents(ctx, conn, w)
	if err != nil {
		return 0, fmt.Errorf("failed to list calendar events: %w", err)
	}
	now := s.now()
	count := 0
	var errs []error
	for i := range events {
		ev := &events[i]
		start, ok := ev.Start.Time()
		code := ev.MeetingCode()
		if ev.IsCancelled() || code == "" || !ok || start.After(now) {
			continue
		}
		end, ok := ev.End.Time()
		if !ok {
			end = start
		}
		// a recurring entry reuses its code, so only sessions near this slot count
		slot := entities.Window{Start: start.Add(-reportSlack), End: end.Add(reportSlack)}
		records, err := s.gmeet.ListConferenceRecords(ctx, conn, code, slot)
		if err != nil {
			errs = append(errs, fmt.Errorf("failed to list sessions of %q: %w", code, err))
			continue
		}
		for j := range records {
			if s.alreadyReported(ctx, entities.PlatformGmeet, records[j].ID()) {
				continue
			}
			if err := s.gmeetReport(ctx, conn, &records[j], ev); err != nil {
				errs = append(errs, err)
				continue
			}
			count++
		}
	}
	return count, errors.Join(errs...)
}
