package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

type occurrenceFunc func(ctx context.Context, s single) (singleResult, error)

// RecurrenceExpander reconciles every instance of a recurring series and
// removes open instances the provider no longer lists.
type RecurrenceExpander struct {
	meetings    repositories.MeetingRepository
	reconcile   occurrenceFunc
	concurrency int
	logger      *zap.Logger
}

func newRecurrenceExpander(meetings repositories.MeetingRepository, fn occurrenceFunc, concurrency int, logger *zap.Logger) *RecurrenceExpander {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &RecurrenceExpander{
		meetings:    meetings,
		reconcile:   fn,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Expand reconciles ev.Series. Instances are processed independently: one
// failing occurrence does not stop the rest, and all failures are joined.
// Rows scheduled outside the series window are never touched.
func (e *RecurrenceExpander) Expand(ctx context.Context, ev entities.InboundEvent) (Outcome, error) {
	if ev.Series == nil {
		return Outcome{}, nil
	}
	if ev.Keys.EventID == "" {
		return Outcome{}, entities.ErrMissingKeys
	}

	var (
		mu      sync.Mutex
		outcome Outcome
		errs    []error
		seen    = make(map[string]struct{}, len(ev.Series.Occurrences))
	)
	record := func(r singleResult, deleted int64, err error) {
		mu.Lock()
		defer mu.Unlock()
		if err != nil {
			errs = append(errs, err)
			return
		}
		outcome.add(r)
		outcome.Deleted += deleted
	}

	var g errgroup.Group
	g.SetLimit(e.concurrency)

	for _, occ := range ev.Series.Occurrences {
		if occ.OccurrenceID == "" {
			continue
		}
		seen[occ.OccurrenceID] = struct{}{}
		occ := occ

		g.Go(func() error {
			occurrenceID := occ.OccurrenceID
			if occ.Cancelled {
				n, err := e.meetings.SoftDeleteOpen(ctx, ev.Platform, ev.Keys.EventID, &occurrenceID)
				if err != nil {
					err = fmt.Errorf("cancel occurrence %s: %w", occurrenceID, err)
				}
				record(singleResult{}, n, err)
				return nil
			}

			r, err := e.reconcile(ctx, occurrenceSingle(ev, occ))
			if err != nil {
				err = fmt.Errorf("occurrence %s: %w", occurrenceID, err)
			}
			record(r, 0, err)
			return nil
		})
	}
	_ = g.Wait()

	stale, err := e.removeStale(ctx, ev, seen)
	if err != nil {
		errs = append(errs, err)
	}
	outcome.Deleted += stale

	e.logger.Info("series reconciled",
		zap.String("platform", string(ev.Platform)),
		zap.String("event_id", ev.Keys.EventID),
		zap.Int("occurrences", len(ev.Series.Occurrences)),
		zap.Int("created", outcome.Created),
		zap.Int("merged", outcome.Merged),
		zap.Int64("deleted", outcome.Deleted),
		zap.Int("failed", len(errs)),
	)
	return outcome, errors.Join(errs...)
}

func (e *RecurrenceExpander) removeStale(ctx context.Context, ev entities.InboundEvent, seen map[string]struct{}) (int64, error) {
	window := ev.Series.Window
	if window.Start.IsZero() || window.End.IsZero() {
		return 0, nil
	}

	rows, err := e.meetings.ListOpenInstances(ctx, ev.Platform, ev.Keys.EventID, window)
	if err != nil {
		return 0, fmt.Errorf("list series instances: %w", err)
	}

	var deleted int64
	for _, m := range rows {
		if m.OccurrenceID == nil || m.IsFinal() {
			continue
		}
		if _, ok := seen[*m.OccurrenceID]; ok {
			continue
		}
		if err := e.meetings.SoftDelete(ctx, m.ID); err != nil {
			return deleted, fmt.Errorf("remove instance %s: %w", *m.OccurrenceID, err)
		}
		deleted++
		e.logger.Info("removed stale instance",
			zap.String("meeting_id", m.ID.String()),
			zap.String("occurrence_id", *m.OccurrenceID),
		)
	}
	return deleted, nil
}

// occurrenceSingle builds the per-instance request: series fields overlaid
// with whatever the occurrence overrides.
func occurrenceSingle(ev entities.InboundEvent, occ entities.Occurrence) single {
	occurrenceID := occ.OccurrenceID
	start := occ.Start.UTC()
	keys := entities.KeyBag{
		PlatformMeetingID: ev.Keys.PlatformMeetingID,
		EventID:           ev.Keys.EventID,
		OccurrenceID:      &occurrenceID,
		ScheduledStart:    &start,
	}
	if occ.Duration > 0 {
		keys.ScheduledDuration = entities.IntPtr(occ.Duration)
	}

	patch := overlay(ev.Patch, occ.Patch)
	patch.ScheduledStart = keys.ScheduledStart
	if keys.ScheduledDuration != nil {
		patch.ScheduledDuration = keys.ScheduledDuration
	}

	attendees := ev.Attendees
	if occ.Attendees != nil {
		attendees = occ.Attendees
	}

	return single{
		Platform:        ev.Platform,
		Kind:            ev.Kind,
		Keys:            keys,
		Patch:           patch,
		Organizer:       ev.Organizer,
		OrganizerUserID: ev.OrganizerUserID,
		Attendees:       attendees,
	}
}

func overlay(base, over entities.MeetingPatch) entities.MeetingPatch {
	str := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	str(&base.Title, over.Title)
	str(&base.Description, over.Description)
	str(&base.Summary, over.Summary)
	str(&base.Transcript, over.Transcript)
	str(&base.RecordLink, over.RecordLink)
	str(&base.JoinURL, over.JoinURL)
	str(&base.SummaryModel, over.SummaryModel)

	if over.PlatformMeetingID != nil {
		base.PlatformMeetingID = over.PlatformMeetingID
	}
	if over.ReportID != nil {
		base.ReportID = over.ReportID
	}
	if over.OrganizerID != nil {
		base.OrganizerID = over.OrganizerID
		base.ForceOrganizer = over.ForceOrganizer
	}
	if over.ActualStart != nil {
		base.ActualStart = over.ActualStart
	}
	if over.ActualDuration != nil {
		base.ActualDuration = over.ActualDuration
	}
	if over.Status != "" {
		base.Status = over.Status
	}
	return base
}
