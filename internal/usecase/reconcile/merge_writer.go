package reconcile

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// MergeWriter persists meetings and enqueues the downstream jobs their content
// triggers in the same transaction.
type MergeWriter struct {
	meetings    repositories.MeetingRepository
	jobs        repositories.JobRepository
	tx          repositories.Transactor
	maxAttempts int
	logger      *zap.Logger
}

// NewMergeWriter creates a new merge writer
func NewMergeWriter(
	meetings repositories.MeetingRepository,
	jobs repositories.JobRepository,
	tx repositories.Transactor,
	maxAttempts int,
	logger *zap.Logger,
) *MergeWriter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MergeWriter{
		meetings:    meetings,
		jobs:        jobs,
		tx:          tx,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

// Create inserts a new meeting. It returns entities.ErrDuplicate when a concurrent
// delivery created the same identity first; the caller re-resolves and merges.
func (w *MergeWriter) Create(ctx context.Context, meeting *entities.Meeting) error {
	err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := w.meetings.Insert(ctx, meeting); err != nil {
			return err
		}

		types := []entities.JobType{entities.JobTypeAgendaScoring}
		if meeting.HasContent() {
			types = append(types, entities.ContentJobTypes...)
		}
		if meeting.Transcript != "" && meeting.Summary == "" {
			types = append(types, entities.JobTypeSummarize)
		}
		return w.enqueue(ctx, meeting, types)
	})
	if err != nil {
		if errors.Is(err, entities.ErrDuplicate) {
			return entities.ErrDuplicate
		}
		return fmt.Errorf("create meeting: %w", err)
	}

	w.logger.Info("meeting created",
		zap.String("meeting_id", meeting.ID.String()),
		zap.String("platform", string(meeting.Platform)),
		zap.String("event_id", meeting.EventID),
	)
	return nil
}

// Apply merges patch into the stored row. The row is re-read under lock so
// concurrent merges into the same meeting serialize.
func (w *MergeWriter) Apply(ctx context.Context, existing *entities.Meeting, patch entities.MeetingPatch) (MergeResult, error) {
	var result MergeResult
	err := w.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := w.meetings.FindByIDForUpdate(ctx, existing.ID)
		if err != nil {
			return err
		}

		result = Merge(current, patch)
		if len(result.Changed) == 0 {
			return nil
		}
		if err := w.meetings.Update(ctx, result.Meeting, result.Changed); err != nil {
			return err
		}

		var types []entities.JobType
		if result.ContentArrived {
			types = append(types, entities.ContentJobTypes...)
		}
		if result.NeedsSummary {
			types = append(types, entities.JobTypeSummarize)
		}
		return w.enqueue(ctx, result.Meeting, types)
	})
	if err != nil {
		return MergeResult{}, fmt.Errorf("merge meeting %s: %w", existing.ID, err)
	}

	if len(result.Changed) > 0 {
		w.logger.Info("meeting merged",
			zap.String("meeting_id", existing.ID.String()),
			zap.Strings("changed", result.Changed),
			zap.Bool("content_arrived", result.ContentArrived),
		)
	}
	return result, nil
}

func (w *MergeWriter) enqueue(ctx context.Context, meeting *entities.Meeting, types []entities.JobType) error {
	for _, t := range types {
		created, err := w.jobs.Enqueue(ctx, entities.NewMeetingJob(meeting.ID, t, w.maxAttempts))
		if err != nil {
			return err
		}
		if created {
			w.logger.Debug("job enqueued",
				zap.String("meeting_id", meeting.ID.String()),
				zap.String("job_type", string(t)),
			)
		}
	}
	return nil
}
