package reconcile

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// Options tunes the reconciliation service
type Options struct {
	Windows Windows
	// Concurrency bounds how many series instances are reconciled at once
	Concurrency int
	// MaxAttempts is stamped on enqueued jobs
	MaxAttempts int
	MailTimeout time.Duration
}

// Dependencies groups the repositories the service writes through
type Dependencies struct {
	Meetings     repositories.MeetingRepository
	Users        repositories.UserRepository
	Participants repositories.ParticipantRepository
	Jobs         repositories.JobRepository
	Tx           repositories.Transactor
	Mailer       InviteMailer
}

// ReconcileService implements Service
type ReconcileService struct {
	meetings  repositories.MeetingRepository
	users     repositories.UserRepository
	resolver  *Resolver
	writer    *MergeWriter
	attendees *AttendeeReconciler
	expander  *RecurrenceExpander
	windows   Windows
	logger    *zap.Logger
}

// NewService creates a new reconciliation service
func NewService(deps Dependencies, opts Options, logger *zap.Logger) *ReconcileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Windows.Leading <= 0 {
		opts.Windows.Leading = DefaultWindows.Leading
	}
	if opts.Windows.Trailing <= 0 {
		opts.Windows.Trailing = DefaultWindows.Trailing
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}

	s := &ReconcileService{
		meetings:  deps.Meetings,
		users:     deps.Users,
		resolver:  NewResolver(deps.Meetings),
		writer:    NewMergeWriter(deps.Meetings, deps.Jobs, deps.Tx, opts.MaxAttempts, logger),
		attendees: NewAttendeeReconciler(deps.Users, deps.Participants, deps.Mailer, opts.MailTimeout, logger),
		windows:   opts.Windows,
		logger:    logger,
	}
	s.expander = newRecurrenceExpander(deps.Meetings, s.reconcileSingle, opts.Concurrency, logger)
	return s
}

// Windows returns the configured series horizons
func (s *ReconcileService) Windows() Windows {
	return s.windows
}

// Wait blocks until pending invitation emails are sent
func (s *ReconcileService) Wait() {
	s.attendees.Wait()
}

// Process folds one provider signal into the store
func (s *ReconcileService) Process(ctx context.Context, ev entities.InboundEvent) (Outcome, error) {
	if !ev.Platform.Valid() {
		return Outcome{}, entities.ErrUnsupportedPlatform
	}

	switch {
	case ev.Kind == entities.EventKindDeleted,
		ev.Series == nil && ev.Patch.Status == entities.MeetingStatusCancelled:
		return s.cancel(ctx, ev)
	case ev.Series != nil:
		return s.expander.Expand(ctx, ev)
	}

	r, err := s.reconcileSingle(ctx, single{
		Platform:        ev.Platform,
		Kind:            ev.Kind,
		Keys:            ev.Keys,
		Patch:           ev.Patch,
		Organizer:       ev.Organizer,
		OrganizerUserID: ev.OrganizerUserID,
		Attendees:       ev.Attendees,
	})
	var out Outcome
	out.add(r)
	return out, err
}

func (s *ReconcileService) cancel(ctx context.Context, ev entities.InboundEvent) (Outcome, error) {
	if ev.Keys.EventID == "" {
		return Outcome{}, entities.ErrMissingKeys
	}
	n, err := s.meetings.SoftDeleteOpen(ctx, ev.Platform, ev.Keys.EventID, ev.Keys.OccurrenceID)
	if err != nil {
		return Outcome{}, err
	}
	s.logger.Info("meeting cancelled",
		zap.String("platform", string(ev.Platform)),
		zap.String("event_id", ev.Keys.EventID),
		zap.Int64("rows", n),
	)
	return Outcome{Deleted: n}, nil
}

// reconcileSingle resolves, writes and attaches attendees for one meeting row.
// Attendee failures are logged; the meeting write still counts.
func (s *ReconcileService) reconcileSingle(ctx context.Context, in single) (singleResult, error) {
	organizer, organizerEmail, organizerCreated, err := s.resolveOrganizer(ctx, in)
	if err != nil {
		return singleResult{}, fmt.Errorf("resolve organizer: %w", err)
	}
	if organizer != nil && in.Patch.OrganizerID == nil {
		id := organizer.ID
		in.Patch.OrganizerID = &id
	}

	meeting, created, contentArrived, err := s.write(ctx, in)
	if err != nil {
		return singleResult{}, err
	}

	if organizer != nil {
		if err := s.attendees.EnsureOrganizer(ctx, meeting, organizer.ID); err != nil {
			s.logger.Warn("failed to ensure organizer", zap.String("meeting_id", meeting.ID.String()), zap.Error(err))
		}
		if organizerCreated {
			s.attendees.sendInvitation(organizer, meeting)
		}
	}

	if len(in.Attendees) > 0 {
		if _, err := s.attendees.Reconcile(ctx, meeting, organizerEmail, in.Attendees); err != nil {
			s.logger.Warn("attendee reconciliation incomplete", zap.String("meeting_id", meeting.ID.String()), zap.Error(err))
		}
		if err := s.attendees.UpdateRoles(ctx, meeting.ID, organizerEmail, in.Attendees); err != nil {
			s.logger.Warn("role update incomplete", zap.String("meeting_id", meeting.ID.String()), zap.Error(err))
		}
	}

	return singleResult{Meeting: meeting, Created: created, ContentArrived: contentArrived}, nil
}

func (s *ReconcileService) write(ctx context.Context, in single) (*entities.Meeting, bool, bool, error) {
	mode := ModeFor(in.Kind)

	existing, err := s.resolver.Resolve(ctx, in.Platform, in.Keys, mode)
	if err != nil {
		return nil, false, false, err
	}

	if existing == nil {
		m := NewMeeting(in.Platform, in.Keys, in.Patch)
		err := s.writer.Create(ctx, m)
		if err == nil {
			return m, true, m.HasContent(), nil
		}
		if !errors.Is(err, entities.ErrDuplicate) {
			return nil, false, false, err
		}

		// A concurrent delivery inserted the same identity; merge into it.
		existing, err = s.resolveWinner(ctx, in, mode)
		if err != nil {
			return nil, false, false, err
		}
	}

	res, err := s.writer.Apply(ctx, existing, in.Patch)
	if err != nil {
		return nil, false, false, err
	}
	return res.Meeting, false, res.ContentArrived, nil
}

func (s *ReconcileService) resolveWinner(ctx context.Context, in single, mode MatchMode) (*entities.Meeting, error) {
	existing, err := s.resolver.Resolve(ctx, in.Platform, in.Keys, mode)
	if err != nil {
		return nil, err
	}
	if existing == nil && mode == MatchSchedule {
		// The winner may carry a different schedule than this report.
		existing, err = s.resolver.Resolve(ctx, in.Platform, in.Keys, MatchIdentity)
		if err != nil {
			return nil, err
		}
	}
	if existing == nil {
		return nil, fmt.Errorf("meeting insert conflicted but no row matches %s/%s: %w",
			in.Platform, in.Keys.EventID, entities.ErrDuplicate)
	}
	return existing, nil
}

// resolveOrganizer returns the organizer user, its email and whether this call
// created the user as an invite stub.
func (s *ReconcileService) resolveOrganizer(ctx context.Context, in single) (*entities.User, string, bool, error) {
	var email string
	if in.Organizer != nil {
		email = entities.NormalizeEmail(in.Organizer.Email)
	}

	if in.OrganizerUserID != nil && *in.OrganizerUserID != uuid.Nil {
		user, err := s.users.FindByID(ctx, *in.OrganizerUserID)
		if err != nil {
			return nil, "", false, err
		}
		if email == "" {
			email = user.Email
		}
		return user, email, false, nil
	}

	if email == "" {
		return nil, "", false, nil
	}
	user, created, err := s.attendees.FindOrInvite(ctx, *in.Organizer)
	if err != nil {
		return nil, "", false, err
	}
	return user, email, created, nil
}
