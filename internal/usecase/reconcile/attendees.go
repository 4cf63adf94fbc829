package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// InviteMailer sends the invitation email to a freshly created stub user
type InviteMailer interface {
	SendInvitation(ctx context.Context, user *entities.User, meeting *entities.Meeting) error
}

// AttendeeResult counts what Reconcile did
type AttendeeResult struct {
	Added   int
	Invited int
	Skipped int
}

// AttendeeReconciler keeps meeting participants in sync with provider attendee lists
type AttendeeReconciler struct {
	users        repositories.UserRepository
	participants repositories.ParticipantRepository
	mailer       InviteMailer
	mailTimeout  time.Duration
	logger       *zap.Logger

	wg sync.WaitGroup
}

// NewAttendeeReconciler creates a new attendee reconciler. mailer may be nil.
func NewAttendeeReconciler(
	users repositories.UserRepository,
	participants repositories.ParticipantRepository,
	mailer InviteMailer,
	mailTimeout time.Duration,
	logger *zap.Logger,
) *AttendeeReconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if mailTimeout <= 0 {
		mailTimeout = 30 * time.Second
	}
	return &AttendeeReconciler{
		users:        users,
		participants: participants,
		mailer:       mailer,
		mailTimeout:  mailTimeout,
		logger:       logger,
	}
}

// FindOrInvite returns the user owning the email, creating an invite stub when
// nobody does. created is true only for the call whose insert won.
func (a *AttendeeReconciler) FindOrInvite(ctx context.Context, ref entities.AttendeeRef) (*entities.User, bool, error) {
	ref = ref.Normalized()
	if ref.Email == "" {
		return nil, false, entities.ErrInvalidEmail
	}

	user, err := a.users.FindByEmail(ctx, ref.Email)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, entities.ErrUserNotFound) {
		return nil, false, err
	}

	stub := entities.NewInviteStub(ref.Email, ref.DisplayName)
	created, err := a.users.CreateIfAbsent(ctx, stub)
	if err != nil {
		return nil, false, err
	}
	if created {
		return stub, true, nil
	}

	// Lost the race to another delivery; read the winner.
	user, err = a.users.FindByEmail(ctx, ref.Email)
	if err != nil {
		return nil, false, err
	}
	return user, false, nil
}

// Reconcile adds every attendee as a participant of the meeting.
// A failure on one attendee does not stop the others; all failures are joined.
func (a *AttendeeReconciler) Reconcile(ctx context.Context, meeting *entities.Meeting, organizerEmail string, attendees []entities.AttendeeRef) (AttendeeResult, error) {
	var result AttendeeResult
	var errs []error

	for _, ref := range dedupe(attendees, organizerEmail) {
		user, created, err := a.FindOrInvite(ctx, ref)
		if err != nil {
			errs = append(errs, fmt.Errorf("attendee %s: %w", ref.Email, err))
			continue
		}

		added, err := a.participants.Ensure(ctx, entities.NewMeetingParticipant(meeting.ID, user.ID, entities.ParticipantRoleNewInvite))
		if err != nil {
			errs = append(errs, fmt.Errorf("participant %s: %w", ref.Email, err))
			continue
		}
		if added {
			result.Added++
		} else {
			result.Skipped++
		}

		if created {
			result.Invited++
			a.sendInvitation(user, meeting)
		}
	}

	if len(errs) > 0 {
		a.logger.Warn("some attendees could not be reconciled",
			zap.String("meeting_id", meeting.ID.String()),
			zap.Int("failed", len(errs)),
		)
	}
	return result, errors.Join(errs...)
}

// EnsureOrganizer records userID as the meeting organizer
func (a *AttendeeReconciler) EnsureOrganizer(ctx context.Context, meeting *entities.Meeting, userID uuid.UUID) error {
	if err := a.participants.SetOrganizer(ctx, meeting.ID, userID); err != nil {
		return fmt.Errorf("ensure organizer: %w", err)
	}
	return nil
}

// UpdateRoles maps provider response statuses onto existing participants.
// It never creates users or participants and never touches the organizer.
func (a *AttendeeReconciler) UpdateRoles(ctx context.Context, meetingID uuid.UUID, organizerEmail string, attendees []entities.AttendeeRef) error {
	var errs []error
	for _, ref := range dedupe(attendees, organizerEmail) {
		if ref.ResponseStatus == "" {
			continue
		}
		user, err := a.users.FindByEmail(ctx, ref.Email)
		if err != nil {
			if !errors.Is(err, entities.ErrUserNotFound) {
				errs = append(errs, fmt.Errorf("role %s: %w", ref.Email, err))
			}
			continue
		}
		if _, err := a.participants.UpdateRole(ctx, meetingID, user.ID, entities.RoleFromResponse(ref.ResponseStatus)); err != nil {
			errs = append(errs, fmt.Errorf("role %s: %w", ref.Email, err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until pending invitation emails are sent
func (a *AttendeeReconciler) Wait() {
	a.wg.Wait()
}

func (a *AttendeeReconciler) sendInvitation(user *entities.User, meeting *entities.Meeting) {
	if a.mailer == nil {
		return
	}
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), a.mailTimeout)
		defer cancel()

		if err := a.mailer.SendInvitation(ctx, user, meeting); err != nil {
			a.logger.Warn("failed to send invitation",
				zap.String("email", user.Email),
				zap.String("meeting_id", meeting.ID.String()),
				zap.Error(err),
			)
		}
	}()
}

// dedupe normalizes emails and drops empty entries, duplicates and the organizer.
// The last response status seen for an email wins.
func dedupe(attendees []entities.AttendeeRef, organizerEmail string) []entities.AttendeeRef {
	organizer := entities.NormalizeEmail(organizerEmail)
	index := make(map[string]int, len(attendees))
	out := make([]entities.AttendeeRef, 0, len(attendees))

	for _, ref := range attendees {
		ref = ref.Normalized()
		if ref.Email == "" || ref.Email == organizer {
			continue
		}
		if i, ok := index[ref.Email]; ok {
			if ref.ResponseStatus != "" {
				out[i].ResponseStatus = ref.ResponseStatus
			}
			if out[i].DisplayName == "" {
				out[i].DisplayName = ref.DisplayName
			}
			continue
		}
		index[ref.Email] = len(out)
		out = append(out, ref)
	}
	return out
}
