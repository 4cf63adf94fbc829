package reconcile

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

// In-memory repositories. They enforce the same unique keys as the SQL schema
// so concurrent tests observe the same conflicts Postgres would raise.

type fakeMeetings struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*entities.Meeting
	seq  int
	base time.Time
}

func newFakeMeetings() *fakeMeetings {
	return &fakeMeetings{
		rows: make(map[uuid.UUID]*entities.Meeting),
		base: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func openKey(m *entities.Meeting) string {
	if m.IsDeleted || m.IsFinal() || m.EventID == "" {
		return ""
	}
	occ := "<nil>"
	if m.OccurrenceID != nil {
		occ = *m.OccurrenceID
	}
	return string(m.Platform) + "|" + m.EventID + "|" + occ
}

func (f *fakeMeetings) conflicts(m *entities.Meeting) bool {
	key := openKey(m)
	for id, row := range f.rows {
		if id == m.ID {
			continue
		}
		if key != "" && openKey(row) == key {
			return true
		}
		if m.ReportID != nil && row.ReportID != nil && !row.IsDeleted && row.Platform == m.Platform && *row.ReportID == *m.ReportID {
			return true
		}
	}
	return false
}

func (f *fakeMeetings) FindByID(_ context.Context, id uuid.UUID) (*entities.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, entities.ErrMeetingNotFound
	}
	return m.Clone(), nil
}

func (f *fakeMeetings) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*entities.Meeting, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeMeetings) FindByReportID(_ context.Context, platform entities.Platform, reportID string) (*entities.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Meeting
	for _, m := range f.rows {
		if m.Platform == platform && !m.IsDeleted && m.ReportID != nil && *m.ReportID == reportID {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, entities.ErrMeetingNotFound
	}
	sortOldest(out)
	return out[0].Clone(), nil
}

func (f *fakeMeetings) FindOpen(_ context.Context, l repositories.MeetingLookup) (*entities.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Meeting
	for _, m := range f.rows {
		if m.Platform != l.Platform || m.IsDeleted || m.IsFinal() {
			continue
		}
		switch {
		case l.EventID != "":
			if m.EventID != l.EventID {
				continue
			}
		case l.PlatformMeetingID != nil:
			if m.PlatformMeetingID == nil || *m.PlatformMeetingID != *l.PlatformMeetingID {
				continue
			}
		default:
			continue
		}
		if (l.OccurrenceID == nil) != (m.OccurrenceID == nil) {
			continue
		}
		if l.OccurrenceID != nil && *l.OccurrenceID != *m.OccurrenceID {
			continue
		}
		if l.ScheduledStart != nil && (m.ScheduledStart == nil || !m.ScheduledStart.Equal(*l.ScheduledStart)) {
			continue
		}
		if l.ScheduledDuration != nil && (m.ScheduledDuration == nil || *m.ScheduledDuration != *l.ScheduledDuration) {
			continue
		}
		out = append(out, m)
	}
	if len(out) == 0 {
		return nil, entities.ErrMeetingNotFound
	}
	sortOldest(out)
	return out[0].Clone(), nil
}

func (f *fakeMeetings) Insert(_ context.Context, m *entities.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m.ID == uuid.Nil {
		m.ID = uuid.New()
	}
	if f.conflicts(m) {
		return entities.ErrDuplicate
	}
	f.seq++
	m.CreatedAt = f.base.Add(time.Duration(f.seq) * time.Second)
	f.rows[m.ID] = m.Clone()
	return nil
}

func (f *fakeMeetings) Update(_ context.Context, m *entities.Meeting, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.rows[m.ID]; !ok {
		return entities.ErrMeetingNotFound
	}
	if f.conflicts(m) {
		return entities.ErrDuplicate
	}
	f.rows[m.ID] = m.Clone()
	return nil
}

func (f *fakeMeetings) SoftDelete(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.rows[id]; ok {
		m.IsDeleted = true
	}
	return nil
}

func (f *fakeMeetings) SoftDeleteOpen(_ context.Context, platform entities.Platform, eventID string, occurrenceID *string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, m := range f.rows {
		if m.Platform != platform || m.EventID != eventID || m.IsDeleted || m.ReportID != nil || m.Summary != "" {
			continue
		}
		if occurrenceID != nil && (m.OccurrenceID == nil || *m.OccurrenceID != *occurrenceID) {
			continue
		}
		m.IsDeleted = true
		m.Status = entities.MeetingStatusCancelled
		n++
	}
	return n, nil
}

func (f *fakeMeetings) ListOpenInstances(_ context.Context, platform entities.Platform, eventID string, w entities.Window) ([]*entities.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.Meeting
	for _, m := range f.rows {
		if m.Platform != platform || m.EventID != eventID || m.OccurrenceID == nil {
			continue
		}
		if m.IsDeleted || m.IsFinal() || m.ScheduledStart == nil {
			continue
		}
		if w.Contains(*m.ScheduledStart) {
			out = append(out, m.Clone())
		}
	}
	return out, nil
}

func (f *fakeMeetings) UpdateStrategyScore(_ context.Context, id uuid.UUID, s entities.StrategyScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.rows[id]; ok {
		m.StrategyScore = &s.Score
		m.StrategyExplanation = s.Explanation
	}
	return nil
}

func (f *fakeMeetings) UpdateAgendaScore(_ context.Context, id uuid.UUID, s entities.AgendaScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if m, ok := f.rows[id]; ok {
		m.AgendaScore = &s.Score
		m.AgendaExplanation = s.Explanation
	}
	return nil
}

func (f *fakeMeetings) all() []*entities.Meeting {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*entities.Meeting, 0, len(f.rows))
	for _, m := range f.rows {
		out = append(out, m.Clone())
	}
	sortOldest(out)
	return out
}

func (f *fakeMeetings) live() []*entities.Meeting {
	var out []*entities.Meeting
	for _, m := range f.all() {
		if !m.IsDeleted {
			out = append(out, m)
		}
	}
	return out
}

func sortOldest(ms []*entities.Meeting) {
	sort.Slice(ms, func(i, j int) bool {
		if !ms[i].CreatedAt.Equal(ms[j].CreatedAt) {
			return ms[i].CreatedAt.Before(ms[j].CreatedAt)
		}
		return ms[i].ID.String() < ms[j].ID.String()
	})
}

type fakeUsers struct {
	mu      sync.Mutex
	byEmail map[string]*entities.User
}

func newFakeUsers() *fakeUsers {
	return &fakeUsers{byEmail: make(map[string]*entities.User)}
}

func (f *fakeUsers) FindByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.byEmail {
		if u.ID == id {
			c := *u
			return &c, nil
		}
	}
	return nil, entities.ErrUserNotFound
}

func (f *fakeUsers) FindByEmail(_ context.Context, email string) (*entities.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.byEmail[entities.NormalizeEmail(email)]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (f *fakeUsers) CreateIfAbsent(_ context.Context, u *entities.User) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	email := entities.NormalizeEmail(u.Email)
	if _, ok := f.byEmail[email]; ok {
		return false, nil
	}
	c := *u
	c.Email = email
	f.byEmail[email] = &c
	return true, nil
}

func (f *fakeUsers) add(email, name string) *entities.User {
	u := &entities.User{ID: uuid.New(), Email: entities.NormalizeEmail(email), Name: name, Provider: entities.UserProviderTeams}
	f.mu.Lock()
	f.byEmail[u.Email] = u
	f.mu.Unlock()
	return u
}

func (f *fakeUsers) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.byEmail)
}

type fakeParticipants struct {
	mu   sync.Mutex
	rows map[string]*entities.MeetingParticipant
}

func newFakeParticipants() *fakeParticipants {
	return &fakeParticipants{rows: make(map[string]*entities.MeetingParticipant)}
}

func participantKey(meetingID, userID uuid.UUID) string {
	return meetingID.String() + "|" + userID.String()
}

func (f *fakeParticipants) Ensure(_ context.Context, p *entities.MeetingParticipant) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey(p.MeetingID, p.UserID)
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	c := *p
	f.rows[key] = &c
	return true, nil
}

func (f *fakeParticipants) SetOrganizer(_ context.Context, meetingID, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := participantKey(meetingID, userID)
	if p, ok := f.rows[key]; ok {
		p.Role = entities.ParticipantRoleOrganizer
		return nil
	}
	f.rows[key] = entities.NewMeetingParticipant(meetingID, userID, entities.ParticipantRoleOrganizer)
	return nil
}

func (f *fakeParticipants) UpdateRole(_ context.Context, meetingID, userID uuid.UUID, role entities.ParticipantRole) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[participantKey(meetingID, userID)]
	if !ok || p.Role == entities.ParticipantRoleOrganizer || p.Role == role {
		return false, nil
	}
	p.Role = role
	return true, nil
}

func (f *fakeParticipants) FindByMeetingAndUser(_ context.Context, meetingID, userID uuid.UUID) (*entities.MeetingParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.rows[participantKey(meetingID, userID)]
	if !ok {
		return nil, entities.ErrParticipantNotFound
	}
	c := *p
	return &c, nil
}

func (f *fakeParticipants) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*entities.MeetingParticipant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.MeetingParticipant
	for _, p := range f.rows {
		if p.MeetingID == meetingID {
			c := *p
			out = append(out, &c)
		}
	}
	return out, nil
}

type fakeJobs struct {
	mu   sync.Mutex
	rows map[string]*entities.MeetingJob
}

func newFakeJobs() *fakeJobs {
	return &fakeJobs{rows: make(map[string]*entities.MeetingJob)}
}

func (f *fakeJobs) Enqueue(_ context.Context, j *entities.MeetingJob) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := j.MeetingID.String() + "|" + string(j.JobType)
	if _, ok := f.rows[key]; ok {
		return false, nil
	}
	c := *j
	f.rows[key] = &c
	return true, nil
}

func (f *fakeJobs) ClaimBatch(context.Context, int) ([]*entities.MeetingJob, error) { return nil, nil }
func (f *fakeJobs) Save(context.Context, *entities.MeetingJob) error                  { return nil }
func (f *fakeJobs) ReleaseStale(context.Context, time.Duration) (int64, error)        { return 0, nil }

func (f *fakeJobs) FindByMeetingAndType(_ context.Context, meetingID uuid.UUID, t entities.JobType) (*entities.MeetingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.rows[meetingID.String()+"|"+string(t)]
	if !ok {
		return nil, entities.ErrJobNotFound
	}
	c := *j
	return &c, nil
}

func (f *fakeJobs) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*entities.MeetingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.MeetingJob
	for _, j := range f.rows {
		if j.MeetingID == meetingID {
			c := *j
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *fakeJobs) types(meetingID uuid.UUID) []entities.JobType {
	jobs, _ := f.ListByMeeting(context.Background(), meetingID)
	out := make([]entities.JobType, 0, len(jobs))
	for _, j := range jobs {
		out = append(out, j.JobType)
	}
	sort.Slice(out, func(i, k int) bool { return out[i] < out[k] })
	return out
}

// fakeTx serializes transactions, standing in for the row lock Apply takes
type fakeTx struct {
	mu sync.Mutex
}

func (f *fakeTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return fn(ctx)
}

type sentInvite struct {
	Email     string
	MeetingID uuid.UUID
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentInvite
	err  error
}

func (f *fakeMailer) SendInvitation(_ context.Context, u *entities.User, m *entities.Meeting) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, sentInvite{Email: u.Email, MeetingID: m.ID})
	return f.err
}

func (f *fakeMailer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type harness struct {
	meetings     *fakeMeetings
	users        *fakeUsers
	participants *fakeParticipants
	jobs         *fakeJobs
	mailer       *fakeMailer
	svc          *ReconcileService
}

func newHarness() *harness {
	h := &harness{
		meetings:     newFakeMeetings(),
		users:        newFakeUsers(),
		participants: newFakeParticipants(),
		jobs:         newFakeJobs(),
		mailer:       &fakeMailer{},
	}
	h.svc = NewService(Dependencies{
		Meetings:     h.meetings,
		Users:        h.users,
		Participants: h.participants,
		Jobs:         h.jobs,
		Tx:           &fakeTx{},
		Mailer:       h.mailer,
	}, Options{Concurrency: 4, MaxAttempts: 3, MailTimeout: time.Second}, nil)
	return h
}

func strPtr(s string) *string { return &s }

func timePtr(t time.Time) *time.Time { return &t }
