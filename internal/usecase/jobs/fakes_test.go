package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
)

type memJobs struct {
	mu   sync.Mutex
	rows []*entities.MeetingJob
}

func (f *memJobs) Enqueue(_ context.Context, j *entities.MeetingJob) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.MeetingID == j.MeetingID && r.JobType == j.JobType {
			return false, nil
		}
	}
	c := *j
	f.rows = append(f.rows, &c)
	return true, nil
}

func (f *memJobs) ClaimBatch(_ context.Context, limit int) ([]*entities.MeetingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []*entities.MeetingJob
	for _, r := range f.rows {
		if len(out) == limit {
			break
		}
		runnable := r.Status == entities.JobStatusPending ||
			(r.Status == entities.JobStatusFailed && r.Attempts < r.MaxAttempts)
		if !runnable || r.RunAfter.After(now) {
			continue
		}
		r.MarkAsRunning()
		c := *r
		out = append(out, &c)
	}
	return out, nil
}

func (f *memJobs) Save(_ context.Context, j *entities.MeetingJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.rows {
		if r.ID == j.ID {
			c := *j
			f.rows[i] = &c
			return nil
		}
	}
	return entities.ErrJobNotFound
}

func (f *memJobs) FindByMeetingAndType(_ context.Context, meetingID uuid.UUID, t entities.JobType) (*entities.MeetingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.rows {
		if r.MeetingID == meetingID && r.JobType == t {
			c := *r
			return &c, nil
		}
	}
	return nil, entities.ErrJobNotFound
}

func (f *memJobs) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*entities.MeetingJob, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*entities.MeetingJob
	for _, r := range f.rows {
		if r.MeetingID == meetingID {
			c := *r
			out = append(out, &c)
		}
	}
	return out, nil
}

func (f *memJobs) ReleaseStale(_ context.Context, olderThan time.Duration) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	cutoff := time.Now().Add(-olderThan)
	for _, r := range f.rows {
		if r.Status == entities.JobStatusRunning && r.LockedAt != nil && r.LockedAt.Before(cutoff) {
			msg := "worker stopped while the job was running"
			r.Status = entities.JobStatusFailed
			r.LastError = &msg
			r.LockedAt = nil
			r.RunAfter = time.Now()
			n++
		}
	}
	return n, nil
}

type memMeetings struct {
	repositories.MeetingRepository

	mu   sync.Mutex
	rows map[uuid.UUID]*entities.Meeting
}

func newMemMeetings(ms ...*entities.Meeting) *memMeetings {
	f := &memMeetings{rows: make(map[uuid.UUID]*entities.Meeting)}
	for _, m := range ms {
		f.rows[m.ID] = m
	}
	return f
}

func (f *memMeetings) FindByID(_ context.Context, id uuid.UUID) (*entities.Meeting, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	m, ok := f.rows[id]
	if !ok {
		return nil, entities.ErrMeetingNotFound
	}
	return m.Clone(), nil
}

func (f *memMeetings) Update(_ context.Context, m *entities.Meeting, _ []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[m.ID] = m.Clone()
	return nil
}

func (f *memMeetings) UpdateStrategyScore(_ context.Context, id uuid.UUID, s entities.StrategyScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.rows[id]
	m.StrategyScore = &s.Score
	m.StrategyExplanation = s.Explanation
	m.StrategyAnalysis = s.Analysis
	return nil
}

func (f *memMeetings) UpdateAgendaScore(_ context.Context, id uuid.UUID, s entities.AgendaScore) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	m := f.rows[id]
	m.AgendaScore = &s.Score
	m.AgendaExplanation = s.Explanation
	return nil
}

type memUsers struct {
	repositories.UserRepository
	byID map[uuid.UUID]*entities.User
}

func (f *memUsers) FindByID(_ context.Context, id uuid.UUID) (*entities.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, entities.ErrUserNotFound
	}
	return u, nil
}

type memParticipants struct {
	repositories.ParticipantRepository
	list []*entities.MeetingParticipant
}

func (f *memParticipants) ListByMeeting(_ context.Context, meetingID uuid.UUID) ([]*entities.MeetingParticipant, error) {
	var out []*entities.MeetingParticipant
	for _, p := range f.list {
		if p.MeetingID == meetingID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memResults struct {
	mu         sync.Mutex
	tasks      map[uuid.UUID][]*entities.MeetingTask
	graphs     map[uuid.UUID]*entities.MeetingGraph
	strategies map[string][]*entities.CompanyStrategy
}

func newMemResults() *memResults {
	return &memResults{
		tasks:      make(map[uuid.UUID][]*entities.MeetingTask),
		graphs:     make(map[uuid.UUID]*entities.MeetingGraph),
		strategies: make(map[string][]*entities.CompanyStrategy),
	}
}

func (f *memResults) ReplaceTasks(_ context.Context, meetingID uuid.UUID, tasks []*entities.MeetingTask) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks[meetingID] = tasks
	return nil
}

func (f *memResults) ListTasks(_ context.Context, meetingID uuid.UUID) ([]*entities.MeetingTask, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.tasks[meetingID], nil
}

func (f *memResults) UpsertGraph(_ context.Context, g *entities.MeetingGraph) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graphs[g.MeetingID] = g
	return nil
}

func (f *memResults) ListStrategiesByDomain(_ context.Context, domain string) ([]*entities.CompanyStrategy, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.strategies[domain], nil
}

// scriptedLLM answers prompts in order and records what it was asked
type scriptedLLM struct {
	mu      sync.Mutex
	answers []string
	err     error
	prompts []string
}

func (s *scriptedLLM) Complete(_ context.Context, _, user string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prompts = append(s.prompts, user)
	if s.err != nil {
		return "", s.err
	}
	if len(s.answers) == 0 {
		return "{}", nil
	}
	a := s.answers[0]
	s.answers = s.answers[1:]
	return a, nil
}

func (s *scriptedLLM) ModelTag() string { return "groq/test-model" }

func (s *scriptedLLM) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.prompts)
}
