package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
	"github.com/johnquangdev/meeting-sync/internal/domain/repositories"
	"github.com/johnquangdev/meeting-sync/internal/usecase/reconcile"
	"github.com/johnquangdev/meeting-sync/pkg/ai"
	"github.com/johnquangdev/meeting-sync/pkg/jobcontext"
)

// Completer is the LLM capability job handlers need
type Completer interface {
	Complete(ctx context.Context, system, user string) (string, error)
	ModelTag() string
}

// maxTranscriptChars keeps prompts inside the model context window
const maxTranscriptChars = 60000

// Deps groups what the handlers read and write
type Deps struct {
	Meetings     repositories.MeetingRepository
	Users        repositories.UserRepository
	Participants repositories.ParticipantRepository
	Results      repositories.ResultRepository
	LLM          Completer
	Logger       *zap.Logger
}

func (d Deps) logger() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}

// NewHandlers builds one handler per job type
func NewHandlers(deps Deps) []Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return []Handler{
		&TaskExtractor{deps},
		&GraphExtractor{deps},
		&StrategyScorer{deps},
		&AgendaScorer{deps},
		&Summarizer{deps},
	}
}

// decode parses model output; malformed output is permanent
func decode(raw string, v interface{}) error {
	if err := ai.DecodeJSON(raw, v); err != nil {
		return jobcontext.Permanent(err)
	}
	return nil
}

func loadMeeting(ctx context.Context, meetings repositories.MeetingRepository, job *entities.MeetingJob) (*entities.Meeting, error) {
	m, err := meetings.FindByID(ctx, job.MeetingID)
	if err != nil {
		if errors.Is(err, entities.ErrMeetingNotFound) {
			return nil, jobcontext.Permanent(err)
		}
		return nil, err
	}
	return m, nil
}

func transcriptOf(m *entities.Meeting) string {
	text := m.Transcript
	if text == "" {
		text = m.Summary
	}
	if len(text) > maxTranscriptChars {
		text = text[:maxTranscriptChars]
	}
	return text
}

// TaskExtractor pulls action items out of the transcript
type TaskExtractor struct{ Deps }

func (h *TaskExtractor) Type() entities.JobType { return entities.JobTypeTaskExtraction }

type extractedTask struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	OwnerEmail  string `json:"owner_email"`
	DueDate     string `json:"due_date"`
	Priority    string `json:"priority"`
}

func (h *TaskExtractor) Handle(ctx context.Context, job *entities.MeetingJob) error {
	m, err := loadMeeting(ctx, h.Meetings, job)
	if err != nil {
		return err
	}
	text := transcriptOf(m)
	if text == "" {
		return jobcontext.Permanent(fmt.Errorf("meeting %s has no content", m.ID))
	}

	user := fmt.Sprintf(`Extract the action items from this meeting. Return ONLY a JSON object:
{"tasks": [{"title": "", "description": "", "owner_email": "", "due_date": "YYYY-MM-DD or empty", "priority": "low|medium|high"}]}

Meeting Title: %s
Transcript:
%s`, m.Title, text)

	raw, err := h.LLM.Complete(ctx, "You extract action items from meeting transcripts.", user)
	if err != nil {
		return err
	}

	var out struct {
		Tasks []extractedTask `json:"tasks"`
	}
	if err := decode(raw, &out); err != nil {
		return err
	}

	tasks := make([]*entities.MeetingTask, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		if strings.TrimSpace(t.Title) == "" {
			continue
		}
		tasks = append(tasks, &entities.MeetingTask{
			MeetingID:   m.ID,
			Title:       strings.TrimSpace(t.Title),
			Description: t.Description,
			OwnerEmail:  entities.NormalizeEmail(t.OwnerEmail),
			DueDate:     parseDate(t.DueDate),
			Priority:    parsePriority(t.Priority),
		})
	}

	if err := h.Results.ReplaceTasks(ctx, m.ID, tasks); err != nil {
		return err
	}
	h.logger().Info("✅ Tasks extracted", zap.String("meeting_id", m.ID.String()), zap.Int("count", len(tasks)))
	return nil
}

func parseDate(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil
	}
	return &t
}

func parsePriority(s string) entities.TaskPriority {
	switch entities.TaskPriority(strings.ToLower(strings.TrimSpace(s))) {
	case entities.TaskPriorityHigh:
		return entities.TaskPriorityHigh
	case entities.TaskPriorityLow:
		return entities.TaskPriorityLow
	}
	return entities.TaskPriorityMedium
}

// GraphExtractor builds the people/company/topic graph of a meeting
type GraphExtractor struct{ Deps }

func (h *GraphExtractor) Type() entities.JobType { return entities.JobTypeGraphExtraction }

func (h *GraphExtractor) Handle(ctx context.Context, job *entities.MeetingJob) error {
	m, err := loadMeeting(ctx, h.Meetings, job)
	if err != nil {
		return err
	}
	text := transcriptOf(m)
	if text == "" {
		return jobcontext.Permanent(fmt.Errorf("meeting %s has no content", m.ID))
	}

	user := fmt.Sprintf(`Build a relationship graph of the people, companies and topics in this meeting.
Return ONLY a JSON object: {"nodes": [{"id": "", "type": "person|company|topic", "label": ""}], "edges": [{"source": "", "target": "", "relation": ""}]}

Meeting Title: %s
Transcript:
%s`, m.Title, text)

	raw, err := h.LLM.Complete(ctx, "You build knowledge graphs from meetings.", user)
	if err != nil {
		return err
	}

	var graph struct {
		Nodes []json.RawMessage `json:"nodes"`
		Edges []json.RawMessage `json:"edges"`
	}
	if err := decode(raw, &graph); err != nil {
		return err
	}
	if graph.Nodes == nil {
		graph.Nodes = []json.RawMessage{}
	}
	if graph.Edges == nil {
		graph.Edges = []json.RawMessage{}
	}
	b, err := json.Marshal(graph)
	if err != nil {
		return jobcontext.Permanent(err)
	}

	return h.Results.UpsertGraph(ctx, &entities.MeetingGraph{
		MeetingID: m.ID,
		Graph:     datatypes.JSON(b),
		Model:     h.LLM.ModelTag(),
	})
}

// StrategyScorer rates a meeting against the organizer company's strategies
type StrategyScorer struct{ Deps }

func (h *StrategyScorer) Type() entities.JobType { return entities.JobTypeStrategyScoring }

func (h *StrategyScorer) Handle(ctx context.Context, job *entities.MeetingJob) error {
	m, err := loadMeeting(ctx, h.Meetings, job)
	if err != nil {
		return err
	}
	if m.OrganizerID == nil {
		h.logger().Info("⏭️ Skipping strategy score, no organizer", zap.String("meeting_id", m.ID.String()))
		return nil
	}
	organizer, err := h.Users.FindByID(ctx, *m.OrganizerID)
	if err != nil {
		return err
	}
	strategies, err := h.Results.ListStrategiesByDomain(ctx, entities.EmailDomain(organizer.Email))
	if err != nil {
		return err
	}
	if len(strategies) == 0 {
		h.logger().Info("⏭️ Skipping strategy score, no strategies for domain",
			zap.String("meeting_id", m.ID.String()),
			zap.String("domain", entities.EmailDomain(organizer.Email)),
		)
		return nil
	}

	var sb strings.Builder
	for i, s := range strategies {
		fmt.Fprintf(&sb, "%d. %s\n", i+1, s.Strategy)
	}

	user := fmt.Sprintf(`Provide a score between 1-100 for this meeting and its alignment to these objectives.
Return ONLY a JSON object:
{"score": <number 0-100>, "explanation": "<overall explanation>", "strategy_analysis": [{"strategy": "", "alignment_points": [], "misalignment_points": []}]}

Company Strategies:
%s
Meeting Title: %s
Meeting Transcript: %s`, sb.String(), m.Title, transcriptOf(m))

	raw, err := h.LLM.Complete(ctx, "Analyze this meeting.", user)
	if err != nil {
		return err
	}

	var out struct {
		Score       int             `json:"score"`
		Explanation string          `json:"explanation"`
		Analysis    json.RawMessage `json:"strategy_analysis"`
	}
	if err := decode(raw, &out); err != nil {
		return err
	}
	if len(out.Analysis) == 0 {
		out.Analysis = json.RawMessage("[]")
	}

	return h.Meetings.UpdateStrategyScore(ctx, m.ID, entities.StrategyScore{
		Score:       clampScore(out.Score),
		Explanation: out.Explanation,
		Analysis:    datatypes.JSON(out.Analysis),
	})
}

// AgendaScorer rates the agenda quality from the invite alone
type AgendaScorer struct{ Deps }

func (h *AgendaScorer) Type() entities.JobType { return entities.JobTypeAgendaScoring }

func (h *AgendaScorer) Handle(ctx context.Context, job *entities.MeetingJob) error {
	m, err := loadMeeting(ctx, h.Meetings, job)
	if err != nil {
		return err
	}
	participants, err := h.Participants.ListByMeeting(ctx, m.ID)
	if err != nil {
		return err
	}
	names := make([]string, 0, len(participants))
	for _, p := range participants {
		if p.User != nil {
			names = append(names, p.User.Name)
		}
	}

	when, duration := "Not provided", "Not provided"
	if m.ScheduledStart != nil {
		when = m.ScheduledStart.Format(time.RFC3339)
	}
	if m.ScheduledDuration != nil {
		duration = fmt.Sprintf("%d", *m.ScheduledDuration)
	}

	user := fmt.Sprintf(`Evaluate the quality of the meeting agenda based on the following details. Do NOT use any transcription or summary.

Meeting Details:
Title: %s
Date/Time: %s
Attendees: [%s]
Duration: %s minutes
Description: %s

Agenda Evaluation Criteria:
- Are the right people present in the meeting?
- Is the title descriptive and clear?
- Are the objectives, discussion points, or action items implied or clearly stated?
- Is the duration reasonable for the agenda?

Provide a JSON response in this exact format:
{"agenda_score": <number from 0 to 100>, "agenda_reason": "<brief explanation of the agenda score>"}`,
		m.Title, when, strings.Join(names, ", "), duration, m.Description)

	raw, err := h.LLM.Complete(ctx, "Evaluate meeting agenda without using the transcription.", user)
	if err != nil {
		return err
	}

	var out struct {
		Score  int    `json:"agenda_score"`
		Reason string `json:"agenda_reason"`
	}
	if err := decode(raw, &out); err != nil {
		return err
	}
	return h.Meetings.UpdateAgendaScore(ctx, m.ID, entities.AgendaScore{
		Score:       clampScore(out.Score),
		Explanation: out.Reason,
	})
}

// Summarizer writes a summary for meetings that only have a transcript.
// The result goes through the same coalesce rule as provider data, so a
// summary that arrived in the meantime is kept.
type Summarizer struct{ Deps }

func (h *Summarizer) Type() entities.JobType { return entities.JobTypeSummarize }

func (h *Summarizer) Handle(ctx context.Context, job *entities.MeetingJob) error {
	m, err := loadMeeting(ctx, h.Meetings, job)
	if err != nil {
		return err
	}
	if m.Summary != "" {
		return nil
	}
	if m.Transcript == "" {
		return jobcontext.Permanent(fmt.Errorf("meeting %s has no transcript", m.ID))
	}

	text := m.Transcript
	if len(text) > maxTranscriptChars {
		text = text[:maxTranscriptChars]
	}
	summary, err := h.LLM.Complete(ctx,
		"You write concise meeting summaries: key points, decisions and next steps.",
		fmt.Sprintf("Meeting Title: %s\nTranscript:\n%s", m.Title, text),
	)
	if err != nil {
		return err
	}

	current, err := h.Meetings.FindByID(ctx, m.ID)
	if err != nil {
		return err
	}
	if current.Summary != "" {
		return nil
	}
	res := reconcile.Merge(current, entities.MeetingPatch{
		Summary:      strings.TrimSpace(summary),
		SummaryModel: h.LLM.ModelTag(),
	})
	return h.Meetings.Update(ctx, res.Meeting, res.Changed)
}

func clampScore(v int) int {
	switch {
	case v < 0:
		return 0
	case v > 100:
		return 100
	}
	return v
}
