package presenter

import (
	"encoding/json"

	connectionDTO "github.com/johnquangdev/meeting-sync/internal/adapter/dto/connection"
	meetingDTO "github.com/johnquangdev/meeting-sync/internal/adapter/dto/meeting"
	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ToMeetingResponse converts a Meeting entity to MeetingResponse DTO.
// The transcript itself is left out; it can run to megabytes.
func ToMeetingResponse(m *entities.Meeting) *meetingDTO.MeetingResponse {
	if m == nil {
		return nil
	}

	response := &meetingDTO.MeetingResponse{
		ID:                  m.ID.String(),
		Platform:            string(m.Platform),
		EventID:             m.EventID,
		MeetingID:           deref(m.PlatformMeetingID),
		OccurrenceID:        deref(m.OccurrenceID),
		ReportID:            deref(m.ReportID),
		Title:               m.Title,
		Description:         m.Description,
		Summary:             m.Summary,
		SummaryModel:        m.SummaryModel,
		HasTranscript:       m.Transcript != "",
		RecordLink:          m.RecordLink,
		JoinURL:             m.JoinURL,
		ScheduledStart:      m.ScheduledStart,
		ScheduledDuration:   m.ScheduledDuration,
		ActualStart:         m.ActualStart,
		ActualDuration:      m.ActualDuration,
		Status:              string(m.Status),
		IsDeleted:           m.IsDeleted,
		StrategyScore:       m.StrategyScore,
		StrategyExplanation: m.StrategyExplanation,
		AgendaScore:         m.AgendaScore,
		AgendaExplanation:   m.AgendaExplanation,
		CreatedAt:           m.CreatedAt,
		UpdatedAt:           m.UpdatedAt,
	}
	if m.OrganizerID != nil {
		response.OrganizerID = m.OrganizerID.String()
	}
	if len(m.StrategyAnalysis) > 0 && json.Valid(m.StrategyAnalysis) {
		response.StrategyAnalysis = json.RawMessage(m.StrategyAnalysis)
	}
	return response
}

// ToParticipantResponses converts participants with their loaded users
func ToParticipantResponses(list []*entities.MeetingParticipant) []*meetingDTO.ParticipantResponse {
	out := make([]*meetingDTO.ParticipantResponse, len(list))
	for i, p := range list {
		out[i] = &meetingDTO.ParticipantResponse{
			UserID:    p.UserID.String(),
			Role:      string(p.Role),
			User:      ToUserResponse(p.User),
			CreatedAt: p.CreatedAt,
		}
	}
	return out
}

// ToJobResponse converts an outbox job
func ToJobResponse(j *entities.MeetingJob) *meetingDTO.JobResponse {
	if j == nil {
		return nil
	}
	return &meetingDTO.JobResponse{
		ID:          j.ID.String(),
		JobType:     string(j.JobType),
		Status:      string(j.Status),
		Attempts:    j.Attempts,
		MaxAttempts: j.MaxAttempts,
		LastError:   deref(j.LastError),
		RunAfter:    j.RunAfter,
		CompletedAt: j.CompletedAt,
	}
}

// ToJobResponses converts a list of outbox jobs
func ToJobResponses(list []*entities.MeetingJob) []*meetingDTO.JobResponse {
	out := make([]*meetingDTO.JobResponse, len(list))
	for i, j := range list {
		out[i] = ToJobResponse(j)
	}
	return out
}

// ToTaskResponses converts extracted tasks
func ToTaskResponses(list []*entities.MeetingTask) []*meetingDTO.TaskResponse {
	out := make([]*meetingDTO.TaskResponse, len(list))
	for i, t := range list {
		out[i] = &meetingDTO.TaskResponse{
			Title:       t.Title,
			Description: t.Description,
			OwnerEmail:  t.OwnerEmail,
			DueDate:     t.DueDate,
			Priority:    string(t.Priority),
		}
	}
	return out
}

// ToConnectionResponse converts a platform connection; tokens never leave the service
func ToConnectionResponse(c *entities.PlatformConnection) *connectionDTO.ConnectionResponse {
	if c == nil {
		return nil
	}
	return &connectionDTO.ConnectionResponse{
		ID:             c.ID.String(),
		UserID:         c.UserID.String(),
		Platform:       string(c.Platform),
		AccountID:      c.AccountID,
		Email:          c.Email,
		SubscriptionID: c.SubscriptionID,
		Expiry:         c.Expiry,
		IsConnected:    c.IsConnected,
	}
}
