package reconcile

import (
	"time"

	"github.com/google/uuid"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// MergeResult is the outcome of merging a patch into a meeting
type MergeResult struct {
	Meeting *entities.Meeting
	// Changed lists the columns whose value differs from the original row
	Changed []string
	// ContentArrived is true when transcript or summary went from empty to non-empty
	ContentArrived bool
	// NeedsSummary is true when a transcript exists but no summary does
	NeedsSummary bool
}

// Merge coalesces patch into existing field by field: a non-empty incoming value
// wins, an empty one keeps what is stored. The organizer is only replaced when
// the patch forces it. existing is not modified.
func Merge(existing *entities.Meeting, patch entities.MeetingPatch) MergeResult {
	m := existing.Clone()
	var changed []string

	str := func(col string, dst *string, v string) {
		if v != "" && v != *dst {
			*dst = v
			changed = append(changed, col)
		}
	}
	ptrStr := func(col string, dst **string, v *string) {
		if v != nil && *v != "" && (*dst == nil || **dst != *v) {
			s := *v
			*dst = &s
			changed = append(changed, col)
		}
	}
	ptrInt := func(col string, dst **int, v *int) {
		if v != nil && (*dst == nil || **dst != *v) {
			n := *v
			*dst = &n
			changed = append(changed, col)
		}
	}
	ptrTime := func(col string, dst **time.Time, v *time.Time) {
		if v != nil && !v.IsZero() && (*dst == nil || !(*dst).Equal(*v)) {
			t := v.UTC()
			*dst = &t
			changed = append(changed, col)
		}
	}

	str("title", &m.Title, patch.Title)
	str("description", &m.Description, patch.Description)
	str("summary", &m.Summary, patch.Summary)
	str("transcript", &m.Transcript, patch.Transcript)
	str("record_link", &m.RecordLink, patch.RecordLink)
	str("join_url", &m.JoinURL, patch.JoinURL)
	str("summary_model", &m.SummaryModel, patch.SummaryModel)
	if patch.Status != "" && patch.Status != m.Status {
		m.Status = patch.Status
		changed = append(changed, "status")
	}

	ptrStr("meeting_id", &m.PlatformMeetingID, patch.PlatformMeetingID)
	ptrStr("report_id", &m.ReportID, patch.ReportID)

	if patch.OrganizerID != nil && *patch.OrganizerID != uuid.Nil {
		if m.OrganizerID == nil || (patch.ForceOrganizer && *m.OrganizerID != *patch.OrganizerID) {
			id := *patch.OrganizerID
			m.OrganizerID = &id
			changed = append(changed, "org_id")
		}
	}

	ptrTime("schedule_datetime", &m.ScheduledStart, patch.ScheduledStart)
	ptrInt("schedule_duration", &m.ScheduledDuration, patch.ScheduledDuration)
	ptrTime("datetime", &m.ActualStart, patch.ActualStart)
	ptrInt("duration", &m.ActualDuration, patch.ActualDuration)

	return MergeResult{
		Meeting:        m,
		Changed:        changed,
		ContentArrived: !existing.HasContent() && m.HasContent(),
		NeedsSummary:   existing.Transcript == "" && m.Transcript != "" && m.Summary == "",
	}
}

// NewMeeting builds a fresh row from the identity keys and the incoming patch
func NewMeeting(platform entities.Platform, keys entities.KeyBag, patch entities.MeetingPatch) *entities.Meeting {
	now := time.Now()
	base := &entities.Meeting{
		ID:                uuid.New(),
		Platform:          platform,
		EventID:           keys.EventID,
		OccurrenceID:      keys.OccurrenceID,
		ReportID:          keys.ReportID,
		PlatformMeetingID: keys.PlatformMeetingID,
		ScheduledStart:    keys.ScheduledStart,
		ScheduledDuration: keys.ScheduledDuration,
		Status:            entities.MeetingStatusScheduled,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	return Merge(base, patch).Meeting
}
