// Package ics turns calendar invitations (text/calendar attachments) into
// inbound meeting events.
package ics

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/emersion/go-ical"
	"github.com/teambition/rrule-go"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// occurrenceLayout names an instance by its original start in UTC
const occurrenceLayout = "20060102T150405Z"

const propTeamsMeetingURL = "X-MICROSOFT-SKYPETEAMSMEETINGURL"

var urlRegex = regexp.MustCompile(`https?://[^\s<>"{}|\\^[\]` + "`" + `]+`)

// Options controls how invitations are mapped
type Options struct {
	// Fallback is the platform of invitations without a recognizable join link
	Fallback entities.Platform
	// Window bounds the expansion of recurring invitations
	Window entities.Window
}

// Parse decodes every VEVENT in r. Invitations whose platform cannot be
// determined and no fallback is configured are skipped.
func Parse(r io.Reader, opts Options) ([]entities.InboundEvent, error) {
	dec := ical.NewDecoder(r)
	var out []entities.InboundEvent
	for {
		cal, err := dec.Decode()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode calendar: %w", err)
		}

		method := ""
		if p := cal.Props.Get(ical.PropMethod); p != nil {
			method = strings.ToUpper(strings.TrimSpace(p.Value))
		}

		for _, comp := range cal.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			ev, ok, err := parseEvent(comp, method, opts)
			if err != nil {
				return nil, err
			}
			if ok {
				out = append(out, ev)
			}
		}
	}
	return out, nil
}

func parseEvent(comp *ical.Component, method string, opts Options) (entities.InboundEvent, bool, error) {
	normalizeTimezones(comp)

	uid := text(comp, ical.PropUID)
	if uid == "" {
		return entities.InboundEvent{}, false, nil
	}

	joinURL := meetingLink(comp)
	platform := PlatformOf(joinURL)
	if platform == "" {
		platform = opts.Fallback
	}
	if !platform.Valid() {
		return entities.InboundEvent{}, false, nil
	}

	loc := locationOf(comp)
	start, hasStart := dateTime(comp, ical.PropDateTimeStart, loc)
	end, hasEnd := dateTime(comp, ical.PropDateTimeEnd, loc)

	ev := entities.InboundEvent{
		Platform:  platform,
		Kind:      entities.EventKindUpdated,
		Keys:      entities.KeyBag{EventID: uid},
		Attendees: attendees(comp),
		Patch: entities.MeetingPatch{
			Title:       text(comp, ical.PropSummary),
			Description: text(comp, ical.PropDescription),
			JoinURL:     joinURL,
			Status:      entities.MeetingStatusScheduled,
		},
	}
	if method == "REQUEST" && sequence(comp) == 0 {
		ev.Kind = entities.EventKindCreated
	}
	if method == "CANCEL" || strings.EqualFold(text(comp, ical.PropStatus), "CANCELLED") {
		ev.Kind = entities.EventKindDeleted
		ev.Patch.Status = entities.MeetingStatusCancelled
	}

	if hasStart {
		ev.Keys.ScheduledStart = entities.TimePtr(start)
		ev.Patch.ScheduledStart = ev.Keys.ScheduledStart
		if hasEnd && end.After(start) {
			ev.Keys.ScheduledDuration = entities.IntPtr(minutes(end.Sub(start)))
			ev.Patch.ScheduledDuration = ev.Keys.ScheduledDuration
		}
	}

	if org := comp.Props.Get(ical.PropOrganizer); org != nil {
		if email := mailto(org.Value); email != "" {
			ev.Organizer = &entities.AttendeeRef{Email: email, DisplayName: org.Params.Get(ical.ParamCommonName)}
		}
	}

	if rid, ok := dateTime(comp, ical.PropRecurrenceID, loc); ok {
		ev.Keys.OccurrenceID = entities.StringPtr(rid.UTC().Format(occurrenceLayout))
		return ev, true, nil
	}

	if comp.Props.Get(ical.PropRecurrenceRule) != nil && hasStart && ev.Kind != entities.EventKindDeleted {
		occurrences, err := expand(comp, start, loc, opts.Window)
		if err != nil {
			return entities.InboundEvent{}, false, fmt.Errorf("expand %s: %w", uid, err)
		}
		duration := 0
		if ev.Keys.ScheduledDuration != nil {
			duration = *ev.Keys.ScheduledDuration
		}
		for i := range occurrences {
			occurrences[i].Duration = duration
		}
		ev.Series = &entities.Series{Window: opts.Window, Occurrences: occurrences}
	}
	return ev, true, nil
}

// expand enumerates RRULE/RDATE/EXDATE inside w in the event's own zone
func expand(comp *ical.Component, start time.Time, loc *time.Location, w entities.Window) ([]entities.Occurrence, error) {
	lines := []string{"DTSTART;TZID=" + loc.String() + ":" + start.In(loc).Format("20060102T150405")}
	for _, name := range []string{ical.PropRecurrenceRule, ical.PropRecurrenceDates, ical.PropExceptionDates} {
		for _, p := range comp.Props.Values(name) {
			line := name
			if tzid := p.Params.Get(ical.ParamTimezoneID); tzid != "" {
				line += ";TZID=" + tzid
			}
			lines = append(lines, line+":"+p.Value)
		}
	}
	set, err := rrule.StrSliceToRRuleSetInLoc(lines, loc)
	if err != nil {
		return nil, err
	}

	var out []entities.Occurrence
	for _, t := range set.Between(w.Start, w.End, true) {
		if !w.Contains(t) {
			continue
		}
		out = append(out, entities.Occurrence{
			OccurrenceID: t.UTC().Format(occurrenceLayout),
			Start:        t.UTC(),
		})
	}
	return out, nil
}

// PlatformOf detects the conferencing platform from a join link
func PlatformOf(link string) entities.Platform {
	lower := strings.ToLower(link)
	switch {
	case strings.Contains(lower, "teams.microsoft.com"), strings.Contains(lower, "teams.live.com"):
		return entities.PlatformTeams
	case strings.Contains(lower, "zoom.us/"):
		return entities.PlatformZoom
	case strings.Contains(lower, "meet.google.com"):
		return entities.PlatformGmeet
	}
	return ""
}

// meetingLink prefers the Teams property, then known links in URL, LOCATION and DESCRIPTION
func meetingLink(comp *ical.Component) string {
	if v := text(comp, propTeamsMeetingURL); v != "" {
		return v
	}
	var first string
	for _, name := range []string{ical.PropURL, ical.PropLocation, ical.PropDescription} {
		for _, m := range urlRegex.FindAllString(text(comp, name), -1) {
			if PlatformOf(m) != "" {
				return m
			}
			if first == "" {
				first = m
			}
		}
	}
	return first
}

func attendees(comp *ical.Component) []entities.AttendeeRef {
	props := comp.Props.Values(ical.PropAttendee)
	out := make([]entities.AttendeeRef, 0, len(props))
	for _, p := range props {
		if strings.EqualFold(p.Params.Get("CUTYPE"), "ROOM") || strings.EqualFold(p.Params.Get("CUTYPE"), "RESOURCE") {
			continue
		}
		email := mailto(p.Value)
		if email == "" {
			continue
		}
		out = append(out, entities.AttendeeRef{
			Email:          email,
			DisplayName:    p.Params.Get(ical.ParamCommonName),
			ResponseStatus: partstat(p.Params.Get(ical.ParamParticipationStatus)),
		}.Normalized())
	}
	return out
}

// partstat maps PARTSTAT onto the response vocabulary of the calendar APIs
func partstat(v string) string {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "ACCEPTED":
		return "accepted"
	case "TENTATIVE":
		return "tentative"
	case "DECLINED":
		return "declined"
	case "NEEDS-ACTION":
		return "needsaction"
	}
	return ""
}

func mailto(v string) string {
	v = strings.TrimSpace(v)
	if len(v) >= 7 && strings.EqualFold(v[:7], "mailto:") {
		v = v[7:]
	}
	if !strings.Contains(v, "@") {
		return ""
	}
	return entities.NormalizeEmail(v)
}

func text(comp *ical.Component, name string) string {
	p := comp.Props.Get(name)
	if p == nil {
		return ""
	}
	v, err := p.Text()
	if err != nil {
		v = p.Value
	}
	return strings.TrimSpace(v)
}

func dateTime(comp *ical.Component, name string, loc *time.Location) (time.Time, bool) {
	p := comp.Props.Get(name)
	if p == nil {
		return time.Time{}, false
	}
	t, err := p.DateTime(loc)
	if err != nil {
		return time.Time{}, false
	}
	return t.UTC(), true
}

func sequence(comp *ical.Component) int {
	p := comp.Props.Get(ical.PropSequence)
	if p == nil {
		return 0
	}
	n, err := p.Int()
	if err != nil {
		return 0
	}
	return n
}

func minutes(d time.Duration) int {
	return int(math.Round(d.Minutes()))
}
