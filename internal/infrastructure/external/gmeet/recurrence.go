package gmeet

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"

	"github.com/johnquangdev/meeting-sync/internal/domain/entities"
)

// instanceIDLayout is the suffix Google appends to a series id to name a timed instance
const instanceIDLayout = "20060102T150405Z"

// InstanceID returns the id Google gives the occurrence of series starting at start
func InstanceID(seriesID string, start time.Time) string {
	return seriesID + "_" + start.UTC().Format(instanceIDLayout)
}

// Expand enumerates the occurrences of a recurring master inside w.
// RRULE, RDATE and EXDATE lines are evaluated in the event's own time zone so
// weekly meetings keep their wall-clock time across DST changes. exceptions are
// instances Google reports separately (cancelled or moved) and override the
// generated slot with the same instance id.
func Expand(master *Event, exceptions []Event, w entities.Window) ([]entities.Occurrence, error) {
	start, ok := master.Start.Time()
	if !ok {
		return nil, fmt.Errorf("series %s has no start time", master.ID)
	}
	duration := 0
	if end, ok := master.End.Time(); ok && end.After(start) {
		duration = minutes(end.Sub(start))
	}

	set, err := ruleSet(start, master.Start.Location(), master.Recurrence)
	if err != nil {
		return nil, fmt.Errorf("series %s: %w", master.ID, err)
	}

	overrides := make(map[string]*Event, len(exceptions))
	for i := range exceptions {
		overrides[exceptions[i].ID] = &exceptions[i]
	}

	var out []entities.Occurrence
	for _, t := range set.Between(w.Start, w.End, true) {
		if !w.Contains(t) {
			continue
		}
		occ := entities.Occurrence{
			OccurrenceID: InstanceID(master.ID, t),
			Start:        t.UTC(),
			Duration:     duration,
		}
		if ex, ok := overrides[occ.OccurrenceID]; ok {
			applyException(&occ, ex)
			delete(overrides, occ.OccurrenceID)
		}
		out = append(out, occ)
	}

	// moved into the window from a slot outside it
	for _, ex := range overrides {
		if ex.IsCancelled() {
			continue
		}
		if s, ok := ex.Start.Time(); ok && w.Contains(s) {
			occ := entities.Occurrence{OccurrenceID: ex.ID}
			applyException(&occ, ex)
			out = append(out, occ)
		}
	}
	return out, nil
}

func applyException(occ *entities.Occurrence, ex *Event) {
	if ex.IsCancelled() {
		occ.Cancelled = true
		return
	}
	if s, ok := ex.Start.Time(); ok {
		occ.Start = s
		if e, ok := ex.End.Time(); ok && e.After(s) {
			occ.Duration = minutes(e.Sub(s))
		}
	}
	occ.Patch = patchFrom(ex)
	if len(ex.Attendees) > 0 {
		occ.Attendees = Attendees(ex.Attendees)
	}
}

func ruleSet(start time.Time, loc *time.Location, lines []string) (*rrule.Set, error) {
	dtstart := "DTSTART:" + start.UTC().Format(instanceIDLayout)
	if loc != time.UTC {
		dtstart = "DTSTART;TZID=" + loc.String() + ":" + start.In(loc).Format("20060102T150405")
	}

	rules := []string{dtstart}
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		rules = append(rules, l)
	}
	return rrule.StrSliceToRRuleSetInLoc(rules, loc)
}
