package medication

import (
	"sort"
	"time"
)

// IsActive reports whether p is current on date's calendar day. Without a
// duration a prescription is active from its creation date onward; with one
// the window [creation date, EndDate] is inclusive at both ends.
func IsActive(p Prescription, date time.Time) bool {
	loc := date.Location()
	start := StartOfDay(p.CreatedAt.In(loc))
	day := StartOfDay(date)

	if day.Before(start) {
		return false
	}
	if p.Duration == nil {
		return true
	}
	return !day.After(EndDate(start, *p.Duration))
}

// DosesFor expands p into one entry per scheduled time on date, or nil when
// p is not active that day
func DosesFor(p Prescription, date time.Time) []DoseEntry {
	if !IsActive(p, date) {
		return nil
	}
	day := StartOfDay(date)

	entries := make([]DoseEntry, 0, len(p.Times))
	for _, clock := range p.Times {
		entry := DoseEntry{
			Prescription: p,
			Date:         day,
			Time:         clock,
		}
		if rec, ok := p.IsTaken(day, clock); ok {
			entry.Taken = true
			entry.TakenAt = rec.TakenAt
			if rec.TakenAt != nil {
				if scheduled, err := At(day, clock); err == nil {
					entry.Late = rec.TakenAt.After(scheduled.Add(LateAfter))
				}
			}
		}
		entries = append(entries, entry)
	}
	return entries
}

// BuildAgenda flattens every active prescription's doses for date and sorts
// them by time. "HH:MM" is zero-padded so string order is clock order; the
// sort is stable so ties keep the prescriptions' list order.
func BuildAgenda(prescriptions []Prescription, date time.Time) []DoseEntry {
	agenda := make([]DoseEntry, 0)
	for _, p := range prescriptions {
		agenda = append(agenda, DosesFor(p, date)...)
	}
	sort.SliceStable(agenda, func(i, j int) bool {
		return agenda[i].Time < agenda[j].Time
	})
	return agenda
}

// FindDose returns the entry of prescription id at clock
func FindDose(agenda []DoseEntry, id, clock string) (DoseEntry, bool) {
	for _, e := range agenda {
		if e.Prescription.ID == id && e.Time == clock {
			return e, true
		}
	}
	return DoseEntry{}, false
}

// Pending filters an agenda down to doses not yet taken
func Pending(agenda []DoseEntry) []DoseEntry {
	out := make([]DoseEntry, 0, len(agenda))
	for _, e := range agenda {
		if !e.Taken {
			out = append(out, e)
		}
	}
	return out
}
