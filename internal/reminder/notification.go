// Package reminder arms per-dose notification timers for today's agenda and
// routes notification actions back into the prescription store.
package reminder

import (
	"fmt"
	"strings"
	"time"

	"github.com/gmsas95/dosewise/internal/medication"
)

// Kind distinguishes the notification stages of a single dose
type Kind string

const (
	KindReminder Kind = "reminder"
	KindDue      Kind = "due"
	KindLate     Kind = "late"
	KindTest     Kind = "test"
)

// TestTag replaces the previous test notification
const TestTag = "test-notification"

// Action ids carried by due notifications
const (
	ActionTake    = "take"
	ActionDismiss = "dismiss"
)

// Action is a button offered on a notification
type Action struct {
	ID    string `json:"action"`
	Title string `json:"title"`
}

// Notification is what the presentation layer shows. Clients replace an
// existing notification with the same Tag instead of stacking a new one.
type Notification struct {
	Title              string   `json:"title"`
	Body               string   `json:"body"`
	Tag                string   `json:"tag"`
	RequireInteraction bool     `json:"requireInteraction"`
	Actions            []Action `json:"actions,omitempty"`

	Kind           Kind      `json:"kind"`
	PrescriptionID string    `json:"prescriptionId"`
	Time           string    `json:"time"`
	Date           string    `json:"date"`
	FireAt         time.Time `json:"fireAt"`
}

// Tag is the deterministic key of one (prescription, kind, time) notification
func Tag(prescriptionID string, kind Kind, clock string) string {
	return fmt.Sprintf("%s-%s-%s", prescriptionID, kind, clock)
}

func tabs(n int) string {
	if n > 1 {
		return fmt.Sprintf("%d tabs", n)
	}
	return fmt.Sprintf("%d tab", n)
}

// TestNotification is shown on request to check that notifications reach
// the user
func TestNotification(now time.Time) Notification {
	return Notification{
		Title:              "Test Notification",
		Body:               "This is a test notification from DoseWise",
		Tag:                TestTag,
		RequireInteraction: true,
		Kind:               KindTest,
		Date:               medication.DateKey(now),
		FireAt:             now,
	}
}

// build renders the notification for one stage of a dose
func build(entry medication.DoseEntry, kind Kind, lead time.Duration, fireAt time.Time) Notification {
	p := entry.Prescription
	n := Notification{
		Tag:            Tag(p.ID, kind, entry.Time),
		Kind:           kind,
		PrescriptionID: p.ID,
		Time:           entry.Time,
		Date:           medication.DateKey(entry.Date),
		FireAt:         fireAt,
	}

	switch kind {
	case KindReminder:
		n.Title = "Medication Reminder"
		n.Body = fmt.Sprintf("Time to take %s in %d minutes", p.Name, int(lead/time.Minute))
	case KindDue:
		n.Title = "Medication Due"
		body := []string{fmt.Sprintf("Time to take %s of %s", tabs(p.Dosage), p.Name)}
		if note := p.FoodRequirements.FoodNote(); note != "" {
			body = append(body, "("+note+")")
		}
		n.Body = strings.Join(body, " ")
		n.RequireInteraction = true
		n.Actions = []Action{
			{ID: ActionTake, Title: "Mark as Taken"},
			{ID: ActionDismiss, Title: "Dismiss"},
		}
	case KindLate:
		n.Title = "Missed Medication"
		n.Body = fmt.Sprintf("Don't forget to take your %s", p.Name)
	}
	return n
}
