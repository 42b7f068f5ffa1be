package reminder

import (
	"context"
	"strings"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
)

// Marker records a dose as taken. *medication.Store satisfies it.
type Marker interface {
	Today() []medication.DoseEntry
	MarkTaken(ctx context.Context, id, clock string) (*medication.Prescription, error)
}

// ActionEvent is a user interaction with a shown notification
type ActionEvent struct {
	Action         string `json:"action"`
	PrescriptionID string `json:"prescriptionId"`
	Time           string `json:"time"`
}

// RouteAction applies a notification action. "take" marks the dose taken,
// which re-arms the scheduler through the store listener; "dismiss" only
// closes the notification. A take must name a dose on today's agenda.
func RouteAction(ctx context.Context, marker Marker, ev ActionEvent) error {
	switch strings.ToLower(strings.TrimSpace(ev.Action)) {
	case ActionTake:
		if ev.PrescriptionID == "" {
			return apperrors.Invalid("prescriptionId is required")
		}
		at, err := medication.NormalizeClock(ev.Time)
		if err != nil {
			return apperrors.Invalid("time: %v", err)
		}
		if _, ok := medication.FindDose(marker.Today(), ev.PrescriptionID, at); !ok {
			return apperrors.Invalid("no dose of %s scheduled at %s today", ev.PrescriptionID, at)
		}
		_, err = marker.MarkTaken(ctx, ev.PrescriptionID, at)
		return err
	case ActionDismiss, "":
		return nil
	default:
		return apperrors.Invalid("unknown notification action %q", ev.Action)
	}
}
