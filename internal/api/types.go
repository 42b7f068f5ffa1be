package api

import (
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/reminder"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

type userResponse struct {
	Onboarded bool             `json:"onboarded"`
	User      *medication.User `json:"user,omitempty"`
}

type renameRequest struct {
	Name string `json:"name"`
}

type onboardingRequest struct {
	Name         string                       `json:"name"`
	Prescription medication.PrescriptionInput `json:"prescription"`
}

type onboardingResponse struct {
	User         *medication.User         `json:"user"`
	Prescription *medication.Prescription `json:"prescription"`
}

type agendaResponse struct {
	Date    string                 `json:"date"`
	Entries []medication.DoseEntry `json:"entries"`
}

type selectDateRequest struct {
	Date string `json:"date"`
}

type takenRequest struct {
	Time string `json:"time"`
}

// a nil Granted asks connected clients instead
type permissionRequest struct {
	Granted *bool `json:"granted"`
}

type permissionResponse struct {
	Granted bool `json:"granted"`
}

type testNotificationResponse struct {
	Notification reminder.Notification `json:"notification"`
	Clients      int                   `json:"clients"`
}
