package medication

import (
	"time"
)

// Frequency is the rule governing how many doses per day and their spacing
type Frequency string

const (
	FrequencyEvery4Hours Frequency = "every4hrs"
	FrequencyEvery8Hours Frequency = "every8hrs"
	FrequencyTwiceDaily  Frequency = "twiceDaily"
	FrequencyCustom      Frequency = "custom"
)

// DurationUnit is the unit of a prescription's duration
type DurationUnit string

const (
	UnitDays   DurationUnit = "days"
	UnitWeeks  DurationUnit = "weeks"
	UnitMonths DurationUnit = "months"
)

// MaxDosage is the upper bound on tabs per administration accepted at entry
const MaxDosage = 4

// User is the single profile record kept on the device
type User struct {
	Name          string         `json:"name"`
	Prescriptions []Prescription `json:"prescriptions"`
	CreatedAt     time.Time      `json:"createdAt"`
}

// Prescription is one medication with its daily schedule and taken history
type Prescription struct {
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category string   `json:"category,omitempty"`
	Uses     []string `json:"uses,omitempty"`

	// Tabs per administration
	Dosage    int       `json:"dosage"`
	Frequency Frequency `json:"frequency"`
	Times     []string  `json:"times"` // "HH:MM", in dose order from the first dose

	Duration         *Duration         `json:"duration,omitempty"`
	FoodRequirements *FoodRequirements `json:"foodRequirements,omitempty"`
	NeedsRefill      bool              `json:"needsRefill,omitempty"`

	CreatedAt time.Time `json:"createdAt"`

	// date key -> clock time -> record; absence means not taken
	TakenTimes map[string]map[string]TakenRecord `json:"takenTimes,omitempty"`
}

// Duration bounds the active window of a prescription
type Duration struct {
	Value int          `json:"value"`
	Unit  DurationUnit `json:"unit"`
}

// FoodRequirements describes how a dose relates to meals
type FoodRequirements struct {
	WithFood       bool `json:"withFood"`
	TimeBeforeFood *int `json:"timeBeforeFood,omitempty"` // minutes
	TimeAfterFood  *int `json:"timeAfterFood,omitempty"`  // minutes
}

// TakenRecord marks a single dose as taken
type TakenRecord struct {
	Taken   bool       `json:"taken"`
	TakenAt *time.Time `json:"takenAt,omitempty"`
}

// DoseEntry is one (prescription, scheduled time) pair on a specific date
type DoseEntry struct {
	Prescription Prescription `json:"prescription"`
	Date         time.Time    `json:"date"`
	Time         string       `json:"time"`
	Taken        bool         `json:"taken"`
	TakenAt      *time.Time   `json:"takenAt,omitempty"`
	Late         bool         `json:"late,omitempty"`
}

// Scheduled returns the instant this dose is due
func (d DoseEntry) Scheduled() time.Time {
	t, _ := At(d.Date, d.Time)
	return t
}

// PrescriptionInput is what the add and edit flows collect. Times are not
// supplied directly; they are resolved from Frequency and FirstDose.
type PrescriptionInput struct {
	Name             string            `json:"name"`
	Category         string            `json:"category,omitempty"`
	Uses             []string          `json:"uses,omitempty"`
	Dosage           int               `json:"dosage"`
	Frequency        Frequency         `json:"frequency"`
	FirstDose        string            `json:"firstDose"`
	CustomCount      int               `json:"customCount,omitempty"`
	Duration         *Duration         `json:"duration,omitempty"`
	FoodRequirements *FoodRequirements `json:"foodRequirements,omitempty"`
	NeedsRefill      bool              `json:"needsRefill,omitempty"`
}

// Snapshot is what store listeners receive after every change
type Snapshot struct {
	Selected time.Time   `json:"selected"`
	Agenda   []DoseEntry `json:"agenda"`
	Today    []DoseEntry `json:"today"`
}

// IsTaken reports whether the dose at clock on date has been taken
func (p Prescription) IsTaken(date time.Time, clock string) (TakenRecord, bool) {
	day, ok := p.TakenTimes[DateKey(date)]
	if !ok {
		return TakenRecord{}, false
	}
	rec, ok := day[clock]
	return rec, ok && rec.Taken
}

// Input recovers the editable fields of p, so an edit can start from the
// current values
func (p Prescription) Input() PrescriptionInput {
	c := p.Clone()
	in := PrescriptionInput{
		Name:             c.Name,
		Category:         c.Category,
		Uses:             c.Uses,
		Dosage:           c.Dosage,
		Frequency:        c.Frequency,
		Duration:         c.Duration,
		FoodRequirements: c.FoodRequirements,
		NeedsRefill:      c.NeedsRefill,
	}
	if len(c.Times) > 0 {
		in.FirstDose = c.Times[0]
	}
	if c.Frequency == FrequencyCustom {
		in.CustomCount = len(c.Times)
	}
	return in
}

// Clone returns a deep copy so mutations never alias stored state
func (p Prescription) Clone() Prescription {
	out := p
	if p.Uses != nil {
		out.Uses = append([]string(nil), p.Uses...)
	}
	if p.Times != nil {
		out.Times = append([]string(nil), p.Times...)
	}
	if p.Duration != nil {
		d := *p.Duration
		out.Duration = &d
	}
	if p.FoodRequirements != nil {
		f := *p.FoodRequirements
		if f.TimeBeforeFood != nil {
			v := *f.TimeBeforeFood
			f.TimeBeforeFood = &v
		}
		if f.TimeAfterFood != nil {
			v := *f.TimeAfterFood
			f.TimeAfterFood = &v
		}
		out.FoodRequirements = &f
	}
	if p.TakenTimes != nil {
		out.TakenTimes = make(map[string]map[string]TakenRecord, len(p.TakenTimes))
		for date, day := range p.TakenTimes {
			copied := make(map[string]TakenRecord, len(day))
			for clock, rec := range day {
				if rec.TakenAt != nil {
					at := *rec.TakenAt
					rec.TakenAt = &at
				}
				copied[clock] = rec
			}
			out.TakenTimes[date] = copied
		}
	}
	return out
}

// Clone returns a deep copy of the user record
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	out := &User{Name: u.Name, CreatedAt: u.CreatedAt}
	out.Prescriptions = make([]Prescription, 0, len(u.Prescriptions))
	for _, p := range u.Prescriptions {
		out.Prescriptions = append(out.Prescriptions, p.Clone())
	}
	return out
}

// FoodNote renders the food requirement as short display text
func (f *FoodRequirements) FoodNote() string {
	if f == nil || !f.WithFood {
		return ""
	}
	switch {
	case f.TimeBeforeFood != nil && *f.TimeBeforeFood > 0:
		return formatMinutes(*f.TimeBeforeFood) + " before food"
	case f.TimeAfterFood != nil && *f.TimeAfterFood > 0:
		return formatMinutes(*f.TimeAfterFood) + " after food"
	default:
		return "with food"
	}
}
