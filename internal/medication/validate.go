package medication

import (
	"strings"
	"unicode"
	"unicode/utf8"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
)

// MaxCustomDoses bounds the custom frequency at entry time (one per hour)
const MaxCustomDoses = 24

// Limits on free text that ends up in notifications
const (
	MaxNameLength  = 100
	MaxLabelLength = 60
)

// Validate rejects input the store must never see. The store itself
// assumes pre-validated input.
func (in PrescriptionInput) Validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return apperrors.Invalid("name is required")
	}
	if err := checkText("name", in.Name, MaxNameLength); err != nil {
		return err
	}
	if err := checkText("category", in.Category, MaxLabelLength); err != nil {
		return err
	}
	for _, use := range in.Uses {
		if err := checkText("use", use, MaxLabelLength); err != nil {
			return err
		}
	}
	if in.Dosage < 1 || in.Dosage > MaxDosage {
		return apperrors.Invalid("dosage must be between 1 and %d tabs", MaxDosage)
	}
	if !in.Frequency.Valid() {
		return apperrors.Invalid("unknown frequency %q", in.Frequency)
	}
	if in.Frequency == FrequencyCustom && (in.CustomCount < 1 || in.CustomCount > MaxCustomDoses) {
		return apperrors.Invalid("custom frequency must be between 1 and %d doses per day", MaxCustomDoses)
	}
	if _, _, err := ParseClock(in.FirstDose); err != nil {
		return apperrors.Invalid("first dose: %v", err)
	}
	if d := in.Duration; d != nil {
		if d.Value < 1 {
			return apperrors.Invalid("duration must be positive")
		}
		switch d.Unit {
		case UnitDays, UnitWeeks, UnitMonths:
		default:
			return apperrors.Invalid("unknown duration unit %q", d.Unit)
		}
	}
	if f := in.FoodRequirements; f != nil {
		if (f.TimeBeforeFood != nil && *f.TimeBeforeFood < 0) || (f.TimeAfterFood != nil && *f.TimeAfterFood < 0) {
			return apperrors.Invalid("food timing cannot be negative")
		}
	}
	return nil
}

// ValidateUserName checks the profile name given at onboarding
func ValidateUserName(name string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.Invalid("name is required")
	}
	return checkText("name", name, MaxNameLength)
}

func checkText(field, s string, max int) error {
	if !utf8.ValidString(s) {
		return apperrors.Invalid("%s is not valid UTF-8", field)
	}
	if utf8.RuneCountInString(s) > max {
		return apperrors.Invalid("%s is longer than %d characters", field, max)
	}
	for _, r := range s {
		if unicode.IsControl(r) {
			return apperrors.Invalid("%s contains control characters", field)
		}
	}
	return nil
}

// normalize trims text fields and drops food timings that only make sense
// when taken with food
func (in PrescriptionInput) normalize() PrescriptionInput {
	in.Name = strings.TrimSpace(in.Name)
	in.Category = strings.TrimSpace(in.Category)
	in.FirstDose = strings.TrimSpace(in.FirstDose)
	if f := in.FoodRequirements; f != nil {
		food := FoodRequirements{WithFood: f.WithFood}
		if f.WithFood {
			if f.TimeBeforeFood != nil && *f.TimeBeforeFood > 0 {
				v := *f.TimeBeforeFood
				food.TimeBeforeFood = &v
			}
			if f.TimeAfterFood != nil && *f.TimeAfterFood > 0 {
				v := *f.TimeAfterFood
				food.TimeAfterFood = &v
			}
		}
		in.FoodRequirements = &food
	}
	if in.Duration != nil {
		d := *in.Duration
		in.Duration = &d
	}
	if in.Uses != nil {
		in.Uses = append([]string(nil), in.Uses...)
	}
	return in
}
