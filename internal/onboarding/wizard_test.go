package onboarding

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmsas95/dosewise/internal/catalog"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/medication"
)

type onboarderFunc func(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error)

func (f onboarderFunc) Onboard(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error) {
	return f(ctx, name, in)
}

func newLookup(t *testing.T) *catalog.Lookup {
	t.Helper()
	c, err := catalog.New()
	require.NoError(t, err)
	return catalog.NewLookup(c, nil, zaptest.NewLogger(t), nil)
}

func script(lines ...string) *strings.Reader {
	return strings.NewReader(strings.Join(lines, "\n") + "\n")
}

func TestWizardRun(t *testing.T) {
	dir := t.TempDir()
	var out bytes.Buffer
	input := script(
		"",       // welcome
		"",       // empty name is asked again
		"Ada",    // name
		"amox",   // medicine query
		"1",      // pick Amoxicillin
		"9",      // dosage out of range
		"2",      // dosage
		"4",      // custom frequency
		"3",      // doses per day
		"25:00",  // bad clock
		"7:30",   // first dose
		"1 week", // duration
		"y",      // with food
		"30",     // minutes before
		"",       // minutes after
		"n",      // refill
	)

	var gotName string
	var got medication.PrescriptionInput
	onboarder := onboarderFunc(func(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error) {
		gotName, got = name, in
		times, err := medication.Resolve(in.Frequency, in.FirstDose, in.CustomCount)
		require.NoError(t, err)
		return &medication.Prescription{ID: "rx-1", Name: in.Name, Times: times}, nil
	})

	w := NewWizard(zaptest.NewLogger(t), newLookup(t), dir).WithIO(input, &out)
	require.NoError(t, w.Run(context.Background(), onboarder))

	assert.Equal(t, "Ada", gotName)
	assert.Equal(t, "Amoxicillin", got.Name)
	assert.Equal(t, "Antibiotic", got.Category)
	assert.Equal(t, 2, got.Dosage)
	assert.Equal(t, medication.FrequencyCustom, got.Frequency)
	assert.Equal(t, 3, got.CustomCount)
	assert.Equal(t, "07:30", got.FirstDose)
	assert.Equal(t, &medication.Duration{Value: 1, Unit: medication.UnitWeeks}, got.Duration)
	require.NotNil(t, got.FoodRequirements)
	assert.True(t, got.FoodRequirements.WithFood)
	require.NotNil(t, got.FoodRequirements.TimeBeforeFood)
	assert.Equal(t, 30, *got.FoodRequirements.TimeBeforeFood)
	assert.Nil(t, got.FoodRequirements.TimeAfterFood)
	assert.False(t, got.NeedsRefill)

	text := out.String()
	assert.Contains(t, text, "Amoxicillin/Clavulanate")
	assert.Contains(t, text, "Enter a number between 1 and 4")
	assert.Contains(t, text, "7:30 AM, 3:30 PM, 11:30 PM")

	path := filepath.Join(dir, config.FileName)
	assert.Equal(t, path, w.Config().ConfigPath)
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestWizardDefaults(t *testing.T) {
	dir := t.TempDir()
	input := script("", "Ada", "Zzquil", "", "", "", "", "", "")

	var got medication.PrescriptionInput
	onboarder := onboarderFunc(func(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error) {
		got = in
		return &medication.Prescription{ID: "rx-1", Name: in.Name, Times: []string{"08:00", "20:00"}}, nil
	})

	w := NewWizard(nil, nil, dir).WithIO(input, &bytes.Buffer{})
	require.NoError(t, w.Run(context.Background(), onboarder))

	assert.Equal(t, "Zzquil", got.Name)
	assert.Equal(t, 1, got.Dosage)
	assert.Equal(t, medication.FrequencyTwiceDaily, got.Frequency)
	assert.Equal(t, "08:00", got.FirstDose)
	assert.Nil(t, got.Duration)
	assert.False(t, got.FoodRequirements.WithFood)
	assert.NoError(t, got.Validate())
}

func TestWizardInputClosed(t *testing.T) {
	w := NewWizard(nil, nil, t.TempDir()).WithIO(script("", "Ada"), &bytes.Buffer{})

	err := w.Run(context.Background(), onboarderFunc(func(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error) {
		t.Fatal("onboard must not be called")
		return nil, nil
	}))
	assert.ErrorIs(t, err, ErrInputClosed)
}

func TestParseDuration(t *testing.T) {
	tests := []struct {
		in   string
		want *medication.Duration
	}{
		{"7 days", &medication.Duration{Value: 7, Unit: medication.UnitDays}},
		{"1 day", &medication.Duration{Value: 1, Unit: medication.UnitDays}},
		{"2w", &medication.Duration{Value: 2, Unit: medication.UnitWeeks}},
		{"3 Months", &medication.Duration{Value: 3, Unit: medication.UnitMonths}},
		{"0 days", nil},
		{"days", nil},
		{"5 years", nil},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseDuration(tt.in)
			if tt.want == nil {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
