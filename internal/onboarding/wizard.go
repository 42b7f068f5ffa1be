package onboarding

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/catalog"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/medication"
)

const suggestionLimit = 5

// ErrInputClosed is returned when stdin ends before the wizard finishes
var ErrInputClosed = errors.New("input closed before setup finished")

// Onboarder creates the user profile. *medication.Store satisfies it.
type Onboarder interface {
	Onboard(ctx context.Context, name string, in medication.PrescriptionInput) (*medication.Prescription, error)
}

// Searcher suggests medicine names. *catalog.Lookup satisfies it.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) []catalog.Medicine
}

// Wizard handles the interactive setup process
type Wizard struct {
	reader  *bufio.Reader
	out     io.Writer
	logger  *zap.Logger
	search  Searcher
	dataDir string
	config  *WizardConfig
	pause   time.Duration
	clear   bool
}

// WizardConfig holds the answers collected during setup
type WizardConfig struct {
	UserName     string
	Prescription medication.PrescriptionInput
	ConfigPath   string
}

// NewWizard creates a setup wizard on stdin and stdout. search may be nil.
func NewWizard(logger *zap.Logger, search Searcher, dataDir string) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Wizard{
		reader:  bufio.NewReader(os.Stdin),
		out:     os.Stdout,
		logger:  logger,
		search:  search,
		dataDir: dataDir,
		config:  &WizardConfig{},
		pause:   500 * time.Millisecond,
		clear:   true,
	}
}

// WithIO swaps the terminal for in and out and turns off screen clearing
func (w *Wizard) WithIO(in io.Reader, out io.Writer) *Wizard {
	w.reader = bufio.NewReader(in)
	w.out = out
	w.pause = 0
	w.clear = false
	return w
}

// Config returns the collected answers
func (w *Wizard) Config() *WizardConfig {
	return w.config
}

// Run runs the interactive setup wizard and onboards the user
func (w *Wizard) Run(ctx context.Context, onboarder Onboarder) error {
	w.clearScreen()
	fmt.Fprint(w.out, SetupWizardWelcome)
	if _, err := w.ask(""); err != nil {
		return err
	}

	if err := w.setupUserProfile(); err != nil {
		return fmt.Errorf("user profile setup failed: %w", err)
	}

	if err := w.setupPrescription(ctx); err != nil {
		return fmt.Errorf("prescription setup failed: %w", err)
	}

	if err := w.createConfiguration(); err != nil {
		return fmt.Errorf("configuration creation failed: %w", err)
	}

	p, err := onboarder.Onboard(ctx, w.config.UserName, w.config.Prescription)
	if err != nil {
		return err
	}
	w.logger.Debug("Onboarding finished", zap.String("prescription_id", p.ID))

	w.showCompletion(p)
	return nil
}

func (w *Wizard) setupUserProfile() error {
	w.header("Step 1: Your Profile")

	for w.config.UserName == "" {
		name, err := w.ask("What's your name? ")
		if err != nil {
			return err
		}
		if name != "" && medication.ValidateUserName(name) != nil {
			fmt.Fprintf(w.out, "  Please use up to %d plain characters.\n", medication.MaxNameLength)
			continue
		}
		w.config.UserName = name
	}

	fmt.Fprintln(w.out, "\n✓ Profile configured")
	time.Sleep(w.pause)
	return nil
}

func (w *Wizard) setupPrescription(ctx context.Context) error {
	w.header("Step 2: Your First Medicine")

	in := &w.config.Prescription
	steps := []func(context.Context, *medication.PrescriptionInput) error{
		w.askMedicine,
		w.askDosage,
		w.askFrequency,
		w.askFirstDose,
		w.askDuration,
		w.askFood,
		w.askRefill,
	}
	for _, step := range steps {
		if err := step(ctx, in); err != nil {
			return err
		}
	}

	if err := in.Validate(); err != nil {
		return err
	}

	fmt.Fprintln(w.out, "\n✓ Prescription configured")
	time.Sleep(w.pause)
	return nil
}

func (w *Wizard) askMedicine(ctx context.Context, in *medication.PrescriptionInput) error {
	for {
		name, err := w.ask("Medicine name: ")
		if err != nil {
			return err
		}
		if len(name) < catalog.MinQueryLength {
			fmt.Fprintln(w.out, "❌ Please enter at least 2 characters.")
			continue
		}

		in.Name = name
		if w.search == nil {
			return nil
		}

		matches := w.search.Search(ctx, name, suggestionLimit)
		if len(matches) == 0 {
			return nil
		}

		fmt.Fprintln(w.out, "\nDid you mean:")
		for i, m := range matches {
			if m.Category != "" {
				fmt.Fprintf(w.out, "  %d. %s (%s)\n", i+1, m.Name, m.Category)
			} else {
				fmt.Fprintf(w.out, "  %d. %s\n", i+1, m.Name)
			}
		}
		choice, err := w.ask(fmt.Sprintf("\nSelect (1-%d) or press Enter to keep %q: ", len(matches), name))
		if err != nil {
			return err
		}
		if n, err := strconv.Atoi(choice); err == nil && n >= 1 && n <= len(matches) {
			picked := matches[n-1]
			in.Name = picked.Name
			in.Category = picked.Category
			in.Uses = picked.Uses
		}
		return nil
	}
}

func (w *Wizard) askDosage(ctx context.Context, in *medication.PrescriptionInput) error {
	for {
		raw, err := w.ask(fmt.Sprintf("\nTabs per dose (1-%d) [1]: ", medication.MaxDosage))
		if err != nil {
			return err
		}
		if raw == "" {
			in.Dosage = 1
			return nil
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 && n <= medication.MaxDosage {
			in.Dosage = n
			return nil
		}
		fmt.Fprintf(w.out, "❌ Enter a number between 1 and %d.\n", medication.MaxDosage)
	}
}

func (w *Wizard) askFrequency(ctx context.Context, in *medication.PrescriptionInput) error {
	fmt.Fprintln(w.out, "\nHow often?")
	for i, c := range frequencyChoices {
		fmt.Fprintf(w.out, "  %d. %s\n", i+1, c.label)
	}

	for {
		raw, err := w.ask(fmt.Sprintf("Select (1-%d) [3]: ", len(frequencyChoices)))
		if err != nil {
			return err
		}
		if raw == "" {
			raw = "3"
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > len(frequencyChoices) {
			fmt.Fprintln(w.out, "❌ Pick one of the listed options.")
			continue
		}
		in.Frequency = medication.Frequency(frequencyChoices[n-1].value)
		break
	}

	if in.Frequency != medication.FrequencyCustom {
		return nil
	}
	for {
		raw, err := w.ask(fmt.Sprintf("Doses per day (1-%d): ", medication.MaxCustomDoses))
		if err != nil {
			return err
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 1 && n <= medication.MaxCustomDoses {
			in.CustomCount = n
			return nil
		}
		fmt.Fprintf(w.out, "❌ Enter a number between 1 and %d.\n", medication.MaxCustomDoses)
	}
}

func (w *Wizard) askFirstDose(ctx context.Context, in *medication.PrescriptionInput) error {
	for {
		raw, err := w.ask("\nFirst dose of the day (HH:MM, 24h) [08:00]: ")
		if err != nil {
			return err
		}
		if raw == "" {
			raw = "08:00"
		}
		hour, minute, err := medication.ParseClock(raw)
		if err != nil {
			fmt.Fprintf(w.out, "❌ %v\n", err)
			continue
		}
		in.FirstDose = medication.FormatClock(hour*60 + minute)
		return nil
	}
}

func (w *Wizard) askDuration(ctx context.Context, in *medication.PrescriptionInput) error {
	for {
		raw, err := w.ask("\nFor how long? e.g. '7 days', '2 weeks', '3 months' (Enter for ongoing): ")
		if err != nil {
			return err
		}
		if raw == "" {
			in.Duration = nil
			return nil
		}
		d, err := ParseDuration(raw)
		if err != nil {
			fmt.Fprintf(w.out, "❌ %v\n", err)
			continue
		}
		in.Duration = d
		return nil
	}
}

func (w *Wizard) askFood(ctx context.Context, in *medication.PrescriptionInput) error {
	withFood, err := w.confirm("\nTake with food? (y/N): ", false)
	if err != nil {
		return err
	}
	in.FoodRequirements = &medication.FoodRequirements{WithFood: withFood}
	if !withFood {
		return nil
	}

	before, err := w.askMinutes("Minutes before food (Enter to skip): ")
	if err != nil {
		return err
	}
	after, err := w.askMinutes("Minutes after food (Enter to skip): ")
	if err != nil {
		return err
	}
	in.FoodRequirements.TimeBeforeFood = before
	in.FoodRequirements.TimeAfterFood = after
	return nil
}

func (w *Wizard) askRefill(ctx context.Context, in *medication.PrescriptionInput) error {
	refill, err := w.confirm("\nRemind you to refill? (y/N): ", false)
	if err != nil {
		return err
	}
	in.NeedsRefill = refill
	return nil
}

func (w *Wizard) askMinutes(prompt string) (*int, error) {
	for {
		raw, err := w.ask(prompt)
		if err != nil {
			return nil, err
		}
		if raw == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(raw)
		if err == nil && n >= 0 {
			return &n, nil
		}
		fmt.Fprintln(w.out, "❌ Enter a whole number of minutes.")
	}
}

// createConfiguration writes a default config file unless one exists
func (w *Wizard) createConfiguration() error {
	path := filepath.Join(w.dataDir, config.FileName)
	w.config.ConfigPath = path

	if _, err := os.Stat(path); err == nil {
		return nil
	}
	cfg, err := config.Default(w.dataDir)
	if err != nil {
		return err
	}
	return config.WriteFile(path, cfg, false)
}

func (w *Wizard) showCompletion(p *medication.Prescription) {
	w.clearScreen()

	times := make([]string, len(p.Times))
	for i, t := range p.Times {
		times[i] = medication.FormatDisplay(t)
	}

	message := SetupCompleteMessage
	message = strings.ReplaceAll(message, "{{.Name}}", w.config.UserName)
	message = strings.ReplaceAll(message, "{{.Medicine}}", p.Name)
	message = strings.ReplaceAll(message, "{{.Times}}", strings.Join(times, ", "))
	message = strings.ReplaceAll(message, "{{.ConfigPath}}", w.config.ConfigPath)

	fmt.Fprint(w.out, message)
}

func (w *Wizard) header(title string) {
	w.clearScreen()
	fmt.Fprintln(w.out, "╔════════════════════════════════════════════════════════════════╗")
	fmt.Fprintf(w.out, "║  %-62s║\n", title)
	fmt.Fprintln(w.out, "╚════════════════════════════════════════════════════════════════╝")
	fmt.Fprintln(w.out)
}

func (w *Wizard) clearScreen() {
	if w.clear {
		fmt.Fprint(w.out, "\033[H\033[2J")
	}
}

// ask prints prompt and returns the trimmed answer. A closed input with no
// pending text is ErrInputClosed.
func (w *Wizard) ask(prompt string) (string, error) {
	fmt.Fprint(w.out, prompt)
	line, err := w.reader.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrInputClosed
		}
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func (w *Wizard) confirm(prompt string, def bool) (bool, error) {
	raw, err := w.ask(prompt)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(raw) {
	case "y", "yes":
		return true, nil
	case "n", "no":
		return false, nil
	default:
		return def, nil
	}
}

// ParseDuration reads "7 days", "2 weeks", "1 month" or the short forms
// "7d", "2w", "1m"
func ParseDuration(s string) (*medication.Duration, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	value, err := strconv.Atoi(s[:i])
	if err != nil || value < 1 {
		return nil, fmt.Errorf("invalid duration %q: want a positive number and a unit", s)
	}

	unit := strings.TrimSpace(s[i:])
	switch {
	case unit == "d" || strings.HasPrefix(unit, "day"):
		return &medication.Duration{Value: value, Unit: medication.UnitDays}, nil
	case unit == "w" || strings.HasPrefix(unit, "week"):
		return &medication.Duration{Value: value, Unit: medication.UnitWeeks}, nil
	case unit == "m" || strings.HasPrefix(unit, "month"):
		return &medication.Duration{Value: value, Unit: medication.UnitMonths}, nil
	default:
		return nil, fmt.Errorf("invalid duration unit %q: want days, weeks or months", unit)
	}
}
