package cli

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/gmsas95/dosewise/internal/app"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/onboarding"
	"github.com/gmsas95/dosewise/internal/tui"
)

var Version = "dev"

// Context is what a command runs against
type Context struct {
	App *app.App
	In  io.Reader
	Out io.Writer
}

// Command is a subcommand that needs the prescription store
type Command func(ctx context.Context, c *Context, args []string) error

var commands = map[string]Command{
	"agenda": runAgenda,
	"today":  runAgenda,
	"list":   runList,
	"ls":     runList,
	"show":   runShow,
	"add":    runAdd,
	"edit":   runEdit,
	"rm":     runRemove,
	"delete": runRemove,
	"take":   runTake,
	"search": runSearch,
	"reset":  runReset,
	"rename": runRename,
	"status": runStatus,
	"tui":    runTUI,
}

// Lookup returns the store-backed command registered under name
func Lookup(name string) (Command, bool) {
	cmd, ok := commands[name]
	return cmd, ok
}

// Execute runs cmd on stdin/stdout and returns the process exit code
func Execute(cmd Command, application *app.App, args []string) int {
	c := &Context{App: application, In: os.Stdin, Out: os.Stdout}
	if err := cmd(context.Background(), c, args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		return 1
	}
	return 0
}

// describe drops the error code prefix users do not need
func describe(err error) string {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		if appErr.Cause != nil {
			return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
		}
		return appErr.Message
	}
	return err.Error()
}

func newFlagSet(name string, out io.Writer) *flag.FlagSet {
	fs := flag.NewFlagSet("dosewise "+name, flag.ContinueOnError)
	fs.SetOutput(out)
	return fs
}

func requireOnboarded(c *Context) error {
	if !c.App.Store.Onboarded() {
		return apperrors.New(apperrors.ErrNotOnboarded.Code, "no profile yet; run: dosewise onboard")
	}
	return nil
}

func findPrescription(c *Context, id string) (*medication.Prescription, error) {
	if p := c.App.Store.Prescription(id); p != nil {
		return p, nil
	}
	return nil, apperrors.New(apperrors.ErrNotFound.Code, fmt.Sprintf("prescription %s not found", id))
}

func runAgenda(ctx context.Context, c *Context, args []string) error {
	fs := newFlagSet("agenda", c.Out)
	date := fs.String("date", "", "Day to show as YYYY-MM-DD (default today)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOnboarded(c); err != nil {
		return err
	}

	now := c.App.Clock.Now()
	day := medication.StartOfDay(now)
	if *date != "" {
		d, err := medication.ParseDateKey(*date, now.Location())
		if err != nil {
			return apperrors.Invalid("date: %v", err)
		}
		day = d
	}

	entries := medication.BuildAgenda(c.App.Store.Prescriptions(), day)
	fmt.Fprint(c.Out, tui.RenderAgenda(day, entries, now))
	return nil
}

func runList(ctx context.Context, c *Context, args []string) error {
	if err := requireOnboarded(c); err != nil {
		return err
	}
	prescriptions := c.App.Store.Prescriptions()
	if len(prescriptions) == 0 {
		fmt.Fprintln(c.Out, "No prescriptions. Add one with: dosewise add --name <medicine>")
		return nil
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers("ID", "Medicine", "Dosage", "Frequency", "Times")
	for _, p := range prescriptions {
		t.Row(p.ID, p.Name, tabs(p.Dosage), frequencyLabel(p.Frequency, len(p.Times)), displayTimes(p.Times))
	}
	fmt.Fprintln(c.Out, t.String())
	return nil
}

func runAdd(ctx context.Context, c *Context, args []string) error {
	fs := newFlagSet("add", c.Out)
	flags := bindPrescriptionFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := requireOnboarded(c); err != nil {
		return err
	}

	in := medication.PrescriptionInput{Dosage: 1, Frequency: medication.FrequencyTwiceDaily}
	if err := flags.apply(fs, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	p, err := c.App.Store.Create(ctx, in)
	if err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Added %s (%s) at %s\n", p.Name, p.ID, displayTimes(p.Times))
	return nil
}

func runEdit(ctx context.Context, c *Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(c.Out, "Usage: dosewise edit <id> [flags]")
		return apperrors.Invalid("prescription id is required")
	}
	id := args[0]

	fs := newFlagSet("edit", c.Out)
	flags := bindPrescriptionFlags(fs)
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	existing, err := findPrescription(c, id)
	if err != nil {
		return err
	}
	in := existing.Input()
	if err := flags.apply(fs, &in); err != nil {
		return err
	}
	if err := in.Validate(); err != nil {
		return err
	}

	p, err := c.App.Store.Update(ctx, id, in)
	if err != nil {
		return err
	}
	if p == nil {
		return apperrors.New(apperrors.ErrNotFound.Code, fmt.Sprintf("prescription %s not found", id))
	}
	fmt.Fprintf(c.Out, "✓ Updated %s, now at %s\n", p.Name, displayTimes(p.Times))
	return nil
}

func runRemove(ctx context.Context, c *Context, args []string) error {
	if len(args) != 1 {
		fmt.Fprintln(c.Out, "Usage: dosewise rm <id>")
		return apperrors.Invalid("prescription id is required")
	}
	p, err := findPrescription(c, args[0])
	if err != nil {
		return err
	}
	if err := c.App.Store.Delete(ctx, p.ID); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Removed %s\n", p.Name)
	return nil
}

// runTake marks a dose taken. Without a time it takes the earliest due dose
// of the prescription that is still open.
func runTake(ctx context.Context, c *Context, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		fmt.Fprintln(c.Out, "Usage: dosewise take <id> [HH:MM]")
		return apperrors.Invalid("prescription id is required")
	}
	p, err := findPrescription(c, args[0])
	if err != nil {
		return err
	}
	var at string
	if len(args) == 2 {
		h, m, err := medication.ParseClock(args[1])
		if err != nil {
			return apperrors.Invalid("time: %v", err)
		}
		at = medication.FormatClock(h*60 + m)
	}
	now := c.App.Clock.Now()

	var entry *medication.DoseEntry
	for _, e := range c.App.Store.Today() {
		if e.Prescription.ID != p.ID {
			continue
		}
		if at != "" && e.Time == at {
			entry = &e
			break
		}
		if at == "" && !e.Taken && medication.IsDue(e.Time, now) {
			entry = &e
			break
		}
	}

	switch {
	case entry == nil && at != "":
		return apperrors.Invalid("no dose of %s scheduled at %s today", p.Name, at)
	case entry == nil:
		return apperrors.Invalid("no due dose of %s to take", p.Name)
	case entry.Taken:
		fmt.Fprintf(c.Out, "%s at %s was already taken\n", p.Name, medication.FormatDisplay(entry.Time))
		return nil
	case !medication.IsDue(entry.Time, now):
		return apperrors.Invalid("%s at %s is not due yet", p.Name, medication.FormatDisplay(entry.Time))
	}

	if _, err := c.App.Store.MarkTaken(ctx, p.ID, entry.Time); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Took %s at %s\n", p.Name, medication.FormatDisplay(entry.Time))
	return nil
}

func runSearch(ctx context.Context, c *Context, args []string) error {
	fs := newFlagSet("search", c.Out)
	limit := fs.Int("limit", 10, "Maximum results")
	if err := fs.Parse(args); err != nil {
		return err
	}
	query := strings.Join(fs.Args(), " ")
	if len([]rune(strings.TrimSpace(query))) < 2 {
		return apperrors.Invalid("search needs at least 2 characters")
	}

	results := c.App.Lookup.Search(ctx, query, *limit)
	if len(results) == 0 {
		fmt.Fprintf(c.Out, "No medicines match %q\n", query)
		return nil
	}
	for _, m := range results {
		line := "  " + m.Name
		if m.Category != "" {
			line += " (" + m.Category + ")"
		}
		if len(m.Uses) > 0 {
			line += " - " + strings.Join(m.Uses, ", ")
		}
		fmt.Fprintln(c.Out, line)
	}
	return nil
}

func runReset(ctx context.Context, c *Context, args []string) error {
	fs := newFlagSet("reset", c.Out)
	yes := fs.Bool("yes", false, "Skip the confirmation prompt")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if !*yes {
		fmt.Fprint(c.Out, "This deletes your profile and every prescription. Type 'yes' to continue: ")
		reader := bufio.NewReader(c.In)
		response, _ := reader.ReadString('\n')
		if strings.TrimSpace(strings.ToLower(response)) != "yes" {
			fmt.Fprintln(c.Out, "Cancelled")
			return nil
		}
	}

	if err := c.App.Store.Reset(ctx); err != nil {
		return err
	}
	fmt.Fprintln(c.Out, "✓ All data removed")
	return nil
}

func runTUI(ctx context.Context, c *Context, args []string) error {
	if err := requireOnboarded(c); err != nil {
		return err
	}
	return tui.Run(c.App.Store, c.App.Clock)
}

// prescriptionFlags are shared by add and edit. edit only applies the flags
// that were set on the command line.
type prescriptionFlags struct {
	name      *string
	category  *string
	uses      *string
	dosage    *int
	frequency *string
	count     *int
	first     *string
	duration  *string
	withFood  *bool
	before    *int
	after     *int
	refill    *bool
}

func bindPrescriptionFlags(fs *flag.FlagSet) *prescriptionFlags {
	return &prescriptionFlags{
		name:      fs.String("name", "", "Medicine name"),
		category:  fs.String("category", "", "Medicine category"),
		uses:      fs.String("uses", "", "Comma separated uses"),
		dosage:    fs.Int("dosage", 1, fmt.Sprintf("Tabs per dose (1-%d)", medication.MaxDosage)),
		frequency: fs.String("frequency", string(medication.FrequencyTwiceDaily), "every4hrs, every8hrs, twiceDaily or custom"),
		count:     fs.Int("count", 0, "Doses per day for custom frequency"),
		first:     fs.String("first", "", "First dose time (HH:MM)"),
		duration:  fs.String("duration", "", `How long to take it, e.g. "7 days" or "none"`),
		withFood:  fs.Bool("with-food", false, "Take with food"),
		before:    fs.Int("before", 0, "Minutes before food"),
		after:     fs.Int("after", 0, "Minutes after food"),
		refill:    fs.Bool("refill", false, "Flag the prescription for refill"),
	}
}

func (f *prescriptionFlags) apply(fs *flag.FlagSet, in *medication.PrescriptionInput) error {
	var err error
	fs.Visit(func(fl *flag.Flag) {
		if err != nil {
			return
		}
		switch fl.Name {
		case "name":
			in.Name = *f.name
		case "category":
			in.Category = *f.category
		case "uses":
			in.Uses = splitList(*f.uses)
		case "dosage":
			in.Dosage = *f.dosage
		case "frequency":
			in.Frequency = medication.Frequency(*f.frequency)
		case "count":
			in.CustomCount = *f.count
		case "first":
			in.FirstDose = *f.first
		case "duration":
			if strings.EqualFold(*f.duration, "none") {
				in.Duration = nil
				return
			}
			in.Duration, err = onboarding.ParseDuration(*f.duration)
		case "with-food":
			food(in).WithFood = *f.withFood
		case "before":
			v := *f.before
			food(in).TimeBeforeFood = &v
		case "after":
			v := *f.after
			food(in).TimeAfterFood = &v
		case "refill":
			in.NeedsRefill = *f.refill
		}
	})
	if err != nil {
		return apperrors.Invalid("%v", err)
	}
	if in.FirstDose != "" {
		h, m, perr := medication.ParseClock(in.FirstDose)
		if perr == nil {
			in.FirstDose = medication.FormatClock(h*60 + m)
		}
	}
	return nil
}

func food(in *medication.PrescriptionInput) *medication.FoodRequirements {
	if in.FoodRequirements == nil {
		in.FoodRequirements = &medication.FoodRequirements{}
	}
	return in.FoodRequirements
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func tabs(n int) string {
	if n == 1 {
		return "1 tab"
	}
	return fmt.Sprintf("%d tabs", n)
}

func displayTimes(times []string) string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = medication.FormatDisplay(t)
	}
	return strings.Join(out, ", ")
}

func frequencyLabel(f medication.Frequency, n int) string {
	switch f {
	case medication.FrequencyEvery4Hours:
		return "every 4 hours"
	case medication.FrequencyEvery8Hours:
		return "every 8 hours"
	case medication.FrequencyTwiceDaily:
		return "twice daily"
	case medication.FrequencyCustom:
		return fmt.Sprintf("%d times a day", n)
	default:
		return string(f)
	}
}
