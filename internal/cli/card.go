package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"

	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
)

func runShow(ctx context.Context, c *Context, args []string) error {
	if len(args) == 0 || strings.HasPrefix(args[0], "-") {
		fmt.Fprintln(c.Out, "Usage: dosewise show <id> [--raw]")
		return apperrors.Invalid("prescription id is required")
	}
	fs := newFlagSet("show", c.Out)
	raw := fs.Bool("raw", false, "Print markdown instead of rendering it")
	if err := fs.Parse(args[1:]); err != nil {
		return err
	}

	p, err := findPrescription(c, args[0])
	if err != nil {
		return err
	}

	md := prescriptionCard(*p, c.App.Clock.Now())
	if *raw {
		fmt.Fprint(c.Out, md)
		return nil
	}

	out, err := renderMarkdown(md)
	if err != nil {
		return err
	}
	fmt.Fprint(c.Out, out)
	return nil
}

func renderMarkdown(md string) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(80),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}
	out, err := r.Render(md)
	if err != nil {
		return "", fmt.Errorf("failed to render: %w", err)
	}
	return out, nil
}

// prescriptionCard describes p and its doses for today as markdown
func prescriptionCard(p medication.Prescription, now time.Time) string {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", p.Name)
	if p.Category != "" {
		fmt.Fprintf(&b, "*%s*", p.Category)
		if len(p.Uses) > 0 {
			fmt.Fprintf(&b, " for %s", strings.Join(p.Uses, ", "))
		}
		b.WriteString("\n\n")
	}

	b.WriteString("| | |\n|---|---|\n")
	fmt.Fprintf(&b, "| ID | `%s` |\n", p.ID)
	fmt.Fprintf(&b, "| Dosage | %s |\n", tabs(p.Dosage))
	fmt.Fprintf(&b, "| Frequency | %s |\n", frequencyLabel(p.Frequency, len(p.Times)))
	fmt.Fprintf(&b, "| Times | %s |\n", displayTimes(p.Times))

	start := medication.StartOfDay(p.CreatedAt.In(now.Location()))
	fmt.Fprintf(&b, "| Started | %s |\n", start.Format("Jan 2 2006"))
	if p.Duration != nil {
		end := medication.EndDate(start, *p.Duration)
		fmt.Fprintf(&b, "| Duration | %d %s, last dose %s |\n", p.Duration.Value, p.Duration.Unit, end.Format("Jan 2 2006"))
	} else {
		b.WriteString("| Duration | ongoing |\n")
	}
	if note := p.FoodRequirements.FoodNote(); note != "" {
		fmt.Fprintf(&b, "| Food | %s |\n", note)
	}
	if p.NeedsRefill {
		b.WriteString("| Refill | **needed** |\n")
	}

	today := medication.DosesFor(p, now)
	b.WriteString("\n## Today\n\n")
	if len(today) == 0 {
		b.WriteString("Not scheduled today.\n")
		return b.String()
	}
	for _, e := range today {
		switch {
		case e.Taken && e.Late:
			fmt.Fprintf(&b, "- [x] %s (late)\n", medication.FormatDisplay(e.Time))
		case e.Taken:
			fmt.Fprintf(&b, "- [x] %s\n", medication.FormatDisplay(e.Time))
		case medication.IsDue(e.Time, now):
			fmt.Fprintf(&b, "- [ ] %s **due**\n", medication.FormatDisplay(e.Time))
		default:
			fmt.Fprintf(&b, "- [ ] %s\n", medication.FormatDisplay(e.Time))
		}
	}
	return b.String()
}
