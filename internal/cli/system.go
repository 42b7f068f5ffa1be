package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/app"
	"github.com/gmsas95/dosewise/internal/catalog"
	"github.com/gmsas95/dosewise/internal/config"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
)

const notifyTestTimeout = 5 * time.Second

func runStatus(ctx context.Context, c *Context, args []string) error {
	cfg := c.App.Config
	st := c.App.Store

	fmt.Fprintln(c.Out, "DoseWise Status")
	fmt.Fprintln(c.Out, "===============")
	fmt.Fprintln(c.Out)
	fmt.Fprintf(c.Out, "Version: %s\n", Version)
	fmt.Fprintf(c.Out, "Data:    %s\n", cfg.Storage.DataDir)
	fmt.Fprintf(c.Out, "Storage: %s\n", cfg.Storage.Driver)
	fmt.Fprintf(c.Out, "API:     http://%s\n", cfg.Listen())
	fmt.Fprintln(c.Out)

	if !st.Onboarded() {
		fmt.Fprintln(c.Out, "No profile yet. Run 'dosewise onboard' to get started.")
		return nil
	}

	now := c.App.Clock.Now()
	today := st.Today()
	taken := 0
	var next *medication.DoseEntry
	for i, e := range today {
		if e.Taken {
			taken++
			continue
		}
		if next == nil && !medication.IsDue(e.Time, now) {
			next = &today[i]
		}
	}

	fmt.Fprintf(c.Out, "%s, %s.\n\n", greeting(now), st.User().Name)
	fmt.Fprintf(c.Out, "Profile:       %s\n", st.User().Name)
	fmt.Fprintf(c.Out, "Prescriptions: %d\n", len(st.Prescriptions()))
	fmt.Fprintf(c.Out, "Today:         %d of %d doses taken\n", taken, len(today))
	if next != nil {
		fmt.Fprintf(c.Out, "Next dose:     %s at %s\n", next.Prescription.Name, medication.FormatDisplay(next.Time))
	}
	return nil
}

func runRename(ctx context.Context, c *Context, args []string) error {
	if err := requireOnboarded(c); err != nil {
		return err
	}
	name := strings.TrimSpace(strings.Join(args, " "))
	if name == "" {
		fmt.Fprintln(c.Out, "Usage: dosewise rename <name>")
		return apperrors.Invalid("name is required")
	}
	if err := c.App.Store.Rename(ctx, name); err != nil {
		return err
	}
	fmt.Fprintf(c.Out, "✓ Profile renamed to %s\n", c.App.Store.User().Name)
	return nil
}

func greeting(now time.Time) string {
	switch hour := now.Hour(); {
	case hour >= 5 && hour < 12:
		return "Good morning"
	case hour >= 12 && hour < 17:
		return "Good afternoon"
	case hour >= 17 && hour < 22:
		return "Good evening"
	default:
		return "Hello"
	}
}

// HandleDoctorCommand checks the local setup and exits non-zero when
// anything is wrong
func HandleDoctorCommand(configPath, dataDir string) {
	if issues := doctor(context.Background(), os.Stdout, configPath, dataDir); issues > 0 {
		os.Exit(1)
	}
}

func doctor(ctx context.Context, out io.Writer, configPath, dataDir string) int {
	fmt.Fprintln(out, "DoseWise Diagnostics")
	fmt.Fprintln(out, "====================")
	fmt.Fprintln(out)

	issues := 0

	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		fmt.Fprintln(out, "❌ Config: Error loading configuration")
		fmt.Fprintf(out, "   %v\n", err)
		return 1
	}
	fmt.Fprintln(out, "✅ Config: Loaded successfully")

	if _, err := os.Stat(cfg.Storage.DataDir); err != nil {
		fmt.Fprintln(out, "❌ Data Directory: Does not exist")
		issues++
	} else {
		fmt.Fprintf(out, "✅ Data Directory: %s\n", cfg.Storage.DataDir)
	}

	application := app.New(cfg, zap.NewNop(), Version)
	if err := application.Open(ctx); err != nil {
		fmt.Fprintf(out, "❌ Storage (%s): %v\n", cfg.Storage.Driver, err)
		issues++
	} else {
		defer application.Close()
		fmt.Fprintf(out, "✅ Storage (%s): Opened\n", cfg.Storage.Driver)
		if application.Store.Onboarded() {
			fmt.Fprintf(out, "✅ Profile: %s, %d prescription(s)\n", application.Store.User().Name, len(application.Store.Prescriptions()))
		} else {
			fmt.Fprintln(out, "⚠️  Profile: Not set up")
			fmt.Fprintln(out, "   Run: dosewise onboard")
			issues++
		}
	}

	if _, err := os.Stat(cfg.Catalog.Path); err == nil {
		cat, _ := catalog.New()
		if err := cat.LoadFile(cfg.Catalog.Path); err != nil {
			fmt.Fprintf(out, "❌ Medicine catalog: %v\n", err)
			issues++
		} else {
			fmt.Fprintf(out, "✅ Medicine catalog: %s (%d entries)\n", cfg.Catalog.Path, cat.Len())
		}
	} else {
		fmt.Fprintln(out, "✅ Medicine catalog: Built-in list")
	}

	if cfg.Catalog.RemoteEnabled {
		rx := catalog.NewRxNav(catalog.RxNavConfig{
			BaseURL:       cfg.Catalog.RemoteURL,
			Timeout:       time.Duration(cfg.Catalog.TimeoutSeconds) * time.Second,
			RatePerSecond: cfg.Catalog.RatePerSecond,
		}, zap.NewNop())
		if _, err := rx.Suggest(ctx, "aspirin"); err != nil {
			fmt.Fprintln(out, "⚠️  RxNav: Unreachable, lookups use the local catalog only")
			fmt.Fprintf(out, "   %v\n", err)
			issues++
		} else {
			fmt.Fprintln(out, "✅ RxNav: Reachable")
		}
	} else {
		fmt.Fprintln(out, "✅ RxNav: Disabled")
	}

	fmt.Fprintln(out)
	if issues == 0 {
		fmt.Fprintln(out, "✅ All checks passed!")
	} else {
		fmt.Fprintf(out, "⚠️  Found %d issue(s).\n", issues)
	}
	return issues
}

// HandleConfigCommand manages the config file
func HandleConfigCommand(args []string, configPath, dataDir string) {
	if err := configCommand(os.Stdout, args, configPath, dataDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

func configCommand(out io.Writer, args []string, configPath, dataDir string) error {
	if len(args) == 0 {
		PrintConfigHelp(out)
		return nil
	}

	if dataDir == "" {
		dataDir = config.ResolveEnvWithAliases("DOSEWISE_STORAGE_DATA_DIR")
	}
	if dataDir == "" {
		dataDir = config.DefaultDataDir()
	}
	if configPath == "" {
		configPath = filepath.Join(dataDir, config.FileName)
	}

	switch args[0] {
	case "init":
		fs := newFlagSet("config init", out)
		force := fs.Bool("force", false, "Overwrite an existing file")
		if err := fs.Parse(args[1:]); err != nil {
			return err
		}
		cfg, err := config.Default(dataDir)
		if err != nil {
			return err
		}
		if err := config.WriteFile(configPath, cfg, *force); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ Wrote %s\n", configPath)

	case "path":
		fmt.Fprintln(out, configPath)

	case "show", "view":
		data, err := os.ReadFile(configPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		fmt.Fprint(out, string(data))

	default:
		PrintConfigHelp(out)
	}
	return nil
}

// HandleNotifyTestCommand asks the running daemon to show a test
// notification
func HandleNotifyTestCommand(configPath, dataDir string) {
	cfg, err := config.Load(configPath, dataDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
	if err := notifyTest(os.Stdout, cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", describe(err))
		os.Exit(1)
	}
}

// notifyTest goes through the daemon's API since the daemon holds the
// store and the connected clients
func notifyTest(out io.Writer, cfg *config.Config) error {
	agent := fiber.Post(fmt.Sprintf("http://%s/api/notifications/test", cfg.Listen()))
	agent.Timeout(notifyTestTimeout)
	if err := agent.Parse(); err != nil {
		return err
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperrors.New(apperrors.ErrNotificationFailed.Code,
			fmt.Sprintf("daemon not reachable at %s; start it with: dosewise server", cfg.Listen()), errs[0])
	}

	var resp struct {
		Error   string `json:"error"`
		Code    string `json:"code"`
		Clients int    `json:"clients"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return fmt.Errorf("unexpected response from daemon (status %d): %w", code, err)
	}
	if code != fiber.StatusOK {
		if resp.Code == "" {
			resp.Code = apperrors.ErrNotificationFailed.Code
		}
		return apperrors.New(resp.Code, resp.Error)
	}

	if resp.Clients == 0 {
		fmt.Fprintln(out, "✓ Test notification logged; no clients are connected")
		return nil
	}
	fmt.Fprintf(out, "✓ Test notification sent to %d client(s)\n", resp.Clients)
	return nil
}
