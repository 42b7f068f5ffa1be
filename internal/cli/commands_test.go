package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmsas95/dosewise/internal/app"
	"github.com/gmsas95/dosewise/internal/clock"
	"github.com/gmsas95/dosewise/internal/config"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
)

var cliNow = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func newTestContext(t *testing.T, onboard bool) (*Context, *bytes.Buffer) {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	cfg.Catalog.RemoteEnabled = false

	application := app.New(cfg, zaptest.NewLogger(t), "test")
	application.Clock = clock.NewFake(cliNow)
	application.Metrics = metrics.New()
	require.NoError(t, application.Open(context.Background()))
	t.Cleanup(func() { application.Close() })

	if onboard {
		_, err := application.Store.Onboard(context.Background(), "Ada", medication.PrescriptionInput{
			Name:      "Amoxicillin",
			Dosage:    1,
			Frequency: medication.FrequencyTwiceDaily,
			FirstDose: "08:00",
		})
		require.NoError(t, err)
	}

	out := &bytes.Buffer{}
	return &Context{App: application, In: strings.NewReader(""), Out: out}, out
}

func run(t *testing.T, c *Context, name string, args ...string) error {
	t.Helper()
	cmd, ok := Lookup(name)
	require.True(t, ok, name)
	return cmd(context.Background(), c, args)
}

func idOf(t *testing.T, c *Context, name string) string {
	t.Helper()
	for _, p := range c.App.Store.Prescriptions() {
		if p.Name == name {
			return p.ID
		}
	}
	t.Fatalf("no prescription named %s", name)
	return ""
}

func TestCommandsRequireProfile(t *testing.T) {
	c, _ := newTestContext(t, false)

	for _, name := range []string{"list", "agenda", "add", "tui"} {
		err := run(t, c, name)
		assert.Equal(t, apperrors.ErrNotOnboarded.Code, apperrors.GetCode(err), name)
	}
}

func TestAddAndList(t *testing.T) {
	c, out := newTestContext(t, true)

	require.NoError(t, run(t, c, "add", "--name", "Ibuprofen", "--dosage", "2", "--frequency", "every8hrs",
		"--first", "6:00", "--with-food", "--after", "30", "--uses", "pain, fever"))
	assert.Contains(t, out.String(), "✓ Added Ibuprofen")
	assert.Contains(t, out.String(), "6:00 AM, 2:00 PM, 10:00 PM")

	p := c.App.Store.Prescription(idOf(t, c, "Ibuprofen"))
	require.NotNil(t, p)
	assert.Equal(t, []string{"06:00", "14:00", "22:00"}, p.Times)
	assert.Equal(t, []string{"pain", "fever"}, p.Uses)
	require.NotNil(t, p.FoodRequirements)
	assert.True(t, p.FoodRequirements.WithFood)

	out.Reset()
	require.NoError(t, run(t, c, "list"))
	assert.Contains(t, out.String(), "Amoxicillin")
	assert.Contains(t, out.String(), "twice daily")
	assert.Contains(t, out.String(), "every 8 hours")
	assert.Contains(t, out.String(), "2 tabs")
}

func TestAddRejectsInvalidInput(t *testing.T) {
	c, _ := newTestContext(t, true)

	err := run(t, c, "add", "--name", "Ibuprofen", "--first", "25:00")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))

	err = run(t, c, "add", "--name", "Ibuprofen", "--first", "08:00", "--dosage", "9")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))

	err = run(t, c, "add", "--name", "Ibuprofen", "--first", "08:00", "--duration", "soon")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))

	assert.Len(t, c.App.Store.Prescriptions(), 1)
}

func TestEditKeepsUnsetFields(t *testing.T) {
	c, out := newTestContext(t, true)
	id := idOf(t, c, "Amoxicillin")

	require.NoError(t, run(t, c, "edit", id, "--dosage", "3", "--duration", "2 weeks"))
	assert.Contains(t, out.String(), "✓ Updated Amoxicillin")

	p := c.App.Store.Prescription(id)
	assert.Equal(t, 3, p.Dosage)
	assert.Equal(t, []string{"08:00", "20:00"}, p.Times)
	assert.Equal(t, &medication.Duration{Value: 2, Unit: medication.UnitWeeks}, p.Duration)

	require.NoError(t, run(t, c, "edit", id, "--duration", "none"))
	assert.Nil(t, c.App.Store.Prescription(id).Duration)

	err := run(t, c, "edit", "missing", "--dosage", "2")
	assert.Equal(t, apperrors.ErrNotFound.Code, apperrors.GetCode(err))
	err = run(t, c, "edit")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))
}

func TestTake(t *testing.T) {
	c, out := newTestContext(t, true)
	id := idOf(t, c, "Amoxicillin")

	require.NoError(t, run(t, c, "take", id))
	assert.Contains(t, out.String(), "✓ Took Amoxicillin at 8:00 AM")
	assert.True(t, c.App.Store.Today()[0].Taken)

	// the evening dose is the only open one and it is not due
	err := run(t, c, "take", id)
	assert.Error(t, err)
	assert.Contains(t, describe(err), "no due dose")

	err = run(t, c, "take", id, "20:00")
	assert.Contains(t, describe(err), "not due yet")

	err = run(t, c, "take", id, "7:00")
	assert.Contains(t, describe(err), "no dose of Amoxicillin scheduled at 07:00")

	err = run(t, c, "take", id, "seven")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))

	out.Reset()
	require.NoError(t, run(t, c, "take", id, "8:00"))
	assert.Contains(t, out.String(), "already taken")

	err = run(t, c, "take", "missing")
	assert.Equal(t, apperrors.ErrNotFound.Code, apperrors.GetCode(err))
}

func TestAgenda(t *testing.T) {
	c, out := newTestContext(t, true)

	require.NoError(t, run(t, c, "agenda"))
	assert.Contains(t, out.String(), "Mon, Mar 10 2025")
	assert.Contains(t, out.String(), "8:00 PM")

	out.Reset()
	require.NoError(t, run(t, c, "agenda", "--date", "2025-03-09"))
	assert.Contains(t, out.String(), "No doses scheduled.")

	err := run(t, c, "agenda", "--date", "tomorrow")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))

	// printing another day leaves the stored selection alone
	assert.Equal(t, medication.StartOfDay(cliNow), c.App.Store.Selected())
}

func TestShow(t *testing.T) {
	c, out := newTestContext(t, true)
	id := idOf(t, c, "Amoxicillin")
	require.NoError(t, run(t, c, "take", id))
	out.Reset()

	require.NoError(t, run(t, c, "show", id, "--raw"))
	md := out.String()
	assert.Contains(t, md, "# Amoxicillin")
	assert.Contains(t, md, "| Dosage | 1 tab |")
	assert.Contains(t, md, "| Duration | ongoing |")
	assert.Contains(t, md, "- [x] 8:00 AM")
	assert.Contains(t, md, "- [ ] 8:00 PM\n")

	out.Reset()
	require.NoError(t, run(t, c, "show", id))
	assert.Contains(t, out.String(), "Amoxicillin")

	err := run(t, c, "show", "missing")
	assert.Equal(t, apperrors.ErrNotFound.Code, apperrors.GetCode(err))
}

func TestPrescriptionCardDuration(t *testing.T) {
	p := medication.Prescription{
		ID:               "rx-1",
		Name:             "Doxycycline",
		Category:         "Antibiotic",
		Uses:             []string{"acne"},
		Dosage:           2,
		Frequency:        medication.FrequencyCustom,
		Times:            []string{"08:00", "16:00", "00:00"},
		Duration:         &medication.Duration{Value: 7, Unit: medication.UnitDays},
		NeedsRefill:      true,
		FoodRequirements: &medication.FoodRequirements{WithFood: true},
		CreatedAt:        cliNow.AddDate(0, 0, -10),
	}

	md := prescriptionCard(p, cliNow)
	assert.Contains(t, md, "*Antibiotic* for acne")
	assert.Contains(t, md, "| Frequency | 3 times a day |")
	assert.Contains(t, md, "| Duration | 7 days, last dose Mar 7 2025 |")
	assert.Contains(t, md, "| Food | with food |")
	assert.Contains(t, md, "**needed**")
	assert.Contains(t, md, "Not scheduled today.")
}

func TestRemove(t *testing.T) {
	c, out := newTestContext(t, true)
	id := idOf(t, c, "Amoxicillin")

	err := run(t, c, "rm", "missing")
	assert.Equal(t, apperrors.ErrNotFound.Code, apperrors.GetCode(err))

	require.NoError(t, run(t, c, "rm", id))
	assert.Contains(t, out.String(), "✓ Removed Amoxicillin")
	assert.Empty(t, c.App.Store.Prescriptions())
	assert.Empty(t, c.App.Store.Today())
}

func TestSearch(t *testing.T) {
	c, out := newTestContext(t, false)

	require.NoError(t, run(t, c, "search", "--limit", "5", "amox"))
	assert.Contains(t, out.String(), "Amoxicillin")

	out.Reset()
	require.NoError(t, run(t, c, "search", "qqqzzz"))
	assert.Contains(t, out.String(), "No medicines match")

	err := run(t, c, "search", "a")
	assert.Equal(t, apperrors.ErrInvalidInput.Code, apperrors.GetCode(err))
}

func TestReset(t *testing.T) {
	c, out := newTestContext(t, true)

	c.In = strings.NewReader("no\n")
	require.NoError(t, run(t, c, "reset"))
	assert.Contains(t, out.String(), "Cancelled")
	assert.True(t, c.App.Store.Onboarded())

	c.In = strings.NewReader("yes\n")
	require.NoError(t, run(t, c, "reset"))
	assert.False(t, c.App.Store.Onboarded())

	require.NoError(t, run(t, c, "reset", "--yes"))
}

func TestRename(t *testing.T) {
	c, _ := newTestContext(t, false)
	assert.ErrorIs(t, run(t, c, "rename", "Grace"), apperrors.ErrNotOnboarded)

	c, out := newTestContext(t, true)
	require.NoError(t, run(t, c, "rename", "Grace", "Hopper"))
	assert.Contains(t, out.String(), "Profile renamed to Grace Hopper")
	assert.Equal(t, "Grace Hopper", c.App.Store.User().Name)

	assert.ErrorIs(t, run(t, c, "rename"), apperrors.ErrInvalidInput)
	assert.ErrorIs(t, run(t, c, "rename", "Grace\tH"), apperrors.ErrInvalidInput)
	assert.Equal(t, "Grace Hopper", c.App.Store.User().Name)
}

func TestNotifyTest(t *testing.T) {
	granted := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/notifications/test", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if !granted {
			w.WriteHeader(http.StatusConflict)
			w.Write([]byte(`{"error":"notification permission not granted","code":"NOTIFY_002"}`))
			return
		}
		w.Write([]byte(`{"notification":{"tag":"test-notification","kind":"test"},"clients":2}`))
	}))
	defer srv.Close()

	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	addr := srv.Listener.Addr().(*net.TCPAddr)
	cfg.Server.Address = addr.IP.String()
	cfg.Server.Port = addr.Port

	out := &bytes.Buffer{}
	require.NoError(t, notifyTest(out, cfg))
	assert.Contains(t, out.String(), "sent to 2 client(s)")

	granted = false
	err = notifyTest(out, cfg)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Equal(t, "notification permission not granted", describe(err))
}

func TestNotifyTestWithoutDaemon(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	addr := srv.Listener.Addr().(*net.TCPAddr)
	srv.Close()

	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Server.Address = addr.IP.String()
	cfg.Server.Port = addr.Port

	err = notifyTest(&bytes.Buffer{}, cfg)
	assert.ErrorIs(t, err, apperrors.ErrNotificationFailed)
	assert.Contains(t, describe(err), "dosewise server")
}

func TestStatus(t *testing.T) {
	c, out := newTestContext(t, false)
	require.NoError(t, run(t, c, "status"))
	assert.Contains(t, out.String(), "Storage: memory")
	assert.Contains(t, out.String(), "dosewise onboard")

	c, out = newTestContext(t, true)
	require.NoError(t, run(t, c, "status"))
	assert.Contains(t, out.String(), "Good morning, Ada.")
	assert.Contains(t, out.String(), "Profile:       Ada")
	assert.Contains(t, out.String(), "Today:         0 of 2 doses taken")
	assert.Contains(t, out.String(), "Next dose:     Amoxicillin at 8:00 PM")
}

func TestGreeting(t *testing.T) {
	at := func(h int) time.Time { return time.Date(2025, 3, 10, h, 0, 0, 0, time.UTC) }
	assert.Equal(t, "Good morning", greeting(at(5)))
	assert.Equal(t, "Good afternoon", greeting(at(12)))
	assert.Equal(t, "Good evening", greeting(at(21)))
	assert.Equal(t, "Hello", greeting(at(2)))
}

func TestConfigCommand(t *testing.T) {
	dir := t.TempDir()
	out := &bytes.Buffer{}

	require.NoError(t, configCommand(out, []string{"init"}, "", dir))
	path := filepath.Join(dir, config.FileName)
	assert.FileExists(t, path)
	assert.Contains(t, out.String(), path)

	assert.Error(t, configCommand(out, []string{"init"}, "", dir))
	assert.NoError(t, configCommand(out, []string{"init", "--force"}, "", dir))

	out.Reset()
	require.NoError(t, configCommand(out, []string{"path"}, "", dir))
	assert.Equal(t, path+"\n", out.String())

	out.Reset()
	require.NoError(t, configCommand(out, []string{"show"}, "", dir))
	assert.Contains(t, out.String(), "lead_minutes: 5")

	cfg, err := config.Load(path, dir)
	require.NoError(t, err)
	assert.Equal(t, 8787, cfg.Server.Port)
}

func TestDoctor(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"suggestionGroup":{"name":"aspirin","suggestionList":{"suggestion":["aspirin"]}}}`))
	}))
	defer srv.Close()

	t.Setenv("DOSEWISE_STORAGE_DRIVER", "memory")
	t.Setenv("DOSEWISE_CATALOG_REMOTE_URL", srv.URL)

	out := &bytes.Buffer{}
	issues := doctor(context.Background(), out, "", t.TempDir())

	assert.Equal(t, 1, issues)
	assert.Contains(t, out.String(), "✅ Config: Loaded successfully")
	assert.Contains(t, out.String(), "✅ Storage (memory): Opened")
	assert.Contains(t, out.String(), "Profile: Not set up")
	assert.Contains(t, out.String(), "✅ RxNav: Reachable")
}

func TestDoctorBadConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	require.NoError(t, os.WriteFile(path, []byte("storage:\n  driver: floppy\n"), 0644))

	out := &bytes.Buffer{}
	assert.Equal(t, 1, doctor(context.Background(), out, path, dir))
	assert.Contains(t, out.String(), "❌ Config")
}

func TestDescribe(t *testing.T) {
	assert.Equal(t, "name is required", describe(apperrors.Invalid("name is required")))
	assert.Equal(t, "failed to persist user record: disk full",
		describe(apperrors.WrapAs(apperrors.ErrPersist, errors.New("disk full"))))
	assert.Equal(t, "plain", describe(errors.New("plain")))
}

func TestPrintFunctions(t *testing.T) {
	PrintExtendedHelp(io.Discard)
	PrintConfigHelp(io.Discard)
}
