package app

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmsas95/dosewise/internal/clock"
	"github.com/gmsas95/dosewise/internal/config"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		version string
	}{
		{name: "create app with version", version: "1.0.0"},
		{name: "create app with dev version", version: "dev"},
		{name: "create app with empty version", version: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := New(nil, nil, tt.version)
			require.NotNil(t, app)
			assert.Equal(t, tt.version, app.Version)
			assert.NotNil(t, app.Logger)
		})
	}
}

func TestNewLogger(t *testing.T) {
	logger, err := NewLogger(config.LogConfig{Level: "debug", Format: "json"})
	require.NoError(t, err)
	assert.True(t, logger.Core().Enabled(-1))

	logger, err = NewLogger(config.LogConfig{Level: "warn", Format: "console"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(0))

	_, err = NewLogger(config.LogConfig{Level: "loud"})
	assert.Error(t, err)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Default(t.TempDir())
	require.NoError(t, err)
	cfg.Storage.Driver = "memory"
	cfg.Catalog.RemoteEnabled = false
	return cfg
}

func newTestApp(t *testing.T, cfg *config.Config, now time.Time) (*App, *clock.Fake) {
	t.Helper()
	clk := clock.NewFake(now)
	app := New(cfg, zaptest.NewLogger(t), "test")
	app.Clock = clk
	app.Metrics = metrics.New()
	require.NoError(t, app.Open(context.Background()))
	t.Cleanup(func() { app.Close() })
	return app, clk
}

func onboard(t *testing.T, app *App) {
	t.Helper()
	_, err := app.Store.Onboard(context.Background(), "Ada", medication.PrescriptionInput{
		Name:      "Amoxicillin",
		Dosage:    1,
		Frequency: medication.FrequencyTwiceDaily,
		FirstDose: "08:00",
	})
	require.NoError(t, err)
}

func TestOpen(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC))

	assert.NotNil(t, app.Backend)
	assert.False(t, app.Store.Onboarded())
	assert.Greater(t, app.Catalog.Len(), 100)
	assert.Len(t, app.Lookup.Search(context.Background(), "amox", 5), 2)

	require.NoError(t, app.Close())
	require.NoError(t, app.Close())
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig(t)
	cfg.Storage.Driver = "etcd"

	app := New(cfg, zaptest.NewLogger(t), "test")
	app.Metrics = metrics.New()
	assert.Error(t, app.Open(context.Background()))
}

func TestRollover(t *testing.T) {
	app, clk := newTestApp(t, testConfig(t), time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC))
	onboard(t, app)

	_, err := app.Store.MarkTaken(context.Background(), app.Store.Prescriptions()[0].ID, "08:00")
	require.NoError(t, err)
	assert.True(t, app.Store.Today()[0].Taken)

	clk.Set(time.Date(2025, 3, 11, 0, 0, 0, 0, time.UTC))
	require.NoError(t, app.rollover(context.Background()))

	today := app.Store.Today()
	require.Len(t, today, 2)
	assert.Equal(t, 11, today[0].Date.Day())
	assert.False(t, today[0].Taken)
}

func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port
}

func TestRunServesUntilCancelled(t *testing.T) {
	cfg := testConfig(t)
	cfg.Server.Port = freePort(t)
	app, _ := newTestApp(t, cfg, time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC))
	onboard(t, app)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- app.Run(ctx) }()

	url := fmt.Sprintf("http://%s/api/health", cfg.Listen())
	assert.Eventually(t, func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	assert.Equal(t, []string{
		"rx-1-due-08:00", "rx-1-due-20:00", "rx-1-reminder-08:00", "rx-1-reminder-20:00",
	}, tagsWithPrefix(app.Scheduler.Armed(), app.Store.Prescriptions()[0].ID, "rx-1"))

	entries := app.CronRunner.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, RolloverJob, entries[0].Name)
	assert.Equal(t, "@midnight", entries[0].Spec)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
	assert.Empty(t, app.Scheduler.Armed())
	assert.False(t, app.CronRunner.IsRunning())
}

// prescription ids are UUIDs outside tests; swap in a stable name
func tagsWithPrefix(tags []string, id, alias string) []string {
	out := make([]string, len(tags))
	for i, tag := range tags {
		if len(tag) > len(id) && tag[:len(id)] == id {
			tag = alias + tag[len(id):]
		}
		out[i] = tag
	}
	return out
}
