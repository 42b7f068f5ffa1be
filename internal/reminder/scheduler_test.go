package reminder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/gmsas95/dosewise/internal/clock"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
)

type memRepo struct {
	mu   sync.Mutex
	user *medication.User
}

func (r *memRepo) GetUser(ctx context.Context) (*medication.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.user.Clone(), nil
}

func (r *memRepo) SaveUser(ctx context.Context, u *medication.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = u.Clone()
	return nil
}

func (r *memRepo) DeleteUser(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.user = nil
	return nil
}

type recorder struct {
	mu    sync.Mutex
	shown []Notification
	err   error
	hook  func(Notification)
}

func (r *recorder) Show(ctx context.Context, n Notification) error {
	r.mu.Lock()
	r.shown = append(r.shown, n)
	hook := r.hook
	r.mu.Unlock()
	if hook != nil {
		hook(n)
	}
	return r.err
}

func (r *recorder) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, n := range r.shown {
		out = append(out, n.Tag)
	}
	return out
}

var morning = time.Date(2025, 3, 10, 7, 0, 0, 0, time.UTC)

type harness struct {
	store *medication.Store
	sched *Scheduler
	clock *clock.Fake
	rec   *recorder
}

func newHarness(t *testing.T, now time.Time, cfg Config) *harness {
	t.Helper()
	clk := clock.NewFake(now)
	rec := &recorder{}
	logger := zaptest.NewLogger(t)

	n := 0
	store, err := medication.NewStore(context.Background(), &memRepo{}, clk, logger, medication.Options{
		NewID: func() string { n++; return fmt.Sprintf("rx-%d", n) },
	})
	require.NoError(t, err)

	sched := NewScheduler(clk, rec, logger, metrics.New(), cfg)
	store.OnChange(sched.Rearm)
	return &harness{store: store, sched: sched, clock: clk, rec: rec}
}

func (h *harness) onboard(t *testing.T, first string) {
	t.Helper()
	_, err := h.store.Onboard(context.Background(), "Ada", medication.PrescriptionInput{
		Name:      "Amoxicillin",
		Dosage:    1,
		Frequency: medication.FrequencyTwiceDaily,
		FirstDose: first,
	})
	require.NoError(t, err)
}

func TestArmsReminderAndDue(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	assert.Equal(t, []string{
		"rx-1-due-08:00",
		"rx-1-due-20:00",
		"rx-1-reminder-08:00",
		"rx-1-reminder-20:00",
	}, h.sched.Armed())

	h.clock.Advance(55 * time.Minute)
	require.Equal(t, []string{"rx-1-reminder-08:00"}, h.rec.tags())
	assert.Equal(t, "Time to take Amoxicillin in 5 minutes", h.rec.shown[0].Body)
	assert.False(t, h.rec.shown[0].RequireInteraction)

	h.clock.Advance(5 * time.Minute)
	require.Len(t, h.rec.shown, 2)
	due := h.rec.shown[1]
	assert.Equal(t, "rx-1-due-08:00", due.Tag)
	assert.Equal(t, "Medication Due", due.Title)
	assert.True(t, due.RequireInteraction)
	assert.Equal(t, []Action{{ID: ActionTake, Title: "Mark as Taken"}, {ID: ActionDismiss, Title: "Dismiss"}}, due.Actions)
	assert.Equal(t, "2025-03-10", due.Date)

	assert.Len(t, h.sched.Armed(), 2)
}

func TestEditCancelsStaleTimers(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	_, err := h.store.Update(context.Background(), "rx-1", medication.PrescriptionInput{
		Name:      "Amoxicillin",
		Dosage:    1,
		Frequency: medication.FrequencyTwiceDaily,
		FirstDose: "09:00",
	})
	require.NoError(t, err)

	assert.Equal(t, []string{
		"rx-1-due-09:00",
		"rx-1-due-21:00",
		"rx-1-reminder-09:00",
		"rx-1-reminder-21:00",
	}, h.sched.Armed())

	h.clock.Advance(17 * time.Hour)
	assert.Equal(t, []string{
		"rx-1-reminder-09:00",
		"rx-1-due-09:00",
		"rx-1-reminder-21:00",
		"rx-1-due-21:00",
	}, h.rec.tags())
}

func TestDeleteCancelsOnlyThatPrescription(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	_, err := h.store.Create(context.Background(), medication.PrescriptionInput{
		Name:      "Ibuprofen",
		Dosage:    2,
		Frequency: medication.FrequencyTwiceDaily,
		FirstDose: "10:00",
	})
	require.NoError(t, err)
	require.Len(t, h.sched.Armed(), 8)

	require.NoError(t, h.store.Delete(context.Background(), "rx-1"))
	assert.Equal(t, []string{
		"rx-2-due-10:00",
		"rx-2-due-22:00",
		"rx-2-reminder-10:00",
		"rx-2-reminder-22:00",
	}, h.sched.Armed())

	h.clock.Advance(17 * time.Hour)
	for _, tag := range h.rec.tags() {
		assert.Contains(t, tag, "rx-2-")
	}
	assert.Len(t, h.rec.shown, 4)
}

func TestPastInstantsDiscarded(t *testing.T) {
	h := newHarness(t, morning.Add(62*time.Minute), Config{Granted: true})
	h.onboard(t, "08:00")

	assert.Equal(t, []string{"rx-1-due-20:00", "rx-1-reminder-20:00"}, h.sched.Armed())

	h.clock.Advance(time.Hour)
	assert.Empty(t, h.rec.shown)
}

func TestReminderAtExactlyNowIsDiscarded(t *testing.T) {
	h := newHarness(t, time.Date(2025, 3, 10, 7, 55, 0, 0, time.UTC), Config{Granted: true})
	h.onboard(t, "08:00")

	assert.NotContains(t, h.sched.Armed(), "rx-1-reminder-08:00")
	assert.Contains(t, h.sched.Armed(), "rx-1-due-08:00")
}

func TestReminderBeforeMidnightForEarlyDose(t *testing.T) {
	h := newHarness(t, time.Date(2025, 3, 10, 23, 0, 0, 0, time.UTC), Config{Granted: true})
	h.onboard(t, "00:02")

	assert.Equal(t, []string{"rx-1-reminder-00:02"}, h.sched.Armed())

	h.clock.Advance(57 * time.Minute)
	require.Len(t, h.rec.shown, 1)
	assert.Equal(t, "rx-1-reminder-00:02", h.rec.shown[0].Tag)
	assert.Equal(t, "2025-03-11", h.rec.shown[0].Date)
	assert.Empty(t, h.sched.Armed())
}

func TestTakenDosesNotArmed(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	_, err := h.store.MarkTaken(context.Background(), "rx-1", "08:00")
	require.NoError(t, err)

	assert.Equal(t, []string{"rx-1-due-20:00", "rx-1-reminder-20:00"}, h.sched.Armed())
}

func TestPermissionGate(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: false})
	h.onboard(t, "08:00")
	assert.Empty(t, h.sched.Armed())

	h.clock.Advance(2 * time.Hour)
	assert.Empty(t, h.rec.shown)

	granted, err := h.sched.RequestPermission(context.Background(), StaticPermission(true))
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, []string{"rx-1-due-20:00", "rx-1-reminder-20:00"}, h.sched.Armed())

	h.sched.SetPermission(false)
	assert.Empty(t, h.sched.Armed())
	assert.False(t, h.sched.Granted())
}

type failingPermission struct{}

func (failingPermission) RequestPermission(ctx context.Context) (bool, error) {
	return true, errors.New("prompt closed")
}

func TestPermissionRequestFailureIsDenied(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	granted, err := h.sched.RequestPermission(context.Background(), failingPermission{})
	assert.Error(t, err)
	assert.False(t, granted)
	assert.Empty(t, h.sched.Armed())
}

func TestLateFollowUpCancelledByTake(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true, LateFollowUp: true})
	h.onboard(t, "08:00")
	require.Contains(t, h.sched.Armed(), "rx-1-late-08:00")

	h.rec.hook = func(n Notification) {
		if n.Kind == KindDue && n.Time == "08:00" {
			require.NoError(t, RouteAction(context.Background(), h.store, ActionEvent{
				Action:         ActionTake,
				PrescriptionID: n.PrescriptionID,
				Time:           n.Time,
			}))
		}
	}

	h.clock.Advance(90 * time.Minute)
	assert.Equal(t, []string{"rx-1-reminder-08:00", "rx-1-due-08:00"}, h.rec.tags())
	assert.True(t, h.store.Today()[0].Taken)
}

func TestLateFollowUpFiresWhenNotTaken(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true, LateFollowUp: true, Lead: 10 * time.Minute})
	h.onboard(t, "08:00")

	h.clock.Advance(80 * time.Minute)
	require.Equal(t, []string{"rx-1-reminder-08:00", "rx-1-due-08:00", "rx-1-late-08:00"}, h.rec.tags())
	assert.Equal(t, "Time to take Amoxicillin in 10 minutes", h.rec.shown[0].Body)
	assert.Equal(t, "Missed Medication", h.rec.shown[2].Title)
}

// leakyClock hands out timers whose Stop never prevents the callback, like a
// time.AfterFunc callback that has already started when Stop is called
type leakyClock struct{ *clock.Fake }

type leakyTimer struct{}

func (leakyTimer) Stop() bool { return false }

func (c leakyClock) Schedule(at time.Time, fn func()) clock.Timer {
	c.Fake.Schedule(at, fn)
	return leakyTimer{}
}

func TestStaleCallbackDropped(t *testing.T) {
	clk := leakyClock{clock.NewFake(morning)}
	rec := &recorder{}
	sched := NewScheduler(clk, rec, zaptest.NewLogger(t), nil, Config{Granted: true})

	entry := func(first string) medication.Snapshot {
		p := medication.Prescription{ID: "rx-1", Name: "Amoxicillin", Dosage: 1, Times: []string{first}, CreatedAt: morning}
		return medication.Snapshot{Today: medication.BuildAgenda([]medication.Prescription{p}, morning)}
	}

	sched.Rearm(entry("08:00"))
	sched.Rearm(entry("09:00"))

	clk.Advance(3 * time.Hour)
	assert.Equal(t, []string{"rx-1-reminder-09:00", "rx-1-due-09:00"}, rec.tags())
}

func TestStop(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.onboard(t, "08:00")

	h.sched.Stop()
	assert.Empty(t, h.sched.Armed())

	h.store.Refresh()
	assert.Empty(t, h.sched.Armed())

	h.clock.Advance(24 * time.Hour)
	assert.Empty(t, h.rec.shown)
}

func TestNotifierErrorIsCounted(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})
	h.rec.err = errors.New("no display")
	h.onboard(t, "08:00")

	h.clock.Advance(time.Hour)
	assert.Len(t, h.rec.shown, 2)
	assert.Len(t, h.sched.Armed(), 2)
}

func TestSendTest(t *testing.T) {
	h := newHarness(t, morning, Config{Granted: true})

	n, err := h.sched.SendTest(context.Background())
	require.NoError(t, err)
	assert.Equal(t, KindTest, n.Kind)
	assert.Equal(t, []string{TestTag}, h.rec.tags())
	assert.True(t, h.rec.shown[0].RequireInteraction)
	assert.Equal(t, morning, h.rec.shown[0].FireAt)

	h.rec.err = errors.New("no display")
	_, err = h.sched.SendTest(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrNotificationFailed)

	h.sched.SetPermission(false)
	_, err = h.sched.SendTest(context.Background())
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)
	assert.Len(t, h.rec.shown, 2)
}

func TestDueBodyIncludesFoodNote(t *testing.T) {
	thirty := 30
	entry := medication.DoseEntry{
		Prescription: medication.Prescription{
			ID:               "rx-7",
			Name:             "Metformin",
			Dosage:           2,
			FoodRequirements: &medication.FoodRequirements{WithFood: true, TimeBeforeFood: &thirty},
		},
		Date: morning,
		Time: "08:00",
	}

	n := build(entry, KindDue, DefaultLead, morning)
	assert.Equal(t, "Time to take 2 tabs of Metformin (30 min before food)", n.Body)
	assert.Equal(t, "rx-7-due-08:00", n.Tag)
}
