package reminder

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/clock"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/medication"
	"github.com/gmsas95/dosewise/internal/metrics"
)

// DefaultLead is the reminder offset before a dose, and the late follow-up
// offset after it
const DefaultLead = 5 * time.Minute

// Notifier shows a notification
type Notifier interface {
	Show(ctx context.Context, n Notification) error
}

// PermissionSource asks the user whether notifications may be shown
type PermissionSource interface {
	RequestPermission(ctx context.Context) (bool, error)
}

// Config holds scheduler settings
type Config struct {
	Lead          time.Duration
	LateFollowUp  bool
	Granted       bool
	NotifyTimeout time.Duration
}

// Scheduler keeps exactly the timers of the latest agenda armed
type Scheduler struct {
	clock    clock.Clock
	notifier Notifier
	logger   *zap.Logger
	metrics  *metrics.Metrics
	config   Config

	mu         sync.Mutex
	granted    bool
	stopped    bool
	generation uint64
	timers     map[string]clock.Timer
	last       *medication.Snapshot
}

type stage struct {
	kind Kind
	at   time.Time
}

// NewScheduler creates a scheduler. Nothing is armed until Rearm is called.
func NewScheduler(clk clock.Clock, notifier Notifier, logger *zap.Logger, m *metrics.Metrics, config Config) *Scheduler {
	if config.Lead <= 0 {
		config.Lead = DefaultLead
	}
	if config.NotifyTimeout <= 0 {
		config.NotifyTimeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		clock:    clk,
		notifier: notifier,
		logger:   logger,
		metrics:  m,
		config:   config,
		granted:  config.Granted,
		timers:   make(map[string]clock.Timer),
	}
}

// Rearm cancels every armed timer and arms the reminder, due and optional
// late timers of each pending dose in today's agenda, plus reminders of
// tomorrow's doses that fall before midnight. Fire instants that are not in
// the future are dropped. It has the shape of a store listener.
func (s *Scheduler) Rearm(snap medication.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.last = &snap
	s.rearm()
}

// SetPermission records the permission outcome and re-arms the last agenda
func (s *Scheduler) SetPermission(granted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.granted != granted {
		s.logger.Info("Notification permission changed", zap.Bool("granted", granted))
	}
	s.granted = granted
	s.rearm()
}

// Granted reports the current permission state
func (s *Scheduler) Granted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.granted
}

// RequestPermission awaits one answer from src and applies it. A failed
// request counts as denied.
func (s *Scheduler) RequestPermission(ctx context.Context, src PermissionSource) (bool, error) {
	granted, err := src.RequestPermission(ctx)
	if err != nil {
		s.logger.Warn("Notification permission request failed", zap.Error(err))
		granted = false
	}
	s.SetPermission(granted)
	return granted, err
}

// SendTest shows a test notification right away. It fails with
// ErrPermissionDenied while permission is not granted.
func (s *Scheduler) SendTest(ctx context.Context) (Notification, error) {
	s.mu.Lock()
	granted := s.granted
	s.mu.Unlock()

	n := TestNotification(s.clock.Now())
	if !granted {
		return n, apperrors.ErrPermissionDenied
	}

	ctx, cancel := context.WithTimeout(ctx, s.config.NotifyTimeout)
	defer cancel()

	err := s.notifier.Show(ctx, n)
	s.metrics.RecordNotification(string(n.Kind), err)
	if err != nil {
		return n, apperrors.WrapAs(apperrors.ErrNotificationFailed, err)
	}
	s.logger.Info("Test notification sent")
	return n, nil
}

// Armed returns the tags of live timers, sorted
func (s *Scheduler) Armed() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	tags := make([]string, 0, len(s.timers))
	for tag := range s.timers {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Stop cancels everything; later Rearm calls are ignored
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelAll()
	s.stopped = true
	s.logger.Info("Reminder scheduler stopped")
}

// rearm must be called with s.mu held
func (s *Scheduler) rearm() {
	s.cancelAll()
	if s.stopped || s.last == nil {
		return
	}
	if !s.granted {
		s.logger.Debug("Notification permission not granted; nothing armed")
		return
	}

	now := s.clock.Now()
	gen := s.generation
	for _, entry := range medication.Pending(s.last.Today) {
		scheduled := entry.Scheduled()
		stages := []stage{
			{KindReminder, scheduled.Add(-s.config.Lead)},
			{KindDue, scheduled},
		}
		if s.config.LateFollowUp {
			stages = append(stages, stage{KindLate, scheduled.Add(s.config.Lead)})
		}

		for _, st := range stages {
			s.arm(gen, now, entry, st)
		}
	}

	// a dose just after midnight has its reminder before the rollover
	// re-arms, so it is armed from today
	for _, entry := range s.earlyTomorrow() {
		s.arm(gen, now, entry, stage{KindReminder, entry.Scheduled().Add(-s.config.Lead)})
	}

	s.metrics.SetTimersLive(len(s.timers))
	s.logger.Debug("Reminders armed",
		zap.Int("timers", len(s.timers)),
		zap.Uint64("generation", gen),
	)
}

func (s *Scheduler) arm(gen uint64, now time.Time, entry medication.DoseEntry, st stage) {
	if !st.at.After(now) {
		s.metrics.RecordTimerSkipped(string(st.kind))
		return
	}
	n := build(entry, st.kind, s.config.Lead, st.at)
	s.timers[n.Tag] = s.clock.Schedule(st.at, s.fire(gen, n))
	s.metrics.RecordTimerArmed(string(st.kind))
}

// earlyTomorrow returns tomorrow's doses whose reminder falls before
// midnight. A prescription active tomorrow is already on today's agenda.
func (s *Scheduler) earlyTomorrow() []medication.DoseEntry {
	if len(s.last.Today) == 0 {
		return nil
	}
	tomorrow := medication.StartOfDay(s.last.Today[0].Date).AddDate(0, 0, 1)

	var out []medication.DoseEntry
	seen := make(map[string]bool)
	for _, entry := range s.last.Today {
		if seen[entry.Prescription.ID] {
			continue
		}
		seen[entry.Prescription.ID] = true
		for _, next := range medication.DosesFor(entry.Prescription, tomorrow) {
			if next.Scheduled().Add(-s.config.Lead).Before(tomorrow) {
				out = append(out, next)
			}
		}
	}
	return out
}

// cancelAll stops every live timer and invalidates callbacks already in
// flight
func (s *Scheduler) cancelAll() {
	for tag, t := range s.timers {
		t.Stop()
		delete(s.timers, tag)
		s.metrics.RecordTimersCancelled(1)
	}
	s.generation++
	s.metrics.SetTimersLive(0)
}

func (s *Scheduler) fire(gen uint64, n Notification) func() {
	return func() {
		s.mu.Lock()
		if gen != s.generation || s.stopped {
			s.mu.Unlock()
			return
		}
		delete(s.timers, n.Tag)
		s.metrics.SetTimersLive(len(s.timers))
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.Background(), s.config.NotifyTimeout)
		defer cancel()

		err := s.notifier.Show(ctx, n)
		s.metrics.RecordNotification(string(n.Kind), err)
		if err != nil {
			s.logger.Error("Failed to show notification",
				zap.String("tag", n.Tag),
				zap.Error(apperrors.WrapAs(apperrors.ErrNotificationFailed, err)),
			)
		}
	}
}
