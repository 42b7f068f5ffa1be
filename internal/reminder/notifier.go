package reminder

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/medication"
)

// LogNotifier writes notifications to the log. It is always attached so a
// headless daemon still surfaces reminders.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (l *LogNotifier) Show(ctx context.Context, n Notification) error {
	l.logger.Info(n.Title,
		zap.String("body", n.Body),
		zap.String("tag", n.Tag),
		zap.String("kind", string(n.Kind)),
		zap.String("time", medication.FormatDisplay(n.Time)),
	)
	return nil
}

// MultiNotifier fans a notification out to every notifier, returning the
// joined errors of those that failed
type MultiNotifier struct {
	mu        sync.RWMutex
	notifiers []Notifier
}

func NewMultiNotifier(notifiers ...Notifier) *MultiNotifier {
	return &MultiNotifier{notifiers: notifiers}
}

// Add attaches another notifier
func (m *MultiNotifier) Add(n Notifier) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.notifiers = append(m.notifiers, n)
}

func (m *MultiNotifier) Show(ctx context.Context, n Notification) error {
	m.mu.RLock()
	targets := append([]Notifier(nil), m.notifiers...)
	m.mu.RUnlock()

	var errs []error
	for _, t := range targets {
		if err := t.Show(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StaticPermission answers every permission request with a fixed value
type StaticPermission bool

func (p StaticPermission) RequestPermission(ctx context.Context) (bool, error) {
	return bool(p), nil
}
