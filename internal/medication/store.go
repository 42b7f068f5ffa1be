package medication

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gmsas95/dosewise/internal/clock"
	apperrors "github.com/gmsas95/dosewise/internal/errors"
	"github.com/gmsas95/dosewise/internal/metrics"
)

// Repository persists the whole User record under a fixed key. GetUser
// returns nil, nil when no record exists yet.
type Repository interface {
	GetUser(ctx context.Context) (*User, error)
	SaveUser(ctx context.Context, user *User) error
	DeleteUser(ctx context.Context) error
}

// Listener is called after every successful change, with the store lock
// held. Listeners must not call back into the Store.
type Listener func(Snapshot)

// Options tunes a Store
type Options struct {
	// RetentionDays drops taken history older than this many days whenever
	// a dose is marked taken. Zero keeps history forever.
	RetentionDays int
	// NewID generates prescription ids; defaults to UUID v4
	NewID   func() string
	Metrics *metrics.Metrics
}

// Store owns the User record and the agenda derived from it
type Store struct {
	repo    Repository
	clock   clock.Clock
	logger  *zap.Logger
	opts    Options
	metrics *metrics.Metrics

	mu        sync.Mutex
	user      *User
	selected  time.Time
	agenda    []DoseEntry
	today     []DoseEntry
	listeners []Listener
}

// NewStore loads the user record and computes today's agenda
func NewStore(ctx context.Context, repo Repository, clk clock.Clock, logger *zap.Logger, opts Options) (*Store, error) {
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	user, err := repo.GetUser(ctx)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrLoad, err)
	}

	s := &Store{
		repo:     repo,
		clock:    clk,
		logger:   logger,
		opts:     opts,
		metrics:  opts.Metrics,
		user:     user,
		selected: StartOfDay(clk.Now()),
	}
	s.recompute()
	return s, nil
}

// OnChange registers a listener and immediately delivers the current
// snapshot to it
func (s *Store) OnChange(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
	l(s.snapshot())
}

// Onboarded reports whether a user profile exists
func (s *Store) Onboarded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user != nil
}

// User returns a copy of the user record, or nil before onboarding
func (s *Store) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.user.Clone()
}

// Prescriptions returns copies of every prescription in list order
func (s *Store) Prescriptions() []Prescription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil
	}
	out := make([]Prescription, 0, len(s.user.Prescriptions))
	for _, p := range s.user.Prescriptions {
		out = append(out, p.Clone())
	}
	return out
}

// Prescription returns a copy of the prescription with id, or nil
func (s *Store) Prescription(id string) *Prescription {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(id); i >= 0 {
		p := s.user.Prescriptions[i].Clone()
		return &p
	}
	return nil
}

// Snapshot returns the selected date with its agenda and today's agenda
func (s *Store) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

// Agenda returns the agenda for the selected date
func (s *Store) Agenda() []DoseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DoseEntry(nil), s.agenda...)
}

// Today returns today's agenda regardless of the selected date
func (s *Store) Today() []DoseEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DoseEntry(nil), s.today...)
}

// Selected returns the currently selected calendar date
func (s *Store) Selected() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.selected
}

// Onboard creates the user profile with exactly one prescription
func (s *Store) Onboard(ctx context.Context, name string, in PrescriptionInput) (*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user != nil {
		return nil, apperrors.ErrOnboarded
	}

	now := s.clock.Now()
	p, err := s.build(s.opts.NewID(), in, now)
	if err != nil {
		return nil, err
	}

	next := &User{
		Name:          name,
		Prescriptions: []Prescription{p},
		CreatedAt:     now,
	}
	if err := s.commit(ctx, "onboard", next); err != nil {
		return nil, err
	}

	s.logger.Info("User onboarded",
		zap.String("name", name),
		zap.String("prescription_id", p.ID),
	)
	out := p.Clone()
	return &out, nil
}

// Rename changes the profile name
func (s *Store) Rename(ctx context.Context, name string) error {
	name = strings.TrimSpace(name)
	if err := ValidateUserName(name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return apperrors.ErrNotOnboarded
	}

	next := s.user.Clone()
	next.Name = name
	if err := s.commit(ctx, "rename", next); err != nil {
		return err
	}

	s.logger.Info("User renamed", zap.String("name", name))
	return nil
}

// Create adds a prescription with a fresh id and createdAt = now
func (s *Store) Create(ctx context.Context, in PrescriptionInput) (*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.user == nil {
		return nil, apperrors.ErrNotOnboarded
	}

	p, err := s.build(s.opts.NewID(), in, s.clock.Now())
	if err != nil {
		return nil, err
	}

	next := s.user.Clone()
	next.Prescriptions = append(next.Prescriptions, p)
	if err := s.commit(ctx, "create", next); err != nil {
		return nil, err
	}

	s.logger.Info("Prescription created",
		zap.String("prescription_id", p.ID),
		zap.String("name", p.Name),
		zap.Strings("times", p.Times),
	)
	out := p.Clone()
	return &out, nil
}

// Update replaces the prescription with id, keeping its id, createdAt and
// taken history. Times are recomputed from the new input. A missing id is a
// no-op and returns nil, nil.
func (s *Store) Update(ctx context.Context, id string, in PrescriptionInput) (*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("Update of unknown prescription ignored", zap.String("prescription_id", id))
		return nil, nil
	}

	next := s.user.Clone()
	old := next.Prescriptions[i]

	p, err := s.build(old.ID, in, old.CreatedAt)
	if err != nil {
		return nil, err
	}
	p.TakenTimes = old.TakenTimes
	next.Prescriptions[i] = p

	if err := s.commit(ctx, "update", next); err != nil {
		return nil, err
	}

	s.logger.Info("Prescription updated",
		zap.String("prescription_id", p.ID),
		zap.Strings("times", p.Times),
	)
	out := p.Clone()
	return &out, nil
}

// Delete removes the prescription with id along with its taken history.
// A missing id is a no-op.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("Delete of unknown prescription ignored", zap.String("prescription_id", id))
		return nil
	}

	next := s.user.Clone()
	next.Prescriptions = append(next.Prescriptions[:i], next.Prescriptions[i+1:]...)
	if err := s.commit(ctx, "delete", next); err != nil {
		return err
	}

	s.logger.Info("Prescription deleted", zap.String("prescription_id", id))
	return nil
}

// MarkTaken records the dose at clock as taken today. Whether the dose is
// due yet is the caller's concern. Marking an already-taken dose keeps the
// original takenAt and writes nothing.
func (s *Store) MarkTaken(ctx context.Context, id, clockTime string) (*Prescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(id)
	if i < 0 {
		s.logger.Debug("Mark taken of unknown prescription ignored", zap.String("prescription_id", id))
		return nil, nil
	}

	now := s.clock.Now()
	if _, taken := s.user.Prescriptions[i].IsTaken(now, clockTime); taken {
		out := s.user.Prescriptions[i].Clone()
		return &out, nil
	}

	next := s.user.Clone()
	p := &next.Prescriptions[i]
	if p.TakenTimes == nil {
		p.TakenTimes = make(map[string]map[string]TakenRecord)
	}
	key := DateKey(now)
	if p.TakenTimes[key] == nil {
		p.TakenTimes[key] = make(map[string]TakenRecord)
	}
	takenAt := now
	p.TakenTimes[key][clockTime] = TakenRecord{Taken: true, TakenAt: &takenAt}

	if s.opts.RetentionDays > 0 {
		pruneHistory(next, now, s.opts.RetentionDays)
	}

	if err := s.commit(ctx, "mark_taken", next); err != nil {
		return nil, err
	}

	s.logger.Info("Dose marked taken",
		zap.String("prescription_id", id),
		zap.String("time", clockTime),
		zap.String("date", key),
	)
	out := next.Prescriptions[i].Clone()
	return &out, nil
}

// SelectDate changes the viewed date and recomputes its agenda
func (s *Store) SelectDate(date time.Time) Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.selected = StartOfDay(date)
	s.recompute()
	s.notify()
	return s.snapshot()
}

// Refresh recomputes both agendas against the current time. The daemon
// calls it when the calendar day rolls over.
func (s *Store) Refresh() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.recompute()
	s.notify()
	return s.snapshot()
}

// Reset deletes the stored user record
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.repo.DeleteUser(ctx); err != nil {
		s.metrics.RecordMutation("reset", err)
		return apperrors.WrapAs(apperrors.ErrPersist, err)
	}
	s.metrics.RecordMutation("reset", nil)

	s.user = nil
	s.recompute()
	s.notify()
	s.logger.Info("User record reset")
	return nil
}

// commit persists next and, only if that succeeds, swaps it in and
// propagates the new agenda. Must be called with s.mu held.
func (s *Store) commit(ctx context.Context, op string, next *User) error {
	if err := s.repo.SaveUser(ctx, next); err != nil {
		s.metrics.RecordMutation(op, err)
		s.logger.Error("Failed to persist user record", zap.String("op", op), zap.Error(err))
		return apperrors.WrapAs(apperrors.ErrPersist, err)
	}
	s.metrics.RecordMutation(op, nil)

	s.user = next
	s.recompute()
	s.notify()
	return nil
}

func (s *Store) build(id string, in PrescriptionInput, createdAt time.Time) (Prescription, error) {
	in = in.normalize()
	times, err := Resolve(in.Frequency, in.FirstDose, in.CustomCount)
	if err != nil {
		return Prescription{}, apperrors.Wrap(err, apperrors.ErrInvalidInput.Code, "cannot resolve dose times")
	}
	return Prescription{
		ID:               id,
		Name:             in.Name,
		Category:         in.Category,
		Uses:             in.Uses,
		Dosage:           in.Dosage,
		Frequency:        in.Frequency,
		Times:            times,
		Duration:         in.Duration,
		FoodRequirements: in.FoodRequirements,
		NeedsRefill:      in.NeedsRefill,
		CreatedAt:        createdAt,
	}, nil
}

func (s *Store) indexOf(id string) int {
	if s.user == nil {
		return -1
	}
	for i := range s.user.Prescriptions {
		if s.user.Prescriptions[i].ID == id {
			return i
		}
	}
	return -1
}

func (s *Store) recompute() {
	var list []Prescription
	if s.user != nil {
		list = s.user.Prescriptions
	}
	s.agenda = BuildAgenda(list, s.selected)
	s.today = BuildAgenda(list, s.clock.Now())
	s.metrics.SetAgendaSize(len(s.today))
}

func (s *Store) notify() {
	snap := s.snapshot()
	for _, l := range s.listeners {
		l(snap)
	}
}

func (s *Store) snapshot() Snapshot {
	return Snapshot{
		Selected: s.selected,
		Agenda:   append([]DoseEntry(nil), s.agenda...),
		Today:    append([]DoseEntry(nil), s.today...),
	}
}

// pruneHistory drops taken-history dates older than keepDays before now
func pruneHistory(u *User, now time.Time, keepDays int) {
	cutoff := DateKey(StartOfDay(now).AddDate(0, 0, -keepDays))
	for i := range u.Prescriptions {
		for date := range u.Prescriptions[i].TakenTimes {
			if date < cutoff {
				delete(u.Prescriptions[i].TakenTimes, date)
			}
		}
	}
}
