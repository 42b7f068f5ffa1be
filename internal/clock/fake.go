package clock

import (
	"sort"
	"sync"
	"time"
)

// Fake is a manually advanced clock. Callbacks run synchronously inside
// Advance, in fire-time order, on the caller's goroutine.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	seq    int
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *Fake
	at      time.Time
	seq     int
	fn      func()
	stopped bool
	fired   bool
}

// NewFake creates a fake clock set to now
func NewFake(now time.Time) *Fake {
	return &Fake{now: now}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) Schedule(at time.Time, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.seq++
	t := &fakeTimer{clock: f, at: at, seq: f.seq, fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Set moves the clock to now without firing anything
func (f *Fake) Set(now time.Time) {
	f.mu.Lock()
	f.now = now
	f.mu.Unlock()
}

// Advance moves the clock forward by d and fires every live timer whose
// instant is at or before the new time.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	target := f.now.Add(d)
	f.mu.Unlock()

	for {
		next := f.popDue(target)
		if next == nil {
			break
		}
		next.fn()
	}

	f.mu.Lock()
	f.now = target
	f.mu.Unlock()
}

// Pending returns the fire instants of live timers, earliest first
func (f *Fake) Pending() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []time.Time
	for _, t := range f.live() {
		out = append(out, t.at)
	}
	return out
}

func (f *Fake) popDue(target time.Time) *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()

	live := f.live()
	if len(live) == 0 || live[0].at.After(target) {
		return nil
	}
	t := live[0]
	t.fired = true
	if t.at.After(f.now) {
		f.now = t.at
	}
	return t
}

// live must be called with f.mu held
func (f *Fake) live() []*fakeTimer {
	kept := f.timers[:0]
	for _, t := range f.timers {
		if !t.stopped && !t.fired {
			kept = append(kept, t)
		}
	}
	f.timers = kept

	out := make([]*fakeTimer, len(kept))
	copy(out, kept)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].at.Equal(out[j].at) {
			return out[i].seq < out[j].seq
		}
		return out[i].at.Before(out[j].at)
	})
	return out
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()

	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}
