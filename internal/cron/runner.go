// Package cron runs the daemon's calendar jobs
package cron

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	robfig "github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// Config holds cron runner configuration
type Config struct {
	// Location the job specs are evaluated in; local time when nil
	Location *time.Location
	// JobTimeout bounds a single job run
	JobTimeout time.Duration
}

// Func is the body of a job
type Func func(ctx context.Context) error

// Entry describes a registered job
type Entry struct {
	Name string
	Spec string
	Next time.Time
}

type job struct {
	name string
	spec string
	id   robfig.EntryID
	fn   Func
}

// Runner manages scheduled job execution
type Runner struct {
	config Config
	cron   *robfig.Cron
	logger *zap.Logger
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.RWMutex
	jobs    map[string]*job
	running bool
}

// NewRunner creates a new cron runner
func NewRunner(config Config, logger *zap.Logger) *Runner {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		config: config,
		cron:   robfig.New(robfig.WithLocation(config.Location)),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
		jobs:   make(map[string]*job),
	}
}

// AddJob registers fn under a standard cron spec ("@midnight", "0 3 * * *")
func (r *Runner) AddJob(name, spec string, fn Func) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[name]; ok {
		return fmt.Errorf("job %q already registered", name)
	}

	j := &job{name: name, spec: spec, fn: fn}
	id, err := r.cron.AddFunc(spec, func() { r.execute(j) })
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}
	j.id = id
	r.jobs[name] = j

	r.logger.Info("Scheduled job added", zap.String("name", name), zap.String("spec", spec))
	return nil
}

// RunNow executes a registered job immediately on the caller's goroutine
func (r *Runner) RunNow(name string) error {
	r.mu.RLock()
	j, ok := r.jobs[name]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job %q not found", name)
	}
	return r.execute(j)
}

// Start starts the cron runner
func (r *Runner) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return fmt.Errorf("cron runner already running")
	}

	r.running = true
	r.cron.Start()
	r.logger.Info("Cron runner started", zap.Int("jobs", len(r.jobs)))
	return nil
}

// Stop stops the cron runner and waits for running jobs
func (r *Runner) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	r.cancel()
	<-r.cron.Stop().Done()
	r.logger.Info("Cron runner stopped")
}

// IsRunning returns whether the runner is active
func (r *Runner) IsRunning() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.running
}

// Entries lists the registered jobs by name. Next is zero until the runner
// has started.
func (r *Runner) Entries() []Entry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Entry, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, Entry{Name: j.name, Spec: j.spec, Next: r.cron.Entry(j.id).Next})
	}
	sort.Slice(out, func(i, k int) bool { return out[i].Name < out[k].Name })
	return out
}

func (r *Runner) execute(j *job) error {
	ctx, cancel := context.WithTimeout(r.ctx, r.config.JobTimeout)
	defer cancel()

	start := time.Now()
	err := j.fn(ctx)
	if err != nil {
		r.logger.Error("Job execution failed", zap.String("name", j.name), zap.Error(err))
		return err
	}
	r.logger.Info("Job completed",
		zap.String("name", j.name),
		zap.Duration("took", time.Since(start)),
	)
	return nil
}
