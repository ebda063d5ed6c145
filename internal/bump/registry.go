package bump

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"ex-sniper/internal/clock"
	"ex-sniper/internal/docstore"
	"ex-sniper/internal/safe"
	"ex-sniper/pkg/sniper"
)

// Documents persists flat JSON documents.
type Documents interface {
	Load(name string, target any) (bool, error)
	Save(name string, value any) error
}

// Option mutates registry configuration.
type Option func(*Registry)

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(registry *Registry) {
		if logger != nil {
			registry.logger = logger
		}
	}
}

// WithClock replaces the wall clock used by task loops.
func WithClock(c clock.Clock) Option {
	return func(registry *Registry) {
		if c != nil {
			registry.clock = c
		}
	}
}

// WithDocuments persists jobs through documents.
func WithDocuments(documents Documents) Option {
	return func(registry *Registry) {
		registry.documents = documents
	}
}

// Registry owns bump jobs and their background tasks.
//
// At most one task runs per job. Every mutating call persists the job table.
// Close stops all tasks and must be called before the process exits.
type Registry struct {
	sender    sniper.MessageSender
	documents Documents
	logger    *slog.Logger
	clock     clock.Clock

	baseCtx    context.Context
	baseCancel context.CancelFunc
	tasks      sync.WaitGroup

	mu   sync.Mutex
	jobs map[string]*entry
}

type entry struct {
	job    Job
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a registry that sends through sender.
func New(sender sniper.MessageSender, options ...Option) *Registry {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	registry := &Registry{
		sender:     sender,
		logger:     slog.Default(),
		clock:      clock.Real(),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		jobs:       make(map[string]*entry),
	}
	for _, option := range options {
		option(registry)
	}

	return registry
}

// Add registers an inactive fixed-delay job. It reports false when id exists.
func (r *Registry) Add(id, channelID, payload string, delay time.Duration) (bool, error) {
	return r.add(Job{ID: id, ChannelID: channelID, Payload: payload, Delay: delay})
}

// AddSchedule registers an inactive job driven by a cron expression.
// It reports false when id exists.
func (r *Registry) AddSchedule(id, channelID, payload, schedule string) (bool, error) {
	return r.add(Job{ID: id, ChannelID: channelID, Payload: payload, Schedule: schedule})
}

func (r *Registry) add(job Job) (bool, error) {
	if err := job.Validate(); err != nil {
		return false, fmt.Errorf("bump add: %w", err)
	}
	job.Active = false

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.jobs[job.ID]; exists {
		return false, nil
	}
	r.jobs[job.ID] = &entry{job: job}
	if err := r.saveLocked(); err != nil {
		return true, fmt.Errorf("bump add %s: %w", job.ID, err)
	}

	return true, nil
}

// Remove stops the job when active, then deletes it. It reports false when
// id does not exist.
func (r *Registry) Remove(id string) (bool, error) {
	r.mu.Lock()
	current, exists := r.jobs[id]
	if !exists {
		r.mu.Unlock()
		return false, nil
	}
	done := r.stopLocked(current)
	delete(r.jobs, id)
	err := r.saveLocked()
	r.mu.Unlock()

	waitDone(done)
	if err != nil {
		return true, fmt.Errorf("bump remove %s: %w", id, err)
	}

	return true, nil
}

// Start spawns the job task. Starting an active job is a no-op success.
// It reports false when id does not exist.
func (r *Registry) Start(id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.jobs[id]
	if !exists {
		return false, nil
	}
	if current.job.Active {
		return true, nil
	}
	if r.baseCtx.Err() != nil {
		return false, fmt.Errorf("bump start %s: %w", id, r.baseCtx.Err())
	}

	taskCtx, cancel := context.WithCancel(r.baseCtx)
	current.job.Active = true
	current.cancel = cancel
	current.done = make(chan struct{})
	r.spawn(taskCtx, current.job, current.done)

	if err := r.saveLocked(); err != nil {
		return true, fmt.Errorf("bump start %s: %w", id, err)
	}

	return true, nil
}

// Stop cancels the job task and waits for it to exit; stopping an inactive
// job is a no-op success. It reports false when id does not exist.
func (r *Registry) Stop(id string) (bool, error) {
	r.mu.Lock()
	current, exists := r.jobs[id]
	if !exists {
		r.mu.Unlock()
		return false, nil
	}
	wasActive := current.job.Active
	done := r.stopLocked(current)
	var err error
	if wasActive {
		err = r.saveLocked()
	}
	r.mu.Unlock()

	waitDone(done)
	if err != nil {
		return true, fmt.Errorf("bump stop %s: %w", id, err)
	}

	return true, nil
}

// Get returns one job.
func (r *Registry) Get(id string) (Job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.jobs[id]
	if !exists {
		return Job{}, false
	}

	return current.job, true
}

// List returns all jobs ordered by id.
func (r *Registry) List() []Job {
	r.mu.Lock()
	defer r.mu.Unlock()

	jobs := make([]Job, 0, len(r.jobs))
	for _, current := range r.jobs {
		jobs = append(jobs, current.job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].ID < jobs[j].ID
	})

	return jobs
}

// Restore loads persisted jobs as inactive and, when resume is set, starts
// the ones persisted as active. It returns the ids that were started.
func (r *Registry) Restore(resume bool) ([]string, error) {
	if r.documents == nil {
		return nil, nil
	}

	var stored map[string]storedJob
	if _, err := r.documents.Load(docstore.BumpsDocument, &stored); err != nil {
		return nil, fmt.Errorf("bump restore: %w", err)
	}

	r.mu.Lock()
	var pending []string
	for id, document := range stored {
		job := fromStored(id, document)
		if err := job.Validate(); err != nil {
			r.logger.Warn("skip invalid persisted bump", "bump_id", id, "error", err)
			continue
		}
		if _, exists := r.jobs[id]; exists {
			continue
		}
		if job.Active && resume {
			pending = append(pending, id)
		}
		job.Active = false
		r.jobs[id] = &entry{job: job}
	}
	r.mu.Unlock()

	sort.Strings(pending)
	started := make([]string, 0, len(pending))
	for _, id := range pending {
		ok, err := r.Start(id)
		if err != nil {
			return started, err
		}
		if ok {
			started = append(started, id)
		}
	}

	return started, nil
}

// Close stops every task and waits for them to exit. Jobs keep their
// persisted active flag so Restore can resume them.
func (r *Registry) Close() {
	r.baseCancel()

	r.mu.Lock()
	for _, current := range r.jobs {
		if current.cancel != nil {
			current.cancel()
		}
	}
	r.mu.Unlock()

	r.tasks.Wait()
}

func (r *Registry) stopLocked(current *entry) chan struct{} {
	if !current.job.Active {
		return nil
	}
	current.cancel()
	current.job.Active = false
	done := current.done
	current.cancel = nil
	current.done = nil

	return done
}

func (r *Registry) spawn(ctx context.Context, job Job, done chan struct{}) {
	r.tasks.Add(1)
	go func() {
		defer r.tasks.Done()
		defer close(done)

		if err := safe.Run("bump "+job.ID, func() error {
			return r.runTask(ctx, job)
		}); err != nil {
			r.logger.Error("bump task stopped", "bump_id", job.ID, "error", err)
			r.markExited(job.ID, done)
		}
	}()
}

// markExited clears the active flag of a job whose task died on its own so a
// later Start can spawn it again. Entries already stopped or restarted keep
// their state.
func (r *Registry) markExited(id string, done chan struct{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, exists := r.jobs[id]
	if !exists || current.done != done || !current.job.Active {
		return
	}
	current.cancel()
	current.job.Active = false
	current.cancel = nil
	current.done = nil
	if err := r.saveLocked(); err != nil {
		r.logger.Warn("persist exited bump failed", "bump_id", id, "error", err)
	}
}

func (r *Registry) runTask(ctx context.Context, job Job) error {
	r.logger.InfoContext(ctx, "bump task started",
		"bump_id", job.ID,
		"channel_id", job.ChannelID,
		"delay", job.Delay,
		"schedule", job.Schedule,
	)
	// Fixed-delay jobs send immediately; scheduled jobs wait for their first tick.
	if job.Schedule == "" {
		r.send(ctx, job)
	}

	for {
		wait, err := job.nextWait(r.clock.Now())
		if err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case <-r.clock.After(wait):
		}
		if ctx.Err() != nil {
			return nil
		}
		r.send(ctx, job)
	}
}

func (r *Registry) send(ctx context.Context, job Job) {
	if _, err := r.sender.SendMessage(ctx, job.ChannelID, job.Payload); err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.WarnContext(ctx, "bump send failed",
			"bump_id", job.ID,
			"channel_id", job.ChannelID,
			"error", err,
		)
	}
}

func (r *Registry) saveLocked() error {
	if r.documents == nil {
		return nil
	}
	snapshot := make(map[string]storedJob, len(r.jobs))
	for id, current := range r.jobs {
		snapshot[id] = toStored(current.job)
	}

	return r.documents.Save(docstore.BumpsDocument, snapshot)
}

func waitDone(done chan struct{}) {
	if done != nil {
		<-done
	}
}
