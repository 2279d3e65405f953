package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"go-time-archive/internal/event"
	"go-time-archive/internal/metrics"
	"go-time-archive/internal/model"
)

const schedulerQueueSize = 256

var ErrQueueFull = errors.New("scheduler queue is full")

// RuleRunner executes one invocation of a rule key.
type RuleRunner interface {
	RunRule(ctx context.Context, key model.RuleKey) (model.RunStatistics, error)
}

type SchedulerOptions struct {
	// Interval is the minimum time between two runs of the same key.
	Interval time.Duration
	// Tick is how often due keys are looked up.
	Tick time.Duration
}

// Scheduler feeds due rule keys to a single worker. Execute holds the run
// slot, so at most one run executes at a time whether it came from the
// worker or from a caller.
type Scheduler struct {
	runner   RuleRunner
	schedule ScheduleStore
	runs     RunStore
	clock    Clock
	bus      event.Bus
	opts     SchedulerOptions
	logger   *slog.Logger

	queue   chan model.RuleKey
	running chan struct{}
	mu      sync.Mutex
	pending map[string]struct{}
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

func NewScheduler(runner RuleRunner, schedule ScheduleStore, runs RunStore, clock Clock, bus event.Bus, opts SchedulerOptions, logger *slog.Logger) *Scheduler {
	if opts.Interval <= 0 {
		opts.Interval = 24 * time.Hour
	}
	if opts.Tick <= 0 {
		opts.Tick = time.Minute
	}

	return &Scheduler{
		runner:   runner,
		schedule: schedule,
		runs:     runs,
		clock:    clock,
		bus:      bus,
		opts:     opts,
		logger:   logger.With("component", "scheduler"),
		queue:    make(chan model.RuleKey, schedulerQueueSize),
		running:  make(chan struct{}, 1),
		pending:  map[string]struct{}{},
	}
}

// Start launches the tick loop and the worker. They stop when ctx is done or
// Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.tickLoop(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.workerLoop(ctx)
	}()

	s.logger.Info("scheduler started", "interval", s.opts.Interval, "tick", s.opts.Tick)
}

// Stop cancels the loops and waits for a running invocation to return.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(s.opts.Tick)
	defer ticker.Stop()

	s.Tick(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Tick(ctx)
		}
	}
}

func (s *Scheduler) workerLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case key := <-s.queue:
			s.done(key)
			if _, err := s.Execute(ctx, key); err != nil {
				s.logger.Error("scheduled run failed", "rule_key", key.String(), "error", err)
			}
		}
	}
}

// Tick enqueues every key whose last run is older than the interval.
func (s *Scheduler) Tick(ctx context.Context) {
	if all, err := s.schedule.List(ctx); err == nil {
		metrics.ScheduledJobs.Set(float64(len(all)))
	}

	due, err := s.schedule.ListDue(ctx, s.clock.Now().Add(-s.opts.Interval))
	if err != nil {
		s.logger.Error("list due rules failed", "error", err)
		return
	}

	for _, job := range due {
		if err := s.Trigger(job.Key); err != nil {
			s.logger.Warn("could not queue rule", "rule_key", job.Key.String(), "error", err)
		}
	}
}

// Trigger queues key for the worker. A key already waiting is not queued
// twice.
func (s *Scheduler) Trigger(key model.RuleKey) error {
	if !key.Valid() {
		return fmt.Errorf("%w: rule key %s", model.ErrInvalidInput, key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	id := key.String()
	if _, queued := s.pending[id]; queued {
		return nil
	}

	select {
	case s.queue <- key:
		s.pending[id] = struct{}{}
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Scheduler) done(key model.RuleKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.pending, key.String())
}

// Execute runs key on the calling goroutine once no other run is in progress
// and records the outcome. A key whose rule is gone is removed from the
// schedule.
func (s *Scheduler) Execute(ctx context.Context, key model.RuleKey) (model.RunRecord, error) {
	select {
	case s.running <- struct{}{}:
	case <-ctx.Done():
		return model.RunRecord{}, fmt.Errorf("wait for running rule: %w", ctx.Err())
	}
	defer func() { <-s.running }()

	started := s.clock.Now()
	stats, runErr := s.runner.RunRule(ctx, key)
	finished := s.clock.Now()

	record := model.RunRecord{
		ID:         uuid.NewString(),
		RuleKey:    key.String(),
		Mode:       key.Mode(),
		Status:     model.RunStatusCompleted,
		Stats:      stats,
		StartedAt:  started,
		FinishedAt: finished,
	}

	switch {
	case errors.Is(runErr, model.ErrDeregister):
		record.Status = model.RunStatusDeregistered
		record.Error = runErr.Error()
		if err := s.schedule.Remove(ctx, key); err != nil {
			s.logger.Error("deregister rule failed", "rule_key", key.String(), "error", err)
		} else {
			s.logger.Info("rule deregistered", "rule_key", key.String())
		}
	case runErr != nil:
		record.Status = model.RunStatusFailed
		record.Error = runErr.Error()
	}

	if record.Status != model.RunStatusDeregistered {
		if err := s.schedule.MarkRun(ctx, key, started); err != nil {
			s.logger.Warn("mark rule run failed", "rule_key", key.String(), "error", err)
		}
	}

	metrics.Runs.WithLabelValues(record.Mode, record.Status).Inc()
	metrics.RunDuration.WithLabelValues(record.Mode).Observe(finished.Sub(started).Seconds())
	metrics.ObserveStats(record.Mode, stats)

	if s.runs != nil {
		if _, err := s.runs.Insert(ctx, record); err != nil {
			s.logger.Warn("persist run failed", "rule_key", key.String(), "error", err)
		}
	}

	eventType := event.TypeRunCompleted
	if record.Status == model.RunStatusFailed {
		eventType = event.TypeRunFailed
	}
	if s.bus != nil {
		s.bus.Publish(event.New(eventType, record.RuleKey, record))
	}

	if record.Status == model.RunStatusFailed {
		return record, runErr
	}
	return record, nil
}
