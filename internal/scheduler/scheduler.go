package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// TickFunc is one unit of periodic work. A returned error is logged and the
// schedule carries on.
type TickFunc func(ctx context.Context) error

type Option func(*Scheduler)

// WithName labels the scheduler's log lines.
func WithName(name string) Option {
	return func(s *Scheduler) { s.name = name }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithoutImmediateTick waits a full interval before the first tick.
func WithoutImmediateTick() Option {
	return func(s *Scheduler) { s.immediate = false }
}

type Scheduler struct {
	name      string
	interval  time.Duration
	tickFn    TickFunc
	immediate bool
	logger    *slog.Logger

	running  atomic.Bool
	ticks    atomic.Int64
	failures atomic.Int64
	lastErr  atomic.Pointer[string]

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(interval time.Duration, tickFn TickFunc, opts ...Option) (*Scheduler, error) {
	if interval <= 0 {
		return nil, errors.New("interval must be > 0")
	}
	if tickFn == nil {
		return nil, errors.New("tickFn must not be nil")
	}
	s := &Scheduler{
		name:      "scheduler",
		interval:  interval,
		tickFn:    tickFn,
		immediate: true,
		logger:    slog.Default(),
		done:      make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With("scheduler", s.name)
	return s, nil
}

func (s *Scheduler) Start() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running.Load() {
		return false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.running.Store(true)

	go func() {
		defer close(s.done)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		s.logger.Info("scheduler started", "interval", s.interval.String())

		if s.immediate {
			s.safeTick(ctx)
		}

		for {
			select {
			case <-ctx.Done():
				s.logger.Info("scheduler stopping")
				return
			case <-ticker.C:
				s.safeTick(ctx)
			}
		}
	}()

	return true
}

func (s *Scheduler) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running.Load() {
		return false
	}

	s.cancel()
	<-s.done
	s.running.Store(false)

	s.logger.Info("scheduler stopped")
	return true
}

func (s *Scheduler) IsRunning() bool {
	return s.running.Load()
}

type Status struct {
	Name      string `json:"name"`
	Running   bool   `json:"running"`
	Interval  string `json:"interval"`
	Ticks     int64  `json:"ticks"`
	Failures  int64  `json:"failures"`
	LastError string `json:"lastError,omitempty"`
}

func (s *Scheduler) Status() Status {
	st := Status{
		Name:     s.name,
		Running:  s.running.Load(),
		Interval: s.interval.String(),
		Ticks:    s.ticks.Load(),
		Failures: s.failures.Load(),
	}
	if p := s.lastErr.Load(); p != nil {
		st.LastError = *p
	}
	return st
}

func (s *Scheduler) safeTick(ctx context.Context) {
	start := time.Now()
	err := s.runTick(ctx)
	s.ticks.Add(1)

	if err != nil {
		s.failures.Add(1)
		msg := err.Error()
		s.lastErr.Store(&msg)
		s.logger.Error("scheduler tick failed", "error", err, "duration_ms", time.Since(start).Milliseconds())
		return
	}
	s.lastErr.Store(nil)
	s.logger.Info("scheduler tick completed", "duration_ms", time.Since(start).Milliseconds())
}

func (s *Scheduler) runTick(ctx context.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("tick panic: %v", r)
		}
	}()
	return s.tickFn(ctx)
}
