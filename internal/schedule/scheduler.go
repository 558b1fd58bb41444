// Package schedule runs recurring crawl and index jobs on cron expressions.
package schedule

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/JakeFAU/websearch/internal/logging"
)

// Job is one unit of recurring work.
type Job func(ctx context.Context) error

// parser accepts standard 5-field expressions (minute hour dom month dow) and descriptors like @hourly.
var parser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate reports whether expr is a usable cron expression.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("parse cron %q: %w", expr, err)
	}
	return nil
}

// Scheduler wraps a cron runner. Jobs never run concurrently: a job due while
// another runs waits for it, and a job still pending when its next tick
// arrives skips that tick.
type Scheduler struct {
	logger *zap.Logger
	cron   *cron.Cron

	// running serializes jobs across entries.
	running sync.Mutex

	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	names  map[cron.EntryID]string
}

// New builds an idle Scheduler.
func New(logger *zap.Logger) *Scheduler {
	logger = logging.OrNop(logger)
	cl := cronLogger{logger: logger.Sugar()}
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		logger: logger,
		cron: cron.New(
			cron.WithParser(parser),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		ctx:    ctx,
		cancel: cancel,
		names:  make(map[cron.EntryID]string),
	}
}

// Add registers job under name. An empty expr is ignored.
func (s *Scheduler) Add(name, expr string, job Job) error {
	if expr == "" {
		return nil
	}
	id, err := s.cron.AddFunc(expr, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("schedule %s: %w", name, err)
	}
	s.mu.Lock()
	s.names[id] = name
	s.mu.Unlock()
	s.logger.Info("job scheduled", zap.String("job", name), zap.String("expr", expr))
	return nil
}

// Len reports how many jobs are registered.
func (s *Scheduler) Len() int {
	return len(s.cron.Entries())
}

// Next returns the next activation of the named job, or the zero time.
func (s *Scheduler) Next(name string) time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range s.cron.Entries() {
		if s.names[e.ID] == name {
			return e.Next
		}
	}
	return time.Time{}
}

// Start begins firing jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop cancels running jobs and waits for them to return.
func (s *Scheduler) Stop() {
	stopped := s.cron.Stop()
	s.cancel()
	<-stopped.Done()
}

func (s *Scheduler) run(name string, job Job) {
	s.running.Lock()
	defer s.running.Unlock()
	if s.ctx.Err() != nil {
		return
	}
	start := time.Now()
	s.logger.Info("job started", zap.String("job", name))
	if err := job(s.ctx); err != nil {
		s.logger.Error("job failed", zap.String("job", name), zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return
	}
	s.logger.Info("job finished", zap.String("job", name), zap.Duration("elapsed", time.Since(start)))
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
