package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

var ErrInvalidInterval = errors.New("interval must be at least one hour")

type Fetcher interface {
	FetchCurrencyRates(ctx context.Context) error
}

type Pruner interface {
	RemoveOldHistory(ctx context.Context) (int64, error)
}

// Scheduler runs the rate fetch every N hours and the history prune on a
// fixed cron spec.
type Scheduler struct {
	cron      *cron.Cron
	fetcher   Fetcher
	pruner    Pruner
	pruneSpec string
	logger    *logrus.Logger

	mu       sync.Mutex
	fetchID  cron.EntryID
	interval int
}

func New(fetcher Fetcher, pruner Pruner, pruneSpec string, logger *logrus.Logger) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger)),
		),
		fetcher:   fetcher,
		pruner:    pruner,
		pruneSpec: pruneSpec,
		logger:    logger,
	}
}

func fetchSpec(hours int) string {
	return fmt.Sprintf("@every %dh", hours)
}

// Start registers both jobs and starts the cron loop.
func (s *Scheduler) Start(intervalHours int) error {
	if _, err := s.cron.AddFunc(s.pruneSpec, s.runPrune); err != nil {
		return fmt.Errorf("add prune job %q: %w", s.pruneSpec, err)
	}
	if err := s.Reschedule(intervalHours); err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Infof("Scheduler started: fetch every %dh, prune at %q", intervalHours, s.pruneSpec)
	return nil
}

// Reschedule replaces the fetch job with one running every hours hours.
func (s *Scheduler) Reschedule(hours int) error {
	if hours < 1 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, hours)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.fetchID != 0 && s.interval == hours {
		return nil
	}

	id, err := s.cron.AddFunc(fetchSpec(hours), s.runFetch)
	if err != nil {
		return fmt.Errorf("add fetch job: %w", err)
	}
	if s.fetchID != 0 {
		s.cron.Remove(s.fetchID)
		s.logger.Infof("Fetch job rescheduled from every %dh to every %dh", s.interval, hours)
	}
	s.fetchID = id
	s.interval = hours
	return nil
}

func (s *Scheduler) Interval() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// Stop halts the cron loop and returns a context done when running jobs finish.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) runFetch() {
	s.logger.Info("Scheduled currency rate fetch started")
	if err := s.fetcher.FetchCurrencyRates(context.Background()); err != nil {
		s.logger.WithError(err).Error("Scheduled currency rate fetch failed")
		return
	}
	s.logger.Info("Scheduled currency rate fetch finished")
}

func (s *Scheduler) runPrune() {
	deleted, err := s.pruner.RemoveOldHistory(context.Background())
	if err != nil {
		s.logger.WithError(err).Error("Scheduled history prune failed")
		return
	}
	s.logger.Infof("Scheduled history prune removed %d rows", deleted)
}
