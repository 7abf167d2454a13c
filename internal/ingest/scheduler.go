package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron"
)

// Scheduler runs periodic fetch cycles against the Runner. Manually
// triggered cycles and scheduled ones share the Runner's overlap guard, so a
// slow manual fetch simply makes the scheduler skip a beat.
type Scheduler struct {
	scheduler        *gocron.Scheduler
	runner           *Runner
	disasterInterval time.Duration
	aqiInterval      time.Duration
	timeout          time.Duration
	logger           *slog.Logger
}

// NewScheduler creates the periodic fetch scheduler. Disaster and AQI cycles
// run on independent intervals.
func NewScheduler(runner *Runner, disasterInterval, aqiInterval time.Duration, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		scheduler:        gocron.NewScheduler(time.UTC),
		runner:           runner,
		disasterInterval: disasterInterval,
		aqiInterval:      aqiInterval,
		timeout:          30 * time.Minute,
		logger:           logger,
	}
}

// Start schedules the periodic jobs and starts the underlying scheduler.
// When runNow is true the first cycles fire immediately.
func (s *Scheduler) Start(runNow bool) error {
	disasters := s.scheduler.Every(s.disasterInterval)
	aqi := s.scheduler.Every(s.aqiInterval)
	if runNow {
		disasters = disasters.StartImmediately()
		aqi = aqi.StartImmediately()
	}
	if _, err := disasters.Do(s.runDisasterCycle); err != nil {
		return err
	}
	if _, err := aqi.Do(s.runAQICycle); err != nil {
		return err
	}
	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

func (s *Scheduler) runDisasterCycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.runner.RunDisasters(ctx, 0); err != nil && !errors.Is(err, ErrCycleInFlight) {
		s.logger.Error("scheduled disaster cycle failed", "error", err)
	}
}

func (s *Scheduler) runAQICycle() {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if _, err := s.runner.RunAQI(ctx, 0); err != nil && !errors.Is(err, ErrCycleInFlight) {
		s.logger.Error("scheduled aqi cycle failed", "error", err)
	}
}
