package app

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/bobmcallan/sift/internal/common"
	"github.com/bobmcallan/sift/internal/interfaces"
	"github.com/bobmcallan/sift/internal/models"
)

// Scheduler runs background jobs on cron expressions that include a seconds field.
// A job still running when its next tick fires is skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *common.Logger

	ctx    context.Context
	cancel context.CancelFunc
}

// NewScheduler creates a stopped scheduler
func NewScheduler(logger *common.Logger) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		cron: cron.New(
			cron.WithSeconds(),
			cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
		),
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Register adds a named job. An empty schedule leaves the job unscheduled.
func (s *Scheduler) Register(schedule, name string, job func(ctx context.Context)) error {
	if schedule == "" {
		s.logger.Info().Str("job", name).Msg("Scheduler: job has no schedule, skipped")
		return nil
	}
	_, err := s.cron.AddFunc(schedule, func() {
		if s.ctx.Err() != nil {
			return
		}

		start := time.Now()
		s.logger.Debug().Str("job", name).Msg("Scheduler: job started")
		job(s.ctx)
		s.logger.Info().Str("job", name).Str("elapsed", time.Since(start).String()).Msg("Scheduler: job complete")
	})
	if err != nil {
		return fmt.Errorf("register %s job (%q): %w", name, schedule, err)
	}
	s.logger.Info().Str("job", name).Str("schedule", schedule).Msg("Scheduler: job registered")
	return nil
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.cron.Entries())
}

// Start starts the cron loop in its own goroutine
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info().Int("jobs", s.Jobs()).Msg("Scheduler: started")
}

// Stop cancels running jobs and waits for them to return
func (s *Scheduler) Stop() {
	s.cancel()
	<-s.cron.Stop().Done()
	s.logger.Info().Msg("Scheduler: stopped")
}

// runWarmCache is the scheduled warm_cache job
func (a *App) runWarmCache(ctx context.Context) {
	warmCache(ctx, a.Chain, a.Screener.Universe(), a.screenPeriod(), a.Config.Screen.Workers, a.Logger)
}

// runScreen is the scheduled screen job. The result is kept as the
// screener's last run.
func (a *App) runScreen(ctx context.Context) {
	result, err := a.Screener.Screen(ctx, a.Screener.Universe(), interfaces.ScreenOptions{})
	if err != nil {
		a.Logger.Warn().Err(err).Msg("Scheduled screen failed")
		return
	}
	a.Logger.Info().
		Str("run_id", result.RunID).
		Int("candidates", len(result.Candidates)).
		Msg("Scheduled screen complete")
}

func (a *App) screenPeriod() models.Period {
	return models.ParsePeriod(a.Config.Screen.Period)
}
