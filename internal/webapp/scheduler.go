package webapp

import (
	"fmt"
	"time"

	"github.com/go-co-op/gocron/v2"
)

// startScheduler sets up the periodic reconciliation jobs. Without a
// configured drift interval the scheduler stays off and only webhook
// deliveries drive the daemon.
func (s *Server) startScheduler() error {
	interval := s.cfg.Defaults.WebApp.DriftInterval
	if interval == "" {
		return nil
	}
	duration, err := time.ParseDuration(interval)
	if err != nil {
		return fmt.Errorf("invalid drift interval '%s': %w", interval, err)
	}

	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return fmt.Errorf("failed to create scheduler: %w", err)
	}

	for _, orgCtx := range s.orgs {
		_, err := scheduler.NewJob(
			gocron.DurationJob(duration),
			gocron.NewTask(func() {
				if err := s.queue.Enqueue(s.newDriftTask(orgCtx)); err != nil {
					s.logger.Warn().Err(err).Str("org", orgCtx.org.GitHubID).Msg("failed to enqueue drift detection")
				}
			}),
			gocron.WithName("drift-"+orgCtx.org.GitHubID),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule drift detection for organization '%s': %w", orgCtx.org.GitHubID, err)
		}
	}

	if len(s.cfg.Defaults.WebApp.RequiredFiles) > 0 {
		_, err := scheduler.NewJob(
			gocron.DurationJob(duration),
			gocron.NewTask(s.enqueueRequiredFileTasks),
			gocron.WithName("required-files"),
		)
		if err != nil {
			return fmt.Errorf("failed to schedule required file checks: %w", err)
		}
	}

	scheduler.Start()
	s.scheduler = scheduler
	s.logger.Info().Str("interval", interval).Msg("scheduled periodic reconciliation")
	return nil
}
