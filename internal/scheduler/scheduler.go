// Package scheduler runs an optional background job that collects data for
// every registered location on a fixed interval. Collection itself stays
// idempotent: the job calls the same EnsureFresh the request path uses, so
// enabling it only moves provider calls off the first page view of the day.
package scheduler

import (
	"context"
	"log"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/tseneadza/weather/internal/weather"
)

// Scheduler periodically refreshes all registered locations.
type Scheduler struct {
	scheduler *gocron.Scheduler
	service   *weather.Service
	interval  time.Duration
}

// New creates a new Scheduler.
func New(interval time.Duration, service *weather.Service) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		service:   service,
		interval:  interval,
	}
}

// Start schedules the periodic job and starts the underlying scheduler.
// A non-positive interval disables the job entirely.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Println("scheduler: collection interval not set; running on demand only")
		return nil
	}

	_, err := s.scheduler.Every(s.interval).Do(func() {
		log.Println("scheduler: running collection job")

		locs, err := s.service.Locations()
		if err != nil {
			log.Printf("scheduler: listing locations failed: %v", err)
			return
		}

		today := weather.Today()
		for _, loc := range locs {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			if err := s.service.EnsureFresh(ctx, loc, today); err != nil {
				log.Printf("scheduler: collection failed for location %d: %v", loc.ID, err)
			}
			cancel()
		}
		log.Println("scheduler: completed collection job")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
