package services

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
)

// Scheduler runs deferred one-shot tasks. Tasks sharing a tag can be cancelled together.
type Scheduler interface {
	ScheduleOnce(tag string, delay time.Duration, fn func()) error
	Cancel(tag string)
	Shutdown() error
}

func tournamentTag(tournamentID int) string {
	return fmt.Sprintf("tournament:%d", tournamentID)
}

// GocronScheduler is the Scheduler backed by gocron. Tests drive it with a fake clockwork clock.
type GocronScheduler struct {
	sched  gocron.Scheduler
	clock  clockwork.Clock
	logger *slog.Logger
}

func NewGocronScheduler(clock clockwork.Clock, logger *slog.Logger) (*GocronScheduler, error) {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	sched, err := gocron.NewScheduler(gocron.WithClock(clock))
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}
	sched.Start()
	return &GocronScheduler{sched: sched, clock: clock, logger: logger}, nil
}

func (s *GocronScheduler) ScheduleOnce(tag string, delay time.Duration, fn func()) error {
	startAt := gocron.OneTimeJobStartImmediately()
	if delay > 0 {
		startAt = gocron.OneTimeJobStartDateTime(s.clock.Now().Add(delay))
	}

	_, err := s.sched.NewJob(
		gocron.OneTimeJob(startAt),
		gocron.NewTask(fn),
		gocron.WithTags(tag),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule job %q: %w", tag, err)
	}
	s.logger.Debug("job scheduled", slog.String("tag", tag), slog.Duration("delay", delay))
	return nil
}

func (s *GocronScheduler) Cancel(tag string) {
	s.sched.RemoveByTags(tag)
}

// Pending returns the number of jobs the scheduler still knows about.
func (s *GocronScheduler) Pending() int {
	return len(s.sched.Jobs())
}

func (s *GocronScheduler) Shutdown() error {
	return s.sched.Shutdown()
}
