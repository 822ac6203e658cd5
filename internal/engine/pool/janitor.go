package pool

import (
	"time"

	"github.com/go-co-op/gocron/v2"
	"go.trai.ch/zerr"
)

// Janitor sweeps the pool periodically.
type Janitor struct {
	scheduler gocron.Scheduler
}

// NewJanitor schedules a sweep of p every interval. Workers idle longer than
// idle are discarded. Call Start to begin sweeping.
func NewJanitor(p *Pool, interval, idle time.Duration, opts ...gocron.SchedulerOption) (*Janitor, error) {
	s, err := gocron.NewScheduler(opts...)
	if err != nil {
		return nil, zerr.Wrap(err, "failed to create pool janitor")
	}
	_, err = s.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(p.Sweep, idle),
		gocron.WithName("pool-sweep"),
		gocron.WithSingletonMode(gocron.LimitModeReschedule),
	)
	if err != nil {
		_ = s.Shutdown()
		return nil, zerr.With(zerr.Wrap(err, "failed to schedule pool sweep"), "interval", interval.String())
	}
	return &Janitor{scheduler: s}, nil
}

// Start begins sweeping.
func (j *Janitor) Start() {
	j.scheduler.Start()
}

// Stop waits for a running sweep and stops the schedule.
func (j *Janitor) Stop() error {
	if err := j.scheduler.Shutdown(); err != nil {
		return zerr.Wrap(err, "failed to stop pool janitor")
	}
	return nil
}
