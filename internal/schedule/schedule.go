// Package schedule runs the client's background jobs: the midnight rollover
// that moves the daily view to the new date and the periodic resync of the
// task cache.
package schedule

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const midnight = "0 0 0 * * *"

type Scheduler struct {
	cron *cron.Cron
	loc  *time.Location
}

func New(loc *time.Location) *Scheduler {
	if loc == nil {
		loc = time.Local
	}
	return &Scheduler{
		cron: cron.New(cron.WithLocation(loc), cron.WithSeconds()),
		loc:  loc,
	}
}

// OnDayChange calls job at each local midnight with the new date.
func (s *Scheduler) OnDayChange(job func(today time.Time)) (cron.EntryID, error) {
	return s.cron.AddFunc(midnight, func() {
		job(time.Now().In(s.loc))
	})
}

// Every registers job to run once per interval, rounded down to whole
// seconds with a floor of one.
func (s *Scheduler) Every(interval time.Duration, job func()) (cron.EntryID, error) {
	if interval <= 0 {
		return 0, fmt.Errorf("interval must be positive")
	}
	seconds := int(interval.Seconds())
	if seconds <= 0 {
		seconds = 1
	}
	return s.cron.AddFunc(fmt.Sprintf("@every %ds", seconds), job)
}

// Next reports when the given entry runs next. Zero before Start.
func (s *Scheduler) Next(id cron.EntryID) time.Time {
	return s.cron.Entry(id).Next
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
}
