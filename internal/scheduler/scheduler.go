package scheduler

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/vbilyk/usd_tax_helper_bot/utils"
)

type taskFn func(ctx context.Context) error

// Scheduler wraps gocron with the logging and recovery discipline the rest of
// the app follows: every run gets its own request id and a panic in one run
// never takes the process down.
type Scheduler struct {
	scheduler gocron.Scheduler
}

func New() *Scheduler {
	s, err := gocron.NewScheduler()
	if err != nil {
		panic(err.Error())
	}
	return &Scheduler{scheduler: s}
}

func (s *Scheduler) Start() {
	s.scheduler.Start()
}

func (s *Scheduler) Stop() {
	_ = s.scheduler.Shutdown()
}

// NewIntervalJob schedules fn every interval.
func (s *Scheduler) NewIntervalJob(name string, fn taskFn, interval time.Duration, startImmediately bool) {
	s.createJob(gocron.DurationJob(interval), name, fn, startImmediately)
}

// NewCrontabJob schedules fn by a crontab expression.
func (s *Scheduler) NewCrontabJob(name string, fn taskFn, crontab string, startImmediately bool) {
	s.createJob(gocron.CronJob(crontab, true), name, fn, startImmediately)
}

func (s *Scheduler) createJob(definition gocron.JobDefinition, name string, fn taskFn, startImmediately bool) {
	// a run that overstays its schedule pushes the next one back instead of
	// piling up
	opts := []gocron.JobOption{gocron.WithSingletonMode(gocron.LimitModeReschedule)}

	if startImmediately {
		opts = append(opts, gocron.WithStartAt(gocron.WithStartImmediately()))
	}

	if _, err := s.scheduler.NewJob(definition, gocron.NewTask(s.runWithRecover(fn, name)), opts...); err != nil {
		slog.Error("scheduler job creation failed", slog.String("jobName", name), slog.String("err", err.Error()))
		panic(err.Error())
	}
}

func (s *Scheduler) runWithRecover(fn taskFn, jobName string) func() {
	return func() {
		ctx := utils.NewCtxWithRqID()
		rqID := utils.GetRequestIDFromCtx(ctx)

		defer func() {
			if r := recover(); r != nil {
				slog.Error(
					"panic recovered in scheduler job",
					slog.String("jobName", jobName),
					slog.String("rqID", rqID),
					slog.Any("panic", r),
					slog.String("stacktrace", string(debug.Stack())),
				)
			}
		}()

		slog.Info("job start", slog.String("jobName", jobName), slog.String("rqID", rqID))

		if err := fn(ctx); err != nil {
			slog.Error("job failed", slog.String("jobName", jobName), slog.String("rqID", rqID), slog.String("err", err.Error()))
			return
		}

		slog.Info("job completed", slog.String("jobName", jobName), slog.String("rqID", rqID))
	}
}
