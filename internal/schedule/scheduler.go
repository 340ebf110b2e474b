package schedule

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"
)

// Job is one recurring maintenance task, such as purging terminal queue rows
// or reconciling brain storage counters.
type Job interface {
	Name() string
	Run(ctx context.Context) error
}

type Scheduler interface {
	AddJob(job Job, spec string) error
	Start(ctx context.Context)
	Stop()
}

// CronScheduler runs jobs on standard 5-field cron specs. A job still
// running when its next tick fires is skipped, not stacked.
type CronScheduler struct {
	cron *cron.Cron
	ctx  context.Context
}

func NewCronScheduler() *CronScheduler {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	return &CronScheduler{
		cron: cron.New(cron.WithParser(parser)),
	}
}

func (c *CronScheduler) AddJob(job Job, spec string) error {
	if _, err := c.cron.AddFunc(spec, c.runner(job)); err != nil {
		return err
	}
	logutil.GetLogger(context.Background()).Info("cron job registered",
		zap.String("job", job.Name()), zap.String("spec", spec))
	return nil
}

func (c *CronScheduler) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	c.ctx = ctx
	c.cron.Start()
}

// Stop blocks until in-flight job runs return.
func (c *CronScheduler) Stop() {
	<-c.cron.Stop().Done()
}

func (c *CronScheduler) runner(job Job) func() {
	var busy atomic.Bool
	return func() {
		ctx := c.ctx
		if ctx == nil {
			ctx = context.Background()
		}
		logger := logutil.GetLogger(ctx).With(zap.String("job", job.Name()))
		if !busy.CompareAndSwap(false, true) {
			logger.Info("cron job overlapped, skipping run")
			return
		}
		defer busy.Store(false)
		defer func() {
			if r := recover(); r != nil {
				logger.Error("cron job panicked", zap.Any("panic", r))
			}
		}()

		start := time.Now()
		if err := job.Run(ctx); err != nil {
			logger.Error("cron job failed", zap.Error(err), zap.Duration("cost", time.Since(start)))
			return
		}
		logger.Info("cron job done", zap.Duration("cost", time.Since(start)))
	}
}
