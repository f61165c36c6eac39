package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/Spok95/attendance-tracker/internal/ctxutil"
	"github.com/Spok95/attendance-tracker/internal/metrics"
	"github.com/Spok95/attendance-tracker/internal/observability"
)

type Job func(ctx context.Context) error

type Runner struct {
	ctx context.Context
}

func New(ctx context.Context) *Runner { return &Runner{ctx: ctx} }

// Every запускает fn каждые interval до отмены контекста раннера.
func (r *Runner) Every(interval time.Duration, name string, fn Job) {
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			select {
			case <-r.ctx.Done():
				return
			case <-t.C:
				_ = Run(r.ctx, name, fn)
			}
		}
	}()
}

// Run — один запуск с метриками; паника превращается в ошибку и уходит в Sentry.
func Run(ctx context.Context, name string, fn Job) (err error) {
	ctx = ctxutil.WithOp(ctx, name)
	start := time.Now()
	defer func() {
		outcome := metrics.JobOK
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic in job %s: %v", name, rec)
			outcome = metrics.JobPanic
		} else if err != nil {
			outcome = metrics.JobFailed
		}
		if err != nil {
			observability.CaptureCtx(ctx, err)
		}
		end := time.Now()
		metrics.ObserveJob(name, outcome, end.Sub(start), end)
	}()
	return fn(ctx)
}
