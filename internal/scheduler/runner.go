package scheduler

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	scherrors "github.com/MatweyL/Potok/internal/shared/errors"
	"github.com/MatweyL/Potok/internal/shared/logging"
)

const traceScope = "github.com/MatweyL/Potok/internal/scheduler"

// Job is one periodic unit of work. Ticks of the same job never overlap.
type Job struct {
	Name         string
	Period       time.Duration
	InitialDelay time.Duration
	Run          func(ctx context.Context) error
}

// Runner drives the registered jobs, each on its own goroutine. A panicking
// or failing tick is logged and the job keeps its schedule; fatal store
// errors are reported through OnFatal.
type Runner struct {
	jobs    []Job
	logger  logging.Logger
	wg      sync.WaitGroup
	OnFatal func(error)
}

// NewRunner builds a runner over the given jobs.
func NewRunner(jobs ...Job) *Runner {
	return &Runner{jobs: jobs, logger: logging.NewComponentLogger("JobRunner")}
}

// Start launches every job. Jobs stop when ctx is cancelled; Wait blocks
// until they all have.
func (r *Runner) Start(ctx context.Context) {
	for _, job := range r.jobs {
		r.wg.Add(1)
		go r.loop(ctx, job)
	}
	r.logger.Info("started %d jobs", len(r.jobs))
}

// Wait blocks until every job goroutine has exited.
func (r *Runner) Wait() {
	r.wg.Wait()
}

func (r *Runner) loop(ctx context.Context, job Job) {
	defer r.wg.Done()

	if job.InitialDelay > 0 {
		select {
		case <-ctx.Done():
			return
		case <-time.After(job.InitialDelay):
		}
	}

	ticker := time.NewTicker(job.Period)
	defer ticker.Stop()

	r.tick(ctx, job)
	for {
		select {
		case <-ctx.Done():
			r.logger.Debug("job %s stopped", job.Name)
			return
		case <-ticker.C:
			r.tick(ctx, job)
		}
	}
}

func (r *Runner) tick(ctx context.Context, job Job) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("job %s panicked: %v", job.Name, rec)
		}
	}()

	ctx, span := otel.Tracer(traceScope).Start(ctx, "job."+job.Name)
	defer span.End()

	if err := job.Run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		if scherrors.IsFatal(err) {
			r.logger.Error("job %s hit a fatal error: %v", job.Name, err)
			if r.OnFatal != nil {
				r.OnFatal(err)
			}
			return
		}
		r.logger.Warn("job %s tick failed: %v", job.Name, err)
	}
}
