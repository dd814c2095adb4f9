package gateway

import (
	"context"
	"time"

	"github.com/google/go-github/v82/github"
)

// apiJob is one queued API call. The dispatcher completes it by sending
// exactly one value on done.
type apiJob struct {
	ctx  context.Context
	name string
	fn   func(ctx context.Context) (*github.Response, error)
	done chan error
}

// maxRateLimitRetries bounds how often a single job is replayed after the
// remote rejects it for quota reasons.
const maxRateLimitRetries = 2

// dispatch is the single worker draining the queue. All remote calls flow
// through here, so ordering is the enqueue order and pacing applies
// globally.
func (g *Gateway) dispatch() {
	for job := range g.jobs {
		job.done <- g.runJob(job)
	}
}

func (g *Gateway) runJob(job *apiJob) error {
	for attempt := 0; ; attempt++ {
		if err := g.limiter.Wait(job.ctx); err != nil {
			return err
		}
		if wait := g.tracker.waitDuration(g.now()); wait > 0 {
			g.log.Info("rate limit window exhausted, waiting",
				"operation", job.name, "wait", wait.Round(time.Second).String())
			if err := g.sleep(job.ctx, wait); err != nil {
				return err
			}
		}

		resp, err := job.fn(job.ctx)
		if resp != nil {
			g.tracker.update(resp.Response)
		}
		if err == nil {
			return nil
		}

		if resetAt, ok := rateLimitedAt(err); ok && attempt < maxRateLimitRetries {
			// The job stays at the head of the queue: nothing else
			// dispatches until this one has had its window.
			g.tracker.markExhausted(resetAt)
			g.log.Warn("api call rate limited, will retry",
				"operation", job.name, "attempt", attempt+1)
			continue
		}
		return g.mapError(job.name, err, resp)
	}
}

// do enqueues a call and waits for its completion. Callers never talk to
// the remote API directly.
func (g *Gateway) do(ctx context.Context, name string, fn func(ctx context.Context) (*github.Response, error)) error {
	if err := g.ready(); err != nil {
		return err
	}
	job := &apiJob{ctx: ctx, name: name, fn: fn, done: make(chan error, 1)}
	select {
	case g.jobs <- job:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-job.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
