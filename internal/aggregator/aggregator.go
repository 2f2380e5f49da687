package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/sourcegraph/conc"

	appLog "contestcal/internal/log"
	"contestcal/internal/model"
)

// Source is the contest service as seen by the aggregator.
type Source interface {
	Upcoming(ctx context.Context, limit int, platforms []string) ([]model.Contest, error)
	Ranged(ctx context.Context, from, to time.Time, platforms []string) ([]model.Contest, error)
}

// Aggregator runs the fetches implied by State transitions. Both
// lifecycles are fetched concurrently; starting a new generation cancels
// the in-flight request of the one it supersedes.
type Aggregator struct {
	src   Source
	loc   *time.Location
	limit int
	now   func() time.Time

	mu      sync.Mutex
	state   State
	cancels [2]context.CancelFunc
}

// Option configures an Aggregator.
type Option func(*Aggregator)

// WithLocation sets the location every calendar-day computation uses.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.loc = loc
		}
	}
}

// WithLimit sets the page size of the upcoming query.
func WithLimit(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.limit = n
		}
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// New returns an aggregator with the initial filters. Nothing is fetched
// until SetFilters or Refresh is called.
func New(src Source, initial Filters, opts ...Option) *Aggregator {
	a := &Aggregator{
		src:   src,
		loc:   time.UTC,
		limit: 20,
		now:   time.Now,
		state: NewState(initial),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Location returns the configured calendar location.
func (a *Aggregator) Location() *time.Location { return a.loc }

// Now returns the aggregator clock's current time.
func (a *Aggregator) Now() time.Time { return a.now() }

// Snapshot returns the current state. Contest slices in the snapshot are
// never modified afterwards.
func (a *Aggregator) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// SetFilters applies f and refetches the lifecycles whose query inputs
// changed. It blocks until those fetches settle (or are superseded).
func (a *Aggregator) SetFilters(ctx context.Context, f Filters) State {
	a.mu.Lock()
	next, kinds := a.state.OnFiltersChanged(f, a.now(), a.loc)
	a.state = next
	reqs := a.beginLocked(ctx, kinds)
	a.mu.Unlock()

	a.run(reqs)
	return a.Snapshot()
}

// Refresh refetches both lifecycles with the current filters.
func (a *Aggregator) Refresh(ctx context.Context) State {
	a.mu.Lock()
	next, _ := a.state.OnFiltersChanged(a.state.Filters, a.now(), a.loc)
	a.state = next
	reqs := a.beginLocked(ctx, []Kind{KindUpcoming, KindRanged})
	a.mu.Unlock()

	a.run(reqs)
	return a.Snapshot()
}

type pending struct {
	ctx    context.Context
	cancel context.CancelFunc
	req    Request
}

func (a *Aggregator) beginLocked(ctx context.Context, kinds []Kind) []pending {
	out := make([]pending, 0, len(kinds))
	now := a.now()
	for _, k := range kinds {
		if prev := a.cancels[k]; prev != nil {
			prev()
		}
		var req Request
		a.state, req = a.state.BeginFetch(k, a.limit, now, a.loc)
		// Only a newer generation cancels a fetch, never the caller going away.
		fctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		a.cancels[k] = cancel
		out = append(out, pending{ctx: fctx, cancel: cancel, req: req})
	}
	return out
}

func (a *Aggregator) run(reqs []pending) {
	var wg conc.WaitGroup
	for _, p := range reqs {
		p := p
		wg.Go(func() {
			defer p.cancel()
			res := a.fetch(p.ctx, p.req)
			a.settle(res)
		})
	}
	wg.Wait()
}

func (a *Aggregator) fetch(ctx context.Context, req Request) Result {
	res := Result{Kind: req.Kind, Generation: req.Generation}
	switch req.Kind {
	case KindUpcoming:
		res.Data, res.Err = a.src.Upcoming(ctx, req.Limit, req.Platforms)
	case KindRanged:
		res.Data, res.Err = a.src.Ranged(ctx, req.From, req.To, req.Platforms)
	}
	return res
}

func (a *Aggregator) settle(res Result) {
	a.mu.Lock()
	defer a.mu.Unlock()

	next, applied := a.state.OnFetchSettled(res)
	if !applied {
		appLog.Debug("aggregator: dropped stale result", "kind", res.Kind.String(), "generation", res.Generation)
		return
	}
	a.state = next
	if res.Err != nil {
		appLog.Error("aggregator: fetch failed", res.Err, "kind", res.Kind.String(), "generation", res.Generation)
		return
	}
	appLog.Info("aggregator: fetch settled", "kind", res.Kind.String(), "generation", res.Generation, "contests", len(res.Data))
}
