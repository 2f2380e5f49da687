// Package aggregator keeps the two contest lifecycles (upcoming and
// calendar range) in step with the active filters.
package aggregator

import (
	"slices"
	"strings"
	"time"

	"contestcal/internal/model"
	"contestcal/internal/platform"
)

// Kind identifies one of the two independent lifecycles.
type Kind int

const (
	KindUpcoming Kind = iota
	KindRanged
)

func (k Kind) String() string {
	switch k {
	case KindUpcoming:
		return "upcoming"
	case KindRanged:
		return "ranged"
	default:
		return "unknown"
	}
}

// Filters are the user-controlled inputs of both queries.
type Filters struct {
	Platforms []string
	Timeframe model.Timeframe
	// Month is any instant within the reference month of the this-month
	// timeframe. Zero means the month of "now".
	Month time.Time
}

// Range computes the inclusive calendar-date range of the ranged query.
func (f Filters) Range(now time.Time, loc *time.Location) (from, to time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	switch f.Timeframe {
	case model.TimeframeNext30Days:
		from = time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
		to = from.AddDate(0, 0, 30)
		return from, to
	default:
		ref := local
		if !f.Month.IsZero() {
			ref = f.Month.In(loc)
		}
		from = time.Date(ref.Year(), ref.Month(), 1, 0, 0, 0, 0, loc)
		to = time.Date(ref.Year(), ref.Month()+1, 0, 0, 0, 0, 0, loc)
		return from, to
	}
}

// Lifecycle is the fetch state of one query.
type Lifecycle struct {
	Loading    bool
	Err        error
	Data       []model.Contest
	Generation uint64
}

// Request describes a fetch the orchestrator must perform. It is tagged with
// the lifecycle generation it belongs to.
type Request struct {
	Kind       Kind
	Generation uint64
	Platforms  []string
	Limit      int
	From, To   time.Time
}

// Result is the outcome of a Request.
type Result struct {
	Kind       Kind
	Generation uint64
	Data       []model.Contest
	Err        error
}

// State is the complete aggregator state. Transitions are pure: they return
// a new State and never mutate the receiver's slices.
type State struct {
	Filters  Filters
	Upcoming Lifecycle
	Ranged   Lifecycle

	// Query keys last requested for each lifecycle.
	upcomingKey string
	rangedKey   string
}

// NewState returns an idle state with empty data.
func NewState(f Filters) State {
	f.Platforms = platform.ParseList(f.Platforms...)
	return State{
		Filters:  f,
		Upcoming: Lifecycle{Data: []model.Contest{}},
		Ranged:   Lifecycle{Data: []model.Contest{}},
	}
}

func (s State) lifecycle(k Kind) Lifecycle {
	if k == KindUpcoming {
		return s.Upcoming
	}
	return s.Ranged
}

func (s *State) setLifecycle(k Kind, l Lifecycle) {
	if k == KindUpcoming {
		s.Upcoming = l
		return
	}
	s.Ranged = l
}

func platformsKey(platforms []string) string {
	return strings.Join(platforms, ",")
}

func rangeKey(from, to time.Time, platforms []string) string {
	return from.Format("2006-01-02") + "|" + to.Format("2006-01-02") + "|" + platformsKey(platforms)
}

// OnFiltersChanged applies new filters and reports which lifecycles need a
// refetch: upcoming when the platform set changed, ranged when the
// (from, to, platforms) tuple changed. The returned kinds are not yet begun.
func (s State) OnFiltersChanged(f Filters, now time.Time, loc *time.Location) (State, []Kind) {
	f.Platforms = platform.ParseList(f.Platforms...)
	next := s
	next.Filters = f

	var kinds []Kind
	if platformsKey(f.Platforms) != s.upcomingKey || s.Upcoming.Generation == 0 {
		kinds = append(kinds, KindUpcoming)
	}
	from, to := f.Range(now, loc)
	if rangeKey(from, to, f.Platforms) != s.rangedKey || s.Ranged.Generation == 0 {
		kinds = append(kinds, KindRanged)
	}
	return next, kinds
}

// BeginFetch starts a new generation of the lifecycle and returns the
// request to execute. Any earlier in-flight generation becomes stale.
func (s State) BeginFetch(k Kind, limit int, now time.Time, loc *time.Location) (State, Request) {
	next := s
	l := s.lifecycle(k)
	l.Generation++
	l.Loading = true
	l.Err = nil
	next.setLifecycle(k, l)

	req := Request{
		Kind:       k,
		Generation: l.Generation,
		Platforms:  slices.Clone(s.Filters.Platforms),
	}
	switch k {
	case KindUpcoming:
		req.Limit = limit
		next.upcomingKey = platformsKey(s.Filters.Platforms)
	case KindRanged:
		req.From, req.To = s.Filters.Range(now, loc)
		next.rangedKey = rangeKey(req.From, req.To, s.Filters.Platforms)
	}
	return next, req
}

// OnFetchSettled records a result. Results from a superseded generation
// are dropped and applied is false. A failure empties the lifecycle's data
// and leaves the other lifecycle untouched.
func (s State) OnFetchSettled(r Result) (next State, applied bool) {
	l := s.lifecycle(r.Kind)
	if r.Generation != l.Generation {
		return s, false
	}

	l.Loading = false
	if r.Err != nil {
		l.Err = r.Err
		l.Data = []model.Contest{}
	} else {
		l.Err = nil
		l.Data = r.Data
		if l.Data == nil {
			l.Data = []model.Contest{}
		}
	}
	next = s
	next.setLifecycle(r.Kind, l)
	return next, true
}

// Loading reports whether either lifecycle has a fetch in flight.
func (s State) Loading() bool {
	return s.Upcoming.Loading || s.Ranged.Loading
}

// Combined returns upcoming followed by ranged contests, the collection
// freshness is estimated over.
func (s State) Combined() []model.Contest {
	out := make([]model.Contest, 0, len(s.Upcoming.Data)+len(s.Ranged.Data))
	out = append(out, s.Upcoming.Data...)
	return append(out, s.Ranged.Data...)
}

// FindContest looks a contest up by ID in either lifecycle's data.
func (s State) FindContest(id string) (model.Contest, bool) {
	for _, c := range s.Combined() {
		if c.ID == id {
			return c, true
		}
	}
	return model.Contest{}, false
}
