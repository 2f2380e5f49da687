package web

import (
	"errors"
	"fmt"
	"time"

	"contestcal/internal/aggregator"
	"contestcal/internal/calendar"
	"contestcal/internal/model"
)

const (
	monthLayout = "2006-01"
	dateLayout  = "2006-01-02"
)

// contestDTO is a contest plus display helpers.
type contestDTO struct {
	model.Contest
	Duration string `json:"duration"`
}

func toContestDTOs(cs []model.Contest) []contestDTO {
	out := make([]contestDTO, 0, len(cs))
	for _, c := range cs {
		out = append(out, contestDTO{Contest: c, Duration: calendar.FormatDuration(c.DurationMinutes)})
	}
	return out
}

type lifecycleDTO struct {
	Loading    bool         `json:"loading"`
	Error      *string      `json:"error"`
	Generation uint64       `json:"generation"`
	Contests   []contestDTO `json:"contests"`
}

func toLifecycleDTO(l aggregator.Lifecycle) lifecycleDTO {
	return lifecycleDTO{
		Loading:    l.Loading,
		Error:      errString(l.Err),
		Generation: l.Generation,
		Contests:   toContestDTOs(l.Data),
	}
}

type filtersDTO struct {
	Platforms []string `json:"platforms"`
	Timeframe string   `json:"timeframe"`
	Month     string   `json:"month,omitempty"`
	From      string   `json:"from"`
	To        string   `json:"to"`
}

type stateResponse struct {
	Filters   filtersDTO        `json:"filters"`
	Timezone  string            `json:"timezone"`
	Upcoming  lifecycleDTO      `json:"upcoming"`
	Calendar  lifecycleDTO      `json:"calendar"`
	Next      nextResponse      `json:"next"`
	Freshness freshnessResponse `json:"freshness"`
}

type nextResponse struct {
	Contest *contestDTO `json:"contest"`
}

type freshnessResponse struct {
	Label        *string    `json:"label"`
	LastSyncedAt *time.Time `json:"lastSyncedAt"`
}

type calendarDayDTO struct {
	Date     string       `json:"date"`
	InMonth  bool         `json:"inMonth"`
	Contests []contestDTO `json:"contests"`
}

type calendarResponse struct {
	Month    string           `json:"month"`
	Timezone string           `json:"timezone"`
	Loading  bool             `json:"loading"`
	Error    *string          `json:"error"`
	Days     []calendarDayDTO `json:"days"`
}

func (s *Server) buildState(st aggregator.State) stateResponse {
	loc := s.agg.Location()
	from, to := st.Filters.Range(s.agg.Now(), loc)
	f := filtersDTO{
		Platforms: st.Filters.Platforms,
		Timeframe: string(st.Filters.Timeframe),
		From:      from.Format(dateLayout),
		To:        to.Format(dateLayout),
	}
	if f.Platforms == nil {
		f.Platforms = []string{}
	}
	if f.Timeframe == "" {
		f.Timeframe = string(model.TimeframeThisMonth)
	}
	if !st.Filters.Month.IsZero() {
		f.Month = st.Filters.Month.In(loc).Format(monthLayout)
	}

	return stateResponse{
		Filters:   f,
		Timezone:  loc.String(),
		Upcoming:  toLifecycleDTO(st.Upcoming),
		Calendar:  toLifecycleDTO(st.Ranged),
		Next:      s.buildNext(st),
		Freshness: s.buildFreshness(st),
	}
}

// buildNext picks from the upcoming list only.
func (s *Server) buildNext(st aggregator.State) nextResponse {
	c, ok := calendar.SelectNext(st.Upcoming.Data, s.agg.Now())
	if !ok {
		return nextResponse{}
	}
	dto := contestDTO{Contest: c, Duration: calendar.FormatDuration(c.DurationMinutes)}
	return nextResponse{Contest: &dto}
}

func (s *Server) buildFreshness(st aggregator.State) freshnessResponse {
	combined := st.Combined()
	label, ok := calendar.EstimateFreshness(combined, s.agg.Now())
	if !ok {
		return freshnessResponse{}
	}
	latest, _ := calendar.MostRecentSync(combined)
	return freshnessResponse{Label: &label, LastSyncedAt: &latest}
}

func errString(err error) *string {
	if err == nil {
		return nil
	}
	msg := err.Error()
	return &msg
}

// filtersRequest is the body of PUT /api/filters. Omitted fields keep
// their current value.
type filtersRequest struct {
	Platforms []string `json:"platforms"`
	Timeframe string   `json:"timeframe"`
	Month     string   `json:"month"`
}

func (req filtersRequest) toFilters(current aggregator.Filters, loc *time.Location) (aggregator.Filters, error) {
	f := current
	if req.Platforms != nil {
		f.Platforms = req.Platforms
	}
	switch tf := model.Timeframe(req.Timeframe); tf {
	case "":
	case model.TimeframeThisMonth, model.TimeframeNext30Days:
		f.Timeframe = tf
	default:
		return aggregator.Filters{}, fmt.Errorf("unknown timeframe %q", req.Timeframe)
	}
	if req.Month != "" {
		m, err := time.ParseInLocation(monthLayout, req.Month, loc)
		if err != nil {
			return aggregator.Filters{}, errors.New("month must be YYYY-MM")
		}
		f.Month = m
	}
	return f, nil
}
