package domain

import (
	"fmt"
	"strings"
	"time"
)

// Period is one fixed-length trading window for an asset, aligned to
// wall-clock boundaries in the venue's time zone (:00/:15/:30/:45 for the
// default 15-minute length).
type Period struct {
	Asset  string
	Start  time.Time
	Length time.Duration
}

// CurrentPeriod returns the period containing now: the largest wall-clock
// multiple of length at or before now, measured in loc.
//
// Boundaries are wall-clock, not UTC-fixed, so they stay on :00/:15/:30/:45
// across DST transitions. Lengths under an hour must divide 60 minutes;
// longer lengths must be whole hours.
func CurrentPeriod(now time.Time, asset string, length time.Duration, loc *time.Location) Period {
	local := now.In(loc)

	var start time.Time
	if length < time.Hour {
		step := int(length.Minutes())
		floor := local.Minute() - local.Minute()%step
		start = time.Date(local.Year(), local.Month(), local.Day(), local.Hour(), floor, 0, 0, loc)
	} else {
		step := int(length.Hours())
		floor := local.Hour() - local.Hour()%step
		start = time.Date(local.Year(), local.Month(), local.Day(), floor, 0, 0, 0, loc)
	}

	return Period{Asset: asset, Start: start, Length: length}
}

// Next returns the period that begins at this period's end boundary.
func (p Period) Next() Period {
	return Period{Asset: p.Asset, Start: p.End(), Length: p.Length}
}

// End returns the period's end boundary. Computed through time.Date so the
// boundary stays on the wall clock across DST shifts.
func (p Period) End() time.Time {
	s := p.Start
	return time.Date(s.Year(), s.Month(), s.Day(), s.Hour(),
		s.Minute()+int(p.Length.Minutes()), 0, 0, s.Location())
}

// Equal compares periods by (asset, start instant).
func (p Period) Equal(other Period) bool {
	return p.Asset == other.Asset && p.Start.Equal(other.Start)
}

// MinutesRemaining returns whole minutes until the period's end, never negative.
func (p Period) MinutesRemaining(now time.Time) int {
	left := p.End().Sub(now)
	if left < 0 {
		return 0
	}
	return int(left / time.Minute)
}

// MinutesUntilStart returns whole minutes until the period begins, never negative.
func (p Period) MinutesUntilStart(now time.Time) int {
	until := p.Start.Sub(now)
	if until < 0 {
		return 0
	}
	return int(until / time.Minute)
}

// Ended reports whether now is at or past the period's end boundary.
func (p Period) Ended(now time.Time) bool {
	return !now.Before(p.End())
}

// Started reports whether now is at or past the period's start boundary.
func (p Period) Started(now time.Time) bool {
	return !now.Before(p.Start)
}

// Slug builds the deterministic market identifier for the period,
// e.g. "btc-updown-15m-1712345400".
func (p Period) Slug() string {
	return fmt.Sprintf("%s-updown-%dm-%d",
		strings.ToLower(p.Asset), int(p.Length.Minutes()), p.Start.Unix())
}
