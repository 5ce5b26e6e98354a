// Package schedule picks publish slots for finished videos. A slot is a
// concrete hour within the planning horizon; each candidate gets a weighted
// score from audience history, spacing against already-planned slots,
// channel staleness and backlog pressure, and the best valid slot wins.
package schedule

import (
	"errors"
	"sort"
	"time"

	"content-empire/manager-go/internal/config"
)

// ErrNoSlot means no candidate survived the spacing constraint within the
// planning horizon.
var ErrNoSlot = errors.New("no publishable slot within horizon")

type Candidate struct {
	Time  time.Time
	Score float64
}

// HourKey addresses one weekday/hour cell of the audience histogram.
// Weekday follows time.Weekday (Sunday = 0).
type HourKey struct {
	Weekday int
	Hour    int
}

type Inputs struct {
	Now           time.Time
	Audience      map[HourKey]float64
	Pending       []time.Time
	LastPublished time.Time
	Backlog       int
}

// Channels without metric history yet get these evening defaults.
var fallbackHours = []int{15, 18, 20}

// PickSlot returns the highest-scoring valid slot. Ties go to the earlier
// time, so the result is deterministic for identical inputs.
func PickSlot(in Inputs, cfg config.ScheduleConfig) (Candidate, error) {
	candidates := candidateSlots(in, cfg)

	best := Candidate{}
	found := false
	for _, slot := range candidates {
		score, ok := scoreSlot(slot, in, cfg)
		if !ok {
			continue
		}
		if !found || score > best.Score || (score == best.Score && slot.Before(best.Time)) {
			best = Candidate{Time: slot, Score: score}
			found = true
		}
	}
	if !found {
		return Candidate{}, ErrNoSlot
	}
	return best, nil
}

// candidateSlots enumerates the hours considered per day: the strongest
// audience hours when history exists, otherwise the fallback hours.
func candidateSlots(in Inputs, cfg config.ScheduleConfig) []time.Time {
	horizon := cfg.HorizonDays
	if horizon <= 0 {
		horizon = 7
	}
	perDay := cfg.SlotsPerDay
	if perDay <= 0 {
		perDay = 3
	}

	earliest := in.Now.Add(time.Hour).Truncate(time.Hour)
	if earliest.Before(in.Now.Add(time.Hour)) {
		earliest = earliest.Add(time.Hour)
	}

	var slots []time.Time
	day := time.Date(earliest.Year(), earliest.Month(), earliest.Day(), 0, 0, 0, 0, earliest.Location())
	for d := 0; d <= horizon; d++ {
		current := day.AddDate(0, 0, d)
		for _, hour := range hoursForDay(int(current.Weekday()), in.Audience, perDay) {
			slot := current.Add(time.Duration(hour) * time.Hour)
			if slot.Before(earliest) {
				continue
			}
			if slot.After(in.Now.AddDate(0, 0, horizon)) {
				continue
			}
			slots = append(slots, slot)
		}
	}
	return slots
}

func hoursForDay(weekday int, audience map[HourKey]float64, perDay int) []int {
	type hourViews struct {
		hour  int
		views float64
	}
	var withViews []hourViews
	for key, views := range audience {
		if key.Weekday == weekday && views > 0 {
			withViews = append(withViews, hourViews{key.Hour, views})
		}
	}
	if len(withViews) == 0 {
		return fallbackHours
	}
	sort.Slice(withViews, func(i, j int) bool {
		if withViews[i].views != withViews[j].views {
			return withViews[i].views > withViews[j].views
		}
		return withViews[i].hour < withViews[j].hour
	})
	if len(withViews) > perDay {
		withViews = withViews[:perDay]
	}
	hours := make([]int, 0, len(withViews))
	for _, hv := range withViews {
		hours = append(hours, hv.hour)
	}
	sort.Ints(hours)
	return hours
}

// scoreSlot computes the weighted score; ok is false when the slot violates
// the minimum gap against an already-pending slot.
func scoreSlot(slot time.Time, in Inputs, cfg config.ScheduleConfig) (float64, bool) {
	gap := time.Duration(cfg.MinGapHours) * time.Hour
	if gap <= 0 {
		gap = 12 * time.Hour
	}

	nearest := time.Duration(-1)
	for _, pending := range in.Pending {
		d := slot.Sub(pending)
		if d < 0 {
			d = -d
		}
		if nearest < 0 || d < nearest {
			nearest = d
		}
	}
	if nearest >= 0 && nearest < gap {
		return 0, false
	}

	score := cfg.AudienceWeight * audienceScore(slot, in.Audience)

	if nearest >= 0 && nearest < 2*gap {
		// Linear penalty fading to zero at twice the minimum gap.
		penalty := 1 - float64(nearest-gap)/float64(gap)
		score -= cfg.SpacingWeight * penalty
	}

	if !in.LastPublished.IsZero() {
		idle := slot.Sub(in.LastPublished)
		staleness := float64(idle) / float64(7*24*time.Hour)
		if staleness > 1 {
			staleness = 1
		}
		if staleness > 0 {
			score += cfg.StalenessWeight * staleness
		}
	}

	if in.Backlog > 0 {
		pressure := float64(in.Backlog) / 10
		if pressure > 1 {
			pressure = 1
		}
		horizon := time.Duration(cfg.HorizonDays) * 24 * time.Hour
		if horizon <= 0 {
			horizon = 7 * 24 * time.Hour
		}
		earliness := 1 - float64(slot.Sub(in.Now))/float64(horizon)
		if earliness < 0 {
			earliness = 0
		}
		score += cfg.BacklogWeight * pressure * earliness
	}

	return score, true
}

// audienceScore normalizes the slot's cell against the histogram maximum.
// Without history every slot is average.
func audienceScore(slot time.Time, audience map[HourKey]float64) float64 {
	if len(audience) == 0 {
		return 0.5
	}
	max := 0.0
	for _, views := range audience {
		if views > max {
			max = views
		}
	}
	if max == 0 {
		return 0.5
	}
	return audience[HourKey{int(slot.Weekday()), slot.Hour()}] / max
}
