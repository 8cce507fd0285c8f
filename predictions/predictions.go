// Package predictions holds the prediction model and the pure helpers
// the data layer uses for filtering, grouping and statistics.
package predictions

import (
	"math"
	"sort"
	"strings"
	"time"
)

type Result string

const (
	ResultPending Result = "PENDING"
	ResultWon     Result = "WON"
	ResultLost    Result = "LOST"
	ResultVoid    Result = "VOID"
)

type Prediction struct {
	ID         string    `json:"id"`
	Sport      string    `json:"sport"`
	League     string    `json:"league"`
	HomeTeam   string    `json:"homeTeam"`
	AwayTeam   string    `json:"awayTeam"`
	Pick       string    `json:"prediction"`
	Odds       float64   `json:"odds"`
	Confidence float64   `json:"confidence"`
	IsPremium  bool      `json:"isPremium"`
	IsHot      bool      `json:"isHot"`
	Result     Result    `json:"result"`
	MatchTime  time.Time `json:"matchTime"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Listing is the response envelope of the predictions listing endpoint.
// Cached is set by the data layer when the payload was served from the
// offline fallback snapshot instead of the network.
type Listing struct {
	Success       bool         `json:"success"`
	Data          []Prediction `json:"data"`
	Count         int          `json:"count"`
	FreeViewsLeft int          `json:"freeViewsLeft"`
	IsPremium     bool         `json:"isPremium"`
	Message       string       `json:"message,omitempty"`
	Cached        bool         `json:"cached,omitempty"`
}

// when returns the time a prediction is attributed to.
func (p Prediction) when() time.Time {
	if !p.MatchTime.IsZero() {
		return p.MatchTime
	}
	return p.CreatedAt
}

// Day returns the date (YYYY-MM-DD) a prediction is attributed to.
func (p Prediction) Day() string {
	return p.when().Format("2006-01-02")
}

func (p Prediction) completed() bool {
	return p.Result == ResultWon || p.Result == ResultLost
}

func (p Prediction) pending() bool {
	return p.Result == ResultPending || p.Result == ""
}

// Filters selects and orders a prediction list.
// Zero values mean "do not filter on this field".
type Filters struct {
	League      string
	Sport       string
	HotOnly     bool
	PremiumOnly *bool
	Result      *Result
	Date        string
	StartDate   string
	EndDate     string

	SortByConfidence bool
	SortByOdds       bool
	SortByTime       bool
}

// Filter returns the predictions matching the given filters, in the
// requested order. The input slice is not modified.
func Filter(preds []Prediction, f Filters) []Prediction {
	filtered := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if f.League != "" && !strings.Contains(strings.ToLower(p.League), strings.ToLower(f.League)) {
			continue
		}
		if f.Sport != "" && p.Sport != f.Sport {
			continue
		}
		if f.HotOnly && !p.IsHot {
			continue
		}
		if f.PremiumOnly != nil && p.IsPremium != *f.PremiumOnly {
			continue
		}
		if f.Result != nil && p.Result != *f.Result {
			continue
		}
		if f.Date != "" && p.Day() != f.Date {
			continue
		}
		if f.StartDate != "" && f.EndDate != "" {
			if day := p.Day(); day < f.StartDate || day > f.EndDate {
				continue
			}
		}
		filtered = append(filtered, p)
	}
	switch {
	case f.SortByConfidence:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Confidence > filtered[j].Confidence
		})
	case f.SortByOdds:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].Odds > filtered[j].Odds
		})
	case f.SortByTime:
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].when().Before(filtered[j].when())
		})
	}
	return filtered
}

// Stats summarizes the outcomes of a prediction list.
type Stats struct {
	Total         int     `json:"total"`
	Won           int     `json:"won"`
	Lost          int     `json:"lost"`
	Pending       int     `json:"pending"`
	Completed     int     `json:"completed"`
	Accuracy      float64 `json:"accuracy"`
	AvgConfidence float64 `json:"avgConfidence"`
	AvgOdds       float64 `json:"avgOdds"`
	ROI           float64 `json:"roi"`
	Hot           int     `json:"hotPredictions"`
	Premium       int     `json:"premiumPredictions"`
}

// CalculateStats computes the aggregate stats for a prediction list.
func CalculateStats(preds []Prediction) Stats {
	s := Stats{Total: len(preds)}
	var confidenceSum, oddsSum float64
	for _, p := range preds {
		confidenceSum += p.Confidence
		oddsSum += p.Odds
		switch {
		case p.Result == ResultWon:
			s.Won++
		case p.Result == ResultLost:
			s.Lost++
		case p.pending():
			s.Pending++
		}
		if p.IsHot {
			s.Hot++
		}
		if p.IsPremium {
			s.Premium++
		}
	}
	s.Completed = s.Won + s.Lost
	if s.Total > 0 {
		s.AvgConfidence = round(confidenceSum/float64(s.Total), 1)
		s.AvgOdds = round(oddsSum/float64(s.Total), 2)
	}
	if s.Completed > 0 {
		s.Accuracy = round(float64(s.Won)/float64(s.Completed)*100, 1)
		avgOdds := oddsSum / float64(s.Total)
		s.ROI = round((float64(s.Won)*avgOdds-float64(s.Completed))/float64(s.Completed)*100, 1)
	}
	return s
}

// StatsByPeriod computes stats over the predictions attributed to the
// last n days before now.
func StatsByPeriod(preds []Prediction, days int, now time.Time) Stats {
	cutoff := now.AddDate(0, 0, -days)
	period := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if !p.when().Before(cutoff) {
			period = append(period, p)
		}
	}
	return CalculateStats(period)
}

// GroupByLeague groups predictions by league, with "Otros" as the
// catch-all for predictions without one.
func GroupByLeague(preds []Prediction) map[string][]Prediction {
	grouped := make(map[string][]Prediction)
	for _, p := range preds {
		league := p.League
		if league == "" {
			league = "Otros"
		}
		grouped[league] = append(grouped[league], p)
	}
	return grouped
}

// GroupByDate groups predictions by the date they are attributed to.
func GroupByDate(preds []Prediction) map[string][]Prediction {
	grouped := make(map[string][]Prediction)
	for _, p := range preds {
		grouped[p.Day()] = append(grouped[p.Day()], p)
	}
	return grouped
}

// GroupByResult splits predictions into won, lost and pending.
func GroupByResult(preds []Prediction) (won, lost, pending []Prediction) {
	for _, p := range preds {
		switch {
		case p.Result == ResultWon:
			won = append(won, p)
		case p.Result == ResultLost:
			lost = append(lost, p)
		case p.pending():
			pending = append(pending, p)
		}
	}
	return won, lost, pending
}

// Featured returns up to limit hot, still-pending predictions, highest
// confidence first.
func Featured(preds []Prediction, limit int) []Prediction {
	featured := make([]Prediction, 0, limit)
	for _, p := range preds {
		if p.IsHot && p.pending() {
			featured = append(featured, p)
		}
	}
	sort.SliceStable(featured, func(i, j int) bool {
		return featured[i].Confidence > featured[j].Confidence
	})
	if len(featured) > limit {
		featured = featured[:limit]
	}
	return featured
}

// Premium returns the premium predictions.
func Premium(preds []Prediction) []Prediction {
	premium := make([]Prediction, 0)
	for _, p := range preds {
		if p.IsPremium {
			premium = append(premium, p)
		}
	}
	return premium
}

// Free returns the non-premium predictions.
func Free(preds []Prediction) []Prediction {
	free := make([]Prediction, 0)
	for _, p := range preds {
		if !p.IsPremium {
			free = append(free, p)
		}
	}
	return free
}

// Streak is a run of identical completed results.
type Streak struct {
	Count   int    `json:"count"`
	Result  Result `json:"type"`
	Winning bool   `json:"isWinning"`
}

// CurrentStreak returns the run of identical results leading up to the
// most recent completed prediction.
func CurrentStreak(preds []Prediction) Streak {
	completed := completedByTime(preds)
	// newest first
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].when().After(completed[j].when())
	})
	streak := Streak{}
	for _, p := range completed {
		if streak.Result == "" {
			streak.Result = p.Result
			streak.Count = 1
		} else if p.Result == streak.Result {
			streak.Count++
		} else {
			break
		}
	}
	streak.Winning = streak.Result == ResultWon
	return streak
}

// BestStreak returns the longest historical run of won predictions.
func BestStreak(preds []Prediction) int {
	completed := completedByTime(preds)
	sort.SliceStable(completed, func(i, j int) bool {
		return completed[i].when().Before(completed[j].when())
	})
	best, current := 0, 0
	for _, p := range completed {
		if p.Result == ResultWon {
			current++
			if current > best {
				best = current
			}
		} else {
			current = 0
		}
	}
	return best
}

func completedByTime(preds []Prediction) []Prediction {
	completed := make([]Prediction, 0, len(preds))
	for _, p := range preds {
		if p.completed() {
			completed = append(completed, p)
		}
	}
	return completed
}

func round(v float64, decimals int) float64 {
	factor := math.Pow(10, float64(decimals))
	return math.Round(v*factor) / factor
}
