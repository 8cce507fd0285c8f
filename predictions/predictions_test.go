package predictions

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

var sample = []Prediction{
	{ID: "1", Sport: "football", League: "La Liga", Result: ResultWon, Odds: 1.8, Confidence: 80, MatchTime: day("2026-08-20")},
	{ID: "2", Sport: "football", League: "La Liga", Result: ResultWon, Odds: 2.0, Confidence: 70, MatchTime: day("2026-08-21")},
	{ID: "3", Sport: "football", League: "Premier League", Result: ResultLost, Odds: 2.2, Confidence: 60, MatchTime: day("2026-08-22")},
	{ID: "4", Sport: "basketball", League: "NBA", Result: ResultWon, Odds: 1.5, Confidence: 90, IsHot: true, IsPremium: true, MatchTime: day("2026-08-23")},
	{ID: "5", Sport: "football", League: "La Liga", Result: ResultPending, Odds: 1.9, Confidence: 75, IsHot: true, MatchTime: day("2026-08-24")},
	{ID: "6", Sport: "tennis", League: "", Odds: 1.6, Confidence: 65, IsPremium: true, MatchTime: day("2026-08-25")},
}

func TestFilterByLeagueIsCaseInsensitive(t *testing.T) {
	got := Filter(sample, Filters{League: "la liga"})
	if len(got) != 3 {
		t.Fatalf("got %d predictions", len(got))
	}
}

func TestFilterBySportAndHot(t *testing.T) {
	if got := Filter(sample, Filters{Sport: "basketball"}); len(got) != 1 || got[0].ID != "4" {
		t.Fatalf("got %v", got)
	}
	if got := Filter(sample, Filters{HotOnly: true}); len(got) != 2 {
		t.Fatalf("got %d hot predictions", len(got))
	}
}

func TestFilterByPremium(t *testing.T) {
	premium := true
	if got := Filter(sample, Filters{PremiumOnly: &premium}); len(got) != 2 {
		t.Fatalf("got %d premium predictions", len(got))
	}
	free := false
	if got := Filter(sample, Filters{PremiumOnly: &free}); len(got) != 4 {
		t.Fatalf("got %d free predictions", len(got))
	}
}

func TestFilterByDateRange(t *testing.T) {
	got := Filter(sample, Filters{StartDate: "2026-08-21", EndDate: "2026-08-23"})
	if len(got) != 3 {
		t.Fatalf("got %d predictions", len(got))
	}
}

func TestFilterSortByConfidence(t *testing.T) {
	got := Filter(sample, Filters{SortByConfidence: true})
	if got[0].ID != "4" || got[len(got)-1].ID != "3" {
		t.Fatalf("order is wrong: first %s last %s", got[0].ID, got[len(got)-1].ID)
	}
}

func TestCalculateStats(t *testing.T) {
	s := CalculateStats(sample)
	if s.Total != 6 || s.Won != 3 || s.Lost != 1 || s.Pending != 2 {
		t.Fatalf("counts: %+v", s)
	}
	if s.Completed != 4 {
		t.Fatalf("completed is %d", s.Completed)
	}
	if s.Accuracy != 75.0 {
		t.Fatalf("accuracy is %v", s.Accuracy)
	}
	if s.AvgConfidence != 73.3 {
		t.Fatalf("avg confidence is %v", s.AvgConfidence)
	}
	if s.Hot != 2 || s.Premium != 2 {
		t.Fatalf("hot=%d premium=%d", s.Hot, s.Premium)
	}
}

func TestStatsEmpty(t *testing.T) {
	s := CalculateStats(nil)
	if s.Total != 0 || s.Accuracy != 0 || s.AvgOdds != 0 {
		t.Fatalf("stats not zero: %+v", s)
	}
}

func TestStatsByPeriod(t *testing.T) {
	now := day("2026-08-25")
	s := StatsByPeriod(sample, 3, now)
	if s.Total != 4 {
		t.Fatalf("period total is %d", s.Total)
	}
}

func TestGroupByLeagueCatchAll(t *testing.T) {
	grouped := GroupByLeague(sample)
	if len(grouped["La Liga"]) != 3 {
		t.Fatalf("la liga has %d", len(grouped["La Liga"]))
	}
	if len(grouped["Otros"]) != 1 {
		t.Fatalf("otros has %d", len(grouped["Otros"]))
	}
}

func TestGroupByResult(t *testing.T) {
	won, lost, pending := GroupByResult(sample)
	if len(won) != 3 || len(lost) != 1 || len(pending) != 2 {
		t.Fatalf("won=%d lost=%d pending=%d", len(won), len(lost), len(pending))
	}
}

func TestFeatured(t *testing.T) {
	got := Featured(sample, 3)
	// only hot and pending qualify
	if len(got) != 1 || got[0].ID != "5" {
		t.Fatalf("featured are %v", got)
	}
}

func TestCurrentStreak(t *testing.T) {
	streak := CurrentStreak(sample)
	// newest completed is a win preceded by a loss
	if streak.Count != 1 || streak.Result != ResultWon || !streak.Winning {
		t.Fatalf("streak is %+v", streak)
	}
}

func TestBestStreak(t *testing.T) {
	if best := BestStreak(sample); best != 2 {
		t.Fatalf("best streak is %d", best)
	}
}
