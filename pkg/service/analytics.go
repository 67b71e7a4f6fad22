package service

import "time"

const clickDateLayout = "2006-01-02"

// ClickAnalytics summarizes a short URL's click history.
type ClickAnalytics struct {
	TotalClicks int            `json:"totalClicks"`
	ClickDates  map[string]int `json:"clickDates"`
}

// AggregateClicks buckets click timestamps by UTC calendar day.
func AggregateClicks(dates []time.Time) ClickAnalytics {
	buckets := make(map[string]int)
	for _, d := range dates {
		buckets[d.UTC().Format(clickDateLayout)]++
	}
	return ClickAnalytics{
		TotalClicks: len(dates),
		ClickDates:  buckets,
	}
}
