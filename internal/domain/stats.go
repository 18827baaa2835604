package domain

import "time"

// Totals are the headline numbers on the analytics dashboard
type Totals struct {
	TotalClicks int `json:"totalClicks"`
	TotalLinks  int `json:"totalLinks"`
	ActiveLinks int `json:"activeLinks"`
	ClicksToday int `json:"clicksToday"`
}

// CountEntry is one row of a top-N breakdown
type CountEntry struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// RecentClick is a click tagged with the link it belongs to
type RecentClick struct {
	ClickEvent
	ShortCode   string `json:"shortCode"`
	OriginalURL string `json:"originalUrl"`
}

// DailyCount is the number of clicks on one calendar day (YYYY-MM-DD)
type DailyCount struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// Dashboard bundles every aggregate shown on the analytics page
type Dashboard struct {
	Totals       Totals        `json:"totals"`
	TopSources   []CountEntry  `json:"topSources"`
	TopLocations []CountEntry  `json:"topLocations"`
	RecentClicks []RecentClick `json:"recentClicks"`
	DailyClicks  []DailyCount  `json:"dailyClicks"`
	GeneratedAt  time.Time     `json:"generatedAt"`
}
