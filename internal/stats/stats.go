// Package stats derives click analytics from registry snapshots. Every function
// is read-only over its input.
package stats

import (
	"slices"
	"time"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

// Default sizes used when a caller passes n <= 0
const (
	DefaultTopN    = 5
	DefaultRecentN = 10
	DefaultDays    = 7
)

const dateLayout = "2006-01-02"

// Totals computes the headline numbers. A link counts as active when its
// expiry flag is not set; clicksToday uses the calendar day of now in now's location.
func Totals(links []*domain.ShortLink, now time.Time) domain.Totals {
	today := now.Format(dateLayout)

	var totals domain.Totals
	totals.TotalLinks = len(links)
	for _, link := range links {
		if !link.IsExpired {
			totals.ActiveLinks++
		}
		totals.TotalClicks += len(link.Clicks)
		for _, click := range link.Clicks {
			if click.Timestamp.In(now.Location()).Format(dateLayout) == today {
				totals.ClicksToday++
			}
		}
	}
	return totals
}

// TopSources returns the n most frequent click sources
func TopSources(links []*domain.ShortLink, n int) []domain.CountEntry {
	return topBy(links, n, func(c domain.ClickEvent) string { return c.Source })
}

// TopLocations returns the n most frequent click locations
func TopLocations(links []*domain.ShortLink, n int) []domain.CountEntry {
	return topBy(links, n, func(c domain.ClickEvent) string { return c.Location })
}

// topBy groups clicks by key and sorts by count descending. Equal counts keep
// the order in which their key was first seen.
func topBy(links []*domain.ShortLink, n int, key func(domain.ClickEvent) string) []domain.CountEntry {
	if n <= 0 {
		n = DefaultTopN
	}

	index := make(map[string]int)
	var entries []domain.CountEntry
	for _, link := range links {
		for _, click := range link.Clicks {
			k := key(click)
			if i, ok := index[k]; ok {
				entries[i].Count++
				continue
			}
			index[k] = len(entries)
			entries = append(entries, domain.CountEntry{Name: k, Count: 1})
		}
	}

	slices.SortStableFunc(entries, func(a, b domain.CountEntry) int {
		return b.Count - a.Count
	})

	if len(entries) > n {
		entries = entries[:n]
	}
	if entries == nil {
		entries = []domain.CountEntry{}
	}
	return entries
}

// RecentClicks returns the n newest clicks across all links
func RecentClicks(links []*domain.ShortLink, n int) []domain.RecentClick {
	if n <= 0 {
		n = DefaultRecentN
	}

	recent := []domain.RecentClick{}
	for _, link := range links {
		for _, click := range link.Clicks {
			recent = append(recent, domain.RecentClick{
				ClickEvent:  click,
				ShortCode:   link.ShortCode,
				OriginalURL: link.OriginalURL,
			})
		}
	}

	slices.SortStableFunc(recent, func(a, b domain.RecentClick) int {
		return b.Timestamp.Compare(a.Timestamp)
	})

	if len(recent) > n {
		recent = recent[:n]
	}
	return recent
}

// DailyClicks counts clicks per calendar day for the days ending on now's
// date, oldest first. Days without clicks are reported with a zero count.
func DailyClicks(links []*domain.ShortLink, days int, now time.Time) []domain.DailyCount {
	if days <= 0 {
		days = DefaultDays
	}

	loc := now.Location()
	counts := make(map[string]int)
	for _, link := range links {
		for _, click := range link.Clicks {
			counts[click.Timestamp.In(loc).Format(dateLayout)]++
		}
	}

	year, month, day := now.Date()
	start := time.Date(year, month, day, 0, 0, 0, 0, loc).AddDate(0, 0, -(days - 1))

	timeline := make([]domain.DailyCount, 0, days)
	for i := 0; i < days; i++ {
		date := start.AddDate(0, 0, i).Format(dateLayout)
		timeline = append(timeline, domain.DailyCount{Date: date, Count: counts[date]})
	}
	return timeline
}

// Summarize builds the full dashboard with default sizes
func Summarize(links []*domain.ShortLink, now time.Time) *domain.Dashboard {
	return SummarizeSized(links, now, DefaultTopN, DefaultRecentN, DefaultDays)
}

// SummarizeSized builds the full dashboard. Sizes of zero or less use the defaults.
func SummarizeSized(links []*domain.ShortLink, now time.Time, top, recent, days int) *domain.Dashboard {
	return &domain.Dashboard{
		Totals:       Totals(links, now),
		TopSources:   TopSources(links, top),
		TopLocations: TopLocations(links, top),
		RecentClicks: RecentClicks(links, recent),
		DailyClicks:  DailyClicks(links, days, now),
		GeneratedAt:  now,
	}
}
