package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/joshdurbin/linkregistry/internal/domain"
)

const tableTime = "2006-01-02 15:04:05"

// Commands provides command-line operations for the client
type Commands struct {
	client *Client
	out    io.Writer
}

// NewCommands creates a new Commands instance writing to stdout
func NewCommands(client *Client) *Commands {
	return NewCommandsWithOutput(client, os.Stdout)
}

// NewCommandsWithOutput creates a Commands instance writing to out
func NewCommandsWithOutput(client *Client, out io.Writer) *Commands {
	return &Commands{
		client: client,
		out:    out,
	}
}

// Create creates a short link and displays the result. validity may be nil
// to accept the server default.
func (c *Commands) Create(ctx context.Context, originalURL string, validity *int, customCode string) error {
	result, err := c.client.CreateLink(ctx, domain.CreateLinkRequest{
		OriginalURL:     originalURL,
		ValidityMinutes: validity,
		CustomShortCode: customCode,
	})
	if err != nil {
		return err
	}

	c.printf("Short link created:\n")
	c.printLink(result)
	return nil
}

// Get retrieves and displays information about a short link
func (c *Commands) Get(ctx context.Context, shortCode string) error {
	link, err := c.client.GetLink(ctx, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.printf("Short code '%s' not found\n", shortCode)
			return nil
		}
		return err
	}

	c.printf("Link Information:\n")
	c.printLink(link)

	if len(link.Clicks) > 0 {
		last := link.Clicks[len(link.Clicks)-1]
		c.printf("Last Click: %s from %s (%s)\n", last.Timestamp.Format(time.RFC3339), last.Source, last.Location)
	}
	return nil
}

// Visit follows a short link and displays where it points
func (c *Commands) Visit(ctx context.Context, shortCode, source string) error {
	target, err := c.client.Visit(ctx, shortCode, source)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		c.printf("Short code '%s' not found\n", shortCode)
		return nil
	case errors.Is(err, domain.ErrExpired):
		c.printf("Short code '%s' has expired\n", shortCode)
		return nil
	case err != nil:
		return err
	}

	c.printf("%s -> %s\n", shortCode, target)
	return nil
}

// Delete removes a short link
func (c *Commands) Delete(ctx context.Context, shortCode string) error {
	err := c.client.DeleteLink(ctx, shortCode)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			c.printf("Short code '%s' not found\n", shortCode)
			return nil
		}
		return err
	}

	c.printf("Short link '%s' deleted successfully\n", shortCode)
	return nil
}

// Clear removes every short link
func (c *Commands) Clear(ctx context.Context) error {
	removed, err := c.client.ClearLinks(ctx)
	if err != nil {
		return err
	}

	c.printf("Removed %d links\n", removed)
	return nil
}

// Purge removes expired short links
func (c *Commands) Purge(ctx context.Context) error {
	removed, err := c.client.PurgeExpired(ctx)
	if err != nil {
		return err
	}

	c.printf("Purged %d expired links\n", removed)
	return nil
}

// Refresh marks every link past its expiry as expired
func (c *Commands) Refresh(ctx context.Context) error {
	expired, err := c.client.RefreshExpired(ctx)
	if err != nil {
		return err
	}

	c.printf("Marked %d links as expired\n", expired)
	return nil
}

// List displays all short links in a table format
func (c *Commands) List(ctx context.Context) error {
	links, err := c.client.ListLinks(ctx)
	if err != nil {
		return err
	}

	if len(links) == 0 {
		c.printf("No links found\n")
		return nil
	}

	c.printf("%-20s %-50s %-20s %-20s %-8s %s\n", "Short Code", "Original URL", "Created At", "Expires At", "Status", "Clicks")
	c.printf("%s\n", strings.Repeat("-", 130))

	for _, link := range links {
		c.printf("%-20s %-50s %-20s %-20s %-8s %d\n",
			link.ShortCode,
			truncate(link.OriginalURL, 50),
			link.CreatedAt.Format(tableTime),
			link.ExpiresAt.Format(tableTime),
			status(link.ShortLink),
			len(link.Clicks),
		)
	}

	return nil
}

// Stats displays the analytics dashboard
func (c *Commands) Stats(ctx context.Context) error {
	dashboard, err := c.client.Stats(ctx)
	if err != nil {
		return err
	}

	t := dashboard.Totals
	c.printf("Total Links: %d (%d active)\n", t.TotalLinks, t.ActiveLinks)
	c.printf("Total Clicks: %d (%d today)\n", t.TotalClicks, t.ClicksToday)

	c.printCounts("Top Sources", dashboard.TopSources)
	c.printCounts("Top Locations", dashboard.TopLocations)

	c.printf("\nDaily Clicks:\n")
	for _, day := range dashboard.DailyClicks {
		c.printf("  %s %s %d\n", day.Date, strings.Repeat("#", min(day.Count, 50)), day.Count)
	}

	if len(dashboard.RecentClicks) > 0 {
		c.printf("\nRecent Clicks:\n")
		for _, click := range dashboard.RecentClicks {
			c.printf("  %s %-20s %-15s %s\n", click.Timestamp.Format(tableTime), click.ShortCode, click.Source, click.Location)
		}
	}
	return nil
}

// Logs displays captured server log records, or clears them
func (c *Commands) Logs(ctx context.Context, level string, limit int, clearBuffer bool) error {
	if clearBuffer {
		if err := c.client.ClearLogs(ctx); err != nil {
			return err
		}
		c.printf("Server log buffer cleared\n")
		return nil
	}

	entries, err := c.client.Logs(ctx, level, limit)
	if err != nil {
		return err
	}

	if len(entries) == 0 {
		c.printf("No log entries\n")
		return nil
	}

	for _, entry := range entries {
		var attrs []string
		for k, v := range entry.Attrs {
			attrs = append(attrs, k+"="+v)
		}
		slices.Sort(attrs)
		c.printf("%s %-5s %s %s\n", entry.Time.Format(tableTime), entry.Level, entry.Message, strings.Join(attrs, " "))
	}
	return nil
}

func (c *Commands) printLink(link *domain.CreateLinkResponse) {
	c.printf("Short Code: %s\n", link.ShortCode)
	c.printf("Short URL: %s\n", link.ShortURL)
	c.printf("Original URL: %s\n", link.OriginalURL)
	c.printf("Created At: %s\n", link.CreatedAt.Format(time.RFC3339))
	c.printf("Expires At: %s\n", link.ExpiresAt.Format(time.RFC3339))
	c.printf("Status: %s\n", status(link.ShortLink))
	c.printf("Clicks: %d\n", len(link.Clicks))
}

func (c *Commands) printCounts(title string, entries []domain.CountEntry) {
	c.printf("\n%s:\n", title)
	if len(entries) == 0 {
		c.printf("  (none)\n")
		return
	}
	for _, entry := range entries {
		c.printf("  %-30s %d\n", entry.Name, entry.Count)
	}
}

func (c *Commands) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func status(link *domain.ShortLink) string {
	if link != nil && link.IsExpired {
		return "expired"
	}
	return "active"
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}
