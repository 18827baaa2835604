package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// Snapshot is the persisted layout of the whole registry:
//
//	{ "links": [ [shortCode, ShortLink], ... ], "lastUpdated": "<RFC 3339>" }
type Snapshot struct {
	Links       []LinkEntry `json:"links"`
	LastUpdated time.Time   `json:"lastUpdated"`
}

// LinkEntry is one key/value pair of the registry map, encoded as a two-element array
type LinkEntry struct {
	ShortCode string
	Link      *ShortLink
}

// MarshalJSON encodes the entry as [shortCode, link]
func (e LinkEntry) MarshalJSON() ([]byte, error) {
	return json.Marshal([]any{e.ShortCode, e.Link})
}

// UnmarshalJSON decodes a [shortCode, link] pair
func (e *LinkEntry) UnmarshalJSON(data []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(data, &pair); err != nil {
		return fmt.Errorf("link entry must be an array: %w", err)
	}
	if len(pair) != 2 {
		return fmt.Errorf("link entry must have 2 elements, got %d", len(pair))
	}

	if err := json.Unmarshal(pair[0], &e.ShortCode); err != nil {
		return fmt.Errorf("invalid short code in link entry: %w", err)
	}

	var link ShortLink
	if err := json.Unmarshal(pair[1], &link); err != nil {
		return fmt.Errorf("invalid link record for %q: %w", e.ShortCode, err)
	}
	if link.Clicks == nil {
		link.Clicks = []ClickEvent{}
	}
	e.Link = &link

	return nil
}

// NewSnapshot builds a snapshot from the registry map
func NewSnapshot(links map[string]*ShortLink, lastUpdated time.Time) *Snapshot {
	entries := make([]LinkEntry, 0, len(links))
	for code, link := range links {
		entries = append(entries, LinkEntry{ShortCode: code, Link: link})
	}
	return &Snapshot{Links: entries, LastUpdated: lastUpdated}
}

// Map rebuilds the registry map from the snapshot, rejecting duplicate keys
func (s *Snapshot) Map() (map[string]*ShortLink, error) {
	links := make(map[string]*ShortLink, len(s.Links))
	for _, entry := range s.Links {
		if entry.Link == nil {
			return nil, fmt.Errorf("link entry %q has no record", entry.ShortCode)
		}
		if _, exists := links[entry.ShortCode]; exists {
			return nil, fmt.Errorf("duplicate short code %q in snapshot", entry.ShortCode)
		}
		links[entry.ShortCode] = entry.Link
	}
	return links, nil
}
