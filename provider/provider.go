// Package provider talks to external playlist platforms.
package provider

import (
	"context"
	"errors"
	"strings"

	"cratedig/models"
)

var (
	// ErrNotFound means the requested resource no longer exists on the platform
	ErrNotFound = errors.New("provider resource not found")
	// ErrQuotaExceeded means the platform refused the call because its own daily quota is spent
	ErrQuotaExceeded = errors.New("provider quota exceeded")
	// ErrNotConfigured means the client has no credentials
	ErrNotConfigured = errors.New("provider not configured")
)

// CollectionSummary is one playlist returned by a search
type CollectionSummary struct {
	ExternalID         string                `json:"external_id"`
	Type               models.CollectionType `json:"type"`
	Title              string                `json:"title"`
	OwnerName          string                `json:"owner_name"`
	ThumbnailURL       string                `json:"thumbnail_url"`
	ReportedTrackCount int                   `json:"reported_track_count"`
}

// SeedTrack is the metadata a track-id search resolved for its seed
type SeedTrack struct {
	ExternalID  string `json:"external_id"`
	RawTitle    string `json:"raw_title"`
	ChannelName string `json:"channel_name"`
	Artist      string `json:"artist"`
	Title       string `json:"title"`
}

type SearchResult struct {
	Collections []CollectionSummary
	// Query is the text actually sent to the platform, exclusions removed
	Query     string
	Seed      *SeedTrack
	UnitsUsed int
	Calls     int
}

// CollectionEntry is one item of a collection listing
type CollectionEntry struct {
	ExternalID      string
	RawTitle        string
	OwnerName       string
	DurationSeconds *int
	Position        int
	// Unavailable marks deleted or private items
	Unavailable bool
}

type FetchResult struct {
	Entries   []CollectionEntry
	UnitsUsed int
	Calls     int
}

// CollectionProvider is the discovery contract every platform client implements
type CollectionProvider interface {
	Source() models.Source
	SearchPlaylists(ctx context.Context, query string, maxResults int, excludedTitles []string) (*SearchResult, error)
	SearchPlaylistsByTrackID(ctx context.Context, trackID string, maxResults int, excludedTitles []string) (*SearchResult, error)
	// GetCollectionTracks pages through a collection. A collection that disappears
	// mid-listing ends the listing without an error.
	GetCollectionTracks(ctx context.Context, collectionID string) (*FetchResult, error)
}

var unavailableTitles = map[string]bool{
	"deleted video": true,
	"private video": true,
}

// IsUnavailableTitle reports the placeholder titles YouTube uses for removed items
func IsUnavailableTitle(title string) bool {
	return unavailableTitles[strings.ToLower(strings.TrimSpace(title))]
}

// WithExclusions appends -"title" operators for titles already seen
func WithExclusions(query string, excludedTitles []string) string {
	var b strings.Builder
	b.WriteString(strings.TrimSpace(query))
	for _, title := range excludedTitles {
		title = strings.TrimSpace(strings.ReplaceAll(title, `"`, ""))
		if title == "" {
			continue
		}
		b.WriteString(` -"`)
		b.WriteString(title)
		b.WriteString(`"`)
	}
	return b.String()
}
