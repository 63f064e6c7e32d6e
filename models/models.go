package models

import (
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Source is the platform a collection or track identifier comes from
type Source string

const (
	SourceYouTube    Source = "youtube"
	SourceSpotify    Source = "spotify"
	SourceSoundCloud Source = "soundcloud"
	SourceDiscogs    Source = "discogs"
)

// AllSources lists every known source in display order
var AllSources = []Source{SourceYouTube, SourceSpotify, SourceSoundCloud, SourceDiscogs}

func (s Source) Valid() bool {
	switch s {
	case SourceYouTube, SourceSpotify, SourceSoundCloud, SourceDiscogs:
		return true
	}
	return false
}

// ParseSource converts a user supplied name into a Source
func ParseSource(name string) (Source, error) {
	s := Source(name)
	if !s.Valid() {
		return "", fmt.Errorf("unknown source %q", name)
	}
	return s, nil
}

// CollectionType is the kind of collection within a source
type CollectionType string

const (
	CollectionTypePlaylist        CollectionType = "playlist"
	CollectionTypeAlbum           CollectionType = "album"
	CollectionTypeUserUploads     CollectionType = "user_uploads"
	CollectionTypeSellerInventory CollectionType = "seller_inventory"
)

func (t CollectionType) Valid() bool {
	switch t {
	case CollectionTypePlaylist, CollectionTypeAlbum, CollectionTypeUserUploads, CollectionTypeSellerInventory:
		return true
	}
	return false
}

// SearchType is the kind of discovery query a search cache entry memoizes
type SearchType string

const (
	SearchTypePlaylist SearchType = "playlist_search"
	SearchTypeTrack    SearchType = "track_search"
	SearchTypeUser     SearchType = "user_search"
	SearchTypeSeller   SearchType = "seller_search"
)

func (t SearchType) Valid() bool {
	switch t {
	case SearchTypePlaylist, SearchTypeTrack, SearchTypeUser, SearchTypeSeller:
		return true
	}
	return false
}

// Track is a source-agnostic musical work
type Track struct {
	ID               uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	Artist           string  `gorm:"size:255;not null" json:"artist"`
	Title            string  `gorm:"size:255;not null" json:"title"`
	NormalizedArtist string  `gorm:"size:255;not null;index:idx_tracks_normalized,priority:1" json:"normalized_artist"`
	NormalizedTitle  string  `gorm:"size:255;not null;index:idx_tracks_normalized,priority:2" json:"normalized_title"`
	YouTubeVideoID   *string `gorm:"column:youtube_video_id;size:32;uniqueIndex" json:"youtube_video_id,omitempty"`
	SpotifyID        *string `gorm:"size:64;uniqueIndex" json:"spotify_id,omitempty"`
	SoundCloudID     *string `gorm:"column:soundcloud_id;size:64;uniqueIndex" json:"soundcloud_id,omitempty"`
	DiscogsID        *string `gorm:"size:64;uniqueIndex" json:"discogs_id,omitempty"`

	// Enrichment, independent of identity
	Label           *string  `gorm:"size:255" json:"label,omitempty"`
	Genre           *string  `gorm:"size:255" json:"genre,omitempty"`
	BPM             *float64 `gorm:"column:bpm" json:"bpm,omitempty"`
	MusicalKey      *string  `gorm:"size:16" json:"musical_key,omitempty"`
	ReleaseYear     *int     `json:"release_year,omitempty"`
	DurationSeconds *int     `json:"duration_seconds,omitempty"`

	RawTitlesEncountered datatypes.JSONSlice[string] `json:"raw_titles_encountered"`
	CreatedAt            time.Time                   `json:"created_at"`
	UpdatedAt            time.Time                   `json:"updated_at"`
	LastEnrichedAt       *time.Time                  `json:"last_enriched_at,omitempty"`
}

// ExternalID returns the identifier this track carries for a source, if any
func (t *Track) ExternalID(source Source) string {
	var id *string
	switch source {
	case SourceYouTube:
		id = t.YouTubeVideoID
	case SourceSpotify:
		id = t.SpotifyID
	case SourceSoundCloud:
		id = t.SoundCloudID
	case SourceDiscogs:
		id = t.DiscogsID
	}
	if id == nil {
		return ""
	}
	return *id
}

// SetExternalID stores the identifier for a source. Empty ids are ignored.
func (t *Track) SetExternalID(source Source, id string) {
	if id == "" {
		return
	}
	v := id
	switch source {
	case SourceYouTube:
		t.YouTubeVideoID = &v
	case SourceSpotify:
		t.SpotifyID = &v
	case SourceSoundCloud:
		t.SoundCloudID = &v
	case SourceDiscogs:
		t.DiscogsID = &v
	}
}

// ExternalIDColumn is the tracks column holding a source's identifier
func ExternalIDColumn(source Source) (string, error) {
	switch source {
	case SourceYouTube:
		return "youtube_video_id", nil
	case SourceSpotify:
		return "spotify_id", nil
	case SourceSoundCloud:
		return "soundcloud_id", nil
	case SourceDiscogs:
		return "discogs_id", nil
	}
	return "", fmt.Errorf("unknown source %q", source)
}

// AddRawTitle appends a raw title if it has not been seen before. Reports whether it was added.
func (t *Track) AddRawTitle(raw string) bool {
	for _, seen := range t.RawTitlesEncountered {
		if seen == raw {
			return false
		}
	}
	t.RawTitlesEncountered = append(t.RawTitlesEncountered, raw)
	return true
}

// DisplayName renders "Artist - Title"
func (t *Track) DisplayName() string {
	return t.Artist + " - " + t.Title
}

// Collection is an externally curated, ordered group of tracks
type Collection struct {
	ID                 uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	Source             Source         `gorm:"size:20;not null;uniqueIndex:idx_collection_source_external,priority:1" json:"source"`
	Type               CollectionType `gorm:"size:20;not null" json:"type"`
	ExternalID         string         `gorm:"size:128;not null;uniqueIndex:idx_collection_source_external,priority:2" json:"external_id"`
	Title              string         `gorm:"size:512" json:"title"`
	OwnerName          string         `gorm:"size:255" json:"owner_name"`
	ThumbnailURL       string         `gorm:"size:1024" json:"thumbnail_url"`
	ReportedTrackCount int            `json:"reported_track_count"`
	LastSyncedAt       *time.Time     `gorm:"index" json:"last_synced_at,omitempty"`
	SyncComplete       bool           `gorm:"default:false" json:"sync_complete"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// URL renders the public page for the collection
func (c *Collection) URL() string {
	switch c.Source {
	case SourceYouTube:
		return "https://www.youtube.com/playlist?list=" + c.ExternalID
	case SourceSpotify:
		return "https://open.spotify.com/playlist/" + c.ExternalID
	case SourceSoundCloud:
		return "https://soundcloud.com/" + c.ExternalID
	case SourceDiscogs:
		if c.Type == CollectionTypeSellerInventory {
			return "https://www.discogs.com/seller/" + c.ExternalID + "/profile"
		}
		return "https://www.discogs.com/lists/" + c.ExternalID
	}
	return ""
}

// IsFresh reports whether a completed sync is younger than maxAge
func (c *Collection) IsFresh(now time.Time, maxAge time.Duration) bool {
	if !c.SyncComplete || c.LastSyncedAt == nil {
		return false
	}
	return now.Sub(*c.LastSyncedAt) <= maxAge
}

// CollectionTrack links a track to a collection at a position
type CollectionTrack struct {
	CollectionID uint      `gorm:"primaryKey;autoIncrement:false" json:"collection_id"`
	TrackID      uint      `gorm:"primaryKey;autoIncrement:false;index" json:"track_id"`
	Position     int       `gorm:"not null" json:"position"`
	DiscoveredAt time.Time `json:"discovered_at"`

	Track *Track `gorm:"foreignKey:TrackID" json:"track,omitempty"`
}
