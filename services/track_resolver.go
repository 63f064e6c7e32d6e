package services

import (
	"context"
	"errors"
	"fmt"

	"cratedig/logger"
	"cratedig/models"
	"cratedig/normalize"
	"cratedig/repository"
)

// RawTrack is track metadata as a provider reports it
type RawTrack struct {
	ExternalID      string
	RawTitle        string
	ChannelName     string
	DurationSeconds *int
}

// TrackResolver finds the catalog track for raw metadata or creates it
type TrackResolver struct {
	tracks repository.TrackRepository
}

func NewTrackResolver(tracks repository.TrackRepository) *TrackResolver {
	return &TrackResolver{tracks: tracks}
}

// Resolve matches by external id first, then by normalized artist and title,
// and creates a track when neither matches. Repeated calls never create
// duplicates but may append raw titles.
func (r *TrackResolver) Resolve(ctx context.Context, source models.Source, raw RawTrack) (*models.Track, error) {
	if raw.ExternalID != "" {
		track, err := r.tracks.ByExternalID(ctx, source, raw.ExternalID)
		if err == nil {
			track.AddRawTitle(raw.RawTitle)
			if err := r.tracks.Save(ctx, track); err != nil {
				return nil, err
			}
			return track, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("lookup track by %s id %s: %w", source, raw.ExternalID, err)
		}
	}

	artist, title := normalize.ParseArtistTitle(raw.RawTitle)
	normArtist := normalize.Artist(artist)
	normTitle := normalize.Title(title)

	track, err := r.tracks.ByNormalized(ctx, normArtist, normTitle)
	if err == nil {
		if track.ExternalID(source) == "" {
			track.SetExternalID(source, raw.ExternalID)
		}
		if track.DurationSeconds == nil && raw.DurationSeconds != nil {
			track.DurationSeconds = raw.DurationSeconds
		}
		track.AddRawTitle(raw.RawTitle)
		if err := r.tracks.Save(ctx, track); err != nil {
			return nil, err
		}
		return track, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup track %q - %q: %w", normArtist, normTitle, err)
	}

	track = &models.Track{
		Artist:               artist,
		Title:                title,
		NormalizedArtist:     normArtist,
		NormalizedTitle:      normTitle,
		DurationSeconds:      raw.DurationSeconds,
		RawTitlesEncountered: []string{raw.RawTitle},
	}
	track.SetExternalID(source, raw.ExternalID)

	if err := r.tracks.Create(ctx, track); err != nil {
		return nil, err
	}
	logger.Debug("Created track",
		logger.Uint("track_id", track.ID),
		logger.String("artist", artist),
		logger.String("title", title))
	return track, nil
}
