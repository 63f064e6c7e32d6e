package provider

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kkdai/youtube/v2"

	"cratedig/config"
	"cratedig/logger"
	"cratedig/models"
	"cratedig/normalize"
)

const (
	youtubeBaseURL = "https://www.googleapis.com/youtube/v3"

	// Data API unit costs
	defaultSearchCost = 100
	defaultListCost   = 1

	maxSearchResults = 50
	playlistPageSize = 50
	maxPlaylistPages = 100
)

// VideoLookup resolves a video's title and channel without spending API quota
type VideoLookup func(ctx context.Context, videoID string) (*SeedTrack, error)

type YouTubeClient struct {
	*BaseClient
	apiKey     string
	baseURL    string
	lookup     VideoLookup
	searchCost int
	listCost   int
}

type youtubeThumbnails map[string]struct {
	URL string `json:"url"`
}

func (t youtubeThumbnails) best() string {
	for _, size := range []string{"high", "medium", "default"} {
		if thumb, ok := t[size]; ok && thumb.URL != "" {
			return thumb.URL
		}
	}
	return ""
}

type youtubePlaylistSearchResponse struct {
	NextPageToken string `json:"nextPageToken"`
	Items         []struct {
		ID struct {
			Kind       string `json:"kind"`
			PlaylistID string `json:"playlistId"`
		} `json:"id"`
		Snippet struct {
			Title        string            `json:"title"`
			ChannelTitle string            `json:"channelTitle"`
			Thumbnails   youtubeThumbnails `json:"thumbnails"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubePlaylistItemsResponse struct {
	NextPageToken string `json:"nextPageToken"`
	PageInfo      struct {
		TotalResults int `json:"totalResults"`
	} `json:"pageInfo"`
	Items []struct {
		Snippet struct {
			Title        string `json:"title"`
			Position     int    `json:"position"`
			ChannelTitle string `json:"videoOwnerChannelTitle"`
			ResourceID   struct {
				Kind    string `json:"kind"`
				VideoID string `json:"videoId"`
			} `json:"resourceId"`
		} `json:"snippet"`
		Status struct {
			PrivacyStatus string `json:"privacyStatus"`
		} `json:"status"`
	} `json:"items"`
}

type youtubeVideoListResponse struct {
	Items []struct {
		ID      string `json:"id"`
		Snippet struct {
			Title        string `json:"title"`
			ChannelTitle string `json:"channelTitle"`
		} `json:"snippet"`
	} `json:"items"`
}

type youtubeErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Errors  []struct {
			Reason string `json:"reason"`
			Domain string `json:"domain"`
		} `json:"errors"`
	} `json:"error"`
}

type YouTubeOption func(*YouTubeClient)

// WithUnitCosts sets the units reported per search and per list call. The
// quota gate must check the same numbers, so both come from one setting.
func WithUnitCosts(search, list int) YouTubeOption {
	return func(c *YouTubeClient) {
		if search > 0 {
			c.searchCost = search
		}
		if list > 0 {
			c.listCost = list
		}
	}
}

// WithBaseURL points the client at another Data API root
func WithBaseURL(baseURL string) YouTubeOption {
	return func(c *YouTubeClient) {
		if baseURL != "" {
			c.baseURL = strings.TrimRight(baseURL, "/")
		}
	}
}

// WithVideoLookup sets the quota-free metadata lookup. nil disables it.
func WithVideoLookup(lookup VideoLookup) YouTubeOption {
	return func(c *YouTubeClient) {
		c.lookup = lookup
	}
}

func NewYouTubeClient(apiKey string, httpClient *http.Client, requestsPerSecond float64, opts ...YouTubeOption) *YouTubeClient {
	c := &YouTubeClient{
		BaseClient: NewBaseClient(httpClient, requestsPerSecond),
		apiKey:     apiKey,
		baseURL:    youtubeBaseURL,
		searchCost: defaultSearchCost,
		listCost:   defaultListCost,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// NewYouTubeClientFromConfig wires the client from application settings
func NewYouTubeClientFromConfig(cfg config.YouTube, rec config.Recommender, httpClient *http.Client) *YouTubeClient {
	opts := []YouTubeOption{
		WithBaseURL(cfg.BaseURL),
		WithUnitCosts(rec.SearchUnitCost, rec.FetchUnitCost),
	}
	if cfg.MetadataLookup {
		opts = append(opts, WithVideoLookup(InnertubeLookup(httpClient)))
	}
	return NewYouTubeClient(cfg.APIKey, httpClient, cfg.RequestsPerSecond, opts...)
}

// InnertubeLookup reads video metadata through the public player endpoint
func InnertubeLookup(httpClient *http.Client) VideoLookup {
	client := &youtube.Client{HTTPClient: httpClient}
	return func(ctx context.Context, videoID string) (*SeedTrack, error) {
		video, err := client.GetVideoContext(ctx, videoID)
		if err != nil {
			return nil, err
		}
		return &SeedTrack{
			ExternalID:  videoID,
			RawTitle:    video.Title,
			ChannelName: video.Author,
		}, nil
	}
}

func (c *YouTubeClient) Source() models.Source {
	return models.SourceYouTube
}

func (c *YouTubeClient) IsConfigured() bool {
	return c.apiKey != ""
}

func (c *YouTubeClient) SearchPlaylists(ctx context.Context, query string, maxResults int, excludedTitles []string) (*SearchResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}
	if maxResults < 1 {
		maxResults = 1
	}
	if maxResults > maxSearchResults {
		maxResults = maxSearchResults
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("type", "playlist")
	params.Set("q", WithExclusions(query, excludedTitles))
	params.Set("maxResults", strconv.Itoa(maxResults))

	result := &SearchResult{
		Query:       strings.TrimSpace(query),
		Collections: []CollectionSummary{},
	}

	var searchResp youtubePlaylistSearchResponse
	err := c.get(ctx, "/search", params, &searchResp)
	if errors.Is(err, ErrQuotaExceeded) {
		return nil, err
	}
	result.UnitsUsed = c.searchCost
	result.Calls = 1
	if errors.Is(err, ErrNotFound) {
		return result, nil
	}
	if err != nil {
		return result, err
	}

	for _, item := range searchResp.Items {
		if item.ID.PlaylistID == "" {
			continue
		}
		result.Collections = append(result.Collections, CollectionSummary{
			ExternalID:   item.ID.PlaylistID,
			Type:         models.CollectionTypePlaylist,
			Title:        item.Snippet.Title,
			OwnerName:    item.Snippet.ChannelTitle,
			ThumbnailURL: item.Snippet.Thumbnails.best(),
		})
	}

	logger.Debug("YouTube playlist search",
		logger.String("query", result.Query),
		logger.Int("results", len(result.Collections)))

	return result, nil
}

// SearchPlaylistsByTrackID resolves the video's artist and title, then searches for them.
// When the title has no parseable artist the channel name stands in.
func (c *YouTubeClient) SearchPlaylistsByTrackID(ctx context.Context, trackID string, maxResults int, excludedTitles []string) (*SearchResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	seed, calls, err := c.lookupVideo(ctx, trackID)
	if err != nil {
		if calls > 0 {
			return &SearchResult{Collections: []CollectionSummary{}, UnitsUsed: calls * c.listCost, Calls: calls}, err
		}
		return nil, err
	}

	query := SeedQuery(seed)
	result, err := c.SearchPlaylists(ctx, query, maxResults, excludedTitles)
	if result != nil {
		result.Seed = seed
		result.UnitsUsed += calls * c.listCost
		result.Calls += calls
	}
	return result, err
}

// SeedQuery fills the seed's artist and title and returns the search text for it
func SeedQuery(seed *SeedTrack) string {
	artist, title := normalize.ParseArtistTitle(seed.RawTitle)
	if artist == normalize.UnknownArtist {
		if channel := normalize.ChannelArtist(seed.ChannelName); channel != "" {
			artist = channel
		}
	}
	seed.Artist = artist
	seed.Title = title

	if artist == normalize.UnknownArtist {
		return normalize.Title(title)
	}
	return strings.TrimSpace(normalize.Artist(artist) + " " + normalize.Title(title))
}

// lookupVideo returns the seed metadata and the number of metered calls spent finding it
func (c *YouTubeClient) lookupVideo(ctx context.Context, videoID string) (*SeedTrack, int, error) {
	if c.lookup != nil {
		seed, err := c.lookup(ctx, videoID)
		if err == nil && seed != nil && seed.RawTitle != "" {
			return seed, 0, nil
		}
		if ctx.Err() != nil {
			return nil, 0, ctx.Err()
		}
		logger.Debug("Quota-free video lookup failed, using videos.list",
			logger.String("video_id", videoID),
			logger.ErrorField(err))
	}

	params := url.Values{}
	params.Set("part", "snippet")
	params.Set("id", videoID)

	var videoResp youtubeVideoListResponse
	if err := c.get(ctx, "/videos", params, &videoResp); err != nil {
		if errors.Is(err, ErrQuotaExceeded) {
			return nil, 0, err
		}
		return nil, 1, err
	}
	if len(videoResp.Items) == 0 {
		return nil, 1, fmt.Errorf("video %s: %w", videoID, ErrNotFound)
	}

	item := videoResp.Items[0]
	return &SeedTrack{
		ExternalID:  videoID,
		RawTitle:    item.Snippet.Title,
		ChannelName: item.Snippet.ChannelTitle,
	}, 1, nil
}

func (c *YouTubeClient) GetCollectionTracks(ctx context.Context, collectionID string) (*FetchResult, error) {
	if !c.IsConfigured() {
		return nil, ErrNotConfigured
	}

	result := &FetchResult{Entries: []CollectionEntry{}}
	pageToken := ""

	for page := 0; page < maxPlaylistPages; page++ {
		params := url.Values{}
		params.Set("part", "snippet,status")
		params.Set("playlistId", collectionID)
		params.Set("maxResults", strconv.Itoa(playlistPageSize))
		if pageToken != "" {
			params.Set("pageToken", pageToken)
		}

		var itemsResp youtubePlaylistItemsResponse
		err := c.get(ctx, "/playlistItems", params, &itemsResp)
		if errors.Is(err, ErrQuotaExceeded) {
			return result, err
		}
		result.UnitsUsed += c.listCost
		result.Calls++

		if errors.Is(err, ErrNotFound) {
			logger.Info("Playlist no longer available, ending listing",
				logger.String("playlist_id", collectionID),
				logger.Int("entries", len(result.Entries)))
			return result, nil
		}
		if err != nil {
			return result, err
		}

		for _, item := range itemsResp.Items {
			videoID := item.Snippet.ResourceID.VideoID
			result.Entries = append(result.Entries, CollectionEntry{
				ExternalID: videoID,
				RawTitle:   item.Snippet.Title,
				OwnerName:  item.Snippet.ChannelTitle,
				Position:   item.Snippet.Position,
				Unavailable: videoID == "" ||
					IsUnavailableTitle(item.Snippet.Title) ||
					item.Status.PrivacyStatus == "private",
			})
		}

		pageToken = itemsResp.NextPageToken
		if pageToken == "" {
			return result, nil
		}
	}

	logger.Warn("Playlist listing truncated",
		logger.String("playlist_id", collectionID),
		logger.Int("pages", maxPlaylistPages))
	return result, nil
}

func (c *YouTubeClient) get(ctx context.Context, path string, params url.Values, out interface{}) error {
	params.Set("key", c.apiKey)
	reqURL := c.baseURL + path + "?" + params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, body, err := c.DoWithRetry(ctx, req)
	if err != nil {
		return fmt.Errorf("YouTube request %s failed: %w", path, err)
	}

	if err := checkYouTubeResponse(resp.StatusCode, body); err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse %s response: %w", path, err)
	}
	return nil
}

func checkYouTubeResponse(status int, body []byte) error {
	if status == http.StatusOK {
		return nil
	}

	var apiErr youtubeErrorResponse
	_ = json.Unmarshal(body, &apiErr)

	for _, e := range apiErr.Error.Errors {
		switch e.Reason {
		case "quotaExceeded", "dailyLimitExceeded":
			return fmt.Errorf("%w: %s", ErrQuotaExceeded, apiErr.Error.Message)
		case "playlistNotFound", "videoNotFound", "playlistItemsNotAccessible":
			return fmt.Errorf("%w: %s", ErrNotFound, e.Reason)
		}
	}

	if status == http.StatusNotFound {
		return ErrNotFound
	}
	return fmt.Errorf("YouTube API error: %d - %s", status, string(body))
}
