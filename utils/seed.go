package utils

import (
	"regexp"
	"strings"
)

// youtubeVideoIDPatterns matches the YouTube URL forms a caller may paste as a seed
var youtubeVideoIDPatterns = []*regexp.Regexp{
	// watch URLs, including music.youtube.com and m.youtube.com
	regexp.MustCompile(`youtube\.com/watch\?(?:[^&]*&)*v=([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtu\.be/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/embed/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/live/([a-zA-Z0-9_-]{11})`),
	regexp.MustCompile(`youtube\.com/v/([a-zA-Z0-9_-]{11})`),
}

var videoIDPattern = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
// one word in lower, title or upper case, e.g. "springsteen", "Soundgarden", "QUEENSRYCHE"
var plainWordPattern = regexp.MustCompile(`^(?:[A-Za-z][a-z]+|[A-Z]+)$`)

// ExtractVideoID returns the video id of a YouTube URL, or "" when there is none
func ExtractVideoID(input string) string {
	for _, pattern := range youtubeVideoIDPatterns {
		if matches := pattern.FindStringSubmatch(input); len(matches) > 1 {
			return matches[1]
		}
	}
	return ""
}

// IsVideoID reports whether s looks like a bare video id. A plain word of the
// right length is read as a search query instead: an id needs a digit, '_', '-'
// or mixed case past its first letter.
func IsVideoID(s string) bool {
	return videoIDPattern.MatchString(s) && !plainWordPattern.MatchString(s)
}

// ParseSeed classifies raw input as a video id seed or a text query seed.
// Exactly one of the results is non-empty for non-blank input.
func ParseSeed(raw string) (query, videoID string) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ""
	}
	if id := ExtractVideoID(raw); id != "" {
		return "", id
	}
	if IsVideoID(raw) {
		return "", raw
	}
	return raw, ""
}
