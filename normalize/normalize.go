// Package normalize turns noisy provider metadata into comparable track keys.
package normalize

import (
	"regexp"
	"strings"
)

// UnknownArtist is used when a raw title carries no parseable artist
const UnknownArtist = "Unknown"

// separators are tried most specific first
var separators = []string{"—", "–", " - ", "--", "|"}

// qualifierPattern matches bracketed qualifier phrases
var qualifierPattern = regexp.MustCompile(`\s*[\(\[]\s*(?:official\s+(?:music\s+)?video|official\s+(?:lyric\s+)?video|official\s+audio|official|original\s+mix|extended\s+mix|radio\s+edit|lyrics?|lyric\s+video|visuali[sz]er|audio|video|hd|hq|4k|explicit)\s*[\)\]]`)

// loose qualifier phrases that appear without brackets at the end of a title
var trailingQualifierPattern = regexp.MustCompile(`\s+(?:official\s+(?:music\s+)?video|official\s+audio|lyric\s+video)$`)

var topicSuffixPattern = regexp.MustCompile(`\s*-\s*topic$`)
var channelTopicPattern = regexp.MustCompile(`(?i)\s*-\s*topic\s*$`)
var vevoSuffixPattern = regexp.MustCompile(`\s*vevo$`)
var emptyBracketsPattern = regexp.MustCompile(`\s*(?:\(\s*\)|\[\s*\])`)
var spacePattern = regexp.MustCompile(`\s+`)

// Query lowercases and trims a search query
func Query(q string) string {
	return strings.ToLower(strings.TrimSpace(q))
}

// Title lowercases a title and strips qualifier noise. Applying it twice is a no-op.
func Title(title string) string {
	return clean(title, qualifierPattern, trailingQualifierPattern, topicSuffixPattern)
}

// Artist lowercases an artist or channel name and strips platform suffixes. Applying it twice is a no-op.
func Artist(artist string) string {
	return clean(artist, qualifierPattern, topicSuffixPattern, vevoSuffixPattern)
}

func clean(s string, patterns ...*regexp.Regexp) string {
	s = collapse(strings.ToLower(s))
	for {
		prev := s
		for _, p := range patterns {
			s = p.ReplaceAllString(s, "")
		}
		s = emptyBracketsPattern.ReplaceAllString(s, "")
		s = collapse(s)
		if s == prev {
			return s
		}
	}
}

func collapse(s string) string {
	return strings.TrimSpace(spacePattern.ReplaceAllString(s, " "))
}

// ParseArtistTitle splits "Artist - Title" style strings. The first separator
// leaving text on both sides wins; otherwise the artist is UnknownArtist.
func ParseArtistTitle(raw string) (artist, title string) {
	trimmed := strings.TrimSpace(raw)
	for _, sep := range separators {
		left, right, found := strings.Cut(trimmed, sep)
		if !found {
			continue
		}
		left, right = strings.TrimSpace(left), strings.TrimSpace(right)
		if left != "" && right != "" {
			return left, right
		}
	}
	return UnknownArtist, trimmed
}

// ChannelArtist strips the " - Topic" marker YouTube adds to auto-generated artist channels
func ChannelArtist(channel string) string {
	return strings.TrimSpace(channelTopicPattern.ReplaceAllString(strings.TrimSpace(channel), ""))
}
