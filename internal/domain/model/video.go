package model

import (
	"fmt"
	"regexp"
	"strings"
)

var youtubeIDPattern = regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/)([^&\n?#]+)`)

// ExtractVideoID returns the YouTube video id embedded in a watch or short URL.
func ExtractVideoID(url string) (string, bool) {
	m := youtubeIDPattern.FindStringSubmatch(strings.TrimSpace(url))
	if len(m) < 2 || m[1] == "" {
		return "", false
	}
	return m[1], true
}

// ThumbnailURL is the default-size still image for a YouTube video id.
func ThumbnailURL(videoID string) string {
	return fmt.Sprintf("https://img.youtube.com/vi/%s/default.jpg", videoID)
}

// Video is one entry of the backend's library of processed videos.
type Video struct {
	ID                  string
	Title               string
	Summary             string
	Folder              string
	Status              RemoteStatus
	TranscriptAvailable bool
	AutoGenerated       bool
}

// DisplayTitle falls back to a generated title when the backend has none.
func (v Video) DisplayTitle() string {
	if t := strings.TrimSpace(v.Title); t != "" {
		return t
	}
	return "Video " + v.ID
}

func (v Video) Thumbnail() string { return ThumbnailURL(v.ID) }
