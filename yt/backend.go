package yt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"Nocturne/resolver"
	"Nocturne/track"

	"github.com/kkdai/youtube/v2"
)

const searchLimit = 5

// Backend resolves identifiers against YouTube. Video and playlist URLs
// go through the YouTube client; free-text queries shell out to yt-dlp
// search since the client has no search endpoint.
type Backend struct {
	client youtube.Client
}

func NewBackend() *Backend {
	return &Backend{}
}

// Resolve classifies the identifier and fetches metadata for it. Bare
// text that is not a recognisable URL is treated as a search query.
func (b *Backend) Resolve(ctx context.Context, identifier string) (*resolver.Result, error) {
	if query, ok := searchQuery(identifier); ok {
		return b.search(ctx, query)
	}
	if strings.Contains(identifier, "list=") {
		return b.playlist(ctx, identifier)
	}

	videoID, err := youtube.ExtractVideoID(identifier)
	if err != nil {
		if looksLikeURL(identifier) {
			return nil, resolver.ErrNoMatches
		}
		return b.search(ctx, identifier)
	}
	return b.video(ctx, videoID)
}

func searchQuery(identifier string) (string, bool) {
	for _, prefix := range []string{"search:", "ytsearch:"} {
		if strings.HasPrefix(identifier, prefix) {
			return strings.TrimSpace(strings.TrimPrefix(identifier, prefix)), true
		}
	}
	return "", false
}

func looksLikeURL(identifier string) bool {
	return strings.HasPrefix(identifier, "http://") || strings.HasPrefix(identifier, "https://")
}

func (b *Backend) video(ctx context.Context, videoID string) (*resolver.Result, error) {
	video, err := b.client.GetVideoContext(ctx, videoID)
	if err != nil {
		return nil, err
	}
	return &resolver.Result{Track: trackFromVideo(video)}, nil
}

func (b *Backend) playlist(ctx context.Context, url string) (*resolver.Result, error) {
	playlist, err := b.client.GetPlaylistContext(ctx, url)
	if err != nil {
		return nil, err
	}
	if len(playlist.Videos) == 0 {
		return nil, resolver.ErrNoMatches
	}

	tracks := make([]*track.Track, 0, len(playlist.Videos))
	for _, entry := range playlist.Videos {
		tracks = append(tracks, &track.Track{
			ID:       entry.ID,
			URI:      watchURL(entry.ID),
			Title:    entry.Title,
			Author:   entry.Author,
			Duration: entry.Duration,
		})
	}
	return &resolver.Result{Playlist: &resolver.Playlist{
		Name:   playlist.Title,
		Tracks: tracks,
	}}, nil
}

// search runs a flat yt-dlp search and parses its JSON-lines output.
func (b *Backend) search(ctx context.Context, query string) (*resolver.Result, error) {
	cmd := exec.CommandContext(ctx, "yt-dlp",
		"-j", "--flat-playlist",
		fmt.Sprintf("ytsearch%d:%s", searchLimit, query),
	)
	out, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	tracks := []*track.Track{}
	for _, line := range bytes.Split(out, []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry struct {
			ID       string  `json:"id"`
			Title    string  `json:"title"`
			Uploader string  `json:"uploader"`
			Duration float64 `json:"duration"`
			LiveNow  bool    `json:"is_live"`
		}
		if err := json.Unmarshal(line, &entry); err != nil || entry.ID == "" {
			continue
		}
		tracks = append(tracks, &track.Track{
			ID:       entry.ID,
			URI:      watchURL(entry.ID),
			Title:    entry.Title,
			Author:   entry.Uploader,
			Duration: time.Duration(entry.Duration) * time.Second,
			Stream:   entry.LiveNow,
		})
	}
	if len(tracks) == 0 {
		return nil, resolver.ErrNoMatches
	}

	return &resolver.Result{Playlist: &resolver.Playlist{
		Name:   query,
		Tracks: tracks,
		Search: true,
	}}, nil
}

func trackFromVideo(video *youtube.Video) *track.Track {
	return &track.Track{
		ID:       video.ID,
		URI:      watchURL(video.ID),
		Title:    video.Title,
		Author:   video.Author,
		Duration: video.Duration,
		Stream:   video.Duration == 0,
	}
}

func watchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}
