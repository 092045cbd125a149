package utils

import (
	"fmt"
	"strings"
)

// AudioFile maps a track identifier to its cached audio file path.
func AudioFile(trackID string) string {
	return fmt.Sprintf("cache/%s.opus", trackID)
}

// AudioID recovers the track identifier from a cached file path.
func AudioID(filepath string) string {
	return strings.TrimSuffix(strings.TrimPrefix(filepath, "cache/"), ".opus")
}
