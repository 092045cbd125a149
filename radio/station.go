package radio

import (
	"context"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"Nocturne/track"

	"github.com/Strum355/log"
)

const stationAttempts = 3

// Station draws random entries from a named curated library of source URIs
// and resolves them on demand. Resolution failures re-roll with a fresh
// random entry up to stationAttempts times.
type Station struct {
	name     string
	library  *Library
	resolver Resolver
}

func (s *Station) Name() string { return s.name }

func (s *Station) NextTrack(ctx context.Context, rc *Context) (*track.Track, error) {
	for attempt := 0; attempt < stationAttempts; attempt++ {
		uri, ok := s.library.Random(s.name)
		if !ok {
			return nil, errNoTrack
		}

		t, err := s.resolver.ResolveTrack(ctx, uri)
		if err != nil || t == nil {
			log.WithFields(log.Fields{
				"station": s.name,
				"uri":     uri,
			}).Info("Station track failed to resolve, rerolling")
			continue
		}

		return t.WithContext(&track.Context{
			Requester: rc.Requester,
			Channel:   rc.Channel,
			Radio:     rc,
		}), nil
	}

	return nil, errNoTrack
}

func (s *Station) Serialize(w *track.Writer) error {
	w.WriteInt32(tagStation)
	w.WriteString(s.name)
	return w.Err()
}

// Library holds the curated station lists, loaded once from a directory of
// one-URI-per-line text files named after the station.
type Library struct {
	mu       sync.RWMutex
	stations map[string][]string
}

// LoadLibrary reads every *.txt file under dir. Files that fail to read
// are skipped with a warning rather than failing startup.
func LoadLibrary(dir string) *Library {
	lib := &Library{stations: make(map[string][]string)}

	entries, err := os.ReadDir(dir)
	if err != nil {
		log.WithError(err).Error("Unable to read station library directory")
		return lib
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".txt") {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			log.WithError(err).WithFields(log.Fields{
				"station": entry.Name(),
			}).Error("Skipping unreadable station file")
			continue
		}

		var uris []string
		for _, line := range strings.Split(string(data), "\n") {
			line = strings.TrimSpace(line)
			if strings.HasPrefix(line, "https://") {
				uris = append(uris, line)
			}
		}

		name := strings.TrimSuffix(entry.Name(), ".txt")
		lib.stations[name] = uris
		log.WithFields(log.Fields{
			"station": name,
			"tracks":  len(uris),
		}).Info("Loaded station library")
	}

	return lib
}

// NewLibrary builds a library from an in-memory station map.
func NewLibrary(stations map[string][]string) *Library {
	copied := make(map[string][]string, len(stations))
	for name, uris := range stations {
		copied[name] = append([]string(nil), uris...)
	}
	return &Library{stations: copied}
}

// Random picks a random URI from the named station.
func (l *Library) Random(name string) (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	uris := l.stations[name]
	if len(uris) == 0 {
		return "", false
	}
	return uris[rand.Intn(len(uris))], true
}

// Has reports whether a station with the given name exists.
func (l *Library) Has(name string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.stations[name]) > 0
}

// Names lists the available stations.
func (l *Library) Names() []string {
	l.mu.RLock()
	defer l.mu.RUnlock()

	names := make([]string, 0, len(l.stations))
	for name := range l.stations {
		names = append(names, name)
	}
	return names
}
