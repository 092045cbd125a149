package music

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"Nocturne/dsp"
	"Nocturne/queue"
	"Nocturne/radio"
	"Nocturne/resolver"
	"Nocturne/session"
	"Nocturne/settings"
	"Nocturne/track"

	"github.com/Strum355/log"
	"github.com/stretchr/testify/assert"
)

func TestMain(m *testing.M) {
	log.InitSimpleLogger(&log.Config{Output: io.Discard})
	os.Exit(m.Run())
}

type stubConn struct {
	open bool
}

func (c *stubConn) Open(channelID string, source session.FrameSource) error {
	c.open = true
	return nil
}
func (c *stubConn) Move(channelID string) error { return nil }
func (c *stubConn) Close() error                { c.open = false; return nil }
func (c *stubConn) Connected() bool             { return c.open }
func (c *stubConn) ChannelID() string           { return "" }

type stubProvider struct{}

func (stubProvider) Open(ctx context.Context, t *track.Track) (session.FrameReader, error) {
	return stubReader{}, nil
}

type stubReader struct{}

func (stubReader) ReadFrame() ([]int16, error) { return nil, io.EOF }
func (stubReader) Close() error                { return nil }

type stubLoader struct {
	results map[string]*resolver.Result
	calls   int
}

func (l *stubLoader) Resolve(ctx context.Context, identifier string) (*resolver.Result, error) {
	l.calls++
	if r, ok := l.results[identifier]; ok {
		return r, nil
	}
	return &resolver.Result{}, nil
}

type stubLimits struct {
	limits settings.Limits
}

func (s *stubLimits) EffectiveLimits(guildID string) settings.Limits { return s.limits }

func resolvedTrack(id string, duration time.Duration) *track.Track {
	return &track.Track{
		ID:       id,
		URI:      "https://example.com/" + id,
		Title:    "Track " + id,
		Duration: duration,
	}
}

type harness struct {
	svc    *Service
	loader *stubLoader
	limits *stubLimits
}

func newHarness() *harness {
	codec := &track.Codec{}
	decoder := &radio.Decoder{
		Stations: radio.NewLibrary(map[string][]string{"lofi": {"https://example.com/r"}}),
		Codec:    codec,
	}
	codec.Radio = decoder

	registry := session.NewRegistry(session.Deps{
		Queues:      func(string) queue.Queue { return queue.NewMemory() },
		Connections: func(string) session.Connection { return &stubConn{} },
		Provider:    stubProvider{},
		Codec:       codec,
	})

	loader := &stubLoader{results: map[string]*resolver.Result{}}
	limits := &stubLimits{limits: settings.Limits{
		MaxTrackDuration: 2 * time.Hour,
		MaxQueueSize:     100,
	}}
	return &harness{
		svc:    NewService(registry, loader, limits, decoder),
		loader: loader,
		limits: limits,
	}
}

func (h *harness) enqueue(t *testing.T, query string) *Enqueued {
	t.Helper()
	enq, err := h.svc.Enqueue(context.Background(), "g1", query, "user-1", "channel-1", false)
	assert.NoError(t, err)
	return enq
}

func TestService_EnqueueSingleTrack(t *testing.T) {
	h := newHarness()
	h.loader.results["song"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}

	enq := h.enqueue(t, "song")

	assert.Equal(t, 1, enq.Added)
	assert.Equal(t, "a", enq.Track.ID)

	sess := h.svc.Registry().GetExisting("g1")
	assert.Equal(t, "a", sess.Player().Playing().ID)
	assert.Equal(t, "user-1", sess.Player().Playing().Ctx.Requester)
}

func TestService_EnqueueNothingFound(t *testing.T) {
	h := newHarness()

	_, err := h.svc.Enqueue(context.Background(), "g1", "void", "user-1", "channel-1", false)

	assert.True(t, IsRejection(err))
}

func TestService_EnqueueRejectsLongTrack(t *testing.T) {
	h := newHarness()
	h.limits.limits.MaxTrackDuration = time.Minute
	h.loader.results["long"] = &resolver.Result{Track: resolvedTrack("a", time.Hour)}

	_, err := h.svc.Enqueue(context.Background(), "g1", "long", "user-1", "channel-1", false)

	assert.True(t, IsRejection(err))
}

func TestService_StreamsBypassDurationLimit(t *testing.T) {
	h := newHarness()
	h.limits.limits.MaxTrackDuration = time.Minute
	live := resolvedTrack("live", 0)
	live.Stream = true
	h.loader.results["live"] = &resolver.Result{Track: live}

	enq := h.enqueue(t, "live")
	assert.Equal(t, 1, enq.Added)
}

func TestService_EnqueueRejectsWhenQueueFull(t *testing.T) {
	h := newHarness()
	h.limits.limits.MaxQueueSize = 1
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.loader.results["b"] = &resolver.Result{Track: resolvedTrack("b", time.Minute)}
	h.loader.results["c"] = &resolver.Result{Track: resolvedTrack("c", time.Minute)}

	h.enqueue(t, "a") // starts playing, queue stays empty
	h.enqueue(t, "b") // first queued entry

	_, err := h.svc.Enqueue(context.Background(), "g1", "c", "user-1", "channel-1", false)
	assert.True(t, IsRejection(err))
}

func TestService_SearchTakesHead(t *testing.T) {
	h := newHarness()
	h.loader.results["search:q"] = &resolver.Result{Playlist: &resolver.Playlist{
		Name:   "q",
		Search: true,
		Tracks: []*track.Track{
			resolvedTrack("first", time.Minute),
			resolvedTrack("second", time.Minute),
		},
	}}

	enq := h.enqueue(t, "search:q")

	assert.Equal(t, 1, enq.Added)
	assert.Equal(t, "first", enq.Track.ID)
}

func TestService_PlaylistPartialSuccess(t *testing.T) {
	h := newHarness()
	h.limits.limits.MaxTrackDuration = 5 * time.Minute
	h.loader.results["pl"] = &resolver.Result{Playlist: &resolver.Playlist{
		Name: "Mix",
		Tracks: []*track.Track{
			resolvedTrack("ok-1", time.Minute),
			resolvedTrack("too-long", time.Hour),
			resolvedTrack("ok-2", time.Minute),
		},
	}}

	enq := h.enqueue(t, "pl")

	assert.Equal(t, "Mix", enq.Playlist)
	assert.Equal(t, 2, enq.Added)
	assert.Equal(t, 1, enq.Skipped)
}

func TestService_PlaylistPlayNextKeepsOrder(t *testing.T) {
	h := newHarness()
	h.loader.results["cur"] = &resolver.Result{Track: resolvedTrack("cur", time.Minute)}
	h.loader.results["later"] = &resolver.Result{Track: resolvedTrack("later", time.Minute)}
	h.loader.results["pl"] = &resolver.Result{Playlist: &resolver.Playlist{
		Name: "Mix",
		Tracks: []*track.Track{
			resolvedTrack("p1", time.Minute),
			resolvedTrack("p2", time.Minute),
			resolvedTrack("p3", time.Minute),
		},
	}}

	h.enqueue(t, "cur")   // occupies the player slot
	h.enqueue(t, "later") // pre-existing queue entry

	_, err := h.svc.Enqueue(context.Background(), "g1", "pl", "user-1", "channel-1", true)
	assert.NoError(t, err)

	sess := h.svc.Registry().GetExisting("g1")
	snapshot, _ := sess.Queue().Snapshot()
	ids := make([]string, 0, len(snapshot))
	for _, enc := range snapshot {
		decoded, err := sess.Codec().Decode(enc)
		assert.NoError(t, err)
		ids = append(ids, decoded.ID)
	}
	assert.Equal(t, []string{"p1", "p2", "p3", "later"}, ids)
}

func TestService_PlaylistPlayNextClaimsFreeSlot(t *testing.T) {
	h := newHarness()
	h.loader.results["pl"] = &resolver.Result{Playlist: &resolver.Playlist{
		Name: "Mix",
		Tracks: []*track.Track{
			resolvedTrack("p1", time.Minute),
			resolvedTrack("p2", time.Minute),
		},
	}}

	_, err := h.svc.Enqueue(context.Background(), "g1", "pl", "user-1", "channel-1", true)
	assert.NoError(t, err)

	sess := h.svc.Registry().GetExisting("g1")
	assert.Equal(t, "p1", sess.Player().Playing().ID)

	snapshot, _ := sess.Queue().Snapshot()
	assert.Len(t, snapshot, 1)
	queued, _ := sess.Codec().Decode(snapshot[0])
	assert.Equal(t, "p2", queued.ID)
}

func TestService_OperationsWithoutSession(t *testing.T) {
	h := newHarness()

	assert.True(t, IsRejection(h.svc.Skip("g1")))
	assert.True(t, IsRejection(h.svc.Stop("g1", true)))
	assert.True(t, IsRejection(h.svc.Shuffle("g1")))
	assert.True(t, IsRejection(h.svc.SetRepeat("g1", session.RepeatTrack)))
	assert.True(t, IsRejection(h.svc.SetBassBoost("g1", dsp.BoostHard)))

	_, err := h.svc.Pause("g1")
	assert.True(t, IsRejection(err))
}

func TestService_SkipAdvances(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.loader.results["b"] = &resolver.Result{Track: resolvedTrack("b", time.Minute)}

	h.enqueue(t, "a")
	h.enqueue(t, "b")

	assert.NoError(t, h.svc.Skip("g1"))

	sess := h.svc.Registry().GetExisting("g1")
	assert.Equal(t, "b", sess.Player().Playing().ID)
}

func TestService_RemoveUsesOneBasedPositions(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.loader.results["b"] = &resolver.Result{Track: resolvedTrack("b", time.Minute)}
	h.loader.results["c"] = &resolver.Result{Track: resolvedTrack("c", time.Minute)}

	h.enqueue(t, "a")
	h.enqueue(t, "b")
	h.enqueue(t, "c")

	assert.NoError(t, h.svc.Remove("g1", 1))

	summaries, err := h.svc.QueueSnapshot("g1")
	assert.NoError(t, err)
	assert.Len(t, summaries, 1)
	assert.Equal(t, "Track c", summaries[0].Title)

	assert.True(t, IsRejection(h.svc.Remove("g1", 9)))
}

func TestService_StopClearsQueueAndSession(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.enqueue(t, "a")

	assert.NoError(t, h.svc.Stop("g1", true))
	assert.Nil(t, h.svc.Registry().GetExisting("g1"))
}

func TestService_StationRadio(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.enqueue(t, "a")

	assert.NoError(t, h.svc.SetStationRadio("g1", "lofi", "user-1", "channel-1"))

	sess := h.svc.Registry().GetExisting("g1")
	assert.Equal(t, "lofi", sess.Radio().Name())

	assert.NoError(t, h.svc.StopRadio("g1"))
	assert.Nil(t, sess.Radio())
}

func TestService_UnknownStationRejected(t *testing.T) {
	h := newHarness()

	err := h.svc.SetStationRadio("g1", "nope", "user-1", "channel-1")
	assert.True(t, IsRejection(err))
}

func TestService_StopRadioWithoutRadio(t *testing.T) {
	h := newHarness()

	assert.True(t, IsRejection(h.svc.StopRadio("g1")))
}

func TestService_FilterSettersRebuildOnce(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.enqueue(t, "a")

	sess := h.svc.Registry().GetExisting("g1")

	assert.NoError(t, h.svc.SetBassBoost("g1", dsp.BoostHard))
	assert.Equal(t, 1, sess.Chain().Active())

	assert.NoError(t, h.svc.SetTremolo("g1", 0.5, 4))
	assert.Equal(t, 2, sess.Chain().Active())
	assert.Equal(t, dsp.BoostHard, sess.Chain().Settings().BassBoost)

	assert.NoError(t, h.svc.ClearFilters("g1"))
	assert.Equal(t, 0, sess.Chain().Active())
}

func TestService_FilterValidation(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", time.Minute)}
	h.enqueue(t, "a")

	assert.True(t, IsRejection(h.svc.SetKaraoke("g1", 5, 220, 100)))
	assert.True(t, IsRejection(h.svc.SetTimescale("g1", -1, 1, 1)))
	assert.True(t, IsRejection(h.svc.SetTremolo("g1", 2, 4)))
	assert.True(t, IsRejection(h.svc.SetTremolo("g1", 0.5, 0)))
}

func TestService_SessionStats(t *testing.T) {
	h := newHarness()
	h.loader.results["a"] = &resolver.Result{Track: resolvedTrack("a", 3*time.Minute)}
	h.loader.results["b"] = &resolver.Result{Track: resolvedTrack("b", time.Minute)}

	h.enqueue(t, "a")
	h.enqueue(t, "b")
	h.svc.SetRepeat("g1", session.RepeatQueue)
	h.svc.SetBassBoost("g1", dsp.BoostSoft)

	stats, err := h.svc.SessionStats("g1")
	assert.NoError(t, err)

	assert.Equal(t, "Track a", stats.Current.Title)
	assert.Equal(t, "03:00", stats.Current.Duration)
	assert.Equal(t, 1, stats.QueueLength)
	assert.Equal(t, "queue", stats.Repeat)
	assert.Equal(t, 1, stats.Filters)
	assert.False(t, stats.Paused)
}

func TestService_StatsLiveTrack(t *testing.T) {
	h := newHarness()
	live := resolvedTrack("live", 0)
	live.Stream = true
	h.loader.results["live"] = &resolver.Result{Track: live}
	h.enqueue(t, "live")

	stats, err := h.svc.SessionStats("g1")
	assert.NoError(t, err)
	assert.Equal(t, "live", stats.Current.Duration)
}
