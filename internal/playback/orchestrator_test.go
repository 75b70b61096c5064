package playback_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/calev/cadenza/internal/engine"
	"github.com/calev/cadenza/internal/playback"
)

type fakeResolver struct {
	mu      sync.Mutex
	fail    map[string]bool
	netDown bool
	gates   map[string]chan struct{}
	calls   []string
}

func (f *fakeResolver) gateFor(id string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.gates == nil {
		f.gates = make(map[string]chan struct{})
	}
	gate := make(chan struct{})
	f.gates[id] = gate
	return gate
}

func (f *fakeResolver) Resolve(ctx context.Context, id, titleHint, artistHint string) (*playback.ResolvedTrack, error) {
	f.mu.Lock()
	gate := f.gates[id]
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, id)

	if f.netDown {
		return nil, fmt.Errorf("%w: dial tcp: no route to host", playback.ErrNetworkUnavailable)
	}
	if f.fail[id] {
		return nil, fmt.Errorf("%w: %s is not available", playback.ErrResolveFailed, id)
	}

	title := titleHint
	if title == "" {
		title = "Title " + id
	}

	return &playback.ResolvedTrack{
		ID:        id,
		StreamURL: "https://stream.example/" + id,
		Title:     title,
		Artist:    artistHint,
		Duration:  3 * time.Minute,
	}, nil
}

func (f *fakeResolver) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSuggestions struct {
	mu    sync.Mutex
	ids   []string
	err   error
	calls int
}

func (f *fakeSuggestions) Suggestions(ctx context.Context, trackID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.ids, nil
}

func (f *fakeSuggestions) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeLibrary struct {
	tracks []playback.LocalTrack
	err    error
}

func (f *fakeLibrary) ListTracks(ctx context.Context) ([]playback.LocalTrack, error) {
	return f.tracks, f.err
}

type harness struct {
	engine      *engine.Engine
	resolver    *fakeResolver
	suggestions *fakeSuggestions
	session     *playback.SessionTracker
	registry    *playback.CancellationRegistry
	orch        *playback.Orchestrator
}

func newHarness() *harness {
	logger := log.New(io.Discard)

	eng := engine.New()
	resolver := &fakeResolver{}
	suggestions := &fakeSuggestions{}
	session := playback.NewSessionTracker()
	registry := playback.NewCancellationRegistry()

	populator := playback.NewPopulator(eng, resolver, suggestions, session, 500, logger)
	orch := playback.NewOrchestrator(eng, resolver, populator, session, registry, logger)

	return &harness{
		engine:      eng,
		resolver:    resolver,
		suggestions: suggestions,
		session:     session,
		registry:    registry,
		orch:        orch,
	}
}

func waitSettled(t *testing.T, token *playback.Token) {
	t.Helper()
	if token == nil {
		t.Fatal("no token to wait on")
	}
	select {
	case <-token.Settled():
	case <-time.After(5 * time.Second):
		t.Fatal("background run did not settle in time")
	}
}

func (h *harness) waitBackground(t *testing.T) {
	t.Helper()
	waitSettled(t, h.registry.Current())
}

func queueIDs(e *engine.Engine) []string {
	queue := e.Queue()
	ids := make([]string, len(queue))
	for i, track := range queue {
		ids[i] = track.ID
	}
	return ids
}

func assertQueue(t *testing.T, e *engine.Engine, want ...string) {
	t.Helper()
	got := queueIDs(e)
	ok := len(got) == len(want)
	if ok {
		for i := range want {
			if got[i] != want[i] {
				ok = false
				break
			}
		}
	}
	if !ok {
		t.Fatalf("queue = %v, want %v", got, want)
	}
}

func refs(ids ...string) []playback.TrackRef {
	out := make([]playback.TrackRef, len(ids))
	for i, id := range ids {
		out[i] = playback.TrackRef{ID: id, Title: "Title " + id}
	}
	return out
}

func locals(ids ...string) []playback.LocalTrack {
	out := make([]playback.LocalTrack, len(ids))
	for i, id := range ids {
		out[i] = playback.LocalTrack{ID: id, Title: "Title " + id, MediaPath: "/music/" + id + ".opus"}
	}
	return out
}

func TestPlayTrackStartsImmediatelyThenExpands(t *testing.T) {
	h := newHarness()
	playlist := refs("s1", "s2", "s3")

	// Hold the other members back so the pre-expansion state is observable.
	beforeGate := h.resolver.gateFor("s1")
	afterGate := h.resolver.gateFor("s3")

	if err := h.orch.PlayTrack(context.Background(), playlist[1], playlist); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}

	// The requested track is audible before expansion finishes.
	assertQueue(t, h.engine, "s2")
	if h.engine.ActiveIndex() != 0 {
		t.Errorf("active index = %d, want 0", h.engine.ActiveIndex())
	}
	if h.engine.State() != playback.TransportPlaying {
		t.Errorf("state = %s, want playing", h.engine.State())
	}

	close(beforeGate)
	close(afterGate)
	h.waitBackground(t)

	assertQueue(t, h.engine, "s1", "s2", "s3")
	if h.engine.ActiveIndex() != 1 {
		t.Errorf("active index = %d, want 1 after expansion", h.engine.ActiveIndex())
	}
}

func TestPlaylistExpansionPreservesOrder(t *testing.T) {
	h := newHarness()
	playlist := refs("a", "b", "c", "d")

	if err := h.orch.PlayTrack(context.Background(), playlist[2], playlist); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "a", "b", "c", "d")
	if h.engine.ActiveIndex() != 2 {
		t.Errorf("active index = %d, want 2", h.engine.ActiveIndex())
	}
}

func TestPlayTrackNotInPlaylistExpandsNothing(t *testing.T) {
	h := newHarness()

	if err := h.orch.PlayTrack(context.Background(), refs("x")[0], refs("a", "b")); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "x")
}

func TestPlayTrackPrimaryResolveFailure(t *testing.T) {
	h := newHarness()
	h.resolver.fail = map[string]bool{"bad": true}

	err := h.orch.PlayTrack(context.Background(), refs("bad")[0], nil)
	if !errors.Is(err, playback.ErrTrackUnavailable) {
		t.Fatalf("expected ErrTrackUnavailable, got %v", err)
	}

	if h.session.IsActive("bad") {
		t.Error("failed primary resolve must not update the session")
	}
	assertQueue(t, h.engine)
	if h.suggestions.callCount() != 0 {
		t.Error("no expansion should run after a failed primary resolve")
	}

	// The issued token settles even though no run was spawned.
	h.waitBackground(t)
}

func TestPlayTrackNetworkFailure(t *testing.T) {
	h := newHarness()
	h.resolver.netDown = true

	err := h.orch.PlayTrack(context.Background(), refs("a")[0], nil)
	if !errors.Is(err, playback.ErrNetworkUnavailable) {
		t.Fatalf("expected ErrNetworkUnavailable, got %v", err)
	}
}

func TestNilPlaylistTriggersSuggestionsEmptyDoesNot(t *testing.T) {
	h := newHarness()
	h.suggestions.ids = []string{"n1", "n2"}

	// Omitted context: suggestion expansion.
	if err := h.orch.PlayTrack(context.Background(), refs("a")[0], nil); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "a", "n1", "n2")
	if h.suggestions.callCount() != 1 {
		t.Fatalf("suggestion calls = %d, want 1", h.suggestions.callCount())
	}

	// Explicitly empty context: no expansion of any kind.
	if err := h.orch.PlayTrack(context.Background(), refs("b")[0], []playback.TrackRef{}); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "b")
	if h.suggestions.callCount() != 1 {
		t.Errorf("suggestion calls = %d, want still 1", h.suggestions.callCount())
	}
}

func TestSuggestionExpansionSkipsDuplicates(t *testing.T) {
	h := newHarness()
	h.suggestions.ids = []string{"a", "s1", "s2", "s1"}

	if err := h.orch.PlayTrack(context.Background(), refs("a")[0], nil); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "a", "s1", "s2")
}

func TestSuggestionFetchFailureLeavesPlaybackAlone(t *testing.T) {
	h := newHarness()
	h.suggestions.err = errors.New("suggestion backend down")

	if err := h.orch.PlayTrack(context.Background(), refs("a")[0], nil); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "a")
	if h.engine.State() != playback.TransportPlaying {
		t.Errorf("state = %s, want playing", h.engine.State())
	}
}

func TestStaleExpansionAborts(t *testing.T) {
	h := newHarness()

	// Block the first member of X's playlist so X's expansion cannot insert
	// anything until Y has taken over.
	gate := h.resolver.gateFor("x2")

	if err := h.orch.PlayTrack(context.Background(), refs("x1")[0], refs("x1", "x2", "x3")); err != nil {
		t.Fatalf("PlayTrack(x1): %v", err)
	}
	staleToken := h.registry.Current()

	if err := h.orch.PlayTrack(context.Background(), refs("y1")[0], refs("y1", "y2")); err != nil {
		t.Fatalf("PlayTrack(y1): %v", err)
	}

	close(gate)
	waitSettled(t, staleToken)
	h.waitBackground(t)

	assertQueue(t, h.engine, "y1", "y2")
}

func TestMemberResolveFailureIsIsolated(t *testing.T) {
	h := newHarness()
	h.resolver.fail = map[string]bool{"p3": true}
	playlist := refs("p1", "p2", "p3", "p4")

	if err := h.orch.PlayTrack(context.Background(), playlist[0], playlist); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "p1", "p2", "p4")
}

func TestPlayPlaylist(t *testing.T) {
	h := newHarness()

	if err := h.orch.PlayPlaylist(context.Background(), nil); !errors.Is(err, playback.ErrEmptyPlaylist) {
		t.Fatalf("expected ErrEmptyPlaylist, got %v", err)
	}

	playlist := refs("a", "b", "c")
	if err := h.orch.PlayPlaylist(context.Background(), playlist); err != nil {
		t.Fatalf("PlayPlaylist: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "a", "b", "c")
	if h.engine.ActiveIndex() != 0 {
		t.Errorf("active index = %d, want 0", h.engine.ActiveIndex())
	}
}

func TestQueueNextMovesExistingEntries(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	// Nothing playing: items land at the end.
	if err := h.orch.QueueNext(ctx, refs("a", "b")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "a", "b")

	// b is moved, not duplicated, and c follows it.
	if err := h.orch.QueueNext(ctx, refs("b", "c")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "a", "b", "c")
}

func TestQueueNextInsertsAfterActiveTrack(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.orch.PlayTrack(ctx, refs("x")[0], []playback.TrackRef{}); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	if err := h.orch.QueueNext(ctx, refs("a", "b")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "x", "a", "b")

	// A later batch lands directly after the active track, ahead of the
	// earlier batch.
	if err := h.orch.QueueNext(ctx, refs("c")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "x", "c", "a", "b")
	if h.engine.ActiveIndex() != 0 {
		t.Errorf("active index = %d, want 0", h.engine.ActiveIndex())
	}
}

func TestQueueNextSkipsActiveAndUnresolvable(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.resolver.fail = map[string]bool{"broken": true}

	if err := h.orch.PlayTrack(ctx, refs("x")[0], []playback.TrackRef{}); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	if err := h.orch.QueueNext(ctx, refs("x", "broken", "a")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "x", "a")
}

func TestQueueNextMovingEntryBeforeInsertionPoint(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.orch.PlayTrack(ctx, refs("x")[0], []playback.TrackRef{}); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	if err := h.orch.QueueNext(ctx, refs("a", "b")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	h.engine.SkipNext()
	h.engine.SkipNext() // active = b at index 2

	// a sits before the insertion point; moving it must not displace the
	// batch.
	if err := h.orch.QueueNext(ctx, refs("a", "d")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}
	assertQueue(t, h.engine, "x", "b", "a", "d")
}

func TestNoDuplicateIDsAcrossOperations(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.suggestions.ids = []string{"s1", "s2"}

	if err := h.orch.PlayTrack(ctx, refs("a")[0], nil); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	if err := h.orch.QueueNext(ctx, refs("s2", "s1", "b")); err != nil {
		t.Fatalf("QueueNext: %v", err)
	}

	seen := make(map[string]int)
	for _, id := range queueIDs(h.engine) {
		seen[id]++
	}
	for id, n := range seen {
		if n > 1 {
			t.Errorf("track %s appears %d times in queue %v", id, n, queueIDs(h.engine))
		}
	}
}

func TestTogglePlayPause(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.orch.TogglePlayPause(ctx); !errors.Is(err, playback.ErrQueueEmpty) {
		t.Fatalf("expected ErrQueueEmpty, got %v", err)
	}
	if h.engine.State() != playback.TransportIdle {
		t.Errorf("toggle on empty queue changed state to %s", h.engine.State())
	}

	if err := h.orch.PlayTrack(ctx, refs("a")[0], []playback.TrackRef{}); err != nil {
		t.Fatalf("PlayTrack: %v", err)
	}
	h.waitBackground(t)

	if err := h.orch.TogglePlayPause(ctx); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if h.engine.State() != playback.TransportPaused {
		t.Errorf("state = %s, want paused", h.engine.State())
	}

	if err := h.orch.TogglePlayPause(ctx); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}
	if h.engine.State() != playback.TransportPlaying {
		t.Errorf("state = %s, want playing", h.engine.State())
	}
}

func TestPlayDownloadedTrackSkipsResolver(t *testing.T) {
	h := newHarness()
	playlist := locals("l1", "l2", "l3")

	if err := h.orch.PlayDownloadedTrack(context.Background(), playlist[1], playlist); err != nil {
		t.Fatalf("PlayDownloadedTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "l1", "l2", "l3")
	if h.resolver.callCount() != 0 {
		t.Errorf("resolver was called %d times for local playback", h.resolver.callCount())
	}
	if h.suggestions.callCount() != 0 {
		t.Error("downloaded playback must never trigger suggestion expansion")
	}

	track := h.engine.Queue()[1]
	if track.Source != playback.TrackSourceLocal || track.MediaURL != "/music/l2.opus" {
		t.Errorf("unexpected queue entry for local track: %+v", track)
	}
}

func TestPlayDownloadedTrackWithoutPlaylist(t *testing.T) {
	h := newHarness()

	if err := h.orch.PlayDownloadedTrack(context.Background(), locals("l1")[0], nil); err != nil {
		t.Fatalf("PlayDownloadedTrack: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "l1")
	if h.suggestions.callCount() != 0 {
		t.Error("no suggestion expansion for downloaded content")
	}
}

func TestPlayAllDownloadedTracks(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	if err := h.orch.PlayAllDownloadedTracks(ctx); !errors.Is(err, playback.ErrEmptyPlaylist) {
		t.Fatalf("expected ErrEmptyPlaylist without a library, got %v", err)
	}

	h.orch.WithLibrary(&fakeLibrary{})
	if err := h.orch.PlayAllDownloadedTracks(ctx); !errors.Is(err, playback.ErrEmptyPlaylist) {
		t.Fatalf("expected ErrEmptyPlaylist for empty library, got %v", err)
	}

	h.orch.WithLibrary(&fakeLibrary{tracks: locals("d1", "d2", "d3")})
	if err := h.orch.PlayAllDownloadedTracks(ctx); err != nil {
		t.Fatalf("PlayAllDownloadedTracks: %v", err)
	}
	h.waitBackground(t)

	assertQueue(t, h.engine, "d1", "d2", "d3")
	if h.engine.ActiveIndex() != 0 {
		t.Errorf("active index = %d, want 0", h.engine.ActiveIndex())
	}
}
