// Package playback implements the queue orchestration core: immediate
// playback of a requested track plus incremental background population of
// the player queue with its surrounding context.
package playback

import (
	"context"
	"errors"
	"time"
)

var (
	ErrResolveFailed      = errors.New("failed to resolve track metadata")
	ErrNetworkUnavailable = errors.New("network unavailable")
	ErrTrackUnavailable   = errors.New("track is not available for playback")
	ErrEmptyPlaylist      = errors.New("playlist is empty")
	ErrQueueEmpty         = errors.New("queue is empty")
)

// TrackResolver turns a track id (plus optional display hints) into a fully
// playable descriptor. Unavailable items, missing audio formats and backend
// errors are all reported as errors wrapping ErrResolveFailed; transport
// failures wrap ErrNetworkUnavailable.
type TrackResolver interface {
	Resolve(ctx context.Context, id, titleHint, artistHint string) (*ResolvedTrack, error)
}

// SuggestionProvider returns "up next" track ids for a seed track. Only ids
// are consumed; each suggestion is re-resolved per item.
type SuggestionProvider interface {
	Suggestions(ctx context.Context, trackID string) ([]string, error)
}

// Engine is the player queue abstraction the orchestrator drives: an ordered
// sequence of tracks with a distinguished active index and a coarse
// transport state. The engine does not deduplicate; that invariant is
// enforced by its callers.
type Engine interface {
	Reset()
	// Add appends and returns the new entry's index.
	Add(track QueueTrack) int
	// AddAt inserts at index (clamped to the queue bounds) and returns the
	// entry's index. Inserting at or before the active index shifts the
	// active index forward.
	AddAt(track QueueTrack, index int) int
	Remove(index int)
	Queue() []QueueTrack
	ActiveIndex() int
	Play()
	Pause()
	SkipNext()
	SkipPrevious()
	Seek(pos time.Duration)
	State() TransportState
}
