// Package engine provides the in-process player queue implementation driven
// by the playback orchestrator: an ordered track list, an active index and a
// coarse transport state.
package engine

import (
	"sync"
	"time"

	"github.com/calev/cadenza/internal/playback"
)

// Engine satisfies playback.Engine. All operations are safe for concurrent
// use; callers own the no-duplicate invariant.
type Engine struct {
	mu       sync.Mutex
	tracks   []playback.QueueTrack
	active   int
	state    playback.TransportState
	position time.Duration
}

func New() *Engine {
	return &Engine{
		active: -1,
		state:  playback.TransportIdle,
	}
}

func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracks = nil
	e.active = -1
	e.state = playback.TransportIdle
	e.position = 0
}

func (e *Engine) Add(track playback.QueueTrack) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.tracks = append(e.tracks, track)
	return len(e.tracks) - 1
}

func (e *Engine) AddAt(track playback.QueueTrack, index int) int {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 {
		index = 0
	}
	if index > len(e.tracks) {
		index = len(e.tracks)
	}

	e.tracks = append(e.tracks, playback.QueueTrack{})
	copy(e.tracks[index+1:], e.tracks[index:])
	e.tracks[index] = track

	if e.active >= index {
		e.active++
	}

	return index
}

func (e *Engine) Remove(index int) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if index < 0 || index >= len(e.tracks) {
		return
	}

	e.tracks = append(e.tracks[:index], e.tracks[index+1:]...)

	switch {
	case index < e.active:
		e.active--
	case e.active >= len(e.tracks):
		e.active = len(e.tracks) - 1
	}

	if len(e.tracks) == 0 {
		e.active = -1
		e.state = playback.TransportIdle
		e.position = 0
	}
}

func (e *Engine) Queue() []playback.QueueTrack {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]playback.QueueTrack, len(e.tracks))
	copy(out, e.tracks)
	return out
}

func (e *Engine) ActiveIndex() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.active
}

func (e *Engine) Play() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if len(e.tracks) == 0 {
		return
	}
	if e.active < 0 {
		e.active = 0
		e.position = 0
	}
	e.state = playback.TransportPlaying
}

func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == playback.TransportPlaying || e.state == playback.TransportBuffering {
		e.state = playback.TransportPaused
	}
}

func (e *Engine) SkipNext() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active+1 < len(e.tracks) {
		e.active++
		e.position = 0
	}
}

func (e *Engine) SkipPrevious() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.active > 0 {
		e.active--
		e.position = 0
	}
}

func (e *Engine) Seek(pos time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if pos < 0 {
		pos = 0
	}
	e.position = pos
}

func (e *Engine) Position() time.Duration {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

func (e *Engine) State() playback.TransportState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}
