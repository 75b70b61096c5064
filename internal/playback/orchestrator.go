package playback

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"
)

// DownloadLibrary lists the locally downloaded tracks available for offline
// playback.
type DownloadLibrary interface {
	ListTracks(ctx context.Context) ([]LocalTrack, error)
}

// Orchestrator is the public playback surface. Each Play* call immediately
// starts the requested track, then hands queue population to a background
// run owned by a fresh cancellation token; issuing that token revokes
// whichever run was live before.
type Orchestrator struct {
	engine    Engine
	resolver  TrackResolver
	session   *SessionTracker
	registry  *CancellationRegistry
	populator *Populator
	library   DownloadLibrary
	logger    *log.Logger
}

func NewOrchestrator(engine Engine, resolver TrackResolver, populator *Populator, session *SessionTracker, registry *CancellationRegistry, logger *log.Logger) *Orchestrator {
	return &Orchestrator{
		engine:    engine,
		resolver:  resolver,
		session:   session,
		registry:  registry,
		populator: populator,
		logger:    logger.WithPrefix("orchestrator"),
	}
}

// WithLibrary attaches the downloaded-tracks store used by
// PlayAllDownloadedTracks.
func (o *Orchestrator) WithLibrary(library DownloadLibrary) *Orchestrator {
	o.library = library
	return o
}

// PlayTrack starts track immediately and populates the rest of the queue in
// the background. A nil playlist means "no known context" and triggers
// suggestion expansion; a non-nil empty playlist means the context is known
// to be empty and no expansion runs at all.
func (o *Orchestrator) PlayTrack(ctx context.Context, track TrackRef, playlist []TrackRef) error {
	token := o.registry.Issue()

	o.engine.Reset()

	resolved, err := o.resolver.Resolve(ctx, track.ID, track.Title, track.Artist)
	if err != nil {
		token.settle()
		if errors.Is(err, ErrNetworkUnavailable) {
			return err
		}
		return fmt.Errorf("%w: %q: %v", ErrTrackUnavailable, track.Title, err)
	}

	o.engine.Add(resolved.QueueTrack())
	o.engine.Play()
	o.session.SetActive(track.ID)

	bg := context.WithoutCancel(ctx)
	switch {
	case playlist == nil:
		go o.populator.ExpandSuggestions(bg, track.ID, token)
	case len(playlist) > 0:
		go o.populator.ExpandPlaylist(bg, track, playlist, token)
	default:
		// Explicitly empty context: nothing to expand.
		token.settle()
	}

	o.logger.Info("playing", "track", track.ID, "title", track.Title, "playlist", len(playlist))
	return nil
}

// PlayPlaylist plays the first track of tracks with the whole list as
// context.
func (o *Orchestrator) PlayPlaylist(ctx context.Context, tracks []TrackRef) error {
	if len(tracks) == 0 {
		return ErrEmptyPlaylist
	}
	return o.PlayTrack(ctx, tracks[0], tracks)
}

// PlayDownloadedTrack is the offline counterpart of PlayTrack: no
// resolution, and background expansion only ever walks the supplied local
// playlist. There is no suggestion path for downloaded content.
func (o *Orchestrator) PlayDownloadedTrack(ctx context.Context, track LocalTrack, playlist []LocalTrack) error {
	token := o.registry.Issue()

	o.engine.Reset()
	o.engine.Add(track.QueueTrack())
	o.engine.Play()
	o.session.SetActive(track.ID)

	if len(playlist) > 0 {
		go o.populator.ExpandLocalPlaylist(context.WithoutCancel(ctx), track, playlist, token)
	} else {
		token.settle()
	}

	o.logger.Info("playing downloaded", "track", track.ID, "title", track.Title, "playlist", len(playlist))
	return nil
}

// PlayAllDownloadedTracks plays the entire download library from the top.
func (o *Orchestrator) PlayAllDownloadedTracks(ctx context.Context) error {
	if o.library == nil {
		return ErrEmptyPlaylist
	}

	tracks, err := o.library.ListTracks(ctx)
	if err != nil {
		return fmt.Errorf("listing downloads: %w", err)
	}
	if len(tracks) == 0 {
		return ErrEmptyPlaylist
	}

	return o.PlayDownloadedTrack(ctx, tracks[0], tracks)
}

// QueueNext resolves tracks and inserts them immediately after the current
// playback position, preserving the caller-supplied order. Items already in
// the queue are moved rather than duplicated; the active track is skipped
// outright. Per-item resolution failures are logged and skipped.
func (o *Orchestrator) QueueNext(ctx context.Context, tracks []TrackRef) error {
	queue := o.engine.Queue()
	active := o.engine.ActiveIndex()

	insertAt := len(queue)
	activeID := ""
	if active >= 0 && active < len(queue) {
		insertAt = active + 1
		activeID = queue[active].ID
	}

	for _, ref := range tracks {
		if ref.ID == "" || ref.ID == activeID {
			continue
		}

		resolved, err := o.resolver.Resolve(ctx, ref.ID, ref.Title, ref.Artist)
		if err != nil {
			o.logger.Warn("queue next: skipping unresolvable track", "track", ref.ID, "err", err)
			continue
		}

		// Re-read the live queue; a prior iteration or a background walk
		// may have changed it.
		for i, existing := range o.engine.Queue() {
			if existing.ID == ref.ID {
				o.engine.Remove(i)
				if i < insertAt {
					insertAt--
				}
				break
			}
		}

		o.engine.AddAt(resolved.QueueTrack(), insertAt)
		insertAt++
	}

	return nil
}

// TogglePlayPause pauses when playing or buffering, plays when the queue has
// anything to play, and reports ErrQueueEmpty otherwise.
func (o *Orchestrator) TogglePlayPause(ctx context.Context) error {
	switch o.engine.State() {
	case TransportPlaying, TransportBuffering:
		o.engine.Pause()
		return nil
	default:
		if len(o.engine.Queue()) == 0 {
			return ErrQueueEmpty
		}
		o.engine.Play()
		return nil
	}
}
