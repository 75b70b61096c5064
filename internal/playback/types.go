package playback

import "time"

type TrackSource string

const (
	TrackSourceRemote TrackSource = "remote"
	TrackSourceLocal  TrackSource = "local"
)

// TrackRef is the lightweight, pre-resolution reference produced by catalog
// browsing. It carries enough metadata to render a row and to hint the
// resolver, nothing more.
type TrackRef struct {
	ID           string        `json:"id"`
	Title        string        `json:"title"`
	Artist       string        `json:"artist"`
	ThumbnailURL string        `json:"thumbnail_url"`
	Duration     time.Duration `json:"duration"`
}

// ResolvedTrack is the fully playable remote form. Only a TrackResolver
// produces these.
type ResolvedTrack struct {
	ID         string        `json:"id"`
	StreamURL  string        `json:"stream_url"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	ArtworkURL string        `json:"artwork_url"`
	Duration   time.Duration `json:"duration"`
}

// LocalTrack is the playable form for already-downloaded content. It is
// built directly from library rows and never passes through the resolver.
type LocalTrack struct {
	ID          string        `json:"id"`
	MediaPath   string        `json:"media_path"`
	Title       string        `json:"title"`
	Artist      string        `json:"artist"`
	ArtworkPath string        `json:"artwork_path"`
	Duration    time.Duration `json:"duration"`
}

// QueueTrack is the engine's entry type: either playable form normalized to
// one shape.
type QueueTrack struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Artist     string        `json:"artist"`
	ArtworkURL string        `json:"artwork_url"`
	MediaURL   string        `json:"media_url"`
	Source     TrackSource   `json:"source"`
	Duration   time.Duration `json:"duration"`
}

func (t ResolvedTrack) QueueTrack() QueueTrack {
	return QueueTrack{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		ArtworkURL: t.ArtworkURL,
		MediaURL:   t.StreamURL,
		Source:     TrackSourceRemote,
		Duration:   t.Duration,
	}
}

func (t LocalTrack) QueueTrack() QueueTrack {
	return QueueTrack{
		ID:         t.ID,
		Title:      t.Title,
		Artist:     t.Artist,
		ArtworkURL: t.ArtworkPath,
		MediaURL:   t.MediaPath,
		Source:     TrackSourceLocal,
		Duration:   t.Duration,
	}
}

// TransportState mirrors the engine's coarse playback state.
type TransportState string

const (
	TransportIdle      TransportState = "idle"
	TransportPlaying   TransportState = "playing"
	TransportPaused    TransportState = "paused"
	TransportBuffering TransportState = "buffering"
)
