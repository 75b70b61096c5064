package library

import (
	"context"
	"database/sql"
	"time"

	"github.com/calev/cadenza/internal/playback"
)

const storeTimeout = 2 * time.Second

// DownloadStore reads and writes downloaded-track metadata. It implements
// playback.DownloadLibrary.
type DownloadStore struct {
	db *sql.DB
}

func NewDownloadStore() *DownloadStore {
	return &DownloadStore{db: GetDB()}
}

func NewDownloadStoreWithDB(db *sql.DB) *DownloadStore {
	return &DownloadStore{db: db}
}

func (s *DownloadStore) SaveTrack(ctx context.Context, track playback.LocalTrack) error {
	if s == nil || s.db == nil {
		return nil
	}
	if track.ID == "" || track.MediaPath == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	const query = `
		INSERT INTO downloads (track_id, title, artist, media_path, artwork_path, duration_ms, added_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())
		ON CONFLICT (track_id)
		DO UPDATE SET
			title = EXCLUDED.title,
			artist = EXCLUDED.artist,
			media_path = EXCLUDED.media_path,
			artwork_path = EXCLUDED.artwork_path,
			duration_ms = EXCLUDED.duration_ms;
	`

	_, err := s.db.ExecContext(ctx, query,
		track.ID, track.Title, track.Artist, track.MediaPath, track.ArtworkPath, track.Duration.Milliseconds())
	return err
}

func (s *DownloadStore) GetTrack(ctx context.Context, trackID string) (playback.LocalTrack, bool, error) {
	if s == nil || s.db == nil {
		return playback.LocalTrack{}, false, nil
	}
	if trackID == "" {
		return playback.LocalTrack{}, false, nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	const query = `
		SELECT track_id, title, artist, media_path, artwork_path, duration_ms
		FROM downloads
		WHERE track_id = $1
	`

	var track playback.LocalTrack
	var durationMS int64
	err := s.db.QueryRowContext(ctx, query, trackID).Scan(
		&track.ID, &track.Title, &track.Artist, &track.MediaPath, &track.ArtworkPath, &durationMS)
	if err != nil {
		if err == sql.ErrNoRows {
			return playback.LocalTrack{}, false, nil
		}
		return playback.LocalTrack{}, false, err
	}

	track.Duration = time.Duration(durationMS) * time.Millisecond
	return track, true, nil
}

// ListTracks returns the full library in the order tracks were downloaded.
func (s *DownloadStore) ListTracks(ctx context.Context) ([]playback.LocalTrack, error) {
	if s == nil || s.db == nil {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	const query = `
		SELECT track_id, title, artist, media_path, artwork_path, duration_ms
		FROM downloads
		ORDER BY added_at ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tracks []playback.LocalTrack
	for rows.Next() {
		var track playback.LocalTrack
		var durationMS int64
		if err := rows.Scan(&track.ID, &track.Title, &track.Artist, &track.MediaPath, &track.ArtworkPath, &durationMS); err != nil {
			return nil, err
		}
		track.Duration = time.Duration(durationMS) * time.Millisecond
		tracks = append(tracks, track)
	}

	return tracks, rows.Err()
}

func (s *DownloadStore) DeleteTrack(ctx context.Context, trackID string) error {
	if s == nil || s.db == nil {
		return nil
	}
	if trackID == "" {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, storeTimeout)
	defer cancel()

	const query = `
		DELETE FROM downloads
		WHERE track_id = $1
	`

	_, err := s.db.ExecContext(ctx, query, trackID)
	return err
}
