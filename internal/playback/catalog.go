package playback

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// CatalogClient resolves tracks and fetches "up next" suggestions from the
// streaming catalog API. It implements TrackResolver and SuggestionProvider.
type CatalogClient struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client

	// SuggestionLimit caps how many "up next" ids one fetch may return;
	// zero means the catalog's default.
	SuggestionLimit int

	cache  *ResolveCache
	logger *log.Logger
}

func NewCatalogClient(baseURL, apiKey string, logger *log.Logger) *CatalogClient {
	return &CatalogClient{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		APIKey:     apiKey,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		logger:     logger.WithPrefix("catalog"),
	}
}

// WithCache attaches a resolve-result cache consulted before any network
// round trip.
func (c *CatalogClient) WithCache(cache *ResolveCache) *CatalogClient {
	c.cache = cache
	return c
}

func (c *CatalogClient) Resolve(ctx context.Context, id, titleHint, artistHint string) (*ResolvedTrack, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, fmt.Errorf("%w: empty track id", ErrResolveFailed)
	}

	if c.cache != nil {
		if track, ok := c.cache.Get(ctx, id); ok {
			return track, nil
		}
	}

	params := url.Values{}
	if titleHint != "" {
		params.Set("title", titleHint)
	}
	if artistHint != "" {
		params.Set("artist", artistHint)
	}

	endpoint := c.BaseURL + "/v1/tracks/" + url.PathEscape(id)
	if encoded := params.Encode(); encoded != "" {
		endpoint += "?" + encoded
	}

	var payload catalogTrackResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	if !payload.Available || payload.StreamURL == "" {
		return nil, fmt.Errorf("%w: no playable format for %s", ErrResolveFailed, id)
	}

	track := payload.resolvedTrack(titleHint, artistHint)

	if c.cache != nil {
		c.cache.Put(ctx, track)
	}

	return track, nil
}

func (c *CatalogClient) Suggestions(ctx context.Context, trackID string) ([]string, error) {
	trackID = strings.TrimSpace(trackID)
	if trackID == "" {
		return nil, fmt.Errorf("%w: empty track id", ErrResolveFailed)
	}

	endpoint := c.BaseURL + "/v1/tracks/" + url.PathEscape(trackID) + "/next"
	if c.SuggestionLimit > 0 {
		endpoint += "?limit=" + strconv.Itoa(c.SuggestionLimit)
	}

	var payload catalogSuggestionsResponse
	if err := c.getJSON(ctx, endpoint, &payload); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(payload.Tracks))
	for _, t := range payload.Tracks {
		if t.ID != "" {
			ids = append(ids, t.ID)
		}
	}

	return ids, nil
}

func (c *CatalogClient) getJSON(ctx context.Context, endpoint string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrResolveFailed, err)
	}
	if c.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.APIKey)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetworkUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound, resp.StatusCode == http.StatusGone:
		return fmt.Errorf("%w: catalog status %d", ErrResolveFailed, resp.StatusCode)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return fmt.Errorf("%w: catalog status %d", ErrResolveFailed, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: invalid json: %v", ErrResolveFailed, err)
	}

	return nil
}

type catalogTrackResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Artist     string `json:"artist"`
	StreamURL  string `json:"stream_url"`
	ArtworkURL string `json:"artwork_url"`
	DurationMS int64  `json:"duration_ms"`
	Available  bool   `json:"available"`
}

func (r catalogTrackResponse) resolvedTrack(titleHint, artistHint string) *ResolvedTrack {
	title := strings.TrimSpace(r.Title)
	if title == "" {
		title = strings.TrimSpace(titleHint)
	}
	if title == "" {
		title = "Unknown Title"
	}

	artist := strings.TrimSpace(r.Artist)
	if artist == "" {
		artist = strings.TrimSpace(artistHint)
	}

	duration := time.Duration(r.DurationMS) * time.Millisecond
	if duration < 0 {
		duration = 0
	}

	return &ResolvedTrack{
		ID:         r.ID,
		StreamURL:  r.StreamURL,
		Title:      title,
		Artist:     artist,
		ArtworkURL: r.ArtworkURL,
		Duration:   duration,
	}
}

type catalogSuggestionsResponse struct {
	Tracks []struct {
		ID string `json:"id"`
	} `json:"tracks"`
}
