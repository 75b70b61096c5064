package playback

import (
	"context"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/samber/lo"
	"golang.org/x/time/rate"
)

// Populator incrementally fills the engine queue around the track that just
// started playing. A run stops the moment its token is revoked or the
// session moves to a different track; both outcomes are terminal and silent
// upward.
type Populator struct {
	engine      Engine
	resolver    TrackResolver
	suggestions SuggestionProvider
	session     *SessionTracker
	limiter     *rate.Limiter
	logger      *log.Logger
}

func NewPopulator(engine Engine, resolver TrackResolver, suggestions SuggestionProvider, session *SessionTracker, insertsPerSecond float64, logger *log.Logger) *Populator {
	if insertsPerSecond <= 0 {
		insertsPerSecond = 8
	}
	return &Populator{
		engine:      engine,
		resolver:    resolver,
		suggestions: suggestions,
		session:     session,
		limiter:     rate.NewLimiter(rate.Limit(insertsPerSecond), 1),
		logger:      logger.WithPrefix("populate"),
	}
}

// pendingTrack is one not-yet-inserted queue candidate. Remote items carry a
// resolution step; local items load immediately.
type pendingTrack struct {
	id   string
	load func(ctx context.Context) (*QueueTrack, error)
}

func (p *Populator) pendingFromRef(ref TrackRef) pendingTrack {
	return pendingTrack{
		id: ref.ID,
		load: func(ctx context.Context) (*QueueTrack, error) {
			resolved, err := p.resolver.Resolve(ctx, ref.ID, ref.Title, ref.Artist)
			if err != nil {
				return nil, err
			}
			track := resolved.QueueTrack()
			return &track, nil
		},
	}
}

func pendingFromLocal(local LocalTrack) pendingTrack {
	track := local.QueueTrack()
	return pendingTrack{
		id: local.ID,
		load: func(context.Context) (*QueueTrack, error) {
			return &track, nil
		},
	}
}

// ExpandPlaylist fans the rest of fullPlaylist out around initial: items
// preceding it are inserted, in order, directly ahead of its live position;
// items following it are appended, in order. The two walks run concurrently.
func (p *Populator) ExpandPlaylist(ctx context.Context, initial TrackRef, fullPlaylist []TrackRef, token *Token) {
	pending := lo.Map(fullPlaylist, func(ref TrackRef, _ int) pendingTrack {
		return p.pendingFromRef(ref)
	})
	p.expand(ctx, initial.ID, pending, token)
}

// ExpandLocalPlaylist is the downloaded-content variant: same walk
// structure, no resolution step.
func (p *Populator) ExpandLocalPlaylist(ctx context.Context, initial LocalTrack, fullPlaylist []LocalTrack, token *Token) {
	pending := lo.Map(fullPlaylist, func(local LocalTrack, _ int) pendingTrack {
		return pendingFromLocal(local)
	})
	p.expand(ctx, initial.ID, pending, token)
}

func (p *Populator) expand(ctx context.Context, initialID string, playlist []pendingTrack, token *Token) {
	defer token.settle()

	_, idx, found := lo.FindIndexOf(playlist, func(t pendingTrack) bool {
		return t.id == initialID
	})
	if !found {
		p.logger.Debug("initial track not in playlist, nothing to expand", "track", initialID, "run", token.ID())
		return
	}

	before := playlist[:idx]
	after := playlist[idx+1:]

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		p.walkAfter(ctx, initialID, after, token)
	}()
	go func() {
		defer wg.Done()
		p.walkBefore(ctx, initialID, before, token)
	}()
	wg.Wait()

	if p.stale(token, initialID) {
		p.logger.Debug("playlist expansion aborted", "track", initialID, "run", token.ID())
		return
	}
	p.logger.Debug("playlist expansion completed", "track", initialID, "run", token.ID(), "items", len(before)+len(after))
}

// walkAfter appends each item to the end of the queue, in order.
func (p *Populator) walkAfter(ctx context.Context, initialID string, items []pendingTrack, token *Token) {
	for _, item := range items {
		track, ok := p.prepare(ctx, initialID, item, token)
		if !ok {
			return
		}
		if track == nil {
			continue
		}
		p.engine.Add(*track)
	}
}

// walkBefore inserts each item directly ahead of the initial track's
// current position, so the walk's items end up in original order
// immediately preceding it.
func (p *Populator) walkBefore(ctx context.Context, initialID string, items []pendingTrack, token *Token) {
	for _, item := range items {
		track, ok := p.prepare(ctx, initialID, item, token)
		if !ok {
			return
		}
		if track == nil {
			continue
		}

		_, pos, found := lo.FindIndexOf(p.engine.Queue(), func(t QueueTrack) bool {
			return t.ID == initialID
		})
		if !found {
			// Queue was reset out from under us; a newer request owns it.
			return
		}
		p.engine.AddAt(*track, pos)
	}
}

// ExpandSuggestions fetches the catalog's "up next" list for the seed track
// and appends each suggested item, one at a time.
func (p *Populator) ExpandSuggestions(ctx context.Context, seedID string, token *Token) {
	defer token.settle()

	if p.suggestions == nil {
		return
	}
	if p.stale(token, seedID) {
		p.logger.Debug("suggestion expansion aborted before fetch", "track", seedID, "run", token.ID())
		return
	}

	ids, err := p.suggestions.Suggestions(ctx, seedID)
	if err != nil {
		p.logger.Warn("suggestion fetch failed", "track", seedID, "err", err)
		return
	}

	for _, id := range ids {
		item := p.pendingFromRef(TrackRef{ID: id})
		track, ok := p.prepare(ctx, seedID, item, token)
		if !ok {
			p.logger.Debug("suggestion expansion aborted", "track", seedID, "run", token.ID())
			return
		}
		if track == nil {
			continue
		}
		p.engine.Add(*track)
	}

	p.logger.Debug("suggestion expansion completed", "track", seedID, "run", token.ID(), "items", len(ids))
}

// prepare runs the per-item protocol: staleness check, pacing, load,
// re-check, duplicate guard. It returns (nil, true) for a skippable item and
// (nil, false) when the walk must stop.
func (p *Populator) prepare(ctx context.Context, initialID string, item pendingTrack, token *Token) (*QueueTrack, bool) {
	if p.stale(token, initialID) {
		return nil, false
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return nil, false
	}

	track, err := item.load(ctx)
	if err != nil {
		p.logger.Warn("skipping unresolvable track", "track", item.id, "err", err)
		return nil, true
	}

	// Resolution may have outlived relevance.
	if p.stale(token, initialID) {
		return nil, false
	}

	if p.queueHas(track.ID) {
		return nil, true
	}

	return track, true
}

func (p *Populator) stale(token *Token, initialID string) bool {
	return token.Aborted() || !p.session.IsActive(initialID)
}

// queueHas re-reads the live queue rather than trusting an earlier
// snapshot; walks interleave with foreground requests across every await
// point.
func (p *Populator) queueHas(id string) bool {
	ids := lo.SliceToMap(p.engine.Queue(), func(t QueueTrack) (string, struct{}) {
		return t.ID, struct{}{}
	})
	_, ok := ids[id]
	return ok
}
