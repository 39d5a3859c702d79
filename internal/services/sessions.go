package services

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"storefront-api/internal/models"
	"storefront-api/internal/paging"
	"storefront-api/pkg/idle"
	"storefront-api/pkg/logger"
)

// BrowseSession is one client's scrolling product list.
type BrowseSession struct {
	ID        string
	CreatedAt time.Time
	pager     *paging.Pager

	seen    idle.Stamp
	streams atomic.Int32
	now     func() time.Time
}

func (b *BrowseSession) Pager() *paging.Pager {
	return b.pager
}

// State reports the list after recording position as the client's read
// position. A negative position only reads.
func (b *BrowseSession) State(position int) models.SessionResponse {
	b.seen.Touch(b.now())
	if position >= 0 {
		b.pager.Access(position)
	}
	return SessionResponse(b.ID, b.pager.Snapshot())
}

// Subscribe streams the session state until ctx is done. A session with an
// open stream never expires, so ctx must end when the reader goes away.
func (b *BrowseSession) Subscribe(ctx context.Context) <-chan paging.Snapshot {
	b.streams.Add(1)
	go func() {
		<-ctx.Done()
		b.seen.Touch(b.now())
		b.streams.Add(-1)
	}()
	return b.pager.Subscribe(ctx)
}

func (b *BrowseSession) idleFor(now time.Time, ttl time.Duration) bool {
	return b.streams.Load() == 0 && b.seen.Expired(now, ttl)
}

// BrowseSessions owns every live browse session. Pagers run on the
// registry's context, so Close stops all outstanding loads. Sessions a client
// stops using are closed by ExpireIdle.
type BrowseSessions struct {
	ctx    context.Context
	cancel context.CancelFunc
	loader paging.Loader
	cfg    paging.Config
	log    *logger.Logger
	now    func() time.Time

	mu       sync.RWMutex
	sessions map[string]*BrowseSession
}

func NewBrowseSessions(loader paging.Loader, cfg paging.Config) *BrowseSessions {
	ctx, cancel := context.WithCancel(context.Background())
	return &BrowseSessions{
		ctx:      ctx,
		cancel:   cancel,
		loader:   loader,
		cfg:      cfg,
		log:      logger.Named("sessions"),
		now:      time.Now,
		sessions: make(map[string]*BrowseSession),
	}
}

// Create starts a session on the category (0 for all products) and applies
// search when it is not blank. The first page starts loading immediately.
func (r *BrowseSessions) Create(categoryID int, search string) *BrowseSession {
	controller := paging.NewQueryController(paging.CategoryQuery(categoryID))
	controller.SetSearch(search)
	pager := paging.NewPager(r.ctx, r.loader, controller, r.cfg)

	s := &BrowseSession{ID: uuid.NewString(), CreatedAt: r.now(), pager: pager, now: r.now}
	s.seen.Touch(s.CreatedAt)
	r.mu.Lock()
	r.sessions[s.ID] = s
	r.mu.Unlock()

	r.log.Info().Str("session", s.ID).Str("query", pager.Query().String()).Msg("browse session created")
	return s
}

// Get returns the session and marks it used.
func (r *BrowseSessions) Get(id string) (*BrowseSession, bool) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if ok {
		s.seen.Touch(r.now())
	}
	return s, ok
}

func (r *BrowseSessions) Delete(id string) bool {
	r.mu.Lock()
	s, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()
	if ok {
		s.pager.Close()
		r.log.Info().Str("session", id).Msg("browse session closed")
	}
	return ok
}

func (r *BrowseSessions) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ExpireIdle closes every session unused for longer than ttl and reports
// how many were closed. Sessions with an open stream are kept.
func (r *BrowseSessions) ExpireIdle(ttl time.Duration) int {
	now := r.now()
	var expired []*BrowseSession

	r.mu.Lock()
	for id, s := range r.sessions {
		if s.idleFor(now, ttl) {
			expired = append(expired, s)
			delete(r.sessions, id)
		}
	}
	r.mu.Unlock()

	for _, s := range expired {
		s.pager.Close()
		r.log.Info().Str("session", s.ID).Dur("idle", s.seen.Since(now)).Msg("browse session expired")
	}
	return len(expired)
}

// StartReaper runs ExpireIdle in the background until ctx is done or the
// registry is closed. A non-positive ttl disables expiry.
func (r *BrowseSessions) StartReaper(ctx context.Context, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	context.AfterFunc(r.ctx, cancel)
	go func() {
		defer cancel()
		idle.Sweep(ctx, idle.Interval(ttl), func() { r.ExpireIdle(ttl) })
	}()
}

// Close ends every session and cancels in-flight loads.
func (r *BrowseSessions) Close() {
	r.mu.Lock()
	all := r.sessions
	r.sessions = make(map[string]*BrowseSession)
	r.mu.Unlock()

	for _, s := range all {
		s.pager.Close()
	}
	r.cancel()
}

// SessionResponse renders a list snapshot for the HTTP API.
func SessionResponse(id string, s paging.Snapshot) models.SessionResponse {
	products := s.Items
	if products == nil {
		products = []models.Product{}
	}
	return models.SessionResponse{
		ID:        id,
		Query:     QueryInfo(s.Query),
		Products:  products,
		Count:     len(products),
		Refresh:   loadStateInfo(s.State(paging.Refresh)),
		Prepend:   loadStateInfo(s.State(paging.Prepend)),
		Append:    loadStateInfo(s.State(paging.Append)),
		PrevPage:  tokenPtr(s.Prev),
		NextPage:  tokenPtr(s.Next),
		EndOfList: s.EndReached(),
	}
}

func loadStateInfo(st paging.LoadState) models.LoadStateInfo {
	info := models.LoadStateInfo{Status: st.Status.String()}
	if st.Err != nil {
		info.Error = st.Err.Error()
	}
	return info
}
