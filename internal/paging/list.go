package paging

import (
	"context"
	"sync"

	"storefront-api/internal/models"
	"storefront-api/pkg/logger"
	"storefront-api/pkg/observable"
)

const DefaultPrefetchDistance = 5

// Config tunes a List. Zero or negative sizes select the defaults, so a list
// always prefetches at least one item ahead of the reader.
type Config struct {
	PageSize int
	// PrefetchDistance is how close to either end a read must land to load
	// the neighbouring page; DefaultPrefetchDistance if unset.
	PrefetchDistance int
	// InitialToken is the page the refresh load starts from; FirstToken if unset.
	InitialToken Token
}

func (c Config) withDefaults() Config {
	if c.PageSize <= 0 {
		c.PageSize = DefaultPageSize
	}
	if c.PrefetchDistance <= 0 {
		c.PrefetchDistance = DefaultPrefetchDistance
	}
	if c.InitialToken < FirstToken {
		c.InitialToken = FirstToken
	}
	return c
}

type page struct {
	token Token
	prev  Token
	next  Token
	items []models.Product
}

// List is the incremental state of one query: loaded pages in order plus the
// refresh, prepend and append load states. At most one fetch per direction is
// in flight. After Close every late result is dropped.
type List struct {
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	loader Loader
	query  Query
	cfg    Config
	log    *logger.Logger

	pages      []page
	states     [numDirections]LoadState
	failed     [numDirections]Token // token of the last failed fetch per direction
	lastAccess int
	started    bool
	closed     bool

	out     *observable.Observable[Snapshot]
	ownsOut bool
	wg      sync.WaitGroup
}

// NewList builds a list for q. Loading begins with Start.
func NewList(ctx context.Context, loader Loader, q Query, cfg Config) *List {
	return newList(ctx, loader, q, cfg, nil)
}

func newList(ctx context.Context, loader Loader, q Query, cfg Config, out *observable.Observable[Snapshot]) *List {
	ctx, cancel := context.WithCancel(ctx)
	l := &List{
		ctx:        ctx,
		cancel:     cancel,
		loader:     loader,
		query:      q,
		cfg:        cfg.withDefaults(),
		log:        logger.Named("paging"),
		lastAccess: -1,
	}
	if out == nil {
		out = observable.New(Snapshot{Query: q})
		l.ownsOut = true
	}
	l.out = out
	l.out.Set(l.snapshotLocked())
	return l
}

func (l *List) Query() Query { return l.query }

// Start issues the initial refresh load. Calling it again is a no-op.
func (l *List) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.started || l.closed {
		return
	}
	l.started = true
	l.launchLocked(Refresh, l.cfg.InitialToken)
}

// Access records the consumer's read position (an index into Items) and
// loads the neighbouring page when the position is within the prefetch
// distance of either loaded edge.
func (l *List) Access(position int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	l.lastAccess = position
	l.prefetchLocked()
}

// Retry re-issues the fetch of every direction currently in error, with the
// same token that failed.
func (l *List) Retry() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return
	}
	for d := Direction(0); d < numDirections; d++ {
		if l.states[d].IsError() {
			l.launchLocked(d, l.failed[d])
		}
	}
}

// RefreshKey returns the token a full reload should restart from to keep the
// page closest to anchor in view: that page's prev+1, else its next-1.
// NoToken means no page is loaded.
func (l *List) RefreshKey(anchor int) Token {
	l.mu.Lock()
	defer l.mu.Unlock()

	p, ok := l.closestPageLocked(anchor)
	if !ok {
		return NoToken
	}
	if p.prev != NoToken {
		return p.prev + 1
	}
	if p.next != NoToken {
		return p.next - 1
	}
	return NoToken
}

func (l *List) Snapshot() Snapshot {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.snapshotLocked()
}

// Subscribe streams snapshots until ctx is done or the list's observable closes.
func (l *List) Subscribe(ctx context.Context) <-chan Snapshot {
	return l.out.Subscribe(ctx)
}

// Close tears the list down. In-flight fetches are cancelled and any result
// that still arrives is ignored.
func (l *List) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()
	l.cancel()
	if l.ownsOut {
		l.out.Close()
	}
}

// Wait blocks until no fetch goroutine is running.
func (l *List) Wait() {
	l.wg.Wait()
}

func (l *List) prefetchLocked() {
	if l.lastAccess < 0 || len(l.pages) == 0 {
		return
	}
	total := l.itemCountLocked()

	if l.states[Append].IsIdle() && l.lastAccess >= total-l.cfg.PrefetchDistance {
		if next := l.pages[len(l.pages)-1].next; next != NoToken {
			l.launchLocked(Append, next)
		}
	}
	if l.states[Prepend].IsIdle() && l.lastAccess < l.cfg.PrefetchDistance {
		if prev := l.pages[0].prev; prev != NoToken {
			l.launchLocked(Prepend, prev)
		}
	}
}

func (l *List) launchLocked(d Direction, token Token) {
	l.states[d] = LoadState{Status: Loading}
	l.out.Set(l.snapshotLocked())

	l.log.Debug().Str("query", l.query.String()).Stringer("direction", d).Int("page", int(token)).Msg("load started")

	ctx, loader, q, size := l.ctx, l.loader, l.query, l.cfg.PageSize
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		res := loader.Load(ctx, q, token, size)
		l.apply(d, token, res)
	}()
}

func (l *List) apply(d Direction, token Token, res PageResult) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		l.log.Debug().Str("query", l.query.String()).Stringer("direction", d).Int("page", int(token)).Msg("dropping result for closed list")
		return
	}

	if res.Err != nil {
		l.states[d] = LoadState{Status: Failed, Err: res.Err}
		l.failed[d] = token
		l.out.Set(l.snapshotLocked())
		l.log.Warn().Err(res.Err).Str("query", l.query.String()).Stringer("direction", d).Int("page", int(token)).Msg("load failed")
		return
	}

	p := page{token: token, prev: res.Prev, next: res.Next, items: res.Items}
	switch d {
	case Refresh:
		l.pages = []page{p}
	case Append:
		l.pages = append(l.pages, p)
	case Prepend:
		l.pages = append([]page{p}, l.pages...)
		if l.lastAccess >= 0 {
			l.lastAccess += len(p.items)
		}
	}
	l.states[d] = LoadState{Status: Idle}
	l.failed[d] = NoToken
	l.out.Set(l.snapshotLocked())

	l.prefetchLocked()
}

func (l *List) closestPageLocked(anchor int) (page, bool) {
	if len(l.pages) == 0 {
		return page{}, false
	}
	if anchor < 0 {
		return l.pages[0], true
	}
	offset := 0
	var last page
	found := false
	for _, p := range l.pages {
		if len(p.items) == 0 {
			continue
		}
		if anchor < offset+len(p.items) {
			return p, true
		}
		offset += len(p.items)
		last, found = p, true
	}
	if found {
		return last, true
	}
	return l.pages[0], true
}

func (l *List) itemCountLocked() int {
	n := 0
	for _, p := range l.pages {
		n += len(p.items)
	}
	return n
}

func (l *List) snapshotLocked() Snapshot {
	items := make([]models.Product, 0, l.itemCountLocked())
	for _, p := range l.pages {
		items = append(items, p.items...)
	}
	s := Snapshot{
		Query:   l.query,
		Items:   items,
		Refresh: l.states[Refresh],
		Prepend: l.states[Prepend],
		Append:  l.states[Append],
		Pages:   len(l.pages),
	}
	if len(l.pages) > 0 {
		s.Prev = l.pages[0].prev
		s.Next = l.pages[len(l.pages)-1].next
	}
	return s
}
