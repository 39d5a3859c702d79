package paging

import (
	"context"
	"sync"

	"storefront-api/pkg/observable"
)

// Pager owns the list of one browse session. A query change or a refresh
// replaces the list wholesale; the superseded list is closed first so none of
// its late results reach the new state.
type Pager struct {
	mu         sync.Mutex
	ctx        context.Context
	loader     Loader
	controller *QueryController
	cfg        Config
	list       *List
	out        *observable.Observable[Snapshot]
	closed     bool
}

// NewPager starts loading the controller's current query immediately.
func NewPager(ctx context.Context, loader Loader, controller *QueryController, cfg Config) *Pager {
	q := controller.Current()
	p := &Pager{
		ctx:        ctx,
		loader:     loader,
		controller: controller,
		cfg:        cfg,
		out:        observable.New(Snapshot{Query: q}),
	}
	p.list = newList(ctx, loader, q, p.listConfig(FirstToken), p.out)
	p.list.Start()
	return p
}

func (p *Pager) Query() Query {
	return p.controller.Current()
}

// SetSearchQuery updates the search text. It reports whether the query
// changed and the list was rebuilt from the first page.
func (p *Pager) SetSearchQuery(text string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false
	}
	q, changed := p.controller.SetSearch(text)
	if !changed {
		return false
	}
	p.replaceLocked(q, FirstToken)
	return true
}

// Refresh reloads the current query starting from the page that holds anchor.
func (p *Pager) Refresh(anchor int) Token {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return NoToken
	}
	key := p.list.RefreshKey(anchor)
	if key == NoToken {
		key = FirstToken
	}
	p.replaceLocked(p.list.Query(), key)
	return key
}

func (p *Pager) Access(position int) {
	p.current().Access(position)
}

func (p *Pager) Retry() {
	p.current().Retry()
}

func (p *Pager) Snapshot() Snapshot {
	return p.current().Snapshot()
}

// Subscribe streams snapshots across list rebuilds.
func (p *Pager) Subscribe(ctx context.Context) <-chan Snapshot {
	return p.out.Subscribe(ctx)
}

// Wait blocks until the current list has no fetch in flight.
func (p *Pager) Wait() {
	p.current().Wait()
}

func (p *Pager) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.list.Close()
	p.out.Close()
}

func (p *Pager) current() *List {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.list
}

func (p *Pager) replaceLocked(q Query, from Token) {
	p.list.Close()
	p.list = newList(p.ctx, p.loader, q, p.listConfig(from), p.out)
	p.list.Start()
}

func (p *Pager) listConfig(from Token) Config {
	cfg := p.cfg
	cfg.InitialToken = from
	return cfg
}
