package paging

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storefront-api/internal/models"
	"storefront-api/internal/woocommerce"
)

// pendingLoad is one Load call held open until the test replies.
type pendingLoad struct {
	query Query
	token Token
	size  int
	reply chan PageResult
}

func (p pendingLoad) respond(res PageResult) {
	p.reply <- res
}

// scriptedLoader blocks every Load until the test answers it. It ignores ctx
// so that results for closed lists really do arrive late.
type scriptedLoader struct {
	calls chan pendingLoad
}

func newScriptedLoader() *scriptedLoader {
	return &scriptedLoader{calls: make(chan pendingLoad, 16)}
}

func (s *scriptedLoader) Load(_ context.Context, q Query, token Token, pageSize int) PageResult {
	p := pendingLoad{query: q, token: token, size: pageSize, reply: make(chan PageResult, 1)}
	s.calls <- p
	return <-p.reply
}

func (s *scriptedLoader) next(t *testing.T) pendingLoad {
	t.Helper()
	select {
	case p := <-s.calls:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("expected a load call")
	}
	return pendingLoad{}
}

func (s *scriptedLoader) expectNone(t *testing.T) {
	t.Helper()
	select {
	case p := <-s.calls:
		t.Fatalf("unexpected load call for %s page %d", p.query, p.token)
	case <-time.After(50 * time.Millisecond):
	}
}

func recv[T any](t *testing.T, ch <-chan T) (T, bool) {
	t.Helper()
	select {
	case v, ok := <-ch:
		return v, ok
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for value")
	}
	var zero T
	return zero, false
}

func products(from, n int) []models.Product {
	out := make([]models.Product, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, models.Product{ID: from + i})
	}
	return out
}

func okPage(token Token, items []models.Product) PageResult {
	res := PageResult{Items: items, Prev: token - 1, Next: token + 1}
	if token == FirstToken {
		res.Prev = NoToken
	}
	if len(items) == 0 {
		res.Next = NoToken
	}
	return res
}

func ids(items []models.Product) []int {
	out := make([]int, len(items))
	for i, p := range items {
		out[i] = p.ID
	}
	return out
}

func startList(t *testing.T, loader Loader, q Query) *List {
	t.Helper()
	l := NewList(context.Background(), loader, q, Config{PageSize: 20, PrefetchDistance: 5})
	t.Cleanup(l.Close)
	l.Start()
	return l
}

func TestList_InitialLoad(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())

	call := loader.next(t)
	assert.Equal(t, FirstToken, call.token)
	assert.Equal(t, 20, call.size)
	assert.True(t, l.Snapshot().Refresh.IsLoading())

	call.respond(okPage(1, products(1, 20)))
	l.Wait()

	s := l.Snapshot()
	assert.True(t, s.Refresh.IsIdle())
	assert.Len(t, s.Items, 20)
	assert.Equal(t, Token(2), s.Next)
	assert.Equal(t, NoToken, s.Prev)
	assert.False(t, s.EndReached())
}

func TestList_StartIsIdempotent(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	l.Start()

	loader.next(t).respond(okPage(1, products(1, 3)))
	l.Wait()
	loader.expectNone(t)
}

// Scenario A
func TestList_AppendTriggeredWithinPrefetchDistance(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Access(10)
	loader.expectNone(t)

	l.Access(16)
	call := loader.next(t)
	assert.Equal(t, Token(2), call.token)
	assert.True(t, l.Snapshot().Append.IsLoading())

	// single flight: more scrolling does not issue a second append
	l.Access(18)
	l.Access(19)
	loader.expectNone(t)

	call.respond(okPage(2, products(21, 20)))
	l.Wait()
	s := l.Snapshot()
	assert.True(t, s.Append.IsIdle())
	assert.Len(t, s.Items, 40)
	assert.Equal(t, Token(3), s.Next)
}

// Scenario B
func TestList_EmptyFirstPageEndsList(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, nil))
	l.Wait()

	s := l.Snapshot()
	assert.True(t, s.Refresh.IsIdle())
	assert.Empty(t, s.Items)
	assert.Equal(t, NoToken, s.Next)
	assert.True(t, s.EndReached())

	l.Access(0)
	l.Access(100)
	loader.expectNone(t)
}

// Scenario C
func TestList_AppendFailureKeepsItemsAndRetriesSameToken(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Access(19)
	call := loader.next(t)
	require.Equal(t, Token(2), call.token)
	serverErr := &woocommerce.Error{Kind: woocommerce.KindServer, StatusCode: 500}
	call.respond(PageResult{Err: serverErr})
	l.Wait()

	s := l.Snapshot()
	require.True(t, s.Append.IsError())
	assert.ErrorIs(t, s.Append.Err, woocommerce.ServerFailure(500))
	assert.Equal(t, ids(products(1, 20)), ids(s.Items))
	assert.True(t, s.Refresh.IsIdle(), "append failure is local to append")

	// no auto-retry, not even on further scrolling
	l.Access(19)
	loader.expectNone(t)

	l.Retry()
	retry := loader.next(t)
	assert.Equal(t, Token(2), retry.token)
	assert.Equal(t, DefaultQuery(), retry.query)
	assert.True(t, l.Snapshot().Append.IsLoading())

	retry.respond(okPage(2, products(21, 5)))
	l.Wait()
	s = l.Snapshot()
	assert.True(t, s.Append.IsIdle())
	assert.Nil(t, s.Append.Err)
	assert.Equal(t, ids(append(products(1, 20), products(21, 5)...)), ids(s.Items))
}

func TestList_RefreshFailureThenRetry(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, SearchQuery("sage"))

	loader.next(t).respond(PageResult{Err: &woocommerce.Error{Kind: woocommerce.KindNetwork}})
	l.Wait()

	s := l.Snapshot()
	require.True(t, s.Refresh.IsError())
	assert.Equal(t, woocommerce.KindNetwork, woocommerce.KindOf(s.Refresh.Err))
	assert.Empty(t, s.Items)

	l.Access(0)
	loader.expectNone(t)

	l.Retry()
	call := loader.next(t)
	assert.Equal(t, FirstToken, call.token)
	assert.Equal(t, SearchQuery("sage"), call.query)
	call.respond(okPage(1, products(1, 3)))

	// position 0 is within distance of the three-item end
	tail := loader.next(t)
	assert.Equal(t, Token(2), tail.token)
	tail.respond(okPage(2, nil))
	l.Wait()

	s = l.Snapshot()
	assert.True(t, s.Refresh.IsIdle())
	assert.Len(t, s.Items, 3)
}

func TestList_RetryWithoutErrorIsNoop(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Retry()
	loader.expectNone(t)
}

func TestList_ConcatenatesPagesInFetchOrder(t *testing.T) {
	loader := newScriptedLoader()
	l := NewList(context.Background(), loader, DefaultQuery(), Config{PageSize: 4, PrefetchDistance: 1})
	t.Cleanup(l.Close)
	l.Start()
	loader.next(t).respond(okPage(1, products(100, 4)))
	l.Wait()

	var want []int
	want = append(want, ids(products(100, 4))...)
	for token := Token(2); token <= 4; token++ {
		l.Access(len(l.Snapshot().Items) - 1)
		call := loader.next(t)
		require.Equal(t, token, call.token)
		// ids deliberately not increasing, and one duplicate across pages
		page := []models.Product{{ID: int(token) * 10}, {ID: 1}, {ID: int(token)}}
		want = append(want, ids(page)...)
		call.respond(okPage(token, page))
		l.Wait()
	}

	assert.Equal(t, want, ids(l.Snapshot().Items))
}

func TestList_EmptyAppendPageEndsList(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Access(19)
	loader.next(t).respond(okPage(2, nil))
	l.Wait()

	s := l.Snapshot()
	assert.Equal(t, NoToken, s.Next)
	assert.True(t, s.EndReached())
	assert.Len(t, s.Items, 20)

	l.Access(19)
	loader.expectNone(t)
}

func TestList_PrefetchChainsWhilePositionStaysNearEnd(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Access(19)
	// a short page leaves position 19 within distance of the new end
	loader.next(t).respond(okPage(2, products(21, 2)))
	call := loader.next(t)
	assert.Equal(t, Token(3), call.token)
	call.respond(okPage(3, nil))
	l.Wait()

	assert.Len(t, l.Snapshot().Items, 22)
}

func TestList_CloseDropsLateResults(t *testing.T) {
	loader := newScriptedLoader()
	l := NewList(context.Background(), loader, DefaultQuery(), Config{})
	l.Start()
	call := loader.next(t)

	l.Close()
	call.respond(okPage(1, products(1, 20)))
	l.Wait()

	s := l.Snapshot()
	assert.Empty(t, s.Items)
	assert.True(t, s.Refresh.IsLoading(), "closed list is frozen")

	l.Access(0)
	l.Retry()
	loader.expectNone(t)
}

func TestList_PrependFromLaterStart(t *testing.T) {
	loader := newScriptedLoader()
	l := NewList(context.Background(), loader, DefaultQuery(), Config{PageSize: 20, InitialToken: 3})
	t.Cleanup(l.Close)
	l.Start()

	call := loader.next(t)
	require.Equal(t, Token(3), call.token)
	call.respond(okPage(3, products(41, 20)))
	l.Wait()
	assert.Equal(t, Token(2), l.Snapshot().Prev)

	l.Access(1)
	prev := loader.next(t)
	assert.Equal(t, Token(2), prev.token)
	assert.True(t, l.Snapshot().Prepend.IsLoading())
	prev.respond(okPage(2, products(21, 20)))
	// position 1 shifted to 21, which is no longer near the top; no further loads
	l.Wait()

	s := l.Snapshot()
	assert.True(t, s.Prepend.IsIdle())
	assert.Equal(t, ids(append(products(21, 20), products(41, 20)...)), ids(s.Items))
	assert.Equal(t, Token(1), s.Prev)
}

func TestList_RefreshKey(t *testing.T) {
	loader := newScriptedLoader()
	l := startList(t, loader, DefaultQuery())

	assert.Equal(t, NoToken, l.RefreshKey(0), "no pages loaded")

	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()
	l.Access(19)
	loader.next(t).respond(okPage(2, products(21, 20)))
	l.Wait()
	l.Access(39)
	loader.next(t).respond(okPage(3, products(41, 10)))
	l.Wait()

	tests := []struct {
		anchor int
		want   Token
	}{
		{-1, 1},
		{0, 1},  // page 1: prev None, next 2 -> 1
		{19, 1}, // last item of page 1
		{20, 2}, // page 2: prev 1 -> 2
		{45, 3},
		{500, 3}, // past the end clamps to the last page
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, l.RefreshKey(tc.anchor), "anchor %d", tc.anchor)
	}
}

func TestList_SubscribeSeesTransitions(t *testing.T) {
	loader := newScriptedLoader()
	l := NewList(context.Background(), loader, DefaultQuery(), Config{})
	t.Cleanup(l.Close)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := l.Subscribe(ctx)
	first, _ := recv(t, ch)
	assert.True(t, first.Refresh.IsIdle())
	assert.Equal(t, 0, first.Pages)

	l.Start()
	loading, _ := recv(t, ch)
	assert.True(t, loading.Refresh.IsLoading())

	loader.next(t).respond(okPage(1, products(1, 2)))
	done, _ := recv(t, ch)
	assert.True(t, done.Refresh.IsIdle())
	assert.Len(t, done.Items, 2)
}

func TestConfig_WithDefaults(t *testing.T) {
	tests := []struct {
		name string
		in   Config
		want Config
	}{
		{"zero", Config{}, Config{PageSize: DefaultPageSize, PrefetchDistance: DefaultPrefetchDistance, InitialToken: FirstToken}},
		{"negative", Config{PageSize: -1, PrefetchDistance: -3, InitialToken: -2}, Config{PageSize: DefaultPageSize, PrefetchDistance: DefaultPrefetchDistance, InitialToken: FirstToken}},
		{"explicit", Config{PageSize: 10, PrefetchDistance: 1, InitialToken: 4}, Config{PageSize: 10, PrefetchDistance: 1, InitialToken: 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.in.withDefaults())
		})
	}
}

func TestList_UnsetPrefetchDistanceUsesDefault(t *testing.T) {
	loader := newScriptedLoader()
	l := NewList(context.Background(), loader, DefaultQuery(), Config{PageSize: 20})
	t.Cleanup(l.Close)
	l.Start()
	loader.next(t).respond(okPage(1, products(1, 20)))
	l.Wait()

	l.Access(14)
	loader.expectNone(t)

	l.Access(20 - DefaultPrefetchDistance)
	call := loader.next(t)
	assert.Equal(t, Token(2), call.token)
	call.respond(okPage(2, nil))
	l.Wait()
}
