package paging

import (
	"strings"
	"sync"
)

type QueryKind int

const (
	KindDefault QueryKind = iota
	KindSearch
	KindCategory
)

func (k QueryKind) String() string {
	switch k {
	case KindSearch:
		return "search"
	case KindCategory:
		return "category"
	default:
		return "default"
	}
}

// Query defines which product list is loaded. It is a comparable value:
// two lists are the same list iff their queries are ==.
type Query struct {
	Kind       QueryKind
	Text       string
	CategoryID int
}

func DefaultQuery() Query {
	return Query{Kind: KindDefault}
}

// SearchQuery trims text; blank text yields DefaultQuery.
func SearchQuery(text string) Query {
	text = strings.TrimSpace(text)
	if text == "" {
		return DefaultQuery()
	}
	return Query{Kind: KindSearch, Text: text}
}

// CategoryQuery yields DefaultQuery for non-positive ids.
func CategoryQuery(id int) Query {
	if id <= 0 {
		return DefaultQuery()
	}
	return Query{Kind: KindCategory, CategoryID: id}
}

func (q Query) String() string {
	switch q.Kind {
	case KindSearch:
		return "search:" + q.Text
	case KindCategory:
		return "category:" + itoa(q.CategoryID)
	default:
		return "default"
	}
}

// QueryController holds the current query of one browse session. The base
// query (default or a category) is fixed at construction; only the search
// text can change afterwards.
type QueryController struct {
	mu      sync.Mutex
	base    Query
	current Query
}

func NewQueryController(base Query) *QueryController {
	if base.Kind == KindSearch {
		base = DefaultQuery()
	}
	return &QueryController{base: base, current: base}
}

func (c *QueryController) Current() Query {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

// SetSearch sets the free-text term and reports whether the query changed.
// Blank text returns the controller to its base query.
func (c *QueryController) SetSearch(text string) (Query, bool) {
	next := c.base
	if q := SearchQuery(text); q.Kind == KindSearch {
		next = q
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if next == c.current {
		return next, false
	}
	c.current = next
	return next, true
}
