package paging

import (
	"context"
	"errors"
	"fmt"

	"storefront-api/internal/mapper"
	"storefront-api/internal/models"
	"storefront-api/internal/woocommerce"
	"storefront-api/pkg/logger"
)

// Token is a 1-based page number. NoToken marks the absence of a page.
type Token int

const (
	NoToken    Token = 0
	FirstToken Token = 1

	DefaultPageSize = 20
)

// PageResult is the outcome of one page fetch. On failure Err is set and the
// other fields are zero.
type PageResult struct {
	Items []models.Product
	Prev  Token
	Next  Token
	Err   error
}

// Loader fetches one page of a query.
type Loader interface {
	Load(ctx context.Context, q Query, token Token, pageSize int) PageResult
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, q Query, token Token, pageSize int) PageResult

func (f LoaderFunc) Load(ctx context.Context, q Query, token Token, pageSize int) PageResult {
	return f(ctx, q, token, pageSize)
}

// ProductSource is the subset of the WooCommerce client used for listing.
type ProductSource interface {
	ListProducts(ctx context.Context, page, perPage int) ([]models.ProductRecord, error)
	SearchProducts(ctx context.Context, text string, page, perPage int) ([]models.ProductRecord, error)
	ProductsByCategory(ctx context.Context, categoryID, page, perPage int) ([]models.ProductRecord, error)
}

// ProductLoader turns page-numbered REST calls into PageResults. It holds no
// per-call state and is safe for concurrent use.
type ProductLoader struct {
	source ProductSource
	mapper mapper.ProductMapper
	log    *logger.Logger
}

func NewProductLoader(source ProductSource) *ProductLoader {
	return &ProductLoader{
		source: source,
		mapper: mapper.NewProductMapper(),
		log:    logger.Named("loader"),
	}
}

func (l *ProductLoader) Load(ctx context.Context, q Query, token Token, pageSize int) (result PageResult) {
	if token == NoToken {
		token = FirstToken
	}
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Error().Interface("panic", r).Str("query", q.String()).Int("page", int(token)).Msg("page load panic recovered")
			result = PageResult{Err: &woocommerce.Error{Kind: woocommerce.KindUnknown, Op: "load page", Err: fmt.Errorf("panic: %v", r)}}
		}
	}()

	records, err := l.fetch(ctx, q, int(token), pageSize)
	if err != nil {
		l.log.Debug().Err(err).Str("query", q.String()).Int("page", int(token)).Msg("page load failed")
		return PageResult{Err: asTyped(err)}
	}

	items := l.mapper.ToDomainList(records)

	result = PageResult{Items: items, Prev: token - 1, Next: token + 1}
	if token == FirstToken {
		result.Prev = NoToken
	}
	if len(items) == 0 {
		result.Next = NoToken
	}
	return result
}

// fetch picks exactly one endpoint: search wins over category, category over
// the plain listing.
func (l *ProductLoader) fetch(ctx context.Context, q Query, page, perPage int) ([]models.ProductRecord, error) {
	switch {
	case q.Text != "":
		return l.source.SearchProducts(ctx, q.Text, page, perPage)
	case q.CategoryID > 0:
		return l.source.ProductsByCategory(ctx, q.CategoryID, page, perPage)
	default:
		return l.source.ListProducts(ctx, page, perPage)
	}
}

// asTyped wraps errors that did not come from the client as KindUnknown.
func asTyped(err error) error {
	var typed *woocommerce.Error
	if errors.As(err, &typed) {
		return err
	}
	return &woocommerce.Error{Kind: woocommerce.KindUnknown, Op: "load page", Err: err}
}
