package cache

import (
	"context"
	"fmt"

	"storefront-api/internal/models"
	"storefront-api/internal/woocommerce"
)

// Source caches successful WooCommerce reads. Failures are never cached and
// a broken Redis only costs a log line; every call then falls through to the
// wrapped source.
type Source struct {
	next  woocommerce.Source
	cache *RedisCache
}

var _ woocommerce.Source = (*Source)(nil)

// NewSource wraps next. With an unavailable cache next is returned unchanged.
func NewSource(next woocommerce.Source, c *RedisCache) woocommerce.Source {
	if !c.IsAvailable() {
		return next
	}
	return &Source{next: next, cache: c}
}

func ListKey(page, perPage int) string {
	return fmt.Sprintf("products:list:p%d:n%d", page, perPage)
}

func SearchKey(text string, page, perPage int) string {
	return fmt.Sprintf("products:search:%s:p%d:n%d", text, page, perPage)
}

func CategoryKey(categoryID, page, perPage int) string {
	return fmt.Sprintf("products:category:%d:p%d:n%d", categoryID, page, perPage)
}

func ProductKey(id int) string {
	return fmt.Sprintf("product:%d", id)
}

func CategoriesKey(page, perPage int) string {
	return fmt.Sprintf("categories:p%d:n%d", page, perPage)
}

func (s *Source) ListProducts(ctx context.Context, page, perPage int) ([]models.ProductRecord, error) {
	return cached(ctx, s.cache, ListKey(page, perPage), func() ([]models.ProductRecord, error) {
		return s.next.ListProducts(ctx, page, perPage)
	})
}

func (s *Source) SearchProducts(ctx context.Context, text string, page, perPage int) ([]models.ProductRecord, error) {
	return cached(ctx, s.cache, SearchKey(text, page, perPage), func() ([]models.ProductRecord, error) {
		return s.next.SearchProducts(ctx, text, page, perPage)
	})
}

func (s *Source) ProductsByCategory(ctx context.Context, categoryID, page, perPage int) ([]models.ProductRecord, error) {
	return cached(ctx, s.cache, CategoryKey(categoryID, page, perPage), func() ([]models.ProductRecord, error) {
		return s.next.ProductsByCategory(ctx, categoryID, page, perPage)
	})
}

func (s *Source) GetProduct(ctx context.Context, id int) (*models.ProductRecord, error) {
	return cached(ctx, s.cache, ProductKey(id), func() (*models.ProductRecord, error) {
		return s.next.GetProduct(ctx, id)
	})
}

func (s *Source) ListCategories(ctx context.Context, page, perPage int) ([]models.CategoryRecord, error) {
	return cached(ctx, s.cache, CategoriesKey(page, perPage), func() ([]models.CategoryRecord, error) {
		return s.next.ListCategories(ctx, page, perPage)
	})
}

func cached[T any](ctx context.Context, c *RedisCache, key string, load func() (T, error)) (T, error) {
	var hit T
	ok, err := c.Get(ctx, key, &hit)
	switch {
	case err != nil:
		c.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
	case ok:
		c.log.Debug().Str("key", key).Msg("cache hit")
		return hit, nil
	default:
		c.log.Debug().Str("key", key).Msg("cache miss")
	}

	v, err := load()
	if err != nil {
		return v, err
	}
	if err := c.Set(ctx, key, v); err != nil {
		c.log.Warn().Err(err).Str("key", key).Msg("failed to cache response")
	}
	return v, nil
}
