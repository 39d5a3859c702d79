package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront-api/internal/mapper"
	"storefront-api/internal/models"
	"storefront-api/internal/paging"
	"storefront-api/internal/woocommerce"
	"storefront-api/pkg/logger"
)

const (
	MaxPerPage = 100

	categoriesPerPage = 100
	maxCategoryPages  = 10
)

// ErrInvalidInput marks request parameters the gateway refuses to forward.
var ErrInvalidInput = errors.New("invalid input")

type PageParams struct {
	Search     string
	CategoryID int
	Page       int
	PerPage    int
}

// CatalogService answers one-shot catalog reads: a single page, a product,
// the category tree.
type CatalogService struct {
	source   woocommerce.Source
	loader   paging.Loader
	mapper   mapper.ProductMapper
	pageSize int
	log      *logger.Logger
}

func NewCatalogService(source woocommerce.Source, pageSize int) *CatalogService {
	if pageSize <= 0 {
		pageSize = paging.DefaultPageSize
	}
	return &CatalogService{
		source:   source,
		loader:   paging.NewProductLoader(source),
		mapper:   mapper.NewProductMapper(),
		pageSize: pageSize,
		log:      logger.Named("catalog"),
	}
}

// Loader exposes the page loader so browse sessions share it.
func (s *CatalogService) Loader() paging.Loader {
	return s.loader
}

// Query builds the list query for params. Search text wins over a category.
func Query(params PageParams) paging.Query {
	if q := paging.SearchQuery(params.Search); q.Kind == paging.KindSearch {
		return q
	}
	return paging.CategoryQuery(params.CategoryID)
}

func (s *CatalogService) LoadPage(ctx context.Context, params PageParams) (*models.PageResponse, error) {
	startTime := time.Now()

	if err := s.validatePageParams(&params); err != nil {
		return nil, err
	}

	q := Query(params)
	res := s.loader.Load(ctx, q, paging.Token(params.Page), params.PerPage)
	if res.Err != nil {
		s.log.Warn().Err(res.Err).Str("query", q.String()).Int("page", params.Page).Msg("page load failed")
		return nil, res.Err
	}

	duration := time.Since(startTime)
	s.log.Info().Str("query", q.String()).Int("page", params.Page).Int("products", len(res.Items)).Dur("took", duration).Msg("page loaded")

	return &models.PageResponse{
		Query:    QueryInfo(q),
		Products: res.Items,
		Page:     params.Page,
		PerPage:  params.PerPage,
		PrevPage: tokenPtr(res.Prev),
		NextPage: tokenPtr(res.Next),
		Duration: duration.String(),
	}, nil
}

func (s *CatalogService) GetProduct(ctx context.Context, id int) (*models.Product, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: product id must be positive", ErrInvalidInput)
	}
	record, err := s.source.GetProduct(ctx, id)
	if err != nil {
		return nil, err
	}
	p := s.mapper.ToDomain(*record)
	return &p, nil
}

// ListCategories walks the category endpoint until a short page.
func (s *CatalogService) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories := make([]models.Category, 0)
	for page := 1; page <= maxCategoryPages; page++ {
		records, err := s.source.ListCategories(ctx, page, categoriesPerPage)
		if err != nil {
			return nil, err
		}
		for _, r := range records {
			categories = append(categories, mapper.CategoryToDomain(r))
		}
		if len(records) < categoriesPerPage {
			break
		}
	}
	return categories, nil
}

func (s *CatalogService) validatePageParams(params *PageParams) error {
	params.Search = strings.TrimSpace(params.Search)

	if params.CategoryID < 0 {
		return fmt.Errorf("%w: category id cannot be negative", ErrInvalidInput)
	}
	if params.Page < 0 {
		return fmt.Errorf("%w: page cannot be negative", ErrInvalidInput)
	}
	if params.PerPage < 0 || params.PerPage > MaxPerPage {
		return fmt.Errorf("%w: per_page must be between 1 and %d", ErrInvalidInput, MaxPerPage)
	}

	if params.Page == 0 {
		params.Page = int(paging.FirstToken)
	}
	if params.PerPage == 0 {
		params.PerPage = s.pageSize
	}
	return nil
}

func QueryInfo(q paging.Query) models.QueryInfo {
	return models.QueryInfo{Kind: q.Kind.String(), Search: q.Text, CategoryID: q.CategoryID}
}

func tokenPtr(t paging.Token) *int {
	if t == paging.NoToken {
		return nil
	}
	v := int(t)
	return &v
}
