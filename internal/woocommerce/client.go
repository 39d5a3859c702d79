// Package woocommerce is a client for the read-only subset of the
// WooCommerce REST API (wc/v3) used by the storefront.
package woocommerce

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"storefront-api/internal/models"
	"storefront-api/pkg/logger"
)

// Source is the set of catalog reads the rest of the gateway depends on.
type Source interface {
	ListProducts(ctx context.Context, page, perPage int) ([]models.ProductRecord, error)
	SearchProducts(ctx context.Context, text string, page, perPage int) ([]models.ProductRecord, error)
	ProductsByCategory(ctx context.Context, categoryID, page, perPage int) ([]models.ProductRecord, error)
	GetProduct(ctx context.Context, id int) (*models.ProductRecord, error)
	ListCategories(ctx context.Context, page, perPage int) ([]models.CategoryRecord, error)
}

type Config struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Timeout        time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	RateBurst      int
}

type Client struct {
	http    *http.Client
	baseURL string
	key     string
	secret  string
	limiter *rate.Limiter
	log     *logger.Logger
}

var _ Source = (*Client)(nil)

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return newClient(&http.Client{Timeout: timeout}, cfg)
}

// newClient lets tests inject an http.Client.
func newClient(hc *http.Client, cfg Config) *Client {
	c := &Client{
		http:    hc,
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		key:     cfg.ConsumerKey,
		secret:  cfg.ConsumerSecret,
		log:     logger.Named("woocommerce"),
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return c
}

func (c *Client) ListProducts(ctx context.Context, page, perPage int) ([]models.ProductRecord, error) {
	q := pageQuery(page, perPage)
	q.Set("status", "publish")
	return c.getProducts(ctx, "list products", q)
}

func (c *Client) SearchProducts(ctx context.Context, text string, page, perPage int) ([]models.ProductRecord, error) {
	q := pageQuery(page, perPage)
	q.Set("search", text)
	return c.getProducts(ctx, "search products", q)
}

func (c *Client) ProductsByCategory(ctx context.Context, categoryID, page, perPage int) ([]models.ProductRecord, error) {
	q := pageQuery(page, perPage)
	q.Set("category", strconv.Itoa(categoryID))
	return c.getProducts(ctx, "products by category", q)
}

func (c *Client) GetProduct(ctx context.Context, id int) (*models.ProductRecord, error) {
	const op = "get product"

	var record *models.ProductRecord
	if err := c.get(ctx, op, "/products/"+strconv.Itoa(id), url.Values{}, &record); err != nil {
		return nil, err
	}
	if record == nil {
		return nil, &Error{Kind: KindMapping, Op: op, Err: fmt.Errorf("empty body for product %d", id)}
	}
	return record, nil
}

func (c *Client) ListCategories(ctx context.Context, page, perPage int) ([]models.CategoryRecord, error) {
	var records []models.CategoryRecord
	if err := c.get(ctx, "list categories", "/products/categories", pageQuery(page, perPage), &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = make([]models.CategoryRecord, 0)
	}
	return records, nil
}

func (c *Client) getProducts(ctx context.Context, op string, q url.Values) ([]models.ProductRecord, error) {
	var records []models.ProductRecord
	if err := c.get(ctx, op, "/products", q, &records); err != nil {
		return nil, err
	}
	// a null body is treated as an empty page
	if records == nil {
		records = make([]models.ProductRecord, 0)
	}
	return records, nil
}

func (c *Client) get(ctx context.Context, op, path string, q url.Values, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return &Error{Kind: KindUnknown, Op: op, Err: err}
		}
	}

	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("invalid base url: %w", err)}
	}
	q.Set("consumer_key", c.key)
	q.Set("consumer_secret", c.secret)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return &Error{Kind: KindUnknown, Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &Error{Kind: KindUnknown, Op: op, Err: ctx.Err()}
		}
		return &Error{Kind: KindNetwork, Op: op, Err: err}
	}
	defer func() {
		if closeErr := res.Body.Close(); closeErr != nil {
			c.log.Warn().Err(closeErr).Msg("failed to close response body")
		}
	}()

	c.log.Debug().
		Str("op", op).
		Str("path", path).
		Str("page", q.Get("page")).
		Int("status", res.StatusCode).
		Dur("took", time.Since(start)).
		Msg("woocommerce request")

	if res.StatusCode < 200 || res.StatusCode > 299 {
		// drain so the connection can be reused
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
		return &Error{Kind: KindServer, StatusCode: res.StatusCode, Op: op}
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return &Error{Kind: KindNetwork, Op: op, Err: fmt.Errorf("failed to read body: %w", err)}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return &Error{Kind: KindMapping, Op: op, Err: err}
	}
	return nil
}

func pageQuery(page, perPage int) url.Values {
	if page < 1 {
		page = 1
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	if perPage > 0 {
		q.Set("per_page", strconv.Itoa(perPage))
	}
	return q
}
