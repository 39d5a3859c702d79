// Package handler exposes the storefront gateway over HTTP with gin.
package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"storefront-api/internal/auth"
	"storefront-api/internal/models"
	"storefront-api/internal/services"
	"storefront-api/pkg/cache"
	"storefront-api/pkg/logger"
)

const (
	serviceName = "storefront-api"
	version     = "1.0.0"
)

// Catalog is the read side of the shop used by the product endpoints.
type Catalog interface {
	LoadPage(ctx context.Context, params services.PageParams) (*models.PageResponse, error)
	GetProduct(ctx context.Context, id int) (*models.Product, error)
	ListCategories(ctx context.Context) ([]models.Category, error)
}

// Deps are the collaborators of the HTTP layer. Auth, Cache and Limiter may
// be nil; the matching features then report themselves unavailable.
type Deps struct {
	Catalog  Catalog
	Sessions *services.BrowseSessions
	Auth     *auth.Sessions
	Cache    *cache.RedisCache
	Limiter  *ClientLimiter
}

type Handler struct {
	catalog  Catalog
	sessions *services.BrowseSessions
	auth     *auth.Sessions
	cache    *cache.RedisCache
	limiter  *ClientLimiter
	log      *logger.Logger
}

func New(d Deps) *Handler {
	return &Handler{
		catalog:  d.Catalog,
		sessions: d.Sessions,
		auth:     d.Auth,
		cache:    d.Cache,
		limiter:  d.Limiter,
		log:      logger.Named("http"),
	}
}

// Router builds the gin engine with middleware and every route.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(corsMiddleware())
	r.Use(requestLogMiddleware(h.log))
	if h.limiter != nil {
		r.Use(h.limiter.middleware())
		r.GET("/rate-limit/status", h.limiter.status)
	}

	r.GET("/health", h.health)
	r.GET("/api/info", h.info)

	r.GET("/products", h.listProducts)
	r.GET("/products/:id", h.getProduct)
	r.GET("/categories", h.listCategories)

	s := r.Group("/sessions")
	s.POST("", h.createSession)
	s.GET("/:id", h.getSession)
	s.GET("/:id/events", h.sessionEvents)
	s.PUT("/:id/search", h.setSessionSearch)
	s.POST("/:id/retry", h.retrySession)
	s.POST("/:id/refresh", h.refreshSession)
	s.DELETE("/:id", h.deleteSession)

	a := r.Group("/auth")
	a.POST("/google", h.signInWithGoogle)
	a.POST("/phone/start", h.startPhoneVerification)
	a.POST("/phone/verify", h.verifyPhoneCode)
	a.POST("/signout", h.signOut)
	a.GET("/me", h.currentUser)

	r.GET("/cache/stats", h.cacheStats)
	r.GET("/cache/debug", h.cacheDebug)
	r.DELETE("/cache/flush", h.flushCache)

	return r
}

func (h *Handler) health(c *gin.Context) {
	health := gin.H{
		"status":  "healthy",
		"service": serviceName,
		"version": version,
	}

	if h.cache.IsAvailable() {
		health["cache"] = "redis connected"
	} else {
		health["cache"] = "redis unavailable"
	}
	if h.auth != nil {
		health["auth"] = "configured"
	} else {
		health["auth"] = "disabled"
	}
	health["browse_sessions"] = h.sessions.Len()

	c.JSON(http.StatusOK, health)
}

func (h *Handler) info(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":        "Storefront API",
		"version":     version,
		"description": "Gateway to the WooCommerce catalog with incremental browse sessions",
		"features":    []string{"Product listing", "Search", "Category filtering", "Incremental paging", "Retry", "Redis caching", "Google and phone sign-in"},
		"endpoints": map[string]string{
			"GET /products":              "One page of products (q, category, page, per_page)",
			"GET /products/:id":          "Product detail",
			"GET /categories":            "All product categories",
			"POST /sessions":             "Start a browse session",
			"GET /sessions/:id":          "Browse session state (position records the read position)",
			"GET /sessions/:id/events":   "Browse session state as server-sent events",
			"PUT /sessions/:id/search":   "Change the search text of a session",
			"POST /sessions/:id/retry":   "Retry failed loads",
			"POST /sessions/:id/refresh": "Reload around an anchor position",
			"DELETE /sessions/:id":       "Close a browse session",
			"POST /auth/google":          "Sign in with a Google ID token",
			"POST /auth/phone/start":     "Send a phone verification code",
			"POST /auth/phone/verify":    "Sign in with the verification code",
			"POST /auth/signout":         "Sign out",
			"GET /auth/me":               "Current user",
			"GET /health":                "Health check",
			"GET /cache/stats":           "Cache statistics",
			"GET /api/info":              "API information",
		},
	})
}

func (h *Handler) listProducts(c *gin.Context) {
	var params services.PageParams
	params.Search = c.Query("q")

	var err error
	if params.CategoryID, err = intQuery(c, "category", 0); err != nil {
		badRequest(c, "category must be an integer", err)
		return
	}
	if params.Page, err = intQuery(c, "page", 0); err != nil {
		badRequest(c, "page must be an integer", err)
		return
	}
	if params.PerPage, err = intQuery(c, "per_page", 0); err != nil {
		badRequest(c, "per_page must be an integer", err)
		return
	}

	res, err := h.catalog.LoadPage(c.Request.Context(), params)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) getProduct(c *gin.Context) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		badRequest(c, "product id must be an integer", err)
		return
	}

	p, err := h.catalog.GetProduct(c.Request.Context(), id)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

func (h *Handler) listCategories(c *gin.Context) {
	cats, err := h.catalog.ListCategories(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": cats, "count": len(cats)})
}

func (h *Handler) cacheStats(c *gin.Context) {
	if !h.cache.IsAvailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "cache not available",
		})
		return
	}
	c.JSON(http.StatusOK, h.cache.GetStats(c.Request.Context()))
}

func (h *Handler) cacheDebug(c *gin.Context) {
	if !h.cache.IsAvailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "cache not available",
		})
		return
	}

	ctx := c.Request.Context()
	keys := h.cache.GetAllKeys(ctx)
	keyDetails := make([]gin.H, 0, len(keys))
	for _, key := range keys {
		ttl := h.cache.GetKeyTTL(ctx, key)
		keyDetails = append(keyDetails, gin.H{
			"key":         key,
			"ttl_seconds": int(ttl.Seconds()),
			"expires_in":  ttl.String(),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"total_keys":  len(keys),
		"cache_keys":  keyDetails,
		"cache_stats": h.cache.GetStats(ctx),
		"timestamp":   time.Now().Format(time.RFC3339),
	})
}

func (h *Handler) flushCache(c *gin.Context) {
	if !h.cache.IsAvailable() {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "cache not available",
		})
		return
	}

	n, err := h.cache.FlushCache(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "failed to flush cache",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "cache flushed successfully",
		"deleted":   n,
		"timestamp": time.Now().Format(time.RFC3339),
	})
}

func intQuery(c *gin.Context, key string, def int) (int, error) {
	s := c.Query(key)
	if s == "" {
		return def, nil
	}
	return strconv.Atoi(s)
}
