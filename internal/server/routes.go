package server

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"golang.org/x/time/rate"
)

// RegisterRoutes configures all API routes, middleware, and error handlers
func RegisterRoutes(e *echo.Echo, h *Handlers, cfg ServerConfig) {
	e.HTTPErrorHandler = JSONErrorHandler(h.Logger)
	e.Use(SetNoCacheHeaders)

	// scraped without the API key
	e.GET("/metrics", echo.WrapHandler(h.metrics.handler()))

	var auth []echo.MiddlewareFunc
	if cfg.APIKey != "" {
		auth = append(auth, middleware.KeyAuthWithConfig(middleware.KeyAuthConfig{
			KeyLookup: "header:X-API-Key",
			Validator: func(key string, c echo.Context) (bool, error) {
				return key == cfg.APIKey, nil
			},
		}))
	}

	quoteRate, quoteBurst := cfg.QuoteRate, cfg.QuoteBurst
	if quoteRate <= 0 {
		quoteRate = 5
	}
	if quoteBurst <= 0 {
		quoteBurst = 10
	}
	api := e.Group("/api", auth...)
	api.GET("/quote", h.Quote, middleware.RateLimiterWithConfig(middleware.RateLimiterConfig{
		Store: middleware.NewRateLimiterMemoryStoreWithConfig(middleware.RateLimiterMemoryStoreConfig{
			Rate:      rate.Limit(quoteRate),
			Burst:     quoteBurst,
			ExpiresIn: 2 * time.Minute,
		}),
		DenyHandler: func(c echo.Context, _ string, _ error) error {
			h.metrics.incQuoteProxy("rate_limited")
			return c.JSON(http.StatusTooManyRequests, proxyError{Error: "Too many requests"})
		},
	}))

	v1 := e.Group("/v1", auth...)
	v1.GET("/health", h.Health)
	v1.GET("/swaps/recent", h.RecentSwaps)

	tokenGroup := v1.Group("/tokens")
	tokenGroup.GET("", h.Tokens)
	tokenGroup.GET("/search", h.SearchTokens)
	tokenGroup.GET("/:mint", h.Token)

	// wire-compatible with raiku.Client, so remote clients can share this provider
	v1.POST("/jit/submit", h.JITSubmit)
	v1.GET("/jit/latency", h.JITLatency)
	v1.GET("/status/:id", h.JITStatus)

	flagGroup := v1.Group("/flags")
	flagGroup.GET("", h.FlagsList)
	flagGroup.POST("", h.FlagsUpsert)
	flagGroup.GET("/:key", h.FlagsGet)
	flagGroup.PUT("/:key", h.FlagsUpdate)
	flagGroup.DELETE("/:key", h.FlagsDelete)

	e.RouteNotFound("/*", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: http.StatusNotFound})
	})
}
