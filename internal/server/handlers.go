package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/flags"
	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/aman-zulfiqar/flash-swap/internal/models"
	"github.com/aman-zulfiqar/flash-swap/internal/raiku"
	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
)

// FlagStore is the part of *flags.Store the API uses.
type FlagStore interface {
	flags.Checker
	Upsert(ctx context.Context, key string, value bool) (*flags.Flag, error)
	Get(ctx context.Context, key string) (*flags.Flag, error)
	List(ctx context.Context) ([]*flags.Flag, error)
	Delete(ctx context.Context, key string) error
}

// RecentSwaps is satisfied by *history.RedisStore.
type RecentSwaps interface {
	Recent(ctx context.Context, limit int64) ([]*models.SwapRecord, error)
}

// Handlers contains all dependencies for API endpoint handlers
type Handlers struct {
	Jupiter *jupiter.Client // quote proxy and token lookups (optional)
	Raiku   raiku.Provider  // JIT submission, hosted for remote clients (optional)
	Flags   FlagStore       // runtime switches (optional, defaults apply when nil)
	History RecentSwaps     // recent swap outcomes (optional)
	DevMode bool
	Logger  *logrus.Logger

	metrics *metricsRegistry
}

// err returns a standardized JSON error response.
// In dev mode, includes additional error details for debugging
func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

// enabled consults the flag store, falling back to the flag default without one.
func (h *Handlers) enabled(ctx context.Context, key string) bool {
	if h.Flags == nil {
		return flags.Defaults[key]
	}
	ctx, cancel := h.withTimeout(ctx, 2*time.Second)
	defer cancel()
	return h.Flags.Enabled(ctx, key)
}

func (h *Handlers) Health(c echo.Context) error {
	provider := "none"
	switch h.Raiku.(type) {
	case *raiku.Mock:
		provider = "mock"
	case *raiku.Client:
		provider = "raiku"
	}
	return c.JSON(http.StatusOK, HealthResponse{OK: true, Provider: provider})
}

// Tokens returns the popular token list.
func (h *Handlers) Tokens(c echo.Context) error {
	return c.JSON(http.StatusOK, TokensResponse{Items: tokens.Popular()})
}

// SearchTokens matches q against Jupiter's verified list, or against the
// popular list when Jupiter is not configured.
func (h *Handlers) SearchTokens(c echo.Context) error {
	q := strings.TrimSpace(c.QueryParam("q"))
	if q == "" {
		return h.err(c, http.StatusBadRequest, "invalid query", map[string]any{"q": "required"})
	}

	if h.Jupiter == nil {
		out := []tokens.Token{}
		for _, t := range tokens.Popular() {
			if t.Matches(q) {
				out = append(out, t)
			}
		}
		return c.JSON(http.StatusOK, TokensResponse{Items: out})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	items, err := h.Jupiter.SearchTokens(ctx, q)
	if err != nil {
		h.Logger.WithError(err).WithField("q", q).Warn("token search failed")
		return h.err(c, http.StatusBadGateway, "token search failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, TokensResponse{Items: items})
}

// Token resolves a mint, popular tokens first.
func (h *Handlers) Token(c echo.Context) error {
	mint := strings.TrimSpace(c.Param("mint"))
	if t, ok := tokens.ByAddress(mint); ok {
		return c.JSON(http.StatusOK, t)
	}
	if h.Jupiter == nil {
		return h.err(c, http.StatusNotFound, "token not found", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	t, err := h.Jupiter.TokenInfo(ctx, mint)
	if err != nil {
		var he *jupiter.HTTPError
		if errors.As(err, &he) && he.StatusCode == http.StatusNotFound {
			return h.err(c, http.StatusNotFound, "token not found", nil)
		}
		return h.err(c, http.StatusBadGateway, "token lookup failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, t)
}

// JITSubmit forwards a signed transaction to the submission provider. A
// provider-level rejection is still a 200 with success=false.
func (h *Handlers) JITSubmit(c echo.Context) error {
	if h.Raiku == nil {
		return h.err(c, http.StatusBadRequest, "submission provider is not configured", nil)
	}
	if !h.enabled(c.Request().Context(), flags.SwapSubmitEnabled) {
		h.metrics.incSubmit("disabled")
		return h.err(c, http.StatusServiceUnavailable, "swap submission is disabled", nil)
	}

	var req raiku.SubmitRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if strings.TrimSpace(req.Transaction) == "" {
		return h.err(c, http.StatusBadRequest, "transaction is required", map[string]any{"transaction": "required"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	resp, err := h.Raiku.Submit(ctx, req)
	if err != nil {
		h.metrics.incSubmit("error")
		h.Logger.WithError(err).Warn("jit submit failed")
		return h.err(c, http.StatusBadGateway, "jit submit failed", map[string]any{"err": err.Error()})
	}
	if resp.Success {
		h.metrics.incSubmit("accepted")
		h.Logger.WithFields(logrus.Fields{
			"id":       resp.PreConfirmationID,
			"priority": req.PriorityLevel,
		}).Info("jit transaction accepted")
	} else {
		h.metrics.incSubmit("rejected")
	}
	return c.JSON(http.StatusOK, resp)
}

func (h *Handlers) JITLatency(c echo.Context) error {
	if h.Raiku == nil {
		return h.err(c, http.StatusBadRequest, "submission provider is not configured", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ms, err := h.Raiku.EstimateLatency(ctx)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "latency estimate failed", map[string]any{"err": err.Error()})
	}
	return c.JSON(http.StatusOK, raiku.LatencyResponse{EstimatedMs: ms})
}

func (h *Handlers) JITStatus(c echo.Context) error {
	if h.Raiku == nil {
		return h.err(c, http.StatusBadRequest, "submission provider is not configured", nil)
	}
	id := strings.TrimSpace(c.Param("id"))

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	st, err := h.Raiku.Status(ctx, id)
	if err != nil {
		return h.err(c, http.StatusBadGateway, "status lookup failed", map[string]any{"err": err.Error()})
	}
	h.metrics.incStatus(string(st.Status))
	return c.JSON(http.StatusOK, st)
}

// RecentSwaps returns the latest swap outcomes, newest first.
// Accepts limit query parameter (default: 20, range: 1-100)
func (h *Handlers) RecentSwaps(c echo.Context) error {
	if h.History == nil {
		return h.err(c, http.StatusBadRequest, "swap history is not configured", nil)
	}

	limit := 20
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "must be an integer"})
		}
		limit = n
	}
	if limit < 1 || limit > 100 {
		return h.err(c, http.StatusBadRequest, "invalid limit", map[string]any{"limit": "min 1 max 100"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.History.Recent(ctx, int64(limit))
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to get swaps", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsUpsert(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	var req FlagUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}
	if err := flags.ValidateKey(req.Key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, req.Key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to upsert flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsUpdate(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}
	var req FlagUpdateRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Upsert(ctx, key, req.Value)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to update flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

// FlagsGet returns 404 for a flag that was never set, even if it has a default.
func (h *Handlers) FlagsGet(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	out, err := h.Flags.Get(ctx, key)
	if err != nil {
		if errors.Is(err, flags.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "flag not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get flag", nil)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *Handlers) FlagsList(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Flags.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list flags", nil)
	}
	return c.JSON(http.StatusOK, map[string]any{"items": items})
}

func (h *Handlers) FlagsDelete(c echo.Context) error {
	if h.Flags == nil {
		return h.err(c, http.StatusBadRequest, "flags are not configured", nil)
	}
	key := c.Param("key")
	if err := flags.ValidateKey(key); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid key", map[string]any{"key": "invalid format"})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 3*time.Second)
	defer cancel()

	if err := h.Flags.Delete(ctx, key); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete flag", nil)
	}
	return c.NoContent(http.StatusNoContent)
}
