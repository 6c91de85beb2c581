package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/flags"
	"github.com/aman-zulfiqar/flash-swap/internal/jupiter"
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const defaultProxySlippageBps = "50"

// Quote relays a quote request to Jupiter. Failures use the bare {"error": ...}
// body that browser clients of the proxy expect; successes are the upstream
// JSON byte for byte.
func (h *Handlers) Quote(c echo.Context) error {
	if h.Jupiter == nil {
		return c.JSON(http.StatusServiceUnavailable, proxyError{Error: "Quote provider is not configured"})
	}
	if !h.enabled(c.Request().Context(), flags.QuoteProxyEnabled) {
		h.metrics.incQuoteProxy("disabled")
		return c.JSON(http.StatusServiceUnavailable, proxyError{Error: "Quote proxy is disabled"})
	}

	inputMint := strings.TrimSpace(c.QueryParam("inputMint"))
	outputMint := strings.TrimSpace(c.QueryParam("outputMint"))
	amount := strings.TrimSpace(c.QueryParam("amount"))
	slippage := strings.TrimSpace(c.QueryParam("slippageBps"))
	if slippage == "" {
		slippage = defaultProxySlippageBps
	}

	if inputMint == "" || outputMint == "" || amount == "" {
		h.metrics.incQuoteProxy("invalid")
		return c.JSON(http.StatusBadRequest, proxyError{Error: "Missing required parameters: inputMint, outputMint, amount"})
	}
	if d, err := decimal.NewFromString(amount); err != nil || !d.IsPositive() {
		h.metrics.incQuoteProxy("invalid")
		return c.JSON(http.StatusBadRequest, proxyError{Error: "Invalid amount: must be a positive number"})
	}
	bps, err := strconv.ParseUint(slippage, 10, 16)
	if err != nil {
		h.metrics.incQuoteProxy("invalid")
		return c.JSON(http.StatusBadRequest, proxyError{Error: "Invalid slippageBps: must be an integer between 0 and 65535"})
	}
	slippageBps := uint16(bps)

	ctx, cancel := h.withTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	log := h.Logger.WithFields(logrus.Fields{
		"inputMint":  inputMint,
		"outputMint": outputMint,
		"amount":     amount,
	})

	body, err := h.Jupiter.QuoteRaw(ctx, jupiter.QuoteRequest{
		InputMint:   inputMint,
		OutputMint:  outputMint,
		Amount:      amount,
		SlippageBps: &slippageBps,
	})
	if err != nil {
		var he *jupiter.HTTPError
		if errors.As(err, &he) {
			h.metrics.incQuoteProxy("upstream_error")
			log.WithField("status", he.StatusCode).Warn("jupiter quote rejected")
			msg := string(he.Body)
			if msg == "" {
				msg = fmt.Sprintf("Jupiter API returned status %d", he.StatusCode)
			}
			return c.JSON(he.StatusCode, proxyError{Error: msg})
		}
		h.metrics.incQuoteProxy("network_error")
		log.WithError(err).Warn("jupiter quote fetch failed")
		return c.JSON(http.StatusInternalServerError, proxyError{Error: "Network error: " + err.Error()})
	}

	if !json.Valid(body) {
		h.metrics.incQuoteProxy("invalid_json")
		log.Warn("jupiter returned non-json quote")
		return c.JSON(http.StatusBadGateway, proxyError{Error: "Invalid JSON response from Jupiter"})
	}

	h.metrics.incQuoteProxy("ok")
	return c.JSONBlob(http.StatusOK, body)
}
