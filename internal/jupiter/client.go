package jupiter

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/aman-zulfiqar/flash-swap/internal/tokens"
)

const (
	DefaultBaseURL   = "https://quote-api.jup.ag/v6"
	DefaultTokensURL = "https://tokens.jup.ag"

	DefaultComputeUnitPriceMicroLamports = 100000

	userAgent       = "TheFlash/1.0"
	maxSearchResult = 20
)

type Client struct {
	BaseURL   string
	TokensURL string
	APIKey    string
	HTTP      *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		BaseURL:   baseURL,
		TokensURL: DefaultTokensURL,
		APIKey:    strings.TrimSpace(apiKey),
		HTTP: &http.Client{
			Timeout: 12 * time.Second,
		},
	}
}

type HTTPError struct {
	StatusCode int
	Body       []byte
}

func (e *HTTPError) Error() string {
	b := strings.TrimSpace(string(e.Body))
	if b == "" {
		return fmt.Sprintf("jupiter http %d", e.StatusCode)
	}
	return fmt.Sprintf("jupiter http %d: %s", e.StatusCode, b)
}

// Quote fetches and decodes a quote. The undecoded body is kept in Raw.
func (c *Client) Quote(ctx context.Context, req QuoteRequest) (*QuoteResponse, error) {
	body, err := c.QuoteRaw(ctx, req)
	if err != nil {
		return nil, err
	}

	var out QuoteResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter quote response: %w", err)
	}
	out.Raw = json.RawMessage(body)
	return &out, nil
}

// QuoteRaw returns the upstream quote body untouched. Non-2xx answers come back
// as *HTTPError so callers can relay the status.
func (c *Client) QuoteRaw(ctx context.Context, req QuoteRequest) ([]byte, error) {
	if strings.TrimSpace(req.InputMint) == "" {
		return nil, fmt.Errorf("inputMint is required")
	}
	if strings.TrimSpace(req.OutputMint) == "" {
		return nil, fmt.Errorf("outputMint is required")
	}
	if strings.TrimSpace(req.Amount) == "" {
		return nil, fmt.Errorf("amount is required")
	}

	u := c.BaseURL + "/quote?" + quoteQuery(req).Encode()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	return c.do(httpReq)
}

// SwapTransaction returns the base64 unsigned transaction for a previously fetched quote.
func (c *Client) SwapTransaction(ctx context.Context, req SwapRequest) (string, error) {
	if len(req.QuoteResponse) == 0 {
		return "", fmt.Errorf("quoteResponse is required")
	}
	if strings.TrimSpace(req.UserPublicKey) == "" {
		return "", fmt.Errorf("userPublicKey is required")
	}

	payload := swapRequestBody{
		QuoteResponse:                 req.QuoteResponse,
		UserPublicKey:                 req.UserPublicKey,
		WrapAndUnwrapSol:              true,
		ComputeUnitPriceMicroLamports: req.ComputeUnitPriceMicroLamports,
		DynamicComputeUnitLimit:       true,
		AsLegacyTransaction:           req.AsLegacyTransaction,
	}
	if req.WrapAndUnwrapSol != nil {
		payload.WrapAndUnwrapSol = *req.WrapAndUnwrapSol
	}
	if req.DynamicComputeUnitLimit != nil {
		payload.DynamicComputeUnitLimit = *req.DynamicComputeUnitLimit
	}
	if payload.ComputeUnitPriceMicroLamports == 0 {
		payload.ComputeUnitPriceMicroLamports = DefaultComputeUnitPriceMicroLamports
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal swap request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/swap", bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("content-type", "application/json")

	body, err := c.do(httpReq)
	if err != nil {
		return "", err
	}

	var out SwapResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("failed to decode jupiter swap response: %w", err)
	}
	if out.SwapTransaction == "" {
		return "", fmt.Errorf("jupiter swap response has no swapTransaction")
	}
	return out.SwapTransaction, nil
}

// TokenInfo looks up a single mint in the Jupiter token API.
func (c *Client) TokenInfo(ctx context.Context, mint string) (*tokens.Token, error) {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return nil, fmt.Errorf("mint is required")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tokensURL()+"/token/"+url.PathEscape(mint), nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var info tokenInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter token response: %w", err)
	}
	t := info.token()
	return &t, nil
}

// SearchTokens filters the verified token list by symbol or name.
func (c *Client) SearchTokens(ctx context.Context, query string) ([]tokens.Token, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.tokensURL()+"/tokens?tags=verified", nil)
	if err != nil {
		return nil, err
	}
	body, err := c.do(httpReq)
	if err != nil {
		return nil, err
	}

	var all []tokenInfo
	if err := json.Unmarshal(body, &all); err != nil {
		return nil, fmt.Errorf("failed to decode jupiter token list: %w", err)
	}

	out := make([]tokens.Token, 0, maxSearchResult)
	for _, info := range all {
		t := info.token()
		if !t.Matches(query) {
			continue
		}
		out = append(out, t)
		if len(out) == maxSearchResult {
			break
		}
	}
	return out, nil
}

func (c *Client) do(httpReq *http.Request) ([]byte, error) {
	httpReq.Header.Set("accept", "application/json")
	httpReq.Header.Set("user-agent", userAgent)
	if c.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.APIKey)
	}

	res, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("read jupiter response: %w", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, &HTTPError{StatusCode: res.StatusCode, Body: body}
	}
	return body, nil
}

func (c *Client) tokensURL() string {
	u := strings.TrimRight(strings.TrimSpace(c.TokensURL), "/")
	if u == "" {
		return DefaultTokensURL
	}
	return u
}

func quoteQuery(req QuoteRequest) url.Values {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", req.Amount)

	if req.SlippageBps != nil {
		q.Set("slippageBps", fmt.Sprintf("%d", *req.SlippageBps))
	}
	if req.SwapMode != "" {
		q.Set("swapMode", req.SwapMode)
	}
	if len(req.Dexes) > 0 {
		q.Set("dexes", strings.Join(req.Dexes, ","))
	}
	if len(req.ExcludeDexes) > 0 {
		q.Set("excludeDexes", strings.Join(req.ExcludeDexes, ","))
	}
	if req.RestrictIntermediateTokens != nil {
		q.Set("restrictIntermediateTokens", fmt.Sprintf("%t", *req.RestrictIntermediateTokens))
	}
	if req.OnlyDirectRoutes != nil {
		q.Set("onlyDirectRoutes", fmt.Sprintf("%t", *req.OnlyDirectRoutes))
	}
	if req.AsLegacyTransaction != nil {
		q.Set("asLegacyTransaction", fmt.Sprintf("%t", *req.AsLegacyTransaction))
	}
	if req.PlatformFeeBps != nil {
		q.Set("platformFeeBps", fmt.Sprintf("%d", *req.PlatformFeeBps))
	}
	if req.MaxAccounts != nil {
		q.Set("maxAccounts", fmt.Sprintf("%d", *req.MaxAccounts))
	}
	if req.DynamicSlippage != nil {
		q.Set("dynamicSlippage", fmt.Sprintf("%t", *req.DynamicSlippage))
	}
	return q
}

func (t tokenInfo) token() tokens.Token {
	return tokens.Token{
		Address:  t.Address,
		Symbol:   t.Symbol,
		Name:     t.Name,
		Decimals: t.Decimals,
		LogoURI:  t.LogoURI,
	}
}
