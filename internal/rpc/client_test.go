package rpc

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string) *Client {
	return NewClient(ClientConfig{
		BaseURL:      url,
		Timeout:      2 * time.Second,
		MaxRetries:   2,
		RetryBackoff: time.Millisecond,
	})
}

func TestGetLatestBlockhash(t *testing.T) {
	want := solana.Hash(solana.NewWallet().PublicKey())

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getLatestBlockhash", req.Method)
		params, _ := req.Params.([]interface{})
		if assert.Len(t, params, 1) {
			assert.Equal(t, map[string]interface{}{"commitment": "confirmed"}, params[0])
		}
		fmt.Fprintf(w, `{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":10},"value":{"blockhash":%q,"lastValidBlockHeight":200}}}`, want.String())
	}))
	defer srv.Close()

	got, err := newTestClient(srv.URL).GetLatestBlockhash(context.Background(), "confirmed")
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestGetLatestBlockhash_RPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"error":{"code":-32005,"message":"node is behind"}}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetLatestBlockhash(context.Background(), "")
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32005, rpcErr.Code)
}

func TestCall_RetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"result":7}`))
	}))
	defer srv.Close()

	var out struct {
		Result int `json:"result"`
	}
	require.NoError(t, newTestClient(srv.URL).Call(context.Background(), "getSlot", nil, &out))
	assert.Equal(t, 7, out.Result)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestCall_DoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	var out struct{}
	err := newTestClient(srv.URL).Call(context.Background(), "getSlot", nil, &out)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestCall_GivesUpAfterMaxRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	var out struct{}
	err := newTestClient(srv.URL).Call(context.Background(), "getSlot", nil, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max retries exceeded")
	assert.Contains(t, err.Error(), "rate limited (429)")
}

func TestGetBalance(t *testing.T) {
	account := solana.NewWallet().PublicKey()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req request
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "getBalance", req.Method)
		params, _ := req.Params.([]interface{})
		if assert.Len(t, params, 2) {
			assert.Equal(t, account.String(), params[0])
		}
		_, _ = w.Write([]byte(`{"jsonrpc":"2.0","id":1,"result":{"context":{"slot":1},"value":2500000000}}`))
	}))
	defer srv.Close()

	lamports, err := newTestClient(srv.URL).GetBalance(context.Background(), account, "")
	require.NoError(t, err)
	assert.Equal(t, uint64(2_500_000_000), lamports)
}
