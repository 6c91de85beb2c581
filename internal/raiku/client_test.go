package raiku

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientSubmit_Defaults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/jit/submit", r.URL.Path)

		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "AQID", body["transaction"])
		assert.Equal(t, "high", body["priorityLevel"])
		assert.Equal(t, float64(3), body["maxRetries"])
		assert.Equal(t, false, body["skipPreflight"])

		_, _ = w.Write([]byte(`{"success":true,"preConfirmationId":"raiku_x","estimatedSlot":12,"estimatedLatencyMs":31,"blockspaceReserved":true}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/jit/", srv.URL+"/status", time.Second)
	resp, err := c.Submit(context.Background(), SubmitRequest{Transaction: "AQID"})
	require.NoError(t, err)
	assert.Equal(t, &SubmitResponse{
		Success:            true,
		PreConfirmationID:  "raiku_x",
		EstimatedSlot:      12,
		EstimatedLatencyMs: 31,
		BlockspaceReserved: true,
	}, resp)
}

func TestClientSubmit_ExplicitOptions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "turbo", body["priorityLevel"])
		assert.Equal(t, float64(0), body["maxRetries"])
		assert.Equal(t, true, body["skipPreflight"])
		_, _ = w.Write([]byte(`{"success":false,"error":"no blockspace"}`))
	}))
	defer srv.Close()

	retries, skip := 0, true
	resp, err := NewClient(srv.URL, srv.URL, time.Second).Submit(context.Background(), SubmitRequest{
		Transaction:   "AQID",
		PriorityLevel: PriorityTurbo,
		MaxRetries:    &retries,
		SkipPreflight: &skip,
	})
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Equal(t, "no blockspace", resp.Error)
}

func TestClientSubmit_Validation(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", "", time.Second)

	_, err := c.Submit(context.Background(), SubmitRequest{})
	assert.EqualError(t, err, "transaction is required")

	_, err = c.Submit(context.Background(), SubmitRequest{Transaction: "AQID", PriorityLevel: "ultra"})
	assert.EqualError(t, err, `invalid priority level "ultra"`)
}

func TestClientStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/status/raiku_ok":
			_, _ = w.Write([]byte(`{"preConfirmationId":"raiku_ok","status":"confirmed","signature":"sig","slot":99,"confirmationTimeMs":33}`))
		case "/status/raiku_weird":
			_, _ = w.Write([]byte(`{"preConfirmationId":"raiku_weird","status":"landed"}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":"not found"}`))
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/jit", srv.URL+"/status", time.Second)

	st, err := c.Status(context.Background(), "raiku_ok")
	require.NoError(t, err)
	assert.Equal(t, StatusConfirmed, st.Status)
	assert.Equal(t, "sig", st.Signature)
	require.NotNil(t, st.Slot)
	assert.Equal(t, uint64(99), *st.Slot)
	require.NotNil(t, st.ConfirmationTimeMs)
	assert.Equal(t, int64(33), *st.ConfirmationTimeMs)

	_, err = c.Status(context.Background(), "raiku_weird")
	assert.EqualError(t, err, `raiku returned unknown status "landed"`)

	_, err = c.Status(context.Background(), "raiku_gone")
	var httpErr *HTTPError
	require.True(t, errors.As(err, &httpErr))
	assert.Equal(t, http.StatusNotFound, httpErr.StatusCode)

	_, err = c.Status(context.Background(), " ")
	assert.Error(t, err)
}

func TestClientEstimateLatency(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/jit/latency", r.URL.Path)
		_, _ = w.Write([]byte(`{"estimatedMs":27}`))
	}))
	defer srv.Close()

	ms, err := NewClient(srv.URL+"/jit", "", time.Second).EstimateLatency(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(27), ms)
}
