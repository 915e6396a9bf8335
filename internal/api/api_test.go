package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fenrir/internal/api"
	"fenrir/internal/clock"
	"fenrir/internal/config"
	"fenrir/internal/engine"
	"fenrir/internal/events"
)

func testConfig() config.Config {
	return config.Config{Symbols: []config.Symbol{{Name: "TEST", Decimals: 2}}}
}

func newTestServer() *api.Server {
	cfg := testConfig()
	registry := engine.NewRegistry(events.NopSink{}, clock.System{})
	registry.AddSymbol("TEST")
	hub := events.NewHub(events.NewChannelSink())
	return api.New(registry, cfg, hub)
}

func postJSON(t *testing.T, s *api.Server, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	return rec
}

func TestSubmitOrder_RestingLimit(t *testing.T) {
	s := newTestServer()

	rec := postJSON(t, s, "/order/submit", map[string]any{
		"id":         "b1",
		"symbol":     "TEST",
		"side":       "buy",
		"order_type": "limit",
		"price":      "100.00",
		"qty":        5,
	})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "resting", resp["status"])
}

func TestSubmitOrder_UnknownSymbol404(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/order/submit", map[string]any{
		"id": "x", "symbol": "NOPE", "side": "buy", "order_type": "limit", "price": "1.00", "qty": 1,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestSubmitOrder_MissingPrice400(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/order/submit", map[string]any{
		"id": "x", "symbol": "TEST", "side": "buy", "order_type": "limit", "qty": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitOrder_InvalidSide400(t *testing.T) {
	s := newTestServer()
	rec := postJSON(t, s, "/order/submit", map[string]any{
		"id": "x", "symbol": "TEST", "side": "sideways", "order_type": "market", "qty": 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBboAndCancelRoundTrip(t *testing.T) {
	s := newTestServer()

	rec := postJSON(t, s, "/order/submit", map[string]any{
		"id": "b1", "symbol": "TEST", "side": "buy", "order_type": "limit", "price": "99.50", "qty": 3,
	})
	require.Equal(t, http.StatusOK, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/book/bbo/TEST", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var bbo map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &bbo))
	bids := bbo["bids"].([]any)
	require.Len(t, bids, 1)
	level := bids[0].(map[string]any)
	assert.Equal(t, "99.50", level["price"])

	req = httptest.NewRequest(http.MethodDelete, "/order/cancel/TEST/b1", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodDelete, "/order/cancel/TEST/b1", nil)
	rec = httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTradesEndpoint(t *testing.T) {
	s := newTestServer()

	postJSON(t, s, "/order/submit", map[string]any{
		"id": "s1", "symbol": "TEST", "side": "sell", "order_type": "limit", "price": "50.00", "qty": 2,
	})
	postJSON(t, s, "/order/submit", map[string]any{
		"id": "t1", "symbol": "TEST", "side": "buy", "order_type": "market", "qty": 2,
	})

	req := httptest.NewRequest(http.MethodGet, "/trades/TEST", nil)
	rec := httptest.NewRecorder()
	s.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var trades []map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &trades))
	require.Len(t, trades, 1)
	assert.Equal(t, "50.00", trades[0]["price"])
}
