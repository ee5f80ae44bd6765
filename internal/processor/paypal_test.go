package processor

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/plutov/paypal/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestPayPalAdapter(t *testing.T, srv *httptest.Server) *PayPalAdapter {
	t.Helper()
	client, err := paypal.NewClient("client-id", "secret", srv.URL)
	require.NoError(t, err)
	return &PayPalAdapter{
		client: client,
		http:   srv.Client(),
		logger: zap.NewNop(),
	}
}

func TestSearchWindowWalksAllPages(t *testing.T) {
	var pages []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/reporting/transactions", r.URL.Path)
		require.Equal(t, "Bearer tok", r.Header.Get("Authorization"))

		page := r.URL.Query().Get("page")
		pages = append(pages, page)

		resp := map[string]interface{}{
			"total_pages": 3,
			"transaction_details": []map[string]interface{}{
				{"transaction_info": map[string]interface{}{"transaction_id": "txn-" + page}},
			},
		}
		json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	a := newTestPayPalAdapter(t, srv)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	txns, err := a.searchWindow(context.Background(), "tok", start, start.Add(reportingWindow))
	require.NoError(t, err)

	assert.Equal(t, []string{"1", "2", "3"}, pages)
	require.Len(t, txns, 3)
	assert.Equal(t, "txn-1", txns[0].TransactionInfo.TransactionID)
	assert.Equal(t, "txn-3", txns[2].TransactionInfo.TransactionID)
}

func TestSearchWindowStopsOnSinglePage(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]interface{}{
			"total_pages":         1,
			"transaction_details": []map[string]interface{}{},
		})
	}))
	defer srv.Close()

	a := newTestPayPalAdapter(t, srv)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	txns, err := a.searchWindow(context.Background(), "tok", start, start.Add(reportingWindow))
	require.NoError(t, err)
	assert.Empty(t, txns)
	assert.Equal(t, 1, calls)
}

func TestSearchWindowSurfacesAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	a := newTestPayPalAdapter(t, srv)
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	_, err := a.searchWindow(context.Background(), "tok", start, start.Add(reportingWindow))
	require.Error(t, err)
}
