package paypal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scoopworks/creamery-backend/pkg/config"
	pkgerrors "github.com/scoopworks/creamery-backend/pkg/errors"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(config.PayPalConfig{
		BaseURL:      server.URL,
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		Currency:     "usd",
	}, nil)
	require.NoError(t, err)

	return client, server
}

func tokenHandler(mux *http.ServeMux) {
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","expires_in":3600}`))
	})
}

func TestNewClient_RequiresCredentials(t *testing.T) {
	_, err := NewClient(config.PayPalConfig{BaseURL: "https://example.com"}, nil)
	assert.ErrorIs(t, err, errCredentialsRequired)

	_, err = NewClient(config.PayPalConfig{ClientID: "a", ClientSecret: "b"}, nil)
	assert.ErrorIs(t, err, errBaseURLRequired)
}

func TestCreateRemoteOrder(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(mux)
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer test-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "REMOTE-123",
			"status": "CREATED",
			"links": [
				{"href": "https://gateway.example/self", "rel": "self"},
				{"href": "https://gateway.example/approve", "rel": "approve"}
			]
		}`))
	})

	client, _ := newTestClient(t, mux)

	order, err := client.CreateRemoteOrder(context.Background(), 35000, "creamery order")
	require.NoError(t, err)
	assert.Equal(t, "REMOTE-123", order.RemoteOrderID)
	assert.Equal(t, "https://gateway.example/approve", order.ApprovalURL)
}

func TestCreateRemoteOrder_RejectsNonPositiveAmount(t *testing.T) {
	client, _ := newTestClient(t, http.NewServeMux())

	_, err := client.CreateRemoteOrder(context.Background(), 0, "empty")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodeValidation, appErr.Code())
}

func TestCaptureRemoteOrder(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(mux)
	mux.HandleFunc("/v2/checkout/orders/REMOTE-123/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{
			"id": "REMOTE-123",
			"status": "COMPLETED",
			"purchase_units": [
				{"payments": {"captures": [{"id": "TXN-9", "status": "COMPLETED"}]}}
			]
		}`))
	})

	client, _ := newTestClient(t, mux)

	result, err := client.CaptureRemoteOrder(context.Background(), "REMOTE-123")
	require.NoError(t, err)
	assert.Equal(t, "TXN-9", result.RemoteTransactionID)
	assert.Equal(t, "COMPLETED", result.Status)
	assert.False(t, result.AlreadyCaptured)
}

func TestCaptureRemoteOrder_AlreadyCaptured(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(mux)
	mux.HandleFunc("/v2/checkout/orders/REMOTE-123/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"ORDER_ALREADY_CAPTURED"}]}`))
	})
	mux.HandleFunc("/v2/checkout/orders/REMOTE-123", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"status": "COMPLETED",
			"purchase_units": [
				{"payments": {"captures": [{"id": "TXN-9", "status": "COMPLETED"}]}}
			]
		}`))
	})

	client, _ := newTestClient(t, mux)

	result, err := client.CaptureRemoteOrder(context.Background(), "REMOTE-123")
	require.NoError(t, err)
	assert.True(t, result.AlreadyCaptured)
	assert.Equal(t, "TXN-9", result.RemoteTransactionID)
}

func TestCaptureRemoteOrder_GatewayFailure(t *testing.T) {
	mux := http.NewServeMux()
	tokenHandler(mux)
	mux.HandleFunc("/v2/checkout/orders/BAD/capture", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`{"name":"UNPROCESSABLE_ENTITY","details":[{"issue":"INSTRUMENT_DECLINED"}]}`))
	})

	client, _ := newTestClient(t, mux)

	_, err := client.CaptureRemoteOrder(context.Background(), "BAD")
	var appErr *pkgerrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, pkgerrors.CodePaymentGateway, appErr.Code())
}

func TestAccessToken_Cached(t *testing.T) {
	tokenCalls := 0
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		tokenCalls++
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"access_token":"test-token","expires_in":3600}`))
	})
	mux.HandleFunc("/v2/checkout/orders", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"REMOTE-1","status":"CREATED","links":[]}`))
	})

	client, _ := newTestClient(t, mux)

	for i := 0; i < 3; i++ {
		_, err := client.CreateRemoteOrder(context.Background(), 100, "order")
		require.NoError(t, err)
	}
	assert.Equal(t, 1, tokenCalls)
}

func TestFormatAmount(t *testing.T) {
	assert.Equal(t, "350.00", formatAmount(35000))
	assert.Equal(t, "0.05", formatAmount(5))
	assert.Equal(t, "270.00", formatAmount(27000))
}
