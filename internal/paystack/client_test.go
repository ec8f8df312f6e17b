package paystack

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	var gotAuth, gotPath string
	var gotBody map[string]any

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":true,"message":"ok","data":{
			"authorization_url":"https://checkout.paystack.com/abc",
			"access_code":"abc","reference":"inv-1"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk_test_xyz", "whsec")
	res, err := c.Initialize(context.Background(), "billing@acme.example", 440750, "inv-1", "https://app/cb", nil)
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk_test_xyz", gotAuth)
	assert.Equal(t, "/transaction/initialize", gotPath)
	assert.Equal(t, float64(440750), gotBody["amount"])
	assert.Equal(t, "NGN", gotBody["currency"])
	assert.Equal(t, "https://checkout.paystack.com/abc", res.AuthorizationURL)
	assert.Equal(t, "inv-1", res.Reference)
}

func TestVerify(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transaction/verify/inv-1", r.URL.Path)
		w.Write([]byte(`{"status":true,"message":"ok","data":{
			"status":"success","amount":440750,"reference":"inv-1","paid_at":"2025-03-01T10:00:00Z"}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk", "whsec")
	res, err := c.Verify(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, int64(440750), res.Amount)
}

func TestCallAPIFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":false,"message":"Invalid key"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk", "whsec")
	_, err := c.Verify(context.Background(), "inv-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/refund", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "trx_123", body["transaction"])
		assert.Equal(t, float64(150000), body["amount"])
		w.Write([]byte(`{"status":true,"message":"ok","data":{"id":42,"status":"processed","amount":150000}}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "sk", "whsec")
	res, err := c.Refund(context.Background(), "trx_123", 150000)
	require.NoError(t, err)
	assert.Equal(t, int64(42), res.RefundID)
	assert.Equal(t, int64(150000), res.Amount)
}

func TestVerifySignature(t *testing.T) {
	c := NewClient("http://unused", "sk", "whsec")
	body := []byte(`{"event":"charge.success"}`)

	mac := hmac.New(sha512.New, []byte("whsec"))
	mac.Write(body)
	good := hex.EncodeToString(mac.Sum(nil))

	assert.True(t, c.VerifySignature(body, good))
	assert.False(t, c.VerifySignature(body, "deadbeef"))
	assert.False(t, c.VerifySignature([]byte(`{"event":"tampered"}`), good))
	assert.False(t, c.VerifySignature(body, ""))
}
