package billing

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDarajaClient_STKPush(t *testing.T) {
	var pushed map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/oauth/v1/generate":
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok", "expires_in": "3599"})
		case "/mpesa/stkpush/v1/processrequest":
			assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
			require.NoError(t, json.NewDecoder(r.Body).Decode(&pushed))
			_ = json.NewEncoder(w).Encode(STKPushResponse{
				MerchantRequestID: "m-1",
				CheckoutRequestID: "ws_CO_1",
				ResponseCode:      "0",
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewDarajaClient(MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "pk",
		CallbackURL:    "https://zintra.example/api/billing/mpesa/callback",
		BaseURL:        srv.URL,
	})
	c.now = func() time.Time { return time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC) }

	resp, err := c.STKPush(context.Background(), STKPushRequest{
		Phone:       "254712345678",
		Amount:      500,
		AccountRef:  "ZINTRA-vendor_pro_pass",
		Description: "Zintra Vendor Pro Pass",
	})
	require.NoError(t, err)
	assert.True(t, resp.Accepted())

	assert.Equal(t, "20260301123000", pushed["Timestamp"])
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("174379pk20260301123000")), pushed["Password"])
	assert.Equal(t, "254712345678", pushed["PartyA"])
	assert.Equal(t, float64(500), pushed["Amount"])
	assert.Equal(t, "CustomerPayBillOnline", pushed["TransactionType"])
}

func TestDarajaClient_RejectedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/oauth/v1/generate" {
			_ = json.NewEncoder(w).Encode(map[string]string{"access_token": "tok"})
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"errorCode":"400.002.02","errorMessage":"Bad Request - Invalid PhoneNumber"}`))
	}))
	defer srv.Close()

	c := NewDarajaClient(MpesaConfig{
		ConsumerKey:    "key",
		ConsumerSecret: "secret",
		Shortcode:      "174379",
		Passkey:        "pk",
		CallbackURL:    "https://cb",
		BaseURL:        srv.URL,
	})
	resp, err := c.STKPush(context.Background(), STKPushRequest{Phone: "254712345678", Amount: 1})
	require.NoError(t, err)
	assert.False(t, resp.Accepted())
	assert.Equal(t, "Bad Request - Invalid PhoneNumber", resp.Describe())
}

func TestDarajaClient_RequiresConfig(t *testing.T) {
	_, err := NewDarajaClient(MpesaConfig{}).STKPush(context.Background(), STKPushRequest{})
	assert.Error(t, err)
}

func TestPesapalClient_ReusesToken(t *testing.T) {
	var tokenCalls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/Auth/RequestToken":
			tokenCalls.Add(1)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"token":      "jwt",
				"expiryDate": time.Now().Add(5 * time.Minute).UTC().Format(time.RFC3339),
			})
		case "/api/Transactions/GetTransactionStatus":
			assert.Equal(t, "Bearer jwt", r.Header.Get("Authorization"))
			assert.Equal(t, "ORD-1", r.URL.Query().Get("orderTrackingId"))
			_, _ = w.Write([]byte(`{"payment_status_description":"Completed","amount":2500,"status_code":1}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewPesapalClient(PesapalConfig{APIURL: srv.URL, ConsumerKey: "k", ConsumerSecret: "s"})
	for i := 0; i < 2; i++ {
		st, err := c.GetTransactionStatus(context.Background(), "ORD-1")
		require.NoError(t, err)
		assert.Equal(t, "Completed", st.Status())
		assert.Equal(t, 2500.0, st.Amount)
	}
	assert.Equal(t, int32(1), tokenCalls.Load())
}

func TestPesapalClient_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":{"message":"Invalid consumer key"}}`))
	}))
	defer srv.Close()

	_, err := NewPesapalClient(PesapalConfig{APIURL: srv.URL, ConsumerKey: "k", ConsumerSecret: "s"}).
		GetTransactionStatus(context.Background(), "ORD-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Invalid consumer key")

	_, err = NewPesapalClient(PesapalConfig{APIURL: srv.URL}).GetTransactionStatus(context.Background(), "ORD-1")
	assert.Error(t, err)
}

func TestTransactionStatus_LegacyField(t *testing.T) {
	st := TransactionStatus{LegacyStatus: "FAILED"}
	assert.Equal(t, "FAILED", st.Status())
}
