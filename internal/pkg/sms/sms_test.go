package sms

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"0712345678", "254712345678", false},
		{"+254 712 345 678", "254712345678", false},
		{"254-712-345-678", "254712345678", false},
		{"(0712) 345678", "254712345678", false},
		{"712345678", "", true},
		{"07123", "", true},
		{"", "", true},
		{"+1 555 123 4567", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := NormalizePhone(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPhone)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func newTestClient(t *testing.T, reply string, status int, seen *sendRequest) *Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/sendsms/", r.URL.Path)
		if seen != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(seen))
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return NewClient(Config{APIKey: "key", PartnerID: "42", Shortcode: "ZINTRA", BaseURL: srv.URL})
}

func TestClient_Send_ResponseShapes(t *testing.T) {
	tests := []struct {
		name    string
		reply   string
		wantErr string
	}{
		{"success flag", `{"success":true,"messageId":"m1"}`, ""},
		{"success flag false", `{"success":false,"message":"Low balance"}`, "Low balance"},
		{"responses numeric", `{"responses":[{"response-code":200,"messageid":123}]}`, ""},
		{"responses string", `{"responses":[{"response_code":"200"}]}`, ""},
		{"responses failure", `{"responses":[{"response-code":1006,"response-description":"Invalid mobile"}]}`, "Invalid mobile"},
		{"code 201", `{"code":"201"}`, ""},
		{"code failure", `{"code":500,"message":"boom"}`, "boom"},
		{"unknown shape", `{}`, "Failed to send SMS"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, tt.reply, http.StatusOK, nil)
			err := c.Send(context.Background(), "0712345678", "hello")
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestClient_Send_Request(t *testing.T) {
	var seen sendRequest
	c := newTestClient(t, `{"success":true}`, http.StatusOK, &seen)
	require.NoError(t, c.Send(context.Background(), "+254712345678", "Your offer was accepted"))

	assert.Equal(t, "254712345678", seen.Mobile)
	assert.Equal(t, "key", seen.APIKey)
	assert.Equal(t, "42", seen.PartnerID)
	assert.Equal(t, "ZINTRA", seen.Shortcode)
}

func TestClient_Send_Errors(t *testing.T) {
	c := newTestClient(t, "down", http.StatusBadGateway, nil)
	err := c.Send(context.Background(), "0712345678", "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "SMS API returned 502")

	assert.ErrorIs(t, c.Send(context.Background(), "12", "x"), ErrInvalidPhone)
	assert.ErrorIs(t, NewClient(Config{}).Send(context.Background(), "0712345678", "x"), ErrNotConfigured)
}
