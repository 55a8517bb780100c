package billing

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

const (
	darajaSandboxURL    = "https://sandbox.safaricom.co.ke"
	darajaProductionURL = "https://api.safaricom.co.ke"
)

// STKPushRequest is what the service needs to prompt a phone for payment.
type STKPushRequest struct {
	Phone       string
	Amount      int64
	AccountRef  string
	Description string
}

// STKPushResponse is Daraja's answer to processrequest.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode,omitempty"`
	ErrorMessage        string `json:"errorMessage,omitempty"`
}

// Accepted reports whether Daraja queued the prompt.
func (r *STKPushResponse) Accepted() bool {
	return r.ResponseCode == "0" && r.CheckoutRequestID != ""
}

// Describe picks the most useful human-readable reason from the response.
func (r *STKPushResponse) Describe() string {
	switch {
	case r.ResponseDescription != "":
		return r.ResponseDescription
	case r.ErrorMessage != "":
		return r.ErrorMessage
	}
	return "Failed to initiate M-Pesa payment"
}

//go:generate mockgen -destination=mocks/clients.go -package=mock_billing . STKPusher,PaymentStatusClient

// STKPusher starts an M-Pesa Express payment.
type STKPusher interface {
	STKPush(ctx context.Context, req STKPushRequest) (*STKPushResponse, error)
}

type MpesaConfig struct {
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	BaseURL        string
}

func LoadMpesaConfig() MpesaConfig {
	base := darajaSandboxURL
	if strings.EqualFold(env.GetEnv("MPESA_ENV", "sandbox"), "production") {
		base = darajaProductionURL
	}
	callback := env.GetEnv("MPESA_CALLBACK_URL", "")
	if callback == "" {
		if site := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/"); site != "" {
			callback = site + "/api/billing/mpesa/callback"
		}
	}
	return MpesaConfig{
		ConsumerKey:    strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_KEY", "")),
		ConsumerSecret: strings.TrimSpace(env.GetEnv("MPESA_CONSUMER_SECRET", "")),
		Shortcode:      strings.TrimSpace(env.GetEnv("MPESA_SHORTCODE", "")),
		Passkey:        strings.TrimSpace(env.GetEnv("MPESA_PASSKEY", "")),
		CallbackURL:    callback,
		BaseURL:        env.GetEnv("MPESA_BASE_URL", base),
	}
}

// DarajaClient implements STKPusher against Safaricom's Daraja API.
type DarajaClient struct {
	cfg        MpesaConfig
	HTTPClient *http.Client
	now        func() time.Time
}

func NewDarajaClient(cfg MpesaConfig) *DarajaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = darajaSandboxURL
	}
	return &DarajaClient{
		cfg:        cfg,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		now:        time.Now,
	}
}

var nairobi = time.FixedZone("EAT", 3*60*60)

func (c *DarajaClient) token(ctx context.Context) (string, error) {
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", errors.New("MPESA_CONSUMER_KEY/MPESA_CONSUMER_SECRET are not configured")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/oauth/v1/generate?grant_type=client_credentials", nil)
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.cfg.ConsumerKey, c.cfg.ConsumerSecret)

	var out struct {
		AccessToken string `json:"access_token"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("daraja token: %w", err)
	}
	if out.AccessToken == "" {
		return "", errors.New("daraja token: empty access_token")
	}
	return out.AccessToken, nil
}

// STKPush asks Daraja to prompt req.Phone. A non-accepted response is
// returned as-is; err is reserved for transport failures.
func (c *DarajaClient) STKPush(ctx context.Context, in STKPushRequest) (*STKPushResponse, error) {
	if c.cfg.Shortcode == "" || c.cfg.Passkey == "" || c.cfg.CallbackURL == "" {
		return nil, errors.New("MPESA_SHORTCODE/MPESA_PASSKEY/MPESA_CALLBACK_URL are not configured")
	}
	token, err := c.token(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := c.now().In(nairobi).Format("20060102150405")
	password := base64.StdEncoding.EncodeToString([]byte(c.cfg.Shortcode + c.cfg.Passkey + timestamp))
	body, err := json.Marshal(map[string]interface{}{
		"BusinessShortCode": c.cfg.Shortcode,
		"Password":          password,
		"Timestamp":         timestamp,
		"TransactionType":   "CustomerPayBillOnline",
		"Amount":            in.Amount,
		"PartyA":            in.Phone,
		"PartyB":            c.cfg.Shortcode,
		"PhoneNumber":       in.Phone,
		"CallBackURL":       c.cfg.CallbackURL,
		"AccountReference":  in.AccountRef,
		"TransactionDesc":   in.Description,
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		strings.TrimRight(c.cfg.BaseURL, "/")+"/mpesa/stkpush/v1/processrequest", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("stk push: %w", err)
	}
	defer resp.Body.Close()

	var out STKPushResponse
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("stk push: decode %d response: %w", resp.StatusCode, err)
	}
	return &out, nil
}

func (c *DarajaClient) doJSON(req *http.Request, out interface{}) error {
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	return json.Unmarshal(raw, out)
}
