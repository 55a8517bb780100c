package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

const defaultPesapalAPIURL = "https://cybqa.pesapal.com/pesapalv3"

// TransactionStatus is the part of GetTransactionStatus the webhook uses.
type TransactionStatus struct {
	PaymentStatus     string  `json:"payment_status_description"`
	LegacyStatus      string  `json:"payment_status"`
	Amount            float64 `json:"amount"`
	ConfirmationCode  string  `json:"confirmation_code"`
	MerchantReference string  `json:"merchant_reference"`
	StatusCode        int     `json:"status_code"`
}

// Status returns whichever status field the API filled in.
func (t *TransactionStatus) Status() string {
	if t.PaymentStatus != "" {
		return t.PaymentStatus
	}
	return t.LegacyStatus
}

// PaymentStatusClient re-reads a PesaPal order's status.
type PaymentStatusClient interface {
	GetTransactionStatus(ctx context.Context, orderTrackingID string) (*TransactionStatus, error)
}

type PesapalConfig struct {
	APIURL         string
	ConsumerKey    string
	ConsumerSecret string
}

func LoadPesapalConfig() PesapalConfig {
	return PesapalConfig{
		APIURL:         strings.TrimRight(env.GetEnv("PESAPAL_API_URL", defaultPesapalAPIURL), "/"),
		ConsumerKey:    strings.TrimSpace(env.GetEnv("PESAPAL_CONSUMER_KEY", "")),
		ConsumerSecret: strings.TrimSpace(env.GetEnv("PESAPAL_CONSUMER_SECRET", "")),
	}
}

// PesapalClient talks to the PesaPal v3 API. Tokens are reused until
// shortly before they expire.
type PesapalClient struct {
	cfg        PesapalConfig
	HTTPClient *http.Client

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewPesapalClient(cfg PesapalConfig) *PesapalClient {
	if cfg.APIURL == "" {
		cfg.APIURL = defaultPesapalAPIURL
	}
	return &PesapalClient{cfg: cfg, HTTPClient: &http.Client{Timeout: 15 * time.Second}}
}

func (c *PesapalClient) accessToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != "" && time.Now().Before(c.tokenExpiry) {
		return c.token, nil
	}
	if c.cfg.ConsumerKey == "" || c.cfg.ConsumerSecret == "" {
		return "", errors.New("PESAPAL_CONSUMER_KEY/PESAPAL_CONSUMER_SECRET are not configured")
	}

	body, _ := json.Marshal(map[string]string{
		"consumer_key":    c.cfg.ConsumerKey,
		"consumer_secret": c.cfg.ConsumerSecret,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.APIURL+"/api/Auth/RequestToken", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	var out struct {
		Token      string `json:"token"`
		ExpiryDate string `json:"expiryDate"`
		Error      *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := c.doJSON(req, &out); err != nil {
		return "", fmt.Errorf("pesapal token: %w", err)
	}
	if out.Token == "" {
		msg := "empty token"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return "", fmt.Errorf("pesapal token: %s", msg)
	}

	c.token = out.Token
	c.tokenExpiry = time.Now().Add(4 * time.Minute)
	if exp, err := time.Parse(time.RFC3339, out.ExpiryDate); err == nil {
		c.tokenExpiry = exp.Add(-30 * time.Second)
	}
	return c.token, nil
}

func (c *PesapalClient) GetTransactionStatus(ctx context.Context, orderTrackingID string) (*TransactionStatus, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return nil, err
	}
	u := c.cfg.APIURL + "/api/Transactions/GetTransactionStatus?orderTrackingId=" + url.QueryEscape(orderTrackingID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	var out TransactionStatus
	if err := c.doJSON(req, &out); err != nil {
		return nil, fmt.Errorf("pesapal status: %w", err)
	}
	return &out, nil
}

func (c *PesapalClient) doJSON(req *http.Request, out interface{}) error {
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
