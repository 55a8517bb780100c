// Package sms sends transactional text messages through TextSMS Kenya.
package sms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/JobMwaura/zintra-sub007/internal/pkg/env"
)

const defaultBaseURL = "https://sms.textsms.co.ke/api/services"

var (
	ErrInvalidPhone  = errors.New("Invalid phone number format")
	ErrNotConfigured = errors.New("SMS service not configured")
)

var kenyanMSISDN = regexp.MustCompile(`^254\d{9}$`)

// NormalizePhone turns a Kenyan number in any common format into
// 254XXXXXXXXX. It returns ErrInvalidPhone when that is not possible.
func NormalizePhone(phone string) (string, error) {
	cleaned := strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
	cleaned = strings.TrimPrefix(cleaned, "+")
	if strings.HasPrefix(cleaned, "0") && len(cleaned) == 10 {
		cleaned = "254" + cleaned[1:]
	}
	if !kenyanMSISDN.MatchString(cleaned) {
		return "", ErrInvalidPhone
	}
	return cleaned, nil
}

type Config struct {
	APIKey    string
	PartnerID string
	Shortcode string
	BaseURL   string
	Timeout   time.Duration
}

func LoadConfig() Config {
	return Config{
		APIKey:    env.GetEnv("TEXTSMS_API_KEY", ""),
		PartnerID: env.GetEnv("TEXTSMS_PARTNER_ID", ""),
		Shortcode: env.GetEnv("TEXTSMS_SHORTCODE", ""),
		BaseURL:   env.GetEnv("TEXTSMS_BASE_URL", defaultBaseURL),
		Timeout:   env.GetEnvDuration("TEXTSMS_TIMEOUT", 10*time.Second),
	}
}

func (c Config) Enabled() bool {
	return c.APIKey != "" && c.PartnerID != "" && c.Shortcode != ""
}

// Client talks to the /sendsms/ endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

func NewClient(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

type sendRequest struct {
	APIKey    string `json:"apikey"`
	PartnerID string `json:"partnerID"`
	Mobile    string `json:"mobile"`
	Message   string `json:"message"`
	Shortcode string `json:"shortcode"`
}

// sendResponse covers the three shapes the gateway answers with.
type sendResponse struct {
	Success   *bool           `json:"success"`
	Message   string          `json:"message"`
	MessageID string          `json:"messageId"`
	Code      json.RawMessage `json:"code"`
	Responses []struct {
		Code        json.RawMessage `json:"response-code"`
		CodeAlt     json.RawMessage `json:"response_code"`
		Description string          `json:"response-description"`
		DescAlt     string          `json:"response_description"`
		MessageID   json.RawMessage `json:"messageid"`
	} `json:"responses"`
}

// codeIs compares a JSON number or string against the given codes.
func codeIs(raw json.RawMessage, codes ...string) bool {
	v := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	for _, c := range codes {
		if v == c {
			return true
		}
	}
	return false
}

func (r *sendResponse) outcome() (bool, string) {
	switch {
	case r.Success != nil:
		return *r.Success, r.Message
	case len(r.Responses) > 0:
		first := r.Responses[0]
		code := first.Code
		if len(code) == 0 {
			code = first.CodeAlt
		}
		desc := first.Description
		if desc == "" {
			desc = first.DescAlt
		}
		return codeIs(code, "200"), desc
	case len(r.Code) > 0:
		return codeIs(r.Code, "200", "201"), r.Message
	}
	return false, ""
}

// Send delivers message to phone.
func (c *Client) Send(ctx context.Context, phone, message string) error {
	if phone == "" || message == "" {
		return errors.New("Phone number and message are required")
	}
	if !c.cfg.Enabled() {
		return ErrNotConfigured
	}
	mobile, err := NormalizePhone(phone)
	if err != nil {
		return err
	}

	body, err := json.Marshal(sendRequest{
		APIKey:    c.cfg.APIKey,
		PartnerID: c.cfg.PartnerID,
		Mobile:    mobile,
		Message:   message,
		Shortcode: c.cfg.Shortcode,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.cfg.BaseURL, "/")+"/sendsms/", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "Zintra/1.0")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("sms request: %w", err)
	}
	defer resp.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("SMS API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var parsed sendResponse
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return fmt.Errorf("decode sms response: %w", err)
	}
	ok, desc := parsed.outcome()
	if !ok {
		if desc == "" {
			desc = "Failed to send SMS"
		}
		return fmt.Errorf("sms rejected: %s", desc)
	}
	log.Infof("[SMS] Sent %d chars to %s", len(message), mobile)
	return nil
}
