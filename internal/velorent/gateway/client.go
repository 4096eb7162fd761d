package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/25x8/velorent/internal/velorent/apperr"
	"github.com/25x8/velorent/internal/velorent/config"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DefaultTimeout bounds every gateway call
const DefaultTimeout = 20 * time.Second

// Amount is a money value in the gateway wire format
type Amount struct {
	Value    string `json:"value"`
	Currency string `json:"currency"`
}

// NewAmount formats value with two decimals
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{Value: value.StringFixed(2), Currency: strings.ToUpper(currency)}
}

type Confirmation struct {
	Type            string `json:"type"`
	ReturnURL       string `json:"return_url,omitempty"`
	ConfirmationURL string `json:"confirmation_url,omitempty"`
}

type Customer struct {
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ReceiptItem struct {
	Description    string `json:"description"`
	Quantity       string `json:"quantity"`
	Amount         Amount `json:"amount"`
	VatCode        int    `json:"vat_code"`
	PaymentMode    string `json:"payment_mode"`
	PaymentSubject string `json:"payment_subject"`
}

type Receipt struct {
	Customer Customer      `json:"customer"`
	Items    []ReceiptItem `json:"items"`
}

// PaymentRequest is the body of POST /payments. Either Confirmation or
// PaymentMethodID is set.
type PaymentRequest struct {
	Amount            Amount            `json:"amount"`
	Capture           bool              `json:"capture"`
	Confirmation      *Confirmation     `json:"confirmation,omitempty"`
	PaymentMethodID   string            `json:"payment_method_id,omitempty"`
	Description       string            `json:"description,omitempty"`
	SavePaymentMethod bool              `json:"save_payment_method,omitempty"`
	Metadata          map[string]string `json:"metadata,omitempty"`
	Receipt           *Receipt          `json:"receipt,omitempty"`
}

type PaymentMethod struct {
	ID    string `json:"id"`
	Type  string `json:"type,omitempty"`
	Saved bool   `json:"saved,omitempty"`
}

// PaymentResponse is the subset of the gateway payment object we keep.
// Raw holds the full response body.
type PaymentResponse struct {
	ID            string         `json:"id"`
	Status        string         `json:"status"`
	Confirmation  *Confirmation  `json:"confirmation,omitempty"`
	PaymentMethod *PaymentMethod `json:"payment_method,omitempty"`
	Raw           string         `json:"-"`
}

type RefundRequest struct {
	PaymentID   string `json:"payment_id"`
	Amount      Amount `json:"amount"`
	Description string `json:"description,omitempty"`
}

type RefundResponse struct {
	ID        string `json:"id"`
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Raw       string `json:"-"`
}

// Client talks to the payment provider REST API
type Client struct {
	baseURL    string
	shopID     string
	secretKey  string
	httpClient *http.Client
	newKey     func() string
}

// NewClient creates a new gateway client
func NewClient(cfg config.GatewayConfig) *Client {
	return &Client{
		baseURL:   strings.TrimRight(cfg.APIURL, "/"),
		shopID:    cfg.ShopID,
		secretKey: cfg.SecretKey,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
		newKey: uuid.NewString,
	}
}

// CreatePayment registers a payment with the provider
func (c *Client) CreatePayment(ctx context.Context, req *PaymentRequest) (*PaymentResponse, error) {
	var resp PaymentResponse
	raw, err := c.post(ctx, "/payments", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	return &resp, nil
}

// CreateRefund returns money of a succeeded payment
func (c *Client) CreateRefund(ctx context.Context, req *RefundRequest) (*RefundResponse, error) {
	var resp RefundResponse
	raw, err := c.post(ctx, "/refunds", req, &resp)
	if err != nil {
		return nil, err
	}
	resp.Raw = raw
	return &resp, nil
}

func (c *Client) post(ctx context.Context, path string, payload, out interface{}) (string, error) {
	if c.shopID == "" || c.secretKey == "" {
		return "", apperr.New(apperr.KindInternal, "payment gateway credentials are not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.SetBasicAuth(c.shopID, c.secretKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotence-Key", c.newKey())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", apperr.GatewayTransport(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperr.GatewayTransport(err)
	}

	// Handle provider errors
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		upstream := strings.TrimSpace(string(respBody))
		if upstream == "" {
			upstream = resp.Status
		}
		return "", apperr.Gateway("payment gateway error", upstream)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return "", apperr.Gateway("payment gateway returned malformed response", string(respBody))
	}

	return string(respBody), nil
}
