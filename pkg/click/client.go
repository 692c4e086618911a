// Package click talks to the Click merchant API: invoice creation, fiscal
// data submission and the signature scheme used by inbound webhooks.
package click

import (
	"bytes"
	"crypto/sha1"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"merch_shop/internal/fiscal"
	"merch_shop/internal/models"
	"merch_shop/internal/money"
)

type Client struct {
	BaseURL        string
	MerchantUserID string
	SecretKey      string
	ServiceID      string
	HTTPClient     *http.Client
}

type InvoiceResult struct {
	ErrorCode  int    `json:"error_code"`
	ErrorNote  string `json:"error_note"`
	InvoiceID  int64  `json:"invoice_id"`
	PaymentURL string `json:"payment_url"`
}

type FiscalResult struct {
	ErrorCode int    `json:"error_code"`
	ErrorNote string `json:"error_note"`
}

func NewClient(baseURL, merchantUserID, secretKey, serviceID string) *Client {
	return &Client{
		BaseURL:        baseURL,
		MerchantUserID: merchantUserID,
		SecretKey:      secretKey,
		ServiceID:      serviceID,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// AuthHeader builds the merchant API auth token:
// merchant_user_id:sha1(timestamp + secret_key):timestamp.
func (c *Client) AuthHeader(now time.Time) string {
	timestamp := strconv.FormatInt(now.Unix(), 10)
	digest := fmt.Sprintf("%x", sha1.Sum([]byte(timestamp+c.SecretKey)))
	return fmt.Sprintf("%s:%s:%s", c.MerchantUserID, digest, timestamp)
}

type createInvoiceRequest struct {
	ServiceID       string `json:"service_id"`
	Amount          int64  `json:"amount"`
	PhoneNumber     string `json:"phone_number"`
	MerchantTransID string `json:"merchant_trans_id"`
}

// CreateInvoice asks the gateway to issue a payment invoice. The call is
// not idempotent on the remote side, so callers must not retry blindly;
// any transport or non-200 failure is reported as models.ErrGateway.
// The amount crosses the boundary in sums, as the invoice API expects.
func (c *Client) CreateInvoice(merchantTransID string, amount money.Amount, phoneNumber string) (*InvoiceResult, error) {
	payload := createInvoiceRequest{
		ServiceID:       c.ServiceID,
		Amount:          amount.Sum(),
		PhoneNumber:     phoneNumber,
		MerchantTransID: merchantTransID,
	}

	var result InvoiceResult
	if err := c.post("/invoice/create", payload, &result); err != nil {
		return nil, err
	}
	if result.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: invoice creation refused: %d %s", models.ErrGateway, result.ErrorCode, result.ErrorNote)
	}
	if result.PaymentURL == "" && result.InvoiceID != 0 {
		result.PaymentURL = fmt.Sprintf("https://my.click.uz/pay/invoice/%d", result.InvoiceID)
	}
	if result.PaymentURL == "" {
		return nil, fmt.Errorf("%w: invoice response carries no payment url", models.ErrGateway)
	}
	return &result, nil
}

type submitFiscalRequest struct {
	ServiceID     string            `json:"service_id"`
	PaymentID     string            `json:"payment_id"`
	Items         []fiscal.LineItem `json:"items"`
	ReceivedEcash int64             `json:"received_ecash"`
	ReceivedCash  int64             `json:"received_cash"`
	ReceivedCard  int64             `json:"received_card"`
}

// SubmitFiscalData reports sold items to the tax authority through the
// gateway. Amounts are in tiyin. Failure here never unwinds a captured
// payment; the caller logs and reports it.
func (c *Client) SubmitFiscalData(paymentID string, items []fiscal.LineItem, received money.Amount) (*FiscalResult, error) {
	payload := submitFiscalRequest{
		ServiceID:     c.ServiceID,
		PaymentID:     paymentID,
		Items:         items,
		ReceivedEcash: int64(received),
		ReceivedCash:  0,
		ReceivedCard:  0,
	}

	var result FiscalResult
	if err := c.post("/payment/ofd_data/submit_items", payload, &result); err != nil {
		return nil, err
	}
	if result.ErrorCode != 0 {
		return nil, fmt.Errorf("%w: fiscal submission refused: %d %s", models.ErrGateway, result.ErrorCode, result.ErrorNote)
	}
	return &result, nil
}

func (c *Client) post(path string, payload, result interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Auth", c.AuthHeader(time.Now()))

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", models.ErrGateway, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading %s response: %v", models.ErrGateway, path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s returned HTTP %d: %s", models.ErrGateway, path, resp.StatusCode, data)
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("%w: parsing %s response: %v", models.ErrGateway, path, err)
	}
	return nil
}
