package chapa

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

const (
	StatusSuccess = "success"
	StatusFailed  = "failed"
)

var ErrUnexpectedResponse = errors.New("unexpected gateway response")

type InitializeRequest struct {
	TxRef       string
	Amount      decimal.Decimal
	Currency    string
	Email       string
	FirstName   string
	LastName    string
	Phone       string
	CallbackURL string
	ReturnURL   string
}

type InitializeResult struct {
	CheckoutURL string
}

// Verification is the gateway's authoritative view of a transaction.
type Verification struct {
	TxRef     string
	Status    string
	Amount    decimal.Decimal
	Currency  string
	Reference string
}

func (v *Verification) Succeeded() bool {
	return strings.EqualFold(v.Status, StatusSuccess)
}

// Failed reports a transaction the gateway considers finally failed. Pending
// or unknown states are neither succeeded nor failed.
func (v *Verification) Failed() bool {
	return strings.EqualFold(v.Status, StatusFailed)
}

// Client talks to the Chapa REST API.
type Client struct {
	baseURL   string
	secretKey string
	http      *http.Client
}

func NewClient(baseURL, secretKey string, timeout time.Duration) *Client {
	return &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		secretKey: secretKey,
		http:      &http.Client{Timeout: timeout},
	}
}

type initializeBody struct {
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Email       string `json:"email"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Phone       string `json:"phone_number,omitempty"`
	TxRef       string `json:"tx_ref"`
	CallbackURL string `json:"callback_url"`
	ReturnURL   string `json:"return_url"`
}

type envelope struct {
	Message json.RawMessage `json:"message"`
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
}

func (c *Client) Initialize(ctx context.Context, req InitializeRequest) (*InitializeResult, error) {
	body, err := json.Marshal(initializeBody{
		Amount:      req.Amount.StringFixed(2),
		Currency:    req.Currency,
		Email:       req.Email,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Phone:       req.Phone,
		TxRef:       req.TxRef,
		CallbackURL: req.CallbackURL,
		ReturnURL:   req.ReturnURL,
	})
	if err != nil {
		return nil, err
	}

	var data struct {
		CheckoutURL string `json:"checkout_url"`
	}
	if err := c.do(ctx, http.MethodPost, "/v1/transaction/initialize", body, &data); err != nil {
		return nil, err
	}
	if data.CheckoutURL == "" {
		return nil, fmt.Errorf("%w: missing checkout_url", ErrUnexpectedResponse)
	}
	return &InitializeResult{CheckoutURL: data.CheckoutURL}, nil
}

func (c *Client) Verify(ctx context.Context, txRef string) (*Verification, error) {
	var data struct {
		Status    string          `json:"status"`
		Amount    json.RawMessage `json:"amount"`
		Currency  string          `json:"currency"`
		TxRef     string          `json:"tx_ref"`
		Reference string          `json:"reference"`
	}
	if err := c.do(ctx, http.MethodGet, "/v1/transaction/verify/"+url.PathEscape(txRef), nil, &data); err != nil {
		return nil, err
	}

	amount, err := parseAmount(data.Amount)
	if err != nil {
		return nil, fmt.Errorf("%w: amount: %v", ErrUnexpectedResponse, err)
	}
	return &Verification{
		TxRef:     data.TxRef,
		Status:    data.Status,
		Amount:    amount,
		Currency:  data.Currency,
		Reference: data.Reference,
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, out any) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chapa %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("chapa %s %s: read body: %w", method, path, err)
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: status %d", ErrUnexpectedResponse, resp.StatusCode)
	}
	if resp.StatusCode >= 300 || !strings.EqualFold(env.Status, StatusSuccess) {
		return fmt.Errorf("chapa %s %s: status %d: %s", method, path, resp.StatusCode, messageText(env.Message))
	}
	if len(env.Data) == 0 || string(env.Data) == "null" {
		return fmt.Errorf("%w: empty data", ErrUnexpectedResponse)
	}
	return json.Unmarshal(env.Data, out)
}

// messageText flattens Chapa's message field, which is either a string or an
// object of field errors.
func messageText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}

// parseAmount accepts the amount as either a JSON number or a string.
func parseAmount(raw json.RawMessage) (decimal.Decimal, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return decimal.Zero, errors.New("missing")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return decimal.NewFromString(s)
	}
	var d decimal.Decimal
	if err := json.Unmarshal(raw, &d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// VerifySignature checks a hex HMAC-SHA256 of body keyed by secret.
func VerifySignature(secret string, body []byte, signature string) bool {
	if secret == "" || signature == "" {
		return false
	}
	expected, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}

// Sign returns the signature VerifySignature accepts.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
