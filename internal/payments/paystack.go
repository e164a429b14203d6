package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// PaystackClient is a thin client for the two Paystack endpoints the
// checkout flow needs: transaction initialize and transaction verify.
type PaystackClient struct {
	secret  string
	baseURL string
	http    *http.Client
}

func NewPaystackClient(secret, baseURL string) *PaystackClient {
	return &PaystackClient{
		secret:  secret,
		baseURL: baseURL,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// TransactionMetadata rides through Paystack unchanged and comes back on
// verify, carrying everything needed to apply the grant.
type TransactionMetadata struct {
	UserID       string `json:"user_id"`
	PlanID       string `json:"plan_id"`
	DurationDays int    `json:"duration_days"`
}

type InitializeResponse struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

type VerifyResponse struct {
	Status   string              `json:"status"`
	Amount   int                 `json:"amount"`
	Currency string              `json:"currency"`
	Metadata TransactionMetadata `json:"metadata"`
}

type paystackEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Initialize starts a checkout. Amount is in the currency's subunit.
func (c *PaystackClient) Initialize(ctx context.Context, email string, amount int, metadata TransactionMetadata) (*InitializeResponse, error) {
	body := map[string]any{
		"email":    email,
		"amount":   amount,
		"metadata": metadata,
	}

	var resp InitializeResponse
	if err := c.post(ctx, "/transaction/initialize", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Verify fetches a transaction's final state by reference.
func (c *PaystackClient) Verify(ctx context.Context, reference string) (*VerifyResponse, error) {
	var resp VerifyResponse
	if err := c.get(ctx, "/transaction/verify/"+reference, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *PaystackClient) post(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding paystack request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building paystack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	return c.do(req, out)
}

func (c *PaystackClient) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building paystack request: %w", err)
	}

	return c.do(req, out)
}

func (c *PaystackClient) do(req *http.Request, out any) error {
	req.Header.Set("Authorization", "Bearer "+c.secret)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("calling paystack: %w", err)
	}
	defer resp.Body.Close()

	var envelope paystackEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decoding paystack response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !envelope.Status {
		return fmt.Errorf("paystack error (%d): %s", resp.StatusCode, envelope.Message)
	}

	if err := json.Unmarshal(envelope.Data, out); err != nil {
		return fmt.Errorf("decoding paystack data: %w", err)
	}
	return nil
}
