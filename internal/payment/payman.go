// Package payment provides the payment-API collaborator used to dispatch
// affiliate payouts. It is the only component that performs payment network I/O.
package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/sirupsen/logrus"

	"github.com/yourorg/affiliate-performance/internal/circuitbreaker"
	"github.com/yourorg/affiliate-performance/internal/model"
)

// Client is a Payman-style payment API client. It implements payout.Payer.
// Retry and protection policy live here, behind the collaborator boundary:
// transient HTTP errors are retried by the underlying client, and a run of
// hard failures trips the circuit breaker so further sends fail fast instead
// of hammering a down API.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	breaker    *circuitbreaker.CircuitBreaker
}

// Options configures the payment client.
type Options struct {
	// BaseURL of the payment API
	BaseURL string

	// APIKey used as a bearer token
	APIKey string

	// Timeout for a single send, including retries
	Timeout time.Duration

	// Breaker protects the API; optional
	Breaker *circuitbreaker.CircuitBreaker
}

// NewClient creates a payment API client with retrying transport.
func NewClient(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}

	retryClient := retryablehttp.NewClient()
	retryClient.RetryMax = 3
	retryClient.RetryWaitMin = 500 * time.Millisecond
	retryClient.RetryWaitMax = 3 * time.Second
	retryClient.Logger = nil

	httpClient := retryClient.StandardClient()
	httpClient.Timeout = opts.Timeout

	return &Client{
		baseURL:    opts.BaseURL,
		apiKey:     opts.APIKey,
		httpClient: httpClient,
		breaker:    opts.Breaker,
	}
}

// sendPaymentBody matches the payment API's send-payment request format.
type sendPaymentBody struct {
	RequestID         string `json:"request_id"`
	Name              string `json:"name"`
	Amount            string `json:"amount"`
	Currency          string `json:"currency"`
	AccountHolderName string `json:"account_holder_name"`
	AccountNumber     string `json:"account_number"`
	RoutingNumber     string `json:"routing_number"`
	AccountType       string `json:"account_type"`
	AccountHolderType string `json:"account_holder_type"`
}

// sendPaymentAck matches the payment API's acknowledgement format.
type sendPaymentAck struct {
	Status    string `json:"status"`
	PaymentID string `json:"payment_id"`
	Message   string `json:"message,omitempty"`
}

// Send dispatches one payout request to the payment API and converts the
// acknowledgement into a PayoutOutcome. Any error return is isolated to this
// request by the caller.
func (c *Client) Send(ctx context.Context, req model.PayoutRequest) (model.PayoutOutcome, error) {
	if !req.Account.IsComplete() {
		return model.PayoutOutcome{}, fmt.Errorf("payout request %s: incomplete account details", req.RequestID)
	}

	if c.breaker != nil {
		if err := c.breaker.Allow(); err != nil {
			return model.PayoutOutcome{}, err
		}
	}

	ack, err := c.post(ctx, req)
	if err != nil {
		if c.breaker != nil {
			c.breaker.RecordFailure(err)
		}
		return model.PayoutOutcome{}, err
	}

	if c.breaker != nil {
		c.breaker.RecordSuccess()
	}

	detail := ack.Message
	if detail == "" {
		detail = fmt.Sprintf("payment %s accepted", ack.PaymentID)
	}

	return model.PayoutOutcome{
		Request: req,
		Status:  model.PayoutSuccess,
		Detail:  detail,
	}, nil
}

// post performs the actual send-payment call.
func (c *Client) post(ctx context.Context, req model.PayoutRequest) (*sendPaymentAck, error) {
	body := sendPaymentBody{
		RequestID:         req.RequestID,
		Name:              req.RecipientName,
		Amount:            req.Amount.StringFixed(2),
		Currency:          req.Currency,
		AccountHolderName: req.Account.HolderName,
		AccountNumber:     req.Account.AccountNumber,
		RoutingNumber:     req.Account.RoutingNumber,
		AccountType:       string(req.Account.Type),
		AccountHolderType: string(req.Account.HolderType),
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("error encoding payment request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/payments/send", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	logrus.Debugf("Sending payment %s for %s", req.RequestID, req.RecipientName)
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending payment: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("payment API error: status %d, body: %s", resp.StatusCode, string(raw))
	}

	var ack sendPaymentAck
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil {
		return nil, fmt.Errorf("error decoding acknowledgement: %w", err)
	}

	logrus.Debugf("Payment %s acknowledged as %s", req.RequestID, ack.Status)
	return &ack, nil
}
