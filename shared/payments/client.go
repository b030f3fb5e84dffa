// Package payments talks to the MercadoPago API.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/sirupsen/logrus"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/utils"
)

const (
	defaultTimeout = 10 * time.Second
	readAttempts   = 3
)

// ErrNotFound is returned when the processor does not know the payment
var ErrNotFound = errors.New("payment not found at processor")

// StatusError is a non-2xx processor answer
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("processor returned status %d: %s", e.StatusCode, e.Body)
}

// RemotePayment is the subset of the processor's payment resource we use
type RemotePayment struct {
	ID                int64   `json:"id"`
	Status            string  `json:"status"`
	TransactionAmount float64 `json:"transaction_amount"`
	CurrencyID        string  `json:"currency_id"`
	Description       string  `json:"description"`
	Payer             struct {
		Email string `json:"email"`
	} `json:"payer"`
}

// LocalStatus maps the processor status onto ours
func (p RemotePayment) LocalStatus() models.PaymentStatus {
	switch p.Status {
	case "approved", "authorized":
		return models.PaymentApproved
	case "rejected":
		return models.PaymentRejected
	case "refunded", "charged_back":
		return models.PaymentRefunded
	case "cancelled":
		return models.PaymentCancelled
	default:
		return models.PaymentPending
	}
}

// Refund is the processor's answer to a refund request
type Refund struct {
	ID     int64   `json:"id"`
	Amount float64 `json:"amount"`
	Status string  `json:"status"`
}

// Client is a MercadoPago API client. Reads are retried with exponential
// backoff; refunds are never retried. Both go through a circuit breaker.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *utils.CircuitBreaker
	newBackOff func() backoff.BackOff
}

// NewClient creates a client with the given per-request timeout
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		breaker: utils.NewCircuitBreaker("mercadopago", 5, 30*time.Second),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 200 * time.Millisecond
			b.MaxInterval = 2 * time.Second
			return b
		},
	}
}

// GetPayment fetches a payment by processor id
func (c *Client) GetPayment(ctx context.Context, accessToken, externalID string) (*RemotePayment, error) {
	var payment RemotePayment
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		_, err := backoff.Retry(ctx, func() (struct{}, error) {
			err := c.do(ctx, http.MethodGet, "/v1/payments/"+externalID, accessToken, nil, &payment)
			if err != nil && !retryable(err) {
				return struct{}{}, backoff.Permanent(err)
			}
			return struct{}{}, err
		}, backoff.WithBackOff(c.newBackOff()), backoff.WithMaxTries(readAttempts))
		return err
	})
	if err != nil {
		return nil, err
	}
	return &payment, nil
}

// RefundPayment issues a full refund. It is sent once: a timeout leaves the
// outcome unknown and must be reconciled through GetPayment.
func (c *Client) RefundPayment(ctx context.Context, accessToken, externalID string) (*Refund, error) {
	var refund Refund
	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.do(ctx, http.MethodPost, "/v1/payments/"+externalID+"/refunds", accessToken, map[string]interface{}{}, &refund)
	})
	if err != nil {
		return nil, err
	}
	logrus.WithFields(logrus.Fields{
		"external_id": externalID,
		"refund_id":   refund.ID,
		"status":      refund.Status,
	}).Info("Refund issued")
	return &refund, nil
}

// BreakerState exposes the breaker position for health endpoints
func (c *Client) BreakerState() utils.BreakerState {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path, accessToken string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		jsonData, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewBuffer(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("processor request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{StatusCode: resp.StatusCode, Body: string(msg)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode processor response: %w", err)
	}
	return nil
}

// retryable reports whether a failed read may succeed on another attempt
func retryable(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return false
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.StatusCode == http.StatusTooManyRequests || statusErr.StatusCode >= 500
	}
	return true
}
