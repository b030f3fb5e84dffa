package payments

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v5"

	"github.com/tallerops/admin-console/shared/models"
	"github.com/tallerops/admin-console/shared/utils"
)

func newTestClient(url string) *Client {
	c := NewClient(url, 0)
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestGetPayment_RetriesServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer APP_USR-token" {
			t.Errorf("expected bearer token, got %q", r.Header.Get("Authorization"))
		}
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"id": 123, "status": "approved", "transaction_amount": 1500.5, "currency_id": "ARS"}`))
	}))
	defer srv.Close()

	p, err := newTestClient(srv.URL).GetPayment(context.Background(), "APP_USR-token", "123")
	if err != nil {
		t.Fatalf("get payment: %v", err)
	}
	if hits != 3 {
		t.Fatalf("expected 3 attempts, got %d", hits)
	}
	if p.ID != 123 || p.LocalStatus() != models.PaymentApproved {
		t.Fatalf("unexpected payment: %+v", p)
	}
}

func TestGetPayment_GivesUpAfterMaxTries(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "t", "1")
	var statusErr *StatusError
	if !errors.As(err, &statusErr) || statusErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 status error, got %v", err)
	}
	if hits != readAttempts {
		t.Fatalf("expected %d attempts, got %d", readAttempts, hits)
	}
}

func TestGetPayment_NotFoundIsNotRetried(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetPayment(context.Background(), "t", "404")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if hits != 1 {
		t.Fatalf("expected a single attempt, got %d", hits)
	}
}

func TestRefundPayment_SentOnce(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		if r.Method != http.MethodPost || r.URL.Path != "/v1/payments/77/refunds" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).RefundPayment(context.Background(), "t", "77")
	if err == nil {
		t.Fatalf("expected refund failure")
	}
	if hits != 1 {
		t.Fatalf("expected refund sent once, got %d", hits)
	}
}

func TestRefundPayment_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"id": 9, "amount": 1500.5, "status": "approved"}`))
	}))
	defer srv.Close()

	refund, err := newTestClient(srv.URL).RefundPayment(context.Background(), "t", "77")
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if refund.ID != 9 || refund.Status != "approved" {
		t.Fatalf("unexpected refund: %+v", refund)
	}
}

func TestClient_BreakerOpensOnRepeatedFailures(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	for i := 0; i < 5; i++ {
		_, _ = c.RefundPayment(context.Background(), "t", "1")
	}
	if c.BreakerState() != utils.BreakerOpen {
		t.Fatalf("expected breaker open, got %s", c.BreakerState())
	}
	if _, err := c.RefundPayment(context.Background(), "t", "1"); !errors.Is(err, utils.ErrCircuitOpen) {
		t.Fatalf("expected ErrCircuitOpen, got %v", err)
	}
	if hits != 5 {
		t.Fatalf("expected no request while open, got %d", hits)
	}
}

func TestLocalStatus(t *testing.T) {
	cases := map[string]models.PaymentStatus{
		"approved":     models.PaymentApproved,
		"authorized":   models.PaymentApproved,
		"rejected":     models.PaymentRejected,
		"refunded":     models.PaymentRefunded,
		"charged_back": models.PaymentRefunded,
		"cancelled":    models.PaymentCancelled,
		"in_process":   models.PaymentPending,
	}
	for remote, want := range cases {
		if got := (RemotePayment{Status: remote}).LocalStatus(); got != want {
			t.Fatalf("%s: expected %s, got %s", remote, want, got)
		}
	}
}
