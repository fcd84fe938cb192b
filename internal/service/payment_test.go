package service

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/payment"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

type stubGateway struct {
	order    *payment.ProviderOrder
	err      error
	requests []struct {
		amount   int64
		currency string
		receipt  string
	}
}

func (g *stubGateway) CreateOrder(ctx context.Context, amount int64, currency, receipt string) (*payment.ProviderOrder, error) {
	g.requests = append(g.requests, struct {
		amount   int64
		currency string
		receipt  string
	}{amount, currency, receipt})
	if g.err != nil {
		return nil, g.err
	}
	return g.order, nil
}

func (g *stubGateway) KeyID() string { return "key_test" }

func TestCreatePaymentIntent_NotConfigured(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	_, err := svc.CreatePaymentIntent(context.Background(), 1, 42)
	if !errors.Is(err, payment.ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}

func TestCreatePaymentIntent_OrderNotFound(t *testing.T) {
	repo := &stubRepo{orderErr: repository.ErrOrderNotFound}
	svc := newTestService(repo, &stubGateway{})

	_, err := svc.CreatePaymentIntent(context.Background(), 1, 42)
	if !errors.Is(err, repository.ErrOrderNotFound) {
		t.Fatalf("expected ErrOrderNotFound, got %v", err)
	}
}

func TestCreatePaymentIntent_AlreadyPaid(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 42, PaymentStatus: model.PaymentStatusPaid},
	}
	gw := &stubGateway{}
	svc := newTestService(repo, gw)

	_, err := svc.CreatePaymentIntent(context.Background(), 1, 42)
	if !errors.Is(err, repository.ErrAlreadyPaid) {
		t.Fatalf("expected ErrAlreadyPaid, got %v", err)
	}
	if len(gw.requests) != 0 {
		t.Fatalf("provider must not be called for a paid order")
	}
}

func TestCreatePaymentIntent_Success(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{
			ID:            42,
			TotalCents:    12550,
			PaymentStatus: model.PaymentStatusPending,
		},
	}
	gw := &stubGateway{
		order: &payment.ProviderOrder{ID: "sess_abc", Amount: 12550, Currency: "INR"},
	}
	svc := newTestService(repo, gw)

	intent, err := svc.CreatePaymentIntent(context.Background(), 1, 42)
	if err != nil {
		t.Fatalf("CreatePaymentIntent error: %v", err)
	}

	if intent.SessionRef != "sess_abc" {
		t.Fatalf("session ref = %q, want sess_abc", intent.SessionRef)
	}
	if intent.Amount != 12550 || intent.Currency != "INR" {
		t.Fatalf("unexpected intent: %+v", intent)
	}
	if intent.KeyID != "key_test" {
		t.Fatalf("key id = %q, want key_test", intent.KeyID)
	}

	if len(gw.requests) != 1 {
		t.Fatalf("expected a single provider call, got %d", len(gw.requests))
	}
	req := gw.requests[0]
	if req.amount != 12550 || req.currency != "INR" || req.receipt != "sf_42" {
		t.Fatalf("unexpected provider request: %+v", req)
	}

	// Ссылка сессии должна быть сохранена до ответа клиенту.
	if repo.sessionRefs[42] != "sess_abc" {
		t.Fatalf("session ref not persisted: %v", repo.sessionRefs)
	}
}

func TestCreatePaymentIntent_ProviderError(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 42, TotalCents: 100, PaymentStatus: model.PaymentStatusPending},
	}
	gw := &stubGateway{err: fmt.Errorf("provider unavailable")}
	svc := newTestService(repo, gw)

	_, err := svc.CreatePaymentIntent(context.Background(), 1, 42)
	if err == nil {
		t.Fatalf("expected error from provider")
	}
	if len(repo.sessionRefs) != 0 {
		t.Fatalf("session ref must not be persisted on provider failure")
	}
}

func TestVerifyPayment_InvalidSignature(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{ID: 42, SessionRef: "sess_abc"},
	}
	svc := newTestService(repo, nil)

	err := svc.VerifyPayment(context.Background(), 1, 42, "sess_abc", "pay_1", "bogus")
	if !errors.Is(err, payment.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("invalid signature must not touch order state")
	}
}

func TestVerifyPayment_SessionMismatch(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPending,
		},
	}
	svc := newTestService(repo, nil)

	sig := payment.CallbackSignature("key-secret", "sess_other", "pay_1")
	err := svc.VerifyPayment(context.Background(), 1, 42, "sess_other", "pay_1", sig)
	if !errors.Is(err, ErrSessionMismatch) {
		t.Fatalf("expected ErrSessionMismatch, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("mismatched session must not settle the order")
	}
}

func TestVerifyPayment_AlreadyPaidIdempotent(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPaid,
		},
	}
	svc := newTestService(repo, nil)

	sig := payment.CallbackSignature("key-secret", "sess_abc", "pay_1")
	if err := svc.VerifyPayment(context.Background(), 1, 42, "sess_abc", "pay_1", sig); err != nil {
		t.Fatalf("repeated verification of a paid order must succeed, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("paid order must not be settled again")
	}
}

func TestVerifyPayment_Success(t *testing.T) {
	repo := &stubRepo{
		order: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPending,
		},
	}
	svc := newTestService(repo, nil)

	sig := payment.CallbackSignature("key-secret", "sess_abc", "pay_1")
	if err := svc.VerifyPayment(context.Background(), 1, 42, "sess_abc", "pay_1", sig); err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}

	if len(repo.settled) != 1 {
		t.Fatalf("expected one settlement, got %d", len(repo.settled))
	}
	got := repo.settled[0]
	if got.orderID != 42 || got.paymentRef != "pay_1" || got.status != model.PaymentStatusPaid {
		t.Fatalf("unexpected settlement: %+v", got)
	}
}

func webhookBody(event, paymentID, orderID string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":%q,"payload":{"payment":{"entity":{"id":%q,"order_id":%q}}}}`,
		event, paymentID, orderID,
	))
}

func TestHandleWebhook_InvalidSignature(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.captured", "pay_1", "sess_abc")
	err := svc.HandleWebhook(context.Background(), body, "bogus")
	if !errors.Is(err, payment.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("unsigned webhook must not settle anything")
	}
}

func TestHandleWebhook_IgnoredEvent(t *testing.T) {
	repo := &stubRepo{}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.authorized", "pay_1", "sess_abc")
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("ignored event must be accepted, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("ignored event must not settle anything")
	}
}

func TestHandleWebhook_UnknownOrder(t *testing.T) {
	repo := &stubRepo{orderBySessionErr: repository.ErrOrderNotFound}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.captured", "pay_1", "sess_unknown")
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("unknown order must be ignored, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("unknown order must not settle anything")
	}
}

func TestHandleWebhook_Captured(t *testing.T) {
	repo := &stubRepo{
		orderBySession: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPending,
		},
	}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.captured", "pay_1", "sess_abc")
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}

	if len(repo.settled) != 1 {
		t.Fatalf("expected one settlement, got %d", len(repo.settled))
	}
	got := repo.settled[0]
	if got.orderID != 42 || got.paymentRef != "pay_1" || got.status != model.PaymentStatusPaid {
		t.Fatalf("unexpected settlement: %+v", got)
	}
}

func TestHandleWebhook_Failed(t *testing.T) {
	repo := &stubRepo{
		orderBySession: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPending,
		},
	}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.failed", "pay_1", "sess_abc")
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("HandleWebhook error: %v", err)
	}

	if len(repo.settled) != 1 || repo.settled[0].status != model.PaymentStatusFailed {
		t.Fatalf("expected failed settlement, got %+v", repo.settled)
	}
}

func TestHandleWebhook_DuplicateDelivery(t *testing.T) {
	repo := &stubRepo{
		orderBySession: &model.Order{
			ID:            42,
			SessionRef:    "sess_abc",
			PaymentStatus: model.PaymentStatusPaid,
		},
	}
	svc := newTestService(repo, nil)

	body := webhookBody("payment.captured", "pay_1", "sess_abc")
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err != nil {
		t.Fatalf("duplicate delivery must be accepted, got %v", err)
	}
	if len(repo.settled) != 0 {
		t.Fatalf("paid order must not be settled again")
	}
}

func TestHandleWebhook_MalformedBody(t *testing.T) {
	svc := newTestService(&stubRepo{}, nil)

	body := []byte(`{"event":`)
	sig := payment.WebhookSignature("webhook-secret", body)

	if err := svc.HandleWebhook(context.Background(), body, sig); err == nil {
		t.Fatalf("expected error for malformed payload")
	}
}
