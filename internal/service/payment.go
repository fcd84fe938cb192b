package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/payment"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

// PaymentIntent содержит данные платёжной сессии для встраиваемого виджета клиента.
type PaymentIntent struct {
	SessionRef string
	Amount     int64
	Currency   string
	KeyID      string
}

// CreatePaymentIntent создаёт платёжную сессию провайдера для заказа
// пользователя. Ссылка сессии сохраняется на заказе сразу, до завершения
// оплаты: последующая проверка сверяется именно с ней. Повторный вызов для
// неоплаченного заказа перезаписывает предыдущую сессию.
func (s *Service) CreatePaymentIntent(ctx context.Context, userID, orderID int64) (*PaymentIntent, error) {
	if s.gateway == nil {
		return nil, payment.ErrNotConfigured
	}

	order, err := s.repo.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil, repository.ErrAlreadyPaid
	}

	// Сумма уже хранится в минимальных единицах валюты, конверсия точная.
	po, err := s.gateway.CreateOrder(ctx, order.TotalCents, s.currency, fmt.Sprintf("sf_%d", order.ID))
	if err != nil {
		return nil, fmt.Errorf("create provider order: %w", err)
	}

	if err := s.repo.SetSessionRef(ctx, order.ID, po.ID); err != nil {
		return nil, err
	}

	return &PaymentIntent{
		SessionRef: po.ID,
		Amount:     order.TotalCents,
		Currency:   s.currency,
		KeyID:      s.gateway.KeyID(),
	}, nil
}

// VerifyPayment проверяет синхронное подтверждение оплаты от клиента и
// идемпотентно отмечает заказ оплаченным. Подпись проверяется до любых
// обращений к БД; несовпадение не оставляет следов в состоянии заказа.
func (s *Service) VerifyPayment(ctx context.Context, userID, orderID int64, sessionRef, paymentRef, signature string) error {
	if !payment.VerifyCallbackSignature(s.keySecret, sessionRef, paymentRef, signature) {
		return payment.ErrInvalidSignature
	}

	order, err := s.repo.GetOrder(ctx, userID, orderID)
	if err != nil {
		return err
	}

	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil
	}

	// Подпись валидна, но могла относиться к другой сессии этого пользователя.
	if order.SessionRef != sessionRef {
		return ErrSessionMismatch
	}

	if _, err := s.repo.ApplySettlement(ctx, order.ID, paymentRef, model.PaymentStatusPaid); err != nil {
		return err
	}

	return nil
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// HandleWebhook обрабатывает асинхронное уведомление провайдера. Возвращаемая
// ошибка предназначена только для логирования: транспортный уровень в любом
// случае отвечает провайдеру успехом, чтобы не провоцировать повторные доставки.
func (s *Service) HandleWebhook(ctx context.Context, rawBody []byte, signature string) error {
	if !payment.VerifyWebhookSignature(s.webhookSecret, rawBody, signature) {
		return payment.ErrInvalidSignature
	}

	var p webhookPayload
	if err := json.Unmarshal(rawBody, &p); err != nil {
		return fmt.Errorf("parse webhook payload: %w", err)
	}

	var status model.PaymentStatus
	switch p.Event {
	case "payment.captured":
		status = model.PaymentStatusPaid
	case "payment.failed":
		status = model.PaymentStatusFailed
	default:
		// Остальные события принимаются и игнорируются.
		return nil
	}

	entity := p.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		return nil
	}

	order, err := s.repo.GetOrderBySessionRef(ctx, entity.OrderID)
	if err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// Не каждое событие провайдера относится к нашим заказам.
			return nil
		}
		return err
	}

	if order.PaymentStatus == model.PaymentStatusPaid {
		return nil
	}

	if _, err := s.repo.ApplySettlement(ctx, order.ID, entity.ID, status); err != nil {
		return err
	}

	return nil
}
