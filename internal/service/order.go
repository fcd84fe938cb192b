package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/mmeshcher/storefront-system/internal/model"
	"github.com/mmeshcher/storefront-system/internal/repository"
)

const orderNumberPrefix = "SF"

// newOrderNumber генерирует отображаемый номер заказа: префикс, дата по UTC
// и случайный шестнадцатеричный суффикс. Уникальность не гарантируется
// формально — коллизия ловится ограничением БД и повторяется в CreateOrder.
func newOrderNumber() (string, error) {
	suffix := make([]byte, 4)
	if _, err := rand.Read(suffix); err != nil {
		return "", fmt.Errorf("generate order number: %w", err)
	}
	return orderNumberPrefix + time.Now().UTC().Format("20060102") + strings.ToUpper(hex.EncodeToString(suffix)), nil
}

// CreateOrder оформляет заказ из корзины пользователя и возвращает созданный
// заказ с позициями. Коллизия номера заказа повторяется ограниченное число раз,
// каждый раз с новым номером и с чтением свежего состояния корзины.
func (s *Service) CreateOrder(ctx context.Context, userID, addressID int64) (*model.OrderWithItems, error) {
	var orderID int64

	backoff := retry.WithMaxRetries(2, retry.NewConstant(10*time.Millisecond))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		number, err := newOrderNumber()
		if err != nil {
			return err
		}

		id, err := s.repo.CreateOrderFromCart(ctx, userID, addressID, number)
		if err != nil {
			if errors.Is(err, repository.ErrOrderNumberTaken) {
				return retry.RetryableError(err)
			}
			return err
		}

		orderID = id
		return nil
	})
	if err != nil {
		return nil, err
	}

	// Контрольное чтение зафиксированного заказа вне транзакции. Неудача здесь
	// означает внутреннюю рассогласованность, а не ошибку пользователя.
	order, err := s.repo.GetOrderWithItems(ctx, userID, orderID)
	if err != nil {
		return nil, fmt.Errorf("read created order %d: %w", orderID, err)
	}

	return order, nil
}

// GetOrder возвращает заказ пользователя с позициями.
func (s *Service) GetOrder(ctx context.Context, userID, orderID int64) (*model.OrderWithItems, error) {
	return s.repo.GetOrderWithItems(ctx, userID, orderID)
}

// GetOrdersByUser возвращает список заказов пользователя.
func (s *Service) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	return s.repo.GetOrdersByUser(ctx, userID)
}
