package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/storefront-system/internal/model"
)

// GetCartItems возвращает позиции корзины пользователя вместе с актуальными
// данными товаров. Чтение без блокировок: транзакция оформления заказа
// перечитывает товары заново под блокировкой.
func (r *PostgresRepository) GetCartItems(ctx context.Context, userID int64) ([]model.CartItemWithProduct, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT ci.product_id, ci.quantity,
		        p.name, p.slug, p.price, p.images, p.stock, p.is_active
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.added_at`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select cart items: %w", err)
	}
	defer rows.Close()

	var items []model.CartItemWithProduct
	for rows.Next() {
		var it model.CartItemWithProduct
		if err := rows.Scan(&it.ProductID, &it.Quantity, &it.Name, &it.Slug, &it.PriceCents, &it.Images, &it.Stock, &it.IsActive); err != nil {
			return nil, fmt.Errorf("scan cart item: %w", err)
		}
		items = append(items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return items, nil
}

type productCartCheck struct {
	name       string
	stock      int64
	isActive   bool
	currentQty int64
}

func (r *PostgresRepository) checkProductForCart(ctx context.Context, userID, productID int64) (*productCartCheck, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT p.name, p.stock, p.is_active, COALESCE(ci.quantity, 0)
		 FROM products p
		 LEFT JOIN cart_items ci ON ci.product_id = p.id AND ci.user_id = $1
		 WHERE p.id = $2`,
		userID, productID,
	)

	var c productCartCheck
	if err := row.Scan(&c.name, &c.stock, &c.isActive, &c.currentQty); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrProductNotFound
		}
		return nil, fmt.Errorf("check product: %w", err)
	}

	return &c, nil
}

// AddCartItem добавляет товар в корзину или увеличивает количество существующей позиции.
// Проверка остатка здесь предварительная: окончательная валидация выполняется
// под блокировкой при оформлении заказа.
func (r *PostgresRepository) AddCartItem(ctx context.Context, userID, productID, quantity int64) error {
	c, err := r.checkProductForCart(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !c.isActive {
		return fmt.Errorf("%w: %q", ErrProductUnavailable, c.name)
	}
	if c.currentQty+quantity > c.stock {
		return fmt.Errorf("%w: only %d unit(s) of %q available", ErrInsufficientStock, c.stock-c.currentQty, c.name)
	}

	_, err = r.pool.Exec(ctx,
		`INSERT INTO cart_items (user_id, product_id, quantity)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, product_id) DO UPDATE SET quantity = cart_items.quantity + excluded.quantity`,
		userID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("upsert cart item: %w", err)
	}

	return nil
}

// SetCartItemQuantity устанавливает количество позиции корзины. Нулевое
// количество удаляет позицию.
func (r *PostgresRepository) SetCartItemQuantity(ctx context.Context, userID, productID, quantity int64) error {
	if quantity == 0 {
		return r.DeleteCartItem(ctx, userID, productID)
	}

	c, err := r.checkProductForCart(ctx, userID, productID)
	if err != nil {
		return err
	}
	if !c.isActive {
		return fmt.Errorf("%w: %q", ErrProductUnavailable, c.name)
	}
	if c.currentQty == 0 {
		return ErrCartItemNotFound
	}
	if quantity > c.stock {
		return fmt.Errorf("%w: only %d unit(s) of %q available", ErrInsufficientStock, c.stock, c.name)
	}

	_, err = r.pool.Exec(ctx,
		`UPDATE cart_items SET quantity = $3 WHERE user_id = $1 AND product_id = $2`,
		userID, productID, quantity,
	)
	if err != nil {
		return fmt.Errorf("update cart item: %w", err)
	}

	return nil
}

// DeleteCartItem удаляет позицию из корзины. Идемпотентна: отсутствие позиции не считается ошибкой.
func (r *PostgresRepository) DeleteCartItem(ctx context.Context, userID, productID int64) error {
	_, err := r.pool.Exec(ctx,
		`DELETE FROM cart_items WHERE user_id = $1 AND product_id = $2`,
		userID, productID,
	)
	if err != nil {
		return fmt.Errorf("delete cart item: %w", err)
	}
	return nil
}
