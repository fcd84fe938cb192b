package repository

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/storefront-system/internal/model"
)

const orderColumns = `id, user_id, number, status, payment_status, payment_ref, session_ref, total,
	shipping_name, shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_pincode, shipping_phone,
	created_at, updated_at`

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status, paymentStatus string
	err := row.Scan(
		&o.ID, &o.UserID, &o.Number, &status, &paymentStatus, &o.PaymentRef, &o.SessionRef, &o.TotalCents,
		&o.ShippingAddress.Name, &o.ShippingAddress.Line1, &o.ShippingAddress.Line2,
		&o.ShippingAddress.City, &o.ShippingAddress.State, &o.ShippingAddress.Pincode, &o.ShippingAddress.Phone,
		&o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.PaymentStatus(paymentStatus)
	return &o, nil
}

type cartLine struct {
	productID int64
	quantity  int64
	price     int64
	name      string
}

// CreateOrderFromCart оформляет заказ из текущей корзины пользователя в одной
// транзакции: блокирует строки товаров, проверяет наличие и остатки, копирует
// адрес доставки, создаёт заказ с позициями, списывает остатки и очищает
// корзину. При любой ошибке транзакция откатывается целиком.
//
// Блокировка товаров выполняется строго в порядке возрастания id — единый
// порядок захвата исключает взаимоблокировки между параллельными оформлениями
// с пересекающимися наборами товаров.
func (r *PostgresRepository) CreateOrderFromCart(ctx context.Context, userID, addressID int64, number string) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Позиции корзины с текущими ценами — пока только кандидаты, без блокировки.
	rows, err := tx.Query(ctx,
		`SELECT ci.product_id, ci.quantity, p.price, p.name
		 FROM cart_items ci
		 JOIN products p ON p.id = ci.product_id
		 WHERE ci.user_id = $1
		 ORDER BY ci.added_at`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("select cart: %w", err)
	}

	var lines []cartLine
	for rows.Next() {
		var l cartLine
		if err := rows.Scan(&l.productID, &l.quantity, &l.price, &l.name); err != nil {
			rows.Close()
			return 0, fmt.Errorf("scan cart line: %w", err)
		}
		lines = append(lines, l)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}

	if len(lines) == 0 {
		return 0, ErrEmptyCart
	}

	seen := make(map[int64]struct{}, len(lines))
	productIDs := make([]int64, 0, len(lines))
	for _, l := range lines {
		if _, ok := seen[l.productID]; ok {
			continue
		}
		seen[l.productID] = struct{}{}
		productIDs = append(productIDs, l.productID)
	}
	slices.Sort(productIDs)

	lockRows, err := tx.Query(ctx,
		`SELECT id, stock, is_active
		 FROM products
		 WHERE id = ANY($1)
		 ORDER BY id
		 FOR UPDATE`,
		productIDs,
	)
	if err != nil {
		return 0, fmt.Errorf("lock products: %w", err)
	}

	type lockedProduct struct {
		stock    int64
		isActive bool
	}
	locked := make(map[int64]lockedProduct, len(productIDs))
	for lockRows.Next() {
		var id int64
		var lp lockedProduct
		if err := lockRows.Scan(&id, &lp.stock, &lp.isActive); err != nil {
			lockRows.Close()
			return 0, fmt.Errorf("scan locked product: %w", err)
		}
		locked[id] = lp
	}
	lockRows.Close()
	if err := lockRows.Err(); err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}

	// Валидация под блокировкой: снимок корзины мог устареть.
	for _, l := range lines {
		lp, ok := locked[l.productID]
		if !ok || !lp.isActive {
			return 0, fmt.Errorf("%w: %q", ErrProductUnavailable, l.name)
		}
		if l.quantity > lp.stock {
			return 0, fmt.Errorf("%w: only %d unit(s) of %q available", ErrInsufficientStock, lp.stock, l.name)
		}
	}

	var addr model.ShippingAddress
	err = tx.QueryRow(ctx,
		`SELECT name, line1, line2, city, state, pincode, phone
		 FROM addresses
		 WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	).Scan(&addr.Name, &addr.Line1, &addr.Line2, &addr.City, &addr.State, &addr.Pincode, &addr.Phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAddressNotFound
		}
		return 0, fmt.Errorf("get shipping address: %w", err)
	}

	// Итог считается только из заблокированных цен; значения клиента не используются.
	var total int64
	for _, l := range lines {
		total += l.price * l.quantity
	}

	var orderID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO orders
		   (user_id, number, status, payment_status, total,
		    shipping_name, shipping_line1, shipping_line2, shipping_city, shipping_state, shipping_pincode, shipping_phone)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 RETURNING id`,
		userID, number, string(model.OrderStatusPending), string(model.PaymentStatusPending), total,
		addr.Name, addr.Line1, addr.Line2, addr.City, addr.State, addr.Pincode, addr.Phone,
	).Scan(&orderID)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrOrderNumberTaken, number)
		}
		return 0, fmt.Errorf("insert order: %w", err)
	}

	// Позиции, списание остатков и очистка корзины уходят одним батчем.
	batch := &pgx.Batch{}
	for _, l := range lines {
		batch.Queue(
			`INSERT INTO order_items (order_id, product_id, quantity, unit_price) VALUES ($1, $2, $3, $4)`,
			orderID, l.productID, l.quantity, l.price,
		)
		batch.Queue(
			`UPDATE products SET stock = stock - $2, updated_at = now() WHERE id = $1`,
			l.productID, l.quantity,
		)
	}
	batch.Queue(`DELETE FROM cart_items WHERE user_id = $1`, userID)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return 0, fmt.Errorf("write order lines: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return orderID, nil
}

// GetOrder возвращает заказ пользователя без позиций.
func (r *PostgresRepository) GetOrder(ctx context.Context, userID, orderID int64) (*model.Order, error) {
	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`,
		orderID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrderWithItems возвращает заказ пользователя вместе с позициями и
// отображаемыми данными товаров.
func (r *PostgresRepository) GetOrderWithItems(ctx context.Context, userID, orderID int64) (*model.OrderWithItems, error) {
	o, err := r.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx,
		`SELECT oi.id, oi.order_id, oi.product_id, oi.quantity, oi.unit_price, p.name, p.slug
		 FROM order_items oi
		 JOIN products p ON p.id = oi.product_id
		 WHERE oi.order_id = $1
		 ORDER BY oi.id`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order items: %w", err)
	}
	defer rows.Close()

	res := &model.OrderWithItems{Order: *o}
	for rows.Next() {
		var it model.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.Quantity, &it.UnitPriceCents, &it.ProductName, &it.ProductSlug); err != nil {
			return nil, fmt.Errorf("scan order item: %w", err)
		}
		res.Items = append(res.Items, it)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetOrdersByUser возвращает заказы пользователя, новые первыми.
func (r *PostgresRepository) GetOrdersByUser(ctx context.Context, userID int64) ([]model.Order, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE user_id = $1 ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return orders, nil
}

// SetSessionRef сохраняет ссылку платёжной сессии провайдера на заказе.
// Повторный вызов перезаписывает предыдущую ссылку: проверкой оплаты
// принимается только последняя сессия.
func (r *PostgresRepository) SetSessionRef(ctx context.Context, orderID int64, sessionRef string) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders SET session_ref = $2, updated_at = now() WHERE id = $1`,
		orderID, sessionRef,
	)
	if err != nil {
		return fmt.Errorf("set session ref: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrOrderNotFound
	}
	return nil
}

// GetOrderBySessionRef ищет заказ по ссылке платёжной сессии провайдера.
// Используется вебхуком, у которого нет аутентифицированного пользователя.
func (r *PostgresRepository) GetOrderBySessionRef(ctx context.Context, sessionRef string) (*model.Order, error) {
	if sessionRef == "" {
		return nil, ErrOrderNotFound
	}

	o, err := scanOrder(r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE session_ref = $1`,
		sessionRef,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by session ref: %w", err)
	}
	return o, nil
}

// ApplySettlement применяет результат оплаты к заказу. Единственная точка
// перевода payment_status: успешная оплата дополнительно переводит заказ из
// pending в confirmed. Обновление защищено условием payment_status <> 'paid',
// поэтому повторная доставка того же события ничего не меняет.
// Возвращает true, если состояние заказа было изменено.
func (r *PostgresRepository) ApplySettlement(ctx context.Context, orderID int64, paymentRef string, status model.PaymentStatus) (bool, error) {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE orders
		 SET payment_status = $2,
		     payment_ref = $3,
		     status = CASE WHEN $2 = 'paid' AND status = 'pending' THEN 'confirmed' ELSE status END,
		     updated_at = now()
		 WHERE id = $1 AND payment_status <> 'paid'`,
		orderID, string(status), paymentRef,
	)
	if err != nil {
		return false, fmt.Errorf("apply settlement: %w", err)
	}
	return cmdTag.RowsAffected() > 0, nil
}
