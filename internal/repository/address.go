package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mmeshcher/storefront-system/internal/model"
)

const addressColumns = `id, user_id, name, line1, line2, city, state, pincode, phone, is_default, created_at`

func scanAddress(row pgx.Row) (*model.Address, error) {
	var a model.Address
	err := row.Scan(&a.ID, &a.UserID, &a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.Pincode, &a.Phone, &a.IsDefault, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// GetAddressesByUser возвращает адресную книгу пользователя, адрес по умолчанию первым.
func (r *PostgresRepository) GetAddressesByUser(ctx context.Context, userID int64) ([]model.Address, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+addressColumns+`
		 FROM addresses
		 WHERE user_id = $1
		 ORDER BY is_default DESC, created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select addresses: %w", err)
	}
	defer rows.Close()

	var addresses []model.Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, fmt.Errorf("scan address: %w", err)
		}
		addresses = append(addresses, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return addresses, nil
}

// GetAddress возвращает адрес пользователя по идентификатору.
func (r *PostgresRepository) GetAddress(ctx context.Context, userID, addressID int64) (*model.Address, error) {
	a, err := scanAddress(r.pool.QueryRow(ctx,
		`SELECT `+addressColumns+` FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAddressNotFound
		}
		return nil, fmt.Errorf("get address: %w", err)
	}
	return a, nil
}

// CreateAddress создаёт адрес в адресной книге пользователя.
// Первый адрес всегда становится адресом по умолчанию.
func (r *PostgresRepository) CreateAddress(ctx context.Context, a *model.Address) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var cnt int64
	if err := tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM addresses WHERE user_id = $1`, a.UserID,
	).Scan(&cnt); err != nil {
		return 0, fmt.Errorf("count addresses: %w", err)
	}

	makeDefault := a.IsDefault || cnt == 0

	if makeDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE WHERE user_id = $1`, a.UserID,
		); err != nil {
			return 0, fmt.Errorf("reset default address: %w", err)
		}
	}

	var id int64
	err = tx.QueryRow(ctx,
		`INSERT INTO addresses (user_id, name, line1, line2, city, state, pincode, phone, is_default)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		a.UserID, a.Name, a.Line1, a.Line2, a.City, a.State, a.Pincode, a.Phone, makeDefault,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit tx: %w", err)
	}

	return id, nil
}

// UpdateAddress обновляет адрес пользователя.
func (r *PostgresRepository) UpdateAddress(ctx context.Context, a *model.Address) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var existingID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM addresses WHERE id = $1 AND user_id = $2 FOR UPDATE`,
		a.ID, a.UserID,
	).Scan(&existingID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrAddressNotFound
		}
		return fmt.Errorf("lock address: %w", err)
	}

	if a.IsDefault {
		if _, err := tx.Exec(ctx,
			`UPDATE addresses SET is_default = FALSE WHERE user_id = $1`, a.UserID,
		); err != nil {
			return fmt.Errorf("reset default address: %w", err)
		}
	}

	_, err = tx.Exec(ctx,
		`UPDATE addresses
		 SET name = $2, line1 = $3, line2 = $4, city = $5, state = $6, pincode = $7, phone = $8, is_default = $9
		 WHERE id = $1`,
		a.ID, a.Name, a.Line1, a.Line2, a.City, a.State, a.Pincode, a.Phone, a.IsDefault,
	)
	if err != nil {
		return fmt.Errorf("update address: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// DeleteAddress удаляет адрес пользователя.
func (r *PostgresRepository) DeleteAddress(ctx context.Context, userID, addressID int64) error {
	cmdTag, err := r.pool.Exec(ctx,
		`DELETE FROM addresses WHERE id = $1 AND user_id = $2`,
		addressID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete address: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrAddressNotFound
	}
	return nil
}
