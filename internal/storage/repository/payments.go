package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// CreatePayment вставляет новый платеж в статусе pending и возвращает его ID.
func (s *Storage) CreatePayment(ctx context.Context, userID int64, amount int, productType, paymentMethod string) (int, error) {
	const op = "storage.CreatePayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO payments (user_id, amount, product_type, payment_method, status)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING payment_id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		userID, amount, productType, paymentMethod, models.PaymentPending).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetPayment возвращает платеж по его ID.
func (s *Storage) GetPayment(ctx context.Context, paymentID int) (*models.Payment, error) {
	const op = "storage.GetPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT payment_id, user_id, amount, product_type, payment_method, status, created_at, confirmed_at
			  FROM payments
			  WHERE payment_id = $1`
	row := s.DB.QueryRowContext(ctx, query, paymentID)

	var p models.Payment
	var confirmedAt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.ProductType, &p.PaymentMethod,
		&p.Status, &p.CreatedAt, &confirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	return &p, nil
}

// FindPendingPayment ищет незавершенный платеж пользователя
// по типу продукта и способу оплаты, созданный не раньше since.
func (s *Storage) FindPendingPayment(ctx context.Context, userID int64, productType, paymentMethod string, since time.Time) (*models.Payment, error) {
	const op = "storage.FindPendingPayment"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT payment_id, user_id, amount, product_type, payment_method, status, created_at, confirmed_at
			  FROM payments
			  WHERE user_id = $1 AND product_type = $2 AND payment_method = $3
					AND status = $4 AND created_at >= $5
			  ORDER BY created_at DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query,
		userID, productType, paymentMethod, models.PaymentPending, since)

	var p models.Payment
	var confirmedAt sql.NullTime
	err := row.Scan(&p.ID, &p.UserID, &p.Amount, &p.ProductType, &p.PaymentMethod,
		&p.Status, &p.CreatedAt, &confirmedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if confirmedAt.Valid {
		p.ConfirmedAt = &confirmedAt.Time
	}
	return &p, nil
}

// ConfirmPayment атомарно переводит платеж из pending в confirmed.
// Возвращает false, если платеж уже был подтвержден или не найден.
func (s *Storage) ConfirmPayment(ctx context.Context, paymentID int, confirmedAt time.Time) (bool, error) {
	const op = "storage.ConfirmPayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE payments
			  SET status = $1, confirmed_at = $2
			  WHERE payment_id = $3 AND status = $4`
	res, err := s.DB.ExecContext(ctx, query,
		models.PaymentConfirmed, confirmedAt, paymentID, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// ListPendingPayments возвращает все платежи в статусе pending,
// от старых к новым.
func (s *Storage) ListPendingPayments(ctx context.Context) ([]*models.Payment, error) {
	const op = "storage.ListPendingPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT payment_id, user_id, amount, product_type, payment_method, status, created_at, confirmed_at
			  FROM payments
			  WHERE status = $1
			  ORDER BY created_at`
	rows, err := s.DB.QueryContext(ctx, query, models.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Payment
	for rows.Next() {
		var p models.Payment
		var confirmedAt sql.NullTime
		err := rows.Scan(&p.ID, &p.UserID, &p.Amount, &p.ProductType, &p.PaymentMethod,
			&p.Status, &p.CreatedAt, &confirmedAt)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if confirmedAt.Valid {
			p.ConfirmedAt = &confirmedAt.Time
		}
		result = append(result, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountPaymentsOn возвращает число подтвержденных платежей за календарную дату.
func (s *Storage) CountPaymentsOn(ctx context.Context, date time.Time) (int, error) {
	const op = "storage.CountPaymentsOn"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*)
			  FROM payments
			  WHERE status = $1 AND confirmed_at::DATE = $2::DATE`
	var count int
	err := s.DB.QueryRowContext(ctx, query, models.PaymentConfirmed, date).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}
