package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// CreateCryptoPayment вставляет запись о крипто-инвойсе в статусе pending.
func (s *Storage) CreateCryptoPayment(ctx context.Context, userID int64, invoiceID, asset, amount, productType string) (int, error) {
	const op = "storage.CreateCryptoPayment"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO crypto_payments (user_id, invoice_id, asset, amount, product_type, status)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  RETURNING payment_id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		userID, invoiceID, asset, amount, productType, models.PaymentPending).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ListPendingCryptoPayments возвращает все неоплаченные крипто-инвойсы
// вместе с данными пользователей для уведомлений.
func (s *Storage) ListPendingCryptoPayments(ctx context.Context) ([]*models.PendingCryptoPayment, error) {
	const op = "storage.ListPendingCryptoPayments"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT cp.payment_id, cp.user_id, cp.invoice_id, cp.asset, cp.amount,
					 cp.product_type, cp.status, cp.created_at, cp.paid_at,
					 u.username, u.first_name
			  FROM crypto_payments cp
			  JOIN users u ON u.user_id = cp.user_id
			  WHERE cp.status = $1
			  ORDER BY cp.created_at`
	rows, err := s.DB.QueryContext(ctx, query, models.PaymentPending)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.PendingCryptoPayment
	for rows.Next() {
		var pcp models.PendingCryptoPayment
		var paidAt sql.NullTime
		var username, firstName sql.NullString
		err := rows.Scan(&pcp.ID, &pcp.UserID, &pcp.InvoiceID, &pcp.Asset, &pcp.Amount,
			&pcp.ProductType, &pcp.Status, &pcp.CreatedAt, &paidAt,
			&username, &firstName)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		if paidAt.Valid {
			pcp.PaidAt = &paidAt.Time
		}
		pcp.Username = username.String
		pcp.FirstName = firstName.String
		result = append(result, &pcp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ConfirmCryptoPayment атомарно переводит крипто-платеж из pending в confirmed.
// Возвращает false, если инвойс уже обработан или не найден.
func (s *Storage) ConfirmCryptoPayment(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error) {
	const op = "storage.ConfirmCryptoPayment"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE crypto_payments
			  SET status = $1, paid_at = $2
			  WHERE invoice_id = $3 AND status = $4`
	res, err := s.DB.ExecContext(ctx, query,
		models.PaymentConfirmed, paidAt, invoiceID, models.PaymentPending)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return affected > 0, nil
}

// ExpireCryptoPayment переводит крипто-платеж из pending в expired.
func (s *Storage) ExpireCryptoPayment(ctx context.Context, invoiceID string) error {
	const op = "storage.ExpireCryptoPayment"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE crypto_payments
			  SET status = $1
			  WHERE invoice_id = $2 AND status = $3`
	_, err := s.DB.ExecContext(ctx, query,
		models.PaymentExpired, invoiceID, models.PaymentPending)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}
