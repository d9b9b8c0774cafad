package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/x10club/club-bot/internal/models"
)

// HasReferral сообщает, зафиксирован ли уже пользователь как приглашенный.
func (s *Storage) HasReferral(ctx context.Context, userID int64) (bool, error) {
	const op = "storage.HasReferral"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS(SELECT 1 FROM referrals WHERE user_id = $1)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreateReferral фиксирует связь приглашенный -> пригласивший.
// Уникальный индекс по user_id гарантирует не более одной записи на пользователя.
func (s *Storage) CreateReferral(ctx context.Context, referrerID, userID int64) error {
	const op = "storage.CreateReferral"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO referrals (referrer_id, user_id)
			  VALUES ($1, $2)
			  ON CONFLICT (user_id) DO NOTHING`
	_, err := s.DB.ExecContext(ctx, query, referrerID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetReferrer возвращает ID пригласившего для пользователя.
func (s *Storage) GetReferrer(ctx context.Context, userID int64) (int64, error) {
	const op = "storage.GetReferrer"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT referrer_id FROM referrals WHERE user_id = $1`
	var referrerID int64
	err := s.DB.QueryRowContext(ctx, query, userID).Scan(&referrerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return referrerID, nil
}

// CountReferrals возвращает число приглашенных пользователем.
func (s *Storage) CountReferrals(ctx context.Context, referrerID int64) (int, error) {
	const op = "storage.CountReferrals"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// CountActiveReferrals возвращает число активных приглашенных пользователем.
// Используется напоминаниями реферальной программы.
func (s *Storage) CountActiveReferrals(ctx context.Context, referrerID int64) (int, error) {
	const op = "storage.CountActiveReferrals"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM referrals WHERE referrer_id = $1 AND is_active = TRUE`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, referrerID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// ListReferrals возвращает приглашенных пользователем, от новых к старым.
func (s *Storage) ListReferrals(ctx context.Context, referrerID int64) ([]*models.Referral, error) {
	const op = "storage.ListReferrals"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT referral_id, user_id, referrer_id, join_date, is_active
			  FROM referrals
			  WHERE referrer_id = $1
			  ORDER BY join_date DESC`
	rows, err := s.DB.QueryContext(ctx, query, referrerID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Referral
	for rows.Next() {
		var r models.Referral
		if err := rows.Scan(&r.ID, &r.UserID, &r.ReferrerID, &r.JoinDate, &r.IsActive); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
