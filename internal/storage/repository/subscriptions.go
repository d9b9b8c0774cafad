package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// FindActiveSubscription возвращает активную подписку пользователя
// с наибольшим end_date, независимо от того, истек ли он.
// Используется логикой продления, которой нужна и устаревшая активная запись.
func (s *Storage) FindActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.FindActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subscription_id, user_id, start_date, end_date, status
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2
			  ORDER BY end_date DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userID, models.SubscriptionActive)

	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.StartDate, &sub.EndDate, &sub.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// FindCurrentSubscription возвращает действующую (активную и не истекшую)
// подписку пользователя с наибольшим end_date.
func (s *Storage) FindCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error) {
	const op = "storage.FindCurrentSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subscription_id, user_id, start_date, end_date, status
			  FROM subscriptions
			  WHERE user_id = $1 AND status = $2 AND end_date > NOW()
			  ORDER BY end_date DESC
			  LIMIT 1`
	row := s.DB.QueryRowContext(ctx, query, userID, models.SubscriptionActive)

	var sub models.Subscription
	if err := row.Scan(&sub.ID, &sub.UserID, &sub.StartDate, &sub.EndDate, &sub.Status); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &sub, nil
}

// CreateSubscription вставляет новую подписку и возвращает её ID.
func (s *Storage) CreateSubscription(ctx context.Context, userID int64, endDate time.Time) (int, error) {
	const op = "storage.CreateSubscription"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO subscriptions (user_id, end_date, status)
			  VALUES ($1, $2, $3)
			  RETURNING subscription_id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query, userID, endDate, models.SubscriptionActive).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// ExtendSubscription устанавливает новую дату окончания подписки.
func (s *Storage) ExtendSubscription(ctx context.Context, subscriptionID int, endDate time.Time) error {
	const op = "storage.ExtendSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET end_date = $1 WHERE subscription_id = $2`
	_, err := s.DB.ExecContext(ctx, query, endDate, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// DeactivateSubscription переводит подписку в статус expired.
func (s *Storage) DeactivateSubscription(ctx context.Context, subscriptionID int) error {
	const op = "storage.DeactivateSubscription"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE subscriptions SET status = $1 WHERE subscription_id = $2`
	_, err := s.DB.ExecContext(ctx, query, models.SubscriptionExpired, subscriptionID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListExpiredSubscriptions возвращает активные подписки,
// чей end_date уже в прошлом.
func (s *Storage) ListExpiredSubscriptions(ctx context.Context) ([]*models.Subscription, error) {
	const op = "storage.ListExpiredSubscriptions"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subscription_id, user_id, start_date, end_date, status
			  FROM subscriptions
			  WHERE status = $1 AND end_date < NOW()`
	rows, err := s.DB.QueryContext(ctx, query, models.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.StartDate, &sub.EndDate, &sub.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListSubscriptionsExpiringOn возвращает активные подписки,
// чей end_date приходится точно на указанную календарную дату.
func (s *Storage) ListSubscriptionsExpiringOn(ctx context.Context, date time.Time) ([]*models.Subscription, error) {
	const op = "storage.ListSubscriptionsExpiringOn"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT subscription_id, user_id, start_date, end_date, status
			  FROM subscriptions
			  WHERE status = $1 AND end_date::DATE = $2::DATE`
	rows, err := s.DB.QueryContext(ctx, query, models.SubscriptionActive, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Subscription
	for rows.Next() {
		var sub models.Subscription
		if err := rows.Scan(&sub.ID, &sub.UserID, &sub.StartDate, &sub.EndDate, &sub.Status); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, &sub)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
