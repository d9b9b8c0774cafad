package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// CollectStats собирает срез статистики для ежедневного отчета:
// общее число пользователей, активные подписки, рефералы
// и подтвержденные платежи за указанную дату.
func (s *Storage) CollectStats(ctx context.Context, date time.Time) (*models.Stats, error) {
	const op = "storage.CollectStats"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	var st models.Stats

	query := `SELECT COUNT(*) FROM users`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&st.TotalUsers); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query = `SELECT COUNT(*) FROM subscriptions WHERE status = $1 AND end_date > NOW()`
	if err := s.DB.QueryRowContext(ctx, query, models.SubscriptionActive).Scan(&st.ActiveSubscriptions); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	query = `SELECT COUNT(*) FROM referrals`
	if err := s.DB.QueryRowContext(ctx, query).Scan(&st.TotalReferrals); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	payments, err := s.CountPaymentsOn(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	st.DailyPayments = payments

	return &st, nil
}
