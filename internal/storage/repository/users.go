package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// UpsertUser сохраняет нового пользователя или обновляет имя существующего.
func (s *Storage) UpsertUser(ctx context.Context, user models.User) error {
	const op = "storage.UpsertUser"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (user_id, username, first_name, last_name)
			  VALUES ($1, $2, $3, $4)
			  ON CONFLICT (user_id) DO UPDATE
			  SET username = $2, first_name = $3, last_name = $4`
	_, err := s.DB.ExecContext(ctx, query,
		user.UserID, user.Username, user.FirstName, user.LastName)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// GetUser возвращает пользователя по его ID.
func (s *Storage) GetUser(ctx context.Context, userID int64) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, username, first_name, last_name, registration_date,
			      balance, is_admin, referral_milestone
			  FROM users WHERE user_id = $1`
	row := s.DB.QueryRowContext(ctx, query, userID)

	var u models.User
	var username, firstName, lastName sql.NullString
	if err := row.Scan(&u.UserID, &username, &firstName, &lastName,
		&u.RegistrationDate, &u.Balance, &u.IsAdmin, &u.ReferralMilestone); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	u.Username = username.String
	u.FirstName = firstName.String
	u.LastName = lastName.String
	return &u, nil
}

// UpdateUserBalance изменяет баланс пользователя на amount
// и возвращает новый баланс.
func (s *Storage) UpdateUserBalance(ctx context.Context, userID int64, amount int) (int, error) {
	const op = "storage.UpdateUserBalance"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET balance = balance + $1 WHERE user_id = $2
			  RETURNING balance`
	var balance int
	if err := s.DB.QueryRowContext(ctx, query, amount, userID).Scan(&balance); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return balance, nil
}

// UpdateReferralMilestone поднимает отметку достигнутого уровня
// реферальной программы. Отметка монотонна и никогда не уменьшается.
func (s *Storage) UpdateReferralMilestone(ctx context.Context, userID int64, milestone int) error {
	const op = "storage.UpdateReferralMilestone"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users SET referral_milestone = $1
			  WHERE user_id = $2 AND referral_milestone < $1`
	_, err := s.DB.ExecContext(ctx, query, milestone, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListUserIDs возвращает ID всех пользователей.
func (s *Storage) ListUserIDs(ctx context.Context) ([]int64, error) {
	const op = "storage.ListUserIDs"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT user_id FROM users ORDER BY user_id`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsers возвращает всех пользователей для выгрузки.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id, username, first_name, last_name, registration_date,
			      balance, is_admin, referral_milestone
			  FROM users ORDER BY registration_date`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		var u models.User
		var username, firstName, lastName sql.NullString
		if err := rows.Scan(&u.UserID, &username, &firstName, &lastName,
			&u.RegistrationDate, &u.Balance, &u.IsAdmin, &u.ReferralMilestone); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		u.Username = username.String
		u.FirstName = firstName.String
		u.LastName = lastName.String
		result = append(result, &u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsersRegisteredBefore возвращает ID пользователей,
// зарегистрированных раньше указанного момента.
func (s *Storage) ListUsersRegisteredBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	const op = "storage.ListUsersRegisteredBefore"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT user_id FROM users WHERE registration_date < $1`
	rows, err := s.DB.QueryContext(ctx, query, cutoff)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// ListUsersWithActiveSubscription возвращает ID пользователей,
// у которых есть действующая подписка.
func (s *Storage) ListUsersWithActiveSubscription(ctx context.Context) ([]int64, error) {
	const op = "storage.ListUsersWithActiveSubscription"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT DISTINCT u.user_id
			  FROM users u
			  JOIN subscriptions s ON u.user_id = s.user_id
			  WHERE s.status = $1 AND s.end_date > NOW()`
	rows, err := s.DB.QueryContext(ctx, query, models.SubscriptionActive)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
