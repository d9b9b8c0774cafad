package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// CreateEvent вставляет новое мероприятие и возвращает его ID.
func (s *Storage) CreateEvent(ctx context.Context, name, description string, eventDate time.Time, price int, maxParticipants *int) (int, error) {
	const op = "storage.CreateEvent"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO events (name, description, event_date, price, max_participants)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING event_id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query,
		name, description, eventDate, price, maxParticipants).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetEvent возвращает мероприятие по ID.
func (s *Storage) GetEvent(ctx context.Context, eventID int) (*models.Event, error) {
	const op = "storage.GetEvent"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT event_id, name, description, event_date, price, max_participants
			  FROM events
			  WHERE event_id = $1`
	row := s.DB.QueryRowContext(ctx, query, eventID)

	var e models.Event
	var description sql.NullString
	err := row.Scan(&e.ID, &e.Name, &description, &e.EventDate, &e.Price, &e.MaxParticipants)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, ErrNotFound)
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	e.Description = description.String
	return &e, nil
}

// ListUpcomingEvents возвращает мероприятия с датой в будущем,
// от ближайших к дальним.
func (s *Storage) ListUpcomingEvents(ctx context.Context) ([]*models.Event, error) {
	const op = "storage.ListUpcomingEvents"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT event_id, name, description, event_date, price, max_participants
			  FROM events
			  WHERE event_date > NOW()
			  ORDER BY event_date`
	rows, err := s.DB.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.Event
	for rows.Next() {
		var e models.Event
		var description sql.NullString
		if err := rows.Scan(&e.ID, &e.Name, &description, &e.EventDate, &e.Price, &e.MaxParticipants); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		e.Description = description.String
		result = append(result, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// CountEventRegistrations возвращает число регистраций на мероприятие.
func (s *Storage) CountEventRegistrations(ctx context.Context, eventID int) (int, error) {
	const op = "storage.CountEventRegistrations"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT COUNT(*) FROM event_registrations WHERE event_id = $1`
	var count int
	if err := s.DB.QueryRowContext(ctx, query, eventID).Scan(&count); err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return count, nil
}

// HasEventRegistration сообщает, зарегистрирован ли пользователь на мероприятие.
func (s *Storage) HasEventRegistration(ctx context.Context, eventID int, userID int64) (bool, error) {
	const op = "storage.HasEventRegistration"
	select {
	case <-ctx.Done():
		return false, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT EXISTS(SELECT 1 FROM event_registrations WHERE event_id = $1 AND user_id = $2)`
	var exists bool
	if err := s.DB.QueryRowContext(ctx, query, eventID, userID).Scan(&exists); err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreateEventRegistration регистрирует пользователя на мероприятие.
// PaymentID передается nil для бесплатных регистраций.
func (s *Storage) CreateEventRegistration(ctx context.Context, eventID int, userID int64, paymentID *int) (int, error) {
	const op = "storage.CreateEventRegistration"
	select {
	case <-ctx.Done():
		return 0, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO event_registrations (event_id, user_id, payment_id)
			  VALUES ($1, $2, $3)
			  RETURNING registration_id`
	var newID int
	err := s.DB.QueryRowContext(ctx, query, eventID, userID, paymentID).Scan(&newID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}
