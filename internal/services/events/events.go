// Package services содержит бизнес-логику мероприятий клуба:
// создание, регистрация участников, лимит мест.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/x10club/club-bot/internal/models"
)

// ErrEventFull возвращается при регистрации на мероприятие без свободных мест.
var ErrEventFull = errors.New("event is full")

// ErrAlreadyRegistered возвращается при повторной регистрации.
var ErrAlreadyRegistered = errors.New("already registered")

// EventRepository определяет методы для работы с мероприятиями в хранилище.
type EventRepository interface {
	CreateEvent(ctx context.Context, name, description string, eventDate time.Time, price int, maxParticipants *int) (int, error)
	GetEvent(ctx context.Context, eventID int) (*models.Event, error)
	ListUpcomingEvents(ctx context.Context) ([]*models.Event, error)
	CountEventRegistrations(ctx context.Context, eventID int) (int, error)
	HasEventRegistration(ctx context.Context, eventID int, userID int64) (bool, error)
	CreateEventRegistration(ctx context.Context, eventID int, userID int64, paymentID *int) (int, error)
}

// Service реализует бизнес-логику мероприятий.
type Service struct {
	repo EventRepository
	log  *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo EventRepository, log *slog.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// Create добавляет новое мероприятие и возвращает его ID.
func (s *Service) Create(ctx context.Context, name, description string, eventDate time.Time, price int, maxParticipants *int) (int, error) {
	const op = "services.events.Create"
	id, err := s.repo.CreateEvent(ctx, name, description, eventDate, price, maxParticipants)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created event",
		slog.Int("event_id", id),
		slog.String("name", name),
		slog.Time("event_date", eventDate))
	return id, nil
}

// ListUpcoming возвращает предстоящие мероприятия.
func (s *Service) ListUpcoming(ctx context.Context) ([]*models.Event, error) {
	const op = "services.events.ListUpcoming"
	events, err := s.repo.ListUpcomingEvents(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return events, nil
}

// Register регистрирует пользователя на мероприятие. Возвращает
// ErrEventFull, если мест не осталось, и ErrAlreadyRegistered
// при повторной регистрации.
func (s *Service) Register(ctx context.Context, eventID int, userID int64, paymentID *int) error {
	const op = "services.events.Register"

	event, err := s.repo.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	registered, err := s.repo.HasEventRegistration(ctx, eventID, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if registered {
		return fmt.Errorf("%s: %w", op, ErrAlreadyRegistered)
	}

	if event.MaxParticipants != nil {
		count, err := s.repo.CountEventRegistrations(ctx, eventID)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if count >= *event.MaxParticipants {
			return fmt.Errorf("%s: %w", op, ErrEventFull)
		}
	}

	if _, err := s.repo.CreateEventRegistration(ctx, eventID, userID, paymentID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("registered user for event",
		slog.Int("event_id", eventID),
		slog.Int64("user_id", userID))
	return nil
}
