// Package services содержит бизнес-логику управления подписками:
// выдача и продление периодов, проверка доступа, деактивация истекших.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/metrics"
	"github.com/x10club/club-bot/internal/models"
	"github.com/x10club/club-bot/internal/storage/repository"
)

// SubscriptionRepository определяет методы для работы с подписками в хранилище.
type SubscriptionRepository interface {
	// FindActiveSubscription возвращает активную подписку с наибольшим
	// end_date, даже если он уже в прошлом.
	FindActiveSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// FindCurrentSubscription возвращает активную и не истекшую подписку.
	FindCurrentSubscription(ctx context.Context, userID int64) (*models.Subscription, error)
	// CreateSubscription добавляет новую подписку и возвращает её ID.
	CreateSubscription(ctx context.Context, userID int64, endDate time.Time) (int, error)
	// ExtendSubscription устанавливает новую дату окончания.
	ExtendSubscription(ctx context.Context, subscriptionID int, endDate time.Time) error
	// DeactivateSubscription переводит подписку в статус expired.
	DeactivateSubscription(ctx context.Context, subscriptionID int) error
	// ListExpiredSubscriptions возвращает активные подписки с истекшим end_date.
	ListExpiredSubscriptions(ctx context.Context) ([]*models.Subscription, error)
	// ListSubscriptionsExpiringOn возвращает активные подписки с end_date
	// на указанную дату.
	ListSubscriptionsExpiringOn(ctx context.Context, date time.Time) ([]*models.Subscription, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	// Get пытается получить значение из кеша по ключу.
	Get(key string, result any) (bool, error)
	// Set сохраняет значение в кеш с временем жизни.
	Set(key string, value any, expiration time.Duration) error
	// Invalidate удаляет значение из кеша по ключу.
	Invalidate(key string) error
}

// Notifier отправляет сообщения пользователям и управляет группой клуба.
type Notifier interface {
	SendMessage(chatID int64, text string) error
	KickFromGroup(userID int64) error
}

// Status — состояние подписки пользователя для проверки доступа.
type Status struct {
	Active  bool      `json:"active"`
	EndDate time.Time `json:"end_date"`
}

const statusTTL = 5 * time.Minute

// SubscriptionService реализует бизнес-логику работы с подписками.
type SubscriptionService struct {
	repo     SubscriptionRepository
	cache    Cache
	notifier Notifier
	log      *slog.Logger
}

// NewSubscriptionService создает новый экземпляр SubscriptionService.
func NewSubscriptionService(repo SubscriptionRepository, cache Cache, notifier Notifier, log *slog.Logger) *SubscriptionService {
	return &SubscriptionService{
		repo:     repo,
		cache:    cache,
		notifier: notifier,
		log:      log,
	}
}

func cacheKey(userID int64) string {
	return fmt.Sprintf("substatus:%d", userID)
}

// Grant выдает пользователю days дней подписки. Если есть действующая
// подписка, новый период прибавляется к её концу. Устаревшая активная
// запись продлевается от текущего момента. Возвращает новую дату окончания.
func (s *SubscriptionService) Grant(ctx context.Context, userID int64, days int, reason string) (time.Time, error) {
	const op = "services.subscription.Grant"
	now := time.Now()

	sub, err := s.repo.FindActiveSubscription(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	var endDate time.Time
	switch {
	case sub == nil:
		endDate = now.AddDate(0, 0, days)
		if _, err := s.repo.CreateSubscription(ctx, userID, endDate); err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
	case sub.EndDate.After(now):
		endDate = sub.EndDate.AddDate(0, 0, days)
		if err := s.repo.ExtendSubscription(ctx, sub.ID, endDate); err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
	default:
		// Активная запись с end_date в прошлом: чистильщик до неё
		// ещё не дошёл. Новый период отсчитывается от текущего момента.
		endDate = now.AddDate(0, 0, days)
		if err := s.repo.ExtendSubscription(ctx, sub.ID, endDate); err != nil {
			return time.Time{}, fmt.Errorf("%s: %w", op, err)
		}
	}

	metrics.SubscriptionsGrantedTotal.WithLabelValues(reason).Inc()
	s.log.Info("granted subscription period",
		slog.Int64("user_id", userID),
		slog.Int("days", days),
		slog.String("reason", reason),
		slog.Time("end_date", endDate))

	if err := s.cache.Invalidate(cacheKey(userID)); err != nil {
		s.log.Warn("failed to invalidate status cache", sl.Err(err))
	}
	return endDate, nil
}

// Check возвращает состояние подписки пользователя, используя кеш.
func (s *SubscriptionService) Check(ctx context.Context, userID int64) (*Status, error) {
	const op = "services.subscription.Check"

	var cached Status
	found, err := s.cache.Get(cacheKey(userID), &cached)
	if err != nil {
		s.log.Warn("failed to read status cache", sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	sub, err := s.repo.FindCurrentSubscription(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	status := Status{}
	if sub != nil {
		status.Active = true
		status.EndDate = sub.EndDate
	}

	if err := s.cache.Set(cacheKey(userID), status, statusTTL); err != nil {
		s.log.Warn("failed to cache status", sl.Err(err))
	}
	return &status, nil
}

// SweepExpired деактивирует все активные подписки с истекшим end_date,
// исключает пользователей из группы и уведомляет их. Ошибка по одному
// пользователю не прерывает обработку остальных.
func (s *SubscriptionService) SweepExpired(ctx context.Context) error {
	const op = "services.subscription.SweepExpired"
	subs, err := s.repo.ListExpiredSubscriptions(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(subs) == 0 {
		return nil
	}
	s.log.Info("found expired subscriptions", slog.Int("count", len(subs)))

	for _, sub := range subs {
		if err := s.repo.DeactivateSubscription(ctx, sub.ID); err != nil {
			s.log.Error("failed to deactivate subscription",
				slog.Int("subscription_id", sub.ID), sl.Err(err))
			continue
		}
		metrics.SubscriptionsExpiredTotal.Inc()

		if err := s.cache.Invalidate(cacheKey(sub.UserID)); err != nil {
			s.log.Warn("failed to invalidate status cache", sl.Err(err))
		}
		if err := s.notifier.KickFromGroup(sub.UserID); err != nil {
			s.log.Error("failed to kick user from group",
				slog.Int64("user_id", sub.UserID), sl.Err(err))
		}
		text := "Ваша подписка на Клуб Х10 закончилась. " +
			"Чтобы вернуться, оформите новую подписку в боте."
		if err := s.notifier.SendMessage(sub.UserID, text); err != nil {
			s.log.Error("failed to notify user about expiry",
				slog.Int64("user_id", sub.UserID), sl.Err(err))
		}
	}
	return nil
}

// NotifyExpiring отправляет напоминания пользователям, чья подписка
// заканчивается ровно через один из offsets дней.
func (s *SubscriptionService) NotifyExpiring(ctx context.Context, offsets []int) error {
	const op = "services.subscription.NotifyExpiring"
	now := time.Now()

	for _, offset := range offsets {
		date := now.AddDate(0, 0, offset)
		subs, err := s.repo.ListSubscriptionsExpiringOn(ctx, date)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		for _, sub := range subs {
			text := fmt.Sprintf(
				"Ваша подписка на Клуб Х10 заканчивается через %d дн. (%s). "+
					"Продлите её заранее, чтобы не потерять доступ.",
				offset, sub.EndDate.Format("02.01.2006"))
			if err := s.notifier.SendMessage(sub.UserID, text); err != nil {
				s.log.Error("failed to send expiry reminder",
					slog.Int64("user_id", sub.UserID), sl.Err(err))
			}
		}
	}
	return nil
}
