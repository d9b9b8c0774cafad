// Package services содержит отчетность и вовлечение: ежедневная сводка
// администраторам, выгрузка пользователей, напоминания и акции.
package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/models"
)

// Порог "свежего" пользователя для напоминаний о реферальной программе.
const referralReminderMinAge = 3 * 24 * time.Hour

// Напоминание получают пользователи, не дошедшие до этого числа приглашенных.
const referralReminderThreshold = 5

// StatsRepository определяет методы выборки данных для отчетов.
type StatsRepository interface {
	CollectStats(ctx context.Context, date time.Time) (*models.Stats, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	ListUserIDs(ctx context.Context) ([]int64, error)
	// ListUsersRegisteredBefore возвращает пользователей, зарегистрированных
	// раньше указанного момента.
	ListUsersRegisteredBefore(ctx context.Context, cutoff time.Time) ([]int64, error)
	ListUsersWithActiveSubscription(ctx context.Context) ([]int64, error)
	CountActiveReferrals(ctx context.Context, referrerID int64) (int, error)
}

// Notifier отправляет сообщения пользователям и администраторам.
type Notifier interface {
	SendMessage(chatID int64, text string) error
}

// Service реализует отчетность и рассылку напоминаний.
type Service struct {
	repo     StatsRepository
	notifier Notifier
	adminIDs []int64
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo StatsRepository, notifier Notifier, adminIDs []int64, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		adminIDs: adminIDs,
		log:      log,
	}
}

// DailyReport отправляет администраторам сводку за прошедший день.
func (s *Service) DailyReport(ctx context.Context) error {
	const op = "services.stats.DailyReport"

	yesterday := time.Now().AddDate(0, 0, -1)
	stats, err := s.repo.CollectStats(ctx, yesterday)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := fmt.Sprintf(
		"Отчет за %s\nПользователей: %d\nАктивных подписок: %d\nРефералов: %d\nПлатежей за день: %d",
		yesterday.Format("02.01.2006"),
		stats.TotalUsers, stats.ActiveSubscriptions, stats.TotalReferrals, stats.DailyPayments)
	for _, adminID := range s.adminIDs {
		if err := s.notifier.SendMessage(adminID, text); err != nil {
			s.log.Error("failed to send daily report",
				slog.Int64("admin_id", adminID), sl.Err(err))
		}
	}
	return nil
}

// Snapshot возвращает текущий срез статистики.
func (s *Service) Snapshot(ctx context.Context) (*models.Stats, error) {
	const op = "services.stats.Snapshot"
	stats, err := s.repo.CollectStats(ctx, time.Now())
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return stats, nil
}

// ExportUsersCSV возвращает всех пользователей в формате CSV.
func (s *Service) ExportUsersCSV(ctx context.Context) ([]byte, error) {
	const op = "services.stats.ExportUsersCSV"

	users, err := s.repo.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	header := []string{"user_id", "username", "first_name", "last_name", "registration_date", "balance"}
	if err := w.Write(header); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	for _, u := range users {
		record := []string{
			strconv.FormatInt(u.UserID, 10),
			u.Username,
			u.FirstName,
			u.LastName,
			u.RegistrationDate.Format(time.RFC3339),
			strconv.Itoa(u.Balance),
		}
		if err := w.Write(record); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return buf.Bytes(), nil
}

// ReferralReminders напоминает о реферальной программе пользователям,
// зарегистрированным более трех дней назад и не дошедшим до пяти
// приглашенных.
func (s *Service) ReferralReminders(ctx context.Context) error {
	const op = "services.stats.ReferralReminders"

	cutoff := time.Now().Add(-referralReminderMinAge)
	userIDs, err := s.repo.ListUsersRegisteredBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := "Приглашайте друзей в Клуб Х10! За каждого друга вы получаете " +
		"1000 баллов, а за 5 приглашенных — месяц подписки в подарок."
	for _, userID := range userIDs {
		count, err := s.repo.CountActiveReferrals(ctx, userID)
		if err != nil {
			s.log.Error("failed to count referrals",
				slog.Int64("user_id", userID), sl.Err(err))
			continue
		}
		if count >= referralReminderThreshold {
			continue
		}
		if err := s.notifier.SendMessage(userID, text); err != nil {
			s.log.Error("failed to send referral reminder",
				slog.Int64("user_id", userID), sl.Err(err))
		}
	}
	return nil
}

// ActivityReminders отправляет участникам клуба еженедельное напоминание
// заглянуть в группу.
func (s *Service) ActivityReminders(ctx context.Context) error {
	const op = "services.stats.ActivityReminders"

	userIDs, err := s.repo.ListUsersWithActiveSubscription(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := "На этой неделе в Клубе Х10 вышли новые разборы и обсуждения. Заходите в группу!"
	for _, userID := range userIDs {
		if err := s.notifier.SendMessage(userID, text); err != nil {
			s.log.Error("failed to send activity reminder",
				slog.Int64("user_id", userID), sl.Err(err))
		}
	}
	return nil
}

// LimitedOffers отправляет всем пользователям ежемесячное предложение.
func (s *Service) LimitedOffers(ctx context.Context) error {
	const op = "services.stats.LimitedOffers"

	userIDs, err := s.repo.ListUserIDs(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	text := "Только в начале месяца: оформите подписку на Клуб Х10 и получите " +
		"бонусные материалы от основателя."
	for _, userID := range userIDs {
		if err := s.notifier.SendMessage(userID, text); err != nil {
			s.log.Error("failed to send limited offer",
				slog.Int64("user_id", userID), sl.Err(err))
		}
	}
	return nil
}
