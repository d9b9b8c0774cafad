// Package services содержит бизнес-логику реферальной программы:
// регистрация приглашений, начисление наград, уровни программы.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strconv"
	"time"

	"github.com/x10club/club-bot/internal/config"
	"github.com/x10club/club-bot/internal/lib/reflink"
	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/metrics"
	"github.com/x10club/club-bot/internal/models"
	"github.com/x10club/club-bot/internal/storage/repository"
)

// Уровни реферальной программы.
const (
	MilestoneVIP          = 3
	MilestoneFreeMonth    = 5
	MilestoneConsultation = 10
)

// ReferralRepository определяет методы для работы с рефералами в хранилище.
type ReferralRepository interface {
	// HasReferral сообщает, зафиксирован ли пользователь как приглашенный.
	HasReferral(ctx context.Context, userID int64) (bool, error)
	CreateReferral(ctx context.Context, referrerID, userID int64) error
	CountReferrals(ctx context.Context, referrerID int64) (int, error)
	// GetReferrer возвращает пригласившего либо repository.ErrNotFound.
	GetReferrer(ctx context.Context, userID int64) (int64, error)
	ListReferrals(ctx context.Context, referrerID int64) ([]*models.Referral, error)
	// UpsertUser сохраняет нового пользователя или обновляет имя существующего.
	UpsertUser(ctx context.Context, user models.User) error
	GetUser(ctx context.Context, userID int64) (*models.User, error)
	// UpdateUserBalance изменяет баланс и возвращает новое значение.
	UpdateUserBalance(ctx context.Context, userID int64, amount int) (int, error)
	// UpdateReferralMilestone поднимает достигнутый уровень. Обновление
	// монотонно: уже достигнутый уровень не понижается.
	UpdateReferralMilestone(ctx context.Context, userID int64, milestone int) error
}

// Granter выдает пользователю дни подписки.
type Granter interface {
	Grant(ctx context.Context, userID int64, days int, reason string) (time.Time, error)
}

// Notifier отправляет сообщения пользователям и администраторам.
type Notifier interface {
	SendMessage(chatID int64, text string) error
}

// Service реализует реферальную программу.
type Service struct {
	repo        ReferralRepository
	granter     Granter
	notifier    Notifier
	points      int
	freeDays    int
	adminIDs    []int64
	botUsername string
	log         *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo ReferralRepository, granter Granter, notifier Notifier,
	cfg config.Referral, adminIDs []int64, botUsername string, log *slog.Logger) *Service {
	return &Service{
		repo:        repo,
		granter:     granter,
		notifier:    notifier,
		points:      cfg.PointsPerReferral,
		freeDays:    cfg.FreeDays,
		adminIDs:    adminIDs,
		botUsername: botUsername,
		log:         log,
	}
}

// Link возвращает реферальную ссылку пользователя.
func (s *Service) Link(userID int64) string {
	return reflink.Generate(s.botUsername, userID)
}

// Register сохраняет приглашенного пользователя, фиксирует приглашение
// и начисляет награды: баллы пригласившему, бесплатные дни приглашенному.
// Повторная регистрация того же пользователя и самоприглашение
// игнорируются без наград.
func (s *Service) Register(ctx context.Context, referrerID int64, invitee models.User) error {
	const op = "services.referral.Register"

	// Пользователь создается при первом контакте, даже если
	// реферальная ссылка окажется невалидной.
	if err := s.repo.UpsertUser(ctx, invitee); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	inviteeID := invitee.UserID

	if referrerID == inviteeID {
		s.log.Info("ignoring self-referral", slog.Int64("user_id", inviteeID))
		return nil
	}

	if _, err := s.repo.GetUser(ctx, referrerID); err != nil {
		s.log.Info("referrer not found, ignoring referral",
			slog.Int64("referrer_id", referrerID))
		return nil
	}

	exists, err := s.repo.HasReferral(ctx, inviteeID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if exists {
		s.log.Info("user already registered as referral",
			slog.Int64("user_id", inviteeID))
		return nil
	}

	if err := s.repo.CreateReferral(ctx, referrerID, inviteeID); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	metrics.ReferralsRegisteredTotal.Inc()
	s.log.Info("registered referral",
		slog.Int64("referrer_id", referrerID),
		slog.Int64("user_id", inviteeID))

	balance, err := s.repo.UpdateUserBalance(ctx, referrerID, s.points)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	text := fmt.Sprintf(
		"По вашей ссылке зарегистрировался новый участник! Начислено %d баллов. Ваш баланс: %d.",
		s.points, balance)
	if err := s.notifier.SendMessage(referrerID, text); err != nil {
		s.log.Error("failed to notify referrer", sl.Err(err))
	}

	if _, err := s.granter.Grant(ctx, inviteeID, s.freeDays, "referral"); err != nil {
		s.log.Error("failed to grant free days to invitee",
			slog.Int64("user_id", inviteeID), sl.Err(err))
	}

	if err := s.awardMilestones(ctx, referrerID); err != nil {
		s.log.Error("failed to award milestones",
			slog.Int64("referrer_id", referrerID), sl.Err(err))
	}
	return nil
}

// awardMilestones выдает награды за достигнутые уровни программы.
// Каждый уровень выдается не более одного раза: достигнутый максимум
// хранится в профиле пользователя.
func (s *Service) awardMilestones(ctx context.Context, referrerID int64) error {
	const op = "services.referral.awardMilestones"

	count, err := s.repo.CountReferrals(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	user, err := s.repo.GetUser(ctx, referrerID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	thresholds := []int{MilestoneVIP, MilestoneFreeMonth, MilestoneConsultation}
	sort.Ints(thresholds)

	var errs []error
	for _, threshold := range thresholds {
		if count < threshold || user.ReferralMilestone >= threshold {
			continue
		}
		if err := s.applyMilestone(ctx, referrerID, threshold); err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.repo.UpdateReferralMilestone(ctx, referrerID, threshold); err != nil {
			errs = append(errs, err)
			continue
		}
		metrics.ReferralMilestonesTotal.WithLabelValues(strconv.Itoa(threshold)).Inc()
		s.log.Info("referral milestone reached",
			slog.Int64("referrer_id", referrerID),
			slog.Int("milestone", threshold))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s: %w", op, errors.Join(errs...))
	}
	return nil
}

func (s *Service) applyMilestone(ctx context.Context, referrerID int64, threshold int) error {
	switch threshold {
	case MilestoneVIP:
		text := fmt.Sprintf(
			"Поздравляем! Вы пригласили %d участников и получили VIP-статус в Клубе Х10.",
			threshold)
		if err := s.notifier.SendMessage(referrerID, text); err != nil {
			return err
		}
		s.notifyAdmins(fmt.Sprintf(
			"Пользователь %d достиг уровня %d: выдать VIP-статус.", referrerID, threshold))
	case MilestoneFreeMonth:
		if _, err := s.granter.Grant(ctx, referrerID, 30, "referral_milestone"); err != nil {
			return err
		}
		text := fmt.Sprintf(
			"Поздравляем! Вы пригласили %d участников и получили месяц подписки в подарок.",
			threshold)
		if err := s.notifier.SendMessage(referrerID, text); err != nil {
			return err
		}
	case MilestoneConsultation:
		text := fmt.Sprintf(
			"Поздравляем! Вы пригласили %d участников и получили бесплатную консультацию основателя.",
			threshold)
		if err := s.notifier.SendMessage(referrerID, text); err != nil {
			return err
		}
		s.notifyAdmins(fmt.Sprintf(
			"Пользователь %d достиг уровня %d: организовать консультацию.", referrerID, threshold))
	}
	return nil
}

func (s *Service) notifyAdmins(text string) {
	for _, adminID := range s.adminIDs {
		if err := s.notifier.SendMessage(adminID, text); err != nil {
			s.log.Error("failed to notify admin",
				slog.Int64("admin_id", adminID), sl.Err(err))
		}
	}
}

// Summary — сводка участия пользователя в реферальной программе.
type Summary struct {
	Count      int                `json:"count"`
	Balance    int                `json:"balance"`
	ReferrerID int64              `json:"referrer_id,omitempty"`
	Referrals  []*models.Referral `json:"referrals"`
}

// Summarize возвращает сводку: число и список приглашенных, баланс
// и пригласившего, если пользователь сам пришел по ссылке.
func (s *Service) Summarize(ctx context.Context, userID int64) (*Summary, error) {
	const op = "services.referral.Summarize"

	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	count, err := s.repo.CountReferrals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	referrals, err := s.repo.ListReferrals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	referrerID, err := s.repo.GetReferrer(ctx, userID)
	if err != nil && !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return &Summary{
		Count:      count,
		Balance:    user.Balance,
		ReferrerID: referrerID,
		Referrals:  referrals,
	}, nil
}
