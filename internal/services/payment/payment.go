// Package services содержит бизнес-логику жизненного цикла платежей:
// создание с переиспользованием незавершенных, подтверждение с выдачей
// продукта, расчет сумм в Stars и криптовалюте.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/x10club/club-bot/internal/config"
	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/metrics"
	"github.com/x10club/club-bot/internal/models"
	"github.com/x10club/club-bot/internal/storage/repository"
)

// ErrAlreadyProcessed возвращается при попытке подтвердить платеж,
// который уже подтвержден.
var ErrAlreadyProcessed = errors.New("payment already processed")

// ErrPaymentNotFound возвращается для несуществующего платежа.
var ErrPaymentNotFound = errors.New("payment not found")

// ErrUnknownProduct возвращается для неизвестного типа продукта.
var ErrUnknownProduct = errors.New("unknown product type")

// ErrUnknownAsset возвращается для криптовалюты без настроенного курса.
var ErrUnknownAsset = errors.New("unknown crypto asset")

// Окно переиспользования незавершенного платежа. Более старые
// pending-записи считаются брошенными и не возвращаются повторно.
const reuseWindow = 24 * time.Hour

// PaymentRepository определяет методы для работы с платежами в хранилище.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, userID int64, amount int, productType, paymentMethod string) (int, error)
	GetPayment(ctx context.Context, paymentID int) (*models.Payment, error)
	FindPendingPayment(ctx context.Context, userID int64, productType, paymentMethod string, since time.Time) (*models.Payment, error)
	// ConfirmPayment атомарно переводит платеж из pending в confirmed.
	ConfirmPayment(ctx context.Context, paymentID int, confirmedAt time.Time) (bool, error)
	ListPendingPayments(ctx context.Context) ([]*models.Payment, error)
}

// Granter выдает пользователю дни подписки.
type Granter interface {
	Grant(ctx context.Context, userID int64, days int, reason string) (time.Time, error)
}

// Notifier отправляет сообщения пользователям и администраторам
// и управляет доступом в группу клуба.
type Notifier interface {
	SendMessage(chatID int64, text string) error
	MemberStatus(userID int64) (string, error)
	CreateInviteLink() (string, error)
}

// Service реализует жизненный цикл платежей.
type Service struct {
	repo      PaymentRepository
	granter   Granter
	notifier  Notifier
	prices    models.Prices
	rates     map[string]float64
	rubPerUSD float64
	adminIDs  []int64
	log       *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo PaymentRepository, granter Granter, notifier Notifier,
	paymentCfg config.Payment, cryptoCfg config.CryptoPay, adminIDs []int64, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		granter:  granter,
		notifier: notifier,
		prices: models.Prices{
			Club:         paymentCfg.ClubPrice,
			Vietnam:      paymentCfg.VietnamTourPrice,
			Consultation: paymentCfg.ConsultationPrice,
			ClubDays:     paymentCfg.ClubDays,
		},
		rates:     cryptoCfg.AssetRates,
		rubPerUSD: cryptoCfg.RubPerUSD,
		adminIDs:  adminIDs,
		log:       log,
	}
}

// Create возвращает платеж для пользователя, продукта и способа оплаты.
// Незавершенный платеж с теми же параметрами, созданный в пределах суток,
// переиспользуется вместо создания нового.
func (s *Service) Create(ctx context.Context, userID int64, productType, paymentMethod string) (*models.Payment, error) {
	const op = "services.payment.Create"

	product, ok := models.DescribeProduct(productType, s.prices)
	if !ok {
		return nil, fmt.Errorf("%s: %w: %s", op, ErrUnknownProduct, productType)
	}

	since := time.Now().Add(-reuseWindow)
	pending, err := s.repo.FindPendingPayment(ctx, userID, productType, paymentMethod, since)
	if err == nil {
		s.log.Info("reusing pending payment",
			slog.Int("payment_id", pending.ID), slog.Int64("user_id", userID))
		return pending, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	id, err := s.repo.CreatePayment(ctx, userID, product.Amount, productType, paymentMethod)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("created payment",
		slog.Int("payment_id", id),
		slog.Int64("user_id", userID),
		slog.String("product_type", productType),
		slog.String("payment_method", paymentMethod))

	return s.repo.GetPayment(ctx, id)
}

// Confirm подтверждает платеж и выдает оплаченный продукт.
// Повторное подтверждение возвращает ErrAlreadyProcessed и не приводит
// к повторной выдаче.
func (s *Service) Confirm(ctx context.Context, paymentID int) error {
	const op = "services.payment.Confirm"

	payment, err := s.repo.GetPayment(ctx, paymentID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrPaymentNotFound)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.repo.ConfirmPayment(ctx, paymentID, time.Now())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if !ok {
		metrics.PaymentsDuplicateConfirmTotal.Inc()
		s.log.Warn("duplicate payment confirmation attempt",
			slog.Int("payment_id", paymentID))
		return fmt.Errorf("%s: %w", op, ErrAlreadyProcessed)
	}

	metrics.PaymentsConfirmedTotal.WithLabelValues(payment.ProductType, payment.PaymentMethod).Inc()
	s.log.Info("payment confirmed",
		slog.Int("payment_id", paymentID),
		slog.Int64("user_id", payment.UserID),
		slog.String("product_type", payment.ProductType))

	s.fulfill(ctx, payment)
	return nil
}

// fulfill выдает оплаченный продукт. Подписка клуба выдается сразу,
// остальные продукты уходят менеджерам на ручную обработку. Ошибки
// выдачи не откатывают подтверждение: платеж остается подтвержденным.
func (s *Service) fulfill(ctx context.Context, payment *models.Payment) {
	switch payment.ProductType {
	case models.ProductClub:
		endDate, err := s.granter.Grant(ctx, payment.UserID, s.prices.ClubDays, "payment")
		if err != nil {
			s.log.Error("failed to grant subscription after payment",
				slog.Int("payment_id", payment.ID), sl.Err(err))
			return
		}
		text := fmt.Sprintf(
			"Оплата получена! Ваша подписка на Клуб Х10 действует до %s.",
			endDate.Format("02.01.2006"))
		if link := s.inviteLinkIfNeeded(payment.UserID); link != "" {
			text += "\n\nСсылка для вступления в группу: " + link
		}
		if err := s.notifier.SendMessage(payment.UserID, text); err != nil {
			s.log.Error("failed to notify user about payment",
				slog.Int64("user_id", payment.UserID), sl.Err(err))
		}
	default:
		product, _ := models.DescribeProduct(payment.ProductType, s.prices)
		text := fmt.Sprintf(
			"Оплачен продукт «%s» (платеж #%d, пользователь %d). Свяжитесь с клиентом.",
			product.Name, payment.ID, payment.UserID)
		for _, adminID := range s.adminIDs {
			if err := s.notifier.SendMessage(adminID, text); err != nil {
				s.log.Error("failed to notify manager",
					slog.Int64("admin_id", adminID), sl.Err(err))
			}
		}
		confirm := "Оплата получена! Менеджер свяжется с вами в ближайшее время."
		if err := s.notifier.SendMessage(payment.UserID, confirm); err != nil {
			s.log.Error("failed to notify user about payment",
				slog.Int64("user_id", payment.UserID), sl.Err(err))
		}
	}
}

// inviteLinkIfNeeded возвращает одноразовую ссылку на вступление в группу,
// если пользователь еще не состоит в ней. Ошибки не прерывают выдачу:
// пользователь без ссылки может обратиться к менеджеру.
func (s *Service) inviteLinkIfNeeded(userID int64) string {
	status, err := s.notifier.MemberStatus(userID)
	if err != nil {
		s.log.Warn("failed to get member status", slog.Int64("user_id", userID), sl.Err(err))
	} else if status != "left" && status != "kicked" {
		return ""
	}
	link, err := s.notifier.CreateInviteLink()
	if err != nil {
		s.log.Error("failed to create invite link", slog.Int64("user_id", userID), sl.Err(err))
		return ""
	}
	return link
}

// ListPending возвращает все неподтвержденные платежи.
func (s *Service) ListPending(ctx context.Context) ([]*models.Payment, error) {
	const op = "services.payment.ListPending"
	payments, err := s.repo.ListPendingPayments(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return payments, nil
}

// StarsAmount переводит цену в рублях в Telegram Stars
// по фиксированному курсу 75 Stars за 100 рублей, с округлением вниз.
func (s *Service) StarsAmount(amount int) int {
	return amount * 75 / 100
}

// CryptoAmount переводит цену в рублях в количество криптовалюты.
// Рубли конвертируются в доллары по настроенному курсу, затем в актив.
// Результат — десятичная строка с шестью знаками после запятой.
func (s *Service) CryptoAmount(amount int, asset string) (string, error) {
	rate, ok := s.rates[asset]
	if !ok || rate <= 0 {
		return "", fmt.Errorf("%w: %s", ErrUnknownAsset, asset)
	}
	usd := float64(amount) / s.rubPerUSD
	return strconv.FormatFloat(usd/rate, 'f', 6, 64), nil
}
