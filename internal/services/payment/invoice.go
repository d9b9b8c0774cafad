package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/x10club/club-bot/internal/cryptopay"
	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/metrics"
	"github.com/x10club/club-bot/internal/models"
)

// Время жизни крипто-инвойса в секундах.
const invoiceExpiresIn = 3600

// CryptoRepository определяет методы для работы с крипто-платежами в хранилище.
type CryptoRepository interface {
	CreateCryptoPayment(ctx context.Context, userID int64, invoiceID, asset, amount, productType string) (int, error)
	ListPendingCryptoPayments(ctx context.Context) ([]*models.PendingCryptoPayment, error)
	// ConfirmCryptoPayment атомарно переводит крипто-платеж из pending в confirmed.
	ConfirmCryptoPayment(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error)
	ExpireCryptoPayment(ctx context.Context, invoiceID string) error
}

// InvoiceClient — клиент платежного провайдера Crypto Pay.
type InvoiceClient interface {
	CreateInvoice(ctx context.Context, asset, amount, description string, expiresIn int) (*cryptopay.Invoice, error)
	GetInvoices(ctx context.Context, invoiceIDs []string) ([]cryptopay.Invoice, error)
}

// CryptoService реализует выставление и опрос крипто-инвойсов.
type CryptoService struct {
	payments *Service
	repo     CryptoRepository
	client   InvoiceClient
	log      *slog.Logger
}

// NewCryptoService создает новый экземпляр CryptoService.
func NewCryptoService(payments *Service, repo CryptoRepository, client InvoiceClient, log *slog.Logger) *CryptoService {
	return &CryptoService{
		payments: payments,
		repo:     repo,
		client:   client,
		log:      log,
	}
}

// CreateInvoice выставляет крипто-инвойс на продукт и сохраняет его
// для последующего опроса. Возвращает ссылку на оплату.
func (s *CryptoService) CreateInvoice(ctx context.Context, userID int64, productType, asset string) (string, error) {
	const op = "services.payment.CreateInvoice"

	product, ok := models.DescribeProduct(productType, s.payments.prices)
	if !ok {
		return "", fmt.Errorf("%s: %w: %s", op, ErrUnknownProduct, productType)
	}

	amount, err := s.payments.CryptoAmount(product.Amount, asset)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	invoice, err := s.client.CreateInvoice(ctx, asset, amount, product.Description, invoiceExpiresIn)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	invoiceID := strconv.FormatInt(invoice.InvoiceID, 10)
	if _, err := s.repo.CreateCryptoPayment(ctx, userID, invoiceID, asset, amount, productType); err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}

	metrics.CryptoInvoicesTotal.WithLabelValues("created").Inc()
	s.log.Info("created crypto invoice",
		slog.String("invoice_id", invoiceID),
		slog.Int64("user_id", userID),
		slog.String("asset", asset),
		slog.String("amount", amount))

	payURL := invoice.BotPayURL
	if payURL == "" {
		payURL = invoice.PayURL
	}
	return payURL, nil
}

// PollPendingInvoices опрашивает статусы всех незавершенных инвойсов.
// Оплаченные подтверждаются и выдаются, истекшие помечаются expired.
// Ошибка по одному инвойсу не прерывает обработку остальных.
func (s *CryptoService) PollPendingInvoices(ctx context.Context) error {
	const op = "services.payment.PollPendingInvoices"

	pending, err := s.repo.ListPendingCryptoPayments(ctx)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if len(pending) == 0 {
		return nil
	}

	ids := make([]string, 0, len(pending))
	byInvoice := make(map[string]*models.PendingCryptoPayment, len(pending))
	for _, p := range pending {
		ids = append(ids, p.InvoiceID)
		byInvoice[p.InvoiceID] = p
	}

	invoices, err := s.client.GetInvoices(ctx, ids)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	for _, invoice := range invoices {
		invoiceID := strconv.FormatInt(invoice.InvoiceID, 10)
		record, ok := byInvoice[invoiceID]
		if !ok {
			continue
		}
		switch invoice.Status {
		case cryptopay.InvoicePaid:
			s.handlePaid(ctx, record)
		case cryptopay.InvoiceExpired:
			s.handleExpired(ctx, record)
		}
	}
	return nil
}

func (s *CryptoService) handlePaid(ctx context.Context, record *models.PendingCryptoPayment) {
	ok, err := s.repo.ConfirmCryptoPayment(ctx, record.InvoiceID, time.Now())
	if err != nil {
		s.log.Error("failed to confirm crypto payment",
			slog.String("invoice_id", record.InvoiceID), sl.Err(err))
		return
	}
	if !ok {
		metrics.PaymentsDuplicateConfirmTotal.Inc()
		s.log.Warn("crypto invoice already processed",
			slog.String("invoice_id", record.InvoiceID))
		return
	}

	metrics.CryptoInvoicesTotal.WithLabelValues("paid").Inc()
	s.log.Info("crypto payment confirmed",
		slog.String("invoice_id", record.InvoiceID),
		slog.Int64("user_id", record.UserID),
		slog.String("product_type", record.ProductType))

	s.payments.fulfill(ctx, &models.Payment{
		ID:            record.ID,
		UserID:        record.UserID,
		ProductType:   record.ProductType,
		PaymentMethod: models.MethodCryptoPrefix + record.Asset,
	})
	s.notifyAdminsAboutPaid(record)
}

// notifyAdminsAboutPaid сообщает администраторам о поступившей
// криптооплате независимо от типа продукта.
func (s *CryptoService) notifyAdminsAboutPaid(record *models.PendingCryptoPayment) {
	payer := record.FirstName
	if record.Username != "" {
		payer += " (@" + record.Username + ")"
	}
	product, _ := models.DescribeProduct(record.ProductType, s.payments.prices)
	text := fmt.Sprintf(
		"Оплачен крипто-счет #%s: %s (ID %d), продукт «%s», %s %s.",
		record.InvoiceID, payer, record.UserID, product.Name, record.Amount, record.Asset)
	for _, adminID := range s.payments.adminIDs {
		if err := s.payments.notifier.SendMessage(adminID, text); err != nil {
			s.log.Error("failed to notify admin about crypto payment",
				slog.Int64("admin_id", adminID), sl.Err(err))
		}
	}
}

func (s *CryptoService) handleExpired(ctx context.Context, record *models.PendingCryptoPayment) {
	if err := s.repo.ExpireCryptoPayment(ctx, record.InvoiceID); err != nil {
		s.log.Error("failed to expire crypto payment",
			slog.String("invoice_id", record.InvoiceID), sl.Err(err))
		return
	}
	metrics.CryptoInvoicesTotal.WithLabelValues("expired").Inc()

	text := "Срок действия счета на оплату криптовалютой истек. " +
		"Вы можете выставить новый счет в боте."
	if err := s.payments.notifier.SendMessage(record.UserID, text); err != nil {
		s.log.Error("failed to notify user about expired invoice",
			slog.Int64("user_id", record.UserID), sl.Err(err))
	}
}
