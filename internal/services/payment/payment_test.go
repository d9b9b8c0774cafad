package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/x10club/club-bot/internal/config"
	"github.com/x10club/club-bot/internal/models"
	"github.com/x10club/club-bot/internal/storage/repository"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CreatePayment(ctx context.Context, userID int64, amount int, productType, paymentMethod string) (int, error) {
	args := m.Called(ctx, userID, amount, productType, paymentMethod)
	return args.Int(0), args.Error(1)
}
func (m *RepoMock) GetPayment(ctx context.Context, paymentID int) (*models.Payment, error) {
	args := m.Called(ctx, paymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *RepoMock) FindPendingPayment(ctx context.Context, userID int64, productType, paymentMethod string, since time.Time) (*models.Payment, error) {
	args := m.Called(ctx, userID, productType, paymentMethod, since)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Payment), args.Error(1)
}
func (m *RepoMock) ConfirmPayment(ctx context.Context, paymentID int, confirmedAt time.Time) (bool, error) {
	args := m.Called(ctx, paymentID, confirmedAt)
	return args.Bool(0), args.Error(1)
}
func (m *RepoMock) ListPendingPayments(ctx context.Context) ([]*models.Payment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.Payment), args.Error(1)
}

type GranterMock struct{ mock.Mock }

func (m *GranterMock) Grant(ctx context.Context, userID int64, days int, reason string) (time.Time, error) {
	args := m.Called(ctx, userID, days, reason)
	return args.Get(0).(time.Time), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) SendMessage(chatID int64, text string) error {
	return m.Called(chatID, text).Error(0)
}
func (m *NotifierMock) MemberStatus(userID int64) (string, error) {
	args := m.Called(userID)
	return args.String(0), args.Error(1)
}
func (m *NotifierMock) CreateInviteLink() (string, error) {
	args := m.Called()
	return args.String(0), args.Error(1)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func newTestService(repo *RepoMock, granter *GranterMock, notifier *NotifierMock) *Service {
	paymentCfg := config.Payment{
		ClubPrice:         1000,
		VietnamTourPrice:  1000,
		ConsultationPrice: 2000,
		ClubDays:          30,
	}
	cryptoCfg := config.CryptoPay{
		AssetRates: map[string]float64{"BTC": 60000, "ETH": 30000, "USDT": 1},
		RubPerUSD:  75,
	}
	return New(repo, granter, notifier, paymentCfg, cryptoCfg, []int64{900}, newNoopLogger())
}

func TestCreate_NewPayment(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	repo.On("FindPendingPayment", mock.Anything, int64(1), models.ProductClub, models.MethodCard, mock.Anything).
		Return(nil, repository.ErrNotFound)
	repo.On("CreatePayment", mock.Anything, int64(1), 1000, models.ProductClub, models.MethodCard).
		Return(7, nil)
	repo.On("GetPayment", mock.Anything, 7).
		Return(&models.Payment{ID: 7, UserID: 1, Amount: 1000, ProductType: models.ProductClub,
			PaymentMethod: models.MethodCard, Status: models.PaymentPending}, nil)

	payment, err := svc.Create(context.Background(), 1, models.ProductClub, models.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, 7, payment.ID)
	assert.Equal(t, 1000, payment.Amount)
	repo.AssertExpectations(t)
}

func TestCreate_ReusesPendingPayment(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	existing := &models.Payment{ID: 3, UserID: 1, Amount: 1000,
		ProductType: models.ProductClub, PaymentMethod: models.MethodCard,
		Status: models.PaymentPending}
	repo.On("FindPendingPayment", mock.Anything, int64(1), models.ProductClub, models.MethodCard, mock.Anything).
		Return(existing, nil)

	payment, err := svc.Create(context.Background(), 1, models.ProductClub, models.MethodCard)
	require.NoError(t, err)
	assert.Equal(t, 3, payment.ID)
	repo.AssertNotCalled(t, "CreatePayment",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestCreate_UnknownProduct(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	_, err := svc.Create(context.Background(), 1, "yacht", models.MethodCard)
	assert.ErrorIs(t, err, ErrUnknownProduct)
}

func TestConfirm_GrantsClubSubscription(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	payment := &models.Payment{ID: 7, UserID: 1, Amount: 1000,
		ProductType: models.ProductClub, PaymentMethod: models.MethodCard,
		Status: models.PaymentPending}
	repo.On("GetPayment", mock.Anything, 7).Return(payment, nil)
	repo.On("ConfirmPayment", mock.Anything, 7, mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(1), 30, "payment").
		Return(time.Now().AddDate(0, 0, 30), nil)
	notifier.On("MemberStatus", int64(1)).Return("left", nil)
	notifier.On("CreateInviteLink").Return("https://t.me/+invite", nil)
	notifier.On("SendMessage", int64(1), mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "https://t.me/+invite")
	})).Return(nil)

	err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	granter.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestConfirm_MemberDoesNotGetInviteLink(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	payment := &models.Payment{ID: 7, UserID: 1, Amount: 1000,
		ProductType: models.ProductClub, PaymentMethod: models.MethodCard,
		Status: models.PaymentPending}
	repo.On("GetPayment", mock.Anything, 7).Return(payment, nil)
	repo.On("ConfirmPayment", mock.Anything, 7, mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(1), 30, "payment").
		Return(time.Now().AddDate(0, 0, 30), nil)
	notifier.On("MemberStatus", int64(1)).Return("member", nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)

	err := svc.Confirm(context.Background(), 7)
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "CreateInviteLink")
}

func TestConfirm_DuplicateReturnsAlreadyProcessed(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	payment := &models.Payment{ID: 7, UserID: 1, ProductType: models.ProductClub,
		Status: models.PaymentConfirmed}
	repo.On("GetPayment", mock.Anything, 7).Return(payment, nil)
	repo.On("ConfirmPayment", mock.Anything, 7, mock.Anything).Return(false, nil)

	err := svc.Confirm(context.Background(), 7)
	assert.ErrorIs(t, err, ErrAlreadyProcessed)
	// Повторное подтверждение не выдаёт подписку второй раз.
	granter.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_UnknownPaymentReturnsNotFound(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	repo.On("GetPayment", mock.Anything, 404).Return(nil, repository.ErrNotFound)

	err := svc.Confirm(context.Background(), 404)
	assert.ErrorIs(t, err, ErrPaymentNotFound)
	repo.AssertNotCalled(t, "ConfirmPayment", mock.Anything, mock.Anything, mock.Anything)
	granter.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirm_ManualProductNotifiesManagers(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	payment := &models.Payment{ID: 8, UserID: 1, Amount: 2000,
		ProductType: models.ProductConsultation, PaymentMethod: models.MethodCard,
		Status: models.PaymentPending}
	repo.On("GetPayment", mock.Anything, 8).Return(payment, nil)
	repo.On("ConfirmPayment", mock.Anything, 8, mock.Anything).Return(true, nil)
	notifier.On("SendMessage", int64(900), mock.Anything).Return(nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)

	err := svc.Confirm(context.Background(), 8)
	require.NoError(t, err)
	granter.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	notifier.AssertExpectations(t)
}

func TestConfirm_GrantFailureKeepsPaymentConfirmed(t *testing.T) {
	repo := new(RepoMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestService(repo, granter, notifier)

	payment := &models.Payment{ID: 7, UserID: 1, ProductType: models.ProductClub,
		Status: models.PaymentPending}
	repo.On("GetPayment", mock.Anything, 7).Return(payment, nil)
	repo.On("ConfirmPayment", mock.Anything, 7, mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(1), 30, "payment").
		Return(time.Time{}, errors.New("db down"))

	err := svc.Confirm(context.Background(), 7)
	assert.NoError(t, err)
}

func TestStarsAmount(t *testing.T) {
	svc := newTestService(new(RepoMock), new(GranterMock), new(NotifierMock))

	assert.Equal(t, 750, svc.StarsAmount(1000))
	assert.Equal(t, 1500, svc.StarsAmount(2000))
	// Округление вниз.
	assert.Equal(t, 0, svc.StarsAmount(1))
	assert.Equal(t, 74, svc.StarsAmount(99))
}

func TestCryptoAmount(t *testing.T) {
	svc := newTestService(new(RepoMock), new(GranterMock), new(NotifierMock))

	amount, err := svc.CryptoAmount(1000, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "13.333333", amount)

	amount, err = svc.CryptoAmount(1000, "BTC")
	require.NoError(t, err)
	assert.Equal(t, "0.000222", amount)

	_, err = svc.CryptoAmount(1000, "DOGE")
	assert.ErrorIs(t, err, ErrUnknownAsset)
}
