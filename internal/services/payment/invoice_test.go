package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/x10club/club-bot/internal/cryptopay"
	"github.com/x10club/club-bot/internal/models"
)

type CryptoRepoMock struct{ mock.Mock }

func (m *CryptoRepoMock) CreateCryptoPayment(ctx context.Context, userID int64, invoiceID, asset, amount, productType string) (int, error) {
	args := m.Called(ctx, userID, invoiceID, asset, amount, productType)
	return args.Int(0), args.Error(1)
}
func (m *CryptoRepoMock) ListPendingCryptoPayments(ctx context.Context) ([]*models.PendingCryptoPayment, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.PendingCryptoPayment), args.Error(1)
}
func (m *CryptoRepoMock) ConfirmCryptoPayment(ctx context.Context, invoiceID string, paidAt time.Time) (bool, error) {
	args := m.Called(ctx, invoiceID, paidAt)
	return args.Bool(0), args.Error(1)
}
func (m *CryptoRepoMock) ExpireCryptoPayment(ctx context.Context, invoiceID string) error {
	return m.Called(ctx, invoiceID).Error(0)
}

type InvoiceClientMock struct{ mock.Mock }

func (m *InvoiceClientMock) CreateInvoice(ctx context.Context, asset, amount, description string, expiresIn int) (*cryptopay.Invoice, error) {
	args := m.Called(ctx, asset, amount, description, expiresIn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*cryptopay.Invoice), args.Error(1)
}
func (m *InvoiceClientMock) GetInvoices(ctx context.Context, invoiceIDs []string) ([]cryptopay.Invoice, error) {
	args := m.Called(ctx, invoiceIDs)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]cryptopay.Invoice), args.Error(1)
}

func newTestCryptoService(repo *CryptoRepoMock, client *InvoiceClientMock,
	granter *GranterMock, notifier *NotifierMock) *CryptoService {
	payments := newTestService(new(RepoMock), granter, notifier)
	return NewCryptoService(payments, repo, client, newNoopLogger())
}

func TestCreateInvoice(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	svc := newTestCryptoService(repo, client, new(GranterMock), new(NotifierMock))

	client.On("CreateInvoice", mock.Anything, "USDT", "13.333333", mock.Anything, invoiceExpiresIn).
		Return(&cryptopay.Invoice{InvoiceID: 555, Status: cryptopay.InvoiceActive,
			PayURL: "https://t.me/CryptoBot?start=IV555"}, nil)
	repo.On("CreateCryptoPayment", mock.Anything, int64(1), "555", "USDT", "13.333333", models.ProductClub).
		Return(1, nil)

	payURL, err := svc.CreateInvoice(context.Background(), 1, models.ProductClub, "USDT")
	require.NoError(t, err)
	assert.Equal(t, "https://t.me/CryptoBot?start=IV555", payURL)
	repo.AssertExpectations(t)
	client.AssertExpectations(t)
}

func TestCreateInvoice_UnknownAsset(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	svc := newTestCryptoService(repo, client, new(GranterMock), new(NotifierMock))

	_, err := svc.CreateInvoice(context.Background(), 1, models.ProductClub, "DOGE")
	assert.ErrorIs(t, err, ErrUnknownAsset)
	client.AssertNotCalled(t, "CreateInvoice",
		mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPendingInvoices_PaidInvoiceGrantsSubscription(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{{
		CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			Asset: "USDT", Amount: "13.333333", ProductType: models.ProductClub,
			Status: models.PaymentPending},
	}}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555"}).
		Return([]cryptopay.Invoice{{InvoiceID: 555, Status: cryptopay.InvoicePaid}}, nil)
	repo.On("ConfirmCryptoPayment", mock.Anything, "555", mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(1), 30, "payment").
		Return(time.Now().AddDate(0, 0, 30), nil)
	notifier.On("MemberStatus", int64(1)).Return("left", nil)
	notifier.On("CreateInviteLink").Return("https://t.me/+invite", nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)
	notifier.On("SendMessage", int64(900), mock.Anything).Return(nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	granter.AssertExpectations(t)
}

func TestPollPendingInvoices_PaidInvoiceNotifiesAdmins(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{{
		CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			Asset: "USDT", Amount: "13.333333", ProductType: models.ProductClub,
			Status: models.PaymentPending},
		Username:  "payer",
		FirstName: "Иван",
	}}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555"}).
		Return([]cryptopay.Invoice{{InvoiceID: 555, Status: cryptopay.InvoicePaid}}, nil)
	repo.On("ConfirmCryptoPayment", mock.Anything, "555", mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(1), 30, "payment").
		Return(time.Now().AddDate(0, 0, 30), nil)
	notifier.On("MemberStatus", int64(1)).Return("member", nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)
	notifier.On("SendMessage", int64(900), mock.MatchedBy(func(text string) bool {
		return strings.Contains(text, "@payer") &&
			strings.Contains(text, "13.333333 USDT")
	})).Return(nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	notifier.AssertCalled(t, "SendMessage", int64(900), mock.Anything)
}

func TestPollPendingInvoices_ActiveInvoiceLeftPending(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{{
		CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			ProductType: models.ProductClub, Status: models.PaymentPending},
	}}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555"}).
		Return([]cryptopay.Invoice{{InvoiceID: 555, Status: cryptopay.InvoiceActive}}, nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	repo.AssertNotCalled(t, "ConfirmCryptoPayment", mock.Anything, mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "ExpireCryptoPayment", mock.Anything, mock.Anything)
	granter.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPendingInvoices_FailedInvoiceDoesNotStopOthers(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{
		{CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			ProductType: models.ProductClub, Status: models.PaymentPending}},
		{CryptoPayment: models.CryptoPayment{ID: 2, UserID: 2, InvoiceID: "556",
			ProductType: models.ProductClub, Status: models.PaymentPending}},
	}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555", "556"}).
		Return([]cryptopay.Invoice{
			{InvoiceID: 555, Status: cryptopay.InvoicePaid},
			{InvoiceID: 556, Status: cryptopay.InvoicePaid},
		}, nil)
	repo.On("ConfirmCryptoPayment", mock.Anything, "555", mock.Anything).
		Return(false, errors.New("connection reset"))
	repo.On("ConfirmCryptoPayment", mock.Anything, "556", mock.Anything).Return(true, nil)
	granter.On("Grant", mock.Anything, int64(2), 30, "payment").
		Return(time.Now().AddDate(0, 0, 30), nil)
	notifier.On("MemberStatus", int64(2)).Return("member", nil)
	notifier.On("SendMessage", mock.Anything, mock.Anything).Return(nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	granter.AssertCalled(t, "Grant", mock.Anything, int64(2), 30, "payment")
	granter.AssertNotCalled(t, "Grant", mock.Anything, int64(1), mock.Anything, mock.Anything)
}

func TestPollPendingInvoices_AlreadyProcessedInvoiceSkipsGrant(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{{
		CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			ProductType: models.ProductClub, Status: models.PaymentPending},
	}}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555"}).
		Return([]cryptopay.Invoice{{InvoiceID: 555, Status: cryptopay.InvoicePaid}}, nil)
	repo.On("ConfirmCryptoPayment", mock.Anything, "555", mock.Anything).Return(false, nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	granter.AssertNotCalled(t, "Grant", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestPollPendingInvoices_ExpiredInvoiceNotifiesUser(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	granter := new(GranterMock)
	notifier := new(NotifierMock)
	svc := newTestCryptoService(repo, client, granter, notifier)

	pending := []*models.PendingCryptoPayment{{
		CryptoPayment: models.CryptoPayment{ID: 1, UserID: 1, InvoiceID: "555",
			ProductType: models.ProductClub, Status: models.PaymentPending},
	}}
	repo.On("ListPendingCryptoPayments", mock.Anything).Return(pending, nil)
	client.On("GetInvoices", mock.Anything, []string{"555"}).
		Return([]cryptopay.Invoice{{InvoiceID: 555, Status: cryptopay.InvoiceExpired}}, nil)
	repo.On("ExpireCryptoPayment", mock.Anything, "555").Return(nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	repo.AssertExpectations(t)
	notifier.AssertExpectations(t)
}

func TestPollPendingInvoices_NoPending(t *testing.T) {
	repo := new(CryptoRepoMock)
	client := new(InvoiceClientMock)
	svc := newTestCryptoService(repo, client, new(GranterMock), new(NotifierMock))

	repo.On("ListPendingCryptoPayments", mock.Anything).
		Return([]*models.PendingCryptoPayment{}, nil)

	err := svc.PollPendingInvoices(context.Background())
	require.NoError(t, err)
	client.AssertNotCalled(t, "GetInvoices", mock.Anything, mock.Anything)
}
