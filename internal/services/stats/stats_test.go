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

	"github.com/x10club/club-bot/internal/models"
)

type RepoMock struct{ mock.Mock }

func (m *RepoMock) CollectStats(ctx context.Context, date time.Time) (*models.Stats, error) {
	args := m.Called(ctx, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Stats), args.Error(1)
}
func (m *RepoMock) ListUsers(ctx context.Context) ([]*models.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.User), args.Error(1)
}
func (m *RepoMock) ListUserIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
func (m *RepoMock) ListUsersRegisteredBefore(ctx context.Context, cutoff time.Time) ([]int64, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
func (m *RepoMock) ListUsersWithActiveSubscription(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]int64), args.Error(1)
}
func (m *RepoMock) CountActiveReferrals(ctx context.Context, referrerID int64) (int, error) {
	args := m.Called(ctx, referrerID)
	return args.Int(0), args.Error(1)
}

type NotifierMock struct{ mock.Mock }

func (m *NotifierMock) SendMessage(chatID int64, text string) error {
	return m.Called(chatID, text).Error(0)
}

func newNoopLogger() *slog.Logger {
	h := slog.NewTextHandler(io.Discard, &slog.HandlerOptions{})
	return slog.New(h)
}

func TestDailyReport(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	svc := New(repo, notifier, []int64{900, 901}, newNoopLogger())

	repo.On("CollectStats", mock.Anything, mock.Anything).
		Return(&models.Stats{TotalUsers: 100, ActiveSubscriptions: 40,
			TotalReferrals: 25, DailyPayments: 3}, nil)
	notifier.On("SendMessage", int64(900), mock.Anything).Return(nil)
	notifier.On("SendMessage", int64(901), mock.Anything).Return(nil)

	err := svc.DailyReport(context.Background())
	require.NoError(t, err)
	notifier.AssertExpectations(t)
}

func TestDailyReport_RepoError(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	svc := New(repo, notifier, []int64{900}, newNoopLogger())

	repo.On("CollectStats", mock.Anything, mock.Anything).
		Return(nil, errors.New("db down"))

	err := svc.DailyReport(context.Background())
	assert.Error(t, err)
}

func TestExportUsersCSV(t *testing.T) {
	repo := new(RepoMock)
	svc := New(repo, new(NotifierMock), nil, newNoopLogger())

	registered := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	repo.On("ListUsers", mock.Anything).Return([]*models.User{
		{UserID: 1, Username: "ivan", FirstName: "Иван", RegistrationDate: registered, Balance: 1000},
	}, nil)

	data, err := svc.ExportUsersCSV(context.Background())
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "user_id,username,first_name,last_name,registration_date,balance", lines[0])
	assert.Contains(t, lines[1], "1,ivan,Иван")
	assert.Contains(t, lines[1], "1000")
}

func TestReferralReminders_SkipsUsersAtThreshold(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	svc := New(repo, notifier, nil, newNoopLogger())

	repo.On("ListUsersRegisteredBefore", mock.Anything, mock.Anything).
		Return([]int64{1, 2}, nil)
	repo.On("CountActiveReferrals", mock.Anything, int64(1)).Return(2, nil)
	repo.On("CountActiveReferrals", mock.Anything, int64(2)).Return(5, nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(nil)

	err := svc.ReferralReminders(context.Background())
	require.NoError(t, err)
	notifier.AssertNotCalled(t, "SendMessage", int64(2), mock.Anything)
}

func TestActivityReminders(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	svc := New(repo, notifier, nil, newNoopLogger())

	repo.On("ListUsersWithActiveSubscription", mock.Anything).Return([]int64{1, 2}, nil)
	notifier.On("SendMessage", mock.Anything, mock.Anything).Return(nil)

	err := svc.ActivityReminders(context.Background())
	require.NoError(t, err)
	notifier.AssertNumberOfCalls(t, "SendMessage", 2)
}

func TestLimitedOffers_FailureDoesNotStopOthers(t *testing.T) {
	repo := new(RepoMock)
	notifier := new(NotifierMock)
	svc := New(repo, notifier, nil, newNoopLogger())

	repo.On("ListUserIDs", mock.Anything).Return([]int64{1, 2}, nil)
	notifier.On("SendMessage", int64(1), mock.Anything).Return(errors.New("blocked"))
	notifier.On("SendMessage", int64(2), mock.Anything).Return(nil)

	err := svc.LimitedOffers(context.Background())
	require.NoError(t, err)
	notifier.AssertNumberOfCalls(t, "SendMessage", 2)
}
