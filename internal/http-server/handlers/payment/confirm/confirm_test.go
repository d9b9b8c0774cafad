package confirm

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	payment "github.com/x10club/club-bot/internal/services/payment"
)

// MockService реализует интерфейс confirm.Service
type MockService struct {
	mock.Mock
}

func (m *MockService) Confirm(ctx context.Context, paymentID int) error {
	args := m.Called(ctx, paymentID)
	return args.Error(0)
}

func TestConfirmHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		id             string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "успешное подтверждение платежа",
			id:   "42",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, 42).Return(nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"status":"OK"`,
		},
		{
			name:           "некорректный id в URL",
			id:             "abc",
			setupMock:      func(_ *MockService) {},
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `"error":"invalid payment id"`,
		},
		{
			name: "платеж не найден",
			id:   "42",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, 42).Return(payment.ErrPaymentNotFound)
			},
			expectedStatus: http.StatusNotFound,
			expectedBody:   `"error":"payment not found"`,
		},
		{
			name: "повторное подтверждение",
			id:   "42",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, 42).Return(payment.ErrAlreadyProcessed)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"error":"payment already processed"`,
		},
		{
			name: "ошибка сервиса",
			id:   "42",
			setupMock: func(m *MockService) {
				m.On("Confirm", mock.Anything, 42).Return(errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)

			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodPost, "/payments/"+tt.id+"/confirm", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("id", tt.id)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()

			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.True(t, strings.Contains(w.Body.String(), tt.expectedBody),
				"response body should contain %s, got %s", tt.expectedBody, w.Body.String())

			mockService.AssertExpectations(t)
		})
	}
}
