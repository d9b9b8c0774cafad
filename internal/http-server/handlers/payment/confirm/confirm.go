// Package confirm реализует HTTP-обработчик подтверждения платежа
// администратором. Подтверждение идемпотентно: повторный запрос по уже
// обработанному платежу возвращает 409 и не выдает продукт второй раз.
package confirm

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/sl"
	payment "github.com/x10club/club-bot/internal/services/payment"
)

// Service описывает интерфейс подтверждения платежей.
type Service interface {
	Confirm(ctx context.Context, paymentID int) error
}

// Handler обрабатывает HTTP-запросы подтверждения платежа.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.confirm"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	idStr := chi.URLParam(r, "id")
	paymentID, err := strconv.Atoi(idStr)
	if err != nil {
		log.Error("invalid payment id", slog.String("id", idStr))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid payment id"))
		return
	}

	if err := h.service.Confirm(r.Context(), paymentID); err != nil {
		if errors.Is(err, payment.ErrPaymentNotFound) {
			log.Warn("payment not found", slog.Int("payment_id", paymentID))
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("payment not found"))
			return
		}
		if errors.Is(err, payment.ErrAlreadyProcessed) {
			log.Warn("payment already processed", slog.Int("payment_id", paymentID))
			render.Status(r, http.StatusConflict)
			render.JSON(w, r, response.Error("payment already processed"))
			return
		}
		log.Error("failed to confirm payment", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("payment confirmed", slog.Int("payment_id", paymentID))
	render.JSON(w, r, response.OK())
}
