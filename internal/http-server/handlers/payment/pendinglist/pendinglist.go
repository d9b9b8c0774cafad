// Package pendinglist реализует HTTP-обработчик списка неподтвержденных платежей.
package pendinglist

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/models"
)

// Service описывает интерфейс выборки незавершенных платежей.
type Service interface {
	ListPending(ctx context.Context) ([]*models.Payment, error)
}

// Handler обрабатывает HTTP-запросы списка платежей.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.pendinglist"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	payments, err := h.service.ListPending(r.Context())
	if err != nil {
		log.Error("failed to list pending payments", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"payments": payments,
		"count":    len(payments),
	}))
}
