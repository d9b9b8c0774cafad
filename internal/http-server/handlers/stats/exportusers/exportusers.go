// Package exportusers реализует HTTP-обработчик выгрузки пользователей в CSV.
package exportusers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/sl"
)

// Service выгружает пользователей в формате CSV.
type Service interface {
	ExportUsersCSV(ctx context.Context) ([]byte, error)
}

// Handler обрабатывает HTTP-запросы выгрузки.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.stats.exportusers"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	data, err := h.service.ExportUsersCSV(r.Context())
	if err != nil {
		log.Error("failed to export users", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="users.csv"`)
	if _, err := w.Write(data); err != nil {
		log.Error("failed to write csv response", sl.Err(err))
	}
}
