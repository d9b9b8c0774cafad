// Package create реализует HTTP-обработчик постановки рассылки в очередь.
package create

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/sl"
)

// Request — структура входных данных рассылки.
type Request struct {
	Text     string `json:"text" validate:"required,min=1,max=4096"`
	Audience string `json:"audience" validate:"required,oneof=all members"`
}

// Service ставит рассылку в очередь.
type Service interface {
	Enqueue(ctx context.Context, text, audience string) (int, error)
}

// Handler обрабатывает HTTP-запросы рассылок.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.broadcast.create"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request body", sl.Err(err))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid request body"))
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Error("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	count, err := h.service.Enqueue(r.Context(), req.Text, req.Audience)
	if err != nil {
		log.Error("failed to enqueue broadcast", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("broadcast enqueued", slog.Int("recipients", count))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"recipients": count,
	}))
}
