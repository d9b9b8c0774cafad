// Package eventcreate реализует HTTP-обработчик создания мероприятия.
package eventcreate

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/sl"
)

// Request — структура входных данных мероприятия.
// Дата передается в формате RFC3339.
type Request struct {
	Name            string `json:"name" validate:"required,min=1,max=200"`
	Description     string `json:"description" validate:"max=2000"`
	EventDate       string `json:"event_date" validate:"required"`
	Price           int    `json:"price" validate:"gte=0"`
	MaxParticipants *int   `json:"max_participants" validate:"omitempty,gt=0"`
}

// Service создает мероприятия.
type Service interface {
	Create(ctx context.Context, name, description string, eventDate time.Time, price int, maxParticipants *int) (int, error)
}

// Handler обрабатывает HTTP-запросы создания мероприятий.
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
	const op = "handlers.event.eventcreate"

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

	eventDate, err := time.Parse(time.RFC3339, req.EventDate)
	if err != nil {
		log.Error("invalid event date", slog.String("event_date", req.EventDate))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid event date, expected RFC3339"))
		return
	}

	id, err := h.service.Create(r.Context(), req.Name, req.Description, eventDate, req.Price, req.MaxParticipants)
	if err != nil {
		log.Error("failed to create event", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("event created", slog.Int("event_id", id))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"event_id": id,
	}))
}
