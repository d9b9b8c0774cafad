// Package login реализует HTTP-обработчик входа администратора.
//
// Учетные данные сверяются с настройками сервера, при успехе возвращается
// JWT для доступа к остальным административным конечным точкам.
package login

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/x10club/club-bot/internal/http-server/response"
	"github.com/x10club/club-bot/internal/lib/jwt"
	"github.com/x10club/club-bot/internal/lib/password"
	"github.com/x10club/club-bot/internal/lib/sl"
)

// Request — структура входных данных для авторизации.
type Request struct {
	Username string `json:"username" validate:"required,min=3,max=50"`
	Password string `json:"password" validate:"required,min=6"`
}

// Handler обрабатывает HTTP-запросы для авторизации администратора.
type Handler struct {
	log          *slog.Logger
	maker        jwt.Maker
	adminUser    string
	passwordHash string
	validate     *validator.Validate
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, maker jwt.Maker, adminUser, passwordHash string) *Handler {
	return &Handler{
		log:          log,
		maker:        maker,
		adminUser:    adminUser,
		passwordHash: passwordHash,
		validate:     validator.New(),
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

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

	if req.Username != h.adminUser || password.CompareHash(h.passwordHash, req.Password) != nil {
		log.Error("invalid credentials", slog.String("username", req.Username))
		render.Status(r, http.StatusUnauthorized)
		render.JSON(w, r, response.Error("invalid credentials"))
		return
	}

	token, err := h.maker.GenerateToken(req.Username, "admin")
	if err != nil {
		log.Error("failed to generate token", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	log.Info("login success", slog.String("username", req.Username))
	render.JSON(w, r, response.OKWithData(map[string]any{
		"token":    token,
		"username": req.Username,
	}))
}
