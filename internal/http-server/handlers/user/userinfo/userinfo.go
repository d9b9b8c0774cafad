// Package userinfo реализует HTTP-обработчик карточки пользователя:
// профиль, состояние подписки и сводка реферальной программы.
package userinfo

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
	"github.com/x10club/club-bot/internal/models"
	referral "github.com/x10club/club-bot/internal/services/referral"
	subscription "github.com/x10club/club-bot/internal/services/subscription"
	"github.com/x10club/club-bot/internal/storage/repository"
)

// UserRepository возвращает профиль пользователя.
type UserRepository interface {
	GetUser(ctx context.Context, userID int64) (*models.User, error)
}

// SubscriptionService возвращает состояние подписки.
type SubscriptionService interface {
	Check(ctx context.Context, userID int64) (*subscription.Status, error)
}

// ReferralService возвращает сводку реферальной программы.
type ReferralService interface {
	Summarize(ctx context.Context, userID int64) (*referral.Summary, error)
}

// Handler обрабатывает HTTP-запросы карточки пользователя.
type Handler struct {
	log           *slog.Logger
	users         UserRepository
	subscriptions SubscriptionService
	referrals     ReferralService
}

// New создает новый экземпляр Handler.
func New(log *slog.Logger, users UserRepository, subscriptions SubscriptionService, referrals ReferralService) *Handler {
	return &Handler{
		log:           log,
		users:         users,
		subscriptions: subscriptions,
		referrals:     referrals,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.user.userinfo"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	idStr := chi.URLParam(r, "id")
	userID, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		log.Error("invalid user id", slog.String("id", idStr))
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, response.Error("invalid user id"))
		return
	}

	user, err := h.users.GetUser(r.Context(), userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			render.Status(r, http.StatusNotFound)
			render.JSON(w, r, response.Error("user not found"))
			return
		}
		log.Error("failed to get user", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	status, err := h.subscriptions.Check(r.Context(), userID)
	if err != nil {
		log.Error("failed to check subscription", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	summary, err := h.referrals.Summarize(r.Context(), userID)
	if err != nil {
		log.Error("failed to get referral summary", sl.Err(err))
		render.Status(r, http.StatusInternalServerError)
		render.JSON(w, r, response.Error("internal error"))
		return
	}

	render.JSON(w, r, response.OKWithData(map[string]any{
		"user":         user,
		"subscription": status,
		"referral":     summary,
	}))
}
