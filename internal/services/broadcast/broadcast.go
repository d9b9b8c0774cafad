// Package services содержит конвейер рассылок: постановка сообщений
// в очередь RabbitMQ и доставка с ограничением частоты отправки.
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/streadway/amqp"
	"golang.org/x/time/rate"

	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/metrics"
	"github.com/x10club/club-bot/internal/rabbitmq"
)

// Аудитории рассылки.
const (
	AudienceAll     = "all"
	AudienceMembers = "members"
)

// Лимит Bot API на исходящие сообщения.
const sendRatePerSecond = 25

// Message — единица рассылки в очереди.
type Message struct {
	ID     string `json:"id"`
	UserID int64  `json:"user_id"`
	Text   string `json:"text"`
}

// UserRepository выбирает получателей рассылки.
type UserRepository interface {
	// ListUserIDs возвращает всех пользователей.
	ListUserIDs(ctx context.Context) ([]int64, error)
	// ListUsersWithActiveSubscription возвращает действующих участников клуба.
	ListUsersWithActiveSubscription(ctx context.Context) ([]int64, error)
}

// Notifier отправляет сообщения пользователям.
type Notifier interface {
	SendMessage(chatID int64, text string) error
}

// Service реализует постановку рассылок в очередь и их доставку.
type Service struct {
	repo     UserRepository
	notifier Notifier
	channel  rabbitmq.Publisher
	limiter  *rate.Limiter
	log      *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo UserRepository, notifier Notifier, channel rabbitmq.Publisher, log *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		notifier: notifier,
		channel:  channel,
		limiter:  rate.NewLimiter(rate.Limit(sendRatePerSecond), sendRatePerSecond),
		log:      log,
	}
}

// Enqueue ставит рассылку в очередь для указанной аудитории.
// Возвращает число получателей.
func (s *Service) Enqueue(ctx context.Context, text, audience string) (int, error) {
	const op = "services.broadcast.Enqueue"

	var userIDs []int64
	var err error
	switch audience {
	case AudienceMembers:
		userIDs, err = s.repo.ListUsersWithActiveSubscription(ctx)
	default:
		userIDs, err = s.repo.ListUserIDs(ctx)
	}
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	broadcastID := uuid.NewString()
	for _, userID := range userIDs {
		msg := Message{ID: broadcastID, UserID: userID, Text: text}
		if err := s.publish(msg); err != nil {
			s.log.Error("failed to enqueue broadcast message",
				slog.Int64("user_id", userID), sl.Err(err))
		}
	}
	s.log.Info("enqueued broadcast",
		slog.String("broadcast_id", broadcastID),
		slog.String("audience", audience),
		slog.Int("recipients", len(userIDs)))
	return len(userIDs), nil
}

func (s *Service) publish(msg Message) error {
	return rabbitmq.PublishMessage(s.channel, rabbitmq.ExchangeName, rabbitmq.RoutingKey, msg)
}

// RunConsumer запускает доставку сообщений из очереди. Возвращает
// управление сразу, доставка идет в фоне до отмены контекста.
func (s *Service) RunConsumer(ctx context.Context, ch *amqp.Channel) error {
	const op = "services.broadcast.RunConsumer"
	err := rabbitmq.ConsumerMessage(ctx, ch, rabbitmq.QueueName, func(body []byte) error {
		return s.deliver(ctx, body)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// deliver отправляет одно сообщение рассылки с учетом лимита частоты.
func (s *Service) deliver(ctx context.Context, body []byte) error {
	var msg Message
	if err := json.Unmarshal(body, &msg); err != nil {
		// Сообщение с битым JSON не станет доставляемым при повторе.
		s.log.Error("failed to decode broadcast message", sl.Err(err))
		metrics.BroadcastMessagesTotal.WithLabelValues("invalid").Inc()
		return nil
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}
	if err := s.notifier.SendMessage(msg.UserID, msg.Text); err != nil {
		metrics.BroadcastMessagesTotal.WithLabelValues("failed").Inc()
		s.log.Error("failed to deliver broadcast message",
			slog.Int64("user_id", msg.UserID), sl.Err(err))
		return err
	}
	metrics.BroadcastMessagesTotal.WithLabelValues("delivered").Inc()
	return nil
}
