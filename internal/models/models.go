// Package models содержит доменные структуры бота клуба:
// пользователи, подписки, платежи, криптоплатежи, рефералы и мероприятия.
package models

import "time"

// Статусы подписки.
const (
	SubscriptionActive  = "active"
	SubscriptionExpired = "expired"
)

// Статусы платежа. Обычный платёж знает только pending и confirmed,
// криптоплатёж дополнительно может истечь.
const (
	PaymentPending   = "pending"
	PaymentConfirmed = "confirmed"
	PaymentExpired   = "expired"
)

// Типы продуктов.
const (
	ProductClub         = "club"
	ProductVietnam      = "vietnam"
	ProductConsultation = "consultation"
)

// Способы оплаты. Криптоплатёж хранится как "crypto:<ASSET>".
const (
	MethodCard         = "card"
	MethodStars        = "stars"
	MethodCryptoPrefix = "crypto:"
)

// User представляет пользователя бота. Создаётся при первом контакте,
// никогда не удаляется. Balance — бонусные баллы (1 балл = 1 рубль).
// ReferralMilestone — наибольший достигнутый уровень реферальной программы.
type User struct {
	UserID            int64
	Username          string
	FirstName         string
	LastName          string
	RegistrationDate  time.Time
	Balance           int
	IsAdmin           bool
	ReferralMilestone int
}

// Subscription представляет членство пользователя в клубе.
// Для проверки доступа значима одна активная запись с наибольшим EndDate.
type Subscription struct {
	ID        int
	UserID    int64
	StartDate time.Time
	EndDate   time.Time
	Status    string
}

// Payment представляет платёж картой или Telegram Stars.
// Amount хранится в минимальных единицах валюты (рубли).
// ConfirmedAt равен nil, пока платёж не подтверждён.
type Payment struct {
	ID            int
	UserID        int64
	Amount        int
	ProductType   string
	PaymentMethod string
	Status        string
	CreatedAt     time.Time
	ConfirmedAt   *time.Time
}

// CryptoPayment представляет платёж через Crypto Pay.
// Подтверждается опросом статуса инвойса, а не действием администратора,
// поэтому хранится отдельно от Payment. Amount — десятичная строка.
type CryptoPayment struct {
	ID          int
	UserID      int64
	InvoiceID   string
	Asset       string
	Amount      string
	ProductType string
	Status      string
	CreatedAt   time.Time
	PaidAt      *time.Time
}

// Referral — ребро "приглашённый -> пригласивший".
// Пользователь может быть приглашён не более одного раза.
type Referral struct {
	ID         int
	UserID     int64
	ReferrerID int64
	JoinDate   time.Time
	IsActive   bool
}

// Event представляет мероприятие клуба. MaxParticipants равен nil,
// если ограничения по количеству участников нет.
type Event struct {
	ID              int
	Name            string
	Description     string
	EventDate       time.Time
	Price           int
	MaxParticipants *int
}

// EventRegistration — регистрация пользователя на мероприятие.
// PaymentID равен nil для бесплатных регистраций.
type EventRegistration struct {
	ID               int
	EventID          int
	UserID           int64
	PaymentID        *int
	RegistrationDate time.Time
	Status           string
}

// PendingCryptoPayment — криптоплатёж вместе с данными пользователя,
// используется циклом опроса инвойсов.
type PendingCryptoPayment struct {
	CryptoPayment
	Username  string
	FirstName string
}

// Stats — срез статистики для ежедневного отчёта администраторам.
type Stats struct {
	TotalUsers          int
	ActiveSubscriptions int
	TotalReferrals      int
	DailyPayments       int
}
