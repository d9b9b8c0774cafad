package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Метрики платежей
	PaymentsConfirmedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_confirmed_total",
			Help: "Total number of confirmed payments",
		},
		[]string{"product_type", "payment_method"},
	)
	PaymentsDuplicateConfirmTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "payments_duplicate_confirm_total",
			Help: "Total number of confirm attempts on already-processed payments",
		},
	)
	CryptoInvoicesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypto_invoices_total",
			Help: "Total number of crypto invoices by outcome",
		},
		[]string{"status"},
	)

	// Метрики подписок
	SubscriptionsGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subscriptions_granted_total",
			Help: "Total number of granted subscription periods",
		},
		[]string{"reason"},
	)
	SubscriptionsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subscriptions_expired_total",
			Help: "Total number of subscriptions deactivated by the sweep",
		},
	)

	// Метрики рефералов
	ReferralsRegisteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "referrals_registered_total",
			Help: "Total number of registered referrals",
		},
	)
	ReferralMilestonesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "referral_milestones_total",
			Help: "Total number of reached referral milestones",
		},
		[]string{"milestone"},
	)

	// Метрики рассылок
	BroadcastMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_messages_total",
			Help: "Total number of broadcast deliveries by outcome",
		},
		[]string{"status"},
	)
)

func init() {
	prometheus.MustRegister(PaymentsConfirmedTotal)
	prometheus.MustRegister(PaymentsDuplicateConfirmTotal)
	prometheus.MustRegister(CryptoInvoicesTotal)
	prometheus.MustRegister(SubscriptionsGrantedTotal)
	prometheus.MustRegister(SubscriptionsExpiredTotal)
	prometheus.MustRegister(ReferralsRegisteredTotal)
	prometheus.MustRegister(ReferralMilestonesTotal)
	prometheus.MustRegister(BroadcastMessagesTotal)
}
