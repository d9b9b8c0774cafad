// Package services содержит планировщик фоновых задач движка:
// чистка истекших подписок, напоминания, опрос крипто-инвойсов,
// отчеты и периодические рассылки.
package services

import (
	"context"
	"log/slog"
	"time"

	"github.com/x10club/club-bot/internal/lib/sl"
	"github.com/x10club/club-bot/internal/lib/timetable"
)

// Расписание задач.
const (
	sweepInterval = time.Hour

	expiryNoticeHour   = 12
	expiryNoticeMinute = 0

	referralReminderHour   = 10
	referralReminderMinute = 0

	statsReportHour   = 0
	statsReportMinute = 5

	activityReminderWeekday = time.Monday
	activityReminderHour    = 9
	activityReminderMinute  = 0

	limitedOfferDay    = 1
	limitedOfferHour   = 9
	limitedOfferMinute = 0
)

// За сколько дней до окончания подписки отправляются напоминания.
var expiryNoticeOffsets = []int{3, 1}

// Subscriptions — задачи подписок: чистка и напоминания об окончании.
type Subscriptions interface {
	SweepExpired(ctx context.Context) error
	NotifyExpiring(ctx context.Context, offsets []int) error
}

// Invoices — опрос незавершенных крипто-инвойсов.
type Invoices interface {
	PollPendingInvoices(ctx context.Context) error
}

// Reports — отчеты и периодические рассылки.
type Reports interface {
	DailyReport(ctx context.Context) error
	ReferralReminders(ctx context.Context) error
	ActivityReminders(ctx context.Context) error
	LimitedOffers(ctx context.Context) error
}

// SchedulerService запускает фоновые задачи по расписанию.
type SchedulerService struct {
	subscriptions Subscriptions
	invoices      Invoices
	reports       Reports
	pollInterval  time.Duration
	log           *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(subscriptions Subscriptions, invoices Invoices, reports Reports,
	pollInterval time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		subscriptions: subscriptions,
		invoices:      invoices,
		reports:       reports,
		pollInterval:  pollInterval,
		log:           log,
	}
}

// Start запускает все задачи планировщика. Каждая задача живет
// в своей горутине до отмены контекста.
func (s *SchedulerService) Start(ctx context.Context) {
	go s.runSweep(ctx)
	go s.runCryptoPoll(ctx)
	go s.runDaily(ctx, "expiry notices", expiryNoticeHour, expiryNoticeMinute, func(ctx context.Context) error {
		return s.subscriptions.NotifyExpiring(ctx, expiryNoticeOffsets)
	})
	go s.runDaily(ctx, "referral reminders", referralReminderHour, referralReminderMinute,
		s.reports.ReferralReminders)
	go s.runDaily(ctx, "stats report", statsReportHour, statsReportMinute,
		s.reports.DailyReport)
	go s.runWeekly(ctx, "activity reminders", activityReminderWeekday,
		activityReminderHour, activityReminderMinute, s.reports.ActivityReminders)
	go s.runMonthly(ctx, "limited offers", limitedOfferDay,
		limitedOfferHour, limitedOfferMinute, s.reports.LimitedOffers)
}

// runSweep чистит истекшие подписки сразу при старте и далее ежечасно.
func (s *SchedulerService) runSweep(ctx context.Context) {
	s.runJob(ctx, "expiry sweep", s.subscriptions.SweepExpired)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runJob(ctx, "expiry sweep", s.subscriptions.SweepExpired)
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runCryptoPoll(ctx context.Context) {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runJob(ctx, "crypto invoice poll", s.invoices.PollPendingInvoices)
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runDaily(ctx context.Context, name string, hour, minute int, job func(context.Context) error) {
	timer := time.NewTimer(timetable.UntilDaily(time.Now(), hour, minute))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runJob(ctx, name, job)
			timer.Reset(timetable.UntilDaily(time.Now(), hour, minute))
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runWeekly(ctx context.Context, name string, weekday time.Weekday, hour, minute int, job func(context.Context) error) {
	timer := time.NewTimer(timetable.UntilWeekly(time.Now(), weekday, hour, minute))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runJob(ctx, name, job)
			timer.Reset(timetable.UntilWeekly(time.Now(), weekday, hour, minute))
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runMonthly(ctx context.Context, name string, day, hour, minute int, job func(context.Context) error) {
	timer := time.NewTimer(timetable.UntilMonthly(time.Now(), day, hour, minute))
	defer timer.Stop()

	for {
		select {
		case <-timer.C:
			s.runJob(ctx, name, job)
			timer.Reset(timetable.UntilMonthly(time.Now(), day, hour, minute))
		case <-ctx.Done():
			return
		}
	}
}

func (s *SchedulerService) runJob(ctx context.Context, name string, job func(context.Context) error) {
	s.log.Info("running scheduled job", slog.String("job", name))
	if err := job(ctx); err != nil {
		s.log.Error("scheduled job failed", slog.String("job", name), sl.Err(err))
	}
}
