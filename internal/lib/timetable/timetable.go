// Package timetable считает время ожидания до следующего запуска
// периодических задач: ежедневных, еженедельных и ежемесячных.
package timetable

import "time"

// UntilDaily возвращает длительность до ближайшего наступления
// указанного часа и минуты. Если момент уже прошел сегодня,
// берется завтрашний день.
func UntilDaily(now time.Time, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next.Sub(now)
}

// UntilWeekly возвращает длительность до ближайшего наступления
// указанного дня недели в указанный час и минуту.
func UntilWeekly(now time.Time, weekday time.Weekday, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	daysAhead := (int(weekday) - int(now.Weekday()) + 7) % 7
	next = next.AddDate(0, 0, daysAhead)
	if !next.After(now) {
		next = next.AddDate(0, 0, 7)
	}
	return next.Sub(now)
}

// UntilMonthly возвращает длительность до ближайшего наступления
// указанного числа месяца в указанный час и минуту.
func UntilMonthly(now time.Time, day, hour, minute int) time.Duration {
	next := time.Date(now.Year(), now.Month(), day, hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = time.Date(now.Year(), now.Month()+1, day, hour, minute, 0, 0, now.Location())
	}
	return next.Sub(now)
}

// SameDate сообщает, приходятся ли два момента на один календарный день.
func SameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
