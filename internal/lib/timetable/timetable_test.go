package timetable_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/x10club/club-bot/internal/lib/timetable"
)

func TestUntilDaily(t *testing.T) {
	// Среда, 10:30.
	now := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)

	tests := []struct {
		name   string
		hour   int
		minute int
		want   time.Duration
	}{
		{name: "later today", hour: 12, minute: 0, want: 90 * time.Minute},
		{name: "already passed", hour: 10, minute: 0, want: 23*time.Hour + 30*time.Minute},
		{name: "exactly now rolls to tomorrow", hour: 10, minute: 30, want: 24 * time.Hour},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, timetable.UntilDaily(now, tt.hour, tt.minute))
		})
	}
}

func TestUntilWeekly(t *testing.T) {
	// Среда, 10:30.
	now := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)

	got := timetable.UntilWeekly(now, time.Monday, 9, 0)
	// Следующий понедельник 09:00 — 17 марта.
	want := time.Date(2025, 3, 17, 9, 0, 0, 0, time.UTC).Sub(now)
	assert.Equal(t, want, got)

	// Сегодняшний день недели, но время уже прошло: через неделю.
	got = timetable.UntilWeekly(now, time.Wednesday, 9, 0)
	want = time.Date(2025, 3, 19, 9, 0, 0, 0, time.UTC).Sub(now)
	assert.Equal(t, want, got)
}

func TestUntilMonthly(t *testing.T) {
	now := time.Date(2025, 3, 12, 10, 30, 0, 0, time.UTC)

	// Первое число уже прошло: ждем первого апреля.
	got := timetable.UntilMonthly(now, 1, 9, 0)
	want := time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC).Sub(now)
	assert.Equal(t, want, got)

	// Число еще впереди в текущем месяце.
	got = timetable.UntilMonthly(now, 20, 9, 0)
	want = time.Date(2025, 3, 20, 9, 0, 0, 0, time.UTC).Sub(now)
	assert.Equal(t, want, got)
}

func TestSameDate(t *testing.T) {
	a := time.Date(2025, 3, 12, 0, 1, 0, 0, time.UTC)
	b := time.Date(2025, 3, 12, 23, 59, 0, 0, time.UTC)
	c := time.Date(2025, 3, 13, 0, 0, 0, 0, time.UTC)

	assert.True(t, timetable.SameDate(a, b))
	assert.False(t, timetable.SameDate(a, c))
}
