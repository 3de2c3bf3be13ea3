// Package schedule считает следующее срабатывание повторяющихся событий.
package schedule

import (
	"time"

	"github.com/xela07ax/spaceai-governor/internal/domain"
)

type RecurrenceSpec = domain.RecurrenceSpec

const dateLayout = "2006-01-02"

// NextRun возвращает ближайший момент строго после now в часовом поясе now.
// false означает "нет запуска": расписание закончилось, не задано или некорректно.
// Для monthly день, которого нет в месяце, прижимается к последнему дню месяца.
func NextRun(spec RecurrenceSpec, now time.Time) (time.Time, bool) {
	if spec.Hour < 0 || spec.Hour > 23 {
		return time.Time{}, false
	}
	loc := now.Location()
	y, m, d := now.Date()

	var next time.Time
	switch spec.Type {
	case domain.RecurrenceOnce:
		ry, rm, rd, ok := parseDate(spec.RunDate)
		if !ok {
			return time.Time{}, false
		}
		next = time.Date(ry, rm, rd, spec.Hour, 0, 0, 0, loc)

	case domain.RecurrenceDaily:
		next = time.Date(y, m, d, spec.Hour, 0, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, m, d+1, spec.Hour, 0, 0, 0, loc)
		}

	case domain.RecurrenceWeekly:
		if spec.DayOfWeek == nil || *spec.DayOfWeek < 0 || *spec.DayOfWeek > 6 {
			return time.Time{}, false
		}
		ahead := (*spec.DayOfWeek - int(now.Weekday()) + 7) % 7
		next = time.Date(y, m, d+ahead, spec.Hour, 0, 0, 0, loc)
		if !next.After(now) {
			next = time.Date(y, m, d+ahead+7, spec.Hour, 0, 0, 0, loc)
		}

	case domain.RecurrenceMonthly:
		if spec.DayOfMonth == nil || *spec.DayOfMonth < 1 || *spec.DayOfMonth > 31 {
			return time.Time{}, false
		}
		next = monthDay(y, m, *spec.DayOfMonth, spec.Hour, loc)
		if !next.After(now) {
			next = monthDay(y, m+1, *spec.DayOfMonth, spec.Hour, loc)
		}

	default:
		return time.Time{}, false
	}

	if !next.After(now) {
		return time.Time{}, false
	}

	if spec.EndDate != "" {
		ey, em, ed, ok := parseDate(spec.EndDate)
		if !ok {
			return time.Time{}, false
		}
		// конец дня endDate включительно
		if !next.Before(time.Date(ey, em, ed+1, 0, 0, 0, 0, loc)) {
			return time.Time{}, false
		}
	}
	return next, true
}

// monthDay нормализует месяц и прижимает day к его последнему дню.
func monthDay(y int, m time.Month, day, hour int, loc *time.Location) time.Time {
	first := time.Date(y, m, 1, 0, 0, 0, 0, loc)
	if last := daysIn(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, 0, 0, 0, loc)
}

func daysIn(y int, m time.Month) int {
	return time.Date(y, m+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// parseDate принимает YYYY-MM-DD или RFC3339 (берется только дата).
func parseDate(s string) (int, time.Month, int, bool) {
	if t, err := time.Parse(dateLayout, s); err == nil {
		y, m, d := t.Date()
		return y, m, d, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		y, m, d := t.Date()
		return y, m, d, true
	}
	return 0, 0, 0, false
}
