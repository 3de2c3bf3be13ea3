package schedule

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xela07ax/spaceai-governor/internal/domain"
)

func intp(v int) *int { return &v }

// 2026-03-04 среда
var wed10 = time.Date(2026, 3, 4, 10, 0, 0, 0, time.UTC)

func TestNextRun(t *testing.T) {
	cases := []struct {
		name string
		spec RecurrenceSpec
		now  time.Time
		want time.Time
		ok   bool
	}{
		{
			name: "none",
			spec: RecurrenceSpec{Type: domain.RecurrenceNone, Hour: 9},
			now:  wed10,
		},
		{
			name: "once in the future",
			spec: RecurrenceSpec{Type: domain.RecurrenceOnce, RunDate: "2026-03-05", Hour: 9},
			now:  wed10,
			want: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "once yesterday",
			spec: RecurrenceSpec{Type: domain.RecurrenceOnce, RunDate: "2026-03-03", Hour: 9},
			now:  wed10,
		},
		{
			name: "once today but hour passed",
			spec: RecurrenceSpec{Type: domain.RecurrenceOnce, RunDate: "2026-03-04", Hour: 10},
			now:  wed10,
		},
		{
			name: "once accepts RFC3339 date",
			spec: RecurrenceSpec{Type: domain.RecurrenceOnce, RunDate: "2026-03-06T00:00:00Z", Hour: 8},
			now:  wed10,
			want: time.Date(2026, 3, 6, 8, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "daily later today",
			spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 18},
			now:  wed10,
			want: time.Date(2026, 3, 4, 18, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "daily hour passed rolls to tomorrow",
			spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 9},
			now:  wed10,
			want: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "daily exactly now rolls to tomorrow",
			spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 10},
			now:  wed10,
			want: time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "weekly same day hour passed rolls a full week",
			spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, DayOfWeek: intp(3), Hour: 9},
			now:  wed10,
			want: time.Date(2026, 3, 11, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "weekly same day later hour",
			spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, DayOfWeek: intp(3), Hour: 11},
			now:  wed10,
			want: time.Date(2026, 3, 4, 11, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "weekly earlier weekday goes to next week",
			spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, DayOfWeek: intp(1), Hour: 9},
			now:  wed10,
			want: time.Date(2026, 3, 9, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "weekly sunday",
			spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, DayOfWeek: intp(0), Hour: 0},
			now:  wed10,
			want: time.Date(2026, 3, 8, 0, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "monthly later this month",
			spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(15), Hour: 9},
			now:  wed10,
			want: time.Date(2026, 3, 15, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "monthly passed rolls to next month",
			spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(1), Hour: 9},
			now:  wed10,
			want: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "monthly day 31 clamps to 30 in april",
			spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(31), Hour: 9},
			now:  time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 4, 30, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "monthly day 31 clamps to february end",
			spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(31), Hour: 9},
			now:  time.Date(2026, 2, 10, 12, 0, 0, 0, time.UTC),
			want: time.Date(2026, 2, 28, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "monthly december rolls into next year",
			spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(5), Hour: 9},
			now:  time.Date(2026, 12, 20, 12, 0, 0, 0, time.UTC),
			want: time.Date(2027, 1, 5, 9, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{
			name: "end date before candidate",
			spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 9, EndDate: "2026-03-04"},
			now:  wed10,
		},
		{
			name: "end date includes its whole day",
			spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 23, EndDate: "2026-03-04"},
			now:  wed10,
			want: time.Date(2026, 3, 4, 23, 0, 0, 0, time.UTC),
			ok:   true,
		},
		{name: "unknown type", spec: RecurrenceSpec{Type: "hourly", Hour: 1}, now: wed10},
		{name: "empty type", spec: RecurrenceSpec{Hour: 1}, now: wed10},
		{name: "hour out of range", spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 24}, now: wed10},
		{name: "negative hour", spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: -1}, now: wed10},
		{name: "weekly without day", spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, Hour: 9}, now: wed10},
		{name: "weekly day 7", spec: RecurrenceSpec{Type: domain.RecurrenceWeekly, DayOfWeek: intp(7), Hour: 9}, now: wed10},
		{name: "monthly day 0", spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(0), Hour: 9}, now: wed10},
		{name: "monthly day 32", spec: RecurrenceSpec{Type: domain.RecurrenceMonthly, DayOfMonth: intp(32), Hour: 9}, now: wed10},
		{name: "once without date", spec: RecurrenceSpec{Type: domain.RecurrenceOnce, Hour: 9}, now: wed10},
		{name: "once malformed date", spec: RecurrenceSpec{Type: domain.RecurrenceOnce, RunDate: "04/03/2026", Hour: 9}, now: wed10},
		{name: "malformed end date", spec: RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 9, EndDate: "soon"}, now: wed10},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := NextRun(tc.spec, tc.now)
			require.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.True(t, tc.want.Equal(got), "want %s, got %s", tc.want, got)
			}
		})
	}
}

func TestNextRun_UsesLocationOfNow(t *testing.T) {
	loc := time.FixedZone("UTC+3", 3*3600)
	now := time.Date(2026, 3, 4, 8, 0, 0, 0, loc)

	got, ok := NextRun(RecurrenceSpec{Type: domain.RecurrenceDaily, Hour: 9}, now)
	require.True(t, ok)
	assert.Equal(t, time.Date(2026, 3, 4, 9, 0, 0, 0, loc), got)
	assert.Equal(t, loc, got.Location())
}

func genSpec() gopter.Gen {
	return gopter.CombineGens(
		gen.OneConstOf(domain.RecurrenceNone, domain.RecurrenceOnce, domain.RecurrenceDaily,
			domain.RecurrenceWeekly, domain.RecurrenceMonthly),
		gen.IntRange(-1, 24),
		gen.IntRange(-1, 7),
		gen.IntRange(0, 32),
		gen.IntRange(-40, 40),
		gen.IntRange(-1, 90),
	).Map(func(v []interface{}) RecurrenceSpec {
		base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		spec := RecurrenceSpec{
			Type:       v[0].(domain.RecurrenceType),
			Hour:       v[1].(int),
			DayOfWeek:  intp(v[2].(int)),
			DayOfMonth: intp(v[3].(int)),
			RunDate:    base.AddDate(0, 0, v[4].(int)).Format(dateLayout),
		}
		if end := v[5].(int); end >= 0 {
			spec.EndDate = base.AddDate(0, 0, end).Format(dateLayout)
		}
		return spec
	})
}

func genNow() gopter.Gen {
	return gen.Int64Range(0, 120*24*3600).Map(func(sec int64) time.Time {
		return time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(sec) * time.Second)
	})
}

func TestNextRun_Properties(t *testing.T) {
	params := gopter.DefaultTestParameters()
	params.MinSuccessfulTests = 1000
	properties := gopter.NewProperties(params)

	properties.Property("result is strictly after now", prop.ForAll(
		func(spec RecurrenceSpec, now time.Time) bool {
			next, ok := NextRun(spec, now)
			return !ok || next.After(now)
		},
		genSpec(), genNow(),
	))

	properties.Property("idempotent for the same input", prop.ForAll(
		func(spec RecurrenceSpec, now time.Time) bool {
			a, okA := NextRun(spec, now)
			b, okB := NextRun(spec, now)
			return okA == okB && a.Equal(b)
		},
		genSpec(), genNow(),
	))

	properties.Property("result lands on the requested hour", prop.ForAll(
		func(spec RecurrenceSpec, now time.Time) bool {
			next, ok := NextRun(spec, now)
			return !ok || (next.Hour() == spec.Hour && next.Minute() == 0 && next.Second() == 0)
		},
		genSpec(), genNow(),
	))

	properties.Property("weekly result is on the requested weekday within a week", prop.ForAll(
		func(spec RecurrenceSpec, now time.Time) bool {
			spec.Type = domain.RecurrenceWeekly
			spec.EndDate = ""
			next, ok := NextRun(spec, now)
			if !ok {
				return *spec.DayOfWeek < 0 || *spec.DayOfWeek > 6 || spec.Hour < 0 || spec.Hour > 23
			}
			return int(next.Weekday()) == *spec.DayOfWeek && next.Sub(now) <= 7*24*time.Hour
		},
		genSpec(), genNow(),
	))

	properties.TestingRun(t)
}
