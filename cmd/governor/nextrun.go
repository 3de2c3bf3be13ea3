package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/xela07ax/spaceai-governor/internal/domain"
	"github.com/xela07ax/spaceai-governor/internal/infra"
	"github.com/xela07ax/spaceai-governor/internal/schedule"
)

var nextRunFlags struct {
	typ        string
	hour       int
	dayOfWeek  int
	dayOfMonth int
	runDate    string
	endDate    string
	now        string
	timezone   string
}

var nextRunCmd = &cobra.Command{
	Use:   "next-run",
	Short: "Compute the next firing time of a recurrence",
	Example: `  governor next-run --type weekly --hour 9 --day-of-week 1
  governor next-run --type once --hour 14 --run-date 2025-03-12 --now 2025-03-10T08:00:00Z`,
	Args: cobra.NoArgs,
	RunE: runNextRun,
}

func init() {
	f := nextRunCmd.Flags()
	f.StringVar(&nextRunFlags.typ, "type", "", "recurrence type: none, once, daily, weekly, monthly")
	f.IntVar(&nextRunFlags.hour, "hour", 0, "hour of day (0-23)")
	f.IntVar(&nextRunFlags.dayOfWeek, "day-of-week", 0, "weekday for weekly, 0 = Sunday")
	f.IntVar(&nextRunFlags.dayOfMonth, "day-of-month", 1, "day for monthly (1-31)")
	f.StringVar(&nextRunFlags.runDate, "run-date", "", "date for once (YYYY-MM-DD)")
	f.StringVar(&nextRunFlags.endDate, "end-date", "", "last date the recurrence may fire (YYYY-MM-DD)")
	f.StringVar(&nextRunFlags.now, "now", "", "reference time in RFC3339 (default: current time)")
	f.StringVar(&nextRunFlags.timezone, "tz", "", "IANA timezone (default: schedule.timezone from config)")
	_ = nextRunCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(nextRunCmd)
}

func runNextRun(cmd *cobra.Command, args []string) error {
	loc, err := nextRunLocation()
	if err != nil {
		return err
	}

	now := time.Now().In(loc)
	if nextRunFlags.now != "" {
		t, err := time.Parse(time.RFC3339, nextRunFlags.now)
		if err != nil {
			return fmt.Errorf("invalid --now: %w", err)
		}
		now = t.In(loc)
	}

	spec := domain.RecurrenceSpec{
		Type:    domain.RecurrenceType(nextRunFlags.typ),
		Hour:    nextRunFlags.hour,
		RunDate: nextRunFlags.runDate,
		EndDate: nextRunFlags.endDate,
	}
	// Флаги дня учитываются, только если заданы явно
	if cmd.Flags().Changed("day-of-week") {
		dow := nextRunFlags.dayOfWeek
		spec.DayOfWeek = &dow
	}
	if cmd.Flags().Changed("day-of-month") || spec.Type == domain.RecurrenceMonthly {
		dom := nextRunFlags.dayOfMonth
		spec.DayOfMonth = &dom
	}

	next, ok := schedule.NextRun(spec, now)
	if !ok {
		fmt.Fprintln(cmd.OutOrStdout(), "none")
		return nil
	}
	fmt.Fprintln(cmd.OutOrStdout(), next.Format(time.RFC3339))
	return nil
}

func nextRunLocation() (*time.Location, error) {
	if nextRunFlags.timezone != "" {
		return time.LoadLocation(nextRunFlags.timezone)
	}
	cfg, err := infra.LoadConfig(cfgFile)
	if err != nil {
		return nil, err
	}
	return cfg.Schedule.Location()
}
