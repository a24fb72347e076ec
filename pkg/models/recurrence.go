package models

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// RecurrenceFrequency selects the calendar unit of a recurrence rule.
type RecurrenceFrequency string

const (
	RecurrenceDaily   RecurrenceFrequency = "daily"
	RecurrenceWeekly  RecurrenceFrequency = "weekly"
	RecurrenceMonthly RecurrenceFrequency = "monthly"
)

// Recurrence describes when a recurring campaign fires: a frequency, the
// days it applies to, and a time of day. Occurrences are computed through a
// standard 5-field cron expression so the batch runner never needs its own
// calendar arithmetic.
type Recurrence struct {
	Frequency RecurrenceFrequency `json:"frequency" validate:"required,oneof=daily weekly monthly"`

	// Weekdays applies to weekly rules (0 = Sunday).
	Weekdays []time.Weekday `json:"weekdays,omitempty"`

	// MonthDays applies to monthly rules (1-31).
	MonthDays []int `json:"month_days,omitempty"`

	// At is the time of day in "15:04" form, interpreted in UTC.
	At string `json:"at" validate:"required"`
}

// ErrInvalidRecurrence is returned when recurrence validation fails.
var ErrInvalidRecurrence = errors.New("invalid recurrence rule")

// Validate checks the rule's fields and that it compiles to a parseable
// cron expression.
func (r *Recurrence) Validate() error {
	switch r.Frequency {
	case RecurrenceDaily:
	case RecurrenceWeekly:
		if len(r.Weekdays) == 0 {
			return fmt.Errorf("%w: weekly rule requires weekdays", ErrInvalidRecurrence)
		}
	case RecurrenceMonthly:
		if len(r.MonthDays) == 0 {
			return fmt.Errorf("%w: monthly rule requires month days", ErrInvalidRecurrence)
		}

		for _, day := range r.MonthDays {
			if day < 1 || day > 31 {
				return fmt.Errorf("%w: month day %d out of range", ErrInvalidRecurrence, day)
			}
		}
	default:
		return fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, r.Frequency)
	}

	expr, err := r.CronExpression()
	if err != nil {
		return err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	return nil
}

// CronExpression compiles the rule to a 5-field cron expression
// (minute hour day month weekday).
func (r *Recurrence) CronExpression() (string, error) {
	hour, minute, err := r.timeOfDay()
	if err != nil {
		return "", err
	}

	switch r.Frequency {
	case RecurrenceDaily:
		return fmt.Sprintf("%d %d * * *", minute, hour), nil
	case RecurrenceWeekly:
		return fmt.Sprintf("%d %d * * %s", minute, hour, joinInts(weekdayInts(r.Weekdays))), nil
	case RecurrenceMonthly:
		return fmt.Sprintf("%d %d %s * *", minute, hour, joinInts(r.MonthDays)), nil
	default:
		return "", fmt.Errorf("%w: unknown frequency %q", ErrInvalidRecurrence, r.Frequency)
	}
}

// NextAfter returns the first occurrence strictly after t.
func (r *Recurrence) NextAfter(t time.Time) (time.Time, error) {
	expr, err := r.CronExpression()
	if err != nil {
		return time.Time{}, err
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

	schedule, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrInvalidRecurrence, err)
	}

	return schedule.Next(t.UTC()), nil
}

// DueWithin reports whether an occurrence of the rule falls inside
// (now-tolerance, now]. The tolerance window frees the poller from
// exact-second alignment with the rule's time of day.
func (r *Recurrence) DueWithin(now time.Time, tolerance time.Duration) (bool, error) {
	next, err := r.NextAfter(now.Add(-tolerance))
	if err != nil {
		return false, err
	}

	return !next.After(now.UTC()), nil
}

// SamePeriod reports whether a and b fall in the same calendar period of the
// rule: same day for daily, same ISO week for weekly, same month for monthly.
func (r *Recurrence) SamePeriod(a, b time.Time) bool {
	a, b = a.UTC(), b.UTC()

	switch r.Frequency {
	case RecurrenceDaily:
		return a.Year() == b.Year() && a.YearDay() == b.YearDay()
	case RecurrenceWeekly:
		aYear, aWeek := a.ISOWeek()
		bYear, bWeek := b.ISOWeek()

		return aYear == bYear && aWeek == bWeek
	case RecurrenceMonthly:
		return a.Year() == b.Year() && a.Month() == b.Month()
	default:
		return false
	}
}

func (r *Recurrence) timeOfDay() (hour, minute int, err error) {
	parts := strings.SplitN(r.At, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalidRecurrence, r.At)
	}

	hour, err = strconv.Atoi(parts[0])
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalidRecurrence, r.At)
	}

	minute, err = strconv.Atoi(parts[1])
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("%w: time of day %q", ErrInvalidRecurrence, r.At)
	}

	return hour, minute, nil
}

func weekdayInts(days []time.Weekday) []int {
	ints := make([]int, 0, len(days))
	for _, d := range days {
		ints = append(ints, int(d))
	}

	return ints
}

func joinInts(values []int) string {
	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)

	parts := make([]string, 0, len(sorted))
	for _, v := range sorted {
		parts = append(parts, strconv.Itoa(v))
	}

	return strings.Join(parts, ",")
}
