package application

import (
	"fmt"

	"github.com/ericfisherdev/casewatch/internal/domain/model"
)

const (
	minutesPerHour = 60
	minutesPerDay  = 24 * minutesPerHour
	maxDays        = 31
)

// RecurrenceUnit is the granularity a poll interval is scheduled at.
type RecurrenceUnit string

const (
	EveryMinutes RecurrenceUnit = "minutes"
	EveryHours   RecurrenceUnit = "hours"
	EveryDays    RecurrenceUnit = "days"
)

// Recurrence is a derived polling schedule. Expr is a standard five-field
// cron expression.
type Recurrence struct {
	Unit  RecurrenceUnit
	Every int
	Expr  string
}

// DeriveRecurrence converts a days/hours/minutes interval into a cron
// schedule. Intervals under an hour fire every N minutes, intervals under a
// day fire every N whole hours, and longer intervals fire every N whole days.
// Day steps restart on the first of each month, so intervals over 15 days are
// not uniform. Days above 31 are rejected.
func DeriveRecurrence(days, hours, minutes int) (Recurrence, error) {
	if err := validateInterval(days, hours, minutes); err != nil {
		return Recurrence{}, err
	}

	total := model.PollConfig{Days: days, Hours: hours, Minutes: minutes}.TotalMinutes()
	switch {
	case total < minutesPerHour:
		return Recurrence{Unit: EveryMinutes, Every: total, Expr: fmt.Sprintf("*/%d * * * *", total)}, nil
	case total < minutesPerDay:
		h := total / minutesPerHour
		return Recurrence{Unit: EveryHours, Every: h, Expr: fmt.Sprintf("0 */%d * * *", h)}, nil
	default:
		d := total / minutesPerDay
		return Recurrence{Unit: EveryDays, Every: d, Expr: fmt.Sprintf("0 0 */%d * *", d)}, nil
	}
}

func validateInterval(days, hours, minutes int) error {
	switch {
	case days < 0:
		return fmt.Errorf("%w: days must not be negative", ErrValidation)
	case days > maxDays:
		return fmt.Errorf("%w: days must not exceed %d", ErrValidation, maxDays)
	case hours < 0 || hours >= 24:
		return fmt.Errorf("%w: hours must be between 0 and 23", ErrValidation)
	case minutes < 0 || minutes >= minutesPerHour:
		return fmt.Errorf("%w: minutes must be between 0 and 59", ErrValidation)
	case days == 0 && hours == 0 && minutes == 0:
		return fmt.Errorf("%w: interval must be at least one minute", ErrValidation)
	}
	return nil
}
