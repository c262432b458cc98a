package post

import (
	"time"

	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

// Date filters accepted by the post listing endpoint.
const (
	FilterThisMonth   = "this_month"
	FilterLast6Months = "last_6_months"
	FilterLastYear    = "last_1_year"
	FilterLast10Years = "last_10_years"
)

// DateFloor maps a named filter to the earliest creation time it admits,
// using calendar arithmetic rather than fixed-length windows.
func DateFloor(filter string, now time.Time) (time.Time, error) {
	switch filter {
	case FilterThisMonth:
		return now.AddDate(0, -1, 0), nil
	case FilterLast6Months:
		return now.AddDate(0, -6, 0), nil
	case FilterLastYear:
		return now.AddDate(-1, 0, 0), nil
	case FilterLast10Years:
		return now.AddDate(-10, 0, 0), nil
	default:
		return time.Time{}, utils.Validation("Validation failed", utils.FieldError{
			Field:   "date_filter",
			Message: "must be one of: this_month last_6_months last_1_year last_10_years",
			Type:    "oneof",
		})
	}
}
