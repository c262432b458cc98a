package payment

import (
	"errors"

	"gorm.io/gorm"

	"github.com/mridulsharma03/snapnet-server/cmd/models"
	"github.com/mridulsharma03/snapnet-server/cmd/utils"
)

// Plan is a subscription price point. Amounts are stripe unit amounts in
// cents.
type Plan struct {
	AmountCents int64
	// Interval is the stripe recurring interval name.
	Interval string
}

var plans = map[string]Plan{
	models.IntervalDaily:   {AmountCents: 500, Interval: "day"},
	models.IntervalMonthly: {AmountCents: 1000, Interval: "month"},
	models.IntervalYearly:  {AmountCents: 10000, Interval: "year"},
}

// PlanFor resolves a billing interval to its price point.
func PlanFor(interval string) (Plan, error) {
	plan, ok := plans[interval]
	if !ok {
		return Plan{}, utils.Validation("Validation failed", utils.FieldError{
			Field:   "interval",
			Message: "must be one of: daily monthly yearly",
			Type:    "oneof",
		})
	}
	return plan, nil
}

// CheckIfUserPaid gates paid features on a live subscription.
func CheckIfUserPaid(db *gorm.DB, userID uint) error {
	var sub models.Subscription
	err := db.Where("user_id = ? AND is_cancelled = ?", userID, false).First(&sub).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.BadRequest("You are not subscribed! Subscribe to access this service!")
		}
		return err
	}
	return nil
}
