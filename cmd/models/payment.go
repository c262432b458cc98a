package models

import "gorm.io/gorm"

const (
	TransactionProcessing = "processing"
	TransactionCompleted  = "completed"
)

const ServiceSubscription = "subscription"

const (
	IntervalDaily   = "daily"
	IntervalMonthly = "monthly"
	IntervalYearly  = "yearly"
)

// Transaction tracks a checkout with the payment processor. PaymentID is
// the processor's session id; the webhook flips Status to completed.
type Transaction struct {
	gorm.Model
	PaymentID   string  `gorm:"column:payment_id;size:255;not null;index" json:"payment_id"`
	UserID      uint    `gorm:"column:user_id;not null;index" json:"user_id"`
	Amount      float64 `gorm:"column:amount;not null" json:"amount"`
	ServiceType string  `gorm:"column:service_type;size:50;not null;default:subscription" json:"service_type"`
	Status      string  `gorm:"column:status;size:20;not null;default:processing" json:"status"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`
}

// Subscription exists only after a completed transaction. One per user.
type Subscription struct {
	gorm.Model
	TransactionID uint   `gorm:"column:transaction_id;index" json:"transaction_id"`
	UserID        uint   `gorm:"column:user_id;not null;uniqueIndex" json:"user_id"`
	Interval      string `gorm:"column:interval;size:20;not null;default:daily" json:"interval"`
	IsCancelled   bool   `gorm:"column:is_cancelled;not null;default:false" json:"is_cancelled"`

	Transaction *Transaction `gorm:"foreignKey:TransactionID" json:"transaction,omitempty"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
