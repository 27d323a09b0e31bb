package models

import "time"

const (
	ChannelEmail = "email"

	StatusSent    = "sent"
	StatusFailed  = "failed"
	StatusSkipped = "skipped"

	TypeOrderConfirmation = "order_confirmation"
)

// NotificationLog records every confirmation attempt, including skips, so
// operators can audit delivery independently of order state.
type NotificationLog struct {
	ID        int64     `json:"id" gorm:"primaryKey;autoIncrement"`
	OrderRef  string    `json:"order_ref" gorm:"index"`
	Recipient string    `json:"recipient"`
	Type      string    `json:"type"`
	Channel   string    `json:"channel"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
}

type NotificationFilter struct {
	OrderRef string
	Status   string
	Page     int
	PageSize int
}
