package entity

import "time"

type CheckoutEvent struct {
	ID uint64

	AttemptID uint64
	TxRef     string

	EventType string

	OldStatus *int32
	NewStatus int32

	PayloadJSON *string

	CreatedAt time.Time
}
