package model

import "time"

const (
	PaymentStatusCreated   = "created"
	PaymentStatusAttempted = "attempted"
	PaymentStatusSuccess   = "success"
	PaymentStatusFailed    = "failed"
)

// Payment tracks one gateway order. Status moves monotonically toward a
// terminal state and is never reversed; the payment row is authoritative
// over the submission's payment sub-state mirror.
type Payment struct {
	ID         string     `json:"id"`
	OrderID    string     `json:"orderId"`
	PaymentID  string     `json:"paymentId,omitempty"`
	FormID     string     `json:"formId"`
	ResponseID string     `json:"responseId"`
	Amount     int64      `json:"amount"`
	Currency   string     `json:"currency"`
	Status     string     `json:"status"`
	Customer   Customer   `json:"customer"`
	Signature  string     `json:"-"`
	Error      string     `json:"error,omitempty"`
	PaidAt     *time.Time `json:"paidAt,omitempty"`
	FailedAt   *time.Time `json:"failedAt,omitempty"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
}

type Customer struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}
