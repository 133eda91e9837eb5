package order

import (
	"strings"
	"time"

	"storefront/internal/address"
)

type Status string

const (
	StatusPending    Status = "pending"
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
)

var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusConfirmed: true, StatusCancelled: true},
	StatusConfirmed:  {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
}

// CanTransition reports whether the backend would accept moving an order
// from one status to the other. Unknown statuses are left to the backend.
func CanTransition(from, to Status) bool {
	from = Status(strings.ToLower(string(from)))
	next, known := validNext[from]
	if !known {
		return true
	}
	return next[to]
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
)

type Order struct {
	ID              string           `json:"_id"`
	OrderID         string           `json:"orderId"`
	Status          Status           `json:"status"`
	Items           []Item           `json:"items"`
	TotalAmount     int64            `json:"totalAmount"`
	DeliveryAddress *address.Address `json:"deliveryAddress,omitempty"`
	PaymentMethod   string           `json:"paymentMethod"`
	PaymentStatus   PaymentStatus    `json:"paymentStatus"`
	Payment         *Payment         `json:"payment,omitempty"`
	StatusHistory   []StatusEntry    `json:"statusHistory,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
}

type Item struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Name      string `json:"name,omitempty"`
	Size      string `json:"size"`
	Quantity  int    `json:"quantity"`
	Price     int64  `json:"price"`
}

type Payment struct {
	Method        string        `json:"method"`
	Status        PaymentStatus `json:"status"`
	TransactionID string        `json:"transactionId,omitempty"`
}

type StatusEntry struct {
	Status    Status    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Note      string    `json:"note,omitempty"`
}

// Ref is the identifier used in order URLs. Older responses only carry _id.
func (o *Order) Ref() string {
	if o.OrderID != "" {
		return o.OrderID
	}
	return o.ID
}

// Paid reports whether the backend recorded the payment as completed.
func (o *Order) Paid() bool {
	if o.Payment != nil && strings.EqualFold(string(o.Payment.Status), string(PaymentCompleted)) {
		return true
	}
	return strings.EqualFold(string(o.PaymentStatus), string(PaymentCompleted))
}

type CreateInput struct {
	Items           []Item          `json:"items"`
	DeliveryAddress address.Address `json:"deliveryAddress"`
	PaymentMethod   string          `json:"paymentMethod"`
	Total           int64           `json:"total"`
}

type CompleteInput struct {
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	PaymentMethod string        `json:"paymentMethod"`
	OTP           string        `json:"otp,omitempty"`
}

type orderResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Order   *Order `json:"order"`
}

type listResponse struct {
	Success bool    `json:"success"`
	Orders  []Order `json:"orders"`
}

type statusRequest struct {
	Status Status `json:"status"`
}
