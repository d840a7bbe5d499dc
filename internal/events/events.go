package events

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// FailureType classifies why an order could not be fulfilled.
type FailureType string

const (
	FailureInsufficientStock FailureType = "INSUFFICIENT_STOCK"
	FailurePaymentFailed     FailureType = "PAYMENT_FAILED"
	FailureValidationError   FailureType = "VALIDATION_ERROR"
	FailureSystemError       FailureType = "SYSTEM_ERROR"
)

// OrderItemPayload is one line item carried inside OrderPlaced.
type OrderItemPayload struct {
	ProductID   string          `json:"productId"`
	ProductName string          `json:"productName"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// OrderPlaced is published by the checkout orchestrator once a PENDING
// order has been persisted. Consumed by the reservation consumer.
type OrderPlaced struct {
	EventID     string             `json:"eventId"`
	OrderID     string             `json:"orderId"`
	UserID      string             `json:"userId"`
	Items       []OrderItemPayload `json:"items"`
	TotalAmount decimal.Decimal    `json:"totalAmount"`
	Timestamp   time.Time          `json:"timestamp"`
}

// OrderConfirmed is published when every line item was reserved.
type OrderConfirmed struct {
	EventID   string    `json:"eventId"`
	OrderID   string    `json:"orderId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`
}

// OrderFailed is published when reservation (or a later step) failed.
type OrderFailed struct {
	EventID     string      `json:"eventId"`
	OrderID     string      `json:"orderId"`
	UserID      string      `json:"userId"`
	Reason      string      `json:"reason"`
	FailureType FailureType `json:"failureType"`
	Timestamp   time.Time   `json:"timestamp"`
}

func NewOrderConfirmed(orderID, userID string) OrderConfirmed {
	return OrderConfirmed{
		EventID:   uuid.New().String(),
		OrderID:   orderID,
		UserID:    userID,
		Timestamp: time.Now(),
	}
}

func NewOrderFailed(orderID, userID, reason string, failureType FailureType) OrderFailed {
	return OrderFailed{
		EventID:     uuid.New().String(),
		OrderID:     orderID,
		UserID:      userID,
		Reason:      reason,
		FailureType: failureType,
		Timestamp:   time.Now(),
	}
}
