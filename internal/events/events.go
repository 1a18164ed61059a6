// Package events содержит события обмена между сервисами и обвязку Kafka.
package events

import "github.com/google/uuid"

// TopicPaymentEvents — топик с исходами платежей.
const TopicPaymentEvents = "payment-events"

// PaymentOutcomeEvent описывает исход платежа по заказу. Производится
// payment-service, потребляется order-service не менее одного раза.
type PaymentOutcomeEvent struct {
	EventID string `json:"event_id"`
	OrderID int64  `json:"order_id"`
	Status  string `json:"status"`
}

// NewPaymentOutcomeEvent создаёт событие с новым идентификатором.
func NewPaymentOutcomeEvent(orderID int64, status string) PaymentOutcomeEvent {
	return PaymentOutcomeEvent{
		EventID: uuid.NewString(),
		OrderID: orderID,
		Status:  status,
	}
}
