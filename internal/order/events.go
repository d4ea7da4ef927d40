package order

// EventType identifies the kind of order-lifecycle push event.
type EventType string

const (
	EventStatusChanged EventType = "STATUS_CHANGED"
	EventNewOrder      EventType = "NEW_ORDER"
	EventOrderModified EventType = "ORDER_MODIFIED"
)

// Push channel destinations.
const (
	TopicCounters = "/topic/dashboard/counters"
	TopicOrders   = "/topic/dashboard/orders"
	TopicAlerts   = "/topic/dashboard/alerts"
)

// Topics lists the destinations the console subscribes to.
var Topics = []string{TopicCounters, TopicOrders, TopicAlerts}

// OrderEvent is the payload published on TopicOrders.
type OrderEvent struct {
	EventType      EventType    `json:"eventType"`
	OrderID        int64        `json:"orderId"`
	PreviousStatus Status       `json:"previousStatus,omitempty"`
	NewStatus      Status       `json:"newStatus,omitempty"`
	OrderData      OrderSummary `json:"orderData"`
}

// AlertEvent is the payload published on TopicAlerts.
type AlertEvent struct {
	AlertType    string `json:"alertType"`
	AlertMessage string `json:"alertMessage"`
}

// AlertUrgentOrder marks an alert about a newly urgent order.
const AlertUrgentOrder = "URGENT_ORDER"
