package service

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"perfbot/internal/model"
)

// ErrIllegalTransition is returned when a status event does not follow the state machine
var ErrIllegalTransition = errors.New("illegal order status transition")

// linearStatuses is the happy path, in order
var linearStatuses = []model.OrderStatus{
	model.StatusReceived,
	model.StatusPreparing,
	model.StatusCooking,
	model.StatusReady,
	model.StatusOutForDelivery,
	model.StatusDelivered,
}

var statusDescriptions = map[model.OrderStatus]string{
	model.StatusReceived:       "Your order has been received and is being processed.",
	model.StatusPreparing:      "Our kitchen is preparing your delicious meal.",
	model.StatusCooking:        "Your food is being cooked with care.",
	model.StatusReady:          "Your order is ready for pickup/delivery.",
	model.StatusOutForDelivery: "Your order is out for delivery.",
	model.StatusDelivered:      "Your order has been delivered. Enjoy your meal!",
	model.StatusCancelled:      "Your order has been cancelled.",
}

var timelineDescriptions = map[model.OrderStatus]string{
	model.StatusReceived:       "Order received",
	model.StatusPreparing:      "Kitchen is preparing your order",
	model.StatusCooking:        "Your food is being cooked",
	model.StatusReady:          "Order is ready",
	model.StatusOutForDelivery: "Out for delivery",
	model.StatusDelivered:      "Delivered successfully",
	model.StatusCancelled:      "Order cancelled",
}

// OrderLifecycle assigns IDs and delivery estimates and applies status events
type OrderLifecycle struct {
	prefix   string
	estimate time.Duration
	intN     func(n int) int
	now      func() time.Time
}

// NewOrderLifecycle creates a lifecycle with the given ID prefix and delivery estimate
func NewOrderLifecycle(prefix string, estimate time.Duration) *OrderLifecycle {
	return &OrderLifecycle{
		prefix:   prefix,
		estimate: estimate,
		intN:     rand.IntN,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewOrderID returns prefix + 6 random digits. Uniqueness is enforced by the store.
func (l *OrderLifecycle) NewOrderID() string {
	return fmt.Sprintf("%s%06d", l.prefix, l.intN(1_000_000))
}

// NewOrder materializes a received order from a successful analysis
func (l *OrderLifecycle) NewOrder(userID string, analysis *model.OrderAnalysisResult) *model.Order {
	now := l.now()
	return &model.Order{
		ID:                l.NewOrderID(),
		UserID:            userID,
		Status:            model.StatusReceived,
		Items:             analysis.Items,
		TotalAmount:       model.SumItems(analysis.Items),
		EstimatedDelivery: now.Add(l.estimate),
		CreatedAt:         now,
		UpdatedAt:         now,
	}
}

// Apply moves order to the event's status, recording driver details and the
// delivery time where relevant
func (l *OrderLifecycle) Apply(order *model.Order, ev model.StatusEvent) error {
	if !CanTransition(order.Status, ev.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.Status, ev.Status)
	}

	at := l.now()
	if ev.OccurredAt != nil {
		at = ev.OccurredAt.UTC()
	}

	order.Status = ev.Status
	order.UpdatedAt = at
	if ev.DriverName != "" {
		name := ev.DriverName
		order.DriverName = &name
	}
	if ev.DriverPhone != "" {
		phone := ev.DriverPhone
		order.DriverPhone = &phone
	}
	if ev.Status == model.StatusDelivered {
		order.ActualDelivery = &at
	}
	return nil
}

// IsTerminal reports whether no further transitions are possible
func IsTerminal(s model.OrderStatus) bool {
	return s == model.StatusDelivered || s == model.StatusCancelled
}

// CanTransition allows one step forward on the linear path, or cancellation
// from any non-terminal status
func CanTransition(from, to model.OrderStatus) bool {
	if IsTerminal(from) {
		return false
	}
	if to == model.StatusCancelled {
		return true
	}
	i, j := statusIndex(from), statusIndex(to)
	return i >= 0 && j == i+1
}

func statusIndex(s model.OrderStatus) int {
	for i, st := range linearStatuses {
		if st == s {
			return i
		}
	}
	return -1
}

// StatusDescription is a customer-facing sentence for the order's status
func StatusDescription(order *model.Order) string {
	if order.Status == model.StatusOutForDelivery && order.DriverName != nil && *order.DriverName != "" {
		return "Your order is on the way! Driver: " + *order.DriverName
	}
	if d, ok := statusDescriptions[order.Status]; ok {
		return d
	}
	return "Status unknown"
}

// ChatFriendlySummary is a one-line order summary for chat replies
func ChatFriendlySummary(order *model.Order) string {
	return fmt.Sprintf("Order %s: %d items, Total: $%s, Status: %s",
		order.ID, len(order.Items), order.TotalAmount.StringFixed(2), StatusDescription(order))
}

// BuildTracking derives the tracking timeline from the current status. One
// entry per linear status, plus a cancelled entry for cancelled orders.
func BuildTracking(order *model.Order) *model.Tracking {
	current := statusIndex(order.Status)
	cancelled := order.Status == model.StatusCancelled

	timeline := make([]model.TimelineEntry, 0, len(linearStatuses)+1)
	for i, st := range linearStatuses {
		entry := model.TimelineEntry{
			Status:      st,
			Description: timelineDescriptions[st],
			Completed:   i <= current || (cancelled && i == 0),
			Current:     st == order.Status,
		}
		if entry.Completed {
			ts := order.UpdatedAt
			if i == 0 {
				ts = order.CreatedAt
			}
			entry.Timestamp = &ts
		}
		timeline = append(timeline, entry)
	}
	if cancelled {
		ts := order.UpdatedAt
		timeline = append(timeline, model.TimelineEntry{
			Status:      model.StatusCancelled,
			Description: timelineDescriptions[model.StatusCancelled],
			Timestamp:   &ts,
			Completed:   true,
			Current:     true,
		})
	}

	tracking := &model.Tracking{
		OrderID:           order.ID,
		CurrentStatus:     order.Status,
		EstimatedDelivery: order.EstimatedDelivery,
		Timeline:          timeline,
	}
	if order.Status == model.StatusOutForDelivery && order.DriverName != nil {
		driver := &model.DriverInfo{Name: *order.DriverName}
		if order.DriverPhone != nil {
			driver.Phone = *order.DriverPhone
		}
		tracking.Driver = driver
	}
	return tracking
}
