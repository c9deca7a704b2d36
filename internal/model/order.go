package model

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus is a position in the order state machine
type OrderStatus string

const (
	StatusReceived       OrderStatus = "received"
	StatusPreparing      OrderStatus = "preparing"
	StatusCooking        OrderStatus = "cooking"
	StatusReady          OrderStatus = "ready"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusDelivered      OrderStatus = "delivered"
	StatusCancelled      OrderStatus = "cancelled"
)

// ExtractionMethod records which tier produced an analysis
type ExtractionMethod string

const (
	MethodLLM     ExtractionMethod = "llm"
	MethodKeyword ExtractionMethod = "keyword"
	MethodNone    ExtractionMethod = "none"
)

// ExtractedItem is an order line. Name and Price always come from the menu.
type ExtractedItem struct {
	Name           string          `json:"name"`
	Quantity       int             `json:"quantity"`
	Customizations []string        `json:"customizations"`
	Price          decimal.Decimal `json:"price"`
	Category       Category        `json:"category"`
}

// LineTotal returns price × quantity
func (i ExtractedItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderAnalysisResult is the outcome of running the extraction chain over a conversation
type OrderAnalysisResult struct {
	Items               []ExtractedItem  `json:"items"`
	TotalAmount         decimal.Decimal  `json:"total_amount"`
	Confidence          float64          `json:"confidence"`
	Reasoning           string           `json:"reasoning"`
	UnavailableItems    []string         `json:"unavailable_items"`
	AmbiguousItems      []string         `json:"ambiguous_items,omitempty"`
	Method              ExtractionMethod `json:"method"`
	ConversationSummary string           `json:"conversation_summary,omitempty"`
	Error               string           `json:"error,omitempty"`
}

// SumItems recomputes Σ price × quantity rounded to the cent
func SumItems(items []ExtractedItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.LineTotal())
	}
	return total.Round(2)
}

// Order is a persisted order
type Order struct {
	ID                string          `json:"id" db:"id"`
	UserID            string          `json:"user_id" db:"user_id"`
	Status            OrderStatus     `json:"status" db:"status"`
	ItemsJSON         string          `json:"-" db:"items"`
	Items             []ExtractedItem `json:"items" db:"-"`
	TotalAmount       decimal.Decimal `json:"total_amount" db:"total_amount"`
	DeliveryAddress   *string         `json:"delivery_address" db:"delivery_address"`
	EstimatedDelivery time.Time       `json:"estimated_delivery" db:"estimated_delivery"`
	ActualDelivery    *time.Time      `json:"actual_delivery" db:"actual_delivery"`
	DriverName        *string         `json:"driver_name" db:"driver_name"`
	DriverPhone       *string         `json:"driver_phone" db:"driver_phone"`
	CreatedAt         time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at" db:"updated_at"`
}

// EncodeItems serializes Items into the ItemsJSON column value
func (o *Order) EncodeItems() error {
	items := o.Items
	if items == nil {
		items = []ExtractedItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return err
	}
	o.ItemsJSON = string(data)
	return nil
}

// DecodeItems fills Items from ItemsJSON. On malformed data Items is left empty
// and the decode error is returned for the caller to log.
func (o *Order) DecodeItems() error {
	o.Items = []ExtractedItem{}
	if o.ItemsJSON == "" {
		return nil
	}
	var items []ExtractedItem
	if err := json.Unmarshal([]byte(o.ItemsJSON), &items); err != nil {
		return err
	}
	if items != nil {
		o.Items = items
	}
	return nil
}

// OrderIssue is a customer-reported problem with an order
type OrderIssue struct {
	ID          int64     `json:"id" db:"id"`
	OrderID     string    `json:"order_id" db:"order_id"`
	UserID      string    `json:"-" db:"user_id"`
	IssueType   string    `json:"issue_type" db:"issue_type"`
	Description string    `json:"description" db:"description"`
	Status      string    `json:"status" db:"status"`
	ReportedAt  time.Time `json:"reported_at" db:"reported_at"`
}

// TimelineEntry is one derived step of the tracking view
type TimelineEntry struct {
	Status      OrderStatus `json:"status"`
	Description string      `json:"description"`
	Timestamp   *time.Time  `json:"timestamp"`
	Completed   bool        `json:"completed"`
	Current     bool        `json:"current"`
}

// DriverInfo is exposed only while an order is out for delivery
type DriverInfo struct {
	Name  string `json:"name"`
	Phone string `json:"phone,omitempty"`
}

// Tracking is the computed tracking view of an order
type Tracking struct {
	OrderID           string          `json:"order_id"`
	CurrentStatus     OrderStatus     `json:"current_status"`
	EstimatedDelivery time.Time       `json:"estimated_delivery"`
	Timeline          []TimelineEntry `json:"timeline"`
	Driver            *DriverInfo     `json:"driver,omitempty"`
}

// StatusEvent is an operational update applied to an existing order
type StatusEvent struct {
	OrderID     string      `json:"order_id"`
	Status      OrderStatus `json:"status"`
	DriverName  string      `json:"driver_name,omitempty"`
	DriverPhone string      `json:"driver_phone,omitempty"`
	OccurredAt  *time.Time  `json:"occurred_at,omitempty"`
}

// OrderCreatedEvent is published after an order is committed
type OrderCreatedEvent struct {
	OrderID           string           `json:"order_id"`
	UserID            string           `json:"user_id"`
	Items             []ExtractedItem  `json:"items"`
	TotalAmount       decimal.Decimal  `json:"total_amount"`
	AnalysisMethod    ExtractionMethod `json:"analysis_method"`
	EstimatedDelivery time.Time        `json:"estimated_delivery"`
	CreatedAt         time.Time        `json:"created_at"`
}

// CreateOrderRequest is the body of POST /api/v1/orders
type CreateOrderRequest struct {
	SessionID string `json:"session_id"`
}

// CreateOrderResponse is returned after an order is created
type CreateOrderResponse struct {
	Message             string           `json:"message"`
	Order               *Order           `json:"order"`
	ConversationSummary string           `json:"conversation_summary,omitempty"`
	AnalysisMethod      ExtractionMethod `json:"analysis_method"`
	LLMConfidence       float64          `json:"llm_confidence"`
	LLMReasoning        string           `json:"llm_reasoning"`
	UnavailableItems    []string         `json:"unavailable_items"`
}

// OrderView is an order decorated with chat-friendly descriptions
type OrderView struct {
	*Order
	StatusDescription   string `json:"status_description"`
	ChatFriendlySummary string `json:"chat_friendly_summary,omitempty"`
}

// ReportIssueRequest is the body of POST /api/v1/orders/:id/issues
type ReportIssueRequest struct {
	IssueType   string `json:"issue_type" binding:"required"`
	Description string `json:"description" binding:"required"`
}
