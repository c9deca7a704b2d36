package service

import (
	"context"

	"perfbot/internal/model"
)

// ChatStore persists sessions and their ordered message log.
// Lookups return nil, nil when nothing matches.
type ChatStore interface {
	GetSession(ctx context.Context, sessionID, userID string) (*model.ChatSession, error)
	// GetMessages returns all messages of a session, oldest first
	GetMessages(ctx context.Context, sessionPK int64) ([]model.ConversationMessage, error)
	// GetRecentMessages returns the newest limit messages, oldest first
	GetRecentMessages(ctx context.Context, sessionPK int64, limit int) ([]model.ConversationMessage, error)
	// SaveExchange writes both messages, and a new session when needed, in one transaction
	SaveExchange(ctx context.Context, ex *model.MessageExchange) (*model.ChatSession, error)
}

// OrderStore persists orders and issue reports.
// Lookups return nil, nil when nothing matches.
type OrderStore interface {
	// InsertOrder returns false without error when the order ID is already taken
	InsertOrder(ctx context.Context, order *model.Order) (bool, error)
	GetOrder(ctx context.Context, orderID, userID string) (*model.Order, error)
	GetOrderByID(ctx context.Context, orderID string) (*model.Order, error)
	ListOrders(ctx context.Context, userID string) ([]model.Order, error)
	// UpdateOrderStatus writes the transition only while the stored status is
	// still from. It returns false when another update got there first.
	UpdateOrderStatus(ctx context.Context, order *model.Order, from model.OrderStatus) (bool, error)
	InsertIssue(ctx context.Context, issue *model.OrderIssue) error
}

// OrderCache is a best-effort read cache for orders
type OrderCache interface {
	GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error)
	SetOrder(ctx context.Context, order *model.Order) error
	DeleteOrder(ctx context.Context, userID, orderID string) error
}

// AuditLogger records state changes outside the primary store
type AuditLogger interface {
	Record(ctx context.Context, entry model.AuditEntry) error
}

// EventPublisher announces committed orders to downstream systems
type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, event model.OrderCreatedEvent) error
}

type noopCache struct{}

func (noopCache) GetOrder(context.Context, string, string) (*model.Order, error) { return nil, nil }
func (noopCache) SetOrder(context.Context, *model.Order) error                   { return nil }
func (noopCache) DeleteOrder(context.Context, string, string) error              { return nil }

type noopAudit struct{}

func (noopAudit) Record(context.Context, model.AuditEntry) error { return nil }

type noopPublisher struct{}

func (noopPublisher) PublishOrderCreated(context.Context, model.OrderCreatedEvent) error { return nil }
