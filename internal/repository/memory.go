package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"sync"

	"perfbot/internal/model"
)

// MemoryStore keeps sessions, messages and orders in process memory.
// It is used for tests and STORE_DRIVER=memory; nothing survives a restart.
type MemoryStore struct {
	mu sync.RWMutex

	sessions  map[string]*model.ChatSession // by session_id
	messages  map[int64][]model.ConversationMessage
	orders    map[string]*model.Order
	issues    []model.OrderIssue
	nextID    int64
	nextMsgID int64
	nextIssue int64
}

// NewMemoryStore creates an empty store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]*model.ChatSession),
		messages: make(map[int64][]model.ConversationMessage),
		orders:   make(map[string]*model.Order),
	}
}

// GetSession returns a copy of the session if it belongs to userID
func (m *MemoryStore) GetSession(_ context.Context, sessionID, userID string) (*model.ChatSession, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

// GetMessages returns all messages of a session, oldest first
func (m *MemoryStore) GetMessages(_ context.Context, sessionPK int64) ([]model.ConversationMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	msgs := m.messages[sessionPK]
	out := make([]model.ConversationMessage, len(msgs))
	copy(out, msgs)
	return out, nil
}

// GetRecentMessages returns the newest limit messages, oldest first
func (m *MemoryStore) GetRecentMessages(ctx context.Context, sessionPK int64, limit int) ([]model.ConversationMessage, error) {
	msgs, _ := m.GetMessages(ctx, sessionPK)
	if limit >= 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

// SaveExchange appends both messages under one lock
func (m *MemoryStore) SaveExchange(_ context.Context, ex *model.MessageExchange) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var session *model.ChatSession
	if ex.Session == nil {
		if _, taken := m.sessions[ex.NewSessionID]; taken {
			return nil, fmt.Errorf("session %s already exists", ex.NewSessionID)
		}
		m.nextID++
		session = &model.ChatSession{
			ID:        m.nextID,
			SessionID: ex.NewSessionID,
			UserID:    ex.UserID,
			CreatedAt: ex.UserAt,
			UpdatedAt: ex.UserAt,
		}
		m.sessions[session.SessionID] = session
	} else {
		var ok bool
		session, ok = m.sessions[ex.Session.SessionID]
		if !ok {
			return nil, fmt.Errorf("session %s not found", ex.Session.SessionID)
		}
		session.UpdatedAt = ex.AssistantAt
	}

	m.nextMsgID++
	user := model.ConversationMessage{
		ID:        m.nextMsgID,
		SessionID: session.ID,
		Role:      model.RoleUser,
		Content:   ex.UserMessage,
		Timestamp: ex.UserAt,
	}
	m.nextMsgID++
	assistant := model.ConversationMessage{
		ID:               m.nextMsgID,
		SessionID:        session.ID,
		Role:             model.RoleAssistant,
		Content:          ex.AssistantMessage,
		RetrievedContext: sql.NullString{String: ex.RetrievedContext, Valid: ex.RetrievedContext != ""},
		Timestamp:        ex.AssistantAt,
	}
	m.messages[session.ID] = append(m.messages[session.ID], user, assistant)

	cp := *session
	return &cp, nil
}

// InsertOrder stores a copy of order. A taken ID yields false with no error.
func (m *MemoryStore) InsertOrder(_ context.Context, order *model.Order) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, taken := m.orders[order.ID]; taken {
		return false, nil
	}
	m.orders[order.ID] = storedOrder(order)
	return true, nil
}

// GetOrder returns the order if it belongs to userID
func (m *MemoryStore) GetOrder(_ context.Context, orderID, userID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok || o.UserID != userID {
		return nil, nil
	}
	return storedOrder(o), nil
}

// GetOrderByID returns the order regardless of owner
func (m *MemoryStore) GetOrderByID(_ context.Context, orderID string) (*model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	o, ok := m.orders[orderID]
	if !ok {
		return nil, nil
	}
	return storedOrder(o), nil
}

// ListOrders returns the user's orders, newest first
func (m *MemoryStore) ListOrders(_ context.Context, userID string) ([]model.Order, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *storedOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// UpdateOrderStatus persists the fields a status transition may change while
// the stored status is still from
func (m *MemoryStore) UpdateOrderStatus(_ context.Context, order *model.Order, from model.OrderStatus) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[order.ID]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = order.Status
	o.DriverName = order.DriverName
	o.DriverPhone = order.DriverPhone
	o.ActualDelivery = order.ActualDelivery
	o.UpdatedAt = order.UpdatedAt
	return true, nil
}

// InsertIssue stores an issue report and fills its ID
func (m *MemoryStore) InsertIssue(_ context.Context, issue *model.OrderIssue) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orders[issue.OrderID]; !ok {
		return fmt.Errorf("order %s not found", issue.OrderID)
	}
	m.nextIssue++
	issue.ID = m.nextIssue
	m.issues = append(m.issues, *issue)
	return nil
}

// Issues returns the reported issues of an order
func (m *MemoryStore) Issues(orderID string) []model.OrderIssue {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.OrderIssue
	for _, is := range m.issues {
		if is.OrderID == orderID {
			out = append(out, is)
		}
	}
	return out
}

// storedOrder mirrors a database round trip: only column values are kept,
// so callers must decode items the same way they do for Postgres rows.
func storedOrder(o *model.Order) *model.Order {
	cp := *o
	cp.Items = nil
	return &cp
}
