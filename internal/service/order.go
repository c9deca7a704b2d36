package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

var (
	// ErrNoUserMessages means the session has nothing to analyze
	ErrNoUserMessages = errors.New("no user messages found in conversation")
	// ErrOrderNotFound covers both missing orders and orders of other users
	ErrOrderNotFound = errors.New("order not found")
	// ErrMenuUnavailable means no menu is loaded to validate against
	ErrMenuUnavailable = errors.New("menu data not available")
	// ErrOrderIDExhausted means every generated ID collided
	ErrOrderIDExhausted = errors.New("could not allocate a unique order id")
	// ErrStatusConflict means concurrent updates kept winning the status write
	ErrStatusConflict = errors.New("order status changed concurrently")
	// ErrInvalidIssue means an issue report had a blank type or description
	ErrInvalidIssue = errors.New("issue_type and description are required")
)

const (
	// sideEffectTimeout bounds the best-effort audit and event writes
	sideEffectTimeout = 5 * time.Second
	maxStatusAttempts = 3
)

// OrderService turns conversations into orders and serves order reads
type OrderService struct {
	chats       ChatStore
	orders      OrderStore
	extractor   *OrderExtractor
	menu        *MenuCatalog
	lifecycle   *OrderLifecycle
	maxAttempts int
	cache       OrderCache
	audit       AuditLogger
	events      EventPublisher
	log         *logger.Logger

	wg sync.WaitGroup
}

// OrderServiceDeps lists collaborators. Cache, Audit and Events are optional.
type OrderServiceDeps struct {
	Chats         ChatStore
	Orders        OrderStore
	Extractor     *OrderExtractor
	Menu          *MenuCatalog
	Lifecycle     *OrderLifecycle
	MaxIDAttempts int
	Cache         OrderCache
	Audit         AuditLogger
	Events        EventPublisher
}

// NewOrderService creates a new order service
func NewOrderService(deps OrderServiceDeps, log *logger.Logger) *OrderService {
	s := &OrderService{
		chats:       deps.Chats,
		orders:      deps.Orders,
		extractor:   deps.Extractor,
		menu:        deps.Menu,
		lifecycle:   deps.Lifecycle,
		maxAttempts: deps.MaxIDAttempts,
		cache:       deps.Cache,
		audit:       deps.Audit,
		events:      deps.Events,
		log:         log.With("component", "OrderService"),
	}
	if s.maxAttempts <= 0 {
		s.maxAttempts = 10
	}
	if s.cache == nil {
		s.cache = noopCache{}
	}
	if s.audit == nil {
		s.audit = noopAudit{}
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	return s
}

// AnalyzeSession runs the extraction chain over the user's messages in a session
func (s *OrderService) AnalyzeSession(ctx context.Context, userID, sessionID string) (*model.OrderAnalysisResult, error) {
	session, err := s.chats.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	messages, err := s.chats.GetMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}

	var parts []string
	for _, m := range messages {
		if m.Role == model.RoleUser {
			parts = append(parts, m.Content)
		}
	}
	text := strings.Join(parts, " ")
	if strings.TrimSpace(text) == "" {
		return nil, ErrNoUserMessages
	}

	if s.menu.Len() == 0 {
		return nil, ErrMenuUnavailable
	}

	return s.extractor.Extract(ctx, text, s.menu)
}

// CreateFromSession extracts an order from a session and persists it
func (s *OrderService) CreateFromSession(ctx context.Context, userID, sessionID string) (*model.CreateOrderResponse, error) {
	analysis, err := s.AnalyzeSession(ctx, userID, sessionID)
	if err != nil {
		return nil, err
	}

	order, err := s.insertWithUniqueID(ctx, userID, analysis)
	if err != nil {
		return nil, err
	}

	s.log.Info("Order created",
		"order_id", order.ID,
		"items", len(order.Items),
		"total", order.TotalAmount.StringFixed(2),
		"method", analysis.Method,
		"confidence", analysis.Confidence,
	)

	s.afterCreate(ctx, order, analysis)

	return &model.CreateOrderResponse{
		Message:             "Order created successfully",
		Order:               order,
		ConversationSummary: analysis.ConversationSummary,
		AnalysisMethod:      analysis.Method,
		LLMConfidence:       analysis.Confidence,
		LLMReasoning:        analysis.Reasoning,
		UnavailableItems:    analysis.UnavailableItems,
	}, nil
}

// insertWithUniqueID relies on the store's primary key: a conflicting insert
// reports false and a fresh ID is drawn
func (s *OrderService) insertWithUniqueID(ctx context.Context, userID string, analysis *model.OrderAnalysisResult) (*model.Order, error) {
	order := s.lifecycle.NewOrder(userID, analysis)
	if err := order.EncodeItems(); err != nil {
		return nil, fmt.Errorf("failed to encode order items: %w", err)
	}

	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		inserted, err := s.orders.InsertOrder(ctx, order)
		if err != nil {
			return nil, fmt.Errorf("failed to insert order: %w", err)
		}
		if inserted {
			return order, nil
		}
		s.log.Warn("Order ID collision, retrying", "order_id", order.ID, "attempt", attempt)
		order.ID = s.lifecycle.NewOrderID()
	}
	return nil, ErrOrderIDExhausted
}

func (s *OrderService) afterCreate(ctx context.Context, order *model.Order, analysis *model.OrderAnalysisResult) {
	if err := s.cache.SetOrder(ctx, order); err != nil {
		s.log.Warn("Failed to cache order", "order_id", order.ID, "error", err)
	}

	event := model.OrderCreatedEvent{
		OrderID:           order.ID,
		UserID:            order.UserID,
		Items:             order.Items,
		TotalAmount:       order.TotalAmount,
		AnalysisMethod:    analysis.Method,
		EstimatedDelivery: order.EstimatedDelivery,
		CreatedAt:         order.CreatedAt,
	}
	s.background(ctx, func(ctx context.Context) {
		if err := s.events.PublishOrderCreated(ctx, event); err != nil {
			s.log.Warn("Failed to publish order event", "order_id", event.OrderID, "error", err)
		}
	})

	s.recordAudit(ctx, model.AuditEntry{
		Action:   model.AuditOrderCreated,
		EntityID: order.ID,
		UserID:   order.UserID,
		Data: map[string]interface{}{
			"items":             len(order.Items),
			"total_amount":      order.TotalAmount.StringFixed(2),
			"analysis_method":   string(analysis.Method),
			"confidence":        analysis.Confidence,
			"unavailable_items": analysis.UnavailableItems,
		},
	})
}

// background runs fn off the request path with a context that survives the
// request but is bounded by sideEffectTimeout
func (s *OrderService) background(ctx context.Context, fn func(ctx context.Context)) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sideEffectTimeout)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer cancel()
		fn(ctx)
	}()
}

// Wait blocks until pending audit and event writes finish
func (s *OrderService) Wait() {
	s.wg.Wait()
}

func (s *OrderService) recordAudit(ctx context.Context, entry model.AuditEntry) {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.background(ctx, func(ctx context.Context) {
		if err := s.audit.Record(ctx, entry); err != nil {
			s.log.Warn("Failed to write audit entry", "action", entry.Action, "entity_id", entry.EntityID, "error", err)
		}
	})
}

// GetOrder loads an order owned by userID, reading through the cache
func (s *OrderService) GetOrder(ctx context.Context, userID, orderID string) (*model.Order, error) {
	if cached, err := s.cache.GetOrder(ctx, userID, orderID); err != nil {
		s.log.Warn("Order cache read failed", "order_id", orderID, "error", err)
	} else if cached != nil {
		return cached, nil
	}

	order, err := s.orders.GetOrder(ctx, orderID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	if order == nil {
		return nil, ErrOrderNotFound
	}
	s.decodeItems(order)

	if err := s.cache.SetOrder(ctx, order); err != nil {
		s.log.Warn("Failed to cache order", "order_id", order.ID, "error", err)
	}
	return order, nil
}

// View decorates an order with its status description
func (s *OrderService) View(ctx context.Context, userID, orderID string, withSummary bool) (*model.OrderView, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	view := &model.OrderView{Order: order, StatusDescription: StatusDescription(order)}
	if withSummary {
		view.ChatFriendlySummary = ChatFriendlySummary(order)
	}
	return view, nil
}

// ListOrders returns the caller's orders, newest first
func (s *OrderService) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	orders, err := s.orders.ListOrders(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	for i := range orders {
		s.decodeItems(&orders[i])
	}
	if orders == nil {
		orders = []model.Order{}
	}
	return orders, nil
}

// Tracking returns the derived tracking view of an order
func (s *OrderService) Tracking(ctx context.Context, userID, orderID string) (*model.Tracking, error) {
	order, err := s.GetOrder(ctx, userID, orderID)
	if err != nil {
		return nil, err
	}
	return BuildTracking(order), nil
}

// ReportIssue records a customer problem with one of their orders
func (s *OrderService) ReportIssue(ctx context.Context, userID, orderID string, req model.ReportIssueRequest) (*model.OrderIssue, error) {
	issueType := strings.TrimSpace(req.IssueType)
	description := strings.TrimSpace(req.Description)
	if issueType == "" || description == "" {
		return nil, ErrInvalidIssue
	}
	if _, err := s.GetOrder(ctx, userID, orderID); err != nil {
		return nil, err
	}

	issue := &model.OrderIssue{
		OrderID:     orderID,
		UserID:      userID,
		IssueType:   issueType,
		Description: description,
		Status:      "reported",
		ReportedAt:  time.Now().UTC(),
	}
	if err := s.orders.InsertIssue(ctx, issue); err != nil {
		return nil, fmt.Errorf("failed to save issue: %w", err)
	}

	s.recordAudit(ctx, model.AuditEntry{
		Action:   model.AuditOrderIssueReported,
		EntityID: orderID,
		UserID:   userID,
		Data: map[string]interface{}{
			"issue_id":   issue.ID,
			"issue_type": issue.IssueType,
		},
	})
	return issue, nil
}

// ApplyStatusEvent moves an order through the state machine in response to an
// operational event. The write only lands if the status is unchanged since it
// was read; otherwise the order is re-read and the event checked again.
func (s *OrderService) ApplyStatusEvent(ctx context.Context, ev model.StatusEvent) error {
	var (
		order *model.Order
		from  model.OrderStatus
	)
	for attempt := 1; ; attempt++ {
		var err error
		order, err = s.orders.GetOrderByID(ctx, ev.OrderID)
		if err != nil {
			return fmt.Errorf("failed to get order: %w", err)
		}
		if order == nil {
			return ErrOrderNotFound
		}

		from = order.Status
		if err := s.lifecycle.Apply(order, ev); err != nil {
			return err
		}
		updated, err := s.orders.UpdateOrderStatus(ctx, order, from)
		if err != nil {
			return fmt.Errorf("failed to update order status: %w", err)
		}
		if updated {
			break
		}
		if attempt == maxStatusAttempts {
			return fmt.Errorf("%w: order %s", ErrStatusConflict, ev.OrderID)
		}
		s.log.Info("Order status changed concurrently, retrying", "order_id", ev.OrderID, "attempt", attempt)
	}

	s.decodeItems(order)
	if err := s.cache.SetOrder(ctx, order); err != nil {
		s.log.Warn("Failed to refresh cached order", "order_id", order.ID, "error", err)
		if err := s.cache.DeleteOrder(ctx, order.UserID, order.ID); err != nil {
			s.log.Warn("Failed to invalidate cached order", "order_id", order.ID, "error", err)
		}
	}
	s.recordAudit(ctx, model.AuditEntry{
		Action:   model.AuditOrderStatusChanged,
		EntityID: order.ID,
		UserID:   order.UserID,
		Data: map[string]interface{}{
			"from": string(from),
			"to":   string(order.Status),
		},
	})

	s.log.Info("Order status updated", "order_id", order.ID, "from", from, "to", order.Status)
	return nil
}

func (s *OrderService) decodeItems(order *model.Order) {
	if err := order.DecodeItems(); err != nil {
		s.log.Warn("Malformed items in stored order, treating as empty", "order_id", order.ID, "error", err)
	}
}
