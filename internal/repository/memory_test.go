package repository

import (
	"context"
	"testing"
	"time"

	"perfbot/internal/model"

	"github.com/shopspring/decimal"
)

func newExchange(session *model.ChatSession, user, reply string, at time.Time) *model.MessageExchange {
	ex := &model.MessageExchange{
		Session:          session,
		UserID:           "user-1",
		UserMessage:      user,
		UserAt:           at,
		AssistantMessage: reply,
		AssistantAt:      at.Add(time.Second),
	}
	if session == nil {
		ex.NewSessionID = "sess-1"
	}
	return ex
}

func TestMemoryStore_SaveExchange(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	session, err := store.SaveExchange(ctx, newExchange(nil, "hi", "hello", base))
	if err != nil {
		t.Fatalf("SaveExchange() error = %v", err)
	}
	if session.SessionID != "sess-1" || session.ID == 0 {
		t.Fatalf("unexpected session %+v", session)
	}

	if _, err := store.SaveExchange(ctx, newExchange(session, "menu?", "burgers", base.Add(time.Minute))); err != nil {
		t.Fatalf("SaveExchange() second error = %v", err)
	}

	msgs, _ := store.GetMessages(ctx, session.ID)
	if len(msgs) != 4 {
		t.Fatalf("got %d messages, want 4", len(msgs))
	}
	wantRoles := []model.Role{model.RoleUser, model.RoleAssistant, model.RoleUser, model.RoleAssistant}
	for i, m := range msgs {
		if m.Role != wantRoles[i] {
			t.Errorf("message %d role = %s, want %s", i, m.Role, wantRoles[i])
		}
	}

	recent, _ := store.GetRecentMessages(ctx, session.ID, 2)
	if len(recent) != 2 || recent[0].Content != "menu?" || recent[1].Content != "burgers" {
		t.Errorf("GetRecentMessages() = %+v", recent)
	}
}

func TestMemoryStore_SessionOwnership(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()

	if _, err := store.SaveExchange(ctx, newExchange(nil, "hi", "hello", time.Now())); err != nil {
		t.Fatalf("SaveExchange() error = %v", err)
	}

	got, err := store.GetSession(ctx, "sess-1", "someone-else")
	if err != nil || got != nil {
		t.Errorf("GetSession() for other user = %+v, %v; want nil, nil", got, err)
	}
	got, _ = store.GetSession(ctx, "sess-1", "user-1")
	if got == nil {
		t.Error("GetSession() for owner returned nil")
	}
}

func TestMemoryStore_Orders(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	first := &model.Order{ID: "PB000001", UserID: "u1", Status: model.StatusReceived, ItemsJSON: "[]",
		TotalAmount: decimal.RequireFromString("10.99"), CreatedAt: base, UpdatedAt: base}
	second := &model.Order{ID: "PB000002", UserID: "u1", Status: model.StatusReceived, ItemsJSON: "[]",
		CreatedAt: base.Add(time.Hour), UpdatedAt: base.Add(time.Hour)}
	other := &model.Order{ID: "PB000003", UserID: "u2", Status: model.StatusReceived, CreatedAt: base}

	for _, o := range []*model.Order{first, second, other} {
		ok, err := store.InsertOrder(ctx, o)
		if err != nil || !ok {
			t.Fatalf("InsertOrder(%s) = %v, %v", o.ID, ok, err)
		}
	}

	if ok, err := store.InsertOrder(ctx, &model.Order{ID: "PB000001", UserID: "u9"}); err != nil || ok {
		t.Errorf("duplicate InsertOrder() = %v, %v; want false, nil", ok, err)
	}

	list, _ := store.ListOrders(ctx, "u1")
	if len(list) != 2 || list[0].ID != "PB000002" {
		t.Errorf("ListOrders() = %+v, want newest first", list)
	}

	if got, _ := store.GetOrder(ctx, "PB000003", "u1"); got != nil {
		t.Error("GetOrder() returned another user's order")
	}
	if got, _ := store.GetOrderByID(ctx, "PB000003"); got == nil {
		t.Error("GetOrderByID() = nil")
	}

	driver := "Sam"
	first.Status = model.StatusPreparing
	first.DriverName = &driver
	if ok, err := store.UpdateOrderStatus(ctx, first, model.StatusReceived); err != nil || !ok {
		t.Fatalf("UpdateOrderStatus() = %v, %v", ok, err)
	}
	got, _ := store.GetOrder(ctx, "PB000001", "u1")
	if got.Status != model.StatusPreparing || got.DriverName == nil || *got.DriverName != "Sam" {
		t.Errorf("order after update = %+v", got)
	}

	// a writer that read the old status loses
	stale := *first
	stale.Status = model.StatusCancelled
	if ok, err := store.UpdateOrderStatus(ctx, &stale, model.StatusReceived); err != nil || ok {
		t.Errorf("stale UpdateOrderStatus() = %v, %v; want false, nil", ok, err)
	}
	if ok, _ := store.UpdateOrderStatus(ctx, &model.Order{ID: "missing"}, model.StatusReceived); ok {
		t.Error("UpdateOrderStatus() for unknown order reported success")
	}

	issue := &model.OrderIssue{OrderID: "PB000001", UserID: "u1", IssueType: "late", Description: "cold"}
	if err := store.InsertIssue(ctx, issue); err != nil || issue.ID == 0 {
		t.Fatalf("InsertIssue() = %v, id %d", err, issue.ID)
	}
	if n := len(store.Issues("PB000001")); n != 1 {
		t.Errorf("Issues() = %d, want 1", n)
	}
	if err := store.InsertIssue(ctx, &model.OrderIssue{OrderID: "missing"}); err == nil {
		t.Error("InsertIssue() for unknown order should fail")
	}
}
