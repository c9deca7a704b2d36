package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"perfbot/internal/logger"
	"perfbot/internal/model"
)

// memChatStore is a minimal ChatStore for service tests
type memChatStore struct {
	mu       sync.Mutex
	sessions map[string]*model.ChatSession
	messages map[int64][]model.ConversationMessage
	nextID   int64
	saveErr  error
}

func newMemChatStore() *memChatStore {
	return &memChatStore{
		sessions: make(map[string]*model.ChatSession),
		messages: make(map[int64][]model.ConversationMessage),
	}
}

func (m *memChatStore) GetSession(_ context.Context, sessionID, userID string) (*model.ChatSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[sessionID]
	if !ok || s.UserID != userID {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (m *memChatStore) GetMessages(_ context.Context, pk int64) ([]model.ConversationMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.ConversationMessage(nil), m.messages[pk]...), nil
}

func (m *memChatStore) GetRecentMessages(ctx context.Context, pk int64, limit int) ([]model.ConversationMessage, error) {
	msgs, _ := m.GetMessages(ctx, pk)
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return msgs, nil
}

func (m *memChatStore) SaveExchange(_ context.Context, ex *model.MessageExchange) (*model.ChatSession, error) {
	if m.saveErr != nil {
		return nil, m.saveErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session := ex.Session
	if session == nil {
		m.nextID++
		session = &model.ChatSession{ID: m.nextID, SessionID: ex.NewSessionID, UserID: ex.UserID}
		m.sessions[session.SessionID] = session
	}
	m.messages[session.ID] = append(m.messages[session.ID],
		model.ConversationMessage{SessionID: session.ID, Role: model.RoleUser, Content: ex.UserMessage, Timestamp: ex.UserAt},
		model.ConversationMessage{SessionID: session.ID, Role: model.RoleAssistant, Content: ex.AssistantMessage, Timestamp: ex.AssistantAt},
	)
	return session, nil
}

func (m *memChatStore) addUserMessages(userID, sessionID string, contents ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	s := &model.ChatSession{ID: m.nextID, SessionID: sessionID, UserID: userID}
	m.sessions[sessionID] = s
	for _, c := range contents {
		m.messages[s.ID] = append(m.messages[s.ID],
			model.ConversationMessage{SessionID: s.ID, Role: model.RoleUser, Content: c},
			model.ConversationMessage{SessionID: s.ID, Role: model.RoleAssistant, Content: "Sure, the Cola is great"},
		)
	}
}

func newTestChatService(store ChatStore, ai AIClient) *ChatService {
	log := logger.Nop()
	kb := DefaultKnowledgeBase()
	return NewChatService(store, NewRetriever(kb, log),
		NewResponseGenerator(ai, GeneratorOptions{}, log), ChatOptions{}, log)
}

func TestChatService_Chat(t *testing.T) {
	ctx := context.Background()

	t.Run("empty message makes no calls", func(t *testing.T) {
		ai := &fakeAI{reply: "hi"}
		svc := newTestChatService(newMemChatStore(), ai)
		_, err := svc.Chat(ctx, "u1", model.ChatRequest{Message: " \n\t "})
		if !errors.Is(err, ErrEmptyMessage) {
			t.Fatalf("Chat() error = %v, want ErrEmptyMessage", err)
		}
		if ai.callCount() != 0 {
			t.Error("blank message reached the model")
		}
	})

	t.Run("history is sent on the second turn", func(t *testing.T) {
		ai := &fakeAI{reply: "Fries are $3.99"}
		store := newMemChatStore()
		svc := newTestChatService(store, ai)

		first, err := svc.Chat(ctx, "u1", model.ChatRequest{Message: "Do you have fries?"})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if first.Message != "Fries are $3.99" {
			t.Errorf("Message = %q", first.Message)
		}

		if _, err := svc.Chat(ctx, "u1", model.ChatRequest{Message: "And cola?", SessionID: first.SessionID}); err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		// system, context, 2 history, user
		if n := len(ai.last.Messages); n != 5 {
			t.Errorf("second turn sent %d messages, want 5", n)
		}
	})

	t.Run("foreign session is not reused", func(t *testing.T) {
		store := newMemChatStore()
		svc := newTestChatService(store, nil)
		mine, _ := svc.Chat(ctx, "alice", model.ChatRequest{Message: "hello"})
		theirs, err := svc.Chat(ctx, "bob", model.ChatRequest{Message: "hello", SessionID: mine.SessionID})
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		if theirs.SessionID == mine.SessionID {
			t.Error("bob joined alice's session")
		}
	})

	t.Run("persistence failure surfaces", func(t *testing.T) {
		store := newMemChatStore()
		store.saveErr = errors.New("connection reset")
		svc := newTestChatService(store, nil)
		if _, err := svc.Chat(ctx, "u1", model.ChatRequest{Message: "hello"}); err == nil {
			t.Error("expected an error when saving fails")
		}
	})
}

func TestChatService_History(t *testing.T) {
	ctx := context.Background()
	store := newMemChatStore()
	store.addUserMessages("u1", "s1", "hi", "one cola")
	svc := newTestChatService(store, nil)

	got, err := svc.History(ctx, "u1", "s1")
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(got.Messages) != 4 || got.Messages[0].Role != model.RoleUser {
		t.Errorf("History() = %+v", got.Messages)
	}

	if _, err := svc.History(ctx, "u2", "s1"); !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("History() for other user error = %v, want ErrSessionNotFound", err)
	}
}
