package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"perfbot/internal/logger"
	"perfbot/internal/model"

	"github.com/google/uuid"
)

var (
	// ErrEmptyMessage is returned for blank chat messages
	ErrEmptyMessage = errors.New("message is required")
	// ErrSessionNotFound covers both missing sessions and sessions of other users
	ErrSessionNotFound = errors.New("chat session not found")
)

// ChatService handles one message exchange per request
type ChatService struct {
	store        ChatStore
	retriever    *Retriever
	generator    *ResponseGenerator
	maxResults   int
	historyLimit int
	now          func() time.Time
	log          *logger.Logger
}

// ChatOptions tunes retrieval and history
type ChatOptions struct {
	MaxResults   int
	HistoryLimit int
}

// NewChatService creates a new chat service
func NewChatService(store ChatStore, retriever *Retriever, generator *ResponseGenerator, opts ChatOptions, log *logger.Logger) *ChatService {
	if opts.MaxResults <= 0 {
		opts.MaxResults = 3
	}
	if opts.HistoryLimit <= 0 {
		opts.HistoryLimit = 10
	}
	return &ChatService{
		store:        store,
		retriever:    retriever,
		generator:    generator,
		maxResults:   opts.MaxResults,
		historyLimit: opts.HistoryLimit,
		now:          func() time.Time { return time.Now().UTC() },
		log:          log.With("component", "ChatService"),
	}
}

// Chat answers a message. An unknown session, or one owned by someone else,
// starts a new session. Both messages are persisted together.
func (s *ChatService) Chat(ctx context.Context, userID string, req model.ChatRequest) (*model.ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	if message == "" {
		return nil, ErrEmptyMessage
	}
	userAt := s.now()

	var session *model.ChatSession
	if req.SessionID != "" {
		var err error
		session, err = s.store.GetSession(ctx, req.SessionID, userID)
		if err != nil {
			return nil, fmt.Errorf("failed to load session: %w", err)
		}
		if session == nil {
			s.log.Info("Session not found for caller, starting a new one")
		}
	}

	var history []model.ConversationMessage
	if session != nil {
		var err error
		history, err = s.store.GetRecentMessages(ctx, session.ID, s.historyLimit)
		if err != nil {
			return nil, fmt.Errorf("failed to load history: %w", err)
		}
	}

	entries := s.retriever.Retrieve(message, s.maxResults)
	reply := s.generator.Generate(ctx, message, entries, history)

	ex := &model.MessageExchange{
		Session:          session,
		UserID:           userID,
		UserMessage:      message,
		UserAt:           userAt,
		AssistantMessage: reply,
		AssistantAt:      s.now(),
		RetrievedContext: FormatContext(entries),
	}
	if session == nil {
		ex.NewSessionID = uuid.NewString()
	}

	saved, err := s.store.SaveExchange(ctx, ex)
	if err != nil {
		return nil, fmt.Errorf("failed to save messages: %w", err)
	}

	s.log.Info("Chat exchange saved",
		"session_id", saved.SessionID,
		"context_items", len(entries),
		"history", len(history),
	)

	return &model.ChatResponse{
		Message:   reply,
		SessionID: saved.SessionID,
		Timestamp: ex.AssistantAt,
	}, nil
}

// History returns every message of a session owned by userID
func (s *ChatService) History(ctx context.Context, userID, sessionID string) (*model.HistoryResponse, error) {
	session, err := s.store.GetSession(ctx, sessionID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	if session == nil {
		return nil, ErrSessionNotFound
	}

	messages, err := s.store.GetMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	if messages == nil {
		messages = []model.ConversationMessage{}
	}
	return &model.HistoryResponse{SessionID: session.SessionID, Messages: messages}, nil
}
