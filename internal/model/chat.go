package model

import (
	"database/sql"
	"time"
)

// Role is the author of a conversation message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ChatSession is a caller-scoped conversation thread
type ChatSession struct {
	ID        int64     `json:"-" db:"id"`
	SessionID string    `json:"session_id" db:"session_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ConversationMessage is one append-only entry in a session
type ConversationMessage struct {
	ID               int64          `json:"id" db:"id"`
	SessionID        int64          `json:"-" db:"session_id"`
	Role             Role           `json:"role" db:"role"`
	Content          string         `json:"content" db:"content"`
	RetrievedContext sql.NullString `json:"-" db:"retrieved_context"`
	Timestamp        time.Time      `json:"timestamp" db:"timestamp"`
}

// ChatRequest is the body of POST /api/v1/chat
type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// ChatResponse is returned for a completed exchange
type ChatResponse struct {
	Message   string    `json:"message"`
	SessionID string    `json:"session_id"`
	Timestamp time.Time `json:"timestamp"`
}

// HistoryResponse lists the messages of one session
type HistoryResponse struct {
	SessionID string                `json:"session_id"`
	Messages  []ConversationMessage `json:"messages"`
}

// MessageExchange is one user message and its reply, persisted atomically.
// A nil Session means a new session is created with NewSessionID.
type MessageExchange struct {
	Session          *ChatSession
	UserID           string
	NewSessionID     string
	UserMessage      string
	UserAt           time.Time
	AssistantMessage string
	AssistantAt      time.Time
	RetrievedContext string
}
