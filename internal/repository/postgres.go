package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"perfbot/internal/model"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// PostgresRepository handles database operations
type PostgresRepository struct {
	db *sqlx.DB
}

// NewPostgresRepository creates a new PostgreSQL repository
func NewPostgresRepository(dsn string, maxConn, maxIdleConn int) (*PostgresRepository, error) {
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	db.SetMaxOpenConns(maxConn)
	db.SetMaxIdleConns(maxIdleConn)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresRepository{db: db}, nil
}

// Close closes the database connection
func (r *PostgresRepository) Close() error {
	return r.db.Close()
}

// Ping checks the connection for health reporting
func (r *PostgresRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS chat_sessions (
		id BIGSERIAL PRIMARY KEY,
		session_id TEXT NOT NULL UNIQUE,
		user_id TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_sessions_user ON chat_sessions (user_id)`,
	`CREATE TABLE IF NOT EXISTS chat_messages (
		id BIGSERIAL PRIMARY KEY,
		session_id BIGINT NOT NULL REFERENCES chat_sessions(id) ON DELETE CASCADE,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		retrieved_context TEXT,
		timestamp TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_chat_messages_session ON chat_messages (session_id, id)`,
	`CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		status TEXT NOT NULL,
		items TEXT NOT NULL DEFAULT '[]',
		total_amount NUMERIC(10,2) NOT NULL,
		delivery_address TEXT,
		estimated_delivery TIMESTAMPTZ NOT NULL,
		actual_delivery TIMESTAMPTZ,
		driver_name TEXT,
		driver_phone TEXT,
		created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_orders_user ON orders (user_id, created_at DESC)`,
	`CREATE TABLE IF NOT EXISTS order_issues (
		id BIGSERIAL PRIMARY KEY,
		order_id TEXT NOT NULL REFERENCES orders(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		description TEXT NOT NULL,
		status TEXT NOT NULL,
		reported_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`,
}

// Migrate creates the tables if they do not exist
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// GetSession returns the session only if it belongs to userID
func (r *PostgresRepository) GetSession(ctx context.Context, sessionID, userID string) (*model.ChatSession, error) {
	var session model.ChatSession
	query := `
		SELECT id, session_id, user_id, created_at, updated_at
		FROM chat_sessions
		WHERE session_id = $1 AND user_id = $2
	`
	err := r.db.GetContext(ctx, &session, query, sessionID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

const messageColumns = `id, session_id, role, content, retrieved_context, timestamp`

// GetMessages returns the whole conversation, oldest first
func (r *PostgresRepository) GetMessages(ctx context.Context, sessionPK int64) ([]model.ConversationMessage, error) {
	var messages []model.ConversationMessage
	query := `SELECT ` + messageColumns + ` FROM chat_messages WHERE session_id = $1 ORDER BY timestamp, id`
	if err := r.db.SelectContext(ctx, &messages, query, sessionPK); err != nil {
		return nil, fmt.Errorf("failed to get messages: %w", err)
	}
	return messages, nil
}

// GetRecentMessages returns the newest limit messages, oldest first
func (r *PostgresRepository) GetRecentMessages(ctx context.Context, sessionPK int64, limit int) ([]model.ConversationMessage, error) {
	var messages []model.ConversationMessage
	query := `
		SELECT * FROM (
			SELECT ` + messageColumns + ` FROM chat_messages
			WHERE session_id = $1
			ORDER BY timestamp DESC, id DESC
			LIMIT $2
		) recent
		ORDER BY timestamp, id
	`
	if err := r.db.SelectContext(ctx, &messages, query, sessionPK, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent messages: %w", err)
	}
	return messages, nil
}

// SaveExchange writes the session (when new) and both messages in one transaction
func (r *PostgresRepository) SaveExchange(ctx context.Context, ex *model.MessageExchange) (*model.ChatSession, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	session := ex.Session
	if session == nil {
		session = &model.ChatSession{}
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO chat_sessions (session_id, user_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3)
			RETURNING id, session_id, user_id, created_at, updated_at
		`, ex.NewSessionID, ex.UserID, ex.UserAt).StructScan(session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE chat_sessions SET updated_at = $1 WHERE id = $2`, ex.AssistantAt, session.ID); err != nil {
			return nil, fmt.Errorf("failed to touch session: %w", err)
		}
		session.UpdatedAt = ex.AssistantAt
	}

	insert := `INSERT INTO chat_messages (session_id, role, content, retrieved_context, timestamp) VALUES ($1, $2, $3, $4, $5)`
	if _, err := tx.ExecContext(ctx, insert, session.ID, model.RoleUser, ex.UserMessage, nil, ex.UserAt); err != nil {
		return nil, fmt.Errorf("failed to save user message: %w", err)
	}
	retrieved := sql.NullString{String: ex.RetrievedContext, Valid: ex.RetrievedContext != ""}
	if _, err := tx.ExecContext(ctx, insert, session.ID, model.RoleAssistant, ex.AssistantMessage, retrieved, ex.AssistantAt); err != nil {
		return nil, fmt.Errorf("failed to save assistant message: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return session, nil
}

const orderColumns = `id, user_id, status, items, total_amount, delivery_address, estimated_delivery,
	actual_delivery, driver_name, driver_phone, created_at, updated_at`

// InsertOrder stores a new order. A taken ID yields false with no error.
func (r *PostgresRepository) InsertOrder(ctx context.Context, order *model.Order) (bool, error) {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES (:id, :user_id, :status, :items, :total_amount, :delivery_address, :estimated_delivery,
			:actual_delivery, :driver_name, :driver_phone, :created_at, :updated_at)
		ON CONFLICT (id) DO NOTHING
	`
	res, err := r.db.NamedExecContext(ctx, query, order)
	if err != nil {
		return false, fmt.Errorf("failed to insert order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read insert result: %w", err)
	}
	return n == 1, nil
}

// GetOrder returns the order only if it belongs to userID
func (r *PostgresRepository) GetOrder(ctx context.Context, orderID, userID string) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 AND user_id = $2`, orderID, userID)
}

// GetOrderByID returns the order regardless of owner, for operational updates
func (r *PostgresRepository) GetOrderByID(ctx context.Context, orderID string) (*model.Order, error) {
	return r.getOrder(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, orderID)
}

func (r *PostgresRepository) getOrder(ctx context.Context, query string, args ...interface{}) (*model.Order, error) {
	var order model.Order
	if err := r.db.GetContext(ctx, &order, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return &order, nil
}

// ListOrders returns the user's orders, newest first
func (r *PostgresRepository) ListOrders(ctx context.Context, userID string) ([]model.Order, error) {
	var orders []model.Order
	query := `SELECT ` + orderColumns + ` FROM orders WHERE user_id = $1 ORDER BY created_at DESC, id`
	if err := r.db.SelectContext(ctx, &orders, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// UpdateOrderStatus persists the fields a status transition may change. The
// row is only written while its status is still from.
func (r *PostgresRepository) UpdateOrderStatus(ctx context.Context, order *model.Order, from model.OrderStatus) (bool, error) {
	query := `
		UPDATE orders
		SET status = $1, driver_name = $2, driver_phone = $3, actual_delivery = $4, updated_at = $5
		WHERE id = $6 AND status = $7
	`
	res, err := r.db.ExecContext(ctx, query,
		order.Status, order.DriverName, order.DriverPhone, order.ActualDelivery, order.UpdatedAt,
		order.ID, from,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update order: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read update result: %w", err)
	}
	return n == 1, nil
}

// InsertIssue stores an issue report and fills its ID
func (r *PostgresRepository) InsertIssue(ctx context.Context, issue *model.OrderIssue) error {
	query := `
		INSERT INTO order_issues (order_id, user_id, issue_type, description, status, reported_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := r.db.QueryRowxContext(ctx, query,
		issue.OrderID, issue.UserID, issue.IssueType, issue.Description, issue.Status, issue.ReportedAt,
	).Scan(&issue.ID)
	if err != nil {
		return fmt.Errorf("failed to insert issue: %w", err)
	}
	return nil
}
