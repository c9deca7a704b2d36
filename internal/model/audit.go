package model

import "time"

// Audit actions
const (
	AuditOrderCreated       = "order_created"
	AuditOrderStatusChanged = "order_status_changed"
	AuditOrderIssueReported = "order_issue_reported"
)

// AuditEntry is an append-only record of a state change
type AuditEntry struct {
	Action    string                 `json:"action"`
	EntityID  string                 `json:"entity_id"`
	UserID    string                 `json:"user_id"`
	Data      map[string]interface{} `json:"data"`
	CreatedAt time.Time              `json:"created_at"`
}
