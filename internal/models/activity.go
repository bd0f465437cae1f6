package models

import (
	"encoding/json"
	"time"
)

// Audit actions. The set is closed; activity_logs enforces it with a CHECK constraint.
const (
	ActionLogin      = "login"
	ActionLogout     = "logout"
	ActionUpload     = "upload"
	ActionDownload   = "download"
	ActionDelete     = "delete"
	ActionUpdate     = "update"
	ActionCreateUser = "create_user"
	ActionUpdateUser = "update_user"
	ActionDeleteUser = "delete_user"
)

const (
	ResourceFile   = "file"
	ResourceUser   = "user"
	ResourceSystem = "system"
)

// ActivityLog is an append-only audit row. Rows are never updated or deleted.
type ActivityLog struct {
	ID           int64           `json:"id" db:"id"`
	UserID       int64           `json:"userId" db:"user_id"`
	Username     string          `json:"username,omitempty"`
	Email        string          `json:"email,omitempty"`
	Action       string          `json:"action" db:"action"`
	Description  string          `json:"description" db:"description"`
	ResourceType *string         `json:"resourceType,omitempty" db:"resource_type"`
	ResourceID   *int64          `json:"resourceId,omitempty" db:"resource_id"`
	IPAddress    *string         `json:"ipAddress,omitempty" db:"ip_address"`
	UserAgent    *string         `json:"userAgent,omitempty" db:"user_agent"`
	Metadata     json.RawMessage `json:"metadata,omitempty" db:"metadata"`
	CreatedAt    time.Time       `json:"createdAt" db:"created_at"`
}
