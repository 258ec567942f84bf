package domain

import "time"

// AuditLog records a state-changing action worth keeping a trail of
type AuditLog struct {
	ID        int64                  `db:"id" json:"id"`
	UserID    int64                  `db:"user_id" json:"user_id"`
	Action    string                 `db:"action" json:"action"`
	Category  string                 `db:"category" json:"category"`
	Details   map[string]interface{} `db:"details" json:"details"`
	IP        string                 `db:"ip" json:"ip,omitempty"`
	UserAgent string                 `db:"user_agent" json:"user_agent,omitempty"`
	CreatedAt time.Time              `db:"created_at" json:"created_at"`
}

// Audit action categories
const (
	AuditCategoryTasks   = "tasks"
	AuditCategoryDevices = "devices"
	AuditCategoryAgents  = "agents"
	AuditCategoryMemo    = "memo"
	AuditCategoryAdmin   = "admin"
)

// Audit actions
const (
	AuditActionTasksBulkUpdate = "tasks_bulk_update"
	AuditActionTasksBulkDelete = "tasks_bulk_delete"

	AuditActionDeviceRevoke       = "device_revoke"
	AuditActionDeviceRevokeOthers = "device_revoke_others"

	AuditActionUsageSync  = "usage_sync"
	AuditActionDockerSync = "docker_sync"

	AuditActionMaterialsBulkFavorite = "materials_bulk_favorite"
	AuditActionGeocodeRequeue        = "geocode_requeue"

	AuditActionProviderCreate = "provider_create"
)
