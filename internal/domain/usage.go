package domain

import "time"

type UsageProject struct {
	ID           int64     `db:"id" json:"id"`
	Name         string    `db:"name" json:"name"`
	Path         string    `db:"path" json:"path"`
	SessionCount int       `json:"session_count"`
	TotalTokens  int64     `json:"total_tokens"`
	TotalCost    float64   `json:"total_cost"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

type UsageSession struct {
	ID                  int64     `db:"id" json:"id"`
	SessionID           string    `db:"session_id" json:"session_id"`
	ProjectID           int64     `db:"project_id" json:"project_id"`
	MessageCount        int       `db:"message_count" json:"message_count"`
	InputTokens         int64     `db:"total_input_tokens" json:"total_input_tokens"`
	OutputTokens        int64     `db:"total_output_tokens" json:"total_output_tokens"`
	CacheCreationTokens int64     `db:"total_cache_creation_tokens" json:"total_cache_creation_tokens"`
	CacheReadTokens     int64     `db:"total_cache_read_tokens" json:"total_cache_read_tokens"`
	TotalTokens         int64     `db:"total_tokens" json:"total_tokens"`
	TotalCost           float64   `db:"total_cost" json:"total_cost"`
	CreatedAt           time.Time `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time `db:"updated_at" json:"updated_at"`
}

type UsageSnapshot struct {
	ID                  int64     `db:"id" json:"id"`
	ProjectID           int64     `db:"project_id" json:"project_id"`
	SessionID           int64     `db:"session_id" json:"session_id"`
	InputTokens         int64     `db:"input_tokens" json:"input_tokens"`
	OutputTokens        int64     `db:"output_tokens" json:"output_tokens"`
	CacheCreationTokens int64     `db:"cache_creation_tokens" json:"cache_creation_tokens"`
	CacheReadTokens     int64     `db:"cache_read_tokens" json:"cache_read_tokens"`
	TotalTokens         int64     `db:"total_tokens" json:"total_tokens"`
	CostUSD             float64   `db:"cost_usd" json:"cost_usd"`
	Model               string    `db:"model" json:"model"`
	Timestamp           time.Time `db:"timestamp" json:"timestamp"`
	RequestID           string    `db:"request_id" json:"request_id"`
	MessageID           string    `db:"message_id" json:"message_id"`
}

type UsageStats struct {
	Projects            int     `json:"projects"`
	Sessions            int     `json:"sessions"`
	Messages            int64   `json:"messages"`
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	TotalTokens         int64   `json:"total_tokens"`
	TotalCost           float64 `json:"total_cost"`
}

type UsageSyncResult struct {
	Message          string `json:"message"`
	ProjectsUpdated  int    `json:"projects_updated"`
	SessionsUpdated  int    `json:"sessions_updated"`
	SnapshotsCreated int    `json:"snapshots_created"`
}

type UsageCleanupResult struct {
	Snapshots int64 `json:"snapshots"`
	Sessions  int64 `json:"sessions"`
	Projects  int64 `json:"projects"`
}
