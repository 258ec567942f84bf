package domain

import (
	"encoding/json"
	"time"
)

const ContainerRemoved = "removed"

type DockerHost struct {
	ID       int64      `db:"id" json:"id"`
	Name     string     `db:"name" json:"name"`
	Hostname string     `db:"hostname" json:"hostname"`
	IsLocal  bool       `db:"is_local" json:"is_local"`
	IsActive bool       `db:"is_active" json:"is_active"`
	LastSeen *time.Time `db:"last_seen" json:"last_seen"`
}

type DockerContainer struct {
	ID          int64           `db:"id" json:"id"`
	HostID      int64           `db:"host_id" json:"host_id"`
	ContainerID string          `db:"container_id" json:"container_id"`
	Name        string          `db:"name" json:"name"`
	Image       string          `db:"image" json:"image"`
	Status      string          `db:"status" json:"status"`
	State       json.RawMessage `db:"state" json:"state"`
	Ports       json.RawMessage `db:"ports" json:"ports"`
	Labels      json.RawMessage `db:"labels" json:"labels"`
	Networks    json.RawMessage `db:"networks" json:"networks"`
	Mounts      json.RawMessage `db:"mounts" json:"mounts"`
	CreatedAt   *time.Time      `db:"created_at" json:"created_at"`
	StartedAt   *time.Time      `db:"started_at" json:"started_at"`
	FinishedAt  *time.Time      `db:"finished_at" json:"finished_at"`
	UpdatedAt   time.Time       `db:"updated_at" json:"updated_at"`
}

type SystemStats struct {
	ID            int64     `db:"id" json:"id"`
	HostID        int64     `db:"host_id" json:"host_id"`
	CPUPercent    float64   `db:"cpu_percent" json:"cpu_percent"`
	CPUCount      int       `db:"cpu_count" json:"cpu_count"`
	MemoryTotal   int64     `db:"memory_total" json:"memory_total"`
	MemoryUsed    int64     `db:"memory_used" json:"memory_used"`
	MemoryPercent float64   `db:"memory_percent" json:"memory_percent"`
	DiskTotal     int64     `db:"disk_total" json:"disk_total"`
	DiskUsed      int64     `db:"disk_used" json:"disk_used"`
	DiskPercent   float64   `db:"disk_percent" json:"disk_percent"`
	LoadAverage   []float64 `db:"load_average" json:"load_average"`
	Timestamp     time.Time `db:"timestamp" json:"timestamp"`
}

// HostOverview summarises the containers known for a host.
type HostOverview struct {
	Host        DockerHost     `json:"host"`
	Total       int            `json:"total_containers"`
	ByStatus    map[string]int `json:"by_status"`
	LatestStats *SystemStats   `json:"latest_stats"`
}

type DockerSyncResult struct {
	Message           string     `json:"message"`
	Host              DockerHost `json:"host"`
	ContainersSynced  int        `json:"containers_synced"`
	ContainersRemoved int64      `json:"containers_removed"`
}
