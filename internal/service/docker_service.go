package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"
)

type DockerStore interface {
	UpsertHost(ctx context.Context, name, hostname string, now time.Time) (*domain.DockerHost, error)
	ListHosts(ctx context.Context) ([]*domain.DockerHost, error)
	GetHost(ctx context.Context, id int64) (*domain.DockerHost, error)
	DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error)
	UpsertContainer(ctx context.Context, c *domain.DockerContainer) error
	MarkRemoved(ctx context.Context, hostID int64, keep []string) (int64, error)
	ListContainers(ctx context.Context, hostID int64, status string) ([]*domain.DockerContainer, error)
	CountByStatus(ctx context.Context, hostID int64) (map[string]int, error)
	InsertStats(ctx context.Context, s *domain.SystemStats) error
	LatestStats(ctx context.Context, hostID int64) (*domain.SystemStats, error)
}

// DockerSyncPayload is posted by the docker agent on every sync.
type DockerSyncPayload struct {
	Host struct {
		Name     string `json:"name" binding:"required"`
		Hostname string `json:"hostname"`
	} `json:"host" binding:"required"`
	Containers []ContainerPayload `json:"containers"`
	System     *SystemPayload     `json:"system"`
}

type ContainerPayload struct {
	ContainerID string          `json:"container_id" binding:"required"`
	Name        string          `json:"name"`
	Image       string          `json:"image"`
	Status      string          `json:"status"`
	State       json.RawMessage `json:"state"`
	Ports       json.RawMessage `json:"ports"`
	Labels      json.RawMessage `json:"labels"`
	Networks    json.RawMessage `json:"networks"`
	Mounts      json.RawMessage `json:"mounts"`
	CreatedAt   string          `json:"created_at"`
	StartedAt   string          `json:"started_at"`
	FinishedAt  string          `json:"finished_at"`
}

type SystemPayload struct {
	CPUPercent    float64   `json:"cpu_percent"`
	CPUCount      int       `json:"cpu_count"`
	MemoryTotal   int64     `json:"memory_total"`
	MemoryUsed    int64     `json:"memory_used"`
	MemoryPercent float64   `json:"memory_percent"`
	DiskTotal     int64     `json:"disk_total"`
	DiskUsed      int64     `json:"disk_used"`
	DiskPercent   float64   `json:"disk_percent"`
	LoadAverage   []float64 `json:"load_average"`
}

// dockerZeroTime is what the engine reports for never-started containers.
const dockerZeroTime = "0001-01-01T00:00:00Z"

// ParseDockerTime returns nil for empty, zero or unparseable values.
func ParseDockerTime(s string) *time.Time {
	s = strings.TrimSpace(s)
	if s == "" || s == dockerZeroTime {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil || t.IsZero() || t.Year() <= 1 {
		return nil
	}
	t = t.UTC()
	return &t
}

type DockerService struct {
	store  DockerStore
	stale  time.Duration
	events Publisher
	now    func() time.Time
}

func NewDockerService(store DockerStore, stale time.Duration, events Publisher) *DockerService {
	return &DockerService{store: store, stale: stale, events: publisherOrNop(events), now: time.Now}
}

// Sync records the agent's view of a host. Known containers missing from
// the payload are marked removed.
func (s *DockerService) Sync(ctx context.Context, p DockerSyncPayload) (*domain.DockerSyncResult, error) {
	name := strings.TrimSpace(p.Host.Name)
	if name == "" {
		return nil, domain.NewValidationError("host.name", "This field is required.")
	}
	now := s.now().UTC()
	host, err := s.store.UpsertHost(ctx, name, p.Host.Hostname, now)
	if err != nil {
		return nil, err
	}

	keep := make([]string, 0, len(p.Containers))
	for _, cp := range p.Containers {
		if cp.ContainerID == "" {
			continue
		}
		c := &domain.DockerContainer{
			HostID:      host.ID,
			ContainerID: cp.ContainerID,
			Name:        strings.TrimPrefix(cp.Name, "/"),
			Image:       cp.Image,
			Status:      cp.Status,
			State:       cp.State,
			Ports:       cp.Ports,
			Labels:      cp.Labels,
			Networks:    cp.Networks,
			Mounts:      cp.Mounts,
			CreatedAt:   ParseDockerTime(cp.CreatedAt),
			StartedAt:   ParseDockerTime(cp.StartedAt),
			FinishedAt:  ParseDockerTime(cp.FinishedAt),
		}
		if err := s.store.UpsertContainer(ctx, c); err != nil {
			return nil, err
		}
		keep = append(keep, cp.ContainerID)
	}

	removed, err := s.store.MarkRemoved(ctx, host.ID, keep)
	if err != nil {
		return nil, err
	}

	if p.System != nil {
		st := &domain.SystemStats{
			HostID:        host.ID,
			CPUPercent:    p.System.CPUPercent,
			CPUCount:      p.System.CPUCount,
			MemoryTotal:   p.System.MemoryTotal,
			MemoryUsed:    p.System.MemoryUsed,
			MemoryPercent: p.System.MemoryPercent,
			DiskTotal:     p.System.DiskTotal,
			DiskUsed:      p.System.DiskUsed,
			DiskPercent:   p.System.DiskPercent,
			LoadAverage:   p.System.LoadAverage,
			Timestamp:     now,
		}
		if err := s.store.InsertStats(ctx, st); err != nil {
			return nil, err
		}
	}

	res := &domain.DockerSyncResult{
		Message:           "Docker data synced successfully",
		Host:              *host,
		ContainersSynced:  len(keep),
		ContainersRemoved: removed,
	}
	logger.WithContext(ctx).Info("docker sync stored", "host", host.Name, "containers", len(keep), "removed", removed)
	s.events.PublishToStaff(EventDockerSynced, res)
	return res, nil
}

func (s *DockerService) Hosts(ctx context.Context) ([]*domain.DockerHost, error) {
	return s.store.ListHosts(ctx)
}

func (s *DockerService) Overview(ctx context.Context, hostID int64) (*domain.HostOverview, error) {
	host, err := s.store.GetHost(ctx, hostID)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.CountByStatus(ctx, hostID)
	if err != nil {
		return nil, err
	}
	ov := &domain.HostOverview{Host: *host, ByStatus: counts}
	for status, n := range counts {
		if status != domain.ContainerRemoved {
			ov.Total += n
		}
	}
	if ov.LatestStats, err = s.LatestStats(ctx, hostID); err != nil {
		return nil, err
	}
	return ov, nil
}

// LatestStats returns nil without error when the host never reported stats.
func (s *DockerService) LatestStats(ctx context.Context, hostID int64) (*domain.SystemStats, error) {
	st, err := s.store.LatestStats(ctx, hostID)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	return st, err
}

func (s *DockerService) Containers(ctx context.Context, hostID int64, status string) ([]*domain.DockerContainer, error) {
	if _, err := s.store.GetHost(ctx, hostID); err != nil {
		return nil, err
	}
	return s.store.ListContainers(ctx, hostID, status)
}

// Running lists running containers across all hosts.
func (s *DockerService) Running(ctx context.Context) ([]*domain.DockerContainer, error) {
	return s.store.ListContainers(ctx, 0, "running")
}

// DeactivateStale flags hosts that stopped reporting.
func (s *DockerService) DeactivateStale(ctx context.Context) (int64, error) {
	n, err := s.store.DeactivateStale(ctx, s.now().Add(-s.stale))
	if err != nil {
		return 0, err
	}
	if n > 0 {
		logger.Info("docker hosts marked inactive", "count", n)
	}
	return n, nil
}
