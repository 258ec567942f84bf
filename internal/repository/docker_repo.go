package repository

import (
	"context"
	"encoding/json"
	"time"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type DockerRepository struct {
	db *pgxpool.Pool
}

func NewDockerRepository(db *pgxpool.Pool) *DockerRepository {
	return &DockerRepository{db: db}
}

const hostColumns = `id, name, hostname, is_local, is_active, last_seen`

func scanHost(row pgx.Row) (*domain.DockerHost, error) {
	var h domain.DockerHost
	if err := row.Scan(&h.ID, &h.Name, &h.Hostname, &h.IsLocal, &h.IsActive, &h.LastSeen); err != nil {
		return nil, err
	}
	return &h, nil
}

// UpsertHost records the host as active and seen at now.
func (r *DockerRepository) UpsertHost(ctx context.Context, name, hostname string, now time.Time) (*domain.DockerHost, error) {
	h, err := scanHost(r.db.QueryRow(ctx,
		`INSERT INTO docker_hosts (name, hostname, is_active, last_seen)
		 VALUES ($1, $2, TRUE, $3)
		 ON CONFLICT (name) DO UPDATE
		 SET hostname = EXCLUDED.hostname, is_active = TRUE, last_seen = EXCLUDED.last_seen
		 RETURNING `+hostColumns,
		name, hostname, now))
	if err != nil {
		return nil, mapError(err)
	}
	return h, nil
}

func (r *DockerRepository) ListHosts(ctx context.Context) ([]*domain.DockerHost, error) {
	rows, err := r.db.Query(ctx, `SELECT `+hostColumns+` FROM docker_hosts ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	hosts := []*domain.DockerHost{}
	for rows.Next() {
		h, err := scanHost(rows)
		if err != nil {
			return nil, err
		}
		hosts = append(hosts, h)
	}
	return hosts, rows.Err()
}

func (r *DockerRepository) GetHost(ctx context.Context, id int64) (*domain.DockerHost, error) {
	h, err := scanHost(r.db.QueryRow(ctx, `SELECT `+hostColumns+` FROM docker_hosts WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return h, nil
}

// DeactivateStale flips hosts not seen since cutoff to inactive.
func (r *DockerRepository) DeactivateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.db.Exec(ctx,
		`UPDATE docker_hosts SET is_active = FALSE
		 WHERE is_active AND (last_seen IS NULL OR last_seen < $1)`,
		cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func rawOr(raw json.RawMessage, def string) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return []byte(def)
	}
	return raw
}

func (r *DockerRepository) UpsertContainer(ctx context.Context, c *domain.DockerContainer) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO docker_containers (host_id, container_id, name, image, status, state, ports, labels,
		                                networks, mounts, created_at, started_at, finished_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 ON CONFLICT (host_id, container_id) DO UPDATE
		 SET name = EXCLUDED.name, image = EXCLUDED.image, status = EXCLUDED.status,
		     state = EXCLUDED.state, ports = EXCLUDED.ports, labels = EXCLUDED.labels,
		     networks = EXCLUDED.networks, mounts = EXCLUDED.mounts, created_at = EXCLUDED.created_at,
		     started_at = EXCLUDED.started_at, finished_at = EXCLUDED.finished_at, updated_at = NOW()
		 RETURNING id, updated_at`,
		c.HostID, c.ContainerID, c.Name, c.Image, c.Status,
		rawOr(c.State, "{}"), rawOr(c.Ports, "[]"), rawOr(c.Labels, "{}"), rawOr(c.Networks, "[]"), rawOr(c.Mounts, "[]"),
		c.CreatedAt, c.StartedAt, c.FinishedAt,
	).Scan(&c.ID, &c.UpdatedAt)
	return mapError(err)
}

// MarkRemoved sets status "removed" on host containers absent from keep.
func (r *DockerRepository) MarkRemoved(ctx context.Context, hostID int64, keep []string) (int64, error) {
	if keep == nil {
		keep = []string{}
	}
	tag, err := r.db.Exec(ctx,
		`UPDATE docker_containers SET status = $3, updated_at = NOW()
		 WHERE host_id = $1 AND status <> $3 AND NOT (container_id = ANY($2::text[]))`,
		hostID, keep, domain.ContainerRemoved)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

const containerColumns = `id, host_id, container_id, name, image, status, state, ports, labels, networks, mounts,
	created_at, started_at, finished_at, updated_at`

// ListContainers returns host containers; status "" means all but removed.
func (r *DockerRepository) ListContainers(ctx context.Context, hostID int64, status string) ([]*domain.DockerContainer, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+containerColumns+` FROM docker_containers
		 WHERE ($1 = 0 OR host_id = $1)
		   AND (($2 = '' AND status <> 'removed') OR status = $2)
		 ORDER BY name`,
		hostID, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	containers := []*domain.DockerContainer{}
	for rows.Next() {
		var c domain.DockerContainer
		var state, ports, labels, networks, mounts []byte
		if err := rows.Scan(&c.ID, &c.HostID, &c.ContainerID, &c.Name, &c.Image, &c.Status,
			&state, &ports, &labels, &networks, &mounts,
			&c.CreatedAt, &c.StartedAt, &c.FinishedAt, &c.UpdatedAt); err != nil {
			return nil, err
		}
		c.State, c.Ports, c.Labels, c.Networks, c.Mounts = state, ports, labels, networks, mounts
		containers = append(containers, &c)
	}
	return containers, rows.Err()
}

func (r *DockerRepository) CountByStatus(ctx context.Context, hostID int64) (map[string]int, error) {
	rows, err := r.db.Query(ctx,
		`SELECT status, COUNT(*) FROM docker_containers WHERE host_id = $1 GROUP BY status`, hostID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func (r *DockerRepository) InsertStats(ctx context.Context, s *domain.SystemStats) error {
	load, _ := json.Marshal(s.LoadAverage)
	if s.LoadAverage == nil {
		load = []byte("[]")
	}
	return r.db.QueryRow(ctx,
		`INSERT INTO system_stats (host_id, cpu_percent, cpu_count, memory_total, memory_used, memory_percent,
		                           disk_total, disk_used, disk_percent, load_average, timestamp)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		 RETURNING id`,
		s.HostID, s.CPUPercent, s.CPUCount, s.MemoryTotal, s.MemoryUsed, s.MemoryPercent,
		s.DiskTotal, s.DiskUsed, s.DiskPercent, load, s.Timestamp,
	).Scan(&s.ID)
}

func (r *DockerRepository) LatestStats(ctx context.Context, hostID int64) (*domain.SystemStats, error) {
	var s domain.SystemStats
	var load []byte
	err := r.db.QueryRow(ctx,
		`SELECT id, host_id, cpu_percent, cpu_count, memory_total, memory_used, memory_percent,
		        disk_total, disk_used, disk_percent, load_average, timestamp
		 FROM system_stats WHERE host_id = $1
		 ORDER BY timestamp DESC LIMIT 1`,
		hostID,
	).Scan(&s.ID, &s.HostID, &s.CPUPercent, &s.CPUCount, &s.MemoryTotal, &s.MemoryUsed, &s.MemoryPercent,
		&s.DiskTotal, &s.DiskUsed, &s.DiskPercent, &load, &s.Timestamp)
	if err != nil {
		return nil, mapError(err)
	}
	if err := json.Unmarshal(load, &s.LoadAverage); err != nil {
		s.LoadAverage = []float64{}
	}
	return &s, nil
}
