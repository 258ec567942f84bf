package repository

import (
	"context"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/usage"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// UsageRepository stores LLM usage projects, sessions and snapshots.
type UsageRepository struct {
	db *pgxpool.Pool
}

func NewUsageRepository(db *pgxpool.Pool) *UsageRepository {
	return &UsageRepository{db: db}
}

func (r *UsageRepository) UpsertProject(ctx context.Context, name, path string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_projects (name, path) VALUES ($1, $2)
		 ON CONFLICT (name) DO UPDATE
		 SET path = CASE WHEN EXCLUDED.path <> '' THEN EXCLUDED.path ELSE usage_projects.path END,
		     updated_at = NOW()
		 RETURNING id`,
		name, path,
	).Scan(&id)
	return id, err
}

func (r *UsageRepository) UpsertSession(ctx context.Context, projectID int64, sessionID string) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx,
		`INSERT INTO usage_sessions (session_id, project_id) VALUES ($1, $2)
		 ON CONFLICT (session_id, project_id) DO UPDATE SET updated_at = NOW()
		 RETURNING id`,
		sessionID, projectID,
	).Scan(&id)
	return id, err
}

// InsertSnapshot stores a usage entry once per (session, message id).
// created is false when the message was already recorded.
func (r *UsageRepository) InsertSnapshot(ctx context.Context, s *domain.UsageSnapshot) (bool, error) {
	tag, err := r.db.Exec(ctx,
		`INSERT INTO usage_snapshots (project_id, session_id, input_tokens, output_tokens,
		                              cache_creation_tokens, cache_read_tokens, total_tokens, cost_usd,
		                              model, timestamp, request_id, message_id)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		 ON CONFLICT (session_id, message_id) WHERE message_id <> '' DO NOTHING`,
		s.ProjectID, s.SessionID, s.InputTokens, s.OutputTokens, s.CacheCreationTokens, s.CacheReadTokens,
		s.TotalTokens, s.CostUSD, s.Model, s.Timestamp, s.RequestID, s.MessageID,
	)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

// RecomputeSession refreshes the session totals from its stored snapshots.
func (r *UsageRepository) RecomputeSession(ctx context.Context, sessionID int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE usage_sessions s
		 SET message_count = agg.cnt,
		     total_input_tokens = agg.input,
		     total_output_tokens = agg.output,
		     total_cache_creation_tokens = agg.cache_creation,
		     total_cache_read_tokens = agg.cache_read,
		     total_tokens = agg.total,
		     total_cost = agg.cost,
		     updated_at = NOW()
		 FROM (
		     SELECT COUNT(*) AS cnt,
		            COALESCE(SUM(input_tokens), 0) AS input,
		            COALESCE(SUM(output_tokens), 0) AS output,
		            COALESCE(SUM(cache_creation_tokens), 0) AS cache_creation,
		            COALESCE(SUM(cache_read_tokens), 0) AS cache_read,
		            COALESCE(SUM(total_tokens), 0) AS total,
		            COALESCE(SUM(cost_usd), 0) AS cost
		     FROM usage_snapshots WHERE session_id = $1
		 ) agg
		 WHERE s.id = $1`,
		sessionID,
	)
	return err
}

func (r *UsageRepository) Stats(ctx context.Context) (*domain.UsageStats, error) {
	var st domain.UsageStats
	err := r.db.QueryRow(ctx,
		`SELECT (SELECT COUNT(*) FROM usage_projects),
		        (SELECT COUNT(*) FROM usage_sessions),
		        COUNT(*),
		        COALESCE(SUM(input_tokens), 0),
		        COALESCE(SUM(output_tokens), 0),
		        COALESCE(SUM(cache_creation_tokens), 0),
		        COALESCE(SUM(cache_read_tokens), 0),
		        COALESCE(SUM(total_tokens), 0),
		        COALESCE(SUM(cost_usd), 0)::float8
		 FROM usage_snapshots`,
	).Scan(&st.Projects, &st.Sessions, &st.Messages, &st.InputTokens, &st.OutputTokens,
		&st.CacheCreationTokens, &st.CacheReadTokens, &st.TotalTokens, &st.TotalCost)
	if err != nil {
		return nil, err
	}
	return &st, nil
}

const usageProjectSelect = `
	SELECT p.id, p.name, p.path, p.created_at, p.updated_at,
	       COUNT(s.id), COALESCE(SUM(s.total_tokens), 0), COALESCE(SUM(s.total_cost), 0)::float8
	FROM usage_projects p
	LEFT JOIN usage_sessions s ON s.project_id = p.id`

func scanUsageProject(row pgx.Row) (*domain.UsageProject, error) {
	var p domain.UsageProject
	if err := row.Scan(&p.ID, &p.Name, &p.Path, &p.CreatedAt, &p.UpdatedAt, &p.SessionCount, &p.TotalTokens, &p.TotalCost); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *UsageRepository) ListProjects(ctx context.Context) ([]*domain.UsageProject, error) {
	rows, err := r.db.Query(ctx, usageProjectSelect+` GROUP BY p.id ORDER BY p.updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*domain.UsageProject{}
	for rows.Next() {
		p, err := scanUsageProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *UsageRepository) GetProject(ctx context.Context, id int64) (*domain.UsageProject, error) {
	p, err := scanUsageProject(r.db.QueryRow(ctx, usageProjectSelect+` WHERE p.id = $1 GROUP BY p.id`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return p, nil
}

const usageSessionColumns = `id, session_id, project_id, message_count, total_input_tokens, total_output_tokens,
	total_cache_creation_tokens, total_cache_read_tokens, total_tokens, total_cost::float8, created_at, updated_at`

func scanUsageSession(row pgx.Row) (*domain.UsageSession, error) {
	var s domain.UsageSession
	err := row.Scan(&s.ID, &s.SessionID, &s.ProjectID, &s.MessageCount, &s.InputTokens, &s.OutputTokens,
		&s.CacheCreationTokens, &s.CacheReadTokens, &s.TotalTokens, &s.TotalCost, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *UsageRepository) ListSessions(ctx context.Context, projectID int64) ([]*domain.UsageSession, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+usageSessionColumns+` FROM usage_sessions WHERE project_id = $1 ORDER BY updated_at DESC`,
		projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sessions := []*domain.UsageSession{}
	for rows.Next() {
		s, err := scanUsageSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, rows.Err()
}

func (r *UsageRepository) GetSession(ctx context.Context, id int64) (*domain.UsageSession, error) {
	s, err := scanUsageSession(r.db.QueryRow(ctx, `SELECT `+usageSessionColumns+` FROM usage_sessions WHERE id = $1`, id))
	if err != nil {
		return nil, mapError(err)
	}
	return s, nil
}

func (r *UsageRepository) SessionSnapshots(ctx context.Context, sessionID int64, limit int) ([]*domain.UsageSnapshot, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, project_id, session_id, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens,
		        total_tokens, cost_usd::float8, model, timestamp, request_id, message_id
		 FROM usage_snapshots WHERE session_id = $1
		 ORDER BY timestamp DESC
		 LIMIT $2`,
		sessionID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	snaps := []*domain.UsageSnapshot{}
	for rows.Next() {
		var s domain.UsageSnapshot
		if err := rows.Scan(&s.ID, &s.ProjectID, &s.SessionID, &s.InputTokens, &s.OutputTokens, &s.CacheCreationTokens,
			&s.CacheReadTokens, &s.TotalTokens, &s.CostUSD, &s.Model, &s.Timestamp, &s.RequestID, &s.MessageID); err != nil {
			return nil, err
		}
		snaps = append(snaps, &s)
	}
	return snaps, rows.Err()
}

// MessagesSince returns the billable messages recorded at or after since,
// the input of the window calculator.
func (r *UsageRepository) MessagesSince(ctx context.Context, since time.Time) ([]usage.Message, error) {
	rows, err := r.db.Query(ctx,
		`SELECT timestamp, model, input_tokens, output_tokens, cache_creation_tokens, cache_read_tokens
		 FROM usage_snapshots WHERE timestamp >= $1
		 ORDER BY timestamp`,
		since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	msgs := []usage.Message{}
	for rows.Next() {
		var m usage.Message
		if err := rows.Scan(&m.Timestamp, &m.Model, &m.InputTokens, &m.OutputTokens, &m.CacheCreationTokens, &m.CacheReadTokens); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// Cleanup drops snapshots older than cutoff, then sessions and projects left empty.
func (r *UsageRepository) Cleanup(ctx context.Context, cutoff time.Time) (*domain.UsageCleanupResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	var res domain.UsageCleanupResult
	tag, err := tx.Exec(ctx, `DELETE FROM usage_snapshots WHERE timestamp < $1`, cutoff)
	if err != nil {
		return nil, err
	}
	res.Snapshots = tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`DELETE FROM usage_sessions s
		 WHERE NOT EXISTS (SELECT 1 FROM usage_snapshots u WHERE u.session_id = s.id)`)
	if err != nil {
		return nil, err
	}
	res.Sessions = tag.RowsAffected()

	tag, err = tx.Exec(ctx,
		`DELETE FROM usage_projects p
		 WHERE NOT EXISTS (SELECT 1 FROM usage_sessions s WHERE s.project_id = p.id)`)
	if err != nil {
		return nil, err
	}
	res.Projects = tag.RowsAffected()

	if res.Snapshots > 0 {
		_, err = tx.Exec(ctx,
			`UPDATE usage_sessions s
			 SET message_count = agg.cnt, total_input_tokens = agg.input, total_output_tokens = agg.output,
			     total_cache_creation_tokens = agg.cache_creation, total_cache_read_tokens = agg.cache_read,
			     total_tokens = agg.total, total_cost = agg.cost
			 FROM (
			     SELECT session_id, COUNT(*) AS cnt, SUM(input_tokens) AS input, SUM(output_tokens) AS output,
			            SUM(cache_creation_tokens) AS cache_creation, SUM(cache_read_tokens) AS cache_read,
			            SUM(total_tokens) AS total, SUM(cost_usd) AS cost
			     FROM usage_snapshots GROUP BY session_id
			 ) agg
			 WHERE agg.session_id = s.id`)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &res, nil
}
