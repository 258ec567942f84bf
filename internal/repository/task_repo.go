package repository

import (
	"context"
	"fmt"

	"nxfs_api/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type TaskRepository struct {
	db *pgxpool.Pool
}

func NewTaskRepository(db *pgxpool.Pool) *TaskRepository {
	return &TaskRepository{db: db}
}

const taskSelect = `
	SELECT t.id, t.user_id, t.project_id, COALESCE(p.name, ''), t.title, t.description,
	       t.status, t.priority, t.due_date, t.estimated_time, t.completed, t.completed_at,
	       COALESCE((SELECT array_agg(tc.category_id ORDER BY tc.category_id)
	                 FROM task_categories tc WHERE tc.task_id = t.id), '{}'::bigint[]),
	       t.created_at, t.updated_at
	FROM tasks t
	LEFT JOIN projects p ON p.id = t.project_id`

func scanTask(row pgx.Row) (*domain.Task, error) {
	var t domain.Task
	err := row.Scan(
		&t.ID, &t.UserID, &t.ProjectID, &t.ProjectName, &t.Title, &t.Description,
		&t.Status, &t.Priority, &t.DueDate, &t.EstimatedTime, &t.Completed, &t.CompletedAt,
		&t.CategoryIDs, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *TaskRepository) List(ctx context.Context, userID int64, f domain.TaskFilter) ([]*domain.Task, error) {
	rows, err := r.db.Query(ctx, taskSelect+`
		WHERE t.user_id = $1
		  AND ($2 = '' OR t.status = $2)
		  AND ($3 = '' OR t.priority = $3)
		  AND ($4::bigint IS NULL OR t.project_id = $4)
		ORDER BY t.created_at DESC
		LIMIT 500`,
		userID, f.Status, f.Priority, f.ProjectID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	tasks := []*domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

// Get returns the task only if it belongs to userID.
func (r *TaskRepository) Get(ctx context.Context, userID, id int64) (*domain.Task, error) {
	t, err := scanTask(r.db.QueryRow(ctx, taskSelect+` WHERE t.id = $1 AND t.user_id = $2`, id, userID))
	if err != nil {
		return nil, mapError(err)
	}
	return t, nil
}

func (r *TaskRepository) Create(ctx context.Context, t *domain.Task) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO tasks (user_id, project_id, title, description, status, priority,
		                    due_date, estimated_time, completed, completed_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		 RETURNING id, created_at, updated_at`,
		t.UserID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		t.DueDate, t.EstimatedTime, t.Completed, t.CompletedAt,
	).Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	if err := setTaskCategories(ctx, tx, t.ID, t.CategoryIDs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Update writes every mutable column and, when categories is non-nil, replaces the category set.
func (r *TaskRepository) Update(ctx context.Context, t *domain.Task, categories []int64) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`UPDATE tasks
		 SET project_id = $3, title = $4, description = $5, status = $6, priority = $7,
		     due_date = $8, estimated_time = $9, completed = $10, completed_at = $11,
		     updated_at = NOW()
		 WHERE id = $1 AND user_id = $2
		 RETURNING updated_at`,
		t.ID, t.UserID, t.ProjectID, t.Title, t.Description, t.Status, t.Priority,
		t.DueDate, t.EstimatedTime, t.Completed, t.CompletedAt,
	).Scan(&t.UpdatedAt)
	if err != nil {
		return mapError(err)
	}

	if categories != nil {
		if err := setTaskCategories(ctx, tx, t.ID, categories); err != nil {
			return err
		}
		t.CategoryIDs = categories
	}
	return tx.Commit(ctx)
}

func setTaskCategories(ctx context.Context, tx pgx.Tx, taskID int64, ids []int64) error {
	if _, err := tx.Exec(ctx, `DELETE FROM task_categories WHERE task_id = $1`, taskID); err != nil {
		return fmt.Errorf("clear task categories: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}
	_, err := tx.Exec(ctx,
		`INSERT INTO task_categories (task_id, category_id)
		 SELECT $1, UNNEST($2::bigint[])
		 ON CONFLICT DO NOTHING`,
		taskID, ids,
	)
	return mapError(err)
}

func (r *TaskRepository) Delete(ctx context.Context, userID, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM tasks WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteMany removes the user's tasks among ids and returns the ids actually deleted.
func (r *TaskRepository) DeleteMany(ctx context.Context, userID int64, ids []int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`DELETE FROM tasks WHERE user_id = $1 AND id = ANY($2::bigint[]) RETURNING id`,
		userID, ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deleted := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		deleted = append(deleted, id)
	}
	return deleted, rows.Err()
}

func (r *TaskRepository) ProjectByName(ctx context.Context, userID int64, name string) (*domain.Project, error) {
	var p domain.Project
	err := r.db.QueryRow(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 AND name = $2`,
		userID, name,
	).Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	return &p, nil
}

func (r *TaskRepository) ListProjects(ctx context.Context, userID int64) ([]*domain.Project, error) {
	rows, err := r.db.Query(ctx,
		`SELECT id, user_id, name, created_at FROM projects WHERE user_id = $1 ORDER BY name`,
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	projects := []*domain.Project{}
	for rows.Next() {
		var p domain.Project
		if err := rows.Scan(&p.ID, &p.UserID, &p.Name, &p.CreatedAt); err != nil {
			return nil, err
		}
		projects = append(projects, &p)
	}
	return projects, rows.Err()
}

func (r *TaskRepository) CreateProject(ctx context.Context, p *domain.Project) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO projects (user_id, name) VALUES ($1, $2) RETURNING id, created_at`,
		p.UserID, p.Name,
	).Scan(&p.ID, &p.CreatedAt)
	return mapError(err)
}

func (r *TaskRepository) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	rows, err := r.db.Query(ctx, `SELECT id, name, slug FROM categories ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	categories := []*domain.Category{}
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug); err != nil {
			return nil, err
		}
		categories = append(categories, &c)
	}
	return categories, rows.Err()
}

func (r *TaskRepository) CreateCategory(ctx context.Context, c *domain.Category) error {
	err := r.db.QueryRow(ctx,
		`INSERT INTO categories (name, slug) VALUES ($1, $2) RETURNING id`,
		c.Name, c.Slug,
	).Scan(&c.ID)
	return mapError(err)
}

// MissingCategories returns the ids that do not exist.
func (r *TaskRepository) MissingCategories(ctx context.Context, ids []int64) ([]int64, error) {
	rows, err := r.db.Query(ctx,
		`SELECT u.id FROM UNNEST($1::bigint[]) AS u(id)
		 WHERE NOT EXISTS (SELECT 1 FROM categories c WHERE c.id = u.id)`,
		ids,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	missing := []int64{}
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		missing = append(missing, id)
	}
	return missing, rows.Err()
}
