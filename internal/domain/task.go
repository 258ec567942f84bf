package domain

import "time"

const (
	TaskTodo       = "todo"
	TaskInProgress = "in_progress"
	TaskCompleted  = "completed"

	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

func ValidTaskStatus(s string) bool {
	return s == TaskTodo || s == TaskInProgress || s == TaskCompleted
}

func ValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

type Task struct {
	ID            int64      `db:"id" json:"id"`
	UserID        int64      `db:"user_id" json:"-"`
	ProjectID     *int64     `db:"project_id" json:"project_id"`
	ProjectName   string     `db:"project_name" json:"project,omitempty"`
	Title         string     `db:"title" json:"title"`
	Description   string     `db:"description" json:"description"`
	Status        string     `db:"status" json:"status"`
	Priority      string     `db:"priority" json:"priority"`
	DueDate       *time.Time `db:"due_date" json:"due_date"`
	EstimatedTime *int       `db:"estimated_time" json:"estimated_time"`
	Completed     bool       `db:"completed" json:"completed"`
	CompletedAt   *time.Time `db:"completed_at" json:"completed_at"`
	CategoryIDs   []int64    `json:"category_ids"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// SetStatus keeps Completed and CompletedAt consistent with Status.
func (t *Task) SetStatus(status string, now time.Time) {
	t.Status = status
	if status == TaskCompleted {
		if !t.Completed || t.CompletedAt == nil {
			ts := now
			t.CompletedAt = &ts
		}
		t.Completed = true
		return
	}
	t.Completed = false
	t.CompletedAt = nil
}

type TaskFilter struct {
	Status    string
	Priority  string
	ProjectID *int64
}

type Project struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"-"`
	Name      string    `db:"name" json:"name"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

type Category struct {
	ID   int64  `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
	Slug string `db:"slug" json:"slug"`
}

// TaskChanges is the optional field set applied by a bulk update.
type TaskChanges struct {
	Status      *string  `json:"status"`
	Priority    *string  `json:"priority"`
	Project     *string  `json:"project"`
	CategoryIDs *[]int64 `json:"category"`
}

func (c TaskChanges) Empty() bool {
	return c.Status == nil && c.Priority == nil && c.Project == nil && c.CategoryIDs == nil
}

type FailedUpdate struct {
	ID    int64  `json:"id"`
	Error string `json:"error"`
}

type BulkUpdateResult struct {
	UpdatedCount  int            `json:"updated_count"`
	FailedUpdates []FailedUpdate `json:"failed_updates"`
}

type BulkDeleteResult struct {
	DeletedCount  int     `json:"deleted_count"`
	FailedDeletes []int64 `json:"failed_deletes"`
}
