package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"nxfs_api/internal/domain"

	"github.com/gosimple/slug"
)

type TaskStore interface {
	List(ctx context.Context, userID int64, f domain.TaskFilter) ([]*domain.Task, error)
	Get(ctx context.Context, userID, id int64) (*domain.Task, error)
	Create(ctx context.Context, t *domain.Task) error
	Update(ctx context.Context, t *domain.Task, categories []int64) error
	Delete(ctx context.Context, userID, id int64) error
	DeleteMany(ctx context.Context, userID int64, ids []int64) ([]int64, error)
	ProjectByName(ctx context.Context, userID int64, name string) (*domain.Project, error)
	ListProjects(ctx context.Context, userID int64) ([]*domain.Project, error)
	CreateProject(ctx context.Context, p *domain.Project) error
	ListCategories(ctx context.Context) ([]*domain.Category, error)
	CreateCategory(ctx context.Context, c *domain.Category) error
	MissingCategories(ctx context.Context, ids []int64) ([]int64, error)
}

const (
	errTaskNotOwned = "Task not found or not owned by user"
	maxBulkTaskIDs  = 500
)

type TaskService struct {
	store  TaskStore
	events Publisher
	now    func() time.Time
}

func NewTaskService(store TaskStore, events Publisher) *TaskService {
	return &TaskService{store: store, events: publisherOrNop(events), now: time.Now}
}

// TaskInput is the writable field set of a task. Nil fields are left unchanged on update.
type TaskInput struct {
	Title         *string    `json:"title"`
	Description   *string    `json:"description"`
	Status        *string    `json:"status"`
	Priority      *string    `json:"priority"`
	Project       *string    `json:"project"`
	DueDate       *time.Time `json:"due_date"`
	EstimatedTime *int       `json:"estimated_time"`
	CategoryIDs   *[]int64   `json:"category_ids"`
}

func (s *TaskService) List(ctx context.Context, userID int64, status, priority, project string) ([]*domain.Task, error) {
	f := domain.TaskFilter{Status: status, Priority: priority}
	if project != "" {
		p, err := s.store.ProjectByName(ctx, userID, project)
		if errors.Is(err, domain.ErrNotFound) {
			return []*domain.Task{}, nil
		}
		if err != nil {
			return nil, err
		}
		f.ProjectID = &p.ID
	}
	return s.store.List(ctx, userID, f)
}

func (s *TaskService) Get(ctx context.Context, userID, id int64) (*domain.Task, error) {
	return s.store.Get(ctx, userID, id)
}

func (s *TaskService) Create(ctx context.Context, userID int64, in TaskInput) (*domain.Task, error) {
	t := &domain.Task{UserID: userID, Status: domain.TaskTodo, Priority: domain.PriorityMedium, CategoryIDs: []int64{}}
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, domain.NewValidationError("title", "This field is required.")
	}
	if err := s.apply(ctx, t, in); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, t); err != nil {
		return nil, err
	}
	s.events.PublishToUser(userID, EventTaskCreated, t)
	return t, nil
}

func (s *TaskService) Update(ctx context.Context, userID, id int64, in TaskInput) (*domain.Task, error) {
	t, err := s.store.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, t, in); err != nil {
		return nil, err
	}
	var categories []int64
	if in.CategoryIDs != nil {
		categories = nonNilIDs(*in.CategoryIDs)
	}
	if err := s.store.Update(ctx, t, categories); err != nil {
		return nil, err
	}
	s.events.PublishToUser(userID, EventTaskUpdated, t)
	return t, nil
}

func (s *TaskService) apply(ctx context.Context, t *domain.Task, in TaskInput) error {
	verr := &domain.ValidationError{Message: "Invalid input data"}

	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			verr.Add("title", "This field may not be blank.")
		} else if len(title) > 200 {
			verr.Add("title", "Ensure this field has no more than 200 characters.")
		}
		t.Title = title
	}
	if in.Description != nil {
		t.Description = *in.Description
	}
	if in.Priority != nil {
		if !domain.ValidPriority(*in.Priority) {
			verr.Add("priority", fmt.Sprintf("%q is not a valid choice.", *in.Priority))
		}
		t.Priority = *in.Priority
	}
	if in.Status != nil {
		if !domain.ValidTaskStatus(*in.Status) {
			verr.Add("status", fmt.Sprintf("%q is not a valid choice.", *in.Status))
		} else {
			t.SetStatus(*in.Status, s.now())
		}
	}
	if in.DueDate != nil {
		due := *in.DueDate
		t.DueDate = &due
	}
	if in.EstimatedTime != nil {
		if *in.EstimatedTime < 0 {
			verr.Add("estimated_time", "Ensure this value is greater than or equal to 0.")
		}
		est := *in.EstimatedTime
		t.EstimatedTime = &est
	}
	if in.Project != nil {
		if *in.Project == "" {
			t.ProjectID = nil
			t.ProjectName = ""
		} else {
			p, err := s.store.ProjectByName(ctx, t.UserID, *in.Project)
			switch {
			case errors.Is(err, domain.ErrNotFound):
				verr.Add("project", "Project not found.")
			case err != nil:
				return err
			default:
				t.ProjectID = &p.ID
				t.ProjectName = p.Name
			}
		}
	}
	if in.CategoryIDs != nil && len(*in.CategoryIDs) > 0 {
		missing, err := s.store.MissingCategories(ctx, *in.CategoryIDs)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			verr.Add("category_ids", fmt.Sprintf("Invalid pk %v - object does not exist.", missing))
		}
		if t.ID == 0 {
			t.CategoryIDs = *in.CategoryIDs
		}
	}
	return verr.OrNil()
}

func (s *TaskService) Delete(ctx context.Context, userID, id int64) error {
	if err := s.store.Delete(ctx, userID, id); err != nil {
		return err
	}
	s.events.PublishToUser(userID, EventTaskDeleted, map[string]int64{"id": id})
	return nil
}

// BulkUpdate applies changes to each owned task independently; ids that
// cannot be updated are reported in FailedUpdates.
func (s *TaskService) BulkUpdate(ctx context.Context, userID int64, ids []int64, changes domain.TaskChanges) (*domain.BulkUpdateResult, error) {
	if err := validateBulkIDs("task_ids", ids); err != nil {
		return nil, err
	}
	if changes.Empty() {
		return nil, domain.NewValidationError("updates", "This field is required.")
	}

	verr := &domain.ValidationError{Message: "Invalid input data"}
	if changes.Status != nil && !domain.ValidTaskStatus(*changes.Status) {
		verr.Add("updates.status", fmt.Sprintf("%q is not a valid choice.", *changes.Status))
	}
	if changes.Priority != nil && !domain.ValidPriority(*changes.Priority) {
		verr.Add("updates.priority", fmt.Sprintf("%q is not a valid choice.", *changes.Priority))
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// resolve shared lookups once; a failure here is reported per task
	var project *domain.Project
	var sharedErr string
	if changes.Project != nil && *changes.Project != "" {
		p, err := s.store.ProjectByName(ctx, userID, *changes.Project)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			sharedErr = fmt.Sprintf("Project '%s' not found", *changes.Project)
		case err != nil:
			return nil, err
		default:
			project = p
		}
	}
	var categories []int64
	if changes.CategoryIDs != nil {
		categories = nonNilIDs(*changes.CategoryIDs)
		if len(categories) > 0 && sharedErr == "" {
			missing, err := s.store.MissingCategories(ctx, categories)
			if err != nil {
				return nil, err
			}
			if len(missing) > 0 {
				sharedErr = fmt.Sprintf("Categories not found: %v", missing)
			}
		}
	}

	res := &domain.BulkUpdateResult{FailedUpdates: []domain.FailedUpdate{}}
	now := s.now()
	for _, id := range dedupeIDs(ids) {
		if sharedErr != "" {
			res.FailedUpdates = append(res.FailedUpdates, domain.FailedUpdate{ID: id, Error: sharedErr})
			continue
		}

		t, err := s.store.Get(ctx, userID, id)
		if err != nil {
			msg := errTaskNotOwned
			if !errors.Is(err, domain.ErrNotFound) {
				msg = err.Error()
			}
			res.FailedUpdates = append(res.FailedUpdates, domain.FailedUpdate{ID: id, Error: msg})
			continue
		}

		if changes.Status != nil {
			t.SetStatus(*changes.Status, now)
		}
		if changes.Priority != nil {
			t.Priority = *changes.Priority
		}
		if changes.Project != nil {
			if project == nil {
				t.ProjectID, t.ProjectName = nil, ""
			} else {
				t.ProjectID, t.ProjectName = &project.ID, project.Name
			}
		}

		if err := s.store.Update(ctx, t, categories); err != nil {
			res.FailedUpdates = append(res.FailedUpdates, domain.FailedUpdate{ID: id, Error: err.Error()})
			continue
		}
		res.UpdatedCount++
	}

	if res.UpdatedCount > 0 {
		s.events.PublishToUser(userID, EventTasksBulkUpdated, res)
	}
	return res, nil
}

// BulkDelete removes the owned tasks among ids; the rest are reported as failed.
func (s *TaskService) BulkDelete(ctx context.Context, userID int64, ids []int64) (*domain.BulkDeleteResult, error) {
	if err := validateBulkIDs("task_ids", ids); err != nil {
		return nil, err
	}
	ids = dedupeIDs(ids)

	deleted, err := s.store.DeleteMany(ctx, userID, ids)
	if err != nil {
		return nil, err
	}

	res := &domain.BulkDeleteResult{DeletedCount: len(deleted), FailedDeletes: missingIDs(ids, deleted)}
	if res.DeletedCount > 0 {
		s.events.PublishToUser(userID, EventTasksBulkDeleted, map[string][]int64{"ids": deleted})
	}
	return res, nil
}

func (s *TaskService) ListProjects(ctx context.Context, userID int64) ([]*domain.Project, error) {
	return s.store.ListProjects(ctx, userID)
}

func (s *TaskService) CreateProject(ctx context.Context, userID int64, name string) (*domain.Project, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "This field may not be blank.")
	}
	p := &domain.Project{UserID: userID, Name: name}
	if err := s.store.CreateProject(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *TaskService) ListCategories(ctx context.Context) ([]*domain.Category, error) {
	return s.store.ListCategories(ctx)
}

func (s *TaskService) CreateCategory(ctx context.Context, name string) (*domain.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("name", "This field may not be blank.")
	}
	c := &domain.Category{Name: name, Slug: slug.Make(name)}
	if err := s.store.CreateCategory(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

func validateBulkIDs(field string, ids []int64) error {
	if len(ids) == 0 {
		return domain.NewValidationError(field, "This list may not be empty.")
	}
	if len(ids) > maxBulkTaskIDs {
		return domain.NewValidationError(field, fmt.Sprintf("Ensure this field has no more than %d elements.", maxBulkTaskIDs))
	}
	return nil
}

// dedupeIDs keeps the first occurrence of each id, preserving order.
func dedupeIDs(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// missingIDs returns the ids of want absent from got, in want order.
func missingIDs(want, got []int64) []int64 {
	have := make(map[int64]struct{}, len(got))
	for _, id := range got {
		have[id] = struct{}{}
	}
	missing := []int64{}
	for _, id := range want {
		if _, ok := have[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

func nonNilIDs(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
