package service

import (
	"context"
	"sort"
	"strconv"
	"sync"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"
	"nxfs_api/internal/usage"
)

type publishedEvent struct {
	userID int64
	staff  bool
	typ    string
	data   any
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *recordingPublisher) PublishToUser(userID int64, eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{userID: userID, typ: eventType, data: data})
}

func (p *recordingPublisher) PublishToStaff(eventType string, data any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{staff: true, typ: eventType, data: data})
}

func (p *recordingPublisher) Broadcast(eventType string, data any) {
	p.PublishToUser(0, eventType, data)
}

// staffOnly reports whether every event of type typ went to staff only.
func (p *recordingPublisher) staffOnly(typ string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	seen := false
	for _, e := range p.events {
		if e.typ != typ {
			continue
		}
		if !e.staff {
			return false
		}
		seen = true
	}
	return seen
}

func (p *recordingPublisher) sentTo(typ string) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	var ids []int64
	for _, e := range p.events {
		if e.typ == typ && !e.staff {
			ids = append(ids, e.userID)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.typ)
	}
	return out
}

// fakeTaskStore keeps tasks in memory keyed by id.
type fakeTaskStore struct {
	tasks      map[int64]*domain.Task
	projects   map[string]*domain.Project
	categories map[int64]*domain.Category
	nextID     int64
	failUpdate map[int64]error
}

func newFakeTaskStore() *fakeTaskStore {
	return &fakeTaskStore{
		tasks:      map[int64]*domain.Task{},
		projects:   map[string]*domain.Project{},
		categories: map[int64]*domain.Category{},
		failUpdate: map[int64]error{},
	}
}

func (f *fakeTaskStore) add(userID int64, title string) *domain.Task {
	f.nextID++
	t := &domain.Task{ID: f.nextID, UserID: userID, Title: title, Status: domain.TaskTodo, Priority: domain.PriorityMedium, CategoryIDs: []int64{}}
	f.tasks[t.ID] = t
	return t
}

func (f *fakeTaskStore) List(_ context.Context, userID int64, flt domain.TaskFilter) ([]*domain.Task, error) {
	out := []*domain.Task{}
	for _, t := range f.tasks {
		if t.UserID != userID {
			continue
		}
		if flt.Status != "" && t.Status != flt.Status {
			continue
		}
		if flt.ProjectID != nil && (t.ProjectID == nil || *t.ProjectID != *flt.ProjectID) {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeTaskStore) Get(_ context.Context, userID, id int64) (*domain.Task, error) {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return nil, domain.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTaskStore) Create(_ context.Context, t *domain.Task) error {
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) Update(_ context.Context, t *domain.Task, categories []int64) error {
	if err := f.failUpdate[t.ID]; err != nil {
		return err
	}
	cp := *t
	if categories != nil {
		cp.CategoryIDs = categories
	}
	f.tasks[t.ID] = &cp
	return nil
}

func (f *fakeTaskStore) Delete(_ context.Context, userID, id int64) error {
	t, ok := f.tasks[id]
	if !ok || t.UserID != userID {
		return domain.ErrNotFound
	}
	delete(f.tasks, id)
	return nil
}

func (f *fakeTaskStore) DeleteMany(_ context.Context, userID int64, ids []int64) ([]int64, error) {
	deleted := []int64{}
	for _, id := range ids {
		if t, ok := f.tasks[id]; ok && t.UserID == userID {
			delete(f.tasks, id)
			deleted = append(deleted, id)
		}
	}
	return deleted, nil
}

func (f *fakeTaskStore) ProjectByName(_ context.Context, userID int64, name string) (*domain.Project, error) {
	p, ok := f.projects[name]
	if !ok || p.UserID != userID {
		return nil, domain.ErrNotFound
	}
	return p, nil
}

func (f *fakeTaskStore) ListProjects(_ context.Context, userID int64) ([]*domain.Project, error) {
	out := []*domain.Project{}
	for _, p := range f.projects {
		if p.UserID == userID {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *fakeTaskStore) CreateProject(_ context.Context, p *domain.Project) error {
	if _, ok := f.projects[p.Name]; ok {
		return &domain.ConflictError{Field: "name", Message: "exists"}
	}
	f.nextID++
	p.ID = f.nextID
	f.projects[p.Name] = p
	return nil
}

func (f *fakeTaskStore) ListCategories(context.Context) ([]*domain.Category, error) {
	out := []*domain.Category{}
	for _, c := range f.categories {
		out = append(out, c)
	}
	return out, nil
}

func (f *fakeTaskStore) CreateCategory(_ context.Context, c *domain.Category) error {
	f.nextID++
	c.ID = f.nextID
	f.categories[c.ID] = c
	return nil
}

func (f *fakeTaskStore) MissingCategories(_ context.Context, ids []int64) ([]int64, error) {
	missing := []int64{}
	for _, id := range ids {
		if _, ok := f.categories[id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing, nil
}

type fakeBlogStore struct {
	posts  map[int64]*domain.BlogPost
	tags   map[string]*domain.Tag
	nextID int64
}

func newFakeBlogStore() *fakeBlogStore {
	return &fakeBlogStore{posts: map[int64]*domain.BlogPost{}, tags: map[string]*domain.Tag{}}
}

func (f *fakeBlogStore) CreatePost(_ context.Context, p *domain.BlogPost, _ []int64) error {
	f.nextID++
	p.ID = f.nextID
	cp := *p
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakeBlogStore) UpdatePost(_ context.Context, p *domain.BlogPost, _ []int64) error {
	cp := *p
	f.posts[p.ID] = &cp
	return nil
}

func (f *fakeBlogStore) GetPost(_ context.Context, id int64) (*domain.BlogPost, error) {
	p, ok := f.posts[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (f *fakeBlogStore) GetPublishedBySlug(_ context.Context, slug string, authorID int64) (*domain.BlogPost, error) {
	var best *domain.BlogPost
	for _, p := range f.posts {
		if p.Slug != slug || p.Status != domain.PostPublished || (authorID != 0 && p.AuthorID != authorID) {
			continue
		}
		if best == nil || p.PublishedAt.After(*best.PublishedAt) {
			best = p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (f *fakeBlogStore) ListPublished(context.Context, string) ([]*domain.BlogPost, error) {
	return nil, nil
}

func (f *fakeBlogStore) ListByAuthor(context.Context, int64) ([]*domain.BlogPost, error) {
	return nil, nil
}

func (f *fakeBlogStore) SlugTaken(_ context.Context, authorID int64, slug string, excludeID int64) (bool, error) {
	for _, p := range f.posts {
		if p.AuthorID == authorID && p.Slug == slug && p.ID != excludeID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBlogStore) ListTags(context.Context) ([]*domain.Tag, error) { return nil, nil }

func (f *fakeBlogStore) CreateTag(_ context.Context, t *domain.Tag) error {
	f.nextID++
	t.ID = f.nextID
	f.tags[t.Slug] = t
	return nil
}

func (f *fakeBlogStore) TagSlugTaken(_ context.Context, slug string) (bool, error) {
	_, ok := f.tags[slug]
	return ok, nil
}

// fakeJobStore serves both JobStore and JobGeoStore.
type fakeJobStore struct {
	mu        sync.Mutex
	jobs      map[int16]*domain.Job
	entries   []*domain.TimeEntry
	materials []*domain.JobMaterial
}

func newFakeJobStore(jobs ...*domain.Job) *fakeJobStore {
	f := &fakeJobStore{jobs: map[int16]*domain.Job{}}
	for _, j := range jobs {
		f.jobs[j.OrderNo] = j
	}
	return f
}

func (f *fakeJobStore) Create(_ context.Context, j *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.jobs[j.OrderNo]; ok {
		return &domain.ConflictError{Field: "order_no", Message: "exists"}
	}
	cp := *j
	f.jobs[j.OrderNo] = &cp
	return nil
}

func (f *fakeJobStore) Get(_ context.Context, orderNo int16) (*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.jobs[orderNo]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *j
	return &cp, nil
}

func (f *fakeJobStore) List(_ context.Context, includeCompleted bool) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Job{}
	for _, j := range f.jobs {
		if includeCompleted || !j.Completed {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) Update(_ context.Context, j *domain.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *j
	f.jobs[j.OrderNo] = &cp
	return nil
}

func (f *fakeJobStore) WithinBox(_ context.Context, box geo.Box, includeCompleted bool) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Job{}
	for _, j := range f.jobs {
		if !j.HasCoordinates() || (j.Completed && !includeCompleted) {
			continue
		}
		if box.Contains(*j.Latitude, *j.Longitude) {
			out = append(out, j)
		}
	}
	return out, nil
}

func (f *fakeJobStore) MarkGeocoded(_ context.Context, orderNo int16, res *geo.Result, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[orderNo]
	lat, lon, acc := res.Lat, res.Lon, res.Accuracy
	j.Latitude, j.Longitude, j.GeocodeAccuracy = &lat, &lon, &acc
	j.GeocodedAt, j.LastGeocodeAttempt = &at, &at
	j.GeocodeRetries = 0
	return nil
}

func (f *fakeJobStore) MarkGeocodeFailed(_ context.Context, orderNo int16, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	j := f.jobs[orderNo]
	acc := domain.AccuracyFailed
	j.GeocodeAccuracy, j.LastGeocodeAttempt = &acc, &at
	j.GeocodeRetries++
	return nil
}

func (f *fakeJobStore) GeocodeCandidates(_ context.Context, limit int) ([]*domain.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []*domain.Job{}
	for _, j := range f.jobs {
		if j.Address != "" && !j.HasCoordinates() {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(a, b int) bool { return out[a].OrderNo < out[b].OrderNo })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeJobStore) WithAddress(context.Context) ([]int16, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []int16{}
	for no, j := range f.jobs {
		if j.Address != "" {
			out = append(out, no)
		}
	}
	return out, nil
}

func (f *fakeJobStore) CreateTimeEntry(_ context.Context, e *domain.TimeEntry) error {
	e.ID = int64(len(f.entries) + 1)
	f.entries = append(f.entries, e)
	return nil
}

func (f *fakeJobStore) ListTimeEntries(_ context.Context, jobID int16) ([]*domain.TimeEntry, error) {
	out := []*domain.TimeEntry{}
	for _, e := range f.entries {
		if e.JobID == jobID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (f *fakeJobStore) AddMaterial(_ context.Context, jm *domain.JobMaterial) error {
	jm.ID = int64(len(f.materials) + 1)
	f.materials = append(f.materials, jm)
	return nil
}

func (f *fakeJobStore) ListMaterials(context.Context, int16) ([]*domain.JobMaterial, error) {
	return f.materials, nil
}

type fakeMaterialStore struct {
	materials map[int64]*domain.Material
}

func (f *fakeMaterialStore) List(context.Context, domain.MaterialFilter) ([]*domain.Material, error) {
	return nil, nil
}

func (f *fakeMaterialStore) Get(_ context.Context, id int64) (*domain.Material, error) {
	m, ok := f.materials[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMaterialStore) GetByElNr(_ context.Context, elNr string) (*domain.Material, error) {
	for _, m := range f.materials {
		if m.ElNr == elNr {
			return m, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeMaterialStore) Create(_ context.Context, m *domain.Material) error {
	m.ID = int64(len(f.materials) + 100)
	f.materials[m.ID] = m
	return nil
}

func (f *fakeMaterialStore) SetFavorite(_ context.Context, id int64, favorite bool) error {
	m, ok := f.materials[id]
	if !ok {
		return domain.ErrNotFound
	}
	m.Favorite = favorite
	return nil
}

func (f *fakeMaterialStore) SetFavoriteMany(_ context.Context, ids []int64, favorite bool) ([]int64, error) {
	updated := []int64{}
	for _, id := range ids {
		if m, ok := f.materials[id]; ok {
			m.Favorite = favorite
			updated = append(updated, id)
		}
	}
	return updated, nil
}

func (f *fakeMaterialStore) ListSuppliers(context.Context) ([]*domain.Supplier, error) {
	return nil, nil
}

func (f *fakeMaterialStore) CreateSupplier(_ context.Context, s *domain.Supplier) error {
	s.ID = 1
	return nil
}

func (f *fakeMaterialStore) ListElectricalCategories(context.Context) ([]*domain.ElectricalCategory, error) {
	return nil, nil
}

func (f *fakeMaterialStore) CreateElectricalCategory(_ context.Context, c *domain.ElectricalCategory) error {
	c.ID = 1
	return nil
}

type recordingQueue struct {
	queued []int16
}

func (q *recordingQueue) Enqueue(orderNo int16) bool {
	q.queued = append(q.queued, orderNo)
	return true
}

type stubGeocoder struct {
	res   *geo.Result
	err   error
	calls int
}

func (g *stubGeocoder) Geocode(context.Context, geo.Address) (*geo.Result, error) {
	g.calls++
	return g.res, g.err
}

// fakeUsageStore dedupes snapshots on (session, message id) like the table index.
type fakeUsageStore struct {
	projects   map[string]int64
	sessions   map[string]int64
	snapshots  []*domain.UsageSnapshot
	seen       map[string]bool
	recomputed map[int64]int
	messages   []usage.Message
	since      time.Time
	cutoff     time.Time
}

func newFakeUsageStore() *fakeUsageStore {
	return &fakeUsageStore{
		projects:   map[string]int64{},
		sessions:   map[string]int64{},
		seen:       map[string]bool{},
		recomputed: map[int64]int{},
	}
}

func (f *fakeUsageStore) UpsertProject(_ context.Context, name, _ string) (int64, error) {
	if id, ok := f.projects[name]; ok {
		return id, nil
	}
	id := int64(len(f.projects) + 1)
	f.projects[name] = id
	return id, nil
}

func (f *fakeUsageStore) UpsertSession(_ context.Context, projectID int64, sessionID string) (int64, error) {
	if id, ok := f.sessions[sessionID]; ok {
		return id, nil
	}
	id := int64(len(f.sessions) + 1)
	f.sessions[sessionID] = id
	return id, nil
}

func (f *fakeUsageStore) InsertSnapshot(_ context.Context, s *domain.UsageSnapshot) (bool, error) {
	if s.MessageID != "" {
		key := strconv.FormatInt(s.SessionID, 10) + "/" + s.MessageID
		if f.seen[key] {
			return false, nil
		}
		f.seen[key] = true
	}
	f.snapshots = append(f.snapshots, s)
	return true, nil
}

func (f *fakeUsageStore) RecomputeSession(_ context.Context, sessionID int64) error {
	f.recomputed[sessionID]++
	return nil
}

func (f *fakeUsageStore) Stats(context.Context) (*domain.UsageStats, error) {
	return &domain.UsageStats{}, nil
}

func (f *fakeUsageStore) ListProjects(context.Context) ([]*domain.UsageProject, error) {
	return nil, nil
}

func (f *fakeUsageStore) GetProject(_ context.Context, id int64) (*domain.UsageProject, error) {
	for name, pid := range f.projects {
		if pid == id {
			return &domain.UsageProject{ID: id, Name: name}, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (f *fakeUsageStore) ListSessions(context.Context, int64) ([]*domain.UsageSession, error) {
	return []*domain.UsageSession{}, nil
}

func (f *fakeUsageStore) GetSession(_ context.Context, id int64) (*domain.UsageSession, error) {
	return &domain.UsageSession{ID: id}, nil
}

func (f *fakeUsageStore) SessionSnapshots(context.Context, int64, int) ([]*domain.UsageSnapshot, error) {
	return f.snapshots, nil
}

func (f *fakeUsageStore) MessagesSince(_ context.Context, since time.Time) ([]usage.Message, error) {
	f.since = since
	return f.messages, nil
}

func (f *fakeUsageStore) Cleanup(_ context.Context, cutoff time.Time) (*domain.UsageCleanupResult, error) {
	f.cutoff = cutoff
	return &domain.UsageCleanupResult{}, nil
}

type fakeDockerStore struct {
	host       *domain.DockerHost
	containers map[string]*domain.DockerContainer
	stats      []*domain.SystemStats
	staleCut   time.Time
}

func newFakeDockerStore() *fakeDockerStore {
	return &fakeDockerStore{containers: map[string]*domain.DockerContainer{}}
}

func (f *fakeDockerStore) UpsertHost(_ context.Context, name, hostname string, now time.Time) (*domain.DockerHost, error) {
	if f.host == nil {
		f.host = &domain.DockerHost{ID: 1}
	}
	f.host.Name, f.host.Hostname, f.host.IsActive, f.host.LastSeen = name, hostname, true, &now
	return f.host, nil
}

func (f *fakeDockerStore) ListHosts(context.Context) ([]*domain.DockerHost, error) {
	return []*domain.DockerHost{f.host}, nil
}

func (f *fakeDockerStore) GetHost(_ context.Context, id int64) (*domain.DockerHost, error) {
	if f.host == nil || f.host.ID != id {
		return nil, domain.ErrNotFound
	}
	return f.host, nil
}

func (f *fakeDockerStore) DeactivateStale(_ context.Context, cutoff time.Time) (int64, error) {
	f.staleCut = cutoff
	return 0, nil
}

func (f *fakeDockerStore) UpsertContainer(_ context.Context, c *domain.DockerContainer) error {
	f.containers[c.ContainerID] = c
	return nil
}

func (f *fakeDockerStore) MarkRemoved(_ context.Context, _ int64, keep []string) (int64, error) {
	kept := map[string]bool{}
	for _, id := range keep {
		kept[id] = true
	}
	var n int64
	for id, c := range f.containers {
		if !kept[id] && c.Status != domain.ContainerRemoved {
			c.Status = domain.ContainerRemoved
			n++
		}
	}
	return n, nil
}

func (f *fakeDockerStore) ListContainers(_ context.Context, _ int64, status string) ([]*domain.DockerContainer, error) {
	out := []*domain.DockerContainer{}
	for _, c := range f.containers {
		if status == "" || c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeDockerStore) CountByStatus(context.Context, int64) (map[string]int, error) {
	counts := map[string]int{}
	for _, c := range f.containers {
		counts[c.Status]++
	}
	return counts, nil
}

func (f *fakeDockerStore) InsertStats(_ context.Context, s *domain.SystemStats) error {
	f.stats = append(f.stats, s)
	return nil
}

func (f *fakeDockerStore) LatestStats(context.Context, int64) (*domain.SystemStats, error) {
	if len(f.stats) == 0 {
		return nil, domain.ErrNotFound
	}
	return f.stats[len(f.stats)-1], nil
}
