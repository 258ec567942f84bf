package service

import (
	"context"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/logger"
	"nxfs_api/internal/usage"
)

type UsageStore interface {
	UpsertProject(ctx context.Context, name, path string) (int64, error)
	UpsertSession(ctx context.Context, projectID int64, sessionID string) (int64, error)
	InsertSnapshot(ctx context.Context, s *domain.UsageSnapshot) (bool, error)
	RecomputeSession(ctx context.Context, sessionID int64) error
	Stats(ctx context.Context) (*domain.UsageStats, error)
	ListProjects(ctx context.Context) ([]*domain.UsageProject, error)
	GetProject(ctx context.Context, id int64) (*domain.UsageProject, error)
	ListSessions(ctx context.Context, projectID int64) ([]*domain.UsageSession, error)
	GetSession(ctx context.Context, id int64) (*domain.UsageSession, error)
	SessionSnapshots(ctx context.Context, sessionID int64, limit int) ([]*domain.UsageSnapshot, error)
	MessagesSince(ctx context.Context, since time.Time) ([]usage.Message, error)
	Cleanup(ctx context.Context, cutoff time.Time) (*domain.UsageCleanupResult, error)
}

const sessionSnapshotLimit = 200

type UsageService struct {
	store     UsageStore
	calc      *usage.Calculator
	retention time.Duration
	events    Publisher
	now       func() time.Time
}

func NewUsageService(store UsageStore, calc *usage.Calculator, retention time.Duration, events Publisher) *UsageService {
	if calc == nil {
		calc = usage.NewCalculator(usage.DefaultWindow, 0)
	}
	return &UsageService{store: store, calc: calc, retention: retention, events: publisherOrNop(events), now: time.Now}
}

// Ingest stores an agent sync. Messages already stored for a session are
// skipped, so replaying a payload changes nothing.
func (s *UsageService) Ingest(ctx context.Context, p usage.SyncPayload) (*domain.UsageSyncResult, error) {
	log := logger.WithContext(ctx)
	res := &domain.UsageSyncResult{Message: "Usage data synced successfully"}

	for _, proj := range p.Projects {
		projectID, err := s.store.UpsertProject(ctx, proj.Name, proj.Path)
		if err != nil {
			return nil, err
		}
		res.ProjectsUpdated++

		for _, sess := range proj.Sessions {
			sessionID, err := s.store.UpsertSession(ctx, projectID, sess.SessionID)
			if err != nil {
				return nil, err
			}
			res.SessionsUpdated++

			for _, raw := range sess.Messages {
				entry, ok, err := usage.ParseRecord(raw)
				if err != nil {
					log.Warn("skipping malformed usage record", "session_id", sess.SessionID, "error", err)
					continue
				}
				if !ok {
					continue
				}
				created, err := s.store.InsertSnapshot(ctx, &domain.UsageSnapshot{
					ProjectID:           projectID,
					SessionID:           sessionID,
					InputTokens:         entry.InputTokens,
					OutputTokens:        entry.OutputTokens,
					CacheCreationTokens: entry.CacheCreationTokens,
					CacheReadTokens:     entry.CacheReadTokens,
					TotalTokens:         entry.TotalTokens(),
					CostUSD:             s.calc.Pricing.Cost(entry.Message),
					Model:               entry.Model,
					Timestamp:           entry.Timestamp,
					RequestID:           entry.RequestID,
					MessageID:           entry.MessageID,
				})
				if err != nil {
					return nil, err
				}
				if created {
					res.SnapshotsCreated++
				}
			}

			if err := s.store.RecomputeSession(ctx, sessionID); err != nil {
				return nil, err
			}
		}
	}

	log.Info("usage sync stored",
		"projects", res.ProjectsUpdated, "sessions", res.SessionsUpdated, "snapshots", res.SnapshotsCreated)
	s.events.PublishToStaff(EventUsageSynced, res)
	return res, nil
}

// Window reports the rate-limit window covering now from two window lengths
// of history. Windows are chained from the first fetched message, so Start
// and ResetsAt can differ from a calculation over the full history.
func (s *UsageService) Window(ctx context.Context) (usage.Status, error) {
	now := s.now().UTC()
	msgs, err := s.store.MessagesSince(ctx, now.Add(-2*s.calc.Length))
	if err != nil {
		return usage.Status{}, err
	}
	return s.calc.Active(msgs, now), nil
}

// Windows lists every window found in the retained history.
func (s *UsageService) Windows(ctx context.Context, since time.Duration) ([]usage.Window, error) {
	msgs, err := s.store.MessagesSince(ctx, s.now().UTC().Add(-since))
	if err != nil {
		return nil, err
	}
	windows := s.calc.Windows(msgs)
	if windows == nil {
		windows = []usage.Window{}
	}
	return windows, nil
}

func (s *UsageService) Stats(ctx context.Context) (*domain.UsageStats, error) {
	return s.store.Stats(ctx)
}

func (s *UsageService) Projects(ctx context.Context) ([]*domain.UsageProject, error) {
	return s.store.ListProjects(ctx)
}

func (s *UsageService) Project(ctx context.Context, id int64) (*domain.UsageProject, error) {
	return s.store.GetProject(ctx, id)
}

func (s *UsageService) ProjectSessions(ctx context.Context, projectID int64) ([]*domain.UsageSession, error) {
	if _, err := s.store.GetProject(ctx, projectID); err != nil {
		return nil, err
	}
	return s.store.ListSessions(ctx, projectID)
}

// SessionDetail is a session with its most recent snapshots.
type SessionDetail struct {
	*domain.UsageSession
	Snapshots []*domain.UsageSnapshot `json:"snapshots"`
}

func (s *UsageService) Session(ctx context.Context, id int64) (*SessionDetail, error) {
	sess, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, err
	}
	snaps, err := s.store.SessionSnapshots(ctx, id, sessionSnapshotLimit)
	if err != nil {
		return nil, err
	}
	return &SessionDetail{UsageSession: sess, Snapshots: snaps}, nil
}

// Cleanup drops data older than the retention period.
func (s *UsageService) Cleanup(ctx context.Context) (*domain.UsageCleanupResult, error) {
	res, err := s.store.Cleanup(ctx, s.now().Add(-s.retention))
	if err != nil {
		return nil, err
	}
	if res.Snapshots > 0 {
		logger.Info("usage cleanup", "snapshots", res.Snapshots, "sessions", res.Sessions, "projects", res.Projects)
	}
	return res, nil
}
