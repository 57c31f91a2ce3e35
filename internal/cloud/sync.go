package cloud

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"enviroplan/internal/domain"
	"enviroplan/internal/metrics"
	"enviroplan/internal/repo"
)

// Remote is the subset of the client the syncer needs; tests provide
// stubs.
type Remote interface {
	UpsertRaw(ctx context.Context, table, id string, payload []byte) error
	Fetch(ctx context.Context, table string) ([]json.RawMessage, error)
}

// Syncer drains the local outbox to the remote service and pulls
// remote rows back into the local store. Delivery is at-least-once:
// a record stays queued until a push succeeds, and replays are
// harmless because pushes are whole-row upserts.
type Syncer struct {
	DB       *sql.DB
	Repo     repo.Repo
	Remote   Remote
	Logger   *zap.Logger
	Interval time.Duration
	Batch    int
}

func NewSyncer(db *sql.DB, remote Remote, logger *zap.Logger) *Syncer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Syncer{
		DB:       db,
		Repo:     repo.Repo{DB: db},
		Remote:   remote,
		Logger:   logger,
		Interval: 30 * time.Second,
		Batch:    50,
	}
}

// Run pushes pending outbox entries on a fixed interval until the
// context is cancelled. Failed entries stay queued with an attempt
// count; the next tick retries them.
func (s *Syncer) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n, err := s.PushPending(ctx); err != nil {
				s.Logger.Warn("outbox push failed", zap.Error(err))
			} else if n > 0 {
				s.Logger.Info("outbox drained", zap.Int("pushed", n))
			}
		}
	}
}

// PushPending pushes up to Batch queued records and returns how many
// were delivered.
func (s *Syncer) PushPending(ctx context.Context) (int, error) {
	entries, err := s.Repo.PendingOutbox(ctx, s.Batch)
	if err != nil {
		return 0, err
	}
	pushed := 0
	for _, entry := range entries {
		if err := s.Remote.UpsertRaw(ctx, entry.Table, entry.RecordID, []byte(entry.Payload)); err != nil {
			metrics.SyncAttempts.WithLabelValues("error").Inc()
			s.Logger.Warn("push record failed",
				zap.String("table", entry.Table),
				zap.String("record", entry.RecordID),
				zap.Int("attempts", entry.Attempts+1),
				zap.Error(err))
			if rerr := s.Repo.RecordOutboxFailure(ctx, entry.ID, err.Error()); rerr != nil {
				return pushed, rerr
			}
			continue
		}
		if err := s.Repo.DeleteOutbox(ctx, entry.ID); err != nil {
			return pushed, err
		}
		metrics.SyncAttempts.WithLabelValues("ok").Inc()
		pushed++
	}
	return pushed, nil
}

// PullAll replaces local activity rows with the remote copies. The
// remote wins: any local row with the same id is overwritten.
func (s *Syncer) PullAll(ctx context.Context) (int, error) {
	rows, err := s.Remote.Fetch(ctx, "activities")
	if err != nil {
		metrics.SyncAttempts.WithLabelValues("error").Inc()
		return 0, err
	}
	n := 0
	for _, raw := range rows {
		var a domain.Activity
		if err := json.Unmarshal(raw, &a); err != nil {
			s.Logger.Warn("skipping malformed remote activity", zap.Error(err))
			continue
		}
		if a.ID == "" {
			continue
		}
		if err := s.Repo.UpsertActivity(ctx, a); err != nil {
			return n, err
		}
		n++
	}
	metrics.SyncAttempts.WithLabelValues("ok").Inc()
	return n, nil
}
