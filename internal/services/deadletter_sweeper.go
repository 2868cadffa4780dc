package services

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"tastetrail/internal/config"
	"tastetrail/internal/domain/deadletter"
	"tastetrail/internal/repository"
)

// Archiver copies a dead letter to long-term storage and returns the key it
// was stored under.
type Archiver interface {
	Archive(ctx context.Context, eventType, eventID string, body []byte) (string, error)
}

// DeadLetterSweeper ages dead letters out of the database. Rows past
// retention are archived first and deleted only once an archive copy
// exists, so nothing is lost to the sweep.
type DeadLetterSweeper struct {
	repo     *repository.DeadLetterRepository
	archiver Archiver
	cfg      config.DeadLetterConfig
	log      *zap.Logger
}

func NewDeadLetterSweeper(repo *repository.DeadLetterRepository, archiver Archiver, cfg config.DeadLetterConfig, log *zap.Logger) *DeadLetterSweeper {
	if log == nil {
		log = zap.L()
	}
	return &DeadLetterSweeper{repo: repo, archiver: archiver, cfg: cfg, log: log}
}

// Run sweeps on an interval until ctx is done.
func (s *DeadLetterSweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.SweepOnce(ctx); err != nil {
				s.log.Error("dead letter sweep failed", zap.Error(err))
			}
		}
	}
}

// SweepOnce archives aged rows and purges rows already archived.
func (s *DeadLetterSweeper) SweepOnce(ctx context.Context) error {
	cutoff := time.Now().UTC().Add(-s.cfg.Retention)

	for {
		batch, err := s.repo.ListUnarchivedBefore(ctx, cutoff, 100)
		if err != nil {
			return err
		}
		if len(batch) == 0 {
			break
		}
		archived := 0
		for _, event := range batch {
			if err := s.archiveOne(ctx, event); err != nil {
				// Leave the row; the next sweep retries it.
				s.log.Warn("failed to archive dead letter",
					zap.String("event_id", event.EventID), zap.Error(err))
				continue
			}
			archived++
		}
		if archived == 0 || len(batch) < 100 {
			break
		}
	}

	deleted, err := s.repo.DeleteArchivedBefore(ctx, cutoff)
	if err != nil {
		return err
	}
	if deleted > 0 {
		s.log.Info("purged archived dead letters", zap.Int64("deleted", deleted))
	}
	return nil
}

func (s *DeadLetterSweeper) archiveOne(ctx context.Context, event deadletter.Event) error {
	body, err := json.Marshal(struct {
		EventID       string          `json:"event_id"`
		EventType     string          `json:"event_type"`
		Payload       json.RawMessage `json:"payload"`
		Reason        string          `json:"reason"`
		Source        string          `json:"source,omitempty"`
		RetryCount    int             `json:"retry_count"`
		DeliveryCount int             `json:"delivery_count"`
		CreatedAt     time.Time       `json:"created_at"`
	}{
		EventID:       event.EventID,
		EventType:     event.EventType,
		Payload:       event.Payload,
		Reason:        event.Reason,
		Source:        event.Source,
		RetryCount:    event.RetryCount,
		DeliveryCount: event.DeliveryCount,
		CreatedAt:     event.CreatedAt,
	})
	if err != nil {
		return err
	}

	key, err := s.archiver.Archive(ctx, event.EventType, event.EventID, body)
	if err != nil {
		return err
	}

	if err := s.repo.MarkArchived(ctx, event.ID, time.Now().UTC()); err != nil {
		return err
	}
	s.log.Debug("archived dead letter",
		zap.String("event_id", event.EventID), zap.String("key", key))
	return nil
}
