package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"beacon/internal/content"
	"beacon/internal/publish"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type postingStore interface {
	DueForPosting(ctx context.Context, now time.Time) ([]*models.ContentItem, error)
	UpdateContentItem(ctx context.Context, it *models.ContentItem) error
	CountPostedSince(ctx context.Context, brandID string, since time.Time) (int, error)
}

type postingGate interface {
	AllowAutoPost(ctx context.Context) (bool, models.SystemMode, error)
	Current(ctx context.Context) (*models.ControlState, error)
}

type publisher interface {
	Publish(ctx context.Context, item *models.ContentItem) publish.Result
}

// PostingScheduler drains the queue of approved items whose scheduled time
// has passed, oldest first. A publish failure leaves the item approved so
// the next tick retries it.
type PostingScheduler struct {
	store     postingStore
	gate      postingGate
	publisher publisher
	auditor   auditor
	logger    logging.Logger

	interval time.Duration
	now      func() time.Time

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}
}

func NewPostingScheduler(store postingStore, gate postingGate, pub publisher, auditor auditor, logger logging.Logger) *PostingScheduler {
	return &PostingScheduler{
		store:     store,
		gate:      gate,
		publisher: pub,
		auditor:   auditor,
		logger:    logger,
		interval:  tickInterval,
		now:       time.Now,
	}
}

// Start launches the tick loop. Idempotent.
func (s *PostingScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.running = true
	loopCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.loop(loopCtx, s.done)
	s.logger.Info("Posting scheduler started")
}

// Stop halts the tick loop. Idempotent.
func (s *PostingScheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	s.cancel()
	done := s.done
	s.mu.Unlock()
	<-done
	s.logger.Info("Posting scheduler stopped")
}

func (s *PostingScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WithError(err).Error("Posting tick failed")
			}
		}
	}
}

// RunOnce publishes every due item sequentially. One failed item does not
// stop the rest of the queue.
func (s *PostingScheduler) RunOnce(ctx context.Context) error {
	ok, mode, err := s.gate.AllowAutoPost(ctx)
	if err != nil {
		return fmt.Errorf("check gate: %w", err)
	}
	if !ok {
		s.logger.WithField("mode", mode).Debug("Posting tick skipped by system mode")
		return nil
	}

	state, err := s.gate.Current(ctx)
	if err != nil {
		return fmt.Errorf("load control state: %w", err)
	}
	maxDaily := state.Settings.MaxDailyPosts

	now := s.now()
	items, err := s.store.DueForPosting(ctx, now)
	if err != nil {
		return fmt.Errorf("load due items: %w", err)
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	postedToday := map[string]int{}

	for _, item := range items {
		if maxDaily > 0 {
			count, ok := postedToday[item.BrandID]
			if !ok {
				count, err = s.store.CountPostedSince(ctx, item.BrandID, midnight)
				if err != nil {
					s.logger.WithError(err).WithField("brand_id", item.BrandID).Error("Failed to count posts, skipping brand this tick")
					postedToday[item.BrandID] = maxDaily
					continue
				}
				postedToday[item.BrandID] = count
			}
			if count >= maxDaily {
				s.logger.WithFields(logging.Fields{
					"brand_id":   item.BrandID,
					"content_id": item.ID,
					"max_daily":  maxDaily,
				}).Info("Daily post cap reached, deferring item")
				continue
			}
		}

		s.postOne(ctx, item)
		if item.Status == models.StatusPosted {
			postedToday[item.BrandID]++
		}
	}
	return nil
}

func (s *PostingScheduler) postOne(ctx context.Context, item *models.ContentItem) {
	log := s.logger.WithFields(logging.Fields{
		"content_id": item.ID,
		"platform":   item.Platform,
	})

	result := s.publisher.Publish(ctx, item)
	if !result.Success {
		log.WithField("error", result.Error).Error("Scheduled publish failed, item stays approved")
		if s.auditor != nil {
			s.auditor.Record(ctx, "scheduled_post_failed", "scheduler", "content_item", item.ID, models.JSONB{
				"error": result.Error,
			})
		}
		return
	}

	if err := content.MarkPosted(item, result.PostURL, s.now()); err != nil {
		log.WithError(err).Error("Failed to mark item posted")
		return
	}
	if err := s.store.UpdateContentItem(ctx, item); err != nil {
		log.WithError(err).Error("Failed to persist posted item")
		return
	}
	if s.auditor != nil {
		s.auditor.Record(ctx, "scheduled_post_published", "scheduler", "content_item", item.ID, models.JSONB{
			"post_url": result.PostURL,
		})
	}
	log.WithField("post_url", result.PostURL).Info("Scheduled item published")
}
