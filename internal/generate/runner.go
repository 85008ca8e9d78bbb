package generate

import (
	"context"
	"sync"
	"time"

	"beacon/internal/content"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type itemStore interface {
	GetContentItem(ctx context.Context, id string) (*models.ContentItem, error)
	UpdateContentItem(ctx context.Context, it *models.ContentItem) error
	CreateMedia(ctx context.Context, m *models.Media) error
}

// Notifier is told when a draft is ready for review.
type Notifier interface {
	ApprovalNeeded(ctx context.Context, brand *models.Brand, item *models.ContentItem)
}

// Runner executes generations asynchronously. Dispatch returns immediately;
// completion and failure are written back to the item, and callers poll the
// item's generation status.
type Runner struct {
	generator Generator
	store     itemStore
	notifier  Notifier
	logger    logging.Logger

	timeout time.Duration
	now     func() time.Time
	wg      sync.WaitGroup
}

func NewRunner(generator Generator, store itemStore, notifier Notifier, logger logging.Logger) *Runner {
	return &Runner{
		generator: generator,
		store:     store,
		notifier:  notifier,
		logger:    logger,
		timeout:   2 * time.Minute,
		now:       time.Now,
	}
}

// Dispatch starts a generation for an item already persisted in the
// generating state. The passed request context is not reused; the work gets
// its own deadline so an aborted HTTP request does not kill the draft.
func (r *Runner) Dispatch(item *models.ContentItem, req Request) {
	itemID := item.ID
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
		defer cancel()
		r.run(ctx, itemID, req)
	}()
}

// Wait blocks until all dispatched generations finish. Used on shutdown and
// in tests.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// RunSync executes a generation inline and returns when the item has been
// updated. Regeneration uses this so the caller gets the fresh draft back.
func (r *Runner) RunSync(ctx context.Context, itemID string, req Request) {
	r.run(ctx, itemID, req)
}

func (r *Runner) run(ctx context.Context, itemID string, req Request) {
	log := r.logger.WithFields(logging.Fields{
		"content_id": itemID,
		"brand_id":   req.Brand.ID,
		"platform":   req.Platform,
	})

	result, genErr := r.generator.Generate(ctx, req)

	item, err := r.store.GetContentItem(ctx, itemID)
	if err != nil {
		log.WithError(err).Error("Failed to load content item after generation")
		return
	}

	if genErr != nil {
		log.WithError(genErr).Error("Draft generation failed")
		if err := content.FailGeneration(item, genErr.Error(), r.now()); err != nil {
			log.WithError(err).Error("Failed to record generation failure")
			return
		}
		if err := r.store.UpdateContentItem(ctx, item); err != nil {
			log.WithError(err).Error("Failed to persist generation failure")
		}
		return
	}

	body := models.ContentBody{
		Text:      result.Text,
		Hashtags:  result.Hashtags,
		MediaRefs: item.Body.MediaRefs,
	}

	// A generated image becomes a registered media record and is attached
	// when the item has no media of its own.
	if result.ImageURL != "" {
		media := &models.Media{
			BrandID:     req.Brand.ID,
			URL:         result.ImageURL,
			Description: result.ImagePrompt,
			UploadedBy:  "generator",
		}
		if err := r.store.CreateMedia(ctx, media); err != nil {
			log.WithError(err).Warn("Failed to register generated image")
			result.ImageError = "failed to register generated image: " + err.Error()
		} else if len(body.MediaRefs) == 0 {
			body.MediaRefs = []string{result.ImageURL}
		}
	}

	if err := content.CompleteGeneration(item, body, result.Reasoning, result.ImagePrompt, result.ImageError, r.now()); err != nil {
		log.WithError(err).Error("Failed to record generation completion")
		return
	}
	if err := r.store.UpdateContentItem(ctx, item); err != nil {
		log.WithError(err).Error("Failed to persist generated draft")
		return
	}

	log.WithField("version", item.Version).Info("Draft generated")
	if r.notifier != nil {
		r.notifier.ApprovalNeeded(ctx, req.Brand, item)
	}
}
