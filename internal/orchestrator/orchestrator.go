// Package orchestrator is the façade every entry point goes through: HTTP
// handlers call it, and it sequences gate check, state transition, persist
// and audit for each operation.
package orchestrator

import (
	"context"
	"time"

	"beacon/internal/content"
	"beacon/internal/generate"
	"beacon/internal/publish"
	"beacon/internal/scheduler"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type contentStore interface {
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	CreateContentItem(ctx context.Context, it *models.ContentItem) error
	GetContentItem(ctx context.Context, id string) (*models.ContentItem, error)
	UpdateContentItem(ctx context.Context, it *models.ContentItem) error
	RecentCompletedTexts(ctx context.Context, brandID string, platform models.Platform, limit int) ([]string, error)
}

type modeGate interface {
	AllowGeneration(ctx context.Context) (bool, models.SystemMode, error)
	AllowApproval(ctx context.Context) (bool, models.SystemMode, error)
	AllowManualPost(ctx context.Context) (bool, models.SystemMode, error)
	AllowAutoPost(ctx context.Context) (bool, models.SystemMode, error)
	SetMode(ctx context.Context, mode models.SystemMode, by, reason string, settings *models.ControlSettings) (*models.ControlState, error)
	Current(ctx context.Context) (*models.ControlState, error)
}

type runner interface {
	Dispatch(item *models.ContentItem, req generate.Request)
	RunSync(ctx context.Context, itemID string, req generate.Request)
}

type contentPublisher interface {
	Publish(ctx context.Context, item *models.ContentItem) publish.Result
}

type upcomingSource interface {
	Upcoming(ctx context.Context, window time.Duration) ([]scheduler.UpcomingRun, error)
}

type auditor interface {
	Record(ctx context.Context, action, performedBy, entityType, entityID string, details models.JSONB)
}

const recentExampleLimit = 5

type Orchestrator struct {
	store     contentStore
	gate      modeGate
	runner    runner
	publisher contentPublisher
	upcoming  upcomingSource
	auditor   auditor
	logger    logging.Logger
	now       func() time.Time
}

func New(store contentStore, gate modeGate, r runner, pub contentPublisher, upcoming upcomingSource, auditor auditor, logger logging.Logger) *Orchestrator {
	return &Orchestrator{
		store:     store,
		gate:      gate,
		runner:    r,
		publisher: pub,
		upcoming:  upcoming,
		auditor:   auditor,
		logger:    logger,
		now:       time.Now,
	}
}

// RequestGeneration creates a pending item and kicks off an async draft.
// The caller polls the item's generation status for completion.
func (o *Orchestrator) RequestGeneration(ctx context.Context, brandID string, platform models.Platform, mediaRefs []string, prompt string, wantImage bool, by string) (*models.ContentItem, error) {
	ok, mode, err := o.gate.AllowGeneration(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &content.BlockedError{Op: "generate", Mode: string(mode)}
	}

	if err := content.ValidateNewItem(platform, mediaRefs, wantImage); err != nil {
		return nil, err
	}

	brand, err := o.store.GetBrand(ctx, brandID)
	if err != nil {
		return nil, err
	}

	previous, err := o.store.RecentCompletedTexts(ctx, brandID, platform, recentExampleLimit)
	if err != nil {
		return nil, err
	}

	item := &models.ContentItem{
		BrandID:          brandID,
		Platform:         platform,
		Status:           models.StatusPending,
		GenerationStatus: models.GenerationRunning,
		Body:             models.ContentBody{MediaRefs: mediaRefs},
		Prompt:           prompt,
	}
	if err := o.store.CreateContentItem(ctx, item); err != nil {
		return nil, err
	}

	o.auditor.Record(ctx, "generation_requested", by, "content_item", item.ID, models.JSONB{
		"brand_id": brandID,
		"platform": string(platform),
	})

	o.runner.Dispatch(item, generate.Request{
		Brand:         brand,
		Platform:      platform,
		Prompt:        prompt,
		PreviousPosts: previous,
		MediaRefs:     mediaRefs,
		WantImage:     wantImage,
	})
	return item, nil
}

// Regenerate snapshots the current draft and writes a fresh version
// synchronously, guided by the reviewer's feedback.
func (o *Orchestrator) Regenerate(ctx context.Context, itemID, feedback string, newPlatform models.Platform, by string) (*models.ContentItem, error) {
	ok, mode, err := o.gate.AllowGeneration(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &content.BlockedError{Op: "regenerate", Mode: string(mode)}
	}

	item, err := o.store.GetContentItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := content.BeginRegeneration(item, newPlatform, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, err
	}

	brand, err := o.store.GetBrand(ctx, item.BrandID)
	if err != nil {
		return nil, err
	}
	previous, err := o.store.RecentCompletedTexts(ctx, item.BrandID, item.Platform, recentExampleLimit)
	if err != nil {
		return nil, err
	}

	o.auditor.Record(ctx, "content_regenerated", by, "content_item", item.ID, models.JSONB{
		"version":  item.Version,
		"feedback": feedback,
	})

	o.runner.RunSync(ctx, item.ID, generate.Request{
		Brand:         brand,
		Platform:      item.Platform,
		Prompt:        item.Prompt,
		Feedback:      feedback,
		PreviousPosts: previous,
		MediaRefs:     item.Body.MediaRefs,
	})
	return o.store.GetContentItem(ctx, itemID)
}

// ApproveOutcome reports what happened after an approval, including the
// immediate publish attempt when no schedule time was given.
type ApproveOutcome struct {
	Item         *models.ContentItem `json:"item"`
	Posted       bool                `json:"posted"`
	PostingError string              `json:"posting_error,omitempty"`
}

// Approve marks an item approved. Without a scheduled time the item is
// published immediately when the mode allows auto posting; a publish failure
// leaves the item approved and is surfaced in the outcome, not as an error.
func (o *Orchestrator) Approve(ctx context.Context, itemID, by string, scheduledFor *time.Time) (*ApproveOutcome, error) {
	ok, mode, err := o.gate.AllowApproval(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &content.BlockedError{Op: "approve", Mode: string(mode)}
	}

	item, err := o.store.GetContentItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := content.Approve(item, by, scheduledFor, o.now()); err != nil {
		return nil, err
	}
	if scheduledFor != nil {
		// The item parks in the scheduled holding state until the posting
		// scheduler reaches its slot.
		if err := content.MarkScheduled(item, *scheduledFor, o.now()); err != nil {
			return nil, err
		}
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, "content_approved", by, "content_item", item.ID, models.JSONB{
		"scheduled_for": scheduledFor,
	})

	outcome := &ApproveOutcome{Item: item}
	if scheduledFor != nil {
		return outcome, nil
	}

	autoOK, _, err := o.gate.AllowAutoPost(ctx)
	if err != nil {
		return nil, err
	}
	if !autoOK {
		// manual-only or auto posting disabled: the item waits for PostNow
		return outcome, nil
	}

	result := o.publisher.Publish(ctx, item)
	if !result.Success {
		outcome.PostingError = result.Error
		o.auditor.Record(ctx, "post_failed", by, "content_item", item.ID, models.JSONB{
			"error": result.Error,
		})
		return outcome, nil
	}

	if err := content.MarkPosted(item, result.PostURL, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, "content_posted", by, "content_item", item.ID, models.JSONB{
		"post_url": result.PostURL,
	})
	outcome.Posted = true
	return outcome, nil
}

// Reject marks an item rejected with a reason.
func (o *Orchestrator) Reject(ctx context.Context, itemID, by, reason string) (*models.ContentItem, error) {
	ok, mode, err := o.gate.AllowApproval(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, &content.BlockedError{Op: "reject", Mode: string(mode)}
	}

	item, err := o.store.GetContentItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := content.Reject(item, by, reason, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, "content_rejected", by, "content_item", item.ID, models.JSONB{
		"reason": reason,
	})
	return item, nil
}

// PostNow publishes an approved item immediately. Manual posting works in
// every mode except crisis.
func (o *Orchestrator) PostNow(ctx context.Context, itemID, by string) (*models.ContentItem, publish.Result, error) {
	ok, mode, err := o.gate.AllowManualPost(ctx)
	if err != nil {
		return nil, publish.Result{}, err
	}
	if !ok {
		return nil, publish.Result{}, &content.BlockedError{Op: "post", Mode: string(mode)}
	}

	item, err := o.store.GetContentItem(ctx, itemID)
	if err != nil {
		return nil, publish.Result{}, err
	}
	if item.Status != models.StatusApproved && item.Status != models.StatusScheduled {
		return nil, publish.Result{}, content.NewPreconditionError("post", "content item %s is %s, not approved", item.ID, item.Status)
	}

	result := o.publisher.Publish(ctx, item)
	if !result.Success {
		o.auditor.Record(ctx, "post_failed", by, "content_item", item.ID, models.JSONB{
			"error": result.Error,
		})
		return item, result, nil
	}

	if err := content.MarkPosted(item, result.PostURL, o.now()); err != nil {
		return nil, result, err
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, result, err
	}
	o.auditor.Record(ctx, "content_posted", by, "content_item", item.ID, models.JSONB{
		"post_url": result.PostURL,
		"manual":   true,
	})
	return item, result, nil
}

// EditBody updates the text and hashtags of a pending or approved item.
func (o *Orchestrator) EditBody(ctx context.Context, itemID, text string, hashtags []string, by string) (*models.ContentItem, error) {
	item, err := o.store.GetContentItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if err := content.EditBody(item, text, hashtags, o.now()); err != nil {
		return nil, err
	}
	if err := o.store.UpdateContentItem(ctx, item); err != nil {
		return nil, err
	}
	o.auditor.Record(ctx, "content_edited", by, "content_item", item.ID, nil)
	return item, nil
}

// SetMode changes the system operating mode.
func (o *Orchestrator) SetMode(ctx context.Context, mode models.SystemMode, by, reason string, settings *models.ControlSettings) (*models.ControlState, error) {
	return o.gate.SetMode(ctx, mode, by, reason, settings)
}

// ControlState returns the effective system control record.
func (o *Orchestrator) ControlState(ctx context.Context) (*models.ControlState, error) {
	return o.gate.Current(ctx)
}

// UpcomingGenerations predicts the generation slots in the coming window.
func (o *Orchestrator) UpcomingGenerations(ctx context.Context, window time.Duration) ([]scheduler.UpcomingRun, error) {
	return o.upcoming.Upcoming(ctx, window)
}
