// Package content owns every status transition a content item can make.
// Nothing else in the codebase mutates Status or GenerationStatus directly.
package content

import (
	"time"

	"beacon/pkg/models"
)

// Approve moves a pending, rejected or scheduled item to approved and stamps
// who approved it. Posted items are terminal and cannot be re-approved.
// scheduledFor, when set, queues the item for the posting scheduler.
func Approve(item *models.ContentItem, by string, scheduledFor *time.Time, now time.Time) error {
	if item.Status == models.StatusPosted {
		return NewPreconditionError("approve", "content item %s is already posted", item.ID)
	}
	if item.GenerationStatus == models.GenerationRunning {
		return NewPreconditionError("approve", "content item %s is still generating", item.ID)
	}
	item.Status = models.StatusApproved
	item.ApprovedBy = by
	at := now
	item.ApprovedAt = &at
	item.RejectedBy = ""
	item.RejectedAt = nil
	item.RejectionReason = ""
	item.ScheduledFor = scheduledFor
	item.UpdatedAt = now
	return nil
}

// Reject moves an item to rejected with a reason. Posted items stay posted.
func Reject(item *models.ContentItem, by, reason string, now time.Time) error {
	if item.Status == models.StatusPosted {
		return NewPreconditionError("reject", "content item %s is already posted", item.ID)
	}
	item.Status = models.StatusRejected
	item.RejectedBy = by
	at := now
	item.RejectedAt = &at
	item.RejectionReason = reason
	item.ApprovedBy = ""
	item.ApprovedAt = nil
	item.ScheduledFor = nil
	item.UpdatedAt = now
	return nil
}

// MarkScheduled records that an approved item has been picked up for a
// scheduled slot.
func MarkScheduled(item *models.ContentItem, scheduledFor time.Time, now time.Time) error {
	if item.Status != models.StatusApproved {
		return NewPreconditionError("schedule", "content item %s is %s, not approved", item.ID, item.Status)
	}
	item.Status = models.StatusScheduled
	item.ScheduledFor = &scheduledFor
	item.UpdatedAt = now
	return nil
}

// MarkPosted finalizes an item after a successful publish. Only approved or
// scheduled items can become posted; posted is terminal.
func MarkPosted(item *models.ContentItem, postURL string, postedAt time.Time) error {
	if item.Status != models.StatusApproved && item.Status != models.StatusScheduled {
		return NewPreconditionError("post", "content item %s is %s, not approved", item.ID, item.Status)
	}
	item.Status = models.StatusPosted
	at := postedAt
	item.PostedAt = &at
	item.PostURL = postURL
	item.UpdatedAt = postedAt
	return nil
}

// EditBody replaces the text and hashtags of an item that has not shipped.
// Media references are edited separately so an approver can fix copy without
// touching attachments.
func EditBody(item *models.ContentItem, text string, hashtags []string, now time.Time) error {
	if item.Status != models.StatusPending && item.Status != models.StatusApproved {
		return NewPreconditionError("edit", "content item %s is %s, only pending or approved items are editable", item.ID, item.Status)
	}
	item.Body.Text = text
	item.Body.Hashtags = hashtags
	item.UpdatedAt = now
	return nil
}

// SetMediaRefs replaces the media attachments, enforcing the platform limit.
func SetMediaRefs(item *models.ContentItem, refs []string, now time.Time) error {
	if item.Status == models.StatusPosted {
		return NewPreconditionError("edit", "content item %s is already posted", item.ID)
	}
	if limit := item.Platform.MediaLimit(); len(refs) > limit {
		return NewPreconditionError("edit", "%s accepts at most %d media attachments, got %d", item.Platform, limit, len(refs))
	}
	item.Body.MediaRefs = refs
	item.UpdatedAt = now
	return nil
}

// BeginRegeneration snapshots the current body into history, bumps the
// version and resets the item to pending/generating so a fresh draft can be
// written into it. An optional platform change re-targets the item. Posted
// items cannot be regenerated.
func BeginRegeneration(item *models.ContentItem, newPlatform models.Platform, now time.Time) error {
	if item.Status == models.StatusPosted {
		return NewPreconditionError("regenerate", "content item %s is already posted", item.ID)
	}
	if item.GenerationStatus == models.GenerationRunning {
		return NewPreconditionError("regenerate", "content item %s is still generating", item.ID)
	}
	if newPlatform != "" && !newPlatform.Valid() {
		return NewPreconditionError("regenerate", "unknown platform %q", newPlatform)
	}
	item.History = append(item.History, models.BodyVersion{
		Version:   item.Version,
		Body:      item.Body,
		Timestamp: now,
	})
	item.Version++
	item.Status = models.StatusPending
	item.GenerationStatus = models.GenerationRunning
	item.GenerationError = ""
	item.ApprovedBy = ""
	item.ApprovedAt = nil
	item.RejectedBy = ""
	item.RejectedAt = nil
	item.RejectionReason = ""
	item.ScheduledFor = nil
	if newPlatform != "" {
		item.Platform = newPlatform
	}
	item.UpdatedAt = now
	return nil
}

// CompleteGeneration writes a finished draft into the item. Image failures
// arrive as a non-empty imageError and never fail the draft itself.
func CompleteGeneration(item *models.ContentItem, body models.ContentBody, reasoning, imagePrompt, imageError string, now time.Time) error {
	if item.GenerationStatus != models.GenerationRunning {
		return NewPreconditionError("generation", "content item %s is not generating", item.ID)
	}
	item.Body = body
	item.Reasoning = reasoning
	item.ImagePrompt = imagePrompt
	item.ImageError = imageError
	item.GenerationStatus = models.GenerationCompleted
	item.GenerationError = ""
	item.UpdatedAt = now
	return nil
}

// FailGeneration records a generation failure on the item. The item stays in
// its current lifecycle status so it can be regenerated.
func FailGeneration(item *models.ContentItem, cause string, now time.Time) error {
	if item.GenerationStatus != models.GenerationRunning {
		return NewPreconditionError("generation", "content item %s is not generating", item.ID)
	}
	item.GenerationStatus = models.GenerationFailed
	item.GenerationError = cause
	item.UpdatedAt = now
	return nil
}

// ValidateNewItem checks the media preconditions for a freshly requested item.
func ValidateNewItem(platform models.Platform, mediaRefs []string, wantImage bool) error {
	if !platform.Valid() {
		return NewPreconditionError("generate", "unknown platform %q", platform)
	}
	if limit := platform.MediaLimit(); len(mediaRefs) > limit {
		return NewPreconditionError("generate", "%s accepts at most %d media attachments, got %d", platform, limit, len(mediaRefs))
	}
	if platform.RequiresMedia() && len(mediaRefs) == 0 && !wantImage {
		return NewPreconditionError("generate", "%s posts require at least one media attachment", platform)
	}
	return nil
}
