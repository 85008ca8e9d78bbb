package content

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"beacon/pkg/models"
)

func newItem(status models.ContentStatus) *models.ContentItem {
	return &models.ContentItem{
		ID:               "item-1",
		BrandID:          "brand-1",
		Platform:         models.PlatformLinkedIn,
		Status:           status,
		GenerationStatus: models.GenerationCompleted,
		Body: models.ContentBody{
			Text:     "original draft",
			Hashtags: []string{"#launch"},
		},
		Version: 1,
	}
}

func TestApprove_StampsApprover(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	item := newItem(models.StatusPending)

	err := Approve(item, "reviewer@example.com", nil, now)
	require.NoError(t, err)
	require.Equal(t, models.StatusApproved, item.Status)
	require.Equal(t, "reviewer@example.com", item.ApprovedBy)
	require.NotNil(t, item.ApprovedAt)
	require.Nil(t, item.ScheduledFor)
}

func TestApprove_RejectsPostedItem(t *testing.T) {
	item := newItem(models.StatusPosted)

	err := Approve(item, "reviewer@example.com", nil, time.Now())
	require.Error(t, err)
	require.True(t, IsPrecondition(err))
	require.Equal(t, models.StatusPosted, item.Status)
}

func TestApprove_RejectsWhileGenerating(t *testing.T) {
	item := newItem(models.StatusPending)
	item.GenerationStatus = models.GenerationRunning

	err := Approve(item, "reviewer@example.com", nil, time.Now())
	require.True(t, IsPrecondition(err))
}

func TestApprove_ClearsPriorRejection(t *testing.T) {
	now := time.Now()
	item := newItem(models.StatusRejected)
	item.RejectedBy = "reviewer@example.com"
	item.RejectionReason = "tone off"

	err := Approve(item, "lead@example.com", nil, now)
	require.NoError(t, err)
	require.Empty(t, item.RejectedBy)
	require.Empty(t, item.RejectionReason)
	require.Nil(t, item.RejectedAt)
}

func TestReject_StampsReason(t *testing.T) {
	now := time.Now()
	item := newItem(models.StatusPending)

	err := Reject(item, "reviewer@example.com", "off brand", now)
	require.NoError(t, err)
	require.Equal(t, models.StatusRejected, item.Status)
	require.Equal(t, "off brand", item.RejectionReason)
}

func TestReject_PostedIsTerminal(t *testing.T) {
	item := newItem(models.StatusPosted)
	err := Reject(item, "reviewer@example.com", "too late", time.Now())
	require.True(t, IsPrecondition(err))
}

func TestMarkScheduled_ParksApprovedItem(t *testing.T) {
	item := newItem(models.StatusApproved)
	slot := time.Date(2025, 3, 11, 15, 0, 0, 0, time.UTC)

	err := MarkScheduled(item, slot, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.StatusScheduled, item.Status)
	require.True(t, item.ScheduledFor.Equal(slot))

	err = MarkScheduled(newItem(models.StatusPending), slot, time.Now())
	require.True(t, IsPrecondition(err))
}

func TestMarkPosted_AdvancesScheduledItem(t *testing.T) {
	item := newItem(models.StatusScheduled)
	err := MarkPosted(item, "https://example.com/p/2", time.Now())
	require.NoError(t, err)
	require.Equal(t, models.StatusPosted, item.Status)
}

func TestMarkPosted_RequiresApproved(t *testing.T) {
	item := newItem(models.StatusPending)
	err := MarkPosted(item, "https://example.com/p/1", time.Now())
	require.True(t, IsPrecondition(err))

	item = newItem(models.StatusApproved)
	postedAt := time.Date(2025, 3, 10, 9, 5, 0, 0, time.UTC)
	err = MarkPosted(item, "https://example.com/p/1", postedAt)
	require.NoError(t, err)
	require.Equal(t, models.StatusPosted, item.Status)
	require.Equal(t, "https://example.com/p/1", item.PostURL)
	require.Equal(t, postedAt, *item.PostedAt)
}

func TestEditBody_OnlyPendingOrApproved(t *testing.T) {
	item := newItem(models.StatusRejected)
	err := EditBody(item, "new text", nil, time.Now())
	require.True(t, IsPrecondition(err))

	item = newItem(models.StatusApproved)
	err = EditBody(item, "new text", []string{"#v2"}, time.Now())
	require.NoError(t, err)
	require.Equal(t, "new text", item.Body.Text)
	require.Equal(t, []string{"#v2"}, item.Body.Hashtags)
}

func TestSetMediaRefs_EnforcesPlatformLimit(t *testing.T) {
	item := newItem(models.StatusPending)
	item.Platform = models.PlatformTwitter

	refs := []string{"a", "b", "c", "d", "e"}
	err := SetMediaRefs(item, refs, time.Now())
	require.True(t, IsPrecondition(err))

	err = SetMediaRefs(item, refs[:4], time.Now())
	require.NoError(t, err)
	require.Len(t, item.Body.MediaRefs, 4)
}

func TestBeginRegeneration_SnapshotsHistoryAndBumpsVersion(t *testing.T) {
	now := time.Now()
	item := newItem(models.StatusRejected)

	err := BeginRegeneration(item, "", now)
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, item.Status)
	require.Equal(t, models.GenerationRunning, item.GenerationStatus)
	require.Equal(t, 2, item.Version)
	require.Len(t, item.History, 1)
	require.Equal(t, 1, item.History[0].Version)
	require.Equal(t, "original draft", item.History[0].Body.Text)
}

func TestBeginRegeneration_PlatformChange(t *testing.T) {
	item := newItem(models.StatusPending)

	err := BeginRegeneration(item, models.PlatformInstagram, time.Now())
	require.NoError(t, err)
	require.Equal(t, models.PlatformInstagram, item.Platform)

	err = BeginRegeneration(newItem(models.StatusPending), "myspace", time.Now())
	require.True(t, IsPrecondition(err))
}

func TestBeginRegeneration_PostedIsTerminal(t *testing.T) {
	item := newItem(models.StatusPosted)
	err := BeginRegeneration(item, "", time.Now())
	require.True(t, IsPrecondition(err))
}

func TestCompleteGeneration_ImageFailureDoesNotFailDraft(t *testing.T) {
	now := time.Now()
	item := newItem(models.StatusPending)
	item.GenerationStatus = models.GenerationRunning

	body := models.ContentBody{Text: "fresh draft", Hashtags: []string{"#new"}}
	err := CompleteGeneration(item, body, "reasoning", "sunset photo", "image provider timeout", now)
	require.NoError(t, err)
	require.Equal(t, models.GenerationCompleted, item.GenerationStatus)
	require.Equal(t, "fresh draft", item.Body.Text)
	require.Equal(t, "image provider timeout", item.ImageError)
}

func TestFailGeneration_RecordsCause(t *testing.T) {
	item := newItem(models.StatusPending)
	item.GenerationStatus = models.GenerationRunning

	err := FailGeneration(item, "provider unavailable", time.Now())
	require.NoError(t, err)
	require.Equal(t, models.GenerationFailed, item.GenerationStatus)
	require.Equal(t, "provider unavailable", item.GenerationError)
	require.Equal(t, models.StatusPending, item.Status)
}

func TestValidateNewItem_InstagramRequiresMedia(t *testing.T) {
	err := ValidateNewItem(models.PlatformInstagram, nil, false)
	require.True(t, IsPrecondition(err))

	// a planned generated image satisfies the requirement
	err = ValidateNewItem(models.PlatformInstagram, nil, true)
	require.NoError(t, err)

	err = ValidateNewItem(models.PlatformInstagram, []string{"https://cdn.example.com/a.jpg"}, false)
	require.NoError(t, err)
}

func TestValidateNewItem_MediaLimits(t *testing.T) {
	refs := make([]string, 5)
	err := ValidateNewItem(models.PlatformTwitter, refs, false)
	require.True(t, IsPrecondition(err))

	err = ValidateNewItem(models.PlatformTwitter, refs[:4], false)
	require.NoError(t, err)
}
