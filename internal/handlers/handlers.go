// Package handlers is the HTTP surface. Handlers validate and decode
// requests, call the orchestrator or the store, and translate domain errors
// to status codes.
package handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"beacon/internal/content"
	"beacon/internal/orchestrator"
	"beacon/internal/publish"
	"beacon/internal/scheduler"
	"beacon/internal/store"
	"beacon/pkg/auth"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

// Service is the orchestrator surface the handlers call.
type Service interface {
	RequestGeneration(ctx context.Context, brandID string, platform models.Platform, mediaRefs []string, prompt string, wantImage bool, by string) (*models.ContentItem, error)
	Regenerate(ctx context.Context, itemID, feedback string, newPlatform models.Platform, by string) (*models.ContentItem, error)
	Approve(ctx context.Context, itemID, by string, scheduledFor *time.Time) (*orchestrator.ApproveOutcome, error)
	Reject(ctx context.Context, itemID, by, reason string) (*models.ContentItem, error)
	PostNow(ctx context.Context, itemID, by string) (*models.ContentItem, publish.Result, error)
	EditBody(ctx context.Context, itemID, text string, hashtags []string, by string) (*models.ContentItem, error)
	SetMode(ctx context.Context, mode models.SystemMode, by, reason string, settings *models.ControlSettings) (*models.ControlState, error)
	ControlState(ctx context.Context) (*models.ControlState, error)
	UpcomingGenerations(ctx context.Context, window time.Duration) ([]scheduler.UpcomingRun, error)
}

// Directory is the read/CRUD store surface the handlers use directly.
type Directory interface {
	CreateBrand(ctx context.Context, b *models.Brand) error
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	ListBrands(ctx context.Context, activeOnly bool) ([]*models.Brand, error)
	UpdateBrand(ctx context.Context, b *models.Brand) error
	UpdateBrandSchedule(ctx context.Context, brandID string, schedule models.GenerationSchedule) (time.Time, error)
	GetContentItem(ctx context.Context, id string) (*models.ContentItem, error)
	ListContentItems(ctx context.Context, f store.ContentFilter) ([]*models.ContentItem, error)
	ListAudit(ctx context.Context, f store.AuditFilter) ([]*models.AuditEntry, error)
	CreateMedia(ctx context.Context, m *models.Media) error
	GetMedia(ctx context.Context, id string) (*models.Media, error)
	ListMedia(ctx context.Context, brandID string) ([]*models.Media, error)
	UpsertCredentials(ctx context.Context, c *models.PlatformCredentials) error
	PostingStats(ctx context.Context, since time.Time) ([]store.StatusPlatformCount, error)
}

// Recorder writes audit entries for mutations that bypass the orchestrator.
type Recorder interface {
	Record(ctx context.Context, action, performedBy, entityType, entityID string, details models.JSONB)
}

type Handlers struct {
	svc     Service
	dir     Directory
	auditor Recorder
	logger  logging.Logger
}

func New(svc Service, dir Directory, auditor Recorder, logger logging.Logger) *Handlers {
	return &Handlers{svc: svc, dir: dir, auditor: auditor, logger: logger}
}

// respondError maps domain errors to HTTP status codes.
func (h *Handlers) respondError(c *gin.Context, err error) {
	switch {
	case content.IsPrecondition(err):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case content.IsBlocked(err):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	case errors.Is(err, store.ErrNotFound), errors.Is(err, content.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	default:
		h.logger.WithError(err).Error("Request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

func actor(c *gin.Context) string {
	if email := c.GetString("email"); email != "" {
		return email
	}
	return auth.UserID(c, "unknown")
}

// Brands

type brandRequest struct {
	Name           string                    `json:"name" binding:"required"`
	Description    string                    `json:"description"`
	Tone           string                    `json:"tone"`
	TargetAudience string                    `json:"target_audience"`
	Topics         []string                  `json:"topics"`
	BannedPhrases  []string                  `json:"banned_phrases"`
	Approvers      []string                  `json:"approvers"`
	Schedule       models.GenerationSchedule `json:"schedule"`
	IsActive       *bool                     `json:"is_active"`
}

func (h *Handlers) CreateBrand(c *gin.Context) {
	var req brandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	brand := &models.Brand{
		Name:           req.Name,
		Description:    req.Description,
		Tone:           req.Tone,
		TargetAudience: req.TargetAudience,
		Topics:         req.Topics,
		BannedPhrases:  req.BannedPhrases,
		Approvers:      req.Approvers,
		Schedule:       req.Schedule,
		IsActive:       true,
	}
	if req.IsActive != nil {
		brand.IsActive = *req.IsActive
	}
	if err := h.dir.CreateBrand(c.Request.Context(), brand); err != nil {
		h.respondError(c, err)
		return
	}
	h.auditor.Record(c.Request.Context(), "brand_created", actor(c), "brand", brand.ID, models.JSONB{"name": brand.Name})
	c.JSON(http.StatusCreated, brand)
}

func (h *Handlers) ListBrands(c *gin.Context) {
	activeOnly := c.Query("active") == "true"
	brands, err := h.dir.ListBrands(c.Request.Context(), activeOnly)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"brands": brands})
}

func (h *Handlers) GetBrand(c *gin.Context) {
	brand, err := h.dir.GetBrand(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brand)
}

func (h *Handlers) UpdateBrand(c *gin.Context) {
	brand, err := h.dir.GetBrand(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	var req brandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	brand.Name = req.Name
	brand.Description = req.Description
	brand.Tone = req.Tone
	brand.TargetAudience = req.TargetAudience
	brand.Topics = req.Topics
	brand.BannedPhrases = req.BannedPhrases
	brand.Approvers = req.Approvers
	brand.Schedule = req.Schedule
	if req.IsActive != nil {
		brand.IsActive = *req.IsActive
	}
	if err := h.dir.UpdateBrand(c.Request.Context(), brand); err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, brand)
}

func (h *Handlers) UpdateBrandSchedule(c *gin.Context) {
	var schedule models.GenerationSchedule
	if err := c.ShouldBindJSON(&schedule); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if schedule.Enabled && !schedule.Frequency.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown schedule frequency"})
		return
	}
	for _, p := range schedule.Platforms {
		if !p.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform " + string(p)})
			return
		}
	}
	updatedAt, err := h.dir.UpdateBrandSchedule(c.Request.Context(), c.Param("id"), schedule)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"schedule": schedule, "updated_at": updatedAt})
}

// Content

func (h *Handlers) ListContent(c *gin.Context) {
	filter := store.ContentFilter{
		BrandID:  c.Query("brand_id"),
		Platform: models.Platform(c.Query("platform")),
		Status:   models.ContentStatus(c.Query("status")),
		Limit:    100,
	}
	items, err := h.dir.ListContentItems(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h *Handlers) GetContent(c *gin.Context) {
	item, err := h.dir.GetContentItem(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type generateRequest struct {
	BrandID   string          `json:"brand_id" binding:"required"`
	Platform  models.Platform `json:"platform" binding:"required"`
	MediaRefs []string        `json:"media_refs"`
	Prompt    string          `json:"prompt"`
	WantImage bool            `json:"want_image"`
}

func (h *Handlers) RequestGeneration(c *gin.Context) {
	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.svc.RequestGeneration(c.Request.Context(), req.BrandID, req.Platform, req.MediaRefs, req.Prompt, req.WantImage, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, item)
}

type regenerateRequest struct {
	Feedback    string          `json:"feedback"`
	NewPlatform models.Platform `json:"new_platform"`
}

func (h *Handlers) Regenerate(c *gin.Context) {
	var req regenerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.svc.Regenerate(c.Request.Context(), c.Param("id"), req.Feedback, req.NewPlatform, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

type approveRequest struct {
	ScheduledFor *time.Time `json:"scheduled_for"`
}

func (h *Handlers) Approve(c *gin.Context) {
	// an empty body approves without a schedule
	var req approveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}
	outcome, err := h.svc.Approve(c.Request.Context(), c.Param("id"), actor(c), req.ScheduledFor)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, outcome)
}

type rejectRequest struct {
	Reason string `json:"reason" binding:"required"`
}

func (h *Handlers) Reject(c *gin.Context) {
	var req rejectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.svc.Reject(c.Request.Context(), c.Param("id"), actor(c), req.Reason)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

func (h *Handlers) PostNow(c *gin.Context) {
	item, result, err := h.svc.PostNow(c.Request.Context(), c.Param("id"), actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	if !result.Success {
		c.JSON(http.StatusBadGateway, gin.H{"item": item, "result": result})
		return
	}
	c.JSON(http.StatusOK, gin.H{"item": item, "result": result})
}

type editRequest struct {
	Text     string   `json:"text" binding:"required"`
	Hashtags []string `json:"hashtags"`
}

func (h *Handlers) EditContent(c *gin.Context) {
	var req editRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	item, err := h.svc.EditBody(c.Request.Context(), c.Param("id"), req.Text, req.Hashtags, actor(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, item)
}

// System control

func (h *Handlers) GetSystemControl(c *gin.Context) {
	state, err := h.svc.ControlState(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

type setModeRequest struct {
	Mode     models.SystemMode       `json:"mode" binding:"required"`
	Reason   string                  `json:"reason"`
	Settings *models.ControlSettings `json:"settings"`
}

func (h *Handlers) SetSystemControl(c *gin.Context) {
	var req setModeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Mode.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown system mode " + string(req.Mode)})
		return
	}
	state, err := h.svc.SetMode(c.Request.Context(), req.Mode, actor(c), req.Reason, req.Settings)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, state)
}

// Audit, stats and schedules

func (h *Handlers) ListAudit(c *gin.Context) {
	filter := store.AuditFilter{
		EntityType: c.Query("entity_type"),
		EntityID:   c.Query("entity_id"),
		Limit:      100,
	}
	entries, err := h.dir.ListAudit(c.Request.Context(), filter)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *Handlers) PostingStats(c *gin.Context) {
	days := 7
	if d := c.Query("days"); d != "" {
		if parsed, err := strconv.Atoi(d); err == nil && parsed > 0 {
			days = parsed
		}
	}
	since := time.Now().AddDate(0, 0, -days)
	stats, err := h.dir.PostingStats(c.Request.Context(), since)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"since": since, "stats": stats})
}

func (h *Handlers) DashboardStats(c *gin.Context) {
	ctx := c.Request.Context()
	state, err := h.svc.ControlState(ctx)
	if err != nil {
		h.respondError(c, err)
		return
	}
	pending, err := h.dir.ListContentItems(ctx, store.ContentFilter{Status: models.StatusPending, Limit: 100})
	if err != nil {
		h.respondError(c, err)
		return
	}
	stats, err := h.dir.PostingStats(ctx, time.Now().AddDate(0, 0, -7))
	if err != nil {
		h.respondError(c, err)
		return
	}
	upcoming, err := h.svc.UpcomingGenerations(ctx, 24*time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"mode":           state.Mode,
		"settings":       state.Settings,
		"pending_count":  len(pending),
		"week_stats":     stats,
		"upcoming_24h":   upcoming,
		"upcoming_count": len(upcoming),
	})
}

func (h *Handlers) UpcomingGenerations(c *gin.Context) {
	hours := 24
	if v := c.Query("hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	runs, err := h.svc.UpcomingGenerations(c.Request.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"hours": hours, "runs": runs})
}

// Media

type mediaRequest struct {
	BrandID     string `json:"brand_id" binding:"required"`
	URL         string `json:"url" binding:"required,url"`
	ContentType string `json:"content_type"`
	Description string `json:"description"`
}

func (h *Handlers) RegisterMedia(c *gin.Context) {
	var req mediaRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	media := &models.Media{
		BrandID:     req.BrandID,
		URL:         req.URL,
		ContentType: req.ContentType,
		Description: req.Description,
		UploadedBy:  actor(c),
	}
	if err := h.dir.CreateMedia(c.Request.Context(), media); err != nil {
		h.respondError(c, err)
		return
	}
	h.auditor.Record(c.Request.Context(), "media_registered", actor(c), "media", media.ID, models.JSONB{
		"brand_id": media.BrandID,
		"url":      media.URL,
	})
	c.JSON(http.StatusCreated, media)
}

func (h *Handlers) GetMedia(c *gin.Context) {
	media, err := h.dir.GetMedia(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, media)
}

func (h *Handlers) ListMedia(c *gin.Context) {
	brandID := c.Param("id")
	if brandID == "" {
		brandID = c.Query("brand_id")
	}
	media, err := h.dir.ListMedia(c.Request.Context(), brandID)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"media": media})
}

// Credentials

type credentialsRequest struct {
	Platform    models.Platform `json:"platform" binding:"required"`
	AccessToken string          `json:"access_token" binding:"required"`
	AccountID   string          `json:"account_id" binding:"required"`
	PageID      string          `json:"page_id"`
}

func (h *Handlers) PutCredentials(c *gin.Context) {
	var req credentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if !req.Platform.Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown platform " + string(req.Platform)})
		return
	}
	creds := &models.PlatformCredentials{
		BrandID:     c.Param("id"),
		Platform:    req.Platform,
		AccessToken: req.AccessToken,
		AccountID:   req.AccountID,
		PageID:      req.PageID,
	}
	if err := h.dir.UpsertCredentials(c.Request.Context(), creds); err != nil {
		h.respondError(c, err)
		return
	}
	// Never echo the token; audit records the connection, not the secret.
	h.auditor.Record(c.Request.Context(), "platform_connected", actor(c), "brand", creds.BrandID, models.JSONB{
		"platform":   creds.Platform,
		"account_id": creds.AccountID,
	})
	c.JSON(http.StatusOK, gin.H{"id": creds.ID, "platform": creds.Platform, "account_id": creds.AccountID})
}
