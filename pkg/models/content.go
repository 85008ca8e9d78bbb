package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JSONB is a custom type for handling JSONB fields
type JSONB map[string]interface{}

// Value implements the driver.Valuer interface for JSONB
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements the sql.Scanner interface for JSONB
func (j *JSONB) Scan(value interface{}) error {
	if value == nil {
		*j = nil
		return nil
	}

	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}

	return json.Unmarshal(bytes, j)
}

// Platform identifies a publishing destination.
type Platform string

const (
	PlatformLinkedIn  Platform = "linkedin"
	PlatformInstagram Platform = "instagram"
	PlatformTwitter   Platform = "twitter"
	PlatformFacebook  Platform = "facebook"
)

// Platforms lists every supported platform.
func Platforms() []Platform {
	return []Platform{PlatformLinkedIn, PlatformInstagram, PlatformTwitter, PlatformFacebook}
}

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	switch p {
	case PlatformLinkedIn, PlatformInstagram, PlatformTwitter, PlatformFacebook:
		return true
	}
	return false
}

// MediaLimit returns the maximum number of media attachments the platform accepts.
func (p Platform) MediaLimit() int {
	switch p {
	case PlatformInstagram:
		return 20
	case PlatformTwitter:
		return 4
	case PlatformLinkedIn:
		return 20
	case PlatformFacebook:
		return 40
	default:
		return 0
	}
}

// RequiresMedia reports whether a post on this platform must carry at least one
// media attachment. Instagram has no text-only post type.
func (p Platform) RequiresMedia() bool {
	return p == PlatformInstagram
}

// ContentStatus is the approval lifecycle state of a content item.
type ContentStatus string

const (
	StatusPending   ContentStatus = "pending"
	StatusApproved  ContentStatus = "approved"
	StatusRejected  ContentStatus = "rejected"
	StatusScheduled ContentStatus = "scheduled"
	StatusPosted    ContentStatus = "posted"
)

// Valid reports whether s is a known content status.
func (s ContentStatus) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected, StatusScheduled, StatusPosted:
		return true
	}
	return false
}

// GenerationStatus tracks the async draft generation sub-state, independent of
// the approval lifecycle.
type GenerationStatus string

const (
	GenerationRunning   GenerationStatus = "generating"
	GenerationCompleted GenerationStatus = "completed"
	GenerationFailed    GenerationStatus = "failed"
)

// Valid reports whether g is a known generation status.
func (g GenerationStatus) Valid() bool {
	switch g {
	case GenerationRunning, GenerationCompleted, GenerationFailed:
		return true
	}
	return false
}

// SystemMode is the operational mode applying to the whole service.
type SystemMode string

const (
	ModeActive     SystemMode = "active"
	ModePaused     SystemMode = "paused"
	ModeManualOnly SystemMode = "manual-only"
	ModeCrisis     SystemMode = "crisis"
)

// Valid reports whether m is a known system mode.
func (m SystemMode) Valid() bool {
	switch m {
	case ModeActive, ModePaused, ModeManualOnly, ModeCrisis:
		return true
	}
	return false
}

// ContentBody is the editable payload of a content item.
type ContentBody struct {
	Text      string   `json:"text"`
	Hashtags  []string `json:"hashtags,omitempty"`
	MediaRefs []string `json:"media_refs,omitempty"`
}

// Value implements driver.Valuer so the body can be stored as JSONB.
func (b ContentBody) Value() (driver.Value, error) {
	return json.Marshal(b)
}

// Scan implements sql.Scanner.
func (b *ContentBody) Scan(value interface{}) error {
	if value == nil {
		*b = ContentBody{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, b)
}

// BodyVersion is a historical snapshot taken before regeneration.
type BodyVersion struct {
	Version   int         `json:"version"`
	Body      ContentBody `json:"body"`
	Timestamp time.Time   `json:"timestamp"`
}

// BodyHistory is the append-only list of snapshots on a content item.
type BodyHistory []BodyVersion

// Value implements driver.Valuer.
func (h BodyHistory) Value() (driver.Value, error) {
	if h == nil {
		return json.Marshal([]BodyVersion{})
	}
	return json.Marshal(h)
}

// Scan implements sql.Scanner.
func (h *BodyHistory) Scan(value interface{}) error {
	if value == nil {
		*h = nil
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, h)
}

// ContentItem is a single draft-to-post unit for one brand on one platform.
type ContentItem struct {
	ID       string   `json:"id" db:"id"`
	BrandID  string   `json:"brand_id" db:"brand_id"`
	Platform Platform `json:"platform" db:"platform"`

	Status           ContentStatus    `json:"status" db:"status"`
	GenerationStatus GenerationStatus `json:"generation_status" db:"generation_status"`
	GenerationError  string           `json:"generation_error,omitempty" db:"generation_error"`

	Body    ContentBody `json:"body" db:"body"`
	Version int         `json:"version" db:"version"`
	History BodyHistory `json:"history,omitempty" db:"history"`

	Prompt    string `json:"prompt,omitempty" db:"prompt"`
	Reasoning string `json:"reasoning,omitempty" db:"reasoning"`

	ImagePrompt string `json:"image_prompt,omitempty" db:"image_prompt"`
	ImageError  string `json:"image_error,omitempty" db:"image_error"`

	ApprovedBy      string     `json:"approved_by,omitempty" db:"approved_by"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty" db:"approved_at"`
	RejectedBy      string     `json:"rejected_by,omitempty" db:"rejected_by"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty" db:"rejected_at"`
	RejectionReason string     `json:"rejection_reason,omitempty" db:"rejection_reason"`

	ScheduledFor *time.Time `json:"scheduled_for,omitempty" db:"scheduled_for"`
	PostedAt     *time.Time `json:"posted_at,omitempty" db:"posted_at"`
	PostURL      string     `json:"post_url,omitempty" db:"post_url"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ScheduleFrequency controls which days a brand's generation schedule fires.
type ScheduleFrequency string

const (
	FrequencyDaily  ScheduleFrequency = "daily"
	FrequencyWeekly ScheduleFrequency = "weekly"
	FrequencyCustom ScheduleFrequency = "custom"
)

// Valid reports whether f is a known frequency.
func (f ScheduleFrequency) Valid() bool {
	switch f {
	case FrequencyDaily, FrequencyWeekly, FrequencyCustom:
		return true
	}
	return false
}

// GenerationSchedule configures automatic draft generation for a brand.
// Times are "HH:mm" strings, DaysOfWeek uses time.Weekday numbering
// (Sunday=0). A weekly schedule without explicit days defaults to Monday.
type GenerationSchedule struct {
	Enabled        bool              `json:"enabled"`
	Frequency      ScheduleFrequency `json:"frequency"`
	Times          []string          `json:"times,omitempty"`
	DaysOfWeek     []int             `json:"days_of_week,omitempty"`
	Platforms      []Platform        `json:"platforms,omitempty"`
	WantImage      bool              `json:"want_image,omitempty"`
	PromptTemplate string            `json:"prompt_template,omitempty"`
}

// Value implements driver.Valuer.
func (s GenerationSchedule) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *GenerationSchedule) Scan(value interface{}) error {
	if value == nil {
		*s = GenerationSchedule{}
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// Brand is a managed identity content is produced for.
type Brand struct {
	ID          string `json:"id" db:"id"`
	Name        string `json:"name" db:"name"`
	Description string `json:"description,omitempty" db:"description"`

	// Voice profile fed to the generator
	Tone           string   `json:"tone,omitempty" db:"tone"`
	TargetAudience string   `json:"target_audience,omitempty" db:"target_audience"`
	Topics         []string `json:"topics,omitempty" db:"topics"`
	BannedPhrases  []string `json:"banned_phrases,omitempty" db:"banned_phrases"`

	Schedule  GenerationSchedule `json:"schedule" db:"schedule"`
	Approvers []string           `json:"approvers,omitempty" db:"approvers"`

	IsActive  bool      `json:"is_active" db:"is_active"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ControlSettings are the tunables attached to a system control record.
type ControlSettings struct {
	AutoPostingEnabled    bool `json:"auto_posting_enabled"`
	RequireApprovalForAll bool `json:"require_approval_for_all"`
	MaxDailyPosts         int  `json:"max_daily_posts"`
}

// DefaultControlSettings returns the settings used when no control record exists.
func DefaultControlSettings() ControlSettings {
	return ControlSettings{
		AutoPostingEnabled:    true,
		RequireApprovalForAll: true,
		MaxDailyPosts:         5,
	}
}

// Value implements driver.Valuer.
func (s ControlSettings) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *ControlSettings) Scan(value interface{}) error {
	if value == nil {
		*s = DefaultControlSettings()
		return nil
	}
	var bytes []byte
	switch v := value.(type) {
	case []byte:
		bytes = v
	case string:
		bytes = []byte(v)
	default:
		return nil
	}
	return json.Unmarshal(bytes, s)
}

// ControlState is one append-only system control record. The most recent
// record wins; SetBy/Reason describe who changed the mode and why.
type ControlState struct {
	ID       string          `json:"id" db:"id"`
	Mode     SystemMode      `json:"mode" db:"mode"`
	Settings ControlSettings `json:"settings" db:"settings"`
	SetBy    string          `json:"set_by" db:"set_by"`
	Reason   string          `json:"reason,omitempty" db:"reason"`
	SetAt    time.Time       `json:"set_at" db:"set_at"`
}

// AuditEntry is one append-only audit log record.
type AuditEntry struct {
	ID          string    `json:"id" db:"id"`
	Action      string    `json:"action" db:"action"`
	PerformedBy string    `json:"performed_by" db:"performed_by"`
	EntityType  string    `json:"entity_type" db:"entity_type"`
	EntityID    string    `json:"entity_id" db:"entity_id"`
	Details     JSONB     `json:"details,omitempty" db:"details"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// Media is a registered, already-hosted asset referenced by content items.
// Binary storage lives elsewhere; only the public URL and metadata are kept.
type Media struct {
	ID          string    `json:"id" db:"id"`
	BrandID     string    `json:"brand_id" db:"brand_id"`
	URL         string    `json:"url" db:"url"`
	ContentType string    `json:"content_type,omitempty" db:"content_type"`
	Description string    `json:"description,omitempty" db:"description"`
	UploadedBy  string    `json:"uploaded_by,omitempty" db:"uploaded_by"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}

// PlatformCredentials holds the access token and account identity for one
// brand/platform pair. Token acquisition is out of scope; tokens arrive
// pre-provisioned.
type PlatformCredentials struct {
	ID          string    `json:"id" db:"id"`
	BrandID     string    `json:"brand_id" db:"brand_id"`
	Platform    Platform  `json:"platform" db:"platform"`
	AccessToken string    `json:"-" db:"access_token"`
	AccountID   string    `json:"account_id" db:"account_id"`
	PageID      string    `json:"page_id,omitempty" db:"page_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}
