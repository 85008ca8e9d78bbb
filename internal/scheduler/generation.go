// Package scheduler holds the two minute-tick background loops: scheduled
// draft generation and scheduled posting. Both re-check the system gate on
// every tick and are started/stopped by the gate on mode changes.
package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"beacon/internal/content"
	"beacon/internal/generate"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

const tickInterval = time.Minute

type generationStore interface {
	ListBrands(ctx context.Context, activeOnly bool) ([]*models.Brand, error)
	RecentCompletedTexts(ctx context.Context, brandID string, platform models.Platform, limit int) ([]string, error)
	CreateContentItem(ctx context.Context, it *models.ContentItem) error
}

type generationGate interface {
	AllowGeneration(ctx context.Context) (bool, models.SystemMode, error)
}

type dispatcher interface {
	Dispatch(item *models.ContentItem, req generate.Request)
}

type auditor interface {
	Record(ctx context.Context, action, performedBy, entityType, entityID string, details models.JSONB)
}

// recentExampleLimit caps how many previous drafts are fed to the generator
// as negative examples.
const recentExampleLimit = 5

// GenerationScheduler fires brand schedules once per matching minute. A
// minute key dedups double ticks inside the same wall-clock minute.
type GenerationScheduler struct {
	store   generationStore
	gate    generationGate
	runner  dispatcher
	auditor auditor
	logger  logging.Logger
	runs    *prometheus.CounterVec

	interval time.Duration
	now      func() time.Time

	mu       sync.Mutex
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}
	keyMu    sync.Mutex
	minute   string
	executed map[string]struct{}
}

func NewGenerationScheduler(store generationStore, gate generationGate, runner dispatcher, auditor auditor, logger logging.Logger) *GenerationScheduler {
	return &GenerationScheduler{
		store:    store,
		gate:     gate,
		runner:   runner,
		auditor:  auditor,
		logger:   logger,
		interval: tickInterval,
		now:      time.Now,
		executed: make(map[string]struct{}),
	}
}

// SetMetrics attaches a counter incremented per scheduled generation run,
// labeled by platform and outcome.
func (s *GenerationScheduler) SetMetrics(runs *prometheus.CounterVec) {
	s.runs = runs
}

// Start launches the tick loop. Calling Start on a running scheduler is a
// no-op.
func (s *GenerationScheduler) Start(ctx context.Context) {
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
	s.logger.Info("Generation scheduler started")
}

// Stop halts the tick loop and waits for an in-flight tick to finish.
// Calling Stop on a stopped scheduler is a no-op.
func (s *GenerationScheduler) Stop() {
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
	s.logger.Info("Generation scheduler stopped")
}

func (s *GenerationScheduler) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.RunOnce(ctx); err != nil {
				s.logger.WithError(err).Error("Generation tick failed")
			}
		}
	}
}

// minuteKey identifies one wall-clock minute.
func minuteKey(t time.Time) string {
	return t.Format("2006-01-02-15-04")
}

// RunOnce executes a single tick: find brands whose schedule matches the
// current minute and fan out one draft per configured platform. A failure on
// one brand never stops the rest.
func (s *GenerationScheduler) RunOnce(ctx context.Context) error {
	ok, mode, err := s.gate.AllowGeneration(ctx)
	if err != nil {
		return fmt.Errorf("check gate: %w", err)
	}
	if !ok {
		s.logger.WithField("mode", mode).Debug("Generation tick skipped by system mode")
		return nil
	}

	now := s.now()
	brands, err := s.store.ListBrands(ctx, true)
	if err != nil {
		return fmt.Errorf("list brands: %w", err)
	}

	for _, brand := range brands {
		if !scheduleMatches(brand.Schedule, now) {
			continue
		}
		if err := s.fanOut(ctx, brand, now); err != nil {
			s.logger.WithError(err).WithField("brand_id", brand.ID).Error("Scheduled generation failed for brand")
		}
	}
	return nil
}

// fanOut creates one generating item per configured platform, deduplicated
// per minute.
func (s *GenerationScheduler) fanOut(ctx context.Context, brand *models.Brand, now time.Time) error {
	platforms := brand.Schedule.Platforms
	if len(platforms) == 0 {
		return nil
	}
	key := minuteKey(now)

	var firstErr error
	for _, platform := range platforms {
		if !s.claim(brand.ID, platform, key) {
			continue
		}
		err := s.generateOne(ctx, brand, platform)
		if s.runs != nil {
			outcome := "dispatched"
			if err != nil {
				outcome = "failed"
			}
			s.runs.WithLabelValues(string(platform), outcome).Inc()
		}
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.logger.WithError(err).WithFields(logging.Fields{
				"brand_id": brand.ID,
				"platform": platform,
			}).Error("Scheduled generation failed")
		}
	}
	return firstErr
}

// claim reserves a brand/platform slot for the given minute. Returns false
// when this minute already ran, which makes double ticks idempotent.
func (s *GenerationScheduler) claim(brandID string, platform models.Platform, key string) bool {
	s.keyMu.Lock()
	defer s.keyMu.Unlock()
	if key != s.minute {
		s.minute = key
		s.executed = make(map[string]struct{})
	}
	slot := brandID + "/" + string(platform)
	if _, seen := s.executed[slot]; seen {
		return false
	}
	s.executed[slot] = struct{}{}
	return true
}

func (s *GenerationScheduler) generateOne(ctx context.Context, brand *models.Brand, platform models.Platform) error {
	if err := content.ValidateNewItem(platform, nil, brand.Schedule.WantImage); err != nil {
		return err
	}

	previous, err := s.store.RecentCompletedTexts(ctx, brand.ID, platform, recentExampleLimit)
	if err != nil {
		return fmt.Errorf("load recent drafts: %w", err)
	}

	item := &models.ContentItem{
		BrandID:          brand.ID,
		Platform:         platform,
		Status:           models.StatusPending,
		GenerationStatus: models.GenerationRunning,
		Prompt:           brand.Schedule.PromptTemplate,
	}
	if err := s.store.CreateContentItem(ctx, item); err != nil {
		return fmt.Errorf("create content item: %w", err)
	}

	if s.auditor != nil {
		s.auditor.Record(ctx, "scheduled_generation_started", "scheduler", "content_item", item.ID, models.JSONB{
			"brand_id": brand.ID,
			"platform": string(platform),
		})
	}

	s.runner.Dispatch(item, generate.Request{
		Brand:         brand,
		Platform:      platform,
		Prompt:        brand.Schedule.PromptTemplate,
		PreviousPosts: previous,
		WantImage:     brand.Schedule.WantImage,
	})
	return nil
}

// scheduleMatches reports whether the schedule fires at the given instant.
func scheduleMatches(schedule models.GenerationSchedule, now time.Time) bool {
	if !schedule.Enabled {
		return false
	}
	if !dayMatches(schedule, now.Weekday()) {
		return false
	}
	hhmm := now.Format("15:04")
	for _, t := range schedule.Times {
		if t == hhmm {
			return true
		}
	}
	return false
}

// dayMatches applies the frequency rules: daily always fires, weekly fires on
// the configured days (defaulting to Monday), custom fires only on the
// configured days.
func dayMatches(schedule models.GenerationSchedule, weekday time.Weekday) bool {
	switch schedule.Frequency {
	case models.FrequencyDaily:
		return true
	case models.FrequencyWeekly:
		if len(schedule.DaysOfWeek) == 0 {
			return weekday == time.Monday
		}
		return containsDay(schedule.DaysOfWeek, weekday)
	case models.FrequencyCustom:
		return containsDay(schedule.DaysOfWeek, weekday)
	default:
		return false
	}
}

func containsDay(days []int, weekday time.Weekday) bool {
	for _, d := range days {
		if time.Weekday(d) == weekday {
			return true
		}
	}
	return false
}

// UpcomingRun is one predicted future generation slot.
type UpcomingRun struct {
	BrandID   string            `json:"brand_id"`
	BrandName string            `json:"brand_name"`
	Platforms []models.Platform `json:"platforms"`
	At        time.Time         `json:"at"`
}

// Upcoming replays the day/time matching rules against the coming window and
// returns the slots that would fire, soonest first. It never mutates state.
func (s *GenerationScheduler) Upcoming(ctx context.Context, window time.Duration) ([]UpcomingRun, error) {
	brands, err := s.store.ListBrands(ctx, true)
	if err != nil {
		return nil, err
	}

	now := s.now()
	horizon := now.Add(window)
	var runs []UpcomingRun

	for _, brand := range brands {
		schedule := brand.Schedule
		if !schedule.Enabled || len(schedule.Platforms) == 0 {
			continue
		}
		days := int(window/(24*time.Hour)) + 1
		for offset := 0; offset <= days; offset++ {
			day := now.AddDate(0, 0, offset)
			if !dayMatches(schedule, day.Weekday()) {
				continue
			}
			for _, hhmm := range schedule.Times {
				t, err := time.ParseInLocation("15:04", hhmm, now.Location())
				if err != nil {
					continue
				}
				candidate := time.Date(day.Year(), day.Month(), day.Day(), t.Hour(), t.Minute(), 0, 0, now.Location())
				if candidate.After(now) && !candidate.After(horizon) {
					runs = append(runs, UpcomingRun{
						BrandID:   brand.ID,
						BrandName: brand.Name,
						Platforms: schedule.Platforms,
						At:        candidate,
					})
				}
			}
		}
	}

	sort.Slice(runs, func(i, j int) bool { return runs[i].At.Before(runs[j].At) })
	return runs, nil
}
