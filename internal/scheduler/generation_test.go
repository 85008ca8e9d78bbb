package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"beacon/internal/generate"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type fakeGenStore struct {
	mu      sync.Mutex
	brands  []*models.Brand
	recent  map[string][]string
	created []*models.ContentItem
}

func (f *fakeGenStore) ListBrands(ctx context.Context, activeOnly bool) ([]*models.Brand, error) {
	return f.brands, nil
}

func (f *fakeGenStore) RecentCompletedTexts(ctx context.Context, brandID string, platform models.Platform, limit int) ([]string, error) {
	texts := f.recent[brandID+"/"+string(platform)]
	if len(texts) > limit {
		texts = texts[:limit]
	}
	return texts, nil
}

func (f *fakeGenStore) CreateContentItem(ctx context.Context, it *models.ContentItem) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it.ID = "item-" + string(rune('1'+len(f.created)))
	f.created = append(f.created, it)
	return nil
}

type allowGate struct {
	allow bool
	mode  models.SystemMode
}

func (g *allowGate) AllowGeneration(ctx context.Context) (bool, models.SystemMode, error) {
	return g.allow, g.mode, nil
}

type recordingDispatcher struct {
	mu   sync.Mutex
	reqs []generate.Request
}

func (d *recordingDispatcher) Dispatch(item *models.ContentItem, req generate.Request) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.reqs = append(d.reqs, req)
}

type nopAuditor struct{}

func (nopAuditor) Record(ctx context.Context, action, by, entityType, entityID string, details models.JSONB) {
}

func dailyBrand(times []string, platforms ...models.Platform) *models.Brand {
	return &models.Brand{
		ID:       "brand-1",
		Name:     "Acme",
		IsActive: true,
		Schedule: models.GenerationSchedule{
			Enabled:   true,
			Frequency: models.FrequencyDaily,
			Times:     times,
			Platforms: platforms,
		},
	}
}

func newGenScheduler(store *fakeGenStore, gate generationGate, disp dispatcher) *GenerationScheduler {
	return NewGenerationScheduler(store, gate, disp, nopAuditor{}, logging.NewLogger())
}

func TestRunOnce_FansOutPerPlatformAtMatchingMinute(t *testing.T) {
	store := &fakeGenStore{
		brands: []*models.Brand{dailyBrand([]string{"09:00"}, models.PlatformLinkedIn, models.PlatformTwitter)},
		recent: map[string][]string{
			"brand-1/linkedin": {"old 1", "old 2"},
		},
	}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: true}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 30, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, store.created, 2)
	require.Len(t, disp.reqs, 2)
	for _, it := range store.created {
		require.Equal(t, models.StatusPending, it.Status)
		require.Equal(t, models.GenerationRunning, it.GenerationStatus)
	}
	require.Equal(t, []string{"old 1", "old 2"}, disp.reqs[0].PreviousPosts)
}

func TestRunOnce_NonMatchingMinuteDoesNothing(t *testing.T) {
	store := &fakeGenStore{
		brands: []*models.Brand{dailyBrand([]string{"09:00"}, models.PlatformLinkedIn)},
	}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: true}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 1, 0, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))
	require.Empty(t, store.created)
}

func TestRunOnce_DoubleTickInSameMinuteIsDeduplicated(t *testing.T) {
	store := &fakeGenStore{
		brands: []*models.Brand{dailyBrand([]string{"09:00"}, models.PlatformLinkedIn)},
	}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: true}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 10, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 50, 0, time.UTC) }
	require.NoError(t, s.RunOnce(context.Background()))

	require.Len(t, store.created, 1)
}

func TestRunOnce_GateSkipsPausedAndCrisis(t *testing.T) {
	store := &fakeGenStore{
		brands: []*models.Brand{dailyBrand([]string{"09:00"}, models.PlatformLinkedIn)},
	}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: false, mode: models.ModeCrisis}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))
	require.Empty(t, store.created)
	require.Empty(t, disp.reqs)
}

func TestDayMatches_WeeklyDefaultsToMonday(t *testing.T) {
	weekly := models.GenerationSchedule{Frequency: models.FrequencyWeekly}
	require.True(t, dayMatches(weekly, time.Monday))
	require.False(t, dayMatches(weekly, time.Tuesday))

	weekly.DaysOfWeek = []int{int(time.Wednesday), int(time.Friday)}
	require.True(t, dayMatches(weekly, time.Friday))
	require.False(t, dayMatches(weekly, time.Monday))
}

func TestDayMatches_CustomRequiresConfiguredDays(t *testing.T) {
	custom := models.GenerationSchedule{Frequency: models.FrequencyCustom}
	require.False(t, dayMatches(custom, time.Monday))

	custom.DaysOfWeek = []int{int(time.Sunday)}
	require.True(t, dayMatches(custom, time.Sunday))
}

func TestRunOnce_BrandFailureDoesNotStopOthers(t *testing.T) {
	badBrand := dailyBrand([]string{"09:00"}, models.PlatformInstagram)
	// instagram without media or image generation fails validation
	goodBrand := dailyBrand([]string{"09:00"}, models.PlatformLinkedIn)
	goodBrand.ID = "brand-2"

	store := &fakeGenStore{brands: []*models.Brand{badBrand, goodBrand}}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: true}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC) }

	require.NoError(t, s.RunOnce(context.Background()))
	require.Len(t, store.created, 1)
	require.Equal(t, "brand-2", store.created[0].BrandID)
}

func TestUpcoming_ReplaysWithoutMutatingState(t *testing.T) {
	brand := dailyBrand([]string{"09:00", "17:00"}, models.PlatformLinkedIn)
	store := &fakeGenStore{brands: []*models.Brand{brand}}
	disp := &recordingDispatcher{}
	s := newGenScheduler(store, &allowGate{allow: true}, disp)
	s.now = func() time.Time { return time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC) }

	runs, err := s.Upcoming(context.Background(), 24*time.Hour)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	require.Equal(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC), runs[0].At)
	require.Equal(t, time.Date(2025, 3, 10, 17, 0, 0, 0, time.UTC), runs[1].At)
	require.Empty(t, store.created)
}

func TestUpcoming_WeeklyMondayOnly(t *testing.T) {
	brand := dailyBrand([]string{"09:00"}, models.PlatformLinkedIn)
	brand.Schedule.Frequency = models.FrequencyWeekly
	store := &fakeGenStore{brands: []*models.Brand{brand}}
	s := newGenScheduler(store, &allowGate{allow: true}, &recordingDispatcher{})
	// Saturday March 8th 2025; next Monday is the 10th
	s.now = func() time.Time { return time.Date(2025, 3, 8, 12, 0, 0, 0, time.UTC) }

	runs, err := s.Upcoming(context.Background(), 72*time.Hour)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	require.Equal(t, time.Weekday(time.Monday), runs[0].At.Weekday())
}

func TestStartStop_Idempotent(t *testing.T) {
	store := &fakeGenStore{}
	s := newGenScheduler(store, &allowGate{allow: true}, &recordingDispatcher{})
	s.interval = time.Hour

	ctx := context.Background()
	s.Start(ctx)
	s.Start(ctx)
	s.Stop()
	s.Stop()
}
