package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"beacon/internal/store"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type fakeControlStore struct {
	states []*models.ControlState
}

func (f *fakeControlStore) LatestControl(ctx context.Context) (*models.ControlState, error) {
	if len(f.states) == 0 {
		return nil, store.ErrNotFound
	}
	return f.states[len(f.states)-1], nil
}

func (f *fakeControlStore) AppendControl(ctx context.Context, c *models.ControlState) error {
	c.ID = "ctl-fake"
	f.states = append(f.states, c)
	return nil
}

type fakeScheduler struct {
	started  int
	stopped  int
	startCtx context.Context
}

func (f *fakeScheduler) Start(ctx context.Context) {
	f.started++
	f.startCtx = ctx
}

func (f *fakeScheduler) Stop() { f.stopped++ }

type nopAuditor struct{}

func (nopAuditor) Record(ctx context.Context, action, by, entityType, entityID string, details models.JSONB) {
}

func TestCurrent_DefaultsToActiveWhenNoRecord(t *testing.T) {
	g := New(&fakeControlStore{}, nopAuditor{}, logging.NewLogger())

	state, err := g.Current(context.Background())
	require.NoError(t, err)
	require.Equal(t, models.ModeActive, state.Mode)
	require.True(t, state.Settings.AutoPostingEnabled)
	require.Equal(t, 5, state.Settings.MaxDailyPosts)
}

func TestSetMode_AppendsAndMostRecentWins(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	ctx := context.Background()

	_, err := g.SetMode(ctx, models.ModePaused, "ops", "maintenance", nil)
	require.NoError(t, err)
	_, err = g.SetMode(ctx, models.ModeActive, "ops", "done", nil)
	require.NoError(t, err)

	require.Len(t, fs.states, 2)
	state, err := g.Current(ctx)
	require.NoError(t, err)
	require.Equal(t, models.ModeActive, state.Mode)
}

func TestSetMode_CarriesSettingsForwardWhenNil(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	ctx := context.Background()

	settings := models.ControlSettings{AutoPostingEnabled: false, RequireApprovalForAll: true, MaxDailyPosts: 2}
	_, err := g.SetMode(ctx, models.ModeActive, "ops", "", &settings)
	require.NoError(t, err)

	state, err := g.SetMode(ctx, models.ModeManualOnly, "ops", "review week", nil)
	require.NoError(t, err)
	require.False(t, state.Settings.AutoPostingEnabled)
	require.Equal(t, 2, state.Settings.MaxDailyPosts)
}

func TestSetMode_RejectsUnknownMode(t *testing.T) {
	g := New(&fakeControlStore{}, nopAuditor{}, logging.NewLogger())
	_, err := g.SetMode(context.Background(), "hibernate", "ops", "", nil)
	require.Error(t, err)
}

func TestSetMode_TogglesSchedulers(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	gen := &fakeScheduler{}
	post := &fakeScheduler{}
	ctx := context.Background()
	g.AttachSchedulers(ctx, gen, post)

	_, err := g.SetMode(ctx, models.ModeCrisis, "ops", "incident", nil)
	require.NoError(t, err)
	require.Equal(t, 1, gen.stopped)
	require.Equal(t, 1, post.stopped)

	_, err = g.SetMode(ctx, models.ModeActive, "ops", "resolved", nil)
	require.NoError(t, err)
	require.Equal(t, 1, gen.started)
	require.Equal(t, 1, post.started)
}

func TestSetMode_ResumeStartsSchedulersOnLifecycleContext(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	gen := &fakeScheduler{}
	post := &fakeScheduler{}
	g.AttachSchedulers(context.Background(), gen, post)

	_, err := g.SetMode(context.Background(), models.ModePaused, "ops", "maintenance", nil)
	require.NoError(t, err)

	// The resume arrives over HTTP; its context is cancelled the moment the
	// handler returns. The schedulers must outlive it.
	reqCtx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = g.SetMode(reqCtx, models.ModeActive, "ops", "resolved", nil)
	require.NoError(t, err)
	require.Equal(t, 1, gen.started)
	require.Equal(t, 1, post.started)
	require.NoError(t, gen.startCtx.Err())
	require.NoError(t, post.startCtx.Err())
}

func TestPolicies_CrisisBlocksEverythingAutomatedAndManual(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	ctx := context.Background()

	_, err := g.SetMode(ctx, models.ModeCrisis, "ops", "incident", nil)
	require.NoError(t, err)

	ok, mode, err := g.AllowGeneration(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, models.ModeCrisis, mode)

	ok, _, err = g.AllowAutoPost(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, _, err = g.AllowManualPost(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, _, err = g.AllowApproval(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestPolicies_ManualOnlySuppressesAutoPostButAllowsManual(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	ctx := context.Background()

	_, err := g.SetMode(ctx, models.ModeManualOnly, "ops", "", nil)
	require.NoError(t, err)

	ok, _, err := g.AllowAutoPost(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ok, _, err = g.AllowManualPost(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ok, _, err = g.AllowGeneration(ctx)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAllowAutoPost_RespectsSettingsToggle(t *testing.T) {
	fs := &fakeControlStore{}
	g := New(fs, nopAuditor{}, logging.NewLogger())
	ctx := context.Background()

	settings := models.DefaultControlSettings()
	settings.AutoPostingEnabled = false
	_, err := g.SetMode(ctx, models.ModeActive, "ops", "", &settings)
	require.NoError(t, err)

	ok, _, err := g.AllowAutoPost(ctx)
	require.NoError(t, err)
	require.False(t, ok)
}
