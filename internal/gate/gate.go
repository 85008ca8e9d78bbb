// Package gate is the system-wide operational mode switch. Every automated
// and manual action consults it before doing work.
package gate

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"beacon/internal/store"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

// ControlStore is the persistence the gate needs.
type ControlStore interface {
	LatestControl(ctx context.Context) (*models.ControlState, error)
	AppendControl(ctx context.Context, c *models.ControlState) error
}

// SchedulerControl lets the gate start and stop background schedulers when
// the mode changes. Start and Stop must be idempotent.
type SchedulerControl interface {
	Start(ctx context.Context)
	Stop()
}

// Auditor records mode changes.
type Auditor interface {
	Record(ctx context.Context, action, performedBy, entityType, entityID string, details models.JSONB)
}

type Gate struct {
	store      ControlStore
	auditor    Auditor
	logger     logging.Logger
	blocks     *prometheus.CounterVec
	mu         sync.Mutex
	lifecycle  context.Context
	schedulers []SchedulerControl
}

func New(store ControlStore, auditor Auditor, logger logging.Logger) *Gate {
	return &Gate{store: store, auditor: auditor, logger: logger}
}

// SetMetrics attaches a counter incremented whenever the gate denies an
// operation, labeled by operation and mode.
func (g *Gate) SetMetrics(blocks *prometheus.CounterVec) {
	g.blocks = blocks
}

func (g *Gate) denied(op string, mode models.SystemMode) {
	if g.blocks != nil {
		g.blocks.WithLabelValues(op, string(mode)).Inc()
	}
}

// AttachSchedulers registers the background schedulers the gate toggles on
// mode changes. Call once during wiring, before serving traffic. The context
// is the process lifecycle: schedulers restarted by a mode change run under
// it, never under the context of whichever request flipped the mode.
func (g *Gate) AttachSchedulers(lifecycle context.Context, schedulers ...SchedulerControl) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.lifecycle = lifecycle
	g.schedulers = schedulers
}

// Current returns the effective control state. When no record has ever been
// written the system defaults to active with default settings.
func (g *Gate) Current(ctx context.Context) (*models.ControlState, error) {
	state, err := g.store.LatestControl(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return &models.ControlState{
			Mode:     models.ModeActive,
			Settings: models.DefaultControlSettings(),
		}, nil
	}
	if err != nil {
		return nil, err
	}
	return state, nil
}

// SetMode appends a new control record and starts or stops the schedulers to
// match. Settings may be nil to carry the previous record's settings forward.
func (g *Gate) SetMode(ctx context.Context, mode models.SystemMode, by, reason string, settings *models.ControlSettings) (*models.ControlState, error) {
	if !mode.Valid() {
		return nil, fmt.Errorf("unknown system mode %q", mode)
	}

	current, err := g.Current(ctx)
	if err != nil {
		return nil, err
	}

	next := &models.ControlState{
		Mode:     mode,
		Settings: current.Settings,
		SetBy:    by,
		Reason:   reason,
	}
	if settings != nil {
		next.Settings = *settings
	}
	if err := g.store.AppendControl(ctx, next); err != nil {
		return nil, err
	}

	g.logger.WithFields(logging.Fields{
		"mode":   mode,
		"set_by": by,
		"reason": reason,
	}).Info("System mode changed")

	if g.auditor != nil {
		g.auditor.Record(ctx, "system_mode_changed", by, "system_control", next.ID, models.JSONB{
			"from":   string(current.Mode),
			"to":     string(mode),
			"reason": reason,
		})
	}

	g.toggleSchedulers(mode)
	return next, nil
}

// toggleSchedulers keeps the background loops aligned with the mode. Paused
// and crisis halt them entirely; every other mode leaves them running, and
// each scheduler still re-checks the gate on every tick. Starts always use
// the lifecycle context: a loop tied to a request context would die with the
// request that resumed it.
func (g *Gate) toggleSchedulers(mode models.SystemMode) {
	g.mu.Lock()
	defer g.mu.Unlock()
	lifecycle := g.lifecycle
	if lifecycle == nil {
		lifecycle = context.Background()
	}
	for _, s := range g.schedulers {
		if mode == models.ModePaused || mode == models.ModeCrisis {
			s.Stop()
		} else {
			s.Start(lifecycle)
		}
	}
}

// AllowAutomation reports whether any automated background work may run.
func (g *Gate) AllowAutomation(ctx context.Context) (bool, models.SystemMode, error) {
	state, err := g.Current(ctx)
	if err != nil {
		return false, "", err
	}
	ok := state.Mode != models.ModePaused && state.Mode != models.ModeCrisis
	if !ok {
		g.denied("automation", state.Mode)
	}
	return ok, state.Mode, nil
}

// AllowGeneration reports whether drafts may be generated (scheduled or
// requested). Paused and crisis block generation.
func (g *Gate) AllowGeneration(ctx context.Context) (bool, models.SystemMode, error) {
	return g.AllowAutomation(ctx)
}

// AllowAutoPost reports whether the posting scheduler may publish. Requires
// active mode with auto posting enabled in the settings.
func (g *Gate) AllowAutoPost(ctx context.Context) (bool, models.SystemMode, error) {
	state, err := g.Current(ctx)
	if err != nil {
		return false, "", err
	}
	ok := state.Mode == models.ModeActive && state.Settings.AutoPostingEnabled
	if !ok {
		g.denied("auto_post", state.Mode)
	}
	return ok, state.Mode, nil
}

// AllowManualPost reports whether an operator-initiated publish may proceed.
// Manual posting bypasses manual-only and paused, but never crisis.
func (g *Gate) AllowManualPost(ctx context.Context) (bool, models.SystemMode, error) {
	state, err := g.Current(ctx)
	if err != nil {
		return false, "", err
	}
	if state.Mode == models.ModeCrisis {
		g.denied("manual_post", state.Mode)
	}
	return state.Mode != models.ModeCrisis, state.Mode, nil
}

// AllowApproval reports whether approval decisions may be made. Crisis
// freezes the approval queue.
func (g *Gate) AllowApproval(ctx context.Context) (bool, models.SystemMode, error) {
	state, err := g.Current(ctx)
	if err != nil {
		return false, "", err
	}
	if state.Mode == models.ModeCrisis {
		g.denied("approval", state.Mode)
	}
	return state.Mode != models.ModeCrisis, state.Mode, nil
}
