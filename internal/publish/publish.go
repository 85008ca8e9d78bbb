// Package publish ships approved content to the social platforms. The
// Publisher facade never lets an adapter error or panic escape; every call
// produces a Result the caller can act on.
package publish

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"beacon/internal/store"
	"beacon/pkg/clients"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

// Result is the uniform outcome of a publish attempt.
type Result struct {
	Success bool   `json:"success"`
	PostURL string `json:"post_url,omitempty"`
	Error   string `json:"error,omitempty"`
}

type credentialsStore interface {
	GetCredentials(ctx context.Context, brandID string, platform models.Platform) (*models.PlatformCredentials, error)
}

type adapter interface {
	Publish(ctx context.Context, creds *models.PlatformCredentials, item *models.ContentItem) (string, error)
}

type Publisher struct {
	creds    credentialsStore
	adapters map[models.Platform]adapter
	attempts *prometheus.CounterVec
	logger   logging.Logger
}

// SetMetrics attaches a counter incremented per publish attempt, labeled by
// platform and outcome.
func (p *Publisher) SetMetrics(attempts *prometheus.CounterVec) {
	p.attempts = attempts
}

func (p *Publisher) observe(platform models.Platform, result Result) Result {
	if p.attempts != nil {
		outcome := "failure"
		if result.Success {
			outcome = "success"
		}
		p.attempts.WithLabelValues(string(platform), outcome).Inc()
	}
	return result
}

// Option overrides parts of the publisher, mainly for tests.
type Option func(*Publisher)

// WithAdapter replaces the adapter for one platform.
func WithAdapter(platform models.Platform, a adapter) Option {
	return func(p *Publisher) {
		p.adapters[platform] = a
	}
}

func NewPublisher(creds credentialsStore, logger logging.Logger, opts ...Option) *Publisher {
	httpClient := &http.Client{
		Timeout:   30 * time.Second,
		Transport: clients.DefaultTransport(),
	}
	executor := clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig())

	p := &Publisher{
		creds:  creds,
		logger: logger,
		adapters: map[models.Platform]adapter{
			models.PlatformInstagram: newInstagramAdapter(httpClient, executor, logger),
			models.PlatformLinkedIn:  newLinkedInAdapter(httpClient, executor),
			models.PlatformTwitter:   newTwitterAdapter(httpClient, executor, logger),
			models.PlatformFacebook:  newFacebookAdapter(httpClient, executor),
		},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Publish validates preconditions, resolves credentials and dispatches to the
// platform adapter. Missing credentials and media violations fail without any
// remote call.
func (p *Publisher) Publish(ctx context.Context, item *models.ContentItem) Result {
	return p.observe(item.Platform, p.publish(ctx, item))
}

func (p *Publisher) publish(ctx context.Context, item *models.ContentItem) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			p.logger.WithFields(logging.Fields{
				"content_id": item.ID,
				"platform":   item.Platform,
				"panic":      fmt.Sprintf("%v", r),
			}).Error("Publish adapter panicked")
			result = Result{Error: fmt.Sprintf("internal publish failure: %v", r)}
		}
	}()

	if err := validateMedia(item); err != nil {
		return Result{Error: err.Error()}
	}

	a, ok := p.adapters[item.Platform]
	if !ok {
		return Result{Error: fmt.Sprintf("unsupported platform %q", item.Platform)}
	}

	creds, err := p.creds.GetCredentials(ctx, item.BrandID, item.Platform)
	if errors.Is(err, store.ErrNotFound) {
		return Result{Error: fmt.Sprintf("%s is not connected for this brand", item.Platform)}
	}
	if err != nil {
		return Result{Error: "failed to load platform credentials: " + err.Error()}
	}

	postURL, err := a.Publish(ctx, creds, item)
	if err != nil {
		p.logger.WithError(err).WithFields(logging.Fields{
			"content_id": item.ID,
			"platform":   item.Platform,
		}).Error("Publish failed")
		return Result{Error: err.Error()}
	}

	p.logger.WithFields(logging.Fields{
		"content_id": item.ID,
		"platform":   item.Platform,
		"post_url":   postURL,
	}).Info("Content published")
	return Result{Success: true, PostURL: postURL}
}

func validateMedia(item *models.ContentItem) error {
	refs := item.Body.MediaRefs
	if limit := item.Platform.MediaLimit(); len(refs) > limit {
		return fmt.Errorf("%s accepts at most %d media attachments, got %d", item.Platform, limit, len(refs))
	}
	if item.Platform.RequiresMedia() {
		if len(refs) == 0 {
			return fmt.Errorf("%s posts require at least one media attachment", item.Platform)
		}
		for _, ref := range refs {
			if !isPublicURL(ref) {
				return fmt.Errorf("%s media must be publicly reachable http(s) URLs, got %q", item.Platform, ref)
			}
		}
	}
	return nil
}

func isPublicURL(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// composeText joins the body text and hashtags into the final post text.
func composeText(body models.ContentBody) string {
	text := strings.TrimSpace(body.Text)
	if len(body.Hashtags) > 0 {
		text += "\n\n" + strings.Join(body.Hashtags, " ")
	}
	return text
}
