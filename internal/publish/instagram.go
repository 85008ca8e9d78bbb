package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"beacon/pkg/clients"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

const (
	instagramAPIBase = "https://graph.facebook.com/v18.0"

	// Container processing is asynchronous on Instagram's side. The budget
	// below gives a container 30 seconds to become ready.
	containerPollAttempts = 10
	containerPollDelay    = 3 * time.Second
)

// instagramAdapter publishes through the Instagram Graph API: create a media
// container, wait for it to finish processing, publish it, then fetch the
// permalink.
type instagramAdapter struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
	baseURL  string

	sleep func(ctx context.Context, d time.Duration) error
}

func newInstagramAdapter(client *http.Client, executor failsafe.Executor[*http.Response], logger logging.Logger) *instagramAdapter {
	return &instagramAdapter{
		client:   client,
		executor: executor,
		logger:   logger,
		baseURL:  instagramAPIBase,
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (a *instagramAdapter) Publish(ctx context.Context, creds *models.PlatformCredentials, item *models.ContentItem) (string, error) {
	caption := composeText(item.Body)
	refs := item.Body.MediaRefs

	var containerID string
	var err error
	if len(refs) == 1 {
		containerID, err = a.createContainer(ctx, creds, url.Values{
			"image_url": {refs[0]},
			"caption":   {caption},
		})
	} else {
		containerID, err = a.createCarousel(ctx, creds, refs, caption)
	}
	if err != nil {
		return "", err
	}

	if err := a.waitForContainer(ctx, creds, containerID); err != nil {
		return "", err
	}

	mediaID, err := a.publishContainer(ctx, creds, containerID)
	if err != nil {
		return "", err
	}

	permalink, err := a.fetchPermalink(ctx, creds, mediaID)
	if err != nil {
		// The post is live at this point; a permalink failure should not be
		// reported as a failed publish.
		a.logger.WithError(err).WithField("media_id", mediaID).Warn("Failed to fetch Instagram permalink")
		return "https://www.instagram.com/p/" + mediaID, nil
	}
	return permalink, nil
}

func (a *instagramAdapter) createCarousel(ctx context.Context, creds *models.PlatformCredentials, refs []string, caption string) (string, error) {
	children := make([]string, 0, len(refs))
	for _, ref := range refs {
		childID, err := a.createContainer(ctx, creds, url.Values{
			"image_url":        {ref},
			"is_carousel_item": {"true"},
		})
		if err != nil {
			return "", fmt.Errorf("carousel item: %w", err)
		}
		if err := a.waitForContainer(ctx, creds, childID); err != nil {
			return "", fmt.Errorf("carousel item: %w", err)
		}
		children = append(children, childID)
	}
	return a.createContainer(ctx, creds, url.Values{
		"media_type": {"CAROUSEL"},
		"children":   {strings.Join(children, ",")},
		"caption":    {caption},
	})
}

func (a *instagramAdapter) createContainer(ctx context.Context, creds *models.PlatformCredentials, params url.Values) (string, error) {
	params.Set("access_token", creds.AccessToken)
	var out struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media", a.baseURL, creds.AccountID)
	if err := a.postForm(ctx, endpoint, params, &out); err != nil {
		return "", fmt.Errorf("create media container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("create media container: no container id in response")
	}
	return out.ID, nil
}

// waitForContainer polls the container status until it finishes processing.
// A container that reports ERROR, or one still processing when the attempt
// budget runs out, is a hard failure.
func (a *instagramAdapter) waitForContainer(ctx context.Context, creds *models.PlatformCredentials, containerID string) error {
	for attempt := 1; attempt <= containerPollAttempts; attempt++ {
		var out struct {
			StatusCode string `json:"status_code"`
		}
		endpoint := fmt.Sprintf("%s/%s?fields=status_code&access_token=%s", a.baseURL, containerID, url.QueryEscape(creds.AccessToken))
		if err := a.getJSON(ctx, endpoint, &out); err != nil {
			return fmt.Errorf("container status: %w", err)
		}
		switch out.StatusCode {
		case "FINISHED":
			return nil
		case "ERROR":
			return fmt.Errorf("media container %s failed processing", containerID)
		}
		if attempt < containerPollAttempts {
			if err := a.sleep(ctx, containerPollDelay); err != nil {
				return err
			}
		}
	}
	return fmt.Errorf("media container %s not ready after %d attempts", containerID, containerPollAttempts)
}

func (a *instagramAdapter) publishContainer(ctx context.Context, creds *models.PlatformCredentials, containerID string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("%s/%s/media_publish", a.baseURL, creds.AccountID)
	err := a.postForm(ctx, endpoint, url.Values{
		"creation_id":  {containerID},
		"access_token": {creds.AccessToken},
	}, &out)
	if err != nil {
		return "", fmt.Errorf("publish media container: %w", err)
	}
	if out.ID == "" {
		return "", fmt.Errorf("publish media container: no media id in response")
	}
	return out.ID, nil
}

func (a *instagramAdapter) fetchPermalink(ctx context.Context, creds *models.PlatformCredentials, mediaID string) (string, error) {
	var out struct {
		Permalink string `json:"permalink"`
	}
	endpoint := fmt.Sprintf("%s/%s?fields=permalink&access_token=%s", a.baseURL, mediaID, url.QueryEscape(creds.AccessToken))
	if err := a.getJSON(ctx, endpoint, &out); err != nil {
		return "", err
	}
	if out.Permalink == "" {
		return "", fmt.Errorf("no permalink in response")
	}
	return out.Permalink, nil
}

func (a *instagramAdapter) postForm(ctx context.Context, endpoint string, params url.Values, out interface{}) error {
	resp, err := clients.ExecuteHTTP(ctx, a.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return a.client.Do(req)
	})
	if err != nil {
		return err
	}
	return decodeGraphResponse(resp, out)
}

func (a *instagramAdapter) getJSON(ctx context.Context, endpoint string, out interface{}) error {
	resp, err := clients.ExecuteHTTP(ctx, a.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
		if reqErr != nil {
			return nil, reqErr
		}
		return a.client.Do(req)
	})
	if err != nil {
		return err
	}
	return decodeGraphResponse(resp, out)
}

// decodeGraphResponse handles the Graph API error envelope shared by the
// Instagram and Facebook adapters.
func decodeGraphResponse(resp *http.Response, out interface{}) error {
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(raw, &apiErr) == nil && apiErr.Error.Message != "" {
			return fmt.Errorf("graph api error %d: %s", apiErr.Error.Code, apiErr.Error.Message)
		}
		return fmt.Errorf("graph api status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(raw, out)
}
