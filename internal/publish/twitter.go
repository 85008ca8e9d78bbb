package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/failsafe-go/failsafe-go"

	"beacon/pkg/clients"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

const twitterAPIBase = "https://api.twitter.com/2"

// twitterAdapter publishes through the v2 tweets endpoint. Media references
// must be pre-provisioned platform media IDs; binary upload is not handled
// here, so URL references are dropped with a warning.
type twitterAdapter struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	logger   logging.Logger
	baseURL  string
}

func newTwitterAdapter(client *http.Client, executor failsafe.Executor[*http.Response], logger logging.Logger) *twitterAdapter {
	return &twitterAdapter{client: client, executor: executor, logger: logger, baseURL: twitterAPIBase}
}

type tweetRequest struct {
	Text  string      `json:"text"`
	Media *tweetMedia `json:"media,omitempty"`
}

type tweetMedia struct {
	MediaIDs []string `json:"media_ids"`
}

func (a *twitterAdapter) Publish(ctx context.Context, creds *models.PlatformCredentials, item *models.ContentItem) (string, error) {
	reqBody := tweetRequest{Text: composeText(item.Body)}

	var mediaIDs []string
	for _, ref := range item.Body.MediaRefs {
		if isPublicURL(ref) {
			a.logger.WithFields(logging.Fields{
				"content_id": item.ID,
				"media_ref":  ref,
			}).Warn("Skipping URL media reference; twitter needs uploaded media ids")
			continue
		}
		mediaIDs = append(mediaIDs, ref)
	}
	if len(mediaIDs) > 0 {
		reqBody.Media = &tweetMedia{MediaIDs: mediaIDs}
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("twitter: marshal tweet: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, a.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/tweets", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		return a.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("twitter: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("twitter: status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("twitter: decode response: %w", err)
	}
	if out.Data.ID == "" {
		return "", fmt.Errorf("twitter: no tweet id in response")
	}
	return "https://twitter.com/i/web/status/" + out.Data.ID, nil
}
