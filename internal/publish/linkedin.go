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
	"beacon/pkg/models"
)

const linkedInAPIBase = "https://api.linkedin.com/v2"

// linkedInAdapter publishes through the UGC Posts API.
type linkedInAdapter struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	baseURL  string
}

func newLinkedInAdapter(client *http.Client, executor failsafe.Executor[*http.Response]) *linkedInAdapter {
	return &linkedInAdapter{client: client, executor: executor, baseURL: linkedInAPIBase}
}

type ugcPostRequest struct {
	Author          string                    `json:"author"`
	LifecycleState  string                    `json:"lifecycleState"`
	SpecificContent map[string]ugcShareContent `json:"specificContent"`
	Visibility      map[string]string         `json:"visibility"`
}

type ugcShareContent struct {
	ShareCommentary    ugcText    `json:"shareCommentary"`
	ShareMediaCategory string     `json:"shareMediaCategory"`
	Media              []ugcMedia `json:"media,omitempty"`
}

type ugcText struct {
	Text string `json:"text"`
}

type ugcMedia struct {
	Status      string `json:"status"`
	OriginalURL string `json:"originalUrl"`
}

func (a *linkedInAdapter) Publish(ctx context.Context, creds *models.PlatformCredentials, item *models.ContentItem) (string, error) {
	content := ugcShareContent{
		ShareCommentary:    ugcText{Text: composeText(item.Body)},
		ShareMediaCategory: "NONE",
	}
	if len(item.Body.MediaRefs) > 0 {
		content.ShareMediaCategory = "IMAGE"
		for _, ref := range item.Body.MediaRefs {
			content.Media = append(content.Media, ugcMedia{Status: "READY", OriginalURL: ref})
		}
	}

	reqBody := ugcPostRequest{
		Author:         "urn:li:person:" + creds.AccountID,
		LifecycleState: "PUBLISHED",
		SpecificContent: map[string]ugcShareContent{
			"com.linkedin.ugc.ShareContent": content,
		},
		Visibility: map[string]string{
			"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC",
		},
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("linkedin: marshal post: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, a.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/ugcPosts", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+creds.AccessToken)
		req.Header.Set("X-Restli-Protocol-Version", "2.0.0")
		return a.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("linkedin: request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return "", fmt.Errorf("linkedin: status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	postID := resp.Header.Get("X-Restli-Id")
	if postID == "" {
		var out struct {
			ID string `json:"id"`
		}
		if json.Unmarshal(raw, &out) == nil {
			postID = out.ID
		}
	}
	if postID == "" {
		return "", fmt.Errorf("linkedin: no post id in response")
	}
	return "https://www.linkedin.com/feed/update/" + postID, nil
}
