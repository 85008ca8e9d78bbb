package publish

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/failsafe-go/failsafe-go"

	"beacon/pkg/clients"
	"beacon/pkg/models"
)

const facebookAPIBase = "https://graph.facebook.com/v18.0"

// facebookAdapter publishes to a page feed, or to the page photos endpoint
// when the item carries media.
type facebookAdapter struct {
	client   *http.Client
	executor failsafe.Executor[*http.Response]
	baseURL  string
}

func newFacebookAdapter(client *http.Client, executor failsafe.Executor[*http.Response]) *facebookAdapter {
	return &facebookAdapter{client: client, executor: executor, baseURL: facebookAPIBase}
}

func (a *facebookAdapter) Publish(ctx context.Context, creds *models.PlatformCredentials, item *models.ContentItem) (string, error) {
	pageID := creds.PageID
	if pageID == "" {
		pageID = creds.AccountID
	}
	message := composeText(item.Body)

	var endpoint string
	params := url.Values{"access_token": {creds.AccessToken}}
	if len(item.Body.MediaRefs) > 0 {
		endpoint = fmt.Sprintf("%s/%s/photos", a.baseURL, pageID)
		params.Set("url", item.Body.MediaRefs[0])
		params.Set("caption", message)
	} else {
		endpoint = fmt.Sprintf("%s/%s/feed", a.baseURL, pageID)
		params.Set("message", message)
	}

	var out struct {
		ID     string `json:"id"`
		PostID string `json:"post_id"`
	}
	resp, err := clients.ExecuteHTTP(ctx, a.executor, func() (*http.Response, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(params.Encode()))
		if reqErr != nil {
			return nil, reqErr
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		return a.client.Do(req)
	})
	if err != nil {
		return "", fmt.Errorf("facebook: request failed: %w", err)
	}
	if err := decodeGraphResponse(resp, &out); err != nil {
		return "", fmt.Errorf("facebook: %w", err)
	}

	postID := out.PostID
	if postID == "" {
		postID = out.ID
	}
	if postID == "" {
		return "", fmt.Errorf("facebook: no post id in response")
	}
	return "https://www.facebook.com/" + postID, nil
}
