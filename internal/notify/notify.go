// Package notify tells approvers when a draft is ready for review.
// Notifications are fire-and-forget; a failed email never fails the draft.
package notify

import (
	"context"
	"fmt"
	"time"

	"beacon/pkg/email"
	"beacon/pkg/logging"
	"beacon/pkg/models"
)

type Notifier struct {
	sender  *email.Sender
	logger  logging.Logger
	baseURL string
}

// New builds a notifier. baseURL is the dashboard root used to link approvers
// to the review page.
func New(sender *email.Sender, baseURL string, logger logging.Logger) *Notifier {
	return &Notifier{sender: sender, baseURL: baseURL, logger: logger}
}

// ApprovalNeeded emails the brand's approvers about a draft awaiting review.
func (n *Notifier) ApprovalNeeded(ctx context.Context, brand *models.Brand, item *models.ContentItem) {
	if n.sender == nil || !n.sender.IsConfigured() {
		return
	}
	if len(brand.Approvers) == 0 {
		n.logger.WithField("brand_id", brand.ID).Debug("No approvers configured, skipping notification")
		return
	}

	subject := fmt.Sprintf("[%s] New %s draft awaiting approval", brand.Name, item.Platform)
	body := fmt.Sprintf(`<p>A new draft for <strong>%s</strong> on %s is ready for review.</p>
<blockquote>%s</blockquote>
<p><a href="%s/content/%s">Review it here</a>.</p>`,
		brand.Name, item.Platform, item.Body.Text, n.baseURL, item.ID)

	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		for _, approver := range brand.Approvers {
			if err := n.sender.SendMail(sendCtx, approver, subject, body); err != nil {
				n.logger.WithError(err).WithFields(logging.Fields{
					"brand_id":   brand.ID,
					"content_id": item.ID,
					"to":         approver,
				}).Error("Failed to send approval notification")
			}
		}
	}()
}
