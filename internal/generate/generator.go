// Package generate is the boundary to the AI drafting collaborator. The
// orchestrator and the generation scheduler hand work to a Runner; callers
// observe progress by polling the item's generation status.
package generate

import (
	"context"

	"beacon/pkg/models"
)

// Request carries everything the collaborator needs to draft one post.
type Request struct {
	Brand    *models.Brand
	Platform models.Platform

	// Prompt is an optional operator instruction for this specific draft.
	Prompt string

	// Feedback is set on regeneration and explains what was wrong with the
	// previous version.
	Feedback string

	// PreviousPosts are recent drafts for the same brand and platform, used
	// as negative examples to avoid repetition. Capped by the caller.
	PreviousPosts []string

	MediaRefs []string
	WantImage bool
}

// Result is a finished draft. An image failure is reported through
// ImageError and never fails the draft as a whole.
type Result struct {
	Text        string
	Hashtags    []string
	Reasoning   string
	ImageURL    string
	ImagePrompt string
	ImageError  string

	Model        string
	InputTokens  int
	OutputTokens int
}

// Generator produces one draft per call.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Result, error)
}
