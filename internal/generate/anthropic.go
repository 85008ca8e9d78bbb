package generate

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"beacon/pkg/clients"
)

// AnthropicConfig configures the Messages API client.
type AnthropicConfig struct {
	APIKey      string
	APIURL      string
	Model       string
	MaxTokens   int
	Temperature float64
}

const defaultAnthropicMaxTokens = 2048

// AnthropicGenerator drafts posts through the Anthropic Messages API.
type AnthropicGenerator struct {
	client      *http.Client
	executor    failsafe.Executor[*http.Response]
	apiKey      string
	apiURL      string
	model       string
	maxTokens   int
	temperature float64
}

func NewAnthropicGenerator(cfg AnthropicConfig) *AnthropicGenerator {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	temperature := cfg.Temperature
	if temperature <= 0 {
		temperature = 0.7
	}
	return &AnthropicGenerator{
		client: &http.Client{
			Timeout:   60 * time.Second,
			Transport: clients.DefaultTransport(),
		},
		executor:    clients.NewHTTPExecutor(clients.DefaultHTTPExecutorConfig()),
		apiKey:      cfg.APIKey,
		apiURL:      apiURL,
		model:       cfg.Model,
		maxTokens:   maxTokens,
		temperature: temperature,
	}
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature float64            `json:"temperature,omitempty"`
	System      string             `json:"system,omitempty"`
	Messages    []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Model   string `json:"model"`
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// draftPayload is the JSON document the model is instructed to return.
type draftPayload struct {
	Text        string   `json:"text"`
	Hashtags    []string `json:"hashtags"`
	Reasoning   string   `json:"reasoning"`
	ImagePrompt string   `json:"image_prompt"`
}

func (g *AnthropicGenerator) Generate(ctx context.Context, req Request) (*Result, error) {
	if g.model == "" {
		return nil, errors.New("anthropic model is required")
	}
	if req.Brand == nil {
		return nil, errors.New("brand is required")
	}

	body := anthropicRequest{
		Model:       g.model,
		MaxTokens:   g.maxTokens,
		Temperature: g.temperature,
		System:      systemPrompt(req),
		Messages: []anthropicMessage{
			{Role: "user", Content: userPrompt(req)},
		},
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := clients.ExecuteHTTP(ctx, g.executor, func() (*http.Response, error) {
		httpReq, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if g.apiKey != "" {
			httpReq.Header.Set("X-API-Key", g.apiKey)
		}
		httpReq.Header.Set("Anthropic-Version", "2023-06-01")
		return g.client.Do(httpReq)
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		raw, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(raw)))
	}

	var apiResp anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("anthropic: decode response: %w", err)
	}

	var text string
	for _, block := range apiResp.Content {
		if block.Type == "text" {
			text = block.Text
			break
		}
	}
	if text == "" {
		return nil, errors.New("anthropic: response contained no text content")
	}

	draft, err := parseDraft(text)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Text:         draft.Text,
		Hashtags:     draft.Hashtags,
		Reasoning:    draft.Reasoning,
		Model:        apiResp.Model,
		InputTokens:  apiResp.Usage.InputTokens,
		OutputTokens: apiResp.Usage.OutputTokens,
	}
	if req.WantImage {
		result.ImagePrompt = draft.ImagePrompt
		if draft.ImagePrompt == "" {
			result.ImageError = "model returned no image prompt"
		}
	}
	return result, nil
}

// parseDraft extracts the JSON document from the model output, tolerating
// surrounding prose and markdown code fences.
func parseDraft(text string) (*draftPayload, error) {
	trimmed := strings.TrimSpace(text)
	if strings.HasPrefix(trimmed, "```") {
		trimmed = strings.TrimPrefix(trimmed, "```json")
		trimmed = strings.TrimPrefix(trimmed, "```")
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}
	start := strings.Index(trimmed, "{")
	end := strings.LastIndex(trimmed, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("anthropic: no JSON object in model output")
	}

	var draft draftPayload
	if err := json.Unmarshal([]byte(trimmed[start:end+1]), &draft); err != nil {
		return nil, fmt.Errorf("anthropic: parse draft: %w", err)
	}
	if draft.Text == "" {
		return nil, errors.New("anthropic: draft has no text")
	}
	return &draft, nil
}

func systemPrompt(req Request) string {
	var sb strings.Builder
	sb.WriteString("You write social media posts for the brand ")
	sb.WriteString(req.Brand.Name)
	sb.WriteString(".\n")
	if req.Brand.Description != "" {
		sb.WriteString("Brand: " + req.Brand.Description + "\n")
	}
	if req.Brand.Tone != "" {
		sb.WriteString("Tone: " + req.Brand.Tone + "\n")
	}
	if req.Brand.TargetAudience != "" {
		sb.WriteString("Audience: " + req.Brand.TargetAudience + "\n")
	}
	if len(req.Brand.Topics) > 0 {
		sb.WriteString("Topics: " + strings.Join(req.Brand.Topics, ", ") + "\n")
	}
	if len(req.Brand.BannedPhrases) > 0 {
		sb.WriteString("Never use these phrases: " + strings.Join(req.Brand.BannedPhrases, ", ") + "\n")
	}
	sb.WriteString("Target platform: " + string(req.Platform) + ".\n")
	sb.WriteString(`Respond with a single JSON object: {"text": string, "hashtags": [string], "reasoning": string`)
	if req.WantImage {
		sb.WriteString(`, "image_prompt": string`)
	}
	sb.WriteString("}. No other output.")
	return sb.String()
}

func userPrompt(req Request) string {
	var sb strings.Builder
	if req.Prompt != "" {
		sb.WriteString("Instruction: " + req.Prompt + "\n")
	} else {
		sb.WriteString("Write a new post for this brand.\n")
	}
	if req.Feedback != "" {
		sb.WriteString("The previous version was rejected with this feedback, address it: " + req.Feedback + "\n")
	}
	if len(req.MediaRefs) > 0 {
		sb.WriteString(fmt.Sprintf("The post will carry %d attached media item(s); write text that fits them.\n", len(req.MediaRefs)))
	}
	if len(req.PreviousPosts) > 0 {
		sb.WriteString("Do not repeat the angle or wording of these recent posts:\n")
		for _, p := range req.PreviousPosts {
			sb.WriteString("- " + p + "\n")
		}
	}
	return sb.String()
}
