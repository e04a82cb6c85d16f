// Package genai is the client for the text generation and vision
// classification collaborator. Prompts go out, text comes back; every
// structured interpretation of that text lives in parse.go so the
// transport stays dumb.
package genai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const (
	messagesURL = "https://api.anthropic.com/v1/messages"
	apiVersion  = "2023-06-01"

	defaultMaxTokens = 2048
)

// Message is one chat turn sent to the generator.
type Message struct {
	Role string // "user" | "assistant"
	Text string
}

// Client talks to the messages API for both text generation and image
// classification.
type Client struct {
	apiKey      string
	model       string
	visionModel string
	http        *http.Client
	logger      *slog.Logger
}

func New(apiKey, model, visionModel string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		apiKey:      apiKey,
		model:       model,
		visionModel: visionModel,
		http:        &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// Configured reports whether the client has credentials. An unconfigured
// client makes every caller fall back to its deterministic path.
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

type contentBlock struct {
	Type   string       `json:"type"`
	Text   string       `json:"text,omitempty"`
	Source *imageSource `json:"source,omitempty"`
}

type imageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type apiMessage struct {
	Role    string         `json:"role"`
	Content []contentBlock `json:"content"`
}

type apiRequest struct {
	Model     string       `json:"model"`
	MaxTokens int          `json:"max_tokens"`
	System    string       `json:"system,omitempty"`
	Messages  []apiMessage `json:"messages"`
}

type apiResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

// Complete sends a system prompt plus conversation turns and returns the
// generated text.
func (c *Client) Complete(ctx context.Context, system string, messages []Message) (string, error) {
	if !c.Configured() {
		return "", fmt.Errorf("generator not configured")
	}

	req := apiRequest{
		Model:     c.model,
		MaxTokens: defaultMaxTokens,
		System:    system,
	}
	for _, m := range messages {
		req.Messages = append(req.Messages, apiMessage{
			Role:    m.Role,
			Content: []contentBlock{{Type: "text", Text: m.Text}},
		})
	}

	text, err := c.send(ctx, req)
	if err != nil {
		return "", err
	}
	c.logger.Debug("generator completion", "model", c.model, "chars", len(text))
	return text, nil
}

// ClassifyImage is one image handed to the vision classifier.
type ClassifyImage struct {
	MediaType string
	Data      []byte
}

// Classify asks the vision model which images show genuine work by a
// business in the given trade. The result has one verdict per input image,
// in order; a malformed reply marks every image as not-work, which callers
// treat as "fall back to the size heuristic".
func (c *Client) Classify(ctx context.Context, images []ClassifyImage, tradeHint string) ([]bool, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("generator not configured")
	}
	if len(images) == 0 {
		return nil, nil
	}

	blocks := make([]contentBlock, 0, len(images)+1)
	for i, img := range images {
		blocks = append(blocks, contentBlock{Type: "text", Text: fmt.Sprintf("IMAGE_%d:", i+1)})
		blocks = append(blocks, contentBlock{
			Type: "image",
			Source: &imageSource{
				Type:      "base64",
				MediaType: img.MediaType,
				Data:      base64.StdEncoding.EncodeToString(img.Data),
			},
		})
	}
	blocks = append(blocks, contentBlock{Type: "text", Text: classifyPrompt(tradeHint, len(images))})

	text, err := c.send(ctx, apiRequest{
		Model:     c.visionModel,
		MaxTokens: 512,
		Messages:  []apiMessage{{Role: "user", Content: blocks}},
	})
	if err != nil {
		return nil, err
	}

	verdicts := parseVerdicts(text, len(images))
	c.logger.Debug("vision classification", "images", len(images), "kept", countTrue(verdicts))
	return verdicts, nil
}

func classifyPrompt(tradeHint string, n int) string {
	trade := tradeHint
	if trade == "" {
		trade = "trade services"
	}
	return fmt.Sprintf(
		"For each of the %d images above, decide whether it shows genuine completed work "+
			"or work in progress by a %s business (job sites, finished installations, "+
			"before/after shots). Logos, stock photos, icons, maps, headshots and unrelated "+
			"graphics are not work. Reply with one line per image, nothing else:\n"+
			"IMAGE_1: WORK or IMAGE_1: SKIP\n...\nIMAGE_%d: WORK or IMAGE_%d: SKIP",
		n, trade, n, n)
}

func countTrue(bs []bool) int {
	n := 0
	for _, b := range bs {
		if b {
			n++
		}
	}
	return n
}

func (c *Client) send(ctx context.Context, apiReq apiRequest) (string, error) {
	payload, err := json.Marshal(apiReq)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, messagesURL, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generator request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("generator returned %d: %s", resp.StatusCode, truncateBody(body))
	}

	var result apiResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if result.Error != nil {
		return "", fmt.Errorf("generator error: %s", result.Error.Message)
	}

	var text string
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return "", fmt.Errorf("generator returned no text")
	}
	return text, nil
}

func truncateBody(body []byte) string {
	if len(body) > 256 {
		body = body[:256]
	}
	return string(body)
}
