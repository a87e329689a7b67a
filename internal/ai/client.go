// Package ai wraps the Gemini API behind the three collaborator ports the
// reconciler needs: text completion, audio transcription, and image
// description.
package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"

	"zapleads_backend/platform/logger"
)

const (
	RoleSystem = "system"
	RoleUser   = "user"
	RoleModel  = "model"
)

// Message is one turn of completion input.
type Message struct {
	Role string
	Text string
}

type Config struct {
	APIKey  string
	Model   string
	Timeout time.Duration
}

type Client struct {
	genai   *genai.Client
	model   string
	timeout time.Duration
	log     *logger.Logger
}

func NewClient(ctx context.Context, cfg Config, log *logger.Logger) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("ai: missing API key")
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-2.0-flash"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}

	return &Client{genai: client, model: cfg.Model, timeout: cfg.Timeout, log: log}, nil
}

// Complete generates the next reply for the assembled context. System turns
// are folded into the system instruction; the rest become the conversation.
func (c *Client) Complete(ctx context.Context, messages []Message) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var system []string
	var contents []*genai.Content
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			system = append(system, msg.Text)
		case RoleModel:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleModel,
				Parts: []*genai.Part{genai.NewPartFromText(msg.Text)},
			})
		default:
			contents = append(contents, &genai.Content{
				Role:  genai.RoleUser,
				Parts: []*genai.Part{genai.NewPartFromText(msg.Text)},
			})
		}
	}

	var config *genai.GenerateContentConfig
	if len(system) > 0 {
		config = &genai.GenerateContentConfig{
			SystemInstruction: &genai.Content{
				Parts: []*genai.Part{genai.NewPartFromText(strings.Join(system, "\n\n"))},
			},
		}
	}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("completion returned empty text")
	}
	return text, nil
}

// Transcribe converts an audio payload to text.
func (c *Client) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	return c.describeBytes(ctx, data, mimeType,
		"Transcribe this audio message verbatim. Return only the transcript text.")
}

// Describe returns a short textual description of an image so the rest of
// the pipeline can treat it as text. The sender caption, when present, is
// given as context.
func (c *Client) Describe(ctx context.Context, data []byte, mimeType, caption string) (string, error) {
	prompt := "Describe this image in one or two sentences, focusing on anything relevant to a health plan conversation."
	if caption != "" {
		prompt += " The sender captioned it: " + caption
	}
	return c.describeBytes(ctx, data, mimeType, prompt)
}

func (c *Client) describeBytes(ctx context.Context, data []byte, mimeType, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	contents := []*genai.Content{{
		Role: genai.RoleUser,
		Parts: []*genai.Part{
			{InlineData: &genai.Blob{Data: data, MIMEType: mimeType}},
			genai.NewPartFromText(prompt),
		},
	}}

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("media understanding: %w", err)
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return "", fmt.Errorf("media understanding returned empty text")
	}
	return text, nil
}
