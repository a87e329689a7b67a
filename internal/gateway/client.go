// Package gateway is the HTTP client for the WhatsApp messaging gateway.
// Every call is fallible and callers must treat failures as expected events,
// not crashes.
package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"zapleads_backend/platform/logger"
	"zapleads_backend/platform/phone"
)

type Config struct {
	BaseURL  string
	APIKey   string
	Instance string
	RateRPS  float64
	Timeout  time.Duration
}

type Client struct {
	baseURL  string
	apiKey   string
	instance string
	http     *http.Client
	limiter  *rate.Limiter
	log      *logger.Logger
}

func NewClient(cfg Config, log *logger.Logger) *Client {
	if cfg.BaseURL == "" {
		return nil
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	rps := cfg.RateRPS
	if rps <= 0 {
		rps = 5
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:   cfg.APIKey,
		instance: cfg.Instance,
		http:     &http.Client{Timeout: cfg.Timeout},
		limiter:  rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		log:      log,
	}
}

type sendTextRequest struct {
	Number string `json:"number"`
	Text   string `json:"text"`
}

type sendTextResponse struct {
	Key struct {
		ID string `json:"id"`
	} `json:"key"`
}

// SendText sends a plain text message and returns the provider message id.
func (c *Client) SendText(ctx context.Context, phoneNumber, text string) (string, error) {
	if c == nil {
		return "", nil
	}

	payload := sendTextRequest{
		Number: strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+"),
		Text:   text,
	}

	var resp sendTextResponse
	if err := c.post(ctx, "/message/sendText/"+c.instance, payload, &resp); err != nil {
		return "", err
	}

	c.log.Info("gateway text sent", "phone", payload.Number)
	return resp.Key.ID, nil
}

type presenceRequest struct {
	Number   string `json:"number"`
	Presence string `json:"presence"`
	Delay    int    `json:"delay,omitempty"`
}

// SendPresence toggles the composing indicator for the chat.
func (c *Client) SendPresence(ctx context.Context, phoneNumber string, composing bool) error {
	if c == nil {
		return nil
	}

	presence := "paused"
	if composing {
		presence = "composing"
	}
	payload := presenceRequest{
		Number:   strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+"),
		Presence: presence,
	}
	return c.post(ctx, "/chat/sendPresence/"+c.instance, payload, nil)
}

type sendMediaRequest struct {
	Number    string `json:"number"`
	MediaType string `json:"mediatype"`
	Media     string `json:"media"`
	Caption   string `json:"caption,omitempty"`
}

// SendMedia sends raw media bytes as a base64 payload.
func (c *Client) SendMedia(ctx context.Context, phoneNumber, mediaType string, data []byte, caption string) error {
	if c == nil {
		return nil
	}

	payload := sendMediaRequest{
		Number:    strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+"),
		MediaType: mediaType,
		Media:     base64.StdEncoding.EncodeToString(data),
		Caption:   caption,
	}
	return c.post(ctx, "/message/sendMedia/"+c.instance, payload, nil)
}

type mediaRequest struct {
	MessageID string `json:"messageId"`
}

type mediaResponse struct {
	Base64   string `json:"base64"`
	Mimetype string `json:"mimetype"`
}

// GetMediaBytes downloads the media attached to a provider message.
func (c *Client) GetMediaBytes(ctx context.Context, providerMessageID string) ([]byte, string, error) {
	if c == nil {
		return nil, "", fmt.Errorf("gateway not configured")
	}

	var resp mediaResponse
	if err := c.post(ctx, "/chat/getBase64FromMediaMessage/"+c.instance, mediaRequest{MessageID: providerMessageID}, &resp); err != nil {
		return nil, "", err
	}

	data, err := base64.StdEncoding.DecodeString(resp.Base64)
	if err != nil {
		return nil, "", fmt.Errorf("decode media payload: %w", err)
	}
	return data, resp.Mimetype, nil
}

type profilePictureRequest struct {
	Number string `json:"number"`
}

type profilePictureResponse struct {
	ProfilePictureURL string `json:"profilePictureUrl"`
}

// GetProfilePicture returns the avatar URL for a phone, empty when none.
func (c *Client) GetProfilePicture(ctx context.Context, phoneNumber string) (string, error) {
	if c == nil {
		return "", nil
	}

	payload := profilePictureRequest{
		Number: strings.TrimPrefix(phone.NormalizeE164(phoneNumber), "+"),
	}
	var resp profilePictureResponse
	if err := c.post(ctx, "/chat/fetchProfilePictureUrl/"+c.instance, payload, &resp); err != nil {
		return "", err
	}
	return resp.ProfilePictureURL, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal gateway payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("apikey", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read gateway response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("gateway returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if out != nil && len(data) > 0 {
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("decode gateway response: %w", err)
		}
	}
	return nil
}
