package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"

	"gitlab.com/servio/api/station-feedback-service/internal/apperrors"
	"gitlab.com/servio/api/station-feedback-service/internal/config"
	"gitlab.com/servio/api/station-feedback-service/pkg/logger"
	"gitlab.com/servio/api/station-feedback-service/pkg/utils"
)

// Maximum media payload accepted from the Graph API. Larger downloads are
// truncated at read and rejected.
const maxMediaBytes = 10 << 20 // 10 MiB

// Button is one interactive reply option. ID comes back verbatim as the
// button reply payload when the customer taps it.
type Button struct {
	ID    string
	Title string
}

// Client sends messages to a customer and fetches inbound media.
type Client interface {
	// SendText delivers a plain text message to the given phone number.
	SendText(ctx context.Context, to, body string) error
	// SendButtons delivers an interactive message with up to three reply buttons.
	SendButtons(ctx context.Context, to, body string, buttons []Button) error
	// DownloadMedia resolves a media handle and fetches its bytes plus MIME type.
	DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error)
}

// GraphClient talks to the Meta Graph API. When the channel is disabled by
// configuration every send is a logged no-op, which keeps the conversation
// engine exercisable in environments without WhatsApp credentials.
type GraphClient struct {
	cfg        config.WhatsAppConfig
	httpClient *http.Client
}

// NewGraphClient builds the Graph API client from configuration. A nil
// httpClient gets a default with the configured timeout.
func NewGraphClient(cfg config.WhatsAppConfig, httpClient *http.Client) *GraphClient {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &GraphClient{cfg: cfg, httpClient: httpClient}
}

type textPayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body string `json:"body"`
	} `json:"text"`
}

// SendText delivers a plain text message.
func (c *GraphClient) SendText(ctx context.Context, to, body string) error {
	if !c.cfg.Enabled {
		logger.FromContext(ctx).Debug("WhatsApp disabled, skipping text send",
			zap.String("to", utils.MaskPhone(to)))
		return nil
	}

	payload := textPayload{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = body
	return c.postMessage(ctx, payload)
}

type interactivePayload struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Interactive      struct {
		Type string `json:"type"`
		Body struct {
			Text string `json:"text"`
		} `json:"body"`
		Action struct {
			Buttons []interactiveButton `json:"buttons"`
		} `json:"action"`
	} `json:"interactive"`
}

type interactiveButton struct {
	Type  string `json:"type"`
	Reply struct {
		ID    string `json:"id"`
		Title string `json:"title"`
	} `json:"reply"`
}

// SendButtons delivers an interactive reply-button message.
func (c *GraphClient) SendButtons(ctx context.Context, to, body string, buttons []Button) error {
	if !c.cfg.Enabled {
		logger.FromContext(ctx).Debug("WhatsApp disabled, skipping button send",
			zap.String("to", utils.MaskPhone(to)))
		return nil
	}
	if len(buttons) == 0 || len(buttons) > 3 {
		return fmt.Errorf("%w: interactive messages require 1-3 buttons, got %d", apperrors.ErrBadRequest, len(buttons))
	}

	payload := interactivePayload{MessagingProduct: "whatsapp", To: to, Type: "interactive"}
	payload.Interactive.Type = "button"
	payload.Interactive.Body.Text = body
	for _, b := range buttons {
		ib := interactiveButton{Type: "reply"}
		ib.Reply.ID = b.ID
		ib.Reply.Title = b.Title
		payload.Interactive.Action.Buttons = append(payload.Interactive.Action.Buttons, ib)
	}
	return c.postMessage(ctx, payload)
}

func (c *GraphClient) postMessage(ctx context.Context, payload interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode message payload: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.cfg.GraphURL, c.cfg.PhoneID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build message request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: message send failed: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		logger.FromContext(ctx).Warn("Graph API rejected message",
			zap.Int("status", resp.StatusCode),
			zap.ByteString("response", respBody))
		return fmt.Errorf("%w: graph API returned %s", apperrors.ErrTransport, resp.Status)
	}
	return nil
}

type mediaMeta struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// DownloadMedia performs the two-step media fetch: resolve the handle to a
// short-lived download URL, then fetch the bytes with the same bearer token.
func (c *GraphClient) DownloadMedia(ctx context.Context, mediaID string) ([]byte, string, error) {
	if !c.cfg.Enabled {
		return nil, "", fmt.Errorf("%w: whatsapp channel disabled", apperrors.ErrTransport)
	}

	meta, err := c.resolveMedia(ctx, mediaID)
	if err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, meta.URL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to build media download request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("%w: media download failed: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, "", fmt.Errorf("%w: media download returned %s", apperrors.ErrTransport, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes+1))
	if err != nil {
		return nil, "", fmt.Errorf("%w: failed to read media body: %w", apperrors.ErrTransport, err)
	}
	if len(data) > maxMediaBytes {
		return nil, "", fmt.Errorf("%w: media exceeds %d bytes", apperrors.ErrBadRequest, maxMediaBytes)
	}

	logger.FromContext(ctx).Debug("Downloaded media",
		zap.String("media_id", mediaID),
		zap.String("mime_type", meta.MimeType),
		zap.String("size", utils.ByteCountSI(int64(len(data)))))
	return data, meta.MimeType, nil
}

func (c *GraphClient) resolveMedia(ctx context.Context, mediaID string) (*mediaMeta, error) {
	url := fmt.Sprintf("%s/%s", c.cfg.GraphURL, mediaID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build media resolve request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: media resolve failed: %w", apperrors.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: media resolve returned %s", apperrors.ErrTransport, resp.Status)
	}

	var meta mediaMeta
	if err := json.NewDecoder(resp.Body).Decode(&meta); err != nil {
		return nil, fmt.Errorf("%w: failed to decode media metadata: %w", apperrors.ErrTransport, err)
	}
	if meta.URL == "" {
		return nil, fmt.Errorf("%w: media metadata missing download url", apperrors.ErrTransport)
	}
	return &meta, nil
}

var _ Client = (*GraphClient)(nil)
