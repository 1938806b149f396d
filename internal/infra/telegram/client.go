package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/focusgroup/focusbot/internal/domain"
	"github.com/focusgroup/focusbot/internal/infra/metrics"
)

const defaultAPIBase = "https://api.telegram.org"

// Config configures the Bot API client.
type Config struct {
	Token   string
	APIBase string
	Timeout time.Duration
	Logger  *slog.Logger
}

// Client sends messages through the Bot API. It implements domain.Sender.
type Client struct {
	token   string
	apiBase string
	http    *http.Client
	log     *slog.Logger
}

var _ domain.Sender = (*Client)(nil)

// NewClient creates a Bot API client.
func NewClient(cfg Config) *Client {
	c := &Client{
		token:   cfg.Token,
		apiBase: strings.TrimRight(cfg.APIBase, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
		log:     cfg.Logger,
	}
	if c.apiBase == "" {
		c.apiBase = defaultAPIBase
	}
	if c.http.Timeout == 0 {
		c.http.Timeout = 10 * time.Second
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	c.log = c.log.With("component", "telegram")
	return c
}

// Enabled reports whether a bot token is configured.
func (c *Client) Enabled() bool { return c.token != "" }

type sendMessageRequest struct {
	ChatID           int64  `json:"chat_id"`
	Text             string `json:"text"`
	ParseMode        string `json:"parse_mode,omitempty"`
	MessageThreadID  int64  `json:"message_thread_id,omitempty"`
	ReplyToMessageID int64  `json:"reply_to_message_id,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
	Result      json.RawMessage `json:"result,omitempty"`
}

// APIError is a non-ok answer from the Bot API.
type APIError struct {
	Status      int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram API error (%d): %s", e.Status, e.Description)
}

// IsRetryable reports whether a Send error may succeed on a later attempt:
// transport failures, rate limits and server errors. A missing token or a
// rejected request is final.
func IsRetryable(err error) bool {
	if err == nil || errors.Is(err, domain.ErrSenderDisabled) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500
	}
	return true
}

// Send posts text to chatID as HTML. If Telegram rejects the markup the
// message is sent again as plain text.
func (c *Client) Send(ctx context.Context, chatID int64, text string, opts domain.SendOptions) (*domain.SentMessage, error) {
	if !c.Enabled() {
		return nil, domain.ErrSenderDisabled
	}

	req := sendMessageRequest{ChatID: chatID, Text: text, ParseMode: "HTML"}
	if opts.ReplyTo != nil {
		req.ReplyToMessageID = *opts.ReplyTo
	}
	if opts.ThreadID != nil {
		req.MessageThreadID = *opts.ThreadID
	}

	reqID := uuid.NewString()
	sent, err := c.sendMessage(ctx, req)
	var apiErr *APIError
	if err != nil && errors.As(err, &apiErr) && strings.Contains(strings.ToLower(apiErr.Description), "parse") {
		c.log.Warn("markup rejected, retrying as plain text", "request_id", reqID, "chat_id", chatID, "error", apiErr.Description)
		req.ParseMode = ""
		sent, err = c.sendMessage(ctx, req)
	}
	if err != nil {
		metrics.MessagesSent.WithLabelValues("error").Inc()
		c.log.Error("send failed", "request_id", reqID, "chat_id", chatID, "error", err)
		return nil, err
	}
	metrics.MessagesSent.WithLabelValues("ok").Inc()
	c.log.Debug("message sent", "request_id", reqID, "chat_id", chatID, "message_id", sent.MessageID)
	return sent, nil
}

func (c *Client) sendMessage(ctx context.Context, req sendMessageRequest) (*domain.SentMessage, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal sendMessage: %w", err)
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.token)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		// The URL carries the token; keep it out of logs.
		return nil, fmt.Errorf("sendMessage request failed: %w", redact(err, c.token))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read sendMessage response: %w", err)
	}

	var out apiResponse
	if err := json.Unmarshal(respBody, &out); err != nil {
		return nil, &APIError{Status: resp.StatusCode, Description: strings.TrimSpace(string(respBody))}
	}
	if !out.OK || resp.StatusCode != http.StatusOK {
		return nil, &APIError{Status: resp.StatusCode, Description: out.Description}
	}

	var msg Message
	if err := json.Unmarshal(out.Result, &msg); err != nil {
		return nil, fmt.Errorf("decode sent message: %w", err)
	}
	return &domain.SentMessage{ChatID: msg.Chat.ID, MessageID: msg.MessageID}, nil
}

type redactedError struct{ msg string }

func (e redactedError) Error() string { return e.msg }

func redact(err error, token string) error {
	if token == "" {
		return err
	}
	return redactedError{msg: strings.ReplaceAll(err.Error(), token, "<token>")}
}
