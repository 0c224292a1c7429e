package evolution

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	defaultTimeout  = 10 * time.Second
	instanceTimeout = 15 * time.Second
	audioTimeout    = 60 * time.Second
	downloadTimeout = 30 * time.Second
)

var (
	// ErrMissingConfig is a configuration failure detected before any
	// network call, distinct from transport failures.
	ErrMissingConfig = errors.New("missing gateway configuration")
	// ErrInvalidResponse marks a non-JSON or unexpected-shape reply.
	ErrInvalidResponse = errors.New("invalid gateway response")
)

// Client talks to one gateway instance over its configured base URL, all
// calls authenticated with the static admin API key header.
type Client struct {
	httpClient *http.Client
	apiURL     string
	adminToken string
	instance   string
}

// NewClient validates the channel's gateway configuration and returns a
// client. Missing base URL, admin token or instance name short-circuit here.
func NewClient(apiURL, adminToken, instanceName string) (*Client, error) {
	apiURL = strings.TrimRight(strings.TrimSpace(apiURL), "/")
	if apiURL == "" {
		return nil, fmt.Errorf("%w: api url", ErrMissingConfig)
	}
	if strings.TrimSpace(adminToken) == "" {
		return nil, fmt.Errorf("%w: admin token", ErrMissingConfig)
	}
	if strings.TrimSpace(instanceName) == "" {
		return nil, fmt.Errorf("%w: instance name", ErrMissingConfig)
	}
	return &Client{
		httpClient: &http.Client{},
		apiURL:     apiURL,
		adminToken: adminToken,
		instance:   strings.TrimSpace(instanceName),
	}, nil
}

func (c *Client) Instance() string { return c.instance }

// replyContext merges the redundant reply-id encodings different gateway
// versions understand into one outgoing payload.
func replyContext(replyTo string) map[string]any {
	if replyTo == "" {
		return nil
	}
	return map[string]any{
		"contextInfo": map[string]any{
			"stanzaId":      replyTo,
			"quotedMessage": map[string]any{"key": map[string]any{"id": replyTo}},
		},
		"context":     map[string]any{"id": replyTo},
		"quoted":      map[string]any{"key": map[string]any{"id": replyTo}},
		"quotedMsgId": replyTo,
	}
}

func cleanNumber(number string) string {
	return strings.NewReplacer("+", "", " ", "", "-", "").Replace(number)
}

// SendText delivers a text message, including the reply-context block when
// the message quotes another. Returns the provider-assigned message id.
func (c *Client) SendText(ctx context.Context, number, text, replyTo string) (string, error) {
	body := map[string]any{
		"number": cleanNumber(number),
		"text":   text,
	}
	mergeInto(body, replyContext(replyTo))

	return c.sendMessage(ctx, "sendText", body, defaultTimeout)
}

// SendMedia delivers image, video or document media by URL. File attachments
// are sent with mediatype document.
func (c *Client) SendMedia(ctx context.Context, number, mediaType, mediaURL, caption, fileName, replyTo string) (string, error) {
	if mediaType == "file" {
		mediaType = "document"
	}
	body := map[string]any{
		"number":    cleanNumber(number),
		"mediatype": mediaType,
		"media":     mediaURL,
		"caption":   caption,
		"fileName":  fileName,
	}
	mergeInto(body, replyContext(replyTo))

	return c.sendMessage(ctx, "sendMedia", body, defaultTimeout)
}

// SendAudioURL attempts audio delivery via a publicly reachable URL.
func (c *Client) SendAudioURL(ctx context.Context, number, audioURL, replyTo string) (string, error) {
	body := map[string]any{
		"number": cleanNumber(number),
		"audio":  audioURL,
	}
	mergeInto(body, replyContext(replyTo))

	return c.sendMessage(ctx, "sendWhatsAppAudio", body, audioTimeout)
}

// SendAudioBase64 delivers audio as an embedded base64 string, the fallback
// for storage configurations whose URLs the gateway rejects.
func (c *Client) SendAudioBase64(ctx context.Context, number, encoded, replyTo string) (string, error) {
	body := map[string]any{
		"number": cleanNumber(number),
		"audio":  encoded,
	}
	mergeInto(body, replyContext(replyTo))

	return c.sendMessage(ctx, "sendWhatsAppAudio", body, audioTimeout)
}

func (c *Client) sendMessage(ctx context.Context, endpoint string, body map[string]any, timeout time.Duration) (string, error) {
	target := fmt.Sprintf("%s/message/%s/%s", c.apiURL, endpoint, url.PathEscape(c.instance))

	var resp map[string]any
	if err := c.jsonRequest(ctx, http.MethodPost, target, body, &resp, timeout); err != nil {
		return "", err
	}

	if id := digString(resp, "key", "id"); id != "" {
		return id, nil
	}
	return digString(resp, "messageId"), nil
}

// DownloadMedia fetches remote media with the channel's authentication
// headers.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("apikey", c.adminToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("media download failed: status=%d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// ServerStatus checks the gateway root endpoint and returns its info body.
func (c *Client) ServerStatus(ctx context.Context) (map[string]any, error) {
	var resp map[string]any
	if err := c.jsonRequest(ctx, http.MethodGet, c.apiURL+"/", nil, &resp, defaultTimeout); err != nil {
		return nil, err
	}
	return resp, nil
}

// FetchInstances queries the gateway for this client's instance. A 404 means
// the instance does not exist.
func (c *Client) FetchInstances(ctx context.Context) ([]map[string]any, error) {
	target := fmt.Sprintf("%s/instance/fetchInstances?instanceName=%s", c.apiURL, url.QueryEscape(c.instance))

	var resp []map[string]any
	if err := c.jsonRequest(ctx, http.MethodGet, target, nil, &resp, defaultTimeout); err != nil {
		return nil, err
	}
	return resp, nil
}

// CreateInstanceRequest carries the provisioning parameters for a new
// gateway instance bound to a phone number and webhook.
type CreateInstanceRequest struct {
	PhoneNumber string
	WebhookURL  string
}

// webhookEvents is the event subscription requested on instance creation.
var webhookEvents = []string{
	"MESSAGES_UPSERT",
	"MESSAGES_UPDATE",
	"MESSAGES_DELETE",
	"CONTACTS_UPDATE",
	"CONNECTION_UPDATE",
	"QRCODE_UPDATED",
}

// CreateInstance provisions the instance on the gateway, subscribing the
// given webhook to the pipeline's events with inline base64 media enabled.
func (c *Client) CreateInstance(ctx context.Context, req CreateInstanceRequest) (map[string]any, error) {
	body := map[string]any{
		"instanceName": c.instance,
		"number":       cleanNumber(req.PhoneNumber),
		"integration":  "WHATSAPP-BAILEYS",
		"qrcode":       false,
		"webhook": map[string]any{
			"url":      req.WebhookURL,
			"byEvents": false,
			"base64":   true,
			"events":   webhookEvents,
		},
	}

	var resp map[string]any
	if err := c.jsonRequest(ctx, http.MethodPost, c.apiURL+"/instance/create", body, &resp, instanceTimeout); err != nil {
		return nil, err
	}
	return resp, nil
}

// DeleteInstance removes the instance from the gateway.
func (c *Client) DeleteInstance(ctx context.Context) error {
	target := fmt.Sprintf("%s/instance/delete/%s", c.apiURL, url.PathEscape(c.instance))
	return c.jsonRequest(ctx, http.MethodDelete, target, nil, nil, instanceTimeout)
}

// ConnectQR retrieves the pairing QR code for the instance.
func (c *Client) ConnectQR(ctx context.Context) (map[string]any, error) {
	target := fmt.Sprintf("%s/instance/connect/%s", c.apiURL, url.PathEscape(c.instance))

	var resp map[string]any
	if err := c.jsonRequest(ctx, http.MethodGet, target, nil, &resp, instanceTimeout); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) jsonRequest(ctx context.Context, method, target string, body, dest any, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var bodyReader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.adminToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if resp.StatusCode >= 400 {
		logrus.Errorf("[EVOLUTION] %s %s: status=%d body=%s", method, target, resp.StatusCode, string(data))
		return fmt.Errorf("gateway error: status=%d", resp.StatusCode)
	}

	if dest != nil {
		if err := json.Unmarshal(data, dest); err != nil {
			logrus.Errorf("[EVOLUTION] malformed response from %s: %s", target, string(data))
			return ErrInvalidResponse
		}
	}
	return nil
}

func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
