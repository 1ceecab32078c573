package api_client_service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"display-push-service/controller/request"
	"display-push-service/controller/respond"
	"display-push-service/models"
)

const (
	MessagesEndpoint = "/messages"

	DefaultTimeout = 10 * time.Second
)

var (
	// ErrConnectivity 服务端不可达：连接失败、超时或网关错误，可在重连后重试
	ErrConnectivity = errors.New("server unreachable")
	// ErrRejected 服务端明确拒绝了请求
	ErrRejected = errors.New("request rejected by server")
)

// Client 管理端发送方使用的 HTTP 客户端
type Client struct {
	httpClient *http.Client
	baseURL    string
}

func NewClient(baseURL string) *Client {
	return NewClientWithTimeout(baseURL, DefaultTimeout)
}

func NewClientWithTimeout(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
	}
}

// IsConnectivityError reports whether err means the server could not be reached.
func IsConnectivityError(err error) bool {
	return errors.Is(err, ErrConnectivity)
}

// Send replays a queued request against its endpoint.
func (c *Client) Send(ctx context.Context, item *models.QueuedSendRequest) error {
	_, err := c.post(ctx, item.Endpoint, item.Payload)
	return err
}

// CreateMessage POST /messages
func (c *Client) CreateMessage(ctx context.Context, req *request.CreateMessageReq) (*respond.SendMessageResp, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal message: %w", err)
	}
	data, err := c.post(ctx, MessagesEndpoint, body)
	if err != nil {
		return nil, err
	}
	var result respond.SendMessageResp
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode send result: %w", err)
	}
	return &result, nil
}

func (c *Client) post(ctx context.Context, endpoint string, payload []byte) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read response: %v", ErrConnectivity, err)
	}

	switch {
	case resp.StatusCode == http.StatusBadGateway,
		resp.StatusCode == http.StatusServiceUnavailable,
		resp.StatusCode == http.StatusGatewayTimeout:
		return nil, fmt.Errorf("%w: status %d", ErrConnectivity, resp.StatusCode)
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, apiMessage(body))
	}

	var envelope struct {
		Code    int             `json:"code"`
		Message string          `json:"message"`
		Data    json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	if envelope.Code != respond.HttpsCodeSuccess {
		return nil, fmt.Errorf("%w: code %d: %s", ErrRejected, envelope.Code, envelope.Message)
	}
	return envelope.Data, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return fmt.Errorf("%w: %v", ErrConnectivity, err)
	}
	return fmt.Errorf("failed to send request: %w", err)
}

func apiMessage(body []byte) string {
	var m respond.Message
	if err := json.Unmarshal(body, &m); err == nil && m.Message != "" {
		return m.Message
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}
