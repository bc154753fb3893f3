package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Wire endpoint paths on the controller.
const (
	commandsPath = "/api/commands"
	statusPath   = "/api/status"
)

// HTTP transport tuning. The controller is a single embedded board, so
// the pool stays small but keeps connections warm between ticks.
const (
	maxIdleConns        = 10
	maxIdleConnsPerHost = 2
	idleConnTimeout     = 90 * time.Second

	// DefaultSendTimeout bounds a single batch send.
	DefaultSendTimeout = 5 * time.Second

	// maxResponseBytes caps how much of a controller reply is read.
	maxResponseBytes = 4 << 10
)

// Wire action names understood by the controller firmware.
const (
	ActSetPower = "setPwr"
	ActSetState = "setSt"
)

// WireCommand is one command in a batch, in the controller's wire form.
// Val is a number for setPwr and a boolean for setSt.
type WireCommand struct {
	Dev string `json:"dev"`
	Act string `json:"act"`
	Val any    `json:"val"`
	Dur int64  `json:"dur,omitempty"`
}

// Batch is the outbound envelope: one POST per scheduler tick.
type Batch struct {
	ID   string        `json:"id"`
	TS   int64         `json:"ts"` // epoch milliseconds
	Cmds []WireCommand `json:"cmds"`
}

// ControllerStatus is the reply to a status probe.
type ControllerStatus struct {
	Status  string `json:"status"`
	Devices int    `json:"devices"`
}

// Online reports whether the controller declared itself healthy.
func (s ControllerStatus) Online() bool {
	return s.Status == "online"
}

// Logger defines the logging interface used by this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// ClientConfig carries the client's settings.
type ClientConfig struct {
	// BaseURL is the root URL of the controller's HTTP server,
	// e.g. "http://192.168.4.1".
	BaseURL string

	// SendTimeout bounds a single batch send.
	// Zero means DefaultSendTimeout.
	SendTimeout time.Duration
}

// Client delivers wire-format command batches to the controller.
//
// All methods are safe for concurrent use.
type Client struct {
	baseURL     string
	sendTimeout time.Duration
	http        *http.Client
	logger      Logger
}

// NewClient creates a controller client with a tuned connection pool.
func NewClient(cfg ClientConfig) *Client {
	timeout := cfg.SendTimeout
	if timeout <= 0 {
		timeout = DefaultSendTimeout
	}

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		sendTimeout: timeout,
		http: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        maxIdleConns,
				MaxIdleConnsPerHost: maxIdleConnsPerHost,
				IdleConnTimeout:     idleConnTimeout,
			},
		},
		logger: noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// BaseURL returns the controller base URL the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Send POSTs one command batch to the controller.
//
// The send is bounded by the configured timeout on top of whatever
// deadline ctx already carries. Failures come back as errors wrapping
// ErrSendFailed or ErrBadStatus; Send never panics.
func (c *Client) Send(ctx context.Context, batch Batch) error {
	payload, err := json.Marshal(batch)
	if err != nil {
		return fmt.Errorf("%w: marshalling batch: %v", ErrSendFailed, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+commandsPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("%w: building request: %v", ErrSendFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	// Drain so the connection returns to the pool
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	c.logger.Debug("batch sent",
		"batch_id", batch.ID,
		"commands", len(batch.Cmds),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

// Probe fetches the controller's status endpoint.
func (c *Client) Probe(ctx context.Context) (ControllerStatus, error) {
	ctx, cancel := context.WithTimeout(ctx, c.sendTimeout)
	defer cancel()

	return probeURL(ctx, c.http, c.baseURL)
}

// probeURL performs one status probe against an arbitrary base URL.
// Shared with the discovery sweep.
func probeURL(ctx context.Context, client *http.Client, baseURL string) (ControllerStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+statusPath, nil)
	if err != nil {
		return ControllerStatus{}, fmt.Errorf("%w: building request: %v", ErrSendFailed, err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return ControllerStatus{}, fmt.Errorf("%w: %v", ErrSendFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return ControllerStatus{}, fmt.Errorf("%w: %d", ErrBadStatus, resp.StatusCode)
	}

	var status ControllerStatus
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&status); err != nil {
		return ControllerStatus{}, fmt.Errorf("%w: decoding status: %v", ErrSendFailed, err)
	}
	return status, nil
}
