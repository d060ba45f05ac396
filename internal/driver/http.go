package driver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"clipflow/internal/config"
	"clipflow/internal/services"
)

const transientRetries = 3

// Bridge is the HTTP Driver implementation talking to an automation bridge
// process at the editor URL.
type Bridge struct {
	baseURL string
	token   string
	client  *http.Client
}

// BridgeOption configures the bridge client.
type BridgeOption func(*Bridge)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) BridgeOption {
	return func(b *Bridge) {
		if client != nil {
			b.client = client
		}
	}
}

// NewBridge builds a bridge client for one editor address.
func NewBridge(cfg *config.Config, editorURL string, opts ...BridgeOption) *Bridge {
	b := &Bridge{
		baseURL: strings.TrimRight(editorURL, "/"),
		token:   cfg.Driver.BridgeToken,
		client: &http.Client{
			Timeout: time.Duration(cfg.Driver.RequestTimeout) * time.Second,
		},
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// NewFactory returns a Factory producing bridge clients from the config.
func NewFactory(cfg *config.Config) Factory {
	return func(editorURL string) Driver {
		return NewBridge(cfg, editorURL)
	}
}

func (b *Bridge) OpenWorkspace(ctx context.Context) error {
	return b.action(ctx, "workspace/open", nil)
}

func (b *Bridge) WorkspaceReady(ctx context.Context) (bool, error) {
	return b.check(ctx, "workspace/ready")
}

func (b *Bridge) TimelineReady(ctx context.Context) (bool, error) {
	return b.check(ctx, "timeline/ready")
}

func (b *Bridge) Upload(ctx context.Context, path string) error {
	return b.action(ctx, "media/upload", map[string]string{"path": path})
}

func (b *Bridge) UploadStarted(ctx context.Context) (bool, error) {
	return b.check(ctx, "media/upload/started")
}

func (b *Bridge) TranscodeComplete(ctx context.Context) (bool, error) {
	return b.check(ctx, "media/transcode/complete")
}

func (b *Bridge) IndexingComplete(ctx context.Context) (bool, error) {
	return b.check(ctx, "media/indexing/complete")
}

func (b *Bridge) MediaReady(ctx context.Context) (bool, error) {
	return b.check(ctx, "media/ready")
}

func (b *Bridge) PlaceOnTimeline(ctx context.Context) error {
	return b.action(ctx, "timeline/place", nil)
}

func (b *Bridge) Rename(ctx context.Context, name string) error {
	return b.action(ctx, "clip/rename", map[string]string{"name": name})
}

func (b *Bridge) ApplyTransform(ctx context.Context) error {
	return b.action(ctx, "transform/apply", nil)
}

func (b *Bridge) TransformComplete(ctx context.Context) (bool, error) {
	return b.check(ctx, "transform/complete")
}

func (b *Bridge) Save(ctx context.Context) error {
	return b.action(ctx, "project/save", nil)
}

func (b *Bridge) SaveComplete(ctx context.Context) (bool, error) {
	return b.check(ctx, "project/save/complete")
}

func (b *Bridge) Close(ctx context.Context) error {
	return b.action(ctx, "session/close", nil)
}

type bridgeResponse struct {
	OK        bool   `json:"ok"`
	Done      bool   `json:"done"`
	Error     string `json:"error,omitempty"`
	Transient bool   `json:"transient,omitempty"`
}

func (b *Bridge) action(ctx context.Context, endpoint string, payload map[string]string) error {
	resp, err := b.roundTrip(ctx, http.MethodPost, endpoint, payload)
	if err != nil {
		return err
	}
	if !resp.OK {
		msg := resp.Error
		if msg == "" {
			msg = "bridge reported failure"
		}
		if resp.Transient {
			return services.Wrap(services.ErrTransient, "", endpoint, msg, nil)
		}
		return fmt.Errorf("%s: %s", endpoint, msg)
	}
	return nil
}

func (b *Bridge) check(ctx context.Context, endpoint string) (bool, error) {
	resp, err := b.roundTrip(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return false, err
	}
	if resp.Error != "" && !resp.OK {
		return false, fmt.Errorf("%s: %s", endpoint, resp.Error)
	}
	return resp.Done, nil
}

func (b *Bridge) roundTrip(ctx context.Context, method, endpoint string, payload map[string]string) (*bridgeResponse, error) {
	target, err := url.JoinPath(b.baseURL, endpoint)
	if err != nil {
		return nil, fmt.Errorf("build bridge url: %w", err)
	}

	var out *bridgeResponse
	var permanent bool
	operation := func() error {
		var body io.Reader
		if payload != nil {
			data, err := json.Marshal(payload)
			if err != nil {
				permanent = true
				return backoff.Permanent(fmt.Errorf("marshal payload: %w", err))
			}
			body = bytes.NewReader(data)
		}

		req, err := http.NewRequestWithContext(ctx, method, target, body)
		if err != nil {
			permanent = true
			return backoff.Permanent(err)
		}
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if b.token != "" {
			req.Header.Set("Authorization", "Bearer "+b.token)
		}

		resp, err := b.client.Do(req)
		if err != nil {
			// Connection-level failures are retryable up to the budget.
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 500 {
			return fmt.Errorf("bridge returned %s", resp.Status)
		}
		if resp.StatusCode >= 400 {
			data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
			permanent = true
			return backoff.Permanent(fmt.Errorf("bridge returned %s: %s", resp.Status, strings.TrimSpace(string(data))))
		}

		decoded := &bridgeResponse{}
		if err := json.NewDecoder(resp.Body).Decode(decoded); err != nil {
			return fmt.Errorf("decode bridge response: %w", err)
		}
		out = decoded
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transientRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		if permanent {
			return nil, err
		}
		return nil, services.Wrap(services.ErrDriverUnavailable, "", endpoint, "bridge unreachable", err)
	}
	return out, nil
}
