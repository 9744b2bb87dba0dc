package collector

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/BusBom/rpi-server/auth"
	"github.com/BusBom/rpi-server/core/model"
	"github.com/BusBom/rpi-server/infra/logger"
)

const maxBody = 1 << 20

// Client fetches the stop status and the approach queue over HTTP. It
// implements dispatch.Sampler and dispatch.QueueSource.
type Client struct {
	cfg  Config
	http *http.Client
	auth *auth.ClientCred
	log  logger.Logger
}

// NewClient builds a Client, loading the TLS material when configured.
func NewClient(cfg Config) (*Client, error) {
	cfg.SetDefaults()
	if cfg.StopStatusURL == "" {
		return nil, fmt.Errorf("collector: stop_status_url is required")
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	if cfg.TLSEnabled() {
		tlsCfg, err := loadTLSConfig(cfg)
		if err != nil {
			return nil, err
		}
		transport.TLSClientConfig = tlsCfg
	}
	c := &Client{
		cfg:  cfg,
		http: &http.Client{Timeout: cfg.Timeout(), Transport: transport},
		log:  logger.New("collector"),
	}
	if cfg.Auth.Enabled() {
		c.auth = auth.NewClientCred(cfg.Auth)
	}
	return c, nil
}

func loadTLSConfig(cfg Config) (*tls.Config, error) {
	tlsCfg := &tls.Config{MinVersion: tls.VersionTLS12}
	if cfg.ClientCert != "" || cfg.ClientKey != "" {
		cert, err := tls.LoadX509KeyPair(cfg.ClientCert, cfg.ClientKey)
		if err != nil {
			return nil, fmt.Errorf("load client cert: %w", err)
		}
		tlsCfg.Certificates = []tls.Certificate{cert}
	}
	if cfg.CABundle != "" {
		caBytes, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, fmt.Errorf("read ca: %w", err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(caBytes) {
			return nil, fmt.Errorf("ca bundle %s: no certificates", cfg.CABundle)
		}
		tlsCfg.RootCAs = pool
	}
	return tlsCfg, nil
}

// FetchStopStatus retrieves the current occupancy vector.
func (c *Client) FetchStopStatus(ctx context.Context) (model.StopStatus, error) {
	var st model.StopStatus
	body, err := c.get(ctx, c.cfg.StopStatusURL)
	if err != nil {
		return st, err
	}
	if err := json.Unmarshal(body, &st); err != nil {
		return st, fmt.Errorf("decode stop status: %w", err)
	}
	if st.Platforms == nil {
		return st, fmt.Errorf("decode stop status: platform_status missing")
	}
	c.log.Debugw("stop status", map[string]any{"station_id": st.StationID, "platforms": st.Platforms.Ints(), "updated_at": st.UpdatedAt})
	return st, nil
}

// FetchQueue retrieves the approach queue in arrival order. Ids are
// normalized, blanks dropped and duplicates collapsed.
func (c *Client) FetchQueue(ctx context.Context) ([]model.BusID, error) {
	if c.cfg.QueueURL == "" {
		return nil, nil
	}
	body, err := c.get(ctx, c.cfg.QueueURL)
	if err != nil {
		return nil, err
	}
	entries, err := DecodeQueue(body)
	if err != nil {
		return nil, err
	}
	return QueueIDs(entries), nil
}

func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	resp, err := c.do(ctx, url)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == http.StatusUnauthorized && c.auth != nil {
		drain(resp)
		if _, err := c.auth.ForceRefresh(ctx); err != nil {
			return nil, err
		}
		if resp, err = c.do(ctx, url); err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: unexpected status code: %d, body: %s", url, resp.StatusCode, bytes.TrimSpace(body))
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.auth != nil {
		if err := c.auth.SetAuthHeader(req); err != nil {
			return nil, fmt.Errorf("failed to set auth header: %w", err)
		}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}
	return resp, nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBody))
	_ = resp.Body.Close()
}

// QueueEntry is one bus reported by the approach camera.
type QueueEntry struct {
	BusNumber string `json:"busNumber"`
	RouteID   string `json:"routeID"`
}

// UnmarshalJSON accepts busNumber as a string or a number. A bare string
// or number is taken as the bus number.
func (e *QueueEntry) UnmarshalJSON(b []byte) error {
	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] != '{' {
		id, err := scalar(t)
		if err != nil {
			return fmt.Errorf("queue entry: %w", err)
		}
		*e = QueueEntry{BusNumber: id}
		return nil
	}
	var raw struct {
		BusNumber json.RawMessage `json:"busNumber"`
		RouteID   json.RawMessage `json:"routeID"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	var err error
	if e.BusNumber, err = scalar(raw.BusNumber); err != nil {
		return fmt.Errorf("busNumber: %w", err)
	}
	if e.RouteID, err = scalar(raw.RouteID); err != nil {
		return fmt.Errorf("routeID: %w", err)
	}
	return nil
}

func scalar(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		err := json.Unmarshal(raw, &s)
		return s, err
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", errors.New("expected string or number")
	}
	return n.String(), nil
}

// DecodeQueue parses either a bare array of entries or an object wrapping
// it under "sequence".
func DecodeQueue(body []byte) ([]QueueEntry, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return nil, nil
	}
	var entries []QueueEntry
	if body[0] == '{' {
		var wrapped struct {
			Sequence []QueueEntry `json:"sequence"`
		}
		if err := json.Unmarshal(body, &wrapped); err != nil {
			return nil, fmt.Errorf("decode queue: %w", err)
		}
		return wrapped.Sequence, nil
	}
	if err := json.Unmarshal(body, &entries); err != nil {
		return nil, fmt.Errorf("decode queue: %w", err)
	}
	return entries, nil
}

// QueueIDs extracts the normalized bus ids in order, dropping blanks and
// keeping the first occurrence of duplicates.
func QueueIDs(entries []QueueEntry) []model.BusID {
	out := make([]model.BusID, 0, len(entries))
	seen := make(map[model.BusID]struct{}, len(entries))
	for _, e := range entries {
		id := model.NormalizeBusID(e.BusNumber)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
