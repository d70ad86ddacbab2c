package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/veesix-networks/tpc/plugins/northbound/api"
)

// Client speaks to the tpc REST API.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(serverAddr string) *Client {
	base := strings.TrimSuffix(serverAddr, "/")
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	return &Client{
		baseURL: base + api.BasePath,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) Flush(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/flush", nil)
}

func (c *Client) Checking(ctx context.Context, on bool) error {
	if on {
		return c.do(ctx, http.MethodGet, "/turn_on_checking", nil)
	}
	return c.do(ctx, http.MethodGet, "/turn_off_checking", nil)
}

func (c *Client) AddAttack(ctx context.Context, row api.AttackRow) error {
	return c.do(ctx, http.MethodPost, "/add_attack", map[string]api.AttackRow{"cli": row})
}

func (c *Client) AddSliceID(ctx context.Context, row api.SliceIDRow) error {
	return c.do(ctx, http.MethodPost, "/add_slice_id", map[string]api.SliceIDRow{"cli": row})
}

func (c *Client) AddSliceQoS(ctx context.Context, row api.SliceQoSRow) error {
	return c.do(ctx, http.MethodPost, "/add_slice_qos", map[string]api.SliceQoSRow{"cli": row})
}

func (c *Client) do(ctx context.Context, method, path string, body any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 300 {
		return nil
	}

	var apiErr api.ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiErr); err == nil && apiErr.Error != "" {
		return fmt.Errorf("%s: %s", resp.Status, apiErr.Error)
	}
	return fmt.Errorf("%s", resp.Status)
}
