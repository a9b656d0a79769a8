// Package client consumes the upstream results service: run fetches,
// history listings, the live event stream and the cancel command.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/model"
)

// maxResponseBytes bounds how much of an upstream response is read.
const maxResponseBytes = 64 << 20

// Client talks to the upstream results service.
type Client struct {
	log     logrus.FieldLogger
	baseURL string
	apiKey  string
	http    *http.Client
}

// New creates an upstream client from the given configuration.
func New(log logrus.FieldLogger, cfg *config.Config) *Client {
	return &Client{
		log:     log.WithField("component", "client"),
		baseURL: cfg.Upstream.BaseURL,
		apiKey:  cfg.Upstream.APIKey,
		http: &http.Client{
			Timeout: cfg.UpstreamTimeout(),
		},
	}
}

// GetRun fetches a run by id, validating the document against the run
// schema before decoding it.
func (c *Client) GetRun(ctx context.Context, id string) (*model.Run, error) {
	const op = "fetch run"

	data, err := c.get(ctx, op, "/api/v1/runs/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	if err := model.ValidateRunDocument(data); err != nil {
		return nil, NewError(KindServer, op, err)
	}

	var run model.Run
	if err := json.Unmarshal(data, &run); err != nil {
		return nil, NewError(KindServer, op, err)
	}

	return &run, nil
}

// GetRunHistory fetches the most recent summarized run records.
func (c *Client) GetRunHistory(ctx context.Context, limit int) ([]model.RunRecord, error) {
	const op = "fetch run history"

	path := "/api/v1/runs"
	if limit > 0 {
		path = fmt.Sprintf("%s?limit=%d", path, limit)
	}

	data, err := c.get(ctx, op, path)
	if err != nil {
		return nil, err
	}

	var records []model.RunRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, NewError(KindServer, op, err)
	}

	return records, nil
}

// GetComparisonRun fetches the summarized record of a specific run to
// serve as a comparison baseline.
func (c *Client) GetComparisonRun(ctx context.Context, id string) (model.RunRecord, error) {
	const op = "fetch comparison run"

	data, err := c.get(ctx, op, "/api/v1/runs/"+url.PathEscape(id)+"/summary")
	if err != nil {
		return model.RunRecord{}, err
	}

	var rec model.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.RunRecord{}, NewError(KindServer, op, err)
	}

	return rec, nil
}

// CancelRun asks the upstream service to cancel an in-progress run.
func (c *Client) CancelRun(ctx context.Context, id string) error {
	const op = "cancel run"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/v1/runs/"+url.PathEscape(id)+"/cancel",
		bytes.NewReader(nil))
	if err != nil {
		return NewError(KindNetwork, op, err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return NewError(KindNetwork, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return NewError(classifyStatus(resp.StatusCode), op,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	return nil
}

// get performs a GET against the upstream and returns the body, with
// failures classified.
func (c *Client) get(ctx context.Context, op, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, NewError(KindNetwork, op, err)
	}

	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, NewError(KindNetwork, op, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, NewError(classifyStatus(resp.StatusCode), op,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewError(KindNetwork, op, err)
	}

	return data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}
