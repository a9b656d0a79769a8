package client

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

// maxEventBytes bounds a single streamed event line.
const maxEventBytes = 1 << 20

// Subscribe opens the server-sent-event stream for a run. Decoded
// events arrive on the first channel in delivery order; a single
// classified error arrives on the second channel if the stream breaks.
// Both channels close when the stream ends. Cancelling ctx tears the
// stream down.
func (c *Client) Subscribe(
	ctx context.Context, id string,
) (<-chan snapshot.Event, <-chan error, error) {
	const op = "subscribe run events"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.baseURL+"/api/v1/runs/"+url.PathEscape(id)+"/events", nil)
	if err != nil {
		return nil, nil, NewError(KindStream, op, err)
	}

	req.Header.Set("Accept", "text/event-stream")

	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	// The stream outlives the default client timeout; use a dedicated
	// transport-only client and rely on ctx for teardown.
	streamClient := &http.Client{Transport: c.http.Transport}

	resp, err := streamClient.Do(req)
	if err != nil {
		return nil, nil, NewError(KindStream, op, err)
	}

	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()

		return nil, nil, NewError(classifyStatus(resp.StatusCode), op,
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	events := make(chan snapshot.Event, 64)
	errs := make(chan error, 1)

	go c.readStream(ctx, resp, id, events, errs)

	return events, errs, nil
}

// readStream scans the SSE frames and forwards decoded events.
func (c *Client) readStream(
	ctx context.Context,
	resp *http.Response,
	runID string,
	events chan<- snapshot.Event,
	errs chan<- error,
) {
	defer func() { _ = resp.Body.Close() }()
	defer close(events)
	defer close(errs)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), maxEventBytes)

	var eventName, data string

	for scanner.Scan() {
		line := scanner.Text()

		switch {
		case strings.HasPrefix(line, "event:"):
			eventName = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			data = strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		case line == "":
			if data == "" {
				continue
			}

			ev, err := decodeEvent(eventName, data, runID)
			if err != nil {
				c.log.WithError(err).WithField("event", eventName).
					Warn("Undecodable stream event, skipped")
			} else {
				select {
				case events <- ev:
				case <-ctx.Done():
					return
				}
			}

			eventName, data = "", ""
		}
	}

	if err := scanner.Err(); err != nil && ctx.Err() == nil {
		errs <- NewError(KindStream, "read run events", err)
	}
}

// decodeEvent unmarshals one SSE data frame into an event. The SSE
// event name wins over any type carried in the payload.
func decodeEvent(name, data, runID string) (snapshot.Event, error) {
	var ev snapshot.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		return snapshot.Event{}, fmt.Errorf("decoding event payload: %w", err)
	}

	if name != "" {
		ev.Type = name
	}

	if ev.RunID == "" {
		ev.RunID = runID
	}

	return ev, nil
}
