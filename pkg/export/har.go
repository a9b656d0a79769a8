package export

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/ethpandaops/reportoor/pkg/layout"
	"github.com/ethpandaops/reportoor/pkg/model"
)

// HAR 1.2 document shapes.

// HAR is the top-level HTTP Archive structure.
type HAR struct {
	Log HARLog `json:"log"`
}

// HARLog holds the archive metadata and entries.
type HARLog struct {
	Version string     `json:"version"`
	Creator HARCreator `json:"creator"`
	Entries []HAREntry `json:"entries"`
}

// HARCreator identifies the tool that generated the archive.
type HARCreator struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// HAREntry is a single request/response pair.
type HAREntry struct {
	StartedDateTime string      `json:"startedDateTime"`
	Time            int64       `json:"time"`
	Request         HARRequest  `json:"request"`
	Response        HARResponse `json:"response"`
	Cache           struct{}    `json:"cache"`
	Timings         HARTimings  `json:"timings"`
}

// HARRequest is the request half of an entry.
type HARRequest struct {
	Method      string     `json:"method"`
	URL         string     `json:"url"`
	HTTPVersion string     `json:"httpVersion"`
	Headers     []HARField `json:"headers"`
	QueryString []HARField `json:"queryString"`
	HeadersSize int        `json:"headersSize"`
	BodySize    int64      `json:"bodySize"`
}

// HARResponse is the response half of an entry.
type HARResponse struct {
	Status      int        `json:"status"`
	StatusText  string     `json:"statusText"`
	HTTPVersion string     `json:"httpVersion"`
	Headers     []HARField `json:"headers"`
	Content     HARContent `json:"content"`
	RedirectURL string     `json:"redirectURL"`
	HeadersSize int        `json:"headersSize"`
	BodySize    int64      `json:"bodySize"`
}

// HARContent describes the response body.
type HARContent struct {
	Size     int64  `json:"size"`
	MimeType string `json:"mimeType"`
}

// HARTimings is the per-entry timing breakdown. Per HAR 1.2, ssl is
// informational and already contained in connect, so
// blocked+dns+connect+send+wait+receive equals the entry's total time.
type HARTimings struct {
	Blocked int64 `json:"blocked"`
	DNS     int64 `json:"dns"`
	Connect int64 `json:"connect"`
	SSL     int64 `json:"ssl"`
	Send    int64 `json:"send"`
	Wait    int64 `json:"wait"`
	Receive int64 `json:"receive"`
}

// HARField is a name/value pair for headers and query parameters.
type HARField struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// HAR builds an archive with one entry per captured network request
// across the whole run.
func (e *Exporter) HAR(run *model.Run) *HAR {
	reqs := model.CollectRequests(run)

	har := &HAR{
		Log: HARLog{
			Version: "1.2",
			Creator: HARCreator{Name: "reportoor", Version: e.version},
			Entries: make([]HAREntry, 0, len(reqs)),
		},
	}

	for _, req := range reqs {
		har.Log.Entries = append(har.Log.Entries, toHAREntry(req))
	}

	return har
}

// WriteHAR writes the archive as indented JSON.
func (e *Exporter) WriteHAR(w io.Writer, run *model.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(e.HAR(run)); err != nil {
		return &Error{Artifact: "har", Err: err}
	}

	return nil
}

func toHAREntry(req model.NetworkRequest) HAREntry {
	timing := layout.SynthesizeTiming(req.DurationMS)

	return HAREntry{
		StartedDateTime: time.UnixMilli(req.TimestampMS).UTC().Format(time.RFC3339Nano),
		Time:            req.DurationMS,
		Request: HARRequest{
			Method:      req.Method,
			URL:         req.URL,
			HTTPVersion: "HTTP/1.1",
			Headers:     []HARField{},
			QueryString: parseQueryString(req.URL),
			HeadersSize: -1,
			BodySize:    req.RequestSize,
		},
		Response: HARResponse{
			Status:      req.StatusCode,
			StatusText:  http.StatusText(req.StatusCode),
			HTTPVersion: "HTTP/1.1",
			Headers:     []HARField{},
			Content: HARContent{
				Size:     req.ResponseSize,
				MimeType: mimeTypeFor(req.ResourceType),
			},
			HeadersSize: -1,
			BodySize:    req.ResponseSize,
		},
		Timings: HARTimings{
			Blocked: 0,
			DNS:     timing.DNSMS,
			Connect: timing.ConnectMS + timing.TLSMS,
			SSL:     timing.TLSMS,
			Send:    0,
			Wait:    timing.TTFBMS,
			Receive: timing.DownloadMS,
		},
	}
}

// parseQueryString extracts query parameters from a URL.
func parseQueryString(rawURL string) []HARField {
	fields := []HARField{}

	u, err := url.Parse(rawURL)
	if err != nil {
		return fields
	}

	for _, name := range sortedKeys(u.Query()) {
		for _, value := range u.Query()[name] {
			fields = append(fields, HARField{Name: name, Value: value})
		}
	}

	return fields
}

// mimeTypeFor maps a captured resource type to a representative MIME
// type.
func mimeTypeFor(resourceType string) string {
	switch resourceType {
	case "document":
		return "text/html"
	case "stylesheet":
		return "text/css"
	case "script":
		return "application/javascript"
	case "image":
		return "image/png"
	case "font":
		return "font/woff2"
	case "xhr", "fetch":
		return "application/json"
	default:
		return "application/octet-stream"
	}
}

