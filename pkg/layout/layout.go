// Package layout converts absolute timestamps and durations into
// normalized coordinates for timeline and network-waterfall views.
package layout

import "github.com/ethpandaops/reportoor/pkg/model"

// DefaultFloorWidth is the minimum visual width (percent) so that
// zero-duration entries remain visible and selectable.
const DefaultFloorWidth = 0.5

// Timing ratios used to synthesize a request breakdown when upstream
// capture provides only a total duration. The download segment absorbs
// the remainder so the segments always sum exactly to the total.
const (
	ratioDNS     = 0.05
	ratioConnect = 0.10
	ratioTLS     = 0.10
	ratioTTFB    = 0.45
)

// Timing is a per-request breakdown in milliseconds.
type Timing struct {
	DNSMS      int64 `json:"dns_ms"`
	ConnectMS  int64 `json:"connect_ms"`
	TLSMS      int64 `json:"tls_ms"`
	TTFBMS     int64 `json:"ttfb_ms"`
	DownloadMS int64 `json:"download_ms"`
}

// Total returns the sum of the timing segments.
func (t Timing) Total() int64 {
	return t.DNSMS + t.ConnectMS + t.TLSMS + t.TTFBMS + t.DownloadMS
}

// Entry is a per-request waterfall record with normalized layout
// fractions in [0, 100].
type Entry struct {
	Request model.NetworkRequest `json:"request"`
	Timing  Timing               `json:"timing"`
	Left    float64              `json:"left"`
	Width   float64              `json:"width"`
}

// Bounds is the [min, max] time window covering a request set.
type Bounds struct {
	MinMS int64 `json:"min_ms"`
	MaxMS int64 `json:"max_ms"`
}

// Span returns the window length in milliseconds.
func (b Bounds) Span() int64 { return b.MaxMS - b.MinMS }

// ComputeBounds returns [min(timestamp), max(timestamp+duration)] over
// the request set. Ok is false for an empty set.
func ComputeBounds(reqs []model.NetworkRequest) (Bounds, bool) {
	if len(reqs) == 0 {
		return Bounds{}, false
	}

	b := Bounds{
		MinMS: reqs[0].TimestampMS,
		MaxMS: reqs[0].TimestampMS + reqs[0].DurationMS,
	}

	for _, r := range reqs[1:] {
		if r.TimestampMS < b.MinMS {
			b.MinMS = r.TimestampMS
		}

		if end := r.TimestampMS + r.DurationMS; end > b.MaxMS {
			b.MaxMS = end
		}
	}

	return b, true
}

// Waterfall lays out the request set against its own bounds using the
// default floor width.
func Waterfall(reqs []model.NetworkRequest) []Entry {
	return WaterfallWithFloor(reqs, DefaultFloorWidth)
}

// WaterfallWithFloor lays out the request set with an explicit minimum
// width. For every entry: left = (t-min)/span*100 and
// width = max(duration/span*100, floorWidth), clamped so that
// left+width never exceeds 100.
func WaterfallWithFloor(reqs []model.NetworkRequest, floorWidth float64) []Entry {
	bounds, ok := ComputeBounds(reqs)
	if !ok {
		return nil
	}

	entries := make([]Entry, 0, len(reqs))
	span := float64(bounds.Span())

	for _, r := range reqs {
		e := Entry{
			Request: r,
			Timing:  SynthesizeTiming(r.DurationMS),
		}

		if span <= 0 {
			// Degenerate window: everything collapses to the origin.
			e.Left = 0
			e.Width = floorWidth
		} else {
			e.Left = float64(r.TimestampMS-bounds.MinMS) / span * 100
			e.Width = float64(r.DurationMS) / span * 100

			if e.Width < floorWidth {
				e.Width = floorWidth
			}

			if e.Left+e.Width > 100 {
				e.Left = 100 - e.Width
				if e.Left < 0 {
					e.Left = 0
					e.Width = 100
				}
			}
		}

		entries = append(entries, e)
	}

	return entries
}

// SynthesizeTiming derives a DNS/connect/TLS/TTFB/download breakdown
// from a total duration using the fixed ratios. The truncation
// remainder folds into the download segment so the parts sum exactly
// to the total, never over.
func SynthesizeTiming(totalMS int64) Timing {
	if totalMS <= 0 {
		return Timing{}
	}

	t := Timing{
		DNSMS:     int64(float64(totalMS) * ratioDNS),
		ConnectMS: int64(float64(totalMS) * ratioConnect),
		TLSMS:     int64(float64(totalMS) * ratioTLS),
		TTFBMS:    int64(float64(totalMS) * ratioTTFB),
	}

	t.DownloadMS = totalMS - t.DNSMS - t.ConnectMS - t.TLSMS - t.TTFBMS

	return t
}
