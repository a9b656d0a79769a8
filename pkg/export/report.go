package export

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/docker/go-units"

	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/timeline"
)

// Block kinds in the paginated report.
const (
	BlockHeading     = "heading"
	BlockText        = "text"
	BlockRow         = "row"
	BlockImage       = "image"
	BlockPlaceholder = "placeholder"
)

// Section titles, in deterministic document order.
const (
	SectionOverview    = "Overview"
	SectionResults     = "Results"
	SectionNetwork     = "Network"
	SectionLogs        = "Logs"
	SectionScreenshots = "Screenshots"
)

// Vertical layout units. A page holds pageHeight units; each block
// declares its own height and a block that does not fit the remaining
// space opens a new page.
const (
	pageHeight      = 60
	heightHeading   = 4
	heightRow       = 2
	heightImage     = 14
	maxBlockTextLen = 2000
)

// Block is one layout element of the report.
type Block struct {
	Kind    string `json:"kind"`
	Section string `json:"section"`
	Text    string `json:"text,omitempty"`
	Image   string `json:"image,omitempty"`
	Height  int    `json:"height"`
}

// Page holds the blocks that fit one page.
type Page struct {
	Number int     `json:"number"`
	Blocks []Block `json:"blocks"`
}

// Report is the paginated document export.
type Report struct {
	RunID       string    `json:"run_id"`
	GeneratedAt time.Time `json:"generated_at"`
	Generator   string    `json:"generator"`
	Pages       []Page    `json:"pages"`
	TotalPages  int       `json:"total_pages"`
	Truncated   bool      `json:"truncated,omitempty"`
}

// pageBuilder accumulates blocks into pages under the fixed page
// budget.
type pageBuilder struct {
	pages     []Page
	current   []Block
	remaining int
	budget    int
	truncated bool
}

func newPageBuilder(budget int) *pageBuilder {
	return &pageBuilder{
		remaining: pageHeight,
		budget:    budget,
	}
}

// add appends a block, breaking to a new page when the block would
// not fit the remaining vertical space. Overflow always opens a new
// page; content is never silently dropped inside the page budget.
func (b *pageBuilder) add(block Block) {
	if b.truncated {
		return
	}

	if block.Height > b.remaining {
		b.flushPage()

		if len(b.pages) >= b.budget {
			b.truncated = true

			return
		}
	}

	b.current = append(b.current, block)
	b.remaining -= block.Height
}

func (b *pageBuilder) flushPage() {
	b.pages = append(b.pages, Page{
		Number: len(b.pages) + 1,
		Blocks: b.current,
	})
	b.current = nil
	b.remaining = pageHeight
}

func (b *pageBuilder) finish() []Page {
	if len(b.current) > 0 || len(b.pages) == 0 {
		b.flushPage()
	}

	return b.pages
}

// Report builds the paginated document for a run: overview, results,
// network, logs and screenshots in fixed section order with continuous
// page numbering.
func (e *Exporter) Report(run *model.Run) *Report {
	b := newPageBuilder(e.cfg.PageBudget)

	e.buildOverview(b, run)
	e.buildResults(b, run)
	e.buildNetwork(b, run)
	e.buildLogs(b, run)
	e.buildScreenshots(b, run)

	pages := b.finish()

	if b.truncated {
		e.log.WithField("run_id", run.ID).
			WithField("page_budget", e.cfg.PageBudget).
			Warn("Report page budget reached, output truncated")
	}

	return &Report{
		RunID:       run.ID,
		GeneratedAt: time.Now().UTC(),
		Generator:   "reportoor/" + e.version,
		Pages:       pages,
		TotalPages:  len(pages),
		Truncated:   b.truncated,
	}
}

func (e *Exporter) buildOverview(b *pageBuilder, run *model.Run) {
	s := model.Summarize(run)

	b.add(heading(SectionOverview, "Run "+run.ID))
	b.add(row(SectionOverview, "Status: "+run.Status))
	b.add(row(SectionOverview, fmt.Sprintf(
		"Passed %d / Failed %d / Skipped %d of %d tests",
		s.Passed, s.Failed, s.Skipped, s.Total)))
	b.add(row(SectionOverview, "Duration: "+model.FormatDuration(s.DurationMS)))
	b.add(row(SectionOverview, "Created: "+run.CreatedAt.UTC().Format(time.RFC3339)))
}

func (e *Exporter) buildResults(b *pageBuilder, run *model.Run) {
	b.add(heading(SectionResults, SectionResults))

	for _, res := range run.Results {
		b.add(row(SectionResults, fmt.Sprintf("%s — %s (%s)",
			res.TestName, res.Status, model.FormatDuration(res.DurationMS))))

		if res.ErrorDetail != "" {
			b.add(text(SectionResults, "Error: "+res.ErrorDetail))
		}

		e.addCapped(b, SectionResults, len(res.Steps), func(i int) Block {
			st := res.Steps[i]
			label := st.Action

			if st.Selector != "" {
				label += " " + st.Selector
			}

			return row(SectionResults, fmt.Sprintf("  %d. %s — %s", i+1, label, st.Status))
		})
	}
}

func (e *Exporter) buildNetwork(b *pageBuilder, run *model.Run) {
	reqs := model.CollectRequests(run)

	b.add(heading(SectionNetwork, SectionNetwork))

	e.addCapped(b, SectionNetwork, len(reqs), func(i int) Block {
		req := reqs[i]

		return row(SectionNetwork, fmt.Sprintf("%s %s — %d, %s, %s",
			req.Method, req.URL, req.StatusCode,
			model.FormatDuration(req.DurationMS),
			units.HumanSize(float64(req.ResponseSize))))
	})
}

func (e *Exporter) buildLogs(b *pageBuilder, run *model.Run) {
	logs := timeline.UnifiedLog(run)

	b.add(heading(SectionLogs, SectionLogs))

	e.addCapped(b, SectionLogs, len(logs), func(i int) Block {
		entry := logs[i]
		label := entry.Level

		if label == "" {
			label = entry.Kind
		}

		return text(SectionLogs, fmt.Sprintf("[%s] %s", label, entry.Message))
	})
}

func (e *Exporter) buildScreenshots(b *pageBuilder, run *model.Run) {
	b.add(heading(SectionScreenshots, SectionScreenshots))

	for _, res := range run.Results {
		for i, st := range res.Steps {
			for _, ref := range []string{st.ScreenBefore, st.ScreenAfter} {
				if ref == "" {
					continue
				}

				label := fmt.Sprintf("%s step %d", res.TestName, i+1)
				b.add(e.imageBlock(label, ref))
			}
		}
	}
}

// imageBlock decodes an embedded screenshot. A single undecodable
// image never aborts the export: it becomes a placeholder block and
// the failure is logged.
func (e *Exporter) imageBlock(label, ref string) Block {
	payload, err := decodeImageRef(ref)
	if err != nil {
		e.log.WithError(&Error{Artifact: "report screenshot", Err: err}).
			WithField("screenshot", label).
			Warn("Undecodable screenshot, placeholder substituted")

		return Block{
			Kind:    BlockPlaceholder,
			Section: SectionScreenshots,
			Text:    label + " (image unavailable)",
			Height:  heightImage,
		}
	}

	return Block{
		Kind:    BlockImage,
		Section: SectionScreenshots,
		Text:    fmt.Sprintf("%s (%s)", label, units.HumanSize(float64(len(payload)))),
		Image:   ref,
		Height:  heightImage,
	}
}

// decodeImageRef resolves a screenshot reference. Data URIs are
// decoded to verify the payload; plain references pass through as
// external links.
func decodeImageRef(ref string) ([]byte, error) {
	if !strings.HasPrefix(ref, "data:") {
		return []byte(ref), nil
	}

	idx := strings.Index(ref, "base64,")
	if idx < 0 {
		return nil, fmt.Errorf("data URI without base64 payload")
	}

	payload, err := base64.StdEncoding.DecodeString(ref[idx+len("base64,"):])
	if err != nil {
		return nil, fmt.Errorf("decoding image payload: %w", err)
	}

	return payload, nil
}

// addCapped emits up to the per-section item cap, then one explicit
// marker for anything beyond it. The cap never silently truncates:
// the marker names the omitted count.
func (e *Exporter) addCapped(b *pageBuilder, section string, n int, blockAt func(int) Block) {
	limit := n
	if limit > e.cfg.SectionItemCap {
		limit = e.cfg.SectionItemCap
	}

	for i := 0; i < limit; i++ {
		b.add(blockAt(i))
	}

	if n > limit {
		b.add(text(section, fmt.Sprintf("… %d more entries (see CSV export)", n-limit)))
	}
}

func heading(section, s string) Block {
	return Block{Kind: BlockHeading, Section: section, Text: clip(s), Height: heightHeading}
}

func row(section, s string) Block {
	return Block{Kind: BlockRow, Section: section, Text: clip(s), Height: heightRow}
}

func text(section, s string) Block {
	return Block{Kind: BlockText, Section: section, Text: clip(s), Height: heightRow}
}

// clip bounds a single block's text so one pathological message cannot
// blow up the document. The cut lands on a rune boundary so multibyte
// characters never split.
func clip(s string) string {
	if len(s) <= maxBlockTextLen {
		return s
	}

	cut := maxBlockTextLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}

	return s[:cut] + " …[clipped]"
}
