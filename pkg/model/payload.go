package model

// Test type discriminators for result payloads.
const (
	TestTypeE2E           = "e2e"
	TestTypeVisual        = "visual"
	TestTypeLoad          = "load"
	TestTypeAudit         = "audit"
	TestTypeAccessibility = "accessibility"
)

// Payload carries the specialized blocks a result may attach. The
// blocks are mutually informative but not mutually exclusive: a test
// can carry more than one. Consumers discriminate via Types().
type Payload struct {
	Visual        *VisualComparison     `json:"visual,omitempty"`
	Load          *LoadTestSummary      `json:"load,omitempty"`
	Audit         *AuditScores          `json:"audit,omitempty"`
	Accessibility *AccessibilityReport  `json:"accessibility,omitempty"`
}

// Types returns the test-type discriminators present on the payload.
// A result with no payload, or an empty one, is a plain e2e test.
func (p *Payload) Types() []string {
	if p == nil {
		return []string{TestTypeE2E}
	}

	types := make([]string, 0, 4)

	if p.Visual != nil {
		types = append(types, TestTypeVisual)
	}

	if p.Load != nil {
		types = append(types, TestTypeLoad)
	}

	if p.Audit != nil {
		types = append(types, TestTypeAudit)
	}

	if p.Accessibility != nil {
		types = append(types, TestTypeAccessibility)
	}

	if len(types) == 0 {
		types = append(types, TestTypeE2E)
	}

	return types
}

func (p *Payload) clone() *Payload {
	if p == nil {
		return nil
	}

	out := *p

	if p.Visual != nil {
		v := *p.Visual
		out.Visual = &v
	}

	if p.Load != nil {
		l := *p.Load
		out.Load = &l
	}

	if p.Audit != nil {
		a := *p.Audit
		out.Audit = &a
	}

	if p.Accessibility != nil {
		acc := *p.Accessibility
		acc.Violations = append([]AccessibilityViolation(nil), p.Accessibility.Violations...)
		out.Accessibility = &acc
	}

	return &out
}

// VisualComparison holds visual-regression comparison data.
type VisualComparison struct {
	BaselineRef   string  `json:"baseline_ref"`
	ActualRef     string  `json:"actual_ref"`
	DiffRef       string  `json:"diff_ref,omitempty"`
	DiffRatio     float64 `json:"diff_ratio"`
	PixelsChanged int64   `json:"pixels_changed"`
	Threshold     float64 `json:"threshold"`
}

// LoadTestSummary holds aggregated load-test metrics.
type LoadTestSummary struct {
	Requests      int64   `json:"requests"`
	FailedReqs    int64   `json:"failed_requests"`
	RPS           float64 `json:"rps"`
	LatencyP50MS  float64 `json:"latency_p50_ms"`
	LatencyP95MS  float64 `json:"latency_p95_ms"`
	LatencyP99MS  float64 `json:"latency_p99_ms"`
	LatencyMeanMS float64 `json:"latency_mean_ms"`
}

// AuditScores holds category scores from a page audit, 0-100.
type AuditScores struct {
	Performance   int `json:"performance"`
	Accessibility int `json:"accessibility"`
	BestPractices int `json:"best_practices"`
	SEO           int `json:"seo"`
}

// AccessibilityReport holds accessibility findings.
type AccessibilityReport struct {
	Violations []AccessibilityViolation `json:"violations,omitempty"`
	Passes     int                      `json:"passes"`
}

// AccessibilityViolation is a single accessibility finding.
type AccessibilityViolation struct {
	RuleID   string `json:"rule_id"`
	Impact   string `json:"impact"`
	Selector string `json:"selector,omitempty"`
	Summary  string `json:"summary"`
	Nodes    int    `json:"nodes"`
}
