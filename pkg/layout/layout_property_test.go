package layout_test

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/ethpandaops/reportoor/pkg/layout"
	"github.com/ethpandaops/reportoor/pkg/model"
)

// For any request set, every laid-out entry satisfies
// left + width <= 100 and width >= floorWidth, and every synthesized
// timing breakdown sums exactly to the request's total duration.
func TestWaterfall_LayoutInvariants_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	genRequest := gopter.CombineGens(
		gen.Int64Range(0, 1_000_000),
		gen.Int64Range(0, 60_000),
	).Map(func(vals []interface{}) model.NetworkRequest {
		return model.NetworkRequest{
			Method:      "GET",
			URL:         "https://app/generated",
			TimestampMS: vals[0].(int64),
			DurationMS:  vals[1].(int64),
		}
	})

	properties.Property("layout fractions stay in bounds", prop.ForAll(
		func(reqs []model.NetworkRequest) bool {
			entries := layout.Waterfall(reqs)

			if len(entries) != len(reqs) {
				return false
			}

			for _, e := range entries {
				if e.Width < layout.DefaultFloorWidth {
					return false
				}

				if e.Left < 0 || e.Left+e.Width > 100+1e-9 {
					return false
				}

				if e.Timing.Total() != e.Request.DurationMS {
					return false
				}
			}

			return true
		},
		gen.SliceOf(genRequest),
	))

	properties.TestingRun(t)
}
