//go:build property

package build

import (
	"errors"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

// TestMetricsProperties validates the counters kept per asset class.
func TestMetricsProperties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.Rng.Seed(1234)
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("total equals succeeded plus failed", prop.ForAll(
		func(outcomes []bool) bool {
			metrics := NewMetrics()
			for _, ok := range outcomes {
				result := Result{Class: ClassScript, Duration: time.Millisecond}
				if !ok {
					result.Err = errors.New("failed")
				}
				metrics.Record(result)
			}

			cm := metrics.Snapshot()[ClassScript]
			return cm.Total == int64(len(outcomes)) && cm.Total == cm.Succeeded+cm.Failed
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.Property("average never exceeds the longest duration", prop.ForAll(
		func(millis []int) bool {
			metrics := NewMetrics()
			longest := time.Duration(0)
			for _, ms := range millis {
				d := time.Duration(ms) * time.Millisecond
				if d > longest {
					longest = d
				}
				metrics.Record(Result{Class: ClassTemplate, Duration: d})
			}

			return metrics.Snapshot()[ClassTemplate].AverageDuration() <= longest
		},
		gen.SliceOf(gen.IntRange(0, 5000)),
	))

	properties.TestingRun(t)
}
