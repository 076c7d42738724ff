package ocr_test

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/drivevox/validator/ocr"
)

func TestSimilarityIsReflexiveAndBounded(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("similarity(x,x) == 1", prop.ForAll(
		func(s string) bool {
			return ocr.Similarity(s, s) == 1
		},
		gen.AnyString(),
	))

	properties.Property("similarity is within [0,1]", prop.ForAll(
		func(a, b string) bool {
			v := ocr.Similarity(a, b)
			return v >= 0 && v <= 1
		},
		gen.AnyString(),
		gen.AnyString(),
	))

	properties.TestingRun(t)
}

func TestOCRStabilityIsMonotoneOnceStopped(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("once should_stop_ocr is true it stays true for all further frames", prop.ForAll(
		func(texts []string) bool {
			s := ocr.NewSession()
			base := time.Now()
			stopped := false
			for i, text := range texts {
				res := s.Observe(text, base.Add(time.Duration(i)*time.Second*7))
				if stopped && !res.ShouldStopOCR {
					return false
				}
				stopped = stopped || res.ShouldStopOCR
			}
			return true
		},
		gen.SliceOf(gen.OneConstOf("", "你好", "导航回家")),
	))

	properties.TestingRun(t)
}
