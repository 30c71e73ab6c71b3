package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetricsManagerCreation(t *testing.T) {
	Convey("Given metrics manager creation", t, func() {
		Convey("When creating with a private registry and custom options", func() {
			registry := prometheus.NewRegistry()
			manager := NewManager(
				WithNamespace("test"),
				WithSubsystem("unit"),
				WithHistogramBuckets([]float64{1, 10}),
				WithConstLabels(map[string]string{"env": "test"}),
				WithPrometheusRegistry(registry),
			)
			manager.resolutions.WithLabelValues("field", "exact").Inc()

			Convey("Then metrics are registered under the custom names", func() {
				n, err := testutil.GatherAndCount(registry, "test_unit_resolutions_total")
				So(err, ShouldBeNil)
				So(n, ShouldEqual, 1)
			})
		})

		Convey("When two managers share one registry", func() {
			registry := prometheus.NewRegistry()
			NewManager(WithPrometheusRegistry(registry))

			Convey("Then registering the same names again panics", func() {
				So(func() { NewManager(WithPrometheusRegistry(registry)) }, ShouldPanic)
			})
		})
	})
}

func TestMetricsRecording(t *testing.T) {
	Convey("Given the global manager", t, func() {
		Convey("When recording resolution outcomes", func() {
			before := testutil.ToFloat64(globalManager.resolutions.WithLabelValues("institution", "code"))
			RecordResolution("institution", "code")
			RecordResolutionFailure("institution")

			Convey("Then the counters advance", func() {
				So(testutil.ToFloat64(globalManager.resolutions.WithLabelValues("institution", "code")), ShouldEqual, before+1)
				So(testutil.ToFloat64(globalManager.resolutionFailures.WithLabelValues("institution")), ShouldBeGreaterThanOrEqualTo, 1)
			})
		})

		Convey("When recording cache activity", func() {
			RecordCacheHit("fields")
			RecordCacheMiss("fields")
			RecordCacheRefresh("fields", "ok")
			UpdateCacheEntries("fields", 42)

			Convey("Then the gauge holds the latest size", func() {
				So(testutil.ToFloat64(globalManager.cacheEntries.WithLabelValues("fields")), ShouldEqual, 42)
			})
		})

		Convey("When recording scoring, oracle, batch and HTTP metrics", func() {
			So(func() {
				RecordOracleLatency("multi", 1.5)
				RecordOracleError("single")
				RecordFallbackDefault("no_history")
				RecordSafetyBand("safe")
				RecordPipelineLatency("predict_probability", 3)
				RecordBatchItem("recommend", "error")
				RecordHTTPRequest("probability", "POST", "200")
				RecordHTTPRequestDuration("probability", "POST", "200", 2)
				RecordErrorByEndpoint("probability", "POST", "not_found")
				UpdateSystemMemoryUsage(1024)
				UpdateSystemGoroutineCount(8)
			}, ShouldNotPanic)

			Convey("Then the custom registry exposes them", func() {
				families, err := GetRegistry().Gather()
				So(err, ShouldBeNil)
				names := make([]string, 0, len(families))
				for _, f := range families {
					names = append(names, f.GetName())
				}
				joined := strings.Join(names, ",")
				So(joined, ShouldContainSubstring, "admit_advisor_fallback_defaults_total")
				So(joined, ShouldContainSubstring, "admit_advisor_batch_items_total")
				So(joined, ShouldContainSubstring, "admit_advisor_oracle_latency_milliseconds")
			})
		})
	})
}
