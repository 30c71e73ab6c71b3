package service_test

import (
	"context"
	"errors"
	"testing"

	service "github.com/okian/admit/internal/app"
	"github.com/okian/admit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

// panicky panics on every prediction.
type panicky struct{}

func (panicky) Predict(context.Context, []float64) (float64, error) { panic("boom") }
func (panicky) Dimension() int                                     { return 0 }

func TestService_PredictBatch(t *testing.T) {
	Convey("Given the demo catalog", t, func() {
		svc := startDemo(service.WithBatchLimits(2, 4))
		defer svc.Stop()
		ctx := context.Background()

		Convey("When a batch mixes good and bad items", func() {
			items := []service.ProbabilityItem{
				{ID: "ok", ProbabilityRequest: service.ProbabilityRequest{Institution: "BKA", Field: "Computer Science", Score: 28}},
				{ID: "bad-score", ProbabilityRequest: service.ProbabilityRequest{Institution: "BKA", Field: "Computer Science", Score: -3}},
				{ProbabilityRequest: service.ProbabilityRequest{Institution: "Nowhere Academy Zzyzx", Field: "Law", Score: 20}},
			}
			results, err := svc.PredictBatch(ctx, items)

			Convey("Then every item gets its own entry in request order", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 3)

				So(results[0].ID, ShouldEqual, "ok")
				So(results[0].Success, ShouldBeTrue)
				So(results[0].Error, ShouldBeNil)
				pred, ok := results[0].Result.(model.Prediction)
				So(ok, ShouldBeTrue)
				So(pred.InstitutionID, ShouldEqual, "hust")

				So(results[1].ID, ShouldEqual, "bad-score")
				So(results[1].Success, ShouldBeFalse)
				So(results[1].Error.Kind, ShouldEqual, service.KindValidation)

				So(results[2].ID, ShouldNotBeEmpty)
				So(results[2].Success, ShouldBeFalse)
				So(results[2].Error.Kind, ShouldEqual, service.KindNotFound)
			})
		})

		Convey("When the batch is larger than allowed", func() {
			items := make([]service.ProbabilityItem, 5)
			_, err := svc.PredictBatch(ctx, items)

			Convey("Then the whole batch is rejected", func() {
				So(errors.Is(err, service.ErrValidation), ShouldBeTrue)
			})
		})

		Convey("When the batch is empty", func() {
			results, err := svc.PredictBatch(ctx, nil)

			Convey("Then no entries are returned", func() {
				So(err, ShouldBeNil)
				So(results, ShouldBeEmpty)
			})
		})
	})

	Convey("Given an admission oracle that panics", t, func() {
		svc := startDemo(service.WithAdmissionOracle(panicky{}))
		defer svc.Stop()

		Convey("Then the panic is contained to its item", func() {
			results, err := svc.PredictBatch(context.Background(), []service.ProbabilityItem{
				{ID: "a", ProbabilityRequest: service.ProbabilityRequest{Institution: "BKA", Field: "Law", Score: 20}},
				{ID: "b", ProbabilityRequest: service.ProbabilityRequest{Institution: "Zzyzx", Field: "Law", Score: 20}},
			})
			So(err, ShouldBeNil)
			So(results, ShouldHaveLength, 2)
			So(results[0].Success, ShouldBeFalse)
			So(results[0].Error.Kind, ShouldEqual, service.KindInternal)
			So(results[1].Error.Kind, ShouldEqual, service.KindNotFound)
		})
	})
}

func TestService_RecommendBatch(t *testing.T) {
	Convey("Given the demo catalog", t, func() {
		svc := startDemo()
		defer svc.Stop()

		Convey("When one profile is malformed", func() {
			results, err := svc.RecommendBatch(context.Background(), []service.RecommendationItem{
				{ID: "good", RecommendationRequest: service.RecommendationRequest{Profile: scienceProfile("health"), TopK: 1}},
				{ID: "bad", RecommendationRequest: service.RecommendationRequest{Profile: model.ProfileInput{}}},
			})

			Convey("Then the sibling still succeeds", func() {
				So(err, ShouldBeNil)
				So(results, ShouldHaveLength, 2)
				So(results[0].Success, ShouldBeTrue)
				recs, ok := results[0].Result.([]model.FieldRecommendation)
				So(ok, ShouldBeTrue)
				So(recs, ShouldHaveLength, 1)
				So(recs[0].FieldID, ShouldEqual, "med")
				So(results[1].Error.Kind, ShouldEqual, service.KindValidation)
			})

			Convey("Then stats count the items", func() {
				So(svc.GetStats()["batchItems"], ShouldEqual, int64(2))
			})
		})
	})
}
