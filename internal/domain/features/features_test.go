package features_test

import (
	"errors"
	"testing"

	"github.com/okian/admit/internal/domain/features"
	model "github.com/okian/admit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

func TestBuilder(t *testing.T) {
	Convey("Given a catalog with three interests and two combinations", t, func() {
		b := features.NewBuilder([]string{"technology", "art", "Data", "art"}, []string{"d01", "A00"})

		Convey("Then the layout is stable and sorted", func() {
			So(b.Dimension(), ShouldEqual, 9+2+3+2)
			names := b.Names()
			So(names[0], ShouldEqual, "score_math")
			So(names[9], ShouldEqual, "track_science")
			So(names[11:14], ShouldResemble, []string{"interest_art", "interest_data", "interest_technology"})
			So(names[14:], ShouldResemble, []string{"combination_A00", "combination_D01"})
		})

		Convey("When a profile is built", func() {
			v := b.Build(model.StudentProfile{
				Scores:       map[model.Subject]float64{model.Math: 8, model.Physics: 10},
				Interests:    []string{"data", "cooking"},
				Combinations: []string{"D01", "Z99"},
				Track:        model.TrackSocial,
			})

			Convey("Then scores are scaled and flags set", func() {
				So(len(v), ShouldEqual, b.Dimension())
				So(v[0], ShouldEqual, 0.8)
				So(v[1], ShouldEqual, 0.0)
				So(v[3], ShouldEqual, 1.0)
				So(v[9], ShouldEqual, 0.0)
				So(v[10], ShouldEqual, 1.0)
				So(v[11:14], ShouldResemble, []float64{0, 1, 0})
				So(v[14:], ShouldResemble, []float64{0, 1})
			})
		})

		Convey("When the profile declares no track", func() {
			v := b.Build(model.StudentProfile{Scores: map[model.Subject]float64{model.Math: 8}})

			Convey("Then neither track flag is set", func() {
				So(v[9:11], ShouldResemble, []float64{0, 0})
			})
		})

		Convey("When checked against a different oracle dimension", func() {
			err := b.Check(12)

			Convey("Then it should be a dimension mismatch", func() {
				So(errors.Is(err, features.ErrDimensionMismatch), ShouldBeTrue)
				So(b.Check(b.Dimension()), ShouldBeNil)
			})
		})
	})
}

func TestBuildAdmission(t *testing.T) {
	Convey("Given admission scalars for a high tier institution", t, func() {
		v := features.BuildAdmission(features.AdmissionInput{
			StudentScore:  27,
			ExpectedScore: 24,
			AverageScore:  24,
			MarketTrend:   0.5,
			QuotaRatio:    1,
			Tier:          model.TierHigh,
		})

		So(len(v), ShouldEqual, len(features.AdmissionNames))
		So(v[0], ShouldEqual, 0.9)
		So(v[2], ShouldEqual, 0.1)
		So(v[7:], ShouldResemble, []float64{1, 0, 0})
	})
}
