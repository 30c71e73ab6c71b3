package model_test

import (
	"errors"
	"testing"

	model "github.com/okian/admit/internal/domain/model"
	"github.com/smartystreets/goconvey/convey"
)

func score(v float64) *float64 { return &v }

func TestStudentProfile(t *testing.T) {
	table := model.DefaultPriorityTable()

	convey.Convey("Given a raw profile input", t, func() {
		convey.Convey("When it carries valid scores and tiers", func() {
			p, err := model.NewStudentProfile(model.ProfileInput{
				Scores: map[string]*float64{
					"math":      score(8),
					"physics":   score(7.5),
					"chemistry": score(9),
					"english":   nil,
				},
				Interests:    []string{" Technology ", "technology", "Data"},
				Combinations: []string{"a00"},
				AreaTier:     "kv1",
				ObjectTier:   "UT1",
			}, table)

			convey.Convey("Then it should normalise the profile", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(p.Track, convey.ShouldEqual, model.Track(""))
				convey.So(p.Interests, convey.ShouldResemble, []string{"technology", "data"})
				convey.So(p.Combinations, convey.ShouldResemble, []string{"A00"})
				convey.So(p.PriorityBonus, convey.ShouldEqual, 2.75)
				convey.So(p.HasScore(model.English), convey.ShouldBeFalse)
				convey.So(p.Score(model.English), convey.ShouldEqual, 0.0)
			})
		})

		convey.Convey("When both math and literature are missing", func() {
			_, err := model.NewStudentProfile(model.ProfileInput{
				Scores: map[string]*float64{"physics": score(7)},
			}, table)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, model.ErrInvalidProfile), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a score is outside [0,10]", func() {
			_, err := model.NewStudentProfile(model.ProfileInput{
				Scores: map[string]*float64{"math": score(10.5)},
			}, table)

			convey.Convey("Then it should be rejected", func() {
				convey.So(errors.Is(err, model.ErrInvalidProfile), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When too many interests or combinations are given", func() {
			_, errInterests := model.NewStudentProfile(model.ProfileInput{
				Scores:    map[string]*float64{"math": score(5)},
				Interests: []string{"a", "b", "c", "d"},
			}, table)
			_, errCombos := model.NewStudentProfile(model.ProfileInput{
				Scores:       map[string]*float64{"math": score(5)},
				Combinations: []string{"A00", "A01", "D01"},
			}, table)

			convey.Convey("Then both should be rejected", func() {
				convey.So(errors.Is(errInterests, model.ErrInvalidProfile), convey.ShouldBeTrue)
				convey.So(errors.Is(errCombos, model.ErrInvalidProfile), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When the track or subject is unknown", func() {
			_, errTrack := model.NewStudentProfile(model.ProfileInput{
				Scores: map[string]*float64{"math": score(5)},
				Track:  "arts",
			}, table)
			_, errSubject := model.NewStudentProfile(model.ProfileInput{
				Scores: map[string]*float64{"math": score(5), "music": score(5)},
			}, table)

			convey.Convey("Then both should be rejected", func() {
				convey.So(errTrack, convey.ShouldNotBeNil)
				convey.So(errSubject, convey.ShouldNotBeNil)
			})
		})
	})
}

func TestPriorityTable(t *testing.T) {
	convey.Convey("Given the default priority table", t, func() {
		table := model.DefaultPriorityTable()

		convey.Convey("Then known tiers add up and unknown tiers add nothing", func() {
			convey.So(table.Bonus("KV2-NT", "UT2"), convey.ShouldEqual, 1.5)
			convey.So(table.Bonus("", ""), convey.ShouldEqual, 0.0)
			convey.So(table.Bonus("nowhere", "UT9"), convey.ShouldEqual, 0.0)
		})

		convey.Convey("When the sum exceeds the cap", func() {
			table.Object["UT1"] = 5

			convey.Convey("Then it should be capped", func() {
				convey.So(table.Bonus("KV1", "UT1"), convey.ShouldEqual, 4.0)
			})
		})
	})
}

func TestCombinationScore(t *testing.T) {
	convey.Convey("Given a student missing a chemistry score", t, func() {
		p, err := model.NewStudentProfile(model.ProfileInput{
			Scores: map[string]*float64{
				"math":       score(8),
				"physics":    score(7),
				"english":    score(9),
				"literature": score(6),
			},
			ObjectTier: "UT2",
		}, model.DefaultPriorityTable())
		convey.So(err, convey.ShouldBeNil)

		a00, _ := model.NewSubjectCombination("A00", []string{"math", "physics", "chemistry"})
		a01, _ := model.NewSubjectCombination("A01", []string{"math", "physics", "english"})
		d01, _ := model.NewSubjectCombination("D01", []string{"math", "literature", "english"})

		convey.Convey("When scoring a combination that needs chemistry", func() {
			_, ok := p.CombinationScore(a00)

			convey.Convey("Then it should not be viable", func() {
				convey.So(ok, convey.ShouldBeFalse)
			})
		})

		convey.Convey("When picking the best combination", func() {
			best, s, ok := p.BestCombination([]model.SubjectCombination{a00, d01, a01})

			convey.Convey("Then the viable one with the highest sum wins", func() {
				convey.So(ok, convey.ShouldBeTrue)
				convey.So(best.Code, convey.ShouldEqual, "A01")
				convey.So(s, convey.ShouldEqual, 25.0)
			})
		})

		convey.Convey("When two combinations tie", func() {
			x, _ := model.NewSubjectCombination("X01", []string{"math", "physics", "english"})
			best, _, _ := p.BestCombination([]model.SubjectCombination{x, a01})

			convey.Convey("Then the smaller code wins", func() {
				convey.So(best.Code, convey.ShouldEqual, "A01")
			})
		})

		convey.Convey("When no combination is viable", func() {
			_, _, ok := p.BestCombination([]model.SubjectCombination{a00})

			convey.Convey("Then nothing is returned", func() {
				convey.So(ok, convey.ShouldBeFalse)
			})
		})
	})
}

func TestParseQuota(t *testing.T) {
	convey.Convey("Given stored quota values", t, func() {
		cases := []struct {
			in   any
			want float64
		}{
			{120, 120},
			{int64(80), 80},
			{45.5, 45.5},
			{"60", 60},
			{"100-140", 120},
			{" 50 - 70 ", 60},
		}
		for _, c := range cases {
			got, err := model.ParseQuota(c.in)
			convey.So(err, convey.ShouldBeNil)
			convey.So(got, convey.ShouldEqual, c.want)
		}

		convey.Convey("When the value cannot be parsed", func() {
			_, errText := model.ParseQuota("many")
			_, errNil := model.ParseQuota(nil)
			_, errType := model.ParseQuota(true)

			convey.Convey("Then it should be an invalid record", func() {
				convey.So(errors.Is(errText, model.ErrInvalidRecord), convey.ShouldBeTrue)
				convey.So(errors.Is(errNil, model.ErrInvalidRecord), convey.ShouldBeTrue)
				convey.So(errors.Is(errType, model.ErrInvalidRecord), convey.ShouldBeTrue)
			})
		})
	})
}

func TestSelectQuotas(t *testing.T) {
	convey.Convey("Given quotas over several years", t, func() {
		pair := model.SelectQuotas([]model.AdmissionQuota{
			{Year: 2022, Quota: 90},
			{Year: 2024, Quota: 120},
			{Year: 2023, Quota: 100},
		})

		convey.Convey("Then the latest is current and the previous is the reference", func() {
			convey.So(pair.Found, convey.ShouldBeTrue)
			convey.So(pair.Current, convey.ShouldEqual, 120.0)
			convey.So(pair.Reference, convey.ShouldEqual, 100.0)
		})
	})

	convey.Convey("Given a single year of quota", t, func() {
		pair := model.SelectQuotas([]model.AdmissionQuota{{Year: 2024, Quota: 75}})

		convey.So(pair.Current, convey.ShouldEqual, 75.0)
		convey.So(pair.Reference, convey.ShouldEqual, 75.0)
	})

	convey.Convey("Given no quota at all", t, func() {
		pair := model.SelectQuotas(nil)

		convey.So(pair.Found, convey.ShouldBeFalse)
		convey.So(pair.Current, convey.ShouldEqual, model.DefaultQuota)
		convey.So(pair.Reference, convey.ShouldEqual, model.DefaultQuota)
	})
}

func TestField(t *testing.T) {
	convey.Convey("Given a field with a market trend series", t, func() {
		trend, err := model.ParseMarketTrend(map[string]float64{"2022": 0.6, "2024": 0.8, "2023": 0.7})
		convey.So(err, convey.ShouldBeNil)
		f := model.Field{ID: "f1", Name: "Data Science", Interests: []string{"technology", "data"}, MarketTrend: trend}

		convey.Convey("Then the latest year is used", func() {
			v, ok := f.LatestMarketTrend()
			convey.So(ok, convey.ShouldBeTrue)
			convey.So(v, convey.ShouldEqual, 0.8)
		})

		convey.Convey("Then matching interests keep the student order", func() {
			convey.So(f.MatchingInterests([]string{"data", "art", "technology"}), convey.ShouldResemble, []string{"data", "technology"})
		})
	})

	convey.Convey("Given a field without a trend", t, func() {
		v, ok := model.Field{}.LatestMarketTrend()

		convey.So(ok, convey.ShouldBeFalse)
		convey.So(v, convey.ShouldEqual, model.DefaultMarketTrend)
	})

	convey.Convey("Given a trend series with a bad year key", t, func() {
		_, err := model.ParseMarketTrend(map[string]float64{"recent": 0.5})

		convey.So(errors.Is(err, model.ErrInvalidRecord), convey.ShouldBeTrue)
	})
}

func TestSafetyBandRank(t *testing.T) {
	convey.Convey("Given the three safety bands", t, func() {
		convey.So(model.BandSafe.Rank(), convey.ShouldBeLessThan, model.BandConsider.Rank())
		convey.So(model.BandConsider.Rank(), convey.ShouldBeLessThan, model.BandRisky.Rank())
		convey.So(model.ParseTier("HIGH"), convey.ShouldEqual, model.TierHigh)
		convey.So(model.ParseTier("unknown"), convey.ShouldEqual, model.TierMedium)
	})
}
