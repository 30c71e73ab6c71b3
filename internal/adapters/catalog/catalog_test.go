package catalog_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/admit/internal/adapters/catalog"
	model "github.com/okian/admit/internal/domain/model"
	. "github.com/smartystreets/goconvey/convey"
)

const fixtureYAML = `
fields:
  - {id: cs, name: Computer Science, interests: [technology], market_trend: {2023: 0.7, 2024: 0.9}}
institutions:
  - {code: bka, name: Hanoi University of Science and Technology, tier: HIGH}
benchmark_records:
  - {institution: BKA, field: Computer Science, combination: a00, year: 2023, score: 27}
  - {institution: BKA, field: Computer Science, combination: A00, year: 2024, score: "27.5"}
admission_quotas:
  - {institution: BKA, field: Computer Science, year: 2024, quota: "320-360"}
`

func writeFixture(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	if err := os.WriteFile(path, []byte(fixtureYAML), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given a memory store with benchmark documents", t, func() {
		m := catalog.NewMemoryStore()
		So(m.Insert(catalog.BenchmarkRecords,
			catalog.Document{"institution": "BKA", "year": 2022, "score": 26.0},
			catalog.Document{"institution": "BKA", "year": 2024, "score": 27.5},
			catalog.Document{"institution": "KHA", "year": 2023, "score": 26.9},
		), ShouldBeNil)

		Convey("When filtering by equality", func() {
			docs, err := m.Find(ctx, catalog.BenchmarkRecords, catalog.Filter{"institution": "BKA"})

			So(err, ShouldBeNil)
			So(len(docs), ShouldEqual, 2)
		})

		Convey("When filtering by a list of values", func() {
			docs, _ := m.Find(ctx, catalog.BenchmarkRecords, catalog.Filter{"year": []int{2023, 2024}})

			So(len(docs), ShouldEqual, 2)
		})

		Convey("When sorting, limiting and projecting", func() {
			docs, _ := m.Find(ctx, catalog.BenchmarkRecords, nil,
				catalog.WithSort(catalog.SortKey{Field: "year", Desc: true}),
				catalog.WithLimit(2),
				catalog.WithProjection("year"))

			So(len(docs), ShouldEqual, 2)
			So(docs[0], ShouldResemble, catalog.Document{"year": 2024})
			So(docs[1], ShouldResemble, catalog.Document{"year": 2023})
		})

		Convey("When a returned document is modified", func() {
			docs, _ := m.Find(ctx, catalog.BenchmarkRecords, nil)
			docs[0]["institution"] = "changed"
			again, _ := m.Find(ctx, catalog.BenchmarkRecords, catalog.Filter{"institution": "changed"})

			Convey("Then the store is unaffected", func() {
				So(len(again), ShouldEqual, 0)
			})
		})

		Convey("When an unknown collection is queried", func() {
			_, err := m.Find(ctx, catalog.Collection("students"), nil)
			So(errors.Is(err, catalog.ErrUnknownCollection), ShouldBeTrue)
		})

		Convey("When the store is closed", func() {
			So(m.Close(ctx), ShouldBeNil)
			_, err := m.Find(ctx, catalog.Fields, nil)
			So(errors.Is(err, catalog.ErrClosed), ShouldBeTrue)
		})
	})
}

func TestRepository(t *testing.T) {
	ctx := context.Background()

	Convey("Given a repository over a YAML fixture", t, func() {
		store, err := catalog.LoadFixture(writeFixture(t))
		So(err, ShouldBeNil)
		repo := catalog.NewRepository(store)

		Convey("Then fields decode with their year-keyed trend", func() {
			fields, err := repo.Fields(ctx)
			So(err, ShouldBeNil)
			So(len(fields), ShouldEqual, 1)
			So(fields[0].MarketTrend, ShouldResemble, map[int]float64{2023: 0.7, 2024: 0.9})
		})

		Convey("Then institutions default their id to the code", func() {
			insts, err := repo.Institutions(ctx)
			So(err, ShouldBeNil)
			So(insts[0].ID, ShouldEqual, "BKA")
			So(insts[0].Tier, ShouldEqual, model.TierHigh)
		})

		Convey("Then benchmark scores accept numeric strings", func() {
			recs, err := repo.Benchmarks(ctx, catalog.Filter{"institution": "BKA"})
			So(err, ShouldBeNil)
			So(len(recs), ShouldEqual, 2)
			So(recs[0].Combination, ShouldEqual, "A00")
			So(recs[1].Score, ShouldEqual, 27.5)
		})

		Convey("Then quota ranges decode to their midpoint", func() {
			qs, err := repo.Quotas(ctx, nil)
			So(err, ShouldBeNil)
			So(qs[0].Quota, ShouldEqual, 340.0)
			So(qs[0].Year, ShouldEqual, 2024)
		})

		Convey("Then interests fall back to field tags", func() {
			tags, err := repo.Interests(ctx)
			So(err, ShouldBeNil)
			So(tags, ShouldResemble, []string{"technology"})
		})
	})

	Convey("Given a benchmark with a fractional year", t, func() {
		m := catalog.NewMemoryStore()
		So(m.Insert(catalog.BenchmarkRecords, catalog.Document{"year": 2023.5, "score": 1}), ShouldBeNil)
		_, err := catalog.NewRepository(m).Benchmarks(ctx, nil)

		So(errors.Is(err, catalog.ErrDecode), ShouldBeTrue)
	})

	Convey("Given benchmark years decoded as floats", t, func() {
		m := catalog.NewMemoryStore()
		So(m.Insert(catalog.BenchmarkRecords,
			catalog.Document{"institution": "BKA", "year": 2023.0, "score": 26.5},
			catalog.Document{"institution": "KHA", "year": 1e300, "score": 26.5},
		), ShouldBeNil)
		repo := catalog.NewRepository(m)

		Convey("Then whole values narrow to int", func() {
			recs, err := repo.Benchmarks(ctx, catalog.Filter{"institution": "BKA"})
			So(err, ShouldBeNil)
			So(recs, ShouldHaveLength, 1)
			So(recs[0].Year, ShouldEqual, 2023)
		})

		Convey("Then values beyond int range are rejected", func() {
			_, err := repo.Benchmarks(ctx, catalog.Filter{"institution": "KHA"})
			So(errors.Is(err, catalog.ErrDecode), ShouldBeTrue)
		})
	})

	Convey("Given the bundled demo catalog", t, func() {
		store, err := catalog.DemoStore()
		So(err, ShouldBeNil)
		repo := catalog.NewRepository(store)

		fields, err := repo.Fields(ctx)
		So(err, ShouldBeNil)
		So(len(fields), ShouldBeGreaterThan, 3)

		combos, err := repo.Combinations(ctx)
		So(err, ShouldBeNil)
		So(combos["A00"].Subjects, ShouldResemble, []model.Subject{model.Math, model.Physics, model.Chemistry})

		insts, err := repo.Institutions(ctx)
		So(err, ShouldBeNil)
		So(len(insts), ShouldBeGreaterThan, 3)
	})
}

func TestSQLStore(t *testing.T) {
	ctx := context.Background()

	Convey("Given an in-memory sqlite store", t, func() {
		s, err := catalog.OpenSQL(ctx, catalog.DriverSQLite, "file:"+t.Name()+"?mode=memory&cache=shared")
		So(err, ShouldBeNil)
		defer func() { _ = s.Close(ctx) }()

		Convey("When a fixture is seeded twice", func() {
			path := writeFixture(t)
			So(s.Seed(ctx, path), ShouldBeNil)
			So(s.Seed(ctx, path), ShouldBeNil)

			Convey("Then collections are replaced, not duplicated", func() {
				docs, err := s.Find(ctx, catalog.BenchmarkRecords, catalog.Filter{"institution": "BKA"})
				So(err, ShouldBeNil)
				So(len(docs), ShouldEqual, 2)
			})

			Convey("Then the repository decodes rows like memory documents", func() {
				repo := catalog.NewRepository(s)
				qs, err := repo.Quotas(ctx, nil)
				So(err, ShouldBeNil)
				So(qs[0].Quota, ShouldEqual, 340.0)

				fields, err := repo.Fields(ctx)
				So(err, ShouldBeNil)
				So(fields[0].MarketTrend[2024], ShouldEqual, 0.9)
			})
		})
	})

	Convey("Given an unsupported driver", t, func() {
		_, err := catalog.OpenSQL(ctx, catalog.Driver("oracle"), "")
		So(errors.Is(err, catalog.ErrUnsupportedDriver), ShouldBeTrue)

		_, err = catalog.Open(ctx, catalog.Config{Driver: "cassandra"})
		So(errors.Is(err, catalog.ErrUnsupportedDriver), ShouldBeTrue)
	})
}
