package dedupe_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	dedupe "github.com/okian/admit/internal/domain/dedupe"
	. "github.com/smartystreets/goconvey/convey"
)

func TestInMemoryDeduper(t *testing.T) {
	ctx := context.Background()

	Convey("Given a new InMemoryDeduper", t, func() {
		Convey("When creating a deduper with default options", func() {
			d := dedupe.NewInMemoryDeduper()

			Convey("Then it should hold nothing yet", func() {
				So(d, ShouldNotBeNil)
				So(d.SeenAndRecord(ctx, "Law"), ShouldBeFalse)
			})
		})

		Convey("When recording names", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithCapacity(8))

			Convey("And the name is new", func() {
				seen := d.SeenAndRecord(ctx, "Computer Science")

				Convey("Then it should return false and record the name", func() {
					So(seen, ShouldBeFalse)
					So(d.SeenAndRecord(ctx, "Computer Science"), ShouldBeTrue)
				})
			})

			Convey("And the same name arrives with different case and spacing", func() {
				d.SeenAndRecord(ctx, "Computer Science")
				seen := d.SeenAndRecord(ctx, "  computer   SCIENCE ")

				Convey("Then it should collide with the first", func() {
					So(seen, ShouldBeTrue)
					So(d.SeenAndRecord(ctx, "Law"), ShouldBeFalse)
				})
			})
		})

		Convey("When a custom key function is given", func() {
			d := dedupe.NewInMemoryDeduper(dedupe.WithKeyFunc(func(s string) string {
				return strings.TrimSuffix(strings.ToLower(s), " (honors track)")
			}))
			d.SeenAndRecord(ctx, "Physics")

			Convey("Then aliases fold to one key", func() {
				So(d.SeenAndRecord(ctx, "Physics (Honors Track)"), ShouldBeTrue)
			})
		})

		Convey("When many goroutines record overlapping names", func() {
			d := dedupe.NewInMemoryDeduper()
			var wg sync.WaitGroup
			var mu sync.Mutex
			fresh := 0
			for g := 0; g < 8; g++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i := 0; i < 50; i++ {
						if !d.SeenAndRecord(ctx, fmt.Sprintf("field-%d", i)) {
							mu.Lock()
							fresh++
							mu.Unlock()
						}
					}
				}()
			}
			wg.Wait()

			Convey("Then each name is new exactly once", func() {
				So(fresh, ShouldEqual, 50)
				So(d.SeenAndRecord(ctx, "field-49"), ShouldBeTrue)
			})
		})
	})
}
