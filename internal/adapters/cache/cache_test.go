package cache_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/okian/admit/internal/adapters/cache"
	model "github.com/okian/admit/internal/domain/model"
	"github.com/okian/admit/internal/domain/resolve"
	"github.com/okian/admit/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func institutionKey(i model.Institution) resolve.Candidate {
	return resolve.Candidate{ID: i.ID, Name: i.Name, Codes: i.Codes()}
}

func TestCache(t *testing.T) {
	if err := logger.Init(logger.WithOutput(io.Discard)); err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	Convey("Given a cache over an institution loader", t, func() {
		clock := &fakeClock{now: time.Date(2024, 7, 1, 8, 0, 0, 0, time.UTC)}
		var loads atomic.Int32
		var fail atomic.Bool
		load := func(context.Context) ([]model.Institution, error) {
			loads.Add(1)
			if fail.Load() {
				return nil, errors.New("store down")
			}
			return []model.Institution{
				{ID: "hust", Code: "BKA", Name: "Hanoi University of Science and Technology", AliasCodes: []string{"HUST"}},
				{ID: "neu", Code: "KHA", Name: "National Economics University"},
			}, nil
		}
		c, err := cache.New("institutions", load, institutionKey,
			cache.WithTTL(time.Minute), cache.WithClock(clock.Now))
		So(err, ShouldBeNil)

		Convey("Then it starts stale and empty", func() {
			So(c.IsStale(), ShouldBeTrue)
			So(c.Age(), ShouldEqual, time.Duration(-1))
		})

		Convey("When read twice within the TTL", func() {
			s1, err := c.Get(ctx)
			So(err, ShouldBeNil)
			clock.Advance(30 * time.Second)
			s2, _ := c.Get(ctx)

			Convey("Then the store is queried once", func() {
				So(loads.Load(), ShouldEqual, 1)
				So(s1, ShouldEqual, s2)
				So(c.IsStale(), ShouldBeFalse)
			})

			Convey("Then codes and names map to ids", func() {
				id, ok := s1.Lookup("hust")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "hust")
				id, ok = s1.Lookup("national economics university")
				So(ok, ShouldBeTrue)
				So(id, ShouldEqual, "neu")
				inst, ok := s1.Get("neu")
				So(ok, ShouldBeTrue)
				So(inst.Code, ShouldEqual, "KHA")
			})
		})

		Convey("When the TTL expires", func() {
			_, _ = c.Get(ctx)
			clock.Advance(time.Minute)
			So(c.IsStale(), ShouldBeTrue)
			_, _ = c.Get(ctx)

			Convey("Then the next read refetches synchronously", func() {
				So(loads.Load(), ShouldEqual, 2)
				So(c.Age(), ShouldEqual, time.Duration(0))
			})
		})

		Convey("When a refetch fails after a successful load", func() {
			first, _ := c.Get(ctx)
			clock.Advance(2 * time.Minute)
			fail.Store(true)
			s, err := c.Get(ctx)

			Convey("Then the previous snapshot is served", func() {
				So(err, ShouldBeNil)
				So(s, ShouldEqual, first)
			})
		})

		Convey("When the very first load fails", func() {
			fail.Store(true)
			_, err := c.Get(ctx)

			So(err, ShouldNotBeNil)
		})

		Convey("When many readers race on an expired entry", func() {
			var wg sync.WaitGroup
			for i := 0; i < 16; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					s, err := c.Get(ctx)
					if err != nil || s.Len() != 2 {
						t.Error("unexpected snapshot")
					}
				}()
			}
			wg.Wait()

			Convey("Then every reader sees a whole snapshot", func() {
				So(loads.Load(), ShouldBeGreaterThanOrEqualTo, 1)
				So(c.IsStale(), ShouldBeFalse)
			})
		})
	})

	Convey("Given a cache without a loader", t, func() {
		_, err := cache.New[model.Field]("fields", nil, nil)
		So(errors.Is(err, cache.ErrNoLoader), ShouldBeTrue)
	})
}
