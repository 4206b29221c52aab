package agenda

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"agendacal/internal/locale"
	"agendacal/internal/metrics"
	"agendacal/internal/model"
	"agendacal/internal/source"
)

type fakeLoader struct {
	mu      sync.Mutex
	calls   int
	windows []source.Window
	records []model.EventRecord
	err     error
}

func (f *fakeLoader) Load(_ context.Context, _ []source.Source, w source.Window) ([]model.EventRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.windows = append(f.windows, w)
	return f.records, f.err
}

func (f *fakeLoader) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func TestService(t *testing.T) {
	now := time.Date(2024, time.March, 10, 15, 0, 0, 0, time.UTC)

	Convey("Given a service over a loader", t, func() {
		loader := &fakeLoader{records: []model.EventRecord{
			{ID: 1, Title: "Show A", Timestamp: time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC), City: "Recife"},
			{ID: 2, Title: "Show B", Timestamp: time.Date(2024, time.April, 2, 20, 0, 0, 0, time.UTC)},
		}}
		m := metrics.New()
		svc := NewService(loader, Options{
			Location:     time.UTC,
			Layout:       Layout{WeekStart: time.Sunday, Locale: locale.PtBR},
			HorizonDays:  30,
			BackfillDays: 7,
			Metrics:      m,
			Now:          fixedClock(now),
		})

		Convey("Before the first refresh", func() {
			Convey("Then it holds no events", func() {
				So(svc.Events(), ShouldBeEmpty)
				So(svc.UpdatedAt().IsZero(), ShouldBeTrue)
				So(svc.Grouped(), ShouldBeEmpty)
			})
		})

		Convey("When refreshed", func() {
			err := svc.Refresh(context.Background())

			Convey("Then events are stored and the window surrounds now", func() {
				So(err, ShouldBeNil)
				So(len(svc.Events()), ShouldEqual, 2)
				So(svc.UpdatedAt(), ShouldEqual, now)
				w := loader.windows[0]
				So(w.Start, ShouldEqual, now.AddDate(0, 0, -7))
				So(w.End, ShouldEqual, now.AddDate(0, 0, 30))
				So(w.Location, ShouldEqual, time.UTC)
			})

			Convey("Then the returned events are a copy", func() {
				evs := svc.Events()
				evs[0].Title = "changed"
				So(svc.Events()[0].Title, ShouldEqual, "Show A")
			})

			Convey("Then the March view marks the 5th and today", func() {
				v := svc.View(time.Date(2024, time.March, 20, 0, 0, 0, 0, time.UTC))
				So(v.Label, ShouldEqual, "março 2024")
				So(v.Prev, ShouldEqual, "2024-02")
				So(v.Next, ShouldEqual, "2024-04")
				So(v.Weekdays[0], ShouldEqual, "DOM")
				So(len(v.Weeks), ShouldEqual, 6)
				So(v.Locations.Labels(), ShouldResemble, []string{"Recife"})
				for _, c := range v.Cells {
					if c.Blank {
						continue
					}
					So(c.HasEvent, ShouldEqual, c.Date.Day() == 5)
					So(c.IsToday, ShouldEqual, c.Date.Day() == 10)
				}
			})

			Convey("Then grouping covers every month", func() {
				g := svc.Grouped()
				So(len(g), ShouldEqual, 2)
				So(g[1].Label, ShouldEqual, "abril 2024")
				labels := g[1].Locations.Labels()
				So(labels, ShouldResemble, []string{"Evento"})
			})
		})

		Convey("When the loader fails outright", func() {
			_ = svc.Refresh(context.Background())
			loader.records, loader.err = nil, errors.New("all sources down")
			err := svc.Refresh(context.Background())

			Convey("Then the error is reported and the list degrades to empty", func() {
				So(err, ShouldNotBeNil)
				So(svc.Events(), ShouldNotBeNil)
				So(svc.Events(), ShouldBeEmpty)
				So(svc.View(now).Locations, ShouldBeEmpty)
			})
		})

		Convey("When scheduled every second", func() {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()
			So(svc.Start(ctx, "@every 1s"), ShouldBeNil)

			Convey("Then the loader is called by the scheduler", func() {
				deadline := time.Now().Add(5 * time.Second)
				for loader.callCount() == 0 && time.Now().Before(deadline) {
					time.Sleep(50 * time.Millisecond)
				}
				So(loader.callCount(), ShouldBeGreaterThan, 0)
			})
		})

		Convey("When given a bad schedule", func() {
			So(svc.Start(context.Background(), "not a schedule"), ShouldNotBeNil)
		})
	})
}

func TestServiceDefaultLayout(t *testing.T) {
	Convey("Given a service built without a layout", t, func() {
		loader := &fakeLoader{records: []model.EventRecord{
			{ID: 1, Title: "Show A", Timestamp: time.Date(2024, time.March, 5, 20, 0, 0, 0, time.UTC), City: "Recife"},
			{ID: 2, Title: "Show B", Timestamp: time.Date(2024, time.September, 5, 20, 0, 0, 0, time.UTC), City: "Recife"},
		}}
		svc := NewService(loader, Options{
			Location: time.UTC,
			Now:      fixedClock(time.Date(2024, time.March, 10, 0, 0, 0, 0, time.UTC)),
		})
		So(svc.Refresh(context.Background()), ShouldBeNil)

		Convey("When viewing March 2024", func() {
			v := svc.View(time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC))

			Convey("Then the default locale labels it and only March is listed", func() {
				So(v.Label, ShouldEqual, "março 2024")
				So(v.Weekdays[0], ShouldEqual, "DOM")
				So(v.Locations.Len(), ShouldEqual, 1)
				So(v.Locations[0].Events[0].ID, ShouldEqual, 1)
			})
		})
	})
}
