package calendar_test

import (
	"testing"
	"time"

	. "github.com/smartystreets/goconvey/convey"

	"agendacal/internal/calendar"
	"agendacal/internal/locale"
	"agendacal/internal/model"
)

func ids(evs []model.EventRecord) []int {
	out := make([]int, len(evs))
	for i, e := range evs {
		out[i] = e.ID
	}
	return out
}

func sampleEvents() []model.EventRecord {
	return []model.EventRecord{
		{ID: 1, Title: "Show A", Timestamp: at(2024, time.March, 5, 20, 0), City: "  SÃO paulo "},
		{ID: 2, Title: "Show B", Timestamp: at(2024, time.March, 5, 22, 0), City: ""},
		{ID: 3, Title: "Show C", Timestamp: at(2024, time.April, 2, 19, 0), City: "Recife"},
		{ID: 4, Title: "Show D", Timestamp: at(2024, time.March, 28, 18, 0), City: "são Paulo"},
		{ID: 5, Title: "Show E", Timestamp: at(2024, time.March, 1, 10, 0), City: "RECIFE "},
		{ID: 6, Title: "Show F", Timestamp: at(2025, time.March, 1, 10, 0), City: "Recife"},
	}
}

func TestAggregateByMonthAndLocation(t *testing.T) {
	Convey("Given the March 2024 scenario", t, func() {
		events := sampleEvents()[:2]
		got := calendar.AggregateByMonthAndLocation(events)

		Convey("Then there is one month with two location buckets", func() {
			So(len(got), ShouldEqual, 1)
			So(got[0].Label, ShouldEqual, "março 2024")
			locs, ok := got.Month("março 2024")
			So(ok, ShouldBeTrue)
			So(locs.Labels(), ShouldResemble, []string{"São paulo", calendar.FallbackLocation})

			sp, _ := locs.Location("São paulo")
			So(ids(sp), ShouldResemble, []int{1})
			fb, _ := locs.Location("Evento")
			So(ids(fb), ShouldResemble, []int{2})
		})
	})

	Convey("Given events across several months and spellings", t, func() {
		events := sampleEvents()
		got := calendar.AggregateByMonthAndLocation(events)

		Convey("Then months appear in first-seen order", func() {
			labels := make([]string, len(got))
			for i, m := range got {
				labels[i] = m.Label
			}
			So(labels, ShouldResemble, []string{"março 2024", "abril 2024", "março 2025"})
			So(got[0].Month, ShouldEqual, at(2024, time.March, 1, 0, 0))
		})

		Convey("Then buckets keep input order, not time order", func() {
			march, _ := got.Month("março 2024")
			sp, _ := march.Location("São paulo")
			So(ids(sp), ShouldResemble, []int{1, 4})
			rec, _ := march.Location("Recife")
			So(ids(rec), ShouldResemble, []int{5})
		})

		Convey("Then the union of buckets is the input with multiplicity", func() {
			seen := map[int]int{}
			total := 0
			for _, m := range got {
				for _, l := range m.Locations {
					for _, e := range l.Events {
						seen[e.ID]++
						total++
					}
				}
			}
			So(total, ShouldEqual, len(events))
			for _, e := range events {
				So(seen[e.ID], ShouldEqual, 1)
			}
		})
	})

	Convey("Given no events", t, func() {
		got := calendar.AggregateByMonthAndLocation(nil)

		Convey("Then the result is empty", func() {
			So(got, ShouldBeEmpty)
			_, ok := got.Month("março 2024")
			So(ok, ShouldBeFalse)
		})
	})

	Convey("Given an English aggregator", t, func() {
		a := calendar.Aggregator{Locale: locale.English}
		got := a.ByMonthAndLocation(sampleEvents()[:1])

		Convey("Then month labels are in English", func() {
			So(got[0].Label, ShouldEqual, "March 2024")
		})
	})
}

func TestAggregateByLocation(t *testing.T) {
	Convey("Given events across several months", t, func() {
		events := sampleEvents()

		Convey("When filtering for March 2024", func() {
			got := calendar.AggregateByLocation(events, at(2024, time.March, 20, 0, 0))

			Convey("Then only March 2024 events are grouped", func() {
				So(got.Labels(), ShouldResemble, []string{"São paulo", "Evento", "Recife"})
				So(got.Len(), ShouldEqual, 4)
				rec, _ := got.Location("Recife")
				So(ids(rec), ShouldResemble, []int{5})
			})

			Convey("Then it matches the full aggregation for that month", func() {
				full, _ := calendar.AggregateByMonthAndLocation(events).Month(calendar.MonthLabel(at(2024, time.March, 1, 0, 0)))
				So(got, ShouldResemble, full)
			})
		})

		Convey("When filtering for a month with no events", func() {
			got := calendar.AggregateByLocation(events, at(2024, time.May, 1, 0, 0))

			Convey("Then the result is empty", func() {
				So(got, ShouldBeEmpty)
				So(got.Len(), ShouldEqual, 0)
			})
		})
	})
}

func TestNormalizeLocation(t *testing.T) {
	Convey("Given raw city values", t, func() {
		cases := map[string]string{
			"  SÃO paulo ":   "São paulo",
			"são paulo":      "São paulo",
			"RIO DE JANEIRO": "Rio de janeiro",
			"":               calendar.FallbackLocation,
			"   \t":          calendar.FallbackLocation,
			"évora":          "Évora",
			"1 de maio":      "1 de maio",
		}

		Convey("Then they normalise to their labels", func() {
			for in, want := range cases {
				So(calendar.NormalizeLocation(in), ShouldEqual, want)
			}
		})

		Convey("Then case and surrounding whitespace do not matter", func() {
			So(calendar.NormalizeLocation(" Recife"), ShouldEqual, calendar.NormalizeLocation("RECIFE  "))
		})

		Convey("Then normalising is idempotent", func() {
			inputs := []string{"  SÃO paulo ", "", "EVENTO", "évora", "ǆungla", "x", " İstanbul", "\xff\xfebad"}
			for _, in := range inputs {
				once := calendar.NormalizeLocation(in)
				So(calendar.NormalizeLocation(once), ShouldEqual, once)
			}
		})
	})
}

func TestZeroAggregator(t *testing.T) {
	Convey("Given an Aggregator with no locale set", t, func() {
		var a calendar.Aggregator
		events := []model.EventRecord{
			{ID: 1, Title: "Março", Timestamp: at(2024, time.March, 5, 20, 0), City: "Recife"},
			{ID: 2, Title: "Setembro", Timestamp: at(2024, time.September, 5, 20, 0), City: "Recife"},
		}

		Convey("Then the month filter still excludes other months of the year", func() {
			got := a.ByLocation(events, at(2024, time.March, 1, 0, 0))
			So(got.Len(), ShouldEqual, 1)
			So(got[0].Events[0].ID, ShouldEqual, 1)
		})

		Convey("Then months stay apart and fall back to the default labels", func() {
			got := a.ByMonthAndLocation(events)
			So(len(got), ShouldEqual, 2)
			So(got[0].Label, ShouldEqual, "março 2024")
			So(got[1].Label, ShouldEqual, "setembro 2024")
		})
	})
}
