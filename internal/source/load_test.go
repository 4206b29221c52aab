package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	. "github.com/smartystreets/goconvey/convey"
)

func TestLoader(t *testing.T) {
	Convey("Given a mix of healthy, malformed and recurring sources", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/agenda", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(agendaBody))
		})
		mux.HandleFunc("/dup", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`[{"id": 2, "titulo": "Duplicate", "data": "2024-03-09T10:00"}]`))
		})
		mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(`{"message": "internal error"}`))
		})
		mux.HandleFunc("/feed.ics", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/calendar")
			_, _ = w.Write([]byte(strings.ReplaceAll(sampleICS, "\n", "\r\n")))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		l := &Loader{Fetcher: NewFetcher(t.TempDir())}
		records, err := l.Load(context.Background(), []Source{
			{ID: "agenda", URL: srv.URL + "/agenda", Kind: KindJSON},
			{ID: "dup", URL: srv.URL + "/dup"},
			{ID: "broken", URL: srv.URL + "/broken", Kind: KindJSON},
			{ID: "feed", URL: srv.URL + "/feed.ics", Kind: KindICS},
			{ID: "odd", URL: srv.URL + "/agenda", Kind: "xml"},
		}, marchWindow())

		Convey("Then healthy sources still deliver their events", func() {
			So(len(records), ShouldEqual, 6)
			So(records[0].Title, ShouldEqual, "Show A")
			So(records[1].Title, ShouldEqual, "Show B")
			So(records[2].Title, ShouldEqual, "Show A")
		})

		Convey("Then failures are reported without being fatal", func() {
			So(err, ShouldNotBeNil)
			So(err.Error(), ShouldContainSubstring, "broken")
			So(err.Error(), ShouldContainSubstring, "odd")
			So(err.Error(), ShouldNotContainSubstring, "dup")
		})
	})
}

// These two UIDs share an id under a 31-bit FNV-32a hash at 2024-03-05 20:00 UTC.
const twinUIDsICS = `BEGIN:VCALENDAR
VERSION:2.0
PRODID:-//agendacal//test//EN
BEGIN:VEVENT
UID:show-238418@agendacal.test
DTSTAMP:20240101T000000Z
DTSTART:20240305T200000Z
SUMMARY:Show 238418
END:VEVENT
BEGIN:VEVENT
UID:show-810696@agendacal.test
DTSTAMP:20240101T000000Z
DTSTART:20240305T200000Z
SUMMARY:Show 810696
END:VEVENT
END:VCALENDAR
`

func TestLoaderKeepsDistinctOccurrences(t *testing.T) {
	Convey("Given a feed whose UIDs collide in a 32-bit hash", t, func() {
		mux := http.NewServeMux()
		mux.HandleFunc("/twins.ics", func(w http.ResponseWriter, _ *http.Request) {
			_, _ = w.Write([]byte(strings.ReplaceAll(twinUIDsICS, "\n", "\r\n")))
		})
		srv := httptest.NewServer(mux)
		defer srv.Close()

		l := &Loader{Fetcher: NewFetcher(t.TempDir())}
		records, err := l.Load(context.Background(), []Source{
			{ID: "twins", URL: srv.URL + "/twins.ics", Kind: KindICS},
		}, marchWindow())

		Convey("Then both events survive de-duplication", func() {
			So(err, ShouldBeNil)
			So(len(records), ShouldEqual, 2)
			So(records[0].ID, ShouldNotEqual, records[1].ID)
			So(records[0].ID, ShouldBeGreaterThan, 0)
			So(records[1].ID, ShouldBeGreaterThan, 0)
		})
	})
}
