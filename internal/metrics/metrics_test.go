package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	. "github.com/smartystreets/goconvey/convey"
)

func TestMetrics(t *testing.T) {
	Convey("Given a fresh metrics set", t, func() {
		m := New()

		Convey("When refreshes are recorded", func() {
			m.RecordRefresh(50*time.Millisecond, false, 12)
			m.RecordRefresh(10*time.Millisecond, true, 3)

			Convey("Then counters and gauges follow", func() {
				So(testutil.ToFloat64(m.refreshes), ShouldEqual, 2)
				So(testutil.ToFloat64(m.refreshFailures), ShouldEqual, 1)
				So(testutil.ToFloat64(m.eventsLoaded), ShouldEqual, 3)
			})
		})

		Convey("When a wrapped handler answers", func() {
			h := m.Middleware("calendar", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusTeapot)
			}))
			h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/calendar", nil))

			Convey("Then the request is counted with its status", func() {
				So(testutil.ToFloat64(m.httpRequests.WithLabelValues("calendar", "GET", "418")), ShouldEqual, 1)
			})

			Convey("Then the exposition contains the series", func() {
				rec := httptest.NewRecorder()
				m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
				So(rec.Code, ShouldEqual, http.StatusOK)
				So(strings.Contains(rec.Body.String(), "agendacal_http_requests_total"), ShouldBeTrue)
			})
		})
	})
}
