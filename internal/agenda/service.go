// Package agenda keeps the current event list in memory, refreshes it from
// the configured sources on a cron schedule and builds month views from it.
package agenda

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"agendacal/internal/calendar"
	"agendacal/internal/locale"
	appLog "agendacal/internal/log"
	"agendacal/internal/metrics"
	"agendacal/internal/model"
	"agendacal/internal/source"
)

// Loader produces the flat event list for a set of sources.
type Loader interface {
	Load(ctx context.Context, sources []source.Source, w source.Window) ([]model.EventRecord, error)
}

// Options configures a Service.
type Options struct {
	Sources  []source.Source
	Location *time.Location
	Layout   Layout // zero Locale means locale.Default

	// HorizonDays and BackfillDays bound recurrence expansion around now.
	HorizonDays  int
	BackfillDays int

	// Metrics is optional.
	Metrics *metrics.Metrics

	// Now defaults to time.Now.
	Now func() time.Time
}

// Service holds the last loaded events. It is safe for concurrent use.
type Service struct {
	loader Loader
	opts   Options

	mu        sync.RWMutex
	events    []model.EventRecord
	updatedAt time.Time
}

// NewService creates a Service with an empty event list.
func NewService(loader Loader, opts Options) *Service {
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.Layout.Locale.Tag == "" {
		opts.Layout.Locale = locale.Default
	}
	return &Service{loader: loader, opts: opts, events: []model.EventRecord{}}
}

// Now returns the current time in the display location.
func (s *Service) Now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// Location is the display location.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

// Refresh reloads every source and replaces the stored list with whatever
// was loaded. Failing sources contribute no events; the returned error
// reports them but the refresh itself still takes effect.
func (s *Service) Refresh(ctx context.Context) error {
	started := time.Now()
	now := s.Now()
	w := source.Window{
		Location: s.opts.Location,
		Start:    now.AddDate(0, 0, -s.opts.BackfillDays),
		End:      now.AddDate(0, 0, s.opts.HorizonDays),
	}

	records, err := s.loader.Load(ctx, s.opts.Sources, w)
	if records == nil {
		records = []model.EventRecord{}
	}
	if err != nil {
		appLog.Error("refresh: some sources failed", err, "loaded", len(records))
	}

	s.mu.Lock()
	s.events = records
	s.updatedAt = now
	s.mu.Unlock()

	if s.opts.Metrics != nil {
		s.opts.Metrics.RecordRefresh(time.Since(started), err != nil, len(records))
	}
	appLog.Info("refresh completed", "events", len(records), "sources", len(s.opts.Sources), "took", time.Since(started).Round(time.Millisecond))
	return err
}

// Events returns a copy of the stored events.
func (s *Service) Events() []model.EventRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.events)
}

// UpdatedAt is the time of the last refresh, zero before the first one.
func (s *Service) UpdatedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.updatedAt
}

// View builds the month view for month, marking today from the clock.
func (s *Service) View(month time.Time) MonthView {
	return BuildView(s.Events(), month.In(s.opts.Location), s.Now(), s.opts.Layout)
}

// Grouped returns every stored event grouped by month and location.
func (s *Service) Grouped() calendar.GroupedEvents {
	return calendar.Aggregator{Locale: s.opts.Layout.Locale}.ByMonthAndLocation(s.Events())
}

// Start schedules Refresh on spec (standard five-field cron) until ctx is done.
func (s *Service) Start(ctx context.Context, spec string) error {
	c := cron.New(cron.WithLocation(s.opts.Location))
	if _, err := c.AddFunc(spec, func() {
		_ = s.Refresh(ctx)
	}); err != nil {
		return err
	}
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", spec)

	go func() {
		<-ctx.Done()
		<-c.Stop().Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}
