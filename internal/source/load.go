package source

import (
	"context"
	"errors"
	"fmt"

	appLog "agendacal/internal/log"
	"agendacal/internal/model"
)

// Loader turns configured sources into one flat event list.
type Loader struct {
	Fetcher *Fetcher
}

// Load fetches and decodes every source. A source that fails to fetch or
// decode contributes no events; its error is joined into the returned error
// while the events of the other sources are still returned. Records with an
// ID already seen are dropped, first one wins. w bounds calendar-feed
// expansion and sets the display location for every source.
func (l *Loader) Load(ctx context.Context, sources []Source, w Window) ([]model.EventRecord, error) {
	results, errs := l.Fetcher.FetchAll(ctx, sources)

	out := make([]model.EventRecord, 0)
	seen := make(map[int]struct{})
	for _, res := range results {
		records, err := decode(res, w)
		if err != nil {
			appLog.Error("source decode failed; treating as empty", err, "id", res.Source.ID)
			errs = append(errs, fmt.Errorf("source %s: %w", res.Source.ID, err))
			continue
		}
		for _, rec := range records {
			if _, dup := seen[rec.ID]; dup {
				appLog.Warn("duplicate event id dropped", "id", res.Source.ID, "event_id", rec.ID)
				continue
			}
			seen[rec.ID] = struct{}{}
			out = append(out, rec)
		}
	}

	return out, errors.Join(errs...)
}

func decode(res FetchResult, w Window) ([]model.EventRecord, error) {
	switch res.Source.Kind {
	case KindICS:
		return DecodeICS(res.Source, res.Body, w)
	case KindJSON, "":
		return DecodeJSON(res.Source, res.Body, w.Location)
	default:
		return nil, fmt.Errorf("unknown source kind %q", res.Source.Kind)
	}
}
