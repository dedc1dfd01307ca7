package engine

import (
	"context"

	"github.com/IshaanNene/StoreScope/internal/config"
)

// StopReason says why a page walk ended.
type StopReason string

const (
	StopEmpty     StopReason = "empty_page"
	StopError     StopReason = "error"
	StopPageCap   StopReason = "page_cap"
	StopResultCap StopReason = "result_cap"
	StopTarget    StopReason = "expected_total"
	StopNoNext    StopReason = "no_next_page"
)

// PageFunc fetches or scans page number page (1-based).
type PageFunc[T any] func(ctx context.Context, page int) ([]T, error)

// AdvanceFunc moves a live page to page number page. It reports false when
// no such page exists.
type AdvanceFunc func(ctx context.Context, page int) (bool, error)

// PageWalk drives strictly ordered pagination into a sink.
type PageWalk[T any] struct {
	// MaxPages caps the pages read; <= 0 means no cap.
	MaxPages int
	// Delay is drawn fresh between pages.
	Delay config.DelayRange
	// EmptyLimit is the number of consecutive empty reads that end the
	// walk. Values below 1 count as 1.
	EmptyLimit int
	// Retry is waited before re-reading a page that came back empty.
	Retry config.DelayRange
	// Target ends the walk once the sink holds this many records.
	Target int
	// Advance is called before reading every page after the first. A nil
	// Advance means Fetch addresses pages directly.
	Advance AdvanceFunc
	// OnPage is called after every successful read.
	OnPage func(page, records int)
}

// WalkStats summarizes a finished walk.
type WalkStats struct {
	Pages int
	Added int
	Stop  StopReason
}

// Walk reads pages in order until a stop condition. The error is the
// fetch, advance or cancellation error that ended the walk, if any.
func (w PageWalk[T]) Walk(ctx context.Context, pacer *Pacer, sink Sink[T], fetch PageFunc[T]) (WalkStats, error) {
	var st WalkStats
	limit := w.EmptyLimit
	if limit < 1 {
		limit = 1
	}

	empty := 0
	for page := 1; ; {
		recs, err := fetch(ctx, page)
		if err != nil {
			st.Stop = StopError
			return st, err
		}
		if w.OnPage != nil {
			w.OnPage(page, len(recs))
		}

		if len(recs) == 0 {
			empty++
			if empty >= limit {
				st.Stop = StopEmpty
				return st, nil
			}
			if err := pacer.Wait(ctx, w.Retry); err != nil {
				st.Stop = StopError
				return st, err
			}
			continue
		}
		empty = 0
		st.Pages++

		for _, rec := range recs {
			if sink.Add(rec) {
				st.Added++
			}
			if sink.Full() {
				st.Stop = StopResultCap
				return st, nil
			}
		}
		if w.Target > 0 && sink.Len() >= w.Target {
			st.Stop = StopTarget
			return st, nil
		}
		if w.MaxPages > 0 && page >= w.MaxPages {
			st.Stop = StopPageCap
			return st, nil
		}

		if w.Advance != nil {
			ok, err := w.Advance(ctx, page+1)
			if err != nil {
				st.Stop = StopError
				return st, err
			}
			if !ok {
				st.Stop = StopNoNext
				return st, nil
			}
		}
		if err := pacer.Wait(ctx, w.Delay); err != nil {
			st.Stop = StopError
			return st, err
		}
		page++
	}
}
