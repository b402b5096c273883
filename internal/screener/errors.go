package screener

import "errors"

var (
	// ErrBaselineUnavailable aborts a run before any worker starts.
	ErrBaselineUnavailable = errors.New("baseline series unavailable")
	// ErrItemFetch wraps a per-item fetch failure.
	ErrItemFetch = errors.New("item fetch failed")
	// ErrItemAnalysis wraps a per-item analysis failure.
	ErrItemAnalysis = errors.New("item analysis failed")
)
