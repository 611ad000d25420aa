package service

import "errors"

var (
	// ErrInvalidFilter rejects malformed input before any query runs.
	ErrInvalidFilter = errors.New("invalid filter")
	// ErrAreaTooLarge is the resource-guard trip for oversized areas.
	ErrAreaTooLarge = errors.New("area too large to analyze")
	// ErrUpstreamTimeout is a store deadline breach, distinct from
	// resource exhaustion.
	ErrUpstreamTimeout = errors.New("store query timed out")
	// ErrLocationNotFound distinguishes "no data in this cell" from
	// "data with no pattern".
	ErrLocationNotFound = errors.New("no stops recorded for grid cell")
)

// datasetNotReadyNote is attached as meta when the import job has not
// populated the store yet. An empty dataset is a normal state here.
const datasetNotReadyNote = "stop records not imported yet; returning empty analytics"
