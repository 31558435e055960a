package storage

import (
	"context"
	"errors"

	"github.com/liu-chun-wu/SleepGenius/internal"
)

// ErrNotFound is returned by single-row lookups when no summary
// matches. Collection queries return empty slices instead.
var ErrNotFound = errors.New("storage: not found")

// SleepRepository persists one night's worth of Garmin sleep data and
// serves the read paths. SaveNight is atomic per night: the summary is
// upserted by ID and the night's segment and respiration rows are
// replaced, all or nothing.
type SleepRepository interface {
	SaveNight(ctx context.Context, summary *internal.SleepSummary, segments []internal.SleepStageSegment, samples []internal.SleepRespiration) error

	ListSummaries(ctx context.Context) ([]internal.SleepSummary, error)
	ListSummariesBetween(ctx context.Context, start, end internal.Date) ([]internal.SleepSummary, error)
	GetSummaryByID(ctx context.Context, summaryID string) (*internal.SleepSummary, error)
	GetSummaryByDate(ctx context.Context, date internal.Date) (*internal.SleepSummary, error)
	BestSummary(ctx context.Context) (*internal.SleepSummary, error)

	ListSegments(ctx context.Context, summaryID string) ([]internal.SleepStageSegment, error)
	ListRespiration(ctx context.Context, summaryID string) ([]internal.SleepRespiration, error)
}
