package storage

import (
	"context"
	"testing"

	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func newTestStorage(t *testing.T) *FileStorage {
	t.Helper()
	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	s, err := NewFileStorage(t.TempDir(), logger)
	assert.NoError(t, err)
	return s
}

func night(id string, date internal.Date) *internal.SleepSummary {
	return &internal.SleepSummary{
		SummaryID:     id,
		Date:          date,
		TotalDuration: 28800,
	}
}

func intp(v int) *int { return &v }

func TestSaveNightAndLookups(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	summary := night("s1", internal.NewDate(2025, 6, 2))
	summary.OverallScore = intp(82)
	segments := []internal.SleepStageSegment{
		{StageType: "deep", StartTime: 1000, EndTime: 1500, Duration: 500},
	}
	samples := []internal.SleepRespiration{
		{OffsetSeconds: 0, RespirationRate: 14.5},
	}
	assert.NoError(t, s.SaveNight(ctx, summary, segments, samples))

	byID, err := s.GetSummaryByID(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, 82, *byID.OverallScore)

	byDate, err := s.GetSummaryByDate(ctx, internal.NewDate(2025, 6, 2))
	assert.NoError(t, err)
	assert.Equal(t, "s1", byDate.SummaryID)

	segs, err := s.ListSegments(ctx, "s1")
	assert.NoError(t, err)
	assert.Len(t, segs, 1)
	assert.Equal(t, "s1", segs[0].SummaryID)

	rs, err := s.ListRespiration(ctx, "s1")
	assert.NoError(t, err)
	assert.Len(t, rs, 1)
}

func TestNotFoundDistinctFromEmpty(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	_, err := s.GetSummaryByID(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.GetSummaryByDate(ctx, internal.NewDate(2025, 1, 1))
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.BestSummary(ctx)
	assert.ErrorIs(t, err, ErrNotFound)

	// Collection queries return empty, not an error.
	summaries, err := s.ListSummaries(ctx)
	assert.NoError(t, err)
	assert.Empty(t, summaries)
	summaries, err = s.ListSummariesBetween(ctx, internal.NewDate(2025, 1, 1), internal.NewDate(2025, 12, 31))
	assert.NoError(t, err)
	assert.Empty(t, summaries)
}

func TestRangeQueryInclusive(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	for day := 1; day <= 5; day++ {
		sum := night(string(rune('a'+day)), internal.NewDate(2025, 6, day))
		assert.NoError(t, s.SaveNight(ctx, sum, nil, nil))
	}

	got, err := s.ListSummariesBetween(ctx, internal.NewDate(2025, 6, 2), internal.NewDate(2025, 6, 4))
	assert.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "2025-06-02", got[0].Date.String())
	assert.Equal(t, "2025-06-04", got[2].Date.String())
}

func TestBestSummaryTieBreak(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	a := night("late", internal.NewDate(2025, 6, 5))
	a.OverallScore = intp(90)
	b := night("early", internal.NewDate(2025, 6, 1))
	b.OverallScore = intp(90)
	c := night("low", internal.NewDate(2025, 6, 3))
	c.OverallScore = intp(50)
	d := night("unscored", internal.NewDate(2025, 5, 1))

	for _, sum := range []*internal.SleepSummary{a, b, c, d} {
		assert.NoError(t, s.SaveNight(ctx, sum, nil, nil))
	}

	best, err := s.BestSummary(ctx)
	assert.NoError(t, err)
	// Max score wins; the tie goes to the earliest date.
	assert.Equal(t, "early", best.SummaryID)
}

func TestBestSummaryNilScoresSortLast(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	unscored := night("unscored", internal.NewDate(2025, 6, 1))
	scored := night("scored", internal.NewDate(2025, 6, 2))
	scored.OverallScore = intp(10)
	assert.NoError(t, s.SaveNight(ctx, unscored, nil, nil))
	assert.NoError(t, s.SaveNight(ctx, scored, nil, nil))

	best, err := s.BestSummary(ctx)
	assert.NoError(t, err)
	assert.Equal(t, "scored", best.SummaryID)
}

func TestSaveNightReplacesChildren(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()

	sum := night("s1", internal.NewDate(2025, 6, 2))
	first := []internal.SleepStageSegment{
		{StageType: "deep", StartTime: 100, EndTime: 200, Duration: 100},
		{StageType: "light", StartTime: 200, EndTime: 400, Duration: 200},
	}
	assert.NoError(t, s.SaveNight(ctx, sum, first, nil))

	second := []internal.SleepStageSegment{
		{StageType: "rem", StartTime: 500, EndTime: 600, Duration: 100},
	}
	assert.NoError(t, s.SaveNight(ctx, sum, second, nil))

	segs, err := s.ListSegments(ctx, "s1")
	assert.NoError(t, err)
	assert.Len(t, segs, 1)
	assert.Equal(t, "rem", segs[0].StageType)
}

func TestPersistenceAcrossReload(t *testing.T) {
	dir := t.TempDir()
	logger := internal.NewZapLogger(zap.NewNop().Sugar())
	ctx := context.Background()

	s, err := NewFileStorage(dir, logger)
	assert.NoError(t, err)
	sum := night("s1", internal.NewDate(2025, 6, 2))
	segments := []internal.SleepStageSegment{{StageType: "deep", StartTime: 100, EndTime: 200, Duration: 100}}
	assert.NoError(t, s.SaveNight(ctx, sum, segments, nil))
	assert.NoError(t, s.Close())

	reloaded, err := NewFileStorage(dir, logger)
	assert.NoError(t, err)
	defer reloaded.Close()

	got, err := reloaded.GetSummaryByID(ctx, "s1")
	assert.NoError(t, err)
	assert.Equal(t, "2025-06-02", got.Date.String())
	segs, err := reloaded.ListSegments(ctx, "s1")
	assert.NoError(t, err)
	assert.Len(t, segs, 1)
}
