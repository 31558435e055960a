package service

import (
	"context"

	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

// StageSegmentView is the client shape of a segment: the parent
// summary ID is denormalized into every row.
type StageSegmentView struct {
	StageType string `json:"stageType"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Duration  int    `json:"duration"`
	SummaryID string `json:"summaryId"`
}

// RespirationView carries the parent summary ID and date alongside
// each sample.
type RespirationView struct {
	OffsetSeconds   int     `json:"offsetSeconds"`
	RespirationRate float64 `json:"respirationRate"`
	SummaryID       string  `json:"summaryId"`
	Date            string  `json:"date"`
}

// ResolveSummary looks a night up by calendar date when idOrDate
// parses as yyyy-MM-dd, by summary ID otherwise.
func ResolveSummary(ctx context.Context, repo storage.SleepRepository, idOrDate string) (*internal.SleepSummary, error) {
	if date, err := internal.ParseDate(idOrDate); err == nil {
		return repo.GetSummaryByDate(ctx, date)
	}
	return repo.GetSummaryByID(ctx, idOrDate)
}

func StagesForNight(ctx context.Context, repo storage.SleepRepository, idOrDate string) ([]StageSegmentView, error) {
	summary, err := ResolveSummary(ctx, repo, idOrDate)
	if err != nil {
		return nil, err
	}
	segments, err := repo.ListSegments(ctx, summary.SummaryID)
	if err != nil {
		return nil, err
	}

	views := make([]StageSegmentView, len(segments))
	for i, s := range segments {
		views[i] = StageSegmentView{
			StageType: s.StageType,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Duration:  s.Duration,
			SummaryID: summary.SummaryID,
		}
	}
	return views, nil
}

func RespirationForNight(ctx context.Context, repo storage.SleepRepository, idOrDate string) ([]RespirationView, error) {
	summary, err := ResolveSummary(ctx, repo, idOrDate)
	if err != nil {
		return nil, err
	}
	samples, err := repo.ListRespiration(ctx, summary.SummaryID)
	if err != nil {
		return nil, err
	}

	views := make([]RespirationView, len(samples))
	for i, r := range samples {
		views[i] = RespirationView{
			OffsetSeconds:   r.OffsetSeconds,
			RespirationRate: r.RespirationRate,
			SummaryID:       summary.SummaryID,
			Date:            summary.Date.String(),
		}
	}
	return views, nil
}
