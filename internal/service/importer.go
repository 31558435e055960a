package service

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"github.com/liu-chun-wu/SleepGenius/internal"
	"github.com/liu-chun-wu/SleepGenius/internal/storage"
)

// nightRecord is the JSON blob embedded in the "data" column of a
// Garmin sleep export. Parsed in one step; no dynamic path lookups.
type nightRecord struct {
	SummaryID                   string                     `json:"summaryId"`
	CalendarDate                string                     `json:"calendarDate"`
	DurationInSeconds           int                        `json:"durationInSeconds"`
	DeepSleepDurationInSeconds  int                        `json:"deepSleepDurationInSeconds"`
	LightSleepDurationInSeconds int                        `json:"lightSleepDurationInSeconds"`
	RemSleepInSeconds           int                        `json:"remSleepInSeconds"`
	AwakeDurationInSeconds      int                        `json:"awakeDurationInSeconds"`
	OverallSleepScore           *overallScore              `json:"overallSleepScore"`
	SleepLevelsMap              map[string][]stageInterval `json:"sleepLevelsMap"`
	TimeOffsetSleepRespiration  map[string]float64         `json:"timeOffsetSleepRespiration"`
}

type overallScore struct {
	Value        *int    `json:"value"`
	QualifierKey *string `json:"qualifierKey"`
}

type stageInterval struct {
	StartTimeInSeconds int64 `json:"startTimeInSeconds"`
	EndTimeInSeconds   int64 `json:"endTimeInSeconds"`
}

type ImportFailure struct {
	Row   int    `json:"row"`
	Error string `json:"error"`
}

// ImportReport lists the per-record outcome of one CSV upload. Rows
// are 1-based data-row indices (the header row is not counted).
type ImportReport struct {
	Imported int             `json:"imported"`
	Failed   []ImportFailure `json:"failed,omitempty"`
}

// ImportCSV reads a Garmin sleep export and persists each night.
// Records are independent: a record is parsed fully, then written in
// one atomic SaveNight; a bad record is reported and the rest of the
// batch continues. An error return means the CSV itself was unusable
// and nothing was read past the failure point.
func ImportCSV(ctx context.Context, repo storage.SleepRepository, logger internal.Logger, r io.Reader) (*ImportReport, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}
	dataCol := -1
	for i, name := range header {
		if name == "data" {
			dataCol = i
			break
		}
	}
	if dataCol < 0 {
		return nil, fmt.Errorf("CSV header has no %q column", "data")
	}

	report := &ImportReport{}
	for row := 1; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV record %d: %w", row, err)
		}

		summary, segments, samples, err := parseNight(record[dataCol])
		if err != nil {
			logger.Warnf("import: skipping row %d: %v", row, err)
			report.Failed = append(report.Failed, ImportFailure{Row: row, Error: err.Error()})
			continue
		}
		if err := repo.SaveNight(ctx, summary, segments, samples); err != nil {
			logger.Errorf("import: failed to persist row %d (%s): %v", row, summary.SummaryID, err)
			report.Failed = append(report.Failed, ImportFailure{Row: row, Error: err.Error()})
			continue
		}
		report.Imported++
	}

	logger.Infof("import: %d nights imported, %d failed", report.Imported, len(report.Failed))
	return report, nil
}

func parseNight(data string) (*internal.SleepSummary, []internal.SleepStageSegment, []internal.SleepRespiration, error) {
	var rec nightRecord
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, nil, nil, fmt.Errorf("invalid night JSON: %w", err)
	}
	if rec.SummaryID == "" {
		return nil, nil, nil, fmt.Errorf("night JSON is missing summaryId")
	}
	date, err := internal.ParseDate(rec.CalendarDate)
	if err != nil {
		return nil, nil, nil, err
	}

	summary := &internal.SleepSummary{
		SummaryID:     rec.SummaryID,
		Date:          date,
		TotalDuration: rec.DurationInSeconds,
		DeepSleep:     rec.DeepSleepDurationInSeconds,
		LightSleep:    rec.LightSleepDurationInSeconds,
		RemSleep:      rec.RemSleepInSeconds,
		AwakeSleep:    rec.AwakeDurationInSeconds,
	}
	if rec.OverallSleepScore != nil {
		summary.OverallScore = rec.OverallSleepScore.Value
		summary.ScoreQualifier = rec.OverallSleepScore.QualifierKey
	}

	// Map iteration order is random; sort stage types so segment rows
	// come out in a stable order.
	stageTypes := make([]string, 0, len(rec.SleepLevelsMap))
	for stageType := range rec.SleepLevelsMap {
		stageTypes = append(stageTypes, stageType)
	}
	sort.Strings(stageTypes)

	var segments []internal.SleepStageSegment
	for _, stageType := range stageTypes {
		for _, iv := range rec.SleepLevelsMap[stageType] {
			segments = append(segments, internal.SleepStageSegment{
				SummaryID: rec.SummaryID,
				StageType: stageType,
				StartTime: iv.StartTimeInSeconds,
				EndTime:   iv.EndTimeInSeconds,
				Duration:  int(iv.EndTimeInSeconds - iv.StartTimeInSeconds),
			})
		}
	}

	var samples []internal.SleepRespiration
	for offsetStr, rate := range rec.TimeOffsetSleepRespiration {
		offset, err := strconv.Atoi(offsetStr)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("invalid respiration offset %q: %w", offsetStr, err)
		}
		samples = append(samples, internal.SleepRespiration{
			SummaryID:       rec.SummaryID,
			OffsetSeconds:   offset,
			RespirationRate: rate,
		})
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i].OffsetSeconds < samples[j].OffsetSeconds })

	return summary, segments, samples, nil
}
