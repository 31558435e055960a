package internal

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// DateLayout is the calendar-date wire format used by Garmin exports
// and by every date-typed request parameter.
const DateLayout = "2006-01-02"

// Date is a calendar date without a time component. It marshals as
// "yyyy-MM-dd" and scans from both DATE columns and plain strings.
type Date struct {
	time.Time
}

func NewDate(year int, month time.Month, day int) Date {
	return Date{time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want yyyy-MM-dd", s)
	}
	return Date{t}, nil
}

func (d Date) String() string {
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.Format(DateLayout) + `"`), nil
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date %s", s)
	}
	parsed, err := ParseDate(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d *Date) Scan(src interface{}) error {
	switch v := src.(type) {
	case time.Time:
		d.Time = time.Date(v.Year(), v.Month(), v.Day(), 0, 0, 0, 0, time.UTC)
		return nil
	case string:
		parsed, err := ParseDate(v)
		if err != nil {
			return err
		}
		*d = parsed
		return nil
	default:
		return fmt.Errorf("cannot scan %T into Date", src)
	}
}

func (d Date) Value() (driver.Value, error) {
	return d.Time, nil
}

// SleepSummary is one night's aggregate sleep record. SummaryID comes
// from the Garmin export and is the primary key; re-importing the same
// ID overwrites the row.
type SleepSummary struct {
	SummaryID      string  `json:"summaryId"`
	Date           Date    `json:"date"`
	TotalDuration  int     `json:"totalDuration"`
	DeepSleep      int     `json:"deepSleep"`
	LightSleep     int     `json:"lightSleep"`
	RemSleep       int     `json:"remSleep"`
	AwakeSleep     int     `json:"awakeSleep"`
	OverallScore   *int    `json:"overallScore"`
	ScoreQualifier *string `json:"scoreQualifier"`
}

// SleepStageSegment is one contiguous sleep-stage interval within a
// night. StageType is an open label set (light, deep, rem, awake, ...).
// Start and end are epoch seconds; Duration is end - start as computed
// at import time and is not revalidated on read.
type SleepStageSegment struct {
	ID        int64  `json:"id,omitempty"`
	SummaryID string `json:"summaryId"`
	StageType string `json:"stageType"`
	StartTime int64  `json:"startTime"`
	EndTime   int64  `json:"endTime"`
	Duration  int    `json:"duration"`
}

// SleepRespiration is one breathing-rate sample, offset in seconds
// from the start of the night.
type SleepRespiration struct {
	ID              int64   `json:"id,omitempty"`
	SummaryID       string  `json:"summaryId"`
	OffsetSeconds   int     `json:"offsetSeconds"`
	RespirationRate float64 `json:"respirationRate"`
}

type AppError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func NewAppError(code int, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

func (e *AppError) Error() string {
	return e.Message
}
