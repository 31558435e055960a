package storage

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/liu-chun-wu/SleepGenius/internal"
)

const schema = `
CREATE TABLE IF NOT EXISTS sleep_summary (
	summary_id      TEXT PRIMARY KEY,
	date            DATE NOT NULL,
	total_duration  INTEGER NOT NULL,
	deep_sleep      INTEGER NOT NULL,
	light_sleep     INTEGER NOT NULL,
	rem_sleep       INTEGER NOT NULL,
	awake_sleep     INTEGER NOT NULL,
	overall_score   INTEGER,
	score_qualifier TEXT
);
CREATE TABLE IF NOT EXISTS sleep_stage_segments (
	id         BIGSERIAL PRIMARY KEY,
	summary_id TEXT NOT NULL REFERENCES sleep_summary(summary_id),
	stage_type TEXT NOT NULL,
	start_time BIGINT NOT NULL,
	end_time   BIGINT NOT NULL,
	duration   INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS sleep_respiration (
	id               BIGSERIAL PRIMARY KEY,
	summary_id       TEXT NOT NULL REFERENCES sleep_summary(summary_id),
	offset_seconds   INTEGER NOT NULL,
	respiration_rate DOUBLE PRECISION NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_sleep_summary_date ON sleep_summary(date);
CREATE INDEX IF NOT EXISTS idx_stage_segments_summary ON sleep_stage_segments(summary_id);
CREATE INDEX IF NOT EXISTS idx_respiration_summary ON sleep_respiration(summary_id);
`

const summaryColumns = `summary_id, date, total_duration, deep_sleep, light_sleep, rem_sleep, awake_sleep, overall_score, score_qualifier`

type PostgresStorage struct {
	pool   *pgxpool.Pool
	logger internal.Logger
}

func NewPostgresStorage(dsn string, logger internal.Logger) (*PostgresStorage, error) {
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		logger.Errorf("failed to connect to postgres: %v", err)
		return nil, err
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		logger.Errorf("failed to ensure schema: %v", err)
		pool.Close()
		return nil, err
	}
	return &PostgresStorage{pool: pool, logger: logger}, nil
}

func (p *PostgresStorage) Close() {
	p.pool.Close()
}

// SaveNight upserts the summary and replaces the night's child rows in
// a single transaction, so a failed import leaves no partial night.
func (p *PostgresStorage) SaveNight(ctx context.Context, summary *internal.SleepSummary, segments []internal.SleepStageSegment, samples []internal.SleepRespiration) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		p.logger.Errorf("failed to begin transaction: %v", err)
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `INSERT INTO sleep_summary (`+summaryColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (summary_id) DO UPDATE SET
			date = EXCLUDED.date,
			total_duration = EXCLUDED.total_duration,
			deep_sleep = EXCLUDED.deep_sleep,
			light_sleep = EXCLUDED.light_sleep,
			rem_sleep = EXCLUDED.rem_sleep,
			awake_sleep = EXCLUDED.awake_sleep,
			overall_score = EXCLUDED.overall_score,
			score_qualifier = EXCLUDED.score_qualifier`,
		summary.SummaryID, summary.Date, summary.TotalDuration, summary.DeepSleep,
		summary.LightSleep, summary.RemSleep, summary.AwakeSleep,
		summary.OverallScore, summary.ScoreQualifier)
	if err != nil {
		p.logger.Errorf("failed to upsert summary %s: %v", summary.SummaryID, err)
		return err
	}

	if _, err := tx.Exec(ctx, `DELETE FROM sleep_stage_segments WHERE summary_id = $1`, summary.SummaryID); err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, `DELETE FROM sleep_respiration WHERE summary_id = $1`, summary.SummaryID); err != nil {
		return err
	}

	for _, s := range segments {
		_, err := tx.Exec(ctx, `INSERT INTO sleep_stage_segments (summary_id, stage_type, start_time, end_time, duration)
			VALUES ($1, $2, $3, $4, $5)`,
			summary.SummaryID, s.StageType, s.StartTime, s.EndTime, s.Duration)
		if err != nil {
			p.logger.Errorf("failed to insert stage segment for %s: %v", summary.SummaryID, err)
			return err
		}
	}
	for _, r := range samples {
		_, err := tx.Exec(ctx, `INSERT INTO sleep_respiration (summary_id, offset_seconds, respiration_rate)
			VALUES ($1, $2, $3)`,
			summary.SummaryID, r.OffsetSeconds, r.RespirationRate)
		if err != nil {
			p.logger.Errorf("failed to insert respiration sample for %s: %v", summary.SummaryID, err)
			return err
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStorage) ListSummaries(ctx context.Context) ([]internal.SleepSummary, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+summaryColumns+` FROM sleep_summary ORDER BY date ASC`)
	if err != nil {
		p.logger.Errorf("failed to query summaries: %v", err)
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (p *PostgresStorage) ListSummariesBetween(ctx context.Context, start, end internal.Date) ([]internal.SleepSummary, error) {
	rows, err := p.pool.Query(ctx, `SELECT `+summaryColumns+` FROM sleep_summary
		WHERE date >= $1 AND date <= $2 ORDER BY date ASC`, start, end)
	if err != nil {
		p.logger.Errorf("failed to query summaries in range: %v", err)
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (p *PostgresStorage) GetSummaryByID(ctx context.Context, summaryID string) (*internal.SleepSummary, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+summaryColumns+` FROM sleep_summary WHERE summary_id = $1`, summaryID)
	return scanSummary(row)
}

func (p *PostgresStorage) GetSummaryByDate(ctx context.Context, date internal.Date) (*internal.SleepSummary, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+summaryColumns+` FROM sleep_summary WHERE date = $1 ORDER BY summary_id ASC LIMIT 1`, date)
	return scanSummary(row)
}

// BestSummary picks the night with the highest overall score. Ties go
// to the earliest date, then the lowest summary ID.
func (p *PostgresStorage) BestSummary(ctx context.Context) (*internal.SleepSummary, error) {
	row := p.pool.QueryRow(ctx, `SELECT `+summaryColumns+` FROM sleep_summary
		ORDER BY overall_score DESC NULLS LAST, date ASC, summary_id ASC LIMIT 1`)
	return scanSummary(row)
}

func (p *PostgresStorage) ListSegments(ctx context.Context, summaryID string) ([]internal.SleepStageSegment, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, summary_id, stage_type, start_time, end_time, duration
		FROM sleep_stage_segments WHERE summary_id = $1 ORDER BY start_time ASC`, summaryID)
	if err != nil {
		p.logger.Errorf("failed to query stage segments: %v", err)
		return nil, err
	}
	defer rows.Close()

	var segments []internal.SleepStageSegment
	for rows.Next() {
		var s internal.SleepStageSegment
		if err := rows.Scan(&s.ID, &s.SummaryID, &s.StageType, &s.StartTime, &s.EndTime, &s.Duration); err != nil {
			return nil, err
		}
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

func (p *PostgresStorage) ListRespiration(ctx context.Context, summaryID string) ([]internal.SleepRespiration, error) {
	rows, err := p.pool.Query(ctx, `SELECT id, summary_id, offset_seconds, respiration_rate
		FROM sleep_respiration WHERE summary_id = $1 ORDER BY offset_seconds ASC`, summaryID)
	if err != nil {
		p.logger.Errorf("failed to query respiration samples: %v", err)
		return nil, err
	}
	defer rows.Close()

	var samples []internal.SleepRespiration
	for rows.Next() {
		var r internal.SleepRespiration
		if err := rows.Scan(&r.ID, &r.SummaryID, &r.OffsetSeconds, &r.RespirationRate); err != nil {
			return nil, err
		}
		samples = append(samples, r)
	}
	return samples, rows.Err()
}

func scanSummary(row pgx.Row) (*internal.SleepSummary, error) {
	var s internal.SleepSummary
	err := row.Scan(&s.SummaryID, &s.Date, &s.TotalDuration, &s.DeepSleep,
		&s.LightSleep, &s.RemSleep, &s.AwakeSleep, &s.OverallScore, &s.ScoreQualifier)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &s, nil
}

func scanSummaries(rows pgx.Rows) ([]internal.SleepSummary, error) {
	var summaries []internal.SleepSummary
	for rows.Next() {
		var s internal.SleepSummary
		err := rows.Scan(&s.SummaryID, &s.Date, &s.TotalDuration, &s.DeepSleep,
			&s.LightSleep, &s.RemSleep, &s.AwakeSleep, &s.OverallScore, &s.ScoreQualifier)
		if err != nil {
			return nil, err
		}
		summaries = append(summaries, s)
	}
	return summaries, rows.Err()
}

var _ SleepRepository = (*PostgresStorage)(nil)
