package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"WattWise/internal/domain/models"
	domrepo "WattWise/internal/domain/repository"
	pkgch "WattWise/pkg/clickhouse"
	applogger "WattWise/pkg/logger"
)

// CHForecastStore persists forecast points and model specs in ClickHouse.
type CHForecastStore struct {
	db     *sql.DB
	l      *applogger.Logger
	points string
	specs  string
}

var (
	_ domrepo.ForecastStore = (*CHForecastStore)(nil)
	_ domrepo.SummaryStore  = (*CHForecastStore)(nil)
)

func NewCHForecastStore(ch *pkgch.Client, database string) (*CHForecastStore, error) {
	db, err := pkgch.Ident(database)
	if err != nil {
		return nil, err
	}
	return &CHForecastStore{
		db:     ch.DB(),
		l:      applogger.Nop(),
		points: db + "." + pkgch.TablePoints,
		specs:  db + "." + pkgch.TableSpecs,
	}, nil
}

// SetLogger injects a structured logger.
func (s *CHForecastStore) SetLogger(l *applogger.Logger) { s.l = l }

// pointChunk bounds rows per INSERT to keep statements small.
const pointChunk = 2000

func (s *CHForecastStore) SaveResult(ctx context.Context, r models.ForecastResult) error {
	for _, stmt := range insertPointsStatements(s.points, r, pointChunk) {
		if _, err := s.db.ExecContext(ctx, stmt.query, stmt.args...); err != nil {
			s.l.Error("clickhouse save_result error",
				applogger.String("city", r.City),
				applogger.String("run_id", r.RunID),
				applogger.Error(err),
			)
			return fmt.Errorf("save result: %w", err)
		}
	}
	return nil
}

type statement struct {
	query string
	args  []interface{}
}

// insertPointsStatements splits a result into multi-row VALUES inserts.
func insertPointsStatements(table string, r models.ForecastResult, chunk int) []statement {
	var out []statement
	for start := 0; start < len(r.Points); start += chunk {
		end := start + chunk
		if end > len(r.Points) { end = len(r.Points) }

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*7)
		for _, p := range r.Points[start:end] {
			values = append(values, "(?, ?, ?, ?, ?, ?, ?)")
			args = append(args, r.RunID, r.City, string(r.Model), p.Timestamp, uint8(p.Hour), p.Demand, r.CreatedAt)
		}
		out = append(out, statement{
			query: fmt.Sprintf("INSERT INTO %s (run_id, city, model, ts, hour, demand, created_at) VALUES %s", table, strings.Join(values, ",")),
			args:  args,
		})
	}
	return out
}

func (s *CHForecastStore) LatestResult(ctx context.Context, city string) (models.ForecastResult, error) {
	res := models.ForecastResult{City: city}
	var model string
	q := fmt.Sprintf("SELECT run_id, model, created_at FROM %s WHERE city = ? ORDER BY created_at DESC LIMIT 1", s.points)
	err := s.db.QueryRowContext(ctx, q, city).Scan(&res.RunID, &model, &res.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return res, domrepo.ErrNotFound
	}
	if err != nil {
		return res, fmt.Errorf("latest run: %w", err)
	}
	res.Model = models.ModelType(model)

	q = fmt.Sprintf("SELECT ts, hour, demand FROM %s WHERE run_id = ? ORDER BY ts ASC", s.points)
	rows, err := s.db.QueryContext(ctx, q, res.RunID)
	if err != nil {
		return res, fmt.Errorf("run points: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.ForecastPoint
		var hour uint8
		if err := rows.Scan(&p.Timestamp, &hour, &p.Demand); err != nil {
			return res, fmt.Errorf("scan point: %w", err)
		}
		p.Timestamp = p.Timestamp.UTC()
		p.Hour = int(hour)
		res.Points = append(res.Points, p)
	}
	return res, rows.Err()
}

func (s *CHForecastStore) SaveSummary(ctx context.Context, sum models.Summary) error {
	q := fmt.Sprintf("INSERT INTO %s (city, model_type, expected_usage, percent_change, confidence, peak_day, peak_hour, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)", s.specs)
	_, err := s.db.ExecContext(ctx, q,
		sum.City,
		string(sum.ModelType),
		sum.ExpectedUsage,
		sum.PercentChange,
		sum.Confidence,
		sum.PeakDay,
		sum.PeakHour,
		sum.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

func (s *CHForecastStore) GetSummary(ctx context.Context, city string) (models.Summary, error) {
	sum := models.Summary{City: city}
	var model string
	q := fmt.Sprintf("SELECT model_type, expected_usage, percent_change, confidence, peak_day, peak_hour, updated_at FROM %s FINAL WHERE city = ? LIMIT 1", s.specs)
	err := s.db.QueryRowContext(ctx, q, city).Scan(
		&model,
		&sum.ExpectedUsage,
		&sum.PercentChange,
		&sum.Confidence,
		&sum.PeakDay,
		&sum.PeakHour,
		&sum.UpdatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return sum, domrepo.ErrNotFound
	}
	if err != nil {
		return sum, fmt.Errorf("get summary: %w", err)
	}
	sum.ModelType = models.ModelType(model)
	return sum, nil
}
