package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"WattWise/internal/domain/models"
	domrepo "WattWise/internal/domain/repository"
	pkgch "WattWise/pkg/clickhouse"
	applogger "WattWise/pkg/logger"
)

// CHFeatureStore implements FeatureStore backed by ClickHouse. Static
// feature columns are read in schema order so records line up with the
// estimator layout without any name lookups.
type CHFeatureStore struct {
	db       *sql.DB
	l        *applogger.Logger
	observed string
	future   string
	cols     string
	width    int
}

var _ domrepo.FeatureStore = (*CHFeatureStore)(nil)

func NewCHFeatureStore(ch *pkgch.Client, database string, static []string) (*CHFeatureStore, error) {
	db, err := pkgch.Ident(database)
	if err != nil {
		return nil, err
	}
	cols, err := pkgch.FeatureColumns(static)
	if err != nil {
		return nil, err
	}
	return &CHFeatureStore{
		db:       ch.DB(),
		l:        applogger.Nop(),
		observed: db + "." + pkgch.TableObserved,
		future:   db + "." + pkgch.TableFuture,
		cols:     cols,
		width:    len(static),
	}, nil
}

// SetLogger injects a structured logger.
func (s *CHFeatureStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHFeatureStore) HistoryBefore(ctx context.Context, city string, ts time.Time, n int) ([]models.TimeSeriesRecord, error) {
	if n <= 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`
        SELECT ts, %s, demand
        FROM %s FINAL
        WHERE city = ? AND ts < ?
        ORDER BY ts DESC
        LIMIT ?
    `, s.cols, s.observed)

	out, err := s.query(ctx, "history_before", city, q, true, city, ts, n)
	if err != nil {
		return nil, err
	}
	// reverse to ASC
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *CHFeatureStore) FutureFeatures(ctx context.Context, city string, after, to time.Time) ([]models.TimeSeriesRecord, error) {
	q := fmt.Sprintf(`
        SELECT ts, %s
        FROM %s FINAL
        WHERE city = ? AND ts > ? AND ts <= ?
        ORDER BY ts ASC
    `, s.cols, s.future)
	return s.query(ctx, "future_features", city, q, false, city, after, to)
}

func (s *CHFeatureStore) Observed(ctx context.Context, city string, from, to time.Time) ([]models.TimeSeriesRecord, error) {
	where, args := rangeClause(city, from, to)
	q := fmt.Sprintf(`
        SELECT ts, %s, demand
        FROM %s FINAL
        WHERE %s
        ORDER BY ts ASC
    `, s.cols, s.observed, where)
	return s.query(ctx, "observed", city, q, true, args...)
}

// rangeClause builds the WHERE body for a window whose zero bounds are open.
func rangeClause(city string, from, to time.Time) (string, []interface{}) {
	conds := []string{"city = ?"}
	args := []interface{}{city}
	if !from.IsZero() {
		conds = append(conds, "ts >= ?")
		args = append(args, from)
	}
	if !to.IsZero() {
		conds = append(conds, "ts <= ?")
		args = append(args, to)
	}
	return strings.Join(conds, " AND "), args
}

func (s *CHFeatureStore) query(ctx context.Context, op, city, q string, withDemand bool, args ...interface{}) ([]models.TimeSeriesRecord, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		s.l.Error("clickhouse "+op+" query error",
			applogger.String("city", city),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	out := make([]models.TimeSeriesRecord, 0, 64)
	for rows.Next() {
		rec, dest := newScanTarget(s.width, withDemand)
		if err := rows.Scan(dest...); err != nil {
			s.l.Error("clickhouse "+op+" scan error",
				applogger.String("city", city),
				applogger.Error(err),
			)
			return nil, fmt.Errorf("scan record: %w", err)
		}
		out = append(out, rec.record())
	}
	if err := rows.Err(); err != nil {
		s.l.Error("clickhouse "+op+" rows error",
			applogger.String("city", city),
			applogger.Error(err),
		)
		return nil, fmt.Errorf("rows: %w", err)
	}

	s.l.Debug("clickhouse "+op+" ok",
		applogger.String("city", city),
		applogger.Int("rows", len(out)),
		applogger.Duration("duration_ms", time.Since(start)),
	)
	return out, nil
}

type scanTarget struct {
	ts       time.Time
	features []float64
	demand   float64
	resolved bool
}

// newScanTarget returns a target and the Scan destinations matching
// "ts, <features...>[, demand]".
func newScanTarget(width int, withDemand bool) (*scanTarget, []interface{}) {
	t := &scanTarget{features: make([]float64, width), resolved: withDemand}
	dest := make([]interface{}, 0, width+2)
	dest = append(dest, &t.ts)
	for i := range t.features {
		dest = append(dest, &t.features[i])
	}
	if withDemand {
		dest = append(dest, &t.demand)
	}
	return t, dest
}

func (t *scanTarget) record() models.TimeSeriesRecord {
	rec := models.TimeSeriesRecord{Timestamp: t.ts.UTC(), Features: t.features}
	if t.resolved {
		d := t.demand
		rec.Demand = &d
	}
	return rec
}
