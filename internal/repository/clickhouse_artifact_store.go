package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	pkgch "RegimeLab/pkg/clickhouse"
	applogger "RegimeLab/pkg/logger"
)

// CHArtifactStore implements ArtifactStore backed by ClickHouse.
// Detections fan out into three tables: daily assignments, per-regime
// summaries, and the transition matrix. Strategy reports get a fourth.
type CHArtifactStore struct {
	db       *sql.DB
	database string
	l        *applogger.Logger
}

func NewCHArtifactStore(ch *pkgch.Client, database string) *CHArtifactStore {
	return &CHArtifactStore{db: ch.DB(), database: database}
}

// SetLogger injects a structured logger.
func (s *CHArtifactStore) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CHArtifactStore) Init(ctx context.Context) error {
	return s.db.PingContext(ctx) // Schema init in di
}

func (s *CHArtifactStore) StoreDetection(ctx context.Context, d *models.Detection) error {
	if d == nil {
		return fmt.Errorf("detection is nil")
	}
	start := time.Now()
	if err := s.storeDaily(ctx, d); err != nil {
		return err
	}
	if err := s.storeSummaries(ctx, d); err != nil {
		return err
	}
	if err := s.storeTransitions(ctx, d); err != nil {
		return err
	}
	if s.l != nil {
		s.l.Info("clickhouse store_detection ok",
			applogger.String("symbol", d.Symbol),
			applogger.Int("points", len(d.Points)),
			applogger.Int("regimes", len(d.Summaries)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (s *CHArtifactStore) storeDaily(ctx context.Context, d *models.Detection) error {
	if len(d.Points) == 0 {
		return nil
	}
	table := s.database + ".regime_daily"
	const chunkSize = 2000
	for start := 0; start < len(d.Points); start += chunkSize {
		end := start + chunkSize
		if end > len(d.Points) {
			end = len(d.Points)
		}

		values := make([]string, 0, end-start)
		args := make([]interface{}, 0, (end-start)*5)
		for _, p := range d.Points[start:end] {
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, d.Symbol, p.Date, int32(p.RegimeID), p.Label, d.FittedAt)
		}
		q := fmt.Sprintf("INSERT INTO %s (symbol, date, regime_id, label, fitted_at) VALUES %s", table, strings.Join(values, ","))
		if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
			if s.l != nil {
				s.l.Error("clickhouse store_daily insert error",
					applogger.String("table", table),
					applogger.String("symbol", d.Symbol),
					applogger.Error(err),
				)
			}
			return fmt.Errorf("store regime daily: %w", err)
		}
	}
	return nil
}

func (s *CHArtifactStore) storeSummaries(ctx context.Context, d *models.Detection) error {
	if len(d.Summaries) == 0 {
		return nil
	}
	table := s.database + ".regime_summary"
	values := make([]string, 0, len(d.Summaries))
	args := make([]interface{}, 0, len(d.Summaries)*9)
	for _, sm := range d.Summaries {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			d.Symbol,
			int32(sm.RegimeID),
			uint32(sm.Days),
			sm.MeanReturn,
			sm.MeanVol,
			sm.MeanDrawdown,
			sm.MeanVIX,
			sm.Label,
			d.FittedAt,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, regime_id, days, mean_return, mean_vol, mean_drawdown, mean_vix, label, fitted_at) VALUES %s",
		table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_summaries insert error",
				applogger.String("table", table),
				applogger.String("symbol", d.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store regime summaries: %w", err)
	}
	return nil
}

func (s *CHArtifactStore) storeTransitions(ctx context.Context, d *models.Detection) error {
	if d.Transitions == nil || len(d.Transitions.Labels) == 0 {
		return nil
	}
	table := s.database + ".regime_transitions"
	labels := d.Transitions.Labels
	values := make([]string, 0, len(labels)*len(labels))
	args := make([]interface{}, 0, len(labels)*len(labels)*5)
	for i, from := range labels {
		for j, to := range labels {
			values = append(values, "(?, ?, ?, ?, ?)")
			args = append(args, d.Symbol, from, to, d.Transitions.Probs[i][j], d.FittedAt)
		}
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, from_label, to_label, prob, fitted_at) VALUES %s", table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_transitions insert error",
				applogger.String("table", table),
				applogger.String("symbol", d.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store regime transitions: %w", err)
	}
	return nil
}

func (s *CHArtifactStore) StoreStrategy(ctx context.Context, r *models.StrategyReport) error {
	if r == nil {
		return fmt.Errorf("strategy report is nil")
	}
	table := s.database + ".strategy_reports"
	now := time.Now().UTC()

	type row struct {
		segment string
		kind    string
		stats   models.PerfStats
	}
	rows := []row{
		{"train", "strategy", r.Train.Strategy},
		{"train", "buy_hold", r.Train.BuyHold},
		{"test", "strategy", r.Test.Strategy},
		{"test", "buy_hold", r.Test.BuyHold},
	}

	values := make([]string, 0, len(rows))
	args := make([]interface{}, 0, len(rows)*12)
	for _, rw := range rows {
		values = append(values, "(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)")
		args = append(args,
			r.Symbol,
			rw.segment,
			rw.kind,
			r.SplitDate,
			r.TrainFrac,
			uint32(rw.stats.Days),
			rw.stats.TotalReturn,
			rw.stats.AnnReturn,
			rw.stats.AnnVol,
			rw.stats.Sharpe,
			rw.stats.MaxDrawdown,
			now,
		)
	}
	q := fmt.Sprintf("INSERT INTO %s (symbol, segment, kind, split_date, train_frac, days, total_return, ann_return, ann_vol, sharpe, max_drawdown, created_at) VALUES %s",
		table, strings.Join(values, ","))
	if _, err := s.db.ExecContext(ctx, q, args...); err != nil {
		if s.l != nil {
			s.l.Error("clickhouse store_strategy insert error",
				applogger.String("table", table),
				applogger.String("symbol", r.Symbol),
				applogger.Error(err),
			)
		}
		return fmt.Errorf("store strategy report: %w", err)
	}
	return nil
}

func (s *CHArtifactStore) Close() error {
	return nil // Managed by pkg
}
