package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	applogger "RegimeLab/pkg/logger"
)

// CSVExporter implements ArtifactStore writing per-symbol CSV files into an
// output directory. Missing statistics are written as empty cells.
type CSVExporter struct {
	dir string
	l   *applogger.Logger
}

func NewCSVExporter(dir string) *CSVExporter {
	return &CSVExporter{dir: dir}
}

// SetLogger injects a structured logger.
func (e *CSVExporter) SetLogger(l *applogger.Logger) { e.l = l }

func (e *CSVExporter) Init(ctx context.Context) error {
	if e.dir == "" {
		return fmt.Errorf("output dir required")
	}
	return os.MkdirAll(e.dir, 0o755)
}

func (e *CSVExporter) StoreDetection(ctx context.Context, d *models.Detection) error {
	if d == nil {
		return fmt.Errorf("detection is nil")
	}
	start := time.Now()
	if err := e.writeRegimes(d); err != nil {
		return err
	}
	if err := e.writeSummary(d); err != nil {
		return err
	}
	if err := e.writeTransitions(d); err != nil {
		return err
	}
	if e.l != nil {
		e.l.Info("csv store_detection ok",
			applogger.String("dir", e.dir),
			applogger.String("symbol", d.Symbol),
			applogger.Int("points", len(d.Points)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return nil
}

func (e *CSVExporter) writeRegimes(d *models.Detection) error {
	rows := make([][]string, 0, len(d.Points)+1)
	rows = append(rows, []string{"date", "regime_id", "label"})
	for _, p := range d.Points {
		rows = append(rows, []string{
			p.Date.UTC().Format("2006-01-02"),
			models.FormatRegimeID(p.RegimeID),
			p.Label,
		})
	}
	return e.writeFile(d.Symbol, "regimes", rows)
}

func (e *CSVExporter) writeSummary(d *models.Detection) error {
	rows := make([][]string, 0, len(d.Summaries)+1)
	rows = append(rows, []string{"regime_id", "days", "mean_return", "mean_vol", "mean_drawdown", "mean_vix", "label"})
	for _, s := range d.Summaries {
		rows = append(rows, []string{
			strconv.Itoa(s.RegimeID),
			strconv.Itoa(s.Days),
			csvFloat(s.MeanReturn),
			csvFloat(s.MeanVol),
			csvFloat(s.MeanDrawdown),
			csvFloat(s.MeanVIX),
			s.Label,
		})
	}
	return e.writeFile(d.Symbol, "summary", rows)
}

func (e *CSVExporter) writeTransitions(d *models.Detection) error {
	rows := [][]string{{"from", "to", "prob"}}
	for i, from := range d.Transitions.Labels {
		for j, to := range d.Transitions.Labels {
			rows = append(rows, []string{from, to, csvFloat(d.Transitions.Probs[i][j])})
		}
	}
	return e.writeFile(d.Symbol, "transitions", rows)
}

func (e *CSVExporter) StoreStrategy(ctx context.Context, r *models.StrategyReport) error {
	if r == nil {
		return fmt.Errorf("strategy report is nil")
	}
	rows := [][]string{
		{"segment", "kind", "days", "total_return", "ann_return", "ann_vol", "sharpe", "max_drawdown", "time_invested"},
		strategyRow("train", "strategy", r.Train.Strategy),
		strategyRow("train", "buy_hold", r.Train.BuyHold),
		strategyRow("test", "strategy", r.Test.Strategy),
		strategyRow("test", "buy_hold", r.Test.BuyHold),
	}
	return e.writeFile(r.Symbol, "strategy", rows)
}

func strategyRow(segment, kind string, s models.PerfStats) []string {
	return []string{
		segment,
		kind,
		strconv.Itoa(s.Days),
		csvFloat(s.TotalReturn),
		csvFloat(s.AnnReturn),
		csvFloat(s.AnnVol),
		csvFloat(s.Sharpe),
		csvFloat(s.MaxDrawdown),
		csvFloat(s.TimeInvested),
	}
}

func (e *CSVExporter) writeFile(symbol, kind string, rows [][]string) error {
	path := filepath.Join(e.dir, fmt.Sprintf("%s_%s.csv", sanitizeSymbol(symbol), kind))
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.WriteAll(rows); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

func (e *CSVExporter) Close() error { return nil }

func csvFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return ""
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func sanitizeSymbol(symbol string) string {
	s := strings.ToLower(symbol)
	s = strings.NewReplacer("^", "", "/", "_", "\\", "_", " ", "_").Replace(s)
	if s == "" {
		return "unknown"
	}
	return s
}
