package repository

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	"RegimeLab/internal/domain/repository"
	applogger "RegimeLab/pkg/logger"
)

// CSVBarSource implements BarSource over local CSV files, one file per symbol.
// Files need a header with at least date and close columns; open/high/low
// default to close and volume to zero when absent.
type CSVBarSource struct {
	paths map[string]string
	l     *applogger.Logger
}

// NewCSVBarSource creates a file-backed BarSource. paths maps symbol to file path.
func NewCSVBarSource(paths map[string]string) *CSVBarSource {
	return &CSVBarSource{paths: paths}
}

// SetLogger injects a structured logger.
func (s *CSVBarSource) SetLogger(l *applogger.Logger) { s.l = l }

func (s *CSVBarSource) Load(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	path, ok := s.paths[symbol]
	if !ok {
		return nil, fmt.Errorf("no csv file configured for symbol %s", symbol)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	start := time.Now()
	bars, err := readBarsCSV(f, symbol)
	if err != nil {
		if s.l != nil {
			s.l.Error("csv load_bars parse error",
				applogger.String("path", path),
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	out := bars[:0]
	for _, b := range bars {
		if !from.IsZero() && b.Date.Before(from) {
			continue
		}
		if !to.IsZero() && b.Date.After(to) {
			continue
		}
		out = append(out, b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })

	if s.l != nil {
		s.l.Info("csv load_bars ok",
			applogger.String("path", path),
			applogger.String("symbol", symbol),
			applogger.Int("rows", len(out)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return out, nil
}

func readBarsCSV(r io.Reader, symbol string) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := map[string]int{}
	for i, h := range header {
		cols[strings.ToLower(strings.TrimSpace(h))] = i
	}
	dateIdx, ok := cols["date"]
	if !ok {
		return nil, fmt.Errorf("missing date column")
	}
	closeIdx, ok := cols["close"]
	if !ok {
		return nil, fmt.Errorf("missing close column")
	}

	field := func(rec []string, name string, def float64) float64 {
		idx, ok := cols[name]
		if !ok || idx >= len(rec) || strings.TrimSpace(rec[idx]) == "" {
			return def
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(rec[idx]), 64)
		if err != nil {
			return def
		}
		return v
	}

	bars := make([]models.Bar, 0, 1024)
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		if dateIdx >= len(rec) || closeIdx >= len(rec) {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[dateIdx]))
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", rec[dateIdx], err)
		}
		cls, err := strconv.ParseFloat(strings.TrimSpace(rec[closeIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("parse close at %s: %w", rec[dateIdx], err)
		}
		bars = append(bars, models.Bar{
			Date:   date.UTC(),
			Symbol: symbol,
			Open:   field(rec, "open", cls),
			High:   field(rec, "high", cls),
			Low:    field(rec, "low", cls),
			Close:  cls,
			Volume: field(rec, "volume", 0),
		})
	}
	return bars, nil
}
