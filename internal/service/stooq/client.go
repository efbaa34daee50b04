package stooq

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"RegimeLab/internal/domain/models"
	drepo "RegimeLab/internal/domain/repository"
	"RegimeLab/internal/service/ratelimit"
	xhttp "RegimeLab/pkg/http"
	applogger "RegimeLab/pkg/logger"
)

// Client implements a BarSource backed by the Stooq daily CSV endpoint.
type Client struct {
	baseURL string
	rps     float64
	http    *xhttp.Client
	rl      *ratelimit.Limiter
	l       *applogger.Logger
}

var _ drepo.BarSource = (*Client)(nil)

// New creates a new Stooq client.
func New(baseURL string, timeout time.Duration, requestsPerSec float64) *Client {
	if baseURL == "" {
		baseURL = "https://stooq.com/q/d/l/"
	}
	if requestsPerSec <= 0 {
		requestsPerSec = 1
	}
	return &Client{
		baseURL: baseURL,
		rps:     requestsPerSec,
		http:    xhttp.NewClient(xhttp.WithTimeout(timeout)),
		rl:      ratelimit.New(),
	}
}

// SetLogger injects a structured logger.
func (c *Client) SetLogger(l *applogger.Logger) { c.l = l }

// Load downloads daily bars for symbol over [from, to], sorted by date ascending.
func (c *Client) Load(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error) {
	if symbol == "" {
		return nil, fmt.Errorf("symbol required")
	}
	if err := c.wait(ctx); err != nil {
		return nil, err
	}

	start := time.Now()
	var body []byte
	err := c.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method: xhttp.MethodGet,
		URL:    c.baseURL,
		QueryParams: map[string][]string{
			"s":  {normalizeSymbol(symbol)},
			"d1": {from.UTC().Format("20060102")},
			"d2": {to.UTC().Format("20060102")},
			"i":  {"d"},
		},
	}, &body)
	if err != nil {
		if c.l != nil {
			c.l.Error("stooq download error",
				applogger.String("symbol", symbol),
				applogger.Error(err),
			)
		}
		return nil, fmt.Errorf("stooq download %s: %w", symbol, err)
	}

	bars, err := parseDailyCSV(strings.NewReader(string(body)), symbol)
	if err != nil {
		return nil, fmt.Errorf("stooq parse %s: %w", symbol, err)
	}
	if c.l != nil {
		c.l.Info("stooq download ok",
			applogger.String("symbol", symbol),
			applogger.Int("bars", len(bars)),
			applogger.Duration("duration_ms", time.Since(start)),
		)
	}
	return bars, nil
}

// wait blocks until the limiter grants a token or the context expires.
func (c *Client) wait(ctx context.Context) error {
	for !c.rl.Allow("stooq", c.rps, c.rps) {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
	return nil
}

// normalizeSymbol maps a ticker to Stooq's convention: lowercase, plain US
// equities get a ".us" suffix, indices keep their caret prefix.
func normalizeSymbol(symbol string) string {
	s := strings.ToLower(strings.TrimSpace(symbol))
	if strings.HasPrefix(s, "^") || strings.Contains(s, ".") {
		return s
	}
	return s + ".us"
}

// parseDailyCSV reads the Stooq layout: Date,Open,High,Low,Close,Volume.
func parseDailyCSV(r io.Reader, symbol string) ([]models.Bar, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if len(header) > 0 && strings.EqualFold(strings.TrimSpace(header[0]), "no data") {
		return nil, fmt.Errorf("no data for symbol")
	}
	if len(header) < 5 || !strings.EqualFold(strings.TrimSpace(header[0]), "date") {
		return nil, fmt.Errorf("unexpected header: %v", header)
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
		if len(rec) < 5 {
			continue
		}
		date, err := time.Parse("2006-01-02", strings.TrimSpace(rec[0]))
		if err != nil {
			return nil, fmt.Errorf("parse date %q: %w", rec[0], err)
		}
		open, err1 := strconv.ParseFloat(strings.TrimSpace(rec[1]), 64)
		high, err2 := strconv.ParseFloat(strings.TrimSpace(rec[2]), 64)
		low, err3 := strconv.ParseFloat(strings.TrimSpace(rec[3]), 64)
		cls, err4 := strconv.ParseFloat(strings.TrimSpace(rec[4]), 64)
		if err1 != nil || err2 != nil || err3 != nil || err4 != nil {
			return nil, fmt.Errorf("parse prices at %s", rec[0])
		}
		var vol float64
		if len(rec) > 5 && strings.TrimSpace(rec[5]) != "" {
			vol, _ = strconv.ParseFloat(strings.TrimSpace(rec[5]), 64)
		}
		bars = append(bars, models.Bar{
			Date:   date.UTC(),
			Symbol: symbol,
			Open:   open,
			High:   high,
			Low:    low,
			Close:  cls,
			Volume: vol,
		})
	}
	return bars, nil
}
