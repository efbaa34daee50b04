package stooq

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const dailyCSV = `Date,Open,High,Low,Close,Volume
2024-01-02,100,101,99,100.5,1200
2024-01-03,100.5,102,100,101.5,
2024-01-04,1,2
`

func TestLoadDownloadsAndParses(t *testing.T) {
	var query map[string][]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		query = r.URL.Query()
		_, _ = w.Write([]byte(dailyCSV))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 100)
	from := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 4, 0, 0, 0, 0, time.UTC)

	bars, err := c.Load(context.Background(), "SPY", from, to)
	require.NoError(t, err)

	assert.Equal(t, []string{"spy.us"}, query["s"])
	assert.Equal(t, []string{"20240102"}, query["d1"])
	assert.Equal(t, []string{"20240104"}, query["d2"])
	assert.Equal(t, []string{"d"}, query["i"])

	// The short third record is skipped; the empty volume defaults to zero.
	require.Len(t, bars, 2)
	assert.Equal(t, "SPY", bars[0].Symbol, "caller symbol is kept, not the stooq one")
	assert.Equal(t, "2024-01-02", bars[0].Date.Format("2006-01-02"))
	assert.Equal(t, time.UTC, bars[0].Date.Location())
	assert.Equal(t, 100.0, bars[0].Open)
	assert.Equal(t, 101.0, bars[0].High)
	assert.Equal(t, 99.0, bars[0].Low)
	assert.Equal(t, 100.5, bars[0].Close)
	assert.Equal(t, 1200.0, bars[0].Volume)
	assert.Zero(t, bars[1].Volume)
}

func TestLoadNoData(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("No data\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 100)
	_, err := c.Load(context.Background(), "NOPE", time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "no data for symbol")
}

func TestLoadBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 100)
	_, err := c.Load(context.Background(), "SPY", time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "stooq download SPY")
	assert.ErrorContains(t, err, "unexpected status 429")
}

func TestLoadEmptySymbol(t *testing.T) {
	c := New("http://127.0.0.1:1", time.Second, 100)
	_, err := c.Load(context.Background(), "", time.Time{}, time.Time{})
	assert.ErrorContains(t, err, "symbol required")
}

func TestLoadRateLimitHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("Date,Open,High,Low,Close,Volume\n"))
	}))
	defer srv.Close()

	c := New(srv.URL, 5*time.Second, 1)
	_, err := c.Load(context.Background(), "SPY", time.Time{}, time.Time{})
	require.NoError(t, err)

	// The single token is spent; the second call must wait out the refill,
	// which the short deadline cuts off first.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = c.Load(ctx, "SPY", time.Time{}, time.Time{})
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNormalizeSymbol(t *testing.T) {
	cases := map[string]string{
		"SPY":    "spy.us",
		" AAPL ": "aapl.us",
		"^VIX":   "^vix",
		"^SPX":   "^spx",
		"spy.us": "spy.us",
		"BRK.B":  "brk.b",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeSymbol(in), "symbol %q", in)
	}
}

func TestParseDailyCSVErrors(t *testing.T) {
	_, err := parseDailyCSV(strings.NewReader("ticker,price\nSPY,100\n"), "SPY")
	assert.ErrorContains(t, err, "unexpected header")

	_, err = parseDailyCSV(strings.NewReader("Date,Open,High,Low,Close\n01/02/2024,1,2,3,4\n"), "SPY")
	assert.ErrorContains(t, err, "parse date")

	_, err = parseDailyCSV(strings.NewReader("Date,Open,High,Low,Close\n2024-01-02,1,2,3,abc\n"), "SPY")
	assert.ErrorContains(t, err, "parse prices at 2024-01-02")
}
