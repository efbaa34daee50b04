package repository

import (
	"context"
	"time"

	"RegimeLab/internal/domain/models"
)

// Source identifies where daily bars come from.
type Source string

const (
	SourceCSV        Source = "csv"
	SourceClickHouse Source = "clickhouse"
	SourceStooq      Source = "stooq"
)

// Backend identifies where detection artifacts go.
type Backend string

const (
	BackendCSV        Backend = "csv"
	BackendClickHouse Backend = "clickhouse"
	BackendKafka      Backend = "kafka"
)

// BarSource provides read-only access to daily bars for detection.
type BarSource interface {
	Load(ctx context.Context, symbol string, from, to time.Time) ([]models.Bar, error)
}
