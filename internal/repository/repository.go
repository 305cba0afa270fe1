package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

// ErrUnavailable marks every failure of the backing store. Callers test for
// it with errors.Is; the driver error stays in the chain.
var ErrUnavailable = errors.New("store unavailable")

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(ErrUnavailable, err))
}

// Store is the append-only time-series store behind ingestion and queries.
// An empty AlertKind matches every kind. Time ranges are inclusive.
type Store interface {
	AppendReading(ctx context.Context, r *domain.Reading) error
	ReadingsBetween(ctx context.Context, start, end time.Time) ([]domain.Reading, error)
	LatestReading(ctx context.Context) (*domain.Reading, error)
	// WattageSums returns the all-time sums of grid and turbine wattage.
	WattageSums(ctx context.Context) (grid, turbine float64, err error)

	AppendAlert(ctx context.Context, a *domain.Alert) error
	AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error)
	// RecentAlerts returns up to limit alerts, newest first. A limit of zero
	// or less returns every alert.
	RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error)
	CountUnread(ctx context.Context, kind domain.AlertKind) (int, error)
	MarkAllRead(ctx context.Context, kind domain.AlertKind) error
	// ClearAlerts deletes every alert. Administrative only.
	ClearAlerts(ctx context.Context) error

	Close() error
}
