package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

// MemoryStore keeps everything in process. It backs tests and the
// STORE_BACKEND=memory mode; contents are lost on restart.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []domain.Reading
	alerts   []domain.Alert
	nextID   int64
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) AppendReading(ctx context.Context, r *domain.Reading) error {
	if err := ctx.Err(); err != nil {
		return unavailable("append reading", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	r.ID = s.nextID
	// Keep timestamp order even if a sample arrives late.
	i := sort.Search(len(s.readings), func(i int) bool {
		return s.readings[i].Timestamp.After(r.Timestamp)
	})
	s.readings = append(s.readings, domain.Reading{})
	copy(s.readings[i+1:], s.readings[i:])
	s.readings[i] = cloneReading(*r)
	return nil
}

func (s *MemoryStore) ReadingsBetween(ctx context.Context, start, end time.Time) ([]domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("query readings", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	lo := sort.Search(len(s.readings), func(i int) bool {
		return !s.readings[i].Timestamp.Before(start)
	})
	out := make([]domain.Reading, 0)
	for _, r := range s.readings[lo:] {
		if r.Timestamp.After(end) {
			break
		}
		out = append(out, cloneReading(r))
	}
	return out, nil
}

func (s *MemoryStore) LatestReading(ctx context.Context) (*domain.Reading, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("latest reading", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.readings) == 0 {
		return nil, nil
	}
	r := cloneReading(s.readings[len(s.readings)-1])
	return &r, nil
}

func (s *MemoryStore) WattageSums(ctx context.Context) (float64, float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, 0, unavailable("wattage sums", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var grid, turbine float64
	for _, r := range s.readings {
		grid += r.GridWattage
		turbine += r.TurbineWattage
	}
	return grid, turbine, nil
}

func (s *MemoryStore) AppendAlert(ctx context.Context, a *domain.Alert) error {
	if err := ctx.Err(); err != nil {
		return unavailable("append alert", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, *a)
	return nil
}

func (s *MemoryStore) AlertsBetween(ctx context.Context, kind domain.AlertKind, start, end time.Time) ([]domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("query alerts", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Alert, 0)
	for _, a := range s.alerts {
		if kind != "" && a.Kind != kind {
			continue
		}
		if a.Timestamp.Before(start) || a.Timestamp.After(end) {
			continue
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (s *MemoryStore) RecentAlerts(ctx context.Context, limit int) ([]domain.Alert, error) {
	if err := ctx.Err(); err != nil {
		return nil, unavailable("recent alerts", err)
	}
	s.mu.RLock()
	out := make([]domain.Alert, len(s.alerts))
	copy(out, s.alerts)
	s.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryStore) CountUnread(ctx context.Context, kind domain.AlertKind) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, unavailable("count unread", err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, a := range s.alerts {
		if !a.IsRead && (kind == "" || a.Kind == kind) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) MarkAllRead(ctx context.Context, kind domain.AlertKind) error {
	if err := ctx.Err(); err != nil {
		return unavailable("mark read", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.alerts {
		if kind == "" || s.alerts[i].Kind == kind {
			s.alerts[i].IsRead = true
		}
	}
	return nil
}

func (s *MemoryStore) ClearAlerts(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable("clear alerts", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = nil
	return nil
}

func (s *MemoryStore) Close() error { return nil }

func cloneReading(r domain.Reading) domain.Reading {
	if r.RPM != nil {
		v := *r.RPM
		r.RPM = &v
	}
	return r
}
