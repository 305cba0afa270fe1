package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"
	"time"

	"github.com/ANIKETSHETTY47/energy-grid-analytics-go/converter"
	"github.com/rs/zerolog"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/aggregate"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
)

var energyConverter = &converter.EnergyConverter{}

// Uploader stores a rendered report and returns a download URL.
// *cloud.S3Client implements it.
type Uploader interface {
	UploadReport(ctx context.Context, key string, data []byte, contentType string) (string, error)
	ListReports(ctx context.Context, prefix string) ([]string, error)
}

const reportPrefix = "reports/"

// Report is the hourly report over a range for a chosen set of columns.
type Report struct {
	Start       time.Time             `json:"start"`
	End         time.Time             `json:"end"`
	Columns     []aggregate.Column    `json:"columns"`
	Rows        []aggregate.Row       `json:"rows"`
	Totals      domain.EnergyTotals   `json:"totals"`
	TotalMWh    float64               `json:"totalMwh"`
	GeneratedAt time.Time             `json:"generatedAt"`
	Buckets     []domain.HourlyBucket `json:"-"`
}

type ReportService struct {
	query    *QueryService
	uploader Uploader
	log      zerolog.Logger
}

// NewReportService builds reports from query. uploader may be nil, in which
// case Export fails.
func NewReportService(query *QueryService, uploader Uploader, log zerolog.Logger) *ReportService {
	return &ReportService{query: query, uploader: uploader, log: log.With().Str("component", "report").Logger()}
}

// Build returns ErrNoData when no reading falls in [start, end].
func (s *ReportService) Build(ctx context.Context, start, end time.Time, cols []aggregate.Column) (*Report, error) {
	if len(cols) == 0 {
		cols = aggregate.AllColumns
	}
	buckets, err := s.query.HourlyAggregate(ctx, start, end, cols)
	if err != nil {
		return nil, err
	}
	if len(buckets) == 0 {
		return nil, ErrNoData
	}
	totals := aggregate.Totals(buckets)
	return &Report{
		Start:       start,
		End:         end,
		Columns:     cols,
		Rows:        aggregate.Rows(buckets, cols),
		Totals:      totals,
		TotalMWh:    energyConverter.KWhToMWh(totals.GridKwh + totals.TurbineKwh),
		GeneratedAt: s.query.now(),
		Buckets:     buckets,
	}, nil
}

// CSV renders one line per hour with a header of column labels. Empty cells
// mean the column had no data that hour.
func (s *ReportService) CSV(rep *Report) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	loc := s.query.Location()

	header := []string{"Time"}
	for _, c := range rep.Columns {
		header = append(header, c.Label())
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, row := range rep.Rows {
		rec := []string{row.Timestamp.In(loc).Format("2006-01-02 15:04")}
		for _, c := range rep.Columns {
			v := row.Values[c]
			if v == nil {
				rec = append(rec, "")
				continue
			}
			rec = append(rec, strconv.FormatFloat(*v, 'f', 3, 64))
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Write([]string{"Total grid (kWh)", strconv.FormatFloat(rep.Totals.GridKwh, 'f', 3, 64)})
	w.Write([]string{"Total turbine (kWh)", strconv.FormatFloat(rep.Totals.TurbineKwh, 'f', 3, 64)})
	w.Flush()
	return buf.Bytes(), w.Error()
}

// Export builds the report, renders it as CSV and uploads it.
func (s *ReportService) Export(ctx context.Context, start, end time.Time, cols []aggregate.Column) (string, error) {
	if s.uploader == nil {
		return "", fmt.Errorf("report export: no uploader configured")
	}
	rep, err := s.Build(ctx, start, end, cols)
	if err != nil {
		return "", err
	}
	data, err := s.CSV(rep)
	if err != nil {
		return "", fmt.Errorf("render report: %w", err)
	}
	key := fmt.Sprintf("%shourly-%s-%s.csv", reportPrefix,
		start.In(s.query.Location()).Format("20060102T1504"),
		end.In(s.query.Location()).Format("20060102T1504"))
	url, err := s.uploader.UploadReport(ctx, key, data, "text/csv")
	if err != nil {
		return "", fmt.Errorf("upload report: %w", err)
	}
	s.log.Info().Str("key", key).Int("hours", len(rep.Rows)).Msg("report exported")
	return url, nil
}

// Exports lists the keys of previously exported reports.
func (s *ReportService) Exports(ctx context.Context) ([]string, error) {
	if s.uploader == nil {
		return nil, fmt.Errorf("report export: no uploader configured")
	}
	return s.uploader.ListReports(ctx, reportPrefix)
}
