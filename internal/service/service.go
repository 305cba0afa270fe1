package service

import (
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
)

// Services bundles the read side used by the HTTP API.
type Services struct {
	Store   repository.Store
	Query   *QueryService
	Reports *ReportService
}

func New(cfg QueryConfig, uploader Uploader) *Services {
	q := NewQueryService(cfg)
	return &Services{
		Store:   cfg.Store,
		Query:   q,
		Reports: NewReportService(q, uploader, cfg.Log),
	}
}
