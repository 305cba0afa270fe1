package http

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/rs/zerolog/log"

	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/aggregate"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/domain"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/metrics"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/repository"
	"github.com/ANIKETSHETTY47/hybrid-energy-telemetry/internal/service"
)

const recentAlertLimit = 20

func Register(app *fiber.App, svcs *service.Services, m *metrics.Metrics) {
	h := &handlers{svcs: svcs}

	app.Get("/health", func(c *fiber.Ctx) error { return c.SendString("ok") })
	if m != nil {
		app.Get("/metrics", adaptor.HTTPHandler(m.Handler()))
	}

	data := app.Group("/data")
	data.Get("/", h.latest)
	data.Get("/history", h.history)
	data.Get("/today-summary", h.todaySummary)
	data.Get("/hourly", h.hourly)

	n := app.Group("/notifications")
	n.Get("/", h.recentAlerts)
	n.Get("/latest", h.latestAlert)
	n.Get("/unread-count", h.unreadCount)
	n.Post("/mark-as-read", h.markAsRead)
	n.Get("/summary", h.alertSummary)
	n.Delete("/", h.clearAlerts)

	r := app.Group("/reports")
	r.Get("/hourly", h.report)
	r.Post("/export", h.exportReport)
	r.Get("/exports", h.listExports)
}

type handlers struct {
	svcs *service.Services
}

// fail maps service errors onto status codes.
func fail(c *fiber.Ctx, err error) error {
	status := fiber.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrInvalidRange):
		status = fiber.StatusBadRequest
	case errors.Is(err, service.ErrNoData):
		status = fiber.StatusNotFound
	case errors.Is(err, repository.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		status = fiber.StatusServiceUnavailable
	}
	if status >= 500 {
		log.Error().Err(err).Str("path", c.Path()).Msg("request failed")
	}
	return c.Status(status).JSON(fiber.Map{"error": err.Error()})
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
}

// parseTime accepts RFC3339 or a plain date. A plain date means the start
// of that day, or its last millisecond when endOfDay is set.
func parseTime(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	d, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD or RFC3339", s)
	}
	if endOfDay {
		return d.AddDate(0, 0, 1).Add(-time.Millisecond), nil
	}
	return d, nil
}

func (h *handlers) rangeParams(c *fiber.Ctx) (time.Time, time.Time, error) {
	startQ, endQ := c.Query("startDate"), c.Query("endDate")
	if startQ == "" || endQ == "" {
		return time.Time{}, time.Time{}, errors.New("startDate and endDate are required")
	}
	loc := h.svcs.Query.Location()
	start, err := parseTime(startQ, loc, false)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := parseTime(endQ, loc, true)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func kindParam(c *fiber.Ctx) (domain.AlertKind, error) {
	k := domain.AlertKind(c.Query("type"))
	if k == "" {
		return "", nil
	}
	for _, known := range domain.KnownAlertKinds {
		if k == known {
			return k, nil
		}
	}
	return "", fmt.Errorf("unknown notification type %q", k)
}

func (h *handlers) latest(c *fiber.Ctx) error {
	snap, err := h.svcs.Query.LatestWithTotals(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(snap)
}

func (h *handlers) history(c *fiber.Ctx) error {
	start, end, err := h.rangeParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	readings, err := h.svcs.Query.History(c.UserContext(), start, end)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(readings)
}

func (h *handlers) todaySummary(c *fiber.Ctx) error {
	totals, err := h.svcs.Query.TodaySummary(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(totals)
}

func (h *handlers) hourly(c *fiber.Ctx) error {
	start, end, err := h.rangeParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	cols, err := aggregate.ParseColumns(c.Query("columns"))
	if err != nil {
		return badRequest(c, err)
	}
	buckets, err := h.svcs.Query.HourlyAggregate(c.UserContext(), start, end, cols)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"columns": cols,
		"rows":    aggregate.Rows(buckets, cols),
		"totals":  aggregate.Totals(buckets),
	})
}

func (h *handlers) recentAlerts(c *fiber.Ctx) error {
	alerts, err := h.svcs.Query.RecentAlerts(c.UserContext(), recentAlertLimit)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(alerts)
}

func (h *handlers) latestAlert(c *fiber.Ctx) error {
	a, err := h.svcs.Query.LatestAlert(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(a)
}

func (h *handlers) unreadCount(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return badRequest(c, err)
	}
	n, err := h.svcs.Query.CountUnread(c.UserContext(), kind)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"count": n})
}

func (h *handlers) markAsRead(c *fiber.Ctx) error {
	kind, err := kindParam(c)
	if err != nil {
		return badRequest(c, err)
	}
	if err := h.svcs.Query.MarkAllRead(c.UserContext(), kind); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) alertSummary(c *fiber.Ctx) error {
	summary, err := h.svcs.Query.AlertSummary(c.UserContext(), time.Hour)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(summary)
}

func (h *handlers) clearAlerts(c *fiber.Ctx) error {
	if err := h.svcs.Query.ClearAlerts(c.UserContext()); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *handlers) report(c *fiber.Ctx) error {
	start, end, err := h.rangeParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	cols, err := aggregate.ParseColumns(c.Query("columns"))
	if err != nil {
		return badRequest(c, err)
	}
	rep, err := h.svcs.Reports.Build(c.UserContext(), start, end, cols)
	if err != nil {
		return fail(c, err)
	}
	if c.Query("format") != "csv" {
		return c.JSON(rep)
	}
	body, err := h.svcs.Reports.CSV(rep)
	if err != nil {
		return fail(c, err)
	}
	c.Set(fiber.HeaderContentType, "text/csv")
	c.Attachment(fmt.Sprintf("hourly-report-%s.csv", start.Format("2006-01-02")))
	return c.Send(body)
}

func (h *handlers) exportReport(c *fiber.Ctx) error {
	start, end, err := h.rangeParams(c)
	if err != nil {
		return badRequest(c, err)
	}
	cols, err := aggregate.ParseColumns(c.Query("columns"))
	if err != nil {
		return badRequest(c, err)
	}
	url, err := h.svcs.Reports.Export(c.UserContext(), start, end, cols)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{"url": url})
}

func (h *handlers) listExports(c *fiber.Ctx) error {
	keys, err := h.svcs.Reports.Exports(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(keys)
}
