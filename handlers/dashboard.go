package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/reports"
	"github.com/yourusername/clientbook/task"
)

type Dashboard struct {
	Stats          *reports.Stats          `json:"stats"`
	RevenueByMonth []reports.MonthRevenue  `json:"revenue_by_month"`
	RecentInvoices []reports.RecentInvoice `json:"recent_invoices"`
}

type DashboardHandler struct {
	reports *reports.Reports
	cache   cache.Cache
	ttl     time.Duration
	log     *logrus.Logger
}

func NewDashboardHandler(r *reports.Reports, c cache.Cache, ttl time.Duration, log *logrus.Logger) *DashboardHandler {
	return &DashboardHandler{reports: r, cache: c, ttl: ttl, log: log}
}

func dashboardKey(orgID string) string {
	return cache.DashboardGroup(orgID) + ":summary"
}

func (h *DashboardHandler) Get(c *gin.Context) {
	ctx, org := c.Request.Context(), middleware.OrgID(c)

	var cached Dashboard
	hit, err := h.cache.Get(ctx, dashboardKey(org), &cached)
	if err != nil {
		h.log.WithError(err).WithField("org_id", org).Warn("dashboard cache read failed")
	}
	if hit {
		c.Header("X-Cache", "HIT")
		c.JSON(http.StatusOK, cached)
		return
	}

	group := cache.DashboardGroup(org)
	gen, genErr := h.cache.Generation(ctx, group)
	if genErr != nil {
		h.log.WithError(genErr).WithField("org_id", org).Warn("dashboard cache generation read failed")
	}
	d, err := h.load(ctx, org)
	if err != nil {
		respondError(c, h.log, err)
		return
	}
	if genErr == nil {
		stored, err := h.cache.SetIfGeneration(ctx, dashboardKey(org), d, h.ttl, group, gen)
		if err != nil {
			h.log.WithError(err).WithField("org_id", org).Warn("dashboard cache write failed")
		} else if !stored {
			h.log.WithField("org_id", org).Debug("dashboard invalidated during load; not cached")
		}
	}
	c.Header("X-Cache", "MISS")
	c.JSON(http.StatusOK, d)
}

// load runs the three report queries concurrently. The first failure cancels
// the others so a partial dashboard is never returned.
func (h *DashboardHandler) load(ctx context.Context, orgID string) (*Dashboard, error) {
	stats := task.Go(ctx, func(ctx context.Context) (*reports.Stats, error) {
		return h.reports.Stats(ctx, orgID)
	})
	revenue := task.Go(ctx, func(ctx context.Context) ([]reports.MonthRevenue, error) {
		return h.reports.RevenueByMonth(ctx, orgID)
	})
	recent := task.Go(ctx, func(ctx context.Context) ([]reports.RecentInvoice, error) {
		return h.reports.RecentInvoices(ctx, orgID)
	})
	cancelAll := func() {
		stats.Cancel()
		revenue.Cancel()
		recent.Cancel()
	}

	var d Dashboard
	var err error
	if d.Stats, err = stats.Await(ctx); err != nil {
		cancelAll()
		return nil, err
	}
	if d.RevenueByMonth, err = revenue.Await(ctx); err != nil {
		cancelAll()
		return nil, err
	}
	if d.RecentInvoices, err = recent.Await(ctx); err != nil {
		cancelAll()
		return nil, err
	}
	return &d, nil
}
