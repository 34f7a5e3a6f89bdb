package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/reports"
	"github.com/yourusername/clientbook/testutil"
)

func TestDashboardCachesUntilWrite(t *testing.T) {
	ts := newTestServer(t)
	tenant := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	tok := ts.token(t, tenant.Admin)
	client := testutil.SeedClient(t, ts.db, tenant.Org.ID, "Globex")
	d := createInvoice(t, ts, tok, client.ID, "INV-100")

	w := ts.do(t, "GET", "/api/v1/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var dash Dashboard
	decode(t, w, &dash)
	require.NotNil(t, dash.Stats)
	assert.EqualValues(t, 1, dash.Stats.TotalClients)
	assert.EqualValues(t, 1, dash.Stats.TotalInvoices)
	assertMoney(t, "137.50", dash.Stats.PendingRevenue)
	require.Len(t, dash.RecentInvoices, 1)
	assert.Equal(t, "Globex", dash.RecentInvoices[0].ClientName)

	w = ts.do(t, "GET", "/api/v1/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))

	w = ts.do(t, "PUT", "/api/v1/invoices/"+d.Invoice.ID, tok, gin.H{"status": "sent"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	w = ts.do(t, "POST", "/api/v1/invoices/"+d.Invoice.ID+"/payments", tok, gin.H{"amount": "137.50", "method": "eft"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	w = ts.do(t, "GET", "/api/v1/dashboard", tok, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	decode(t, w, &dash)
	assert.EqualValues(t, 1, dash.Stats.PaidInvoices)
	assertMoney(t, "137.50", dash.Stats.TotalRevenue)
	assertMoney(t, "0", dash.Stats.PendingRevenue)
	require.Len(t, dash.RevenueByMonth, 1)
	assert.Equal(t, "2024-03", dash.RevenueByMonth[0].Month)
}

func TestDashboardIsPerOrganization(t *testing.T) {
	ts := newTestServer(t)
	acme := testutil.SeedTenant(t, ts.db, "Acme", "admin@acme.test")
	initech := testutil.SeedTenant(t, ts.db, "Initech", "admin@initech.test")
	testutil.SeedClient(t, ts.db, acme.Org.ID, "Globex")

	w := ts.do(t, "GET", "/api/v1/dashboard", ts.token(t, acme.Admin), nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = ts.do(t, "GET", "/api/v1/dashboard", ts.token(t, initech.Admin), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	var dash Dashboard
	decode(t, w, &dash)
	assert.EqualValues(t, 0, dash.Stats.TotalClients)
	assert.Empty(t, dash.RecentInvoices)
}

// racingCache invalidates the group right after the handler reads its
// generation, as a concurrent write would.
type racingCache struct {
	*cache.Memory
}

func (r racingCache) Generation(ctx context.Context, group string) (int64, error) {
	gen, err := r.Memory.Generation(ctx, group)
	if err != nil {
		return 0, err
	}
	return gen, r.Memory.InvalidateGroup(ctx, group)
}

func TestDashboardNotCachedWhenInvalidatedDuringLoad(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db := testutil.NewDB(t)
	tenant := testutil.SeedTenant(t, db, "Acme", "admin@acme.test")
	rep, err := reports.FromGorm(db)
	require.NoError(t, err)
	mem := cache.NewMemory()
	h := NewDashboardHandler(rep, racingCache{mem}, time.Minute, quietLogger())

	router := gin.New()
	router.GET("/dashboard", func(c *gin.Context) {
		c.Set(middleware.ContextOrgID, tenant.Org.ID)
		h.Get(c)
	})

	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		assert.Equal(t, "MISS", w.Header().Get("X-Cache"))
	}
	var d Dashboard
	ok, err := mem.Get(context.Background(), dashboardKey(tenant.Org.ID), &d)
	require.NoError(t, err)
	assert.False(t, ok)
}
