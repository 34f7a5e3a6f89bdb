package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yourusername/clientbook/billing"
	"github.com/yourusername/clientbook/cache"
	"github.com/yourusername/clientbook/identity"
	"github.com/yourusername/clientbook/invoicing"
	"github.com/yourusername/clientbook/middleware"
	"github.com/yourusername/clientbook/notify"
	"github.com/yourusername/clientbook/store"
)

// statusOf maps domain errors to an HTTP status and a stable error code.
func statusOf(err error) (int, string) {
	var verr *store.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, "ValidationError"
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, "NotFound"
	case errors.Is(err, store.ErrConflict), errors.Is(err, identity.ErrEmailTaken):
		return http.StatusConflict, "Conflict"
	case errors.Is(err, store.ErrInvalidReference):
		return http.StatusUnprocessableEntity, "InvalidReference"
	case errors.Is(err, billing.ErrInvoiceLocked):
		return http.StatusConflict, "InvoiceLocked"
	case errors.Is(err, billing.ErrOverpayment):
		return http.StatusUnprocessableEntity, "Overpayment"
	case errors.Is(err, billing.ErrInvalidTransition), errors.Is(err, billing.ErrUnsettled):
		return http.StatusUnprocessableEntity, "InvalidTransition"
	case errors.Is(err, billing.ErrInvalidAmount),
		errors.Is(err, billing.ErrNegativeQuantity),
		errors.Is(err, billing.ErrNegativePrice),
		errors.Is(err, billing.ErrNegativeTaxRate),
		errors.Is(err, billing.ErrTaxRateTooHigh),
		errors.Is(err, billing.ErrInvalidStatus):
		return http.StatusUnprocessableEntity, "ValidationError"
	case errors.Is(err, invoicing.ErrUnverifiedPayment):
		return http.StatusUnprocessableEntity, "UnverifiedPayment"
	case errors.Is(err, identity.ErrInvalidCredentials):
		return http.StatusUnauthorized, "InvalidCredentials"
	case errors.Is(err, identity.ErrInvalidSession):
		return http.StatusUnauthorized, "InvalidToken"
	case errors.Is(err, identity.ErrAccountDisabled):
		return http.StatusForbidden, "AccountDisabled"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "Unavailable"
	}
	return http.StatusInternalServerError, "InternalError"
}

// respondError writes err as a JSON error body. Unexpected errors are logged and
// replaced by a generic message.
func respondError(c *gin.Context, log *logrus.Logger, err error) {
	status, code := statusOf(err)
	if status >= http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"path":   c.FullPath(),
			"org_id": middleware.OrgID(c),
		}).Error("request failed")
		c.JSON(status, gin.H{"error": notify.FallbackMessage, "code": code})
		return
	}

	body := gin.H{"error": err.Error(), "code": code}
	var verr *store.ValidationError
	if errors.As(err, &verr) {
		body["field"] = verr.Field
	}
	c.JSON(status, body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "code": "InvalidRequest"})
}

// Mutations reports the outcome of every write: a notification to the caller's
// organization and, on success, invalidation of its cached dashboard.
type Mutations struct {
	Bus   *notify.Bus
	Cache cache.Cache
	Log   *logrus.Logger
}

func (m Mutations) succeeded(c *gin.Context, title, message string) {
	org := middleware.OrgID(c)
	if err := m.Cache.InvalidateGroup(c.Request.Context(), cache.DashboardGroup(org)); err != nil {
		m.Log.WithError(err).WithField("org_id", org).Warn("dashboard cache invalidation failed")
	}
	m.Bus.Success(org, title, message)
}

func (m Mutations) failed(c *gin.Context, title string, err error) {
	respondError(c, m.Log, err)
	if status, _ := statusOf(err); status >= http.StatusInternalServerError {
		err = nil
	}
	m.Bus.Failure(middleware.OrgID(c), title, err)
}
