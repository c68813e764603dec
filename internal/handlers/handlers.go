// Package handlers implements the portal's HTTP surface. Every handler
// delegates to the core API and shapes the response for the web client; the
// portal holds no billing state of its own.
package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	api "blocklytics/portal/pkg/api/coreapi"
	"blocklytics/portal/pkg/cache"
	"blocklytics/portal/pkg/clients/coreapi"
	"blocklytics/portal/pkg/ctxkeys"
	"blocklytics/portal/pkg/logging"
	"blocklytics/portal/pkg/middleware"

	"blocklytics/portal/internal/pricing"
	"blocklytics/portal/internal/session"
	"blocklytics/portal/internal/wizard"
)

var (
	client     *coreapi.Client
	logger     logging.Logger
	wizardMgr  *wizard.Manager
	guard      *session.Guard
	priceTable pricing.Table
	orderCache *cache.Cache
	metrics    *PortalMetrics
)

// PortalMetrics holds the portal's custom Prometheus metrics.
type PortalMetrics struct {
	WizardSteps     *prometheus.CounterVec
	OrdersSubmitted *prometheus.CounterVec
	SessionTimeouts prometheus.Counter
}

// Init initializes the handlers with their dependencies
func Init(c *coreapi.Client, w *wizard.Manager, g *session.Guard, table pricing.Table, log logging.Logger, m *PortalMetrics) {
	client = c
	wizardMgr = w
	guard = g
	priceTable = table
	logger = log
	metrics = m
	orderCache = cache.New(cache.Options{
		TTL:                  30 * time.Second,
		StaleWhileRevalidate: 30 * time.Second,
		NegativeTTL:          5 * time.Second,
		MaxEntries:           10000,
	}, cache.MetricsHooks{})
}

// sessionToken returns the raw bearer token the auth middleware stored.
func sessionToken(c middleware.Context) string {
	return c.GetString(string(ctxkeys.KeyJWTToken))
}

func sessionUserID(c middleware.Context) string {
	return c.GetString(string(ctxkeys.KeyUserID))
}

// respondError maps a core API failure onto the portal's response. Upstream
// 4xx messages pass through verbatim; transport failures become a generic
// message so dial errors never reach the user.
func respondError(c middleware.Context, err error) {
	var apiErr *coreapi.APIError
	if errors.As(err, &apiErr) {
		c.JSON(apiErr.StatusCode, api.ErrorResponse{Error: apiErr.Message})
		return
	}

	if errors.Is(err, coreapi.ErrUnavailable) {
		c.JSON(http.StatusBadGateway, api.ErrorResponse{Error: "Service temporarily unavailable. Please try again."})
		return
	}

	c.JSON(http.StatusInternalServerError, api.ErrorResponse{Error: "Something went wrong. Please try again."})
}

func upstreamError(err error) (*coreapi.APIError, bool) {
	var apiErr *coreapi.APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

func isUnavailable(err error) bool {
	return errors.Is(err, coreapi.ErrUnavailable)
}
