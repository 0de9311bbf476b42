package api

import (
	"context"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/adeilh/scribe/httpx"
)

const readyTimeout = 2 * time.Second

func (a *API) health(c httpx.Context) error {
	return c.JSON(httpx.StatusOK, map[string]string{"status": "ok"})
}

// ready fails only when the database is unreachable. The cache is
// reported, but reads degrade to the database without it.
func (a *API) ready(c httpx.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), readyTimeout)
	defer cancel()

	code, status := httpx.StatusOK, "ok"
	checks := map[string]string{}
	if err := probe(ctx, a.database); err != nil {
		code, status = httpx.StatusServiceUnavailable, "unavailable"
		checks["database"] = err.Error()
	} else {
		checks["database"] = "ok"
	}
	if err := probe(ctx, a.cache); err != nil {
		checks["cache"] = "degraded: " + err.Error()
	} else {
		checks["cache"] = "ok"
	}
	return c.JSON(code, map[string]any{"status": status, "checks": checks})
}

func probe(ctx context.Context, check Checker) error {
	if check == nil {
		return nil
	}
	return check(ctx)
}

func (a *API) metricsHandler() httpx.HandlerFunc {
	return echo.WrapHandler(promhttp.HandlerFor(a.gatherer, promhttp.HandlerOpts{}))
}
