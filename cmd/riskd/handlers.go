package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/bluesky-social/postwatch/riskmod/service"

	"github.com/labstack/echo/v4"
)

// Header carrying the authenticated user, set by the upstream auth proxy.
const userIDHeader = "X-User-ID"

type GenericError struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type GenericStatus struct {
	Daemon  string `json:"daemon"`
	Status  string `json:"status"`
	Message string `json:"msg,omitempty"`
}

// Body for rejected risk requests.
type RiskError struct {
	Success   bool                   `json:"success"`
	Error     string                 `json:"error"`
	Message   string                 `json:"message,omitempty"`
	Fields    []service.FieldError   `json:"fields,omitempty"`
	RateLimit *service.RateLimitInfo `json:"rateLimit,omitempty"`
}

// GET /api/risk
func (srv *Server) HandleRisk(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), srv.requestTimeout)
	defer cancel()

	req, err := service.ParseRequest(
		c.Request().Header.Get(userIDHeader),
		c.QueryParam("includeHistory"),
		c.QueryParam("refresh"),
	)
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		riskRequests.WithLabelValues("invalid").Inc()
		return c.JSON(http.StatusBadRequest, RiskError{
			Error:   "InvalidRequest",
			Message: verr.Error(),
			Fields:  verr.Fields,
		})
	} else if err != nil {
		return err
	}

	resp, err := srv.svc.Evaluate(ctx, req)
	if err != nil && errors.Is(err, service.ErrAccountNotFound) {
		riskRequests.WithLabelValues("not-found").Inc()
		return c.JSON(http.StatusNotFound, RiskError{
			Error:   "AccountNotFound",
			Message: fmt.Sprintf("no account for user: %s", req.UserID),
		})
	} else if err != nil {
		riskRequests.WithLabelValues("error").Inc()
		srv.logger.Error("risk evaluation failed", "user", req.UserID, "err", err)
		return c.JSON(http.StatusInternalServerError, RiskError{
			Error:   "InternalServerError",
			Message: "risk evaluation failed",
		})
	}

	if !resp.Success {
		riskRequests.WithLabelValues("rate-limited").Inc()
		c.Response().Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds(resp.RateLimit.ResetAt, time.Now())))
		rl := resp.RateLimit
		return c.JSON(http.StatusTooManyRequests, RiskError{
			Error:     "RateLimitExceeded",
			Message:   "too many risk evaluations; retry after the rate limit window resets",
			RateLimit: &rl,
		})
	}

	if resp.Cached {
		riskRequests.WithLabelValues("cached").Inc()
	} else {
		riskRequests.WithLabelValues("ok").Inc()
	}
	return c.JSON(http.StatusOK, resp)
}

// whole seconds until reset, at least 1
func retryAfterSeconds(resetAt, now time.Time) int {
	secs := int(math.Ceil(resetAt.Sub(now).Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

func (srv *Server) errorHandler(err error, c echo.Context) {
	code := http.StatusInternalServerError
	var errorMessage string
	if he, ok := err.(*echo.HTTPError); ok {
		code = he.Code
		errorMessage = fmt.Sprintf("%s", he.Message)
	}
	if code >= 500 {
		srv.logger.Warn("riskd-http-internal-error", "err", err)
	}
	c.JSON(code, GenericError{Error: http.StatusText(code), Message: errorMessage})
}

func (srv *Server) HandleHealthCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, GenericStatus{Status: "ok", Daemon: "riskd"})
}
