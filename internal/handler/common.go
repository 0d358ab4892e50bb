package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/mahalnishan/crm/internal/middleware"
	"github.com/mahalnishan/crm/internal/workorder"
	"github.com/mahalnishan/crm/pkg/logger"
	"github.com/mahalnishan/crm/prometheus"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// tenantID reads the tenant set by AuthMiddleware; callers return errMissingTenant on false
func tenantID(c echo.Context) (uint, bool) {
	id, ok := middleware.TenantID(c)
	if !ok {
		logger.FromContext(c).Warn("Missing tenant_id in context")
		prometheus.TenantContextMissingCounter.Inc()
	}
	return id, ok
}

func errMissingTenant(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "tenant_id is required"})
}

// bindAndValidate binds the JSON body and runs the validate tags.
// The returned error is an *echo.HTTPError ready to be returned from the handler.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		logger.FromContext(c).Warn("Invalid request data", zap.Error(err))
		return httpError(http.StatusBadRequest, "Invalid request data")
	}
	if err := c.Validate(req); err != nil {
		logger.FromContext(c).Warn("Request validation failed", zap.Error(err))
		return httpError(http.StatusBadRequest, err.Error())
	}
	return nil
}

// httpError renders as {"error": msg} through echo's error handler
func httpError(code int, msg string) *echo.HTTPError {
	return echo.NewHTTPError(code, echo.Map{"error": msg})
}

type page struct {
	Page   int
	Limit  int
	Offset int
}

func pagination(c echo.Context) page {
	p, _ := strconv.Atoi(c.QueryParam("page"))
	if p <= 0 {
		p = 1
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > maxPageSize {
		limit = defaultPageSize
	}
	return page{Page: p, Limit: limit, Offset: (p - 1) * limit}
}

func (p page) meta(total int64) echo.Map {
	return echo.Map{
		"current_page": p.Page,
		"limit":        p.Limit,
		"total":        total,
		"total_pages":  (int(total) + p.Limit - 1) / p.Limit,
	}
}

// likeEscaper escapes LIKE wildcards; queries pair it with ESCAPE '\'
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// contains builds a case-insensitive LIKE pattern matching s literally
func contains(s string) string {
	return "%" + likeEscaper.Replace(strings.ToLower(strings.TrimSpace(s))) + "%"
}

// parseDate accepts a calendar date or an RFC 3339 timestamp; empty means unset
func parseDate(field, s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	for _, layout := range []string{"2006-01-02", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t, nil
		}
	}
	return nil, &workorder.Error{Kind: workorder.ErrValidation, Field: field, Msg: "must be a date (YYYY-MM-DD)"}
}

// workOrderError maps reconciler errors onto HTTP responses
func workOrderError(c echo.Context, err error) error {
	log := logger.FromContext(c)

	var werr *workorder.Error
	field := ""
	if errors.As(err, &werr) {
		field = werr.Field
	}

	switch {
	case errors.Is(err, workorder.ErrValidation):
		log.Warn("Work order validation failed", zap.Error(err))
		return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "field": field})
	case errors.Is(err, workorder.ErrNotFound):
		log.Warn("Work order reference not found", zap.Error(err))
		return c.JSON(http.StatusNotFound, echo.Map{"error": err.Error(), "field": field})
	case errors.Is(err, workorder.ErrConflict):
		log.Warn("Work order version conflict", zap.Error(err))
		return c.JSON(http.StatusConflict, echo.Map{"error": err.Error()})
	default:
		log.Error("Work order persistence failed", zap.Error(err))
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "Failed to save work order"})
	}
}
