package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"enforcement-analytics/internal/model"
	"enforcement-analytics/internal/service"
)

// The handler depends on the analyzer surfaces, not the concrete
// services, so endpoint behavior is testable without a live store.
type areaSummarizer interface {
	Summarize(ctx context.Context, filter model.SpatialFilter) (*model.AreaSummary, string, error)
}

type corridorAnalyzer interface {
	Analyze(ctx context.Context, filter model.SpatialFilter, limit int) (*model.CorridorReport, string, error)
}

type thresholdAnalyzer interface {
	Analyze(ctx context.Context, filter model.SpatialFilter) (*model.ThresholdProfile, string, error)
}

type patternMiner interface {
	Discover(ctx context.Context) (*model.PatternReport, string, error)
	Profile(ctx context.Context, gridID string) (*model.LocationProfile, error)
}

// Handler owns the analytics endpoints. All of them are read-only and
// share the same response envelope.
type Handler struct {
	areas      areaSummarizer
	corridors  corridorAnalyzer
	thresholds thresholdAnalyzer
	patterns   patternMiner
	log        zerolog.Logger
}

func NewHandler(areas *service.AreaService, corridors *service.CorridorService, thresholds *service.ThresholdService, patterns *service.PatternService, log zerolog.Logger) *Handler {
	return &Handler{
		areas:      areas,
		corridors:  corridors,
		thresholds: thresholds,
		patterns:   patterns,
		log:        log,
	}
}

type envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
	Meta    gin.H       `json:"meta,omitempty"`
}

func successResponse(c *gin.Context, data interface{}, note string) {
	resp := envelope{Success: true, Data: data}
	if note != "" {
		resp.Meta = gin.H{"message": note}
	}
	c.JSON(http.StatusOK, resp)
}

func errorResponse(c *gin.Context, status int, code, message string) {
	c.JSON(status, envelope{Success: false, Error: message, Code: code})
}

// handleError maps service sentinels onto HTTP statuses and stable
// machine-readable codes.
func (h *Handler) handleError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidFilter):
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
	case errors.Is(err, service.ErrAreaTooLarge):
		errorResponse(c, http.StatusRequestEntityTooLarge, "AREA_TOO_LARGE", "selected area produces too much data; zoom in and retry")
	case errors.Is(err, service.ErrUpstreamTimeout):
		errorResponse(c, http.StatusGatewayTimeout, "UPSTREAM_TIMEOUT", "analytics query timed out; retry with a smaller area or fewer filters")
	case errors.Is(err, service.ErrLocationNotFound):
		errorResponse(c, http.StatusNotFound, "LOCATION_NOT_FOUND", "no stops recorded for that grid cell")
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("analytics request failed")
		errorResponse(c, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// parseSpatialFilter reads the shared filter query parameters. Bounds
// are handled per-endpoint; requiredness differs between them.
func parseSpatialFilter(c *gin.Context) (model.SpatialFilter, error) {
	var filter model.SpatialFilter

	if raw := c.Query("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			return filter, errors.New("year must be an integer")
		}
		filter.Year = &year
	}
	if raw := c.Query("detectionMethod"); raw != "" {
		category, ok := model.ParseMethodCategory(strings.ToLower(raw))
		if !ok {
			return filter, errors.New("detectionMethod must be one of radar, laser, vascar, patrol, automated")
		}
		filter.Method = category
	}
	if raw := c.Query("speedOnly"); raw != "" {
		speedOnly, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("speedOnly must be a boolean")
		}
		filter.SpeedOnly = speedOnly
	}
	if raw := c.Query("minSpeedOver"); raw != "" {
		minOver, err := strconv.Atoi(raw)
		if err != nil || minOver < 0 {
			return filter, errors.New("minSpeedOver must be a non-negative integer")
		}
		filter.MinSpeedOver = &minOver
	}
	filter.VehicleMake = strings.TrimSpace(c.Query("vehicleMake"))
	if raw := c.Query("hasAlcohol"); raw != "" {
		hasAlcohol, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("hasAlcohol must be a boolean")
		}
		filter.HasAlcohol = &hasAlcohol
	}
	if raw := c.Query("hasAccident"); raw != "" {
		hasAccident, err := strconv.ParseBool(raw)
		if err != nil {
			return filter, errors.New("hasAccident must be a boolean")
		}
		filter.HasAccident = &hasAccident
	}
	return filter, nil
}

// AreaDrilldown serves GET /analytics/area-drilldown. Bounds are
// mandatory and malformed bounds are a client error.
func (h *Handler) AreaDrilldown(c *gin.Context) {
	filter, err := parseSpatialFilter(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	raw := c.Query("bounds")
	if raw == "" {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", "bounds query parameter is required")
		return
	}
	bounds, err := model.ParseBounds(raw)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}
	filter.Bounds = bounds

	summary, note, err := h.areas.Summarize(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	successResponse(c, summary, note)
}

// RouteRisk serves GET /analytics/route-risk. Bounds are optional here
// and a malformed bounds value is silently dropped rather than
// rejected, falling back to the system-wide report. Long-standing
// endpoint contract; the map UI depends on the fallback.
func (h *Handler) RouteRisk(c *gin.Context) {
	filter, err := parseSpatialFilter(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	if raw := c.Query("bounds"); raw != "" {
		if bounds, err := model.ParseBounds(raw); err == nil {
			filter.Bounds = bounds
		}
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", "limit must be an integer")
			return
		}
		limit = parsed
	}

	report, note, err := h.corridors.Analyze(c.Request.Context(), filter, limit)
	if err != nil {
		h.handleError(c, err)
		return
	}
	successResponse(c, report, note)
}

// Thresholds serves GET /analytics/thresholds.
func (h *Handler) Thresholds(c *gin.Context) {
	filter, err := parseSpatialFilter(c)
	if err != nil {
		errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
		return
	}

	if raw := c.Query("bounds"); raw != "" {
		bounds, err := model.ParseBounds(raw)
		if err != nil {
			errorResponse(c, http.StatusBadRequest, "INVALID_FILTER", err.Error())
			return
		}
		filter.Bounds = bounds
	}

	profile, note, err := h.thresholds.Analyze(c.Request.Context(), filter)
	if err != nil {
		h.handleError(c, err)
		return
	}
	successResponse(c, profile, note)
}

// Patterns serves GET /analytics/ml/patterns.
func (h *Handler) Patterns(c *gin.Context) {
	report, note, err := h.patterns.Discover(c.Request.Context())
	if err != nil {
		h.handleError(c, err)
		return
	}
	successResponse(c, report, note)
}

// LocationProfile serves GET /analytics/ml/location/:gridId.
func (h *Handler) LocationProfile(c *gin.Context) {
	profile, err := h.patterns.Profile(c.Request.Context(), c.Param("gridId"))
	if err != nil {
		h.handleError(c, err)
		return
	}
	successResponse(c, profile, "")
}

// Healthz is the liveness probe.
func (h *Handler) Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
