package http

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/wellora/wellcheck/internal/domain/analysis"
	"github.com/wellora/wellcheck/internal/domain/environment"
	apperrors "github.com/wellora/wellcheck/pkg/errors"
)

// Handler wires the HTTP transport to domain services.
type Handler struct {
	analysisSvc analysis.Service
	envSvc      environment.Service
	logger      *slog.Logger
}

// NewHandler constructs the root HTTP handler.
func NewHandler(analysisSvc analysis.Service, envSvc environment.Service, logger *slog.Logger) *Handler {
	return &Handler{
		analysisSvc: analysisSvc,
		envSvc:      envSvc,
		logger:      logger.With("component", "http.handler"),
	}
}

// Analyze runs the combined health assessment.
func (h *Handler) Analyze(c *gin.Context) {
	var req analysis.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", "request body is not valid JSON: "+err.Error(), err))
		return
	}

	resp, err := h.analysisSvc.Analyze(c.Request.Context(), req)
	if err != nil {
		abortWithError(c, analysisHTTPError(err))
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Pollen returns the environmental summary for a coordinate without running
// an assessment. Upstream failures come back inside the summary body, so
// this endpoint only fails on bad input.
func (h *Handler) Pollen(c *gin.Context) {
	lat, lon, err := coordinateQuery(c)
	if err != nil {
		abortWithError(c, NewHTTPError(http.StatusBadRequest, "invalid_input", err.Error(), err))
		return
	}

	c.JSON(http.StatusOK, h.envSvc.Summary(c.Request.Context(), lat, lon))
}

// Health reports liveness.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func analysisHTTPError(err error) *HTTPError {
	status := http.StatusInternalServerError
	code := "internal_error"
	switch {
	case apperrors.IsCode(err, "invalid_input"):
		status = http.StatusBadRequest
		code = "invalid_input"
	case apperrors.IsCode(err, "rate_limited"):
		status = http.StatusServiceUnavailable
		code = "rate_limited"
	case apperrors.IsCode(err, "timeout"):
		status = http.StatusGatewayTimeout
		code = "timeout"
	case apperrors.IsCode(err, "inference_error"):
		status = http.StatusBadGateway
		code = "inference_error"
	}
	return NewHTTPError(status, code, errMessage(err), err)
}

func coordinateQuery(c *gin.Context) (float64, float64, error) {
	lat, err := parseCoordinate(firstQuery(c, "lat", "latitude"), -90, 90, "lat")
	if err != nil {
		return 0, 0, err
	}
	lon, err := parseCoordinate(firstQuery(c, "lon", "longitude"), -180, 180, "lon")
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func firstQuery(c *gin.Context, names ...string) string {
	for _, name := range names {
		if v := c.Query(name); v != "" {
			return v
		}
	}
	return ""
}

func parseCoordinate(raw string, min, max float64, name string) (float64, error) {
	if raw == "" {
		return 0, &coordError{name: name, reason: "is required"}
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &coordError{name: name, reason: "must be a number"}
	}
	if v < min || v > max {
		return 0, &coordError{name: name, reason: "is out of range"}
	}
	return v, nil
}

type coordError struct {
	name   string
	reason string
}

func (e *coordError) Error() string {
	return e.name + " " + e.reason
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return err.Error()
}
