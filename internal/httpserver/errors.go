package httpserver

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code           string `json:"code"`
	Message        string `json:"message"`
	Field          string `json:"field,omitempty"`
	Service        string `json:"service,omitempty"`
	UpstreamStatus int    `json:"upstreamStatus,omitempty"`
}

// statusFor maps the domain error taxonomy onto HTTP status codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrSignatureMismatch):
		return http.StatusUnauthorized, "signature_mismatch"
	case errors.Is(err, domain.ErrUnauthenticated):
		return http.StatusUnauthorized, "unauthenticated"
	case errors.Is(err, domain.ErrConflict), errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, domain.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	case errors.Is(err, domain.ErrUpstreamMalformed):
		return http.StatusBadGateway, "upstream_malformed"
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		return http.StatusBadGateway, "upstream_unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError renders err as a JSON error body. Upstream snippets and
// internal error text stay in the log.
func writeError(c *gin.Context, logger *zap.Logger, err error) {
	status, code := statusFor(err)
	detail := errorDetail{Code: code, Message: err.Error()}

	var ve *domain.ValidationError
	var ue *domain.UpstreamError
	switch {
	case errors.As(err, &ve):
		detail.Field = ve.Field
		detail.Message = ve.Reason
	case errors.As(err, &ue):
		detail.Service = ue.Service
		detail.UpstreamStatus = ue.Status
		detail.Message = ue.Message
		logger.Warn("upstream call failed",
			zap.String("service", ue.Service),
			zap.Int("status", ue.Status),
			zap.String("message", ue.Message),
			zap.String("body", ue.Snippet),
			zap.String("path", c.FullPath()),
		)
	case status == http.StatusInternalServerError:
		logger.Error("request failed", zap.String("path", c.FullPath()), zap.Error(err))
		detail.Message = "internal error"
	}
	c.AbortWithStatusJSON(status, errorBody{Error: detail})
}

func badRequest(c *gin.Context, field, reason string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, errorBody{Error: errorDetail{
		Code:    "validation_error",
		Message: reason,
		Field:   field,
	}})
}
