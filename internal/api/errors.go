package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/explain"
	"github.com/anamnesis-symptom-engine/internal/extraction"
	"github.com/anamnesis-symptom-engine/internal/middleware"
	"github.com/anamnesis-symptom-engine/internal/service"
)

// respondError maps an error to its HTTP status and writes it as an
// APIError.
func (s *Server) respondError(c *gin.Context, err error) {
	status, apiErr := s.toAPIError(c, err)
	if status >= http.StatusInternalServerError {
		s.logger.WithError(err).WithField("correlation_id", apiErr.RequestID).Error("Request failed")
	}
	c.AbortWithStatusJSON(status, apiErr)
}

func (s *Server) badRequest(c *gin.Context, message string, err error) {
	c.AbortWithStatusJSON(http.StatusBadRequest, domain.NewAPIError(
		domain.ErrInvalidInput, message, err.Error(), c.GetString(middleware.CorrelationIDKey),
	))
}

func (s *Server) toAPIError(c *gin.Context, err error) (int, *domain.APIError) {
	requestID := c.GetString(middleware.CorrelationIDKey)

	var (
		validationErr *domain.ValidationError
		mismatchErr   *domain.TypeMismatchError
		extractErr    *extraction.Error
	)
	switch {
	case errors.As(err, &validationErr):
		return http.StatusBadRequest, domain.NewAPIError(domain.ErrValidation, validationErr.Message, validationErr.Field, requestID)
	case errors.As(err, &mismatchErr):
		return http.StatusBadRequest, domain.NewAPIError(domain.ErrValidation, "records do not share a catalog", err.Error(), requestID)
	case errors.Is(err, domain.ErrInvalidStatus):
		return http.StatusBadRequest, domain.NewAPIError(domain.ErrValidation, "invalid symptom status", err.Error(), requestID)
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.NewAPIError(domain.ErrNotFoundCode, "patient not found", "", requestID)
	case errors.Is(err, explain.ErrNoClassifier):
		return http.StatusServiceUnavailable, domain.NewAPIError(domain.ErrInvalidInput, "no classifier configured, a prediction is required", "", requestID)
	case errors.Is(err, service.ErrStoreUnavailable):
		return http.StatusServiceUnavailable, domain.NewAPIError(domain.ErrStorage, err.Error(), "", requestID)
	case errors.As(err, &extractErr):
		return http.StatusBadGateway, domain.NewAPIError(domain.ErrExtraction, "symptom extraction failed", extractErr.Err.Error(), requestID)
	default:
		return http.StatusInternalServerError, domain.NewAPIError(domain.ErrInternalServer, "internal server error", "", requestID)
	}
}
