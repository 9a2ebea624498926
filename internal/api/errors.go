package api

import (
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/gardentracker/gardentracker/internal/errors"
	"github.com/gardentracker/gardentracker/internal/logger"
	"github.com/gardentracker/gardentracker/internal/ocr"
)

// Machine-readable error codes returned in the envelope
const (
	CodeNotFound         = "RESOURCE_NOT_FOUND"
	CodeValidation       = "VALIDATION_ERROR"
	CodeFileUpload       = "FILE_UPLOAD_ERROR"
	CodeDatabase         = "DATABASE_ERROR"
	CodeOCRNotConfigured = "OCR_NOT_CONFIGURED"
	CodeOCRFailed        = "OCR_FAILED"
	CodeInternal         = "INTERNAL_SERVER_ERROR"
	CodeMethodNotAllowed = "METHOD_NOT_ALLOWED"
	CodeRateLimited      = "RATE_LIMITED"
	CodeBadRequest       = "BAD_REQUEST"
)

const internalMessage = "An unexpected error occurred"

// ErrorBody is the content of the error envelope
type ErrorBody struct {
	Code          string         `json:"code"`
	Message       string         `json:"message"`
	Details       map[string]any `json:"details"`
	CorrelationID string         `json:"correlation_id"`
}

// ErrorResponse is the JSON error envelope
type ErrorResponse struct {
	Error ErrorBody `json:"error"`
}

// classify maps an error to its status code and envelope body. Messages of
// unexpected errors are never exposed.
func classify(err error) (int, ErrorBody) {
	body := ErrorBody{Details: map[string]any{}}

	if errors.Is(err, ocr.ErrNotConfigured) {
		body.Code = CodeOCRNotConfigured
		body.Message = ocr.ErrNotConfigured.Error()
		return http.StatusInternalServerError, body
	}

	var he *echo.HTTPError
	if errors.As(err, &he) {
		return classifyHTTPError(he)
	}

	var ee *errors.EnhancedError
	if !errors.As(err, &ee) {
		body.Code = CodeInternal
		body.Message = internalMessage
		return http.StatusInternalServerError, body
	}

	switch ee.Category {
	case errors.CategoryNotFound:
		body.Code = CodeNotFound
		body.Message = ee.Error()
		body.Details[errors.ContextResourceType] = ee.ContextString(errors.ContextResourceType)
		body.Details[errors.ContextResourceID] = ee.ContextString(errors.ContextResourceID)
		return http.StatusNotFound, body
	case errors.CategoryValidation:
		body.Code = CodeValidation
		body.Message = "Validation failed"
		body.Details[errors.ContextFieldErrors] = ee.FieldErrors()
		return http.StatusBadRequest, body
	case errors.CategoryFileUpload:
		body.Code = CodeFileUpload
		body.Message = ee.Error()
		body.Details[errors.ContextFilename] = ee.ContextString(errors.ContextFilename)
		return http.StatusBadRequest, body
	case errors.CategoryDatabase:
		op := ee.ContextString(errors.ContextOperation)
		body.Code = CodeDatabase
		body.Message = fmt.Sprintf("Database %s failed", op)
		body.Details[errors.ContextOperation] = op
		return http.StatusInternalServerError, body
	case errors.CategoryProcessing, errors.CategoryNetwork:
		body.Code = CodeOCRFailed
		body.Message = "OCR processing failed"
		return http.StatusInternalServerError, body
	default:
		body.Code = CodeInternal
		body.Message = internalMessage
		return http.StatusInternalServerError, body
	}
}

// classifyHTTPError maps echo's own errors into the envelope
func classifyHTTPError(he *echo.HTTPError) (int, ErrorBody) {
	body := ErrorBody{Details: map[string]any{}}
	switch he.Code {
	case http.StatusNotFound:
		body.Code = CodeNotFound
	case http.StatusMethodNotAllowed:
		body.Code = CodeMethodNotAllowed
	case http.StatusRequestEntityTooLarge:
		body.Code = CodeFileUpload
	case http.StatusTooManyRequests:
		body.Code = CodeRateLimited
	case http.StatusBadRequest:
		body.Code = CodeBadRequest
	default:
		if he.Code >= http.StatusInternalServerError {
			body.Code = CodeInternal
			body.Message = internalMessage
			return he.Code, body
		}
		body.Code = CodeBadRequest
	}
	if msg, ok := he.Message.(string); ok {
		body.Message = msg
	} else {
		body.Message = http.StatusText(he.Code)
	}
	return he.Code, body
}

// correlationID reuses the request id so logs and responses can be matched
func correlationID(ctx echo.Context) string {
	if id := ctx.Response().Header().Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	if id := ctx.Request().Header.Get(echo.HeaderXRequestID); id != "" {
		return id
	}
	return uuid.NewString()
}

// HandleError writes the error envelope, or the error page for HTML clients
func (c *Controller) HandleError(ctx echo.Context, err error) error {
	status, body := classify(err)
	body.CorrelationID = correlationID(ctx)

	fields := []logger.Field{
		logger.String("correlation_id", body.CorrelationID),
		logger.String("code", body.Code),
		logger.Int("status", status),
		logger.String("method", ctx.Request().Method),
		logger.String("path", ctx.Request().URL.Path),
		logger.Error(err),
	}
	log := c.log.WithContext(ctx.Request().Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", fields...)
	} else {
		log.Debug("request rejected", fields...)
	}
	if c.metrics != nil {
		c.metrics.HTTP.RecordHTTPRequestError(ctx.Request().Method, routeLabel(ctx), body.Code)
	}

	if wantsHTML(ctx) && ctx.Echo().Renderer != nil {
		return ctx.Render(status, "error", &PageData{
			Title: http.StatusText(status),
			Page:  "error",
			Data:  body,
		})
	}
	return ctx.JSON(status, ErrorResponse{Error: body})
}

// HTTPErrorHandler is installed as echo's error handler
func (c *Controller) HTTPErrorHandler(err error, ctx echo.Context) {
	if ctx.Response().Committed {
		return
	}
	if herr := c.HandleError(ctx, err); herr != nil {
		c.log.Error("failed to write error response", logger.Error(herr))
	}
}

func routeLabel(ctx echo.Context) string {
	if p := ctx.Path(); p != "" {
		return p
	}
	return "unmatched"
}
