// Package response writes the JSON error envelope shared by every endpoint.
package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"nxfs_api/internal/domain"
	"nxfs_api/internal/geo"
	"nxfs_api/internal/logger"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// RequestIDKey is the gin context key holding the request id.
const RequestIDKey = "request_id"

const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeAuthRequired    = "AUTHENTICATION_REQUIRED"
	CodeAuthFailed      = "AUTHENTICATION_FAILED"
	CodePermission      = "PERMISSION_DENIED"
	CodeNotFound        = "RESOURCE_NOT_FOUND"
	CodeConflict        = "CONFLICT"
	CodeRateLimited     = "RATE_LIMIT_EXCEEDED"
	CodeInternal        = "INTERNAL_ERROR"
	CodeUnavailable     = "SERVICE_UNAVAILABLE"
	invalidInputMessage = "Invalid input data"
)

type ErrorBody struct {
	Code        string              `json:"code"`
	Message     string              `json:"message"`
	Details     any                 `json:"details,omitempty"`
	FieldErrors map[string][]string `json:"field_errors,omitempty"`
}

type Envelope struct {
	Error     ErrorBody `json:"error"`
	Timestamp string    `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

func init() {
	// report binding errors under their JSON names
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(jsonFieldName)
	}
}

func jsonFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

// Abort writes the envelope and stops the handler chain.
func Abort(c *gin.Context, status int, code, message string, details any, fields map[string][]string) {
	c.AbortWithStatusJSON(status, Envelope{
		Error: ErrorBody{
			Code:        code,
			Message:     message,
			Details:     details,
			FieldErrors: fields,
		},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: c.GetString(RequestIDKey),
	})
}

func Unauthorized(c *gin.Context, code, message string) {
	Abort(c, http.StatusUnauthorized, code, message, nil, nil)
}

func Forbidden(c *gin.Context, message string) {
	Abort(c, http.StatusForbidden, CodePermission, message, nil, nil)
}

func NotFound(c *gin.Context, message string) {
	Abort(c, http.StatusNotFound, CodeNotFound, message, nil, nil)
}

// Validation reports a single field error.
func Validation(c *gin.Context, field, message string) {
	Abort(c, http.StatusBadRequest, CodeValidation, invalidInputMessage, nil, map[string][]string{field: {message}})
}

func TooManyRequests(c *gin.Context, retryAfter time.Duration) {
	secs := int(retryAfter.Seconds())
	if secs < 1 {
		secs = 1
	}
	c.Header("Retry-After", fmt.Sprint(secs))
	Abort(c, http.StatusTooManyRequests, CodeRateLimited, "Rate limit exceeded. Try again later.",
		gin.H{"retry_after": secs}, nil)
}

// Error maps a service error onto the envelope. Unknown errors are logged
// and reported as INTERNAL_ERROR without leaking their text.
func Error(c *gin.Context, err error) {
	var verr *domain.ValidationError
	var cerr *domain.ConflictError

	switch {
	case errors.As(err, &verr):
		msg := verr.Message
		if msg == "" {
			msg = invalidInputMessage
		}
		Abort(c, http.StatusBadRequest, CodeValidation, msg, nil, verr.Fields)
	case errors.As(err, &cerr):
		Abort(c, http.StatusConflict, CodeConflict, cerr.Message, nil, map[string][]string{cerr.Field: {cerr.Message}})
	case errors.Is(err, domain.ErrNotFound):
		NotFound(c, "Resource not found")
	case errors.Is(err, domain.ErrForbidden):
		Forbidden(c, "You do not have permission to perform this action.")
	case errors.Is(err, domain.ErrConflict):
		Abort(c, http.StatusConflict, CodeConflict, "Resource conflict", nil, nil)
	case errors.Is(err, geo.ErrUnavailable):
		Abort(c, http.StatusServiceUnavailable, CodeUnavailable, "Geocoding service is temporarily unavailable.", nil, nil)
	case errors.Is(err, context.Canceled):
		c.Abort()
	default:
		logger.WithContext(c.Request.Context()).Error("request failed",
			"method", c.Request.Method, "path", c.FullPath(), "error", err)
		Abort(c, http.StatusInternalServerError, CodeInternal, "An internal error occurred.", nil, nil)
	}
}

// BindError reports a request body that failed to decode or validate.
func BindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	var typeErr *json.UnmarshalTypeError
	var syntaxErr *json.SyntaxError

	switch {
	case errors.As(err, &verrs):
		fields := make(map[string][]string, len(verrs))
		for _, fe := range verrs {
			name := fieldPath(fe)
			fields[name] = append(fields[name], translate(fe))
		}
		Abort(c, http.StatusBadRequest, CodeValidation, invalidInputMessage, nil, fields)
	case errors.As(err, &typeErr):
		field := typeErr.Field
		if field == "" {
			field = "non_field_errors"
		}
		Validation(c, field, fmt.Sprintf("Expected a value of type %s.", typeErr.Type))
	case errors.As(err, &syntaxErr), errors.Is(err, io.ErrUnexpectedEOF):
		Validation(c, "non_field_errors", "Malformed JSON body.")
	case errors.Is(err, io.EOF):
		Validation(c, "non_field_errors", "Request body is empty.")
	default:
		Validation(c, "non_field_errors", err.Error())
	}
}

// fieldPath drops the top-level struct name from the namespace, leaving
// e.g. "projects[0].name".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.IndexByte(ns, '.'); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func translate(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "url", "http_url":
		return "Enter a valid URL."
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", fe.Param())
	case "latitude":
		return "Latitude must be between -90 and 90."
	case "longitude":
		return "Longitude must be between -180 and 180."
	case "min", "gte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has at least %s characters.", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Ensure this field has at least %s elements.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", fe.Param())
	case "max", "lte":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("Ensure this field has no more than %s characters.", fe.Param())
		}
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("Ensure this field has no more than %s elements.", fe.Param())
		}
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	}
	return fmt.Sprintf("Failed %s validation.", fe.Tag())
}
