package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/gestion-cobranzas/cobranzas-engine/pkg/apperrors"
	"github.com/gestion-cobranzas/cobranzas-engine/pkg/logging"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

// ErrorResponse writes a JSON error response and returns any encoding error.
func ErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string) error {
	return writeError(w, statusCode, errorBody{Error: errorCode, Message: message})
}

// ValidationErrorResponse writes a 400 naming the offending field.
func ValidationErrorResponse(w http.ResponseWriter, field, message string) error {
	return writeError(w, http.StatusBadRequest, errorBody{
		Error:   "validation_error",
		Message: message,
		Field:   field,
	})
}

func writeError(w http.ResponseWriter, statusCode int, body errorBody) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(body)
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// writeServiceError maps a service error onto a status code.
// Unexpected errors are logged with the sanitized cause and reported as 500
// without their message.
func writeServiceError(w http.ResponseWriter, logger *zap.Logger, op string, err error) {
	var writeErr error

	if ve, ok := apperrors.AsValidationError(err); ok {
		writeErr = ValidationErrorResponse(w, ve.Field, ve.Message)
	} else {
		switch {
		case errors.Is(err, apperrors.ErrNotFound):
			writeErr = ErrorResponse(w, http.StatusNotFound, "not_found", "Resource not found")
		case errors.Is(err, apperrors.ErrForbidden):
			writeErr = ErrorResponse(w, http.StatusForbidden, "forbidden", "Insufficient permissions")
		case errors.Is(err, apperrors.ErrConflict):
			writeErr = ErrorResponse(w, http.StatusConflict, "conflict", "Resource already exists")
		case errors.Is(err, apperrors.ErrInvalidCredentials):
			writeErr = ErrorResponse(w, http.StatusUnauthorized, "invalid_credentials", "Invalid username or password")
		case errors.Is(err, apperrors.ErrInactiveUser):
			writeErr = ErrorResponse(w, http.StatusUnauthorized, "inactive_user", "User is inactive")
		default:
			logger.Error("Request failed",
				zap.String("operation", op),
				zap.String("error", logging.SanitizeError(err)))
			writeErr = ErrorResponse(w, http.StatusInternalServerError, op+"_failed", "Internal server error")
		}
	}

	if writeErr != nil {
		logger.Error("Failed to write error response", zap.Error(writeErr))
	}
}

// writeResponse writes data and logs encoding failures.
func writeResponse(w http.ResponseWriter, logger *zap.Logger, statusCode int, data any) {
	if err := WriteJSON(w, statusCode, data); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}
