package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/persianhub/backend/internal/infrastructure/observability"
	apperrors "github.com/persianhub/backend/pkg/errors"
)

const maxRequestBodyBytes = 1 << 20

var statusByErrorType = map[apperrors.ErrorType]int{
	apperrors.ErrorTypeNotFound:     http.StatusNotFound,
	apperrors.ErrorTypeValidation:   http.StatusBadRequest,
	apperrors.ErrorTypeConflict:     http.StatusConflict,
	apperrors.ErrorTypeUnauthorized: http.StatusUnauthorized,
	apperrors.ErrorTypeForbidden:    http.StatusForbidden,
	apperrors.ErrorTypeExternal:     http.StatusBadGateway,
	apperrors.ErrorTypeInternal:     http.StatusInternalServerError,
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps err to a status code. Internal details are
// logged, not returned.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	status, ok := statusByErrorType[appErr.Type]
	if !ok {
		status = http.StatusInternalServerError
	}
	if status >= http.StatusInternalServerError {
		observability.LoggerFromContext(r.Context()).Error().Err(err).Msg("Request failed")
	}
	respondWithError(w, status, appErr.Message)
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

// decodeOptionalJSON is decodeJSON for bodies that may be empty
func decodeOptionalJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func queryInt(r *http.Request, key string, defaultValue int) int {
	if value := r.URL.Query().Get(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
