package api

import (
	"encoding/json"
	stderrors "errors"
	"io"
	"net/http"

	"task-manager/errors"
	"task-manager/logger"
)

const maxBodySize = 1024 * 64 // 64 KB

// ErrorResponse defines the JSON structure for error responses
type ErrorResponse struct {
	Error   string         `json:"error"`
	Type    string         `json:"type,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// decodeBody reads a single JSON object into dst, rejecting unknown fields
// and oversized bodies.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) *errors.TaskError {
	// Limit request body size - this will cause Decode to fail if exceeded
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			return errors.NewValidationError("request body too large", map[string]any{
				"max_size_bytes": maxBodySize,
			})
		}
		if stderrors.Is(err, io.EOF) {
			return errors.NewValidationError("request body is required")
		}
		return errors.NewValidationError("invalid JSON payload", map[string]any{
			"error": err.Error(),
		})
	}

	if dec.More() {
		return errors.NewValidationError("invalid JSON payload", map[string]any{
			"error": "unexpected data after JSON object",
		})
	}
	return nil
}

// respondWithJSON writes v with the given status code
func respondWithJSON(w http.ResponseWriter, status int, v any, lg *logger.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		lg.Error("failed to encode response", map[string]any{
			"error":       err.Error(),
			"status_code": status,
		})
	}
}

// respondWithError sends a structured error response
func respondWithError(w http.ResponseWriter, taskErr *errors.TaskError, lg *logger.Logger) {
	errorResp := ErrorResponse{
		Error:   taskErr.Message,
		Type:    string(taskErr.Type),
		Details: taskErr.Details,
	}

	fields := map[string]any{
		"error_type":    string(taskErr.Type),
		"error_message": taskErr.Message,
		"status_code":   taskErr.Code,
		"error_details": taskErr.Details,
	}
	if taskErr.Code >= http.StatusInternalServerError {
		lg.Error("HTTP error response", fields)
	} else {
		lg.Debug("HTTP error response", fields)
	}

	respondWithJSON(w, taskErr.Code, errorResp, lg)
}

// respondWithErr maps any error onto the structured response
func respondWithErr(w http.ResponseWriter, err error, lg *logger.Logger) {
	if taskErr, ok := errors.IsTaskError(err); ok {
		respondWithError(w, taskErr, lg)
		return
	}
	respondWithError(w, errors.NewInternalError(err.Error()), lg)
}
