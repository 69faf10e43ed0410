package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	apperrors "claimsflow/internal/common/errors"
	"claimsflow/internal/common/validation"
)

type errorBody struct {
	Error *apperrors.StandardError `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeValidationFailed:
		return http.StatusBadRequest
	case apperrors.ErrCodeInvalidTransition, apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeDependencyUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (a *API) writeError(w http.ResponseWriter, r *http.Request, err error) {
	stdErr := apperrors.Normalize(err)
	status := statusFor(stdErr.Code)

	fields := map[string]interface{}{
		"method": r.Method,
		"path":   r.URL.Path,
		"code":   string(stdErr.Code),
		"error":  err.Error(),
	}
	if status >= http.StatusInternalServerError {
		a.logger.Error("request failed", fields)
	} else {
		a.logger.Debug("request rejected", fields)
	}

	if status == http.StatusServiceUnavailable {
		w.Header().Set("Retry-After", "1")
	}
	if stdErr.Code == apperrors.ErrCodeInternal {
		// Internal causes are logged, not returned.
		stdErr = &apperrors.StandardError{Code: stdErr.Code, Message: stdErr.Message, Timestamp: stdErr.Timestamp}
	}
	writeJSON(w, status, errorBody{Error: stdErr})
}

// decode validates the request body against schema and unmarshals it into dst.
func decode(r *http.Request, schema *validation.Schema, dst interface{}) error {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apperrors.NewValidationFailedError("body", "request body too large")
		}
		return apperrors.NewValidationFailedError("body", err.Error())
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		body = []byte("{}")
	}
	if !json.Valid(body) {
		return apperrors.NewValidationFailedError("body", "request body is not valid JSON")
	}

	if schema != nil {
		result, err := schema.Validate(body)
		if err != nil {
			return apperrors.NewValidationFailedError("body", err.Error())
		}
		if !result.Valid {
			return apperrors.NewValidationFailedError(result.Errors[0].Field, strings.Join(result.GetErrorMessages(), "; "))
		}
	}

	if err := json.Unmarshal(body, dst); err != nil {
		return apperrors.NewValidationFailedError("body", err.Error())
	}
	return nil
}
