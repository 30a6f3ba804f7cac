package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/commercebatola-sys/Outil1/internal/analysis"
	"github.com/commercebatola-sys/Outil1/internal/auth"
	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/storage"
)

var (
	errNotFound         = errors.New("not found")
	errMethodNotAllowed = errors.New("method not allowed")
	errNoFile           = errors.New("no file provided")
	errTemporalDisabled = errors.New("async analysis is disabled")
	errInvalidJSON      = errors.New("invalid json")
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

// writeServiceErr picks the status from the error itself.
func writeServiceErr(w http.ResponseWriter, err error) {
	writeErr(w, statusFor(err), err)
}

func (s *Server) deny(w http.ResponseWriter, _ *http.Request, err error) {
	writeServiceErr(w, err)
}

type apiError struct {
	Code    string
	Message string
}

func statusFor(err error) int {
	var ae *analysis.Error
	var mbe *http.MaxBytesError
	switch {
	case errors.As(err, &ae):
		switch ae.Kind {
		case analysis.KindInvalid:
			return http.StatusBadRequest
		case analysis.KindNotFound:
			return http.StatusNotFound
		case analysis.KindDocument:
			return http.StatusUnprocessableEntity
		case analysis.KindConflict:
			return http.StatusConflict
		case analysis.KindProvider:
			switch providers.ClassifyError(ae.Cause) {
			case providers.ErrorQuota, providers.ErrorRate:
				return http.StatusTooManyRequests
			}
			if errors.Is(ae.Cause, providers.ErrMissingAPIKey) || errors.Is(ae.Cause, providers.ErrInvalidAPIKey) {
				return http.StatusFailedDependency
			}
			return http.StatusBadGateway
		}
	case errors.As(err, &mbe):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, auth.ErrSessionMismatch):
		return http.StatusForbidden
	case errors.Is(err, auth.ErrMissingToken), errors.Is(err, auth.ErrInvalidToken):
		return http.StatusUnauthorized
	case errors.Is(err, storage.ErrAnalysisNotFound), errors.Is(err, errNotFound):
		return http.StatusNotFound
	case errors.Is(err, errTemporalDisabled):
		return http.StatusServiceUnavailable
	case errors.Is(err, errNoFile), errors.Is(err, errInvalidJSON):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "FA-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	// User-facing analysis messages are shown as they are.
	var ae *analysis.Error
	if errors.As(err, &ae) {
		switch ae.Kind {
		case analysis.KindInvalid:
			code = "FA-API-4001"
		case analysis.KindNotFound:
			code = "FA-API-4004"
		case analysis.KindDocument:
			code = "FA-DOC-4220"
		case analysis.KindConflict:
			code = "FA-API-4090"
		case analysis.KindProvider:
			code = "FA-LLM-5020"
			switch status {
			case http.StatusTooManyRequests:
				code = "FA-LLM-4290"
			case http.StatusFailedDependency:
				code = "FA-LLM-4240"
			}
		}
		return apiError{Code: code, Message: ae.Message}
	}

	switch {
	case status >= 500:
		switch {
		case status == http.StatusServiceUnavailable:
			return apiError{
				Code:    "FA-API-5030",
				Message: "Asynchronous analysis is not enabled on this server.",
			}
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "FA-DB-5001",
				Message: "Database schema is not initialized. Run migrations and retry.",
			}
		case strings.Contains(raw, "connect"), strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "FA-DB-5002",
				Message: "Database connection is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "FA-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "FA-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusUnauthorized:
		code = "FA-AUTH-4010"
		msg = "A valid session token is required."
	case status == http.StatusForbidden:
		code = "FA-AUTH-4030"
		msg = "The token does not grant access to this session."
	case status == http.StatusNotFound:
		code = "FA-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "FA-API-4005"
		msg = "This endpoint does not support the requested method."
	case status == http.StatusRequestEntityTooLarge:
		code = "FA-API-4130"
		msg = "The uploaded file is too large."
	}

	// For 4xx, keep user-safe validation context only.
	if status >= 400 && status < 500 && err != nil {
		switch {
		case strings.Contains(raw, "no file provided"):
			msg = "No PDF file was provided."
		case strings.Contains(raw, "only pdf files"):
			msg = "Only PDF files are accepted."
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "token is expired"):
			msg = "The session token has expired."
		}
	}

	return apiError{Code: code, Message: msg}
}
