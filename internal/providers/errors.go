package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/commercebatola-sys/Outil1/internal/util"
)

var (
	ErrMissingAPIKey = errors.New("api key missing")
	ErrInvalidAPIKey = errors.New("api key looks invalid (too short)")
	ErrNoModels      = errors.New("no models available")
	ErrEmptyResponse = errors.New("provider returned an empty response")
)

// MinAPIKeyLength is the shortest key accepted for hosted gateways.
const MinAPIKeyLength = 20

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

// ClassifyError prefers the sentinels attached by the providers and falls back
// to the message text, which is all that survives an activity boundary.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrMissingAPIKey), errors.Is(err, ErrInvalidAPIKey), errors.Is(err, ErrNoModels), errors.Is(err, util.ErrPermanent):
		return ErrorPermanent
	case errors.Is(err, util.ErrQuotaExhausted):
		return ErrorQuota
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, util.ErrContextTooLong):
		return ErrorContext
	case errors.Is(err, util.ErrTransient):
		return ErrorTransient
	}
	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "402"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "ratelimit"),
		strings.Contains(e, "too many requests"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context length"), strings.Contains(e, "context window"), strings.Contains(e, "maximum context"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "transient"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "deadline exceeded"), strings.Contains(e, " 502"), strings.Contains(e, " 503"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// statusSentinel maps an HTTP status from a model endpoint to the matching
// sentinel. Statuses that say nothing about retrying map to nil.
func statusSentinel(code int) error {
	switch code {
	case http.StatusPaymentRequired:
		return util.ErrQuotaExhausted
	case http.StatusTooManyRequests:
		return util.ErrRateLimited
	case http.StatusRequestEntityTooLarge:
		return util.ErrContextTooLong
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		return util.ErrPermanent
	case http.StatusRequestTimeout, http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return util.ErrTransient
	}
	return nil
}

// httpError formats a failed endpoint response, attaching the status sentinel
// when there is one.
func httpError(what string, code int, detail string) error {
	if s := statusSentinel(code); s != nil {
		return fmt.Errorf("%s %d: %w: %s", what, code, s, detail)
	}
	return fmt.Errorf("%s %d: %s", what, code, detail)
}

func validateAPIKey(key string) error {
	switch {
	case key == "":
		return ErrMissingAPIKey
	case len(key) < MinAPIKeyLength:
		return ErrInvalidAPIKey
	}
	return nil
}
