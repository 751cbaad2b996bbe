package providers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"

	"validert/internal/util"
)

type ErrorType string

const (
	ErrorQuota     ErrorType = "quota"
	ErrorRate      ErrorType = "rate"
	ErrorTransient ErrorType = "transient"
	ErrorPermanent ErrorType = "permanent"
	ErrorContext   ErrorType = "context"
)

func ClassifyError(err error) ErrorType {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, util.ErrQuotaExhausted):
		return ErrorQuota
	case errors.Is(err, util.ErrRateLimited):
		return ErrorRate
	case errors.Is(err, util.ErrContextTooLong):
		return ErrorContext
	case errors.Is(err, util.ErrTransient):
		return ErrorTransient
	case errors.Is(err, util.ErrPermanent):
		return ErrorPermanent
	}

	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		code := strings.ToLower(apiErr.Code + " " + apiErr.Message)
		switch {
		case strings.Contains(code, "insufficient_quota"), strings.Contains(code, "quota"):
			return ErrorQuota
		case apiErr.StatusCode == http.StatusTooManyRequests:
			return ErrorRate
		case strings.Contains(code, "context_length"), strings.Contains(code, "too long"):
			return ErrorContext
		case apiErr.StatusCode == http.StatusRequestTimeout, apiErr.StatusCode >= 500:
			return ErrorTransient
		}
	}

	e := strings.ToLower(err.Error())
	switch {
	case strings.Contains(e, "quota"), strings.Contains(e, "credit"), strings.Contains(e, "insufficient_quota"):
		return ErrorQuota
	case strings.Contains(e, "rate limit"), strings.Contains(e, "rate_limit"), strings.Contains(e, "429"):
		return ErrorRate
	case strings.Contains(e, "context too long"), strings.Contains(e, "context_length"), strings.Contains(e, "context length"), strings.Contains(e, "too long"):
		return ErrorContext
	case strings.Contains(e, "timeout"), strings.Contains(e, "deadline exceeded"), strings.Contains(e, "temporarily"), strings.Contains(e, "unavailable"), strings.Contains(e, "transient"),
		strings.Contains(e, "connection refused"), strings.Contains(e, "eof"):
		return ErrorTransient
	default:
		return ErrorPermanent
	}
}

// Classified wraps err with the sentinel for its class so callers can use errors.Is.
func Classified(err error) error {
	if err == nil {
		return nil
	}
	var sentinel error
	switch ClassifyError(err) {
	case ErrorQuota:
		sentinel = util.ErrQuotaExhausted
	case ErrorRate:
		sentinel = util.ErrRateLimited
	case ErrorContext:
		sentinel = util.ErrContextTooLong
	case ErrorTransient:
		sentinel = util.ErrTransient
	default:
		sentinel = util.ErrPermanent
	}
	if errors.Is(err, sentinel) {
		return err
	}
	return fmt.Errorf("%w: %w", sentinel, err)
}

// Retryable reports whether the same provider may succeed on a later attempt.
func Retryable(err error) bool {
	switch ClassifyError(err) {
	case ErrorRate, ErrorTransient:
		return true
	default:
		return false
	}
}
