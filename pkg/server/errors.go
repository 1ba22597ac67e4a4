package server

import (
	"errors"
	"log/slog"
	"maps"
	"net/http"
	"time"

	fserrors "github.com/fluxstats/fluxstats/pkg/errors"
	"github.com/fluxstats/fluxstats/pkg/serializer"
)

// WriteError writes an ErrorResponse. The request id is taken from the
// request context, or generated.
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int,
	code fserrors.ErrorCode, message string, retryable bool, details map[string]any) {

	errResp := ErrorResponse{
		Code:      string(code),
		Message:   message,
		Details:   details,
		RequestID: RequestID(r),
		Timestamp: time.Now().UTC(),
		Retryable: retryable,
	}

	serializer.RespondJSON(w, statusCode, errResp)
}

// WriteErrorFromErr maps err to a response. Structured errors keep their
// code and context; anything else becomes INTERNAL with fallbackMessage.
func WriteErrorFromErr(w http.ResponseWriter, r *http.Request, err error, fallbackMessage string, extraDetails map[string]any) {
	var se *fserrors.StructuredError
	if errors.As(err, &se) {
		details := mergeDetails(se.Context, extraDetails)
		if se.Cause != nil {
			if details == nil {
				details = map[string]any{}
			}
			details["error"] = se.Cause.Error()
		}
		status := HTTPStatusFromCode(se.Code)
		if status >= http.StatusInternalServerError {
			slog.Error("request failed", "path", r.URL.Path, "code", se.Code, "error", err)
		}
		WriteError(w, r, status, se.Code, se.Message, retryableFromCode(se.Code), details)
		return
	}

	details := mergeDetails(extraDetails, map[string]any{"error": err.Error()})
	slog.Error("request failed", "path", r.URL.Path, "error", err)
	WriteError(w, r, http.StatusInternalServerError, fserrors.ErrCodeInternal, fallbackMessage, true, details)
}

// HTTPStatusFromCode maps an error code to an HTTP status.
func HTTPStatusFromCode(code fserrors.ErrorCode) int {
	switch code {
	case fserrors.ErrCodeInvalidRequest:
		return http.StatusBadRequest
	case fserrors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case fserrors.ErrCodeNotFound:
		return http.StatusNotFound
	case fserrors.ErrCodeMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case fserrors.ErrCodeRateLimitExceeded:
		return http.StatusTooManyRequests
	case fserrors.ErrCodeUnavailable:
		return http.StatusServiceUnavailable
	case fserrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case fserrors.ErrCodeInvalidPayload:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func retryableFromCode(code fserrors.ErrorCode) bool {
	switch code {
	case fserrors.ErrCodeTimeout, fserrors.ErrCodeUnavailable, fserrors.ErrCodeRateLimitExceeded,
		fserrors.ErrCodeInternal, fserrors.ErrCodeInvalidPayload:
		return true
	default:
		return false
	}
}

func mergeDetails(a, b map[string]any) map[string]any {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make(map[string]any, len(a)+len(b))
	maps.Copy(out, a)
	maps.Copy(out, b)
	return out
}
