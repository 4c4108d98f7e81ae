package httpx

import (
	"net/http"
	"strconv"

	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

// errorBody is the single error envelope returned by every API endpoint.
type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

// statusForCode maps error taxonomy codes to HTTP statuses. Codes without an
// explicit mapping surface as 500 with the message redacted.
func statusForCode(code apperrors.ErrorCode) int {
	switch code {
	case apperrors.ErrCodeValidation:
		return http.StatusBadRequest
	case apperrors.ErrCodeAuth:
		return http.StatusUnauthorized
	case apperrors.ErrCodeForbidden:
		return http.StatusForbidden
	case apperrors.ErrCodeNotFound:
		return http.StatusNotFound
	case apperrors.ErrCodeConflict:
		return http.StatusConflict
	case apperrors.ErrCodeRateLimit:
		return http.StatusTooManyRequests
	case apperrors.ErrCodeTimeout:
		return http.StatusGatewayTimeout
	case apperrors.ErrCodeProvider:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// WriteAppError renders an error as the API's JSON envelope. Client-facing
// codes keep their message; internal failures are redacted and the caller is
// expected to log the detail. Rate-limit errors carry a Retry-After header.
func WriteAppError(w http.ResponseWriter, err error) {
	code := apperrors.GetCode(err)
	status := statusForCode(code)

	detail := errorDetail{
		Type:      string(code),
		Message:   err.Error(),
		Retryable: apperrors.IsRetryable(err),
	}
	if status == http.StatusInternalServerError {
		detail.Type = string(apperrors.ErrCodeInternal)
		detail.Message = "internal server error"
	}

	if retryAfter := apperrors.GetRetryAfter(err); retryAfter > 0 {
		seconds := int(retryAfter.Seconds())
		if seconds < 1 {
			seconds = 1
		}
		w.Header().Set("Retry-After", strconv.Itoa(seconds))
	}

	WriteJSON(w, status, errorBody{Error: detail})
}
