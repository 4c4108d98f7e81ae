package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/o4o-platform/ai-gateway/internal/domain/model"
	apperrors "github.com/o4o-platform/ai-gateway/internal/errors"
)

// maxErrorBodyBytes caps how much upstream error body we keep for messages.
const maxErrorBodyBytes = 4096

// jsonRequest describes one upstream HTTP call.
type jsonRequest struct {
	Method  string
	URL     string
	Headers map[string]string
	Body    any
}

// doJSON executes the request and returns the status and full response body.
// Transport-level failures are mapped into the error taxonomy.
func doJSON(ctx context.Context, httpClient *http.Client, p model.Provider, req jsonRequest) (int, []byte, error) {
	payload, err := json.Marshal(req.Body)
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode provider request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "build provider request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return 0, nil, apperrors.Wrapf(err, apperrors.ErrCodeTimeout, "%s request timed out", p)
		}
		if errors.Is(err, context.Canceled) {
			return 0, nil, apperrors.Wrap(err, apperrors.ErrCodeCanceled, "provider request canceled")
		}
		return 0, nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "%s request failed", p)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, apperrors.Wrapf(err, apperrors.ErrCodeProvider, "read %s response", p)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return resp.StatusCode, body, errorFromStatus(p, resp.StatusCode, body, resp.Header.Get("Retry-After"))
	}
	return resp.StatusCode, body, nil
}

// errorFromStatus maps an upstream HTTP status into the error taxonomy:
// 401/403 auth, 400/404/422 validation, 429 rate limit (honoring Retry-After),
// 408/504 timeout, everything else a generic retryable provider failure.
func errorFromStatus(p model.Provider, status int, body []byte, retryAfter string) *apperrors.AppError {
	detail := truncateBody(body)

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return apperrors.Auth(fmt.Sprintf("%s rejected credentials: %s", p, detail))
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		return apperrors.Validationf("%s rejected request: %s", p, detail)
	case http.StatusTooManyRequests:
		return apperrors.RateLimited(
			fmt.Sprintf("%s rate limit exceeded", p),
			parseRetryAfter(retryAfter),
		)
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		return apperrors.Timeout(fmt.Sprintf("%s timed out upstream: %s", p, detail))
	default:
		return apperrors.Provider(fmt.Sprintf("%s returned status %d: %s", p, status, detail))
	}
}

// parseRetryAfter reads a Retry-After header, seconds form only.
func parseRetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if err != nil || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

// truncateBody bounds the error detail carried in messages.
func truncateBody(body []byte) string {
	if len(body) > maxErrorBodyBytes {
		body = body[:maxErrorBodyBytes]
	}
	return string(bytes.TrimSpace(body))
}

// newHTTPClient builds the shared client for provider calls. Per-call
// deadlines come from the registry context; the transport timeout here is a
// backstop only.
func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = DefaultCallTimeout
	}
	return &http.Client{Timeout: timeout * 2}
}
