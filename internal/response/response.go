// Package response writes the JSON envelope shared by every API endpoint.
package response

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/vidtube/backend/internal/apperrors"
	"github.com/vidtube/backend/internal/logging"
)

// Envelope wraps successful payloads.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Data       any    `json:"data"`
	Message    string `json:"message"`
	Success    bool   `json:"success"`
}

// ErrorEnvelope wraps failures.
type ErrorEnvelope struct {
	StatusCode int      `json:"statusCode"`
	Message    string   `json:"message"`
	Success    bool     `json:"success"`
	Errors     []string `json:"errors"`
}

// OK writes data inside a success envelope.
func OK(ctx context.Context, w http.ResponseWriter, status int, data any, message string) {
	if data == nil {
		data = struct{}{}
	}
	JSON(ctx, w, status, Envelope{StatusCode: status, Data: data, Message: message, Success: true})
}

// Error writes err inside an error envelope. Errors that are not already
// structured become a generic 500 whose cause is logged but not exposed.
func Error(ctx context.Context, w http.ResponseWriter, err error) {
	appErr := apperrors.As(err)
	status := appErr.HTTPStatus()

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "message", appErr.Message, "error", appErr.Cause)
	case status == apperrors.StatusClientClosedRequest:
		logger.Info("client closed request", "error", appErr.Cause)
	default:
		logger.Warn("request returned client error", "status", status, "message", appErr.Message)
	}

	JSON(ctx, w, status, ErrorEnvelope{
		StatusCode: status,
		Message:    appErr.Message,
		Success:    false,
		Errors:     []string{},
	})
}

// JSON encodes payload with the given status.
func JSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
	}
}
