package httputil

import (
	"net/http"
	"time"

	"github.com/bytedance/sonic"
)

type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

type RateLimitedResponse struct {
	Code    int       `json:"code"`
	Message string    `json:"message"`
	ResetAt time.Time `json:"reset_at"`
}

func WriteErrorResponse(w http.ResponseWriter, statusCode int, message string, details error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	resp := ErrorResponse{
		Code:    statusCode,
		Message: message,
	}

	if details != nil {
		resp.Details = details.Error()
	}

	sonic.ConfigFastest.NewEncoder(w).Encode(resp)
}

func WriteJSONResponse(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if body != nil {
		sonic.ConfigDefault.NewEncoder(w).Encode(body)
	}
}

// WriteRateLimited reports an exhausted per-day quota with its reset instant.
func WriteRateLimited(w http.ResponseWriter, message string, resetAt time.Time) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	sonic.ConfigFastest.NewEncoder(w).Encode(RateLimitedResponse{
		Code:    http.StatusTooManyRequests,
		Message: message,
		ResetAt: resetAt,
	})
}
