package handlers

import (
	"encoding/json"
	"net/http"
)

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorBody struct {
	Message string         `json:"message"`
	Type    string         `json:"type"`
	Usage   *usageSnapshot `json:"usage,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type usageSnapshot struct {
	Used      int64 `json:"used"`
	Limit     int64 `json:"limit"`
	Remaining int64 `json:"remaining"`
}

// respondError writes the nested {error:{message,type}} shape, deriving
// type from status since the call site has no more specific
// classification available.
func respondError(w http.ResponseWriter, status int, message string) {
	respondErrorTyped(w, status, defaultErrorType(status), message)
}

// respondErrorTyped writes the nested error shape with an explicit type.
func respondErrorTyped(w http.ResponseWriter, status int, errType, message string) {
	respondJSON(w, status, errorResponse{Error: errorBody{Message: message, Type: errType}})
}

// respondQuotaExceeded writes a 429 quota_exceeded error carrying the
// caller's usage snapshot, per scenario S3.
func respondQuotaExceeded(w http.ResponseWriter, message string, used, limit int64) {
	remaining := limit - used
	if remaining < 0 {
		remaining = 0
	}
	respondJSON(w, http.StatusTooManyRequests, errorResponse{Error: errorBody{
		Message: message,
		Type:    "quota_exceeded",
		Usage:   &usageSnapshot{Used: used, Limit: limit, Remaining: remaining},
	}})
}

func defaultErrorType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "invalid_request"
	case http.StatusUnauthorized:
		return "auth_error"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusBadGateway:
		return "upstream_error"
	default:
		return "internal_error"
	}
}
