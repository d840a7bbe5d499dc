package api

import (
	"encoding/json"
	"net/http"
	"time"
)

// Error codes surfaced in the response envelope.
const (
	CodeValidation  = "VALIDATION"
	CodeNotFound    = "NOT_FOUND"
	CodeTimeout     = "TIMEOUT"
	CodeSystemError = "SYSTEM_ERROR"
)

// Response is the uniform envelope every endpoint returns.
type Response struct {
	Success   bool      `json:"success"`
	Message   string    `json:"message,omitempty"`
	Data      any       `json:"data,omitempty"`
	ErrorCode string    `json:"errorCode,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

func respondSuccess(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, Response{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func respondMessage(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, Response{
		Success:   true,
		Message:   message,
		Data:      data,
		Timestamp: time.Now(),
	})
}

func respondError(w http.ResponseWriter, status int, message, errorCode string) {
	writeJSON(w, status, Response{
		Success:   false,
		Message:   message,
		ErrorCode: errorCode,
		Timestamp: time.Now(),
	})
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
