// Package respond writes the JSON envelope every API response uses:
//
//	{ "success": true,  "message": "...", "data": {...} }
//	{ "success": false, "message": "...", "error": {"code": "outstanding_fines"} }
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/libraryhub/internal/app/system/apperr"
	"go.uber.org/zap"
)

// Envelope is the response body.
type Envelope struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    any         `json:"data,omitempty"`
	Error   *ErrorField `json:"error,omitempty"`
}

// ErrorField carries the machine-readable error kind.
type ErrorField struct {
	Code string `json:"code"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a success envelope.
func OK(w http.ResponseWriter, status int, message string, data any) {
	JSON(w, status, Envelope{Success: true, Message: message, Data: data})
}

// Error writes the failure envelope for err. Unclassified errors are logged
// and reported as a 500 without their text.
func Error(w http.ResponseWriter, log *zap.Logger, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)
	if status >= http.StatusInternalServerError && log != nil {
		log.Error("request failed", zap.Error(err))
	}
	JSON(w, status, Envelope{
		Success: false,
		Message: apperr.Message(err),
		Error:   &ErrorField{Code: string(kind)},
	})
}

// Kind writes a failure envelope for kind with msg (default message when empty).
func Kind(w http.ResponseWriter, kind apperr.Kind, msg string) {
	Error(w, nil, apperr.New(kind, msg))
}
