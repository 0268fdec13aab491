package api

import (
	"encoding/json"
	"net/http"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

func encode(w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(body)
}

func encodeError(w http.ResponseWriter, code int, msg string) {
	encode(w, code, ErrorResponse{Error: msg})
}

// NotFoundHandler replies 404 with a JSON error.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		encodeError(w, http.StatusNotFound, "not found")
	})
}

// MethodNotAllowedHandler replies 405 with a JSON error.
func MethodNotAllowedHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		encodeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
}
