// Package handler contains the HTTP layer: chi handlers that decode JSON,
// call a service, and encode the result.
//
// HANDLER RESPONSIBILITIES:
// A handler knows about HTTP only: URL params, cookies, status codes and
// JSON bodies. It never validates business rules and never talks to a
// repository. Three handlers split the surface by audience:
//
//	DirectoryHandler → anonymous readers (profile pages, click-through)
//	AuthHandler      → sign-up, sign-in, sign-out
//	OwnerHandler     → the signed-in owner's own profile and links
//
// ERROR MAPPING:
// Services return apperror kinds; writeError turns them into a status and a
// machine-readable code. Every API error has the same shape:
//
//	{"error": "not_found", "message": "profile not found with id alex"}
//
// plus "field" when a specific input was rejected. Untyped errors become a
// generic 500 and their cause is only logged.
//
// PUBLIC VS OWNER VIEWS:
// view.go shapes responses. The public page drops uid, provider, click
// counts and sort keys; the owner view carries everything.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/sakif/linkbio/internal/apperror"
	"github.com/sakif/linkbio/internal/logger"
)

// maxBodyBytes caps request bodies. Photos may be inline data URIs.
const maxBodyBytes = 2 << 20

// ErrorResponse is the standard error format returned by all API endpoints.
type ErrorResponse struct {
	Error   string `json:"error"`           // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"`         // Human-readable description
	Field   string `json:"field,omitempty"` // Input that was rejected, if any
}

// writeJSON sends data as JSON with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			// Headers are already sent; all we can do is log.
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// errorStatus maps an error kind to its HTTP status and machine code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	case errors.Is(err, apperror.ErrForbidden):
		return http.StatusForbidden, "forbidden"
	case errors.Is(err, apperror.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "username_taken"
	case errors.Is(err, apperror.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, apperror.ErrUnavailable):
		return http.StatusServiceUnavailable, "unavailable"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// writeError maps a domain error to its HTTP status and sends it. Raw
// messages of untyped errors are never shown to clients.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)

	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context(), slog.Default()).Error("request failed",
			slog.String("path", r.URL.Path), slog.String("error", errorDetail(err)))
	}

	var appErr *apperror.AppError
	if !errors.As(err, &appErr) {
		writeJSON(w, status, ErrorResponse{Error: code, Message: "An internal error occurred"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: code, Message: appErr.Message, Field: appErr.Field})
}

// errorDetail includes the hidden cause of an Unavailable error.
func errorDetail(err error) string {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) && appErr.Cause != nil {
		return fmt.Sprintf("%s: %v", appErr.Message, appErr.Cause)
	}
	return err.Error()
}

// decodeJSON reads one JSON object from the body into dst. Unknown fields
// and trailing data are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperror.ValidationFailed("body", "request body is too large")
		}
		return apperror.ValidationFailed("body", "request body must be a valid JSON object")
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return apperror.ValidationFailed("body", "request body must contain a single JSON object")
	}
	return nil
}
