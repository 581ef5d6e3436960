package httputil

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/wkalt/lakelet/util/log"
)

/*
httputil contains helpers for writing JSON-formatted HTTP error responses.
Errors are logged with the request context, so any tags attached by middleware
(such as the request ID) are included.

If the formatted error wraps an error implementing the DetailedError interface,
the detail is included in the response body under a separate key.
*/

////////////////////////////////////////////////////////////////////////////////

// DetailedError is an error carrying additional user-facing detail.
type DetailedError interface {
	error
	Detail() string
}

// ErrorResponse is the body of an error response.
type ErrorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func respond(ctx context.Context, w http.ResponseWriter, status int, format string, args ...any) {
	err := fmt.Errorf(format, args...)
	response := ErrorResponse{Error: err.Error()}
	var detailed DetailedError
	if errors.As(err, &detailed) {
		response.Detail = detailed.Detail()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Errorw(ctx, "failed to encode error response", "error", err)
	}
}

// BadRequest writes a 400 response with the formatted error.
func BadRequest(ctx context.Context, w http.ResponseWriter, format string, args ...any) {
	log.Infof(ctx, "bad request: "+format, args...)
	respond(ctx, w, http.StatusBadRequest, format, args...)
}

// NotFound writes a 404 response with the formatted error.
func NotFound(ctx context.Context, w http.ResponseWriter, format string, args ...any) {
	log.Infof(ctx, "not found: "+format, args...)
	respond(ctx, w, http.StatusNotFound, format, args...)
}

// Conflict writes a 409 response with the formatted error.
func Conflict(ctx context.Context, w http.ResponseWriter, format string, args ...any) {
	log.Infof(ctx, "conflict: "+format, args...)
	respond(ctx, w, http.StatusConflict, format, args...)
}

// InternalServerError writes a 500 response with the formatted error.
func InternalServerError(ctx context.Context, w http.ResponseWriter, format string, args ...any) {
	log.Errorf(ctx, "internal server error: "+format, args...)
	respond(ctx, w, http.StatusInternalServerError, format, args...)
}
