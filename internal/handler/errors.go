package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/parceltrack/backend/internal/domain"
)

// ErrorDetail is the error object nested in every error response body.
// Fields is only populated for validation failures.
type ErrorDetail struct {
	Code    string              `json:"code"`
	Message string              `json:"message"`
	Fields  []domain.FieldError `json:"fields,omitempty"`
}

// ErrorResponse is the envelope for all non-2xx JSON bodies.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// listResponse is the paginated list envelope shared by both resources.
type listResponse struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
	Docs  any `json:"docs"`
}

// writeJSON writes v with the given status. Marshal failures at this point
// can only be programming errors; they are logged, never propagated, so
// error serialization itself can never fault the response path.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encoding response failed", "error", err)
	}
}

// writeValidationError writes a 400 with field-level detail when err carries
// it, or the bare message otherwise.
func writeValidationError(w http.ResponseWriter, err error) {
	detail := ErrorDetail{Code: "validation_error", Message: err.Error()}
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		detail.Fields = ve.Fields
	}
	writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: detail})
}

// writeActiveDeliveryError writes the business-rule rejection for packages
// guarded by a non-terminal active delivery.
func writeActiveDeliveryError(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "active_delivery", Message: message},
	})
}

// writeBadRequest writes a 400 for request-shape problems rejected before the
// service layer (missing body, malformed JSON).
func writeBadRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{Code: "validation_error", Message: message},
	})
}

// writeInternalError logs the fault and writes a 500 with a flat serialized
// error body. The body is a plain code/message pair, so serializing it can
// never recurse or fail.
func writeInternalError(w http.ResponseWriter, err error) {
	slog.Error("request failed", "error", err)
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error: ErrorDetail{Code: "internal_error", Message: err.Error()},
	})
}

// paginationFromQuery reads ?page and ?limit, ignoring absent or
// non-numeric values so defaults apply.
func paginationFromQuery(r *http.Request) domain.PaginationParams {
	var page, limit *int
	if v, err := strconv.Atoi(r.URL.Query().Get("page")); err == nil {
		page = &v
	}
	if v, err := strconv.Atoi(r.URL.Query().Get("limit")); err == nil {
		limit = &v
	}
	return domain.NewPaginationParams(page, limit)
}

// wantsPagination reads the ?paginate flag; absent or non-truthy values mean
// the bare, non-paginated list.
func wantsPagination(r *http.Request) bool {
	v, err := strconv.ParseBool(r.URL.Query().Get("paginate"))
	return err == nil && v
}
