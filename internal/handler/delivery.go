package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
)

// deliveryPayload is the request body for POST and PUT /delivery.
// Only the package reference is writable over HTTP; status and timestamps
// move through the realtime channel.
type deliveryPayload struct {
	PackageID string `json:"package_id"`
}

// packageID validates and parses the payload's package reference.
func (p deliveryPayload) packageID() (uuid.UUID, error) {
	if p.PackageID == "" {
		return uuid.Nil, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "package_id", Message: "The package is required."},
		}}
	}
	id, err := uuid.Parse(p.PackageID)
	if err != nil {
		return uuid.Nil, &domain.ValidationError{Fields: []domain.FieldError{
			{Field: "package_id", Message: "The package id is not a valid id."},
		}}
	}
	return id, nil
}

// ListDeliveries handles GET /delivery.
// With ?paginate it returns the page envelope; without it, the bare list.
func (s *Server) ListDeliveries(w http.ResponseWriter, r *http.Request) {
	if !wantsPagination(r) {
		dels, err := s.deliveries.List(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, dels)
		return
	}

	params := paginationFromQuery(r)
	dels, total, err := s.deliveries.ListPaged(r.Context(), params)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
		Pages: params.Pages(total),
		Docs:  dels,
	})
}

// GetDelivery handles GET /delivery/{id}.
func (s *Server) GetDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	del, err := s.deliveries.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, del)
}

// CreateDelivery handles POST /delivery.
// The package must exist and must not already have a delivery in a
// non-terminal status; both rejections are 400s.
func (s *Server) CreateDelivery(w http.ResponseWriter, r *http.Request) {
	var payload deliveryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}
	packageID, err := payload.packageID()
	if err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := s.deliveries.Create(r.Context(), packageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			writeBadRequest(w, "The given package does not exist.")
		case errors.Is(err, domain.ErrActiveDelivery):
			writeActiveDeliveryError(w, "There is already an active delivery for this package.")
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdateDelivery handles PUT /delivery/{id}: rewrites the package reference
// only. It never changes the delivery's status and does not re-run the
// active-delivery eligibility check that creation enforces.
func (s *Server) UpdateDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload deliveryPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}
	packageID, err := payload.packageID()
	if err != nil {
		writeValidationError(w, err)
		return
	}

	updated, err := s.deliveries.Update(r.Context(), id, packageID)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, domain.ErrValidation):
			writeValidationError(w, err)
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeleteDelivery handles DELETE /delivery/{id}: unconditional, idempotent,
// and no active-delivery pointer cleanup on the owning package.
func (s *Server) DeleteDelivery(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.deliveries.Delete(r.Context(), id); err != nil {
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
