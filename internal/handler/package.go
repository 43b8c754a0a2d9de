package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
)

// packagePayload is the request body shared by POST and PUT /package.
// Coordinates are pointers so a missing lat/lng is distinguishable from 0
// and can be reported as a field error.
type packagePayload struct {
	Description  string     `json:"description"`
	Weight       float64    `json:"weight"`
	Width        float64    `json:"width"`
	Height       float64    `json:"height"`
	Depth        float64    `json:"depth"`
	FromName     string     `json:"from_name"`
	FromAddress  string     `json:"from_address"`
	FromLocation geoPayload `json:"from_location"`
	ToName       string     `json:"to_name"`
	ToAddress    string     `json:"to_address"`
	ToLocation   geoPayload `json:"to_location"`
}

type geoPayload struct {
	Lat *float64 `json:"lat"`
	Lng *float64 `json:"lng"`
}

// toDomain converts the payload, collecting field errors for the coordinate
// pairs. The remaining field rules live in the service layer.
func (p packagePayload) toDomain() (domain.Package, error) {
	var fields []domain.FieldError
	from, errs := p.FromLocation.toGeo("from_location")
	fields = append(fields, errs...)
	to, errs := p.ToLocation.toGeo("to_location")
	fields = append(fields, errs...)
	if len(fields) > 0 {
		return domain.Package{}, &domain.ValidationError{Fields: fields}
	}

	return domain.Package{
		Description:  p.Description,
		Weight:       p.Weight,
		Width:        p.Width,
		Height:       p.Height,
		Depth:        p.Depth,
		FromName:     p.FromName,
		FromAddress:  p.FromAddress,
		FromLocation: from,
		ToName:       p.ToName,
		ToAddress:    p.ToAddress,
		ToLocation:   to,
	}, nil
}

func (g geoPayload) toGeo(field string) (domain.Geo, []domain.FieldError) {
	var fields []domain.FieldError
	if g.Lat == nil {
		fields = append(fields, domain.FieldError{Field: field + ".lat", Message: "The latitude is required."})
	}
	if g.Lng == nil {
		fields = append(fields, domain.FieldError{Field: field + ".lng", Message: "The longitude is required."})
	}
	if len(fields) > 0 {
		return domain.Geo{}, fields
	}
	return domain.Geo{Lat: *g.Lat, Lng: *g.Lng}, nil
}

// ListPackages handles GET /package.
// With ?paginate it returns the page envelope; without it, the bare list.
func (s *Server) ListPackages(w http.ResponseWriter, r *http.Request) {
	if !wantsPagination(r) {
		pkgs, err := s.packages.List(r.Context())
		if err != nil {
			writeInternalError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, pkgs)
		return
	}

	params := paginationFromQuery(r)
	pkgs, total, err := s.packages.ListPaged(r.Context(), params)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{
		Page:  params.Page,
		Limit: params.Limit,
		Total: total,
		Pages: params.Pages(total),
		Docs:  pkgs,
	})
}

// GetPackage handles GET /package/{id}.
func (s *Server) GetPackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	pkg, err := s.packages.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, pkg)
}

// CreatePackage handles POST /package.
func (s *Server) CreatePackage(w http.ResponseWriter, r *http.Request) {
	var payload packagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}
	pkg, err := payload.toDomain()
	if err != nil {
		writeValidationError(w, err)
		return
	}

	created, err := s.packages.Create(r.Context(), pkg)
	if err != nil {
		if errors.Is(err, domain.ErrValidation) {
			writeValidationError(w, err)
			return
		}
		writeInternalError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

// UpdatePackage handles PUT /package/{id}: full-field replacement, rejected
// while the package has a non-terminal active delivery.
func (s *Server) UpdatePackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var payload packagePayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeBadRequest(w, "request body must be valid JSON")
		return
	}
	pkg, err := payload.toDomain()
	if err != nil {
		writeValidationError(w, err)
		return
	}
	pkg.ID = id

	updated, err := s.packages.Update(r.Context(), pkg)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrNotFound):
			w.WriteHeader(http.StatusNotFound)
		case errors.Is(err, domain.ErrValidation):
			writeValidationError(w, err)
		case errors.Is(err, domain.ErrActiveDelivery):
			writeActiveDeliveryError(w, "You cannot update a package when it has an active delivery.")
		default:
			writeInternalError(w, err)
		}
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// DeletePackage handles DELETE /package/{id}: cascades to all deliveries
// referencing the package, and succeeds whether or not the package existed.
func (s *Server) DeletePackage(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		// Nothing can exist under a malformed id; the delete is idempotent.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if err := s.packages.Delete(r.Context(), id); err != nil {
		if errors.Is(err, domain.ErrActiveDelivery) {
			writeActiveDeliveryError(w, "You cannot delete a package when it has an active delivery.")
			return
		}
		writeInternalError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
