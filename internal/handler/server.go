// Package handler implements the HTTP handlers for the parcel tracking API.
// All handlers are methods on Server; methods are split into resource files
// (package.go, delivery.go, health.go) but share the same Server struct so
// they can access its dependencies.
package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
)

// PackageServicer defines the business operations the package handlers depend
// on. Defining the interface here (in the consumer package) follows the Go
// convention: "accept interfaces, return concrete types". It lets handler
// tests inject a mock without touching the database or service layer.
type PackageServicer interface {
	Create(ctx context.Context, pkg domain.Package) (domain.Package, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error)
	List(ctx context.Context) ([]domain.Package, error)
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Package, int, error)
	Update(ctx context.Context, pkg domain.Package) (domain.Package, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// DeliveryServicer defines the business operations the delivery handlers
// depend on.
type DeliveryServicer interface {
	Create(ctx context.Context, packageID uuid.UUID) (domain.Delivery, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.Delivery, error)
	List(ctx context.Context) ([]domain.Delivery, error)
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Delivery, int, error)
	Update(ctx context.Context, id, packageID uuid.UUID) (domain.Delivery, error)
	Delete(ctx context.Context, id uuid.UUID) error
}

// Server holds the handler dependencies for all API endpoints.
type Server struct {
	packages   PackageServicer
	deliveries DeliveryServicer
}

// NewServer constructs the Server with all its dependencies.
func NewServer(packages PackageServicer, deliveries DeliveryServicer) *Server {
	return &Server{packages: packages, deliveries: deliveries}
}

// Routes returns the API sub-router. Mount it under /api; the realtime
// channel and static files are wired separately in main.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Route("/package", func(r chi.Router) {
		r.Get("/", s.ListPackages)
		r.Post("/", s.CreatePackage)
		r.Get("/{id}", s.GetPackage)
		r.Put("/{id}", s.UpdatePackage)
		r.Delete("/{id}", s.DeletePackage)
	})

	r.Route("/delivery", func(r chi.Router) {
		r.Get("/", s.ListDeliveries)
		r.Post("/", s.CreateDelivery)
		r.Get("/{id}", s.GetDelivery)
		r.Put("/{id}", s.UpdateDelivery)
		r.Delete("/{id}", s.DeleteDelivery)
	})

	return r
}
