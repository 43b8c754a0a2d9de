// Package service contains the business logic for the parcel tracking API.
// Services validate inputs, enforce the active-delivery rules, and orchestrate
// repo calls. No SQL lives here; services depend on repo interfaces, not
// implementations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
	"github.com/parceltrack/backend/internal/repo"
)

// PackageService implements business logic for Package operations.
// It holds the delivery repo as well because deleting a package cascades to
// every delivery referencing it.
type PackageService struct {
	packages   repo.PackageRepo
	deliveries repo.DeliveryRepo
}

// NewPackageService constructs a PackageService backed by the provided repos.
func NewPackageService(packages repo.PackageRepo, deliveries repo.DeliveryRepo) *PackageService {
	return &PackageService{packages: packages, deliveries: deliveries}
}

// Create validates and persists a new package.
// Returns domain.ErrValidation (as a *domain.ValidationError) on bad input.
func (s *PackageService) Create(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	if err := validatePackage(pkg); err != nil {
		return domain.Package{}, err
	}
	result, err := s.packages.Create(ctx, pkg)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Create: %w", err)
	}
	return result, nil
}

// GetByID returns a single package with its active delivery resolved.
func (s *PackageService) GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	result, err := s.packages.GetByID(ctx, id)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.GetByID: %w", err)
	}
	return result, nil
}

// List returns all packages, newest first.
func (s *PackageService) List(ctx context.Context) ([]domain.Package, error) {
	pkgs, err := s.packages.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.PackageService.List: %w", err)
	}
	return pkgs, nil
}

// ListPaged returns one page of packages plus the total count.
func (s *PackageService) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Package, int, error) {
	pkgs, total, err := s.packages.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.PackageService.ListPaged: %w", err)
	}
	return pkgs, total, nil
}

// Update replaces the mutable fields of an existing package.
// Returns domain.ErrNotFound if the package does not exist and
// domain.ErrActiveDelivery if its active delivery is in a non-terminal status.
func (s *PackageService) Update(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	existing, err := s.packages.GetByID(ctx, pkg.ID)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Update: %w", err)
	}
	if err := validatePackage(pkg); err != nil {
		return domain.Package{}, err
	}
	if existing.HasActiveDelivery() {
		return domain.Package{}, fmt.Errorf("service.PackageService.Update: %w", domain.ErrActiveDelivery)
	}
	result, err := s.packages.Update(ctx, pkg)
	if err != nil {
		return domain.Package{}, fmt.Errorf("service.PackageService.Update: %w", err)
	}
	return result, nil
}

// Delete removes a package and every delivery referencing it.
// Deleting a package that does not exist succeeds (the HTTP delete is
// idempotent). Returns domain.ErrActiveDelivery when the package's active
// delivery is in a non-terminal status.
func (s *PackageService) Delete(ctx context.Context, id uuid.UUID) error {
	existing, err := s.packages.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("service.PackageService.Delete: %w", err)
	}
	if existing.HasActiveDelivery() {
		return fmt.Errorf("service.PackageService.Delete: %w", domain.ErrActiveDelivery)
	}

	// Deliveries first: they hold the foreign key. A failure between the two
	// deletes is not compensated; there is no transaction here.
	if _, err := s.deliveries.DeleteByPackage(ctx, id); err != nil {
		return fmt.Errorf("service.PackageService.Delete: %w", err)
	}
	if err := s.packages.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.PackageService.Delete: %w", err)
	}
	return nil
}

// validatePackage enforces the payload rules shared by Create and Update.
// Every failing field is reported, not just the first.
func validatePackage(pkg domain.Package) error {
	var fields []domain.FieldError

	if strings.TrimSpace(pkg.Description) == "" {
		fields = append(fields, domain.FieldError{Field: "description", Message: "The description is required."})
	}
	for _, dim := range []struct {
		name  string
		value float64
	}{
		{"weight", pkg.Weight},
		{"width", pkg.Width},
		{"height", pkg.Height},
		{"depth", pkg.Depth},
	} {
		if dim.value <= 0 {
			fields = append(fields, domain.FieldError{Field: dim.name, Message: "Must be a positive number."})
		}
	}
	if strings.TrimSpace(pkg.FromName) == "" {
		fields = append(fields, domain.FieldError{Field: "from_name", Message: "The from name is required."})
	}
	if strings.TrimSpace(pkg.FromAddress) == "" {
		fields = append(fields, domain.FieldError{Field: "from_address", Message: "The from address is required."})
	}
	if strings.TrimSpace(pkg.ToName) == "" {
		fields = append(fields, domain.FieldError{Field: "to_name", Message: "The recipient name is required."})
	}
	if strings.TrimSpace(pkg.ToAddress) == "" {
		fields = append(fields, domain.FieldError{Field: "to_address", Message: "The recipient address is required."})
	}

	if len(fields) > 0 {
		return &domain.ValidationError{Fields: fields}
	}
	return nil
}
