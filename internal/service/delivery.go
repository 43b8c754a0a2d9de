package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/parceltrack/backend/internal/domain"
	"github.com/parceltrack/backend/internal/event"
	"github.com/parceltrack/backend/internal/repo"
)

// DeliveryService implements business logic for Delivery operations and the
// realtime event reducer. It holds the package repo as well because creating
// a delivery starts from its package.
type DeliveryService struct {
	deliveries repo.DeliveryRepo
	packages   repo.PackageRepo
}

// NewDeliveryService constructs a DeliveryService backed by the provided repos.
func NewDeliveryService(deliveries repo.DeliveryRepo, packages repo.PackageRepo) *DeliveryService {
	return &DeliveryService{deliveries: deliveries, packages: packages}
}

// Create opens a new delivery for the given package and assigns it as the
// package's active delivery. The delivery starts in status open with its
// location copied from the package origin.
// Returns domain.ErrNotFound when the package does not exist and
// domain.ErrActiveDelivery when the package already has a delivery in a
// non-terminal status.
func (s *DeliveryService) Create(ctx context.Context, packageID uuid.UUID) (domain.Delivery, error) {
	pkg, err := s.packages.GetByID(ctx, packageID)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("service.DeliveryService.Create: %w", err)
	}
	if pkg.HasActiveDelivery() {
		return domain.Delivery{}, fmt.Errorf("service.DeliveryService.Create: %w", domain.ErrActiveDelivery)
	}

	created, err := s.deliveries.CreateForPackage(ctx, packageID)
	if err != nil {
		// The conditional insert found no eligible package: either a
		// concurrent create won the race, or the package vanished. Both
		// reject the same way the guard above would have.
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Delivery{}, fmt.Errorf("service.DeliveryService.Create: %w", domain.ErrActiveDelivery)
		}
		return domain.Delivery{}, fmt.Errorf("service.DeliveryService.Create: %w", err)
	}
	return created, nil
}

// GetByID returns a single delivery with its package resolved.
func (s *DeliveryService) GetByID(ctx context.Context, id uuid.UUID) (domain.Delivery, error) {
	result, err := s.deliveries.GetByID(ctx, id)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("service.DeliveryService.GetByID: %w", err)
	}
	return result, nil
}

// List returns all deliveries, newest first.
func (s *DeliveryService) List(ctx context.Context) ([]domain.Delivery, error) {
	dels, err := s.deliveries.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.DeliveryService.List: %w", err)
	}
	return dels, nil
}

// ListPaged returns one page of deliveries plus the total count.
func (s *DeliveryService) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Delivery, int, error) {
	dels, total, err := s.deliveries.ListPaged(ctx, p)
	if err != nil {
		return nil, 0, fmt.Errorf("service.DeliveryService.ListPaged: %w", err)
	}
	return dels, total, nil
}

// Update rewrites the delivery's package reference. Status and timestamps are
// never touched here; transitions arrive over the realtime channel only.
// The active-delivery eligibility check is deliberately not re-run.
func (s *DeliveryService) Update(ctx context.Context, id, packageID uuid.UUID) (domain.Delivery, error) {
	result, err := s.deliveries.UpdatePackageRef(ctx, id, packageID)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("service.DeliveryService.Update: %w", err)
	}
	return result, nil
}

// Delete removes a delivery. The owning package's active_delivery pointer is
// left untouched, so it may dangle afterwards. Deleting a delivery that does
// not exist succeeds.
func (s *DeliveryService) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.deliveries.Delete(ctx, id); err != nil {
		return fmt.Errorf("service.DeliveryService.Delete: %w", err)
	}
	return nil
}

// Apply is the delivery event reducer. It maps one inbound realtime event to
// a storage mutation and returns the post-mutation delivery, re-fetched with
// its package populated so broadcasts carry the state just written.
//
// The boolean reports whether a mutation happened. No-ops (a status_changed
// carrying "open", an unknown delivery id, or an unrecognized event shape)
// return (zero, false, nil) and must not be broadcast. Storage faults are
// returned for the caller to log; they never panic.
func (s *DeliveryService) Apply(ctx context.Context, ev event.Inbound) (domain.Delivery, bool, error) {
	var deliveryID uuid.UUID

	switch ev := ev.(type) {
	case event.StatusChanged:
		// "open" is the creation default; a status change to open is a
		// deliberate no-op.
		if ev.Status == domain.StatusOpen {
			return domain.Delivery{}, false, nil
		}
		if err := s.deliveries.SetStatus(ctx, ev.DeliveryID, ev.Status); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Delivery{}, false, nil
			}
			return domain.Delivery{}, false, fmt.Errorf("service.DeliveryService.Apply: %w", err)
		}
		deliveryID = ev.DeliveryID

	case event.LocationChanged:
		if err := s.deliveries.SetLocation(ctx, ev.DeliveryID, ev.Location); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return domain.Delivery{}, false, nil
			}
			return domain.Delivery{}, false, fmt.Errorf("service.DeliveryService.Apply: %w", err)
		}
		deliveryID = ev.DeliveryID

	default:
		return domain.Delivery{}, false, nil
	}

	updated, err := s.deliveries.GetByID(ctx, deliveryID)
	if err != nil {
		// Deleted between the write and the re-fetch: nothing to broadcast.
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Delivery{}, false, nil
		}
		return domain.Delivery{}, false, fmt.Errorf("service.DeliveryService.Apply: %w", err)
	}
	return updated, true, nil
}
