// Package repo contains all database access logic for the parcel tracking API.
// Each resource has its own file with an interface and a Postgres implementation.
// No business logic lives here, only SQL and type mapping.
package repo

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/parceltrack/backend/internal/domain"
)

// db is the minimal interface satisfied by *pgxpool.Pool, pgx.Conn, and pgx.Tx.
// Accepting this interface instead of *pgxpool.Pool directly allows integration
// tests to pass a transaction that is rolled back after each test, giving free
// per-test isolation without any manual cleanup.
type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// scanner is satisfied by both pgx.Row and pgx.Rows, allowing the scan
// helpers to be reused for both QueryRow and Query calls.
type scanner interface {
	Scan(dest ...any) error
}

// PackageRepo defines the persistence operations for Packages.
// The service layer depends on this interface, not the concrete Postgres
// implementation, which allows the service to be unit-tested with a mock.
type PackageRepo interface {
	// Create inserts a new package and returns the persisted record (with
	// DB-generated id, created_at, and updated_at populated).
	Create(ctx context.Context, pkg domain.Package) (domain.Package, error)

	// GetByID retrieves a single package with its active delivery resolved.
	// A dangling active_delivery_id resolves to no active delivery.
	// Returns domain.ErrNotFound if no package with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error)

	// List returns all packages ordered by creation time descending, each
	// with its active delivery resolved.
	List(ctx context.Context) ([]domain.Package, error)

	// ListPaged returns one page of packages plus the total row count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Package, int, error)

	// Update overwrites the mutable fields of an existing package and returns
	// the updated record. The active_delivery_id pointer is left untouched.
	// Returns domain.ErrNotFound if no package with that ID exists.
	Update(ctx context.Context, pkg domain.Package) (domain.Package, error)

	// Delete removes a package by ID. Deleting a package that does not exist
	// is not an error (the HTTP delete is idempotent).
	Delete(ctx context.Context, id uuid.UUID) error
}

// packageCols is the select list shared by every package query, with the
// owning row aliased as p.
const packageCols = `
	p.id, p.description, p.weight, p.width, p.height, p.depth,
	p.from_name, p.from_address, p.from_lat, p.from_lng,
	p.to_name, p.to_address, p.to_lat, p.to_lng,
	p.active_delivery_id, p.created_at, p.updated_at`

// deliveryJoinCols are the active-delivery columns selected alongside a
// package row; all nullable because the LEFT JOIN may not match.
const deliveryJoinCols = `
	d.id, d.package_id, d.status,
	d.pickup_time, d.start_time, d.end_time,
	d.lat, d.lng, d.created_at, d.updated_at`

// pgPackageRepo is the Postgres implementation of PackageRepo.
type pgPackageRepo struct {
	db db
}

// NewPackageRepo constructs a PackageRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewPackageRepo(db db) PackageRepo {
	return &pgPackageRepo{db: db}
}

func (r *pgPackageRepo) Create(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	const q = `
		INSERT INTO packages (
			description, weight, width, height, depth,
			from_name, from_address, from_lat, from_lng,
			to_name, to_address, to_lat, to_lng
		)
		VALUES (
			@description, @weight, @width, @height, @depth,
			@from_name, @from_address, @from_lat, @from_lng,
			@to_name, @to_address, @to_lat, @to_lng
		)
		RETURNING
			id, description, weight, width, height, depth,
			from_name, from_address, from_lat, from_lng,
			to_name, to_address, to_lat, to_lng,
			active_delivery_id, created_at, updated_at`

	row := r.db.QueryRow(ctx, q, packageArgs(pkg))
	result, err := scanPackage(row)
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.Create: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Package, error) {
	q := packageSelect + ` WHERE p.id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanPackageJoined(row)
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) List(ctx context.Context) ([]domain.Package, error) {
	q := packageSelect + ` ORDER BY p.created_at DESC, p.id`

	pkgs, err := r.queryPackages(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("repo.PackageRepo.List: %w", err)
	}
	return pkgs, nil
}

func (r *pgPackageRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Package, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM packages`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.PackageRepo.ListPaged: count: %w", err)
	}

	q := packageSelect + `
		ORDER BY p.created_at DESC, p.id
		LIMIT @limit OFFSET @offset`

	pkgs, err := r.queryPackages(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.PackageRepo.ListPaged: %w", err)
	}
	return pkgs, total, nil
}

func (r *pgPackageRepo) Update(ctx context.Context, pkg domain.Package) (domain.Package, error) {
	const q = `
		UPDATE packages
		SET description  = @description,
		    weight       = @weight,
		    width        = @width,
		    height       = @height,
		    depth        = @depth,
		    from_name    = @from_name,
		    from_address = @from_address,
		    from_lat     = @from_lat,
		    from_lng     = @from_lng,
		    to_name      = @to_name,
		    to_address   = @to_address,
		    to_lat       = @to_lat,
		    to_lng       = @to_lng,
		    updated_at   = now()
		WHERE id = @id
		RETURNING
			id, description, weight, width, height, depth,
			from_name, from_address, from_lat, from_lng,
			to_name, to_address, to_lat, to_lng,
			active_delivery_id, created_at, updated_at`

	args := packageArgs(pkg)
	args["id"] = pkg.ID

	row := r.db.QueryRow(ctx, q, args)
	result, err := scanPackage(row)
	if err != nil {
		return domain.Package{}, fmt.Errorf("repo.PackageRepo.Update: %w", err)
	}
	return result, nil
}

func (r *pgPackageRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM packages WHERE id = @id`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id}); err != nil {
		return fmt.Errorf("repo.PackageRepo.Delete: %w", err)
	}
	return nil
}

// packageSelect joins each package with its active delivery, if any.
const packageSelect = `
	SELECT ` + packageCols + `, ` + deliveryJoinCols + `
	FROM packages p
	LEFT JOIN deliveries d ON d.id = p.active_delivery_id`

// queryPackages runs a joined package query and scans all rows.
// Always returns a non-nil slice on success.
func (r *pgPackageRepo) queryPackages(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Package, error) {
	var rows pgx.Rows
	var err error
	if args == nil {
		rows, err = r.db.Query(ctx, q)
	} else {
		rows, err = r.db.Query(ctx, q, args)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	pkgs := []domain.Package{}
	for rows.Next() {
		p, err := scanPackageJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		pkgs = append(pkgs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return pkgs, nil
}

// packageArgs maps the mutable package fields to named SQL arguments.
func packageArgs(pkg domain.Package) pgx.NamedArgs {
	return pgx.NamedArgs{
		"description":  pkg.Description,
		"weight":       pkg.Weight,
		"width":        pkg.Width,
		"height":       pkg.Height,
		"depth":        pkg.Depth,
		"from_name":    pkg.FromName,
		"from_address": pkg.FromAddress,
		"from_lat":     pkg.FromLocation.Lat,
		"from_lng":     pkg.FromLocation.Lng,
		"to_name":      pkg.ToName,
		"to_address":   pkg.ToAddress,
		"to_lat":       pkg.ToLocation.Lat,
		"to_lng":       pkg.ToLocation.Lng,
	}
}

// scanPackage maps a bare package row (no join) into a domain.Package.
func scanPackage(s scanner) (domain.Package, error) {
	var (
		p        domain.Package
		id       pgtype.UUID
		activeID pgtype.UUID
	)

	err := s.Scan(
		&id, &p.Description, &p.Weight, &p.Width, &p.Height, &p.Depth,
		&p.FromName, &p.FromAddress, &p.FromLocation.Lat, &p.FromLocation.Lng,
		&p.ToName, &p.ToAddress, &p.ToLocation.Lat, &p.ToLocation.Lng,
		&activeID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Package{}, domain.ErrNotFound
		}
		return domain.Package{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	if activeID.Valid {
		aid := uuid.UUID(activeID.Bytes)
		p.ActiveDeliveryID = &aid
	}

	return p, nil
}

// scanPackageJoined maps a package row LEFT JOINed with its active delivery.
// Delivery columns are all nullable; a NULL delivery id means the pointer did
// not resolve (unset, or dangling after a delivery deletion).
func scanPackageJoined(s scanner) (domain.Package, error) {
	var (
		p        domain.Package
		id       pgtype.UUID
		activeID pgtype.UUID

		dID         pgtype.UUID
		dPackageID  pgtype.UUID
		dStatus     pgtype.Text
		dPickup     pgtype.Timestamptz
		dStart      pgtype.Timestamptz
		dEnd        pgtype.Timestamptz
		dLat, dLng  pgtype.Float8
		dCreated    pgtype.Timestamptz
		dUpdated    pgtype.Timestamptz
	)

	err := s.Scan(
		&id, &p.Description, &p.Weight, &p.Width, &p.Height, &p.Depth,
		&p.FromName, &p.FromAddress, &p.FromLocation.Lat, &p.FromLocation.Lng,
		&p.ToName, &p.ToAddress, &p.ToLocation.Lat, &p.ToLocation.Lng,
		&activeID, &p.CreatedAt, &p.UpdatedAt,
		&dID, &dPackageID, &dStatus,
		&dPickup, &dStart, &dEnd,
		&dLat, &dLng, &dCreated, &dUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Package{}, domain.ErrNotFound
		}
		return domain.Package{}, err
	}

	p.ID = uuid.UUID(id.Bytes)
	if activeID.Valid {
		aid := uuid.UUID(activeID.Bytes)
		p.ActiveDeliveryID = &aid
	}

	if dID.Valid {
		d := domain.Delivery{
			ID:        uuid.UUID(dID.Bytes),
			PackageID: uuid.UUID(dPackageID.Bytes),
			Status:    domain.DeliveryStatus(dStatus.String),
			CreatedAt: dCreated.Time,
			UpdatedAt: dUpdated.Time,
		}
		if dPickup.Valid {
			t := dPickup.Time
			d.PickupTime = &t
		}
		if dStart.Valid {
			t := dStart.Time
			d.StartTime = &t
		}
		if dEnd.Valid {
			t := dEnd.Time
			d.EndTime = &t
		}
		if dLat.Valid && dLng.Valid {
			d.Location = &domain.Geo{Lat: dLat.Float64, Lng: dLng.Float64}
		}
		p.ActiveDelivery = &d
	}

	return p, nil
}
