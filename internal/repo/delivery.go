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

// DeliveryRepo defines the persistence operations for Deliveries.
type DeliveryRepo interface {
	// CreateForPackage inserts a new open delivery for the given package and
	// points the package's active_delivery at it, as one atomic statement.
	// The insert is conditional: it only happens when the package exists and
	// has no delivery in a non-terminal status. When the condition fails,
	// domain.ErrNotFound is returned; the caller disambiguates "package
	// missing" from "active delivery present".
	// The new delivery's location is copied from the package origin.
	CreateForPackage(ctx context.Context, packageID uuid.UUID) (domain.Delivery, error)

	// GetByID retrieves a single delivery with its package resolved.
	// Returns domain.ErrNotFound if no delivery with that ID exists.
	GetByID(ctx context.Context, id uuid.UUID) (domain.Delivery, error)

	// List returns all deliveries ordered by creation time descending, each
	// with its package resolved.
	List(ctx context.Context) ([]domain.Delivery, error)

	// ListPaged returns one page of deliveries plus the total row count.
	ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Delivery, int, error)

	// UpdatePackageRef rewrites the delivery's package reference and returns
	// the updated record. No other field changes.
	// Returns domain.ErrNotFound if no delivery with that ID exists, and a
	// domain.ValidationError if no package with the new ID exists.
	UpdatePackageRef(ctx context.Context, id, packageID uuid.UUID) (domain.Delivery, error)

	// SetStatus writes the given status and its transition timestamp:
	// pickup_time for picked-up, start_time for in-transit, end_time for
	// delivered/failed. The timestamp is overwritten on re-send.
	// Returns domain.ErrNotFound if no delivery with that ID exists.
	SetStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus) error

	// SetLocation writes the delivery's current location; nothing else changes.
	// Returns domain.ErrNotFound if no delivery with that ID exists.
	SetLocation(ctx context.Context, id uuid.UUID, loc domain.Geo) error

	// Delete removes a delivery by ID. The owning package's active_delivery
	// pointer is deliberately left untouched. Deleting a delivery that does
	// not exist is not an error (the HTTP delete is idempotent).
	Delete(ctx context.Context, id uuid.UUID) error

	// DeleteByPackage removes every delivery referencing the given package
	// and returns the number of rows deleted.
	DeleteByPackage(ctx context.Context, packageID uuid.UUID) (int64, error)
}

// deliveryCols is the select list shared by every delivery query, with the
// owning row aliased as d.
const deliveryCols = `
	d.id, d.package_id, d.status,
	d.pickup_time, d.start_time, d.end_time,
	d.lat, d.lng, d.created_at, d.updated_at`

// deliverySelect joins each delivery with its package.
const deliverySelect = `
	SELECT ` + deliveryCols + `, ` + packageCols + `
	FROM deliveries d
	JOIN packages p ON p.id = d.package_id`

// pgDeliveryRepo is the Postgres implementation of DeliveryRepo.
type pgDeliveryRepo struct {
	db db
}

// NewDeliveryRepo constructs a DeliveryRepo backed by the provided db connection.
// In production pass *pgxpool.Pool; in tests pass a pgx.Tx for rollback isolation.
func NewDeliveryRepo(db db) DeliveryRepo {
	return &pgDeliveryRepo{db: db}
}

func (r *pgDeliveryRepo) CreateForPackage(ctx context.Context, packageID uuid.UUID) (domain.Delivery, error) {
	// The guard, the insert, and the pointer update run as one statement so
	// two concurrent creates for the same package cannot both pass the check.
	const q = `
		WITH eligible AS (
			SELECT p.id, p.from_lat, p.from_lng
			FROM packages p
			WHERE p.id = @package_id
			  AND NOT EXISTS (
				SELECT 1 FROM deliveries d
				WHERE d.package_id = p.id
				  AND d.status NOT IN ('delivered', 'failed')
			  )
		),
		ins AS (
			INSERT INTO deliveries (package_id, status, lat, lng)
			SELECT id, 'open', from_lat, from_lng FROM eligible
			RETURNING id, package_id, status,
			          pickup_time, start_time, end_time,
			          lat, lng, created_at, updated_at
		),
		ptr AS (
			UPDATE packages
			SET active_delivery_id = ins.id, updated_at = now()
			FROM ins
			WHERE packages.id = ins.package_id
		)
		SELECT id, package_id, status,
		       pickup_time, start_time, end_time,
		       lat, lng, created_at, updated_at
		FROM ins`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"package_id": packageID})
	result, err := scanDelivery(row)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("repo.DeliveryRepo.CreateForPackage: %w", err)
	}
	return result, nil
}

func (r *pgDeliveryRepo) GetByID(ctx context.Context, id uuid.UUID) (domain.Delivery, error) {
	q := deliverySelect + ` WHERE d.id = @id`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id})
	result, err := scanDeliveryJoined(row)
	if err != nil {
		return domain.Delivery{}, fmt.Errorf("repo.DeliveryRepo.GetByID: %w", err)
	}
	return result, nil
}

func (r *pgDeliveryRepo) List(ctx context.Context) ([]domain.Delivery, error) {
	q := deliverySelect + ` ORDER BY d.created_at DESC, d.id`

	dels, err := r.queryDeliveries(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("repo.DeliveryRepo.List: %w", err)
	}
	return dels, nil
}

func (r *pgDeliveryRepo) ListPaged(ctx context.Context, p domain.PaginationParams) ([]domain.Delivery, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT count(*) FROM deliveries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("repo.DeliveryRepo.ListPaged: count: %w", err)
	}

	q := deliverySelect + `
		ORDER BY d.created_at DESC, d.id
		LIMIT @limit OFFSET @offset`

	dels, err := r.queryDeliveries(ctx, q, pgx.NamedArgs{"limit": p.Limit, "offset": p.Offset()})
	if err != nil {
		return nil, 0, fmt.Errorf("repo.DeliveryRepo.ListPaged: %w", err)
	}
	return dels, total, nil
}

func (r *pgDeliveryRepo) UpdatePackageRef(ctx context.Context, id, packageID uuid.UUID) (domain.Delivery, error) {
	const q = `
		UPDATE deliveries
		SET package_id = @package_id, updated_at = now()
		WHERE id = @id
		RETURNING id, package_id, status,
		          pickup_time, start_time, end_time,
		          lat, lng, created_at, updated_at`

	row := r.db.QueryRow(ctx, q, pgx.NamedArgs{"id": id, "package_id": packageID})
	result, err := scanDelivery(row)
	if err != nil {
		// 23503 is foreign_key_violation: the new package_id references a
		// package that does not exist. That is a caller input problem, not a
		// storage fault.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return domain.Delivery{}, fmt.Errorf("repo.DeliveryRepo.UpdatePackageRef: %w",
				&domain.ValidationError{Fields: []domain.FieldError{
					{Field: "package_id", Message: "The given package does not exist."},
				}})
		}
		return domain.Delivery{}, fmt.Errorf("repo.DeliveryRepo.UpdatePackageRef: %w", err)
	}
	return result, nil
}

func (r *pgDeliveryRepo) SetStatus(ctx context.Context, id uuid.UUID, status domain.DeliveryStatus) error {
	var tsCol string
	switch status {
	case domain.StatusPickedUp:
		tsCol = "pickup_time"
	case domain.StatusInTransit:
		tsCol = "start_time"
	case domain.StatusDelivered, domain.StatusFailed:
		tsCol = "end_time"
	default:
		return fmt.Errorf("repo.DeliveryRepo.SetStatus: no transition for status %q", status)
	}

	// tsCol comes from the switch above, never from input.
	// statement_timestamp() rather than now(): a re-sent transition must
	// advance the timestamp even when both writes land in one transaction.
	q := fmt.Sprintf(`
		UPDATE deliveries
		SET status = @status, %s = statement_timestamp(), updated_at = statement_timestamp()
		WHERE id = @id`, tsCol)

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "status": string(status)})
	if err != nil {
		return fmt.Errorf("repo.DeliveryRepo.SetStatus: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.DeliveryRepo.SetStatus: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgDeliveryRepo) SetLocation(ctx context.Context, id uuid.UUID, loc domain.Geo) error {
	const q = `
		UPDATE deliveries
		SET lat = @lat, lng = @lng, updated_at = now()
		WHERE id = @id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id, "lat": loc.Lat, "lng": loc.Lng})
	if err != nil {
		return fmt.Errorf("repo.DeliveryRepo.SetLocation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("repo.DeliveryRepo.SetLocation: %w", domain.ErrNotFound)
	}
	return nil
}

func (r *pgDeliveryRepo) Delete(ctx context.Context, id uuid.UUID) error {
	const q = `DELETE FROM deliveries WHERE id = @id`

	if _, err := r.db.Exec(ctx, q, pgx.NamedArgs{"id": id}); err != nil {
		return fmt.Errorf("repo.DeliveryRepo.Delete: %w", err)
	}
	return nil
}

func (r *pgDeliveryRepo) DeleteByPackage(ctx context.Context, packageID uuid.UUID) (int64, error) {
	const q = `DELETE FROM deliveries WHERE package_id = @package_id`

	tag, err := r.db.Exec(ctx, q, pgx.NamedArgs{"package_id": packageID})
	if err != nil {
		return 0, fmt.Errorf("repo.DeliveryRepo.DeleteByPackage: %w", err)
	}
	return tag.RowsAffected(), nil
}

// queryDeliveries runs a joined delivery query and scans all rows.
// Always returns a non-nil slice on success.
func (r *pgDeliveryRepo) queryDeliveries(ctx context.Context, q string, args pgx.NamedArgs) ([]domain.Delivery, error) {
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

	dels := []domain.Delivery{}
	for rows.Next() {
		d, err := scanDeliveryJoined(rows)
		if err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		dels = append(dels, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	return dels, nil
}

// scanDelivery maps a bare delivery row (no join) into a domain.Delivery.
func scanDelivery(s scanner) (domain.Delivery, error) {
	var (
		d          domain.Delivery
		id         pgtype.UUID
		packageID  pgtype.UUID
		pickup     pgtype.Timestamptz
		start      pgtype.Timestamptz
		end        pgtype.Timestamptz
		lat, lng   pgtype.Float8
	)

	err := s.Scan(
		&id, &packageID, &d.Status,
		&pickup, &start, &end,
		&lat, &lng, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Delivery{}, domain.ErrNotFound
		}
		return domain.Delivery{}, err
	}

	d.ID = uuid.UUID(id.Bytes)
	d.PackageID = uuid.UUID(packageID.Bytes)
	if pickup.Valid {
		t := pickup.Time
		d.PickupTime = &t
	}
	if start.Valid {
		t := start.Time
		d.StartTime = &t
	}
	if end.Valid {
		t := end.Time
		d.EndTime = &t
	}
	if lat.Valid && lng.Valid {
		d.Location = &domain.Geo{Lat: lat.Float64, Lng: lng.Float64}
	}

	return d, nil
}

// scanDeliveryJoined maps a delivery row JOINed with its package.
func scanDeliveryJoined(s scanner) (domain.Delivery, error) {
	var (
		d          domain.Delivery
		id         pgtype.UUID
		packageID  pgtype.UUID
		pickup     pgtype.Timestamptz
		start      pgtype.Timestamptz
		end        pgtype.Timestamptz
		lat, lng   pgtype.Float8

		p        domain.Package
		pID      pgtype.UUID
		activeID pgtype.UUID
	)

	err := s.Scan(
		&id, &packageID, &d.Status,
		&pickup, &start, &end,
		&lat, &lng, &d.CreatedAt, &d.UpdatedAt,
		&pID, &p.Description, &p.Weight, &p.Width, &p.Height, &p.Depth,
		&p.FromName, &p.FromAddress, &p.FromLocation.Lat, &p.FromLocation.Lng,
		&p.ToName, &p.ToAddress, &p.ToLocation.Lat, &p.ToLocation.Lng,
		&activeID, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Delivery{}, domain.ErrNotFound
		}
		return domain.Delivery{}, err
	}

	d.ID = uuid.UUID(id.Bytes)
	d.PackageID = uuid.UUID(packageID.Bytes)
	if pickup.Valid {
		t := pickup.Time
		d.PickupTime = &t
	}
	if start.Valid {
		t := start.Time
		d.StartTime = &t
	}
	if end.Valid {
		t := end.Time
		d.EndTime = &t
	}
	if lat.Valid && lng.Valid {
		d.Location = &domain.Geo{Lat: lat.Float64, Lng: lng.Float64}
	}

	p.ID = uuid.UUID(pID.Bytes)
	if activeID.Valid {
		aid := uuid.UUID(activeID.Bytes)
		p.ActiveDeliveryID = &aid
	}
	d.Package = &p

	return d, nil
}
