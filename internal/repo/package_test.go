package repo_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrack/backend/internal/domain"
	"github.com/parceltrack/backend/internal/repo"
)

func TestPackageRepo_CreateAndGet(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	ctx := context.Background()

	created := createPackage(t, packages)

	assert.NotEqual(t, uuid.Nil, created.ID)
	assert.False(t, created.CreatedAt.IsZero())
	assert.False(t, created.UpdatedAt.IsZero())
	assert.Nil(t, created.ActiveDeliveryID)
	assert.Nil(t, created.ActiveDelivery)

	got, err := packages.GetByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Espresso machine", got.Description)
	assert.Equal(t, 9.8, got.Weight)
	assert.Equal(t, domain.Geo{Lat: 52.52, Lng: 13.405}, got.FromLocation)
	assert.Equal(t, domain.Geo{Lat: 48.8566, Lng: 2.3522}, got.ToLocation)
	assert.Nil(t, got.ActiveDelivery)
}

func TestPackageRepo_GetByID_NotFound(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)

	_, err := packages.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPackageRepo_GetByID_ResolvesActiveDelivery(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	got, err := packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveDeliveryID)
	assert.Equal(t, del.ID, *got.ActiveDeliveryID)
	require.NotNil(t, got.ActiveDelivery)
	assert.Equal(t, del.ID, got.ActiveDelivery.ID)
	assert.Equal(t, domain.StatusOpen, got.ActiveDelivery.Status)
}

func TestPackageRepo_GetByID_DanglingPointerResolvesToNoDelivery(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	// Deleting the delivery leaves the pointer in place; the join simply
	// stops matching.
	require.NoError(t, deliveries.Delete(ctx, del.ID))

	got, err := packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveDeliveryID)
	assert.Equal(t, del.ID, *got.ActiveDeliveryID)
	assert.Nil(t, got.ActiveDelivery)
}

func TestPackageRepo_List(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	ctx := context.Background()

	empty, err := packages.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	first := createPackage(t, packages)
	second := createPackage(t, packages)

	all, err := packages.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)

	ids := []uuid.UUID{all[0].ID, all[1].ID}
	assert.Contains(t, ids, first.ID)
	assert.Contains(t, ids, second.ID)
}

func TestPackageRepo_ListPaged(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		createPackage(t, packages)
	}

	limit := 2
	page := 1
	params := domain.NewPaginationParams(&page, &limit)

	docs, total, err := packages.ListPaged(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 2)

	page = 2
	params = domain.NewPaginationParams(&page, &limit)
	docs, total, err = packages.ListPaged(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 1)
}

func TestPackageRepo_Update(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	pkg.Description = "Grinder"
	pkg.Weight = 3.1
	pkg.ToName = "Barbara Liskov"
	pkg.ToLocation = domain.Geo{Lat: 40.7128, Lng: -74.006}

	updated, err := packages.Update(ctx, pkg)
	require.NoError(t, err)
	assert.Equal(t, pkg.ID, updated.ID)
	assert.Equal(t, "Grinder", updated.Description)
	assert.Equal(t, 3.1, updated.Weight)
	assert.Equal(t, "Barbara Liskov", updated.ToName)
	assert.Equal(t, domain.Geo{Lat: 40.7128, Lng: -74.006}, updated.ToLocation)
	assert.Equal(t, pkg.CreatedAt, updated.CreatedAt)
}

func TestPackageRepo_Update_NotFound(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)

	missing := domain.Package{ID: uuid.New(), Description: "ghost"}
	_, err := packages.Update(context.Background(), missing)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestPackageRepo_Delete(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	require.NoError(t, packages.Delete(ctx, pkg.ID))

	_, err := packages.GetByID(ctx, pkg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	// Idempotent: deleting again, or deleting something that never existed,
	// is not an error.
	assert.NoError(t, packages.Delete(ctx, pkg.ID))
	assert.NoError(t, packages.Delete(ctx, uuid.New()))
}
