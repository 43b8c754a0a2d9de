package repo_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parceltrack/backend/internal/domain"
	"github.com/parceltrack/backend/internal/repo"
)

func TestDeliveryRepo_CreateForPackage(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)

	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, del.ID)
	assert.Equal(t, pkg.ID, del.PackageID)
	assert.Equal(t, domain.StatusOpen, del.Status)
	assert.Nil(t, del.PickupTime)
	assert.Nil(t, del.StartTime)
	assert.Nil(t, del.EndTime)

	// The starting location is copied from the package origin.
	require.NotNil(t, del.Location)
	assert.Equal(t, pkg.FromLocation, *del.Location)

	// The same statement repoints the package at the new delivery.
	got, err := packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveDeliveryID)
	assert.Equal(t, del.ID, *got.ActiveDeliveryID)
}

func TestDeliveryRepo_CreateForPackage_UnknownPackage(t *testing.T) {
	tx := newTestTx(t)
	deliveries := repo.NewDeliveryRepo(tx)

	_, err := deliveries.CreateForPackage(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_CreateForPackage_RejectsSecondActiveDelivery(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	_, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	_, err = deliveries.CreateForPackage(ctx, pkg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_CreateForPackage_TerminalDeliveryAllowsNewOne(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	first, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)
	require.NoError(t, deliveries.SetStatus(ctx, first.ID, domain.StatusDelivered))

	second, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	got, err := packages.GetByID(ctx, pkg.ID)
	require.NoError(t, err)
	require.NotNil(t, got.ActiveDeliveryID)
	assert.Equal(t, second.ID, *got.ActiveDeliveryID, "the pointer moves to the new delivery")
}

func TestDeliveryRepo_GetByID(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	got, err := deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	assert.Equal(t, del.ID, got.ID)
	require.NotNil(t, got.Package, "the package reference is resolved")
	assert.Equal(t, pkg.ID, got.Package.ID)
	assert.Equal(t, pkg.Description, got.Package.Description)
}

func TestDeliveryRepo_GetByID_NotFound(t *testing.T) {
	tx := newTestTx(t)
	deliveries := repo.NewDeliveryRepo(tx)

	_, err := deliveries.GetByID(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_List(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	empty, err := deliveries.List(ctx)
	require.NoError(t, err)
	assert.NotNil(t, empty)
	assert.Empty(t, empty)

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	all, err := deliveries.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, del.ID, all[0].ID)
	require.NotNil(t, all[0].Package)
	assert.Equal(t, pkg.ID, all[0].Package.ID)
}

func TestDeliveryRepo_ListPaged(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	// One delivery per package: the eligibility guard blocks a second open
	// delivery on the same package.
	for i := 0; i < 3; i++ {
		pkg := createPackage(t, packages)
		_, err := deliveries.CreateForPackage(ctx, pkg.ID)
		require.NoError(t, err)
	}

	limit := 2
	page := 2
	params := domain.NewPaginationParams(&page, &limit)

	docs, total, err := deliveries.ListPaged(ctx, params)
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.Len(t, docs, 1)
}

func TestDeliveryRepo_SetStatus(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	require.NoError(t, deliveries.SetStatus(ctx, del.ID, domain.StatusPickedUp))
	got, err := deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusPickedUp, got.Status)
	assert.NotNil(t, got.PickupTime)
	assert.Nil(t, got.StartTime)
	assert.Nil(t, got.EndTime)

	require.NoError(t, deliveries.SetStatus(ctx, del.ID, domain.StatusInTransit))
	got, err = deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInTransit, got.Status)
	assert.NotNil(t, got.PickupTime)
	assert.NotNil(t, got.StartTime)
	assert.Nil(t, got.EndTime)

	require.NoError(t, deliveries.SetStatus(ctx, del.ID, domain.StatusFailed))
	got, err = deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFailed, got.Status)
	assert.NotNil(t, got.EndTime)
}

func TestDeliveryRepo_SetStatus_ResendOverwritesTimestamp(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	require.NoError(t, deliveries.SetStatus(ctx, del.ID, domain.StatusPickedUp))
	first, err := deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	require.NotNil(t, first.PickupTime)

	time.Sleep(time.Millisecond)

	require.NoError(t, deliveries.SetStatus(ctx, del.ID, domain.StatusPickedUp))
	second, err := deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	require.NotNil(t, second.PickupTime)
	assert.True(t, second.PickupTime.After(*first.PickupTime),
		"a re-sent transition overwrites its timestamp")
}

func TestDeliveryRepo_SetStatus_OpenHasNoTransition(t *testing.T) {
	tx := newTestTx(t)
	deliveries := repo.NewDeliveryRepo(tx)

	err := deliveries.SetStatus(context.Background(), uuid.New(), domain.StatusOpen)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_SetStatus_NotFound(t *testing.T) {
	tx := newTestTx(t)
	deliveries := repo.NewDeliveryRepo(tx)

	err := deliveries.SetStatus(context.Background(), uuid.New(), domain.StatusDelivered)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_SetLocation(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	loc := domain.Geo{Lat: 51.5074, Lng: -0.1278}
	require.NoError(t, deliveries.SetLocation(ctx, del.ID, loc))

	got, err := deliveries.GetByID(ctx, del.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Location)
	assert.Equal(t, loc, *got.Location)
	assert.Equal(t, domain.StatusOpen, got.Status, "location writes do not touch the status")
}

func TestDeliveryRepo_SetLocation_NotFound(t *testing.T) {
	tx := newTestTx(t)
	deliveries := repo.NewDeliveryRepo(tx)

	err := deliveries.SetLocation(context.Background(), uuid.New(), domain.Geo{Lat: 1, Lng: 2})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_UpdatePackageRef(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	other := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	updated, err := deliveries.UpdatePackageRef(ctx, del.ID, other.ID)
	require.NoError(t, err)
	assert.Equal(t, del.ID, updated.ID)
	assert.Equal(t, other.ID, updated.PackageID)
	assert.Equal(t, del.Status, updated.Status)
}

func TestDeliveryRepo_UpdatePackageRef_UnknownPackage(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	// The foreign key rejects the write; it surfaces as a validation error,
	// not a storage fault. The failed statement aborts this transaction, so
	// no further queries run in this test.
	_, err = deliveries.UpdatePackageRef(ctx, del.ID, uuid.New())
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestDeliveryRepo_UpdatePackageRef_NotFound(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	_, err := deliveries.UpdatePackageRef(ctx, uuid.New(), pkg.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestDeliveryRepo_Delete(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	del, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	require.NoError(t, deliveries.Delete(ctx, del.ID))

	_, err = deliveries.GetByID(ctx, del.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.NoError(t, deliveries.Delete(ctx, del.ID))
	assert.NoError(t, deliveries.Delete(ctx, uuid.New()))
}

func TestDeliveryRepo_DeleteByPackage(t *testing.T) {
	tx := newTestTx(t)
	packages := repo.NewPackageRepo(tx)
	deliveries := repo.NewDeliveryRepo(tx)
	ctx := context.Background()

	pkg := createPackage(t, packages)
	first, err := deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)
	require.NoError(t, deliveries.SetStatus(ctx, first.ID, domain.StatusFailed))
	_, err = deliveries.CreateForPackage(ctx, pkg.ID)
	require.NoError(t, err)

	n, err := deliveries.DeleteByPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = deliveries.DeleteByPackage(ctx, pkg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}
