package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"retailops/internal/database"
	"retailops/internal/model"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

var base = time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)

func TestRunInTx_RollsBackAndJoins(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	txm := NewTransactionManager(db)
	repo := NewAccountRequestRepository(db)

	boom := errors.New("boom")
	err := txm.RunInTx(ctx, func(txCtx context.Context) error {
		require.NoError(t, repo.Create(txCtx, &model.AccountRequest{FullName: "A", Username: "a", Email: "a@x.io", PasswordHash: "h"}))
		// nested call joins the outer transaction
		return txm.RunInTx(txCtx, func(inner context.Context) error {
			require.NoError(t, repo.Create(inner, &model.AccountRequest{FullName: "B", Username: "b", Email: "b@x.io", PasswordHash: "h"}))
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	_, total, err := repo.List(ctx, AccountRequestFilter{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func TestAccountRequestRepository_ListFilters(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewAccountRequestRepository(db)

	seed := []model.AccountRequest{
		{FullName: "Alice Tan", Username: "alice", Email: "alice@x.io", Branch: "North", Roles: "cashier", RequestStatus: model.RequestPending, CreatedAt: base},
		{FullName: "Bob Lim", Username: "bob", Email: "bob@x.io", Branch: "South", Roles: "manager", RequestStatus: model.RequestPending, CreatedAt: base.Add(time.Hour)},
		{FullName: "Cara Ong", Username: "cara", Email: "cara@x.io", Branch: "North", Roles: "cashier", RequestStatus: model.RequestApproved, CreatedAt: base.Add(2 * time.Hour)},
	}
	for i := range seed {
		seed[i].PasswordHash = "h"
		require.NoError(t, repo.Create(ctx, &seed[i]))
	}

	pending, total, err := repo.List(ctx, AccountRequestFilter{Status: "PENDING", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, pending, 2)
	assert.Equal(t, "Bob Lim", pending[0].FullName, "newest first")

	north, _, err := repo.List(ctx, AccountRequestFilter{Search: "north", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, north, 2)

	managers, _, err := repo.List(ctx, AccountRequestFilter{Search: "MANAGER", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, managers, 1)
	assert.Equal(t, "bob", managers[0].Username)

	exists, err := repo.ExistsByUsernameOrEmail(ctx, "ALICE", "nobody@x.io")
	require.NoError(t, err)
	assert.True(t, exists)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.EqualValues(t, 2, counts[model.RequestPending])
	assert.EqualValues(t, 1, counts[model.RequestApproved])
}

func TestInventoryRequestRepository_List(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewInventoryRequestRepository(db)

	reqs := []model.InventoryRequest{
		{ActionType: model.ActionTypeAdd, Payload: `{"productData":{"name":"Green Tea"}}`, Status: model.RequestPending, BranchName: "North", CreatedByName: "Dan", CreatedAt: base},
		{ActionType: model.ActionTypeUpdate, Payload: `{"productData":{"name":"Oolong"}}`, Status: model.RequestRejected, BranchName: "South", CreatedByName: "Eve", CreatedAt: base.Add(time.Hour)},
	}
	for i := range reqs {
		require.NoError(t, repo.Create(ctx, &reqs[i]))
	}

	found, total, err := repo.List(ctx, InventoryRequestFilter{Search: "green", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, reqs[0].PendingID, found[0].PendingID)

	updates, _, err := repo.List(ctx, InventoryRequestFilter{ActionType: "UPDATE", Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, updates, 1)
	assert.Equal(t, "Eve", updates[0].CreatedByName)

	locked, err := repo.FindByIDForUpdate(ctx, reqs[1].PendingID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestRejected, locked.Status)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSaleRepository_ListAndRange(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	sales := NewSaleRepository(db)
	analytics := NewAnalyticsRepository(db)

	rows := []model.Sale{
		{BranchName: "North", CashierName: "Fay", Total: decimal.RequireFromString("10.50"), Status: model.SaleCompleted, CreatedAt: base},
		{BranchName: "North", CashierName: "Gus", Total: decimal.RequireFromString("4.50"), Status: model.SaleCompleted, CreatedAt: base.Add(24 * time.Hour)},
		{BranchName: "South", CashierName: "Hal", Total: decimal.RequireFromString("20"), Status: model.SaleCompleted, CreatedAt: base.Add(48 * time.Hour)},
		{BranchName: "South", CashierName: "Ivy", Total: decimal.RequireFromString("99"), Status: model.SaleVoided, CreatedAt: base.Add(48 * time.Hour)},
	}
	for i := range rows {
		require.NoError(t, sales.Create(ctx, &rows[i]))
	}

	byID, total, err := sales.List(ctx, SaleFilter{Search: "3", Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Hal", byID[0].CashierName)

	voided, _, err := sales.List(ctx, SaleFilter{Status: model.SaleVoided, Page: 1, Limit: 10})
	require.NoError(t, err)
	require.Len(t, voided, 1)

	inRange, err := sales.InRange(ctx, base, base.Add(48*time.Hour), "")
	require.NoError(t, err)
	assert.Len(t, inRange, 2)

	totals, err := analytics.Totals(ctx, base, base.Add(72*time.Hour), "")
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(35).Equal(totals.Revenue), totals.Revenue.String())
	assert.EqualValues(t, 3, totals.Transactions)

	branches, err := analytics.ByBranch(ctx, base, base.Add(72*time.Hour))
	require.NoError(t, err)
	require.Len(t, branches, 2)
	assert.Equal(t, "South", branches[0].BranchName)
	assert.EqualValues(t, 2, branches[1].Transactions)

	empty, err := analytics.Totals(ctx, base.Add(-48*time.Hour), base.Add(-24*time.Hour), "North")
	require.NoError(t, err)
	assert.True(t, empty.Revenue.IsZero())
}

func TestProductRepository_Expiry(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	repo := NewProductRepository(db)

	soon := base.Add(5 * 24 * time.Hour)
	later := base.Add(90 * 24 * time.Hour)
	products := []model.Product{
		{SKU: "A-1", Name: "Milk", BranchName: "North", Quantity: 3, UnitPrice: decimal.NewFromInt(2), ExpiryDate: &later},
		{SKU: "A-2", Name: "Bread", BranchName: "North", Quantity: 5, UnitPrice: decimal.NewFromInt(1), ExpiryDate: &soon},
		{SKU: "A-3", Name: "Soap", BranchName: "North", Quantity: 9, UnitPrice: decimal.NewFromInt(3)},
	}
	for i := range products {
		require.NoError(t, repo.Create(ctx, &products[i]))
	}

	all, err := repo.ListWithExpiry(ctx, "North", nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "Bread", all[0].Name)

	cutoff := base.Add(30 * 24 * time.Hour)
	within, err := repo.ListWithExpiry(ctx, "", &cutoff)
	require.NoError(t, err)
	require.Len(t, within, 1)

	require.NoError(t, repo.UpdateStock(ctx, products[2].ID, 4))
	soap, err := repo.FindBySKU(ctx, "A-3")
	require.NoError(t, err)
	assert.Equal(t, 4, soap.Quantity)
}
