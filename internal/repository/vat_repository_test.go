package repository

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"vat-service/internal/models"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func setupTestRepo(t *testing.T) *VATRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	require.NoError(t, db.AutoMigrate(
		&models.VATRate{},
		&models.ExpenseCategory{},
		&models.BusinessUsageOption{},
		&models.Expense{},
		&models.Invoice{},
	))

	return NewVATRepository(db, nil)
}

func seedRate(t *testing.T, repo *VATRepository, rate models.VATRate) models.VATRate {
	t.Helper()
	require.NoError(t, repo.CreateRate(context.Background(), &rate))
	return rate
}

func TestListRatesActiveOnly(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	past := time.Now().AddDate(-1, 0, 0)
	lastYear := time.Now().AddDate(0, 0, -30)

	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Standard", RatePercentage: dec("23"),
		IsActive: true, EffectiveFrom: past,
	})
	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Retired", RatePercentage: dec("21"),
		IsActive: false, EffectiveFrom: past,
	})
	// Window already closed
	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Temporary", RatePercentage: dec("9"),
		IsActive: true, EffectiveFrom: past, EffectiveUntil: &lastYear,
	})
	// Window starts in the future
	future := time.Now().AddDate(0, 6, 0)
	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Upcoming", RatePercentage: dec("24"),
		IsActive: true, EffectiveFrom: future,
	})
	seedRate(t, repo, models.VATRate{
		Country: "Germany", RateName: "Standard", RatePercentage: dec("19"),
		IsActive: true, EffectiveFrom: past,
	})

	active, err := repo.ListRates(ctx, "Ireland", true)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, "Standard", active[0].RateName)

	all, err := repo.ListRates(ctx, "Ireland", false)
	require.NoError(t, err)
	assert.Len(t, all, 4)
}

func TestListRatesOrdering(t *testing.T) {
	repo := setupTestRepo(t)
	past := time.Now().AddDate(-1, 0, 0)

	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Zero", RatePercentage: dec("0"),
		IsActive: true, EffectiveFrom: past,
	})
	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Standard", RatePercentage: dec("23"),
		IsActive: true, EffectiveFrom: past,
	})
	seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Reduced", RatePercentage: dec("13.5"),
		IsActive: true, EffectiveFrom: past,
	})

	rates, err := repo.ListRates(context.Background(), "Ireland", true)
	require.NoError(t, err)
	require.Len(t, rates, 3)
	assert.Equal(t, "Standard", rates[0].RateName)
	assert.Equal(t, "Reduced", rates[1].RateName)
	assert.Equal(t, "Zero", rates[2].RateName)
}

func TestGetActiveRatePercentage(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	past := time.Now().AddDate(-1, 0, 0)

	active := seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Standard", RatePercentage: dec("23"),
		IsActive: true, EffectiveFrom: past,
	})
	inactive := seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Retired", RatePercentage: dec("21"),
		IsActive: false, EffectiveFrom: past,
	})

	got, err := repo.GetActiveRatePercentage(ctx, active.ID)
	require.NoError(t, err)
	assert.True(t, got.Equal(dec("23")))

	_, err = repo.GetActiveRatePercentage(ctx, inactive.ID)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)

	_, err = repo.GetActiveRatePercentage(ctx, 9999)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestDeleteRateIsSoft(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	past := time.Now().AddDate(-1, 0, 0)

	rate := seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Standard", RatePercentage: dec("23"),
		IsActive: true, EffectiveFrom: past,
	})

	require.NoError(t, repo.DeleteRate(ctx, rate.ID))

	// Still present, just inactive
	got, err := repo.GetRate(ctx, rate.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	active, err := repo.ListRates(ctx, "Ireland", true)
	require.NoError(t, err)
	assert.Empty(t, active)
}

func TestDeleteRateNotFound(t *testing.T) {
	repo := setupTestRepo(t)
	err := repo.DeleteRate(context.Background(), 42)
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestExpensesRoundTrip(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()
	past := time.Now().AddDate(-1, 0, 0)

	rate := seedRate(t, repo, models.VATRate{
		Country: "Ireland", RateName: "Standard", RatePercentage: dec("23"),
		IsActive: true, EffectiveFrom: past,
	})

	expense := models.Expense{
		ID:                      uuid.New(),
		CompanyID:               "acme",
		ExpenseDate:             time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
		Description:             "Laptop",
		NetAmount:               dec("1000"),
		VATRateID:               &rate.ID,
		VATAmount:               dec("230"),
		GrossAmount:             dec("1230"),
		BusinessUsagePercentage: dec("100"),
		DeductibleAmount:        dec("230"),
		ExpenseType:             models.ExpenseTypeGeneral,
	}
	require.NoError(t, repo.CreateExpense(ctx, &expense))

	expenses, err := repo.ListExpenses(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, expenses, 1)
	assert.Equal(t, "Laptop", expenses[0].Description)
	require.NotNil(t, expenses[0].VATRate)
	assert.Equal(t, "Standard", expenses[0].VATRate.RateName)

	other, err := repo.ListExpenses(ctx, "someone-else")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestPeriodTotals(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	march := time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC)
	june := time.Date(2026, 6, 15, 0, 0, 0, 0, time.UTC)

	require.NoError(t, repo.CreateInvoice(ctx, &models.Invoice{
		ID: uuid.New(), CompanyID: "acme", InvoiceNumber: "INV-1",
		IssueDate: march, CustomerName: "Customer A",
		NetAmount: dec("1000"), VATAmount: dec("230"), GrossAmount: dec("1230"),
	}))
	require.NoError(t, repo.CreateInvoice(ctx, &models.Invoice{
		ID: uuid.New(), CompanyID: "acme", InvoiceNumber: "INV-2",
		IssueDate: june, CustomerName: "Customer B",
		NetAmount: dec("500"), VATAmount: dec("115"), GrossAmount: dec("615"),
	}))

	require.NoError(t, repo.CreateExpense(ctx, &models.Expense{
		ID: uuid.New(), CompanyID: "acme", ExpenseDate: march,
		Description: "Broadband", NetAmount: dec("100"),
		VATAmount: dec("23"), GrossAmount: dec("123"),
		BusinessUsagePercentage: dec("50"), DeductibleAmount: dec("11.50"),
	}))

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	sales, outputVAT, err := repo.SalesTotals(ctx, "acme", start, end)
	require.NoError(t, err)
	assert.True(t, sales.Equal(dec("1000")), "sales: got %s", sales)
	assert.True(t, outputVAT.Equal(dec("230")), "output vat: got %s", outputVAT)

	purchases, inputVAT, err := repo.PurchaseTotals(ctx, "acme", start, end)
	require.NoError(t, err)
	assert.True(t, purchases.Equal(dec("100")), "purchases: got %s", purchases)
	assert.True(t, inputVAT.Equal(dec("11.5")), "input vat: got %s", inputVAT)
}

func TestPeriodTotalsEmpty(t *testing.T) {
	repo := setupTestRepo(t)
	ctx := context.Background()

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC)

	sales, outputVAT, err := repo.SalesTotals(ctx, "nobody", start, end)
	require.NoError(t, err)
	assert.True(t, sales.IsZero())
	assert.True(t, outputVAT.IsZero())

	purchases, inputVAT, err := repo.PurchaseTotals(ctx, "nobody", start, end)
	require.NoError(t, err)
	assert.True(t, purchases.IsZero())
	assert.True(t, inputVAT.IsZero())
}
