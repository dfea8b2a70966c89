package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"vat-service/internal/models"
	"gorm.io/gorm"
)

// Cache TTL constants for VAT reference data
const (
	RateCacheTTL            = 15 * time.Minute // Rates change rarely
	ExpenseCategoryCacheTTL = 30 * time.Minute // Categories change rarely
)

const cacheKeyPrefix = "vat:"

// VATRepository handles VAT data operations
type VATRepository struct {
	db    *gorm.DB
	redis *redis.Client
}

// NewVATRepository creates a new VAT repository. The redis client may be nil,
// in which case all reads go straight to the database.
func NewVATRepository(db *gorm.DB, redisClient *redis.Client) *VATRepository {
	return &VATRepository{
		db:    db,
		redis: redisClient,
	}
}

func rateListCacheKey(country string, activeOnly bool) string {
	return fmt.Sprintf("rates:%s:%t", country, activeOnly)
}

func rateCacheKey(rateID int) string {
	return fmt.Sprintf("rate:%d", rateID)
}

// invalidateRateCache invalidates rate caches after a write
func (r *VATRepository) invalidateRateCache(ctx context.Context, rateID int, country string) {
	if r.redis == nil {
		return
	}
	r.redis.Del(ctx,
		cacheKeyPrefix+rateCacheKey(rateID),
		cacheKeyPrefix+rateListCacheKey(country, true),
		cacheKeyPrefix+rateListCacheKey(country, false),
	)
}

// ListRates lists the VAT rates for a country. When activeOnly is set, only
// rates flagged active whose effective window includes now are returned.
func (r *VATRepository) ListRates(ctx context.Context, country string, activeOnly bool) ([]models.VATRate, error) {
	cacheKey := cacheKeyPrefix + rateListCacheKey(country, activeOnly)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var rates []models.VATRate
			if err := json.Unmarshal([]byte(val), &rates); err == nil {
				return rates, nil
			}
		}
	}

	var rates []models.VATRate
	query := r.db.WithContext(ctx).Where("country = ?", country)
	if activeOnly {
		now := time.Now()
		query = query.
			Where("is_active = ?", true).
			Where("effective_from <= ?", now).
			Where("effective_until IS NULL OR effective_until >= ?", now)
	}
	if err := query.Order("rate_percentage DESC").Find(&rates).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(rates); err == nil {
			r.redis.Set(ctx, cacheKey, data, RateCacheTTL)
		}
	}

	return rates, nil
}

// GetRate gets a VAT rate by ID
func (r *VATRepository) GetRate(ctx context.Context, rateID int) (*models.VATRate, error) {
	cacheKey := cacheKeyPrefix + rateCacheKey(rateID)

	if r.redis != nil {
		val, err := r.redis.Get(ctx, cacheKey).Result()
		if err == nil {
			var rate models.VATRate
			if err := json.Unmarshal([]byte(val), &rate); err == nil {
				return &rate, nil
			}
		}
	}

	var rate models.VATRate
	if err := r.db.WithContext(ctx).First(&rate, "id = ?", rateID).Error; err != nil {
		return nil, err
	}

	if r.redis != nil {
		if data, err := json.Marshal(rate); err == nil {
			r.redis.Set(ctx, cacheKey, data, RateCacheTTL)
		}
	}

	return &rate, nil
}

// GetActiveRatePercentage gets the percentage of an active rate by ID
func (r *VATRepository) GetActiveRatePercentage(ctx context.Context, rateID int) (decimal.Decimal, error) {
	var rate models.VATRate
	err := r.db.WithContext(ctx).
		Where("id = ? AND is_active = ?", rateID, true).
		First(&rate).Error
	if err != nil {
		return decimal.Zero, err
	}
	return rate.RatePercentage, nil
}

// CreateRate creates a new VAT rate
func (r *VATRepository) CreateRate(ctx context.Context, rate *models.VATRate) error {
	err := r.db.WithContext(ctx).Create(rate).Error
	if err == nil {
		r.invalidateRateCache(ctx, rate.ID, rate.Country)
	}
	return err
}

// UpdateRate updates a VAT rate
func (r *VATRepository) UpdateRate(ctx context.Context, rate *models.VATRate) error {
	err := r.db.WithContext(ctx).Save(rate).Error
	if err == nil {
		r.invalidateRateCache(ctx, rate.ID, rate.Country)
	}
	return err
}

// DeleteRate soft deletes a VAT rate (marks it inactive). Rates referenced by
// persisted expenses and invoices are never removed outright.
func (r *VATRepository) DeleteRate(ctx context.Context, rateID int) error {
	rate, err := r.GetRate(ctx, rateID)
	if err != nil {
		return err
	}
	err = r.db.WithContext(ctx).Model(&models.VATRate{}).
		Where("id = ?", rateID).
		Update("is_active", false).Error
	if err == nil {
		r.invalidateRateCache(ctx, rateID, rate.Country)
	}
	return err
}

// ListExpenseCategories lists the active expense categories
func (r *VATRepository) ListExpenseCategories(ctx context.Context) ([]models.ExpenseCategory, error) {
	var categories []models.ExpenseCategory
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("category_name").
		Find(&categories).Error
	return categories, err
}

// ListBusinessUsageOptions lists the preset business-usage percentages
func (r *VATRepository) ListBusinessUsageOptions(ctx context.Context) ([]models.BusinessUsageOption, error) {
	var options []models.BusinessUsageOption
	err := r.db.WithContext(ctx).
		Order("percentage DESC").
		Find(&options).Error
	return options, err
}

// CreateExpense creates an expense record
func (r *VATRepository) CreateExpense(ctx context.Context, expense *models.Expense) error {
	return r.db.WithContext(ctx).Create(expense).Error
}

// ListExpenses lists expenses for a company, newest first
func (r *VATRepository) ListExpenses(ctx context.Context, companyID string) ([]models.Expense, error) {
	var expenses []models.Expense
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Preload("Category").
		Preload("VATRate").
		Order("expense_date DESC, created_at DESC").
		Find(&expenses).Error
	return expenses, err
}

// CreateInvoice creates an invoice record
func (r *VATRepository) CreateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Create(invoice).Error
}

// ListInvoices lists invoices for a company, newest first
func (r *VATRepository) ListInvoices(ctx context.Context, companyID string) ([]models.Invoice, error) {
	var invoices []models.Invoice
	err := r.db.WithContext(ctx).
		Where("company_id = ?", companyID).
		Preload("VATRate").
		Order("issue_date DESC, created_at DESC").
		Find(&invoices).Error
	return invoices, err
}

type vatTotals struct {
	Base decimal.Decimal
	VAT  decimal.Decimal
}

// SalesTotals sums invoice net amounts and output VAT for a company and period
func (r *VATRepository) SalesTotals(ctx context.Context, companyID string, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var totals vatTotals
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(net_amount), 0) AS base,
		       COALESCE(SUM(vat_amount), 0) AS vat
		FROM invoices
		WHERE company_id = ? AND issue_date BETWEEN ? AND ?`,
		companyID, start, end).Scan(&totals).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return totals.Base, totals.VAT, nil
}

// PurchaseTotals sums expense net amounts and deductible input VAT (already
// prorated by business usage) for a company and period
func (r *VATRepository) PurchaseTotals(ctx context.Context, companyID string, start, end time.Time) (decimal.Decimal, decimal.Decimal, error) {
	var totals vatTotals
	err := r.db.WithContext(ctx).Raw(`
		SELECT COALESCE(SUM(net_amount), 0) AS base,
		       COALESCE(SUM(deductible_amount), 0) AS vat
		FROM expenses
		WHERE company_id = ? AND expense_date BETWEEN ? AND ?`,
		companyID, start, end).Scan(&totals).Error
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return totals.Base, totals.VAT, nil
}
