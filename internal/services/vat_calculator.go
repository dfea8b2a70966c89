package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"vat-service/internal/models"
	"vat-service/internal/repository"
)

var (
	// ErrNegativeAmount is returned when the supplied amount is below zero
	ErrNegativeAmount = errors.New("amount must not be negative")
	// ErrRateRequired is returned when neither a rate id nor a percentage is supplied
	ErrRateRequired = errors.New("a vat_rate_id or vat_rate_percentage is required")
	// ErrNegativeRate is returned when the supplied percentage is below zero
	ErrNegativeRate = errors.New("vat_rate_percentage must not be negative")
	// ErrInvalidBusinessUsage is returned when business usage is outside 0-100
	ErrInvalidBusinessUsage = errors.New("business_usage_percentage must be between 0 and 100")
)

var (
	hundred = decimal.NewFromInt(100)
	one     = decimal.NewFromInt(1)
)

// irishMileageRate is the Irish Revenue civil-service mileage rate per km (2024)
var irishMileageRate = decimal.RequireFromString("0.3708")

// ComputeVAT derives the full breakdown from a known net amount. Intermediate
// values keep full precision; currency outputs are rounded half-up to 2 decimal
// places only at the boundary.
func ComputeVAT(netAmount, ratePercentage, businessUsage decimal.Decimal) models.VATCalculation {
	vatAmount := netAmount.Mul(ratePercentage).Div(hundred).Round(2)
	grossAmount := netAmount.Add(vatAmount)
	deductible := vatAmount.Mul(businessUsage).Div(hundred).Round(2)

	return models.VATCalculation{
		NetAmount:               netAmount.Round(2),
		VATRatePercentage:       ratePercentage,
		VATAmount:               vatAmount,
		GrossAmount:             grossAmount,
		BusinessUsagePercentage: businessUsage,
		DeductibleAmount:        deductible,
	}
}

// ComputeVATFromGross derives the full breakdown from a known gross amount:
// net = gross / (1 + rate/100), vat = gross - net. Well-defined for any
// rate >= 0; a zero rate yields net == gross and zero VAT.
func ComputeVATFromGross(grossAmount, ratePercentage, businessUsage decimal.Decimal) models.VATCalculation {
	multiplier := one.Add(ratePercentage.Div(hundred))
	netAmount := grossAmount.DivRound(multiplier, 2)
	vatAmount := grossAmount.Sub(netAmount)
	deductible := vatAmount.Mul(businessUsage).Div(hundred).Round(2)

	return models.VATCalculation{
		NetAmount:               netAmount,
		VATRatePercentage:       ratePercentage,
		VATAmount:               vatAmount,
		GrossAmount:             grossAmount.Round(2),
		BusinessUsagePercentage: businessUsage,
		DeductibleAmount:        deductible,
	}
}

// EWorkerExpense calculates the net amount of an e-worker expense
func EWorkerExpense(days, dailyRate decimal.Decimal) decimal.Decimal {
	return days.Mul(dailyRate).Round(2)
}

// MileageExpense calculates the net amount of a mileage expense
func MileageExpense(km, ratePerKM decimal.Decimal) decimal.Decimal {
	return km.Mul(ratePerKM).Round(2)
}

// IrishMileageRate returns the current Irish Revenue mileage rate per km
func IrishMileageRate() decimal.Decimal {
	return irishMileageRate
}

// VATCalculator performs the authoritative VAT calculations, resolving rate
// references against the stored rate catalog
type VATCalculator struct {
	repo *repository.VATRepository
}

// NewVATCalculator creates a new VAT calculator
func NewVATCalculator(repo *repository.VATRepository) *VATCalculator {
	return &VATCalculator{repo: repo}
}

// CalculateVAT calculates the breakdown for a known net amount
func (c *VATCalculator) CalculateVAT(ctx context.Context, req models.CalculateVATRequest) (*models.VATCalculation, error) {
	if req.NetAmount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if err := validateBusinessUsage(req.BusinessUsagePercentage); err != nil {
		return nil, err
	}

	rate, err := c.resolveRate(ctx, req.VATRateID, req.VATRatePercentage)
	if err != nil {
		return nil, err
	}

	calc := ComputeVAT(req.NetAmount, rate, req.BusinessUsagePercentage)
	return &calc, nil
}

// CalculateVATFromGross calculates the breakdown for a known gross amount
func (c *VATCalculator) CalculateVATFromGross(ctx context.Context, req models.CalculateFromGrossRequest) (*models.VATCalculation, error) {
	if req.GrossAmount.IsNegative() {
		return nil, ErrNegativeAmount
	}
	if err := validateBusinessUsage(req.BusinessUsagePercentage); err != nil {
		return nil, err
	}

	rate, err := c.resolveRate(ctx, req.VATRateID, req.VATRatePercentage)
	if err != nil {
		return nil, err
	}

	calc := ComputeVATFromGross(req.GrossAmount, rate, req.BusinessUsagePercentage)
	return &calc, nil
}

// SummaryForPeriod aggregates output VAT (invoices) against deductible input
// VAT (expenses, prorated by business usage) for a company and date range
func (c *VATCalculator) SummaryForPeriod(ctx context.Context, companyID string, start, end time.Time) (*models.VATSummaryResponse, error) {
	totalSales, totalOutputVAT, err := c.repo.SalesTotals(ctx, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate sales: %w", err)
	}

	totalPurchases, totalInputVAT, err := c.repo.PurchaseTotals(ctx, companyID, start, end)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate purchases: %w", err)
	}

	return &models.VATSummaryResponse{
		CompanyID:      companyID,
		PeriodStart:    start.Format("2006-01-02"),
		PeriodEnd:      end.Format("2006-01-02"),
		TotalSales:     totalSales,
		TotalOutputVAT: totalOutputVAT,
		TotalPurchases: totalPurchases,
		TotalInputVAT:  totalInputVAT,
		NetVATDue:      totalOutputVAT.Sub(totalInputVAT),
	}, nil
}

// resolveRate resolves the rate percentage to use: an explicit percentage wins,
// otherwise the referenced rate is looked up among active rates
func (c *VATCalculator) resolveRate(ctx context.Context, rateID *int, percentage *decimal.Decimal) (decimal.Decimal, error) {
	if percentage != nil {
		if percentage.IsNegative() {
			return decimal.Zero, ErrNegativeRate
		}
		return *percentage, nil
	}

	if rateID == nil {
		return decimal.Zero, ErrRateRequired
	}

	rate, err := c.repo.GetActiveRatePercentage(ctx, *rateID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to resolve vat rate %d: %w", *rateID, err)
	}
	return rate, nil
}

func validateBusinessUsage(usage decimal.Decimal) error {
	if usage.IsNegative() || usage.GreaterThan(hundred) {
		return ErrInvalidBusinessUsage
	}
	return nil
}
