// Package client implements the calculation engine consumed by the accounting
// UI: a remote-first VAT rate catalog and calculator backed by the vat-service
// REST API, with deterministic local behavior when the service is unreachable.
//
// The engine is stateless; identical inputs always produce identical outputs,
// so it is safe to invoke on every keystroke of an amount, rate, or
// business-usage edit.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"vat-service/internal/models"
	"vat-service/internal/services"
)

// FallbackCountry is the only jurisdiction the built-in rate table covers.
// Fallback rates for any other country would be silently wrong, so catalog
// failures for other countries surface as errors instead.
const FallbackCountry = "Ireland"

const defaultTimeout = 10 * time.Second

// Client calls the VAT service for rates and calculations
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *logrus.Entry
}

// NewClient creates a new VAT client. Pass a nil httpClient to use a default
// with a bounded timeout.
func NewClient(baseURL string, httpClient *http.Client, logger *logrus.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		logger:     logger.WithField("component", "vat.client"),
	}
}

// rateWire mirrors the /vat/rates payload. Required fields are pointers so a
// missing field fails the calculation instead of silently defaulting to zero.
type rateWire struct {
	ID             *int             `json:"id"`
	Country        string           `json:"country"`
	RateName       *string          `json:"rate_name"`
	RatePercentage *decimal.Decimal `json:"rate_percentage"`
	Description    string           `json:"description"`
	IsActive       *bool            `json:"is_active"`
	EffectiveFrom  time.Time        `json:"effective_from"`
	EffectiveUntil *time.Time       `json:"effective_until"`
}

// calculationWire mirrors the /vat/calculate payloads, with required numeric
// fields as pointers for fail-fast decoding
type calculationWire struct {
	NetAmount               *decimal.Decimal `json:"net_amount"`
	VATRatePercentage       *decimal.Decimal `json:"vat_rate_percentage"`
	VATAmount               *decimal.Decimal `json:"vat_amount"`
	GrossAmount             *decimal.Decimal `json:"gross_amount"`
	BusinessUsagePercentage *decimal.Decimal `json:"business_usage_percentage"`
	DeductibleAmount        *decimal.Decimal `json:"deductible_amount"`
}

// Rates fetches the VAT rates for a country. If the service is unreachable or
// answers with a non-success status, the fixed built-in table is substituted
// for Ireland so the caller is never blocked; the substituted rates are
// best-effort, not authoritative tax data. Other countries get the error.
func (c *Client) Rates(ctx context.Context, country string, activeOnly bool) ([]models.VATRate, error) {
	rates, err := c.fetchRates(ctx, country, activeOnly)
	if err != nil {
		if country == FallbackCountry {
			c.logger.WithError(err).Warn("Rate catalog unavailable, using built-in Irish rates")
			return FallbackIrishRates(), nil
		}
		return nil, fmt.Errorf("failed to fetch vat rates for %s: %w", country, err)
	}
	return rates, nil
}

func (c *Client) fetchRates(ctx context.Context, country string, activeOnly bool) ([]models.VATRate, error) {
	endpoint := fmt.Sprintf("%s/vat/rates?country=%s&active_only=%t",
		c.baseURL, url.QueryEscape(country), activeOnly)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("rate service returned status %d", resp.StatusCode)
	}

	var wire []rateWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode rates payload: %w", err)
	}

	rates := make([]models.VATRate, 0, len(wire))
	for _, w := range wire {
		if w.ID == nil || w.RateName == nil || w.RatePercentage == nil {
			return nil, fmt.Errorf("rate payload missing required fields")
		}
		rate := models.VATRate{
			ID:             *w.ID,
			Country:        w.Country,
			RateName:       *w.RateName,
			RatePercentage: *w.RatePercentage,
			Description:    w.Description,
			IsActive:       true,
			EffectiveFrom:  w.EffectiveFrom,
			EffectiveUntil: w.EffectiveUntil,
		}
		if rate.Country == "" {
			rate.Country = country
		}
		if w.IsActive != nil {
			rate.IsActive = *w.IsActive
		}
		rates = append(rates, rate)
	}
	return rates, nil
}

// DefaultRate picks a sensible default from a rate list: the first rate whose
// name contains "standard" (case-insensitive), else the first rate, else nil.
func DefaultRate(rates []models.VATRate) *models.VATRate {
	for i := range rates {
		if strings.Contains(strings.ToLower(rates[i].RateName), "standard") {
			return &rates[i]
		}
	}
	if len(rates) > 0 {
		return &rates[0]
	}
	return nil
}

// Calculate performs the forward (net known) calculation against the service.
// There is no local forward formula: any remote failure is surfaced as an
// error and the caller must leave the dependent fields blank rather than
// display a guessed breakdown.
func (c *Client) Calculate(ctx context.Context, req models.CalculateVATRequest) (*models.VATCalculation, error) {
	if req.NetAmount.IsNegative() {
		return nil, services.ErrNegativeAmount
	}
	if err := validateRequest(req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("net_amount", req.NetAmount.String())
	setRateParams(query, req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage)

	calc, err := c.postCalculation(ctx, "/vat/calculate", query)
	if err != nil {
		return nil, fmt.Errorf("vat calculation unavailable: %w", err)
	}
	return calc, nil
}

// CalculateFromGross performs the reverse (gross known) calculation. The
// service result is preferred; on any remote failure the closed-form inverse
// net = gross / (1 + rate/100) is applied locally, so a valid request always
// yields a breakdown. The local result bypasses any server-side business
// rules and should be treated as best-effort.
func (c *Client) CalculateFromGross(ctx context.Context, req models.CalculateFromGrossRequest) (*models.VATCalculation, error) {
	if req.GrossAmount.IsNegative() {
		return nil, services.ErrNegativeAmount
	}
	if err := validateRequest(req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage); err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("gross_amount", req.GrossAmount.String())
	setRateParams(query, req.VATRateID, req.VATRatePercentage, req.BusinessUsagePercentage)

	calc, err := c.postCalculation(ctx, "/vat/calculate-from-gross", query)
	if err == nil {
		return calc, nil
	}

	rate, resolveErr := c.resolveLocalRate(req.VATRateID, req.VATRatePercentage)
	if resolveErr != nil {
		return nil, fmt.Errorf("vat calculation unavailable: %w", resolveErr)
	}

	c.logger.WithError(err).Warn("Remote gross calculation failed, using local formula")
	local := services.ComputeVATFromGross(req.GrossAmount, rate, req.BusinessUsagePercentage)
	return &local, nil
}

func (c *Client) postCalculation(ctx context.Context, path string, query url.Values) (*models.VATCalculation, error) {
	endpoint := c.baseURL + path + "?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("calculation service returned status %d: %s", resp.StatusCode, body)
	}

	var wire calculationWire
	if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
		return nil, fmt.Errorf("failed to decode calculation payload: %w", err)
	}
	if wire.NetAmount == nil || wire.VATRatePercentage == nil || wire.VATAmount == nil || wire.GrossAmount == nil {
		return nil, fmt.Errorf("calculation payload missing required fields")
	}

	calc := models.VATCalculation{
		NetAmount:               *wire.NetAmount,
		VATRatePercentage:       *wire.VATRatePercentage,
		VATAmount:               *wire.VATAmount,
		GrossAmount:             *wire.GrossAmount,
		BusinessUsagePercentage: decimal.NewFromInt(100),
	}
	if wire.BusinessUsagePercentage != nil {
		calc.BusinessUsagePercentage = *wire.BusinessUsagePercentage
	}
	if wire.DeductibleAmount != nil {
		calc.DeductibleAmount = *wire.DeductibleAmount
	} else {
		calc.DeductibleAmount = calc.VATAmount.Mul(calc.BusinessUsagePercentage).Div(decimal.NewFromInt(100)).Round(2)
	}
	return &calc, nil
}

// resolveLocalRate resolves the percentage for the local fallback formula. An
// explicit percentage is used directly; a rate id can only be resolved against
// the built-in Irish table.
func (c *Client) resolveLocalRate(rateID *int, percentage *decimal.Decimal) (decimal.Decimal, error) {
	if percentage != nil {
		return *percentage, nil
	}
	for _, rate := range FallbackIrishRates() {
		if rateID != nil && rate.ID == *rateID {
			return rate.RatePercentage, nil
		}
	}
	return decimal.Zero, fmt.Errorf("vat rate %v cannot be resolved locally", rateID)
}

func validateRequest(rateID *int, percentage *decimal.Decimal, businessUsage decimal.Decimal) error {
	if rateID == nil && percentage == nil {
		return services.ErrRateRequired
	}
	if percentage != nil && percentage.IsNegative() {
		return services.ErrNegativeRate
	}
	if businessUsage.IsNegative() || businessUsage.GreaterThan(decimal.NewFromInt(100)) {
		return services.ErrInvalidBusinessUsage
	}
	return nil
}

func setRateParams(query url.Values, rateID *int, percentage *decimal.Decimal, businessUsage decimal.Decimal) {
	if percentage != nil {
		query.Set("vat_rate_percentage", percentage.String())
	} else if rateID != nil {
		query.Set("vat_rate_id", strconv.Itoa(*rateID))
	}
	query.Set("business_usage_percentage", businessUsage.String())
}

// FallbackIrishRates returns the fixed built-in rate table for Ireland,
// effective from the moment of the call. It exists so the caller is never
// blocked by catalog unavailability.
func FallbackIrishRates() []models.VATRate {
	now := time.Now()
	mk := func(id int, name, percentage string) models.VATRate {
		return models.VATRate{
			ID:             id,
			Country:        FallbackCountry,
			RateName:       name,
			RatePercentage: decimal.RequireFromString(percentage),
			IsActive:       true,
			EffectiveFrom:  now,
		}
	}
	return []models.VATRate{
		mk(1, "Standard", "23"),
		mk(2, "Reduced", "13.5"),
		mk(3, "Second Reduced", "9"),
		mk(4, "Zero", "0"),
		mk(5, "Exempt", "0"),
		mk(6, "Home Office", "0"),
	}
}
