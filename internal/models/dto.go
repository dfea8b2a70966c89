package models

import "github.com/shopspring/decimal"

// CalculateVATRequest represents a forward (net known) calculation request.
// At least one of VATRateID or VATRatePercentage must be supplied; when both
// are present the explicit percentage wins.
type CalculateVATRequest struct {
	NetAmount               decimal.Decimal  `json:"net_amount"`
	VATRateID               *int             `json:"vat_rate_id,omitempty"`
	VATRatePercentage       *decimal.Decimal `json:"vat_rate_percentage,omitempty"`
	BusinessUsagePercentage decimal.Decimal  `json:"business_usage_percentage"`
}

// CalculateFromGrossRequest represents a reverse (gross known) calculation request
type CalculateFromGrossRequest struct {
	GrossAmount             decimal.Decimal  `json:"gross_amount"`
	VATRateID               *int             `json:"vat_rate_id,omitempty"`
	VATRatePercentage       *decimal.Decimal `json:"vat_rate_percentage,omitempty"`
	BusinessUsagePercentage decimal.Decimal  `json:"business_usage_percentage"`
}

// VATCalculation is the complete breakdown produced for one known amount.
// It is immutable: a fresh value is produced per request and its fields are
// flattened into the owning expense/invoice record on save.
type VATCalculation struct {
	NetAmount               decimal.Decimal `json:"net_amount"`
	VATRatePercentage       decimal.Decimal `json:"vat_rate_percentage"`
	VATAmount               decimal.Decimal `json:"vat_amount"`
	GrossAmount             decimal.Decimal `json:"gross_amount"`
	BusinessUsagePercentage decimal.Decimal `json:"business_usage_percentage"`
	DeductibleAmount        decimal.Decimal `json:"deductible_amount"`
}

// ExpenseCategoryResponse bundles the reference data a caller needs to
// pre-populate calculator inputs
type ExpenseCategoryResponse struct {
	Categories           []ExpenseCategory     `json:"categories"`
	VATRates             []VATRate             `json:"vat_rates"`
	BusinessUsageOptions []BusinessUsageOption `json:"business_usage_options"`
}

// CreateVATRateRequest represents a request to create a VAT rate
type CreateVATRateRequest struct {
	Country        string          `json:"country" binding:"required"`
	RateName       string          `json:"rate_name" binding:"required"`
	RatePercentage decimal.Decimal `json:"rate_percentage"`
	Description    string          `json:"description"`
	EffectiveFrom  string          `json:"effective_from" binding:"required"` // YYYY-MM-DD
	EffectiveUntil string          `json:"effective_until"`                   // YYYY-MM-DD, optional
}

// CreateExpenseRequest represents a request to create an expense
type CreateExpenseRequest struct {
	CompanyID               string           `json:"company_id" binding:"required"`
	ExpenseDate             string           `json:"expense_date" binding:"required"` // YYYY-MM-DD
	CategoryID              *int             `json:"category_id"`
	Description             string           `json:"description" binding:"required"`
	NetAmount               decimal.Decimal  `json:"net_amount"`
	VATRateID               *int             `json:"vat_rate_id"`
	SupplierName            string           `json:"supplier_name"`
	BusinessUsagePercentage *decimal.Decimal `json:"business_usage_percentage"`
	ExpenseType             ExpenseType      `json:"expense_type"`
	EWorkerDays             *decimal.Decimal `json:"eworker_days"`
	EWorkerRate             *decimal.Decimal `json:"eworker_rate"`
	MileageKM               *decimal.Decimal `json:"mileage_km"`
	Notes                   string           `json:"notes"`
}

// CreateInvoiceRequest represents a request to create an invoice
type CreateInvoiceRequest struct {
	CompanyID         string          `json:"company_id" binding:"required"`
	InvoiceNumber     string          `json:"invoice_number" binding:"required"`
	IssueDate         string          `json:"issue_date" binding:"required"` // YYYY-MM-DD
	DueDate           string          `json:"due_date"`                      // YYYY-MM-DD, optional
	CustomerName      string          `json:"customer_name" binding:"required"`
	NetAmount         decimal.Decimal `json:"net_amount"`
	VATRateID         *int            `json:"vat_rate_id"`
	InvoiceType       InvoiceType     `json:"invoice_type"`
	CustomerVATNumber string          `json:"customer_vat_number"`
	CustomerCountry   string          `json:"customer_country"`
}

// VATSummaryResponse represents output vs input VAT for a company and period
type VATSummaryResponse struct {
	CompanyID      string          `json:"company_id"`
	PeriodStart    string          `json:"period_start"`
	PeriodEnd      string          `json:"period_end"`
	TotalSales     decimal.Decimal `json:"total_sales"`
	TotalOutputVAT decimal.Decimal `json:"total_output_vat"`
	TotalPurchases decimal.Decimal `json:"total_purchases"`
	TotalInputVAT  decimal.Decimal `json:"total_input_vat"`
	NetVATDue      decimal.Decimal `json:"net_vat_due"`
}
