package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ExpenseType represents how an expense's net amount is derived
type ExpenseType string

const (
	ExpenseTypeGeneral     ExpenseType = "general"
	ExpenseTypeEWorker     ExpenseType = "eworker"
	ExpenseTypeMileage     ExpenseType = "mileage"
	ExpenseTypeSubsistence ExpenseType = "subsistence"
)

// InvoiceType represents the VAT treatment of an invoice
type InvoiceType string

const (
	InvoiceTypeStandard      InvoiceType = "standard"
	InvoiceTypeReverseCharge InvoiceType = "reverse_charge"
	InvoiceTypeExport        InvoiceType = "export"
	InvoiceTypeExempt        InvoiceType = "exempt"
)

// VATRate represents a named VAT percentage valid for a country and time window
type VATRate struct {
	ID             int              `json:"id" gorm:"primaryKey;autoIncrement"`
	Country        string           `json:"country" gorm:"type:varchar(100);not null;index"`
	RateName       string           `json:"rate_name" gorm:"type:varchar(100);not null"`
	RatePercentage decimal.Decimal  `json:"rate_percentage" gorm:"type:decimal(5,2);not null"`
	Description    string           `json:"description,omitempty" gorm:"type:text"`
	IsActive       bool             `json:"is_active" gorm:"default:true"`
	EffectiveFrom  time.Time        `json:"effective_from" gorm:"not null"`
	EffectiveUntil *time.Time       `json:"effective_until,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ExpenseCategory carries the defaults used to pre-populate calculator inputs
type ExpenseCategory struct {
	ID                    int             `json:"id" gorm:"primaryKey;autoIncrement"`
	CategoryName          string          `json:"category_name" gorm:"type:varchar(255);not null;uniqueIndex"`
	CategoryType          ExpenseType     `json:"category_type" gorm:"type:varchar(50);not null;default:'general'"`
	DefaultVATRateID      *int            `json:"default_vat_rate_id,omitempty"`
	SupportsBusinessUsage bool            `json:"supports_business_usage" gorm:"default:false"`
	DefaultBusinessUsage  decimal.Decimal `json:"default_business_usage" gorm:"type:decimal(5,2);default:100"`
	RequiresReceipt       bool            `json:"requires_receipt" gorm:"default:true"`
	Description           string          `json:"description,omitempty" gorm:"type:text"`
	IsActive              bool            `json:"is_active" gorm:"default:true"`
	CreatedAt             time.Time       `json:"created_at"`

	// Relationships
	DefaultVATRate *VATRate `json:"default_vat_rate,omitempty" gorm:"foreignKey:DefaultVATRateID"`
}

// BusinessUsageOption is a preset business-usage percentage offered to the caller
type BusinessUsageOption struct {
	ID          int             `json:"id" gorm:"primaryKey;autoIncrement"`
	Percentage  decimal.Decimal `json:"percentage" gorm:"type:decimal(5,2);not null"`
	Label       string          `json:"label" gorm:"type:varchar(100);not null"`
	Description string          `json:"description,omitempty" gorm:"type:text"`
	IsDefault   bool            `json:"is_default" gorm:"default:false"`
}

// Expense is an expense record with its VAT breakdown flattened in
type Expense struct {
	ID                      uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	CompanyID               string          `json:"company_id" gorm:"type:varchar(255);not null;index"`
	ExpenseDate             time.Time       `json:"expense_date" gorm:"type:date;not null"`
	CategoryID              *int            `json:"category_id,omitempty"`
	Description             string          `json:"description" gorm:"type:text;not null"`
	NetAmount               decimal.Decimal `json:"net_amount" gorm:"type:decimal(12,2);not null"`
	VATRateID               *int            `json:"vat_rate_id,omitempty"`
	VATAmount               decimal.Decimal `json:"vat_amount" gorm:"type:decimal(12,2);not null;default:0"`
	GrossAmount             decimal.Decimal `json:"gross_amount" gorm:"type:decimal(12,2);not null;default:0"`
	SupplierName            string          `json:"supplier_name,omitempty" gorm:"type:varchar(255)"`
	BusinessUsagePercentage decimal.Decimal `json:"business_usage_percentage" gorm:"type:decimal(5,2);default:100"`
	DeductibleAmount        decimal.Decimal `json:"deductible_amount" gorm:"type:decimal(12,2);default:0"`
	ExpenseType             ExpenseType     `json:"expense_type" gorm:"type:varchar(50);default:'general'"`

	// E-worker expenses: net amount = days x daily rate
	EWorkerDays *decimal.Decimal `json:"eworker_days,omitempty" gorm:"type:decimal(6,2)"`
	EWorkerRate *decimal.Decimal `json:"eworker_rate,omitempty" gorm:"type:decimal(10,2)"`

	// Mileage expenses: net amount = km x rate per km
	MileageKM   *decimal.Decimal `json:"mileage_km,omitempty" gorm:"type:decimal(10,2)"`
	MileageRate *decimal.Decimal `json:"mileage_rate,omitempty" gorm:"type:decimal(10,4)"`

	Notes           string    `json:"notes,omitempty" gorm:"type:text"`
	ReceiptRequired bool      `json:"receipt_required" gorm:"default:true"`
	Paid            bool      `json:"paid" gorm:"default:false"`
	CreatedAt       time.Time `json:"created_at"`

	// Relationships
	Category *ExpenseCategory `json:"category,omitempty" gorm:"foreignKey:CategoryID"`
	VATRate  *VATRate         `json:"vat_rate,omitempty" gorm:"foreignKey:VATRateID"`
}

// Invoice is a sales invoice with its VAT breakdown flattened in
type Invoice struct {
	ID                uuid.UUID       `json:"id" gorm:"type:uuid;primary_key"`
	CompanyID         string          `json:"company_id" gorm:"type:varchar(255);not null;index"`
	InvoiceNumber     string          `json:"invoice_number" gorm:"type:varchar(100);not null"`
	IssueDate         time.Time       `json:"issue_date" gorm:"type:date;not null"`
	DueDate           *time.Time      `json:"due_date,omitempty" gorm:"type:date"`
	CustomerName      string          `json:"customer_name" gorm:"type:varchar(255);not null"`
	NetAmount         decimal.Decimal `json:"net_amount" gorm:"type:decimal(12,2);not null"`
	VATRateID         *int            `json:"vat_rate_id,omitempty"`
	VATAmount         decimal.Decimal `json:"vat_amount" gorm:"type:decimal(12,2);not null;default:0"`
	GrossAmount       decimal.Decimal `json:"gross_amount" gorm:"type:decimal(12,2);not null;default:0"`
	InvoiceType       InvoiceType     `json:"invoice_type" gorm:"type:varchar(50);default:'standard'"`
	CustomerVATNumber string          `json:"customer_vat_number,omitempty" gorm:"type:varchar(50)"`
	CustomerCountry   string          `json:"customer_country" gorm:"type:varchar(100);default:'Ireland'"`
	Paid              bool            `json:"paid" gorm:"default:false"`
	CreatedAt         time.Time       `json:"created_at"`

	// Relationships
	VATRate *VATRate `json:"vat_rate,omitempty" gorm:"foreignKey:VATRateID"`
}
