package sunat

import (
	"time"

	"github.com/shopspring/decimal"
)

// Invoice is the canonical invoice as returned by the tax authority,
// restricted to the fields this system consumes.
type Invoice struct {
	Header      InvoiceHeader `json:"header"`
	Items       []InvoiceItem `json:"items"`
	IssuerTaxId string        `json:"issuer_tax_id"`
}

type InvoiceHeader struct {
	Serial       string          `json:"serial"`
	Number       string          `json:"number"`
	IssueDate    *time.Time      `json:"-"`
	RawIssueDate string          `json:"issue_date"`
	CurrencyCode string          `json:"currency_code"`
	Subtotal     decimal.Decimal `json:"subtotal"`
	Tax          decimal.Decimal `json:"tax"`
	Total        decimal.Decimal `json:"total"`
}

type InvoiceItem struct {
	Description            string          `json:"description"`
	UnitMeasureDescription string          `json:"unit_measure_description"`
	Quantity               decimal.Decimal `json:"quantity"`
	UnitValue              decimal.Decimal `json:"unit_value"`
	TaxValue               decimal.Decimal `json:"tax_value"`
	TotalValue             decimal.Decimal `json:"total_value"`
}

type invoiceResponse struct {
	Success bool    `json:"success"`
	Message string  `json:"message"`
	Invoice Invoice `json:"data"`
}

type taxpayerResponse struct {
	Success   bool   `json:"success"`
	LegalName string `json:"legal_name"`
}
