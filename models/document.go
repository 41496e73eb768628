package models

import (
	"context"
	"errors"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Document is one purchase document row. Column names follow the legacy
// dashboard schema (lowercase concatenated), which the frontend consumes
// verbatim as JSON keys.
//
// Natural key for reconciliation: (suppliernumber, documentserial,
// documentnumber) plus the document type resolved to a two-digit code.
type Document struct {
	DocumentId     int             `gorm:"primaryKey;column:documentid" json:"documentid"`
	DocumentSerial string          `gorm:"column:documentserial;size:20;index:idx_documents_natural_key,priority:2" json:"documentserial"`
	DocumentNumber string          `gorm:"column:documentnumber;size:20;index:idx_documents_natural_key,priority:3" json:"documentnumber"`
	SupplierNumber string          `gorm:"column:suppliernumber;size:11;index:idx_documents_natural_key,priority:1" json:"suppliernumber"`
	SupplierName   string          `gorm:"column:suppliername;size:255" json:"suppliername"`
	DocumentType   int             `gorm:"column:documenttype;default:null" json:"documenttype"`
	DocumentDate   *time.Time      `gorm:"column:documentdate;type:date" json:"documentdate"`
	Currency       string          `gorm:"column:currency;size:3;default:PEN" json:"currency"`
	Amount         decimal.Decimal `gorm:"column:amount;type:decimal(20,2);default:0" json:"amount"`
	TaxAmount      decimal.Decimal `gorm:"column:taxamount;type:decimal(20,2);default:0" json:"taxamount"`
	TotalAmount    decimal.Decimal `gorm:"column:totalamount;type:decimal(20,2);default:0" json:"totalamount"`
	DocumentUrl    string          `gorm:"column:documenturl;size:500" json:"documenturl"`
	Driver         string          `gorm:"column:driver;size:255" json:"driver"`
	CenterCost     *int            `gorm:"column:centercost;default:null" json:"centercost"`
	Notes          string          `gorm:"column:notes;type:text" json:"notes"`
	Status         bool            `gorm:"column:status;default:false" json:"status"`
	CreatedBy      int             `gorm:"column:created_by" json:"created_by"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedBy      *int            `gorm:"column:updated_by;default:null" json:"updated_by"`
	UpdatedAt      *time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (Document) TableName() string {
	return "documents"
}

type NewDocument struct {
	DocumentSerial string          `json:"documentserial" binding:"required"`
	DocumentNumber string          `json:"documentnumber" binding:"required"`
	SupplierNumber string          `json:"suppliernumber" binding:"required"`
	SupplierName   string          `json:"suppliername"`
	DocumentType   int             `json:"documenttype"`
	DocumentDate   *time.Time      `json:"documentdate"`
	Currency       string          `json:"currency"`
	Amount         decimal.Decimal `json:"amount"`
	IgvPercent     decimal.Decimal `json:"igv_percent"`
	DocumentUrl    string          `json:"documenturl"`
	Driver         string          `json:"driver"`
	CenterCost     *int            `json:"centercost"`
	Notes          string          `json:"notes"`
}

// PatchDocument carries the editable fields of the edit modal. Monetary
// fields regenerate tax/total; totalamount itself is not patchable.
type PatchDocument struct {
	DocumentSerial *string          `json:"documentserial"`
	DocumentNumber *string          `json:"documentnumber"`
	SupplierNumber *string          `json:"suppliernumber"`
	SupplierName   *string          `json:"suppliername"`
	DocumentType   *int             `json:"documenttype"`
	DocumentDate   *time.Time       `json:"documentdate"`
	Currency       *string          `json:"currency"`
	Amount         *decimal.Decimal `json:"amount"`
	IgvPercent     *decimal.Decimal `json:"igv_percent"`
	TaxAmount      *decimal.Decimal `json:"taxamount"`
	Driver         *string          `json:"driver"`
	CenterCost     *int             `json:"centercost"`
	Notes          *string          `json:"notes"`
	Status         *bool            `json:"status"`
}

type DocumentFilter struct {
	Search   string
	Status   string // "all", "active", "pending"
	DateFrom *time.Time
	DateTo   *time.Time
	Page     int
	PageSize int
}

type DocumentPage struct {
	Data  []*Document `json:"data"`
	Total int64       `json:"total"`
}

func CreateDocument(ctx context.Context, input *NewDocument) (*Document, error) {
	if !utils.IsValidRuc(input.SupplierNumber) {
		return nil, utils.NewValidationError("suppliernumber", "must be an 11-digit RUC")
	}

	currency := input.Currency
	if currency == "" {
		currency = "PEN"
	}

	subtotal := utils.Round2(input.Amount)
	tax, total := utils.CalculateTaxFromRate(subtotal, input.IgvPercent)

	userId, _ := utils.GetUserIdFromContext(ctx)
	doc := &Document{
		DocumentSerial: input.DocumentSerial,
		DocumentNumber: input.DocumentNumber,
		SupplierNumber: input.SupplierNumber,
		SupplierName:   input.SupplierName,
		DocumentType:   input.DocumentType,
		DocumentDate:   input.DocumentDate,
		Currency:       currency,
		Amount:         subtotal,
		TaxAmount:      tax,
		TotalAmount:    total,
		DocumentUrl:    input.DocumentUrl,
		Driver:         input.Driver,
		CenterCost:     input.CenterCost,
		Notes:          input.Notes,
		CreatedBy:      userId,
	}

	db := config.GetDB()
	if err := db.WithContext(ctx).Create(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func GetDocument(ctx context.Context, id int) (*Document, error) {
	var result Document
	db := config.GetDB()
	if err := db.WithContext(ctx).First(&result, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &result, nil
}

func GetDocuments(ctx context.Context, filter DocumentFilter) (*DocumentPage, error) {
	db := config.GetDB()
	query := db.WithContext(ctx).Model(&Document{})

	if filter.Search != "" {
		term := "%" + filter.Search + "%"
		query = query.Where(
			"documentserial LIKE ? OR documentnumber LIKE ? OR suppliernumber LIKE ? OR suppliername LIKE ?",
			term, term, term, term,
		)
	}
	switch filter.Status {
	case "active":
		query = query.Where("status = ?", true)
	case "pending":
		query = query.Where("status = ?", false)
	}
	if filter.DateFrom != nil {
		query = query.Where("documentdate >= ?", filter.DateFrom)
	}
	if filter.DateTo != nil {
		query = query.Where("documentdate <= ?", filter.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, err
	}

	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	var documents []*Document
	if err := query.
		Order("documentid DESC").
		Limit(filter.PageSize).
		Offset((filter.Page - 1) * filter.PageSize).
		Find(&documents).Error; err != nil {
		return nil, err
	}

	return &DocumentPage{Data: documents, Total: total}, nil
}

// UpdateDocument applies a partial edit. Tax and total amounts are always
// regenerated here, never taken from the request: they are derived from
// amount + igv_percent (or amount + taxamount when only the tax amount is
// known), through the money helpers.
func UpdateDocument(ctx context.Context, id int, input *PatchDocument) (*Document, error) {
	doc, err := GetDocument(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.SupplierNumber != nil {
		if !utils.IsValidRuc(*input.SupplierNumber) {
			return nil, utils.NewValidationError("suppliernumber", "must be an 11-digit RUC")
		}
		doc.SupplierNumber = *input.SupplierNumber
	}
	if input.SupplierName != nil && *input.SupplierName != "" {
		doc.SupplierName = *input.SupplierName
	}
	if input.DocumentSerial != nil {
		doc.DocumentSerial = *input.DocumentSerial
	}
	if input.DocumentNumber != nil {
		doc.DocumentNumber = *input.DocumentNumber
	}
	if input.DocumentType != nil {
		doc.DocumentType = *input.DocumentType
	}
	if input.DocumentDate != nil {
		doc.DocumentDate = input.DocumentDate
	}
	if input.Currency != nil && *input.Currency != "" {
		doc.Currency = *input.Currency
	}
	if input.Driver != nil {
		doc.Driver = *input.Driver
	}
	if input.CenterCost != nil {
		doc.CenterCost = input.CenterCost
	}
	if input.Notes != nil {
		doc.Notes = *input.Notes
	}
	if input.Status != nil {
		doc.Status = *input.Status
	}

	subtotal := doc.Amount
	if input.Amount != nil {
		subtotal = utils.Round2(*input.Amount)
	}
	switch {
	case input.IgvPercent != nil:
		doc.Amount = subtotal
		doc.TaxAmount, doc.TotalAmount = utils.CalculateTaxFromRate(subtotal, *input.IgvPercent)
	case input.TaxAmount != nil:
		doc.Amount = subtotal
		doc.TaxAmount = utils.Round2(*input.TaxAmount)
		doc.TotalAmount = utils.CalculateTotalFromTax(subtotal, doc.TaxAmount)
	case input.Amount != nil:
		doc.Amount = subtotal
		doc.TotalAmount = utils.CalculateTotalFromTax(subtotal, doc.TaxAmount)
	}

	userId, _ := utils.GetUserIdFromContext(ctx)
	doc.UpdatedBy = &userId

	db := config.GetDB()
	if err := db.WithContext(ctx).Save(doc).Error; err != nil {
		return nil, err
	}
	return doc, nil
}

func DeleteDocument(ctx context.Context, id int) error {
	db := config.GetDB()
	result := db.WithContext(ctx).Delete(&Document{}, id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}

// DocumentAggregates is the snapshot of monetary fields the reconciliation
// engine recomputes. The total is guaranteed by the engine to satisfy
// total == round2(amount + tax).
type DocumentAggregates struct {
	Currency    string
	Amount      decimal.Decimal
	TaxAmount   decimal.Decimal
	TotalAmount decimal.Decimal
	IssueDate   *time.Time
}

// PatchDocumentAggregates persists an engine snapshot back to the document
// row. Only the aggregate fields are touched.
func PatchDocumentAggregates(ctx context.Context, id int, agg DocumentAggregates) error {
	updates := map[string]interface{}{
		"amount":      agg.Amount,
		"taxamount":   agg.TaxAmount,
		"totalamount": agg.TotalAmount,
	}
	if agg.Currency != "" {
		updates["currency"] = agg.Currency
	}
	if agg.IssueDate != nil {
		updates["documentdate"] = agg.IssueDate
	}
	db := config.GetDB()
	result := db.WithContext(ctx).Model(&Document{}).Where("documentid = ?", id).Updates(updates)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return utils.ErrorRecordNotFound
	}
	return nil
}
