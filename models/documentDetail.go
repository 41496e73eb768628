package models

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	mysqlDriver "github.com/go-sql-driver/mysql"
	"github.com/shopspring/decimal"
)

// DocumentDetail is one invoice line mirrored from the tax authority. Rows
// are append-only: once inserted they are never updated or deleted by the
// reconciliation engine.
//
// line_hash is the per-item idempotency key: a content hash of the line's
// normalized fields. The unique index over (natural key, line_hash) turns a
// re-inserted line into a duplicate-key conflict, which the store reports as
// ErrDuplicateDetail so the engine can skip it instead of failing. This is
// what lets a retry after a partial failure complete the missing lines
// without duplicating the ones that made it.
type DocumentDetail struct {
	DetailId               int             `gorm:"primaryKey;column:detailid" json:"detailid"`
	DocumentSerial         string          `gorm:"column:documentserial;size:20;uniqueIndex:idx_details_line,priority:2" json:"documentserial"`
	DocumentNumber         string          `gorm:"column:documentnumber;size:20;uniqueIndex:idx_details_line,priority:3" json:"documentnumber"`
	SupplierNumber         string          `gorm:"column:suppliernumber;size:11;uniqueIndex:idx_details_line,priority:1" json:"suppliernumber"`
	LineHash               string          `gorm:"column:line_hash;size:64;uniqueIndex:idx_details_line,priority:4" json:"-"`
	UnitMeasureDescription string          `gorm:"column:unit_measure_description;size:100" json:"unit_measure_description"`
	Description            string          `gorm:"column:description;type:text" json:"description"`
	VehiclePlate           *string         `gorm:"column:vehicle_no;size:10;default:null" json:"vehicle_no"`
	Quantity               decimal.Decimal `gorm:"column:quantity;type:decimal(20,4);default:0" json:"quantity"`
	UnitValue              decimal.Decimal `gorm:"column:unit_value;type:decimal(20,2);default:0" json:"unit_value"`
	TaxValue               decimal.Decimal `gorm:"column:tax_value;type:decimal(20,2);default:0" json:"tax_value"`
	TotalValue             decimal.Decimal `gorm:"column:total_value;type:decimal(20,2);default:0" json:"total_value"`
	Status                 bool            `gorm:"column:status;default:true" json:"status"`
	CreatedBy              int             `gorm:"column:created_by" json:"created_by"`
	CreatedAt              time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
	UpdatedBy              *int            `gorm:"column:updated_by;default:null" json:"updated_by"`
	UpdatedAt              *time.Time      `gorm:"column:updated_at;autoUpdateTime" json:"updated_at"`
}

func (DocumentDetail) TableName() string {
	return "document_details"
}

// ErrDuplicateDetail reports an insert that collided with an existing row
// carrying the same natural key + line hash.
var ErrDuplicateDetail = errors.New("document detail already exists")

// ComputeLineHash derives the per-item idempotency key from the line's
// normalized content.
func ComputeLineHash(description, unitMeasure string, quantity, unitValue, taxValue, totalValue decimal.Decimal) string {
	payload := fmt.Sprintf("%s|%s|%s|%s|%s|%s",
		description,
		unitMeasure,
		quantity.String(),
		unitValue.String(),
		taxValue.String(),
		totalValue.String(),
	)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])
}

func isDuplicateKeyErr(err error) bool {
	var mysqlErr *mysqlDriver.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	return false
}

func GetDocumentDetailsByKey(ctx context.Context, supplierNumber, documentSerial, documentNumber string) ([]DocumentDetail, error) {
	var details []DocumentDetail
	db := config.GetDB()
	if err := db.WithContext(ctx).
		Where("suppliernumber = ? AND documentserial = ? AND documentnumber = ?",
			supplierNumber, documentSerial, documentNumber).
		Order("detailid ASC").
		Find(&details).Error; err != nil {
		return nil, err
	}
	return details, nil
}

// InsertDocumentDetail appends one line. A duplicate-key conflict on the
// line hash returns ErrDuplicateDetail.
func InsertDocumentDetail(ctx context.Context, detail *DocumentDetail) error {
	if detail.LineHash == "" {
		detail.LineHash = ComputeLineHash(
			detail.Description,
			detail.UnitMeasureDescription,
			detail.Quantity,
			detail.UnitValue,
			detail.TaxValue,
			detail.TotalValue,
		)
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(detail).Error; err != nil {
		if isDuplicateKeyErr(err) {
			return ErrDuplicateDetail
		}
		return err
	}
	return nil
}

// GormDetailStore adapts the package-level detail queries to the engine's
// DetailStore interface.
type GormDetailStore struct{}

func (GormDetailStore) ListByNaturalKey(ctx context.Context, supplierNumber, documentSerial, documentNumber string) ([]DocumentDetail, error) {
	return GetDocumentDetailsByKey(ctx, supplierNumber, documentSerial, documentNumber)
}

func (GormDetailStore) Insert(ctx context.Context, detail *DocumentDetail) error {
	return InsertDocumentDetail(ctx, detail)
}
