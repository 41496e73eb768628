package reports

import (
	"context"
	"fmt"
	"io"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
)

type DocumentDetailResponse struct {
	DocumentId             int             `json:"documentId"`
	DocumentSerial         string          `json:"documentSerial"`
	DocumentNumber         string          `json:"documentNumber"`
	SupplierNumber         string          `json:"supplierNumber"`
	SupplierName           string          `json:"supplierName"`
	DocumentType           string          `json:"documentType"`
	DocumentDate           *time.Time      `json:"documentDate"`
	Currency               string          `json:"currency"`
	Description            string          `json:"description"`
	UnitMeasureDescription string          `json:"unitMeasureDescription"`
	VehiclePlate           *string         `json:"vehiclePlate"`
	Quantity               decimal.Decimal `json:"quantity"`
	UnitValue              decimal.Decimal `json:"unitValue"`
	TaxValue               decimal.Decimal `json:"taxValue"`
	TotalValue             decimal.Decimal `json:"totalValue"`
	CenterCost             string          `json:"centerCost"`
}

// GetDocumentDetailReport joins each document with its reconciled invoice
// lines. Documents without details still appear, with empty line fields.
func GetDocumentDetailReport(ctx context.Context, fromDate, toDate *time.Time, status *bool) ([]*DocumentDetailResponse, error) {

	sql := `
SELECT
    doc.documentid AS document_id,
    doc.documentserial AS document_serial,
    doc.documentnumber AS document_number,
    doc.suppliernumber AS supplier_number,
    doc.suppliername AS supplier_name,
    document_types.tipo AS document_type,
    doc.documentdate AS document_date,
    doc.currency,
    det.description,
    det.unit_measure_description,
    det.vehicle_no AS vehicle_plate,
    det.quantity,
    det.unit_value,
    det.tax_value,
    det.total_value,
    doc.centercost AS center_cost
FROM
    documents doc
LEFT JOIN document_details det
    ON det.suppliernumber = doc.suppliernumber
    AND det.documentserial = doc.documentserial
    AND det.documentnumber = doc.documentnumber
LEFT JOIN document_types ON document_types.tipoid = doc.documenttype
WHERE 1 = 1
`
	params := map[string]interface{}{}
	if fromDate != nil {
		sql += " AND doc.documentdate >= @fromDate"
		params["fromDate"] = *fromDate
	}
	if toDate != nil {
		sql += " AND doc.documentdate <= @toDate"
		params["toDate"] = *toDate
	}
	if status != nil {
		sql += " AND doc.status = @status"
		params["status"] = *status
	}
	sql += " ORDER BY doc.documentid DESC, det.detailid ASC"

	var results []*DocumentDetailResponse
	db := config.GetDB()
	if err := db.WithContext(ctx).Raw(sql, params).Scan(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

// ExportDocumentDetailExcel streams the detail report as an xlsx workbook.
func ExportDocumentDetailExcel(ctx context.Context, w io.Writer, fromDate, toDate *time.Time, status *bool) error {

	data, err := GetDocumentDetailReport(ctx, fromDate, toDate, status)
	if err != nil {
		return err
	}

	f := excelize.NewFile()
	sheetName := "Sheet1"
	if _, err := f.NewSheet(sheetName); err != nil {
		return err
	}

	// Add headers
	headings := []string{
		"Documento", "Serie", "Numero", "RUC", "Proveedor", "Tipo", "Fecha",
		"Moneda", "Descripcion", "Unidad", "Placa", "Cantidad",
		"ValorUnitario", "IGV", "Total", "CentroCosto",
	}
	for col, h := range headings {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		f.SetCellValue(sheetName, cell, h)
	}

	// Add data
	for i, d := range data {
		row := i + 2
		var dateStr string
		if d.DocumentDate != nil {
			dateStr = d.DocumentDate.Format("2006-01-02")
		}
		values := []interface{}{
			d.DocumentId,
			d.DocumentSerial,
			d.DocumentNumber,
			d.SupplierNumber,
			d.SupplierName,
			d.DocumentType,
			dateStr,
			d.Currency,
			d.Description,
			d.UnitMeasureDescription,
			utils.DereferencePtr(d.VehiclePlate, ""),
			d.Quantity.InexactFloat64(),
			d.UnitValue.InexactFloat64(),
			d.TaxValue.InexactFloat64(),
			d.TotalValue.InexactFloat64(),
			d.CenterCost,
		}
		for col, v := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row)
			if err != nil {
				return err
			}
			f.SetCellValue(sheetName, cell, v)
		}
	}

	return f.Write(w)
}

// ExcelFilename builds the attachment name with the export date.
func ExcelFilename(prefix string) string {
	return fmt.Sprintf("%s_%s.xlsx", prefix, time.Now().Format("20060102"))
}
