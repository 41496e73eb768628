package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/models"
	"bitbucket.org/docuwareperu/docuware_backend/sunat"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"github.com/shopspring/decimal"
)

// NOTE: These tests are intentionally DB-free. They validate the engine
// semantics against in-memory fakes:
// - the idempotency check short-circuits before any gateway call
// - concurrent calls for one natural key produce exactly one gateway call
// - per-item failures are collected, never escalated
//
// Full DB integration tests need an environment that can run MySQL.

type fakeDetailStore struct {
	mu        sync.Mutex
	rows      []models.DocumentDetail
	failDesc  string          // Insert fails for rows with this description
	dupHashes map[string]bool // Insert conflicts for these line hashes
	inserts   int
}

func (s *fakeDetailStore) ListByNaturalKey(ctx context.Context, supplierNumber, documentSerial, documentNumber string) ([]models.DocumentDetail, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.DocumentDetail
	for _, row := range s.rows {
		if row.SupplierNumber == supplierNumber && row.DocumentSerial == documentSerial && row.DocumentNumber == documentNumber {
			out = append(out, row)
		}
	}
	return out, nil
}

func (s *fakeDetailStore) Insert(ctx context.Context, detail *models.DocumentDetail) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.inserts++
	if s.failDesc != "" && detail.Description == s.failDesc {
		return errors.New("connection reset")
	}
	if s.dupHashes[detail.LineHash] {
		return models.ErrDuplicateDetail
	}
	for _, row := range s.rows {
		if row.SupplierNumber == detail.SupplierNumber &&
			row.DocumentSerial == detail.DocumentSerial &&
			row.DocumentNumber == detail.DocumentNumber &&
			row.LineHash == detail.LineHash {
			return models.ErrDuplicateDetail
		}
	}
	s.rows = append(s.rows, *detail)
	return nil
}

type fakeInvoiceLookup struct {
	calls   atomic.Int64
	invoice *sunat.Invoice
	err     error
}

func (f *fakeInvoiceLookup) LookupInvoice(ctx context.Context, typeCode, supplierNumber, serial, number string) (*sunat.Invoice, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.invoice, nil
}

func staticTypeCode(ctx context.Context, documentType int) (string, error) {
	return fmt.Sprintf("%02d", documentType), nil
}

func testRef() DocumentRef {
	return DocumentRef{
		DocumentId:     42,
		SupplierNumber: "20100070970",
		DocumentSerial: "F001",
		DocumentNumber: "000123",
		DocumentType:   1,
	}
}

func testInvoice() *sunat.Invoice {
	issued := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)
	return &sunat.Invoice{
		IssuerTaxId: "20100070970",
		Header: sunat.InvoiceHeader{
			Serial:       "F001",
			Number:       "000123",
			IssueDate:    &issued,
			CurrencyCode: "PEN",
			Subtotal:     decimal.RequireFromString("100.004"),
			Tax:          decimal.RequireFromString("18.0009"),
			Total:        decimal.RequireFromString("118.00"),
		},
		Items: []sunat.InvoiceItem{
			{
				Description:            "FLETE DE CARGA PLACA: ABC-123 LIMA-CALLAO",
				UnitMeasureDescription: "VIAJE",
				Quantity:               decimal.NewFromInt(1),
				UnitValue:              decimal.RequireFromString("60.004"),
				TaxValue:               decimal.RequireFromString("10.80"),
				TotalValue:             decimal.RequireFromString("70.80"),
			},
			{
				Description:            "ESTIBA Y DESESTIBA",
				UnitMeasureDescription: "SERVICIO",
				Quantity:               decimal.NewFromInt(2),
				UnitValue:              decimal.RequireFromString("40.00"),
				TaxValue:               decimal.RequireFromString("7.20"),
				TotalValue:             decimal.RequireFromString("47.20"),
			},
		},
	}
}

func TestReconcile_ValidationFailsBeforeAnyIO(t *testing.T) {
	store := &fakeDetailStore{}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	cases := []DocumentRef{
		{SupplierNumber: "123", DocumentSerial: "F001", DocumentNumber: "000123", DocumentType: 1},
		{SupplierNumber: "20100070970", DocumentSerial: "", DocumentNumber: "000123", DocumentType: 1},
		{SupplierNumber: "20100070970", DocumentSerial: "F001", DocumentNumber: "   ", DocumentType: 1},
		{SupplierNumber: "20100070970", DocumentSerial: "F001", DocumentNumber: "000123", DocumentType: 0},
	}
	for _, ref := range cases {
		_, err := engine.Reconcile(context.Background(), ref)
		var validationErr *utils.ValidationError
		if !errors.As(err, &validationErr) {
			t.Fatalf("ref %+v: expected ValidationError, got %v", ref, err)
		}
	}
	if n := gateway.calls.Load(); n != 0 {
		t.Fatalf("validation failures must not reach the gateway, got %d calls", n)
	}
	if store.inserts != 0 {
		t.Fatalf("validation failures must not reach the store, got %d inserts", store.inserts)
	}
}

func TestReconcile_SyncedEndToEnd(t *testing.T) {
	store := &fakeDetailStore{}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), testRef())
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Status != models.ReconcileStatusSynced {
		t.Fatalf("expected Synced, got %s", result.Status)
	}
	if len(result.Details) != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", len(result.Details))
	}
	if len(result.ItemErrors) != 0 {
		t.Fatalf("expected no item errors, got %v", result.ItemErrors)
	}

	// Monetary values are rounded and the total is re-derived, never trusted.
	if got := result.Aggregates.Amount.String(); got != "100" {
		t.Fatalf("amount expected 100, got %s", got)
	}
	if got := result.Aggregates.TaxAmount.String(); got != "18" {
		t.Fatalf("tax expected 18, got %s", got)
	}
	if got := result.Aggregates.TotalAmount.String(); got != "118" {
		t.Fatalf("total expected 118, got %s", got)
	}
	if result.Aggregates.Currency != "PEN" {
		t.Fatalf("currency expected PEN, got %s", result.Aggregates.Currency)
	}
	if result.Aggregates.IssueDate == nil {
		t.Fatal("issue date missing from aggregates")
	}

	// Plate is extracted where present and left nil elsewhere.
	var withPlate, withoutPlate *models.DocumentDetail
	for i := range store.rows {
		switch store.rows[i].UnitMeasureDescription {
		case "VIAJE":
			withPlate = &store.rows[i]
		case "SERVICIO":
			withoutPlate = &store.rows[i]
		}
	}
	if withPlate == nil || withPlate.VehiclePlate == nil || *withPlate.VehiclePlate != "ABC123" {
		t.Fatalf("expected plate ABC123 on the freight line, got %+v", withPlate)
	}
	if withoutPlate == nil || withoutPlate.VehiclePlate != nil {
		t.Fatalf("expected no plate on the service line, got %+v", withoutPlate)
	}
	for _, row := range store.rows {
		if row.LineHash == "" {
			t.Fatal("persisted row missing line hash")
		}
		if row.UnitValue.Exponent() < -2 {
			t.Fatalf("unit value not rounded: %s", row.UnitValue.String())
		}
	}
}

func TestReconcile_AlreadySyncedSkipsGateway(t *testing.T) {
	ref := testRef()
	store := &fakeDetailStore{rows: []models.DocumentDetail{
		{
			SupplierNumber: ref.SupplierNumber,
			DocumentSerial: ref.DocumentSerial,
			DocumentNumber: ref.DocumentNumber,
			LineHash:       "seeded",
			UnitValue:      decimal.RequireFromString("100.00"),
			TaxValue:       decimal.RequireFromString("18.00"),
			TotalValue:     decimal.RequireFromString("118.00"),
		},
	}}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), ref)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Status != models.ReconcileStatusAlreadySynced {
		t.Fatalf("expected AlreadySynced, got %s", result.Status)
	}
	if n := gateway.calls.Load(); n != 0 {
		t.Fatalf("already-synced document must not hit the gateway, got %d calls", n)
	}
	if len(result.Details) != 1 {
		t.Fatalf("expected the existing row back, got %d", len(result.Details))
	}
	if result.Mismatch != nil {
		t.Fatalf("consistent totals flagged as mismatch: %v", result.Mismatch)
	}
	if got := result.Aggregates.TotalAmount.String(); got != "118" {
		t.Fatalf("recomputed total expected 118, got %s", got)
	}
}

func TestReconcile_AlreadySyncedFlagsAggregateDrift(t *testing.T) {
	ref := testRef()
	store := &fakeDetailStore{rows: []models.DocumentDetail{
		{
			SupplierNumber: ref.SupplierNumber,
			DocumentSerial: ref.DocumentSerial,
			DocumentNumber: ref.DocumentNumber,
			LineHash:       "seeded",
			UnitValue:      decimal.RequireFromString("100.00"),
			TaxValue:       decimal.RequireFromString("18.00"),
			// Stored line total disagrees with unit+tax by more than 0.01.
			TotalValue: decimal.RequireFromString("120.00"),
		},
	}}
	engine := NewReconciliationEngine(store, &fakeInvoiceLookup{}, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), ref)
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Mismatch == nil {
		t.Fatal("expected aggregate mismatch to be flagged")
	}
	// The snapshot carries the recomputed values, not the stored ones.
	if got := result.Aggregates.TotalAmount.String(); got != "118" {
		t.Fatalf("snapshot should carry recomputed total 118, got %s", got)
	}
}

func TestReconcile_GatewayFailureIsSideEffectFree(t *testing.T) {
	store := &fakeDetailStore{}
	gateway := &fakeInvoiceLookup{err: errors.New("timeout")}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), testRef())
	var gatewayErr *utils.GatewayError
	if !errors.As(err, &gatewayErr) {
		t.Fatalf("expected GatewayError, got %v", err)
	}
	if result == nil || result.Status != models.ReconcileStatusFailed {
		t.Fatalf("expected Failed status, got %+v", result)
	}
	if store.inserts != 0 {
		t.Fatalf("gateway failure must not write anything, got %d inserts", store.inserts)
	}
}

func TestReconcile_PartialPersistFailureIsCollected(t *testing.T) {
	store := &fakeDetailStore{failDesc: "ESTIBA Y DESESTIBA"}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), testRef())
	if err != nil {
		t.Fatalf("per-item failures must not escalate, got %v", err)
	}
	if result.Status != models.ReconcileStatusSynced {
		t.Fatalf("expected Synced, got %s", result.Status)
	}
	if len(result.ItemErrors) != 1 {
		t.Fatalf("expected 1 item error, got %d", len(result.ItemErrors))
	}
	if len(result.Details) != 1 {
		t.Fatalf("the surviving line should still be persisted, got %d", len(result.Details))
	}
	// Aggregates come from the header, not from which lines survived.
	if got := result.Aggregates.TotalAmount.String(); got != "118" {
		t.Fatalf("total expected 118, got %s", got)
	}
}

func TestReconcile_ConcurrentSameKeyHitsGatewayOnce(t *testing.T) {
	store := &fakeDetailStore{}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	const concurrency = 16
	var wg sync.WaitGroup
	for i := 0; i < concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Reconcile(context.Background(), testRef()); err != nil {
				t.Errorf("Reconcile error: %v", err)
			}
		}()
	}
	wg.Wait()

	if n := gateway.calls.Load(); n != 1 {
		t.Fatalf("expected exactly one gateway call for one natural key, got %d", n)
	}
	if len(store.rows) != 2 {
		t.Fatalf("expected 2 rows with no duplicates, got %d", len(store.rows))
	}
}

func TestReconcile_DuplicateInsertCountsAsPersisted(t *testing.T) {
	// A concurrent writer on another instance can slip a row in between the
	// idempotency check and our insert. The unique line hash turns that into
	// a conflict, which must read as success, not as an item error.
	first := normalizeItem(testRef(), testInvoice().Items[0])
	store := &fakeDetailStore{dupHashes: map[string]bool{first.LineHash: true}}
	gateway := &fakeInvoiceLookup{invoice: testInvoice()}
	engine := NewReconciliationEngine(store, gateway, staticTypeCode)

	result, err := engine.Reconcile(context.Background(), testRef())
	if err != nil {
		t.Fatalf("Reconcile error: %v", err)
	}
	if result.Status != models.ReconcileStatusSynced {
		t.Fatalf("expected Synced, got %s", result.Status)
	}
	if len(result.ItemErrors) != 0 {
		t.Fatalf("duplicate conflicts must not surface as item errors, got %v", result.ItemErrors)
	}
	if len(result.Details) != 2 {
		t.Fatalf("conflicted line still counts as persisted, got %d rows", len(result.Details))
	}
}
