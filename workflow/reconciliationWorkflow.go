package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/models"
	"bitbucket.org/docuwareperu/docuware_backend/sunat"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"github.com/bsm/redislock"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// DetailStore is the persistence surface the engine writes through. Insert
// must report models.ErrDuplicateDetail on a line-hash conflict so the
// engine can count the row as already persisted.
type DetailStore interface {
	ListByNaturalKey(ctx context.Context, supplierNumber, documentSerial, documentNumber string) ([]models.DocumentDetail, error)
	Insert(ctx context.Context, detail *models.DocumentDetail) error
}

// InvoiceLookup fetches the canonical invoice from the tax authority.
type InvoiceLookup interface {
	LookupInvoice(ctx context.Context, typeCode, supplierNumber, serial, number string) (*sunat.Invoice, error)
}

// RegistryLookup resolves a taxpayer's legal name. Not-found is not an
// error: it returns ("", false, nil).
type RegistryLookup interface {
	LookupName(ctx context.Context, taxId string) (string, bool, error)
}

// TypeCodeResolver maps the internal document-type id to the authority's
// two-digit code.
type TypeCodeResolver func(ctx context.Context, documentType int) (string, error)

// DocumentRef carries the natural key the engine reconciles on.
type DocumentRef struct {
	DocumentId     int
	SupplierNumber string
	DocumentSerial string
	DocumentNumber string
	DocumentType   int
}

func (r DocumentRef) naturalKey() string {
	return fmt.Sprintf("%s:%s:%s", r.SupplierNumber, r.DocumentSerial, r.DocumentNumber)
}

// ReconciliationResult reports what the engine did for one document.
//
// Status Synced means the invoice was fetched and its lines persisted;
// Details holds the rows actually written this call and ItemErrors any
// per-line failures. Status AlreadySynced means rows already existed and
// no gateway call was made; Details holds the existing rows and Mismatch
// is set when their recomputed totals disagree with the stored aggregates.
// Status Failed only occurs together with a returned error.
type ReconciliationResult struct {
	Status     models.ReconcileStatus
	Details    []models.DocumentDetail
	Aggregates models.DocumentAggregates
	ItemErrors []*utils.PersistError
	Mismatch   *utils.AggregateMismatchError
}

// ReconciliationEngine drives the document-to-tax-authority sync. Safe for
// concurrent use; calls for the same natural key are serialized.
type ReconciliationEngine struct {
	details     DetailStore
	invoices    InvoiceLookup
	resolveType TypeCodeResolver
	keys        *keyedMutex
	locker      *redislock.Client
	logger      *logrus.Logger
	workers     int
}

type EngineOption func(*ReconciliationEngine)

// WithRedisLocker adds a best-effort cross-instance lock around the write
// phase. The engine still works without it.
func WithRedisLocker(locker *redislock.Client) EngineOption {
	return func(e *ReconciliationEngine) {
		e.locker = locker
	}
}

func WithLogger(logger *logrus.Logger) EngineOption {
	return func(e *ReconciliationEngine) {
		e.logger = logger
	}
}

// WithWorkers bounds the number of concurrent detail inserts per call.
func WithWorkers(n int) EngineOption {
	return func(e *ReconciliationEngine) {
		if n > 0 {
			e.workers = n
		}
	}
}

func NewReconciliationEngine(details DetailStore, invoices InvoiceLookup, resolveType TypeCodeResolver, opts ...EngineOption) *ReconciliationEngine {
	engine := &ReconciliationEngine{
		details:     details,
		invoices:    invoices,
		resolveType: resolveType,
		keys:        newKeyedMutex(),
		logger:      logrus.StandardLogger(),
		workers:     4,
	}
	for _, opt := range opts {
		opt(engine)
	}
	return engine
}

// Reconcile checks whether the document's invoice lines already exist
// locally and, if not, fetches the invoice from the tax authority, persists
// its lines exactly once, and returns the recomputed monetary aggregates.
// The caller owns persisting the aggregate snapshot back to the document.
func (e *ReconciliationEngine) Reconcile(ctx context.Context, ref DocumentRef) (*ReconciliationResult, error) {
	if err := validateRef(ref); err != nil {
		return nil, err
	}

	typeCode, err := e.resolveType(ctx, ref.DocumentType)
	if err != nil {
		return nil, utils.NewValidationError("documenttype",
			fmt.Sprintf("unresolvable document type %d: %v", ref.DocumentType, err))
	}

	key := ref.naturalKey()
	unlock := e.keys.lock(key)
	defer unlock()

	redisLock := obtainRedisLock(ctx, e.locker, e.logger, key)
	defer releaseRedisLock(ctx, e.logger, redisLock, key)

	existing, err := e.details.ListByNaturalKey(ctx, ref.SupplierNumber, ref.DocumentSerial, ref.DocumentNumber)
	if err != nil {
		return nil, err
	}
	if len(existing) > 0 {
		return e.alreadySynced(ref, existing), nil
	}

	invoice, err := e.invoices.LookupInvoice(ctx, typeCode, ref.SupplierNumber, ref.DocumentSerial, ref.DocumentNumber)
	if err != nil {
		var gatewayErr *utils.GatewayError
		if !errors.As(err, &gatewayErr) {
			err = utils.NewGatewayError("sunat", "invoice lookup failed", err)
		}
		return &ReconciliationResult{Status: models.ReconcileStatusFailed}, err
	}

	aggregates := headerAggregates(invoice)

	rows := make([]models.DocumentDetail, len(invoice.Items))
	for i, item := range invoice.Items {
		rows[i] = normalizeItem(ref, item)
	}

	persisted, itemErrors := e.persistDetails(ctx, rows)

	e.logger.WithFields(logrus.Fields{
		"funcName":   "Reconcile",
		"documentid": ref.DocumentId,
		"key":        key,
		"items":      len(rows),
		"persisted":  len(persisted),
		"failed":     len(itemErrors),
	}).Info("document reconciled")

	return &ReconciliationResult{
		Status:     models.ReconcileStatusSynced,
		Details:    persisted,
		Aggregates: aggregates,
		ItemErrors: itemErrors,
	}, nil
}

func validateRef(ref DocumentRef) error {
	if !utils.IsValidRuc(ref.SupplierNumber) {
		return utils.NewValidationError("suppliernumber", "must be an 11-digit RUC")
	}
	if strings.TrimSpace(ref.DocumentSerial) == "" {
		return utils.NewValidationError("documentserial", "required")
	}
	if strings.TrimSpace(ref.DocumentNumber) == "" {
		return utils.NewValidationError("documentnumber", "required")
	}
	if ref.DocumentType <= 0 {
		return utils.NewValidationError("documenttype", "required")
	}
	return nil
}

// alreadySynced recomputes the aggregates from the existing rows so the
// caller can detect drift between stored totals and the detail rows.
func (e *ReconciliationEngine) alreadySynced(ref DocumentRef, existing []models.DocumentDetail) *ReconciliationResult {
	amount := decimal.Zero
	tax := decimal.Zero
	for _, row := range existing {
		amount = amount.Add(row.UnitValue)
		tax = tax.Add(row.TaxValue)
	}
	amount = utils.Round2(amount)
	tax = utils.Round2(tax)
	total := utils.CalculateTotalFromTax(amount, tax)

	result := &ReconciliationResult{
		Status:  models.ReconcileStatusAlreadySynced,
		Details: existing,
		Aggregates: models.DocumentAggregates{
			Amount:      amount,
			TaxAmount:   tax,
			TotalAmount: total,
		},
	}

	storedTotal := decimal.Zero
	for _, row := range existing {
		storedTotal = storedTotal.Add(row.TotalValue)
	}
	storedTotal = utils.Round2(storedTotal)
	if !utils.WithinTolerance(storedTotal, total) {
		result.Mismatch = utils.NewAggregateMismatchError(storedTotal.String(), total.String())
		e.logger.WithFields(logrus.Fields{
			"funcName":   "alreadySynced",
			"documentid": ref.DocumentId,
			"stored":     storedTotal.String(),
			"recomputed": total.String(),
		}).Warn("stored detail totals disagree with recomputed aggregates")
	}
	return result
}

func headerAggregates(invoice *sunat.Invoice) models.DocumentAggregates {
	amount := utils.Round2(invoice.Header.Subtotal)
	tax := utils.Round2(invoice.Header.Tax)
	return models.DocumentAggregates{
		Currency:    invoice.Header.CurrencyCode,
		Amount:      amount,
		TaxAmount:   tax,
		TotalAmount: utils.CalculateTotalFromTax(amount, tax),
		IssueDate:   invoice.Header.IssueDate,
	}
}

func normalizeItem(ref DocumentRef, item sunat.InvoiceItem) models.DocumentDetail {
	detail := models.DocumentDetail{
		SupplierNumber:         ref.SupplierNumber,
		DocumentSerial:         ref.DocumentSerial,
		DocumentNumber:         ref.DocumentNumber,
		UnitMeasureDescription: item.UnitMeasureDescription,
		Description:            item.Description,
		Quantity:               item.Quantity,
		UnitValue:              utils.Round2(item.UnitValue),
		TaxValue:               utils.Round2(item.TaxValue),
		TotalValue:             utils.Round2(item.TotalValue),
		Status:                 true,
	}
	if plate, ok := utils.ExtractPlate(item.Description); ok {
		detail.VehiclePlate = &plate
	}
	detail.LineHash = models.ComputeLineHash(
		detail.Description,
		detail.UnitMeasureDescription,
		detail.Quantity,
		detail.UnitValue,
		detail.TaxValue,
		detail.TotalValue,
	)
	return detail
}

// persistDetails writes the rows with a bounded worker pool. Each insert is
// independent: one failure is recorded and the rest still get their attempt.
// A line-hash conflict means another writer (or an earlier partial run)
// already persisted the row, so it counts as success.
func (e *ReconciliationEngine) persistDetails(ctx context.Context, rows []models.DocumentDetail) ([]models.DocumentDetail, []*utils.PersistError) {
	var mu sync.Mutex
	persisted := make([]models.DocumentDetail, 0, len(rows))
	var itemErrors []*utils.PersistError

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(e.workers)
	for i := range rows {
		lineNo := i + 1
		row := rows[i]
		group.Go(func() error {
			err := e.insertWithRetry(groupCtx, &row)
			mu.Lock()
			defer mu.Unlock()
			if err != nil && !errors.Is(err, models.ErrDuplicateDetail) {
				itemErrors = append(itemErrors, utils.NewPersistError(lineNo, err))
				return nil
			}
			persisted = append(persisted, row)
			return nil
		})
	}
	group.Wait()

	return persisted, itemErrors
}

func (e *ReconciliationEngine) insertWithRetry(ctx context.Context, detail *models.DocumentDetail) error {
	var err error
	for attempt := 0; attempt < 3; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		err = e.details.Insert(ctx, detail)
		if err == nil || errors.Is(err, models.ErrDuplicateDetail) {
			return err
		}
	}
	return err
}
