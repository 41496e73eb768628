// reconcile-backfill runs the reconciliation engine over documents that have
// no invoice lines yet. Useful after the tax authority gateway was down or
// when documents were bulk-imported.
//
// Usage (from backend directory):
//   DB_USER=... SUNAT_API_BASE_URL=... SUNAT_API_KEY=... go run ./cmd/reconcile-backfill -workers 4
//
// With -dry-run it only lists the candidate documents.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sync/atomic"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/models"
	"bitbucket.org/docuwareperu/docuware_backend/sunat"
	"bitbucket.org/docuwareperu/docuware_backend/workflow"
	"golang.org/x/sync/errgroup"
)

func main() {
	workers := flag.Int("workers", 4, "number of documents reconciled concurrently")
	limit := flag.Int("limit", 0, "max documents to process (0 = no limit)")
	dryRun := flag.Bool("dry-run", false, "list candidate documents without reconciling")
	flag.Parse()

	ctx := context.Background()
	logger := config.GetLogger()
	config.ConnectDatabaseWithRetry()
	db := config.GetDB()
	if db == nil {
		fmt.Fprintln(os.Stderr, "database not initialized (config.GetDB returned nil). Set DB_* env vars.")
		os.Exit(1)
	}

	// Documents without a single detail row are the backfill candidates.
	sql := `
SELECT doc.documentid
FROM documents doc
LEFT JOIN document_details det
    ON det.suppliernumber = doc.suppliernumber
    AND det.documentserial = doc.documentserial
    AND det.documentnumber = doc.documentnumber
WHERE det.detailid IS NULL
GROUP BY doc.documentid
ORDER BY doc.documentid ASC
`
	var ids []int
	if err := db.WithContext(ctx).Raw(sql).Scan(&ids).Error; err != nil {
		fmt.Fprintf(os.Stderr, "failed to list candidate documents: %v\n", err)
		os.Exit(1)
	}
	if *limit > 0 && len(ids) > *limit {
		ids = ids[:*limit]
	}
	fmt.Printf("%d documents without details\n", len(ids))
	if *dryRun || len(ids) == 0 {
		for _, id := range ids {
			fmt.Println(id)
		}
		return
	}

	client, err := sunat.NewClient()
	if err != nil {
		fmt.Fprintf(os.Stderr, "tax authority gateway not configured: %v\n", err)
		os.Exit(1)
	}
	engine := workflow.NewReconciliationEngine(
		models.GormDetailStore{},
		client,
		models.GetDocumentTypeCode,
		workflow.WithLogger(logger),
	)

	var synced, failed atomic.Int64
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(*workers)
	for _, id := range ids {
		id := id
		group.Go(func() error {
			doc, err := models.GetDocument(groupCtx, id)
			if err != nil {
				fmt.Fprintf(os.Stderr, "document %d: %v\n", id, err)
				failed.Add(1)
				return nil
			}
			result, err := engine.Reconcile(groupCtx, workflow.DocumentRef{
				DocumentId:     doc.DocumentId,
				SupplierNumber: doc.SupplierNumber,
				DocumentSerial: doc.DocumentSerial,
				DocumentNumber: doc.DocumentNumber,
				DocumentType:   doc.DocumentType,
			})
			if err != nil {
				fmt.Fprintf(os.Stderr, "document %d: %v\n", id, err)
				failed.Add(1)
				return nil
			}
			if result.Status == models.ReconcileStatusSynced {
				if err := models.PatchDocumentAggregates(groupCtx, id, result.Aggregates); err != nil {
					fmt.Fprintf(os.Stderr, "document %d: aggregate write failed: %v\n", id, err)
					failed.Add(1)
					return nil
				}
			}
			synced.Add(1)
			fmt.Printf("document %d: %s (%d lines, %d line errors)\n",
				id, result.Status, len(result.Details), len(result.ItemErrors))
			return nil
		})
	}
	group.Wait()

	fmt.Printf("done: %d reconciled, %d failed\n", synced.Load(), failed.Load())
	if failed.Load() > 0 {
		os.Exit(1)
	}
}
