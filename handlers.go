package main

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"bitbucket.org/docuwareperu/docuware_backend/config"
	"bitbucket.org/docuwareperu/docuware_backend/models"
	"bitbucket.org/docuwareperu/docuware_backend/models/reports"
	"bitbucket.org/docuwareperu/docuware_backend/utils"
	"bitbucket.org/docuwareperu/docuware_backend/workflow"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

var tracer = otel.Tracer("docuware-backend")

// app bundles the long-lived collaborators the handlers need. The engine
// and resolver are nil until the external gateways are configured; the
// readiness gate keeps traffic away until then.
type app struct {
	engine   *workflow.ReconciliationEngine
	resolver *workflow.SupplierResolver
}

func loginHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		info, err := models.Login(c.Request.Context(), &input)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, info)
	}
}

func logoutHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, err := models.Logout(c.Request.Context()); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

func listDocumentsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := models.DocumentFilter{
			Search: c.Query("search"),
			Status: c.DefaultQuery("status", "all"),
		}
		if from, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
			filter.DateFrom = &from
		}
		if to, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
			filter.DateTo = &to
		}
		filter.Page, _ = strconv.Atoi(c.DefaultQuery("page", "1"))
		filter.PageSize, _ = strconv.Atoi(c.DefaultQuery("page_size", "20"))

		page, err := models.GetDocuments(c.Request.Context(), filter)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, page)
	}
}

func getDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		doc, err := models.GetDocument(c.Request.Context(), id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func (a *app) createDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.NewDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}

		// Fill in the legal name from the registry when the client didn't
		// send one. A failed or empty lookup just leaves it blank.
		if input.SupplierName == "" && a.resolver != nil {
			if name, found, err := a.resolver.ResolveName(c.Request.Context(), input.SupplierNumber); err == nil && found {
				input.SupplierName = name
			}
		}

		doc, err := models.CreateDocument(c.Request.Context(), &input)
		if err != nil {
			var validationErr *utils.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, doc)
	}
}

func patchDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		var input models.PatchDocument
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		doc, err := models.UpdateDocument(c.Request.Context(), id, &input)
		if err != nil {
			var validationErr *utils.ValidationError
			switch {
			case errors.Is(err, utils.ErrorRecordNotFound):
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
			case errors.As(err, &validationErr):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}
		c.JSON(http.StatusOK, doc)
	}
}

func deleteDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		if err := models.DeleteDocument(c.Request.Context(), id); err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true})
	}
}

// reconcileDocumentHandler runs the engine for one document and, when new
// aggregates are produced, writes the snapshot back to the document row.
func (a *app) reconcileDocumentHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.engine == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "tax authority gateway is not configured"})
			return
		}
		id, err := strconv.Atoi(c.Param("id"))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid document id"})
			return
		}
		ctx, span := tracer.Start(c.Request.Context(), "document.reconcile")
		span.SetAttributes(attribute.Int("document.id", id))
		defer span.End()

		doc, err := models.GetDocument(ctx, id)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "document not found"})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}

		result, err := a.engine.Reconcile(ctx, workflow.DocumentRef{
			DocumentId:     doc.DocumentId,
			SupplierNumber: doc.SupplierNumber,
			DocumentSerial: doc.DocumentSerial,
			DocumentNumber: doc.DocumentNumber,
			DocumentType:   doc.DocumentType,
		})
		if err != nil {
			var validationErr *utils.ValidationError
			var gatewayErr *utils.GatewayError
			switch {
			case errors.As(err, &validationErr):
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
			case errors.As(err, &gatewayErr):
				c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			default:
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			}
			return
		}

		// Synced always carries a fresh snapshot. AlreadySynced only needs a
		// write-back when the stored totals drifted from the detail rows.
		if result.Status == models.ReconcileStatusSynced || result.Mismatch != nil {
			if err := models.PatchDocumentAggregates(ctx, id, result.Aggregates); err != nil {
				config.LogError(config.GetLogger(), "handlers.go", "reconcileDocumentHandler",
					"PatchDocumentAggregates", id, err)
				c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
				return
			}
		}

		response := gin.H{
			"status":  result.Status,
			"details": result.Details,
		}
		if len(result.ItemErrors) > 0 {
			messages := make([]string, 0, len(result.ItemErrors))
			for _, itemErr := range result.ItemErrors {
				messages = append(messages, itemErr.Error())
			}
			response["item_errors"] = messages
		}
		if result.Mismatch != nil {
			response["mismatch"] = result.Mismatch.Error()
		}
		c.JSON(http.StatusOK, response)
	}
}

func (a *app) supplierNameHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		if a.resolver == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "taxpayer registry is not configured"})
			return
		}
		ruc := c.Param("ruc")
		if !utils.IsValidRuc(ruc) {
			c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "must be an 11-digit RUC"})
			return
		}
		name, found, err := a.resolver.ResolveName(c.Request.Context(), ruc)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "taxpayer not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ruc": ruc, "legal_name": name})
	}
}

func documentTypesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		types, err := models.GetDocumentTypes(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, types)
	}
}

func costCentersHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		centers, err := models.GetCostCenters(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, centers)
	}
}

func vehiclesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		vehicles, err := models.GetVehicles(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, vehicles)
	}
}

func driversHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		drivers, err := models.GetDrivers(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, drivers)
	}
}

func dailySchedulesHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		rows, err := models.GetDailySchedules(c.Request.Context())
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, rows)
	}
}

func createDailyScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var input models.DailyScheduleInput
		if err := c.ShouldBindJSON(&input); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		row, err := models.CreateDailySchedule(c.Request.Context(), &input)
		if err != nil {
			var validationErr *utils.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusCreated, row)
	}
}

// patchDailyScheduleHandler takes the schedule id in the body, matching the
// board client which patches the collection path.
func patchDailyScheduleHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var patch models.DailySchedulePatch
		if err := c.ShouldBindJSON(&patch); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"errors": utils.ProcessValidationErrors(err)})
			return
		}
		row, err := models.PatchDailySchedule(c.Request.Context(), &patch)
		if err != nil {
			if errors.Is(err, utils.ErrorRecordNotFound) {
				c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
				return
			}
			var validationErr *utils.ValidationError
			if errors.As(err, &validationErr) {
				c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
				return
			}
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, row)
	}
}

func reportFilters(c *gin.Context) (from, to *time.Time, status *bool) {
	if t, err := time.Parse("2006-01-02", c.Query("from")); err == nil {
		from = &t
	}
	if t, err := time.Parse("2006-01-02", c.Query("to")); err == nil {
		to = &t
	}
	if s := c.Query("status"); s != "" {
		if b, err := strconv.ParseBool(s); err == nil {
			status = &b
		}
	}
	return from, to, status
}

func documentsAllHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, status := reportFilters(c)
		rows, err := reports.GetDocumentDetailReport(c.Request.Context(), from, to, status)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": rows, "total": len(rows)})
	}
}

func documentsAllExportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		from, to, status := reportFilters(c)
		c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Header("Content-Disposition", "attachment; filename="+reports.ExcelFilename("documentos"))
		if err := reports.ExportDocumentDetailExcel(c.Request.Context(), c.Writer, from, to, status); err != nil {
			config.LogError(config.GetLogger(), "handlers.go", "documentsAllExportHandler",
				"ExportDocumentDetailExcel", nil, err)
			c.Status(http.StatusInternalServerError)
		}
	}
}
