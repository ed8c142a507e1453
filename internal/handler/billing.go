package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"ridemeter/internal/domain"
	"ridemeter/internal/service"
)

// BillingHandler handles HTTP requests for a driver's metered billing.
type BillingHandler struct {
	registry *service.SessionRegistry
	receipts *service.ReceiptService
}

// NewBillingHandler creates a new BillingHandler.
func NewBillingHandler(registry *service.SessionRegistry, receipts *service.ReceiptService) *BillingHandler {
	return &BillingHandler{registry: registry, receipts: receipts}
}

// RecordsResponse is the HTTP response for the ledger.
type RecordsResponse struct {
	DriverID string                 `json:"driver_id"`
	Records  []domain.BillingRecord `json:"records"`
}

// SyncResponse is the HTTP response for a manual sync.
type SyncResponse struct {
	Synced bool `json:"synced"`
}

func (h *BillingHandler) meter(c *gin.Context) (*service.BillingMeter, bool) {
	session, err := h.registry.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return nil, false
	}
	return session.Billing(), true
}

// Live handles GET /v1/drivers/:id/billing/live
func (h *BillingHandler) Live(c *gin.Context) {
	meter, ok := h.meter(c)
	if !ok {
		return
	}

	live, err := meter.LiveState(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	respondJSON(c, http.StatusOK, live)
}

// Records handles GET /v1/drivers/:id/billing/records
func (h *BillingHandler) Records(c *gin.Context) {
	meter, ok := h.meter(c)
	if !ok {
		return
	}

	records, err := meter.Records(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if records == nil {
		records = []domain.BillingRecord{}
	}

	respondJSON(c, http.StatusOK, RecordsResponse{DriverID: c.Param("id"), Records: records})
}

// Clear handles DELETE /v1/drivers/:id/billing/records
func (h *BillingHandler) Clear(c *gin.Context) {
	meter, ok := h.meter(c)
	if !ok {
		return
	}

	if err := meter.ClearRecords(c.Request.Context()); err != nil {
		respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Sync handles POST /v1/drivers/:id/billing/sync
func (h *BillingHandler) Sync(c *gin.Context) {
	meter, ok := h.meter(c)
	if !ok {
		return
	}

	respondJSON(c, http.StatusOK, SyncResponse{Synced: meter.SyncWithBackend(c.Request.Context())})
}

// Summary handles GET /v1/drivers/:id/billing/summary
func (h *BillingHandler) Summary(c *gin.Context) {
	meter, ok := h.meter(c)
	if !ok {
		return
	}

	records, err := meter.Records(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}

	summary := h.receipts.Summarize(c.Param("id"), meter.Config().Currency, records)
	if c.Query("format") == "text" {
		c.String(http.StatusOK, h.receipts.FormatReceipt(summary))
		return
	}

	respondJSON(c, http.StatusOK, summary)
}
