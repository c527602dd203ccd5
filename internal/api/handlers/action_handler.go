package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/domain"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/ingest"
	"github.com/udaykumar0515/intellistock-ai-for-good/internal/service"
)

const maxUploadBytes = 32 << 20

type ActionHandler struct {
	actions *service.ActionService
	ingest  *service.IngestService
}

func NewActionHandler(actions *service.ActionService, ingest *service.IngestService) *ActionHandler {
	return &ActionHandler{actions: actions, ingest: ingest}
}

func (h *ActionHandler) PlaceOrder(c *gin.Context) {
	var req service.OrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, "invalid order payload", fmt.Errorf("%w: %v", service.ErrInvalidOrder, err))
		return
	}
	if req.OrderedBy == "" {
		req.OrderedBy = actorOf(c)
	}
	order, err := h.actions.PlaceOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, "failed to record order", err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *ActionHandler) ListOrders(c *gin.Context) {
	since, err := queryDate(c, "since")
	if err != nil {
		respondError(c, "invalid since", err)
		return
	}
	orders, err := h.actions.Orders(c.Request.Context(), since)
	if err != nil {
		respondError(c, "failed to fetch orders", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": orders})
}

func (h *ActionHandler) ListActions(c *gin.Context) {
	since, err := queryDate(c, "since")
	if err != nil {
		respondError(c, "invalid since", err)
		return
	}
	limit, err := queryInt(c, "limit", 100)
	if err != nil {
		respondError(c, "invalid limit", err)
		return
	}
	actions, err := h.actions.Actions(c.Request.Context(), since, limit)
	if err != nil {
		respondError(c, "failed to fetch actions", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"actions": actions})
}

type ledgerRow struct {
	Date         string `json:"date" binding:"required"`
	Organization string `json:"organization" binding:"required"`
	Location     string `json:"location" binding:"required"`
	Item         string `json:"item" binding:"required"`
	OpeningStock int64  `json:"opening_stock"`
	Received     int64  `json:"received"`
	Issued       int64  `json:"issued"`
	ClosingStock int64  `json:"closing_stock"`
	LeadTimeDays int    `json:"lead_time_days"`
}

type ledgerBatch struct {
	Source  string      `json:"source"`
	Records []ledgerRow `json:"records" binding:"required,dive"`
}

// IngestLedger accepts a validated JSON batch of daily ledger rows.
func (h *ActionHandler) IngestLedger(c *gin.Context) {
	var batch ledgerBatch
	if err := c.ShouldBindJSON(&batch); err != nil {
		respondError(c, "invalid ledger payload", fmt.Errorf("%w: %v", service.ErrInvalidBatch, err))
		return
	}

	records := make([]domain.LedgerRecord, 0, len(batch.Records))
	for i, row := range batch.Records {
		date, err := time.Parse(domain.DateLayout, strings.TrimSpace(row.Date))
		if err != nil {
			respondError(c, "invalid ledger payload", fmt.Errorf("%w: record %d date %q", service.ErrInvalidBatch, i, row.Date))
			return
		}
		records = append(records, domain.LedgerRecord{
			Date:         date,
			Organization: row.Organization,
			Location:     row.Location,
			Item:         row.Item,
			OpeningStock: row.OpeningStock,
			Received:     row.Received,
			Issued:       row.Issued,
			ClosingStock: row.ClosingStock,
			LeadTimeDays: row.LeadTimeDays,
		})
	}

	res, err := h.ingest.IngestBatch(c.Request.Context(), batch.Source, records)
	if err != nil {
		respondError(c, "failed to ingest ledger batch", err)
		return
	}
	c.JSON(http.StatusAccepted, res)
}

// UploadLedger ingests CSV or XLSX sheets sent as multipart "files".
func (h *ActionHandler) UploadLedger(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)
	form, err := c.MultipartForm()
	if err != nil {
		respondError(c, "invalid form data", fmt.Errorf("%w: %v", service.ErrInvalidBatch, err))
		return
	}
	files := form.File["files"]
	if len(files) == 0 {
		respondError(c, "no files provided", fmt.Errorf("%w: no files", service.ErrInvalidBatch))
		return
	}

	results := make([]ingest.Result, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			respondError(c, "failed to open upload", err)
			return
		}
		res, err := h.ingest.IngestFile(c.Request.Context(), fh.Filename, f)
		f.Close()
		if err != nil {
			respondError(c, "failed to ingest "+fh.Filename, err)
			return
		}
		results = append(results, res)
	}
	c.JSON(http.StatusAccepted, gin.H{"results": results})
}

// ImportLedger pulls sheets from the configured object store.
func (h *ActionHandler) ImportLedger(c *gin.Context) {
	results, err := h.ingest.ImportObjects(c.Request.Context(), c.Query("prefix"))
	if err != nil {
		respondError(c, "failed to import ledger objects", err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"results": results})
}
