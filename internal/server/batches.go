package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/zxj6827111-blip/tianbaoxitong-sub000/constants"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/export"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/repository"
	"github.com/zxj6827111-blip/tianbaoxitong-sub000/internal/review"
)

// BatchHandler exposes the extraction pipeline and review workflow
// over HTTP.
type BatchHandler struct {
	svc    *review.Service
	export *export.Service
	logger *slog.Logger
}

func NewBatchHandler(svc *review.Service, exportSvc *export.Service, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{svc: svc, export: exportSvc, logger: logger}
}

type createBatchRequest struct {
	SourceDocumentID string             `json:"source_document_id" binding:"required"`
	UnitID           string             `json:"unit_id" binding:"required"`
	Year             int                `json:"year" binding:"required"`
	XLSXPath         string             `json:"xlsx_path"`
	PDFPath          string             `json:"pdf_path"`
	UseAI            bool               `json:"use_ai"`
	ManualValues     map[string]float64 `json:"manual_values"`
}

func (h *BatchHandler) Create(c *gin.Context) {
	var req createBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.XLSXPath == "" && req.PDFPath == "" {
		fail(c, http.StatusBadRequest, "at least one of xlsx_path, pdf_path is required")
		return
	}

	summary, err := h.svc.Create(c.Request.Context(), review.CreateRequest{
		SourceDocumentID: req.SourceDocumentID,
		UnitID:           req.UnitID,
		Year:             req.Year,
		XLSXPath:         req.XLSXPath,
		PDFPath:          req.PDFPath,
		UseAI:            req.UseAI,
		ManualValues:     req.ManualValues,
	})
	if err != nil {
		failError(c, err)
		return
	}
	success(c, summary)
}

func (h *BatchHandler) List(c *gin.Context) {
	filter := repository.ListFilter{
		Status: constants.BatchStatus(c.Query("status")),
		UnitID: c.Query("unit_id"),
	}
	if y := c.Query("year"); y != "" {
		year, err := strconv.Atoi(y)
		if err != nil {
			fail(c, http.StatusBadRequest, "year must be an integer")
			return
		}
		filter.Year = year
	}

	batches, err := h.svc.List(c.Request.Context(), filter)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, gin.H{"batches": batches, "total": len(batches)})
}

func (h *BatchHandler) Get(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, detail)
}

type patchFieldRequest struct {
	Token          string   `json:"token" binding:"required"`
	CorrectedValue *float64 `json:"corrected_value"`
	Confirmed      *bool    `json:"confirmed"`
}

func (h *BatchHandler) PatchField(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	key := c.Param("key")
	var req patchFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.CorrectedValue == nil && req.Confirmed == nil {
		fail(c, http.StatusBadRequest, "nothing to patch")
		return
	}

	if err := h.svc.PatchField(c.Request.Context(), id, key, req.Token, req.CorrectedValue, req.Confirmed); err != nil {
		failError(c, err)
		return
	}
	detail, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, gin.H{"token": detail.Batch.Token()})
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

func (h *BatchHandler) MarkReviewed(c *gin.Context) {
	h.transition(c, h.svc.MarkReviewed)
}

func (h *BatchHandler) Reject(c *gin.Context) {
	h.transition(c, h.svc.Reject)
}

func (h *BatchHandler) transition(c *gin.Context, op func(ctx context.Context, id uuid.UUID, token string) (string, error)) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}
	token, err := op(c.Request.Context(), id, req.Token)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, gin.H{"token": token})
}

func (h *BatchHandler) Commit(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}
	result, err := h.svc.Commit(c.Request.Context(), id, req.Token)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, result)
}

func (h *BatchHandler) Delete(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "token is required")
		return
	}
	result, err := h.svc.Delete(c.Request.Context(), id, req.Token)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, result)
}

type diagnoseRequest struct {
	SourceDocumentID string `json:"source_document_id" binding:"required"`
	XLSXPath         string `json:"xlsx_path"`
	PDFPath          string `json:"pdf_path"`
}

func (h *BatchHandler) Diagnose(c *gin.Context) {
	var req diagnoseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	diags, err := h.svc.Diagnose(req.SourceDocumentID, req.XLSXPath, req.PDFPath)
	if err != nil {
		failError(c, err)
		return
	}
	success(c, gin.H{"tables": diags})
}

func (h *BatchHandler) Export(c *gin.Context) {
	id, ok := batchID(c)
	if !ok {
		return
	}
	data, err := h.export.ExportBatchXLSX(c.Request.Context(), id)
	if err != nil {
		failError(c, err)
		return
	}
	filename := fmt.Sprintf("batch-%s.xlsx", id.String())
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", data)
}

func batchID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		fail(c, http.StatusBadRequest, "invalid batch id")
		return uuid.Nil, false
	}
	return id, true
}
