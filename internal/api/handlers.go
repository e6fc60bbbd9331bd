package api

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/anamnesis-symptom-engine/internal/anamnesis"
	"github.com/anamnesis-symptom-engine/internal/domain"
	"github.com/anamnesis-symptom-engine/internal/explain"
	"github.com/anamnesis-symptom-engine/internal/metrics"
	"github.com/anamnesis-symptom-engine/internal/store"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
	maxBatchTexts   = 1000
)

// ExtractRequest is the body of POST /extract.
type ExtractRequest struct {
	Text string `json:"text"`
}

// BatchExtractRequest is the body of POST /extract/batch.
type BatchExtractRequest struct {
	Texts []string `json:"texts" binding:"required"`
}

// MergeRequest is the body of POST /merge.
type MergeRequest struct {
	Records []map[string]domain.SymptomStatus `json:"records"`
}

// ExplainRequest is the body of POST /explain. Without a prediction the
// configured classifier is asked for one.
type ExplainRequest struct {
	Statuses   map[string]domain.SymptomStatus `json:"statuses"`
	Prediction *explain.Prediction             `json:"prediction,omitempty"`
}

// MessageRequest is the body of POST /patients/:id/messages.
type MessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// RecordResponse presents a record both as named statuses and as the
// numeric vector used by classifiers.
type RecordResponse struct {
	Symptoms []anamnesis.Entry              `json:"symptoms"`
	Statuses map[string]domain.SymptomStatus `json:"statuses"`
	Vector   []int                          `json:"vector"`
}

// BatchItem is one entry of a batch extraction response.
type BatchItem struct {
	Index  int             `json:"index"`
	Record *RecordResponse `json:"record"`
	Error  string          `json:"error,omitempty"`
}

// PatientResponse is a stored patient with its current record.
type PatientResponse struct {
	PatientID      string          `json:"patient_id"`
	CatalogVersion string          `json:"catalog_version"`
	MessageCount   int             `json:"message_count"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	Record         *RecordResponse `json:"record"`
}

// MessageResponse is returned after a patient message is applied.
type MessageResponse struct {
	Patient *PatientResponse `json:"patient"`
	Message *RecordResponse  `json:"message"`
}

func newRecordResponse(r *anamnesis.Record) *RecordResponse {
	return &RecordResponse{
		Symptoms: r.Entries(),
		Statuses: r.Map(),
		Vector:   r.Vector(),
	}
}

func newPatientResponse(p *store.PatientRecord, r *anamnesis.Record) *PatientResponse {
	return &PatientResponse{
		PatientID:      p.PatientID,
		CatalogVersion: p.CatalogVersion,
		MessageCount:   p.MessageCount,
		CreatedAt:      p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      p.UpdatedAt.UTC().Format(time.RFC3339),
		Record:         newRecordResponse(r),
	}
}

func (s *Server) handleListSymptoms(c *gin.Context) {
	cat := s.service.Catalog()
	c.JSON(http.StatusOK, gin.H{
		"version":  cat.Version(),
		"symptoms": cat.Symptoms(),
	})
}

func (s *Server) handleExtract(c *gin.Context) {
	var req ExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}

	r, err := s.service.ExtractText(c.Request.Context(), req.Text)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRecordResponse(r))
}

func (s *Server) handleExtractBatch(c *gin.Context) {
	var req BatchExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}
	if len(req.Texts) > maxBatchTexts {
		s.respondError(c, domain.NewValidationError("texts", "too many texts in one batch", len(req.Texts)))
		return
	}

	results := s.service.ExtractBatch(c.Request.Context(), req.Texts)
	items := make([]BatchItem, len(results))
	for i, r := range results {
		items[i] = BatchItem{Index: r.Index, Record: newRecordResponse(r.Record)}
		if r.Err != nil {
			items[i].Error = r.Err.Error()
		}
	}
	c.JSON(http.StatusOK, gin.H{"results": items})
}

func (s *Server) handleMerge(c *gin.Context) {
	var req MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}

	r, err := s.service.MergeRecords(req.Records)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newRecordResponse(r))
}

func (s *Server) handleExplain(c *gin.Context) {
	var req ExplainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}

	explanation, err := s.service.Explain(c.Request.Context(), req.Statuses, req.Prediction)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, explanation)
}

// handleMetrics scores a showcase CSV posted as the request body. The
// encoding query parameter selects the cell encoding; format=csv returns
// the per-symptom table as CSV instead of JSON.
func (s *Server) handleMetrics(c *gin.Context) {
	enc, err := metrics.ParseEncoding(c.Query("encoding"))
	if err != nil {
		s.respondError(c, domain.NewValidationError("encoding", err.Error(), c.Query("encoding")))
		return
	}

	report, err := s.service.EvaluateShowcase(c.Request.Body, enc)
	if err != nil {
		s.respondError(c, domain.NewValidationError("body", err.Error(), nil))
		return
	}

	if strings.EqualFold(c.Query("format"), "csv") {
		var buf bytes.Buffer
		if err := metrics.WriteReport(&buf, report); err != nil {
			s.respondError(c, err)
			return
		}
		c.Data(http.StatusOK, "text/csv; charset=utf-8", buf.Bytes())
		return
	}
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleListPatients(c *gin.Context) {
	limit, err := queryInt(c, "limit", defaultPageSize)
	if err != nil || limit <= 0 || limit > maxPageSize {
		s.respondError(c, domain.NewValidationError("limit", "limit must be between 1 and 500", c.Query("limit")))
		return
	}
	offset, err := queryInt(c, "offset", 0)
	if err != nil || offset < 0 {
		s.respondError(c, domain.NewValidationError("offset", "offset must not be negative", c.Query("offset")))
		return
	}

	records, total, err := s.service.ListPatients(c.Request.Context(), limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}

	out := make([]*PatientResponse, 0, len(records))
	for _, p := range records {
		r, err := p.Record(s.service.Catalog())
		if err != nil {
			s.respondError(c, err)
			return
		}
		out = append(out, newPatientResponse(p, r))
	}
	c.JSON(http.StatusOK, gin.H{
		"patients": out,
		"total":    total,
		"limit":    limit,
		"offset":   offset,
	})
}

func (s *Server) handleAddMessage(c *gin.Context) {
	var req MessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "invalid request body", err)
		return
	}

	update, err := s.service.AddPatientMessage(c.Request.Context(), c.Param("id"), req.Text)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, MessageResponse{
		Patient: newPatientResponse(update.Patient, update.Record),
		Message: newRecordResponse(update.Message),
	})
}

func (s *Server) handleGetPatient(c *gin.Context) {
	p, r, err := s.service.GetPatient(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, newPatientResponse(p, r))
}

func (s *Server) handleDeletePatient(c *gin.Context) {
	if err := s.service.DeletePatient(c.Request.Context(), c.Param("id")); err != nil {
		s.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) (int, error) {
	v := c.Query(key)
	if v == "" {
		return def, nil
	}
	return strconv.Atoi(v)
}
