package importhandlers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	importservice "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/application"
	importdomain "github.com/Black-And-White-Club/casino-ops/app/modules/playerimport/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
)

// IdempotencyKeyHeader carries the client key on create and execute requests.
const IdempotencyKeyHeader = "Idempotency-Key"

// maxJSONBody bounds JSON request bodies.
const maxJSONBody = 1 << 20

// CreateBatchRequest is the JSON body of POST /api/player-imports.
type CreateBatchRequest struct {
	IdempotencyKey string            `json:"idempotency_key"`
	FileName       string            `json:"file_name"`
	VendorLabel    *string           `json:"vendor_label,omitempty"`
	ColumnMapping  map[string]string `json:"column_mapping"`
	Status         string            `json:"status,omitempty"`
}

// ValidateMappingRequest is the JSON body of the mapping preview check.
type ValidateMappingRequest struct {
	ColumnMapping map[string]string `json:"column_mapping"`
	// Headers is the header row read client-side. Optional.
	Headers []string `json:"headers,omitempty"`
}

// StagedRowResponse is the wire form of a staged row.
type StagedRowResponse struct {
	RowIndex   int                            `json:"row_index"`
	Validity   importdomain.Validity          `json:"validity"`
	RawFields  map[string]string              `json:"raw_fields"`
	Normalized *importdomain.NormalizedPlayer `json:"normalized,omitempty"`
	Reason     *importdomain.RejectReason     `json:"reason,omitempty"`
	ShapeIssue *importdomain.RejectReason     `json:"shape_issue,omitempty"`
}

func toStagedRowResponse(row importdomain.StagedRow) StagedRowResponse {
	resp := StagedRowResponse{
		RowIndex:   row.RowIndex,
		Validity:   row.Validity(),
		RawFields:  row.RawFields,
		Reason:     row.RejectReason(),
		ShapeIssue: row.ShapeIssue,
	}
	if p, ok := row.Normalized(); ok {
		resp.Normalized = &p
	}
	return resp
}

func batchIDParam(r *http.Request) (uuid.UUID, error) {
	raw := chi.URLParam(r, "batchID")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid batch id %q", raw)
	}
	return id, nil
}

// HandleCreateBatch starts an import.
func (h *ImportHandlers) HandleCreateBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP CreateBatch")
	defer span.End()

	var req CreateBatchRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		badRequest(w, "request body must be a JSON object")
		return
	}
	if req.IdempotencyKey == "" {
		req.IdempotencyKey = r.Header.Get(IdempotencyKeyHeader)
	}

	batch, err := h.service.CreateBatch(ctx, importservice.CreateBatchRequest{
		IdempotencyKey: req.IdempotencyKey,
		FileName:       req.FileName,
		VendorLabel:    req.VendorLabel,
		ColumnMapping:  importdomain.MappingFromStrings(req.ColumnMapping),
		InitialStatus:  req.Status,
	})
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, err)
		return
	}

	span.SetAttributes(attribute.String("batch_id", batch.ID.String()))
	writeJSON(w, http.StatusCreated, batch)
}

// HandleUploadFile stores the raw file body of a created batch.
func (h *ImportHandlers) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP UploadFile")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	span.SetAttributes(attribute.String("batch_id", batchID.String()))

	data, err := io.ReadAll(io.LimitReader(r.Body, h.cfg.MaxFileBytes+1))
	if err != nil {
		badRequest(w, "failed to read request body")
		return
	}

	batch, err := h.service.UploadFile(ctx, batchID, data)
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, batch)
}

// HandleGetBatch returns the batch and its ingestion report.
func (h *ImportHandlers) HandleGetBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP GetBatch")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	view, err := h.service.GetBatch(ctx, batchID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// HandleListRows returns staged rows, filtered by ?validity= when given.
func (h *ImportHandlers) HandleListRows(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP ListStagedRows")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	var filter *importdomain.Validity
	if raw := r.URL.Query().Get("validity"); raw != "" {
		v, err := importdomain.ParseValidity(raw)
		if err != nil {
			badRequest(w, err.Error())
			return
		}
		filter = &v
	}

	rows, err := h.service.ListStagedRows(ctx, batchID, filter)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}

	out := make([]StagedRowResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, toStagedRowResponse(row))
	}
	writeJSON(w, http.StatusOK, map[string]any{"rows": out})
}

// HandleExecuteBatch merges a staged batch. Repeating the call returns the same report.
func (h *ImportHandlers) HandleExecuteBatch(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP ExecuteBatch")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	span.SetAttributes(attribute.String("batch_id", batchID.String()))

	report, err := h.service.ExecuteBatch(ctx, batchID, r.Header.Get(IdempotencyKeyHeader))
	if err != nil {
		span.RecordError(err)
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set(IdempotencyKeyHeader, report.ExecutionKey)
	writeJSON(w, http.StatusOK, report)
}

// HandleGetExecution returns the stored execution report.
func (h *ImportHandlers) HandleGetExecution(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP GetExecutionReport")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := h.service.GetExecutionReport(ctx, batchID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// HandleGetExecutionChart renders the stored execution report as a PNG bar chart.
func (h *ImportHandlers) HandleGetExecutionChart(w http.ResponseWriter, r *http.Request) {
	ctx, span := h.tracer.Start(r.Context(), "HTTP GetExecutionChart")
	defer span.End()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	report, err := h.service.GetExecutionReport(ctx, batchID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	png, err := importservice.RenderExecutionChart(report)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "private, max-age=300")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(png)
}

// HandleListJobs returns the queue jobs recorded for a batch.
func (h *ImportHandlers) HandleListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	batchID, err := batchIDParam(r)
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if h.jobs == nil {
		writeJSON(w, http.StatusNotImplemented, errorResponse{Error: errorDetail{Code: CodeInternal, Message: "job inspection is not available"}})
		return
	}

	jobs, err := h.jobs.IngestJobs(ctx, batchID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"jobs": jobs})
}

// HandleValidateMapping checks a mapping before any batch exists.
func (h *ImportHandlers) HandleValidateMapping(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req ValidateMappingRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxJSONBody)).Decode(&req); err != nil {
		badRequest(w, "request body must be a JSON object")
		return
	}

	mapping := importdomain.MappingFromStrings(req.ColumnMapping)
	if err := importdomain.ValidateMapping(mapping); err != nil {
		h.writeError(ctx, w, err)
		return
	}
	if len(req.Headers) > 0 {
		if _, err := importdomain.NewRowClassifier(uuid.Nil, req.Headers, mapping); err != nil {
			h.writeError(ctx, w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"valid": true})
}

// HandleListFields lists the canonical fields a mapping may target.
func (h *ImportHandlers) HandleListFields(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"fields":          importdomain.CanonicalFields,
		"identity_any_of": []importdomain.CanonicalField{importdomain.FieldEmail, importdomain.FieldPhone},
	})
}
