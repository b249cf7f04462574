package handler

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/batch"
	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/logging"
	"github.com/josh-kwaku/hub-transfers/internal/service/bulk"
)

type bulkSubmitter interface {
	Submit(ctx context.Context, req bulk.SubmitRequest) (*domain.BulkJob, error)
}

type jobDispatcher interface {
	Dispatch(ctx context.Context, jobID uuid.UUID) error
}

type bulkReporter interface {
	GetStatus(ctx context.Context, jobID uuid.UUID) (*bulk.StatusReport, error)
	Export(ctx context.Context, jobID uuid.UUID) ([]bulk.ReportEntry, error)
}

type BulkHandler struct {
	engine     bulkSubmitter
	dispatcher jobDispatcher
	reporter   bulkReporter
	maxUpload  int64
}

func NewBulkHandler(engine bulkSubmitter, dispatcher jobDispatcher, reporter bulkReporter, maxUpload int64) *BulkHandler {
	return &BulkHandler{
		engine:     engine,
		dispatcher: dispatcher,
		reporter:   reporter,
		maxUpload:  maxUpload,
	}
}

type uploadDTO struct {
	JobID       uuid.UUID         `json:"job_id"`
	Status      string            `json:"status"`
	TotalRows   int               `json:"total_rows"`
	TotalAmount decimal.Decimal   `json:"total_amount"`
	Recipients  []batch.Recipient `json:"recipients"`
	URLStatus   string            `json:"url_status"`
}

// Upload stores the file as a job, hands it to the dispatcher and answers
// before any row is attempted.
func (h *BulkHandler) Upload(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) || errors.Is(err, multipart.ErrMessageTooLarge) {
			RespondAppError(w, ErrUploadTooLarge, nil)
			return
		}
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	var fields []FieldError
	sender := r.FormValue("sender_msisdn")
	if sender == "" {
		fields = append(fields, FieldError{Field: "sender_msisdn", Message: "required"})
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		fields = append(fields, FieldError{Field: "file", Message: "required"})
	} else {
		defer file.Close()
	}
	if len(fields) > 0 {
		RespondValidationError(w, fields)
		return
	}

	source, err := io.ReadAll(file)
	if err != nil {
		RespondAppError(w, ErrInvalidRequest, nil)
		return
	}

	// The preview is best effort. A source it cannot read still becomes a job,
	// which the engine then fails.
	summary, err := batch.Summarize(bytes.NewReader(source))
	if err != nil {
		log.Warn("bulk upload preview failed", "source_name", header.Filename, "error", err)
		summary = &batch.Summary{TotalAmount: decimal.Zero}
	}

	job, err := h.engine.Submit(r.Context(), bulk.SubmitRequest{
		SenderMSISDN: sender,
		SourceName:   header.Filename,
		Source:       source,
	})
	if err != nil {
		log.Warn("bulk submission failed", "error", err)
		RespondDomainError(w, err)
		return
	}

	if err := h.dispatcher.Dispatch(r.Context(), job.ID); err != nil {
		log.Error("bulk job dispatch failed", "job_id", job.ID, "error", err)
		RespondDomainError(w, err)
		return
	}

	recipients := summary.Recipients
	if recipients == nil {
		recipients = []batch.Recipient{}
	}
	statusURL := fmt.Sprintf("/api/v1/bulk/status/%s", job.ID)
	w.Header().Set("Location", statusURL)
	RespondSuccess(w, http.StatusAccepted, uploadDTO{
		JobID:       job.ID,
		Status:      string(job.Status),
		TotalRows:   summary.TotalRows,
		TotalAmount: summary.TotalAmount,
		Recipients:  recipients,
		URLStatus:   statusURL,
	})
}

type reportEntryDTO struct {
	Beneficiary   string          `json:"beneficiary"`
	Amount        decimal.Decimal `json:"amount"`
	Currency      string          `json:"currency"`
	Reference     string          `json:"reference"`
	Status        string          `json:"status"`
	ErrorMessage  string          `json:"error_message,omitempty"`
	Timestamp     time.Time       `json:"timestamp"`
	TransactionID string          `json:"transaction_id"`
}

type statusDTO struct {
	JobID          uuid.UUID        `json:"job_id"`
	Status         string           `json:"status"`
	Message        string           `json:"message"`
	TotalTransfers int              `json:"total_transfers"`
	Succeeded      int              `json:"succeeded_count"`
	Failed         int              `json:"failed_count"`
	Pending        int              `json:"pending_count"`
	CreatedAt      time.Time        `json:"created_at"`
	Details        []reportEntryDTO `json:"details"`
}

func toReportEntryDTO(e bulk.ReportEntry) reportEntryDTO {
	return reportEntryDTO{
		Beneficiary:   e.Beneficiary,
		Amount:        e.Amount,
		Currency:      e.Currency,
		Reference:     e.Reference,
		Status:        string(e.Status),
		ErrorMessage:  e.ErrorMessage,
		Timestamp:     e.Timestamp,
		TransactionID: e.TransactionID,
	}
}

func (h *BulkHandler) Status(w http.ResponseWriter, r *http.Request) {
	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		RespondAppError(w, ErrJobNotFound, nil)
		return
	}

	report, err := h.reporter.GetStatus(r.Context(), jobID)
	if err != nil {
		logging.FromContext(r.Context()).Warn("bulk status lookup failed", "job_id", jobID, "error", err)
		RespondDomainError(w, err)
		return
	}

	dto := statusDTO{
		JobID:          report.Job.ID,
		Status:         string(report.Job.Status),
		Message:        report.Message,
		TotalTransfers: report.Total,
		Succeeded:      report.Succeeded,
		Failed:         report.Failed,
		Pending:        report.Pending,
		CreatedAt:      report.Job.CreatedAt,
		Details:        make([]reportEntryDTO, 0, len(report.Recent)),
	}
	for _, e := range report.Recent {
		dto.Details = append(dto.Details, toReportEntryDTO(e))
	}
	RespondSuccess(w, http.StatusOK, dto)
}

func (h *BulkHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		RespondAppError(w, ErrJobNotFound, nil)
		return
	}

	entries, err := h.reporter.Export(r.Context(), jobID)
	if err != nil {
		log.Warn("bulk export failed", "job_id", jobID, "error", err)
		RespondDomainError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := bulk.WriteCSV(&buf, entries); err != nil {
		log.Error("bulk export render failed", "job_id", jobID, "error", err)
		RespondAppError(w, ErrInternalError, nil)
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="transfers_%s_report.csv"`, jobID))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Error("failed to write export", "job_id", jobID, "error", err)
	}
}
