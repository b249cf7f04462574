package handler

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/service/bulk"
)

const testSource = "type_id,value_id,currency,amount,full_name\n" +
	"MSISDN,22997000001,XOF,1500,Awa Diallo\n" +
	"MSISDN,22997000002,XOF,2500.50,Koffi Mensah\n"

type stubSubmitter struct {
	submitted *bulk.SubmitRequest
	job       *domain.BulkJob
	err       error
}

func (s *stubSubmitter) Submit(_ context.Context, req bulk.SubmitRequest) (*domain.BulkJob, error) {
	s.submitted = &req
	return s.job, s.err
}

type stubDispatcher struct {
	dispatched []uuid.UUID
	err        error
}

func (s *stubDispatcher) Dispatch(_ context.Context, jobID uuid.UUID) error {
	s.dispatched = append(s.dispatched, jobID)
	return s.err
}

type stubReporter struct {
	report  *bulk.StatusReport
	entries []bulk.ReportEntry
	err     error
}

func (s *stubReporter) GetStatus(_ context.Context, _ uuid.UUID) (*bulk.StatusReport, error) {
	return s.report, s.err
}

func (s *stubReporter) Export(_ context.Context, _ uuid.UUID) ([]bulk.ReportEntry, error) {
	return s.entries, s.err
}

func uploadRequest(t *testing.T, sender, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if sender != "" {
		require.NoError(t, mw.WriteField("sender_msisdn", sender))
	}
	if filename != "" {
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/bulk/upload", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func bulkRouter(h *BulkHandler) http.Handler {
	r := chi.NewRouter()
	r.Post("/api/v1/bulk/upload", h.Upload)
	r.Get("/api/v1/bulk/status/{jobID}", h.Status)
	r.Get("/api/v1/bulk/export/csv/{jobID}", h.ExportCSV)
	return r
}

func TestBulkUpload(t *testing.T) {
	t.Run("accepted upload is dispatched", func(t *testing.T) {
		job := &domain.BulkJob{ID: uuid.New(), Status: domain.BulkJobStatusUploaded}
		submitter := &stubSubmitter{job: job}
		dispatcher := &stubDispatcher{}
		h := NewBulkHandler(submitter, dispatcher, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "22990001234", "payroll.csv", testSource))

		require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
		statusURL := "/api/v1/bulk/status/" + job.ID.String()
		assert.Equal(t, statusURL, w.Header().Get("Location"))

		_, data := decodeEnvelope(t, w)
		assert.Equal(t, job.ID.String(), data["job_id"])
		assert.Equal(t, "UPLOADED", data["status"])
		assert.EqualValues(t, 2, data["total_rows"])
		assert.Equal(t, "4000.5", data["total_amount"])
		assert.Equal(t, statusURL, data["url_status"])
		assert.Len(t, data["recipients"], 2)

		require.NotNil(t, submitter.submitted)
		assert.Equal(t, "22990001234", submitter.submitted.SenderMSISDN)
		assert.Equal(t, "payroll.csv", submitter.submitted.SourceName)
		assert.Equal(t, testSource, string(submitter.submitted.Source))
		assert.Equal(t, []uuid.UUID{job.ID}, dispatcher.dispatched)
	})

	t.Run("unreadable file still becomes a job", func(t *testing.T) {
		job := &domain.BulkJob{ID: uuid.New(), Status: domain.BulkJobStatusUploaded}
		h := NewBulkHandler(&stubSubmitter{job: job}, &stubDispatcher{}, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "22990001234", "empty.csv", ""))

		require.Equal(t, http.StatusAccepted, w.Code)
		_, data := decodeEnvelope(t, w)
		assert.EqualValues(t, 0, data["total_rows"])
		assert.Equal(t, []any{}, data["recipients"])
	})

	t.Run("missing fields", func(t *testing.T) {
		submitter := &stubSubmitter{}
		h := NewBulkHandler(submitter, &stubDispatcher{}, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "", "", ""))

		require.Equal(t, http.StatusBadRequest, w.Code)
		env, _ := decodeEnvelope(t, w)
		assert.Equal(t, "VALIDATION_FAILED", env.Error.Code)
		assert.Len(t, env.Error.Details, 2)
		assert.Nil(t, submitter.submitted)
	})

	t.Run("oversized upload answers 413", func(t *testing.T) {
		submitter := &stubSubmitter{}
		h := NewBulkHandler(submitter, &stubDispatcher{}, &stubReporter{}, 256)

		big := testSource + strings.Repeat("MSISDN,22997000003,XOF,10,Someone\n", 200)
		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "22990001234", "big.csv", big))

		require.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Nil(t, submitter.submitted)
	})

	t.Run("unknown sender answers 404", func(t *testing.T) {
		dispatcher := &stubDispatcher{}
		h := NewBulkHandler(&stubSubmitter{err: domain.ErrAccountNotFound}, dispatcher, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "22990009999", "payroll.csv", testSource))

		require.Equal(t, http.StatusNotFound, w.Code)
		assert.Empty(t, dispatcher.dispatched)
	})

	t.Run("full queue answers 503", func(t *testing.T) {
		job := &domain.BulkJob{ID: uuid.New(), Status: domain.BulkJobStatusUploaded}
		h := NewBulkHandler(&stubSubmitter{job: job}, &stubDispatcher{err: bulk.ErrQueueFull}, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, uploadRequest(t, "22990001234", "payroll.csv", testSource))

		require.Equal(t, http.StatusServiceUnavailable, w.Code)
		env, _ := decodeEnvelope(t, w)
		assert.Equal(t, "BULK_QUEUE_FULL", env.Error.Code)
	})
}

func TestBulkStatus(t *testing.T) {
	jobID := uuid.New()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("reports counts and recent rows", func(t *testing.T) {
		reporter := &stubReporter{report: &bulk.StatusReport{
			Job:       &domain.BulkJob{ID: jobID, Status: domain.BulkJobStatusCompleted, CreatedAt: created},
			Total:     3,
			Succeeded: 2,
			Failed:    1,
			Message:   "2 succeeded, 1 failed",
			Recent: []bulk.ReportEntry{{
				Beneficiary:   "22997000001",
				Amount:        decimal.NewFromInt(1500),
				Currency:      "XOF",
				Reference:     "Awa Diallo",
				Status:        domain.TransferStatusCompleted,
				Timestamp:     created,
				TransactionID: "tr-1",
			}},
		}}
		h := NewBulkHandler(&stubSubmitter{}, &stubDispatcher{}, reporter, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bulk/status/"+jobID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)
		_, data := decodeEnvelope(t, w)
		assert.Equal(t, "COMPLETED", data["status"])
		assert.Equal(t, "2 succeeded, 1 failed", data["message"])
		assert.EqualValues(t, 3, data["total_transfers"])
		assert.EqualValues(t, 2, data["succeeded_count"])
		assert.EqualValues(t, 1, data["failed_count"])
		assert.EqualValues(t, 0, data["pending_count"])
		assert.Len(t, data["details"], 1)
	})

	t.Run("malformed job id answers 404", func(t *testing.T) {
		h := NewBulkHandler(&stubSubmitter{}, &stubDispatcher{}, &stubReporter{}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bulk/status/not-a-job", nil))

		require.Equal(t, http.StatusNotFound, w.Code)
		env, _ := decodeEnvelope(t, w)
		assert.Equal(t, "BULK_JOB_NOT_FOUND", env.Error.Code)
	})

	t.Run("unknown job answers 404", func(t *testing.T) {
		h := NewBulkHandler(&stubSubmitter{}, &stubDispatcher{}, &stubReporter{err: domain.ErrJobNotFound}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bulk/status/"+jobID.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestBulkExportCSV(t *testing.T) {
	jobID := uuid.New()

	t.Run("streams an attachment", func(t *testing.T) {
		reporter := &stubReporter{entries: []bulk.ReportEntry{{
			Beneficiary:   "22997000001",
			Amount:        decimal.NewFromInt(1500),
			Currency:      "XOF",
			Reference:     "Awa Diallo",
			Status:        domain.TransferStatusCompleted,
			Timestamp:     time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
			TransactionID: "tr-1",
		}}}
		h := NewBulkHandler(&stubSubmitter{}, &stubDispatcher{}, reporter, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bulk/export/csv/"+jobID.String(), nil))

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="transfers_`+jobID.String()+`_report.csv"`, w.Header().Get("Content-Disposition"))

		lines := strings.Split(strings.TrimSpace(w.Body.String()), "\n")
		require.Len(t, lines, 2)
		assert.Equal(t, "Beneficiary,Amount,Currency,Reference,Status,Error message,Timestamp,Transaction ID", lines[0])
		assert.Equal(t, "22997000001,1500,XOF,Awa Diallo,COMPLETED,,2026-03-01 09:30:00,tr-1", lines[1])
	})

	t.Run("unknown job answers 404", func(t *testing.T) {
		h := NewBulkHandler(&stubSubmitter{}, &stubDispatcher{}, &stubReporter{err: domain.ErrJobNotFound}, 1<<20)

		w := httptest.NewRecorder()
		bulkRouter(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/v1/bulk/export/csv/"+jobID.String(), nil))

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.NotEqual(t, "text/csv", w.Header().Get("Content-Type"))
	})
}
