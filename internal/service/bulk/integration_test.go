package bulk_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
	"github.com/josh-kwaku/hub-transfers/internal/repository"
	"github.com/josh-kwaku/hub-transfers/internal/service/bulk"
	"github.com/josh-kwaku/hub-transfers/internal/service/ledger"
	"github.com/josh-kwaku/hub-transfers/internal/testutil"
)

type stack struct {
	engine   *bulk.Engine
	reporter *bulk.Reporter
	jobs     *repository.BulkJobRepository
	ledger   *ledger.Ledger
}

func setupStack(t *testing.T, db *sql.DB, cfg hub.Config) *stack {
	t.Helper()

	jobs := repository.NewBulkJobRepository(db)
	l := ledger.New(repository.NewTransferRepository(db))
	return &stack{
		engine:   bulk.NewEngine(jobs, repository.NewAccountRepository(db), hub.NewClient(cfg), l),
		reporter: bulk.NewReporter(jobs, l),
		jobs:     jobs,
		ledger:   l,
	}
}

// fakeHub rejects receivers starting with "000" and accepts everything else.
func fakeHub(t *testing.T) (*httptest.Server, func() []string) {
	t.Helper()

	var mu sync.Mutex
	var keys []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			To struct {
				IDValue string `json:"idValue"`
			} `json:"to"`
			HomeTransactionID string `json:"homeTransactionId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)

		mu.Lock()
		keys = append(keys, body.HomeTransactionID)
		mu.Unlock()

		if strings.HasPrefix(body.To.IDValue, "000") {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"errorInformation":{"errorCode":"3204","errorDescription":"Party not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"transferId":"MTIzNDU2Nzg5` + body.To.IDValue + `","currentState":"COMPLETED"}`))
	}))
	t.Cleanup(srv.Close)

	return srv, func() []string {
		mu.Lock()
		defer mu.Unlock()
		return append([]string(nil), keys...)
	}
}

func hubConfig(baseURL string) hub.Config {
	return hub.Config{
		BaseURL:        baseURL,
		DisplayName:    "Test DFSP",
		Timeout:        5 * time.Second,
		MaxRetries:     3,
		BackoffInitial: time.Millisecond,
	}
}

func TestBulkJob_EndToEnd(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	srv, keys := fakeHub(t)
	s := setupStack(t, db, hubConfig(srv.URL))

	sender := testutil.SeedAccount(t, db, "22990001234", "Sender")
	source := strings.Join([]string{
		"type_id,value_id,currency,amount,full_name",
		"MSISDN,22997000001,XOF,1000.00,Ada",
		"MSISDN,00097000002,XOF,200,Rejected",
		"MSISDN,22997000003,,300,No Currency",
		"MSISDN,22997000004,XOF,400.50,Dan",
	}, "\n")

	job, err := s.engine.Submit(ctx, bulk.SubmitRequest{
		SenderMSISDN: sender.MSISDN,
		SourceName:   "batch.csv",
		Source:       []byte(source),
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BulkJobStatusUploaded, testutil.GetJobStatus(t, db, job.ID))

	finished, err := s.engine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BulkJobStatusCompleted, finished.Status)
	assert.Equal(t, 4, finished.TotalTransfers)
	assert.Equal(t, 2, finished.TransfersCompleted)
	assert.Equal(t, 3, testutil.CountTransfers(t, db, job.ID))
	assert.Len(t, keys(), 3)

	report, err := s.reporter.GetStatus(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, report.Total)
	assert.Equal(t, 2, report.Succeeded)
	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 0, report.Pending)
	assert.Len(t, report.Recent, 3)
	assert.Equal(t, "22997000004", report.Recent[0].Beneficiary)

	entries, err := s.reporter.Export(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, "22997000001", entries[0].Beneficiary)
	assert.Equal(t, "MTIzNDU2Nzg522997000001", entries[0].TransactionID)
	assert.Equal(t, domain.TransferStatusFailed, entries[1].Status)
	assert.Contains(t, entries[1].ErrorMessage, "Party not found")
	assert.Equal(t, "22997000004", entries[2].Beneficiary)
	for i := 1; i < len(entries); i++ {
		assert.False(t, entries[i].Timestamp.Before(entries[i-1].Timestamp))
	}
}

func TestBulkJob_UnreadableSourceFails(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	srv, keys := fakeHub(t)
	s := setupStack(t, db, hubConfig(srv.URL))

	sender := testutil.SeedAccount(t, db, "22990001234", "Sender")
	job, err := s.engine.Submit(ctx, bulk.SubmitRequest{SenderMSISDN: sender.MSISDN, SourceName: "empty.csv"})
	require.NoError(t, err)

	finished, err := s.engine.Run(ctx, job.ID)
	require.NoError(t, err)

	assert.Equal(t, domain.BulkJobStatusFailed, finished.Status)
	assert.Zero(t, finished.TotalTransfers)
	assert.Zero(t, testutil.CountTransfers(t, db, job.ID))
	assert.Empty(t, keys())
}

func TestBulkJob_RunsOnlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	cfg := hubConfig("http://unused.invalid")
	cfg.SimulationMode = true
	s := setupStack(t, db, cfg)

	sender := testutil.SeedAccount(t, db, "22990001234", "Sender")
	job, err := s.engine.Submit(ctx, bulk.SubmitRequest{
		SenderMSISDN: sender.MSISDN,
		SourceName:   "batch.csv",
		Source:       []byte("type_id,value_id,currency,amount\nMSISDN,22997000001,XOF,10\n"),
	})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = s.engine.Run(ctx, job.ID)
		}()
	}
	wg.Wait()

	var runs, rejected int
	for _, err := range errs {
		if err == nil {
			runs++
			continue
		}
		require.ErrorIs(t, err, domain.ErrJobNotRunnable)
		rejected++
	}
	assert.Equal(t, 1, runs)
	assert.Equal(t, 1, rejected)
	assert.Equal(t, 1, testutil.CountTransfers(t, db, job.ID))

	entries, err := s.reporter.Export(ctx, job.ID)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, strings.HasPrefix(entries[0].TransactionID, "SIM-"))
}

func TestBulkJob_UnknownJob(t *testing.T) {
	db := testutil.SetupTestDB(t)
	s := setupStack(t, db, hubConfig("http://unused.invalid"))

	_, err := s.engine.Run(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)

	_, err = s.reporter.GetStatus(context.Background(), uuid.New())
	assert.ErrorIs(t, err, domain.ErrJobNotFound)
}

func TestBulkJob_SweeperRecoversLostJobs(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx := context.Background()
	cfg := hubConfig("http://unused.invalid")
	cfg.SimulationMode = true
	s := setupStack(t, db, cfg)

	sender := testutil.SeedAccount(t, db, "22990001234", "Sender")
	submit := func() *domain.BulkJob {
		job, err := s.engine.Submit(ctx, bulk.SubmitRequest{
			SenderMSISDN: sender.MSISDN,
			SourceName:   "batch.csv",
			Source:       []byte("type_id,value_id,currency,amount\nMSISDN,22997000001,XOF,10\nMSISDN,22997000002,XOF,20\n"),
		})
		require.NoError(t, err)
		return job
	}

	neverDispatched := submit()
	testutil.AgeJob(t, db, neverDispatched.ID, 10*time.Minute)

	workerDied := submit()
	require.NoError(t, s.jobs.MarkProcessing(ctx, workerDied.ID))
	require.NoError(t, s.jobs.Heartbeat(ctx, workerDied.ID, 2, 1))
	testutil.AgeJob(t, db, workerDied.ID, time.Hour)

	justUploaded := submit()

	pool := bulk.NewWorkerPool(s.engine, 1, 4, slog.Default())
	poolCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() { _ = pool.Start(poolCtx) }()

	sweeper := bulk.NewSweeper(s.jobs, s.ledger, pool, bulk.SweeperConfig{
		Interval:    time.Hour,
		UploadGrace: 2 * time.Minute,
		StaleAfter:  15 * time.Minute,
	}, slog.Default())
	sweeper.Sweep(ctx)

	require.Eventually(t, func() bool {
		return testutil.GetJobStatus(t, db, neverDispatched.ID) == domain.BulkJobStatusCompleted
	}, 10*time.Second, 50*time.Millisecond)
	assert.Equal(t, 2, testutil.CountTransfers(t, db, neverDispatched.ID))

	failed, err := s.jobs.GetByID(ctx, workerDied.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BulkJobStatusFailed, failed.Status)
	assert.Equal(t, 2, failed.TotalTransfers)
	assert.Equal(t, 1, failed.TransfersCompleted)

	assert.Equal(t, domain.BulkJobStatusUploaded, testutil.GetJobStatus(t, db, justUploaded.ID))
}
