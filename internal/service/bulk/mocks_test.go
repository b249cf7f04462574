package bulk

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
	"github.com/josh-kwaku/hub-transfers/internal/hub"
	"github.com/josh-kwaku/hub-transfers/internal/service/ledger"
)

type MockJobStore struct {
	mock.Mock
}

func (m *MockJobStore) Create(ctx context.Context, job *domain.BulkJob) error {
	args := m.Called(ctx, job)
	return args.Error(0)
}

func (m *MockJobStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.BulkJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkJob), args.Error(1)
}

func (m *MockJobStore) GetSource(ctx context.Context, id uuid.UUID) ([]byte, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockJobStore) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockJobStore) Finalize(ctx context.Context, id uuid.UUID, status domain.BulkJobStatus, total, completed int) error {
	args := m.Called(ctx, id, status, total, completed)
	return args.Error(0)
}

func (m *MockJobStore) Heartbeat(ctx context.Context, id uuid.UUID, total, completed int) error {
	args := m.Called(ctx, id, total, completed)
	return args.Error(0)
}

func (m *MockJobStore) ListStale(ctx context.Context, status domain.BulkJobStatus, age time.Duration, limit int) ([]domain.BulkJob, error) {
	args := m.Called(ctx, status, age, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.BulkJob), args.Error(1)
}

func (m *MockJobStore) FailStale(ctx context.Context, id uuid.UUID, age time.Duration, total, completed int) error {
	args := m.Called(ctx, id, age, total, completed)
	return args.Error(0)
}

type MockAccountStore struct {
	mock.Mock
}

func (m *MockAccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

func (m *MockAccountStore) GetByMSISDN(ctx context.Context, msisdn string) (*domain.Account, error) {
	args := m.Called(ctx, msisdn)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Account), args.Error(1)
}

type MockTransferClient struct {
	mock.Mock
}

func (m *MockTransferClient) ExecuteTransfer(ctx context.Context, req hub.TransferRequest) hub.Outcome {
	args := m.Called(ctx, req)
	return args.Get(0).(hub.Outcome)
}

type MockRecorder struct {
	mock.Mock
}

func (m *MockRecorder) Record(ctx context.Context, e ledger.Entry) (*domain.TransferRecord, error) {
	args := m.Called(ctx, e)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.TransferRecord), args.Error(1)
}

type MockLedgerReader struct {
	mock.Mock
}

func (m *MockLedgerReader) Query(ctx context.Context, filter domain.TransferFilter, order domain.SortOrder, limit int) ([]domain.TransferRecord, error) {
	args := m.Called(ctx, filter, order, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.TransferRecord), args.Error(1)
}

func (m *MockLedgerReader) CountByStatus(ctx context.Context, jobID uuid.UUID) (map[domain.TransferStatus]int, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[domain.TransferStatus]int), args.Error(1)
}

type MockRunner struct {
	mock.Mock
}

func (m *MockRunner) Run(ctx context.Context, jobID uuid.UUID) (*domain.BulkJob, error) {
	args := m.Called(ctx, jobID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.BulkJob), args.Error(1)
}

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, jobID uuid.UUID) error {
	args := m.Called(ctx, jobID)
	return args.Error(0)
}
