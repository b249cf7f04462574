package testutil

import (
	"database/sql"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/josh-kwaku/hub-transfers/internal/domain"
)

func SeedAccount(t *testing.T, db *sql.DB, msisdn, name string) *domain.Account {
	t.Helper()

	a := &domain.Account{
		ID:        uuid.New(),
		MSISDN:    msisdn,
		Name:      name,
		Balance:   decimal.NewFromInt(1_000_000),
		CreatedAt: time.Now().UTC(),
	}

	_, err := db.Exec(
		`INSERT INTO accounts (id, msisdn, name, balance, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.MSISDN, a.Name, a.Balance, a.CreatedAt,
	)
	if err != nil {
		t.Fatalf("seed account %s: %v", msisdn, err)
	}
	return a
}

func CountTransfers(t *testing.T, db *sql.DB, jobID uuid.UUID) int {
	t.Helper()

	var count int
	err := db.QueryRow(`SELECT COUNT(*) FROM transfers WHERE bulk_job_id = $1`, jobID).Scan(&count)
	if err != nil {
		t.Fatalf("count transfers for job %s: %v", jobID, err)
	}
	return count
}

func GetJobStatus(t *testing.T, db *sql.DB, jobID uuid.UUID) domain.BulkJobStatus {
	t.Helper()

	var status domain.BulkJobStatus
	err := db.QueryRow(`SELECT status FROM bulk_jobs WHERE id = $1`, jobID).Scan(&status)
	if err != nil {
		t.Fatalf("get job status %s: %v", jobID, err)
	}
	return status
}

// AgeJob backdates a job's updated_at so it looks idle for age.
func AgeJob(t *testing.T, db *sql.DB, jobID uuid.UUID, age time.Duration) {
	t.Helper()

	_, err := db.Exec(
		`UPDATE bulk_jobs SET updated_at = now() - $2 * interval '1 second' WHERE id = $1`,
		jobID, age.Seconds(),
	)
	if err != nil {
		t.Fatalf("age job %s: %v", jobID, err)
	}
}
