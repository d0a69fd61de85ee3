package migrations

import (
	"context"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
)

func TestList_SortedAndComplete(t *testing.T) {
	ms, err := List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	want := []string{"0001_users", "0002_wallets", "0003_call_sessions", "0004_audit_events"}
	if len(ms) != len(want) {
		t.Fatalf("expected %d migrations, got %d", len(want), len(ms))
	}
	for i, m := range ms {
		if m.Version != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], m.Version)
		}
	}
	if !strings.Contains(ms[1].SQL, "wallet_transactions_reference_key") {
		t.Fatalf("wallet migration must declare the reference constraint")
	}
	if !strings.Contains(ms[1].SQL, "CHECK (balance >= 0)") {
		t.Fatalf("wallet migration must guard non-negative balances")
	}
}

func TestApply_SkipsRecordedVersions(t *testing.T) {
	raw, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer raw.Close()
	db := sqlx.NewDb(raw, "pgx")

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS schema_migrations").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery("SELECT version FROM schema_migrations").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).
			AddRow("0001_users").AddRow("0002_wallets").AddRow("0003_call_sessions"))
	mock.ExpectBegin()
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS audit_events").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO schema_migrations").WithArgs("0004_audit_events").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	ran, err := Apply(context.Background(), db)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if len(ran) != 1 || ran[0] != "0004_audit_events" {
		t.Fatalf("unexpected applied set: %v", ran)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
