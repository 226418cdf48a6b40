package db

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/banksync"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/shopspring/decimal"
)

var _ banksync.Store = (*DB)(nil)

func setupTestDB(t *testing.T) (*DB, func()) {
	// Create a temporary directory for the test database
	tempDir, err := os.MkdirTemp("", "bank-statement-sync-test-*")
	if err != nil {
		t.Fatalf("failed to create temp dir: %v", err)
	}

	// Create a logger that discards output
	logger := log.New(io.Discard)
	logger.SetLevel(log.DebugLevel)

	db, err := New(tempDir, logger)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}

	return db, cleanup
}

func addTestConnection(t *testing.T, db *DB) int64 {
	id, err := db.AddConnection(context.Background(), bank.Connection{
		BankCode:     "yapikredi",
		BankName:     "Yapı Kredi",
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AccountID:    "TR123",
		IsActive:     true,
	})
	if err != nil {
		t.Fatalf("failed to add connection: %v", err)
	}
	return id
}

func testTransaction(externalID string) types.Transaction {
	return types.Transaction{
		Date:        time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
		Description: "MIGROS",
		Amount:      decimal.RequireFromString("1234.56"),
		Direction:   types.DirectionExpense,
		ExternalID:  externalID,
	}
}

func TestConnections(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id := addTestConnection(t, db)

	conn, err := db.GetConnection(ctx, id)
	if err != nil {
		t.Fatalf("failed to get connection: %v", err)
	}
	if conn == nil {
		t.Fatal("expected connection to exist")
	}
	if conn.BankCode != "yapikredi" || conn.ClientSecret != "client-secret" || conn.AccountID != "TR123" || !conn.IsActive {
		t.Errorf("unexpected connection: %+v", conn)
	}
	if conn.LastSyncAt != nil {
		t.Errorf("expected no last sync, got %v", conn.LastSyncAt)
	}

	missing, err := db.GetConnection(ctx, id+100)
	if err != nil {
		t.Fatalf("failed to get missing connection: %v", err)
	}
	if missing != nil {
		t.Errorf("expected nil for missing connection, got %+v", missing)
	}

	if err := db.SetConnectionActive(ctx, id, false); err != nil {
		t.Fatalf("failed to disable connection: %v", err)
	}
	if err := db.SetConnectionActive(ctx, id+100, false); err == nil {
		t.Error("expected error disabling missing connection")
	}

	connections, err := db.ListConnections(ctx)
	if err != nil {
		t.Fatalf("failed to list connections: %v", err)
	}
	if len(connections) != 1 || connections[0].IsActive {
		t.Errorf("expected one inactive connection, got %+v", connections)
	}
}

func TestRecordSyncStatus(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	id := addTestConnection(t, db)
	at := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)

	if err := db.RecordSyncStatus(ctx, id, at, types.SyncStatusPartial, "1 new, 0 skipped, 1 errors"); err != nil {
		t.Fatalf("failed to record sync status: %v", err)
	}

	conn, err := db.GetConnection(ctx, id)
	if err != nil {
		t.Fatalf("failed to get connection: %v", err)
	}
	if conn.LastSyncAt == nil || !conn.LastSyncAt.Equal(at) {
		t.Errorf("expected last sync at %v, got %v", at, conn.LastSyncAt)
	}
	if conn.LastSyncStatus != "partial" || conn.LastSyncMessage != "1 new, 0 skipped, 1 errors" {
		t.Errorf("unexpected sync status: %q %q", conn.LastSyncStatus, conn.LastSyncMessage)
	}
}

func TestFindOrCreate(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	first, err := db.FindOrCreateCategory(ctx, "Bank Sync")
	if err != nil {
		t.Fatalf("failed to create category: %v", err)
	}
	second, err := db.FindOrCreateCategory(ctx, "Bank Sync")
	if err != nil {
		t.Fatalf("failed to find category: %v", err)
	}
	if first != second {
		t.Errorf("expected the same category id, got %d and %d", first, second)
	}

	tag, err := db.FindOrCreateTag(ctx, "Yapı Kredi")
	if err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	other, err := db.FindOrCreateTag(ctx, "Kuveyt Türk")
	if err != nil {
		t.Fatalf("failed to create tag: %v", err)
	}
	if tag == other {
		t.Error("expected different tags to have different ids")
	}
}

func TestInsertTransactionAndExists(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	connID := addTestConnection(t, db)
	categoryID, _ := db.FindOrCreateCategory(ctx, "Bank Sync")
	tagID, _ := db.FindOrCreateTag(ctx, "Yapı Kredi")

	exists, err := db.TransactionExists(ctx, "tx-1", connID)
	if err != nil {
		t.Fatalf("failed to check transaction existence: %v", err)
	}
	if exists {
		t.Error("expected transaction to not exist")
	}

	if err := db.InsertTransaction(ctx, testTransaction("tx-1"), categoryID, []int64{tagID}, connID, types.SourceBankSync); err != nil {
		t.Fatalf("failed to insert transaction: %v", err)
	}

	exists, err = db.TransactionExists(ctx, "tx-1", connID)
	if err != nil {
		t.Fatalf("failed to check transaction existence: %v", err)
	}
	if !exists {
		t.Error("expected transaction to exist")
	}

	stored, err := db.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(stored))
	}
	st := stored[0]
	if !st.Transaction.Amount.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("expected amount 1234.56, got %s", st.Transaction.Amount)
	}
	if st.Transaction.Date.Format(types.DateLayout) != "2024-01-05" {
		t.Errorf("expected date 2024-01-05, got %s", st.Transaction.Date)
	}
	if st.Category != "Bank Sync" || st.Source != types.SourceBankSync || st.ConnectionID != connID {
		t.Errorf("unexpected stored transaction: %+v", st)
	}
	if len(st.Tags) != 1 || st.Tags[0] != "Yapı Kredi" {
		t.Errorf("expected tag Yapı Kredi, got %v", st.Tags)
	}
}

func TestInsertTransactionUniqueness(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	connID := addTestConnection(t, db)
	otherID := addTestConnection(t, db)

	if err := db.InsertTransaction(ctx, testTransaction("tx-1"), 0, nil, connID, types.SourceBankSync); err != nil {
		t.Fatalf("failed to insert transaction: %v", err)
	}

	err := db.InsertTransaction(ctx, testTransaction("tx-1"), 0, nil, connID, types.SourceBankSync)
	if !errors.Is(err, types.ErrDuplicateTransaction) {
		t.Errorf("expected duplicate error, got %v", err)
	}

	// The same provider id on another connection is a different transaction
	if err := db.InsertTransaction(ctx, testTransaction("tx-1"), 0, nil, otherID, types.SourceBankSync); err != nil {
		t.Errorf("expected insert on other connection to succeed, got %v", err)
	}

	count, err := db.CountTransactions(ctx, "")
	if err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 transactions, got %d", count)
	}
}

func TestSaveImported(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()

	imported := []types.Transaction{testTransaction(""), testTransaction("")}
	imported[0].SourceRow = 1
	imported[1].SourceRow = 3
	imported[1].Direction = types.DirectionIncome

	n, err := db.SaveImported(ctx, imported, "Excel Import")
	if err != nil {
		t.Fatalf("failed to save imported transactions: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 saved, got %d", n)
	}

	count, err := db.CountTransactions(ctx, types.SourceExcelImport)
	if err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	if count != 2 {
		t.Errorf("expected 2 imported transactions, got %d", count)
	}

	synced, err := db.CountTransactions(ctx, types.SourceBankSync)
	if err != nil {
		t.Fatalf("failed to count transactions: %v", err)
	}
	if synced != 0 {
		t.Errorf("expected no synced transactions, got %d", synced)
	}

	stored, err := db.ListTransactions(ctx)
	if err != nil {
		t.Fatalf("failed to list transactions: %v", err)
	}
	if stored[1].Transaction.SourceRow != 3 || stored[1].Transaction.Direction != types.DirectionIncome {
		t.Errorf("unexpected second transaction: %+v", stored[1])
	}
	if stored[0].Category != "Excel Import" {
		t.Errorf("expected category Excel Import, got %q", stored[0].Category)
	}
}

func TestMigrationsApplyOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	ctx := context.Background()
	if err := ApplyMigrations(ctx, db.DB(), func(string, ...interface{}) {}); err != nil {
		t.Fatalf("failed to re-apply migrations: %v", err)
	}

	var count int
	if err := db.DB().QueryRowContext(ctx, `SELECT COUNT(*) FROM migrations`).Scan(&count); err != nil {
		t.Fatalf("failed to count migrations: %v", err)
	}
	if count != len(migrations) {
		t.Errorf("expected %d applied migrations, got %d", len(migrations), count)
	}
}
