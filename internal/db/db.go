package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lox/bank-statement-sync/internal/bank"
	"github.com/lox/bank-statement-sync/internal/types"
	"github.com/ncruces/go-sqlite3"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"github.com/shopspring/decimal"
)

// DB represents a SQLite database connection
type DB struct {
	db     *sql.DB
	logger *log.Logger
}

// New creates a new database connection
func New(dataDir string, logger *log.Logger) (*DB, error) {
	// Create data directory if it doesn't exist
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "finance.db")
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	_, err = db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA busy_timeout = 5000;
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to set database pragmas: %v", err)
	}

	d := &DB{
		db:     db,
		logger: logger,
	}

	if err := createTables(db); err != nil {
		return nil, fmt.Errorf("failed to create tables: %v", err)
	}

	if err := ApplyMigrations(context.Background(), db, logger.Debugf); err != nil {
		return nil, fmt.Errorf("failed to apply migrations: %v", err)
	}

	return d, nil
}

// createTables creates the necessary tables in the database
func createTables(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS bank_connections (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			bank_code TEXT NOT NULL,
			bank_name TEXT NOT NULL,
			client_id TEXT NOT NULL,
			client_secret TEXT NOT NULL,
			account_id TEXT,
			is_active BOOLEAN NOT NULL DEFAULT 1,
			last_sync_at TEXT,
			last_sync_status TEXT,
			last_sync_message TEXT,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS categories (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS tags (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL UNIQUE
		);

		CREATE TABLE IF NOT EXISTS transactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			date TEXT NOT NULL,
			amount TEXT NOT NULL,
			type TEXT NOT NULL CHECK (type IN ('income', 'expense')),
			description TEXT NOT NULL,
			category_id INTEGER REFERENCES categories(id),
			source TEXT NOT NULL DEFAULT 'manual',
			external_transaction_id TEXT,
			bank_connection_id INTEGER REFERENCES bank_connections(id),
			source_row INTEGER,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP
		);

		CREATE TABLE IF NOT EXISTS transaction_tags (
			transaction_id INTEGER NOT NULL REFERENCES transactions(id) ON DELETE CASCADE,
			tag_id INTEGER NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (transaction_id, tag_id)
		);
	`)
	if err != nil {
		return fmt.Errorf("failed to create tables: %v", err)
	}

	indexes := []string{
		"CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_type ON transactions(type)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_source ON transactions(source)",
		"CREATE INDEX IF NOT EXISTS idx_transactions_category ON transactions(category_id)",
	}

	for _, index := range indexes {
		if _, err := db.Exec(index); err != nil {
			return fmt.Errorf("failed to create index: %v", err)
		}
	}

	return nil
}

// Close closes the database connection
func (d *DB) Close() error {
	return d.db.Close()
}

// DB returns the underlying database connection
func (d *DB) DB() *sql.DB {
	return d.db
}

// AddConnection stores a new bank connection and returns its id
func (d *DB) AddConnection(ctx context.Context, c bank.Connection) (int64, error) {
	result, err := d.db.ExecContext(ctx, `
		INSERT INTO bank_connections (bank_code, bank_name, client_id, client_secret, account_id, is_active)
		VALUES (?, ?, ?, ?, ?, ?)
	`, c.BankCode, c.BankName, c.ClientID, c.ClientSecret, nullString(c.AccountID), c.IsActive)
	if err != nil {
		return 0, fmt.Errorf("failed to store bank connection: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get bank connection id: %w", err)
	}
	d.logger.Debug("Bank connection stored", "id", id, "bank", c.BankCode)
	return id, nil
}

const connectionColumns = `id, bank_code, bank_name, client_id, client_secret, account_id, is_active,
	last_sync_at, last_sync_status, last_sync_message`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*bank.Connection, error) {
	var c bank.Connection
	var accountID, lastSync, status, message sql.NullString

	if err := row.Scan(&c.ID, &c.BankCode, &c.BankName, &c.ClientID, &c.ClientSecret, &accountID, &c.IsActive,
		&lastSync, &status, &message); err != nil {
		return nil, err
	}

	c.AccountID = accountID.String
	c.LastSyncStatus = status.String
	c.LastSyncMessage = message.String
	if lastSync.Valid {
		t, err := time.Parse(time.RFC3339, lastSync.String)
		if err != nil {
			return nil, fmt.Errorf("invalid last_sync_at %q: %w", lastSync.String, err)
		}
		c.LastSyncAt = &t
	}
	return &c, nil
}

// GetConnection returns the bank connection with the given id, or nil if
// there is none
func (d *DB) GetConnection(ctx context.Context, id int64) (*bank.Connection, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+connectionColumns+` FROM bank_connections WHERE id = ?`, id)
	c, err := scanConnection(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bank connection: %w", err)
	}
	return c, nil
}

// ListConnections returns every bank connection ordered by id
func (d *DB) ListConnections(ctx context.Context) ([]bank.Connection, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+connectionColumns+` FROM bank_connections ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query bank connections: %w", err)
	}
	defer rows.Close()

	var connections []bank.Connection
	for rows.Next() {
		c, err := scanConnection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan bank connection: %w", err)
		}
		connections = append(connections, *c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating bank connections: %w", err)
	}

	return connections, nil
}

// SetConnectionActive enables or disables a bank connection
func (d *DB) SetConnectionActive(ctx context.Context, id int64, active bool) error {
	result, err := d.db.ExecContext(ctx, `UPDATE bank_connections SET is_active = ? WHERE id = ?`, active, id)
	if err != nil {
		return fmt.Errorf("failed to update bank connection: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to update bank connection: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("bank connection %d not found", id)
	}
	return nil
}

// RecordSyncStatus stores the outcome of the latest sync on the connection
func (d *DB) RecordSyncStatus(ctx context.Context, connectionID int64, at time.Time, status types.SyncStatus, message string) error {
	_, err := d.db.ExecContext(ctx, `
		UPDATE bank_connections
		SET last_sync_at = ?, last_sync_status = ?, last_sync_message = ?
		WHERE id = ?
	`, at.UTC().Format(time.RFC3339), string(status), message, connectionID)
	if err != nil {
		return fmt.Errorf("failed to record sync status: %w", err)
	}
	return nil
}

// FindOrCreateCategory returns the id of the named category, creating it if needed
func (d *DB) FindOrCreateCategory(ctx context.Context, name string) (int64, error) {
	return d.findOrCreate(ctx, "categories", name)
}

// FindOrCreateTag returns the id of the named tag, creating it if needed
func (d *DB) FindOrCreateTag(ctx context.Context, name string) (int64, error) {
	return d.findOrCreate(ctx, "tags", name)
}

func (d *DB) findOrCreate(ctx context.Context, table, name string) (int64, error) {
	if _, err := d.db.ExecContext(ctx, `INSERT OR IGNORE INTO `+table+` (name) VALUES (?)`, name); err != nil {
		return 0, fmt.Errorf("failed to create %s %q: %w", table, name, err)
	}

	var id int64
	if err := d.db.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to look up %s %q: %w", table, name, err)
	}
	return id, nil
}

// TransactionExists reports whether a provider transaction is already stored
// for the connection
func (d *DB) TransactionExists(ctx context.Context, externalID string, connectionID int64) (bool, error) {
	var exists bool
	err := d.db.QueryRowContext(ctx, `
		SELECT EXISTS(
			SELECT 1 FROM transactions
			WHERE external_transaction_id = ? AND bank_connection_id = ?
		)
	`, externalID, connectionID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check transaction existence: %w", err)
	}

	return exists, nil
}

// InsertTransaction stores a transaction with its category and tags. A
// connection id of 0 stores the transaction without a connection.
func (d *DB) InsertTransaction(ctx context.Context, t types.Transaction, categoryID int64, tagIDs []int64, connectionID int64, source types.Source) error {
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransaction(ctx, tx, t, categoryID, tagIDs, connectionID, source); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	d.logger.Debug("Transaction stored", "external_id", t.ExternalID, "date", t.Date.Format(types.DateLayout), "amount", t.Amount, "source", source)
	return nil
}

func insertTransaction(ctx context.Context, tx *sql.Tx, t types.Transaction, categoryID int64, tagIDs []int64, connectionID int64, source types.Source) error {
	result, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (
			date, amount, type, description, category_id, source,
			external_transaction_id, bank_connection_id, source_row
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.Date.Format(types.DateLayout), t.Amount.String(), string(t.Direction), t.Description,
		nullInt64(categoryID), string(source),
		nullString(t.ExternalID), nullInt64(connectionID), nullInt64(int64(t.SourceRow)),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("failed to store transaction %s: %w", t.ExternalID, types.ErrDuplicateTransaction)
		}
		return fmt.Errorf("failed to store transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to get transaction id: %w", err)
	}

	for _, tagID := range tagIDs {
		if _, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO transaction_tags (transaction_id, tag_id) VALUES (?, ?)`, id, tagID); err != nil {
			return fmt.Errorf("failed to tag transaction: %w", err)
		}
	}
	return nil
}

// SaveImported stores the transactions of a statement import under the named
// category in a single database transaction
func (d *DB) SaveImported(ctx context.Context, transactions []types.Transaction, category string) (int, error) {
	categoryID, err := d.FindOrCreateCategory(ctx, category)
	if err != nil {
		return 0, err
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, t := range transactions {
		if err := insertTransaction(ctx, tx, t, categoryID, nil, 0, types.SourceExcelImport); err != nil {
			return 0, fmt.Errorf("row %d: %w", t.SourceRow, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit import: %w", err)
	}

	d.logger.Info("Imported transactions stored", "count", len(transactions), "category", category)
	return len(transactions), nil
}

// StoredTransaction is a transaction as read back from the ledger
type StoredTransaction struct {
	ID           int64
	Transaction  types.Transaction
	Category     string
	Tags         []string
	Source       types.Source
	ConnectionID int64
}

// ListTransactions returns stored transactions ordered by date then id
func (d *DB) ListTransactions(ctx context.Context) ([]StoredTransaction, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT t.id, t.date, t.amount, t.type, t.description, COALESCE(c.name, ''), t.source,
			COALESCE(t.external_transaction_id, ''), COALESCE(t.bank_connection_id, 0), COALESCE(t.source_row, 0),
			COALESCE((SELECT GROUP_CONCAT(g.name, ',') FROM transaction_tags tt JOIN tags g ON g.id = tt.tag_id
				WHERE tt.transaction_id = t.id), '')
		FROM transactions t
		LEFT JOIN categories c ON c.id = t.category_id
		ORDER BY t.date, t.id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var out []StoredTransaction
	for rows.Next() {
		var st StoredTransaction
		var date, amount, direction, source, tags string

		if err := rows.Scan(&st.ID, &date, &amount, &direction, &st.Transaction.Description, &st.Category, &source,
			&st.Transaction.ExternalID, &st.ConnectionID, &st.Transaction.SourceRow, &tags); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}

		st.Transaction.Date, err = time.Parse(types.DateLayout, date)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction date %q: %w", date, err)
		}
		st.Transaction.Amount, err = decimal.NewFromString(amount)
		if err != nil {
			return nil, fmt.Errorf("failed to parse transaction amount %q: %w", amount, err)
		}
		st.Transaction.Direction = types.Direction(direction)
		st.Source = types.Source(source)
		if tags != "" {
			st.Tags = strings.Split(tags, ",")
		}
		out = append(out, st)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	return out, nil
}

// CountTransactions returns the number of stored transactions from source,
// or from every source when source is empty
func (d *DB) CountTransactions(ctx context.Context, source types.Source) (int, error) {
	var count int
	err := d.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM transactions WHERE ? = '' OR source = ?
	`, string(source), string(source)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt64(n int64) sql.NullInt64 {
	return sql.NullInt64{Int64: n, Valid: n != 0}
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, sqlite3.CONSTRAINT_UNIQUE)
}
