package sqlite_test

import (
	"context"
	"database/sql"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/BrandonDHaskell/labaccess/internal/db"
	"github.com/BrandonDHaskell/labaccess/internal/labaccess/store"
	sqlitestore "github.com/BrandonDHaskell/labaccess/internal/labaccess/store/sqlite"
)

// openTestDB returns an in-memory SQLite connection with the same PRAGMAs
// and schema as production.  The connection is closed automatically when the
// test finishes.
func openTestDB(t *testing.T) *sql.DB {
	t.Helper()

	// Each test gets its own shared-cache in-memory database, which stays
	// alive as long as the pool holds a connection.
	name := "test_" + strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	conn, err := sql.Open("sqlite", db.DSN(name, "mode=memory&cache=shared"))
	if err != nil {
		t.Fatalf("openTestDB: sql.Open: %v", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)

	if err := conn.Ping(); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: ping: %v", err)
	}

	if err := db.Migrate(context.Background(), conn); err != nil {
		conn.Close()
		t.Fatalf("openTestDB: migrate: %v", err)
	}

	t.Cleanup(func() { conn.Close() })
	return conn
}

// newTestStore returns a Store over a fresh database plus the raw
// connection for assertions.  The writer is closed before the connection.
func newTestStore(t *testing.T) (*sqlitestore.Store, *sql.DB) {
	t.Helper()

	conn := openTestDB(t)
	w := db.NewWorker(conn)
	t.Cleanup(func() { w.Close() })
	return sqlitestore.New(conn, w), conn
}

var testNow = time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)

func seedUser(t *testing.T, st store.Store, id int64, name string) {
	t.Helper()
	err := st.Do(context.Background(), func(ctx context.Context, tx store.Tx) error {
		return tx.UpsertUser(ctx, store.UserRecord{ID: id, Name: name, Active: true, TotalScore: decimal.Zero}, testNow)
	})
	if err != nil {
		t.Fatalf("seedUser(%d): %v", id, err)
	}
}

func countRows(t *testing.T, conn *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	if err := conn.QueryRowContext(context.Background(), query, args...).Scan(&n); err != nil {
		t.Fatalf("count %q: %v", query, err)
	}
	return n
}

func int64p(v int64) *int64 { return &v }
