package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/bryan-buckman/syllabus/internal/model"
	_ "modernc.org/sqlite"
)

// DB wraps the SQLite connection.
type DB struct {
	conn *sql.DB
}

var _ Store = (*DB)(nil)

// New opens or creates an SQLite database at the given path.
func New(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, unavailable("open sqlite", err)
	}
	// Enable WAL mode for better concurrency.
	if _, err := conn.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		conn.Close()
		return nil, unavailable("set wal mode", err)
	}
	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, unavailable("migrate", err)
	}
	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Backend returns the database backend name.
func (db *DB) Backend() string {
	return BackendSQLite
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS learned (
		title TEXT PRIMARY KEY,
		learned INTEGER NOT NULL DEFAULT 0
	);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// Load returns every stored title and flag.
func (db *DB) Load(ctx context.Context) (model.LearnedState, error) {
	rows, err := db.conn.QueryContext(ctx, "SELECT title, learned FROM learned")
	if err != nil {
		return nil, unavailable("query learned", err)
	}
	defer rows.Close()
	m, err := scanLearned(rows)
	if err != nil {
		return nil, unavailable("scan learned", err)
	}
	return m, nil
}

// Save replaces the table contents with m in one transaction.
func (db *DB) Save(ctx context.Context, m model.LearnedState) error {
	if err := replaceLearned(ctx, db.conn, "INSERT INTO learned (title, learned) VALUES (?, ?)", m); err != nil {
		return unavailable("save learned", err)
	}
	return nil
}

func scanLearned(rows *sql.Rows) (model.LearnedState, error) {
	m := model.LearnedState{}
	for rows.Next() {
		var title string
		var learned bool
		if err := rows.Scan(&title, &learned); err != nil {
			return nil, err
		}
		m[title] = learned
	}
	return m, rows.Err()
}

// replaceLearned deletes every row and inserts m, shared by both SQL backends.
func replaceLearned(ctx context.Context, conn *sql.DB, insert string, m model.LearnedState) error {
	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "DELETE FROM learned"); err != nil {
		tx.Rollback()
		return fmt.Errorf("clear: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, insert)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()
	for title, learned := range m {
		if _, err := stmt.ExecContext(ctx, title, learned); err != nil {
			tx.Rollback()
			return fmt.Errorf("insert %q: %w", title, err)
		}
	}
	return tx.Commit()
}
