package catalog

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // driver: pgx
	_ "modernc.org/sqlite"             // driver: sqlite
)

// Driver selects the SQL backend.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// SQLStore keeps catalog documents as JSON rows in one table. Filtering runs
// in Go after a per-collection scan.
type SQLStore struct {
	db     *sql.DB
	driver Driver
}

// OpenSQL opens a database and ensures the schema exists.
func OpenSQL(ctx context.Context, driver Driver, dsn string) (*SQLStore, error) {
	var drvName string
	switch driver {
	case DriverSQLite:
		drvName = "sqlite" // modernc driver
		if dsn == "" {
			dsn = "file:admit.db?cache=shared&mode=rwc&_pragma=busy_timeout(5000)"
		}
	case DriverPostgres:
		drvName = "pgx" // pgx stdlib driver
		if dsn == "" {
			dsn = "postgres://localhost:5432/admit?sslmode=disable"
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	db, err := sql.Open(drvName, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &SQLStore{db: db, driver: driver}, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS catalog_documents (
  id TEXT PRIMARY KEY,
  collection TEXT NOT NULL,
  body TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS catalog_documents_collection ON catalog_documents (collection);
`

func (s *SQLStore) placeholder(n int) string {
	if s.driver == DriverPostgres {
		return fmt.Sprintf("$%d", n)
	}
	return "?"
}

// Insert stores documents. A document without an "id" gets a random one.
func (s *SQLStore) Insert(ctx context.Context, c Collection, docs ...Document) error {
	if !c.Valid() {
		return fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	q := fmt.Sprintf("INSERT INTO catalog_documents (id, collection, body) VALUES (%s, %s, %s)",
		s.placeholder(1), s.placeholder(2), s.placeholder(3))
	for _, d := range docs {
		id, _ := d["id"].(string)
		if id == "" {
			id = uuid.NewString()
		}
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode document: %w", err)
		}
		if _, err := tx.ExecContext(ctx, q, string(c)+"/"+id, string(c), string(body)); err != nil {
			return fmt.Errorf("insert document: %w", err)
		}
	}
	return tx.Commit()
}

// Find scans a collection and applies the filter and options in memory.
func (s *SQLStore) Find(ctx context.Context, c Collection, f Filter, opts ...FindOption) ([]Document, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCollection, c)
	}
	q := "SELECT body FROM catalog_documents WHERE collection = " + s.placeholder(1) + " ORDER BY id"
	rows, err := s.db.QueryContext(ctx, q, string(c))
	if err != nil {
		return nil, fmt.Errorf("query %s: %w", c, err)
	}
	defer func() { _ = rows.Close() }()

	var docs []Document
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, err
		}
		var d Document
		if err := json.Unmarshal([]byte(body), &d); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrDecode, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return apply(docs, f, buildFindOptions(opts)), nil
}

// Close closes the database.
func (s *SQLStore) Close(context.Context) error {
	return s.db.Close()
}

// Seed replaces every collection present in a YAML fixture file.
func (s *SQLStore) Seed(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open fixture: %w", err)
	}
	defer func() { _ = f.Close() }()

	fx, err := DecodeFixture(f)
	if err != nil {
		return err
	}
	del := "DELETE FROM catalog_documents WHERE collection = " + s.placeholder(1)
	for c, docs := range fx {
		if _, err := s.db.ExecContext(ctx, del, string(c)); err != nil {
			return fmt.Errorf("clear %s: %w", c, err)
		}
		if err := s.Insert(ctx, c, docs...); err != nil {
			return err
		}
	}
	return nil
}
