// Package sqlitekv is a local persistence stand-in for the Table
// interface, backed by mattn/go-sqlite3, used by integration tests that
// need a KV table to survive a process restart (e.g. exercising warm
// restart without a real swss/redis deployment).
package sqlitekv

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/sonic-net/linkmgrd-go/pkg/dbadapter"
	"github.com/sonic-net/linkmgrd-go/pkg/errdefs"
)

// Table is a dbadapter.Table backed by a single sqlite table named
// after the logical KV table it represents.
type Table struct {
	db   *sql.DB
	name string
}

// Open creates (if needed) and returns a Table backed by the sqlite
// database at path, one physical table per logical name.
func Open(path, name string) (*Table, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite kv store: %w", err)
	}
	stmt := fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, fields TEXT NOT NULL)`, name)
	if _, err := db.Exec(stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create sqlite kv table %s: %w", name, err)
	}
	return &Table{db: db, name: name}, nil
}

func (t *Table) Set(ctx context.Context, key string, fields dbadapter.FieldValues) error {
	blob, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	_, err = t.db.ExecContext(ctx,
		fmt.Sprintf(`INSERT INTO %q(key, fields) VALUES(?, ?)
			ON CONFLICT(key) DO UPDATE SET fields=excluded.fields`, t.name),
		key, string(blob))
	return err
}

func (t *Table) Get(ctx context.Context, key string) (dbadapter.FieldValues, error) {
	row := t.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT fields FROM %q WHERE key = ?`, t.name), key)
	var blob string
	if err := row.Scan(&blob); err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("sqlitekv: key %q: %w", key, errdefs.ErrNotFound)
		}
		return nil, err
	}
	var fv dbadapter.FieldValues
	if err := json.Unmarshal([]byte(blob), &fv); err != nil {
		return nil, err
	}
	return fv, nil
}

func (t *Table) Del(ctx context.Context, key string) error {
	_, err := t.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, t.name), key)
	return err
}

func (t *Table) Close() error { return t.db.Close() }
