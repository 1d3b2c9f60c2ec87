// Package store persists refined stamp and signature assets. The store
// is an explicitly constructed value passed to whoever needs it; nothing
// in the processing engines depends on it, only the surrounding
// application composes the two.
//
// Asset bytes are immutable after creation. Reprocessing an image saves
// a new record rather than rewriting an old one.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound reports an id with no record behind it.
var ErrNotFound = errors.New("asset not found")

// Kind classifies an asset.
type Kind string

const (
	KindStamp     Kind = "stamp"
	KindSignature Kind = "signature"
)

// AssetRecord is one stored asset. Data holds the encoded image bytes
// exactly as handed in.
type AssetRecord struct {
	ID         uuid.UUID
	Name       string
	Kind       Kind
	Data       []byte
	Favorite   bool
	CreatedAt  time.Time
	LastUsedAt time.Time
}

// ListOptions filters and orders List results.
type ListOptions struct {
	// Kind limits results to one asset kind. Empty returns everything.
	Kind Kind
	// FavoritesFirst floats favorites to the front before the
	// newest-first ordering applies.
	FavoritesFirst bool
}

// Store is a SQLite-backed asset collection.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	id           TEXT PRIMARY KEY,
	name         TEXT NOT NULL,
	kind         TEXT NOT NULL,
	data         BLOB NOT NULL,
	favorite     INTEGER NOT NULL DEFAULT 0,
	created_at   TIMESTAMP NOT NULL,
	last_used_at TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_assets_kind ON assets(kind);
`

// Open opens or creates the asset database at path and applies the
// schema. The caller owns the returned store and must Close it.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open asset store: %w", err)
	}
	// One writer at a time keeps SQLITE_BUSY out of the picture.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate asset store: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error { return s.db.Close() }

// Save inserts a new record, assigning an id and timestamps when the
// caller left them zero, and returns the record's id.
func (s *Store) Save(ctx context.Context, rec *AssetRecord) (uuid.UUID, error) {
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.LastUsedAt.IsZero() {
		rec.LastUsedAt = rec.CreatedAt
	}

	query := `
		INSERT INTO assets (id, name, kind, data, favorite, created_at, last_used_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.ID, rec.Name, string(rec.Kind), rec.Data, rec.Favorite,
		rec.CreatedAt, rec.LastUsedAt,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("save asset: %w", err)
	}
	return rec.ID, nil
}

// Get retrieves one record by id.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (*AssetRecord, error) {
	query := `
		SELECT id, name, kind, data, favorite, created_at, last_used_at
		FROM assets WHERE id = ?
	`
	rec := &AssetRecord{}
	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&rec.ID, &rec.Name, &rec.Kind, &rec.Data, &rec.Favorite,
		&rec.CreatedAt, &rec.LastUsedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get asset: %w", err)
	}
	return rec, nil
}

// List returns records newest-first, filtered and reordered per opts.
func (s *Store) List(ctx context.Context, opts ListOptions) ([]*AssetRecord, error) {
	query := `
		SELECT id, name, kind, data, favorite, created_at, last_used_at
		FROM assets
	`
	var args []interface{}
	if opts.Kind != "" {
		query += " WHERE kind = ?"
		args = append(args, string(opts.Kind))
	}
	if opts.FavoritesFirst {
		query += " ORDER BY favorite DESC, created_at DESC"
	} else {
		query += " ORDER BY created_at DESC"
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list assets: %w", err)
	}
	defer rows.Close()

	var recs []*AssetRecord
	for rows.Next() {
		rec := &AssetRecord{}
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Kind, &rec.Data, &rec.Favorite,
			&rec.CreatedAt, &rec.LastUsedAt,
		); err != nil {
			return nil, fmt.Errorf("list assets: %w", err)
		}
		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// Delete removes one record.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM assets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete asset: %w", err)
	}
	return oneRow(res)
}

// Rename changes a record's display name.
func (s *Store) Rename(ctx context.Context, id uuid.UUID, name string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET name = ? WHERE id = ?`, name, id)
	if err != nil {
		return fmt.Errorf("rename asset: %w", err)
	}
	return oneRow(res)
}

// SetFavorite flags or unflags a record.
func (s *Store) SetFavorite(ctx context.Context, id uuid.UUID, favorite bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assets SET favorite = ? WHERE id = ?`, favorite, id)
	if err != nil {
		return fmt.Errorf("favorite asset: %w", err)
	}
	return oneRow(res)
}

// Touch records that the asset was just used.
func (s *Store) Touch(ctx context.Context, id uuid.UUID) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE assets SET last_used_at = ? WHERE id = ?`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("touch asset: %w", err)
	}
	return oneRow(res)
}

func oneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
