package storage

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bull/pdf-rag/internal/metadata"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// SQLiteStore is an embedded VectorStore for single-node deployments and
// tests. Similarity search is an exact scan over the collection.
type SQLiteStore struct {
	db         *sql.DB
	path       string
	collection string
}

var _ VectorStore = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) the database at path and binds it to
// collection.
func NewSQLiteStore(path, collection string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path not set")
	}
	if collection == "" {
		collection = DefaultCollection
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)")
	if err != nil {
		return nil, fmt.Errorf("%w: opening database: %v", ErrStoreUnreachable, err)
	}

	s := &SQLiteStore{db: db, path: path, collection: collection}

	if err := s.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	row := s.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	names, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("reading migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(filepath.Base(name), "%d_", &version); err != nil {
			continue
		}
		if version <= current {
			continue
		}

		content, err := fs.ReadFile(migrationsFS, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, "INSERT INTO schema_migrations (version) VALUES (?)", version); err != nil {
			return fmt.Errorf("recording migration %s: %w", name, err)
		}
	}

	return nil
}

func (s *SQLiteStore) Health(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnreachable, err)
	}
	return nil
}

func (s *SQLiteStore) CollectionExists(ctx context.Context) (bool, error) {
	_, err := s.dimension(ctx)
	if errors.Is(err, ErrCollectionNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (s *SQLiteStore) dimension(ctx context.Context) (int, error) {
	var dim int
	err := s.db.QueryRowContext(ctx,
		"SELECT dimension FROM collections WHERE name = ?", s.collection).Scan(&dim)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrCollectionNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("reading collection: %w", err)
	}
	return dim, nil
}

func (s *SQLiteStore) EnsureCollection(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrDimensionMismatch, dimension)
	}

	dim, err := s.dimension(ctx)
	switch {
	case errors.Is(err, ErrCollectionNotFound):
		_, err = s.db.ExecContext(ctx,
			"INSERT INTO collections (name, distance, dimension) VALUES (?, 'cosine', ?) ON CONFLICT(name) DO NOTHING",
			s.collection, dimension)
		if err != nil {
			return fmt.Errorf("creating collection: %w", err)
		}
		return nil
	case err != nil:
		return err
	case dim != dimension:
		return fmt.Errorf("%w: collection %s has %d dimensions, embeddings have %d",
			ErrDimensionMismatch, s.collection, dim, dimension)
	}
	return nil
}

func (s *SQLiteStore) Count(ctx context.Context) (uint64, error) {
	if _, err := s.dimension(ctx); err != nil {
		return 0, err
	}

	var n uint64
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM records WHERE collection = ?", s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting records: %w", err)
	}
	return n, nil
}

// Upsert writes all records in one transaction.
func (s *SQLiteStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := checkDimensions(records); err != nil {
		return err
	}

	dim, err := s.dimension(ctx)
	if err != nil {
		return err
	}
	if dim != len(records[0].Vector) {
		return fmt.Errorf("%w: collection %s has %d dimensions, records have %d",
			ErrDimensionMismatch, s.collection, dim, len(records[0].Vector))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO records (collection, id, vector, text, metadata)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(collection, id) DO UPDATE SET
			vector = excluded.vector,
			text = excluded.text,
			metadata = excluded.metadata
	`)
	if err != nil {
		return fmt.Errorf("preparing upsert: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		meta, err := json.Marshal(rec.Metadata)
		if err != nil {
			return fmt.Errorf("marshalling metadata for %s: %w", rec.ID, err)
		}
		if rec.Metadata == nil {
			meta = []byte("{}")
		}
		if _, err := stmt.ExecContext(ctx, s.collection, rec.ID,
			encodeVector(rec.Vector), rec.Text, string(meta)); err != nil {
			return fmt.Errorf("upserting record %s: %w", rec.ID, err)
		}
	}

	return tx.Commit()
}

// Query scans the collection and returns the k records closest to vector.
// Ties keep insertion order.
func (s *SQLiteStore) Query(ctx context.Context, vector []float32, k int) ([]Result, error) {
	dim, err := s.dimension(ctx)
	if err != nil {
		return nil, err
	}
	if len(vector) != dim {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(vector), dim)
	}
	if k <= 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, vector, text, metadata FROM records WHERE collection = ? ORDER BY rowid", s.collection)
	if err != nil {
		return nil, fmt.Errorf("querying records: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var (
			id, text, meta string
			blob           []byte
		)
		if err := rows.Scan(&id, &blob, &text, &meta); err != nil {
			return nil, fmt.Errorf("scanning record: %w", err)
		}
		flat, err := decodeMetadata(meta)
		if err != nil {
			return nil, fmt.Errorf("decoding metadata for %s: %w", id, err)
		}
		results = append(results, Result{
			ID:       id,
			Text:     text,
			Metadata: flat,
			Distance: CosineDistance(vector, decodeVector(blob)),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating records: %w", err)
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Distance < results[j].Distance
	})
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// CosineDistance returns 1 - cosine similarity of a and b. Vectors of
// different length or zero magnitude are at distance 1.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 1
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return 1 - dot/(math.Sqrt(na)*math.Sqrt(nb))
}

func encodeVector(v []float32) []byte {
	buf := make([]byte, len(v)*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) []float32 {
	v := make([]float32, len(data)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return v
}

// decodeMetadata keeps integers as int64 so page numbers survive the round trip.
func decodeMetadata(s string) (metadata.Flat, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	for key, v := range raw {
		n, ok := v.(json.Number)
		if !ok {
			continue
		}
		if i, err := n.Int64(); err == nil && !strings.ContainsAny(n.String(), ".eE") {
			raw[key] = i
		} else if f, err := n.Float64(); err == nil {
			raw[key] = f
		} else {
			delete(raw, key)
		}
	}
	return metadata.Normalize(raw), nil
}
